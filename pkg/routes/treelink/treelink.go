package treelink

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	appcontext "github.com/Ramsey-B/banyan/internal/context"
	"github.com/Ramsey-B/banyan/pkg/models"
	"github.com/Ramsey-B/banyan/pkg/treelink"
	"github.com/Ramsey-B/banyan/pkg/utils"
)

// Register registers tree link routes
func Register(g *echo.Group) {
	g.POST("", Create)
	g.GET("/:id", Get)
	g.POST("/:id/accept", Accept)
	g.POST("/:id/reject", Reject)
}

func requireUser(c echo.Context) (string, error) {
	userID := appcontext.GetUserID(c.Request().Context())
	if userID == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}
	return userID, nil
}

// Create submits a new cross-family link request
// @Summary Request a tree link
// @Description Propose connecting a person in one family to a person in another
// @Tags TreeLink
// @Accept json
// @Produce json
// @Param body body models.CreateLinkRequestRequest true "Link request"
// @Success 201 {object} models.LinkRequest
// @Failure 400 {object} httperror.HTTPError
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/tree-links [post]
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.CreateLinkRequestRequest](c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*treelink.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	link, err := service.Request(ctx, userID, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, link)
}

// Get retrieves a link request
// @Summary Get a link request
// @Tags TreeLink
// @Produce json
// @Param id path string true "Link request id"
// @Success 200 {object} models.LinkRequest
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/tree-links/{id} [get]
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*treelink.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	link, err := service.Get(ctx, userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, link)
}

// Accept executes a pending link request
// @Summary Accept a link request
// @Description Materialize shadow cards and edges on both sides of the link
// @Tags TreeLink
// @Produce json
// @Param id path string true "Link request id"
// @Success 200 {object} models.LinkRequest
// @Failure 403 {object} httperror.HTTPError
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/tree-links/{id}/accept [post]
func Accept(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*treelink.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	link, err := service.Accept(ctx, userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, link)
}

// Reject declines a pending link request
// @Summary Reject a link request
// @Tags TreeLink
// @Produce json
// @Param id path string true "Link request id"
// @Success 200 {object} models.LinkRequest
// @Failure 403 {object} httperror.HTTPError
// @Router /api/v1/tree-links/{id}/reject [post]
func Reject(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*treelink.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	link, err := service.Reject(ctx, userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, link)
}
