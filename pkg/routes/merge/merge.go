package merge

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	appcontext "github.com/Ramsey-B/banyan/internal/context"
	"github.com/Ramsey-B/banyan/pkg/merge"
	"github.com/Ramsey-B/banyan/pkg/models"
	"github.com/Ramsey-B/banyan/pkg/utils"
)

// Register registers merge request routes
func Register(g *echo.Group) {
	g.POST("", Create)
	g.GET("/:id", Get)
	g.POST("/:id/analyze", Analyze)
	g.POST("/:id/accept", Accept)
	g.POST("/:id/reject", Reject)
	g.POST("/:id/execute", Execute)
	g.GET("/:id/state", GetState)
	g.GET("/:id/state/history", GetStateHistory)
	g.POST("/:id/state/decisions", SaveDecisions)
	g.POST("/:id/state/final-tree", SaveFinalTree)
	g.POST("/:id/state/revert", RevertState)
}

func resolve(c echo.Context) (string, *merge.Service, error) {
	ctx := c.Request().Context()
	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return "", nil, httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	_, service, err := ectoinject.GetContext[*merge.Service](ctx)
	if err != nil {
		return "", nil, httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	return userID, service, nil
}

// Create opens a new merge request
// @Summary Create a merge request
// @Description Propose merging a secondary family's tree into a primary family
// @Tags Merge
// @Accept json
// @Produce json
// @Param body body models.CreateMergeRequestRequest true "Merge request"
// @Success 201 {object} models.MergeRequest
// @Failure 403 {object} httperror.HTTPError
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/merge-requests [post]
func Create(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.CreateMergeRequestRequest](c)
	if err != nil {
		return err
	}

	mergeRequest, err := service.Create(c.Request().Context(), userID, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, mergeRequest)
}

// Get retrieves a merge request
// @Summary Get a merge request
// @Tags Merge
// @Produce json
// @Param id path string true "Merge request id"
// @Success 200 {object} models.MergeRequest
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/merge-requests/{id} [get]
func Get(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	mergeRequest, err := service.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, mergeRequest)
}

// Analyze matches the two family trees and saves the result
// @Summary Analyze a merge request
// @Description Score cross-family person matches and detect conflicts
// @Tags Merge
// @Produce json
// @Param id path string true "Merge request id"
// @Success 200 {object} models.MergeAnalysis
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/merge-requests/{id}/analyze [post]
func Analyze(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	analysis, err := service.Analyze(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, analysis)
}

// Accept moves a merge request from open to accepted
// @Summary Accept a merge request
// @Tags Merge
// @Produce json
// @Param id path string true "Merge request id"
// @Success 200 {object} models.MergeRequest
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/merge-requests/{id}/accept [post]
func Accept(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	mergeRequest, err := service.Accept(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, mergeRequest)
}

// Reject moves a merge request from open to rejected
// @Summary Reject a merge request
// @Tags Merge
// @Produce json
// @Param id path string true "Merge request id"
// @Success 200 {object} models.MergeRequest
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/merge-requests/{id}/reject [post]
func Reject(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	mergeRequest, err := service.Reject(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, mergeRequest)
}

// Execute materializes the saved final tree into the primary family
// @Summary Execute a merge request
// @Description Import the consolidated member list into the primary family
// @Tags Merge
// @Produce json
// @Param id path string true "Merge request id"
// @Success 200 {object} models.ExecutionResult
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/merge-requests/{id}/execute [post]
func Execute(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	result, err := service.Execute(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// GetState returns the latest merge working-set version
// @Summary Get merge state
// @Tags Merge
// @Produce json
// @Param id path string true "Merge request id"
// @Success 200 {object} models.MergeState
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/merge-requests/{id}/state [get]
func GetState(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	state, err := service.GetState(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, state)
}

// GetStateHistory returns every saved working-set version
// @Summary Get merge state history
// @Tags Merge
// @Produce json
// @Param id path string true "Merge request id"
// @Success 200 {array} models.MergeState
// @Router /api/v1/merge-requests/{id}/state/history [get]
func GetStateHistory(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	history, err := service.History(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, history)
}

// SaveDecisions saves match accept/reject decisions as a new version
// @Summary Save match decisions
// @Tags Merge
// @Accept json
// @Produce json
// @Param id path string true "Merge request id"
// @Param body body models.SaveDecisionsRequest true "Decisions"
// @Success 200 {object} models.MergeState
// @Router /api/v1/merge-requests/{id}/state/decisions [post]
func SaveDecisions(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.SaveDecisionsRequest](c)
	if err != nil {
		return err
	}

	state, err := service.SaveDecisions(c.Request().Context(), userID, c.Param("id"), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, state)
}

// SaveFinalTree saves a draft consolidated member list as a new version
// @Summary Save the final tree
// @Tags Merge
// @Accept json
// @Produce json
// @Param id path string true "Merge request id"
// @Param body body models.SaveFinalTreeRequest true "Final tree"
// @Success 200 {object} models.MergeState
// @Router /api/v1/merge-requests/{id}/state/final-tree [post]
func SaveFinalTree(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.SaveFinalTreeRequest](c)
	if err != nil {
		return err
	}

	state, err := service.SaveFinalTree(c.Request().Context(), userID, c.Param("id"), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, state)
}

// RevertState restores an earlier working-set version
// @Summary Revert merge state
// @Description Re-insert an old version's payload as the next version
// @Tags Merge
// @Accept json
// @Produce json
// @Param id path string true "Merge request id"
// @Param body body models.RevertStateRequest true "Version to restore"
// @Success 200 {object} models.MergeState
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/merge-requests/{id}/state/revert [post]
func RevertState(c echo.Context) error {
	userID, service, err := resolve(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.RevertStateRequest](c)
	if err != nil {
		return err
	}

	state, err := service.Revert(c.Request().Context(), userID, c.Param("id"), req.Version)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, state)
}
