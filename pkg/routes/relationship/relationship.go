package relationship

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	appcontext "github.com/Ramsey-B/banyan/internal/context"
	"github.com/Ramsey-B/banyan/pkg/pathresolver"
)

// Register registers relationship routes
func Register(g *echo.Group) {
	g.GET("/prefixes", GetPrefixes)
}

// GetPrefixes returns the relationship prefixes of every family reachable
// from the caller's nodes over spouse chains
// @Summary Resolve relationship prefixes
// @Description Walk spouse chains from the user's cards and prefix each reachable family
// @Tags Relationship
// @Produce json
// @Param user_id query string false "Resolve for another user (defaults to the caller)"
// @Success 200 {array} models.FamilyPrefix
// @Failure 401 {object} httperror.HTTPError
// @Router /api/v1/relationships/prefixes [get]
func GetPrefixes(c echo.Context) error {
	ctx := c.Request().Context()

	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = appcontext.GetUserID(ctx)
	}
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	ctx, resolver, err := ectoinject.GetContext[*pathresolver.Resolver](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	prefixes, err := resolver.ResolvePrefixes(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, prefixes)
}
