package family

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	appcontext "github.com/Ramsey-B/banyan/internal/context"
	"github.com/Ramsey-B/banyan/internal/repositories/familynode"
	"github.com/Ramsey-B/banyan/internal/repositories/membership"
	"github.com/Ramsey-B/banyan/pkg/repair"
)

// Register registers family graph routes
func Register(g *echo.Group) {
	g.GET("/:code/nodes", GetNodes)
	g.POST("/:code/repair", RepairFamily)
}

// GetNodes returns every node in a family's tree
// @Summary Get family nodes
// @Description List all member cards in one family's tree
// @Tags Family
// @Produce json
// @Param code path string true "Family code"
// @Success 200 {array} models.FamilyNode
// @Failure 403 {object} httperror.HTTPError
// @Router /api/v1/families/{code}/nodes [get]
func GetNodes(c echo.Context) error {
	ctx := c.Request().Context()
	userID := appcontext.GetUserID(ctx)
	familyCode := c.Param("code")

	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	ctx, members, err := ectoinject.GetContext[*membership.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	approved, err := members.GetApprovedMemberIDs(ctx, familyCode)
	if err != nil {
		return err
	}
	isMember := false
	for _, id := range approved {
		if id == userID {
			isMember = true
			break
		}
	}
	if !isMember {
		return httperror.NewHTTPError(http.StatusForbidden, "not an approved member of this family")
	}

	ctx, nodes, err := ectoinject.GetContext[*familynode.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	family, err := nodes.LoadFamily(ctx, familyCode)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, family)
}

// RepairFamily runs an integrity repair pass over a family's tree
// @Summary Repair a family tree
// @Description Restore edge symmetry, cap parents, and correct generations
// @Tags Family
// @Produce json
// @Param code path string true "Family code"
// @Success 200 {object} models.RepairReport
// @Failure 403 {object} httperror.HTTPError
// @Router /api/v1/families/{code}/repair [post]
func RepairFamily(c echo.Context) error {
	ctx := c.Request().Context()
	userID := appcontext.GetUserID(ctx)
	familyCode := c.Param("code")

	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	ctx, members, err := ectoinject.GetContext[*membership.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	isAdmin, err := members.IsFamilyAdmin(ctx, userID, familyCode)
	if err != nil {
		return err
	}
	if !isAdmin {
		return httperror.NewHTTPError(http.StatusForbidden, "only a family admin can trigger a repair")
	}

	ctx, repairs, err := ectoinject.GetContext[*repair.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	report, err := repairs.RepairFamily(ctx, familyCode)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, report)
}
