package membership

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/banyan/internal/database"
	"github.com/Ramsey-B/banyan/internal/tracing"
	"github.com/Ramsey-B/banyan/pkg/models"
)

// Repository answers membership, blocking, and profile questions for
// the graph services
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new membership repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// IsFamilyAdmin reports whether the user is an approved admin of the family
func (r *Repository) IsFamilyAdmin(ctx context.Context, userID, familyCode string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "membership.Repository.IsFamilyAdmin")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(1)")
	sb.From("family_members")
	sb.Where(
		sb.Equal("user_id", userID),
		sb.Equal("family_code", familyCode),
		sb.Equal("role", "admin"),
		sb.Equal("status", "approved"),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID, "family_code": familyCode}).Error("Failed to check family admin")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check family admin")
	}
	return count > 0, nil
}

// GetApprovedMemberIDs returns the user ids of all approved members
func (r *Repository) GetApprovedMemberIDs(ctx context.Context, familyCode string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "membership.Repository.GetApprovedMemberIDs")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("user_id")
	sb.From("family_members")
	sb.Where(sb.Equal("family_code", familyCode), sb.Equal("status", "approved"))
	sb.OrderBy("user_id")

	query, args := sb.Build()
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"family_code": familyCode}).Error("Failed to get approved member ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get approved members")
	}
	return ids, nil
}

// IsBlockedEitherWay reports whether either user has blocked the other
func (r *Repository) IsBlockedEitherWay(ctx context.Context, userA, userB string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "membership.Repository.IsBlockedEitherWay")
	defer span.End()

	query := `
		SELECT COUNT(1) FROM member_blocks
		WHERE (blocker_id = $1 AND blocked_id = $2)
		   OR (blocker_id = $2 AND blocked_id = $1)
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userA, userB); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_a": userA, "user_b": userB}).Error("Failed to check block status")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check block status")
	}
	return count > 0, nil
}

// GetDisplayProfile returns the profile used to hydrate match candidates.
// Returns nil when the user has no profile.
func (r *Repository) GetDisplayProfile(ctx context.Context, userID string) (*models.DisplayProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "membership.Repository.GetDisplayProfile")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("user_id", "name", "gender", "age", "email", "phone")
	sb.From("member_profiles")
	sb.Where(sb.Equal("user_id", userID))
	sb.Limit(1)

	query, args := sb.Build()
	var profile models.DisplayProfile
	if err := r.db.GetContext(ctx, &profile, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to get display profile")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get display profile")
	}
	return &profile, nil
}

// GetAssociatedFamilyCodes returns externally recorded family-code hints
// for a user, used by the relationship prefix resolver
func (r *Repository) GetAssociatedFamilyCodes(ctx context.Context, userID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "membership.Repository.GetAssociatedFamilyCodes")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("family_code")
	sb.From("associated_families")
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("family_code")

	query, args := sb.Build()
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to get associated family codes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get associated families")
	}
	return codes, nil
}

// PromoteToAdmin upserts an approved admin membership for the user.
// Used by merge execution to promote anchor-designated users.
func (r *Repository) PromoteToAdmin(ctx context.Context, userID, familyCode string) error {
	ctx, span := tracing.StartSpan(ctx, "membership.Repository.PromoteToAdmin")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO family_members (user_id, family_code, role, status, created_at, updated_at)
		VALUES ($1, $2, 'admin', 'approved', $3, $3)
		ON CONFLICT (user_id, family_code)
		DO UPDATE SET role = 'admin', status = 'approved', updated_at = $3
	`
	ex := database.Writer(ctx, r.db)
	if _, err := ex.ExecContext(ctx, query, userID, familyCode, now); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID, "family_code": familyCode}).Error("Failed to promote member to admin")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to promote member")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"user_id": userID, "family_code": familyCode}).Info("Promoted member to admin")
	return nil
}
