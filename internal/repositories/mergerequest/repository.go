package mergerequest

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/banyan/internal/database"
	"github.com/Ramsey-B/banyan/internal/tracing"
	"github.com/Ramsey-B/banyan/pkg/models"
)

var columns = []string{
	"id", "primary_family_code", "secondary_family_code", "requested_by_admin_id",
	"primary_status", "secondary_status", "applied_generation_offset",
	"is_no_match_merge", "anchor_config", "created_at", "updated_at",
}

// Repository handles merge request persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge request repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new open merge request
func (r *Repository) Create(ctx context.Context, req *models.MergeRequest) (*models.MergeRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerequest.Repository.Create")
	defer span.End()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.PrimaryStatus = models.MergePrimaryOpen
	req.SecondaryStatus = models.MergeSecondaryPending
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("merge_requests")
	sb.Cols(columns...)
	sb.Values(req.ID, req.PrimaryFamilyCode, req.SecondaryFamilyCode, req.RequestedByAdminID,
		req.PrimaryStatus, req.SecondaryStatus, req.AppliedGenerationOffset,
		req.IsNoMatchMerge, req.AnchorConfig, req.CreatedAt, req.UpdatedAt)

	query, args := sb.Build()
	ex := database.Writer(ctx, r.db)
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"primary_family":   req.PrimaryFamilyCode,
			"secondary_family": req.SecondaryFamilyCode,
		}).Error("Failed to create merge request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create merge request")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": req.ID}).Info("Created merge request")
	return req, nil
}

// Get retrieves a merge request by id
func (r *Repository) Get(ctx context.Context, id string) (*models.MergeRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerequest.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("merge_requests")
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()
	var req models.MergeRequest
	ex := database.Writer(ctx, r.db)
	if err := ex.GetContext(ctx, &req, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get merge request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge request")
	}
	return &req, nil
}

// FindActiveBetween returns any open or accepted request between the two
// families, in either direction.
func (r *Repository) FindActiveBetween(ctx context.Context, familyA, familyB string) (*models.MergeRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerequest.Repository.FindActiveBetween")
	defer span.End()

	query := `
		SELECT id, primary_family_code, secondary_family_code, requested_by_admin_id,
		       primary_status, secondary_status, applied_generation_offset,
		       is_no_match_merge, anchor_config, created_at, updated_at
		FROM merge_requests
		WHERE primary_status IN ('open', 'accepted')
		  AND (
			(primary_family_code = $1 AND secondary_family_code = $2)
			OR
			(primary_family_code = $2 AND secondary_family_code = $1)
		  )
		LIMIT 1
	`
	var req models.MergeRequest
	if err := r.db.GetContext(ctx, &req, query, familyA, familyB); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find active merge request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find active merge request")
	}
	return &req, nil
}

// UpdateStatuses advances the state machine. Passing a zero value leaves
// that side unchanged.
func (r *Repository) UpdateStatuses(ctx context.Context, id string, primary models.MergePrimaryStatus, secondary models.MergeSecondaryStatus) error {
	ctx, span := tracing.StartSpan(ctx, "mergerequest.Repository.UpdateStatuses")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("merge_requests")
	assigns := []string{sb.Assign("updated_at", time.Now().UTC())}
	if primary != "" {
		assigns = append(assigns, sb.Assign("primary_status", primary))
	}
	if secondary != "" {
		assigns = append(assigns, sb.Assign("secondary_status", secondary))
	}
	sb.Set(assigns...)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	ex := database.Writer(ctx, r.db)
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to update merge request statuses")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update merge request")
	}
	return nil
}

// SetExecutionOutcome records the applied offset and no-match flag at
// execution time.
func (r *Repository) SetExecutionOutcome(ctx context.Context, id string, appliedOffset int, isNoMatchMerge bool) error {
	ctx, span := tracing.StartSpan(ctx, "mergerequest.Repository.SetExecutionOutcome")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("merge_requests")
	sb.Set(
		sb.Assign("applied_generation_offset", appliedOffset),
		sb.Assign("is_no_match_merge", isNoMatchMerge),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	ex := database.Writer(ctx, r.db)
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to record merge execution outcome")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update merge request")
	}
	return nil
}
