package mergestate

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
	"id", "merge_request_id", "version", "payload", "saved_by", "saved_at",
}

// Repository persists the versioned merge working set. Rows are
// insert-only; every save is a new version.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge state repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Append saves a new version of the working set and returns it. The
// version number is allocated on the context transaction.
func (r *Repository) Append(ctx context.Context, mergeRequestID string, payload models.MergeStatePayload, savedBy string) (*models.MergeState, error) {
	ctx, span := tracing.StartSpan(ctx, "mergestate.Repository.Append")
	defer span.End()

	ex := database.Writer(ctx, r.db)

	var version int
	versionQuery := "SELECT COALESCE(MAX(version), 0) + 1 FROM merge_states WHERE merge_request_id = $1"
	if err := ex.GetContext(ctx, &version, versionQuery, mergeRequestID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"merge_request_id": mergeRequestID}).Error("Failed to allocate merge state version")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save merge state")
	}

	state := &models.MergeState{
		ID:             uuid.New().String(),
		MergeRequestID: mergeRequestID,
		Version:        version,
		Payload:        database.JSONB[models.MergeStatePayload]{Data: payload},
		SavedBy:        savedBy,
		SavedAt:        time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("merge_states")
	sb.Cols(columns...)
	sb.Values(state.ID, state.MergeRequestID, state.Version, state.Payload, state.SavedBy, state.SavedAt)

	query, args := sb.Build()
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"merge_request_id": mergeRequestID,
			"version":          version,
		}).Error("Failed to insert merge state version")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save merge state")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"merge_request_id": mergeRequestID,
		"version":          version,
	}).Info("Saved merge state version")
	return state, nil
}

// GetLatest returns the newest version for a merge request, or nil
func (r *Repository) GetLatest(ctx context.Context, mergeRequestID string) (*models.MergeState, error) {
	ctx, span := tracing.StartSpan(ctx, "mergestate.Repository.GetLatest")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("merge_states")
	sb.Where(sb.Equal("merge_request_id", mergeRequestID))
	sb.OrderBy("version DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var state models.MergeState
	ex := database.Writer(ctx, r.db)
	if err := ex.GetContext(ctx, &state, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"merge_request_id": mergeRequestID}).Error("Failed to get latest merge state")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge state")
	}
	return &state, nil
}

// GetVersion returns one specific version, or nil
func (r *Repository) GetVersion(ctx context.Context, mergeRequestID string, version int) (*models.MergeState, error) {
	ctx, span := tracing.StartSpan(ctx, "mergestate.Repository.GetVersion")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("merge_states")
	sb.Where(sb.Equal("merge_request_id", mergeRequestID), sb.Equal("version", version))
	sb.Limit(1)

	query, args := sb.Build()
	var state models.MergeState
	if err := r.db.GetContext(ctx, &state, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"merge_request_id": mergeRequestID, "version": version}).Error("Failed to get merge state version")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge state")
	}
	return &state, nil
}

// History returns every version for a merge request, newest first
func (r *Repository) History(ctx context.Context, mergeRequestID string) ([]models.MergeState, error) {
	ctx, span := tracing.StartSpan(ctx, "mergestate.Repository.History")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("merge_states")
	sb.Where(sb.Equal("merge_request_id", mergeRequestID))
	sb.OrderBy("version DESC")

	query, args := sb.Build()
	var states []models.MergeState
	if err := r.db.SelectContext(ctx, &states, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"merge_request_id": mergeRequestID}).Error("Failed to get merge state history")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge state history")
	}
	return states, nil
}
