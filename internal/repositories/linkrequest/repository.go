package linkrequest

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
	"id", "sender_family_code", "sender_node_uid", "receiver_family_code",
	"receiver_node_uid", "relationship_type", "parent_role", "status",
	"requested_by", "created_at", "updated_at",
}

// Repository handles cross-family link request persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new link request repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new pending link request
func (r *Repository) Create(ctx context.Context, req *models.LinkRequest) (*models.LinkRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "linkrequest.Repository.Create")
	defer span.End()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = models.LinkRequestPending
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("link_requests")
	sb.Cols(columns...)
	sb.Values(req.ID, req.SenderFamilyCode, req.SenderNodeUID, req.ReceiverFamilyCode,
		req.ReceiverNodeUID, req.RelationshipType, req.ParentRole, req.Status,
		req.RequestedBy, req.CreatedAt, req.UpdatedAt)

	query, args := sb.Build()
	ex := database.Writer(ctx, r.db)
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"sender_family":   req.SenderFamilyCode,
			"receiver_family": req.ReceiverFamilyCode,
		}).Error("Failed to create link request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create link request")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": req.ID}).Info("Created link request")
	return req, nil
}

// Get retrieves a link request by id
func (r *Repository) Get(ctx context.Context, id string) (*models.LinkRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "linkrequest.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("link_requests")
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()
	var req models.LinkRequest
	ex := database.Writer(ctx, r.db)
	if err := ex.GetContext(ctx, &req, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get link request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get link request")
	}
	return &req, nil
}

// FindPendingBetween returns any pending request between the two nodes,
// in either direction.
func (r *Repository) FindPendingBetween(ctx context.Context, familyA, nodeUIDA, familyB, nodeUIDB string) (*models.LinkRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "linkrequest.Repository.FindPendingBetween")
	defer span.End()

	query := `
		SELECT id, sender_family_code, sender_node_uid, receiver_family_code,
		       receiver_node_uid, relationship_type, parent_role, status,
		       requested_by, created_at, updated_at
		FROM link_requests
		WHERE status = 'pending'
		  AND (
			(sender_family_code = $1 AND sender_node_uid = $2 AND receiver_family_code = $3 AND receiver_node_uid = $4)
			OR
			(sender_family_code = $3 AND sender_node_uid = $4 AND receiver_family_code = $1 AND receiver_node_uid = $2)
		  )
		LIMIT 1
	`
	var req models.LinkRequest
	if err := r.db.GetContext(ctx, &req, query, familyA, nodeUIDA, familyB, nodeUIDB); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find pending link request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find pending link request")
	}
	return &req, nil
}

// UpdateStatus moves a link request out of pending
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.LinkRequestStatus) error {
	ctx, span := tracing.StartSpan(ctx, "linkrequest.Repository.UpdateStatus")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("link_requests")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	ex := database.Writer(ctx, r.db)
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "status": status}).Error("Failed to update link request status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update link request")
	}
	return nil
}
