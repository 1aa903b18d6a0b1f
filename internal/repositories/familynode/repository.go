package familynode

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
	"github.com/Ramsey-B/banyan/pkg/fingerprint"
	"github.com/Ramsey-B/banyan/pkg/models"
)

var columns = []string{
	"id", "family_code", "person_id", "node_uid", "user_id", "name", "gender", "age",
	"generation", "life_status", "is_external_linked", "canonical_family_code",
	"canonical_node_uid", "parents", "children", "spouses", "siblings",
	"fingerprint", "created_at", "updated_at",
}

// Repository is the graph store: it persists the node set of a family
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new family node repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AcquireFamilyLock takes the per-family exclusive advisory lock. Must
// run inside a transaction; the lock is released on commit or rollback.
func (r *Repository) AcquireFamilyLock(ctx context.Context, familyCode string) error {
	ctx, span := tracing.StartSpan(ctx, "familynode.Repository.AcquireFamilyLock")
	defer span.End()

	ex := database.Writer(ctx, r.db)
	if _, err := ex.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", familyCode); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"family_code": familyCode}).Error("Failed to acquire family lock")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to lock family")
	}
	return nil
}

// LoadFamily returns every node of one family
func (r *Repository) LoadFamily(ctx context.Context, familyCode string) ([]*models.FamilyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "familynode.Repository.LoadFamily")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("family_nodes")
	sb.Where(sb.Equal("family_code", familyCode))
	sb.OrderBy("person_id")

	query, args := sb.Build()
	var nodes []*models.FamilyNode
	ex := database.Writer(ctx, r.db)
	if err := ex.SelectContext(ctx, &nodes, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"family_code": familyCode}).Error("Failed to load family nodes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load family")
	}
	return nodes, nil
}

// SaveChanged writes the given nodes, skipping any whose canonical
// content fingerprint matches the stored row. Nodes whose loaded
// fingerprint already matches are skipped before the round trip; the
// statement still guards with IS DISTINCT FROM against concurrent
// writers. Returns the number of rows actually written.
func (r *Repository) SaveChanged(ctx context.Context, nodes []*models.FamilyNode) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "familynode.Repository.SaveChanged")
	defer span.End()

	ex := database.Writer(ctx, r.db)
	now := time.Now().UTC()
	written := 0

	for _, node := range nodes {
		fp := fingerprint.Generate(node)
		if !fingerprint.HasChanged(node.Fingerprint, fp) {
			continue
		}

		query := `
			UPDATE family_nodes SET
				user_id = $1,
				name = $2,
				gender = $3,
				age = $4,
				generation = $5,
				life_status = $6,
				is_external_linked = $7,
				canonical_family_code = $8,
				canonical_node_uid = $9,
				parents = $10,
				children = $11,
				spouses = $12,
				siblings = $13,
				fingerprint = $14,
				updated_at = $15
			WHERE family_code = $16 AND person_id = $17
			  AND fingerprint IS DISTINCT FROM $14
		`
		result, err := ex.ExecContext(ctx, query,
			node.UserID, node.Name, node.Gender, node.Age, node.Generation, node.LifeStatus,
			node.IsExternalLinked, node.CanonicalFamilyCode, node.CanonicalNodeUID,
			node.Parents, node.Children, node.Spouses, node.Siblings,
			fp, now, node.FamilyCode, node.PersonID,
		)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"family_code": node.FamilyCode,
				"person_id":   node.PersonID,
			}).Error("Failed to save family node")
			return written, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save family node")
		}

		rows, err := result.RowsAffected()
		if err == nil {
			written += int(rows)
		}
		node.Fingerprint = fp
	}

	return written, nil
}

// Create inserts a new node. PersonID must already be allocated via
// NextPersonID inside the same transaction.
func (r *Repository) Create(ctx context.Context, node *models.FamilyNode) (*models.FamilyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "familynode.Repository.Create")
	defer span.End()

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.NodeUID == "" {
		node.NodeUID = uuid.New().String()
	}
	if node.LifeStatus == "" {
		node.LifeStatus = models.LifeStatusLiving
	}
	if node.Gender == "" {
		node.Gender = models.GenderUnknown
	}
	node.CreatedAt = time.Now().UTC()
	node.UpdatedAt = node.CreatedAt
	node.Fingerprint = fingerprint.Generate(node)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("family_nodes")
	sb.Cols("id", "family_code", "person_id", "node_uid", "user_id", "name", "gender", "age",
		"generation", "life_status", "is_external_linked", "canonical_family_code",
		"canonical_node_uid", "parents", "children", "spouses", "siblings",
		"fingerprint", "created_at", "updated_at")
	sb.Values(node.ID, node.FamilyCode, node.PersonID, node.NodeUID, node.UserID, node.Name,
		node.Gender, node.Age, node.Generation, node.LifeStatus, node.IsExternalLinked,
		node.CanonicalFamilyCode, node.CanonicalNodeUID,
		node.Parents, node.Children, node.Spouses, node.Siblings,
		node.Fingerprint, node.CreatedAt, node.UpdatedAt)

	query, args := sb.Build()
	ex := database.Writer(ctx, r.db)
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"family_code": node.FamilyCode,
			"person_id":   node.PersonID,
		}).Error("Failed to create family node")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create family node")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"family_code": node.FamilyCode,
		"person_id":   node.PersonID,
		"node_uid":    node.NodeUID,
	}).Info("Created family node")
	return node, nil
}

// NextPersonID allocates the next person id for a family. Runs on the
// context transaction so two concurrent creations cannot race.
func (r *Repository) NextPersonID(ctx context.Context, familyCode string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "familynode.Repository.NextPersonID")
	defer span.End()

	var next int
	ex := database.Writer(ctx, r.db)
	query := "SELECT COALESCE(MAX(person_id), 0) + 1 FROM family_nodes WHERE family_code = $1"
	if err := ex.GetContext(ctx, &next, query, familyCode); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"family_code": familyCode}).Error("Failed to allocate person id")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to allocate person id")
	}
	return next, nil
}

// GetByUID retrieves a node by its stable cross-family identifier
func (r *Repository) GetByUID(ctx context.Context, familyCode, nodeUID string) (*models.FamilyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "familynode.Repository.GetByUID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("family_nodes")
	sb.Where(sb.Equal("family_code", familyCode), sb.Equal("node_uid", nodeUID))
	sb.Limit(1)

	query, args := sb.Build()
	var node models.FamilyNode
	ex := database.Writer(ctx, r.db)
	if err := ex.GetContext(ctx, &node, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"family_code": familyCode, "node_uid": nodeUID}).Error("Failed to get family node by uid")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get family node")
	}
	return &node, nil
}

// GetByPersonID retrieves a node by its family-scoped person id
func (r *Repository) GetByPersonID(ctx context.Context, familyCode string, personID int) (*models.FamilyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "familynode.Repository.GetByPersonID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("family_nodes")
	sb.Where(sb.Equal("family_code", familyCode), sb.Equal("person_id", personID))
	sb.Limit(1)

	query, args := sb.Build()
	var node models.FamilyNode
	ex := database.Writer(ctx, r.db)
	if err := ex.GetContext(ctx, &node, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"family_code": familyCode, "person_id": personID}).Error("Failed to get family node by person id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get family node")
	}
	return &node, nil
}

// FindByUserID returns every node linked to an app user, across families
func (r *Repository) FindByUserID(ctx context.Context, userID string) ([]*models.FamilyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "familynode.Repository.FindByUserID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("family_nodes")
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("family_code", "person_id")

	query, args := sb.Build()
	var nodes []*models.FamilyNode
	if err := r.db.SelectContext(ctx, &nodes, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to find family nodes by user id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find family nodes")
	}
	return nodes, nil
}

// Remove deletes a node. Dangling edges on surviving nodes are cleaned
// up by the repair pass that follows every removal.
func (r *Repository) Remove(ctx context.Context, familyCode string, personID int) error {
	ctx, span := tracing.StartSpan(ctx, "familynode.Repository.Remove")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("family_nodes")
	sb.Where(sb.Equal("family_code", familyCode), sb.Equal("person_id", personID))

	query, args := sb.Build()
	ex := database.Writer(ctx, r.db)
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"family_code": familyCode, "person_id": personID}).Error("Failed to remove family node")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to remove family node")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"family_code": familyCode, "person_id": personID}).Info("Removed family node")
	return nil
}
