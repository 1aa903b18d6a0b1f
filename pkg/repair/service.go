package repair

import (
	"context"

	"github.com/Gobusters/ectologger"

	appcontext "github.com/Ramsey-B/banyan/internal/context"
	"github.com/Ramsey-B/banyan/internal/database"
	"github.com/Ramsey-B/banyan/internal/metrics"
	"github.com/Ramsey-B/banyan/internal/repositories/familynode"
	"github.com/Ramsey-B/banyan/internal/tracing"
	"github.com/Ramsey-B/banyan/pkg/events"
	"github.com/Ramsey-B/banyan/pkg/graph"
	"github.com/Ramsey-B/banyan/pkg/models"
)

// Service orchestrates a repair pass: exclusive family lock, load,
// repair, save changed nodes, then best-effort mirror and event.
type Service struct {
	db       database.DB
	nodes    *familynode.Repository
	repairer *Repairer
	mirror   *graph.Mirror
	emitter  *events.Emitter
	logger   ectologger.Logger
}

// NewService creates a new repair service
func NewService(db database.DB, nodes *familynode.Repository, mirror *graph.Mirror, emitter *events.Emitter, logger ectologger.Logger) *Service {
	return &Service{
		db:       db,
		nodes:    nodes,
		repairer: NewRepairer(),
		mirror:   mirror,
		emitter:  emitter,
		logger:   logger,
	}
}

// RepairFamily runs one integrity repair pass over a family inside an
// exclusive per-family lock.
func (s *Service) RepairFamily(ctx context.Context, familyCode string) (*models.RepairReport, error) {
	ctx, span := tracing.StartSpan(ctx, "repair.Service.RepairFamily")
	defer span.End()

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	report, allNodes, err := s.RepairFamilyTx(txCtx, familyCode)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if s.mirror != nil {
		s.mirror.SyncFamily(ctx, familyCode, allNodes)
	}
	if s.emitter != nil && report.UpdatedNodes > 0 {
		s.emitter.EmitTreeRepaired(ctx, *report, appcontext.GetUserID(ctx))
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"family_code":   familyCode,
		"updated_nodes": report.UpdatedNodes,
	}).Info("Repaired family")

	return report, nil
}

// RepairFamilyTx runs the repair pass on the caller's transaction. Used
// by mutation flows that repair every touched family before committing.
// Returns the report plus the full node set for mirroring after commit.
func (s *Service) RepairFamilyTx(ctx context.Context, familyCode string) (*models.RepairReport, []*models.FamilyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "repair.Service.RepairFamilyTx")
	defer span.End()

	if err := s.nodes.AcquireFamilyLock(ctx, familyCode); err != nil {
		return nil, nil, err
	}

	allNodes, err := s.nodes.LoadFamily(ctx, familyCode)
	if err != nil {
		return nil, nil, err
	}

	changed, report := s.repairer.Repair(familyCode, allNodes)

	written, err := s.nodes.SaveChanged(ctx, changed)
	if err != nil {
		return nil, nil, err
	}
	report.UpdatedNodes = written
	recordDefects(report)

	return &report, allNodes, nil
}

func recordDefects(report models.RepairReport) {
	metrics.RepairDefectsTotal.WithLabelValues("parent_edge").Add(float64(report.RemovedParentEdges))
	metrics.RepairDefectsTotal.WithLabelValues("spouse_edge").Add(float64(report.RemovedSpouseEdges))
	metrics.RepairDefectsTotal.WithLabelValues("sibling_edge").Add(float64(report.RemovedSiblingEdges))
	metrics.RepairDefectsTotal.WithLabelValues("generation").Add(float64(report.CorrectedGens))
	metrics.RepairDefectsTotal.WithLabelValues("cycle").Add(float64(len(report.Cycles)))
}
