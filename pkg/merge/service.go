// Package merge runs the cross-family merge lifecycle: request,
// analyze, decide, accept, and execute.
package merge

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	appcontext "github.com/Ramsey-B/banyan/internal/context"
	"github.com/Ramsey-B/banyan/internal/database"
	"github.com/Ramsey-B/banyan/internal/metrics"
	"github.com/Ramsey-B/banyan/internal/tracing"
	"github.com/Ramsey-B/banyan/pkg/events"
	"github.com/Ramsey-B/banyan/pkg/graph"
	"github.com/Ramsey-B/banyan/pkg/matching"
	"github.com/Ramsey-B/banyan/pkg/models"
)

// RequestStore persists merge requests
type RequestStore interface {
	Create(ctx context.Context, req *models.MergeRequest) (*models.MergeRequest, error)
	Get(ctx context.Context, id string) (*models.MergeRequest, error)
	FindActiveBetween(ctx context.Context, familyA, familyB string) (*models.MergeRequest, error)
	UpdateStatuses(ctx context.Context, id string, primary models.MergePrimaryStatus, secondary models.MergeSecondaryStatus) error
	SetExecutionOutcome(ctx context.Context, id string, appliedOffset int, isNoMatchMerge bool) error
}

// StateStore persists the versioned merge working set
type StateStore interface {
	Append(ctx context.Context, mergeRequestID string, payload models.MergeStatePayload, savedBy string) (*models.MergeState, error)
	GetLatest(ctx context.Context, mergeRequestID string) (*models.MergeState, error)
	GetVersion(ctx context.Context, mergeRequestID string, version int) (*models.MergeState, error)
	History(ctx context.Context, mergeRequestID string) ([]models.MergeState, error)
}

// MemberStore answers membership, blocking, and profile questions
type MemberStore interface {
	IsFamilyAdmin(ctx context.Context, userID, familyCode string) (bool, error)
	IsBlockedEitherWay(ctx context.Context, userA, userB string) (bool, error)
	GetApprovedMemberIDs(ctx context.Context, familyCode string) ([]string, error)
	GetDisplayProfile(ctx context.Context, userID string) (*models.DisplayProfile, error)
	PromoteToAdmin(ctx context.Context, userID, familyCode string) error
}

// NodeStore is the graph surface execution mutates through
type NodeStore interface {
	AcquireFamilyLock(ctx context.Context, familyCode string) error
	LoadFamily(ctx context.Context, familyCode string) ([]*models.FamilyNode, error)
	SaveChanged(ctx context.Context, nodes []*models.FamilyNode) (int, error)
	NextPersonID(ctx context.Context, familyCode string) (int, error)
	Create(ctx context.Context, node *models.FamilyNode) (*models.FamilyNode, error)
}

// Repairer runs an integrity pass on the caller's transaction
type Repairer interface {
	RepairFamilyTx(ctx context.Context, familyCode string) (*models.RepairReport, []*models.FamilyNode, error)
}

// PrefixCache drops cached relationship prefixes for users whose
// reachable families changed
type PrefixCache interface {
	Invalidate(ctx context.Context, userIDs ...string)
}

// Service drives merge requests through their state machine. The
// primary side moves open -> accepted -> merged or open -> rejected;
// execution is only legal from accepted with a saved final tree.
type Service struct {
	db       database.DB
	requests RequestStore
	states   StateStore
	members  MemberStore
	nodes    NodeStore
	matcher  *matching.Engine
	repairs  Repairer
	mirror   *graph.Mirror
	emitter  *events.Emitter
	prefixes PrefixCache
	logger   ectologger.Logger
}

// NewService creates a new merge service
func NewService(db database.DB, requests RequestStore, states StateStore, members MemberStore, nodes NodeStore, matcher *matching.Engine, repairs Repairer, mirror *graph.Mirror, emitter *events.Emitter, logger ectologger.Logger) *Service {
	return &Service{
		db:       db,
		requests: requests,
		states:   states,
		members:  members,
		nodes:    nodes,
		matcher:  matcher,
		repairs:  repairs,
		mirror:   mirror,
		emitter:  emitter,
		logger:   logger,
	}
}

// WithPrefixCache attaches a relationship-prefix cache to invalidate on
// executed merges
func (s *Service) WithPrefixCache(prefixes PrefixCache) *Service {
	s.prefixes = prefixes
	return s
}

// Create opens a new merge request. Only a secondary-family admin may
// propose merging their tree into the primary family, and only one
// active request may exist per family pair.
func (s *Service) Create(ctx context.Context, userID string, req *models.CreateMergeRequestRequest) (*models.MergeRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.Create")
	defer span.End()

	if req.PrimaryFamilyCode == req.SecondaryFamilyCode {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "cannot merge a family into itself")
	}

	isAdmin, err := s.members.IsFamilyAdmin(ctx, userID, req.SecondaryFamilyCode)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "only a secondary-family admin can request a merge")
	}

	active, err := s.requests.FindActiveBetween(ctx, req.PrimaryFamilyCode, req.SecondaryFamilyCode)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, httperror.NewHTTPError(http.StatusConflict, "an active merge request already exists between these families")
	}

	anchors := models.AnchorConfig{}
	if req.AnchorConfig != nil {
		anchors = *req.AnchorConfig
	}

	merge, err := s.requests.Create(ctx, &models.MergeRequest{
		PrimaryFamilyCode:   req.PrimaryFamilyCode,
		SecondaryFamilyCode: req.SecondaryFamilyCode,
		RequestedByAdminID:  userID,
		AnchorConfig:        database.JSONB[models.AnchorConfig]{Data: anchors},
	})
	if err != nil {
		return nil, err
	}

	if s.emitter != nil {
		if members, err := s.members.GetApprovedMemberIDs(ctx, req.PrimaryFamilyCode); err == nil {
			recipients := ectolinq.Filter(members, func(id string) bool { return id != userID })
			s.emitter.Notify(ctx, recipients, "merge.requested", merge)
		}
	}

	return merge, nil
}

// Get retrieves a merge request, authorized to either family's admins
func (s *Service) Get(ctx context.Context, userID, mergeRequestID string) (*models.MergeRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.Get")
	defer span.End()

	return s.getAuthorized(ctx, userID, mergeRequestID)
}

// Analyze matches the two trees against each other and saves the result
// as a new working-set version. Secondary persons blocked either way
// against the requesting admin are never exposed as candidates.
func (s *Service) Analyze(ctx context.Context, userID, mergeRequestID string) (*models.MergeAnalysis, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.Analyze")
	defer span.End()

	merge, err := s.getAuthorized(ctx, userID, mergeRequestID)
	if err != nil {
		return nil, err
	}
	if merge.PrimaryStatus != models.MergePrimaryOpen && merge.PrimaryStatus != models.MergePrimaryAccepted {
		return nil, httperror.NewHTTPError(http.StatusConflict, "merge request is closed")
	}

	primary, err := s.hydrateFamily(ctx, userID, merge.PrimaryFamilyCode)
	if err != nil {
		return nil, err
	}
	secondary, err := s.hydrateFamily(ctx, userID, merge.SecondaryFamilyCode)
	if err != nil {
		return nil, err
	}

	analysis := s.matcher.Analyze(primary, secondary)
	analysis.MergeRequestID = mergeRequestID
	analysis.PrimaryFamilyCode = merge.PrimaryFamilyCode
	analysis.SecondaryFamilyCode = merge.SecondaryFamilyCode

	payload := models.MergeStatePayload{
		Matches: analysis.Matches,
		Meta:    models.MergeStateMeta{Note: "analysis", GenerationOffset: &analysis.SuggestedOffset},
	}
	if latest, err := s.states.GetLatest(ctx, mergeRequestID); err == nil && latest != nil {
		payload.Decisions = latest.Payload.Data.Decisions
		payload.FinalTree = latest.Payload.Data.FinalTree
	}
	if _, err := s.states.Append(ctx, mergeRequestID, payload, userID); err != nil {
		return nil, err
	}

	metrics.MergeAnalyzesTotal.Inc()
	return analysis, nil
}

// GetState returns the latest working-set version
func (s *Service) GetState(ctx context.Context, userID, mergeRequestID string) (*models.MergeState, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.GetState")
	defer span.End()

	if _, err := s.getAuthorized(ctx, userID, mergeRequestID); err != nil {
		return nil, err
	}

	state, err := s.states.GetLatest(ctx, mergeRequestID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "no merge state saved yet")
	}
	return state, nil
}

// SaveDecisions records accept/reject decisions as a new version
func (s *Service) SaveDecisions(ctx context.Context, userID, mergeRequestID string, req *models.SaveDecisionsRequest) (*models.MergeState, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.SaveDecisions")
	defer span.End()

	merge, err := s.getAuthorized(ctx, userID, mergeRequestID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePrimaryAdmin(ctx, userID, merge); err != nil {
		return nil, err
	}

	payload, err := s.latestPayload(ctx, mergeRequestID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	decisions := make([]models.MatchDecision, len(req.Decisions))
	for i, d := range req.Decisions {
		if d.DecidedBy == "" {
			d.DecidedBy = userID
		}
		if d.DecidedAt.IsZero() {
			d.DecidedAt = now
		}
		decisions[i] = d
	}
	payload.Decisions = decisions
	payload.Meta.Note = "decisions"

	return s.states.Append(ctx, mergeRequestID, payload, userID)
}

// SaveFinalTree records a draft consolidated member list as a new version
func (s *Service) SaveFinalTree(ctx context.Context, userID, mergeRequestID string, req *models.SaveFinalTreeRequest) (*models.MergeState, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.SaveFinalTree")
	defer span.End()

	merge, err := s.getAuthorized(ctx, userID, mergeRequestID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePrimaryAdmin(ctx, userID, merge); err != nil {
		return nil, err
	}

	payload, err := s.latestPayload(ctx, mergeRequestID)
	if err != nil {
		return nil, err
	}
	payload.FinalTree = req.FinalTree
	if req.GenerationOffset != nil {
		payload.Meta.GenerationOffset = req.GenerationOffset
	}
	payload.Meta.Note = "final tree"

	return s.states.Append(ctx, mergeRequestID, payload, userID)
}

// History returns every saved working-set version, newest first
func (s *Service) History(ctx context.Context, userID, mergeRequestID string) ([]models.MergeState, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.History")
	defer span.End()

	if _, err := s.getAuthorized(ctx, userID, mergeRequestID); err != nil {
		return nil, err
	}
	return s.states.History(ctx, mergeRequestID)
}

// Revert restores an earlier version by re-inserting its payload as the
// next version, preserving the full history.
func (s *Service) Revert(ctx context.Context, userID, mergeRequestID string, version int) (*models.MergeState, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.Revert")
	defer span.End()

	merge, err := s.getAuthorized(ctx, userID, mergeRequestID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePrimaryAdmin(ctx, userID, merge); err != nil {
		return nil, err
	}

	state, err := s.states.GetVersion(ctx, mergeRequestID, version)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "merge state version not found")
	}

	return s.states.Append(ctx, mergeRequestID, state.Payload.Data, userID)
}

// Accept moves the request from open to accepted. Primary-admin only.
func (s *Service) Accept(ctx context.Context, userID, mergeRequestID string) (*models.MergeRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.Accept")
	defer span.End()

	return s.transition(ctx, userID, mergeRequestID, models.MergePrimaryAccepted, models.MergeSecondaryAcknowledged)
}

// Reject moves the request from open to rejected. Primary-admin only.
func (s *Service) Reject(ctx context.Context, userID, mergeRequestID string) (*models.MergeRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.Reject")
	defer span.End()

	return s.transition(ctx, userID, mergeRequestID, models.MergePrimaryRejected, models.MergeSecondaryRejected)
}

func (s *Service) transition(ctx context.Context, userID, mergeRequestID string, primary models.MergePrimaryStatus, secondary models.MergeSecondaryStatus) (*models.MergeRequest, error) {
	merge, err := s.requests.Get(ctx, mergeRequestID)
	if err != nil {
		return nil, err
	}
	if merge == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "merge request not found")
	}
	if err := s.requirePrimaryAdmin(ctx, userID, merge); err != nil {
		return nil, err
	}
	if merge.PrimaryStatus != models.MergePrimaryOpen {
		return nil, httperror.NewHTTPError(http.StatusConflict, "merge request is not open")
	}

	if err := s.requests.UpdateStatuses(ctx, mergeRequestID, primary, secondary); err != nil {
		return nil, err
	}
	merge.PrimaryStatus = primary
	merge.SecondaryStatus = secondary

	if s.emitter != nil {
		s.emitter.Notify(ctx, []string{merge.RequestedByAdminID}, "merge."+string(primary), merge)
	}
	return merge, nil
}

// Execute materializes the saved final tree into the primary family.
// Legal only from accepted with a non-empty final tree; both trees are
// locked, the merge applied, and the primary family repaired before
// both statuses flip to merged in the same transaction.
func (s *Service) Execute(ctx context.Context, userID, mergeRequestID string) (*models.ExecutionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Service.Execute")
	defer span.End()

	merge, err := s.requests.Get(ctx, mergeRequestID)
	if err != nil {
		return nil, err
	}
	if merge == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "merge request not found")
	}
	if err := s.requirePrimaryAdmin(ctx, userID, merge); err != nil {
		return nil, err
	}
	if merge.PrimaryStatus != models.MergePrimaryAccepted {
		return nil, httperror.NewHTTPError(http.StatusConflict, "merge request must be accepted before execution")
	}

	state, err := s.states.GetLatest(ctx, mergeRequestID)
	if err != nil {
		return nil, err
	}
	if state == nil || len(state.Payload.Data.FinalTree) == 0 {
		return nil, httperror.NewHTTPError(http.StatusConflict, "no final tree saved for this merge request")
	}

	offset := 0
	if state.Payload.Data.Meta.GenerationOffset != nil {
		offset = *state.Payload.Data.Meta.GenerationOffset
	}

	start := time.Now()

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.nodes.AcquireFamilyLock(txCtx, merge.PrimaryFamilyCode); err != nil {
		return nil, err
	}
	if err := s.nodes.AcquireFamilyLock(txCtx, merge.SecondaryFamilyCode); err != nil {
		return nil, err
	}

	result, err := s.materialize(txCtx, merge, state.Payload.Data.FinalTree, offset)
	if err != nil {
		return nil, err
	}

	_, primaryNodes, err := s.repairs.RepairFamilyTx(txCtx, merge.PrimaryFamilyCode)
	if err != nil {
		return nil, err
	}

	if err := s.requests.UpdateStatuses(txCtx, mergeRequestID, models.MergePrimaryMerged, models.MergeSecondaryMerged); err != nil {
		return nil, err
	}
	if err := s.requests.SetExecutionOutcome(txCtx, mergeRequestID, offset, result.MergedPersons == 0); err != nil {
		return nil, err
	}

	promoted, err := s.promoteAnchors(txCtx, merge)
	if err != nil {
		return nil, err
	}
	result.PromotedAdmins = promoted

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	outcome := "merged"
	if result.MergedPersons == 0 {
		outcome = "no_match"
	}
	metrics.RecordMergeExecution(outcome, time.Since(start).Seconds())

	if s.mirror != nil {
		s.mirror.SyncFamily(ctx, merge.PrimaryFamilyCode, primaryNodes)
	}
	if s.emitter != nil {
		s.emitter.EmitTreeMerged(ctx, result, appcontext.GetUserID(ctx))
		for _, family := range []string{merge.PrimaryFamilyCode, merge.SecondaryFamilyCode} {
			if members, err := s.members.GetApprovedMemberIDs(ctx, family); err == nil {
				s.emitter.Notify(ctx, members, "merge.executed", result)
			}
		}
	}
	s.invalidatePrefixes(ctx, merge.PrimaryFamilyCode, merge.SecondaryFamilyCode)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"merge_request_id": mergeRequestID,
		"merged_persons":   result.MergedPersons,
		"created_persons":  result.CreatedPersons,
	}).Info("Executed merge request")

	return result, nil
}

// materialize imports the final tree into the primary family: merged
// secondary persons map onto their primary counterparts, unmerged ones
// become new nodes at generation + offset, and edges are rewritten
// through the id mapping.
func (s *Service) materialize(ctx context.Context, merge *models.MergeRequest, finalTree []models.FinalTreePerson, offset int) (*models.ExecutionResult, error) {
	primaryNodes, err := s.nodes.LoadFamily(ctx, merge.PrimaryFamilyCode)
	if err != nil {
		return nil, err
	}
	primaryIndex := make(map[int]*models.FamilyNode, len(primaryNodes))
	for _, n := range primaryNodes {
		primaryIndex[n.PersonID] = n
	}

	result := &models.ExecutionResult{
		MergeRequestID:    merge.ID,
		PrimaryFamilyCode: merge.PrimaryFamilyCode,
		GenerationOffset:  offset,
	}

	// secondary person id -> primary person id
	idMap := make(map[int]int)
	touched := make(map[int]*models.FamilyNode)

	for i := range finalTree {
		p := &finalTree[i]
		switch {
		case p.SourceFamilyCode == merge.PrimaryFamilyCode:
			node := primaryIndex[p.PersonID]
			if node == nil {
				return nil, httperror.NewHTTPError(http.StatusBadRequest, "final tree references an unknown primary person")
			}

		case p.MergedWith != nil:
			target := primaryIndex[*p.MergedWith]
			if target == nil {
				return nil, httperror.NewHTTPError(http.StatusBadRequest, "final tree merges into an unknown primary person")
			}
			idMap[p.PersonID] = target.PersonID
			if target.UserID == nil && p.UserID != nil {
				target.UserID = p.UserID
				touched[target.PersonID] = target
			}
			result.MergedPersons++

		default:
			personID, err := s.nodes.NextPersonID(ctx, merge.PrimaryFamilyCode)
			if err != nil {
				return nil, err
			}
			node := &models.FamilyNode{
				FamilyCode: merge.PrimaryFamilyCode,
				PersonID:   personID,
				UserID:     p.UserID,
				Name:       p.Name,
				Gender:     p.Gender,
				Generation: p.Generation + offset,
			}
			node.SetEdges([]int{}, []int{}, []int{}, []int{})
			created, err := s.nodes.Create(ctx, node)
			if err != nil {
				return nil, err
			}
			primaryIndex[created.PersonID] = created
			idMap[p.PersonID] = created.PersonID
			result.CreatedPersons++
		}
	}

	// rewrite edges through the id mapping, dropping references to
	// persons the final tree left behind
	for i := range finalTree {
		p := &finalTree[i]
		target, resolve := s.resolveTarget(p, merge.PrimaryFamilyCode, primaryIndex, idMap)
		if target == nil {
			continue
		}
		target.Parents.Data = unionMapped(target.ParentIDs(), p.Parents, resolve)
		target.Children.Data = unionMapped(target.ChildIDs(), p.Children, resolve)
		target.Spouses.Data = unionMapped(target.SpouseIDs(), p.Spouses, resolve)
		target.Siblings.Data = unionMapped(target.SiblingIDs(), p.Siblings, resolve)
		touched[target.PersonID] = target
	}

	changed := make([]*models.FamilyNode, 0, len(touched))
	for _, n := range touched {
		changed = append(changed, n)
	}
	if _, err := s.nodes.SaveChanged(ctx, changed); err != nil {
		return nil, err
	}

	return result, nil
}

// resolveTarget returns the primary node a final-tree row lands on plus
// the edge-id resolver for that row's source id space.
func (s *Service) resolveTarget(p *models.FinalTreePerson, primaryFamily string, primaryIndex map[int]*models.FamilyNode, idMap map[int]int) (*models.FamilyNode, func(int) (int, bool)) {
	identity := func(id int) (int, bool) {
		_, ok := primaryIndex[id]
		return id, ok
	}
	mapped := func(id int) (int, bool) {
		mappedID, ok := idMap[id]
		return mappedID, ok
	}

	if p.SourceFamilyCode == primaryFamily {
		return primaryIndex[p.PersonID], identity
	}
	if mappedID, ok := idMap[p.PersonID]; ok {
		return primaryIndex[mappedID], mapped
	}
	return nil, nil
}

func (s *Service) promoteAnchors(ctx context.Context, merge *models.MergeRequest) (int, error) {
	promoted := 0
	anchors := merge.AnchorConfig.Data
	seen := make(map[string]bool)
	for _, userID := range append(anchors.PrimaryAnchorUserIDs, anchors.SecondaryAnchorUserIDs...) {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		if err := s.members.PromoteToAdmin(ctx, userID, merge.PrimaryFamilyCode); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// hydrateFamily flattens a family's non-shadow nodes into matcher
// input, overlaying profile data for nodes linked to an app user.
// Persons blocked either way against the viewer are omitted entirely.
func (s *Service) hydrateFamily(ctx context.Context, viewerID, familyCode string) ([]models.FamilyPerson, error) {
	nodes, err := s.nodes.LoadFamily(ctx, familyCode)
	if err != nil {
		return nil, err
	}

	persons := make([]models.FamilyPerson, 0, len(nodes))
	for _, n := range nodes {
		if n.IsExternalLinked {
			continue // shadow cards are owned by their canonical family
		}

		person := models.FamilyPerson{
			FamilyCode: n.FamilyCode,
			PersonID:   n.PersonID,
			NodeUID:    n.NodeUID,
			UserID:     n.UserID,
			Name:       n.Name,
			Gender:     n.Gender,
			Age:        n.Age,
			Generation: n.Generation,
			Parents:    n.ParentIDs(),
			Children:   n.ChildIDs(),
			Spouses:    n.SpouseIDs(),
			Siblings:   n.SiblingIDs(),
		}

		if n.UserID != nil && *n.UserID != viewerID {
			blocked, err := s.members.IsBlockedEitherWay(ctx, viewerID, *n.UserID)
			if err != nil {
				return nil, err
			}
			if blocked {
				continue
			}
		}

		if n.UserID != nil {
			profile, err := s.members.GetDisplayProfile(ctx, *n.UserID)
			if err != nil {
				return nil, err
			}
			if profile != nil {
				if profile.Age != nil {
					person.Age = profile.Age
				}
				person.Email = profile.Email
				person.Phone = profile.Phone
			}
		}

		persons = append(persons, person)
	}
	return persons, nil
}

func (s *Service) latestPayload(ctx context.Context, mergeRequestID string) (models.MergeStatePayload, error) {
	latest, err := s.states.GetLatest(ctx, mergeRequestID)
	if err != nil {
		return models.MergeStatePayload{}, err
	}
	if latest == nil {
		return models.MergeStatePayload{}, nil
	}
	return latest.Payload.Data, nil
}

// invalidatePrefixes drops cached prefixes for every approved member of
// the merged families; execution changes what they can reach
func (s *Service) invalidatePrefixes(ctx context.Context, familyCodes ...string) {
	if s.prefixes == nil {
		return
	}
	var userIDs []string
	for _, code := range familyCodes {
		members, err := s.members.GetApprovedMemberIDs(ctx, code)
		if err != nil {
			continue
		}
		userIDs = append(userIDs, members...)
	}
	if len(userIDs) > 0 {
		s.prefixes.Invalidate(ctx, userIDs...)
	}
}

func (s *Service) getAuthorized(ctx context.Context, userID, mergeRequestID string) (*models.MergeRequest, error) {
	merge, err := s.requests.Get(ctx, mergeRequestID)
	if err != nil {
		return nil, err
	}
	if merge == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "merge request not found")
	}

	isAdmin, err := s.members.IsFamilyAdmin(ctx, userID, merge.PrimaryFamilyCode)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		isAdmin, err = s.members.IsFamilyAdmin(ctx, userID, merge.SecondaryFamilyCode)
		if err != nil {
			return nil, err
		}
	}
	if !isAdmin {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "not an admin of either family")
	}
	return merge, nil
}

func (s *Service) requirePrimaryAdmin(ctx context.Context, userID string, merge *models.MergeRequest) error {
	isAdmin, err := s.members.IsFamilyAdmin(ctx, userID, merge.PrimaryFamilyCode)
	if err != nil {
		return err
	}
	if !isAdmin {
		return httperror.NewHTTPError(http.StatusForbidden, "only a primary-family admin may perform this action")
	}
	return nil
}

// unionMapped merges resolved edge ids into an existing edge list,
// skipping ids the mapping cannot resolve. The repair pass drops any
// self or dangling references left behind.
func unionMapped(existing []int, sourceIDs []int, resolve func(int) (int, bool)) []int {
	out := existing
	for _, id := range sourceIDs {
		mappedID, ok := resolve(id)
		if !ok {
			continue
		}
		if !containsID(out, mappedID) {
			out = append(out, mappedID)
		}
	}
	return out
}

func containsID(ids []int, id int) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
