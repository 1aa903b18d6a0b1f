// Package treelink manages cross-family link requests and their
// acceptance flow
package treelink

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	appcontext "github.com/Ramsey-B/banyan/internal/context"
	"github.com/Ramsey-B/banyan/internal/database"
	"github.com/Ramsey-B/banyan/internal/metrics"
	"github.com/Ramsey-B/banyan/internal/tracing"
	"github.com/Ramsey-B/banyan/pkg/events"
	"github.com/Ramsey-B/banyan/pkg/graph"
	"github.com/Ramsey-B/banyan/pkg/models"
	"github.com/Ramsey-B/banyan/pkg/mutation"
)

// LinkStore persists link requests
type LinkStore interface {
	Create(ctx context.Context, req *models.LinkRequest) (*models.LinkRequest, error)
	Get(ctx context.Context, id string) (*models.LinkRequest, error)
	FindPendingBetween(ctx context.Context, familyA, nodeUIDA, familyB, nodeUIDB string) (*models.LinkRequest, error)
	UpdateStatus(ctx context.Context, id string, status models.LinkRequestStatus) error
}

// NodeStore answers node lookups during validation
type NodeStore interface {
	GetByUID(ctx context.Context, familyCode, nodeUID string) (*models.FamilyNode, error)
}

// MemberStore answers membership and blocking questions
type MemberStore interface {
	IsFamilyAdmin(ctx context.Context, userID, familyCode string) (bool, error)
	IsBlockedEitherWay(ctx context.Context, userA, userB string) (bool, error)
	GetApprovedMemberIDs(ctx context.Context, familyCode string) ([]string, error)
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

// Service validates and executes cross-family link requests. Acceptance
// materializes a shadow card on each side, wires the requested edges,
// and repairs both families before committing.
type Service struct {
	db        database.DB
	links     LinkStore
	nodes     NodeStore
	members   MemberStore
	mutations *mutation.Engine
	repairs   Repairer
	mirror    *graph.Mirror
	emitter   *events.Emitter
	prefixes  PrefixCache
	logger    ectologger.Logger
}

// NewService creates a new tree link service
func NewService(db database.DB, links LinkStore, nodes NodeStore, members MemberStore, mutations *mutation.Engine, repairs Repairer, mirror *graph.Mirror, emitter *events.Emitter, logger ectologger.Logger) *Service {
	return &Service{
		db:        db,
		links:     links,
		nodes:     nodes,
		members:   members,
		mutations: mutations,
		repairs:   repairs,
		mirror:    mirror,
		emitter:   emitter,
		logger:    logger,
	}
}

// WithPrefixCache attaches a relationship-prefix cache to invalidate on
// accepted links
func (s *Service) WithPrefixCache(prefixes PrefixCache) *Service {
	s.prefixes = prefixes
	return s
}

// Request validates and records a new pending link request
func (s *Service) Request(ctx context.Context, userID string, req *models.CreateLinkRequestRequest) (*models.LinkRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "treelink.Service.Request")
	defer span.End()

	if req.SenderFamilyCode == req.ReceiverFamilyCode {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "cannot link a family to itself")
	}
	if req.RelationshipType == models.RelationshipParent && req.ParentRole == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "parent_role is required for parent links")
	}
	if req.RelationshipType != models.RelationshipParent && req.ParentRole != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "parent_role is only valid for parent links")
	}

	isAdmin, err := s.members.IsFamilyAdmin(ctx, userID, req.SenderFamilyCode)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "only a sending-family admin can request a link")
	}

	sender, err := s.nodes.GetByUID(ctx, req.SenderFamilyCode, req.SenderNodeUID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.nodes.GetByUID(ctx, req.ReceiverFamilyCode, req.ReceiverNodeUID)
	if err != nil {
		return nil, err
	}
	if sender == nil || receiver == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "linked person not found")
	}

	// a father link needs a male sender card, a mother link a female one
	if req.RelationshipType == models.RelationshipParent && sender.Gender != models.GenderUnknown {
		if (*req.ParentRole == models.ParentRoleFather && sender.Gender != models.GenderMale) ||
			(*req.ParentRole == models.ParentRoleMother && sender.Gender != models.GenderFemale) {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, "sender gender does not match parent role")
		}
	}

	if err := s.checkBlocks(ctx, userID, sender, receiver); err != nil {
		return nil, err
	}

	existing, err := s.links.FindPendingBetween(ctx, req.SenderFamilyCode, req.SenderNodeUID, req.ReceiverFamilyCode, req.ReceiverNodeUID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, httperror.NewHTTPError(http.StatusConflict, "a pending link request already exists between these persons")
	}

	link, err := s.links.Create(ctx, &models.LinkRequest{
		SenderFamilyCode:   req.SenderFamilyCode,
		SenderNodeUID:      req.SenderNodeUID,
		ReceiverFamilyCode: req.ReceiverFamilyCode,
		ReceiverNodeUID:    req.ReceiverNodeUID,
		RelationshipType:   req.RelationshipType,
		ParentRole:         req.ParentRole,
		RequestedBy:        userID,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLinkRequest("requested")
	if s.emitter != nil {
		if members, err := s.members.GetApprovedMemberIDs(ctx, req.ReceiverFamilyCode); err == nil {
			recipients := ectolinq.Filter(members, func(id string) bool { return id != userID })
			s.emitter.Notify(ctx, recipients, "tree_link.requested", link)
		}
	}

	return link, nil
}

// Get retrieves a link request, authorized to either family's admins
func (s *Service) Get(ctx context.Context, userID, linkID string) (*models.LinkRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "treelink.Service.Get")
	defer span.End()

	link, err := s.links.Get(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "link request not found")
	}

	if err := s.requireEitherAdmin(ctx, userID, link.SenderFamilyCode, link.ReceiverFamilyCode); err != nil {
		return nil, err
	}
	return link, nil
}

// Accept executes a pending link request. Both families are mutated and
// repaired in one transaction; the mirrors sync after commit.
func (s *Service) Accept(ctx context.Context, userID, linkID string) (*models.LinkRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "treelink.Service.Accept")
	defer span.End()

	link, err := s.links.Get(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "link request not found")
	}
	if link.Status != models.LinkRequestPending {
		return nil, httperror.NewHTTPError(http.StatusConflict, "link request is not pending")
	}

	isAdmin, err := s.members.IsFamilyAdmin(ctx, userID, link.ReceiverFamilyCode)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "only a receiving-family admin can accept a link")
	}

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	sender, err := s.nodes.GetByUID(txCtx, link.SenderFamilyCode, link.SenderNodeUID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.nodes.GetByUID(txCtx, link.ReceiverFamilyCode, link.ReceiverNodeUID)
	if err != nil {
		return nil, err
	}
	if sender == nil || receiver == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "linked person no longer exists")
	}

	if err := s.applyLink(txCtx, link, sender, receiver); err != nil {
		return nil, err
	}

	_, receiverNodes, err := s.repairs.RepairFamilyTx(txCtx, link.ReceiverFamilyCode)
	if err != nil {
		return nil, err
	}
	_, senderNodes, err := s.repairs.RepairFamilyTx(txCtx, link.SenderFamilyCode)
	if err != nil {
		return nil, err
	}

	if err := s.links.UpdateStatus(txCtx, linkID, models.LinkRequestAccepted); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	link.Status = models.LinkRequestAccepted
	metrics.RecordLinkRequest("accepted")

	if s.mirror != nil {
		s.mirror.SyncFamily(ctx, link.ReceiverFamilyCode, receiverNodes)
		s.mirror.SyncFamily(ctx, link.SenderFamilyCode, senderNodes)
	}
	if s.emitter != nil {
		s.emitter.EmitTreeLinked(ctx, link, appcontext.GetUserID(ctx))
		s.emitter.Notify(ctx, []string{link.RequestedBy}, "tree_link.accepted", link)
	}
	s.invalidatePrefixes(ctx, link.SenderFamilyCode, link.ReceiverFamilyCode)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"link_id":         linkID,
		"sender_family":   link.SenderFamilyCode,
		"receiver_family": link.ReceiverFamilyCode,
	}).Info("Accepted link request")

	return link, nil
}

// Reject declines a pending link request
func (s *Service) Reject(ctx context.Context, userID, linkID string) (*models.LinkRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "treelink.Service.Reject")
	defer span.End()

	link, err := s.links.Get(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "link request not found")
	}
	if link.Status != models.LinkRequestPending {
		return nil, httperror.NewHTTPError(http.StatusConflict, "link request is not pending")
	}

	isAdmin, err := s.members.IsFamilyAdmin(ctx, userID, link.ReceiverFamilyCode)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "only a receiving-family admin can reject a link")
	}

	if err := s.links.UpdateStatus(ctx, linkID, models.LinkRequestRejected); err != nil {
		return nil, err
	}
	link.Status = models.LinkRequestRejected
	metrics.RecordLinkRequest("rejected")

	if s.emitter != nil {
		s.emitter.Notify(ctx, []string{link.RequestedBy}, "tree_link.rejected", link)
	}
	return link, nil
}

// applyLink materializes shadow cards and edges on both sides of an
// accepted request. The relationship type reads sender-relative-to-
// receiver: a parent link makes the sender node a parent of the
// receiver node.
func (s *Service) applyLink(ctx context.Context, link *models.LinkRequest, sender, receiver *models.FamilyNode) error {
	switch link.RelationshipType {
	case models.RelationshipParent:
		shadow, err := s.mutations.EnsureExternalLinkedCard(ctx, link.ReceiverFamilyCode,
			link.SenderFamilyCode, sender.NodeUID, sender.UserID, sender.Name, sender.Gender, receiver.Generation-1)
		if err != nil {
			return err
		}
		role := models.ParentRoleFather
		if link.ParentRole != nil {
			role = *link.ParentRole
		}
		if err := s.mutations.ReplaceParentByRole(ctx, link.ReceiverFamilyCode, receiver.PersonID, shadow.PersonID, role); err != nil {
			return err
		}
		if err := s.mutations.EnsureSpouseLinkBetweenParents(ctx, link.ReceiverFamilyCode, receiver.PersonID); err != nil {
			return err
		}
		reciprocal, err := s.mutations.EnsureExternalLinkedCard(ctx, link.SenderFamilyCode,
			link.ReceiverFamilyCode, receiver.NodeUID, receiver.UserID, receiver.Name, receiver.Gender, sender.Generation+1)
		if err != nil {
			return err
		}
		return s.mutations.AttachChild(ctx, link.SenderFamilyCode, sender.PersonID, reciprocal.PersonID)

	case models.RelationshipChild:
		shadow, err := s.mutations.EnsureExternalLinkedCard(ctx, link.ReceiverFamilyCode,
			link.SenderFamilyCode, sender.NodeUID, sender.UserID, sender.Name, sender.Gender, receiver.Generation+1)
		if err != nil {
			return err
		}
		if err := s.mutations.AttachChild(ctx, link.ReceiverFamilyCode, receiver.PersonID, shadow.PersonID); err != nil {
			return err
		}
		reciprocal, err := s.mutations.EnsureExternalLinkedCard(ctx, link.SenderFamilyCode,
			link.ReceiverFamilyCode, receiver.NodeUID, receiver.UserID, receiver.Name, receiver.Gender, sender.Generation-1)
		if err != nil {
			return err
		}
		return s.mutations.AttachChild(ctx, link.SenderFamilyCode, reciprocal.PersonID, sender.PersonID)

	case models.RelationshipSpouse:
		shadow, err := s.mutations.EnsureExternalLinkedCard(ctx, link.ReceiverFamilyCode,
			link.SenderFamilyCode, sender.NodeUID, sender.UserID, sender.Name, sender.Gender, receiver.Generation)
		if err != nil {
			return err
		}
		if err := s.mutations.AttachSpouse(ctx, link.ReceiverFamilyCode, receiver.PersonID, shadow.PersonID); err != nil {
			return err
		}
		reciprocal, err := s.mutations.EnsureExternalLinkedCard(ctx, link.SenderFamilyCode,
			link.ReceiverFamilyCode, receiver.NodeUID, receiver.UserID, receiver.Name, receiver.Gender, sender.Generation)
		if err != nil {
			return err
		}
		return s.mutations.AttachSpouse(ctx, link.SenderFamilyCode, sender.PersonID, reciprocal.PersonID)

	case models.RelationshipSibling:
		shadow, err := s.mutations.EnsureExternalLinkedCard(ctx, link.ReceiverFamilyCode,
			link.SenderFamilyCode, sender.NodeUID, sender.UserID, sender.Name, sender.Gender, receiver.Generation)
		if err != nil {
			return err
		}
		if err := s.mutations.LinkAsSibling(ctx, link.ReceiverFamilyCode, receiver.PersonID, shadow.PersonID); err != nil {
			return err
		}
		reciprocal, err := s.mutations.EnsureExternalLinkedCard(ctx, link.SenderFamilyCode,
			link.ReceiverFamilyCode, receiver.NodeUID, receiver.UserID, receiver.Name, receiver.Gender, sender.Generation)
		if err != nil {
			return err
		}
		return s.mutations.LinkAsSibling(ctx, link.SenderFamilyCode, sender.PersonID, reciprocal.PersonID)
	}

	return httperror.NewHTTPError(http.StatusBadRequest, "unknown relationship type")
}

// invalidatePrefixes drops cached prefixes for every approved member of
// the touched families; an accepted link changes what they can reach
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

// checkBlocks refuses a link touching any blocked user pair
func (s *Service) checkBlocks(ctx context.Context, requesterID string, sender, receiver *models.FamilyNode) error {
	pairs := [][2]string{}
	if receiver.UserID != nil {
		pairs = append(pairs, [2]string{requesterID, *receiver.UserID})
	}
	if sender.UserID != nil && receiver.UserID != nil {
		pairs = append(pairs, [2]string{*sender.UserID, *receiver.UserID})
	}
	for _, pair := range pairs {
		if pair[0] == pair[1] {
			continue
		}
		blocked, err := s.members.IsBlockedEitherWay(ctx, pair[0], pair[1])
		if err != nil {
			return err
		}
		if blocked {
			return httperror.NewHTTPError(http.StatusForbidden, "link not permitted between these users")
		}
	}
	return nil
}

func (s *Service) requireEitherAdmin(ctx context.Context, userID, familyA, familyB string) error {
	isAdmin, err := s.members.IsFamilyAdmin(ctx, userID, familyA)
	if err != nil {
		return err
	}
	if !isAdmin {
		isAdmin, err = s.members.IsFamilyAdmin(ctx, userID, familyB)
		if err != nil {
			return err
		}
	}
	if !isAdmin {
		return httperror.NewHTTPError(http.StatusForbidden, "not an admin of either family")
	}
	return nil
}
