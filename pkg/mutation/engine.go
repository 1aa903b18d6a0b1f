// Package mutation realizes relationship edits as node and edge mutations
package mutation

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/banyan/internal/tracing"
	"github.com/Ramsey-B/banyan/pkg/models"
)

// Store is the graph persistence surface the engine mutates through
type Store interface {
	LoadFamily(ctx context.Context, familyCode string) ([]*models.FamilyNode, error)
	SaveChanged(ctx context.Context, nodes []*models.FamilyNode) (int, error)
	NextPersonID(ctx context.Context, familyCode string) (int, error)
	Create(ctx context.Context, node *models.FamilyNode) (*models.FamilyNode, error)
	GetByPersonID(ctx context.Context, familyCode string, personID int) (*models.FamilyNode, error)
	Remove(ctx context.Context, familyCode string, personID int) error
}

// Engine mutates family nodes and edges while preserving invariants.
// Every method expects to run on the caller's transaction; callers end
// the flow with a repair pass over every family touched.
type Engine struct {
	nodes  Store
	logger ectologger.Logger
}

// NewEngine creates a new mutation engine
func NewEngine(nodes Store, logger ectologger.Logger) *Engine {
	return &Engine{
		nodes:  nodes,
		logger: logger,
	}
}

// EnsureExternalLinkedCard idempotently creates or updates a shadow
// node in targetFamily mirroring the canonical node. An existing
// non-shadow node carrying the same user with no canonical pointer yet
// is promoted to external-linked instead of duplicated.
func (e *Engine) EnsureExternalLinkedCard(ctx context.Context, targetFamily, canonicalFamily, canonicalNodeUID string, canonicalUserID *string, name string, gender models.Gender, desiredGeneration int) (*models.FamilyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "mutation.Engine.EnsureExternalLinkedCard")
	defer span.End()

	family, err := e.nodes.LoadFamily(ctx, targetFamily)
	if err != nil {
		return nil, err
	}

	// already mirrored here
	for _, n := range family {
		if n.IsExternalLinked && n.CanonicalFamilyCode != nil && n.CanonicalNodeUID != nil &&
			*n.CanonicalFamilyCode == canonicalFamily && *n.CanonicalNodeUID == canonicalNodeUID {
			if n.Generation != desiredGeneration {
				n.Generation = desiredGeneration
				if _, err := e.nodes.SaveChanged(ctx, []*models.FamilyNode{n}); err != nil {
					return nil, err
				}
			}
			return n, nil
		}
	}

	// promote a local node already carrying the same identity
	if canonicalUserID != nil {
		for _, n := range family {
			if !n.IsExternalLinked && n.CanonicalFamilyCode == nil && n.UserID != nil && *n.UserID == *canonicalUserID {
				n.IsExternalLinked = true
				n.CanonicalFamilyCode = &canonicalFamily
				n.CanonicalNodeUID = &canonicalNodeUID
				n.Generation = desiredGeneration
				if _, err := e.nodes.SaveChanged(ctx, []*models.FamilyNode{n}); err != nil {
					return nil, err
				}
				e.logger.WithContext(ctx).WithFields(map[string]any{
					"family_code": targetFamily,
					"person_id":   n.PersonID,
				}).Info("Promoted local node to external-linked")
				return n, nil
			}
		}
	}

	personID, err := e.nodes.NextPersonID(ctx, targetFamily)
	if err != nil {
		return nil, err
	}

	node := &models.FamilyNode{
		FamilyCode:          targetFamily,
		PersonID:            personID,
		UserID:              canonicalUserID,
		Name:                name,
		Gender:              gender,
		Generation:          desiredGeneration,
		IsExternalLinked:    true,
		CanonicalFamilyCode: &canonicalFamily,
		CanonicalNodeUID:    &canonicalNodeUID,
	}
	node.SetEdges([]int{}, []int{}, []int{}, []int{})

	return e.nodes.Create(ctx, node)
}

// ReplaceParentByRole swaps the parent filling one role. The existing
// parent whose gender matches the role is detached, the new parent is
// attached, and any spouse edge between the removed parent and the
// remaining parent migrates onto the new parent.
func (e *Engine) ReplaceParentByRole(ctx context.Context, familyCode string, childPersonID, newParentPersonID int, role models.ParentRole) error {
	ctx, span := tracing.StartSpan(ctx, "mutation.Engine.ReplaceParentByRole")
	defer span.End()

	family, err := e.nodes.LoadFamily(ctx, familyCode)
	if err != nil {
		return err
	}
	index := indexNodes(family)

	child := index[childPersonID]
	newParent := index[newParentPersonID]
	if child == nil || newParent == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "person not found in family")
	}

	roleGender := models.GenderMale
	if role == models.ParentRoleMother {
		roleGender = models.GenderFemale
	}

	var removedParent *models.FamilyNode
	var remainingParent *models.FamilyNode
	for _, pid := range child.ParentIDs() {
		parent := index[pid]
		if parent == nil {
			continue
		}
		if parent.Gender == roleGender && removedParent == nil {
			removedParent = parent
		} else {
			remainingParent = parent
		}
	}

	touched := map[int]*models.FamilyNode{child.PersonID: child, newParent.PersonID: newParent}

	if removedParent != nil {
		child.Parents.Data = removeID(child.ParentIDs(), removedParent.PersonID)
		removedParent.Children.Data = removeID(removedParent.ChildIDs(), child.PersonID)
		touched[removedParent.PersonID] = removedParent

		// migrate the co-parent spouse edge onto the new parent
		if remainingParent != nil && containsID(removedParent.SpouseIDs(), remainingParent.PersonID) {
			removedParent.Spouses.Data = removeID(removedParent.SpouseIDs(), remainingParent.PersonID)
			remainingParent.Spouses.Data = removeID(remainingParent.SpouseIDs(), removedParent.PersonID)
			remainingParent.Spouses.Data = addID(remainingParent.SpouseIDs(), newParent.PersonID)
			newParent.Spouses.Data = addID(newParent.SpouseIDs(), remainingParent.PersonID)
			touched[remainingParent.PersonID] = remainingParent
		}
	}

	child.Parents.Data = addID(child.ParentIDs(), newParent.PersonID)
	newParent.Children.Data = addID(newParent.ChildIDs(), child.PersonID)

	_, err = e.nodes.SaveChanged(ctx, nodeList(touched))
	return err
}

// EnsureSpouseLinkBetweenParents adds a spouse edge between a child's
// two parents when neither already has another spouse. Conservative:
// never overwrites an existing spouse.
func (e *Engine) EnsureSpouseLinkBetweenParents(ctx context.Context, familyCode string, childPersonID int) error {
	ctx, span := tracing.StartSpan(ctx, "mutation.Engine.EnsureSpouseLinkBetweenParents")
	defer span.End()

	family, err := e.nodes.LoadFamily(ctx, familyCode)
	if err != nil {
		return err
	}
	index := indexNodes(family)

	child := index[childPersonID]
	if child == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "person not found in family")
	}

	parents := child.ParentIDs()
	if len(parents) != 2 {
		return nil
	}
	p1, p2 := index[parents[0]], index[parents[1]]
	if p1 == nil || p2 == nil {
		return nil
	}
	if containsID(p1.SpouseIDs(), p2.PersonID) {
		return nil
	}
	if len(p1.SpouseIDs()) > 0 || len(p2.SpouseIDs()) > 0 {
		return nil
	}

	p1.Spouses.Data = addID(p1.SpouseIDs(), p2.PersonID)
	p2.Spouses.Data = addID(p2.SpouseIDs(), p1.PersonID)

	_, err = e.nodes.SaveChanged(ctx, []*models.FamilyNode{p1, p2})
	return err
}

// LinkAsSibling attaches the external node as a sibling of the
// canonical node, copying the canonical parent set and mirroring the
// child edges onto each parent.
func (e *Engine) LinkAsSibling(ctx context.Context, familyCode string, canonicalPersonID, externalPersonID int) error {
	ctx, span := tracing.StartSpan(ctx, "mutation.Engine.LinkAsSibling")
	defer span.End()

	family, err := e.nodes.LoadFamily(ctx, familyCode)
	if err != nil {
		return err
	}
	index := indexNodes(family)

	canonical := index[canonicalPersonID]
	external := index[externalPersonID]
	if canonical == nil || external == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "person not found in family")
	}

	touched := map[int]*models.FamilyNode{canonical.PersonID: canonical, external.PersonID: external}

	canonical.Siblings.Data = addID(canonical.SiblingIDs(), external.PersonID)
	external.Siblings.Data = addID(external.SiblingIDs(), canonical.PersonID)
	external.Generation = canonical.Generation

	for _, pid := range canonical.ParentIDs() {
		parent := index[pid]
		if parent == nil {
			continue
		}
		external.Parents.Data = addID(external.ParentIDs(), pid)
		parent.Children.Data = addID(parent.ChildIDs(), external.PersonID)
		touched[parent.PersonID] = parent
	}

	_, err = e.nodes.SaveChanged(ctx, nodeList(touched))
	return err
}

// PropagateChildToCanonicalSpouses mirrors a parent edge onto the
// parent's existing spouses so co-parents stay consistent.
func (e *Engine) PropagateChildToCanonicalSpouses(ctx context.Context, familyCode string, canonicalParentPersonID, childPersonID int) error {
	ctx, span := tracing.StartSpan(ctx, "mutation.Engine.PropagateChildToCanonicalSpouses")
	defer span.End()

	family, err := e.nodes.LoadFamily(ctx, familyCode)
	if err != nil {
		return err
	}
	index := indexNodes(family)

	parent := index[canonicalParentPersonID]
	child := index[childPersonID]
	if parent == nil || child == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "person not found in family")
	}

	touched := map[int]*models.FamilyNode{child.PersonID: child}

	for _, sid := range parent.SpouseIDs() {
		spouse := index[sid]
		if spouse == nil {
			continue
		}
		if len(child.ParentIDs()) >= 2 && !containsID(child.ParentIDs(), sid) {
			continue // parent cap; the repair pass would prune it anyway
		}
		spouse.Children.Data = addID(spouse.ChildIDs(), child.PersonID)
		child.Parents.Data = addID(child.ParentIDs(), sid)
		touched[spouse.PersonID] = spouse
	}

	_, err = e.nodes.SaveChanged(ctx, nodeList(touched))
	return err
}

// AttachSpouse adds a symmetric spouse edge between two persons
func (e *Engine) AttachSpouse(ctx context.Context, familyCode string, personA, personB int) error {
	ctx, span := tracing.StartSpan(ctx, "mutation.Engine.AttachSpouse")
	defer span.End()

	family, err := e.nodes.LoadFamily(ctx, familyCode)
	if err != nil {
		return err
	}
	index := indexNodes(family)

	a, b := index[personA], index[personB]
	if a == nil || b == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "person not found in family")
	}

	a.Spouses.Data = addID(a.SpouseIDs(), b.PersonID)
	b.Spouses.Data = addID(b.SpouseIDs(), a.PersonID)
	b.Generation = a.Generation

	_, err = e.nodes.SaveChanged(ctx, []*models.FamilyNode{a, b})
	return err
}

// AttachChild adds a parent edge and mirrors the child onto the
// parent's existing spouses.
func (e *Engine) AttachChild(ctx context.Context, familyCode string, parentPersonID, childPersonID int) error {
	ctx, span := tracing.StartSpan(ctx, "mutation.Engine.AttachChild")
	defer span.End()

	family, err := e.nodes.LoadFamily(ctx, familyCode)
	if err != nil {
		return err
	}
	index := indexNodes(family)

	parent, child := index[parentPersonID], index[childPersonID]
	if parent == nil || child == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "person not found in family")
	}

	parent.Children.Data = addID(parent.ChildIDs(), child.PersonID)
	child.Parents.Data = addID(child.ParentIDs(), parent.PersonID)

	if _, err := e.nodes.SaveChanged(ctx, []*models.FamilyNode{parent, child}); err != nil {
		return err
	}

	return e.PropagateChildToCanonicalSpouses(ctx, familyCode, parentPersonID, childPersonID)
}

// CreateMemberNode creates a node for a newly joined member
func (e *Engine) CreateMemberNode(ctx context.Context, familyCode, userID, name string, gender models.Gender, generation int) (*models.FamilyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "mutation.Engine.CreateMemberNode")
	defer span.End()

	personID, err := e.nodes.NextPersonID(ctx, familyCode)
	if err != nil {
		return nil, err
	}

	node := &models.FamilyNode{
		FamilyCode: familyCode,
		PersonID:   personID,
		UserID:     &userID,
		Name:       name,
		Gender:     gender,
		Generation: generation,
	}
	node.SetEdges([]int{}, []int{}, []int{}, []int{})

	return e.nodes.Create(ctx, node)
}

// RemoveNode deletes a member's node. The caller's follow-up repair
// pass cleans the dangling edges on surviving nodes.
func (e *Engine) RemoveNode(ctx context.Context, familyCode string, personID int) error {
	ctx, span := tracing.StartSpan(ctx, "mutation.Engine.RemoveNode")
	defer span.End()

	node, err := e.nodes.GetByPersonID(ctx, familyCode, personID)
	if err != nil {
		return err
	}
	if node == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "person not found in family")
	}

	return e.nodes.Remove(ctx, familyCode, personID)
}

func indexNodes(nodes []*models.FamilyNode) map[int]*models.FamilyNode {
	out := make(map[int]*models.FamilyNode, len(nodes))
	for _, n := range nodes {
		out[n.PersonID] = n
	}
	return out
}

func addID(ids []int, id int) []int {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []int, id int) []int {
	out := make([]int, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
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

func nodeList(m map[int]*models.FamilyNode) []*models.FamilyNode {
	out := make([]*models.FamilyNode, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	return out
}
