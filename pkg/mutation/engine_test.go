package mutation

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banyan/pkg/models"
)

func strPtr(s string) *string { return &s }

type memoryStore struct {
	families map[string][]*models.FamilyNode
	nextID   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{families: map[string][]*models.FamilyNode{}, nextID: 100}
}

func (m *memoryStore) LoadFamily(_ context.Context, familyCode string) ([]*models.FamilyNode, error) {
	return m.families[familyCode], nil
}

func (m *memoryStore) SaveChanged(_ context.Context, nodes []*models.FamilyNode) (int, error) {
	return len(nodes), nil
}

func (m *memoryStore) NextPersonID(_ context.Context, _ string) (int, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *memoryStore) Create(_ context.Context, node *models.FamilyNode) (*models.FamilyNode, error) {
	m.families[node.FamilyCode] = append(m.families[node.FamilyCode], node)
	return node, nil
}

func (m *memoryStore) GetByPersonID(_ context.Context, familyCode string, personID int) (*models.FamilyNode, error) {
	for _, n := range m.families[familyCode] {
		if n.PersonID == personID {
			return n, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Remove(_ context.Context, familyCode string, personID int) error {
	kept := m.families[familyCode][:0]
	for _, n := range m.families[familyCode] {
		if n.PersonID != personID {
			kept = append(kept, n)
		}
	}
	m.families[familyCode] = kept
	return nil
}

func (m *memoryStore) add(n *models.FamilyNode) *models.FamilyNode {
	m.families[n.FamilyCode] = append(m.families[n.FamilyCode], n)
	return n
}

func node(familyCode string, personID int, name string, gender models.Gender, generation int) *models.FamilyNode {
	n := &models.FamilyNode{
		FamilyCode: familyCode,
		PersonID:   personID,
		NodeUID:    name + "-uid",
		Name:       name,
		Gender:     gender,
		Generation: generation,
	}
	n.SetEdges([]int{}, []int{}, []int{}, []int{})
	return n
}

func newEngine(store Store) *Engine {
	return NewEngine(store, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestEnsureExternalLinkedCard_CreatesShadow(t *testing.T) {
	store := newMemoryStore()
	engine := newEngine(store)

	shadow, err := engine.EnsureExternalLinkedCard(context.Background(), "FAM001", "FAM002", "ravi-uid", strPtr("user-ravi"), "Ravi", models.GenderMale, -1)

	require.NoError(t, err)
	assert.Equal(t, 101, shadow.PersonID)
	assert.True(t, shadow.IsExternalLinked)
	assert.Equal(t, "FAM002", *shadow.CanonicalFamilyCode)
	assert.Equal(t, "ravi-uid", *shadow.CanonicalNodeUID)
	assert.Equal(t, -1, shadow.Generation)
}

func TestEnsureExternalLinkedCard_IdempotentPerCanonicalNode(t *testing.T) {
	store := newMemoryStore()
	engine := newEngine(store)

	first, err := engine.EnsureExternalLinkedCard(context.Background(), "FAM001", "FAM002", "ravi-uid", nil, "Ravi", models.GenderMale, 0)
	require.NoError(t, err)

	second, err := engine.EnsureExternalLinkedCard(context.Background(), "FAM001", "FAM002", "ravi-uid", nil, "Ravi", models.GenderMale, 1)
	require.NoError(t, err)

	assert.Equal(t, first.PersonID, second.PersonID)
	assert.Equal(t, 1, second.Generation)
	assert.Len(t, store.families["FAM001"], 1)
}

func TestEnsureExternalLinkedCard_PromotesLocalNodeWithSameUser(t *testing.T) {
	store := newMemoryStore()
	local := node("FAM001", 1, "Ravi", models.GenderMale, 0)
	local.UserID = strPtr("user-ravi")
	store.add(local)
	engine := newEngine(store)

	shadow, err := engine.EnsureExternalLinkedCard(context.Background(), "FAM001", "FAM002", "ravi-uid", strPtr("user-ravi"), "Ravi", models.GenderMale, 1)

	require.NoError(t, err)
	assert.Equal(t, 1, shadow.PersonID)
	assert.True(t, shadow.IsExternalLinked)
	assert.Equal(t, 1, shadow.Generation)
	assert.Len(t, store.families["FAM001"], 1)
}

func TestReplaceParentByRole_SwapsParentAndMigratesSpouseEdge(t *testing.T) {
	store := newMemoryStore()
	father := node("FAM001", 1, "Old Father", models.GenderMale, -1)
	mother := node("FAM001", 2, "Mother", models.GenderFemale, -1)
	child := node("FAM001", 3, "Child", models.GenderFemale, 0)
	newFather := node("FAM001", 4, "New Father", models.GenderMale, -1)
	father.Spouses.Data = []int{2}
	mother.Spouses.Data = []int{1}
	father.Children.Data = []int{3}
	mother.Children.Data = []int{3}
	child.Parents.Data = []int{1, 2}
	store.add(father)
	store.add(mother)
	store.add(child)
	store.add(newFather)
	engine := newEngine(store)

	err := engine.ReplaceParentByRole(context.Background(), "FAM001", 3, 4, models.ParentRoleFather)

	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 4}, child.ParentIDs())
	assert.NotContains(t, father.ChildIDs(), 3)
	assert.Contains(t, newFather.ChildIDs(), 3)

	// the co-parent spouse edge moved onto the new father
	assert.NotContains(t, father.SpouseIDs(), 2)
	assert.ElementsMatch(t, []int{4}, mother.SpouseIDs())
	assert.ElementsMatch(t, []int{2}, newFather.SpouseIDs())
}

func TestReplaceParentByRole_NoExistingParentJustAttaches(t *testing.T) {
	store := newMemoryStore()
	child := node("FAM001", 1, "Child", models.GenderMale, 0)
	parent := node("FAM001", 2, "Mother", models.GenderFemale, -1)
	store.add(child)
	store.add(parent)
	engine := newEngine(store)

	err := engine.ReplaceParentByRole(context.Background(), "FAM001", 1, 2, models.ParentRoleMother)

	require.NoError(t, err)
	assert.Equal(t, []int{2}, child.ParentIDs())
	assert.Equal(t, []int{1}, parent.ChildIDs())
}

func TestEnsureSpouseLinkBetweenParents_LinksUnmarriedPair(t *testing.T) {
	store := newMemoryStore()
	father := node("FAM001", 1, "Father", models.GenderMale, -1)
	mother := node("FAM001", 2, "Mother", models.GenderFemale, -1)
	child := node("FAM001", 3, "Child", models.GenderMale, 0)
	child.Parents.Data = []int{1, 2}
	store.add(father)
	store.add(mother)
	store.add(child)
	engine := newEngine(store)

	err := engine.EnsureSpouseLinkBetweenParents(context.Background(), "FAM001", 3)

	require.NoError(t, err)
	assert.Equal(t, []int{2}, father.SpouseIDs())
	assert.Equal(t, []int{1}, mother.SpouseIDs())
}

func TestEnsureSpouseLinkBetweenParents_NeverOverwritesExistingSpouse(t *testing.T) {
	store := newMemoryStore()
	father := node("FAM001", 1, "Father", models.GenderMale, -1)
	mother := node("FAM001", 2, "Mother", models.GenderFemale, -1)
	child := node("FAM001", 3, "Child", models.GenderMale, 0)
	child.Parents.Data = []int{1, 2}
	father.Spouses.Data = []int{9} // married to someone else
	store.add(father)
	store.add(mother)
	store.add(child)
	engine := newEngine(store)

	err := engine.EnsureSpouseLinkBetweenParents(context.Background(), "FAM001", 3)

	require.NoError(t, err)
	assert.Equal(t, []int{9}, father.SpouseIDs())
	assert.Empty(t, mother.SpouseIDs())
}

func TestLinkAsSibling_CopiesParentSetAndGeneration(t *testing.T) {
	store := newMemoryStore()
	parent := node("FAM001", 1, "Parent", models.GenderFemale, -1)
	canonical := node("FAM001", 2, "Canonical", models.GenderMale, 0)
	external := node("FAM001", 3, "External", models.GenderFemale, 2)
	canonical.Parents.Data = []int{1}
	parent.Children.Data = []int{2}
	store.add(parent)
	store.add(canonical)
	store.add(external)
	engine := newEngine(store)

	err := engine.LinkAsSibling(context.Background(), "FAM001", 2, 3)

	require.NoError(t, err)
	assert.Contains(t, canonical.SiblingIDs(), 3)
	assert.Contains(t, external.SiblingIDs(), 2)
	assert.Equal(t, []int{1}, external.ParentIDs())
	assert.ElementsMatch(t, []int{2, 3}, parent.ChildIDs())
	assert.Equal(t, 0, external.Generation)
}

func TestPropagateChildToCanonicalSpouses_RespectsParentCap(t *testing.T) {
	store := newMemoryStore()
	parent := node("FAM001", 1, "Parent", models.GenderMale, -1)
	spouse := node("FAM001", 2, "Spouse", models.GenderFemale, -1)
	other := node("FAM001", 3, "Other", models.GenderFemale, -1)
	child := node("FAM001", 4, "Child", models.GenderMale, 0)
	parent.Spouses.Data = []int{2}
	child.Parents.Data = []int{1, 3} // already at the two-parent cap
	store.add(parent)
	store.add(spouse)
	store.add(other)
	store.add(child)
	engine := newEngine(store)

	err := engine.PropagateChildToCanonicalSpouses(context.Background(), "FAM001", 1, 4)

	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 3}, child.ParentIDs())
	assert.Empty(t, spouse.ChildIDs())
}

func TestAttachChild_MirrorsOntoSpouse(t *testing.T) {
	store := newMemoryStore()
	parent := node("FAM001", 1, "Parent", models.GenderMale, -1)
	spouse := node("FAM001", 2, "Spouse", models.GenderFemale, -1)
	child := node("FAM001", 3, "Child", models.GenderMale, 0)
	parent.Spouses.Data = []int{2}
	spouse.Spouses.Data = []int{1}
	store.add(parent)
	store.add(spouse)
	store.add(child)
	engine := newEngine(store)

	err := engine.AttachChild(context.Background(), "FAM001", 1, 3)

	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, child.ParentIDs())
	assert.Contains(t, parent.ChildIDs(), 3)
	assert.Contains(t, spouse.ChildIDs(), 3)
}

func TestAttachSpouse_AlignsGeneration(t *testing.T) {
	store := newMemoryStore()
	a := node("FAM001", 1, "A", models.GenderFemale, 2)
	b := node("FAM001", 2, "B", models.GenderMale, 0)
	store.add(a)
	store.add(b)
	engine := newEngine(store)

	err := engine.AttachSpouse(context.Background(), "FAM001", 1, 2)

	require.NoError(t, err)
	assert.Equal(t, []int{2}, a.SpouseIDs())
	assert.Equal(t, []int{1}, b.SpouseIDs())
	assert.Equal(t, 2, b.Generation)
}

func TestRemoveNode_DeletesAndReportsMissing(t *testing.T) {
	store := newMemoryStore()
	store.add(node("FAM001", 1, "A", models.GenderMale, 0))
	engine := newEngine(store)

	require.NoError(t, engine.RemoveNode(context.Background(), "FAM001", 1))
	assert.Empty(t, store.families["FAM001"])

	err := engine.RemoveNode(context.Background(), "FAM001", 1)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestCreateMemberNode_AllocatesNextPersonID(t *testing.T) {
	store := newMemoryStore()
	engine := newEngine(store)

	created, err := engine.CreateMemberNode(context.Background(), "FAM001", "user-1", "Asha", models.GenderFemale, 0)

	require.NoError(t, err)
	assert.Equal(t, 101, created.PersonID)
	require.NotNil(t, created.UserID)
	assert.Equal(t, "user-1", *created.UserID)
	assert.NotNil(t, created.ParentIDs())
}
