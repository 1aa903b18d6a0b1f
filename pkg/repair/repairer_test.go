package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banyan/pkg/models"
)

func newNode(personID, generation int, external bool) *models.FamilyNode {
	n := &models.FamilyNode{
		FamilyCode:       "FAM001",
		PersonID:         personID,
		Generation:       generation,
		IsExternalLinked: external,
	}
	n.SetEdges([]int{}, []int{}, []int{}, []int{})
	return n
}

func indexByID(nodes []*models.FamilyNode) map[int]*models.FamilyNode {
	out := make(map[int]*models.FamilyNode)
	for _, n := range nodes {
		out[n.PersonID] = n
	}
	return out
}

func TestRepair_SymmetryRestored(t *testing.T) {
	// child lists parent, but parent does not list child
	parent := newNode(1, 0, false)
	child := newNode(2, 1, false)
	child.Parents.Data = []int{1}

	nodes := []*models.FamilyNode{parent, child}
	changed, report := NewRepairer().Repair("FAM001", nodes)

	require.Len(t, changed, 1)
	assert.Equal(t, 1, report.UpdatedNodes)
	assert.Equal(t, []int{2}, parent.ChildIDs())
	assert.Equal(t, []int{1}, child.ParentIDs())
}

func TestRepair_Idempotent(t *testing.T) {
	a := newNode(1, 0, false)
	b := newNode(2, 0, false)
	c := newNode(3, 1, false)
	a.Spouses.Data = []int{2}
	c.Parents.Data = []int{1, 2}

	nodes := []*models.FamilyNode{a, b, c}
	first, _ := NewRepairer().Repair("FAM001", nodes)
	require.NotEmpty(t, first)

	second, report := NewRepairer().Repair("FAM001", nodes)
	assert.Empty(t, second)
	assert.Equal(t, 0, report.UpdatedNodes)
	assert.Equal(t, 0, report.RemovedParentEdges)
}

func TestRepair_ParentCap(t *testing.T) {
	p1 := newNode(1, -1, false)
	p2 := newNode(2, -1, false)
	p3 := newNode(3, 0, false)
	child := newNode(4, 0, false)
	child.Parents.Data = []int{1, 2, 3}

	nodes := []*models.FamilyNode{p1, p2, p3, child}
	_, report := NewRepairer().Repair("FAM001", nodes)

	// generation-matching parents win; P3 (gen 0) is dropped
	assert.Equal(t, []int{1, 2}, child.ParentIDs())
	assert.Empty(t, p3.ChildIDs())
	assert.Equal(t, 1, report.RemovedParentEdges)
}

func TestRepair_ParentCapPrefersLocalOverExternal(t *testing.T) {
	p1 := newNode(1, -1, false)
	p2 := newNode(2, -1, true)
	p3 := newNode(3, -1, false)
	child := newNode(4, 0, false)
	child.Parents.Data = []int{1, 2, 3}

	nodes := []*models.FamilyNode{p1, p2, p3, child}
	NewRepairer().Repair("FAM001", nodes)

	// all three match on generation, local nodes rank before external
	assert.Equal(t, []int{1, 3}, child.ParentIDs())
}

func TestRepair_DropsSelfAndUnknownEdges(t *testing.T) {
	a := newNode(1, 0, false)
	a.Parents.Data = []int{1, 99}
	a.Spouses.Data = []int{1}
	a.Siblings.Data = []int{42}

	nodes := []*models.FamilyNode{a}
	_, report := NewRepairer().Repair("FAM001", nodes)

	assert.Empty(t, a.ParentIDs())
	assert.Empty(t, a.SpouseIDs())
	assert.Empty(t, a.SiblingIDs())
	assert.Equal(t, 2, report.RemovedParentEdges)
	assert.Equal(t, 1, report.RemovedSpouseEdges)
	assert.Equal(t, 1, report.RemovedSiblingEdges)
}

func TestRepair_PrunesUnequalGenerationSpouses(t *testing.T) {
	a := newNode(1, 0, false)
	b := newNode(2, 1, false)
	a.Spouses.Data = []int{2}

	nodes := []*models.FamilyNode{a, b}
	_, report := NewRepairer().Repair("FAM001", nodes)

	assert.Empty(t, a.SpouseIDs())
	assert.Empty(t, b.SpouseIDs())
	assert.Equal(t, 1, report.RemovedSpouseEdges)
}

func TestRepair_CorrectsExternalLinkedGenerations(t *testing.T) {
	// external-linked parent at the wrong generation is corrected, not dropped
	parent := newNode(1, 5, true)
	child := newNode(2, 0, false)
	child.Parents.Data = []int{1}

	// external-linked sibling follows the local partner
	sibling := newNode(3, 9, true)
	child.Siblings.Data = []int{3}

	nodes := []*models.FamilyNode{parent, child, sibling}
	_, report := NewRepairer().Repair("FAM001", nodes)

	assert.Equal(t, -1, parent.Generation)
	assert.Equal(t, 0, sibling.Generation)
	assert.Equal(t, []int{1}, child.ParentIDs())
	assert.Equal(t, []int{3}, child.SiblingIDs())
	assert.Equal(t, 2, report.CorrectedGens)
	assert.Equal(t, 0, report.RemovedSiblingEdges)
}

func TestRepair_DropsMismatchedLocalParent(t *testing.T) {
	// a local parent four generations off is dropped, not corrected
	parent := newNode(1, 5, false)
	child := newNode(2, 0, false)
	child.Parents.Data = []int{1}

	nodes := []*models.FamilyNode{parent, child}
	_, report := NewRepairer().Repair("FAM001", nodes)

	assert.Empty(t, child.ParentIDs())
	assert.Empty(t, parent.ChildIDs())
	assert.Equal(t, 1, report.RemovedParentEdges)
	assert.Equal(t, 0, report.CorrectedGens)
	assert.Equal(t, 5, parent.Generation)
	assert.Equal(t, 0, child.Generation)
}

func TestRepair_GenerationLawHoldsAfterRepair(t *testing.T) {
	nodes := []*models.FamilyNode{
		newNode(1, -1, false),
		newNode(2, -1, false),
		newNode(3, 0, false),
		newNode(4, 0, false),
		newNode(5, 1, false),
		newNode(6, 5, false),
	}
	idx := indexByID(nodes)
	idx[3].Parents.Data = []int{1, 2}
	idx[4].Parents.Data = []int{1, 6} // parent 6 sits four generations off
	idx[5].Parents.Data = []int{3}
	idx[1].Spouses.Data = []int{2}

	_, report := NewRepairer().Repair("FAM001", nodes)

	assert.Equal(t, []int{1}, idx[4].ParentIDs())
	assert.Equal(t, 1, report.RemovedParentEdges)

	for _, n := range nodes {
		for _, p := range n.ParentIDs() {
			parent := idx[p]
			if !parent.IsExternalLinked {
				assert.Equal(t, n.Generation, parent.Generation+1,
					"generation law violated for child %d parent %d", n.PersonID, p)
			}
		}
		for _, c := range n.ChildIDs() {
			assert.Contains(t, idx[c].ParentIDs(), n.PersonID)
		}
		for _, s := range n.SpouseIDs() {
			assert.Contains(t, idx[s].SpouseIDs(), n.PersonID)
		}
	}
}

func TestRepair_ReportsParentCycle(t *testing.T) {
	a := newNode(1, 0, false)
	b := newNode(2, 1, false)
	c := newNode(3, 2, false)
	b.Parents.Data = []int{1}
	c.Parents.Data = []int{2}
	a.Parents.Data = []int{3}

	nodes := []*models.FamilyNode{a, b, c}
	_, report := NewRepairer().Repair("FAM001", nodes)

	require.Len(t, report.Cycles, 1)
	cycle := report.Cycles[0]
	assert.Equal(t, "FAM001", cycle.FamilyCode)
	require.GreaterOrEqual(t, len(cycle.PersonIDsInCycle), 4)
	assert.Equal(t, cycle.PersonIDsInCycle[0], cycle.PersonIDsInCycle[len(cycle.PersonIDsInCycle)-1])
	assert.ElementsMatch(t, []int{1, 2, 3}, cycle.PersonIDsInCycle[:3])

	// cycle edges stay in place for review, even where generations disagree
	assert.Equal(t, []int{3}, a.ParentIDs())
}

func TestRepair_EmptyFamily(t *testing.T) {
	changed, report := NewRepairer().Repair("FAM001", nil)
	assert.Empty(t, changed)
	assert.Equal(t, 0, report.UpdatedNodes)
	assert.Empty(t, report.Cycles)
}
