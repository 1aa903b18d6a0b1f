package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/banyan/pkg/models"
)

func testNode() *models.FamilyNode {
	n := &models.FamilyNode{
		FamilyCode: "FAM001",
		PersonID:   1,
		NodeUID:    "uid-1",
		Name:       "Asha",
		Gender:     models.GenderFemale,
		Generation: 0,
	}
	n.SetEdges([]int{3, 2}, []int{}, []int{4}, []int{})
	return n
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(testNode())
	b := Generate(testNode())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestGenerate_EdgeOrderDoesNotMatter(t *testing.T) {
	a := testNode()
	b := testNode()
	b.SetEdges([]int{2, 3}, []int{}, []int{4}, []int{})

	assert.Equal(t, Generate(a), Generate(b))
}

func TestGenerate_ContentChangeChangesFingerprint(t *testing.T) {
	a := testNode()
	b := testNode()
	b.Generation = 1

	assert.True(t, HasChanged(Generate(a), Generate(b)))
}

func TestGenerate_EdgeChangeChangesFingerprint(t *testing.T) {
	a := testNode()
	b := testNode()
	b.Spouses.Data = []int{5}

	assert.NotEqual(t, Generate(a), Generate(b))
}
