package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banyan/pkg/models"
)

func TestAnalyzeStructure_CleanFamily(t *testing.T) {
	a := person("FAM001", 1, "A", models.GenderMale, 70, -1)
	b := person("FAM001", 2, "B", models.GenderFemale, 42, 0)
	a.Children = []int{2}
	b.Parents = []int{1}

	defects := AnalyzeStructure("FAM001", []models.FamilyPerson{a, b})
	assert.Empty(t, defects)
}

func TestAnalyzeStructure_Fragmented(t *testing.T) {
	a := person("FAM001", 1, "A", models.GenderMale, 70, -1)
	b := person("FAM001", 2, "B", models.GenderFemale, 42, 0)
	c := person("FAM001", 3, "C", models.GenderMale, 12, 1)
	a.Spouses = []int{2}
	b.Spouses = []int{1}
	// person 3 is connected to nobody

	defects := AnalyzeStructure("FAM001", []models.FamilyPerson{a, b, c})
	require.Len(t, defects, 1)
	assert.Equal(t, models.DefectFragmented, defects[0].Kind)
	assert.Equal(t, 2, defects[0].Components)
}

func TestAnalyzeStructure_Orphans(t *testing.T) {
	a := person("FAM001", 1, "A", models.GenderMale, 42, 0)
	a.Parents = []int{99}

	defects := AnalyzeStructure("FAM001", []models.FamilyPerson{a})
	require.Len(t, defects, 1)
	assert.Equal(t, models.DefectOrphan, defects[0].Kind)
	assert.Equal(t, []int{1}, defects[0].PersonIDs)
}

func TestAnalyzeStructure_ParentCycle(t *testing.T) {
	a := person("FAM001", 1, "A", models.GenderMale, 70, 0)
	b := person("FAM001", 2, "B", models.GenderMale, 50, 1)
	c := person("FAM001", 3, "C", models.GenderMale, 30, 2)
	b.Parents = []int{1}
	c.Parents = []int{2}
	a.Parents = []int{3}

	defects := AnalyzeStructure("FAM001", []models.FamilyPerson{a, b, c})

	var cycle *models.StructuralDefect
	for i := range defects {
		if defects[i].Kind == models.DefectCycle {
			cycle = &defects[i]
		}
	}
	require.NotNil(t, cycle, "expected a cycle defect")
	assert.Equal(t, "FAM001", cycle.FamilyCode)
	require.GreaterOrEqual(t, len(cycle.PersonIDs), 4)
	assert.Equal(t, cycle.PersonIDs[0], cycle.PersonIDs[len(cycle.PersonIDs)-1])
	assert.ElementsMatch(t, []int{1, 2, 3}, cycle.PersonIDs[:3])
}

func TestAnalyzeStructure_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeStructure("FAM001", nil))
}
