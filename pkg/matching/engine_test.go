package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banyan/pkg/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func person(familyCode string, personID int, name string, gender models.Gender, age, generation int) models.FamilyPerson {
	return models.FamilyPerson{
		FamilyCode: familyCode,
		PersonID:   personID,
		Name:       name,
		Gender:     gender,
		Age:        intPtr(age),
		Generation: generation,
	}
}

func TestAnalyze_ExactMatchDespiteDifferentUserID(t *testing.T) {
	a := person("FAM001", 1, "Ravi Kumar", models.GenderMale, 42, 0)
	a.UserID = strPtr("user-a")
	b := person("FAM002", 7, "Ravi Kumar", models.GenderMale, 42, 0)
	b.UserID = strPtr("user-b")

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{a},
		[]models.FamilyPerson{b},
	)

	require.Len(t, analysis.Matches, 1)
	match := analysis.Matches[0]
	assert.Equal(t, 1, match.PrimaryPersonID)
	assert.Equal(t, 7, match.SecondaryPersonID)
	assert.GreaterOrEqual(t, match.Score, 80)
	assert.Equal(t, models.MatchExact, match.Confidence)
	assert.NotContains(t, analysis.NewPersons, 7)
	assert.False(t, analysis.IsNoMatchMerge)
}

func TestAnalyze_StrictGateRejectsAgeMismatch(t *testing.T) {
	a := person("FAM001", 1, "Ravi Kumar", models.GenderMale, 42, 0)
	a.Email = strPtr("ravi@example.com")
	b := person("FAM002", 7, "Ravi Kumar", models.GenderMale, 30, 0)
	b.Email = strPtr("ravi@example.com")

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{a},
		[]models.FamilyPerson{b},
	)

	// high raw score, but the strict gate requires exact age agreement
	assert.Empty(t, analysis.Matches)
	assert.Contains(t, analysis.NewPersons, 7)
	assert.True(t, analysis.IsNoMatchMerge)
}

func TestAnalyze_StrictGateRejectsGenderMismatch(t *testing.T) {
	a := person("FAM001", 1, "Sam Jordan", models.GenderMale, 42, 0)
	b := person("FAM002", 7, "Sam Jordan", models.GenderFemale, 42, 0)

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{a},
		[]models.FamilyPerson{b},
	)

	assert.Empty(t, analysis.Matches)
}

func TestAnalyze_MinScoreRejectsWeakCandidates(t *testing.T) {
	a := person("FAM001", 1, "John Smith", models.GenderMale, 42, 0)
	a.Age = nil
	// partial name overlap only: 8 + generation 10 = 18, below the floor
	b := person("FAM002", 7, "John", models.GenderMale, 42, 0)
	b.Age = nil

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{a},
		[]models.FamilyPerson{b},
	)

	assert.Empty(t, analysis.Matches)
	assert.Contains(t, analysis.NewPersons, 7)
}

func TestAnalyze_UnmatchedSecondaryIsNewPerson(t *testing.T) {
	a := person("FAM001", 1, "Ravi Kumar", models.GenderMale, 42, 0)
	matched := person("FAM002", 7, "Ravi Kumar", models.GenderMale, 42, 0)
	stranger := person("FAM002", 8, "Zelda Quinn", models.GenderFemale, 30, 1)

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{a},
		[]models.FamilyPerson{matched, stranger},
	)

	require.Len(t, analysis.Matches, 1)
	assert.Equal(t, []int{8}, analysis.NewPersons)
	// new persons alone never flag a no-match merge
	assert.False(t, analysis.IsNoMatchMerge)
}

func TestAnalyze_NoMatchMergeRecommendation(t *testing.T) {
	a := person("FAM001", 1, "Ravi Kumar", models.GenderMale, 42, 0)
	b := person("FAM002", 7, "Zelda Quinn", models.GenderFemale, 30, 1)

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{a},
		[]models.FamilyPerson{b},
	)

	assert.True(t, analysis.IsNoMatchMerge)

	found := false
	for _, rec := range analysis.Recommendations {
		if rec.Code == models.RecommendationNoMatchMerge {
			found = true
			assert.Equal(t, models.RecommendationHigh, rec.Severity)
		}
	}
	assert.True(t, found, "expected a NO_MATCH_MERGE recommendation")
}

func TestAnalyze_HardConflictOnDisjointParents(t *testing.T) {
	pa := person("FAM001", 10, "Mohan Kumar", models.GenderMale, 70, -1)
	a := person("FAM001", 1, "Ravi Kumar", models.GenderMale, 42, 0)
	a.Parents = []int{10}

	pb := person("FAM002", 20, "Wilbur Hastings", models.GenderMale, 71, -1)
	b := person("FAM002", 7, "Ravi Kumar", models.GenderMale, 42, 0)
	b.Parents = []int{20}

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{pa, a},
		[]models.FamilyPerson{pb, b},
	)

	require.NotEmpty(t, analysis.Matches)
	require.Len(t, analysis.Conflicts, 1)
	conflict := analysis.Conflicts[0]
	assert.Equal(t, models.ConflictHard, conflict.Severity)
	assert.Equal(t, 1, conflict.PrimaryPersonID)
	assert.Equal(t, 7, conflict.SecondaryPersonID)
}

func TestAnalyze_NoConflictWhenParentNamesOverlap(t *testing.T) {
	pa := person("FAM001", 10, "Mohan Kumar", models.GenderMale, 70, -1)
	a := person("FAM001", 1, "Ravi Kumar", models.GenderMale, 42, 0)
	a.Parents = []int{10}

	pb := person("FAM002", 20, "Mohan Kumar", models.GenderMale, 71, -1)
	b := person("FAM002", 7, "Ravi Kumar", models.GenderMale, 42, 0)
	b.Parents = []int{20}

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{pa, a},
		[]models.FamilyPerson{pb, b},
	)

	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyze_IdentifierCandidatesPreferred(t *testing.T) {
	a := person("FAM001", 1, "R Kumar", models.GenderMale, 42, 0)
	a.Phone = strPtr("+1 (555) 010-2000")

	// same phone, different formatting; name does not contain the other
	b := person("FAM002", 7, "R Kumar", models.GenderMale, 42, 0)
	b.Phone = strPtr("15550102000")

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{a},
		[]models.FamilyPerson{b},
	)

	require.Len(t, analysis.Matches, 1)
	assert.Contains(t, analysis.Matches[0].MatchedFields, "phone")
}

func TestAnalyze_SuggestedOffsetFromMatches(t *testing.T) {
	a1 := person("FAM001", 1, "Ravi Kumar", models.GenderMale, 42, 3)
	b1 := person("FAM002", 7, "Ravi Kumar", models.GenderMale, 42, 3)

	analysis := NewEngine(DefaultConfig()).Analyze(
		[]models.FamilyPerson{a1},
		[]models.FamilyPerson{b1},
	)

	require.Len(t, analysis.Matches, 1)
	assert.Equal(t, 0, analysis.SuggestedOffset)
	assert.Equal(t, 0, analysis.Matches[0].GenerationDelta)
}

func TestAnalyze_EmptyInputs(t *testing.T) {
	analysis := NewEngine(DefaultConfig()).Analyze(nil, nil)
	assert.Empty(t, analysis.Matches)
	assert.Empty(t, analysis.NewPersons)
	assert.True(t, analysis.IsNoMatchMerge)
}
