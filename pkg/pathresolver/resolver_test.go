package pathresolver

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banyan/pkg/models"
)

func strPtr(s string) *string { return &s }

type fakeNodes struct {
	families map[string][]*models.FamilyNode
	byUser   map[string][]*models.FamilyNode
}

func (f *fakeNodes) LoadFamily(_ context.Context, familyCode string) ([]*models.FamilyNode, error) {
	return f.families[familyCode], nil
}

func (f *fakeNodes) FindByUserID(_ context.Context, userID string) ([]*models.FamilyNode, error) {
	return f.byUser[userID], nil
}

type fakeHints struct {
	codes []string
}

func (f *fakeHints) GetAssociatedFamilyCodes(_ context.Context, _ string) ([]string, error) {
	return f.codes, nil
}

func node(familyCode string, personID int, name string, gender models.Gender) *models.FamilyNode {
	n := &models.FamilyNode{
		FamilyCode: familyCode,
		PersonID:   personID,
		NodeUID:    name + "-uid",
		Name:       name,
		Gender:     gender,
	}
	n.SetEdges([]int{}, []int{}, []int{}, []int{})
	return n
}

func shadow(familyCode string, personID int, name string, gender models.Gender, canonicalFamily, canonicalUID string) *models.FamilyNode {
	n := node(familyCode, personID, name, gender)
	n.IsExternalLinked = true
	n.CanonicalFamilyCode = strPtr(canonicalFamily)
	n.CanonicalNodeUID = strPtr(canonicalUID)
	return n
}

func newResolver(nodes *fakeNodes, hints *fakeHints) *Resolver {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	if hints == nil {
		return NewResolver(nodes, nil, logger)
	}
	return NewResolver(nodes, hints, logger)
}

func TestResolvePrefixes_SpouseHopIntoCanonicalFamily(t *testing.T) {
	// the root's husband is a shadow card whose canonical family is FAM002
	root := node("FAM001", 1, "Asha", models.GenderFemale)
	root.UserID = strPtr("user-asha")
	root.Spouses.Data = []int{2}
	husband := shadow("FAM001", 2, "Ravi", models.GenderMale, "FAM002", "Ravi-uid")
	husband.Spouses.Data = []int{1}
	canonical := node("FAM002", 7, "Ravi", models.GenderMale)
	canonical.NodeUID = "Ravi-uid"

	nodes := &fakeNodes{
		families: map[string][]*models.FamilyNode{
			"FAM001": {root, husband},
			"FAM002": {canonical},
		},
		byUser: map[string][]*models.FamilyNode{"user-asha": {root}},
	}

	prefixes, err := newResolver(nodes, nil).ResolvePrefixes(context.Background(), "user-asha")

	require.NoError(t, err)
	require.Len(t, prefixes, 1)
	assert.Equal(t, "FAM002", prefixes[0].FamilyCode)
	assert.Equal(t, "SH", prefixes[0].Prefix)
}

func TestResolvePrefixes_ChainedSpouseHops(t *testing.T) {
	// root -> husband's family -> his sister-in-law's family
	root := node("FAM001", 1, "Asha", models.GenderFemale)
	root.UserID = strPtr("user-asha")
	root.Spouses.Data = []int{2}
	husband := shadow("FAM001", 2, "Ravi", models.GenderMale, "FAM002", "Ravi-uid")

	canonical := node("FAM002", 7, "Ravi", models.GenderMale)
	canonical.NodeUID = "Ravi-uid"
	canonical.Spouses.Data = []int{8}
	wife := shadow("FAM002", 8, "Meera", models.GenderFemale, "FAM003", "Meera-uid")
	meera := node("FAM003", 3, "Meera", models.GenderFemale)
	meera.NodeUID = "Meera-uid"

	nodes := &fakeNodes{
		families: map[string][]*models.FamilyNode{
			"FAM001": {root, husband},
			"FAM002": {canonical, wife},
			"FAM003": {meera},
		},
		byUser: map[string][]*models.FamilyNode{"user-asha": {root}},
	}

	prefixes, err := newResolver(nodes, nil).ResolvePrefixes(context.Background(), "user-asha")

	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	byFamily := map[string]string{}
	for _, p := range prefixes {
		byFamily[p.FamilyCode] = p.Prefix
	}
	assert.Equal(t, "SH", byFamily["FAM002"])
	assert.Equal(t, "SHW", byFamily["FAM003"])
}

func TestResolvePrefixes_OwnFamiliesExcluded(t *testing.T) {
	a := node("FAM001", 1, "Asha", models.GenderFemale)
	a.UserID = strPtr("user-asha")
	b := node("FAM005", 4, "Asha", models.GenderFemale)
	b.UserID = strPtr("user-asha")

	nodes := &fakeNodes{
		families: map[string][]*models.FamilyNode{
			"FAM001": {a},
			"FAM005": {b},
		},
		byUser: map[string][]*models.FamilyNode{"user-asha": {a, b}},
	}

	prefixes, err := newResolver(nodes, nil).ResolvePrefixes(context.Background(), "user-asha")

	require.NoError(t, err)
	assert.Empty(t, prefixes)
}

func TestResolvePrefixes_UnknownGenderUsesGenericLetter(t *testing.T) {
	root := node("FAM001", 1, "Asha", models.GenderFemale)
	root.UserID = strPtr("user-asha")
	root.Spouses.Data = []int{2}
	partner := shadow("FAM001", 2, "Sam", models.GenderUnknown, "FAM002", "Sam-uid")
	canonical := node("FAM002", 7, "Sam", models.GenderUnknown)
	canonical.NodeUID = "Sam-uid"

	nodes := &fakeNodes{
		families: map[string][]*models.FamilyNode{
			"FAM001": {root, partner},
			"FAM002": {canonical},
		},
		byUser: map[string][]*models.FamilyNode{"user-asha": {root}},
	}

	prefixes, err := newResolver(nodes, nil).ResolvePrefixes(context.Background(), "user-asha")

	require.NoError(t, err)
	require.Len(t, prefixes, 1)
	assert.Equal(t, "SS", prefixes[0].Prefix)
}

func TestResolvePrefixes_HintsMergedWithGenericPrefix(t *testing.T) {
	root := node("FAM001", 1, "Asha", models.GenderFemale)
	root.UserID = strPtr("user-asha")

	nodes := &fakeNodes{
		families: map[string][]*models.FamilyNode{"FAM001": {root}},
		byUser:   map[string][]*models.FamilyNode{"user-asha": {root}},
	}
	hints := &fakeHints{codes: []string{"FAM009", "FAM001"}}

	prefixes, err := newResolver(nodes, hints).ResolvePrefixes(context.Background(), "user-asha")

	require.NoError(t, err)
	// the hint for the user's own family stays suppressed
	require.Len(t, prefixes, 1)
	assert.Equal(t, "FAM009", prefixes[0].FamilyCode)
	assert.Equal(t, "S", prefixes[0].Prefix)
}

func TestResolvePrefixes_TraversedFamilyWinsOverHint(t *testing.T) {
	root := node("FAM001", 1, "Asha", models.GenderFemale)
	root.UserID = strPtr("user-asha")
	root.Spouses.Data = []int{2}
	husband := shadow("FAM001", 2, "Ravi", models.GenderMale, "FAM002", "Ravi-uid")
	canonical := node("FAM002", 7, "Ravi", models.GenderMale)
	canonical.NodeUID = "Ravi-uid"

	nodes := &fakeNodes{
		families: map[string][]*models.FamilyNode{
			"FAM001": {root, husband},
			"FAM002": {canonical},
		},
		byUser: map[string][]*models.FamilyNode{"user-asha": {root}},
	}
	hints := &fakeHints{codes: []string{"FAM002"}}

	prefixes, err := newResolver(nodes, hints).ResolvePrefixes(context.Background(), "user-asha")

	require.NoError(t, err)
	require.Len(t, prefixes, 1)
	assert.Equal(t, "SH", prefixes[0].Prefix)
}

type fakeCache struct {
	entries map[string][]models.FamilyPrefix
	sets    int
}

func (f *fakeCache) Get(_ context.Context, userID string) ([]models.FamilyPrefix, bool) {
	prefixes, ok := f.entries[userID]
	return prefixes, ok
}

func (f *fakeCache) Set(_ context.Context, userID string, prefixes []models.FamilyPrefix) {
	f.entries[userID] = prefixes
	f.sets++
}

func TestResolvePrefixes_ServedFromCache(t *testing.T) {
	// no nodes backing the user; a cache hit short-circuits traversal
	nodes := &fakeNodes{
		families: map[string][]*models.FamilyNode{},
		byUser:   map[string][]*models.FamilyNode{},
	}
	cache := &fakeCache{entries: map[string][]models.FamilyPrefix{
		"user-asha": {{FamilyCode: "FAM002", Prefix: "SH"}},
	}}

	prefixes, err := newResolver(nodes, nil).WithCache(cache).ResolvePrefixes(context.Background(), "user-asha")

	require.NoError(t, err)
	require.Len(t, prefixes, 1)
	assert.Equal(t, "FAM002", prefixes[0].FamilyCode)
	assert.Zero(t, cache.sets)
}

func TestResolvePrefixes_CacheMissStoresResult(t *testing.T) {
	root := node("FAM001", 1, "Asha", models.GenderFemale)
	root.UserID = strPtr("user-asha")
	root.Spouses.Data = []int{2}
	husband := shadow("FAM001", 2, "Ravi", models.GenderMale, "FAM002", "Ravi-uid")
	canonical := node("FAM002", 7, "Ravi", models.GenderMale)
	canonical.NodeUID = "Ravi-uid"

	nodes := &fakeNodes{
		families: map[string][]*models.FamilyNode{
			"FAM001": {root, husband},
			"FAM002": {canonical},
		},
		byUser: map[string][]*models.FamilyNode{"user-asha": {root}},
	}
	cache := &fakeCache{entries: map[string][]models.FamilyPrefix{}}

	prefixes, err := newResolver(nodes, nil).WithCache(cache).ResolvePrefixes(context.Background(), "user-asha")

	require.NoError(t, err)
	require.Len(t, prefixes, 1)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, prefixes, cache.entries["user-asha"])
}

func TestResolvePrefixes_NoNodesForUser(t *testing.T) {
	nodes := &fakeNodes{
		families: map[string][]*models.FamilyNode{},
		byUser:   map[string][]*models.FamilyNode{},
	}

	prefixes, err := newResolver(nodes, nil).ResolvePrefixes(context.Background(), "user-ghost")

	require.NoError(t, err)
	assert.Empty(t, prefixes)
}
