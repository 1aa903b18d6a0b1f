// Package matching implements cross-family person matching
package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Ramsey-B/banyan/pkg/models"
	"github.com/Ramsey-B/banyan/pkg/normalizers"
)

// Score weights and thresholds for candidate matching
const (
	scoreUserID       = 60
	scoreEmail        = 25
	scorePhone        = 25
	scoreNameExact    = 15
	scoreNamePartial  = 8
	scoreGenDeltaZero = 10
	scoreGenDeltaOne  = 5
	scoreAgeClose     = 10
	scoreAgeNear      = 5

	// granted when name, gender, age, and generation all agree exactly
	scoreStrictAgreement = 50

	ageDeltaClose = 1
	ageDeltaNear  = 5

	// conflict classification on accepted matches
	ageDeltaSoftConflict = 6
	ageDeltaHardConflict = 15
)

// EngineConfig contains thresholds for the match engine
type EngineConfig struct {
	MinMatchScore     int // Minimum score to accept a best candidate (default: 20)
	ExactThreshold    int // Score at or above which a match is "exact" (default: 80)
	ProbableThreshold int // Score at or above which a match is "probable" (default: 50)
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		MinMatchScore:     20,
		ExactThreshold:    80,
		ProbableThreshold: 50,
	}
}

// Engine computes weighted candidate matches between two family graphs.
// It is pure: both inputs are read-only snapshots.
type Engine struct {
	config EngineConfig
}

// NewEngine creates a new match engine
func NewEngine(config EngineConfig) *Engine {
	return &Engine{config: config}
}

// candidateScore accumulates the weighted score for one candidate pair
type candidateScore struct {
	person    *models.FamilyPerson
	score     int
	matched   []string
	differing []string
}

// Analyze matches every primary-family person against the secondary
// family and produces the full merge analysis: matches, conflicts, new
// persons, generation-offset suggestion, structural defects, and
// recommendations.
func (e *Engine) Analyze(primary, secondary []models.FamilyPerson) *models.MergeAnalysis {
	analysis := &models.MergeAnalysis{
		Matches:    []models.PersonMatch{},
		Conflicts:  []models.Conflict{},
		NewPersons: []int{},
	}
	if len(primary) > 0 {
		analysis.PrimaryFamilyCode = primary[0].FamilyCode
	}
	if len(secondary) > 0 {
		analysis.SecondaryFamilyCode = secondary[0].FamilyCode
	}

	primaryIndex := indexPersons(primary)
	secondaryIndex := indexPersons(secondary)

	matchedSecondary := make(map[int]bool)
	offsets := newOffsetHistogram()

	for i := range primary {
		a := &primary[i]

		best := e.bestCandidate(a, secondary)
		if best == nil || best.score < e.config.MinMatchScore {
			continue
		}

		// strict gate: name, gender, age, and generation must all agree
		// exactly. Precision over recall; anything short of full
		// agreement is treated as unmatched for merge safety.
		if !passesStrictGate(a, best.person) {
			continue
		}
		best.score += scoreStrictAgreement

		match := models.PersonMatch{
			PrimaryPersonID:   a.PersonID,
			SecondaryPersonID: best.person.PersonID,
			Score:             best.score,
			Confidence:        e.confidence(best.score),
			MatchedFields:     best.matched,
			DifferingFields:   best.differing,
			GenerationDelta:   a.Generation - best.person.Generation,
		}
		analysis.Matches = append(analysis.Matches, match)
		matchedSecondary[best.person.PersonID] = true
		offsets.record(match.GenerationDelta)

		if conflict := classifyConflict(a, best.person, primaryIndex, secondaryIndex); conflict != nil {
			analysis.Conflicts = append(analysis.Conflicts, *conflict)
		}
	}

	for i := range secondary {
		if !matchedSecondary[secondary[i].PersonID] {
			analysis.NewPersons = append(analysis.NewPersons, secondary[i].PersonID)
		}
	}
	sort.Ints(analysis.NewPersons)

	analysis.SuggestedOffset = offsets.best()
	analysis.IsNoMatchMerge = len(analysis.Matches) == 0

	analysis.Defects = append(analysis.Defects, AnalyzeStructure(analysis.PrimaryFamilyCode, primary)...)
	analysis.Defects = append(analysis.Defects, AnalyzeStructure(analysis.SecondaryFamilyCode, secondary)...)

	analysis.Recommendations = Recommend(analysis, offsets.ambiguous())

	return analysis
}

// bestCandidate scores every candidate for a and returns the highest
// scorer, ties broken by first-seen order.
func (e *Engine) bestCandidate(a *models.FamilyPerson, secondary []models.FamilyPerson) *candidateScore {
	candidates := identifierCandidates(a, secondary)
	if len(candidates) == 0 {
		candidates = nameCandidates(a, secondary)
	}

	var best *candidateScore
	for _, b := range candidates {
		score := scorePair(a, b)
		if best == nil || score.score > best.score {
			best = score
		}
	}
	return best
}

// identifierCandidates returns secondary persons sharing a userId,
// email, or phone with a.
func identifierCandidates(a *models.FamilyPerson, secondary []models.FamilyPerson) []*models.FamilyPerson {
	var out []*models.FamilyPerson
	for i := range secondary {
		b := &secondary[i]
		if equalPtr(a.UserID, b.UserID) ||
			equalNormalized(a.Email, b.Email, normalizers.NormalizeEmail) ||
			equalNormalized(a.Phone, b.Phone, normalizers.NormalizePhone) {
			out = append(out, b)
		}
	}
	return out
}

// nameCandidates falls back to case-insensitive name containment in
// either direction.
func nameCandidates(a *models.FamilyPerson, secondary []models.FamilyPerson) []*models.FamilyPerson {
	nameA := normalizers.NormalizeName(a.Name)
	if nameA == "" {
		return nil
	}
	var out []*models.FamilyPerson
	for i := range secondary {
		b := &secondary[i]
		nameB := normalizers.NormalizeName(b.Name)
		if nameB == "" {
			continue
		}
		if strings.Contains(nameA, nameB) || strings.Contains(nameB, nameA) {
			out = append(out, b)
		}
	}
	return out
}

// scorePair computes the weighted score for one candidate pair and
// tracks which fields matched or differed.
func scorePair(a, b *models.FamilyPerson) *candidateScore {
	cs := &candidateScore{person: b}

	addField := func(name string, hit bool, points int) {
		if hit {
			cs.score += points
			cs.matched = append(cs.matched, name)
		} else {
			cs.differing = append(cs.differing, name)
		}
	}

	if a.UserID != nil && b.UserID != nil {
		addField("user_id", *a.UserID == *b.UserID, scoreUserID)
	}
	if a.Email != nil && b.Email != nil {
		addField("email", normalizers.NormalizeEmail(*a.Email) == normalizers.NormalizeEmail(*b.Email), scoreEmail)
	}
	if a.Phone != nil && b.Phone != nil {
		addField("phone", normalizers.NormalizePhone(*a.Phone) == normalizers.NormalizePhone(*b.Phone), scorePhone)
	}

	nameA := normalizers.NormalizeName(a.Name)
	nameB := normalizers.NormalizeName(b.Name)
	switch {
	case nameA != "" && nameA == nameB:
		cs.score += scoreNameExact
		cs.matched = append(cs.matched, "name")
	case nameA != "" && nameB != "" && (strings.Contains(nameA, nameB) || strings.Contains(nameB, nameA)):
		cs.score += scoreNamePartial
		cs.matched = append(cs.matched, "name_partial")
	default:
		cs.differing = append(cs.differing, "name")
	}

	switch delta := abs(a.Generation - b.Generation); delta {
	case 0:
		cs.score += scoreGenDeltaZero
		cs.matched = append(cs.matched, "generation")
	case 1:
		cs.score += scoreGenDeltaOne
		cs.matched = append(cs.matched, "generation_near")
	default:
		cs.differing = append(cs.differing, "generation")
	}

	if a.Age != nil && b.Age != nil {
		switch delta := abs(*a.Age - *b.Age); {
		case delta <= ageDeltaClose:
			cs.score += scoreAgeClose
			cs.matched = append(cs.matched, "age")
		case delta <= ageDeltaNear:
			cs.score += scoreAgeNear
			cs.matched = append(cs.matched, "age_near")
		default:
			cs.differing = append(cs.differing, "age")
		}
	}

	return cs
}

// passesStrictGate requires exact agreement on normalized name, gender,
// age, and generation.
func passesStrictGate(a, b *models.FamilyPerson) bool {
	if normalizers.NormalizeName(a.Name) != normalizers.NormalizeName(b.Name) {
		return false
	}
	if a.Gender != b.Gender {
		return false
	}
	if !equalIntPtr(a.Age, b.Age) {
		return false
	}
	return a.Generation == b.Generation
}

func (e *Engine) confidence(score int) models.MatchConfidence {
	switch {
	case score >= e.config.ExactThreshold:
		return models.MatchExact
	case score >= e.config.ProbableThreshold:
		return models.MatchProbable
	default:
		return models.MatchPossible
	}
}

// classifyConflict inspects an accepted match for disagreements the
// admin should review. Hard: zero overlap between matched parents'
// names, or an age delta over 15. Soft: age delta between 6 and 15.
func classifyConflict(a, b *models.FamilyPerson, primaryIndex, secondaryIndex map[int]*models.FamilyPerson) *models.Conflict {
	if parentsDisagree(a, b, primaryIndex, secondaryIndex) {
		return &models.Conflict{
			PrimaryPersonID:   a.PersonID,
			SecondaryPersonID: b.PersonID,
			Severity:          models.ConflictHard,
			Reason:            "matched persons list parents with no name overlap",
		}
	}

	if a.Age != nil && b.Age != nil {
		delta := abs(*a.Age - *b.Age)
		if delta > ageDeltaHardConflict {
			return &models.Conflict{
				PrimaryPersonID:   a.PersonID,
				SecondaryPersonID: b.PersonID,
				Severity:          models.ConflictHard,
				Reason:            fmt.Sprintf("age differs by %d years", delta),
			}
		}
		if delta >= ageDeltaSoftConflict {
			return &models.Conflict{
				PrimaryPersonID:   a.PersonID,
				SecondaryPersonID: b.PersonID,
				Severity:          models.ConflictSoft,
				Reason:            fmt.Sprintf("age differs by %d years", delta),
			}
		}
	}

	return nil
}

// parentsDisagree reports whether both sides list parents yet share no
// parent name at all.
func parentsDisagree(a, b *models.FamilyPerson, primaryIndex, secondaryIndex map[int]*models.FamilyPerson) bool {
	namesA := parentNames(a, primaryIndex)
	namesB := parentNames(b, secondaryIndex)
	if len(namesA) == 0 || len(namesB) == 0 {
		return false
	}
	for _, na := range namesA {
		for _, nb := range namesB {
			if na == nb || strings.Contains(na, nb) || strings.Contains(nb, na) {
				return false
			}
		}
	}
	return true
}

func parentNames(p *models.FamilyPerson, index map[int]*models.FamilyPerson) []string {
	var names []string
	for _, id := range p.Parents {
		if parent, ok := index[id]; ok {
			if name := normalizers.NormalizeName(parent.Name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// offsetHistogram tracks generation deltas across accepted matches;
// the most frequent delta is the suggested global offset, ties broken
// by first-seen.
type offsetHistogram struct {
	counts map[int]int
	order  []int
}

func newOffsetHistogram() *offsetHistogram {
	return &offsetHistogram{counts: make(map[int]int)}
}

func (h *offsetHistogram) record(delta int) {
	if _, seen := h.counts[delta]; !seen {
		h.order = append(h.order, delta)
	}
	h.counts[delta]++
}

func (h *offsetHistogram) best() int {
	bestOffset, bestCount := 0, 0
	for _, delta := range h.order {
		if h.counts[delta] > bestCount {
			bestOffset, bestCount = delta, h.counts[delta]
		}
	}
	return bestOffset
}

// ambiguous reports whether more than one distinct offset was observed
func (h *offsetHistogram) ambiguous() bool {
	return len(h.order) > 1
}

func indexPersons(persons []models.FamilyPerson) map[int]*models.FamilyPerson {
	out := make(map[int]*models.FamilyPerson, len(persons))
	for i := range persons {
		out[persons[i].PersonID] = &persons[i]
	}
	return out
}

func equalPtr(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func equalNormalized(a, b *string, normalize func(string) string) bool {
	return a != nil && b != nil && normalize(*a) == normalize(*b) && normalize(*a) != ""
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
