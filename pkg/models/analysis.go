package models

// MatchConfidence tiers a cross-family person match
type MatchConfidence string

const (
	// MatchExact is a score of 80 or above
	MatchExact MatchConfidence = "exact"
	// MatchProbable is a score of 50 or above
	MatchProbable MatchConfidence = "probable"
	// MatchPossible is any accepted match below 50
	MatchPossible MatchConfidence = "possible"
)

// PersonMatch pairs a primary-family person with its best-scoring
// secondary-family candidate.
type PersonMatch struct {
	PrimaryPersonID   int             `json:"primary_person_id"`
	SecondaryPersonID int             `json:"secondary_person_id"`
	Score             int             `json:"score"`
	Confidence        MatchConfidence `json:"confidence"`
	MatchedFields     []string        `json:"matched_fields"`
	DifferingFields   []string        `json:"differing_fields,omitempty"`
	GenerationDelta   int             `json:"generation_delta"`
}

// ConflictSeverity classifies a conflict on an accepted match
type ConflictSeverity string

const (
	ConflictHard ConflictSeverity = "hard"
	ConflictSoft ConflictSeverity = "soft"
)

// Conflict flags an accepted match whose surrounding data disagrees
type Conflict struct {
	PrimaryPersonID   int              `json:"primary_person_id"`
	SecondaryPersonID int              `json:"secondary_person_id"`
	Severity          ConflictSeverity `json:"severity"`
	Reason            string           `json:"reason"`
}

// DefectKind names a structural problem in one family's graph
type DefectKind string

const (
	DefectFragmented DefectKind = "fragmented"
	DefectOrphan     DefectKind = "orphan"
	DefectCycle      DefectKind = "cycle"
)

// StructuralDefect reports one structural problem found during analysis
type StructuralDefect struct {
	FamilyCode string     `json:"family_code"`
	Kind       DefectKind `json:"kind"`
	PersonIDs  []int      `json:"person_ids,omitempty"`
	Components int        `json:"components,omitempty"`
	Message    string     `json:"message"`
}

// RecommendationSeverity grades a recommendation
type RecommendationSeverity string

const (
	RecommendationInfo    RecommendationSeverity = "info"
	RecommendationWarning RecommendationSeverity = "warning"
	RecommendationHigh    RecommendationSeverity = "high"
)

// Recommendation codes
const (
	RecommendationNoMatchMerge    = "NO_MATCH_MERGE"
	RecommendationHardConflicts   = "HARD_CONFLICTS"
	RecommendationSoftConflicts   = "SOFT_CONFLICTS"
	RecommendationFragmentedGraph = "FRAGMENTED_GRAPH"
	RecommendationOrphanNodes     = "ORPHAN_NODES"
	RecommendationParentCycles    = "PARENT_CYCLES"
	RecommendationLowConfidence   = "LOW_CONFIDENCE_MATCHES"
	RecommendationOffsetAmbiguous = "OFFSET_AMBIGUOUS"
)

// Recommendation is a pure mapping from detected conditions to an
// actionable message for the merging admin.
type Recommendation struct {
	Code     string                 `json:"code"`
	Severity RecommendationSeverity `json:"severity"`
	Message  string                 `json:"message"`
}

// MergeAnalysis is the full output of analyzing a merge request
type MergeAnalysis struct {
	MergeRequestID      string             `json:"merge_request_id"`
	PrimaryFamilyCode   string             `json:"primary_family_code"`
	SecondaryFamilyCode string             `json:"secondary_family_code"`
	Matches             []PersonMatch      `json:"matches"`
	Conflicts           []Conflict         `json:"conflicts"`
	NewPersons          []int              `json:"new_persons"`
	SuggestedOffset     int                `json:"suggested_generation_offset"`
	IsNoMatchMerge      bool               `json:"is_no_match_merge"`
	Defects             []StructuralDefect `json:"defects"`
	Recommendations     []Recommendation   `json:"recommendations"`
}
