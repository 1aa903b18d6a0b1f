package models

import (
	"time"

	"github.com/Ramsey-B/banyan/internal/database"
)

// MatchDecision records an admin's accept/reject of one candidate match
type MatchDecision struct {
	PrimaryPersonID   int       `json:"primary_person_id"`
	SecondaryPersonID int       `json:"secondary_person_id"`
	Accepted          bool      `json:"accepted"`
	DecidedBy         string    `json:"decided_by"`
	DecidedAt         time.Time `json:"decided_at"`
}

// FinalTreePerson is one row of the consolidated member list execute
// consumes. PersonID refers to the primary family when SourceFamilyCode
// is the primary; otherwise it names the secondary person to import.
type FinalTreePerson struct {
	SourceFamilyCode string  `json:"source_family_code"`
	PersonID         int     `json:"person_id"`
	MergedWith       *int    `json:"merged_with,omitempty"`
	Name             string  `json:"name"`
	Gender           Gender  `json:"gender"`
	UserID           *string `json:"user_id,omitempty"`
	Generation       int     `json:"generation"`
	Parents          []int   `json:"parents"`
	Children         []int   `json:"children"`
	Spouses          []int   `json:"spouses"`
	Siblings         []int   `json:"siblings"`
}

// MergeStateMeta carries free-form context for a saved version
type MergeStateMeta struct {
	Note             string `json:"note,omitempty"`
	GenerationOffset *int   `json:"generation_offset,omitempty"`
}

// MergeStatePayload is the typed working-set snapshot saved per version
type MergeStatePayload struct {
	Matches   []PersonMatch     `json:"matches"`
	Decisions []MatchDecision   `json:"decisions"`
	FinalTree []FinalTreePerson `json:"final_tree"`
	Meta      MergeStateMeta    `json:"meta"`
}

// MergeState is one immutable version of a merge request's working set.
// Saves insert a new row; revert re-inserts an old payload as the next
// version.
type MergeState struct {
	ID             string                            `json:"id" db:"id"`
	MergeRequestID string                            `json:"merge_request_id" db:"merge_request_id"`
	Version        int                               `json:"version" db:"version"`
	Payload        database.JSONB[MergeStatePayload] `json:"payload" db:"payload"`
	SavedBy        string                            `json:"saved_by" db:"saved_by"`
	SavedAt        time.Time                         `json:"saved_at" db:"saved_at"`
}

// SaveDecisionsRequest is the request body for saving match decisions
type SaveDecisionsRequest struct {
	Decisions []MatchDecision `json:"decisions" validate:"required,dive"`
}

// SaveFinalTreeRequest is the request body for saving a draft final tree
type SaveFinalTreeRequest struct {
	FinalTree        []FinalTreePerson `json:"final_tree" validate:"required"`
	GenerationOffset *int              `json:"generation_offset,omitempty"`
}

// RevertStateRequest names the version to restore
type RevertStateRequest struct {
	Version int `json:"version" validate:"required,min=1"`
}
