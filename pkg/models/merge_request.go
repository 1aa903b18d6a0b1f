package models

import (
	"time"

	"github.com/Ramsey-B/banyan/internal/database"
)

// MergePrimaryStatus is the primary family's side of the merge state
// machine: open -> accepted -> merged, or open -> rejected
type MergePrimaryStatus string

const (
	MergePrimaryOpen     MergePrimaryStatus = "open"
	MergePrimaryAccepted MergePrimaryStatus = "accepted"
	MergePrimaryRejected MergePrimaryStatus = "rejected"
	MergePrimaryMerged   MergePrimaryStatus = "merged"
)

// MergeSecondaryStatus tracks the requesting family's side
type MergeSecondaryStatus string

const (
	MergeSecondaryPending      MergeSecondaryStatus = "pending"
	MergeSecondaryAcknowledged MergeSecondaryStatus = "acknowledged"
	MergeSecondaryRejected     MergeSecondaryStatus = "rejected"
	MergeSecondaryMerged       MergeSecondaryStatus = "merged"
)

// AnchorConfig names the users each side wants promoted to admin of the
// merged family once execution completes.
type AnchorConfig struct {
	PrimaryAnchorUserIDs   []string `json:"primary_anchor_user_ids,omitempty"`
	SecondaryAnchorUserIDs []string `json:"secondary_anchor_user_ids,omitempty"`
}

// MergeRequest is a proposal to reconcile a secondary family's tree into
// a primary family's tree. Created by a secondary-family admin, advanced
// only by a primary-family admin.
type MergeRequest struct {
	ID                       string                       `json:"id" db:"id"`
	PrimaryFamilyCode        string                       `json:"primary_family_code" db:"primary_family_code"`
	SecondaryFamilyCode      string                       `json:"secondary_family_code" db:"secondary_family_code"`
	RequestedByAdminID       string                       `json:"requested_by_admin_id" db:"requested_by_admin_id"`
	PrimaryStatus            MergePrimaryStatus           `json:"primary_status" db:"primary_status"`
	SecondaryStatus          MergeSecondaryStatus         `json:"secondary_status" db:"secondary_status"`
	AppliedGenerationOffset  *int                         `json:"applied_generation_offset,omitempty" db:"applied_generation_offset"`
	IsNoMatchMerge           bool                         `json:"is_no_match_merge" db:"is_no_match_merge"`
	AnchorConfig             database.JSONB[AnchorConfig] `json:"anchor_config" db:"anchor_config"`
	CreatedAt                time.Time                    `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time                    `json:"updated_at" db:"updated_at"`
}

// CreateMergeRequestRequest is the request body for POST /merge-requests
type CreateMergeRequestRequest struct {
	PrimaryFamilyCode   string        `json:"primary_family_code" validate:"required"`
	SecondaryFamilyCode string        `json:"secondary_family_code" validate:"required"`
	AnchorConfig        *AnchorConfig `json:"anchor_config,omitempty"`
}

// ExecutionResult summarizes a completed merge execution
type ExecutionResult struct {
	MergeRequestID    string `json:"merge_request_id"`
	PrimaryFamilyCode string `json:"primary_family_code"`
	MergedPersons     int    `json:"merged_persons"`
	CreatedPersons    int    `json:"created_persons"`
	GenerationOffset  int    `json:"generation_offset"`
	PromotedAdmins    int    `json:"promoted_admins"`
}
