package models

import (
	"time"

	"github.com/Ramsey-B/banyan/internal/database"
)

// Gender of a family member; used for parent-role inference and
// relationship prefix letters
type Gender string

const (
	GenderUnknown Gender = "unknown"
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// LifeStatus is display-only and never participates in graph invariants
type LifeStatus string

const (
	LifeStatusLiving   LifeStatus = "living"
	LifeStatusDeceased LifeStatus = "deceased"
)

// FamilyNode is one member card within one family's tree, unique per
// (family_code, person_id). Edge lists are denormalized per node; the
// repair pass is the authority on their consistency.
type FamilyNode struct {
	ID         string     `json:"id" db:"id"`
	FamilyCode string     `json:"family_code" db:"family_code"`
	PersonID   int        `json:"person_id" db:"person_id"`
	NodeUID    string     `json:"node_uid" db:"node_uid"`
	UserID     *string    `json:"user_id,omitempty" db:"user_id"`
	Name       string     `json:"name" db:"name"`
	Gender     Gender     `json:"gender" db:"gender"`
	Age        *int       `json:"age,omitempty" db:"age"`
	Generation int        `json:"generation" db:"generation"`
	LifeStatus LifeStatus `json:"life_status" db:"life_status"`

	// Shadow card fields. When IsExternalLinked is set the authoritative
	// data lives on the canonical node in another family.
	IsExternalLinked    bool    `json:"is_external_linked" db:"is_external_linked"`
	CanonicalFamilyCode *string `json:"canonical_family_code,omitempty" db:"canonical_family_code"`
	CanonicalNodeUID    *string `json:"canonical_node_uid,omitempty" db:"canonical_node_uid"`

	Parents  database.JSONB[[]int] `json:"parents" db:"parents"`
	Children database.JSONB[[]int] `json:"children" db:"children"`
	Spouses  database.JSONB[[]int] `json:"spouses" db:"spouses"`
	Siblings database.JSONB[[]int] `json:"siblings" db:"siblings"`

	// Fingerprint is the stored content hash of the row as last written
	Fingerprint string `json:"-" db:"fingerprint"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ParentIDs returns the parents edge list.
func (n *FamilyNode) ParentIDs() []int { return n.Parents.Data }

// ChildIDs returns the children edge list.
func (n *FamilyNode) ChildIDs() []int { return n.Children.Data }

// SpouseIDs returns the spouses edge list.
func (n *FamilyNode) SpouseIDs() []int { return n.Spouses.Data }

// SiblingIDs returns the siblings edge list.
func (n *FamilyNode) SiblingIDs() []int { return n.Siblings.Data }

// SetEdges replaces all four edge lists.
func (n *FamilyNode) SetEdges(parents, children, spouses, siblings []int) {
	n.Parents.Data = parents
	n.Children.Data = children
	n.Spouses.Data = spouses
	n.Siblings.Data = siblings
}
