package models

// FamilyPerson is the flattened person record the matcher consumes: node
// fields hydrated with profile data where a linked app user exists.
type FamilyPerson struct {
	FamilyCode string  `json:"family_code"`
	PersonID   int     `json:"person_id"`
	NodeUID    string  `json:"node_uid"`
	UserID     *string `json:"user_id,omitempty"`
	Name       string  `json:"name"`
	Gender     Gender  `json:"gender"`
	Age        *int    `json:"age,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Generation int     `json:"generation"`

	Parents  []int `json:"parents"`
	Children []int `json:"children"`
	Spouses  []int `json:"spouses"`
	Siblings []int `json:"siblings"`
}

// FamilyPrefix pairs a reachable family code with its human-readable
// relationship prefix (S plus one letter per spouse hop).
type FamilyPrefix struct {
	FamilyCode string `json:"family_code"`
	Prefix     string `json:"prefix"`
}

// DisplayProfile is the narrow profile view hydrated from the member
// profile store for match candidates.
type DisplayProfile struct {
	UserID string  `json:"user_id" db:"user_id"`
	Name   string  `json:"name" db:"name"`
	Gender Gender  `json:"gender" db:"gender"`
	Age    *int    `json:"age,omitempty" db:"age"`
	Email  *string `json:"email,omitempty" db:"email"`
	Phone  *string `json:"phone,omitempty" db:"phone"`
}
