package models

import "time"

// RelationshipType of a cross-family link request
type RelationshipType string

const (
	RelationshipParent  RelationshipType = "parent"
	RelationshipChild   RelationshipType = "child"
	RelationshipSpouse  RelationshipType = "spouse"
	RelationshipSibling RelationshipType = "sibling"
)

// ParentRole disambiguates which parent slot a parent link fills
type ParentRole string

const (
	ParentRoleFather ParentRole = "father"
	ParentRoleMother ParentRole = "mother"
)

// LinkRequestStatus lifecycle: pending until the receiver acts
type LinkRequestStatus string

const (
	LinkRequestPending  LinkRequestStatus = "pending"
	LinkRequestAccepted LinkRequestStatus = "accepted"
	LinkRequestRejected LinkRequestStatus = "rejected"
)

// LinkRequest is a proposal to connect a node in one family to a node in
// another. Acceptance materializes shadow cards and edges on both sides.
type LinkRequest struct {
	ID                 string            `json:"id" db:"id"`
	SenderFamilyCode   string            `json:"sender_family_code" db:"sender_family_code"`
	SenderNodeUID      string            `json:"sender_node_uid" db:"sender_node_uid"`
	ReceiverFamilyCode string            `json:"receiver_family_code" db:"receiver_family_code"`
	ReceiverNodeUID    string            `json:"receiver_node_uid" db:"receiver_node_uid"`
	RelationshipType   RelationshipType  `json:"relationship_type" db:"relationship_type"`
	ParentRole         *ParentRole       `json:"parent_role,omitempty" db:"parent_role"`
	Status             LinkRequestStatus `json:"status" db:"status"`
	RequestedBy        string            `json:"requested_by" db:"requested_by"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" db:"updated_at"`
}

// CreateLinkRequestRequest is the request body for POST /tree-links
type CreateLinkRequestRequest struct {
	SenderFamilyCode   string           `json:"sender_family_code" validate:"required"`
	SenderNodeUID      string           `json:"sender_node_uid" validate:"required"`
	ReceiverFamilyCode string           `json:"receiver_family_code" validate:"required"`
	ReceiverNodeUID    string           `json:"receiver_node_uid" validate:"required"`
	RelationshipType   RelationshipType `json:"relationship_type" validate:"required,oneof=parent child spouse sibling"`
	ParentRole         *ParentRole      `json:"parent_role,omitempty" validate:"omitempty,oneof=father mother"`
}
