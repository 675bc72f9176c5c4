// Package models defines protocol citizen links: secondary citizens bound
// to a protocol beyond the submitter (a student on a school enrollment, a
// companion on a medical transport request), together with the per-service
// configuration that drives their resolution at protocol creation.
package models

import (
	"time"

	id "civicdesk/pkg/domain"
)

// LinkType classifies what the linked citizen is to the protocol.
type LinkType string

const (
	LinkStudent          LinkType = "STUDENT"
	LinkPatient          LinkType = "PATIENT"
	LinkDependent        LinkType = "DEPENDENT"
	LinkCompanion        LinkType = "COMPANION"
	LinkAuthorizedPerson LinkType = "AUTHORIZED_PERSON"
)

// Role is the function the linked citizen performs in the service.
type Role string

const (
	RoleBeneficiary Role = "BENEFICIARY"
	RoleCompanion   Role = "COMPANION"
	RoleAuthorized  Role = "AUTHORIZED"
	RoleRequester   Role = "REQUESTER"
)

// Link is a resolved citizen link attached to a protocol.
type Link struct {
	ID              id.LinkID
	ProtocolID      id.ProtocolID
	LinkedCitizenID id.CitizenID
	LinkType        LinkType
	Role            Role
	// Relationship is the family composition label matched during
	// verification, empty when the link is unverified.
	Relationship string
	ContextData  map[string]any
	IsVerified   bool
	VerifiedAt   *time.Time
	VerifiedBy   *id.UserID
	CreatedAt    time.Time
}

// LegacyFieldMap names the flat form fields older services use to identify
// a citizen before structured links existed.
type LegacyFieldMap struct {
	Document  string `json:"document,omitempty"`
	Name      string `json:"name,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`
}

// ContextField declares a value to carry onto the link: either copied from
// a form field or a constant supplied by the service configuration.
type ContextField struct {
	ID          string `json:"id"`
	SourceField string `json:"sourceField,omitempty"`
	Value       any    `json:"value,omitempty"`
}

// LinkConfig declares one link a service expects at protocol creation.
type LinkConfig struct {
	LinkType              LinkType        `json:"linkType"`
	Role                  Role            `json:"role"`
	Label                 string          `json:"label"`
	Description           string          `json:"description,omitempty"`
	Required              bool            `json:"required"`
	MapFromLegacyFields   *LegacyFieldMap `json:"mapFromLegacyFields,omitempty"`
	ContextFields         []ContextField  `json:"contextFields,omitempty"`
	ExpectedRelationships []string        `json:"expectedRelationships,omitempty"`
}

// LinkSettings is the service-level container stored as JSON on the
// service record.
type LinkSettings struct {
	Enabled bool         `json:"enabled"`
	Links   []LinkConfig `json:"links,omitempty"`
}
