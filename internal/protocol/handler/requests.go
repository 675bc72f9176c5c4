package handler

import (
	"strings"

	linkmodels "civicdesk/internal/citizenlink/models"
	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
	dErrors "civicdesk/pkg/domain-errors"
)

// CreateProtocolRequest is the HTTP request body for POST /protocols.
type CreateProtocolRequest struct {
	ServiceID   string         `json:"serviceId"`
	CitizenID   string         `json:"citizenId"`
	Description string         `json:"description,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`

	// Parsed values (populated by Validate)
	parsedServiceID id.ServiceID
	parsedCitizenID id.CitizenID
}

// Validate validates and parses the request.
func (r *CreateProtocolRequest) Validate() error {
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	if r.ServiceID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "serviceId is required")
	}
	serviceID, err := id.ParseServiceID(r.ServiceID)
	if err != nil {
		return err
	}
	r.parsedServiceID = serviceID

	r.CitizenID = strings.TrimSpace(r.CitizenID)
	if r.CitizenID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "citizenId is required")
	}
	citizenID, err := id.ParseCitizenID(r.CitizenID)
	if err != nil {
		return err
	}
	r.parsedCitizenID = citizenID

	return nil
}

// ParsedServiceID returns the validated service id.
func (r *CreateProtocolRequest) ParsedServiceID() id.ServiceID { return r.parsedServiceID }

// ParsedCitizenID returns the validated citizen id.
func (r *CreateProtocolRequest) ParsedCitizenID() id.CitizenID { return r.parsedCitizenID }

// UpdateStatusRequest is the HTTP request body for POST /protocols/{id}/status.
type UpdateStatusRequest struct {
	Status   string            `json:"status"`
	Comment  string            `json:"comment,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	parsedStatus models.Status
}

// Validate validates and parses the request.
func (r *UpdateStatusRequest) Validate() error {
	status, err := models.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated target status.
func (r *UpdateStatusRequest) ParsedStatus() models.Status { return r.parsedStatus }

// CancelProtocolRequest is the optional HTTP request body for
// POST /protocols/{id}/cancel.
type CancelProtocolRequest struct {
	Comment string `json:"comment,omitempty"`
}

// CommentRequest is the HTTP request body for POST /protocols/{id}/comments.
type CommentRequest struct {
	Comment string `json:"comment"`
}

// Validate validates the request.
func (r *CommentRequest) Validate() error {
	if strings.TrimSpace(r.Comment) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "comment is required")
	}
	return nil
}

// UpdateLinkRequest is the HTTP request body for PATCH /links/{id}.
// Absent fields are left unchanged.
type UpdateLinkRequest struct {
	LinkType     *string        `json:"linkType,omitempty"`
	Role         *string        `json:"role,omitempty"`
	Relationship *string        `json:"relationship,omitempty"`
	ContextData  map[string]any `json:"contextData,omitempty"`

	parsedLinkType *linkmodels.LinkType
	parsedRole     *linkmodels.Role
}

var knownLinkTypes = map[linkmodels.LinkType]bool{
	linkmodels.LinkStudent:          true,
	linkmodels.LinkPatient:          true,
	linkmodels.LinkDependent:        true,
	linkmodels.LinkCompanion:        true,
	linkmodels.LinkAuthorizedPerson: true,
}

var knownRoles = map[linkmodels.Role]bool{
	linkmodels.RoleBeneficiary: true,
	linkmodels.RoleCompanion:   true,
	linkmodels.RoleAuthorized:  true,
	linkmodels.RoleRequester:   true,
}

// Validate validates and parses the request.
func (r *UpdateLinkRequest) Validate() error {
	if r.LinkType == nil && r.Role == nil && r.Relationship == nil && r.ContextData == nil {
		return dErrors.New(dErrors.CodeBadRequest, "at least one field must be set")
	}
	if r.LinkType != nil {
		lt := linkmodels.LinkType(strings.TrimSpace(*r.LinkType))
		if !knownLinkTypes[lt] {
			return dErrors.Newf(dErrors.CodeBadRequest, "unsupported link type: %q", *r.LinkType)
		}
		r.parsedLinkType = &lt
	}
	if r.Role != nil {
		role := linkmodels.Role(strings.TrimSpace(*r.Role))
		if !knownRoles[role] {
			return dErrors.Newf(dErrors.CodeBadRequest, "unsupported link role: %q", *r.Role)
		}
		r.parsedRole = &role
	}
	return nil
}

// ParsedLinkType returns the validated link type, nil when absent.
func (r *UpdateLinkRequest) ParsedLinkType() *linkmodels.LinkType { return r.parsedLinkType }

// ParsedRole returns the validated link role, nil when absent.
func (r *UpdateLinkRequest) ParsedRole() *linkmodels.Role { return r.parsedRole }
