package handler

import (
	"time"

	linkmodels "civicdesk/internal/citizenlink/models"
	"civicdesk/internal/protocol/engine"
	"civicdesk/internal/protocol/models"
)

// ProtocolResponse is the HTTP representation of a protocol.
type ProtocolResponse struct {
	ID           string         `json:"id"`
	Number       string         `json:"number"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Status       string         `json:"status"`
	CitizenID    string         `json:"citizenId"`
	ServiceID    string         `json:"serviceId"`
	DepartmentID string         `json:"departmentId"`
	ServiceType  string         `json:"serviceType"`
	ModuleType   string         `json:"moduleType,omitempty"`
	CustomData   map[string]any `json:"customData,omitempty"`
	CreatedBy    string         `json:"createdBy,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	ConcludedAt  *time.Time     `json:"concludedAt,omitempty"`
}

// FromProtocol converts a domain protocol to its HTTP representation.
func FromProtocol(p *models.Protocol) *ProtocolResponse {
	resp := &ProtocolResponse{
		ID:           p.ID.String(),
		Number:       p.Number,
		Title:        p.Title,
		Description:  p.Description,
		Status:       string(p.Status),
		CitizenID:    p.CitizenID.String(),
		ServiceID:    p.ServiceID.String(),
		DepartmentID: p.DepartmentID.String(),
		ServiceType:  string(p.ServiceType),
		ModuleType:   string(p.ModuleType),
		CustomData:   p.CustomData,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		ConcludedAt:  p.ConcludedAt,
	}
	if !p.CreatedByID.IsNil() {
		resp.CreatedBy = p.CreatedByID.String()
	}
	return resp
}

// ProtocolListResponse wraps a list of protocols.
type ProtocolListResponse struct {
	Protocols []*ProtocolResponse `json:"protocols"`
}

// FromProtocols converts a protocol list to its HTTP representation.
func FromProtocols(protocols []*models.Protocol) *ProtocolListResponse {
	resp := &ProtocolListResponse{Protocols: make([]*ProtocolResponse, 0, len(protocols))}
	for _, p := range protocols {
		resp.Protocols = append(resp.Protocols, FromProtocol(p))
	}
	return resp
}

// TransitionResponse is the HTTP response for a status update.
type TransitionResponse struct {
	Protocol  *ProtocolResponse `json:"protocol"`
	OldStatus string            `json:"oldStatus"`
	NewStatus string            `json:"newStatus"`
	HistoryID string            `json:"historyId,omitempty"`
	NoOp      bool              `json:"noOp"`
}

// FromTransition converts a transition result to its HTTP representation.
func FromTransition(result *engine.TransitionResult) *TransitionResponse {
	resp := &TransitionResponse{
		Protocol:  FromProtocol(result.Protocol),
		OldStatus: string(result.OldStatus),
		NewStatus: string(result.NewStatus),
		NoOp:      result.NoOp,
	}
	if !result.HistoryID.IsNil() {
		resp.HistoryID = result.HistoryID.String()
	}
	return resp
}

// HistoryEntryResponse is the HTTP representation of a history entry.
type HistoryEntryResponse struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	OldStatus string            `json:"oldStatus,omitempty"`
	NewStatus string            `json:"newStatus,omitempty"`
	Comment   string            `json:"comment,omitempty"`
	ActorID   string            `json:"actorId,omitempty"`
	ActorRole string            `json:"actorRole"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// FromHistoryEntry converts a history entry to its HTTP representation.
func FromHistoryEntry(e *models.HistoryEntry) *HistoryEntryResponse {
	resp := &HistoryEntryResponse{
		ID:        e.ID.String(),
		Action:    string(e.Action),
		OldStatus: string(e.OldStatus),
		NewStatus: string(e.NewStatus),
		Comment:   e.Comment,
		ActorRole: string(e.ActorRole),
		Metadata:  e.Metadata,
		Timestamp: e.Timestamp,
	}
	if !e.ActorID.IsNil() {
		resp.ActorID = e.ActorID.String()
	}
	return resp
}

// HistoryResponse wraps a protocol's history, newest first.
type HistoryResponse struct {
	History []*HistoryEntryResponse `json:"history"`
}

// FromHistory converts a history list to its HTTP representation.
func FromHistory(entries []*models.HistoryEntry) *HistoryResponse {
	resp := &HistoryResponse{History: make([]*HistoryEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.History = append(resp.History, FromHistoryEntry(e))
	}
	return resp
}

// LinkResponse is the HTTP representation of a citizen link.
type LinkResponse struct {
	ID              string         `json:"id"`
	ProtocolID      string         `json:"protocolId"`
	LinkedCitizenID string         `json:"linkedCitizenId"`
	LinkType        string         `json:"linkType"`
	Role            string         `json:"role"`
	Relationship    string         `json:"relationship,omitempty"`
	ContextData     map[string]any `json:"contextData,omitempty"`
	IsVerified      bool           `json:"isVerified"`
	VerifiedAt      *time.Time     `json:"verifiedAt,omitempty"`
	VerifiedBy      string         `json:"verifiedBy,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// FromLink converts a citizen link to its HTTP representation.
func FromLink(l *linkmodels.Link) *LinkResponse {
	resp := &LinkResponse{
		ID:              l.ID.String(),
		ProtocolID:      l.ProtocolID.String(),
		LinkedCitizenID: l.LinkedCitizenID.String(),
		LinkType:        string(l.LinkType),
		Role:            string(l.Role),
		Relationship:    l.Relationship,
		ContextData:     l.ContextData,
		IsVerified:      l.IsVerified,
		VerifiedAt:      l.VerifiedAt,
		CreatedAt:       l.CreatedAt,
	}
	if l.VerifiedBy != nil {
		resp.VerifiedBy = l.VerifiedBy.String()
	}
	return resp
}

// LinkListResponse wraps a protocol's links, oldest first.
type LinkListResponse struct {
	Links []*LinkResponse `json:"links"`
}

// FromLinks converts a link list to its HTTP representation.
func FromLinks(links []*linkmodels.Link) *LinkListResponse {
	resp := &LinkListResponse{Links: make([]*LinkResponse, 0, len(links))}
	for _, l := range links {
		resp.Links = append(resp.Links, FromLink(l))
	}
	return resp
}
