// Package domain holds shared domain value types: typed identifiers and the
// parse helpers that enforce their invariants at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "civicdesk/pkg/domain-errors"
)

// Typed IDs prevent cross-aggregate mix-ups at compile time. Construct from
// external input via the Parse* helpers; direct casting bypasses validation.
type (
	ProtocolID   uuid.UUID
	CitizenID    uuid.UUID
	ServiceID    uuid.UUID
	DepartmentID uuid.UUID
	UserID       uuid.UUID
	HistoryID    uuid.UUID
	LinkID       uuid.UUID
)

func (id ProtocolID) String() string   { return uuid.UUID(id).String() }
func (id CitizenID) String() string    { return uuid.UUID(id).String() }
func (id ServiceID) String() string    { return uuid.UUID(id).String() }
func (id DepartmentID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id HistoryID) String() string    { return uuid.UUID(id).String() }
func (id LinkID) String() string       { return uuid.UUID(id).String() }

func (id ProtocolID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CitizenID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ServiceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DepartmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id HistoryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id LinkID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// NewProtocolID returns a fresh random protocol id.
func NewProtocolID() ProtocolID { return ProtocolID(uuid.New()) }

// NewHistoryID returns a fresh random history entry id.
func NewHistoryID() HistoryID { return HistoryID(uuid.New()) }

// NewLinkID returns a fresh random citizen link id.
func NewLinkID() LinkID { return LinkID(uuid.New()) }

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s id: %q", kind, s)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" id must not be the nil uuid")
	}
	return u, nil
}

func ParseProtocolID(s string) (ProtocolID, error) {
	u, err := parseUUID(s, "protocol")
	return ProtocolID(u), err
}

func ParseCitizenID(s string) (CitizenID, error) {
	u, err := parseUUID(s, "citizen")
	return CitizenID(u), err
}

func ParseServiceID(s string) (ServiceID, error) {
	u, err := parseUUID(s, "service")
	return ServiceID(u), err
}

func ParseDepartmentID(s string) (DepartmentID, error) {
	u, err := parseUUID(s, "department")
	return DepartmentID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user")
	return UserID(u), err
}

func ParseLinkID(s string) (LinkID, error) {
	u, err := parseUUID(s, "link")
	return LinkID(u), err
}
