// Package models holds the protocol aggregate: the tracked unit of work, its
// closed status enum, and the append-only history stream.
package models

import (
	"regexp"
	"time"

	id "civicdesk/pkg/domain"
	dErrors "civicdesk/pkg/domain-errors"
)

// Status is the closed protocol lifecycle enum. Every persisted value comes
// from this set; ParseStatus guards the trust boundary.
type Status string

const (
	StatusLinked      Status = "LINKED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusPending     Status = "PENDING"
	StatusNeedsUpdate Status = "NEEDS_UPDATE"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
)

var validStatuses = map[Status]bool{
	StatusLinked:      true,
	StatusInProgress:  true,
	StatusPending:     true,
	StatusNeedsUpdate: true,
	StatusCompleted:   true,
	StatusCancelled:   true,
}

// AllStatuses returns the full enum, used by the wildcard matrix entry.
func AllStatuses() []Status {
	return []Status{
		StatusLinked,
		StatusInProgress,
		StatusPending,
		StatusNeedsUpdate,
		StatusCompleted,
		StatusCancelled,
	}
}

// IsValid reports whether the status is a member of the closed enum.
func (s Status) IsValid() bool { return validStatuses[s] }

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "status cannot be empty")
	}
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unsupported status: %q", s)
	}
	return st, nil
}

// ServiceType governs whether approval is required before completion.
type ServiceType string

const (
	ServiceWithData    ServiceType = "WITH_DATA"
	ServiceWithoutData ServiceType = "WITHOUT_DATA"
)

// ModuleType tags which department side record mirrors a protocol. Empty
// means no side record (informational services).
type ModuleType string

const (
	ModuleSchoolEnrollment       ModuleType = "SCHOOL_ENROLLMENT"
	ModuleHealthAppointment      ModuleType = "HEALTH_APPOINTMENT"
	ModuleRuralProgramEnrollment ModuleType = "RURAL_PROGRAM_ENROLLMENT"
	ModuleHousingApplication     ModuleType = "HOUSING_APPLICATION"

	// Informational module types publish content only and have no side
	// record; the dispatcher has no hooks for them.
	ModuleSchoolCalendar ModuleType = "SCHOOL_CALENDAR"
)

// HistoryAction labels a history entry with what happened, derived from the
// status being entered.
type HistoryAction string

const (
	ActionCreated         HistoryAction = "CREATED"
	ActionExecutionStart  HistoryAction = "EXECUTION_STARTED"
	ActionPendingFlagged  HistoryAction = "PENDING_FLAGGED"
	ActionUpdateRequested HistoryAction = "UPDATE_REQUESTED"
	ActionCompleted       HistoryAction = "COMPLETED"
	ActionCancelled       HistoryAction = "CANCELLED"
	ActionComment         HistoryAction = "COMMENT"
	ActionStatusChanged   HistoryAction = "STATUS_CHANGED"
)

// Payload is the submitted form. The engine never interprets its business
// fields, only extracts link-relevant ones.
type Payload map[string]any

// Protocol is the trackable unit representing one citizen service request.
// Mutated only through the lifecycle engine; never deleted.
type Protocol struct {
	ID           id.ProtocolID
	Number       string // "{year}-{6-digit counter}", unique
	Title        string
	Description  string
	Status       Status
	CitizenID    id.CitizenID
	ServiceID    id.ServiceID
	DepartmentID id.DepartmentID
	ServiceType  ServiceType
	ModuleType   ModuleType // empty when no side record mirrors this protocol
	CustomData   Payload
	CreatedByID  id.UserID // zero when the citizen self-submitted
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ConcludedAt  *time.Time // stamped when a terminal status is entered
}

// HistoryEntry is append-only and immutable once written. Created only as a
// byproduct of a successful transition or an explicit comment.
type HistoryEntry struct {
	ID         id.HistoryID
	ProtocolID id.ProtocolID
	Action     HistoryAction
	OldStatus  Status // empty for creation and comment entries
	NewStatus  Status // empty for comment entries
	Comment    string
	ActorID    id.UserID
	ActorRole  id.ActorRole
	Metadata   map[string]string
	Timestamp  time.Time
}

// Service is the catalog entry a protocol is created against. LinkConfig is
// the service's declared citizen-link requirements, interpreted by the link
// resolver; the engine treats the rest as routing data.
type Service struct {
	ID           id.ServiceID
	Name         string
	Description  string
	DepartmentID id.DepartmentID
	ServiceType  ServiceType
	ModuleType   ModuleType
	IsActive     bool
	LinkConfig   []byte // JSON, decoded by the citizenlink resolver
}

// NumberPattern validates the user-visible protocol number format.
var NumberPattern = regexp.MustCompile(`^\d{4}-\d{6}$`)
