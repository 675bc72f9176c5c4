// Package policy is the transition authority: a pure, immutable decision
// table answering whether an actor may move a protocol between statuses.
// It is injected into the engine so tests can swap alternative policies.
package policy

import (
	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
)

// Wildcard is a matrix key meaning "from any current status".
const Wildcard models.Status = "*"

// statusSet is a membership set over statuses.
type statusSet map[models.Status]bool

func setOf(statuses ...models.Status) statusSet {
	s := make(statusSet, len(statuses))
	for _, st := range statuses {
		s[st] = true
	}
	return s
}

// Matrix answers transition questions for the lifecycle engine. Construct
// via Default or NewMatrix; the zero value denies everything.
type Matrix struct {
	transitions map[id.ActorRole]map[models.Status]statusSet
	terminal    statusSet
	// approvalStatuses gates completion for WithData services: a protocol
	// may enter Completed only from one of these.
	approvalStatuses statusSet
	defaultComments  map[models.Status]string
	actions          map[models.Status]models.HistoryAction
}

// Default returns the production transition policy.
//
// Citizen entries are intentionally narrower than staff entries: citizens
// may only advance toward cancellation or push a pending/needs-update case
// back into progress. Administrative roles bypass the matrix entirely.
func Default() *Matrix {
	return &Matrix{
		transitions: map[id.ActorRole]map[models.Status]statusSet{
			id.RoleCitizen: {
				models.StatusLinked:      setOf(models.StatusCancelled),
				models.StatusInProgress:  setOf(models.StatusCancelled),
				models.StatusPending:     setOf(models.StatusInProgress, models.StatusCancelled),
				models.StatusNeedsUpdate: setOf(models.StatusInProgress, models.StatusCancelled),
			},
			id.RoleStaff: {
				models.StatusLinked: setOf(
					models.StatusInProgress,
					models.StatusPending,
					models.StatusNeedsUpdate,
					models.StatusCompleted,
					models.StatusCancelled,
				),
				models.StatusInProgress: setOf(
					models.StatusPending,
					models.StatusNeedsUpdate,
					models.StatusCompleted,
					models.StatusCancelled,
				),
				models.StatusPending: setOf(
					models.StatusInProgress,
					models.StatusNeedsUpdate,
					models.StatusCompleted,
					models.StatusCancelled,
				),
				models.StatusNeedsUpdate: setOf(
					models.StatusInProgress,
					models.StatusPending,
					models.StatusCompleted,
					models.StatusCancelled,
				),
			},
			// Admin roles are short-circuited in IsAllowed; wildcard entries
			// kept so the table reads complete.
			id.RoleAdmin:      {Wildcard: setOf(models.AllStatuses()...)},
			id.RoleSuperAdmin: {Wildcard: setOf(models.AllStatuses()...)},
		},
		terminal:         setOf(models.StatusCompleted, models.StatusCancelled),
		approvalStatuses: setOf(models.StatusInProgress),
		defaultComments: map[models.Status]string{
			models.StatusLinked:      "Protocol created and linked to the department",
			models.StatusInProgress:  "Protocol in progress",
			models.StatusPending:     "Protocol has open pending items",
			models.StatusNeedsUpdate: "Awaiting information update",
			models.StatusCompleted:   "Protocol completed successfully",
			models.StatusCancelled:   "Protocol cancelled",
		},
		actions: map[models.Status]models.HistoryAction{
			models.StatusLinked:      models.ActionCreated,
			models.StatusInProgress:  models.ActionExecutionStart,
			models.StatusPending:     models.ActionPendingFlagged,
			models.StatusNeedsUpdate: models.ActionUpdateRequested,
			models.StatusCompleted:   models.ActionCompleted,
			models.StatusCancelled:   models.ActionCancelled,
		},
	}
}

// IsAllowed reports whether role may move a protocol from current to next.
// Administrative roles are allowed any transition unconditionally. For all
// other roles the matrix is consulted: a wildcard status key applies
// regardless of current status; absence of an entry denies (fail closed).
func (m *Matrix) IsAllowed(current, next models.Status, role id.ActorRole) bool {
	if role.IsAdministrative() {
		return true
	}
	table, ok := m.transitions[role]
	if !ok {
		return false
	}
	if allowed, ok := table[Wildcard]; ok {
		return allowed[next]
	}
	allowed, ok := table[current]
	if !ok {
		return false
	}
	return allowed[next]
}

// IsTerminal reports whether no ordinary actor may transition away from the
// status.
func (m *Matrix) IsTerminal(status models.Status) bool {
	return m.terminal[status]
}

// CompletionAllowed gates entry into Completed for WithData services: only
// permitted when the current status is one of the declared approval
// statuses. WithoutData services have no such gate.
func (m *Matrix) CompletionAllowed(serviceType models.ServiceType, current models.Status) bool {
	if serviceType != models.ServiceWithData {
		return true
	}
	return m.approvalStatuses[current]
}

// DefaultComment returns the history comment used when the caller supplies
// none.
func (m *Matrix) DefaultComment(status models.Status) string {
	if c, ok := m.defaultComments[status]; ok {
		return c
	}
	return "Status changed to " + string(status)
}

// ActionFor maps the status being entered to its history action tag.
func (m *Matrix) ActionFor(status models.Status) models.HistoryAction {
	if a, ok := m.actions[status]; ok {
		return a
	}
	return models.ActionStatusChanged
}
