// Package dispatcher routes status transitions to module side effects. It
// runs inside the lifecycle engine's transaction; hook failures are
// reported loudly but never abort the protocol mutation.
package dispatcher

import (
	"context"
	"log/slog"

	"civicdesk/internal/module/store"
	"civicdesk/internal/protocol/metrics"
	"civicdesk/internal/protocol/models"
)

// Hook applies one module side effect for a transition.
type Hook func(ctx context.Context, protocol *models.Protocol, oldStatus, newStatus models.Status) error

type hookKey struct {
	module models.ModuleType
	status models.Status
}

// Dispatcher holds the (module, target status) hook registry.
type Dispatcher struct {
	hooks   map[hookKey]Hook
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for hook failures.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink for hook failure counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New builds a dispatcher with the standard lifecycle hook table: every
// module with a side record table activates on InProgress, flags pending
// on Pending, completes on Completed and deactivates on Cancelled.
func New(entities store.EntityStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		hooks:  make(map[hookKey]Hook),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	lifecycleStates := map[models.Status]store.State{
		models.StatusInProgress: store.StateActive,
		models.StatusPending:    store.StatePending,
		models.StatusCompleted:  store.StateCompleted,
		models.StatusCancelled:  store.StateCancelled,
	}
	for _, module := range []models.ModuleType{
		models.ModuleSchoolEnrollment,
		models.ModuleHealthAppointment,
		models.ModuleRuralProgramEnrollment,
		models.ModuleHousingApplication,
	} {
		for status, state := range lifecycleStates {
			d.Register(module, status, entityStateHook(entities, state))
		}
	}
	return d
}

// Register installs a hook for the module and target status, replacing
// any previous one.
func (d *Dispatcher) Register(module models.ModuleType, status models.Status, hook Hook) {
	d.hooks[hookKey{module: module, status: status}] = hook
}

// Apply runs the hook registered for the protocol's module and the new
// status, if any. Hook errors are logged and counted, never returned: a
// failed side effect must not roll back the protocol mutation.
func (d *Dispatcher) Apply(ctx context.Context, protocol *models.Protocol, oldStatus, newStatus models.Status) {
	if protocol.ModuleType == "" {
		return
	}
	hook, ok := d.hooks[hookKey{module: protocol.ModuleType, status: newStatus}]
	if !ok {
		return
	}
	if err := hook(ctx, protocol, oldStatus, newStatus); err != nil {
		d.logger.ErrorContext(ctx, "module hook failed",
			"protocol_id", protocol.ID.String(),
			"module", string(protocol.ModuleType),
			"old_status", string(oldStatus),
			"new_status", string(newStatus),
			"error", err,
		)
		d.metrics.IncrementHookFailure(string(protocol.ModuleType), string(newStatus))
	}
}

func entityStateHook(entities store.EntityStore, state store.State) Hook {
	return func(ctx context.Context, protocol *models.Protocol, _, _ models.Status) error {
		_, err := entities.UpdateState(ctx, protocol.ModuleType, protocol.ID, state)
		return err
	}
}
