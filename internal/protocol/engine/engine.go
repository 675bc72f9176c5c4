// Package engine is the single mutation path for protocol status. It
// enforces the transition authority, keeps protocol, history and module
// side effects in one atomic unit, and emits lifecycle events after the
// unit committed.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"civicdesk/internal/module/dispatcher"
	"civicdesk/internal/notify"
	"civicdesk/internal/protocol/metrics"
	"civicdesk/internal/protocol/models"
	"civicdesk/internal/protocol/policy"
	historystore "civicdesk/internal/protocol/store/history"
	protocolstore "civicdesk/internal/protocol/store/protocol"
	id "civicdesk/pkg/domain"
	dErrors "civicdesk/pkg/domain-errors"
	"civicdesk/pkg/platform/sentinel"
	txcontext "civicdesk/pkg/platform/tx"
	"civicdesk/pkg/requestcontext"
)

// UpdateStatusInput describes one requested transition.
type UpdateStatusInput struct {
	ProtocolID id.ProtocolID
	NewStatus  models.Status
	Comment    string
	ActorID    id.UserID
	ActorRole  id.ActorRole
	Metadata   map[string]string
}

// TransitionResult reports what a transition did. NoOp is set when the
// protocol already carried the requested status; nothing was written.
type TransitionResult struct {
	Protocol  *models.Protocol
	OldStatus models.Status
	NewStatus models.Status
	HistoryID id.HistoryID
	NoOp      bool
}

// Engine applies status transitions. A nil db runs the unit of work
// without a transaction, for the in-memory wiring profile.
type Engine struct {
	db         *sql.DB
	protocols  protocolstore.Store
	history    historystore.Store
	matrix     *policy.Matrix
	dispatcher *dispatcher.Dispatcher
	notifier   notify.Notifier
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithDB enables transactional units of work on the given pool.
func WithDB(db *sql.DB) Option {
	return func(e *Engine) { e.db = db }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithNotifier sets the post-commit event publisher.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func New(protocols protocolstore.Store, history historystore.Store, matrix *policy.Matrix, d *dispatcher.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		protocols:  protocols,
		history:    history,
		matrix:     matrix,
		dispatcher: d,
		notifier:   notify.NewLog(slog.Default()),
		logger:     slog.Default(),
		tracer:     otel.Tracer("civicdesk/engine"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// transitionAttempts bounds how often a transition is re-validated after
// losing a write race to a concurrent transition.
const transitionAttempts = 3

// UpdateStatus validates and applies one transition. Order: load, no-op
// short circuit, terminal check, authority matrix, completion gate, then
// the atomic unit (status + history + module side effects). The status
// write is guarded by the status the verdict was computed against; when a
// concurrent transition wins the race, the whole decision reruns on the
// committed state. The lifecycle event goes out only after the unit
// committed.
func (e *Engine) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*TransitionResult, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveUpdateLatency(time.Since(start)) }()

	ctx, span := e.tracer.Start(ctx, "engine.UpdateStatus",
		trace.WithAttributes(
			attribute.String("protocol.id", input.ProtocolID.String()),
			attribute.String("protocol.new_status", string(input.NewStatus)),
			attribute.String("actor.role", string(input.ActorRole)),
		))
	defer span.End()

	if !input.NewStatus.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported status: %q", input.NewStatus)
	}
	if !input.ActorRole.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported actor role: %q", input.ActorRole)
	}

	var (
		result *TransitionResult
		err    error
	)
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		result, err = e.applyTransition(ctx, input)
		if !errors.Is(err, sentinel.ErrConflict) {
			return result, err
		}
	}
	return nil, dErrors.Wrap(err, dErrors.CodeContention,
		"protocol status changed concurrently; retry")
}

// applyTransition runs one full decide-and-write cycle. sentinel.ErrConflict
// (wrapped) means a concurrent transition moved the status between the load
// and the write; the caller re-decides on fresh state.
func (e *Engine) applyTransition(ctx context.Context, input UpdateStatusInput) (*TransitionResult, error) {
	loaded, err := e.load(ctx, input.ProtocolID)
	if err != nil {
		return nil, err
	}
	protocol := &loaded.Protocol
	current := protocol.Status

	if current == input.NewStatus {
		return &TransitionResult{
			Protocol:  protocol,
			OldStatus: current,
			NewStatus: current,
			NoOp:      true,
		}, nil
	}

	if err := e.authorize(current, input.NewStatus, input.ActorRole); err != nil {
		return nil, err
	}
	if input.NewStatus == models.StatusCompleted &&
		!e.matrix.CompletionAllowed(loaded.Service.ServiceType, current) {
		e.metrics.IncrementDenial("completion_gate")
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition,
			"service requires approval before completion").
			WithMeta(transitionMeta(current, input.NewStatus, input.ActorRole))
	}

	now := requestcontext.Now(ctx)
	entry := e.historyEntry(protocol.ID, current, input, now)
	change := protocolstore.StatusChange{
		ExpectedStatus: current,
		NewStatus:      input.NewStatus,
		UpdatedAt:      now,
	}
	if e.matrix.IsTerminal(input.NewStatus) {
		change.ConcludedAt = &now
	}

	err = e.inTx(ctx, func(ctx context.Context) error {
		if err := e.protocols.UpdateStatus(ctx, protocol.ID, change); err != nil {
			return fmt.Errorf("apply status change: %w", err)
		}
		if err := e.history.Append(ctx, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		e.dispatcher.Apply(ctx, protocol, current, input.NewStatus)
		return nil
	})
	if err != nil {
		return nil, err
	}

	protocol.Status = input.NewStatus
	protocol.UpdatedAt = now
	protocol.ConcludedAt = change.ConcludedAt
	e.metrics.IncrementTransition(string(current), string(input.NewStatus), string(input.ActorRole))

	e.publish(ctx, notify.Event{
		Kind:       notify.EventStatusChanged,
		ProtocolID: protocol.ID,
		Number:     protocol.Number,
		CitizenID:  protocol.CitizenID,
		OldStatus:  current,
		NewStatus:  input.NewStatus,
		ActorRole:  input.ActorRole,
		Comment:    entry.Comment,
		OccurredAt: now,
	})

	return &TransitionResult{
		Protocol:  protocol,
		OldStatus: current,
		NewStatus: input.NewStatus,
		HistoryID: entry.ID,
	}, nil
}

// CanCitizenCancel reports whether the protocol is still in a state the
// owning citizen may cancel from. Used by the self-service route as a
// pre-check; the engine call remains the authority.
func (e *Engine) CanCitizenCancel(ctx context.Context, protocolID id.ProtocolID) (bool, error) {
	protocol, err := e.get(ctx, protocolID)
	if err != nil {
		return false, err
	}
	return e.matrix.IsAllowed(protocol.Status, models.StatusCancelled, id.RoleCitizen), nil
}

// AddComment appends a comment-only history entry. No status fields are
// touched.
func (e *Engine) AddComment(ctx context.Context, protocolID id.ProtocolID, comment string, actorID id.UserID, actorRole id.ActorRole) (*models.HistoryEntry, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "comment cannot be empty")
	}
	if _, err := e.get(ctx, protocolID); err != nil {
		return nil, err
	}
	entry := &models.HistoryEntry{
		ID:         id.NewHistoryID(),
		ProtocolID: protocolID,
		Action:     models.ActionComment,
		Comment:    comment,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Timestamp:  requestcontext.Now(ctx),
	}
	if err := e.history.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append comment: %w", err)
	}
	return entry, nil
}

// History returns a protocol's history newest first.
func (e *Engine) History(ctx context.Context, protocolID id.ProtocolID) ([]*models.HistoryEntry, error) {
	if _, err := e.get(ctx, protocolID); err != nil {
		return nil, err
	}
	entries, err := e.history.ListByProtocol(ctx, protocolID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

func (e *Engine) load(ctx context.Context, protocolID id.ProtocolID) (*protocolstore.Loaded, error) {
	loaded, err := e.protocols.GetLoaded(ctx, protocolID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "protocol %s not found", protocolID)
	}
	if err != nil {
		return nil, fmt.Errorf("load protocol: %w", err)
	}
	return loaded, nil
}

func (e *Engine) get(ctx context.Context, protocolID id.ProtocolID) (*models.Protocol, error) {
	protocol, err := e.protocols.Get(ctx, protocolID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "protocol %s not found", protocolID)
	}
	if err != nil {
		return nil, fmt.Errorf("load protocol: %w", err)
	}
	return protocol, nil
}

// authorize applies the terminal rule and the transition matrix. A denial
// that staff would have been granted reads as a permission problem for
// the caller's role; one nobody short of an administrator could perform
// reads as an invalid transition.
func (e *Engine) authorize(current, next models.Status, role id.ActorRole) error {
	if !role.IsAdministrative() && e.matrix.IsTerminal(current) {
		e.metrics.IncrementDenial("terminal")
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"protocol is in terminal status %s", current).
			WithMeta(transitionMeta(current, next, role))
	}
	if e.matrix.IsAllowed(current, next, role) {
		return nil
	}
	e.metrics.IncrementDenial("matrix")
	if e.matrix.IsAllowed(current, next, id.RoleStaff) {
		return dErrors.Newf(dErrors.CodePermissionDenied,
			"role %s may not move a protocol from %s to %s", role, current, next).
			WithMeta(transitionMeta(current, next, role))
	}
	return dErrors.Newf(dErrors.CodeInvalidTransition,
		"transition %s to %s is not allowed", current, next).
		WithMeta(transitionMeta(current, next, role))
}

func (e *Engine) historyEntry(protocolID id.ProtocolID, current models.Status, input UpdateStatusInput, now time.Time) *models.HistoryEntry {
	comment := input.Comment
	if comment == "" {
		comment = e.matrix.DefaultComment(input.NewStatus)
	}
	return &models.HistoryEntry{
		ID:         id.NewHistoryID(),
		ProtocolID: protocolID,
		Action:     e.matrix.ActionFor(input.NewStatus),
		OldStatus:  current,
		NewStatus:  input.NewStatus,
		Comment:    comment,
		ActorID:    input.ActorID,
		ActorRole:  input.ActorRole,
		Metadata:   input.Metadata,
		Timestamp:  now,
	}
}

// inTx runs fn in a transaction carried through context. When the context
// already carries one, or no pool is configured, fn joins what is there.
func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.db == nil {
		return fn(ctx)
	}
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.With(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, event notify.Event) {
	if err := e.notifier.Publish(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "lifecycle event publish failed",
			"protocol_id", event.ProtocolID.String(),
			"kind", string(event.Kind),
			"error", err,
		)
	}
}

func transitionMeta(current, next models.Status, role id.ActorRole) map[string]string {
	return map[string]string{
		"current_status":   string(current),
		"attempted_status": string(next),
		"actor_role":       string(role),
	}
}
