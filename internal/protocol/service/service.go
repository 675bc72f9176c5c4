// Package service implements protocol creation and the read surface. All
// status changes go through the engine; this layer never mutates status
// directly.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"civicdesk/internal/catalog"
	citizenstore "civicdesk/internal/citizen/store"
	linkmodels "civicdesk/internal/citizenlink/models"
	linkstore "civicdesk/internal/citizenlink/store"
	"civicdesk/internal/notify"
	"civicdesk/internal/protocol/metrics"
	"civicdesk/internal/protocol/models"
	"civicdesk/internal/protocol/policy"
	"civicdesk/internal/protocol/sequence"
	historystore "civicdesk/internal/protocol/store/history"
	protocolstore "civicdesk/internal/protocol/store/protocol"
	id "civicdesk/pkg/domain"
	dErrors "civicdesk/pkg/domain-errors"
	"civicdesk/pkg/platform/sentinel"
	txcontext "civicdesk/pkg/platform/tx"
	"civicdesk/pkg/requestcontext"
)

// CreateInput describes one protocol creation request.
type CreateInput struct {
	ServiceID   id.ServiceID
	CitizenID   id.CitizenID
	Description string
	Payload     models.Payload
	CreatedByID id.UserID // zero when the citizen self-submitted
	ActorRole   id.ActorRole
}

// Resolver is the citizen link resolution step, satisfied by
// citizenlink/resolver.
type Resolver interface {
	Resolve(ctx context.Context, cfgs []linkmodels.LinkConfig, payload map[string]any, submitterID id.CitizenID) ([]*linkmodels.Link, error)
}

// Service creates protocols and serves reads. A nil db runs creations
// without a transaction, for the in-memory wiring profile.
type Service struct {
	db        *sql.DB
	catalog   catalog.Store
	citizens  citizenstore.Directory
	protocols protocolstore.Store
	links     linkstore.Store
	history   historystore.Store
	sequence  sequence.Generator
	resolver  Resolver
	matrix    *policy.Matrix
	notifier  notify.Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithDB enables transactional creations on the given pool.
func WithDB(db *sql.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNotifier sets the post-commit event publisher.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func New(
	cat catalog.Store,
	citizens citizenstore.Directory,
	protocols protocolstore.Store,
	links linkstore.Store,
	history historystore.Store,
	gen sequence.Generator,
	res Resolver,
	matrix *policy.Matrix,
	opts ...Option,
) *Service {
	s := &Service{
		catalog:   cat,
		citizens:  citizens,
		protocols: protocols,
		links:     links,
		history:   history,
		sequence:  gen,
		resolver:  res,
		matrix:    matrix,
		notifier:  notify.NewLog(slog.Default()),
		logger:    slog.Default(),
		tracer:    otel.Tracer("civicdesk/protocol"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create opens a protocol: looks the service up, resolves declared citizen
// links, then writes protocol, links and the initial history entry in one
// transaction. The sequence allocation joins that transaction, so a failed
// creation never burns a number.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Protocol, error) {
	ctx, span := s.tracer.Start(ctx, "protocol.Create")
	defer span.End()

	service, err := s.catalog.Get(ctx, input.ServiceID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "service %s not found", input.ServiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("look up service: %w", err)
	}
	if !service.IsActive {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "service %s is not accepting requests", service.Name)
	}

	citizen, err := s.citizens.FindByID(ctx, input.CitizenID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "citizen %s not found", input.CitizenID)
	}
	if err != nil {
		return nil, fmt.Errorf("look up citizen: %w", err)
	}

	links, err := s.resolveLinks(ctx, service, input)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	protocol := &models.Protocol{
		ID:           id.NewProtocolID(),
		Title:        service.Name,
		Description:  input.Description,
		Status:       models.StatusLinked,
		CitizenID:    citizen.ID,
		ServiceID:    service.ID,
		DepartmentID: service.DepartmentID,
		ServiceType:  service.ServiceType,
		ModuleType:   service.ModuleType,
		CustomData:   input.Payload,
		CreatedByID:  input.CreatedByID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		number, err := s.sequence.Next(ctx)
		if err != nil {
			return fmt.Errorf("allocate number: %w", err)
		}
		protocol.Number = number

		if err := s.protocols.Create(ctx, protocol); err != nil {
			return fmt.Errorf("insert protocol: %w", err)
		}
		for _, link := range links {
			link.ID = id.NewLinkID()
			link.ProtocolID = protocol.ID
			link.CreatedAt = now
			if err := s.links.Create(ctx, link); err != nil {
				return fmt.Errorf("insert citizen link: %w", err)
			}
		}
		entry := &models.HistoryEntry{
			ID:         id.NewHistoryID(),
			ProtocolID: protocol.ID,
			Action:     models.ActionCreated,
			NewStatus:  models.StatusLinked,
			Comment:    s.matrix.DefaultComment(models.StatusLinked),
			ActorID:    input.CreatedByID,
			ActorRole:  input.ActorRole,
			Timestamp:  now,
		}
		if err := s.history.Append(ctx, entry); err != nil {
			return fmt.Errorf("append creation history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classifyCreate(err)
	}

	s.metrics.IncrementCreated(string(protocol.ModuleType))
	if err := s.notifier.Publish(ctx, notify.Event{
		Kind:       notify.EventProtocolCreated,
		ProtocolID: protocol.ID,
		Number:     protocol.Number,
		CitizenID:  protocol.CitizenID,
		NewStatus:  models.StatusLinked,
		ActorRole:  input.ActorRole,
		OccurredAt: now,
	}); err != nil {
		s.logger.ErrorContext(ctx, "creation event publish failed",
			"protocol_id", protocol.ID.String(), "error", err)
	}

	return protocol, nil
}

// resolveLinks decodes the service's link settings and runs the resolver.
// Services without settings, or with links disabled, resolve to none.
func (s *Service) resolveLinks(ctx context.Context, service *models.Service, input CreateInput) ([]*linkmodels.Link, error) {
	if len(service.LinkConfig) == 0 {
		return nil, nil
	}
	var settings linkmodels.LinkSettings
	if err := json.Unmarshal(service.LinkConfig, &settings); err != nil {
		return nil, fmt.Errorf("decode service link settings: %w", err)
	}
	if !settings.Enabled || len(settings.Links) == 0 {
		return nil, nil
	}
	links, err := s.resolver.Resolve(ctx, settings.Links, input.Payload, input.CitizenID)
	if err != nil {
		return nil, err
	}
	return links, nil
}

// Get returns a protocol by id.
func (s *Service) Get(ctx context.Context, protocolID id.ProtocolID) (*models.Protocol, error) {
	protocol, err := s.protocols.Get(ctx, protocolID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "protocol %s not found", protocolID)
	}
	if err != nil {
		return nil, fmt.Errorf("load protocol: %w", err)
	}
	return protocol, nil
}

// GetByNumber returns a protocol by its user-visible number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*models.Protocol, error) {
	if !models.NumberPattern.MatchString(number) {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "malformed protocol number: %q", number)
	}
	protocol, err := s.protocols.GetByNumber(ctx, number)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "protocol %s not found", number)
	}
	if err != nil {
		return nil, fmt.Errorf("load protocol: %w", err)
	}
	return protocol, nil
}

// ListByCitizen returns a citizen's protocols newest first.
func (s *Service) ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.Protocol, error) {
	protocols, err := s.protocols.ListByCitizen(ctx, citizenID)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	return protocols, nil
}

// Links returns a protocol's citizen links oldest first.
func (s *Service) Links(ctx context.Context, protocolID id.ProtocolID) ([]*linkmodels.Link, error) {
	if _, err := s.Get(ctx, protocolID); err != nil {
		return nil, err
	}
	links, err := s.links.ListByProtocol(ctx, protocolID)
	if err != nil {
		return nil, fmt.Errorf("list citizen links: %w", err)
	}
	return links, nil
}

// UpdateLink applies a partial update to a link outside the engine.
func (s *Service) UpdateLink(ctx context.Context, linkID id.LinkID, update linkstore.LinkUpdate) (*linkmodels.Link, error) {
	link, err := s.links.Update(ctx, linkID, update)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "citizen link %s not found", linkID)
	}
	if err != nil {
		return nil, fmt.Errorf("update citizen link: %w", err)
	}
	return link, nil
}

// DeleteLink removes a link.
func (s *Service) DeleteLink(ctx context.Context, linkID id.LinkID) error {
	err := s.links.Delete(ctx, linkID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "citizen link %s not found", linkID)
	}
	if err != nil {
		return fmt.Errorf("delete citizen link: %w", err)
	}
	return nil
}

// classifyCreate turns the write races a serializable creation can lose
// into retryable contention. A duplicate number means another creation won
// the same slot; serialization and lock failures can surface as late as the
// commit, outside the sequence generator's own classification. Errors that
// already carry a code pass through.
func classifyCreate(err error) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeContention, "protocol number already taken")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "serialization_failure", "deadlock_detected", "lock_not_available":
			return dErrors.Wrap(err, dErrors.CodeContention, "protocol creation contended")
		}
	}
	return err
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
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
