package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"civicdesk/internal/protocol/metrics"
	dErrors "civicdesk/pkg/domain-errors"
	txcontext "civicdesk/pkg/platform/tx"
	"civicdesk/pkg/requestcontext"
)

// Postgres allocates numbers by locking the most recent protocol row. When
// the context carries a transaction the allocation joins it, so the number
// and the protocol insert commit or roll back together; otherwise it opens
// its own serializable transaction.
type Postgres struct {
	db      *sql.DB
	policy  ResetPolicy
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

// PostgresOption configures a Postgres generator.
type PostgresOption func(*Postgres)

// WithResetPolicy overrides the default yearly counter reset.
func WithResetPolicy(policy ResetPolicy) PostgresOption {
	return func(g *Postgres) {
		if policy.IsValid() {
			g.policy = policy
		}
	}
}

// WithMetrics sets the sink for contention counts.
func WithMetrics(m *metrics.Metrics) PostgresOption {
	return func(g *Postgres) {
		g.metrics = m
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	g := &Postgres{
		db:     db,
		policy: ResetYearly,
		tracer: otel.Tracer("civicdesk/sequence"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Postgres) Next(ctx context.Context) (string, error) {
	ctx, span := g.tracer.Start(ctx, "sequence.Next")
	defer span.End()

	if _, ok := txcontext.From(ctx); ok {
		number, err := g.allocate(ctx)
		if err != nil {
			return "", g.classify(err)
		}
		span.SetAttributes(attribute.String("protocol.number", number))
		return number, nil
	}

	sqlTx, err := g.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", fmt.Errorf("begin sequence tx: %w", err)
	}
	number, err := g.allocate(txcontext.With(ctx, sqlTx))
	if err != nil {
		_ = sqlTx.Rollback()
		return "", g.classify(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return "", g.classify(fmt.Errorf("commit sequence tx: %w", err))
	}
	span.SetAttributes(attribute.String("protocol.number", number))
	return number, nil
}

// allocate locks the newest protocol row and derives the next number from
// it. The row lock serializes concurrent creations; the first allocation
// ever sees no row and starts at 1.
func (g *Postgres) allocate(ctx context.Context) (string, error) {
	year := requestcontext.Now(ctx).Year()

	var last string
	err := txcontext.QuerierFor(ctx, g.db).QueryRowContext(ctx,
		`SELECT number FROM protocols ORDER BY created_at DESC, number DESC LIMIT 1 FOR UPDATE`,
	).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lock last protocol: %w", err)
	}

	counter := 1
	if err == nil {
		lastYear, lastCounter, parseErr := parseNumber(last)
		if parseErr != nil {
			return "", parseErr
		}
		if g.policy == ResetNever || lastYear == year {
			counter = lastCounter + 1
		}
	}
	return fmt.Sprintf("%04d-%06d", year, counter), nil
}

func (g *Postgres) classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "lock_not_available", "serialization_failure", "deadlock_detected":
			g.metrics.IncrementSequenceContention()
			return dErrors.Wrap(err, dErrors.CodeContention, "sequence allocation contended")
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "sequence allocation timed out")
	}
	return err
}

func parseNumber(number string) (year, counter int, err error) {
	prefix, suffix, ok := strings.Cut(number, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed protocol number %q", number)
	}
	year, err = strconv.Atoi(prefix)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed protocol number %q", number)
	}
	counter, err = strconv.Atoi(suffix)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed protocol number %q", number)
	}
	return year, counter, nil
}
