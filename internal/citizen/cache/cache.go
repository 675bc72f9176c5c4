// Package cache wraps a citizen directory with a Redis read-through cache.
// Document and identity lookups hit the directory on every protocol creation
// with a link config, so positive lookups are cached for a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"civicdesk/internal/citizen/models"
	"civicdesk/internal/citizen/store"
	id "civicdesk/pkg/domain"
)

const (
	citizenIDKeyPrefix  = "citizen:id:"
	citizenDocKeyPrefix = "citizen:doc:"

	// DefaultTTL bounds staleness of cached citizen records.
	DefaultTTL = 5 * time.Minute
)

// Directory is a read-through cache over an inner citizen directory.
// Cache failures are logged and degrade to direct lookups; a missing or
// unreachable Redis never fails a resolution. Name+birth-date lookups are
// not cached: they are fuzzy and only used as a legacy fallback.
type Directory struct {
	inner  store.Directory
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithTTL overrides the cache entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for cache degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New wraps inner with a Redis cache. A nil client disables caching and
// every call passes straight through.
func New(inner store.Directory, client *redis.Client, opts ...Option) *Directory {
	d := &Directory{
		inner:  inner,
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

func (d *Directory) FindByID(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error) {
	key := citizenIDKeyPrefix + citizenID.String()
	if c, ok := d.get(ctx, key); ok {
		return c, nil
	}
	c, err := d.inner.FindByID(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	d.set(ctx, key, c)
	return c, nil
}

func (d *Directory) FindByDocument(ctx context.Context, document string) (*models.Citizen, error) {
	document = models.NormalizeDocument(document)
	key := citizenDocKeyPrefix + document
	if document != "" {
		if c, ok := d.get(ctx, key); ok {
			return c, nil
		}
	}
	c, err := d.inner.FindByDocument(ctx, document)
	if err != nil {
		return nil, err
	}
	if document != "" {
		d.set(ctx, key, c)
	}
	return c, nil
}

func (d *Directory) FindByNameAndBirthDate(ctx context.Context, name string, birthDate time.Time) (*models.Citizen, error) {
	return d.inner.FindByNameAndBirthDate(ctx, name, birthDate)
}

// Invalidate drops cached entries for a citizen after an upstream update.
func (d *Directory) Invalidate(ctx context.Context, citizenID id.CitizenID, document string) {
	if d.client == nil {
		return
	}
	keys := []string{citizenIDKeyPrefix + citizenID.String()}
	if doc := models.NormalizeDocument(document); doc != "" {
		keys = append(keys, citizenDocKeyPrefix+doc)
	}
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		d.logger.WarnContext(ctx, "citizen cache invalidation failed", "error", err)
	}
}

func (d *Directory) get(ctx context.Context, key string) (*models.Citizen, bool) {
	if d.client == nil {
		return nil, false
	}
	raw, err := d.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		d.logger.WarnContext(ctx, "citizen cache read failed", "error", err)
		return nil, false
	}
	var c models.Citizen
	if err := json.Unmarshal(raw, &c); err != nil {
		d.logger.WarnContext(ctx, "citizen cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &c, true
}

func (d *Directory) set(ctx context.Context, key string, c *models.Citizen) {
	if d.client == nil {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := d.client.Set(ctx, key, raw, d.ttl).Err(); err != nil {
		d.logger.WarnContext(ctx, "citizen cache write failed", "error", err)
	}
}
