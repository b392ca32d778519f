// Package store resolves session cookies to OMERO remote session keys by
// reading the records OMERO.web (Django) keeps in its session backend.
//
// Stores are read-only. The web application owns the records and their
// expiry; a missing or undecodable record means "not authenticated".
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/internal/telemetry"
	"github.com/marmos91/thumbgate/pkg/session"
)

// ErrNotFound is returned by Connector when no record exists for a cookie.
var ErrNotFound = errors.New("session record not found")

// Store resolves a session cookie value to a remote session key.
type Store interface {
	// Resolve returns the remote session key for cookie. A missing or
	// undecodable record yields ("", nil). Errors are backend failures.
	Resolve(ctx context.Context, cookie string) (string, error)

	// Connector returns the full decoded record. It returns ErrNotFound for
	// a missing record and an error wrapping session.ErrDecode for an
	// undecodable one.
	Connector(ctx context.Context, cookie string) (*session.Connector, error)

	// Ping checks backend reachability.
	Ping(ctx context.Context) error

	// Backend names the variant ("redis", "postgres", "sqlite").
	Backend() string

	Close() error
}

// Metrics observes session lookups. A nil Metrics disables collection.
type Metrics interface {
	ObserveLookup(backend, result string, duration time.Duration)
}

// Lookup results
const (
	ResultHit         = "hit"
	ResultMiss        = "miss"
	ResultUndecodable = "undecodable"
	ResultError       = "error"
)

// KeyFormat is Django's versioned cache key layout for cached sessions:
// "<prefix>:<version>:django.contrib.sessions.cache<cookie>".
const KeyFormat = "%s:%d:django.contrib.sessions.cache%s"

// CacheKey derives the cache key a Django cache session backend stores
// the record under.
func CacheKey(prefix string, version int, cookie string) string {
	return fmt.Sprintf(KeyFormat, prefix, version, cookie)
}

// New builds the Store selected by cfg.Type.
func New(ctx context.Context, cfg *Config, m Metrics) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session store configuration: %w", err)
	}

	codec, err := session.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeRedis:
		return NewRedisStore(cfg, codec, m)
	case TypePostgres, TypeSQLite:
		return NewRelationalStore(ctx, cfg, codec, m)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
}

// fetchFunc reads the raw record. It returns (nil, nil) on a miss.
type fetchFunc func(ctx context.Context) ([]byte, error)

// lookup is shared by every variant: it fetches, decodes and accounts for
// the outcome so that misses and decode failures stay distinguishable.
type lookup struct {
	backend string
	codec   session.Codec
	metrics Metrics
}

func (l *lookup) connector(ctx context.Context, fetch fetchFunc) (*session.Connector, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, l.backend)
	defer span.End()

	start := time.Now()
	blob, err := fetch(ctx)
	if err != nil {
		l.observe(ctx, ResultError, start)
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "session backend lookup failed",
			logger.KeyBackend, l.backend, logger.Err(err))
		return nil, fmt.Errorf("%s session lookup: %w", l.backend, err)
	}
	if blob == nil {
		l.observe(ctx, ResultMiss, start)
		logger.DebugCtx(ctx, "session record not found", logger.KeyBackend, l.backend)
		return nil, ErrNotFound
	}

	conn, err := l.codec.Decode(blob)
	if err != nil {
		l.observe(ctx, ResultUndecodable, start)
		logger.WarnCtx(ctx, "session record undecodable",
			logger.KeyBackend, l.backend,
			"codec", l.codec.Name(),
			logger.KeyBytes, len(blob),
			logger.Err(err))
		return nil, err
	}

	l.observe(ctx, ResultHit, start)
	logger.DebugCtx(ctx, "session record resolved",
		logger.KeyBackend, l.backend, logger.SessionKey(conn.SessionKey))
	return conn, nil
}

// resolve folds misses and decode failures into an empty key.
func (l *lookup) resolve(ctx context.Context, cookie string, fetch fetchFunc) (string, error) {
	if cookie == "" {
		return "", nil
	}
	conn, err := l.connector(ctx, fetch)
	switch {
	case err == nil:
		return conn.SessionKey, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, session.ErrDecode):
		return "", nil
	default:
		return "", err
	}
}

func (l *lookup) observe(ctx context.Context, result string, start time.Time) {
	telemetry.SetAttributes(ctx, telemetry.LookupResult(result))
	if l.metrics != nil {
		l.metrics.ObserveLookup(l.backend, result, time.Since(start))
	}
}
