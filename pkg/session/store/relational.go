package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/thumbgate/pkg/session"
)

// djangoSession maps Django's django_session table. The table belongs to
// the web application and is never migrated from here.
type djangoSession struct {
	SessionKey  string    `gorm:"column:session_key;primaryKey;size:40"`
	SessionData string    `gorm:"column:session_data;type:text;not null"`
	ExpireDate  time.Time `gorm:"column:expire_date;not null;index"`
}

func (djangoSession) TableName() string { return "django_session" }

// RelationalStore reads Django database sessions through GORM.
type RelationalStore struct {
	lookup
	db    *gorm.DB
	sqlDB *sql.DB
	pool  *pgxpool.Pool // nil for sqlite
	now   func() time.Time
}

// NewRelationalStore opens the configured database. Rows are keyed by the
// raw cookie value and their session_data goes through SignedEnvelope.
func NewRelationalStore(ctx context.Context, cfg *Config, codec session.Codec, m Metrics) (*RelationalStore, error) {
	s := &RelationalStore{
		lookup: lookup{
			backend: string(cfg.Type),
			codec:   session.SignedEnvelope{Inner: codec},
			metrics: m,
		},
		now: func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case TypePostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("invalid postgres configuration: %w", err)
		}
		poolCfg.MaxConns = cfg.Postgres.MaxConns

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		s.pool = pool
		dialector = postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)})

	case TypeSQLite:
		dialector = sqlite.Open(cfg.SQLite.Path + "?_pragma=busy_timeout(5000)")

	default:
		return nil, fmt.Errorf("unsupported relational store type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		s.closePool()
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		s.closePool()
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}

	s.db = db
	s.sqlDB = sqlDB
	return s, nil
}

func (s *RelationalStore) Backend() string { return s.backend }

func (s *RelationalStore) Resolve(ctx context.Context, cookie string) (string, error) {
	return s.resolve(ctx, cookie, s.fetcher(cookie))
}

func (s *RelationalStore) Connector(ctx context.Context, cookie string) (*session.Connector, error) {
	if cookie == "" {
		return nil, ErrNotFound
	}
	return s.connector(ctx, s.fetcher(cookie))
}

// fetcher reads one unexpired row on a dedicated connection which is
// released when the callback returns.
func (s *RelationalStore) fetcher(cookie string) fetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		var blob []byte
		err := s.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
			var rows []djangoSession
			res := tx.Where("session_key = ? AND expire_date > ?", cookie, s.now()).
				Limit(1).
				Find(&rows)
			if res.Error != nil {
				return res.Error
			}
			if len(rows) == 1 {
				blob = []byte(rows[0].SessionData)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return blob, nil
	}
}

func (s *RelationalStore) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *RelationalStore) Close() error {
	err := s.sqlDB.Close()
	s.closePool()
	return err
}

func (s *RelationalStore) closePool() {
	if s.pool != nil {
		s.pool.Close()
	}
}
