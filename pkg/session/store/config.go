package store

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/marmos91/thumbgate/pkg/session"
)

// Type selects the session backend.
type Type string

const (
	// TypeRedis reads Django cache sessions from Redis.
	TypeRedis Type = "redis"

	// TypePostgres reads the django_session table from PostgreSQL.
	TypePostgres Type = "postgres"

	// TypeSQLite reads the django_session table from a SQLite file.
	TypeSQLite Type = "sqlite"
)

// Config selects and configures the session backend.
type Config struct {
	// Type is one of redis, postgres, sqlite
	Type Type `mapstructure:"type" validate:"required,oneof=redis postgres sqlite" yaml:"type"`

	// Codec names the serializer the web application uses: pickle or json
	Codec string `mapstructure:"codec" validate:"omitempty,oneof=pickle json" yaml:"codec"`

	// KeyPrefix and KeyVersion mirror Django's CACHES KEY_PREFIX and VERSION.
	// Only used by cache-backed stores.
	KeyPrefix  string `mapstructure:"key_prefix" yaml:"key_prefix"`
	KeyVersion int    `mapstructure:"key_version" validate:"gte=0" yaml:"key_version"`

	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	// URI is a redis:// or rediss:// URL
	URI string `mapstructure:"uri" yaml:"uri"`

	// Password overrides the URI password when set
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// DB overrides the URI database when non-zero
	DB int `mapstructure:"db" validate:"gte=0" yaml:"db"`

	PoolSize    int           `mapstructure:"pool_size" validate:"gte=0" yaml:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// PostgresConfig configures the PostgreSQL pool.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full" yaml:"sslmode"`

	// MaxConns bounds the pool; each lookup holds one connection
	MaxConns int32 `mapstructure:"max_conns" validate:"gte=0" yaml:"max_conns"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

// SQLiteConfig configures a SQLite-backed session table.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeRedis
	}
	c.Type = Type(strings.ToLower(string(c.Type)))

	if c.Codec == "" {
		c.Codec = session.CodecPickle
	}
	if c.KeyVersion == 0 {
		c.KeyVersion = 1
	}

	switch c.Type {
	case TypeRedis:
		if c.Redis.URI == "" {
			c.Redis.URI = "redis://localhost:6379/0"
		}
		if c.Redis.DialTimeout == 0 {
			c.Redis.DialTimeout = 5 * time.Second
		}
	case TypePostgres:
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxConns == 0 {
			c.Postgres.MaxConns = 10
		}
	}
}

// Validate checks the fields the selected backend needs.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeRedis:
		if c.Redis.URI == "" {
			return fmt.Errorf("redis uri is required")
		}
	case TypePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	case TypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported session store type: %s", c.Type)
	}
	return nil
}
