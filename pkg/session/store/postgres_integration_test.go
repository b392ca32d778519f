//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/thumbgate/pkg/session"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("omero_web"),
		tcpostgres.WithUsername("omero"),
		tcpostgres.WithPassword("omero"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &Config{
		Type: TypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "omero_web",
			User:     "omero",
			Password: "omero",
		},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	seed, err := gorm.Open(postgres.Open(cfg.Postgres.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, seed.AutoMigrate(&djangoSession{}))
	require.NoError(t, seed.Create(&djangoSession{
		SessionKey:  "pg-cookie",
		SessionData: djangoSessionData("pg-remote-key"),
		ExpireDate:  time.Now().UTC().Add(time.Hour),
	}).Error)

	s, err := NewRelationalStore(ctx, cfg, session.PickleCodec{}, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))

	key, err := s.Resolve(ctx, "pg-cookie")
	require.NoError(t, err)
	assert.Equal(t, "pg-remote-key", key)

	key, err = s.Resolve(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, key)
}
