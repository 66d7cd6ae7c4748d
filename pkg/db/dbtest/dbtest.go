// Package dbtest opens a migrated Postgres pool for repository tests. Tests
// are skipped unless PULSEWATCH_TEST_DATABASE_URL is set.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"pulsewatch/config"
	"pulsewatch/pkg/db"
	"pulsewatch/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const EnvURL = "PULSEWATCH_TEST_DATABASE_URL"

// migrateLock serialises migrations across packages tested in parallel.
const migrateLock int64 = 0x70756c7365

// Pool connects to the test database and applies migrations. Rows are not
// truncated; tests scope their assertions to ids they created.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("%s not set", EnvURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectToDB(ctx, &config.DBConfig{
		URL:           url,
		MaxOpenConns:  4,
		HealthTimeout: 5 * time.Second,
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	_, err = conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrateLock)
	require.NoError(t, err)
	defer conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, migrateLock)

	require.NoError(t, db.Migrate(ctx, pool, logger.Nop()))
	return pool
}

// Endpoint inserts an owner and an active endpoint that foreign keys can
// point at.
func Endpoint(t testing.TB, pool *pgxpool.Pool) (ownerID, endpointID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	ownerID, endpointID = uuid.New(), uuid.New()

	_, err := pool.Exec(ctx, `INSERT INTO owners (id) VALUES ($1)`, ownerID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO endpoints (id, owner_id, url) VALUES ($1, $2, $3)`,
		endpointID, ownerID, "https://"+endpointID.String()+".example.com")
	require.NoError(t, err)
	return ownerID, endpointID
}
