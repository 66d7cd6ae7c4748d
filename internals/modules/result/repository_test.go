package result_test

import (
	"context"
	"testing"
	"time"

	"pulsewatch/internals/modules/netgate"
	"pulsewatch/internals/modules/probe"
	"pulsewatch/internals/modules/result"
	"pulsewatch/internals/modules/rootcause"
	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/db/dbtest"
	"pulsewatch/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestRepositoryRoundTrip(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := result.NewRepository(pool, logger.Nop())
	ctx := context.Background()
	_, endpointID := dbtest.Endpoint(t, pool)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	full := result.Record{
		ID:         uuid.New(),
		EndpointID: endpointID,
		CheckedAt:  at,
		Outcome: probe.Outcome{
			StatusCode: ptr(503),
			Up:         false,
			Phases: probe.Phases{
				DNSMs: ptr(1.5), TCPMs: ptr(2.5), TLSMs: ptr(3.5),
				ServerMs: ptr(40.0), DownloadMs: ptr(5.0), TotalMs: ptr(52.5),
			},
			ContentType: "text/html",
			URLType:     probe.URLTypeWebsite,
			BodySnippet: "<html>maintenance</html>",
			Certificate: &probe.Certificate{Subject: "CN=example.com", Issuer: "CN=R3", Cipher: "TLS_AES_128_GCM_SHA256"},
			Error:       "HTTP 503",
		},
		RootCause:  rootcause.Server5xx,
		Skipped:    true,
		SkipReason: rootcause.SkipReasonNetwork,
		Network:    &netgate.Status{NetworkUp: false, Error: "network is unreachable", TestURL: netgate.DefaultTestURL, CheckedAt: at},
	}
	bare := result.Record{ID: uuid.New(), EndpointID: endpointID, CheckedAt: at.Add(time.Minute), Outcome: probe.Outcome{Up: true}}

	require.NoError(t, repo.Append(ctx, full))
	require.NoError(t, repo.Append(ctx, bare))
	require.NoError(t, repo.Append(ctx, full), "replaying a record is a no-op")

	n, err := repo.Count(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recent, err := repo.Recent(ctx, endpointID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, bare.ID, recent[0].ID, "newest first")

	got := recent[1]
	assert.Equal(t, full.ID, got.ID)
	assert.Equal(t, full.EndpointID, got.EndpointID)
	assert.True(t, full.CheckedAt.Equal(got.CheckedAt))
	assert.Equal(t, full.StatusCode, got.StatusCode)
	assert.Equal(t, full.Up, got.Up)
	assert.Equal(t, full.Phases, got.Phases)
	assert.Equal(t, full.ContentType, got.ContentType)
	assert.Equal(t, full.URLType, got.URLType)
	assert.Equal(t, full.BodySnippet, got.BodySnippet)
	assert.Equal(t, full.Certificate, got.Certificate)
	assert.Equal(t, full.Error, got.Error)
	assert.Equal(t, full.RootCause, got.RootCause)
	assert.Equal(t, full.Skipped, got.Skipped)
	assert.Equal(t, full.SkipReason, got.SkipReason)
	require.NotNil(t, got.Network)
	assert.Equal(t, full.Network.Error, got.Network.Error)
	assert.False(t, got.Network.Reachable())

	assert.Nil(t, recent[0].StatusCode)
	assert.Nil(t, recent[0].Certificate)
	assert.Nil(t, recent[0].Phases.TotalMs)
	assert.Empty(t, recent[0].Error)

	since, err := repo.Since(ctx, endpointID, at.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, bare.ID, since[0].ID)
}

func TestRepositoryStoresBinarySnippet(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := result.NewRepository(pool, logger.Nop())
	ctx := context.Background()
	_, endpointID := dbtest.Endpoint(t, pool)

	body := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\xff\xfe")
	rec := result.Record{
		ID:         uuid.New(),
		EndpointID: endpointID,
		CheckedAt:  time.Now().UTC(),
		Outcome:    probe.Outcome{Up: true, URLType: probe.URLTypeImage, BodySnippet: probe.Snippet(body, len(body))},
	}
	require.NoError(t, repo.Append(ctx, rec))

	got, err := repo.Recent(ctx, endpointID, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].BodySnippet, "PNG")
}

func TestRepositoryRejectsNUL(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := result.NewRepository(pool, logger.Nop())
	_, endpointID := dbtest.Endpoint(t, pool)

	rec := result.Record{
		ID:         uuid.New(),
		EndpointID: endpointID,
		CheckedAt:  time.Now().UTC(),
		Outcome:    probe.Outcome{BodySnippet: "a\x00b"},
	}
	err := repo.Append(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.InvalidInput))
	assert.False(t, apperror.Retryable(err), "a row postgres refuses is not retried")
}

func TestRepositoryDeleteBefore(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := result.NewRepository(pool, logger.Nop())
	ctx := context.Background()
	_, endpointID := dbtest.Endpoint(t, pool)

	old := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, repo.Append(ctx, result.Record{
			ID: uuid.New(), EndpointID: endpointID, CheckedAt: old.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.Append(ctx, result.Record{ID: uuid.New(), EndpointID: endpointID, CheckedAt: time.Now().UTC()}))

	deleted, err := repo.DeleteBefore(ctx, old.Add(90*time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(2))

	n, err := repo.Count(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
