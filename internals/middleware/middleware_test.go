package middle

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pulsewatch/config"
	"pulsewatch/internals/security"
	"pulsewatch/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokens(t *testing.T) *security.TokenService {
	t.Helper()
	ts, err := security.NewTokenService(&config.AuthConfig{Secret: "middleware-test-secret", Issuer: "pulsewatch"})
	require.NoError(t, err)
	return ts
}

func protected(t *testing.T, ts *security.TokenService) http.Handler {
	r := chi.NewRouter()
	r.Use(NewAuthMiddleware(ts).Handle)
	r.With(RequireScope(security.ScopeStatusRead)).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(u.OwnerID.String()))
	})
	return r
}

func TestAuthentication(t *testing.T) {
	ts := tokens(t)
	h := protected(t, ts)
	owner := uuid.New()

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}

	tok, err := ts.GenerateAccessToken(owner, security.ScopeStatusRead)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, owner.String(), rec.Body.String())
}

func TestRequireScope(t *testing.T) {
	ts := tokens(t)
	h := protected(t, ts)

	tok, err := ts.GenerateAccessToken(uuid.New(), "alerts:write")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	unscoped, err := ts.GenerateAccessToken(uuid.New())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+unscoped)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type recordedRequest struct {
	method, path string
	status       int
}

type fakeRecorder struct {
	got []recordedRequest
}

func (f *fakeRecorder) ObserveHTTP(method, path string, status int, _ time.Duration) {
	f.got = append(f.got, recordedRequest{method, path, status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	fr := &fakeRecorder{}
	r := chi.NewRouter()
	r.Use(Metrics(fr))
	r.Get("/v1/endpoints/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/endpoints/42/status", nil))

	require.Len(t, fr.got, 1)
	assert.Equal(t, recordedRequest{"GET", "/v1/endpoints/{id}/status", http.StatusTeapot}, fr.got[0])
}

func TestRecovererWritesEnvelope(t *testing.T) {
	h := Logger(logger.Nop())(Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"internal"`)
}
