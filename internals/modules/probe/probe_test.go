package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePhasesNonNegative(t *testing.T, p Phases) {
	t.Helper()
	for name, v := range map[string]*float64{
		"dns": p.DNSMs, "tcp": p.TCPMs, "tls": p.TLSMs,
		"server": p.ServerMs, "download": p.DownloadMs, "total": p.TotalMs,
	} {
		require.NotNil(t, v, name)
		assert.GreaterOrEqual(t, *v, 0.0, name)
	}
}

func TestProbeHealthyJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	out := New(Options{}).Probe(context.Background(), Target{
		URL:         srv.URL,
		HeaderName:  "X-Api-Key",
		HeaderValue: "secret",
	})

	assert.True(t, out.Up)
	require.NotNil(t, out.StatusCode)
	assert.Equal(t, http.StatusOK, *out.StatusCode)
	assert.Equal(t, URLTypeAPI, out.URLType)
	assert.Equal(t, `{"status":"ok"}`, out.BodySnippet)
	assert.Empty(t, out.Error)
	assert.Nil(t, out.Certificate)
	requirePhasesNonNegative(t, out.Phases)
	assert.Equal(t, 0.0, *out.Phases.TLSMs)
}

func TestProbeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	out := New(Options{}).Probe(context.Background(), Target{URL: srv.URL})

	assert.False(t, out.Up)
	require.NotNil(t, out.StatusCode)
	assert.Equal(t, http.StatusBadGateway, *out.StatusCode)
	assert.Empty(t, out.Error)
}

func TestProbeRequiredText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	p := New(Options{})

	out := p.Probe(context.Background(), Target{URL: srv.URL, RequiredText: "welcome"})
	assert.False(t, out.Up)
	assert.Equal(t, ErrRequiredTextMissing, out.Error)
	assert.Equal(t, URLTypeWebsite, out.URLType)

	out = p.Probe(context.Background(), Target{URL: srv.URL, RequiredText: "maintenance"})
	assert.True(t, out.Up)
}

func TestProbeSnippetTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 5000)))
	}))
	defer srv.Close()

	out := New(Options{}).Probe(context.Background(), Target{URL: srv.URL})
	assert.Len(t, out.BodySnippet, DefaultBodySnippetLen)
}

func TestProbeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	out := New(Options{Timeout: 50 * time.Millisecond}).Probe(context.Background(), Target{URL: srv.URL})

	assert.False(t, out.Up)
	assert.Nil(t, out.StatusCode)
	assert.Contains(t, out.Error, "timed out")
	require.NotNil(t, out.Phases.TotalMs)
}

func TestProbeConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	out := New(Options{Timeout: time.Second}).Probe(context.Background(), Target{URL: "http://" + addr})

	assert.False(t, out.Up)
	assert.Contains(t, out.Error, "refused")
	assert.Nil(t, out.Phases.DownloadMs)
}

func TestProbeTLSCertificateCaptured(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out := New(Options{Client: srv.Client()}).Probe(context.Background(), Target{URL: srv.URL})

	assert.True(t, out.Up)
	require.NotNil(t, out.Certificate)
	assert.Contains(t, out.Certificate.Issuer, "Acme Co")
	assert.NotEmpty(t, out.Certificate.Cipher)
	assert.NotEmpty(t, out.Certificate.ValidUntil)
	assert.Empty(t, out.Certificate.Error)
}

func TestProbeTLSFailureUsesFallbackCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	// the default probe client does not trust the test CA
	out := New(Options{Timeout: 2 * time.Second}).Probe(context.Background(), Target{URL: srv.URL})

	assert.False(t, out.Up)
	assert.Contains(t, out.Error, "certificate")
	require.NotNil(t, out.Certificate)
	assert.Empty(t, out.Certificate.Error)
	assert.Contains(t, out.Certificate.Issuer, "Acme Co")
}

func TestFetchCertificateNeverFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := fetchCertificate(context.Background(), "https://"+addr, 200*time.Millisecond)
	require.NotNil(t, c)
	assert.Contains(t, c.Error, "certificate fetch failed")

	c = fetchCertificate(context.Background(), "::bad", time.Second)
	require.NotNil(t, c)
	assert.NotEmpty(t, c.Error)
}

func TestDetectURLType(t *testing.T) {
	cases := map[string]URLType{
		"":                                URLTypeUnknown,
		"application/json; charset=utf-8": URLTypeAPI,
		"application/vnd.api+json":        URLTypeAPI,
		"text/html":                       URLTypeWebsite,
		"text/xml":                        URLTypeXML,
		"application/javascript":          URLTypeJavaScript,
		"image/png":                       URLTypeImage,
		"application/octet-stream":        URLTypeResource,
	}
	for ct, want := range cases {
		assert.Equal(t, want, DetectURLType(ct), ct)
	}
}

func TestTimelineClampsNegativePhases(t *testing.T) {
	start := time.Now()
	tl := newTimeline(start)
	// connect recorded before name lookup: measurement noise
	tl.dnsDone = start.Add(20 * time.Millisecond)
	tl.connectDone = start.Add(10 * time.Millisecond)
	tl.wrote = start.Add(30 * time.Millisecond)

	p := tl.phases(start.Add(40*time.Millisecond), false, true)

	requirePhasesNonNegative(t, p)
	assert.Equal(t, 0.0, *p.TCPMs)
	assert.InDelta(t, 20.0, *p.ServerMs, 0.001)
	assert.InDelta(t, 10.0, *p.DownloadMs, 0.001)
	assert.InDelta(t, 40.0, *p.TotalMs, 0.001)
}

func TestBinaryBodySnippetIsStorableText(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R', 0xff, 0xfe}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	for _, n := range []int{len(png) + 10, 12} {
		out := New(Options{BodySnippetLen: n}).Probe(context.Background(), Target{URL: srv.URL})

		assert.True(t, out.Up)
		assert.Equal(t, URLTypeImage, out.URLType)
		assert.True(t, utf8.ValidString(out.BodySnippet), "snippet len %d", n)
		assert.NotContains(t, out.BodySnippet, "\x00", "snippet len %d", n)
		assert.Contains(t, out.BodySnippet, "PNG")
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "ok", Snippet([]byte("ok"), 10))
	assert.Equal(t, "abc", Snippet([]byte("a\x00b\xffc"), 10))
	assert.Equal(t, "ab", Snippet([]byte("abcdef"), 2))
	assert.Equal(t, "", Snippet([]byte{0xe2, 0x82}, 10), "truncated rune")
}
