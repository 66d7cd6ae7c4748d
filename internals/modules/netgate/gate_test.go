package netgate

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slowServer(t *testing.T, status int, body string, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func closedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func TestEmptyBodyIsReachable(t *testing.T) {
	srv := slowServer(t, http.StatusNoContent, "", 0)

	st := New(Options{URLs: srv.URL, MinDownloadMbps: DefaultMinDownloadMbps}).Check(context.Background())

	assert.True(t, st.NetworkUp)
	assert.True(t, st.Reachable())
	assert.Empty(t, st.Error)
	require.NotNil(t, st.StatusCode)
	assert.Equal(t, http.StatusNoContent, *st.StatusCode)
	assert.Equal(t, srv.URL, st.TestURL)
}

func TestSmallSlowBodyDoesNotFailOnThroughput(t *testing.T) {
	// 512 bytes over ~400ms is ~0.01 Mbps, far below the minimum,
	// but the payload is under the enforcement threshold
	srv := slowServer(t, http.StatusOK, strings.Repeat("x", 512), 400*time.Millisecond)

	st := New(Options{URLs: srv.URL, MinDownloadMbps: DefaultMinDownloadMbps}).Check(context.Background())

	assert.True(t, st.NetworkUp)
	assert.Empty(t, st.Error)
	require.NotNil(t, st.DownloadMbps)
	assert.Less(t, *st.DownloadMbps, DefaultMinDownloadMbps)
}

func TestLargeSlowBodyFailsOnThroughput(t *testing.T) {
	srv := slowServer(t, http.StatusOK, strings.Repeat("x", 2048), 400*time.Millisecond)

	st := New(Options{URLs: srv.URL, MinDownloadMbps: DefaultMinDownloadMbps}).Check(context.Background())

	assert.False(t, st.NetworkUp)
	assert.False(t, st.Reachable())
	assert.Contains(t, st.Error, "low speed")
}

func TestLatencyAndStatusBounds(t *testing.T) {
	slow := slowServer(t, http.StatusOK, "", 150*time.Millisecond)
	st := New(Options{URLs: slow.URL, MaxLatencyMs: 50}).Check(context.Background())
	assert.False(t, st.NetworkUp)
	assert.Contains(t, st.Error, "high latency")

	broken := slowServer(t, http.StatusBadGateway, "", 0)
	st = New(Options{URLs: broken.URL}).Check(context.Background())
	assert.False(t, st.NetworkUp)
	assert.Equal(t, "status 502", st.Error)

	notFound := slowServer(t, http.StatusNotFound, "", 0)
	st = New(Options{URLs: notFound.URL}).Check(context.Background())
	assert.True(t, st.NetworkUp, "4xx still proves the network works")
}

func TestFallsThroughToNextURL(t *testing.T) {
	good := slowServer(t, http.StatusNoContent, "", 0)
	dead := closedURL(t)

	st := New(Options{URLs: dead + " , " + good.URL, Timeout: time.Second}).Check(context.Background())

	assert.True(t, st.NetworkUp)
	assert.Equal(t, good.URL, st.TestURL)
}

func TestAllURLsFailing(t *testing.T) {
	dead := closedURL(t)
	broken := slowServer(t, http.StatusServiceUnavailable, "", 0)

	st := New(Options{URLs: broken.URL + "," + dead, Timeout: time.Second}).Check(context.Background())

	assert.False(t, st.NetworkUp)
	assert.False(t, st.Reachable())
	assert.Equal(t, dead, st.TestURL)
	assert.Contains(t, st.Error, "refused")
	assert.Nil(t, st.StatusCode)
}

func TestParseURLs(t *testing.T) {
	assert.Equal(t, []string{DefaultTestURL}, ParseURLs(""))
	assert.Equal(t, []string{DefaultTestURL}, ParseURLs(" , "))
	assert.Equal(t, []string{"https://a", "https://b"}, ParseURLs("https://a, https://b,"))
}
