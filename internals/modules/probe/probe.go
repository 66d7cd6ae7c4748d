package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"pulsewatch/pkg/httpclient"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultBodySnippetLen = 1000
	DefaultCertTimeout    = 5 * time.Second

	// maxBodyRead bounds how much of the body is scanned for required text.
	maxBodyRead = 1 << 20
)

type Options struct {
	Timeout        time.Duration
	BodySnippetLen int
	CertTimeout    time.Duration
	Client         *http.Client
}

type Prober struct {
	client      *http.Client
	timeout     time.Duration
	snippetLen  int
	certTimeout time.Duration
	now         func() time.Time
	fetchCert   func(ctx context.Context, rawURL string, timeout time.Duration) *Certificate
}

func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BodySnippetLen <= 0 {
		opts.BodySnippetLen = DefaultBodySnippetLen
	}
	if opts.CertTimeout <= 0 {
		opts.CertTimeout = DefaultCertTimeout
	}
	if opts.Client == nil {
		opts.Client = httpclient.NewProbeClient(opts.Timeout)
	}
	return &Prober{
		client:      opts.Client,
		timeout:     opts.Timeout,
		snippetLen:  opts.BodySnippetLen,
		certTimeout: opts.CertTimeout,
		now:         time.Now,
		fetchCert:   fetchCertificate,
	}
}

// Probe performs one GET against the target. Transport failures are reported
// in the outcome, never returned as errors.
func (p *Prober) Probe(ctx context.Context, t Target) Outcome {
	start := p.now()
	out := Outcome{StartedAt: start.UTC(), URLType: URLTypeUnknown}
	https := strings.HasPrefix(strings.ToLower(t.URL), "https")

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tl := newTimeline(start)
	reqCtx = httptrace.WithClientTrace(reqCtx, tl.trace())

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, t.URL, nil)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if t.HeaderName != "" && t.HeaderValue != "" {
		req.Header.Set(t.HeaderName, t.HeaderValue)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		out.Error = p.describeError(err)
		out.Phases = tl.phases(p.now(), https, false)
		if https {
			out.Certificate = p.fetchCert(ctx, t.URL, p.certTimeout)
		}
		return out
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	end := p.now()

	code := resp.StatusCode
	out.StatusCode = &code
	out.Phases = tl.phases(end, https, true)
	out.ContentType = resp.Header.Get("Content-Type")
	out.URLType = DetectURLType(out.ContentType)
	out.BodySnippet = Snippet(body, p.snippetLen)
	out.Up = code >= 200 && code < 300

	if readErr != nil {
		out.Up = false
		out.Error = p.describeError(readErr)
	} else if t.RequiredText != "" && !strings.Contains(string(body), t.RequiredText) {
		out.Up = false
		out.Error = ErrRequiredTextMissing
	}

	if https {
		if resp.TLS != nil {
			out.Certificate = certificateFromState(resp.TLS)
		} else {
			out.Certificate = certificateFromState(tl.connectionState())
		}
	}

	return out
}

// describeError keeps the raw transport text and makes deadline failures
// recognisable as timeouts.
func (p *Prober) describeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("operation timed out after %s: %v", p.timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("operation timed out after %s: %v", p.timeout, err)
	}
	return err.Error()
}

// Snippet keeps the first n bytes as text Postgres can store: invalid UTF-8
// and NUL bytes are removed on every path.
func Snippet(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return strings.ReplaceAll(strings.ToValidUTF8(string(body), ""), "\x00", "")
}
