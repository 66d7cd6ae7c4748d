package probe

import "time"

// Target is one request to perform.
type Target struct {
	URL          string
	HeaderName   string
	HeaderValue  string
	RequiredText string
}

// Phases holds connection-lifecycle durations in milliseconds. A nil field
// means the phase was never reached.
type Phases struct {
	DNSMs      *float64 `json:"dns_latency_ms"`
	TCPMs      *float64 `json:"tcp_latency_ms"`
	TLSMs      *float64 `json:"tls_latency_ms"`
	ServerMs   *float64 `json:"server_processing_latency_ms"`
	DownloadMs *float64 `json:"content_download_latency_ms"`
	TotalMs    *float64 `json:"total_latency_ms"`
}

// Certificate is a snapshot of the leaf certificate presented by the target.
// Error is set instead of failing the probe when retrieval did not work.
type Certificate struct {
	Subject    string `json:"subject,omitempty"`
	Issuer     string `json:"issuer,omitempty"`
	SANs       string `json:"sans,omitempty"`
	ValidFrom  string `json:"valid_from,omitempty"`
	ValidUntil string `json:"valid_until,omitempty"`
	Cipher     string `json:"cipher,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Outcome struct {
	StatusCode  *int         `json:"status_code"`
	Up          bool         `json:"up"`
	Phases      Phases       `json:"latency"`
	ContentType string       `json:"content_type"`
	URLType     URLType      `json:"url_type"`
	BodySnippet string       `json:"body_snippet"`
	Certificate *Certificate `json:"certificate"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
}

const ErrRequiredTextMissing = "Required text not found in response body."
