// Package rootcause maps a failed probe onto a coarse failure category.
package rootcause

import "strings"

type Cause string

const (
	Network   Cause = "network"
	DNS       Cause = "dns"
	TLS       Cause = "tls"
	Timeout   Cause = "timeout"
	Auth      Cause = "auth"
	Server5xx Cause = "server_5xx"
	Unknown   Cause = "unknown"
)

const SkipReasonNetwork = "network_unavailable"

// slowPhaseMs is the latency above which a slow DNS or TLS phase explains a
// failure that carried no better signal.
const slowPhaseMs = 2500.0

var descriptions = map[Cause]string{
	Network:   "Network connectivity issue between monitor and target",
	DNS:       "DNS resolution issue or very slow DNS lookup",
	TLS:       "TLS/SSL handshake or certificate problem",
	Timeout:   "Request timed out before response completed",
	Server5xx: "Server-side HTTP 5xx error from upstream service",
	Auth:      "Authentication/authorization failure (401/403)",
	Unknown:   "Root cause could not be classified automatically",
}

var (
	networkWords = []string{"low network", "network is unreachable"}
	timeoutWords = []string{"timeout", "timed out", "operation timeout", "read timeout", "connection timeout"}
	dnsWords     = []string{"could not resolve host", "name or service not known", "getaddrinfo", "no such host", "dns"}
	tlsWords     = []string{"ssl", "tls", "certificate", "handshake", "x509"}
)

// Input is the subset of a probe outcome the classifier looks at.
type Input struct {
	Up         bool
	StatusCode *int
	Error      string
	DNSMs      *float64
	TLSMs      *float64
	Skipped    bool
	SkipReason string
	// NetworkUp is nil when no reachability check ran.
	NetworkUp *bool
}

// Classify returns "" for up results. Explicit signals win over text
// matching, which wins over latency heuristics.
func Classify(in Input) Cause {
	if in.Up && !in.Skipped {
		return ""
	}

	text := strings.ToLower(in.Error)

	if in.Skipped || in.SkipReason == SkipReasonNetwork || containsAny(text, networkWords) ||
		(in.NetworkUp != nil && !*in.NetworkUp) {
		return Network
	}

	if in.StatusCode != nil {
		code := *in.StatusCode
		switch {
		case code == 401 || code == 403 || code == 407:
			return Auth
		case code >= 500 && code <= 599:
			return Server5xx
		}
	}

	switch {
	case containsAny(text, timeoutWords):
		return Timeout
	case containsAny(text, dnsWords):
		return DNS
	case containsAny(text, tlsWords):
		return TLS
	}

	if in.DNSMs != nil && *in.DNSMs >= slowPhaseMs {
		return DNS
	}
	if in.TLSMs != nil && *in.TLSMs >= slowPhaseMs {
		return TLS
	}
	return Unknown
}

func Describe(c Cause) string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return descriptions[Unknown]
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
