package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

func certificateFromState(state *tls.ConnectionState) *Certificate {
	if state == nil || len(state.PeerCertificates) == 0 {
		return nil
	}
	c := describeCertificate(state.PeerCertificates[0])
	c.Cipher = tls.CipherSuiteName(state.CipherSuite)
	return c
}

func describeCertificate(leaf *x509.Certificate) *Certificate {
	sans := make([]string, 0, len(leaf.DNSNames)+len(leaf.IPAddresses))
	sans = append(sans, leaf.DNSNames...)
	for _, ip := range leaf.IPAddresses {
		sans = append(sans, ip.String())
	}
	return &Certificate{
		Subject:    leaf.Subject.String(),
		Issuer:     leaf.Issuer.String(),
		SANs:       strings.Join(sans, ", "),
		ValidFrom:  leaf.NotBefore.UTC().Format(time.RFC3339),
		ValidUntil: leaf.NotAfter.UTC().Format(time.RFC3339),
	}
}

// fetchCertificate dials the target directly with verification disabled so
// that expired or mismatched certificates can still be described. It never
// returns an error; failures are reported in Certificate.Error.
func fetchCertificate(ctx context.Context, rawURL string, timeout time.Duration) *Certificate {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return &Certificate{Error: "invalid url for certificate fetch"}
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true, //nolint:gosec // metadata only, never used for trust
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return &Certificate{Error: "certificate fetch failed: " + err.Error()}
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return &Certificate{Error: "certificate fetch failed: " + errors.ErrUnsupported.Error()}
	}

	state := tlsConn.ConnectionState()
	if c := certificateFromState(&state); c != nil {
		return c
	}
	return &Certificate{Error: "no peer certificate presented"}
}
