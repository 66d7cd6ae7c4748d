package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"

	"pulsewatch/internals/modules/alert"
)

// Provider delivers one rendered notification to one channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) (ref string, err error)
}

type Message struct {
	Title        string
	Body         string
	Notification alert.Notification
}

// StatusError is returned for non-2xx webhook responses. 4xx other than 429
// are not retried.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, sign func([]byte) string) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if sign != nil {
		req.Header.Set(signatureHeader, sign(body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return resp.Header.Get("X-Request-Id"), nil
}

const signatureHeader = "X-Pulsewatch-Signature"

// Sign returns the hex HMAC-SHA256 of body keyed with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// WebhookProvider posts the whole notification as JSON. With a secret the
// body is signed in X-Pulsewatch-Signature.
type WebhookProvider struct {
	ChannelName string
	URL         string
	Secret      string
	Client      *http.Client
}

func (w *WebhookProvider) Name() string { return w.ChannelName }

func (w *WebhookProvider) Send(ctx context.Context, msg Message) (string, error) {
	payload := map[string]any{
		"title":        msg.Title,
		"message":      msg.Body,
		"event":        msg.Notification.Event,
		"alert":        msg.Notification.Alert,
		"closed":       msg.Notification.Closed,
		"endpoint_id":  msg.Notification.Endpoint.ID,
		"endpoint_url": msg.Notification.Endpoint.URL,
		"payload":      msg.Notification.Payload,
	}
	var sign func([]byte) string
	if w.Secret != "" {
		sign = func(body []byte) string { return Sign(w.Secret, body) }
	}
	return postJSON(ctx, w.Client, w.URL, payload, sign)
}

type SlackProvider struct {
	ChannelName string
	URL         string
	Client      *http.Client
}

func (s *SlackProvider) Name() string { return s.ChannelName }

func (s *SlackProvider) Send(ctx context.Context, msg Message) (string, error) {
	payload := map[string]string{"text": fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body)}
	return postJSON(ctx, s.Client, s.URL, payload, nil)
}

type DiscordProvider struct {
	ChannelName string
	URL         string
	Client      *http.Client
}

func (d *DiscordProvider) Name() string { return d.ChannelName }

func (d *DiscordProvider) Send(ctx context.Context, msg Message) (string, error) {
	payload := map[string]string{"content": fmt.Sprintf("**%s**\n%s", msg.Title, msg.Body)}
	return postJSON(ctx, d.Client, d.URL, payload, nil)
}

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailProvider struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	SendMail SendMailFunc
}

func (e *EmailProvider) Name() string { return "email" }

// Send ignores ctx; net/smtp has no context support.
func (e *EmailProvider) Send(_ context.Context, msg Message) (string, error) {
	send := e.SendMail
	if send == nil {
		send = smtp.SendMail
	}
	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.Host)
	}

	var b strings.Builder
	b.WriteString("From: " + e.From + "\r\n")
	b.WriteString("To: " + strings.Join(e.To, ", ") + "\r\n")
	b.WriteString("Subject: [pulsewatch] " + msg.Title + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body + "\r\n")

	addr := e.Host + ":" + strconv.Itoa(e.Port)
	if err := send(addr, auth, e.From, e.To, []byte(b.String())); err != nil {
		return "", err
	}
	return "", nil
}
