// Package notify renders alert notifications and fans them out to the
// configured channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pulsewatch/config"
	"pulsewatch/internals/modules/alert"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 500 * time.Millisecond
)

// Router implements alert.Notifier.
type Router struct {
	providers []Provider
	attempts  int
	backoff   time.Duration
	logger    *zerolog.Logger
}

func NewRouter(providers []Provider, attempts int, backoff time.Duration, logger *zerolog.Logger) *Router {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{
		providers: providers,
		attempts:  attempts,
		backoff:   backoff,
		logger:    logger,
	}
}

// FromConfig builds one provider per configured channel.
func FromConfig(cfg *config.NotifyConfig, client *http.Client, logger *zerolog.Logger) (*Router, error) {
	var providers []Provider
	for _, ch := range cfg.Webhooks {
		switch ch.Kind {
		case "webhook":
			providers = append(providers, &WebhookProvider{ChannelName: ch.Name, URL: ch.URL, Secret: ch.Secret, Client: client})
		case "slack":
			providers = append(providers, &SlackProvider{ChannelName: ch.Name, URL: ch.URL, Client: client})
		case "discord":
			providers = append(providers, &DiscordProvider{ChannelName: ch.Name, URL: ch.URL, Client: client})
		default:
			return nil, fmt.Errorf("notify channel %q: unknown kind %q", ch.Name, ch.Kind)
		}
	}
	if e := cfg.Email; e != nil {
		providers = append(providers, &EmailProvider{
			Host:     e.Host,
			Port:     e.Port,
			Username: e.Username,
			Password: e.Password,
			From:     e.From,
			To:       e.To,
		})
	}
	return NewRouter(providers, cfg.Attempts, cfg.Backoff, logger), nil
}

func (r *Router) Channels() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// Notify delivers to every channel in parallel and reports each outcome in
// channel order. A failed channel never affects another.
func (r *Router) Notify(ctx context.Context, n alert.Notification) []alert.Delivery {
	msg := Render(n)
	out := make([]alert.Delivery, len(r.providers))

	var wg conc.WaitGroup
	for i, p := range r.providers {
		wg.Go(func() {
			out[i] = r.send(ctx, p, msg)
		})
	}
	wg.Wait()
	return out
}

func (r *Router) send(ctx context.Context, p Provider, msg Message) alert.Delivery {
	d := alert.Delivery{Channel: p.Name()}

	base := r.backoff
	if base <= 0 {
		base = time.Nanosecond
	}
	b := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewExponential(base))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		d.Attempts++
		ref, err := p.Send(ctx, msg)
		if err == nil {
			d.Ref = ref
			return nil
		}
		d.Error = err.Error()

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if d.Attempts < r.attempts {
			r.logger.Debug().Err(err).Str("channel", d.Channel).Int("attempt", d.Attempts).Msg("notification attempt failed, retrying")
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		d.OK = true
		d.Error = ""
		return d
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		d.Error = ctxErr.Error()
	}
	return d
}

// Render produces the channel-independent title and body.
func Render(n alert.Notification) Message {
	url := n.Endpoint.URL
	var title string
	switch n.Event {
	case alert.EventOpened:
		title = fmt.Sprintf("%s alert: %s", label(n.Alert.Kind), url)
	case alert.EventUpdated:
		title = fmt.Sprintf("%s alert updated: %s", label(n.Alert.Kind), url)
	case alert.EventRecovered:
		title = fmt.Sprintf("Recovered: %s", url)
	default:
		title = fmt.Sprintf("%s alert resolved: %s", label(n.Alert.Kind), url)
	}

	var b strings.Builder
	b.WriteString(n.Reason)
	fmt.Fprintf(&b, "\nSeverity: %s", n.Alert.Severity)
	if code, ok := n.Payload["incident_code"]; ok {
		fmt.Fprintf(&b, "\nIncident: %v", code)
	}
	if d, ok := n.Payload["downtime_duration"]; ok {
		fmt.Fprintf(&b, "\nDowntime: %v", d)
	}
	if len(n.Closed) > 0 {
		fmt.Fprintf(&b, "\nClosed alerts: %d", len(n.Closed))
	}
	return Message{Title: title, Body: b.String(), Notification: n}
}

func label(k alert.Kind) string {
	switch k {
	case alert.KindDowntime:
		return "Downtime"
	case alert.KindBurnRate:
		return "Burn rate"
	case alert.KindPrediction:
		return "AI prediction"
	default:
		return string(k)
	}
}
