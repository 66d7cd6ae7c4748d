package alert

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefStore records which channels accepted an alert.
type RefStore interface {
	SetChannelRef(ctx context.Context, alertID uuid.UUID, ref string) error
}

// DeliveryObserver is told about every delivery attempt, e.g. for metrics.
type DeliveryObserver func(n Notification, d Delivery)

// Dispatcher is a worker pool between the alert engine and the notifier.
// Enqueue never blocks the caller; when the buffer is full the notification
// is dropped and logged, the alert itself stays open.
type Dispatcher struct {
	// lifecycle
	workerCount int
	workerWG    sync.WaitGroup
	closeOnce   sync.Once
	timeout     time.Duration

	// channels
	queue chan Notification

	// collaborators
	notifier Notifier
	refs     RefStore
	observe  DeliveryObserver

	// misc
	logger *zerolog.Logger
}

func NewDispatcher(workerCount, buffer int, timeout time.Duration, notifier Notifier, refs RefStore, logger *zerolog.Logger) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	if buffer < 1 {
		buffer = 64
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		workerCount: workerCount,
		timeout:     timeout,
		queue:       make(chan Notification, buffer),
		notifier:    notifier,
		refs:        refs,
		logger:      logger,
	}
}

// OnDelivery installs an observer. Call before Start.
func (d *Dispatcher) OnDelivery(fn DeliveryObserver) {
	d.observe = fn
}

// Start starts the dispatch workers.
func (d *Dispatcher) Start() {
	d.workerWG.Add(d.workerCount)

	for range d.workerCount {
		go d.handleNotifications()
	}
}

func (d *Dispatcher) Enqueue(n Notification) {
	select {
	case d.queue <- n:
	default:
		d.logger.Error().
			Str("alert_id", n.Alert.ID.String()).
			Str("endpoint_id", n.Alert.EndpointID.String()).
			Str("kind", string(n.Alert.Kind)).
			Msg("notification queue full, dropping notification")
	}
}

func (d *Dispatcher) handleNotifications() {
	defer d.workerWG.Done()

	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	deliveries := d.notifier.Notify(ctx, n)

	var refs []string
	for _, del := range deliveries {
		if d.observe != nil {
			d.observe(n, del)
		}

		evt := d.logger.Info()
		if !del.OK {
			evt = d.logger.Warn().Str("error", del.Error)
		}
		evt.Str("alert_id", n.Alert.ID.String()).
			Str("kind", string(n.Alert.Kind)).
			Str("event", string(n.Event)).
			Str("channel", del.Channel).
			Int("attempts", del.Attempts).
			Bool("ok", del.OK).
			Msg("notification delivery")

		if del.OK {
			ref := del.Channel
			if del.Ref != "" {
				ref += ":" + del.Ref
			}
			refs = append(refs, ref)
		}
	}

	if n.Event != EventOpened || len(refs) == 0 || d.refs == nil {
		return
	}
	if err := d.refs.SetChannelRef(ctx, n.Alert.ID, strings.Join(refs, ",")); err != nil {
		d.logger.Warn().Err(err).Str("alert_id", n.Alert.ID.String()).Msg("failed to store channel ref")
	}
}

// Close stops accepting work and waits for queued notifications to drain.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.workerWG.Wait()
}
