package alert_test

import (
	"context"
	"sync"
	"testing"

	"pulsewatch/internals/modules/alert"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	mu   sync.Mutex
	seen []alert.Notification
	out  []alert.Delivery
}

func (s *stubNotifier) Notify(_ context.Context, n alert.Notification) []alert.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
	return s.out
}

type refRecorder struct {
	mu   sync.Mutex
	refs map[uuid.UUID]string
}

func (r *refRecorder) SetChannelRef(_ context.Context, id uuid.UUID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[id] = ref
	return nil
}

func TestDispatcherDeliversAndStoresRefs(t *testing.T) {
	notifier := &stubNotifier{out: []alert.Delivery{
		{Channel: "slack", OK: true, Attempts: 1},
		{Channel: "hook", OK: true, Attempts: 2, Ref: "req-1"},
		{Channel: "email", OK: false, Attempts: 3, Error: "dial tcp: refused"},
	}}
	refs := &refRecorder{refs: map[uuid.UUID]string{}}

	d := alert.NewDispatcher(2, 8, 0, notifier, refs, nil)
	var (
		mu       sync.Mutex
		observed int
	)
	d.OnDelivery(func(alert.Notification, alert.Delivery) {
		mu.Lock()
		observed++
		mu.Unlock()
	})
	d.Start()

	opened := alert.Notification{Event: alert.EventOpened, Alert: alert.Record{ID: uuid.New()}}
	updated := alert.Notification{Event: alert.EventUpdated, Alert: alert.Record{ID: uuid.New()}}
	d.Enqueue(opened)
	d.Enqueue(updated)
	d.Close()

	assert.Len(t, notifier.seen, 2)
	assert.Equal(t, 6, observed)
	require.Len(t, refs.refs, 1, "only opened alerts record channel refs")
	assert.Equal(t, "slack,hook:req-1", refs.refs[opened.Alert.ID])
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	notifier := &stubNotifier{}
	d := alert.NewDispatcher(1, 1, 0, notifier, nil, nil)

	d.Enqueue(alert.Notification{Event: alert.EventOpened})
	d.Enqueue(alert.Notification{Event: alert.EventOpened})

	d.Start()
	d.Close()
	assert.Len(t, notifier.seen, 1)
}
