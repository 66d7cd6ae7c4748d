package scheduler

import (
	"sync"

	"pulsewatch/internals/modules/result"
)

// pendingBuffer keeps records the store refused. It is bounded; when full
// the oldest record is dropped.
type pendingBuffer struct {
	mu    sync.Mutex
	limit int
	recs  []result.Record
}

func newPendingBuffer(limit int) *pendingBuffer {
	return &pendingBuffer{limit: limit}
}

func (b *pendingBuffer) push(rec result.Record) (dropped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.recs) >= b.limit {
		b.recs = b.recs[1:]
		dropped = true
	}
	b.recs = append(b.recs, rec)
	return dropped
}

func (b *pendingBuffer) drain() []result.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	recs := b.recs
	b.recs = nil
	return recs
}

// requeue puts unflushed records back ahead of anything buffered meanwhile.
func (b *pendingBuffer) requeue(recs []result.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := make([]result.Record, 0, len(recs)+len(b.recs))
	merged = append(merged, recs...)
	merged = append(merged, b.recs...)
	if over := len(merged) - b.limit; over > 0 {
		merged = merged[over:]
	}
	b.recs = merged
}

func (b *pendingBuffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.recs)
}
