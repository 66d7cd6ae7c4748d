package alert

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// KeyedMutex serialises alert transitions per endpoint within one process.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uuid.UUID]*keyedEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, endpointID uuid.UUID) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[endpointID]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		m.locks[endpointID] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(endpointID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.release(endpointID, e)
		})
	}, nil
}

func (m *KeyedMutex) release(endpointID uuid.UUID, e *keyedEntry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, endpointID)
	}
	m.mu.Unlock()
}

type streak struct {
	failures, successes int
	last                uuid.UUID
}

// MemoryStreaks is the in-process StreakCounter used without Redis.
type MemoryStreaks struct {
	mu      sync.Mutex
	streaks map[uuid.UUID]streak
}

func NewMemoryStreaks() *MemoryStreaks {
	return &MemoryStreaks{streaks: make(map[uuid.UUID]streak)}
}

func (s *MemoryStreaks) RecordFailure(_ context.Context, endpointID, recordID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.streaks[endpointID]
	if recordID != uuid.Nil && st.last == recordID {
		return st.failures, nil
	}
	st.failures++
	st.successes = 0
	st.last = recordID
	s.streaks[endpointID] = st
	return st.failures, nil
}

func (s *MemoryStreaks) RecordSuccess(_ context.Context, endpointID, recordID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.streaks[endpointID]
	if recordID != uuid.Nil && st.last == recordID {
		return st.successes, nil
	}
	st.successes++
	st.failures = 0
	st.last = recordID
	s.streaks[endpointID] = st
	return st.successes, nil
}
