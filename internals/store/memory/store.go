// Package memory keeps every store in process memory. It backs the
// store.driver=memory mode and the package tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pulsewatch/internals/modules/alert"
	"pulsewatch/internals/modules/monitor"
	"pulsewatch/internals/modules/result"
	"pulsewatch/internals/modules/user"
	"pulsewatch/pkg/apperror"

	"github.com/google/uuid"
)

type Store struct {
	Endpoints *Endpoints
	Results   *Results
	Owners    *Owners
	Alerts    *Alerts
}

func New() *Store {
	return &Store{
		Endpoints: &Endpoints{items: make(map[uuid.UUID]monitor.Endpoint)},
		Results:   &Results{byEndpoint: make(map[uuid.UUID][]result.Record)},
		Owners:    &Owners{items: make(map[uuid.UUID]user.Owner)},
		Alerts:    &Alerts{incidents: make(map[uuid.UUID]alert.Incident), alerts: make(map[uuid.UUID]alert.Record)},
	}
}

type Endpoints struct {
	mu    sync.RWMutex
	items map[uuid.UUID]monitor.Endpoint
}

func (s *Endpoints) Create(_ context.Context, e monitor.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[e.ID]; ok {
		return &apperror.Error{Kind: apperror.Conflict, Op: "memory.endpoint.create", Message: "endpoint exists"}
	}
	s.items[e.ID] = e
	return nil
}

func (s *Endpoints) Get(_ context.Context, id uuid.UUID) (monitor.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return monitor.Endpoint{}, &apperror.Error{Kind: apperror.NotFound, Op: "memory.endpoint.get", Message: "endpoint not found"}
	}
	return e, nil
}

func (s *Endpoints) ListActive(_ context.Context) ([]monitor.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitor.Endpoint, 0, len(s.items))
	for _, e := range s.items {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Endpoints) MarkChecked(_ context.Context, id uuid.UUID, at time.Time, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return &apperror.Error{Kind: apperror.NotFound, Op: "memory.endpoint.mark_checked", Message: "endpoint not found"}
	}
	at = at.UTC()
	e.LastCheckedAt = &at
	e.LastStatus = status
	s.items[id] = e
	return nil
}

func (s *Endpoints) SoftDelete(_ context.Context, ownerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok || e.OwnerID != ownerID {
		return &apperror.Error{Kind: apperror.NotFound, Op: "memory.endpoint.soft_delete", Message: "endpoint not found"}
	}
	delete(s.items, id)
	return nil
}

// Results keeps each endpoint's history ordered oldest first.
type Results struct {
	mu         sync.RWMutex
	byEndpoint map[uuid.UUID][]result.Record
}

func (s *Results) Append(_ context.Context, rec result.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byEndpoint[rec.EndpointID]
	for _, r := range list {
		if r.ID == rec.ID {
			return nil
		}
	}
	rec.CheckedAt = rec.CheckedAt.UTC()
	i := sort.Search(len(list), func(i int) bool { return list[i].CheckedAt.After(rec.CheckedAt) })
	list = append(list, result.Record{})
	copy(list[i+1:], list[i:])
	list[i] = rec
	s.byEndpoint[rec.EndpointID] = list
	return nil
}

func (s *Results) Recent(_ context.Context, endpointID uuid.UUID, limit int) ([]result.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byEndpoint[endpointID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]result.Record, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (s *Results) Since(_ context.Context, endpointID uuid.UUID, since time.Time) ([]result.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []result.Record
	for _, r := range s.byEndpoint[endpointID] {
		if !r.CheckedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Results) Count(_ context.Context, endpointID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEndpoint[endpointID]), nil
}

func (s *Results) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, list := range s.byEndpoint {
		kept := list[:0]
		for _, r := range list {
			if r.CheckedAt.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, r)
		}
		s.byEndpoint[id] = kept
	}
	return n, nil
}

type Owners struct {
	mu    sync.RWMutex
	items map[uuid.UUID]user.Owner
}

func (s *Owners) Upsert(_ context.Context, o user.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[o.ID]; ok {
		o.MonitorsCount = cur.MonitorsCount
	}
	s.items[o.ID] = o
	return nil
}

func (s *Owners) Get(_ context.Context, ownerID uuid.UUID) (user.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.items[ownerID]
	if !ok {
		return user.Owner{}, &apperror.Error{Kind: apperror.NotFound, Op: "memory.user.get", Message: "owner not found"}
	}
	return o, nil
}

// TierOf treats unknown owners as free.
func (s *Owners) TierOf(_ context.Context, ownerID uuid.UUID) (user.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o, ok := s.items[ownerID]; ok {
		return o.Tier, nil
	}
	return user.TierFree, nil
}

func (s *Owners) IncrementMonitorCount(_ context.Context, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.items[ownerID]
	if !ok {
		o = user.Owner{ID: ownerID, Tier: user.TierFree}
	}
	if !o.IsSubscriber() && o.MonitorsCount >= user.FreeMaxMonitors {
		return &apperror.Error{Kind: apperror.Forbidden, Op: "memory.user.increment_monitor_count", Message: "monitor quota exceeded"}
	}
	o.MonitorsCount++
	s.items[ownerID] = o
	return nil
}

// Alerts enforces the same one-open-per-endpoint rules as the partial
// unique indexes in Postgres.
type Alerts struct {
	mu        sync.RWMutex
	incidents map[uuid.UUID]alert.Incident
	alerts    map[uuid.UUID]alert.Record
}

func (s *Alerts) OpenIncident(_ context.Context, endpointID uuid.UUID) (*alert.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inc := range s.incidents {
		if inc.EndpointID == endpointID && inc.Status == alert.IncidentOpen {
			cp := inc
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Alerts) CreateIncident(_ context.Context, inc *alert.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inc.Status == alert.IncidentOpen {
		for _, cur := range s.incidents {
			if cur.EndpointID == inc.EndpointID && cur.Status == alert.IncidentOpen {
				return &apperror.Error{Kind: apperror.Conflict, Op: "memory.alert.create_incident", Message: "open incident exists"}
			}
		}
	}
	s.incidents[inc.ID] = *inc
	return nil
}

func (s *Alerts) UpdateIncident(_ context.Context, inc *alert.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[inc.ID]; !ok {
		return &apperror.Error{Kind: apperror.NotFound, Op: "memory.alert.update_incident", Message: "incident not found"}
	}
	s.incidents[inc.ID] = *inc
	return nil
}

func (s *Alerts) OpenAlerts(_ context.Context, endpointID uuid.UUID, kind alert.Kind) ([]alert.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(r alert.Record) bool {
		return r.EndpointID == endpointID && r.Kind == kind && r.Status == alert.StatusOpen
	}), nil
}

func (s *Alerts) OpenAlertsForEndpoint(_ context.Context, endpointID uuid.UUID) ([]alert.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(r alert.Record) bool {
		return r.EndpointID == endpointID && r.Status == alert.StatusOpen
	}), nil
}

// AllAlerts returns every alert for an endpoint, oldest first.
func (s *Alerts) AllAlerts(endpointID uuid.UUID) []alert.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(r alert.Record) bool { return r.EndpointID == endpointID })
}

// AllIncidents returns every incident for an endpoint, oldest first.
func (s *Alerts) AllIncidents(endpointID uuid.UUID) []alert.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []alert.Incident
	for _, inc := range s.incidents {
		if inc.EndpointID == endpointID {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Alerts) filter(keep func(alert.Record) bool) []alert.Record {
	var out []alert.Record
	for _, r := range s.alerts {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Alerts) LatestAlert(_ context.Context, endpointID uuid.UUID, kind alert.Kind) (*alert.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *alert.Record
	for _, r := range s.alerts {
		if r.EndpointID != endpointID || r.Kind != kind {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			cp := r
			latest = &cp
		}
	}
	return latest, nil
}

func (s *Alerts) CreateAlert(_ context.Context, rec *alert.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Status == alert.StatusOpen {
		for _, cur := range s.alerts {
			if cur.EndpointID == rec.EndpointID && cur.Kind == rec.Kind && cur.Status == alert.StatusOpen {
				return &apperror.Error{Kind: apperror.Conflict, Op: "memory.alert.create_alert", Message: "open alert exists"}
			}
		}
	}
	s.alerts[rec.ID] = *rec
	return nil
}

func (s *Alerts) UpdateAlert(_ context.Context, rec *alert.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.alerts[rec.ID]
	if !ok {
		return &apperror.Error{Kind: apperror.NotFound, Op: "memory.alert.update_alert", Message: "alert not found"}
	}
	next := *rec
	next.ChannelRef = cur.ChannelRef
	s.alerts[rec.ID] = next
	return nil
}

func (s *Alerts) SetChannelRef(_ context.Context, alertID uuid.UUID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.alerts[alertID]
	if !ok {
		return &apperror.Error{Kind: apperror.NotFound, Op: "memory.alert.set_channel_ref", Message: "alert not found"}
	}
	cur.ChannelRef = ref
	s.alerts[alertID] = cur
	return nil
}

// Restore loads incidents and alerts as given, without the open-state
// checks. Used to import existing state.
func (s *Alerts) Restore(incidents []alert.Incident, alerts []alert.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inc := range incidents {
		s.incidents[inc.ID] = inc
	}
	for _, r := range alerts {
		s.alerts[r.ID] = r
	}
}
