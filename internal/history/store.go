// Package history keeps the bounded, most-recent-first list of completed
// searches and persists it either to a local slot or to the remote service.
package history

import (
	"context"
	"sync/atomic"

	"github.com/Checker-Finance/price-finder/internal/metrics"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

// DefaultCapacity is the number of records kept when no capacity is configured.
const DefaultCapacity = 20

// Mode identifies where a Store persists.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Store is the bounded search history. Reads never block on persistence.
type Store interface {
	// Insert prepends rec, evicting the oldest record beyond capacity.
	Insert(ctx context.Context, rec model.HistoryRecord) error
	// CurrentView returns a copy of the history, most recent first.
	CurrentView() []model.HistoryRecord
	// Clear empties the history and its backing location.
	Clear(ctx context.Context) error
	// Restore replaces the in-memory history with the persisted one.
	Restore(ctx context.Context) error
	// Persist saves the in-memory history to the backing location.
	Persist(ctx context.Context) error
	Mode() Mode
}

// sequence is a bounded record list published through an atomic pointer.
// Writers must be serialized by the owning store.
type sequence struct {
	capacity int
	mode     Mode
	records  atomic.Pointer[[]model.HistoryRecord]
}

func newSequence(capacity int, mode Mode) *sequence {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &sequence{capacity: capacity, mode: mode}
	empty := []model.HistoryRecord{}
	s.records.Store(&empty)
	return s
}

func (s *sequence) load() []model.HistoryRecord {
	return *s.records.Load()
}

func (s *sequence) view() []model.HistoryRecord {
	cur := s.load()
	out := make([]model.HistoryRecord, len(cur))
	for i, r := range cur {
		out[i] = r.Clone()
	}
	return out
}

func (s *sequence) contains(id string) bool {
	for _, r := range s.load() {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (s *sequence) prepend(rec model.HistoryRecord) error {
	if rec.ID == "" {
		return ErrInvalidRecord
	}
	if s.contains(rec.ID) {
		return ErrDuplicateRecord
	}
	cur := s.load()
	next := make([]model.HistoryRecord, 0, min(len(cur)+1, s.capacity))
	next = append(next, rec.Clone())
	for _, r := range cur {
		if len(next) == s.capacity {
			break
		}
		next = append(next, r)
	}
	if evicted := len(cur) + 1 - len(next); evicted > 0 {
		metrics.AddEvictions(string(s.mode), evicted)
	}
	s.records.Store(&next)
	return nil
}

// reset installs records after dropping entries without id, later duplicates
// and anything beyond capacity. Malformed availability entries are removed.
func (s *sequence) reset(records []model.HistoryRecord) {
	next := make([]model.HistoryRecord, 0, min(len(records), s.capacity))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if len(next) == s.capacity {
			break
		}
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		rec := r.Clone()
		rec.Availability = sanitizeAvailability(rec.Availability)
		next = append(next, rec)
	}
	s.records.Store(&next)
}

// sanitizeAvailability drops colors without sizes and repeated colors, which a
// summary never produces but a tampered durable copy can hold.
func sanitizeAvailability(a model.Availability) model.Availability {
	clean := true
	colors := make(map[string]struct{}, len(a))
	for _, cs := range a {
		if _, dup := colors[cs.Color]; dup || len(cs.Sizes) == 0 {
			clean = false
			break
		}
		colors[cs.Color] = struct{}{}
	}
	if clean {
		return a
	}
	out := make(model.Availability, 0, len(a))
	kept := make(map[string]struct{}, len(a))
	for _, cs := range a {
		if _, dup := kept[cs.Color]; dup || len(cs.Sizes) == 0 {
			continue
		}
		kept[cs.Color] = struct{}{}
		out = append(out, cs)
	}
	return out
}

func (s *sequence) clear() {
	s.reset(nil)
}
