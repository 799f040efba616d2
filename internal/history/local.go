package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/metrics"
	"github.com/Checker-Finance/price-finder/internal/slot"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

// Slot is a named durable location holding one opaque payload.
type Slot interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, payload []byte) error
}

// LocalStore persists history to a single local slot, writing through on
// every mutation.
type LocalStore struct {
	mu     sync.Mutex
	seq    *sequence
	slot   Slot
	name   string
	logger *zap.Logger
}

var _ Store = (*LocalStore)(nil)

// NewLocal returns an empty store bound to the slot called name.
// Call Restore to load what a previous session saved.
func NewLocal(logger *zap.Logger, s Slot, name string, capacity int) *LocalStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{
		seq:    newSequence(capacity, ModeLocal),
		slot:   s,
		name:   name,
		logger: logger,
	}
}

func (s *LocalStore) Mode() Mode { return ModeLocal }

func (s *LocalStore) CurrentView() []model.HistoryRecord {
	return s.seq.view()
}

func (s *LocalStore) Insert(ctx context.Context, rec model.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.seq.prepend(rec); err != nil {
		return err
	}
	return s.persistLocked(ctx)
}

func (s *LocalStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq.clear()
	return s.persistLocked(ctx)
}

func (s *LocalStore) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// Restore loads the slot. A missing or unreadable payload leaves the history
// empty without error; a failing read leaves it empty and returns the error.
func (s *LocalStore) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.slot.Read(ctx, s.name)
	if errors.Is(err, slot.ErrNotFound) {
		s.seq.clear()
		return nil
	}
	if err != nil {
		s.seq.clear()
		s.logger.Warn("history.local.restore_failed", zap.String("slot", s.name), zap.Error(err))
		return fmt.Errorf("restore history from slot %q: %w", s.name, err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		s.seq.clear()
		s.logger.Warn("history.local.slot_corrupt", zap.String("slot", s.name), zap.Error(err))
		metrics.IncError("history", "slot_corrupt")
		return nil
	}
	s.seq.reset(records)
	s.logger.Debug("history.local.restored",
		zap.String("slot", s.name),
		zap.Int("records", len(s.seq.load())))
	return nil
}

func (s *LocalStore) persistLocked(ctx context.Context) error {
	payload, err := encodeRecords(s.seq.load())
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistFailed, err)
	}
	if err := s.slot.Write(ctx, s.name, payload); err != nil {
		metrics.IncPersistFailure(string(ModeLocal))
		s.logger.Warn("history.local.persist_failed", zap.String("slot", s.name), zap.Error(err))
		return fmt.Errorf("%w: write slot %q: %w", ErrPersistFailed, s.name, err)
	}
	return nil
}
