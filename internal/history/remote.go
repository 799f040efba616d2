package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/metrics"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

// ErrRemoteDuplicate is returned by a RemoteHistory when the service already
// holds a record with the same id.
var ErrRemoteDuplicate = errors.New("history: remote already has record")

// RemoteHistory is the session-scoped history kept by the service.
type RemoteHistory interface {
	List(ctx context.Context) ([]model.HistoryRecord, error)
	Append(ctx context.Context, rec model.HistoryRecord) error
	Clear(ctx context.Context) error
}

// RemoteStore mirrors the service's session history. Mutations that the
// service rejects are applied locally and queued for the next Persist.
type RemoteStore struct {
	mu           sync.Mutex
	seq          *sequence
	remote       RemoteHistory
	logger       *zap.Logger
	pending      []model.HistoryRecord // oldest first
	pendingClear bool
}

var _ Store = (*RemoteStore)(nil)

// NewRemote returns an empty store backed by remote.
func NewRemote(logger *zap.Logger, remote RemoteHistory, capacity int) *RemoteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteStore{
		seq:    newSequence(capacity, ModeRemote),
		remote: remote,
		logger: logger,
	}
}

func (s *RemoteStore) Mode() Mode { return ModeRemote }

func (s *RemoteStore) CurrentView() []model.HistoryRecord {
	return s.seq.view()
}

// Pending reports how many mutations are waiting to be replayed.
func (s *RemoteStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	if s.pendingClear {
		n++
	}
	return n
}

func (s *RemoteStore) Insert(ctx context.Context, rec model.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		return ErrInvalidRecord
	}
	if s.seq.contains(rec.ID) {
		return ErrDuplicateRecord
	}

	if err := s.flushLocked(ctx); err != nil {
		return s.deferInsertLocked(rec, err)
	}
	if err := s.remote.Append(ctx, rec); err != nil && !errors.Is(err, ErrRemoteDuplicate) {
		return s.deferInsertLocked(rec, err)
	}
	if err := s.refreshLocked(ctx); err != nil {
		s.logger.Warn("history.remote.refresh_failed", zap.String("record_id", rec.ID), zap.Error(err))
		return s.seq.prepend(rec)
	}
	// the service may have lost the record between append and list
	if !s.seq.contains(rec.ID) {
		return s.seq.prepend(rec)
	}
	return nil
}

func (s *RemoteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq.clear()
	s.pending = nil
	if err := s.remote.Clear(ctx); err != nil {
		s.pendingClear = true
		metrics.IncPersistFailure(string(ModeRemote))
		s.logger.Warn("history.remote.clear_failed", zap.Error(err))
		return fmt.Errorf("%w: clear remote history: %w", ErrPersistFailed, err)
	}
	s.pendingClear = false
	return nil
}

// Persist replays queued mutations and then re-reads the service history.
func (s *RemoteStore) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(ctx); err != nil {
		metrics.IncPersistFailure(string(ModeRemote))
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	if err := s.refreshLocked(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	return nil
}

// Restore replaces the history with the service's. On failure the history is
// left empty and the error returned.
func (s *RemoteStore) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	s.pendingClear = false
	if err := s.refreshLocked(ctx); err != nil {
		s.seq.clear()
		s.logger.Warn("history.remote.restore_failed", zap.Error(err))
		return fmt.Errorf("restore remote history: %w", err)
	}
	return nil
}

func (s *RemoteStore) deferInsertLocked(rec model.HistoryRecord, cause error) error {
	if err := s.seq.prepend(rec); err != nil {
		return err
	}
	s.pending = append(s.pending, rec.Clone())
	if over := len(s.pending) - s.seq.capacity; over > 0 {
		s.pending = s.pending[over:]
	}
	metrics.IncPersistFailure(string(ModeRemote))
	s.logger.Warn("history.remote.append_failed",
		zap.String("record_id", rec.ID),
		zap.Int("pending", len(s.pending)),
		zap.Error(cause))
	return fmt.Errorf("%w: append remote history: %w", ErrPersistFailed, cause)
}

func (s *RemoteStore) flushLocked(ctx context.Context) error {
	if s.pendingClear {
		if err := s.remote.Clear(ctx); err != nil {
			return fmt.Errorf("replay clear: %w", err)
		}
		s.pendingClear = false
	}
	for len(s.pending) > 0 {
		rec := s.pending[0]
		if err := s.remote.Append(ctx, rec); err != nil && !errors.Is(err, ErrRemoteDuplicate) {
			return fmt.Errorf("replay record %s: %w", rec.ID, err)
		}
		s.pending = s.pending[1:]
	}
	s.pending = nil
	return nil
}

func (s *RemoteStore) refreshLocked(ctx context.Context) error {
	records, err := s.remote.List(ctx)
	if err != nil {
		return err
	}
	s.seq.reset(records)
	return nil
}
