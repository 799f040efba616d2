// Package search drives one search at a time from query to history record.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/history"
	"github.com/Checker-Finance/price-finder/internal/metrics"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

// State is the controller's position in Idle → Searching → outcome → Idle.
type State string

const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
)

// Lookup resolves a product identifier against the catalog. A missing product
// is reported as a not-found result, never as an error.
type Lookup interface {
	Lookup(ctx context.Context, productID string) (model.ProductQueryResult, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, productID string) (model.ProductQueryResult, error)

func (f LookupFunc) Lookup(ctx context.Context, productID string) (model.ProductQueryResult, error) {
	return f(ctx, productID)
}

// Result is a successful submission.
type Result struct {
	Record model.HistoryRecord
	// PersistErr is set when the record is in the history but could not be
	// saved to its backing location.
	PersistErr error
}

// Controller owns the search state and writes successful searches to a store.
type Controller struct {
	lookup  Lookup
	builder *history.Builder
	store   history.Store
	source  string
	logger  *zap.Logger

	mu         sync.Mutex
	state      State
	query      string
	lastErr    error
	persistErr error

	lifecycle sync.RWMutex
	closed    atomic.Bool
}

var errClosed = errors.New("controller closed")

// Option configures a Controller.
type Option func(*Controller)

// WithBuilder replaces the default record builder.
func WithBuilder(b *history.Builder) Option {
	return func(c *Controller) { c.builder = b }
}

// WithSource labels the controller's searches in metrics.
func WithSource(source string) Option {
	return func(c *Controller) { c.source = source }
}

// NewController returns an idle controller.
func NewController(logger *zap.Logger, lookup Lookup, store history.Store, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		lookup:  lookup,
		builder: history.NewBuilder(),
		store:   store,
		source:  "client",
		logger:  logger,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit runs one search. It returns ErrBusy while another search is in flight.
func (c *Controller) Submit(ctx context.Context, query string) (Result, error) {
	if c.closed.Load() {
		return Result{}, newError(KindServiceUnavailable, errClosed)
	}

	c.mu.Lock()
	if c.state == StateSearching {
		c.mu.Unlock()
		return Result{}, newError(KindBusy, nil)
	}
	c.query = query
	productID := strings.TrimSpace(query)
	if productID == "" {
		err := newError(KindInvalidInput, errors.New("empty product id"))
		c.lastErr = err
		c.mu.Unlock()
		metrics.IncSearch(c.source, "invalid")
		return Result{}, err
	}
	c.state = StateSearching
	c.lastErr = nil
	c.mu.Unlock()

	res, err := c.lookup.Lookup(ctx, productID)
	return c.complete(ctx, productID, res, err)
}

func (c *Controller) complete(ctx context.Context, productID string, res model.ProductQueryResult, lookupErr error) (Result, error) {
	if lookupErr != nil {
		c.logger.Warn("search.lookup_failed", zap.String("product_id", productID), zap.Error(lookupErr))
		metrics.IncSearch(c.source, model.SearchResultError)
		return Result{}, c.finish(newError(KindServiceUnavailable, lookupErr), nil)
	}

	rec, err := c.builder.Build(res)
	if errors.Is(err, history.ErrLookupMiss) {
		metrics.IncSearch(c.source, model.SearchResultNotFound)
		return Result{}, c.finish(newError(KindNotFound, err), nil)
	}
	if err != nil {
		return Result{}, c.finish(newError(KindServiceUnavailable, err), nil)
	}

	// lifecycle is held across the store write so Close waits for it
	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	if c.closed.Load() {
		c.logger.Debug("search.result_dropped", zap.String("product_id", productID))
		return Result{}, c.finish(newError(KindServiceUnavailable, errClosed), nil)
	}

	out := Result{Record: rec}
	if err := c.store.Insert(ctx, rec); err != nil {
		if !errors.Is(err, history.ErrPersistFailed) {
			c.logger.Error("search.insert_failed", zap.String("record_id", rec.ID), zap.Error(err))
			return Result{}, c.finish(newError(KindServiceUnavailable, err), nil)
		}
		c.logger.Warn("search.persist_failed", zap.String("record_id", rec.ID), zap.Error(err))
		out.PersistErr = err
	}

	metrics.IncSearch(c.source, model.SearchResultFound)
	c.logger.Debug("search.completed",
		zap.String("product_id", rec.ProductID),
		zap.String("record_id", rec.ID),
		zap.Int("colors", len(rec.Availability)))
	_ = c.finish(nil, &out)
	return out, nil
}

// finish returns the controller to Idle. A nil fault means success.
func (c *Controller) finish(fault *Error, ok *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	if ok != nil {
		c.query = ""
		c.lastErr = nil
		c.persistErr = ok.PersistErr
		return nil
	}
	c.lastErr = fault
	return fault
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Query returns the text of the last submission; cleared after a success.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// LastError returns the fault of the last submission, or nil.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastPersistError returns the persistence failure of the last successful search, or nil.
func (c *Controller) LastPersistError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistErr
}

// History returns the store's current view.
func (c *Controller) History() []model.HistoryRecord {
	return c.store.CurrentView()
}

// Close marks the controller dead. An in-flight lookup finishing later is
// discarded; a store write already underway completes before Close returns.
func (c *Controller) Close() {
	c.lifecycle.Lock()
	c.closed.Store(true)
	c.lifecycle.Unlock()
}
