package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/metrics"
	"github.com/Checker-Finance/price-finder/internal/store"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

const searchSource = "api"

// Lookup resolves a product identifier against the catalog.
type Lookup interface {
	Lookup(ctx context.Context, productID string) (model.ProductQueryResult, error)
}

// SearchEvents receives every search outcome; *publisher.Publisher satisfies it.
type SearchEvents interface {
	PublishSearch(ctx context.Context, e model.SearchLogEntry) error
}

// Handler serves the search, history and stats endpoints.
type Handler struct {
	logger *zap.Logger
	lookup Lookup
	store  store.Store
	events SearchEvents
	now    func() time.Time
}

// NewHandler creates a Handler. events is optional.
func NewHandler(logger *zap.Logger, lookup Lookup, st store.Store, events SearchEvents) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger, lookup: lookup, store: st, events: events, now: time.Now}
}

// Search handles POST /api/search.
func (h *Handler) Search(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		metrics.IncSearch(searchSource, "invalid")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	productID := strings.TrimSpace(req.ProductID)
	ctx := c.UserContext()

	entry := model.SearchLogEntry{
		ProductID:  productID,
		Source:     searchSource,
		SessionID:  SessionID(c),
		SearchedAt: h.now().UTC(),
	}

	res, err := h.lookup.Lookup(ctx, productID)
	switch {
	case err != nil:
		h.logger.Error("api.search.lookup_failed", zap.String("product_id", productID), zap.Error(err))
		entry.Result = model.SearchResultError
		entry.ErrorMessage = err.Error()
	case !res.Found:
		entry.Result = model.SearchResultNotFound
	default:
		entry.Result = model.SearchResultFound
		entry.SerialNumber = res.Product.ProductID
		entry.PriceOrigin = res.Product.PriceOrigin
		entry.PriceLocal = res.Product.PriceLocal
		entry.ProductURL = res.Product.URL
	}
	metrics.IncSearch(searchSource, entry.Result)
	h.recordSearch(ctx, entry)

	switch entry.Result {
	case model.SearchResultError:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "catalog unavailable"})
	case model.SearchResultNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	return c.Status(fiber.StatusOK).JSON(res.Product)
}

// recordSearch logs and publishes the outcome. Failures never affect the response.
func (h *Handler) recordSearch(ctx context.Context, e model.SearchLogEntry) {
	if err := h.store.RecordSearch(ctx, e); err != nil {
		metrics.IncError("api", "search_log_failed")
	}
	if h.events == nil {
		return
	}
	if err := h.events.PublishSearch(ctx, e); err != nil {
		h.logger.Warn("api.search.publish_failed", zap.String("product_id", e.ProductID), zap.Error(err))
	}
}

// ListHistory handles GET /api/history.
func (h *Handler) ListHistory(c *fiber.Ctx) error {
	records, err := h.store.ListHistory(c.UserContext(), SessionID(c))
	if err != nil {
		h.logger.Error("api.history.list_failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "history unavailable"})
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}
	return c.JSON(HistoryResponse{History: records})
}

// AppendHistory handles POST /api/history.
func (h *Handler) AppendHistory(c *fiber.Ctx) error {
	var rec model.HistoryRecord
	if err := c.BodyParser(&rec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validateRecord(rec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	err := h.store.AppendHistory(c.UserContext(), SessionID(c), rec)
	if errors.Is(err, store.ErrDuplicateRecord) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "record already exists", "id": rec.ID})
	}
	if err != nil {
		h.logger.Error("api.history.append_failed", zap.String("record_id", rec.ID), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "history unavailable"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": rec.ID})
}

// ClearHistory handles DELETE /api/history.
func (h *Handler) ClearHistory(c *fiber.Ctx) error {
	if err := h.store.ClearHistory(c.UserContext(), SessionID(c)); err != nil {
		h.logger.Error("api.history.clear_failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "history unavailable"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(c *fiber.Ctx) error {
	st, err := h.store.SearchStats(c.UserContext())
	if errors.Is(err, store.ErrPostgresUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "search log disabled"})
	}
	if err != nil {
		h.logger.Error("api.stats.failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load stats"})
	}
	return c.JSON(st)
}
