package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/store"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

// --- Mocks ---

type mockStore struct {
	mu       sync.Mutex
	history  map[string][]model.HistoryRecord
	searches []model.SearchLogEntry
	stats    *model.SearchStats
	statsErr error
	failing  bool
}

func newMockStore() *mockStore {
	return &mockStore{history: map[string][]model.HistoryRecord{}}
}

func (m *mockStore) ListHistory(_ context.Context, sid string) ([]model.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errors.New("redis down")
	}
	return m.history[sid], nil
}

func (m *mockStore) AppendHistory(_ context.Context, sid string, rec model.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("redis down")
	}
	for _, r := range m.history[sid] {
		if r.ID == rec.ID {
			return store.ErrDuplicateRecord
		}
	}
	m.history[sid] = append([]model.HistoryRecord{rec}, m.history[sid]...)
	return nil
}

func (m *mockStore) ClearHistory(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, sid)
	return nil
}

func (m *mockStore) RecordSearch(_ context.Context, e model.SearchLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, e)
	return nil
}

func (m *mockStore) SearchStats(context.Context) (*model.SearchStats, error) {
	return m.stats, m.statsErr
}

func (m *mockStore) HealthCheck(context.Context) error {
	if m.failing {
		return errors.New("redis down")
	}
	return nil
}

func (m *mockStore) Close() error { return nil }

type mockLookup func(ctx context.Context, id string) (model.ProductQueryResult, error)

func (f mockLookup) Lookup(ctx context.Context, id string) (model.ProductQueryResult, error) {
	return f(ctx, id)
}

type mockEvents struct {
	mu     sync.Mutex
	events []model.SearchLogEntry
}

func (m *mockEvents) PublishSearch(_ context.Context, e model.SearchLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// --- Helpers ---

func catalogOf(products map[string]model.Product) mockLookup {
	return func(_ context.Context, id string) (model.ProductQueryResult, error) {
		if id == "boom" {
			return model.ProductQueryResult{}, errors.New("dial tcp: i/o timeout")
		}
		p, ok := products[id]
		if !ok {
			return model.NotFound(), nil
		}
		return model.Found(p), nil
	}
}

func newTestApp(st store.Store, lookup Lookup, events SearchEvents) *fiber.App {
	app := fiber.New()
	h := NewHandler(zap.NewNop(), lookup, st, events)
	RegisterRoutes(app, nil, st, h, SessionConfig{CookieName: "pf_session", TTL: time.Hour}, "price-finder-api")
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body, session string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: "pf_session", Value: session})
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out), string(b))
}

const sessA = "6f1c1a8e-6a55-4bb8-9d0e-7b1b0c1f6a01"
const sessB = "0b7e2d3c-52a1-4f7e-8d6a-3c2b1a0f9e02"

// --- Search ---

func TestSearch_Found(t *testing.T) {
	st := newMockStore()
	events := &mockEvents{}
	app := newTestApp(st, catalogOf(map[string]model.Product{
		"474479": {
			ProductID:   "474479",
			URL:         "https://www.uniqlo.com/jp/ja/products/474479",
			PriceOrigin: decimal.NewNullDecimal(decimal.NewFromInt(1990)),
			PriceLocal:  decimal.NewNullDecimal(decimal.NewFromInt(425)),
			Variants:    []model.ProductVariant{{ID: "a1", Color: "Red 紅", Size: "M", Stock: 3}},
		},
	}), events)

	resp := do(t, app, http.MethodPost, "/api/search", `{"product_id":" 474479 "}`, sessA)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var p model.Product
	decode(t, resp, &p)
	assert.Equal(t, "474479", p.ProductID)
	assert.Equal(t, "425", p.PriceLocal.Decimal.String())
	require.Len(t, p.Variants, 1)

	require.Len(t, st.searches, 1)
	assert.Equal(t, model.SearchResultFound, st.searches[0].Result)
	assert.Equal(t, sessA, st.searches[0].SessionID)
	assert.Len(t, events.events, 1)
	assert.Empty(t, st.history[sessA], "search never writes history")
}

func TestSearch_NotFound(t *testing.T) {
	st := newMockStore()
	app := newTestApp(st, catalogOf(nil), nil)

	resp := do(t, app, http.MethodPost, "/api/search", `{"product_id":"000000"}`, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Len(t, st.searches, 1)
	assert.Equal(t, model.SearchResultNotFound, st.searches[0].Result)
}

func TestSearch_CatalogFault(t *testing.T) {
	st := newMockStore()
	app := newTestApp(st, catalogOf(nil), nil)

	resp := do(t, app, http.MethodPost, "/api/search", `{"product_id":"boom"}`, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	require.Len(t, st.searches, 1)
	assert.Equal(t, model.SearchResultError, st.searches[0].Result)
	assert.NotEmpty(t, st.searches[0].ErrorMessage)
}

func TestSearch_InvalidInput(t *testing.T) {
	called := false
	app := newTestApp(newMockStore(), mockLookup(func(context.Context, string) (model.ProductQueryResult, error) {
		called = true
		return model.NotFound(), nil
	}), nil)

	for _, body := range []string{`{"product_id":""}`, `{"product_id":"   "}`, `{"product_id":"../etc"}`, `{invalid`} {
		resp := do(t, app, http.MethodPost, "/api/search", body, "")
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	}
	assert.False(t, called)
}

// --- History ---

func historyBody(id string) string {
	return `{"id":"` + id + `","product_id":"474479","price_origin":"1990","price_local":null,` +
		`"availability":[{"color":"Red 紅","sizes":["M"]}],"created_at":"2024-05-01T10:00:00Z"}`
}

func TestHistory_AppendListClear(t *testing.T) {
	app := newTestApp(newMockStore(), catalogOf(nil), nil)

	resp := do(t, app, http.MethodPost, "/api/history", historyBody("r1"), sessA)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp = do(t, app, http.MethodPost, "/api/history", historyBody("r2"), sessA)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/history", "", sessA)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got HistoryResponse
	decode(t, resp, &got)
	require.Len(t, got.History, 2)
	assert.Equal(t, "r2", got.History[0].ID)
	assert.True(t, got.History[1].PriceOrigin.Decimal.Equal(decimal.NewFromInt(1990)))

	resp = do(t, app, http.MethodGet, "/api/history", "", sessB)
	var other HistoryResponse
	decode(t, resp, &other)
	assert.NotNil(t, other.History)
	assert.Empty(t, other.History, "history is scoped by session")

	resp = do(t, app, http.MethodDelete, "/api/history", "", sessA)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/history", "", sessA)
	decode(t, resp, &got)
	assert.Empty(t, got.History)
}

func TestHistory_Duplicate(t *testing.T) {
	app := newTestApp(newMockStore(), catalogOf(nil), nil)

	require.Equal(t, fiber.StatusCreated, do(t, app, http.MethodPost, "/api/history", historyBody("r1"), sessA).StatusCode)
	assert.Equal(t, fiber.StatusConflict, do(t, app, http.MethodPost, "/api/history", historyBody("r1"), sessA).StatusCode)
}

func TestHistory_InvalidRecord(t *testing.T) {
	app := newTestApp(newMockStore(), catalogOf(nil), nil)

	bad := []string{
		`{"product_id":"474479","created_at":"2024-05-01T10:00:00Z"}`,
		`{"id":"r1","created_at":"2024-05-01T10:00:00Z"}`,
		`{"id":"r1","product_id":"474479"}`,
		`{"id":"r1","product_id":"474479","created_at":"2024-05-01T10:00:00Z","availability":[{"color":"Red","sizes":[]}]}`,
	}
	for _, body := range bad {
		resp := do(t, app, http.MethodPost, "/api/history", body, sessA)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestHistory_StoreDown(t *testing.T) {
	st := newMockStore()
	st.failing = true
	app := newTestApp(st, catalogOf(nil), nil)

	assert.Equal(t, fiber.StatusServiceUnavailable, do(t, app, http.MethodGet, "/api/history", "", sessA).StatusCode)
	assert.Equal(t, fiber.StatusServiceUnavailable, do(t, app, http.MethodPost, "/api/history", historyBody("r1"), sessA).StatusCode)
}

// --- Session ---

func TestSession_IssuedWhenMissingOrInvalid(t *testing.T) {
	app := newTestApp(newMockStore(), catalogOf(nil), nil)

	for _, sid := range []string{"", "not-a-uuid"} {
		resp := do(t, app, http.MethodGet, "/api/history", "", sid)
		var issued *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == "pf_session" {
				issued = c
			}
		}
		require.NotNil(t, issued)
		assert.NotEqual(t, sid, issued.Value)
		assert.Len(t, issued.Value, 36)
		assert.True(t, issued.HttpOnly)
	}

	resp := do(t, app, http.MethodGet, "/api/history", "", sessA)
	require.NotEmpty(t, resp.Cookies())
	assert.Equal(t, sessA, resp.Cookies()[0].Value, "valid session is kept")
}

// --- Stats / health ---

func TestStats(t *testing.T) {
	st := newMockStore()
	st.stats = &model.SearchStats{
		TotalSearches:      4,
		SuccessfulSearches: 3,
		SuccessRate:        75,
		PopularProducts:    []model.ProductSearchCount{{ProductID: "474479", SearchCount: 3}},
	}
	app := newTestApp(st, catalogOf(nil), nil)

	resp := do(t, app, http.MethodGet, "/api/stats", "", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got model.SearchStats
	decode(t, resp, &got)
	assert.Equal(t, int64(4), got.TotalSearches)
	assert.Equal(t, 75.0, got.SuccessRate)

	st.stats, st.statsErr = nil, store.ErrPostgresUnavailable
	assert.Equal(t, fiber.StatusServiceUnavailable, do(t, app, http.MethodGet, "/api/stats", "", "").StatusCode)
}

func TestHealth(t *testing.T) {
	st := newMockStore()
	app := newTestApp(st, catalogOf(nil), nil)

	resp := do(t, app, http.MethodGet, "/health", "", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])

	st.failing = true
	resp = do(t, app, http.MethodGet, "/health", "", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/status", "", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
