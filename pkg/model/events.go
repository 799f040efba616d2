package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Search outcomes as recorded in the search log and events.
const (
	SearchResultFound    = "found"
	SearchResultNotFound = "not_found"
	SearchResultError    = "error"
)

// SearchEvent is published after every catalog search handled by the service.
type SearchEvent struct {
	EventID     uuid.UUID           `json:"event_id"`
	EventType   string              `json:"event_type"`
	ProductID   string              `json:"product_id"`
	Result      string              `json:"result"`
	PriceOrigin decimal.NullDecimal `json:"price_origin"`
	PriceLocal  decimal.NullDecimal `json:"price_local"`
	Source      string              `json:"source"`
	Timestamp   time.Time           `json:"timestamp"`
}

// SearchLogEntry is one row of the service's search log.
type SearchLogEntry struct {
	ProductID    string
	SerialNumber string
	Result       string
	PriceOrigin  decimal.NullDecimal
	PriceLocal   decimal.NullDecimal
	ProductURL   string
	Source       string
	SessionID    string
	ErrorMessage string
	SearchedAt   time.Time
}

// Successful reports whether the search found a product.
func (e SearchLogEntry) Successful() bool {
	return e.Result == SearchResultFound
}

// ProductSearchCount is one entry of the popular products ranking.
type ProductSearchCount struct {
	ProductID   string `json:"product_id"`
	SearchCount int64  `json:"search_count"`
}

// SearchStats summarizes the search log.
type SearchStats struct {
	TotalSearches      int64                `json:"total_searches"`
	SuccessfulSearches int64                `json:"successful_searches"`
	SuccessRate        float64              `json:"success_rate"`
	RecentSearches24h  int64                `json:"recent_searches_24h"`
	PopularProducts    []ProductSearchCount `json:"popular_products"`
}
