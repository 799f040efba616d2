package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/httpclient"
	"github.com/Checker-Finance/price-finder/internal/metrics"
	"github.com/Checker-Finance/price-finder/pkg/cache"
)

const rateCacheKey = "JPY-TWD"

// Google Finance renders the quote in a div carrying both classes.
var quoteClasses = []string{"YMlKec", "fxKbKc"}

// RateSource provides the origin→local currency conversion rate.
type RateSource interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// QuotePageRates scrapes the JPY→TWD rate from a quote page and caches it.
type QuotePageRates struct {
	exec   *httpclient.Executor
	url    string
	cache  *cache.TTL[decimal.Decimal]
	logger *zap.Logger
}

// NewQuotePageRates returns a rate source reading url. cache may be shared;
// a nil cache disables caching.
func NewQuotePageRates(logger *zap.Logger, exec *httpclient.Executor, url string, c *cache.TTL[decimal.Decimal]) *QuotePageRates {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotePageRates{exec: exec, url: url, cache: c, logger: logger}
}

func (q *QuotePageRates) Rate(ctx context.Context) (decimal.Decimal, error) {
	if q.cache != nil {
		if r, ok := q.cache.Get(rateCacheKey); ok {
			metrics.IncCacheAccess("exchange_rate", "hit")
			return r, nil
		}
		metrics.IncCacheAccess("exchange_rate", "miss")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	body, err := q.exec.Do(ctx, req, "exchange_rate")
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch exchange rate: %w", err)
	}

	r, err := parseQuote(body)
	if err != nil {
		q.logger.Warn("catalog.rate_parse_failed", zap.String("url", q.url), zap.Error(err))
		return decimal.Zero, err
	}
	if q.cache != nil {
		q.cache.Put(rateCacheKey, r)
	}
	q.logger.Debug("catalog.rate_refreshed", zap.String("rate", r.String()))
	return r, nil
}

func parseQuote(page []byte) (decimal.Decimal, error) {
	raw, ok := classText(page, quoteClasses...)
	if !ok {
		return decimal.Zero, errors.New("exchange rate element not found")
	}
	r, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse exchange rate %q: %w", raw, err)
	}
	if !r.IsPositive() {
		return decimal.Zero, fmt.Errorf("exchange rate %s is not positive", r)
	}
	return r, nil
}

// FixedRate is a constant RateSource.
type FixedRate decimal.Decimal

func (f FixedRate) Rate(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}
