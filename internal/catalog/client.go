// Package catalog looks products up on the UNIQLO Japan storefront and its
// commerce API, converting the origin price to TWD.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/httpclient"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

// ErrNotFound is returned by the internal steps when the catalog has no such
// product. Lookup reports it as a not-found result.
var ErrNotFound = errors.New("catalog: product not found")

const (
	productPagePath = "/jp/ja/products/"
	commerceAPIPath = "/jp/api/commerce/v5/ja/products"
	stockOutStatus  = "STOCK_OUT"
)

// Client is the live catalog.
type Client struct {
	exec    *httpclient.Executor
	baseURL string
	rates   RateSource
	logger  *zap.Logger
}

// NewClient returns a catalog client rooted at baseURL. A nil rates source
// leaves PriceLocal unset.
func NewClient(logger *zap.Logger, exec *httpclient.Executor, baseURL string, rates RateSource) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		exec:    exec,
		baseURL: strings.TrimRight(baseURL, "/"),
		rates:   rates,
		logger:  logger,
	}
}

// Lookup resolves productID. A missing product is a NotFound result with a nil
// error; transport and server failures are returned as errors.
func (c *Client) Lookup(ctx context.Context, productID string) (model.ProductQueryResult, error) {
	p, err := c.lookup(ctx, productID, true)
	if errors.Is(err, ErrNotFound) {
		c.logger.Debug("catalog.not_found", zap.String("product_id", productID))
		return model.NotFound(), nil
	}
	if err != nil {
		c.logger.Warn("catalog.lookup_failed", zap.String("product_id", productID), zap.Error(err))
		return model.ProductQueryResult{}, err
	}
	return model.Found(p), nil
}

func (c *Client) lookup(ctx context.Context, productID string, relax bool) (model.Product, error) {
	pageURL := c.baseURL + productPagePath + url.PathEscape(productID)

	title, err := c.fetchTitle(ctx, pageURL)
	switch {
	case err == nil:
	case httpclient.IsStatus(err, http.StatusNotFound):
		if relax {
			alt, rerr := c.relaxedSearch(ctx, productID)
			if rerr == nil {
				c.logger.Debug("catalog.relaxed_match",
					zap.String("product_id", productID),
					zap.String("matched", alt))
				return c.lookup(ctx, alt, false)
			}
			if !errors.Is(rerr, ErrNotFound) {
				return model.Product{}, rerr
			}
		}
	case isClientError(err):
		c.logger.Debug("catalog.page_unavailable", zap.String("url", pageURL), zap.Error(err))
	default:
		return model.Product{}, err
	}

	p, err := c.fetchDetail(ctx, productID)
	if err != nil {
		return model.Product{}, err
	}
	p.Name = title
	p.URL = pageURL
	c.convert(ctx, &p)
	return p, nil
}

func (c *Client) fetchTitle(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	body, err := c.exec.Do(ctx, req, "product_page")
	if err != nil {
		return "", err
	}
	return pageTitle(body), nil
}

// relaxedSearch asks the search API for the closest product and returns its
// six-digit id.
func (c *Client) relaxedSearch(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("queryRelaxationFlag", "true")
	q.Set("offset", "0")
	q.Set("limit", "36")
	q.Set("httpFailure", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+commerceAPIPath+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	var resp searchResponse
	if err := c.exec.DoJSON(ctx, req, "relaxed_search", &resp); err != nil {
		if isClientError(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("relaxed search: %w", err)
	}
	if resp.Status != "ok" || len(resp.Result.Items) == 0 {
		return "", ErrNotFound
	}
	// productId looks like "E474479-000"
	id := resp.Result.Items[0].ProductID
	if len(id) < 7 {
		return "", ErrNotFound
	}
	return id[1:7], nil
}

func (c *Client) fetchDetail(ctx context.Context, productID string) (model.Product, error) {
	detailURL := fmt.Sprintf("%s%s/E%s-000/price-groups/00/l2s?withPrices=true&withStocks=true&includePreviousPrice=false&httpFailure=true",
		c.baseURL, commerceAPIPath, url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailURL, nil)
	if err != nil {
		return model.Product{}, err
	}

	var resp l2sResponse
	if err := c.exec.DoJSON(ctx, req, "l2s", &resp); err != nil {
		if isClientError(err) {
			return model.Product{}, ErrNotFound
		}
		return model.Product{}, fmt.Errorf("product detail: %w", err)
	}
	if resp.Status != "ok" || len(resp.Result.L2s) == 0 {
		return model.Product{}, ErrNotFound
	}
	return toProduct(productID, &resp), nil
}

func (c *Client) convert(ctx context.Context, p *model.Product) {
	if c.rates == nil || !p.PriceOrigin.Valid {
		return
	}
	rate, err := c.rates.Rate(ctx)
	if err != nil {
		c.logger.Warn("catalog.rate_unavailable", zap.String("product_id", p.ProductID), zap.Error(err))
		return
	}
	p.PriceLocal = decimal.NewNullDecimal(p.PriceOrigin.Decimal.Mul(rate).Round(0))
}

func isClientError(err error) bool {
	var se *httpclient.StatusError
	return errors.As(err, &se) && se.Status < 500
}
