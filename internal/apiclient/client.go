// Package apiclient talks to the price-finder service: catalog search and
// the session-scoped history.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/history"
	"github.com/Checker-Finance/price-finder/internal/httpclient"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

// SessionCookie is the cookie the service uses to scope history.
const SessionCookie = "pf_session"

// Client is a service client. It keeps the session cookie the service issues
// and sends it back on every request.
type Client struct {
	exec    *httpclient.Executor
	baseURL *url.URL
	jar     http.CookieJar
	logger  *zap.Logger
}

var _ history.RemoteHistory = (*Client)(nil)

// Options configures New.
type Options struct {
	BaseURL      string
	SessionToken string
	Timeout      time.Duration
	RetryMax     int
}

// New returns a client for the service at opts.BaseURL. A non-empty
// SessionToken resumes an existing session.
func New(logger *zap.Logger, opts Options) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid service url %q", opts.BaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if opts.SessionToken != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: SessionCookie, Value: opts.SessionToken, Path: "/"}})
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: timeout, Jar: jar}
	return &Client{
		exec:    httpclient.New(logger, nil, hc, opts.RetryMax, "price_finder_api"),
		baseURL: base,
		jar:     jar,
		logger:  logger,
	}, nil
}

// Session returns the current session token, if the service issued one.
func (c *Client) Session() string {
	for _, ck := range c.jar.Cookies(c.baseURL) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// Lookup searches the catalog through the service. Ids the service rejects as
// malformed are reported as not found, as the catalog itself would.
func (c *Client) Lookup(ctx context.Context, productID string) (model.ProductQueryResult, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/search", map[string]string{"product_id": productID})
	if err != nil {
		return model.ProductQueryResult{}, err
	}
	var p model.Product
	err = c.exec.DoJSON(ctx, req, "search", &p)
	// the service rejects malformed ids with 400; no catalog product can match them
	if httpclient.IsStatus(err, http.StatusNotFound) || httpclient.IsStatus(err, http.StatusBadRequest) {
		return model.NotFound(), nil
	}
	if err != nil {
		return model.ProductQueryResult{}, fmt.Errorf("search %s: %w", productID, err)
	}
	return model.Found(p), nil
}

type historyResponse struct {
	History []model.HistoryRecord `json:"history"`
}

// List returns the session history, most recent first.
func (c *Client) List(ctx context.Context) ([]model.HistoryRecord, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/api/history", nil)
	if err != nil {
		return nil, err
	}
	var resp historyResponse
	if err := c.exec.DoJSON(ctx, req, "history_list", &resp); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return resp.History, nil
}

// Append adds rec to the session history. A record the service already holds
// is reported as history.ErrRemoteDuplicate.
func (c *Client) Append(ctx context.Context, rec model.HistoryRecord) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/history", rec)
	if err != nil {
		return err
	}
	_, err = c.exec.Do(ctx, req, "history_append")
	if httpclient.IsStatus(err, http.StatusConflict) {
		return history.ErrRemoteDuplicate
	}
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Clear empties the session history.
func (c *Client) Clear(ctx context.Context) error {
	req, err := c.newJSONRequest(ctx, http.MethodDelete, "/api/history", nil)
	if err != nil {
		return err
	}
	if _, err := c.exec.Do(ctx, req, "history_clear"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	var req *http.Request
	var err error
	if body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return nil, fmt.Errorf("encode request: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
