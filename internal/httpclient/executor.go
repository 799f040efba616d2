// Package httpclient executes outbound HTTP calls with per-host rate limiting,
// bounded retries on transport and 5xx failures, and optional JSON decoding.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/metrics"
	"github.com/Checker-Finance/price-finder/internal/rate"
)

// maxBodyBytes caps how much of a response body is buffered.
const maxBodyBytes = 8 << 20

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// StatusError is returned for 4xx responses, which are never retried.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// IsStatus reports whether err is a *StatusError with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// Executor handles rate-limited, retrying HTTP execution.
type Executor struct {
	logger   *zap.Logger
	rateMgr  *rate.Manager
	http     *http.Client
	retryMax int
	tag      string
}

// New creates an Executor. tag prefixes log events and labels metrics.
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, retryMax int, tag string) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Executor{
		logger:   logger,
		rateMgr:  rateMgr,
		http:     httpClient,
		retryMax: retryMax,
		tag:      tag,
	}
}

// Do executes req and returns the response body of a 2xx/3xx response.
// 4xx responses return a *StatusError; transport errors and 5xx are retried.
// endpoint labels metrics and logs. The limiter is keyed by request host.
func (e *Executor) Do(ctx context.Context, req *http.Request, endpoint string) ([]byte, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, req.URL.Host); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, Backoff(attempt-1)); err != nil {
				return nil, err
			}
		}
		attemptReq, err := rewind(ctx, req, attempt)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		body, status, err := e.roundTrip(attemptReq)
		metrics.ObserveDuration(metrics.UpstreamRequestDuration, start, endpoint)
		if err != nil {
			metrics.IncUpstreamRequest(endpoint, "transport_error")
			lastErr = err
			e.logger.Warn(e.tag+".http_failed",
				zap.String("endpoint", endpoint),
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		metrics.IncUpstreamRequest(endpoint, strconv.Itoa(status))

		if status >= 500 {
			e.logger.Warn(e.tag+".server_error",
				zap.String("endpoint", endpoint),
				zap.Int("status", status),
				zap.Int("attempt", attempt),
				zap.Duration("latency", time.Since(start)))
			lastErr = fmt.Errorf("%s server error: %d", e.tag, status)
			continue
		}
		if status >= 400 {
			return nil, &StatusError{Status: status, Body: body}
		}

		e.logger.Debug(e.tag+".http_success",
			zap.String("endpoint", endpoint),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)))
		return body, nil
	}

	return nil, fmt.Errorf("%s request failed after %d attempts: %w", e.tag, e.retryMax+1, lastErr)
}

// DoJSON is Do followed by JSON decoding of the body into out.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, endpoint string, out any) error {
	body, err := e.Do(ctx, req, endpoint)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		e.logger.Warn(e.tag+".decode_failed",
			zap.String("endpoint", endpoint),
			zap.String("url", req.URL.String()),
			zap.Int("body_len", len(body)),
			zap.Error(err))
		return fmt.Errorf("decode failed: %w", err)
	}
	return nil
}

func (e *Executor) roundTrip(req *http.Request) ([]byte, int, error) {
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// rewind returns the request to send on the given attempt. Retries need a
// fresh body, which GetBody provides for bytes/strings readers.
func rewind(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	r := req.WithContext(ctx)
	if attempt == 0 || req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind body: %w", err)
	}
	r.Body = body
	return r, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
