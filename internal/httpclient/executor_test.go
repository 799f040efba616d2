package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/internal/rate"
)

func newExec(retryMax int, client *http.Client) *Executor {
	return New(zap.NewNop(), nil, client, retryMax, "test")
}

// countingHandler returns failStatus for the first failCount calls, then 200 with body.
func countingHandler(failCount int, failStatus int, successBody []byte) (http.Handler, *atomic.Int32) {
	var n atomic.Int32
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if int(n.Add(1)) <= failCount {
			w.WriteHeader(failStatus)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(successBody)
	}), &n
}

func TestDo_ReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><title>x</title></html>"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	body, err := newExec(0, srv.Client()).Do(context.Background(), req, "page")
	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>x</title>")
}

func TestDoJSON_SuccessFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	var out map[string]string
	require.NoError(t, newExec(2, srv.Client()).DoJSON(context.Background(), req, "l2s", &out))
	assert.Equal(t, "ok", out["status"])
}

func TestDoJSON_Retries5xxThenSucceeds(t *testing.T) {
	h, count := countingHandler(1, http.StatusServiceUnavailable, []byte(`{"status":"ok"}`))
	srv := httptest.NewServer(h)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	var out map[string]string
	require.NoError(t, newExec(2, srv.Client()).DoJSON(context.Background(), req, "l2s", &out))
	assert.EqualValues(t, 2, count.Load())
	assert.Equal(t, "ok", out["status"])
}

func TestDo_PostBodyResentOnRetry(t *testing.T) {
	var received []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received = append(received, string(b))
		if len(received) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	payload := []byte(`{"id":"r1"}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(payload))
	_, err := newExec(1, srv.Client()).Do(context.Background(), req, "history_append")
	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.JSONEq(t, `{"id":"r1"}`, received[0])
	assert.JSONEq(t, `{"id":"r1"}`, received[1], "retry must re-send the full body")
}

func TestDo_4xxIsStatusErrorNotRetried(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"missing"}`))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := newExec(2, srv.Client()).Do(context.Background(), req, "page")
	require.Error(t, err)
	assert.EqualValues(t, 1, count.Load())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.JSONEq(t, `{"error":"missing"}`, string(se.Body))
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.False(t, IsStatus(err, http.StatusConflict))
}

func TestDo_ExhaustAllRetries(t *testing.T) {
	h, count := countingHandler(100, http.StatusInternalServerError, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := newExec(2, srv.Client()).Do(context.Background(), req, "l2s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.EqualValues(t, 3, count.Load(), "retryMax=2 means 3 total attempts")
}

func TestDo_ZeroRetries(t *testing.T) {
	h, count := countingHandler(100, http.StatusInternalServerError, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := newExec(0, srv.Client()).Do(context.Background(), req, "l2s")
	require.Error(t, err)
	assert.EqualValues(t, 1, count.Load())
}

func TestDo_TransportErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	req, _ := http.NewRequest(http.MethodGet, addr, nil)
	_, err := newExec(1, &http.Client{Timeout: time.Second}).Do(context.Background(), req, "page")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	h, count := countingHandler(100, http.StatusServiceUnavailable, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := newExec(5, srv.Client()).Do(ctx, req, "l2s")
	require.Error(t, err)
	assert.Less(t, count.Load(), int32(6))
}

func TestDoJSON_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not-json"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	var out map[string]string
	err := newExec(0, srv.Client()).DoJSON(context.Background(), req, "l2s", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode failed")
}

func TestDo_RateLimitedPerHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	mgr := rate.NewManager(rate.Config{RequestsPerSecond: 1000, Burst: 10})
	mgr.Configure(u.Host, rate.Config{RequestsPerSecond: 0.01, Burst: 1})
	exec := New(zap.NewNop(), mgr, srv.Client(), 0, "test")

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := exec.Do(context.Background(), req, "page")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = exec.Do(ctx, req, "page")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
