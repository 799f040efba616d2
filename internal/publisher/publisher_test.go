package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/price-finder/pkg/model"
)

type mockJetStream struct {
	published []*nats.Msg
	fail      bool
	streams   map[string]*nats.StreamConfig
}

func (m *mockJetStream) PublishMsg(msg *nats.Msg, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if m.fail {
		return nil, errors.New("mock publish error")
	}
	m.published = append(m.published, msg)
	return &nats.PubAck{Stream: "mock-stream"}, nil
}

func (m *mockJetStream) StreamInfo(stream string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	if cfg, ok := m.streams[stream]; ok {
		return &nats.StreamInfo{Config: *cfg}, nil
	}
	return nil, nats.ErrStreamNotFound
}

func (m *mockJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	if m.streams == nil {
		m.streams = map[string]*nats.StreamConfig{}
	}
	m.streams[cfg.Name] = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func newTestPublisher(js *mockJetStream) *Publisher {
	return &Publisher{js: js, subject: "evt.price_finder.search.v1", service: "price-finder-api"}
}

func TestPublishSearch(t *testing.T) {
	js := &mockJetStream{}
	p := newTestPublisher(js)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := p.PublishSearch(context.Background(), model.SearchLogEntry{
		ProductID:   "474479",
		Result:      model.SearchResultFound,
		PriceOrigin: decimal.NewNullDecimal(decimal.NewFromInt(1990)),
		Source:      "api",
		SearchedAt:  at,
	})
	require.NoError(t, err)
	require.Len(t, js.published, 1)

	msg := js.published[0]
	assert.Equal(t, "evt.price_finder.search.v1", msg.Subject)
	assert.Equal(t, SearchEventType, msg.Header.Get("event_type"))
	assert.Equal(t, "price-finder-api", msg.Header.Get("service"))
	assert.Equal(t, "application/json", msg.Header.Get("content_type"))

	var evt model.SearchEvent
	require.NoError(t, json.Unmarshal(msg.Data, &evt))
	assert.Equal(t, "474479", evt.ProductID)
	assert.Equal(t, model.SearchResultFound, evt.Result)
	assert.True(t, evt.Timestamp.Equal(at))
	assert.Equal(t, msg.Header.Get("event_id"), evt.EventID.String())
}

func TestPublish_Failure(t *testing.T) {
	p := newTestPublisher(&mockJetStream{fail: true})
	err := p.Publish(context.Background(), "", map[string]string{"k": "v"}, nil)
	assert.Error(t, err)
}

func TestPublish_MarshalFailure(t *testing.T) {
	js := &mockJetStream{}
	p := newTestPublisher(js)
	err := p.Publish(context.Background(), "x", map[string]any{"bad": make(chan int)}, nil)
	assert.Error(t, err)
	assert.Empty(t, js.published)
}

func TestEnsureStream(t *testing.T) {
	js := &mockJetStream{}
	p := newTestPublisher(js)

	require.NoError(t, p.EnsureStream("PRICE_FINDER_EVENTS"))
	require.Contains(t, js.streams, "PRICE_FINDER_EVENTS")
	assert.Equal(t, []string{"evt.price_finder.search.v1"}, js.streams["PRICE_FINDER_EVENTS"].Subjects)

	// existing stream is left alone
	js.streams["PRICE_FINDER_EVENTS"].MaxAge = time.Hour
	require.NoError(t, p.EnsureStream("PRICE_FINDER_EVENTS"))
	assert.Equal(t, time.Hour, js.streams["PRICE_FINDER_EVENTS"].MaxAge)
}
