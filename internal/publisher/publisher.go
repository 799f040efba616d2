package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/price-finder/internal/metrics"
	"github.com/Checker-Finance/price-finder/pkg/logger"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

// SearchEventType is the event_type header of search events.
const SearchEventType = "price_finder.search"

// jetStream is the subset of nats.JetStreamContext the publisher uses.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// Publisher emits search events to NATS JetStream.
type Publisher struct {
	nc      *nats.Conn
	js      jetStream
	subject string
	service string
}

// New creates a Publisher on nc's JetStream context.
func New(nc *nats.Conn, subject, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, js: js, subject: subject, service: service}, nil
}

// EnsureStream creates stream over the publisher's subject if it does not exist.
func (p *Publisher) EnsureStream(name string) error {
	_, err := p.js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{p.subject},
		MaxAge:   30 * 24 * time.Hour,
	})
	if err == nil {
		logger.S().Infow("publisher.stream_created", "stream", name, "subject", p.subject)
	}
	return err
}

// PublishSearch emits one search outcome.
func (p *Publisher) PublishSearch(ctx context.Context, e model.SearchLogEntry) error {
	evt := model.SearchEvent{
		EventID:     uuid.New(),
		EventType:   SearchEventType,
		ProductID:   e.ProductID,
		Result:      e.Result,
		PriceOrigin: e.PriceOrigin,
		PriceLocal:  e.PriceLocal,
		Source:      e.Source,
		Timestamp:   e.SearchedAt.UTC(),
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	return p.Publish(ctx, p.subject, evt, nats.Header{
		"event_type": []string{SearchEventType},
		"event_id":   []string{evt.EventID.String()},
		"result":     []string{e.Result},
	})
}

// Publish marshals payload to JSON and publishes it on subject.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any, header nats.Header) error {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed", "subject", subject, "error", err)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	if subject == "" {
		subject = p.subject
	}
	if header == nil {
		header = nats.Header{}
	}
	header.Set("service", p.service)
	header.Set("content_type", "application/json")

	msg := &nats.Msg{Subject: subject, Data: data, Header: header}

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		logger.S().Errorw("publisher.publish_failed", "subject", subject, "error", err)
		metrics.IncNATSMessage(subject, "error")
		return err
	}
	logger.S().Debugw("publisher.publish_success", "subject", subject)
	metrics.IncNATSMessage(subject, "ok")
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
