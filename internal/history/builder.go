package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/Checker-Finance/price-finder/pkg/model"
)

// IDGenerator returns a fresh record id.
type IDGenerator func() string

// NewRecordID returns a time-ordered UUIDv7, falling back to a random UUID.
func NewRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Builder turns successful lookups into history records.
type Builder struct {
	newID IDGenerator
	now   func() time.Time
}

// NewBuilder returns a Builder using UUIDv7 ids and the wall clock.
func NewBuilder() *Builder {
	return NewBuilderWith(NewRecordID, time.Now)
}

// NewBuilderWith lets callers pin id generation and time.
func NewBuilderWith(newID IDGenerator, now func() time.Time) *Builder {
	if newID == nil {
		newID = NewRecordID
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{newID: newID, now: now}
}

// Build snapshots a found product. Identifiers, name, URL and prices are copied
// verbatim; absent fields stay absent.
func (b *Builder) Build(res model.ProductQueryResult) (model.HistoryRecord, error) {
	if !res.Found {
		return model.HistoryRecord{}, ErrLookupMiss
	}
	p := res.Product
	return model.HistoryRecord{
		ID:                 b.newID(),
		ProductID:          p.ProductID,
		AlternateProductID: p.AlternateID,
		ProductName:        p.Name,
		ProductURL:         p.URL,
		PriceOrigin:        p.PriceOrigin,
		PriceLocal:         p.PriceLocal,
		Availability:       Summarize(p.Variants),
		CreatedAt:          b.now().UTC(),
	}, nil
}
