package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ColorSizes lists the in-stock sizes of one color, in catalog order.
type ColorSizes struct {
	Color string   `json:"color"`
	Sizes []string `json:"sizes"`
}

// Availability maps colors to in-stock sizes. It is ordered: colors appear in
// the order their first in-stock variant appeared in the catalog response.
type Availability []ColorSizes

// Sizes returns the sizes listed for color.
func (a Availability) Sizes(color string) ([]string, bool) {
	for _, cs := range a {
		if cs.Color == color {
			return cs.Sizes, true
		}
	}
	return nil, false
}

// Colors returns the colors in summary order.
func (a Availability) Colors() []string {
	out := make([]string, 0, len(a))
	for _, cs := range a {
		out = append(out, cs.Color)
	}
	return out
}

// Clone returns a deep copy.
func (a Availability) Clone() Availability {
	if a == nil {
		return nil
	}
	out := make(Availability, len(a))
	for i, cs := range a {
		out[i] = ColorSizes{
			Color: cs.Color,
			Sizes: append([]string(nil), cs.Sizes...),
		}
	}
	return out
}

// HistoryRecord is an immutable snapshot of one completed search.
type HistoryRecord struct {
	ID                 string              `json:"id"`
	ProductID          string              `json:"product_id"`
	AlternateProductID string              `json:"alternate_product_id,omitempty"`
	ProductName        string              `json:"product_name,omitempty"`
	ProductURL         string              `json:"product_url,omitempty"`
	PriceOrigin        decimal.NullDecimal `json:"price_origin"`
	PriceLocal         decimal.NullDecimal `json:"price_local"`
	Availability       Availability        `json:"availability"`
	CreatedAt          time.Time           `json:"created_at"`
}

// Clone returns a copy that shares no mutable state with r.
func (r HistoryRecord) Clone() HistoryRecord {
	out := r
	out.Availability = r.Availability.Clone()
	return out
}
