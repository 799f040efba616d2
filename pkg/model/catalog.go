package model

import "github.com/shopspring/decimal"

// ProductVariant is one color/size combination of a product as reported by the catalog.
type ProductVariant struct {
	ID    string          `json:"id"`
	Color string          `json:"color"`
	Size  string          `json:"size"`
	Stock int             `json:"stock"`
	Price decimal.Decimal `json:"price"`
}

// InStock reports whether at least one unit is available.
func (v ProductVariant) InStock() bool {
	return v.Stock > 0
}

// Product is the catalog's answer for a single product identifier.
// PriceOrigin is in the catalog's currency; PriceLocal is already converted
// by the catalog side when a rate was available.
type Product struct {
	ProductID   string              `json:"serial_number"`
	AlternateID string              `json:"serial_alt,omitempty"`
	Name        string              `json:"page_title,omitempty"`
	URL         string              `json:"product_url,omitempty"`
	PriceOrigin decimal.NullDecimal `json:"price_origin"`
	PriceLocal  decimal.NullDecimal `json:"price_local"`
	Variants    []ProductVariant    `json:"product_list"`
}

// ProductQueryResult is the outcome of one catalog lookup: either a product
// or the not-found marker. The marker is carried out of band by Found, never
// by a field value.
type ProductQueryResult struct {
	Found   bool
	Product Product
}

// Found wraps a product into a successful lookup result.
func Found(p Product) ProductQueryResult {
	return ProductQueryResult{Found: true, Product: p}
}

// NotFound is the lookup result for an unknown product identifier.
func NotFound() ProductQueryResult {
	return ProductQueryResult{}
}
