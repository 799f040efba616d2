package api

import (
	"fmt"
	"strings"

	"github.com/Checker-Finance/price-finder/pkg/model"
)

const maxProductIDLen = 32

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	ProductID string `json:"product_id"`
}

func (r SearchRequest) Validate() error {
	id := strings.TrimSpace(r.ProductID)
	if id == "" {
		return fmt.Errorf("product_id is required")
	}
	if len(id) > maxProductIDLen {
		return fmt.Errorf("product_id must be at most %d characters", maxProductIDLen)
	}
	for _, ch := range id {
		if !isIDChar(ch) {
			return fmt.Errorf("product_id may contain only letters, digits and '-'")
		}
	}
	return nil
}

func isIDChar(ch rune) bool {
	return ch == '-' || ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func validateRecord(r model.HistoryRecord) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(r.ProductID) == "" {
		return fmt.Errorf("product_id is required")
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	for _, cs := range r.Availability {
		if len(cs.Sizes) == 0 {
			return fmt.Errorf("availability color %q has no sizes", cs.Color)
		}
	}
	return nil
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	History []model.HistoryRecord `json:"history"`
}
