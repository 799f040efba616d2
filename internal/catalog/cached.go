package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Checker-Finance/price-finder/internal/metrics"
	"github.com/Checker-Finance/price-finder/pkg/cache"
	"github.com/Checker-Finance/price-finder/pkg/model"
)

// Lookup resolves a product identifier.
type Lookup interface {
	Lookup(ctx context.Context, productID string) (model.ProductQueryResult, error)
}

// CachedLookup caches found products and collapses concurrent lookups of the
// same id into one upstream call. Misses and errors are never cached.
type CachedLookup struct {
	next   Lookup
	cache  *cache.TTL[model.Product]
	group  singleflight.Group
	logger *zap.Logger
}

func NewCachedLookup(logger *zap.Logger, next Lookup, c *cache.TTL[model.Product]) *CachedLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLookup{next: next, cache: c, logger: logger}
}

func (l *CachedLookup) Lookup(ctx context.Context, productID string) (model.ProductQueryResult, error) {
	key := strings.ToUpper(strings.TrimSpace(productID))
	if p, ok := l.cache.Get(key); ok {
		metrics.IncCacheAccess("product", "hit")
		return model.Found(cloneProduct(p)), nil
	}
	metrics.IncCacheAccess("product", "miss")

	// the shared call outlives any single caller; each caller still honors its own ctx
	flight := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		res, err := l.next.Lookup(flight, productID)
		if err != nil {
			return res, err
		}
		if res.Found {
			l.cache.Put(key, res.Product)
		}
		return res, nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return model.ProductQueryResult{}, ctx.Err()
	}
	if r.Err != nil {
		return model.ProductQueryResult{}, r.Err
	}
	if r.Shared {
		l.logger.Debug("catalog.lookup_shared", zap.String("product_id", productID))
	}
	res := r.Val.(model.ProductQueryResult)
	if res.Found {
		res.Product = cloneProduct(res.Product)
	}
	return res, nil
}

func cloneProduct(p model.Product) model.Product {
	p.Variants = append([]model.ProductVariant(nil), p.Variants...)
	return p
}
