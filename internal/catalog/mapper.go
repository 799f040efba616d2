package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/price-finder/pkg/model"
)

func toProduct(productID string, resp *l2sResponse) model.Product {
	p := model.Product{
		ProductID: productID,
		Variants:  make([]model.ProductVariant, 0, len(resp.Result.L2s)),
	}
	for i, item := range resp.Result.L2s {
		v := model.ProductVariant{
			ID:    item.L2ID,
			Color: ColorName(item.Color.Code),
			Size:  SizeName(item.Size.Code),
			Stock: stockOf(resp.Result.Stocks, item.L2ID),
		}
		price, ok := priceOf(resp.Result.Prices, item.L2ID)
		if ok {
			v.Price = price
		}
		if i == 0 {
			if ok {
				p.PriceOrigin = decimal.NewNullDecimal(price)
			}
			if len(item.CommunicationCode) >= 6 {
				p.AlternateID = item.CommunicationCode[:6]
			}
		}
		p.Variants = append(p.Variants, v)
	}
	return p
}

// stockOf prefers the reported quantity; without one, any status other than
// STOCK_OUT counts as a single available unit.
func stockOf(stocks map[string]l2Stock, l2ID string) int {
	s, ok := stocks[l2ID]
	if !ok {
		return 0
	}
	if s.Quantity != nil {
		if n, err := s.Quantity.Int64(); err == nil {
			return int(max(n, 0))
		}
	}
	if s.StatusCode == "" || s.StatusCode == stockOutStatus {
		return 0
	}
	return 1
}

func priceOf(prices map[string]l2Price, l2ID string) (decimal.Decimal, bool) {
	p, ok := prices[l2ID]
	if !ok || p.Base.Value == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(p.Base.Value.String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
