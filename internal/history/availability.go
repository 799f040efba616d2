package history

import "github.com/Checker-Finance/price-finder/pkg/model"

// Summarize groups in-stock variants by color. Colors keep the order of their
// first in-stock variant; sizes keep variant order and are not deduplicated.
// Out-of-stock variants never create a color entry. The result is never nil.
func Summarize(variants []model.ProductVariant) model.Availability {
	out := model.Availability{}
	index := make(map[string]int)
	for _, v := range variants {
		if !v.InStock() {
			continue
		}
		i, ok := index[v.Color]
		if !ok {
			i = len(out)
			index[v.Color] = i
			out = append(out, model.ColorSizes{Color: v.Color})
		}
		out[i].Sizes = append(out[i].Sizes, v.Size)
	}
	return out
}
