package catalog

import "encoding/json"

// l2sResponse is the product detail payload: one l2 per color/size variant.
type l2sResponse struct {
	Status string `json:"status"`
	Result struct {
		L2s    []l2               `json:"l2s"`
		Stocks map[string]l2Stock `json:"stocks"`
		Prices map[string]l2Price `json:"prices"`
	} `json:"result"`
}

type l2 struct {
	L2ID              string `json:"l2Id"`
	CommunicationCode string `json:"communicationCode"`
	Color             struct {
		Code string `json:"code"`
	} `json:"color"`
	Size struct {
		Code string `json:"code"`
	} `json:"size"`
}

type l2Stock struct {
	StatusCode string       `json:"statusCode"`
	Quantity   *json.Number `json:"quantity"`
}

type l2Price struct {
	Base struct {
		Value json.Number `json:"value"`
	} `json:"base"`
}

// searchResponse is the relaxed product search payload.
type searchResponse struct {
	Status string `json:"status"`
	Result struct {
		Items []struct {
			ProductID string `json:"productId"`
		} `json:"items"`
	} `json:"result"`
}
