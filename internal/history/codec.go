package history

import (
	"encoding/json"
	"fmt"

	"github.com/Checker-Finance/price-finder/pkg/model"
)

const envelopeVersion = 1

type envelope struct {
	Version int                   `json:"version"`
	Records []model.HistoryRecord `json:"records"`
}

func encodeRecords(records []model.HistoryRecord) ([]byte, error) {
	if records == nil {
		records = []model.HistoryRecord{}
	}
	return json.Marshal(envelope{Version: envelopeVersion, Records: records})
}

func decodeRecords(data []byte) ([]model.HistoryRecord, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("decode history: unsupported version %d", env.Version)
	}
	return env.Records, nil
}
