package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/price-finder/pkg/model"
)

func TestPrice(t *testing.T) {
	assert.Equal(t, "-", Price(decimal.NullDecimal{}, "¥"))
	assert.Equal(t, "¥1,990", Price(decimal.NewNullDecimal(decimal.NewFromInt(1990)), "¥"))
	assert.Equal(t, "NT$425", Price(decimal.NewNullDecimal(decimal.NewFromInt(425)), "NT$"))
}

func TestAvailability(t *testing.T) {
	assert.Equal(t, "sold out", Availability(nil))
	a := model.Availability{
		{Color: "Red 紅", Sizes: []string{"S", "M"}},
		{Color: "Blue 藍", Sizes: []string{"L"}},
	}
	assert.Equal(t, "Red 紅: S/M, Blue 藍: L", Availability(a))
}

func sampleRecord() model.HistoryRecord {
	return model.HistoryRecord{
		ID:                 "r1",
		ProductID:          "474479",
		AlternateProductID: "474479",
		ProductName:        "エアリズムコットンT",
		ProductURL:         "https://www.uniqlo.com/jp/ja/products/E474479-000",
		PriceOrigin:        decimal.NewNullDecimal(decimal.NewFromInt(1990)),
		PriceLocal:         decimal.NewNullDecimal(decimal.NewFromInt(425)),
		Availability:       model.Availability{{Color: "Red 紅", Sizes: []string{"S", "M"}}},
		CreatedAt:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRecord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Record(&buf, sampleRecord()))
	out := buf.String()

	assert.Contains(t, out, "474479")
	assert.NotContains(t, out, "(474479)")
	assert.Contains(t, out, "¥1,990")
	assert.Contains(t, out, "NT$425")
	assert.Contains(t, out, "S M")
	assert.Contains(t, out, "https://www.uniqlo.com/jp/ja/products/E474479-000")
}

func TestRecord_SoldOut(t *testing.T) {
	rec := sampleRecord()
	rec.Availability = model.Availability{}
	rec.PriceLocal = decimal.NullDecimal{}

	var buf bytes.Buffer
	require.NoError(t, Record(&buf, rec))
	assert.Contains(t, buf.String(), "sold out")
	assert.Contains(t, buf.String(), "Price (TW):  -")
}

func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, History(&buf, nil))
	assert.Equal(t, "No searches yet.\n", buf.String())

	second := sampleRecord()
	second.ID, second.ProductID, second.AlternateProductID = "r2", "E455498-000", "455498"

	buf.Reset()
	require.NoError(t, History(&buf, []model.HistoryRecord{second, sampleRecord()}))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.True(t, strings.HasPrefix(lines[1], "1"))
	assert.Contains(t, lines[1], "E455498-000 (455498)")
	assert.Contains(t, lines[2], "474479")
}

func TestMessages_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	Info(&buf, "History %s.", "saved")
	Warn(&buf, "Product %s not found.", "000000")
	Fail(&buf, "Save failed: %v", "disk full")
	Hint(&buf, "%s", ":help")

	assert.Equal(t, "History saved.\nProduct 000000 not found.\nSave failed: disk full\n:help\n", buf.String())
}
