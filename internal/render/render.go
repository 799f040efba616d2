// Package render formats search results and history for the terminal.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Checker-Finance/price-finder/pkg/model"
)

const (
	originSymbol = "¥"
	localSymbol  = "NT$"
	timeLayout   = "2006-01-02 15:04"
)

var printer = message.NewPrinter(language.English)

// Price formats an amount with thousands grouping, or "-" when absent.
func Price(d decimal.NullDecimal, symbol string) string {
	if !d.Valid {
		return "-"
	}
	if d.Decimal.IsInteger() {
		return symbol + printer.Sprintf("%d", d.Decimal.IntPart())
	}
	f, _ := d.Decimal.Round(2).Float64()
	return symbol + printer.Sprintf("%.2f", f)
}

// Availability formats a summary as "Color: S/M, Color: L", or "sold out".
func Availability(a model.Availability) string {
	if len(a) == 0 {
		return "sold out"
	}
	parts := make([]string, 0, len(a))
	for _, cs := range a {
		parts = append(parts, cs.Color+": "+strings.Join(cs.Sizes, "/"))
	}
	return strings.Join(parts, ", ")
}

// Record prints one search result in detail.
func Record(w io.Writer, rec model.HistoryRecord) error {
	if _, err := fmt.Fprintln(w, stylesFor(w).title.Render(productLabel(rec))); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if rec.ProductName != "" {
		fmt.Fprintf(tw, "Name:\t%s\n", rec.ProductName)
	}
	if rec.ProductURL != "" {
		fmt.Fprintf(tw, "URL:\t%s\n", rec.ProductURL)
	}
	fmt.Fprintf(tw, "Price (JP):\t%s\n", Price(rec.PriceOrigin, originSymbol))
	fmt.Fprintf(tw, "Price (TW):\t%s\n", Price(rec.PriceLocal, localSymbol))
	if len(rec.Availability) == 0 {
		fmt.Fprintf(tw, "In stock:\t%s\n", "sold out")
	}
	for i, cs := range rec.Availability {
		label := ""
		if i == 0 {
			label = "In stock:"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", label, cs.Color, strings.Join(cs.Sizes, " "))
	}
	return tw.Flush()
}

// History prints records as a table, most recent first.
func History(w io.Writer, records []model.HistoryRecord) error {
	st := stylesFor(w)
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, st.muted.Render("No searches yet."))
		return err
	}
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPRODUCT\tJP\tTW\tIN STOCK\tSEARCHED")
	for i, rec := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			productLabel(rec),
			Price(rec.PriceOrigin, originSymbol),
			Price(rec.PriceLocal, localSymbol),
			Availability(rec.Availability),
			rec.CreatedAt.In(time.Local).Format(timeLayout))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	// style after alignment; escape codes would skew tabwriter widths
	header, rows, _ := strings.Cut(buf.String(), "\n")
	_, err := fmt.Fprint(w, st.title.Render(header)+"\n"+rows)
	return err
}

func productLabel(rec model.HistoryRecord) string {
	if rec.AlternateProductID != "" && rec.AlternateProductID != rec.ProductID {
		return rec.ProductID + " (" + rec.AlternateProductID + ")"
	}
	return rec.ProductID
}
