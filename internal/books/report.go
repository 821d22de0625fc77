package books

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AgingHeader is the first row of every formatted AR aging report.
var AgingHeader = []string{"Customer", "Current", "1-30 Days", "31-60 Days", "61-90 Days", "91+ Days", "Total"}

// AgedReceivablesReport is the raw report payload's row tree.
type AgedReceivablesReport struct {
	Rows struct {
		Row []reportRow `json:"Row"`
	} `json:"Rows"`
}

type reportRow struct {
	Type    string    `json:"type"`
	Group   string    `json:"group"`
	ColData []colData `json:"ColData"`
	Summary *struct {
		ColData []colData `json:"ColData"`
	} `json:"Summary"`
}

type colData struct {
	Value string `json:"value"`
}

// AgedReceivables fetches the raw AR aging report: four 30-day buckets
// as of the given date (zero means today).
func (c *Client) AgedReceivables(ctx context.Context, asOf time.Time) (*AgedReceivablesReport, error) {
	if asOf.IsZero() {
		asOf = NowFunc()
	}
	params := url.Values{
		"report_date":  {asOf.Format("2006-01-02")},
		"aging_period": {"30"},
		"num_periods":  {"4"},
	}
	raw, err := c.Do(ctx, http.MethodGet, "reports/AgedReceivables", params, nil)
	if err != nil {
		return nil, err
	}
	var report AgedReceivablesReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode aged receivables report: %w", err)
	}
	return &report, nil
}

// FormatAgedReceivables flattens the raw row tree into a table: the
// header row, one row per customer, and a trailing TOTAL row built from
// the grand-total section summary. Data cells after the first column are
// money: empty normalizes to $0.00, and parsable values render with a
// currency symbol, thousands separators, and two decimals. Cells that do
// not parse pass through unchanged. A report with no rows formats to
// just the header so callers can always index the table.
func FormatAgedReceivables(report *AgedReceivablesReport) [][]string {
	if report == nil {
		return nil
	}

	formatted := [][]string{AgingHeader}

	for _, row := range report.Rows.Row {
		if len(row.ColData) == 0 || row.Type == "Section" {
			continue
		}
		out := make([]string, 0, len(row.ColData))
		for i, col := range row.ColData {
			if i == 0 {
				out = append(out, col.Value)
				continue
			}
			out = append(out, formatMoneyCell(col.Value))
		}
		formatted = append(formatted, out)
	}

	for _, row := range report.Rows.Row {
		if row.Type != "Section" || row.Group != "GrandTotal" || row.Summary == nil {
			continue
		}
		total := []string{"TOTAL"}
		if len(row.Summary.ColData) > 1 {
			for _, col := range row.Summary.ColData[1:] {
				total = append(total, formatMoneyCell(col.Value))
			}
		}
		formatted = append(formatted, total)
		break
	}

	return formatted
}

func formatMoneyCell(value string) string {
	if value == "" {
		value = "0.00"
	}
	clean := strings.NewReplacer("$", "", ",", "").Replace(value)
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return value
	}
	return "$" + groupThousands(amount.StringFixed(2))
}

// groupThousands inserts comma separators into a fixed-point decimal
// string ("1234567.89" → "1,234,567.89").
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
