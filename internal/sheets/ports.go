package sheets

import (
	"context"
	"fmt"

	"costmanager/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportExporter appends the rows of a monthly report to a spreadsheet.
	ReportExporter interface {
		// ExportReport returns a reference to the written range, empty when
		// the report had no rows.
		ExportReport(ctx context.Context, r core.MonthlyReport) (rangeRef string, err error)
	}
)

// Header is the column layout of an exported report.
var Header = []string{"User", "Period", "Day", "Category", "Description", "Sum"}

// Rows flattens r into one row per item, categories in report order.
func Rows(r core.MonthlyReport) [][]any {
	period := fmt.Sprintf("%04d-%02d", r.Year, r.Month)
	var rows [][]any
	for _, c := range core.Categories {
		for _, it := range r.Costs[c] {
			rows = append(rows, []any{r.UserID, period, it.Day, string(c), it.Description, it.Sum})
		}
	}
	return rows
}
