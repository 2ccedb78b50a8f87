package report

import "costmanager/internal/core"

// Document is the wire form of a monthly report. Costs is an array of
// single-key objects, one per category, in core.Categories order.
type Document struct {
	UserID int64                                 `json:"userid" yaml:"userid"`
	Year   int                                   `json:"year" yaml:"year"`
	Month  int                                   `json:"month" yaml:"month"`
	Costs  []map[core.Category][]core.ReportItem `json:"costs" yaml:"costs"`
}

func NewDocument(r core.MonthlyReport) Document {
	doc := Document{
		UserID: r.UserID,
		Year:   r.Year,
		Month:  r.Month,
		Costs:  make([]map[core.Category][]core.ReportItem, 0, len(core.Categories)),
	}
	for _, c := range core.Categories {
		items := r.Costs[c]
		if items == nil {
			items = []core.ReportItem{}
		}
		doc.Costs = append(doc.Costs, map[core.Category][]core.ReportItem{c: items})
	}
	return doc
}

// Bucket returns the items listed under category c.
func (d Document) Bucket(c core.Category) []core.ReportItem {
	for _, m := range d.Costs {
		if items, ok := m[c]; ok {
			return items
		}
	}
	return nil
}
