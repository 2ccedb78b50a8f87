package core

import (
	"fmt"
	"time"
)

type (
	// ReportItem is one expense line inside a category bucket.
	ReportItem struct {
		Day         int     `json:"day" yaml:"day"`
		Description string  `json:"description" yaml:"description"`
		Sum         float64 `json:"sum" yaml:"sum"`
	}

	// GroupedCosts maps each known category to its bucket of items.
	GroupedCosts map[Category][]ReportItem

	ReportKey struct {
		UserID int64
		Year   int
		Month  int
	}

	// MonthlyReport is a persisted grouping for one user and month.
	MonthlyReport struct {
		UserID int64
		Year   int
		Month  int
		Costs  GroupedCosts
	}
)

// NewGroupedCosts returns the five buckets, each empty and non-nil.
func NewGroupedCosts() GroupedCosts {
	g := make(GroupedCosts, len(Categories))
	for _, c := range Categories {
		g[c] = []ReportItem{}
	}
	return g
}

// Add appends the cost to its bucket, using the day of month in loc.
// It returns false, leaving g untouched, for a category outside the set.
func (g GroupedCosts) Add(c Cost, loc *time.Location) bool {
	bucket, ok := g[c.Category]
	if !ok {
		return false
	}
	g[c.Category] = append(bucket, ReportItem{
		Day:         c.CreatedAt.In(loc).Day(),
		Description: c.Description,
		Sum:         c.Sum,
	})
	return true
}

// Len returns the number of items across all buckets.
func (g GroupedCosts) Len() int {
	n := 0
	for _, items := range g {
		n += len(items)
	}
	return n
}

// Clone deep-copies g and fills in any missing bucket. Unknown categories
// are dropped.
func (g GroupedCosts) Clone() GroupedCosts {
	out := NewGroupedCosts()
	for _, c := range Categories {
		if items := g[c]; len(items) > 0 {
			out[c] = append([]ReportItem(nil), items...)
		}
	}
	return out
}

func (k ReportKey) Validate() error {
	if k.UserID <= 0 {
		return fmt.Errorf("%w: id must be a positive integer", ErrInvalidRequest)
	}
	if k.Year < 1 || k.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidRequest, k.Year)
	}
	if k.Month < 1 || k.Month > 12 {
		return fmt.Errorf("%w: month %d out of range 1-12", ErrInvalidRequest, k.Month)
	}
	return nil
}

func (k ReportKey) String() string {
	return fmt.Sprintf("%d/%04d-%02d", k.UserID, k.Year, k.Month)
}

func (r MonthlyReport) Key() ReportKey {
	return ReportKey{UserID: r.UserID, Year: r.Year, Month: r.Month}
}
