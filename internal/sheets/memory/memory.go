package memory

import (
	"context"
	"fmt"
	"sync"

	"costmanager/internal/core"
	ports "costmanager/internal/sheets"
)

// Store keeps exported rows in memory, keyed by sheet name.
type Store struct {
	mu     sync.Mutex
	sheets map[string][][]any
}

var _ ports.ReportExporter = (*Store)(nil)

func New() *Store {
	return &Store{sheets: make(map[string][][]any)}
}

// ExportReport appends the report rows and returns a synthetic range reference.
func (s *Store) ExportReport(_ context.Context, r core.MonthlyReport) (string, error) {
	rows := ports.Rows(r)
	if len(rows) == 0 {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name := fmt.Sprintf("%d Reports", r.Year)
	start := len(s.sheets[name]) + 1
	s.sheets[name] = append(s.sheets[name], rows...)
	return fmt.Sprintf("%s!A%d:F%d", name, start, len(s.sheets[name])), nil
}

// Rows returns a copy of the rows written to sheet.
func (s *Store) Rows(sheet string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.sheets[sheet]))
	copy(out, s.sheets[sheet])
	return out
}
