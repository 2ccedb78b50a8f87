package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"costmanager/internal/core"

	"github.com/google/uuid"
)

// Store keeps every collection in process memory. It backs tests and the
// default "memory" backend.
type Store struct {
	mu      sync.Mutex
	costs   []core.Cost
	reports []core.MonthlyReport
	users   []core.User
	logs    []core.LogEntry

	reportWrites int
}

func New() *Store {
	return &Store{}
}

// AddCost stores c as given. Validation belongs to the caller.
func (s *Store) AddCost(_ context.Context, c core.Cost) (core.Cost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costs = append(s.costs, c)
	return c, nil
}

func (s *Store) FindCosts(_ context.Context, userID int64, from, to time.Time) ([]core.Cost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Cost
	for _, c := range s.costs {
		if c.UserID != userID {
			continue
		}
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) TotalCosts(_ context.Context, userID int64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, c := range s.costs {
		if c.UserID == userID {
			total += c.Sum
		}
	}
	return total, nil
}

func (s *Store) FindReport(_ context.Context, key core.ReportKey) (*core.MonthlyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.Key() == key {
			found := r
			found.Costs = r.Costs.Clone()
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertReport(_ context.Context, r core.MonthlyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reports {
		if existing.Key() == r.Key() {
			return fmt.Errorf("insert report %s: %w", r.Key(), core.ErrConflict)
		}
	}
	r.Costs = r.Costs.Clone()
	s.reports = append(s.reports, r)
	s.reportWrites++
	return nil
}

// ReportWrites returns how many reports were persisted.
func (s *Store) ReportWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportWrites
}

func (s *Store) AddUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.ID == u.ID {
			return fmt.Errorf("add user %d: %w", u.ID, core.ErrConflict)
		}
	}
	s.users = append(s.users, u)
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.User(nil), s.users...), nil
}

func (s *Store) AppendLog(_ context.Context, e core.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	for _, existing := range s.logs {
		if existing.ID == e.ID {
			return fmt.Errorf("append log %s: %w", e.ID, core.ErrConflict)
		}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.logs = append(s.logs, e)
	return nil
}

func (s *Store) ListLogs(_ context.Context) ([]core.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LogEntry(nil), s.logs...), nil
}

func (s *Store) Ping(context.Context) error { return nil }
