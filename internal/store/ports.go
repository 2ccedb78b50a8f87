package store

import (
	"context"
	"time"

	"costmanager/internal/core"
)

// Ports for outbound storage adapters.
type (
	CostWriter interface {
		AddCost(ctx context.Context, c core.Cost) (core.Cost, error)
	}

	// CostReader returns a user's costs with from <= created_at < to, in
	// insertion order.
	CostReader interface {
		FindCosts(ctx context.Context, userID int64, from, to time.Time) ([]core.Cost, error)
	}

	CostTotaler interface {
		TotalCosts(ctx context.Context, userID int64) (float64, error)
	}

	// ReportStore persists computed monthly reports. FindReport returns
	// nil, nil on a miss. InsertReport returns an error wrapping
	// core.ErrConflict when the key is already stored.
	ReportStore interface {
		FindReport(ctx context.Context, key core.ReportKey) (*core.MonthlyReport, error)
		InsertReport(ctx context.Context, r core.MonthlyReport) error
	}

	// UserStore returns nil, nil from GetUser for an unknown id. AddUser
	// wraps core.ErrConflict for a duplicate id.
	UserStore interface {
		AddUser(ctx context.Context, u core.User) error
		GetUser(ctx context.Context, id int64) (*core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	// LogWriter assigns an id when e.ID is empty. A duplicate id wraps
	// core.ErrConflict, so redelivered entries are stored once.
	LogWriter interface {
		AppendLog(ctx context.Context, e core.LogEntry) error
	}

	LogReader interface {
		ListLogs(ctx context.Context) ([]core.LogEntry, error)
	}

	// Pinger is implemented by backends that can check connectivity.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
