package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"costmanager/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const birthdayLayout = "2006-01-02"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// NewSQLiteRepository opens the database at dbPath, creating its directory
// if needed, and applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) AddCost(ctx context.Context, c core.Cost) (core.Cost, error) {
	row, err := r.queries.CreateCost(ctx, CreateCostParams{
		Userid:      c.UserID,
		Description: c.Description,
		Category:    string(c.Category),
		Sum:         c.Sum,
		CreatedAt:   c.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return core.Cost{}, fmt.Errorf("create cost: %w", err)
	}

	slog.DebugContext(ctx, "Cost saved to SQLite",
		"id", row.ID,
		"user_id", row.Userid,
		"category", row.Category)

	return costFromRow(row), nil
}

func (r *SQLiteRepository) FindCosts(ctx context.Context, userID int64, from, to time.Time) ([]core.Cost, error) {
	rows, err := r.queries.GetCostsInRange(ctx, GetCostsInRangeParams{
		Userid: userID,
		From:   from.UnixMilli(),
		To:     to.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("get costs in range: %w", err)
	}

	costs := make([]core.Cost, len(rows))
	for i, row := range rows {
		costs[i] = costFromRow(row)
	}
	return costs, nil
}

func (r *SQLiteRepository) TotalCosts(ctx context.Context, userID int64) (float64, error) {
	total, err := r.queries.GetUserTotal(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get user total: %w", err)
	}
	return total, nil
}

func (r *SQLiteRepository) FindReport(ctx context.Context, key core.ReportKey) (*core.MonthlyReport, error) {
	row, err := r.queries.GetReport(ctx, GetReportParams{
		Userid: key.UserID,
		Year:   int64(key.Year),
		Month:  int64(key.Month),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", key, err)
	}

	var costs core.GroupedCosts
	if err := json.Unmarshal([]byte(row.Costs), &costs); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", key, err)
	}
	return &core.MonthlyReport{
		UserID: row.Userid,
		Year:   int(row.Year),
		Month:  int(row.Month),
		Costs:  costs.Clone(),
	}, nil
}

func (r *SQLiteRepository) InsertReport(ctx context.Context, rep core.MonthlyReport) error {
	body, err := json.Marshal(rep.Costs.Clone())
	if err != nil {
		return fmt.Errorf("encode report %s: %w", rep.Key(), err)
	}

	n, err := r.queries.InsertReport(ctx, InsertReportParams{
		Userid:    rep.UserID,
		Year:      int64(rep.Year),
		Month:     int64(rep.Month),
		Costs:     string(body),
		CreatedAt: r.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("insert report %s: %w", rep.Key(), err)
	}
	if n == 0 {
		return fmt.Errorf("insert report %s: %w", rep.Key(), core.ErrConflict)
	}

	slog.InfoContext(ctx, "Report cached in SQLite", "report", rep.Key().String())
	return nil
}

func (r *SQLiteRepository) AddUser(ctx context.Context, u core.User) error {
	n, err := r.queries.CreateUser(ctx, UserRow{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Birthday:  u.Birthday.Format(birthdayLayout),
	})
	if err != nil {
		return fmt.Errorf("create user %d: %w", u.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("create user %d: %w", u.ID, core.ErrConflict)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (*core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	u := userFromRow(row)
	return &u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]core.User, len(rows))
	for i, row := range rows {
		users[i] = userFromRow(row)
	}
	return users, nil
}

func (r *SQLiteRepository) AppendLog(ctx context.Context, e core.LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	n, err := r.queries.CreateLog(ctx, LogRow{
		ID:        e.ID,
		Level:     e.Level,
		Message:   e.Message,
		Timestamp: e.Timestamp.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("create log %s: %w", e.ID, core.ErrConflict)
	}
	return nil
}

func (r *SQLiteRepository) ListLogs(ctx context.Context) ([]core.LogEntry, error) {
	rows, err := r.queries.ListLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	logs := make([]core.LogEntry, len(rows))
	for i, row := range rows {
		logs[i] = core.LogEntry{
			ID:        row.ID,
			Level:     row.Level,
			Message:   row.Message,
			Timestamp: time.UnixMilli(row.Timestamp).UTC(),
		}
	}
	return logs, nil
}

func costFromRow(row CostRow) core.Cost {
	return core.Cost{
		Description: row.Description,
		Category:    core.Category(row.Category),
		UserID:      row.Userid,
		Sum:         row.Sum,
		CreatedAt:   time.UnixMilli(row.CreatedAt).UTC(),
	}
}

func userFromRow(row UserRow) core.User {
	// A malformed birthday degrades to the zero time rather than hiding the user.
	birthday, _ := time.Parse(birthdayLayout, row.Birthday)
	return core.User{
		ID:        row.ID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Birthday:  birthday,
	}
}
