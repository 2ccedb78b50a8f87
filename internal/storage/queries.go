package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row types mirror the tables in migrations/.
type (
	CostRow struct {
		ID          int64
		Userid      int64
		Description string
		Category    string
		Sum         float64
		CreatedAt   int64
	}

	ReportRow struct {
		Userid int64
		Year   int64
		Month  int64
		Costs  string
	}

	UserRow struct {
		ID        int64
		FirstName string
		LastName  string
		Birthday  string
	}

	LogRow struct {
		ID        string
		Level     string
		Message   string
		Timestamp int64
	}
)

const createCost = `
INSERT INTO costs (userid, description, category, sum, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, userid, description, category, sum, created_at
`

type CreateCostParams struct {
	Userid      int64
	Description string
	Category    string
	Sum         float64
	CreatedAt   int64
}

func (q *Queries) CreateCost(ctx context.Context, arg CreateCostParams) (CostRow, error) {
	row := q.db.QueryRowContext(ctx, createCost, arg.Userid, arg.Description, arg.Category, arg.Sum, arg.CreatedAt)
	var i CostRow
	err := row.Scan(&i.ID, &i.Userid, &i.Description, &i.Category, &i.Sum, &i.CreatedAt)
	return i, err
}

const getCostsInRange = `
SELECT id, userid, description, category, sum, created_at
FROM costs
WHERE userid = ? AND created_at >= ? AND created_at < ?
ORDER BY id
`

type GetCostsInRangeParams struct {
	Userid int64
	From   int64
	To     int64
}

func (q *Queries) GetCostsInRange(ctx context.Context, arg GetCostsInRangeParams) ([]CostRow, error) {
	rows, err := q.db.QueryContext(ctx, getCostsInRange, arg.Userid, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CostRow
	for rows.Next() {
		var i CostRow
		if err := rows.Scan(&i.ID, &i.Userid, &i.Description, &i.Category, &i.Sum, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getUserTotal = `
SELECT CAST(COALESCE(SUM(sum), 0) AS REAL) FROM costs WHERE userid = ?
`

func (q *Queries) GetUserTotal(ctx context.Context, userid int64) (float64, error) {
	row := q.db.QueryRowContext(ctx, getUserTotal, userid)
	var total float64
	err := row.Scan(&total)
	return total, err
}

const getReport = `
SELECT userid, year, month, costs
FROM reports
WHERE userid = ? AND year = ? AND month = ?
`

type GetReportParams struct {
	Userid int64
	Year   int64
	Month  int64
}

func (q *Queries) GetReport(ctx context.Context, arg GetReportParams) (ReportRow, error) {
	row := q.db.QueryRowContext(ctx, getReport, arg.Userid, arg.Year, arg.Month)
	var i ReportRow
	err := row.Scan(&i.Userid, &i.Year, &i.Month, &i.Costs)
	return i, err
}

const insertReport = `
INSERT INTO reports (userid, year, month, costs, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (userid, year, month) DO NOTHING
`

type InsertReportParams struct {
	Userid    int64
	Year      int64
	Month     int64
	Costs     string
	CreatedAt int64
}

// InsertReport returns the number of inserted rows; 0 means the key exists.
func (q *Queries) InsertReport(ctx context.Context, arg InsertReportParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertReport, arg.Userid, arg.Year, arg.Month, arg.Costs, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createUser = `
INSERT INTO users (id, first_name, last_name, birthday)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`

func (q *Queries) CreateUser(ctx context.Context, arg UserRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, createUser, arg.ID, arg.FirstName, arg.LastName, arg.Birthday)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getUser = `
SELECT id, first_name, last_name, birthday FROM users WHERE id = ?
`

func (q *Queries) GetUser(ctx context.Context, id int64) (UserRow, error) {
	row := q.db.QueryRowContext(ctx, getUser, id)
	var i UserRow
	err := row.Scan(&i.ID, &i.FirstName, &i.LastName, &i.Birthday)
	return i, err
}

const listUsers = `
SELECT id, first_name, last_name, birthday FROM users ORDER BY rowid
`

func (q *Queries) ListUsers(ctx context.Context) ([]UserRow, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UserRow
	for rows.Next() {
		var i UserRow
		if err := rows.Scan(&i.ID, &i.FirstName, &i.LastName, &i.Birthday); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createLog = `
INSERT INTO logs (id, level, message, timestamp) VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`

func (q *Queries) CreateLog(ctx context.Context, arg LogRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, createLog, arg.ID, arg.Level, arg.Message, arg.Timestamp)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listLogs = `
SELECT id, level, message, timestamp FROM logs ORDER BY seq
`

func (q *Queries) ListLogs(ctx context.Context) ([]LogRow, error) {
	rows, err := q.db.QueryContext(ctx, listLogs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LogRow
	for rows.Next() {
		var i LogRow
		if err := rows.Scan(&i.ID, &i.Level, &i.Message, &i.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
