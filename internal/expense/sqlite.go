package expense

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sells-group/perdiem/internal/perdiem"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS expenses (
	id                  TEXT PRIMARY KEY,
	type                TEXT NOT NULL,
	date                TEXT NOT NULL,
	establishment       TEXT NOT NULL DEFAULT '',
	receipt_amount      TEXT NOT NULL,
	per_diem_amount     TEXT NOT NULL DEFAULT '0',
	reimbursable_amount TEXT NOT NULL,
	city                TEXT NOT NULL,
	state               TEXT NOT NULL,
	zip_code            TEXT NOT NULL DEFAULT '',
	note                TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date);
CREATE INDEX IF NOT EXISTS idx_expenses_type ON expenses(type);
`

const expenseColumns = `id, type, date, establishment, receipt_amount, per_diem_amount, reimbursable_amount, city, state, zip_code, note, created_at`

// Migrate creates the expenses table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, e *Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Date.Format(perdiem.DateLayout), e.Establishment,
		e.ReceiptAmount.String(), e.PerDiemAmount.String(), e.ReimbursableAmount.String(),
		e.City, e.State, e.ZipCode, e.Note, e.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert expense")
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE 1=1`
	var args []any

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if !filter.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, filter.From.Format(perdiem.DateLayout))
	}
	if !filter.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, filter.To.Format(perdiem.DateLayout))
	}
	query += ` ORDER BY date ASC, created_at ASC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list expenses")
	}
	defer rows.Close() //nolint:errcheck

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan expense")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list expenses iterate")
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Expense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get expense %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get expense %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete expense %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: delete expense %s", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete all expenses")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*Expense, error) {
	var (
		e                              Expense
		typ, date                      string
		receipt, perDiem, reimbursable string
	)
	if err := row.Scan(&e.ID, &typ, &date, &e.Establishment, &receipt, &perDiem, &reimbursable,
		&e.City, &e.State, &e.ZipCode, &e.Note, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = Type(typ)

	var err error
	if e.Date, err = time.Parse(perdiem.DateLayout, date); err != nil {
		return nil, eris.Wrapf(err, "parse date %q", date)
	}
	if e.ReceiptAmount, err = decimal.NewFromString(receipt); err != nil {
		return nil, eris.Wrap(err, "parse receipt amount")
	}
	if e.PerDiemAmount, err = decimal.NewFromString(perDiem); err != nil {
		return nil, eris.Wrap(err, "parse per diem amount")
	}
	if e.ReimbursableAmount, err = decimal.NewFromString(reimbursable); err != nil {
		return nil, eris.Wrap(err, "parse reimbursable amount")
	}
	return &e, nil
}
