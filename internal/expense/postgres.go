package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/perdiem/internal/perdiem"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools
// satisfy it too.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres creates a PostgresStore with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS expenses (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type                TEXT NOT NULL CHECK (type IN ('lodging', 'food')),
	date                DATE NOT NULL,
	establishment       TEXT NOT NULL DEFAULT '',
	receipt_amount      NUMERIC(12,2) NOT NULL,
	per_diem_amount     NUMERIC(12,2) NOT NULL DEFAULT 0,
	reimbursable_amount NUMERIC(12,2) NOT NULL,
	city                TEXT NOT NULL,
	state               CHAR(2) NOT NULL,
	zip_code            TEXT NOT NULL DEFAULT '',
	note                TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date);
CREATE INDEX IF NOT EXISTS idx_expenses_type ON expenses(type);
`

// Amounts and dates are selected as text so one scanner serves both stores.
const postgresSelect = `SELECT id, type, date::text, establishment, receipt_amount::text, per_diem_amount::text, reimbursable_amount::text, city, state, zip_code, note, created_at FROM expenses`

// Migrate creates the expenses table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, e *Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO expenses (id, type, date, establishment, receipt_amount, per_diem_amount, reimbursable_amount, city, state, zip_code, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, string(e.Type), e.Date.Format(perdiem.DateLayout), e.Establishment,
		e.ReceiptAmount.String(), e.PerDiemAmount.String(), e.ReimbursableAmount.String(),
		e.City, e.State, e.ZipCode, e.Note, e.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert expense")
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Expense, error) {
	query := postgresSelect + ` WHERE 1=1`
	var args []any

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.Format(perdiem.DateLayout))
		query += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.Format(perdiem.DateLayout))
		query += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(` ORDER BY date ASC, created_at ASC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list expenses")
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan expense")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list expenses iterate")
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Expense, error) {
	row := s.pool.QueryRow(ctx, postgresSelect+` WHERE id = $1`, id)
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get expense %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get expense %s", id)
	}
	return e, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete expense %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete expense %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete all expenses")
	}
	return tag.RowsAffected(), nil
}
