package expense

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_CreateGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	e := lodging(250, 181)
	e.Note = "conference"
	require.NoError(t, s.Create(ctx, &e))
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, TypeLodging, got.Type)
	assert.Equal(t, "2024-06-15", got.Date.Format("2006-01-02"))
	assert.Equal(t, "Hilton", got.Establishment)
	assert.True(t, decimal.NewFromInt(250).Equal(got.ReceiptAmount))
	assert.True(t, decimal.NewFromInt(181).Equal(got.PerDiemAmount))
	assert.True(t, decimal.NewFromInt(181).Equal(got.ReimbursableAmount))
	assert.Equal(t, "60601", got.ZipCode)
	assert.Equal(t, "conference", got.Note)
}

func TestSQLiteStore_CreateRejectsInvalid(t *testing.T) {
	s := newTestSQLite(t)

	e := lodging(0, 181)
	err := s.Create(context.Background(), &e)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Empty(t, e.ID)
}

func TestSQLiteStore_ListOrderAndFilter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	later := lodging(100, 181)
	later.Date = day(2024, 6, 20)
	earlier := lodging(90, 181)
	earlier.Date = day(2024, 6, 10)
	food := lodging(40, 74)
	food.Type = TypeFood
	food.Date = day(2024, 6, 12)
	for _, e := range []*Expense{&later, &earlier, &food} {
		require.NoError(t, s.Create(ctx, e))
	}

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, earlier.ID, all[0].ID)
	assert.Equal(t, food.ID, all[1].ID)
	assert.Equal(t, later.ID, all[2].ID)

	onlyFood, err := s.List(ctx, Filter{Type: TypeFood})
	require.NoError(t, err)
	require.Len(t, onlyFood, 1)
	assert.Equal(t, food.ID, onlyFood[0].ID)

	window, err := s.List(ctx, Filter{From: day(2024, 6, 11), To: day(2024, 6, 20)})
	require.NoError(t, err)
	assert.Len(t, window, 2)

	limited, err := s.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	e := lodging(100, 181)
	require.NoError(t, s.Create(ctx, &e))
	require.NoError(t, s.Delete(ctx, e.ID))

	_, err := s.Get(ctx, e.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, e.ID), ErrNotFound))
}

func TestSQLiteStore_DeleteAll(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := lodging(int64(100+i), 181)
		require.NoError(t, s.Create(ctx, &e))
	}

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}
