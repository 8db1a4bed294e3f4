package expense

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/perdiem/internal/perdiem"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func lodging(receipt, perDiem int64) Expense {
	return Expense{
		Type:          TypeLodging,
		Date:          day(2024, 6, 15),
		Establishment: "Hilton",
		ReceiptAmount: decimal.NewFromInt(receipt),
		PerDiemAmount: decimal.NewFromInt(perDiem),
		City:          "Chicago",
		State:         "IL",
		ZipCode:       "60601",
	}
}

func TestReimbursable(t *testing.T) {
	cases := []struct {
		name             string
		receipt, perDiem string
		want             string
	}{
		{"under allowance", "120", "181", "120"},
		{"over allowance", "250", "181", "181"},
		{"no allowance", "250", "0", "250"},
		{"equal", "74", "74", "74"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Reimbursable(decimal.RequireFromString(tc.receipt), decimal.RequireFromString(tc.perDiem))
			assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestPerDiemFor(t *testing.T) {
	rate := &perdiem.NormalizedRate{
		Lodging:     decimal.NewFromInt(181),
		Meals:       decimal.NewFromInt(69),
		Incidentals: decimal.NewFromInt(5),
	}
	assert.Equal(t, "181", PerDiemFor(TypeLodging, rate).String())
	assert.Equal(t, "74", PerDiemFor(TypeFood, rate).String())
	assert.True(t, PerDiemFor(Type("fuel"), rate).IsZero())
	assert.True(t, PerDiemFor(TypeFood, nil).IsZero())
}

func TestValidate_SetsReimbursable(t *testing.T) {
	e := lodging(250, 181)
	e.State = " il "

	require.NoError(t, e.Validate())
	assert.Equal(t, "IL", e.State)
	assert.Equal(t, "181", e.ReimbursableAmount.String())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(e *Expense){
		"type":            func(e *Expense) { e.Type = "fuel" },
		"date":            func(e *Expense) { e.Date = time.Time{} },
		"city":            func(e *Expense) { e.City = " " },
		"state":           func(e *Expense) { e.State = "Illinois" },
		"zip":             func(e *Expense) { e.ZipCode = "606" },
		"zero receipt":    func(e *Expense) { e.ReceiptAmount = decimal.Zero },
		"negative allow.": func(e *Expense) { e.PerDiemAmount = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			e := lodging(100, 181)
			mutate(&e)
			err := e.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestLookupRequest(t *testing.T) {
	e := lodging(100, 0)
	req := e.LookupRequest()
	assert.Equal(t, "Chicago", req.City)
	assert.Equal(t, "IL", req.State)
	assert.Equal(t, "60601", req.ZipCode)
	assert.Equal(t, e.Date, req.Date)
}
