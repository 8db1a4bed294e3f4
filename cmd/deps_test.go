package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/perdiem/internal/config"
	"github.com/sells-group/perdiem/internal/expense"
	"github.com/sells-group/perdiem/internal/perdiem"
	"github.com/sells-group/perdiem/pkg/gsa"
)

func TestInitStore_SQLite(t *testing.T) {
	ctx := context.Background()
	st, err := initStore(ctx, config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "perdiem.db"),
	})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	list, err := st.List(ctx, expense.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	_, err := initStore(context.Background(), config.StoreConfig{Driver: "mysql", DatabaseURL: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestNewGSAClient_RequiresKey(t *testing.T) {
	_, err := newGSAClient(config.GSAConfig{TimeoutSecs: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gsa.ErrMissingAPIKey))
}

func TestInitLookup(t *testing.T) {
	c := &config.Config{
		GSA:     config.GSAConfig{APIKey: "key", TimeoutSecs: 10, RateLimit: 5, BreakerFailures: 3, BreakerResetSecs: 30},
		Geocode: config.GeocodeConfig{TimeoutSecs: 5, RateLimit: 5},
	}
	env, err := initLookup(c)
	require.NoError(t, err)
	assert.NotNil(t, env.Resolver)
	assert.NotNil(t, env.Suggester)

	mfs, err := env.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func sampleResolution() *perdiem.Resolution {
	return &perdiem.Resolution{
		Success: true,
		Method:  perdiem.MethodZip,
		ZipCode: "60601",
		Rate: &perdiem.NormalizedRate{
			City:           "Chicago",
			State:          "IL",
			Lodging:        decimal.NewFromInt(181),
			Meals:          decimal.NewFromInt(69),
			Incidentals:    decimal.NewFromInt(5),
			Total:          decimal.NewFromInt(255),
			EffectiveDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ExpirationDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		Attempts: []perdiem.Attempt{{Method: perdiem.MethodZip}},
	}
}

func TestWriteOutput_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "yaml", newRateView(sampleResolution())))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "zipcode", got["method"])
	assert.Equal(t, "60601", got["zip_code"])
	assert.Equal(t, "255.00", got["total"])
	assert.Equal(t, "2024-01-01", got["effective_date"])
	assert.Len(t, got["attempts"], 1)
}

func TestWriteOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "json", newRateView(sampleResolution())))
	assert.Contains(t, buf.String(), `"lodging": "181.00"`)
	assert.Contains(t, buf.String(), `"expirationDate": "2024-12-31"`)
}

func TestWriteOutput_UnknownFormat(t *testing.T) {
	err := writeOutput(&bytes.Buffer{}, "xml", nil)
	require.Error(t, err)
}

func TestExpenseFilterFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("type", "", "")
	cmd.Flags().String("from", "", "")
	cmd.Flags().String("to", "", "")
	cmd.Flags().Int("limit", 0, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--type", "food", "--from", "2024-06-01", "--limit", "5"}))

	f, err := expenseFilterFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, expense.TypeFood, f.Type)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.True(t, f.To.IsZero())
	assert.Equal(t, 5, f.Limit)

	require.NoError(t, cmd.Flags().Set("type", "fuel"))
	_, err = expenseFilterFromFlags(cmd)
	assert.Error(t, err)
}

func TestFormatExpenseList(t *testing.T) {
	list := []expense.Expense{{
		ID:                 "0f8e7d6c-aaaa-bbbb-cccc-123456789012",
		Type:               expense.TypeLodging,
		Date:               time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Establishment:      "Hilton",
		ReceiptAmount:      decimal.NewFromInt(200),
		PerDiemAmount:      decimal.NewFromInt(181),
		ReimbursableAmount: decimal.NewFromInt(181),
		City:               "Chicago",
		State:              "IL",
	}}

	var buf bytes.Buffer
	formatExpenseList(&buf, list)
	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "REIMBURSABLE")
	assert.Contains(t, lines[2], "0f8e7d6c")
	assert.Contains(t, lines[2], "Chicago, IL")
	assert.Contains(t, buf.String(), "1 expenses")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
}
