package perdiem

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupRequest_ValidateNormalizes(t *testing.T) {
	req := LookupRequest{City: "  Chicago ", State: " il", Date: mustDate(t, "2024-06-15"), ZipCode: " 60601 "}

	require.NoError(t, req.Validate())
	assert.Equal(t, "Chicago", req.City)
	assert.Equal(t, "IL", req.State)
	assert.Equal(t, "60601", req.ZipCode)
	assert.Equal(t, 6, req.TargetMonth())
	assert.Equal(t, 2024, req.Year())
}

func TestLookupRequest_ValidateRejects(t *testing.T) {
	date := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	cases := map[string]LookupRequest{
		"blank city":  {City: " ", State: "IL", Date: date},
		"long state":  {City: "Chicago", State: "ILL", Date: date},
		"digit state": {City: "Chicago", State: "I1", Date: date},
		"no date":     {City: "Chicago", State: "IL"},
		"short zip":   {City: "Chicago", State: "IL", Date: date, ZipCode: "6060"},
		"zip plus 4":  {City: "Chicago", State: "IL", Date: date, ZipCode: "60601-1234"},
		"letters zip": {City: "Chicago", State: "IL", Date: date, ZipCode: "6060a"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2024-06-15T23:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"", "06/15/2024", "2024-13-01", "tomorrow"} {
		_, err := ParseDate(bad)
		assert.True(t, errors.Is(err, ErrInvalidRequest), bad)
	}
}

func TestMethod_IsZip(t *testing.T) {
	assert.True(t, MethodZip.IsZip())
	assert.True(t, MethodZipAlt.IsZip())
	assert.False(t, MethodCity.IsZip())
}

func TestNormalizedRate_Valid(t *testing.T) {
	assert.True(t, (&NormalizedRate{Lodging: dec("1")}).Valid())
	assert.True(t, (&NormalizedRate{Meals: dec("1")}).Valid())
	assert.False(t, (&NormalizedRate{Incidentals: dec("5")}).Valid())
	assertDec(t, "74", (&NormalizedRate{Meals: dec("69"), Incidentals: dec("5")}).MealsAndIncidentals())
}
