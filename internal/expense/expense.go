// Package expense records travel expenses against per diem allowances and
// exports them for reimbursement.
package expense

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/perdiem/internal/perdiem"
)

// Type is the allowance an expense counts against.
type Type string

// Expense types.
const (
	TypeLodging Type = "lodging"
	TypeFood    Type = "food"
)

// Valid reports whether t is a known expense type.
func (t Type) Valid() bool {
	return t == TypeLodging || t == TypeFood
}

var (
	// ErrNotFound is returned when no expense has the requested id.
	ErrNotFound = eris.New("expense: not found")

	// ErrInvalid marks an expense rejected by Validate.
	ErrInvalid = eris.New("expense: invalid")
)

// Expense is one receipt logged against a per diem allowance.
type Expense struct {
	ID                 string          `json:"id"`
	Type               Type            `json:"type"`
	Date               time.Time       `json:"date"`
	Establishment      string          `json:"establishment"`
	ReceiptAmount      decimal.Decimal `json:"receiptAmount"`
	PerDiemAmount      decimal.Decimal `json:"perDiemAmount"`
	ReimbursableAmount decimal.Decimal `json:"reimbursableAmount"`
	City               string          `json:"city"`
	State              string          `json:"state"`
	ZipCode            string          `json:"zipCode,omitempty"`
	Note               string          `json:"note,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// Validate normalizes e and checks the fields a store requires. It also
// recomputes the reimbursable amount.
func (e *Expense) Validate() error {
	e.City = strings.TrimSpace(e.City)
	e.State = strings.ToUpper(strings.TrimSpace(e.State))
	e.ZipCode = strings.TrimSpace(e.ZipCode)
	e.Establishment = strings.TrimSpace(e.Establishment)

	switch {
	case !e.Type.Valid():
		return eris.Wrapf(ErrInvalid, "type must be lodging or food, got %q", e.Type)
	case e.Date.IsZero():
		return eris.Wrap(ErrInvalid, "date is required")
	case e.City == "":
		return eris.Wrap(ErrInvalid, "city is required")
	case len(e.State) != 2:
		return eris.Wrapf(ErrInvalid, "state must be a 2-letter code, got %q", e.State)
	case e.ZipCode != "" && !perdiem.IsZip(e.ZipCode):
		return eris.Wrapf(ErrInvalid, "zip code must be 5 digits, got %q", e.ZipCode)
	case !e.ReceiptAmount.IsPositive():
		return eris.Wrap(ErrInvalid, "receipt amount must be positive")
	case e.PerDiemAmount.IsNegative():
		return eris.Wrap(ErrInvalid, "per diem amount must not be negative")
	}

	e.ReimbursableAmount = Reimbursable(e.ReceiptAmount, e.PerDiemAmount)
	return nil
}

// Reimbursable caps the receipt at the per diem allowance. Without an
// allowance the full receipt is reimbursable.
func Reimbursable(receipt, perDiem decimal.Decimal) decimal.Decimal {
	if perDiem.IsPositive() {
		return decimal.Min(receipt, perDiem)
	}
	return receipt
}

// PerDiemFor returns the daily allowance of rate that applies to an
// expense type: lodging for lodging, meals plus incidentals for food.
func PerDiemFor(t Type, rate *perdiem.NormalizedRate) decimal.Decimal {
	if rate == nil {
		return decimal.Zero
	}
	switch t {
	case TypeLodging:
		return rate.Lodging
	case TypeFood:
		return rate.MealsAndIncidentals()
	default:
		return decimal.Zero
	}
}

// LookupRequest builds the rate lookup for the expense's location and day.
func (e *Expense) LookupRequest() perdiem.LookupRequest {
	return perdiem.LookupRequest{
		City:    e.City,
		State:   e.State,
		Date:    e.Date,
		ZipCode: e.ZipCode,
	}
}
