package expense

import (
	"context"
	"time"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type  Type      `json:"type,omitempty"`
	From  time.Time `json:"from,omitempty"`
	To    time.Time `json:"to,omitempty"`
	Limit int       `json:"limit,omitempty"`
}

// Store persists expenses.
type Store interface {
	// Create validates e, assigns its ID and CreatedAt and stores it.
	Create(ctx context.Context, e *Expense) error
	// List returns expenses in travel-date order.
	List(ctx context.Context, filter Filter) ([]Expense, error)
	Get(ctx context.Context, id string) (*Expense, error)
	Delete(ctx context.Context, id string) error
	// DeleteAll removes every expense and returns how many there were.
	DeleteAll(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 1000

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
