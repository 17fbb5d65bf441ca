package customers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Customer buys on account. Balance is the amount the customer owes; a zero
// CreditLimit means unlimited credit.
type Customer struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	SeqNo          int64           `json:"seq_no"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Available returns the remaining credit, or false when credit is unlimited.
func (c Customer) Available() (decimal.Decimal, bool) {
	if c.CreditLimit.IsZero() {
		return decimal.Zero, false
	}
	return c.CreditLimit.Sub(c.Balance), true
}

// ListFilters narrows customer listings.
type ListFilters struct {
	Search  string
	Overdue bool
	Limit   int
	Offset  int
}

var (
	ErrNotFound     = fmt.Errorf("customers: %w", shared.ErrNotFound)
	ErrValidation   = fmt.Errorf("customers: %w", shared.ErrValidation)
	ErrInvalidState = fmt.Errorf("customers: %w", shared.ErrInvalidState)
)
