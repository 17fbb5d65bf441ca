package suppliers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Supplier is a vendor the business purchases from. Balance is the amount
// currently owed to the supplier.
type Supplier struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	SeqNo          int64           `json:"seq_no"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ListFilters narrows supplier listings.
type ListFilters struct {
	Search string
	Limit  int
	Offset int
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("suppliers: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("suppliers: %w", shared.ErrValidation)
	// ErrInvalidState occurs when a supplier with an open balance or documents is deleted.
	ErrInvalidState = fmt.Errorf("suppliers: %w", shared.ErrInvalidState)
)
