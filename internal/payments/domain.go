package payments

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Payment methods accepted on supplier payments.
const (
	MethodCash     = "cash"
	MethodTransfer = "transfer"
	MethodCard     = "card"
	MethodCheque   = "cheque"
)

// Payment is money paid to a supplier. Creating one lowers the supplier balance.
type Payment struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	SeqNo      int64           `json:"seq_no"`
	SupplierID int64           `json:"supplier_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Note       string          `json:"note"`
	PaidAt     time.Time       `json:"paid_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ListFilters narrows payment listings.
type ListFilters struct {
	SupplierID int64
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

var (
	ErrNotFound   = fmt.Errorf("payments: %w", shared.ErrNotFound)
	ErrValidation = fmt.Errorf("payments: %w", shared.ErrValidation)
)

func validMethod(m string) bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard, MethodCheque:
		return true
	}
	return false
}
