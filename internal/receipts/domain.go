package receipts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Methods accepted on customer receipts.
const (
	MethodCash     = "cash"
	MethodTransfer = "transfer"
	MethodCard     = "card"
	MethodCheque   = "cheque"
)

// Receipt is money received from a customer. Creating one lowers the customer balance.
type Receipt struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	SeqNo      int64           `json:"seq_no"`
	CustomerID int64           `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Note       string          `json:"note"`
	ReceivedAt time.Time       `json:"received_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ListFilters narrows receipt listings.
type ListFilters struct {
	CustomerID int64
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

var (
	ErrNotFound   = fmt.Errorf("receipts: %w", shared.ErrNotFound)
	ErrValidation = fmt.Errorf("receipts: %w", shared.ErrValidation)
)

func validMethod(m string) bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard, MethodCheque:
		return true
	}
	return false
}
