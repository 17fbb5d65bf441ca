package purchasing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Status tracks the purchase lifecycle.
type Status string

const (
	StatusOrdered   Status = "ORDERED"
	StatusReceived  Status = "RECEIVED"
	StatusCancelled Status = "CANCELLED"
)

// Purchase is a supplier bill. Due is the unpaid part owed to the supplier.
type Purchase struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	SeqNo       int64           `json:"seq_no"`
	SupplierID  int64           `json:"supplier_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Status      Status          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Due         decimal.Decimal `json:"due"`
	Note        string          `json:"note"`
	PurchasedAt time.Time       `json:"purchased_at"`
	ReceivedAt  *time.Time      `json:"received_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       []Line          `json:"lines"`
}

// Line is one purchased item.
type Line struct {
	ID         int64           `json:"id"`
	PurchaseID int64           `json:"purchase_id"`
	ItemID     int64           `json:"item_id"`
	Qty        decimal.Decimal `json:"qty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// Amount returns qty × unit cost.
func (l Line) Amount() decimal.Decimal {
	return l.Qty.Mul(l.UnitCost)
}

// ListFilters narrows purchase listings. Zero values are ignored.
type ListFilters struct {
	SupplierID int64
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

var (
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("purchasing: invalid state transition: %w", shared.ErrInvalidState)
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("purchasing: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("purchasing: %w", shared.ErrValidation)
)
