package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/sequence"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Channel identifies where a sale was made.
type Channel string

const (
	// ChannelInvoice is a credit or cash sale billed to a customer.
	ChannelInvoice Channel = "INVOICE"
	// ChannelPOS is a till sale, optionally to a walk-in buyer.
	ChannelPOS Channel = "POS"
)

// Scope returns the number sequence used by the channel.
func (c Channel) Scope() sequence.Scope {
	if c == ChannelPOS {
		return sequence.TillSales
	}
	return sequence.Invoices
}

// Status of a sale.
type Status string

const (
	StatusPosted Status = "POSTED"
	StatusVoid   Status = "VOID"
)

// Sale is an invoice or till receipt. CustomerID is nil for walk-in POS sales.
type Sale struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	SeqNo       int64           `json:"seq_no"`
	Channel     Channel         `json:"channel"`
	CustomerID  *int64          `json:"customer_id,omitempty"`
	WarehouseID int64           `json:"warehouse_id"`
	Status      Status          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Due         decimal.Decimal `json:"due"`
	Note        string          `json:"note"`
	SoldAt      time.Time       `json:"sold_at"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       []Line          `json:"lines"`
}

// Line is one sold item. Discount is an amount off the line, not a rate.
type Line struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ItemID    int64           `json:"item_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

// Amount returns qty × unit price less discount.
func (l Line) Amount() decimal.Decimal {
	return l.Qty.Mul(l.UnitPrice).Sub(l.Discount)
}

// ListFilters narrows sale listings.
type ListFilters struct {
	CustomerID int64
	Channel    Channel
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("sales: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("sales: %w", shared.ErrValidation)
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("sales: %w", shared.ErrInvalidState)
	// ErrCreditLimit is returned when the sale would push the customer past its credit limit.
	ErrCreditLimit = fmt.Errorf("sales: credit limit exceeded: %w", shared.ErrInvalidState)
)
