package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/ledger"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTransfer moves stock between two warehouses.
	MovementTransfer MovementType = "TRANSFER"
	// MovementAdjust indicates manual adjustments.
	MovementAdjust MovementType = "ADJUST"
)

// Item is a stocked product. Quantity is the total over all warehouses.
type Item struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	SeqNo        int64           `json:"seq_no"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Cost         decimal.Decimal `json:"cost"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BelowReorder reports whether the item needs restocking.
func (i Item) BelowReorder() bool {
	return i.Quantity.LessThanOrEqual(i.ReorderLevel)
}

// Warehouse is a stock location.
type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	SeqNo     int64     `json:"seq_no"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// StockLevel is the quantity of an item held in one warehouse.
type StockLevel struct {
	WarehouseID   int64           `json:"warehouse_id"`
	WarehouseCode string          `json:"warehouse_code"`
	ItemID        int64           `json:"item_id"`
	Qty           decimal.Decimal `json:"qty"`
}

// Movement records a transfer or adjustment.
type Movement struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	SeqNo          int64           `json:"seq_no"`
	Type           MovementType    `json:"type"`
	ItemID         int64           `json:"item_id"`
	SrcWarehouseID *int64          `json:"src_warehouse_id,omitempty"`
	DstWarehouseID *int64          `json:"dst_warehouse_id,omitempty"`
	Qty            decimal.Decimal `json:"qty"`
	Reason         string          `json:"reason"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ItemFilters narrows item listings.
type ItemFilters struct {
	Search   string
	LowStock bool
	Limit    int
	Offset   int
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("inventory: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("inventory: %w", shared.ErrValidation)
	// ErrNegativeStock is returned when a movement would leave negative stock.
	ErrNegativeStock = ledger.ErrNegativeStock
)
