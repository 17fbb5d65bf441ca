package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/sequence"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, filters ItemFilters) ([]Item, int, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	StockLevels(ctx context.Context, itemID int64) ([]StockLevel, error)
	ListMovements(ctx context.Context, itemID int64, limit int) ([]Movement, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig toggles inventory behaviour.
type ServiceConfig struct {
	AllowNegativeStock bool
	Reports            shared.ReportCache
}

// Service handles items, warehouses and stock movements.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	allowNeg bool
	reports  shared.ReportCache
}

// NewService constructs the inventory service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, allowNeg: cfg.AllowNegativeStock, reports: cfg.Reports}
}

// ItemInput describes item creation.
type ItemInput struct {
	Name         string
	Unit         string
	Cost         decimal.Decimal
	Price        decimal.Decimal
	ReorderLevel decimal.Decimal
}

// ItemUpdate carries a partial item update.
type ItemUpdate struct {
	Name         *string
	Unit         *string
	Cost         *decimal.Decimal
	Price        *decimal.Decimal
	ReorderLevel *decimal.Decimal
}

// WarehouseInput describes warehouse creation.
type WarehouseInput struct {
	Name     string
	Location string
}

// TransferInput moves Qty of an item from one warehouse to another.
type TransferInput struct {
	ItemID         int64
	SrcWarehouseID int64
	DstWarehouseID int64
	Qty            decimal.Decimal
	Reason         string
	IdempotencyKey string
}

// AdjustmentInput changes stock of an item in a warehouse by Qty (signed).
type AdjustmentInput struct {
	ItemID         int64
	WarehouseID    int64
	Qty            decimal.Decimal
	Reason         string
	IdempotencyKey string
}

// CreateItem registers an item under the next IT code with zero stock.
func (s *Service) CreateItem(ctx context.Context, input ItemInput) (Item, error) {
	item := Item{
		Name:         strings.TrimSpace(input.Name),
		Unit:         defaultString(strings.TrimSpace(input.Unit), "pcs"),
		Cost:         input.Cost,
		Price:        input.Price,
		ReorderLevel: input.ReorderLevel,
	}
	if err := validateItem(item); err != nil {
		return Item{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		code, err := tx.NextNumber(ctx, sequence.Items)
		if err != nil {
			return err
		}
		item.Code, item.SeqNo = code.Display, code.Value
		item, err = tx.InsertItem(ctx, item)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, "ITEM_CREATE", item.Code, nil)
	shared.InvalidateReports(ctx, s.reports)
	return item, nil
}

// UpdateItem merges changes into an item. Quantity is only changed by movements.
func (s *Service) UpdateItem(ctx context.Context, id int64, input ItemUpdate) (Item, error) {
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.Name != nil {
			item.Name = strings.TrimSpace(*input.Name)
		}
		if input.Unit != nil {
			item.Unit = strings.TrimSpace(*input.Unit)
		}
		if input.Cost != nil {
			item.Cost = *input.Cost
		}
		if input.Price != nil {
			item.Price = *input.Price
		}
		if input.ReorderLevel != nil {
			item.ReorderLevel = *input.ReorderLevel
		}
		if err := validateItem(item); err != nil {
			return err
		}
		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	shared.InvalidateReports(ctx, s.reports)
	return item, nil
}

// GetItem returns an item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns items matching filters.
func (s *Service) ListItems(ctx context.Context, filters ItemFilters) ([]Item, int, error) {
	filters.Limit = shared.NewPagination(1, filters.Limit, 0).PerPage
	return s.repo.ListItems(ctx, filters)
}

// ListLowStock returns items at or below their reorder level.
func (s *Service) ListLowStock(ctx context.Context) ([]Item, error) {
	items, _, err := s.repo.ListItems(ctx, ItemFilters{LowStock: true, Limit: shared.MaxPerPage})
	return items, err
}

// StockLevels returns per-warehouse stock of an item.
func (s *Service) StockLevels(ctx context.Context, itemID int64) ([]StockLevel, error) {
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.StockLevels(ctx, itemID)
}

// Movements returns the latest movements of an item.
func (s *Service) Movements(ctx context.Context, itemID int64, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, itemID, shared.NewPagination(1, limit, 0).PerPage)
}

// CreateWarehouse registers a warehouse under the next WH code.
func (s *Service) CreateWarehouse(ctx context.Context, input WarehouseInput) (Warehouse, error) {
	wh := Warehouse{Name: strings.TrimSpace(input.Name), Location: strings.TrimSpace(input.Location)}
	if wh.Name == "" {
		return Warehouse{}, fmt.Errorf("%w: warehouse name required", ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		code, err := tx.NextNumber(ctx, sequence.Warehouses)
		if err != nil {
			return err
		}
		wh.Code, wh.SeqNo = code.Display, code.Value
		wh, err = tx.InsertWarehouse(ctx, wh)
		return err
	})
	if err != nil {
		return Warehouse{}, err
	}
	s.recordAudit(ctx, "WAREHOUSE_CREATE", wh.Code, nil)
	return wh, nil
}

// ListWarehouses returns all warehouses.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

// PostTransfer moves stock between warehouses. Both legs and the movement
// record commit together.
func (s *Service) PostTransfer(ctx context.Context, input TransferInput) (Movement, error) {
	if input.ItemID == 0 || input.SrcWarehouseID == 0 || input.DstWarehouseID == 0 {
		return Movement{}, fmt.Errorf("%w: item and warehouses required", ErrValidation)
	}
	if input.SrcWarehouseID == input.DstWarehouseID {
		return Movement{}, fmt.Errorf("%w: source and destination must differ", ErrValidation)
	}
	if !input.Qty.IsPositive() {
		return Movement{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := shared.Claim(ctx, tx, "inventory.transfer", input.IdempotencyKey); err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx, sequence.StockTransfers)
		if err != nil {
			return err
		}
		if _, err := tx.AdjustStock(ctx, input.ItemID, input.SrcWarehouseID, input.Qty.Neg(), s.allowNeg); err != nil {
			return err
		}
		if _, err := tx.AdjustStock(ctx, input.ItemID, input.DstWarehouseID, input.Qty, s.allowNeg); err != nil {
			return err
		}
		src, dst := input.SrcWarehouseID, input.DstWarehouseID
		movement, err = tx.InsertMovement(ctx, Movement{
			Number:         number.Display,
			SeqNo:          number.Value,
			Type:           MovementTransfer,
			ItemID:         input.ItemID,
			SrcWarehouseID: &src,
			DstWarehouseID: &dst,
			Qty:            input.Qty,
			Reason:         strings.TrimSpace(input.Reason),
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.recordAudit(ctx, "STOCK_TRANSFER", movement.Number, map[string]any{"qty": movement.Qty.String()})
	return movement, nil
}

// PostAdjustment applies a signed stock correction with a reason.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (Movement, error) {
	if input.ItemID == 0 || input.WarehouseID == 0 {
		return Movement{}, fmt.Errorf("%w: item and warehouse required", ErrValidation)
	}
	if input.Qty.IsZero() {
		return Movement{}, fmt.Errorf("%w: quantity must not be zero", ErrValidation)
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return Movement{}, fmt.Errorf("%w: reason required", ErrValidation)
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := shared.Claim(ctx, tx, "inventory.adjust", input.IdempotencyKey); err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx, sequence.StockAdjustments)
		if err != nil {
			return err
		}
		if _, err := tx.AdjustStock(ctx, input.ItemID, input.WarehouseID, input.Qty, s.allowNeg); err != nil {
			return err
		}
		wh := input.WarehouseID
		m := Movement{Number: number.Display, SeqNo: number.Value, Type: MovementAdjust, ItemID: input.ItemID, Qty: input.Qty, Reason: reason}
		if input.Qty.IsNegative() {
			m.SrcWarehouseID = &wh
		} else {
			m.DstWarehouseID = &wh
		}
		movement, err = tx.InsertMovement(ctx, m)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.recordAudit(ctx, "STOCK_ADJUST", movement.Number, map[string]any{"qty": movement.Qty.String(), "reason": reason})
	shared.InvalidateReports(ctx, s.reports)
	return movement, nil
}

func validateItem(item Item) error {
	switch {
	case item.Name == "":
		return fmt.Errorf("%w: item name required", ErrValidation)
	case item.Cost.IsNegative() || item.Price.IsNegative():
		return fmt.Errorf("%w: cost and price must not be negative", ErrValidation)
	case item.ReorderLevel.IsNegative():
		return fmt.Errorf("%w: reorder level must not be negative", ErrValidation)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action, ref string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "inventory", EntityID: ref, Meta: meta})
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
