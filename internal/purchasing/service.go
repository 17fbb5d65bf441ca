package purchasing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Purchase, error)
	List(ctx context.Context, filters ListFilters) ([]Purchase, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig toggles purchasing behaviour.
type ServiceConfig struct {
	// AllowNegativeStock lets Cancel take back goods already sold.
	AllowNegativeStock bool
	Reports            shared.ReportCache
}

// Service orchestrates purchase flows.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	allowNeg bool
	reports  shared.ReportCache
	now      func() time.Time
}

// NewService constructs purchasing service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, allowNeg: cfg.AllowNegativeStock, reports: cfg.Reports, now: time.Now}
}

// CreateInput describes a new purchase.
type CreateInput struct {
	SupplierID     int64
	WarehouseID    int64
	Received       bool
	Paid           decimal.Decimal
	Note           string
	PurchasedAt    time.Time
	Lines          []LineInput
	IdempotencyKey string
}

// LineInput describes one purchased item.
type LineInput struct {
	ItemID   int64
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
}

// Create records a purchase under the next PUR number. Received goods are
// added to stock and the unpaid part is added to the supplier balance in the
// same transaction; a missing supplier, warehouse or item aborts everything.
func (s *Service) Create(ctx context.Context, input CreateInput) (Purchase, error) {
	purchase, err := s.buildPurchase(input)
	if err != nil {
		return Purchase{}, err
	}
	var created Purchase
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := shared.Claim(ctx, tx, "purchasing", input.IdempotencyKey); err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		purchase.Number, purchase.SeqNo = number.Display, number.Value
		created, err = tx.Insert(ctx, purchase)
		if err != nil {
			return err
		}
		if created.Status == StatusReceived {
			if err := s.moveStock(ctx, tx, created, 1); err != nil {
				return err
			}
		}
		if created.Due.IsPositive() {
			return tx.AdjustSupplierBalance(ctx, created.SupplierID, created.Due)
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "PURCHASE_CREATE", created.Number, map[string]any{"total": created.Total.String(), "due": created.Due.String()})
	shared.InvalidateReports(ctx, s.reports)
	return created, nil
}

func (s *Service) buildPurchase(input CreateInput) (Purchase, error) {
	if input.SupplierID <= 0 || input.WarehouseID <= 0 {
		return Purchase{}, fmt.Errorf("%w: supplier and warehouse required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Purchase{}, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	p := Purchase{
		SupplierID:  input.SupplierID,
		WarehouseID: input.WarehouseID,
		Status:      StatusOrdered,
		Paid:        input.Paid,
		Note:        strings.TrimSpace(input.Note),
		PurchasedAt: input.PurchasedAt,
	}
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = s.now()
	}
	for i, l := range input.Lines {
		if l.ItemID <= 0 || !l.Qty.IsPositive() || l.UnitCost.IsNegative() {
			return Purchase{}, fmt.Errorf("%w: line %d", ErrValidation, i+1)
		}
		line := Line{ItemID: l.ItemID, Qty: l.Qty, UnitCost: l.UnitCost}
		p.Lines = append(p.Lines, line)
		p.Total = p.Total.Add(line.Amount())
	}
	if p.Paid.IsNegative() || p.Paid.GreaterThan(p.Total) {
		return Purchase{}, fmt.Errorf("%w: paid must be between 0 and total", ErrValidation)
	}
	p.Due = p.Total.Sub(p.Paid)
	if input.Received {
		p.Status = StatusReceived
		at := p.PurchasedAt
		p.ReceivedAt = &at
	}
	return p, nil
}

// Receive books the goods of an ordered purchase into stock.
func (s *Service) Receive(ctx context.Context, id int64) (Purchase, error) {
	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		purchase, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if purchase.Status != StatusOrdered {
			return fmt.Errorf("%w: purchase %s is %s", ErrInvalidState, purchase.Number, purchase.Status)
		}
		if err := s.moveStock(ctx, tx, purchase, 1); err != nil {
			return err
		}
		at := s.now()
		purchase.Status, purchase.ReceivedAt = StatusReceived, &at
		return tx.UpdateStatus(ctx, id, StatusReceived, &at)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "PURCHASE_RECEIVE", purchase.Number, nil)
	shared.InvalidateReports(ctx, s.reports)
	return purchase, nil
}

// Cancel reverses a purchase: received goods leave stock again and the
// unpaid part is taken off the supplier balance.
func (s *Service) Cancel(ctx context.Context, id int64) (Purchase, error) {
	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		purchase, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if purchase.Status == StatusCancelled {
			return fmt.Errorf("%w: purchase %s already cancelled", ErrInvalidState, purchase.Number)
		}
		if purchase.Status == StatusReceived {
			if err := s.moveStock(ctx, tx, purchase, -1); err != nil {
				return err
			}
		}
		if purchase.Due.IsPositive() {
			if err := tx.AdjustSupplierBalance(ctx, purchase.SupplierID, purchase.Due.Neg()); err != nil {
				return err
			}
		}
		purchase.Status = StatusCancelled
		return tx.UpdateStatus(ctx, id, StatusCancelled, nil)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "PURCHASE_CANCEL", purchase.Number, map[string]any{"due": purchase.Due.String()})
	shared.InvalidateReports(ctx, s.reports)
	return purchase, nil
}

func (s *Service) moveStock(ctx context.Context, tx TxRepository, p Purchase, sign int64) error {
	for _, line := range p.Lines {
		delta := line.Qty.Mul(decimal.NewFromInt(sign))
		if err := tx.AdjustStock(ctx, line.ItemID, p.WarehouseID, delta, s.allowNeg); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a purchase with lines.
func (s *Service) Get(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.Get(ctx, id)
}

// List returns purchases matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Purchase, int, error) {
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.To.Before(filters.From) {
		return nil, 0, fmt.Errorf("%w: date range reversed", ErrValidation)
	}
	filters.Limit = shared.NewPagination(1, filters.Limit, 0).PerPage
	return s.repo.List(ctx, filters)
}

func (s *Service) recordAudit(ctx context.Context, action, ref string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "purchase", EntityID: ref, Meta: meta})
}
