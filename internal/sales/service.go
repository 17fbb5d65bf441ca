package sales

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
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, filters ListFilters) ([]Sale, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig toggles sales behaviour.
type ServiceConfig struct {
	AllowNegativeStock bool
	// Reports is bumped after every posted or voided sale.
	Reports shared.ReportCache
}

// Service handles sales business logic.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	allowNeg bool
	reports  shared.ReportCache
	now      func() time.Time
}

// NewService creates a new sales service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, allowNeg: cfg.AllowNegativeStock, reports: cfg.Reports, now: time.Now}
}

// CreateInput describes a sale.
type CreateInput struct {
	Channel        Channel
	CustomerID     *int64
	WarehouseID    int64
	Paid           decimal.Decimal
	Note           string
	SoldAt         time.Time
	Lines          []LineInput
	IdempotencyKey string
}

// LineInput describes one sold item.
type LineInput struct {
	ItemID    int64
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// Create posts a sale under the next INV or POS number. Stock leaves the
// warehouse and the unpaid part is charged to the customer in the same
// transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (Sale, error) {
	sale, err := s.buildSale(input)
	if err != nil {
		return Sale{}, err
	}
	var created Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := shared.Claim(ctx, tx, "sales", input.IdempotencyKey); err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx, sale.Channel.Scope())
		if err != nil {
			return err
		}
		sale.Number, sale.SeqNo = number.Display, number.Value
		created, err = tx.Insert(ctx, sale)
		if err != nil {
			return err
		}
		for _, line := range created.Lines {
			if err := tx.AdjustStock(ctx, line.ItemID, created.WarehouseID, line.Qty.Neg(), s.allowNeg); err != nil {
				return err
			}
		}
		if !created.Due.IsPositive() {
			return nil
		}
		return s.charge(ctx, tx, *created.CustomerID, created.Due)
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, "SALE_CREATE", created.Number, map[string]any{"channel": string(created.Channel), "total": created.Total.String(), "due": created.Due.String()})
	shared.InvalidateReports(ctx, s.reports)
	return created, nil
}

func (s *Service) charge(ctx context.Context, tx TxRepository, customerID int64, due decimal.Decimal) error {
	balance, err := tx.AdjustCustomerBalance(ctx, customerID, due)
	if err != nil {
		return err
	}
	limit, err := tx.CreditLimit(ctx, customerID)
	if err != nil {
		return err
	}
	if limit.IsPositive() && balance.GreaterThan(limit) {
		return fmt.Errorf("%w: balance %s over limit %s", ErrCreditLimit, balance, limit)
	}
	return nil
}

func (s *Service) buildSale(input CreateInput) (Sale, error) {
	channel := input.Channel
	if channel == "" {
		channel = ChannelInvoice
	}
	if channel != ChannelInvoice && channel != ChannelPOS {
		return Sale{}, fmt.Errorf("%w: unknown channel %q", ErrValidation, channel)
	}
	if input.CustomerID != nil && *input.CustomerID <= 0 {
		input.CustomerID = nil
	}
	if channel == ChannelInvoice && input.CustomerID == nil {
		return Sale{}, fmt.Errorf("%w: invoice requires a customer", ErrValidation)
	}
	if input.WarehouseID <= 0 {
		return Sale{}, fmt.Errorf("%w: warehouse required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Sale{}, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	sale := Sale{
		Channel:     channel,
		CustomerID:  input.CustomerID,
		WarehouseID: input.WarehouseID,
		Status:      StatusPosted,
		Paid:        input.Paid,
		Note:        strings.TrimSpace(input.Note),
		SoldAt:      input.SoldAt,
	}
	if sale.SoldAt.IsZero() {
		sale.SoldAt = s.now()
	}
	for i, l := range input.Lines {
		line := Line{ItemID: l.ItemID, Qty: l.Qty, UnitPrice: l.UnitPrice, Discount: l.Discount}
		if l.ItemID <= 0 || !l.Qty.IsPositive() || l.UnitPrice.IsNegative() || l.Discount.IsNegative() || line.Amount().IsNegative() {
			return Sale{}, fmt.Errorf("%w: line %d", ErrValidation, i+1)
		}
		sale.Lines = append(sale.Lines, line)
		sale.Total = sale.Total.Add(line.Amount())
	}
	if sale.Paid.IsNegative() || sale.Paid.GreaterThan(sale.Total) {
		return Sale{}, fmt.Errorf("%w: paid must be between 0 and total", ErrValidation)
	}
	sale.Due = sale.Total.Sub(sale.Paid)
	if sale.Due.IsPositive() && sale.CustomerID == nil {
		return Sale{}, fmt.Errorf("%w: walk-in sale must be fully paid", ErrValidation)
	}
	return sale, nil
}

// Void reverses a posted sale: stock returns to the warehouse and the unpaid
// part is taken off the customer balance.
func (s *Service) Void(ctx context.Context, id int64) (Sale, error) {
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status != StatusPosted {
			return fmt.Errorf("%w: sale %s is %s", ErrInvalidState, sale.Number, sale.Status)
		}
		for _, line := range sale.Lines {
			if err := tx.AdjustStock(ctx, line.ItemID, sale.WarehouseID, line.Qty, true); err != nil {
				return err
			}
		}
		if sale.Due.IsPositive() && sale.CustomerID != nil {
			if _, err := tx.AdjustCustomerBalance(ctx, *sale.CustomerID, sale.Due.Neg()); err != nil {
				return err
			}
		}
		sale.Status = StatusVoid
		return tx.UpdateStatus(ctx, id, StatusVoid)
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, "SALE_VOID", sale.Number, nil)
	shared.InvalidateReports(ctx, s.reports)
	return sale, nil
}

// Get returns a sale with lines.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// List returns sales matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Sale, int, error) {
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
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "sale", EntityID: ref, Meta: meta})
}
