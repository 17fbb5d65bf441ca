package receipts

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
	Get(ctx context.Context, id int64) (Receipt, error)
	List(ctx context.Context, filters ListFilters) ([]Receipt, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service books customer receipts against customer balances.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// CreateInput describes a customer receipt.
type CreateInput struct {
	CustomerID     int64
	Amount         decimal.Decimal
	Method         string
	Note           string
	ReceivedAt     time.Time
	IdempotencyKey string
}

// Create records a receipt under the next RCV number and lowers the customer
// balance by its amount. Both writes commit together or not at all.
func (s *Service) Create(ctx context.Context, input CreateInput) (Receipt, error) {
	receipt := Receipt{
		CustomerID: input.CustomerID,
		Amount:     input.Amount,
		Method:     strings.ToLower(strings.TrimSpace(input.Method)),
		Note:       strings.TrimSpace(input.Note),
		ReceivedAt: input.ReceivedAt,
	}
	if receipt.Method == "" {
		receipt.Method = MethodCash
	}
	if receipt.ReceivedAt.IsZero() {
		receipt.ReceivedAt = s.now()
	}
	switch {
	case receipt.CustomerID <= 0:
		return Receipt{}, fmt.Errorf("%w: customer required", ErrValidation)
	case !receipt.Amount.IsPositive():
		return Receipt{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	case !validMethod(receipt.Method):
		return Receipt{}, fmt.Errorf("%w: unknown method %q", ErrValidation, receipt.Method)
	}
	var created Receipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := shared.Claim(ctx, tx, "receipts", input.IdempotencyKey); err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		receipt.Number, receipt.SeqNo = number.Display, number.Value
		created, err = tx.Insert(ctx, receipt)
		if err != nil {
			return err
		}
		return tx.AdjustCustomerBalance(ctx, created.CustomerID, created.Amount.Neg())
	})
	if err != nil {
		return Receipt{}, err
	}
	s.recordAudit(ctx, "RECEIPT_CREATE", created.Number, map[string]any{"amount": created.Amount.String(), "customer_id": created.CustomerID})
	return created, nil
}

// Void deletes a receipt and gives its amount back to the customer balance.
func (s *Service) Void(ctx context.Context, id int64) (Receipt, error) {
	var receipt Receipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		receipt, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.AdjustCustomerBalance(ctx, receipt.CustomerID, receipt.Amount)
	})
	if err != nil {
		return Receipt{}, err
	}
	s.recordAudit(ctx, "RECEIPT_VOID", receipt.Number, map[string]any{"amount": receipt.Amount.String()})
	return receipt, nil
}

// Get returns a receipt.
func (s *Service) Get(ctx context.Context, id int64) (Receipt, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Receipt, int, error) {
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
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "customer_receipt", EntityID: ref, Meta: meta})
}
