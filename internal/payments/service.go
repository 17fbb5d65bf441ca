package payments

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
	Get(ctx context.Context, id int64) (Payment, error)
	List(ctx context.Context, filters ListFilters) ([]Payment, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// CreateInput describes a supplier payment.
type CreateInput struct {
	SupplierID     int64
	Amount         decimal.Decimal
	Method         string
	Note           string
	PaidAt         time.Time
	IdempotencyKey string
}

// Create records a payment under the next PAY number and lowers the supplier
// balance by its amount. Both writes commit together or not at all.
func (s *Service) Create(ctx context.Context, input CreateInput) (Payment, error) {
	payment := Payment{
		SupplierID: input.SupplierID,
		Amount:     input.Amount,
		Method:     strings.ToLower(strings.TrimSpace(input.Method)),
		Note:       strings.TrimSpace(input.Note),
		PaidAt:     input.PaidAt,
	}
	if payment.Method == "" {
		payment.Method = MethodCash
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = s.now()
	}
	switch {
	case payment.SupplierID <= 0:
		return Payment{}, fmt.Errorf("%w: supplier required", ErrValidation)
	case !payment.Amount.IsPositive():
		return Payment{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	case !validMethod(payment.Method):
		return Payment{}, fmt.Errorf("%w: unknown method %q", ErrValidation, payment.Method)
	}
	var created Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := shared.Claim(ctx, tx, "payments", input.IdempotencyKey); err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		payment.Number, payment.SeqNo = number.Display, number.Value
		created, err = tx.Insert(ctx, payment)
		if err != nil {
			return err
		}
		return tx.AdjustSupplierBalance(ctx, created.SupplierID, created.Amount.Neg())
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, "PAYMENT_CREATE", created.Number, map[string]any{"amount": created.Amount.String(), "supplier_id": created.SupplierID})
	return created, nil
}

// Void deletes a payment and gives its amount back to the supplier balance.
func (s *Service) Void(ctx context.Context, id int64) (Payment, error) {
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		payment, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.AdjustSupplierBalance(ctx, payment.SupplierID, payment.Amount)
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, "PAYMENT_VOID", payment.Number, map[string]any{"amount": payment.Amount.String()})
	return payment, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Payment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Payment, int, error) {
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
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "supplier_payment", EntityID: ref, Meta: meta})
}
