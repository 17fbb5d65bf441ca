package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, filters ListFilters) ([]Customer, int, error)
}

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages customer accounts.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs customer service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes creation payload.
type CreateInput struct {
	Name           string
	Phone          string
	Email          string
	Address        string
	CreditLimit    decimal.Decimal
	OpeningBalance decimal.Decimal
	IdempotencyKey string
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Phone       *string
	Email       *string
	Address     *string
	CreditLimit *decimal.Decimal
}

// Create stores a customer under the next CU code. The opening balance is
// written directly as the starting balance.
func (s *Service) Create(ctx context.Context, input CreateInput) (Customer, error) {
	customer := Customer{
		Name:           strings.TrimSpace(input.Name),
		Phone:          strings.TrimSpace(input.Phone),
		Email:          strings.TrimSpace(input.Email),
		Address:        strings.TrimSpace(input.Address),
		CreditLimit:    input.CreditLimit,
		OpeningBalance: input.OpeningBalance,
		Balance:        input.OpeningBalance,
	}
	if err := validate(customer); err != nil {
		return Customer{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := shared.Claim(ctx, tx, "customers", input.IdempotencyKey); err != nil {
			return err
		}
		code, err := tx.NextCode(ctx)
		if err != nil {
			return err
		}
		customer.Code, customer.SeqNo = code.Display, code.Value
		customer, err = tx.Insert(ctx, customer)
		return err
	})
	if err != nil {
		return Customer{}, err
	}
	s.recordAudit(ctx, "CUSTOMER_CREATE", customer.Code, map[string]any{"credit_limit": customer.CreditLimit.String()})
	return customer, nil
}

// Get returns a customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	filters.Limit = shared.NewPagination(1, filters.Limit, 0).PerPage
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	return s.repo.List(ctx, filters)
}

// Update merges the provided fields into the stored customer.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Customer, error) {
	var updated Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.Name != nil {
			c.Name = strings.TrimSpace(*input.Name)
		}
		if input.Phone != nil {
			c.Phone = strings.TrimSpace(*input.Phone)
		}
		if input.Email != nil {
			c.Email = strings.TrimSpace(*input.Email)
		}
		if input.Address != nil {
			c.Address = strings.TrimSpace(*input.Address)
		}
		if input.CreditLimit != nil {
			c.CreditLimit = *input.CreditLimit
		}
		if err := validate(c); err != nil {
			return err
		}
		updated = c
		return tx.Update(ctx, c)
	})
	if err != nil {
		return Customer{}, err
	}
	s.recordAudit(ctx, "CUSTOMER_UPDATE", updated.Code, nil)
	return updated, nil
}

// Delete removes a customer that owes nothing.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var code string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !c.Balance.IsZero() {
			return fmt.Errorf("%w: %s still owes %s", ErrInvalidState, c.Code, c.Balance.StringFixed(2))
		}
		code = c.Code
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "CUSTOMER_DELETE", code, nil)
	return nil
}

func validate(c Customer) error {
	if c.Name == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}
	if c.CreditLimit.IsNegative() {
		return fmt.Errorf("%w: credit limit must not be negative", ErrValidation)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action, code string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "customer", EntityID: code, Meta: meta})
}
