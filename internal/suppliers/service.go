package suppliers

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
	Get(ctx context.Context, id int64) (Supplier, error)
	List(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
}

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates supplier master data.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs supplier service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes creation payload.
type CreateInput struct {
	Name           string
	Phone          string
	Email          string
	Address        string
	OpeningBalance decimal.Decimal
	IdempotencyKey string
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name           *string
	Phone          *string
	Email          *string
	Address        *string
	OpeningBalance *decimal.Decimal
}

// Create allocates the next supplier code and stores the supplier. The
// running balance starts at the opening balance.
func (s *Service) Create(ctx context.Context, input CreateInput) (Supplier, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Supplier{}, fmt.Errorf("%w: name required", ErrValidation)
	}
	var created Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := shared.Claim(ctx, tx, "suppliers", input.IdempotencyKey); err != nil {
			return err
		}
		code, err := tx.NextCode(ctx)
		if err != nil {
			return err
		}
		created, err = tx.Insert(ctx, Supplier{
			Code:           code.Display,
			SeqNo:          code.Value,
			Name:           name,
			Phone:          strings.TrimSpace(input.Phone),
			Email:          strings.TrimSpace(input.Email),
			Address:        strings.TrimSpace(input.Address),
			OpeningBalance: input.OpeningBalance,
			Balance:        input.OpeningBalance,
		})
		return err
	})
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, "SUPPLIER_CREATE", created, map[string]any{"code": created.Code})
	return created, nil
}

// Get returns a supplier.
func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

// List returns suppliers matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	page := shared.NewPagination(1, filters.Limit, 0)
	filters.Limit = page.PerPage
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	return s.repo.List(ctx, filters)
}

// Update merges the provided fields into the stored supplier. Changing the
// opening balance shifts the running balance by the same amount.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Supplier, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return Supplier{}, fmt.Errorf("%w: name must not be blank", ErrValidation)
	}
	var updated Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.Name != nil {
			current.Name = strings.TrimSpace(*input.Name)
		}
		if input.Phone != nil {
			current.Phone = strings.TrimSpace(*input.Phone)
		}
		if input.Email != nil {
			current.Email = strings.TrimSpace(*input.Email)
		}
		if input.Address != nil {
			current.Address = strings.TrimSpace(*input.Address)
		}
		if input.OpeningBalance != nil {
			current.Balance = current.Balance.Add(input.OpeningBalance.Sub(current.OpeningBalance))
			current.OpeningBalance = *input.OpeningBalance
		}
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, "SUPPLIER_UPDATE", updated, nil)
	return updated, nil
}

// Delete removes a supplier whose balance is settled.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var deleted Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.Balance.IsZero() {
			return fmt.Errorf("%w: balance %s outstanding", ErrInvalidState, current.Balance.StringFixed(2))
		}
		deleted = current
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "SUPPLIER_DELETE", deleted, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, supplier Supplier, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "supplier", EntityID: supplier.Code, Meta: meta})
}
