package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context, filters ListFilters) ([]User, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	hashCost int
}

// NewService builds Service instance. A zero hashCost uses bcrypt.DefaultCost.
func NewService(repo RepositoryPort, audit AuditPort, hashCost int) *Service {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, audit: audit, hashCost: hashCost}
}

// CreateInput describes a new user.
type CreateInput struct {
	Name     string
	Email    string
	Role     Role
	Password string
}

// Create registers an active user under the next USR code.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	user := User{
		Name:   strings.TrimSpace(input.Name),
		Email:  strings.ToLower(strings.TrimSpace(input.Email)),
		Role:   input.Role,
		Active: true,
	}
	if user.Name == "" {
		return User{}, fmt.Errorf("%w: name required", ErrValidation)
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return User{}, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if !user.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, input.Role)
	}
	if len(input.Password) < MinPasswordLength || len(input.Password) > 72 {
		return User{}, fmt.Errorf("%w: password must be %d to 72 bytes", ErrValidation, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		code, err := tx.NextCode(ctx)
		if err != nil {
			return err
		}
		user.Code, user.SeqNo = code.Display, code.Value
		user, err = tx.Insert(ctx, user)
		return err
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "USER_CREATE", user.Code, map[string]any{"role": string(user.Role)})
	return user, nil
}

// Get returns a user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// List returns users matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	filters.Limit = shared.NewPagination(1, filters.Limit, 0).PerPage
	return s.repo.List(ctx, filters)
}

// SetRole changes the role of a user.
func (s *Service) SetRole(ctx context.Context, id int64, role Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	return s.mutate(ctx, id, "USER_SET_ROLE", func(u *User) { u.Role = role })
}

// Deactivate disables a user. Deactivated users keep their code.
func (s *Service) Deactivate(ctx context.Context, id int64) (User, error) {
	return s.mutate(ctx, id, "USER_DEACTIVATE", func(u *User) { u.Active = false })
}

func (s *Service) mutate(ctx context.Context, id int64, action string, apply func(*User)) (User, error) {
	var user User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		user, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		apply(&user)
		return tx.Update(ctx, user)
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, action, user.Code, map[string]any{"role": string(user.Role), "active": user.Active})
	return user, nil
}

// VerifyPassword reports whether password matches the stored hash of user.
func VerifyPassword(user User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// Authorize checks that the user exists, is active and holds perm.
func (s *Service) Authorize(ctx context.Context, userID int64, perm string) error {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Active {
		return ErrInactive
	}
	if !Can(user.Role, perm) {
		return fmt.Errorf("%w: %s lacks %s", shared.ErrForbidden, user.Code, perm)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action, ref string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "user", EntityID: ref, Meta: meta})
}
