package users

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Role groups permissions. Each user holds exactly one role.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleCashier     Role = "cashier"
	RoleStorekeeper Role = "storekeeper"
)

// Permission names checked by handlers.
const (
	PermSuppliersEdit  = "suppliers.edit"
	PermCustomersEdit  = "customers.edit"
	PermInventoryEdit  = "inventory.edit"
	PermPurchasingEdit = "purchasing.edit"
	PermPaymentsEdit   = "payments.edit"
	PermSalesEdit      = "sales.edit"
	PermReceiptsEdit   = "receipts.edit"
	PermReportsView    = "reports.view"
	PermUsersManage    = "users.manage"
	PermSequencesAdmin = "sequences.admin"
)

var rolePermissions = map[Role][]string{
	RoleManager: {
		PermSuppliersEdit, PermCustomersEdit, PermInventoryEdit, PermPurchasingEdit,
		PermPaymentsEdit, PermSalesEdit, PermReceiptsEdit, PermReportsView,
	},
	RoleCashier:     {PermCustomersEdit, PermSalesEdit, PermReceiptsEdit},
	RoleStorekeeper: {PermSuppliersEdit, PermInventoryEdit, PermPurchasingEdit},
}

// Can reports whether role grants perm. Admin holds every permission.
func Can(role Role, perm string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCashier, RoleStorekeeper:
		return true
	}
	return false
}

// User represents an application user.
type User struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	SeqNo        int64     `json:"seq_no"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListFilters narrows user listings.
type ListFilters struct {
	Search     string
	Role       Role
	ActiveOnly bool
	Limit      int
	Offset     int
}

var (
	ErrNotFound   = fmt.Errorf("users: %w", shared.ErrNotFound)
	ErrValidation = fmt.Errorf("users: %w", shared.ErrValidation)
	// ErrEmailTaken is returned when another user already has the email.
	ErrEmailTaken = fmt.Errorf("users: email already registered: %w", shared.ErrDuplicate)
	// ErrInactive is returned when an inactive user acts.
	ErrInactive = fmt.Errorf("users: account inactive: %w", shared.ErrForbidden)
)
