package sequence

import (
	"fmt"
	"sort"
)

// Scope identifies a sequence: the entity class, its display format, and the
// table/column holding allocated identifiers.
type Scope struct {
	Name   string
	Format Format
	Table  string
	Column string
}

// Built-in scopes.
var (
	Suppliers        = Scope{Name: "suppliers", Format: Format{Prefix: "SU", Width: 3}, Table: "suppliers", Column: "code"}
	Customers        = Scope{Name: "customers", Format: Format{Prefix: "CU", Width: 3}, Table: "customers", Column: "code"}
	Items            = Scope{Name: "items", Format: Format{Prefix: "IT", Width: 4}, Table: "items", Column: "code"}
	Warehouses       = Scope{Name: "warehouses", Format: Format{Prefix: "WH", Width: 2}, Table: "warehouses", Column: "code"}
	Purchases        = Scope{Name: "purchases", Format: Format{Prefix: "PUR-", Width: 4}, Table: "purchases", Column: "number"}
	SupplierPayments = Scope{Name: "supplier_payments", Format: Format{Prefix: "PAY-", Width: 4}, Table: "supplier_payments", Column: "number"}
	Invoices         = Scope{Name: "invoices", Format: Format{Prefix: "INV-", Width: 4}, Table: "sales", Column: "number"}
	TillSales        = Scope{Name: "pos_sales", Format: Format{Prefix: "POS-", Width: 5}, Table: "sales", Column: "number"}
	Receipts         = Scope{Name: "receipts", Format: Format{Prefix: "RCV-", Width: 4}, Table: "receipts", Column: "number"}
	StockTransfers   = Scope{Name: "stock_transfers", Format: Format{Prefix: "TRF-", Width: 4}, Table: "stock_movements", Column: "number"}
	StockAdjustments = Scope{Name: "stock_adjustments", Format: Format{Prefix: "ADJ-", Width: 4}, Table: "stock_movements", Column: "number"}
	Users            = Scope{Name: "users", Format: Format{Prefix: "USR", Width: 3}, Table: "users", Column: "code"}
)

var registry = map[string]Scope{}

func init() {
	for _, s := range []Scope{Suppliers, Customers, Items, Warehouses, Purchases, SupplierPayments, Invoices, TillSales, Receipts, StockTransfers, StockAdjustments, Users} {
		registry[s.Name] = s
	}
}

// Lookup returns the built-in scope with the given name.
func Lookup(name string) (Scope, error) {
	s, ok := registry[name]
	if !ok {
		return Scope{}, fmt.Errorf("sequence: unknown scope %q", name)
	}
	return s, nil
}

// All returns the built-in scopes ordered by name.
func All() []Scope {
	out := make([]Scope, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
