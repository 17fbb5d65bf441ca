package reports

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/ledger"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Statement entry kinds.
const (
	EntryPurchase = "PURCHASE"
	EntryPayment  = "PAYMENT"
)

// Party identifies the supplier a statement is about.
type Party struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// StatementEntry is one line of a supplier statement. Debit raises what is
// owed to the supplier, Credit lowers it, Balance is the running position.
type StatementEntry struct {
	Date    time.Time       `json:"date"`
	Kind    string          `json:"kind"`
	Number  string          `json:"number"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// Statement lists purchases and payments of a supplier in a date range.
type Statement struct {
	Supplier Party            `json:"supplier"`
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Opening  decimal.Decimal  `json:"opening"`
	Closing  decimal.Decimal  `json:"closing"`
	Entries  []StatementEntry `json:"entries"`
}

// SalesDay aggregates posted sales of one channel on one day.
type SalesDay struct {
	Day     string          `json:"day"`
	Channel string          `json:"channel"`
	Count   int             `json:"count"`
	Total   decimal.Decimal `json:"total"`
	Paid    decimal.Decimal `json:"paid"`
	Due     decimal.Decimal `json:"due"`
}

// SalesSummary aggregates sales over a date range.
type SalesSummary struct {
	From      time.Time                  `json:"from"`
	To        time.Time                  `json:"to"`
	Days      []SalesDay                 `json:"days"`
	ByChannel map[string]decimal.Decimal `json:"by_channel"`
	Total     decimal.Decimal            `json:"total"`
}

// ValuationRow values the stock of one item at cost.
type ValuationRow struct {
	ItemID   int64           `json:"item_id"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
	Value    decimal.Decimal `json:"value"`
}

// Valuation is the stock valuation report.
type Valuation struct {
	Rows  []ValuationRow  `json:"rows"`
	Total decimal.Decimal `json:"total"`
}

// Reconciliation lists balances that disagree with their documents.
type Reconciliation struct {
	CheckedAt time.Time                  `json:"checked_at"`
	Drifts    []ledger.Drift             `json:"drifts"`
	Totals    map[string]decimal.Decimal `json:"totals"`
}

var (
	ErrNotFound   = fmt.Errorf("reports: %w", shared.ErrNotFound)
	ErrValidation = fmt.Errorf("reports: %w", shared.ErrValidation)
)
