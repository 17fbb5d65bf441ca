package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/odyssey-erp/bizdesk/internal/ledger"
)

// RepositoryPort exposes the queries reports rely on.
type RepositoryPort interface {
	Supplier(ctx context.Context, id int64) (Party, error)
	SupplierPosition(ctx context.Context, id int64, before time.Time) (decimal.Decimal, error)
	StatementEntries(ctx context.Context, id int64, from, to time.Time) ([]StatementEntry, error)
	SalesByDay(ctx context.Context, from, to time.Time) ([]SalesDay, error)
	StockRows(ctx context.Context) ([]ValuationRow, error)
	Reconcile(ctx context.Context) ([]ledger.Drift, error)
}

// Service coordinates report queries with the cache layer.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService wires a repository with a Cache helper. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Range is an inclusive day range. Zero From means since the first record,
// zero To means today.
type Range struct {
	From time.Time
	To   time.Time
}

// bounds turns the inclusive day range into a half-open instant range.
func (s *Service) bounds(r Range) (time.Time, time.Time, error) {
	to := r.To
	if to.IsZero() {
		to = s.now()
	}
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).AddDate(0, 0, 1)
	from := r.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date range reversed", ErrValidation)
	}
	return from, to, nil
}

// SupplierStatement lists the purchases and payments of a supplier with a
// running balance that starts from its position before the range.
func (s *Service) SupplierStatement(ctx context.Context, supplierID int64, r Range) (Statement, error) {
	from, to, err := s.bounds(r)
	if err != nil {
		return Statement{}, err
	}
	st := Statement{From: from, To: to.AddDate(0, 0, -1)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st.Supplier, err = s.repo.Supplier(gctx, supplierID)
		return err
	})
	g.Go(func() error {
		var err error
		st.Opening, err = s.repo.SupplierPosition(gctx, supplierID, from)
		return err
	})
	g.Go(func() error {
		var err error
		st.Entries, err = s.repo.StatementEntries(gctx, supplierID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return Statement{}, err
	}
	balance := st.Opening
	for i := range st.Entries {
		balance = balance.Add(st.Entries[i].Debit).Sub(st.Entries[i].Credit)
		st.Entries[i].Balance = balance
	}
	st.Closing = balance
	return st, nil
}

// SalesSummary totals posted sales by day and channel.
func (s *Service) SalesSummary(ctx context.Context, r Range) (SalesSummary, error) {
	from, to, err := s.bounds(r)
	if err != nil {
		return SalesSummary{}, err
	}
	key, err := s.cache.BuildKey(ctx, "sales_summary", from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return SalesSummary{}, err
	}
	var summary SalesSummary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		days, err := s.repo.SalesByDay(ctx, from, to)
		if err != nil {
			return nil, err
		}
		out := SalesSummary{From: from, To: to.AddDate(0, 0, -1), Days: days, ByChannel: map[string]decimal.Decimal{}}
		for _, d := range days {
			out.ByChannel[d.Channel] = out.ByChannel[d.Channel].Add(d.Total)
			out.Total = out.Total.Add(d.Total)
		}
		return out, nil
	})
	return summary, err
}

// StockValuation values every item matching query at cost.
func (s *Service) StockValuation(ctx context.Context, query string) (Valuation, error) {
	key, err := s.cache.BuildKey(ctx, "stock_rows")
	if err != nil {
		return Valuation{}, err
	}
	var rows []ValuationRow
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return s.repo.StockRows(ctx)
	})
	if err != nil {
		return Valuation{}, err
	}
	out := Valuation{Rows: make([]ValuationRow, 0, len(rows))}
	for _, row := range rows {
		if !Matches(query, row.Code, row.Name) {
			continue
		}
		row.Value = row.Quantity.Mul(row.Cost)
		out.Rows = append(out.Rows, row)
		out.Total = out.Total.Add(row.Value)
	}
	return out, nil
}

// Reconciliation recomputes balances and reports drift.
func (s *Service) Reconciliation(ctx context.Context) (Reconciliation, error) {
	drifts, err := s.repo.Reconcile(ctx)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{CheckedAt: s.now(), Drifts: drifts, Totals: ledger.Summarise(drifts)}, nil
}

// Invalidate drops cached reports.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Matches reports whether every word of query occurs in one of fields,
// ignoring case under Unicode folding. An empty query matches everything.
func Matches(query string, fields ...string) bool {
	fold := cases.Fold()
	words := strings.Fields(fold.String(query))
	if len(words) == 0 {
		return true
	}
	folded := make([]string, len(fields))
	for i, f := range fields {
		folded[i] = fold.String(f)
	}
	for _, w := range words {
		found := false
		for _, f := range folded {
			if strings.Contains(f, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
