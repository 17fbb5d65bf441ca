package reports

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/ledger"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

type mockRepo struct {
	party      Party
	partyErr   error
	opening    decimal.Decimal
	before     time.Time
	entries    []StatementEntry
	days       []SalesDay
	salesCalls int
	stock      []ValuationRow
	stockCalls int
	drifts     []ledger.Drift
}

func (m *mockRepo) Supplier(ctx context.Context, id int64) (Party, error) {
	return m.party, m.partyErr
}

func (m *mockRepo) SupplierPosition(ctx context.Context, id int64, before time.Time) (decimal.Decimal, error) {
	m.before = before
	return m.opening, nil
}

func (m *mockRepo) StatementEntries(ctx context.Context, id int64, from, to time.Time) ([]StatementEntry, error) {
	out := make([]StatementEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *mockRepo) SalesByDay(ctx context.Context, from, to time.Time) ([]SalesDay, error) {
	m.salesCalls++
	return m.days, nil
}

func (m *mockRepo) StockRows(ctx context.Context) ([]ValuationRow, error) {
	m.stockCalls++
	return m.stock, nil
}

func (m *mockRepo) Reconcile(ctx context.Context) ([]ledger.Drift, error) {
	return m.drifts, nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTestService(t *testing.T, repo *mockRepo) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, NewCache(client, time.Minute))
	svc.now = func() time.Time { return time.Date(2025, 3, 31, 15, 0, 0, 0, time.UTC) }
	return svc
}

func TestSupplierStatementRunningBalance(t *testing.T) {
	repo := &mockRepo{
		party:   Party{ID: 4, Code: "SU004", Name: "Acme"},
		opening: dec("100"),
		entries: []StatementEntry{
			{Date: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), Kind: EntryPurchase, Number: "PUR-0007", Debit: dec("250")},
			{Date: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), Kind: EntryPayment, Number: "PAY-0003", Credit: dec("300")},
			{Date: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), Kind: EntryPurchase, Number: "PUR-0008", Debit: dec("40.50")},
		},
	}
	svc := newTestService(t, repo)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	st, err := svc.SupplierStatement(context.Background(), 4, Range{From: from})
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if !repo.before.Equal(from) {
		t.Fatalf("expected opening position before %s, got %s", from, repo.before)
	}
	want := []string{"350", "50", "90.5"}
	for i, e := range st.Entries {
		if !e.Balance.Equal(dec(want[i])) {
			t.Fatalf("entry %d: expected balance %s got %s", i, want[i], e.Balance)
		}
	}
	if !st.Closing.Equal(dec("90.5")) {
		t.Fatalf("expected closing 90.5 got %s", st.Closing)
	}
	if st.To.Format(time.DateOnly) != "2025-03-31" {
		t.Fatalf("expected range to end today, got %s", st.To)
	}

	var buf bytes.Buffer
	if err := WriteStatementCSV(&buf, st); err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header, opening and 3 entries, got %d lines", len(lines))
	}
	if lines[2] != "2025-03-02,PURCHASE,PUR-0007,250.00,0.00,350.00" {
		t.Fatalf("unexpected csv line %q", lines[2])
	}
}

func TestSupplierStatementPropagatesNotFound(t *testing.T) {
	repo := &mockRepo{partyErr: ErrNotFound}
	svc := newTestService(t, repo)
	_, err := svc.SupplierStatement(context.Background(), 9, Range{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReversedRangeRejected(t *testing.T) {
	svc := newTestService(t, &mockRepo{})
	r := Range{From: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := svc.SalesSummary(context.Background(), r); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.SupplierStatement(context.Background(), 1, r); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSalesSummaryCaches(t *testing.T) {
	repo := &mockRepo{days: []SalesDay{
		{Day: "2025-03-01", Channel: "INVOICE", Count: 2, Total: dec("500")},
		{Day: "2025-03-01", Channel: "POS", Count: 5, Total: dec("120.25")},
		{Day: "2025-03-02", Channel: "POS", Count: 1, Total: dec("10")},
	}}
	svc := newTestService(t, repo)
	ctx := context.Background()
	r := Range{From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)}

	summary, err := svc.SalesSummary(ctx, r)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.Total.Equal(dec("630.25")) {
		t.Fatalf("expected total 630.25 got %s", summary.Total)
	}
	if !summary.ByChannel["POS"].Equal(dec("130.25")) {
		t.Fatalf("expected POS 130.25 got %s", summary.ByChannel["POS"])
	}

	// Second call should hit cache.
	summary, err = svc.SalesSummary(ctx, r)
	if err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if repo.salesCalls != 1 {
		t.Fatalf("expected cached result, repo called %d times", repo.salesCalls)
	}
	if !summary.Total.Equal(dec("630.25")) {
		t.Fatalf("cached total %s", summary.Total)
	}

	// Bumping the version should trigger reload.
	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	repo.days = repo.days[:1]
	summary, err = svc.SalesSummary(ctx, r)
	if err != nil {
		t.Fatalf("refreshed summary: %v", err)
	}
	if repo.salesCalls != 2 || !summary.Total.Equal(dec("500")) {
		t.Fatalf("expected refresh, calls=%d total=%s", repo.salesCalls, summary.Total)
	}
}

func TestSalesSummaryRefreshesAfterPostedSale(t *testing.T) {
	repo := &mockRepo{days: []SalesDay{{Day: "2025-03-31", Channel: "POS", Count: 1, Total: dec("10")}}}
	svc := newTestService(t, repo)
	ctx := context.Background()

	before, err := svc.SalesSummary(ctx, Range{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !before.Total.Equal(dec("10")) {
		t.Fatalf("expected total 10 got %s", before.Total)
	}

	// A posted sale commits, then bumps the report cache through the shared port.
	repo.days = []SalesDay{{Day: "2025-03-31", Channel: "POS", Count: 2, Total: dec("35")}}
	var port shared.ReportCache = svc
	shared.InvalidateReports(ctx, port)

	after, err := svc.SalesSummary(ctx, Range{})
	if err != nil {
		t.Fatalf("summary after sale: %v", err)
	}
	if !after.Total.Equal(dec("35")) {
		t.Fatalf("summary stale: got %s want 35 (repo calls %d)", after.Total, repo.salesCalls)
	}
}

func TestStockValuationFiltersCachedRows(t *testing.T) {
	repo := &mockRepo{stock: []ValuationRow{
		{ItemID: 1, Code: "IT0001", Name: "Straße Kabel", Quantity: dec("4"), Cost: dec("2.50")},
		{ItemID: 2, Code: "IT0002", Name: "Widget", Quantity: dec("3"), Cost: dec("10")},
	}}
	svc := newTestService(t, repo)
	ctx := context.Background()

	all, err := svc.StockValuation(ctx, "")
	if err != nil {
		t.Fatalf("valuation: %v", err)
	}
	if len(all.Rows) != 2 || !all.Total.Equal(dec("40")) {
		t.Fatalf("unexpected valuation %+v", all)
	}

	filtered, err := svc.StockValuation(ctx, "STRASSE")
	if err != nil {
		t.Fatalf("filtered valuation: %v", err)
	}
	if len(filtered.Rows) != 1 || filtered.Rows[0].Code != "IT0001" || !filtered.Total.Equal(dec("10")) {
		t.Fatalf("unexpected filtered valuation %+v", filtered)
	}
	if repo.stockCalls != 1 {
		t.Fatalf("expected stock rows loaded once, got %d", repo.stockCalls)
	}
}

func TestStockValuationWithoutCache(t *testing.T) {
	repo := &mockRepo{stock: []ValuationRow{{ItemID: 1, Code: "IT0001", Name: "Bolt", Quantity: dec("2"), Cost: dec("1")}}}
	svc := NewService(repo, nil)
	if _, err := svc.StockValuation(context.Background(), ""); err != nil {
		t.Fatalf("valuation: %v", err)
	}
	if _, err := svc.StockValuation(context.Background(), ""); err != nil {
		t.Fatalf("valuation: %v", err)
	}
	if repo.stockCalls != 2 {
		t.Fatalf("expected uncached loads, got %d", repo.stockCalls)
	}
	if err := svc.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate without cache: %v", err)
	}
}

func TestReconciliationTotals(t *testing.T) {
	repo := &mockRepo{drifts: []ledger.Drift{
		{Kind: ledger.KindSupplier, ID: 1, Stored: dec("10"), Expected: dec("12")},
		{Kind: ledger.KindSupplier, ID: 2, Stored: dec("5"), Expected: dec("4")},
		{Kind: ledger.KindStock, ID: 3, Stored: dec("7"), Expected: dec("7.5")},
	}}
	svc := newTestService(t, repo)
	report, err := svc.Reconciliation(context.Background())
	if err != nil {
		t.Fatalf("reconciliation: %v", err)
	}
	if !report.Totals[ledger.KindSupplier].Equal(dec("3")) {
		t.Fatalf("expected supplier drift 3 got %s", report.Totals[ledger.KindSupplier])
	}
	if !report.Totals[ledger.KindCustomer].IsZero() {
		t.Fatalf("expected no customer drift")
	}
	if len(report.Drifts) != 3 {
		t.Fatalf("expected 3 drifts got %d", len(report.Drifts))
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		query  string
		fields []string
		want   bool
	}{
		{"", []string{"anything"}, true},
		{"widget", []string{"IT0002", "Blue Widget"}, true},
		{"blue it0002", []string{"IT0002", "Blue Widget"}, true},
		{"red", []string{"IT0002", "Blue Widget"}, false},
		{"STRASSE", []string{"Straße"}, true},
	}
	for _, tc := range cases {
		if got := Matches(tc.query, tc.fields...); got != tc.want {
			t.Errorf("Matches(%q, %v) = %v, want %v", tc.query, tc.fields, got, tc.want)
		}
	}
}
