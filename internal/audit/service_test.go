package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type stubTimelineRepo struct {
	windowRows []TimelineRow
	allRows    []TimelineRow
	lastFilter TimelineFilters
	lastOffset int
	lastLimit  int
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = filters, offset, limit
	return s.windowRows, nil
}

func (s *stubTimelineRepo) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	s.lastFilter = filters
	return s.allRows, nil
}

func row(ts, action, entity, entityID string) TimelineRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{At: at, ActorID: 7, Action: action, Entity: entity, EntityID: entityID}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{
		windowRows: []TimelineRow{
			row("2025-03-10T10:00:00Z", "purchase.create", "purchase", "PUR-0003"),
			row("2025-03-09T09:00:00Z", "payment.create", "supplier_payment", "PAY-0002"),
			row("2025-03-08T08:00:00Z", "supplier.create", "supplier", "SU004"),
		},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{
		From:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Page:     2,
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 3 || result.Paging.PrevPage != 1 {
		t.Fatalf("unexpected paging %+v", result.Paging)
	}
	if repo.lastLimit != 3 {
		t.Fatalf("expected limit 3, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 2 {
		t.Fatalf("expected offset 2, got %d", repo.lastOffset)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	if _, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != maxPageSize+1 {
		t.Fatalf("expected clamped limit, got %d", repo.lastLimit)
	}
}

func TestServiceRejectsReversedRange(t *testing.T) {
	svc := NewService(&stubTimelineRepo{})
	_, err := svc.Export(context.Background(), TimelineFilters{
		From: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEntityTrail(t *testing.T) {
	repo := &stubTimelineRepo{allRows: []TimelineRow{row("2025-03-10T10:00:00Z", "supplier.create", "supplier", "SU001")}}
	svc := NewService(repo)
	rows, err := svc.EntityTrail(context.Background(), "supplier", " SU001 ")
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(rows) != 1 || repo.lastFilter.EntityID != "SU001" {
		t.Fatalf("unexpected trail %v filter %+v", rows, repo.lastFilter)
	}
	if _, err := svc.EntityTrail(context.Background(), "supplier", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	r := row("2025-03-10T10:00:00Z", "sale.create", "sale", "POS-00012")
	r.Meta = map[string]any{"total": "12.50"}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []TimelineRow{r}); err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "2025-03-10T10:00:00Z,7,sale.create,sale,POS-00012,") {
		t.Fatalf("unexpected csv row %q", lines[1])
	}
}

func TestHandlerDefaultsToLastWeek(t *testing.T) {
	repo := &stubTimelineRepo{}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo))
	h.now = func() time.Time { return time.Date(2025, 3, 20, 15, 4, 0, 0, time.UTC) }
	router := chi.NewRouter()
	h.MountRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/?entity=supplier", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := repo.lastFilter.From.Format(time.DateOnly); got != "2025-03-13" {
		t.Fatalf("expected default from 2025-03-13, got %s", got)
	}
	if repo.lastFilter.Entity != "supplier" {
		t.Fatalf("expected entity filter, got %q", repo.lastFilter.Entity)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/?from=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}
