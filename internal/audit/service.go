package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// ErrValidation menandai filter yang tidak valid.
var ErrValidation = fmt.Errorf("audit: %w", shared.ErrValidation)

// Repository menyediakan akses baca ke audit_logs.
type Repository interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// Service mengoordinasikan pengambilan data audit.
type Service struct {
	repo Repository
}

// NewService membuat service audit timeline baru.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline mengambil data audit dengan paging.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	filters, err := normalise(filters)
	if err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	// Satu baris ekstra untuk mendeteksi halaman berikutnya.
	rows, err := s.repo.TimelineWindow(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export mengambil seluruh data timeline tanpa paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	filters, err := normalise(filters)
	if err != nil {
		return nil, err
	}
	return s.repo.TimelineAll(ctx, filters)
}

// EntityTrail mengembalikan seluruh jejak satu entitas, misalnya supplier SU001.
func (s *Service) EntityTrail(ctx context.Context, entity, entityID string) ([]TimelineRow, error) {
	if strings.TrimSpace(entity) == "" || strings.TrimSpace(entityID) == "" {
		return nil, fmt.Errorf("%w: entity and entity id required", ErrValidation)
	}
	return s.Export(ctx, TimelineFilters{Entity: entity, EntityID: entityID})
}

func normalise(f TimelineFilters) (TimelineFilters, error) {
	f.Entity = strings.TrimSpace(f.Entity)
	f.EntityID = strings.TrimSpace(f.EntityID)
	f.Action = strings.TrimSpace(f.Action)
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return TimelineFilters{}, fmt.Errorf("%w: range reversed", ErrValidation)
	}
	return f, nil
}
