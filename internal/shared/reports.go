package shared

import "context"

// ReportCache drops cached report data derived from sales, purchases and stock.
type ReportCache interface {
	Invalidate(ctx context.Context) error
}

// InvalidateReports bumps cache after a committed write. Errors are dropped:
// the write already committed and cached entries still expire on their TTL.
func InvalidateReports(ctx context.Context, cache ReportCache) {
	if cache == nil {
		return
	}
	_ = cache.Invalidate(ctx)
}
