package observability

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/bizdesk/internal/platform/db"
)

// TxLogger menulis transaksi yang dibatalkan ke log.
type TxLogger struct {
	Logger *slog.Logger
	Next   db.TxObserver
}

// ObserveTx implements db.TxObserver.
func (l TxLogger) ObserveTx(ctx context.Context, outcome db.TxOutcome) {
	if outcome.State == db.TxAborted && l.Logger != nil {
		l.Logger.Warn("transaction aborted",
			slog.String("tx_id", outcome.ID.String()),
			slog.String("label", outcome.Label),
			slog.Any("error", outcome.Err),
		)
	}
	if l.Next != nil {
		l.Next.ObserveTx(ctx, outcome)
	}
}
