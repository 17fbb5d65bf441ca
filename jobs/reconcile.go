package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/bizdesk/internal/jobs"
	"github.com/odyssey-erp/bizdesk/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReconcileSource computes drift reports and drops cached reports.
type ReconcileSource interface {
	Reconciliation(ctx context.Context) (reports.Reconciliation, error)
	Invalidate(ctx context.Context) error
}

// ReconcileJob checks stored balances and stock against their documents.
type ReconcileJob struct {
	Source  ReconcileSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReconcileJob wires dependencies for the reconcile handler.
func NewReconcileJob(source ReconcileSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{
		Source:  source,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes a reconciliation run.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run performs the reconciliation and publishes the drift gauges.
func (j *ReconcileJob) Run(ctx context.Context, payload ReconcilePayload) (reports.Reconciliation, error) {
	start := j.now()
	tracker := j.metrics().Track(TaskLedgerReconcile)
	logger := j.logger()

	report, err := j.Source.Reconciliation(ctx)
	if err != nil {
		logger.Error("reconcile failed", slog.Any("error", err))
		return reports.Reconciliation{}, tracker.End(err)
	}
	for kind, total := range report.Totals {
		j.metrics().SetDrift(kind, total)
	}
	for _, d := range report.Drifts {
		logger.Warn("balance drift detected",
			slog.String("kind", d.Kind),
			slog.Int64("id", d.ID),
			slog.String("code", d.Code),
			slog.String("stored", d.Stored.String()),
			slog.String("expected", d.Expected.String()),
		)
	}
	if payload.InvalidateCache {
		if err := j.Source.Invalidate(ctx); err != nil {
			logger.Warn("invalidate report cache", slog.Any("error", err))
		}
	}
	logger.Info("completed reconcile",
		slog.Int("drifts", len(report.Drifts)),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return report, tracker.End(nil)
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerReconcile))
	}
	return slog.Default().With(slog.String("job", TaskLedgerReconcile))
}

func (j *ReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReconcileJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
