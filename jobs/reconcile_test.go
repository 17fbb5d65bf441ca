package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/bizdesk/internal/jobs"
	"github.com/odyssey-erp/bizdesk/internal/ledger"
	"github.com/odyssey-erp/bizdesk/internal/reports"
)

type fakeSource struct {
	report      reports.Reconciliation
	err         error
	invalidated int
}

func (f *fakeSource) Reconciliation(ctx context.Context) (reports.Reconciliation, error) {
	return f.report, f.err
}

func (f *fakeSource) Invalidate(ctx context.Context) error {
	f.invalidated++
	return nil
}

func gaugeValues(t *testing.T, reg *prometheus.Registry, name string) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			out[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
	}
	return out
}

func TestReconcileJobPublishesDrift(t *testing.T) {
	drifts := []ledger.Drift{
		{Kind: ledger.KindSupplier, ID: 1, Code: "SU001", Stored: decimal.NewFromInt(10), Expected: decimal.NewFromInt(13)},
		{Kind: ledger.KindStock, ID: 4, Code: "IT0004", Stored: decimal.NewFromInt(2), Expected: decimal.NewFromInt(1)},
	}
	source := &fakeSource{report: reports.Reconciliation{Drifts: drifts, Totals: ledger.Summarise(drifts)}}
	reg := prometheus.NewRegistry()
	job := NewReconcileJob(source, nil, jobmetrics.NewMetrics(reg))

	task, err := NewReconcileTask(ReconcilePayload{InvalidateCache: true})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	values := gaugeValues(t, reg, "bizdesk_balance_drift")
	assert.Equal(t, 3.0, values[ledger.KindSupplier])
	assert.Equal(t, 0.0, values[ledger.KindCustomer])
	assert.Equal(t, 1.0, values[ledger.KindStock])
	assert.Equal(t, 1, source.invalidated)
}

func TestReconcileJobKeepsCacheByDefault(t *testing.T) {
	source := &fakeSource{report: reports.Reconciliation{Totals: ledger.Summarise(nil)}}
	job := NewReconcileJob(source, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskLedgerReconcile, nil)))
	assert.Zero(t, source.invalidated)
}

func TestReconcileJobFailure(t *testing.T) {
	boom := errors.New("db down")
	source := &fakeSource{err: boom}
	job := NewReconcileJob(source, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	_, err := job.Run(context.Background(), ReconcilePayload{InvalidateCache: true})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, source.invalidated)
}

func TestReconcileJobRejectsBadPayload(t *testing.T) {
	job := NewReconcileJob(&fakeSource{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerReconcile, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakePurger struct {
	olderThan time.Duration
	err       error
}

func (f *fakePurger) Cleanup(ctx context.Context, olderThan time.Duration) error {
	f.olderThan = olderThan
	return f.err
}

func TestCleanupJob(t *testing.T) {
	purger := &fakePurger{}
	job := &CleanupJob{Store: purger, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}

	task, err := NewCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, purger.olderThan)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, 7*24*time.Hour, purger.olderThan)

	purger.err = errors.New("locked")
	assert.Error(t, job.Handle(context.Background(), task))
}
