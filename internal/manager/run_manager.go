// internal/manager/run_manager.go
package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"roomsync/internal/metrics"
	"roomsync/internal/model"
	"roomsync/internal/reconcile"
	"roomsync/internal/storage"
)

var (
	ErrRunInProgress = errors.New("a reconciliation run is already in progress")
	ErrClosed        = errors.New("run manager is shut down")
)

// Runner executes one reconciliation run.
type Runner interface {
	Run(ctx context.Context, opts reconcile.Options) (*model.Report, error)
}

// AuditSink persists finished runs.
type AuditSink interface {
	SaveRun(ctx context.Context, r *model.Report) error
	LatestRun(ctx context.Context) (*model.Report, error)
	ListRuns(ctx context.Context, limit int) ([]model.Report, error)
}

// ReportPublisher announces finished runs.
type ReportPublisher interface {
	PublishReport(r *model.Report) error
}

// RunManager serialises runs: the job assumes exclusive access to the
// collections, so a second trigger while one is active is refused.
type RunManager struct {
	runner    Runner
	audit     AuditSink
	publisher ReportPublisher
	logger    *zap.Logger

	running sync.Mutex
	closed  bool

	mu     sync.RWMutex
	latest *model.Report
}

// NewRunManager wires a runner. audit and publisher may be nil when Postgres
// or RabbitMQ are not configured.
func NewRunManager(runner Runner, audit AuditSink, publisher ReportPublisher, logger *zap.Logger) *RunManager {
	return &RunManager{
		runner:    runner,
		audit:     audit,
		publisher: publisher,
		logger:    logger.Named("manager"),
	}
}

// Trigger runs the job unless one is already active, in which case it
// returns ErrRunInProgress immediately.
func (m *RunManager) Trigger(ctx context.Context, opts reconcile.Options) (*model.Report, error) {
	if !m.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer m.running.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	report, err := m.runner.Run(ctx, opts)
	metrics.ObserveRun(report, err)
	if err != nil {
		m.logger.Error("reconciliation run failed", zap.Error(err))
		return nil, err
	}

	m.mu.Lock()
	m.latest = report
	m.mu.Unlock()

	if m.audit != nil {
		if err := m.audit.SaveRun(ctx, report); err != nil {
			m.logger.Error("failed to save run", zap.String("run_id", report.RunID.String()), zap.Error(err))
		}
	}
	if m.publisher != nil {
		if err := m.publisher.PublishReport(report); err != nil {
			m.logger.Error("failed to publish report", zap.String("run_id", report.RunID.String()), zap.Error(err))
		}
	}
	return report, nil
}

// Latest returns the last successful run of this process, or nil.
func (m *RunManager) Latest() *model.Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// LatestStored returns the last successful run, preferring this process's
// run and falling back to the audit store. It returns nil when no run is
// known.
func (m *RunManager) LatestStored(ctx context.Context) (*model.Report, error) {
	if latest := m.Latest(); latest != nil {
		return latest, nil
	}
	if m.audit == nil {
		return nil, nil
	}
	report, err := m.audit.LatestRun(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return report, err
}

// History returns stored runs, newest first. Without an audit store it
// falls back to the in-process latest run.
func (m *RunManager) History(ctx context.Context, limit int) ([]model.Report, error) {
	if m.audit != nil {
		return m.audit.ListRuns(ctx, limit)
	}
	if latest := m.Latest(); latest != nil && limit > 0 {
		return []model.Report{*latest}, nil
	}
	return []model.Report{}, nil
}

// Schedule triggers a live run every interval until ctx is cancelled. Ticks
// that land while a run is active are skipped.
func (m *RunManager) Schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("scheduled reconciliation enabled", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := m.Trigger(ctx, reconcile.Options{})
			if errors.Is(err, ErrRunInProgress) {
				m.logger.Debug("skipping scheduled run, previous run still active")
			}
		}
	}
}

// Shutdown waits for the active run to finish and refuses every later
// trigger with ErrClosed. Call it before releasing the store.
func (m *RunManager) Shutdown() {
	m.running.Lock()
	defer m.running.Unlock()
	m.closed = true
	m.logger.Info("run manager stopped")
}
