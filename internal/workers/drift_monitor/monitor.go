package drift_monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxRecentErrors = 100

// RingLister returns every stored ring.
type RingLister interface {
	List(ctx context.Context) ([]*entities.AllocationRing, error)
}

// ValuationRefresher pulls fresh holdings for a linked ring and recalculates it.
type ValuationRefresher interface {
	RefreshValuations(ctx context.Context, ringID uuid.UUID) (*entities.AllocationRing, error)
}

// Config controls when and how hard the monitor runs.
type Config struct {
	// Cron expression with a leading seconds field
	Schedule          string        `json:"schedule"`
	MaxConcurrentJobs int           `json:"max_concurrent_jobs"`
	RingTimeout       time.Duration `json:"ring_timeout"`
	RunTimeout        time.Duration `json:"run_timeout"`
	Timezone          string        `json:"timezone"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Schedule:          "0 */15 * * * *",
		MaxConcurrentJobs: 8,
		RingTimeout:       30 * time.Second,
		RunTimeout:        10 * time.Minute,
		Timezone:          "UTC",
	}
}

// Monitor periodically refreshes valuations of portfolio-linked rings and
// tracks how many rings have drifted past the rebalancing threshold.
// Drift notifications are raised by the allocation service when a refresh
// flips a ring into needing rebalancing.
type Monitor struct {
	cron      *cron.Cron
	rings     RingLister
	refresher ValuationRefresher
	config    *Config
	logger    *zap.Logger
	tracer    trace.Tracer

	mu       sync.RWMutex
	running  bool
	lastRun  time.Time
	nextRun  time.Time
	jobStats *JobStatistics
}

// JobStatistics tracks monitor runs
type JobStatistics struct {
	TotalRuns        int64         `json:"total_runs"`
	SuccessfulRuns   int64         `json:"successful_runs"`
	FailedRuns       int64         `json:"failed_runs"`
	LastRunTime      time.Time     `json:"last_run_time"`
	LastRunDuration  time.Duration `json:"last_run_duration"`
	RingsRefreshed   int64         `json:"rings_refreshed"`
	NeedingRebalance int           `json:"needing_rebalance"`
	Errors           []JobError    `json:"recent_errors"`
}

// JobError represents a ring that could not be refreshed
type JobError struct {
	Timestamp time.Time `json:"timestamp"`
	RingID    string    `json:"ring_id,omitempty"`
	Error     string    `json:"error"`
	Retryable bool      `json:"retryable"`
}

// RunSummary is the outcome of a single pass over all rings.
type RunSummary struct {
	RingsScanned     int           `json:"rings_scanned"`
	RingsRefreshed   int           `json:"rings_refreshed"`
	NeedingRebalance int           `json:"needing_rebalance"`
	Errors           []JobError    `json:"errors"`
	Duration         time.Duration `json:"duration"`
}

// MonitorStatus is reported by the health endpoint
type MonitorStatus struct {
	Running  bool           `json:"running"`
	LastRun  time.Time      `json:"last_run"`
	NextRun  time.Time      `json:"next_run"`
	Schedule string         `json:"schedule"`
	Stats    *JobStatistics `json:"stats"`
}

type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Printf(format string, args ...interface{}) {
	l.logger.Sugar().Debugf(format, args...)
}

// NewMonitor creates a drift monitor
func NewMonitor(rings RingLister, refresher ValuationRefresher, config *Config, logger *zap.Logger) (*Monitor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 1
	}

	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", config.Timezone, err)
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(location),
		cron.WithLogger(cron.VerbosePrintfLogger(&zapCronLogger{logger: logger})),
	)

	m := &Monitor{
		cron:      c,
		rings:     rings,
		refresher: refresher,
		config:    config,
		logger:    logger,
		tracer:    otel.Tracer("drift-monitor"),
		jobStats:  &JobStatistics{Errors: make([]JobError, 0)},
	}

	logger.Info("Drift monitor created",
		zap.String("schedule", config.Schedule),
		zap.String("timezone", config.Timezone),
		zap.Int("max_concurrent_jobs", config.MaxConcurrentJobs),
	)
	return m, nil
}

// Start begins scheduled execution
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("drift monitor is already running")
	}

	if _, err := m.cron.AddFunc(m.config.Schedule, m.executeScheduledRun); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	m.cron.Start()
	m.running = true

	if entries := m.cron.Entries(); len(entries) > 0 {
		m.nextRun = entries[0].Next
	}

	m.logger.Info("Drift monitor started", zap.Time("next_run", m.nextRun))
	return nil
}

// Stop halts scheduled execution, waiting for an in-flight run up to ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return fmt.Errorf("drift monitor is not running")
	}

	done := m.cron.Stop()
	select {
	case <-done.Done():
		m.logger.Info("Drift monitor stopped gracefully")
	case <-ctx.Done():
		m.logger.Warn("Drift monitor stop timed out")
	}

	m.running = false
	return nil
}

func (m *Monitor) executeScheduledRun() {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.RunTimeout)
	defer cancel()

	if _, err := m.RunOnce(ctx); err != nil {
		m.logger.Error("Drift monitor run failed", zap.Error(err))
	}

	m.mu.Lock()
	if entries := m.cron.Entries(); len(entries) > 0 {
		m.nextRun = entries[0].Next
	}
	m.mu.Unlock()
}

// TriggerManualRun runs a pass in the background outside the schedule.
func (m *Monitor) TriggerManualRun(ctx context.Context) error {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()
	if !running {
		return fmt.Errorf("drift monitor is not running")
	}

	m.logger.Info("Manual drift monitor run triggered")
	go func() {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.RunTimeout)
		defer cancel()
		if _, err := m.RunOnce(runCtx); err != nil {
			m.logger.Error("Manual drift monitor run failed", zap.Error(err))
		}
	}()
	return nil
}

// RunOnce refreshes every portfolio-linked ring and counts rings needing
// rebalancing. Individual ring failures are collected, not fatal.
func (m *Monitor) RunOnce(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "drift_monitor.run", trace.WithAttributes(
		attribute.String("schedule", m.config.Schedule),
	))
	defer span.End()

	m.mu.Lock()
	m.jobStats.TotalRuns++
	m.jobStats.LastRunTime = start
	m.lastRun = start
	m.mu.Unlock()

	rings, err := m.rings.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list rings")
		m.recordFailure(time.Since(start))
		return nil, fmt.Errorf("failed to list rings: %w", err)
	}

	summary := m.processRings(ctx, rings)
	summary.RingsScanned = len(rings)
	summary.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("rings_scanned", summary.RingsScanned),
		attribute.Int("rings_refreshed", summary.RingsRefreshed),
		attribute.Int("needing_rebalance", summary.NeedingRebalance),
		attribute.Int("errors", len(summary.Errors)),
	)

	m.mu.Lock()
	m.jobStats.SuccessfulRuns++
	m.jobStats.LastRunDuration = summary.Duration
	m.jobStats.RingsRefreshed += int64(summary.RingsRefreshed)
	m.jobStats.NeedingRebalance = summary.NeedingRebalance
	if len(summary.Errors) > 0 {
		m.jobStats.Errors = append(m.jobStats.Errors, summary.Errors...)
		if len(m.jobStats.Errors) > maxRecentErrors {
			m.jobStats.Errors = m.jobStats.Errors[len(m.jobStats.Errors)-maxRecentErrors:]
		}
	}
	m.mu.Unlock()

	metrics.RecordDriftMonitorRun(true, summary.Duration.Seconds(), summary.NeedingRebalance)

	m.logger.Info("Drift monitor run completed",
		zap.Int("rings_scanned", summary.RingsScanned),
		zap.Int("rings_refreshed", summary.RingsRefreshed),
		zap.Int("needing_rebalance", summary.NeedingRebalance),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// processRings refreshes linked rings concurrently. Rings without a portfolio
// are counted on their stored state.
func (m *Monitor) processRings(ctx context.Context, rings []*entities.AllocationRing) *RunSummary {
	semaphore := make(chan struct{}, m.config.MaxConcurrentJobs)
	var wg sync.WaitGroup
	var mu sync.Mutex
	summary := &RunSummary{Errors: make([]JobError, 0)}

	for _, ring := range rings {
		if ring.PortfolioID == "" {
			if ring.RebalancingNeeded {
				summary.NeedingRebalance++
			}
			continue
		}

		wg.Add(1)
		go func(r *entities.AllocationRing) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			refreshed, err := m.refreshRing(ctx, r)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors = append(summary.Errors, JobError{
					Timestamp: time.Now(),
					RingID:    r.ID.String(),
					Error:     err.Error(),
					Retryable: apperrors.ShouldRetry(err),
				})
				// the stored state still reflects the last known drift
				if r.RebalancingNeeded {
					summary.NeedingRebalance++
				}
				return
			}
			summary.RingsRefreshed++
			if refreshed.RebalancingNeeded {
				summary.NeedingRebalance++
			}
		}(ring)
	}

	wg.Wait()
	return summary
}

func (m *Monitor) refreshRing(ctx context.Context, ring *entities.AllocationRing) (*entities.AllocationRing, error) {
	ctx, cancel := context.WithTimeout(ctx, m.config.RingTimeout)
	defer cancel()

	ctx, span := m.tracer.Start(ctx, "drift_monitor.refresh_ring", trace.WithAttributes(
		attribute.String("ring_id", ring.ID.String()),
		attribute.String("portfolio_id", ring.PortfolioID),
	))
	defer span.End()

	refreshed, err := m.refresher.RefreshValuations(ctx, ring.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh valuations")
		m.logger.Warn("Failed to refresh ring valuations",
			zap.String("ring_id", ring.ID.String()),
			zap.String("portfolio_id", ring.PortfolioID),
			zap.Error(err),
		)
		return nil, err
	}
	return refreshed, nil
}

func (m *Monitor) recordFailure(duration time.Duration) {
	m.mu.Lock()
	m.jobStats.FailedRuns++
	m.jobStats.LastRunDuration = duration
	needing := m.jobStats.NeedingRebalance
	m.mu.Unlock()

	metrics.RecordDriftMonitorRun(false, duration.Seconds(), needing)
}

// GetStatus returns the current status of the monitor
func (m *Monitor) GetStatus() *MonitorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := *m.jobStats
	stats.Errors = append([]JobError(nil), m.jobStats.Errors...)

	return &MonitorStatus{
		Running:  m.running,
		LastRun:  m.lastRun,
		NextRun:  m.nextRun,
		Schedule: m.config.Schedule,
		Stats:    &stats,
	}
}
