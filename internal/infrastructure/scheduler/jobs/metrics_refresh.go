package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/pkg/logger"
)

// MetricsRecomputer refreshes every participant.
type MetricsRecomputer interface {
	RecomputeAll(ctx context.Context) (*command.RecomputeAllResult, error)
}

// MetricsRefreshJob recomputes all participant metrics. Event handlers keep
// metrics current; this pass repairs anything a dropped event left stale.
type MetricsRefreshJob struct {
	metrics MetricsRecomputer
	timeout time.Duration
	log     *logger.Logger

	lastResult atomic.Pointer[command.RecomputeAllResult]
}

// NewMetricsRefreshJob creates the job.
func NewMetricsRefreshJob(m MetricsRecomputer, timeout time.Duration, log *logger.Logger) *MetricsRefreshJob {
	if log == nil {
		log = logger.Nop()
	}
	return &MetricsRefreshJob{
		metrics: m,
		timeout: timeout,
		log:     log.With(logger.Component(NameMetricsRefresh)),
	}
}

// Name implements scheduler.Job.
func (j *MetricsRefreshJob) Name() string { return NameMetricsRefresh }

// Description implements scheduler.Job.
func (j *MetricsRefreshJob) Description() string {
	return "Recompute attendance rate and scores of every participant"
}

// Run implements scheduler.Job.
func (j *MetricsRefreshJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	res, err := j.metrics.RecomputeAll(ctx)
	if err != nil {
		return err
	}
	j.lastResult.Store(res)
	j.log.Info("participant metrics refreshed",
		logger.Int("processed", res.Processed),
		logger.Int("changed", res.Changed),
		logger.Int("failed", res.Failed),
	)
	return nil
}

// LastResult returns the outcome of the last successful run, or nil.
func (j *MetricsRefreshJob) LastResult() *command.RecomputeAllResult {
	return j.lastResult.Load()
}
