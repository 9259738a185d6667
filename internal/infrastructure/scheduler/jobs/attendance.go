// Package jobs contains the scheduled jobs of the OJT worker.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/pkg/logger"
)

// Job names, also accepted by `ojtctl job run`.
const (
	NameAutoAbsent     = "attendance_auto_absent"
	NameAutoCheckout   = "attendance_auto_checkout"
	NameMetricsRefresh = "participant_metrics_refresh"
)

// AttendanceFinalizer is the write side the attendance jobs drive.
type AttendanceFinalizer interface {
	AutoAbsent(ctx context.Context) (*command.FinalizeResult, error)
	AutoCheckout(ctx context.Context) (*command.FinalizeResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE FINALIZATION JOBS
// ══════════════════════════════════════════════════════════════════════════════

// FinalizeJob closes attendance rows of past sessions. One type serves both
// the auto-absent and auto-checkout passes.
type FinalizeJob struct {
	name        string
	description string
	run         func(ctx context.Context) (*command.FinalizeResult, error)
	timeout     time.Duration
	log         *logger.Logger

	lastResult atomic.Pointer[command.FinalizeResult]
}

// NewAutoAbsentJob marks absent every row nobody checked in to in time.
func NewAutoAbsentJob(f AttendanceFinalizer, timeout time.Duration, log *logger.Logger) *FinalizeJob {
	return newFinalizeJob(NameAutoAbsent, "Mark attendance absent when no check-in happened after session start", f.AutoAbsent, timeout, log)
}

// NewAutoCheckoutJob stamps a check-out on open rows of finished sessions.
func NewAutoCheckoutJob(f AttendanceFinalizer, timeout time.Duration, log *logger.Logger) *FinalizeJob {
	return newFinalizeJob(NameAutoCheckout, "Check out open attendance rows after the session ended", f.AutoCheckout, timeout, log)
}

func newFinalizeJob(name, description string, run func(context.Context) (*command.FinalizeResult, error), timeout time.Duration, log *logger.Logger) *FinalizeJob {
	if log == nil {
		log = logger.Nop()
	}
	return &FinalizeJob{
		name:        name,
		description: description,
		run:         run,
		timeout:     timeout,
		log:         log.With(logger.Component(name)),
	}
}

// Name implements scheduler.Job.
func (j *FinalizeJob) Name() string { return j.name }

// Description implements scheduler.Job.
func (j *FinalizeJob) Description() string { return j.description }

// Run implements scheduler.Job.
func (j *FinalizeJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	res, err := j.run(ctx)
	if err != nil {
		return err
	}
	j.lastResult.Store(res)
	if res.Updated > 0 {
		j.log.Info("attendance finalized",
			logger.Int("examined", res.Examined),
			logger.Int("updated", res.Updated),
		)
	}
	return nil
}

// LastResult returns the outcome of the last successful run, or nil.
func (j *FinalizeJob) LastResult() *command.FinalizeResult {
	return j.lastResult.Load()
}
