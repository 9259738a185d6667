package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

// BatchHandler handles batch and job writes. Every batch write mirrors the
// batch-owned fields onto the linked job.
type BatchHandler struct {
	deps *Deps
}

// ══════════════════════════════════════════════════════════════════════════════
// CREATE BATCH
// ══════════════════════════════════════════════════════════════════════════════

// CreateBatchCommand creates a draft batch. When JobID is empty a job opening
// is created from the batch fields. With a JobID, nil Capacity and Description
// are read from the job and only the name and supplied fields are written back.
type CreateBatchCommand struct {
	Name                string
	JobID               string
	DepartmentID        string
	MentorIDs           []string
	Capacity            *int
	Description         *string
	StartDate           time.Time
	EndDate             time.Time
	Mode                batch.Mode
	AttendanceThreshold *float64
	ScoreThreshold      *float64
}

// Validate validates the command.
func (c CreateBatchCommand) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return shared.ErrBatchNameRequired
	}
	return nil
}

// CreateBatchResult contains the created batch and its job.
type CreateBatchResult struct {
	Batch *batch.Batch
	Job   *recruitment.Job
}

// CreateBatch executes CreateBatchCommand.
func (h *BatchHandler) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*CreateBatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()

	var res CreateBatchResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var (
			job         *recruitment.Job
			capacity    int
			description string
			err         error
		)
		if cmd.JobID != "" {
			job, err = h.deps.Jobs.GetByID(ctx, cmd.JobID)
			if err != nil {
				return err
			}
			capacity, description = job.NoOfRecruitment, job.Description
		}
		if cmd.Capacity != nil {
			capacity = *cmd.Capacity
		}
		if cmd.Description != nil {
			description = *cmd.Description
		}

		b, err := batch.NewBatch(batch.NewBatchParams{
			ID:                  h.deps.NewID(),
			Name:                cmd.Name,
			JobID:               cmd.JobID,
			DepartmentID:        cmd.DepartmentID,
			MentorIDs:           cmd.MentorIDs,
			Capacity:            capacity,
			Description:         description,
			StartDate:           cmd.StartDate,
			EndDate:             cmd.EndDate,
			Mode:                cmd.Mode,
			AttendanceThreshold: cmd.AttendanceThreshold,
			ScoreThreshold:      cmd.ScoreThreshold,
		}, now)
		if err != nil {
			return err
		}

		code, err := h.deps.Batches.NextCode(ctx, timeutil.ToLocal(now).Year())
		if err != nil {
			return fmt.Errorf("allocate batch code: %w", err)
		}
		b.Code = code

		if job != nil {
			b.IsPublished = job.IsPublished
			job.Name = b.Name
			if cmd.Capacity != nil {
				job.NoOfRecruitment = b.Capacity
			}
			if cmd.Description != nil {
				job.Description = b.Description
			}
			job.UpdatedAt = now
			if err := h.deps.Jobs.Update(ctx, job); err != nil {
				return fmt.Errorf("sync job: %w", err)
			}
		} else {
			job = &recruitment.Job{ID: h.deps.NewID(), CreatedAt: now}
			b.JobID = job.ID
			b.MirrorOnto(job, now)
			if err := h.deps.Jobs.Create(ctx, job); err != nil {
				return fmt.Errorf("create job: %w", err)
			}
		}

		if err := h.deps.Batches.Create(ctx, b); err != nil {
			return err
		}
		res = CreateBatchResult{Batch: b, Job: job}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Log.Info("batch created",
		logger.BatchID(res.Batch.ID),
		logger.String("code", res.Batch.Code),
		logger.String("job_id", res.Job.ID),
	)
	return &res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE BATCH
// ══════════════════════════════════════════════════════════════════════════════

// UpdateBatchCommand is a partial batch update. Nil fields are left untouched.
type UpdateBatchCommand struct {
	BatchID             string
	Name                *string
	DepartmentID        *string
	MentorIDs           []string
	Capacity            *int
	Description         *string
	StartDate           *time.Time
	EndDate             *time.Time
	Mode                *batch.Mode
	AttendanceThreshold *float64
	ScoreThreshold      *float64
}

// Validate validates the command.
func (c UpdateBatchCommand) Validate() error {
	if c.BatchID == "" {
		return shared.NewDomainError("batch", "Update", shared.ErrInvalidID, "batch_id is required")
	}
	return nil
}

// UpdateBatch executes UpdateBatchCommand.
func (h *BatchHandler) UpdateBatch(ctx context.Context, cmd UpdateBatchCommand) (*batch.Batch, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()

	var out *batch.Batch
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := h.deps.Batches.GetByID(ctx, cmd.BatchID)
		if err != nil {
			return err
		}

		if cmd.Name != nil {
			b.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.DepartmentID != nil {
			b.DepartmentID = *cmd.DepartmentID
		}
		if cmd.MentorIDs != nil {
			b.MentorIDs = cmd.MentorIDs
		}
		if cmd.Capacity != nil {
			b.Capacity = *cmd.Capacity
		}
		if cmd.Description != nil {
			b.Description = *cmd.Description
		}
		if cmd.StartDate != nil {
			b.StartDate = *cmd.StartDate
		}
		if cmd.EndDate != nil {
			b.EndDate = *cmd.EndDate
		}
		if cmd.Mode != nil {
			b.Mode = *cmd.Mode
		}
		if cmd.AttendanceThreshold != nil {
			b.AttendanceThreshold = *cmd.AttendanceThreshold
		}
		if cmd.ScoreThreshold != nil {
			b.ScoreThreshold = *cmd.ScoreThreshold
		}
		if err := b.Validate(); err != nil {
			return err
		}
		b.UpdatedAt = now

		if err := h.deps.Batches.Update(ctx, b); err != nil {
			return err
		}
		if err := h.syncJob(ctx, b, now); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// syncJob mirrors the batch onto its job. Writes made here bypass the job guard.
func (h *BatchHandler) syncJob(ctx context.Context, b *batch.Batch, now time.Time) error {
	if b.JobID == "" {
		return nil
	}
	job, err := h.deps.Jobs.GetByID(ctx, b.JobID)
	if err != nil {
		if shared.IsNotFound(err) {
			h.deps.Log.Warn("batch job missing", logger.BatchID(b.ID), logger.String("job_id", b.JobID))
			return nil
		}
		return err
	}
	b.MirrorOnto(job, now)
	if err := h.deps.Jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("sync job: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE AND PUBLICATION
// ══════════════════════════════════════════════════════════════════════════════

// ChangeBatchStateCommand moves a batch through its workflow.
type ChangeBatchStateCommand struct {
	BatchID string
	State   batch.State
}

// Validate validates the command.
func (c ChangeBatchStateCommand) Validate() error {
	if c.BatchID == "" {
		return shared.NewDomainError("batch", "Transition", shared.ErrInvalidID, "batch_id is required")
	}
	if !c.State.IsValid() {
		return shared.NewDomainError("batch", "Transition", shared.ErrInvalidInput, "unknown batch state")
	}
	return nil
}

// ChangeBatchState executes ChangeBatchStateCommand. Leaving recruitment
// unpublishes the batch and its job.
func (h *BatchHandler) ChangeBatchState(ctx context.Context, cmd ChangeBatchStateCommand) (*batch.Batch, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()

	var (
		out  *batch.Batch
		from batch.State
	)
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := h.deps.Batches.GetByID(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		from = b.State
		if err := b.TransitionTo(cmd.State, now); err != nil {
			return err
		}
		if err := h.deps.Batches.Update(ctx, b); err != nil {
			return err
		}
		if err := h.syncJob(ctx, b, now); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish(ctx, shared.NewBatchStateChangedEvent(out.ID, string(from), string(out.State)))
	h.deps.Log.Info("batch state changed",
		logger.BatchID(out.ID),
		logger.String("from", string(from)),
		logger.String("to", string(out.State)),
	)
	return out, nil
}

// PublishBatchCommand publishes or unpublishes a batch on the careers site.
type PublishBatchCommand struct {
	BatchID   string
	Published bool
}

// PublishBatch executes PublishBatchCommand.
func (h *BatchHandler) PublishBatch(ctx context.Context, cmd PublishBatchCommand) (*batch.Batch, error) {
	if cmd.BatchID == "" {
		return nil, shared.NewDomainError("batch", "Publish", shared.ErrInvalidID, "batch_id is required")
	}
	now := h.deps.Clock.Now()

	var out *batch.Batch
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := h.deps.Batches.GetByID(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		if err := b.SetPublished(cmd.Published, now); err != nil {
			return err
		}
		if err := h.deps.Batches.Update(ctx, b); err != nil {
			return err
		}
		if err := h.syncJob(ctx, b, now); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE JOB
// ══════════════════════════════════════════════════════════════════════════════

// UpdateJobCommand edits a job opening directly, outside batch synchronisation.
type UpdateJobCommand struct {
	JobID  string
	Change recruitment.JobChange
}

// Validate validates the command.
func (c UpdateJobCommand) Validate() error {
	if c.JobID == "" {
		return shared.NewDomainError("job", "Write", shared.ErrInvalidID, "job_id is required")
	}
	if c.Change.NoOfRecruitment != nil && *c.Change.NoOfRecruitment < 0 {
		return shared.NewDomainError("job", "Write", shared.ErrNegativeValue, "Target cannot be negative.")
	}
	return nil
}

// UpdateJob executes UpdateJobCommand. Jobs linked to a batch reject edits of
// the mirrored fields and publication outside recruitment.
func (h *BatchHandler) UpdateJob(ctx context.Context, cmd UpdateJobCommand) (*recruitment.Job, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()

	var out *recruitment.Job
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := h.deps.Jobs.GetByID(ctx, cmd.JobID)
		if err != nil {
			return err
		}
		batches, err := h.deps.Batches.FindByJobID(ctx, job.ID)
		if err != nil {
			return err
		}
		linked := make([]recruitment.LinkedBatch, 0, len(batches))
		for _, b := range batches {
			linked = append(linked, recruitment.LinkedBatch{ID: b.ID, InRecruitment: b.State == batch.StateRecruitment})
		}
		if err := recruitment.GuardJobWrite(cmd.Change, linked, false); err != nil {
			return err
		}

		job.Apply(cmd.Change, now)
		if err := h.deps.Jobs.Update(ctx, job); err != nil {
			return err
		}

		// Publishing a job of a batch in recruitment publishes the batch too.
		if cmd.Change.IsPublished != nil {
			for _, b := range batches {
				if b.IsPublished == *cmd.Change.IsPublished {
					continue
				}
				if err := b.SetPublished(*cmd.Change.IsPublished, now); err != nil {
					return err
				}
				if err := h.deps.Batches.Update(ctx, b); err != nil {
					return err
				}
			}
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
