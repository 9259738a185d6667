package command

import (
	"context"
	"fmt"

	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// MetricsHandler recomputes the stored participant metrics.
type MetricsHandler struct {
	deps *Deps
}

// RecomputeMetricsCommand refreshes one participant.
type RecomputeMetricsCommand struct {
	ParticipantID string
}

// RecomputeMetricsResult reports the stored metrics.
type RecomputeMetricsResult struct {
	ParticipantID string
	Metrics       participant.Metrics
	Changed       bool
}

// RecomputeMetrics executes RecomputeMetricsCommand.
func (h *MetricsHandler) RecomputeMetrics(ctx context.Context, cmd RecomputeMetricsCommand) (*RecomputeMetricsResult, error) {
	if cmd.ParticipantID == "" {
		return nil, shared.NewDomainError("participant", "Recompute", shared.ErrInvalidID, "participant_id is required")
	}

	var res *RecomputeMetricsResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = h.recompute(ctx, cmd.ParticipantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (h *MetricsHandler) recompute(ctx context.Context, participantID string) (*RecomputeMetricsResult, error) {
	p, err := h.deps.Participants.GetByID(ctx, participantID)
	if err != nil {
		return nil, err
	}

	rows, err := h.deps.Attendance.List(ctx, attendance.ListOptions{ParticipantID: p.ID})
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	samples := make([]participant.PresenceSample, 0, len(rows))
	for _, a := range rows {
		samples = append(samples, participant.PresenceSample{Attended: a.Presence.Attended()})
	}

	subs, err := h.deps.Submissions.List(ctx, assignment.SubmissionFilter{ParticipantID: p.ID})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	assignments := make(map[string]*assignment.Assignment)
	scored := make([]participant.ScoredSubmission, 0, len(subs))
	for _, s := range subs {
		a, ok := assignments[s.AssignmentID]
		if !ok {
			a, err = h.deps.Assignments.GetByID(ctx, s.AssignmentID)
			if err != nil {
				if shared.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			assignments[s.AssignmentID] = a
		}
		scored = append(scored, participant.ScoredSubmission{
			AssignmentID:      a.ID,
			AssignmentBatchID: a.BatchID,
			MaxScore:          a.MaxScore,
			Weight:            a.Weight,
			Score:             s.Score,
		})
	}

	m := participant.ComputeMetrics(p.BatchID, samples, scored, p.MentorScore)
	res := &RecomputeMetricsResult{ParticipantID: p.ID, Metrics: m}
	if m.AttendanceRate == p.AttendanceRate && m.AverageScore == p.AverageScore && m.FinalScore == p.FinalScore {
		return res, nil
	}

	p.ApplyMetrics(m, h.deps.Clock.Now())
	if err := p.ValidateScores(); err != nil {
		return nil, err
	}
	if err := h.deps.Participants.Update(ctx, p); err != nil {
		return nil, err
	}
	res.Changed = true
	return res, nil
}

// RecomputeAllResult summarises a full refresh.
type RecomputeAllResult struct {
	Processed int
	Changed   int
	Failed    int
}

// RecomputeAll refreshes every participant, one transaction each. Individual
// failures are logged and counted; the refresh carries on.
func (h *MetricsHandler) RecomputeAll(ctx context.Context) (*RecomputeAllResult, error) {
	ids, err := h.deps.Participants.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	res := &RecomputeAllResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r, err := h.RecomputeMetrics(ctx, RecomputeMetricsCommand{ParticipantID: id})
		res.Processed++
		if err != nil {
			res.Failed++
			h.deps.Log.Warn("recompute metrics failed", logger.ParticipantID(id), logger.Err(err))
			continue
		}
		if r.Changed {
			res.Changed++
		}
	}
	return res, nil
}
