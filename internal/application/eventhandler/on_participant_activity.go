// Package eventhandler reacts to domain events after the originating write
// committed.
package eventhandler

import (
	"context"
	"time"

	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
	"github.com/solvera/ojt-core/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PARTICIPANT ACTIVITY HANDLER
// Keeps the stored attendance rate, average score and final score of a
// participant in step with its attendance rows and submissions.
//
// Participant-scoped events recompute that one participant. An attendance
// sync recomputes the whole batch because a new session lowers every rate.
// ═══════════════════════════════════════════════════════════════════════════

// MetricsRecomputer is the write side used to refresh participant metrics.
type MetricsRecomputer interface {
	RecomputeMetrics(ctx context.Context, cmd command.RecomputeMetricsCommand) (*command.RecomputeMetricsResult, error)
}

// ActivityConfig configures OnParticipantActivityHandler.
type ActivityConfig struct {
	// MaxAttempts bounds retries of a single recomputation.
	MaxAttempts uint

	// InitialDelay is the first retry delay.
	InitialDelay time.Duration
}

// DefaultActivityConfig returns the default configuration.
func DefaultActivityConfig() ActivityConfig {
	return ActivityConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
	}
}

// OnParticipantActivityHandler recomputes participant metrics.
type OnParticipantActivityHandler struct {
	metrics      MetricsRecomputer
	participants participant.Repository
	log          *logger.Logger
	config       ActivityConfig
}

// NewOnParticipantActivityHandler creates the handler.
func NewOnParticipantActivityHandler(
	metrics MetricsRecomputer,
	participants participant.Repository,
	log *logger.Logger,
	config ActivityConfig,
) *OnParticipantActivityHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.MaxAttempts == 0 {
		config = DefaultActivityConfig()
	}
	return &OnParticipantActivityHandler{
		metrics:      metrics,
		participants: participants,
		log:          log.With(logger.Component("on_participant_activity")),
		config:       config,
	}
}

// Handle implements shared.EventHandler.
func (h *OnParticipantActivityHandler) Handle(ctx context.Context, event shared.Event) error {
	switch e := event.(type) {
	case shared.AttendanceSyncedEvent:
		return h.recomputeBatch(ctx, e.BatchID)
	case shared.ParticipantScoped:
		return h.recompute(ctx, e.ParticipantRef())
	default:
		return nil
	}
}

func (h *OnParticipantActivityHandler) recomputeBatch(ctx context.Context, batchID string) error {
	ps, err := h.participants.ListByBatch(ctx, batchID)
	if err != nil {
		return err
	}
	var firstErr error
	for _, p := range ps {
		if err := h.recompute(ctx, p.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *OnParticipantActivityHandler) recompute(ctx context.Context, participantID string) error {
	if participantID == "" {
		return nil
	}
	res, err := retry.DoWithData(ctx, func(ctx context.Context) (*command.RecomputeMetricsResult, error) {
		res, err := h.metrics.RecomputeMetrics(ctx, command.RecomputeMetricsCommand{ParticipantID: participantID})
		if err != nil && (shared.IsNotFound(err) || shared.IsValidation(err)) {
			return nil, retry.Permanent(err)
		}
		return res, err
	},
		retry.WithMaxAttempts(h.config.MaxAttempts),
		retry.WithInitialDelay(h.config.InitialDelay),
	)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil
		}
		return err
	}
	if res.Changed {
		h.log.Debug("participant metrics refreshed",
			logger.ParticipantID(participantID),
			logger.Float64("final_score", res.Metrics.FinalScore),
		)
	}
	return nil
}
