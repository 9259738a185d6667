package eventhandler

import (
	"context"

	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON BATCH CHANGED HANDLER
// Drops cached batch counters whenever a write changes the number of
// participants, sessions, assignments, attendance rows or certificates.
// ═══════════════════════════════════════════════════════════════════════════

// OnBatchChangedHandler invalidates cached batch counters.
type OnBatchChangedHandler struct {
	cache batch.CountersCache
	log   *logger.Logger
}

// NewOnBatchChangedHandler creates the handler.
func NewOnBatchChangedHandler(cache batch.CountersCache, log *logger.Logger) *OnBatchChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnBatchChangedHandler{
		cache: cache,
		log:   log.With(logger.Component("on_batch_changed")),
	}
}

// Handle implements shared.EventHandler.
func (h *OnBatchChangedHandler) Handle(ctx context.Context, event shared.Event) error {
	for _, batchID := range batchesOf(event) {
		if batchID == "" {
			continue
		}
		if err := h.cache.Invalidate(ctx, batchID); err != nil {
			return err
		}
		h.log.Debug("batch counters invalidated",
			logger.BatchID(batchID),
			logger.String("event_type", string(event.EventType())),
		)
	}
	return nil
}

func batchesOf(event shared.Event) []string {
	switch e := event.(type) {
	case shared.BatchStateChangedEvent:
		return []string{e.AggregateID()}
	case shared.ParticipantEnrolledEvent:
		return []string{e.BatchID}
	case shared.ParticipantBatchChangedEvent:
		return []string{e.FromBatchID, e.ToBatchID}
	case shared.BatchItemEvent:
		return []string{e.BatchID}
	case shared.AttendanceSyncedEvent:
		return []string{e.BatchID}
	case shared.CertificateIssuedEvent:
		return []string{e.BatchID}
	default:
		return nil
	}
}
