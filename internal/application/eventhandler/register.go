package eventhandler

import (
	"fmt"

	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// Events that change participant metrics.
var metricEvents = []shared.EventType{
	shared.EventParticipantEnrolled,
	shared.EventParticipantBatchChanged,
	shared.EventMentorScored,
	shared.EventCheckedIn,
	shared.EventCheckedOut,
	shared.EventAutoAbsent,
	shared.EventAttendanceSaved,
	shared.EventAttendanceSync,
	shared.EventSubmissionSubmitted,
	shared.EventSubmissionScored,
}

// Events that change batch counters.
var counterEvents = []shared.EventType{
	shared.EventBatchStateChanged,
	shared.EventParticipantEnrolled,
	shared.EventParticipantBatchChanged,
	shared.EventEventLinkSaved,
	shared.EventAssignmentCreated,
	shared.EventAttendanceSync,
	shared.EventCertificateIssued,
}

// Options wires the handlers to their ports. Counters may be nil.
type Options struct {
	Metrics      MetricsRecomputer
	Participants participant.Repository
	Counters     batch.CountersCache
	Activity     ActivityConfig
	Logger       *logger.Logger
}

// Register subscribes every handler on sub.
func Register(sub shared.EventSubscriber, opts Options) error {
	activity := NewOnParticipantActivityHandler(opts.Metrics, opts.Participants, opts.Logger, opts.Activity)
	for _, t := range metricEvents {
		if err := sub.Subscribe(t, activity.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}

	if opts.Counters == nil {
		return nil
	}
	changed := NewOnBatchChangedHandler(opts.Counters, opts.Logger)
	for _, t := range counterEvents {
		if err := sub.Subscribe(t, changed.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}
