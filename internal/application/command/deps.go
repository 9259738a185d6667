// Package command contains write operations (CQRS - Commands).
//
// Every command follows the same shape: a XCommand struct with Validate, a
// handler method that runs the write inside one transaction and a XResult.
// Domain events are published after the transaction committed.
package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/certificate"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// Recorder receives business counters. The HTTP server wires a Prometheus
// implementation; tests leave it nil.
type Recorder interface {
	CheckInRecorded(method, presence string)
	AttendanceFinalized(kind string, n int)
	CertificatesIssued(n int)
}

// Deps bundles the ports shared by all command handlers.
type Deps struct {
	Tx     shared.Transactor
	Clock  shared.Clock
	Events shared.EventPublisher
	Log    *logger.Logger

	// NewID generates aggregate ids. Defaults to random UUIDs.
	NewID func() string

	Recorder Recorder
	Policy   attendance.Policy

	Jobs         recruitment.JobRepository
	Applicants   recruitment.ApplicantRepository
	Partners     recruitment.PartnerRepository
	Batches      batch.Repository
	Participants participant.Repository
	EventLinks   agenda.Repository
	Assignments  assignment.Repository
	Submissions  assignment.SubmissionRepository
	Attendance   attendance.Repository
	Certificates certificate.Repository
}

func (d *Deps) defaults() {
	if d.Tx == nil {
		d.Tx = shared.NopTransactor{}
	}
	if d.Clock == nil {
		d.Clock = shared.SystemClock{}
	}
	if d.Events == nil {
		d.Events = shared.NopPublisher{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Policy == (attendance.Policy{}) {
		d.Policy = attendance.DefaultPolicy()
	}
}

// publish sends events that belong to an already committed write. Failures are
// logged; the write itself stands.
func (d *Deps) publish(ctx context.Context, events ...shared.Event) {
	for _, e := range events {
		if err := d.Events.Publish(ctx, e); err != nil {
			d.Log.Warn("publish event failed",
				logger.String("event_type", string(e.EventType())),
				logger.String("aggregate_id", e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// Handlers groups every command handler over one set of dependencies.
type Handlers struct {
	Batches      *BatchHandler
	Enrollment   *EnrollmentHandler
	Metrics      *MetricsHandler
	Agenda       *AgendaHandler
	Assignments  *AssignmentHandler
	Attendance   *AttendanceHandler
	Certificates *CertificateHandler
}

// NewHandlers builds all command handlers.
func NewHandlers(d Deps) *Handlers {
	d.defaults()
	deps := &d
	sync := &attendanceSync{deps: deps}
	return &Handlers{
		Batches:      &BatchHandler{deps: deps},
		Enrollment:   &EnrollmentHandler{deps: deps, sync: sync},
		Metrics:      &MetricsHandler{deps: deps},
		Agenda:       &AgendaHandler{deps: deps, sync: sync},
		Assignments:  &AssignmentHandler{deps: deps},
		Attendance:   &AttendanceHandler{deps: deps},
		Certificates: &CertificateHandler{deps: deps},
	}
}
