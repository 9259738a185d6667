// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/solvera/ojt-core/internal/domain/account"
	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/certificate"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

// PortalPageSize is the pager step of the portal participant list.
const PortalPageSize = 20

// Deps bundles the read ports.
type Deps struct {
	Clock shared.Clock
	Log   *logger.Logger

	// Counters is optional; without it counters are read from the repository.
	Counters batch.CountersCache

	Batches      batch.Repository
	Participants participant.Repository
	EventLinks   agenda.Repository
	Assignments  assignment.Repository
	Submissions  assignment.SubmissionRepository
	Attendance   attendance.Repository
	Certificates certificate.Repository
}

// Queries serves every read operation.
type Queries struct {
	deps Deps
}

// New creates Queries.
func New(d Deps) *Queries {
	if d.Clock == nil {
		d.Clock = shared.SystemClock{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Queries{deps: d}
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCHES
// ══════════════════════════════════════════════════════════════════════════════

// BatchOverview is a batch with its related record counts and progress.
type BatchOverview struct {
	Batch    *batch.Batch   `json:"batch"`
	Counters batch.Counters `json:"counters"`
	Progress float64        `json:"progress"`
}

// GetBatchOverview returns the overview of one batch.
func (q *Queries) GetBatchOverview(ctx context.Context, batchID string) (*BatchOverview, error) {
	b, err := q.deps.Batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	counters, err := q.counters(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return &BatchOverview{
		Batch:    b,
		Counters: counters,
		Progress: b.ProgressRatio(timeutil.DateOf(q.deps.Clock.Now())),
	}, nil
}

// counters reads through the cache. Cache failures fall back to the repository.
func (q *Queries) counters(ctx context.Context, batchID string) (batch.Counters, error) {
	if q.deps.Counters != nil {
		c, ok, err := q.deps.Counters.Get(ctx, batchID)
		if err != nil {
			q.deps.Log.Warn("counters cache read failed", logger.BatchID(batchID), logger.Err(err))
		} else if ok {
			return c, nil
		}
	}

	c, err := q.deps.Batches.Counters(ctx, batchID)
	if err != nil {
		return batch.Counters{}, fmt.Errorf("batch counters: %w", err)
	}
	if q.deps.Counters != nil {
		if err := q.deps.Counters.Set(ctx, batchID, c); err != nil {
			q.deps.Log.Warn("counters cache write failed", logger.BatchID(batchID), logger.Err(err))
		}
	}
	return c, nil
}

// ListBatchesQuery filters the batch list.
type ListBatchesQuery struct {
	State  batch.State
	Search string
	shared.Pagination
}

// ListBatches returns one page of batches, latest start first.
func (q *Queries) ListBatches(ctx context.Context, qry ListBatchesQuery) ([]*batch.Batch, error) {
	return q.deps.Batches.List(ctx, batch.ListOptions{
		State:  qry.State,
		Search: qry.Search,
		Limit:  qry.Limit(),
		Offset: qry.Offset(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANTS
// ══════════════════════════════════════════════════════════════════════════════

// ParticipantView is a participant with its certificate eligibility.
type ParticipantView struct {
	Participant  *participant.Participant   `json:"participant"`
	Eligibility  certificate.Decision       `json:"eligibility"`
	Certificates []*certificate.Certificate `json:"certificates"`
}

// GetParticipant returns a participant with its eligibility decision.
func (q *Queries) GetParticipant(ctx context.Context, id string) (*ParticipantView, error) {
	p, err := q.deps.Participants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := q.deps.Batches.GetByID(ctx, p.BatchID)
	if err != nil {
		return nil, err
	}
	certs, err := q.deps.Certificates.FindByParticipant(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &ParticipantView{
		Participant:  p,
		Eligibility:  certificate.Evaluate(p, b),
		Certificates: certs,
	}, nil
}

// ListParticipants returns the participants of a batch.
func (q *Queries) ListParticipants(ctx context.Context, batchID string) ([]*participant.Participant, error) {
	if _, err := q.deps.Batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return q.deps.Participants.ListByBatch(ctx, batchID)
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTAL
// ══════════════════════════════════════════════════════════════════════════════

// PortalPage is one page of the portal participant list.
type PortalPage struct {
	Participants []*participant.Participant
	Page         int
	TotalPages   int
	Total        int
}

// HasPrev reports whether a previous page exists.
func (p PortalPage) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p PortalPage) HasNext() bool { return p.Page < p.TotalPages }

// PortalDashboard lists the participant records of the viewer's contact,
// newest first.
func (q *Queries) PortalDashboard(ctx context.Context, viewer *account.User, page int) (*PortalPage, error) {
	if viewer == nil {
		return nil, shared.ErrUnauthorized
	}
	opts := participant.ListOptions{PartnerID: viewer.PartnerID}
	total, err := q.deps.Participants.Count(ctx, opts)
	if err != nil {
		return nil, err
	}

	pg := shared.NewPagination(page, PortalPageSize)
	totalPages := pg.TotalPages(total)
	if totalPages > 0 && pg.Page > totalPages {
		pg.Page = totalPages
	}
	opts.Limit = pg.Limit()
	opts.Offset = pg.Offset()

	items, err := q.deps.Participants.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &PortalPage{
		Participants: items,
		Page:         pg.Page,
		TotalPages:   totalPages,
		Total:        total,
	}, nil
}

// ParticipantDetail is the portal detail page of a participant.
type ParticipantDetail struct {
	Participant  *participant.Participant
	Batch        *batch.Batch
	Submissions  []*assignment.Submission
	Attendance   []*attendance.Attendance
	Certificates []*certificate.Certificate
}

// PortalParticipantDetail returns a participant record. Portal users only see
// their own records; anything else reads as not found.
func (q *Queries) PortalParticipantDetail(ctx context.Context, viewer *account.User, id string) (*ParticipantDetail, error) {
	if viewer == nil {
		return nil, shared.ErrUnauthorized
	}
	p, err := q.deps.Participants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.CanView(p.PartnerID) {
		return nil, shared.ErrParticipantNotFound
	}

	b, err := q.deps.Batches.GetByID(ctx, p.BatchID)
	if err != nil {
		return nil, err
	}
	subs, err := q.deps.Submissions.List(ctx, assignment.SubmissionFilter{ParticipantID: p.ID})
	if err != nil {
		return nil, err
	}
	rows, err := q.deps.Attendance.List(ctx, attendance.ListOptions{ParticipantID: p.ID})
	if err != nil {
		return nil, err
	}
	certs, err := q.deps.Certificates.FindByParticipant(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &ParticipantDetail{
		Participant:  p,
		Batch:        b,
		Submissions:  subs,
		Attendance:   rows,
		Certificates: certs,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

// ParticipantScore is the best score of one participant for an assignment.
type ParticipantScore struct {
	ParticipantID string   `json:"participant_id"`
	Name          string   `json:"name"`
	Score         *float64 `json:"score"`
	Late          bool     `json:"late"`
}

// AssignmentOverview is an assignment with its statistics.
type AssignmentOverview struct {
	Assignment *assignment.Assignment `json:"assignment"`
	Stats      assignment.Stats       `json:"stats"`
	Scores     []ParticipantScore     `json:"scores"`
}

// AssignmentOverview returns assignment statistics and the best score per
// participant of the batch.
func (q *Queries) AssignmentOverview(ctx context.Context, assignmentID string) (*AssignmentOverview, error) {
	a, err := q.deps.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	subs, err := q.deps.Submissions.List(ctx, assignment.SubmissionFilter{AssignmentID: a.ID})
	if err != nil {
		return nil, err
	}
	participants, err := q.deps.Participants.ListByBatch(ctx, a.BatchID)
	if err != nil {
		return nil, err
	}

	best := make(map[string]*assignment.Submission, len(subs))
	for _, s := range subs {
		cur, ok := best[s.ParticipantID]
		if !ok || scoreOf(s) > scoreOf(cur) {
			best[s.ParticipantID] = s
		}
	}

	scores := make([]ParticipantScore, 0, len(participants))
	for _, p := range participants {
		ps := ParticipantScore{ParticipantID: p.ID, Name: p.Name}
		if s, ok := best[p.ID]; ok {
			ps.Score = s.Score
			ps.Late = s.Late
		}
		scores = append(scores, ps)
	}

	return &AssignmentOverview{
		Assignment: a,
		Stats:      a.ComputeStats(subs, len(participants)),
		Scores:     scores,
	}, nil
}

func scoreOf(s *assignment.Submission) float64 {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceLinks resolves a token into its row, session and public links.
type AttendanceLinks struct {
	Attendance *attendance.Attendance
	Session    attendance.Session

	// QRURL is the absolute check-in URL encoded into the printed QR code.
	QRURL string

	// JoinURL is the absolute auto check-in link for online sessions.
	JoinURL string

	// MeetingURL is the normalized meeting URL, empty when none is set.
	MeetingURL string
}

// AttendanceByToken resolves an attendance token against baseURL.
func (q *Queries) AttendanceByToken(ctx context.Context, token, baseURL string) (*AttendanceLinks, error) {
	if token == "" {
		return nil, shared.ErrAttendanceNotFound
	}
	a, err := q.deps.Attendance.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	links := &AttendanceLinks{
		Attendance: a,
		Session:    attendance.Session{BatchID: a.BatchID},
		QRURL:      a.QRURL(baseURL),
		JoinURL:    a.JoinURL(baseURL),
	}
	if a.EventLinkID != "" {
		link, err := q.deps.EventLinks.GetByID(ctx, a.EventLinkID)
		if err != nil && !shared.IsNotFound(err) {
			return nil, err
		}
		if link != nil {
			links.Session = link.Session()
			links.MeetingURL = attendance.NormalizeMeetingURL(link.OnlineMeetingURL)
		}
	}
	return links, nil
}

// ListAttendance returns the attendance rows of a session.
func (q *Queries) ListAttendance(ctx context.Context, opts attendance.ListOptions) ([]*attendance.Attendance, error) {
	return q.deps.Attendance.List(ctx, opts)
}

// ListEventLinks returns the sessions of a batch in start order.
func (q *Queries) ListEventLinks(ctx context.Context, batchID string) ([]*agenda.EventLink, error) {
	return q.deps.EventLinks.ListByBatch(ctx, batchID)
}
