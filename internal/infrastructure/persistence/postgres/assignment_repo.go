package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/solvera/ojt-core/internal/domain/assignment"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AssignmentRepository implements assignment.Repository for PostgreSQL.
type AssignmentRepository struct {
	conn *Connection
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(conn *Connection) *AssignmentRepository {
	return &AssignmentRepository{conn: conn}
}

const assignmentColumns = `
	id, batch_id, event_link_id, name, description, type, deadline, max_score,
	weight, attachment_required, state, created_at, updated_at
`

// Create stores an assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *assignment.Assignment) error {
	query := `INSERT INTO assignments (` + assignmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.conn.Exec(ctx, query,
		a.ID, a.BatchID, nullable(a.EventLinkID), a.Name, a.Description, string(a.Type), a.Deadline,
		a.MaxScore, a.Weight, a.AttachmentRequired, string(a.State), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// GetByID returns an assignment.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*assignment.Assignment, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

// Update saves an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, a *assignment.Assignment) error {
	query := `
		UPDATE assignments SET
			event_link_id = $1, name = $2, description = $3, type = $4, deadline = $5,
			max_score = $6, weight = $7, attachment_required = $8, state = $9, updated_at = $10
		WHERE id = $11
	`
	result, err := r.conn.Exec(ctx, query,
		nullable(a.EventLinkID), a.Name, a.Description, string(a.Type), a.Deadline,
		a.MaxScore, a.Weight, a.AttachmentRequired, string(a.State), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrAssignmentNotFound
	}
	return nil
}

// ListByBatch returns the assignments of a batch.
func (r *AssignmentRepository) ListByBatch(ctx context.Context, batchID string) ([]*assignment.Assignment, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE batch_id = $1 ORDER BY deadline NULLS LAST, name`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []*assignment.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(row pgx.Row) (*assignment.Assignment, error) {
	var a assignment.Assignment
	var eventLinkID *string
	var typ, state string

	err := row.Scan(
		&a.ID, &a.BatchID, &eventLinkID, &a.Name, &a.Description, &typ, &a.Deadline, &a.MaxScore,
		&a.Weight, &a.AttachmentRequired, &state, &a.CreatedAt, &a.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}

	a.EventLinkID = deref(eventLinkID)
	a.Type = assignment.Type(typ)
	a.State = assignment.State(state)
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionRepository implements assignment.SubmissionRepository for PostgreSQL.
type SubmissionRepository struct {
	conn *Connection
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(conn *Connection) *SubmissionRepository {
	return &SubmissionRepository{conn: conn}
}

const submissionColumns = `
	id, assignment_id, participant_id, name, submitted_on, attachments, submission_url,
	score, reviewer_id, feedback, late, state, created_at, updated_at
`

// Create stores a submission.
func (r *SubmissionRepository) Create(ctx context.Context, s *assignment.Submission) error {
	query := `INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.conn.Exec(ctx, query,
		s.ID, s.AssignmentID, s.ParticipantID, s.Name, s.SubmittedOn, attachments(s.Attachments),
		s.SubmissionURL, s.Score, s.ReviewerID, s.Feedback, s.Late, string(s.State), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID returns a submission.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*assignment.Submission, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	return scanSubmission(row)
}

// Update saves a submission.
func (r *SubmissionRepository) Update(ctx context.Context, s *assignment.Submission) error {
	query := `
		UPDATE submissions SET
			name = $1, submitted_on = $2, attachments = $3, submission_url = $4, score = $5,
			reviewer_id = $6, feedback = $7, late = $8, state = $9, updated_at = $10
		WHERE id = $11
	`
	result, err := r.conn.Exec(ctx, query,
		s.Name, s.SubmittedOn, attachments(s.Attachments), s.SubmissionURL, s.Score,
		s.ReviewerID, s.Feedback, s.Late, string(s.State), s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrSubmissionNotFound
	}
	return nil
}

// List returns submissions newest first by submission time.
func (r *SubmissionRepository) List(ctx context.Context, f assignment.SubmissionFilter) ([]*assignment.Submission, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.AssignmentID != "" {
		args = append(args, f.AssignmentID)
		where = append(where, fmt.Sprintf("assignment_id = $%d", len(args)))
	}
	if f.ParticipantID != "" {
		args = append(args, f.ParticipantID)
		where = append(where, fmt.Sprintf("participant_id = $%d", len(args)))
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_on DESC NULLS LAST, created_at DESC"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []*assignment.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func attachments(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

func scanSubmission(row pgx.Row) (*assignment.Submission, error) {
	var s assignment.Submission
	var state string

	err := row.Scan(
		&s.ID, &s.AssignmentID, &s.ParticipantID, &s.Name, &s.SubmittedOn, &s.Attachments, &s.SubmissionURL,
		&s.Score, &s.ReviewerID, &s.Feedback, &s.Late, &state, &s.CreatedAt, &s.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	s.State = assignment.SubmissionState(state)
	return &s, nil
}
