package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ParticipantRepository implements participant.Repository for PostgreSQL.
type ParticipantRepository struct {
	conn *Connection
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(conn *Connection) *ParticipantRepository {
	return &ParticipantRepository{conn: conn}
}

const participantColumns = `
	id, batch_id, partner_id, applicant_id, name, attendance_rate, average_score,
	final_score, mentor_score, state, notes, portal_token, created_at, updated_at
`

// Create stores a participant.
func (r *ParticipantRepository) Create(ctx context.Context, p *participant.Participant) error {
	query := `INSERT INTO participants (` + participantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.conn.Exec(ctx, query,
		p.ID,
		p.BatchID,
		p.PartnerID,
		nullable(p.ApplicantID),
		p.Name,
		p.AttendanceRate,
		p.AverageScore,
		p.FinalScore,
		p.MentorScore,
		string(p.State),
		p.Notes,
		p.PortalToken,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) && ConstraintName(err) == "participants_batch_partner_unique" {
			return shared.ErrParticipantAlreadyExists
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

// GetByID returns a participant.
func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*participant.Participant, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)
	return scanParticipant(row)
}

// FindByBatchAndPartner returns the participant of partnerID in batchID.
func (r *ParticipantRepository) FindByBatchAndPartner(ctx context.Context, batchID, partnerID string) (*participant.Participant, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE batch_id = $1 AND partner_id = $2`,
		batchID, partnerID)
	return scanParticipant(row)
}

// Update saves a participant.
func (r *ParticipantRepository) Update(ctx context.Context, p *participant.Participant) error {
	query := `
		UPDATE participants SET
			batch_id = $1,
			partner_id = $2,
			applicant_id = $3,
			name = $4,
			attendance_rate = $5,
			average_score = $6,
			final_score = $7,
			mentor_score = $8,
			state = $9,
			notes = $10,
			updated_at = $11
		WHERE id = $12
	`
	result, err := r.conn.Exec(ctx, query,
		p.BatchID,
		p.PartnerID,
		nullable(p.ApplicantID),
		p.Name,
		p.AttendanceRate,
		p.AverageScore,
		p.FinalScore,
		p.MentorScore,
		string(p.State),
		p.Notes,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrParticipantAlreadyExists
		}
		return fmt.Errorf("failed to update participant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrParticipantNotFound
	}
	return nil
}

// ListByBatch returns every participant of a batch.
func (r *ParticipantRepository) ListByBatch(ctx context.Context, batchID string) ([]*participant.Participant, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE batch_id = $1 ORDER BY name`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return collectParticipants(rows)
}

// List returns participants newest first.
func (r *ParticipantRepository) List(ctx context.Context, opts participant.ListOptions) ([]*participant.Participant, error) {
	where, args := participantFilter(opts)
	query := `SELECT ` + participantColumns + ` FROM participants` + where + ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit, opts.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return collectParticipants(rows)
}

// Count returns the number of participants matching opts.
func (r *ParticipantRepository) Count(ctx context.Context, opts participant.ListOptions) (int, error) {
	where, args := participantFilter(opts)
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM participants`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return n, nil
}

// ListIDs returns all participant ids.
func (r *ParticipantRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT id FROM participants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list participant ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ─────────────────────────────────────────────────────────────────────────────
// Helper Methods
// ─────────────────────────────────────────────────────────────────────────────

func participantFilter(opts participant.ListOptions) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if opts.BatchID != "" {
		args = append(args, opts.BatchID)
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	if opts.PartnerID != "" {
		args = append(args, opts.PartnerID)
		where = append(where, fmt.Sprintf("partner_id = $%d", len(args)))
	}
	if opts.State != "" {
		args = append(args, string(opts.State))
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func scanParticipant(row pgx.Row) (*participant.Participant, error) {
	var p participant.Participant
	var applicantID *string
	var state string

	err := row.Scan(
		&p.ID,
		&p.BatchID,
		&p.PartnerID,
		&applicantID,
		&p.Name,
		&p.AttendanceRate,
		&p.AverageScore,
		&p.FinalScore,
		&p.MentorScore,
		&state,
		&p.Notes,
		&p.PortalToken,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}

	p.ApplicantID = deref(applicantID)
	p.State = participant.State(state)
	return &p, nil
}

func collectParticipants(rows pgx.Rows) ([]*participant.Participant, error) {
	defer rows.Close()

	var out []*participant.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
