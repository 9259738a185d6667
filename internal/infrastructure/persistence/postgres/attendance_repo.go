package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// AttendanceRepository implements attendance.Repository for PostgreSQL.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

const attendanceColumns = `
	a.id, a.batch_id, a.event_link_id, a.participant_id, a.check_in, a.check_out,
	a.presence, a.method, a.duration_minutes, a.notes, a.qr_token, a.created_at, a.updated_at
`

// CreateMany inserts rows in one batch; existing (event, participant) pairs are skipped.
func (r *AttendanceRepository) CreateMany(ctx context.Context, rows []*attendance.Attendance) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO attendance (
			id, batch_id, event_link_id, participant_id, check_in, check_out,
			presence, method, duration_minutes, notes, qr_token, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT ON CONSTRAINT attendance_event_participant_unique DO NOTHING
	`

	b := &pgx.Batch{}
	for _, a := range rows {
		b.Queue(query,
			a.ID, a.BatchID, nullable(a.EventLinkID), a.ParticipantID, a.CheckIn, a.CheckOut,
			string(a.Presence), string(a.Method), a.DurationMinutes, a.Notes, a.QRToken, a.CreatedAt, a.UpdatedAt,
		)
	}

	results := r.conn.SendBatch(ctx, b)
	defer results.Close()

	created := 0
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			return created, fmt.Errorf("failed to insert attendance: %w", err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

// GetByID returns an attendance row.
func (r *AttendanceRepository) GetByID(ctx context.Context, id string) (*attendance.Attendance, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+attendanceColumns+` FROM attendance a WHERE a.id = $1`, id)
	return scanAttendance(row)
}

// GetByToken returns the row a QR token belongs to.
func (r *AttendanceRepository) GetByToken(ctx context.Context, token string) (*attendance.Attendance, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+attendanceColumns+` FROM attendance a WHERE a.qr_token = $1`, token)
	return scanAttendance(row)
}

// Update saves an attendance row.
func (r *AttendanceRepository) Update(ctx context.Context, a *attendance.Attendance) error {
	query := `
		UPDATE attendance SET
			check_in = $1, check_out = $2, presence = $3, method = $4,
			duration_minutes = $5, notes = $6, qr_token = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := r.conn.Exec(ctx, query,
		a.CheckIn, a.CheckOut, string(a.Presence), string(a.Method),
		a.DurationMinutes, a.Notes, a.QRToken, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update attendance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrAttendanceNotFound
	}
	return nil
}

// List returns attendance rows ordered by session start.
func (r *AttendanceRepository) List(ctx context.Context, opts attendance.ListOptions) ([]*attendance.Attendance, error) {
	var (
		where []string
		args  []interface{}
	)
	if opts.BatchID != "" {
		args = append(args, opts.BatchID)
		where = append(where, fmt.Sprintf("a.batch_id = $%d", len(args)))
	}
	if opts.EventLinkID != "" {
		args = append(args, opts.EventLinkID)
		where = append(where, fmt.Sprintf("a.event_link_id = $%d", len(args)))
	}
	if opts.ParticipantID != "" {
		args = append(args, opts.ParticipantID)
		where = append(where, fmt.Sprintf("a.participant_id = $%d", len(args)))
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance a
		LEFT JOIN event_links e ON e.id = a.event_link_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.date_start DESC NULLS LAST, a.created_at DESC"

	return r.query(ctx, query, args...)
}

// FindAutoAbsentCandidates returns rows without check in, not yet absent,
// whose session started at or before startedBefore.
func (r *AttendanceRepository) FindAutoAbsentCandidates(ctx context.Context, startedBefore time.Time) ([]*attendance.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance a
		JOIN event_links e ON e.id = a.event_link_id
		WHERE a.check_in IS NULL
			AND a.presence <> 'absent'
			AND e.date_start IS NOT NULL
			AND e.date_start <= $1`
	return r.query(ctx, query, startedBefore)
}

// FindAutoCheckoutCandidates returns checked-in rows without check out whose
// session ended at or before endedBefore.
func (r *AttendanceRepository) FindAutoCheckoutCandidates(ctx context.Context, endedBefore time.Time) ([]*attendance.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance a
		JOIN event_links e ON e.id = a.event_link_id
		WHERE a.check_in IS NOT NULL
			AND a.check_out IS NULL
			AND e.date_end IS NOT NULL
			AND e.date_end <= $1`
	return r.query(ctx, query, endedBefore)
}

func (r *AttendanceRepository) query(ctx context.Context, query string, args ...interface{}) ([]*attendance.Attendance, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var out []*attendance.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttendance(row pgx.Row) (*attendance.Attendance, error) {
	var a attendance.Attendance
	var eventLinkID *string
	var presence, method string

	err := row.Scan(
		&a.ID, &a.BatchID, &eventLinkID, &a.ParticipantID, &a.CheckIn, &a.CheckOut,
		&presence, &method, &a.DurationMinutes, &a.Notes, &a.QRToken, &a.CreatedAt, &a.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrAttendanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan attendance: %w", err)
	}

	a.EventLinkID = deref(eventLinkID)
	a.Presence = attendance.Presence(presence)
	a.Method = attendance.Method(method)
	return &a, nil
}
