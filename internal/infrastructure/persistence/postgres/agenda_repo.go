package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/solvera/ojt-core/internal/domain/agenda"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// EventLinkRepository implements agenda.Repository for PostgreSQL.
type EventLinkRepository struct {
	conn *Connection
}

// NewEventLinkRepository creates a new EventLinkRepository.
func NewEventLinkRepository(conn *Connection) *EventLinkRepository {
	return &EventLinkRepository{conn: conn}
}

const eventLinkColumns = `
	id, batch_id, external_event_id, title, date_start, date_end, instructor_id,
	online_meeting_url, mandatory, weight, notes, created_at, updated_at
`

// Create stores an event link.
func (r *EventLinkRepository) Create(ctx context.Context, e *agenda.EventLink) error {
	query := `INSERT INTO event_links (` + eventLinkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.conn.Exec(ctx, query,
		e.ID, e.BatchID, e.ExternalEventID, e.Title, e.DateStart, e.DateEnd, e.InstructorID,
		e.OnlineMeetingURL, e.Mandatory, e.Weight, e.Notes, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event link: %w", err)
	}
	return nil
}

// GetByID returns an event link.
func (r *EventLinkRepository) GetByID(ctx context.Context, id string) (*agenda.EventLink, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+eventLinkColumns+` FROM event_links WHERE id = $1`, id)
	return scanEventLink(row)
}

// Update saves an event link.
func (r *EventLinkRepository) Update(ctx context.Context, e *agenda.EventLink) error {
	query := `
		UPDATE event_links SET
			batch_id = $1, external_event_id = $2, title = $3, date_start = $4, date_end = $5,
			instructor_id = $6, online_meeting_url = $7, mandatory = $8, weight = $9,
			notes = $10, updated_at = $11
		WHERE id = $12
	`
	result, err := r.conn.Exec(ctx, query,
		e.BatchID, e.ExternalEventID, e.Title, e.DateStart, e.DateEnd,
		e.InstructorID, e.OnlineMeetingURL, e.Mandatory, e.Weight,
		e.Notes, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrEventLinkNotFound
	}
	return nil
}

// ListByBatch returns the event links of a batch ordered by start.
func (r *EventLinkRepository) ListByBatch(ctx context.Context, batchID string) ([]*agenda.EventLink, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+eventLinkColumns+` FROM event_links WHERE batch_id = $1 ORDER BY date_start NULLS LAST, id`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event links: %w", err)
	}
	defer rows.Close()

	var out []*agenda.EventLink
	for rows.Next() {
		e, err := scanEventLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counters returns the related record counts of an event link.
func (r *EventLinkRepository) Counters(ctx context.Context, id string) (agenda.Counters, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM participants p JOIN event_links e ON e.batch_id = p.batch_id WHERE e.id = $1),
			(SELECT COUNT(*) FROM attendance WHERE event_link_id = $1),
			(SELECT COUNT(*) FROM assignments WHERE event_link_id = $1)
	`
	var c agenda.Counters
	if err := r.conn.QueryRow(ctx, query, id).Scan(&c.Participants, &c.Attendance, &c.Assignments); err != nil {
		return agenda.Counters{}, fmt.Errorf("failed to count event link records: %w", err)
	}
	return c, nil
}

func scanEventLink(row pgx.Row) (*agenda.EventLink, error) {
	var e agenda.EventLink
	err := row.Scan(
		&e.ID, &e.BatchID, &e.ExternalEventID, &e.Title, &e.DateStart, &e.DateEnd, &e.InstructorID,
		&e.OnlineMeetingURL, &e.Mandatory, &e.Weight, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrEventLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event link: %w", err)
	}
	return &e, nil
}
