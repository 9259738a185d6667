package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BATCH REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BatchRepository implements batch.Repository for PostgreSQL.
type BatchRepository struct {
	conn *Connection
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(conn *Connection) *BatchRepository {
	return &BatchRepository{conn: conn}
}

const batchColumns = `
	id, code, name, job_id, department_id, mentor_ids, capacity, description,
	start_date, end_date, mode, attendance_threshold, score_threshold,
	is_published, state, created_at, updated_at
`

// Create stores a new batch.
func (r *BatchRepository) Create(ctx context.Context, b *batch.Batch) error {
	query := `INSERT INTO batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.conn.Exec(ctx, query,
		b.ID,
		b.Code,
		b.Name,
		nullable(b.JobID),
		b.DepartmentID,
		mentorIDs(b.MentorIDs),
		b.Capacity,
		b.Description,
		b.StartDate,
		b.EndDate,
		string(b.Mode),
		b.AttendanceThreshold,
		b.ScoreThreshold,
		b.IsPublished,
		string(b.State),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return mapBatchError(err, "create")
	}
	return nil
}

// GetByID returns a batch.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*batch.Batch, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id)
	return scanBatch(row)
}

// FindByJobID returns the batches linked to a job.
func (r *BatchRepository) FindByJobID(ctx context.Context, jobID string) ([]*batch.Batch, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+batchColumns+` FROM batches WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches by job: %w", err)
	}
	return collectBatches(rows)
}

// Update saves a batch.
func (r *BatchRepository) Update(ctx context.Context, b *batch.Batch) error {
	query := `
		UPDATE batches SET
			name = $1,
			job_id = $2,
			department_id = $3,
			mentor_ids = $4,
			capacity = $5,
			description = $6,
			start_date = $7,
			end_date = $8,
			mode = $9,
			attendance_threshold = $10,
			score_threshold = $11,
			is_published = $12,
			state = $13,
			updated_at = $14
		WHERE id = $15
	`
	result, err := r.conn.Exec(ctx, query,
		b.Name,
		nullable(b.JobID),
		b.DepartmentID,
		mentorIDs(b.MentorIDs),
		b.Capacity,
		b.Description,
		b.StartDate,
		b.EndDate,
		string(b.Mode),
		b.AttendanceThreshold,
		b.ScoreThreshold,
		b.IsPublished,
		string(b.State),
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return mapBatchError(err, "update")
	}
	if result.RowsAffected() == 0 {
		return shared.ErrBatchNotFound
	}
	return nil
}

// List returns batches ordered by start date descending.
func (r *BatchRepository) List(ctx context.Context, opts batch.ListOptions) ([]*batch.Batch, error) {
	var (
		where []string
		args  []interface{}
	)
	if opts.State != "" {
		args = append(args, string(opts.State))
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}
	if s := strings.TrimSpace(opts.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + batchColumns + ` FROM batches`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date DESC, name"
	if opts.Limit > 0 {
		args = append(args, opts.Limit, opts.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return collectBatches(rows)
}

// NextCode allocates the next sequence code for year.
func (r *BatchRepository) NextCode(ctx context.Context, year int) (string, error) {
	query := `
		INSERT INTO batch_sequences (year, last_value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = batch_sequences.last_value + 1
		RETURNING last_value
	`
	var n int
	if err := r.conn.QueryRow(ctx, query, year).Scan(&n); err != nil {
		return "", fmt.Errorf("failed to allocate batch code: %w", err)
	}
	return batch.FormatCode(year, n), nil
}

// Counters returns the related record counts of a batch.
func (r *BatchRepository) Counters(ctx context.Context, id string) (batch.Counters, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM participants WHERE batch_id = $1),
			(SELECT COUNT(*) FROM event_links WHERE batch_id = $1),
			(SELECT COUNT(*) FROM assignments WHERE batch_id = $1),
			(SELECT COUNT(*) FROM attendance WHERE batch_id = $1),
			(SELECT COUNT(*) FROM certificates WHERE batch_id = $1)
	`
	var c batch.Counters
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&c.Participants, &c.Events, &c.Assignments, &c.Attendance, &c.Certificates,
	)
	if err != nil {
		return batch.Counters{}, fmt.Errorf("failed to count batch records: %w", err)
	}
	return c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helper Methods
// ─────────────────────────────────────────────────────────────────────────────

func mapBatchError(err error, op string) error {
	if IsUniqueViolation(err) {
		switch ConstraintName(err) {
		case "batches_job_unique":
			return shared.ErrJobAlreadyLinked
		case "batches_name_unique":
			return shared.ErrBatchNameTaken
		}
		return shared.WrapError("batch", op, shared.ErrAlreadyExists, "batch already exists", err)
	}
	return fmt.Errorf("failed to %s batch: %w", op, err)
}

func mentorIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func scanBatch(row pgx.Row) (*batch.Batch, error) {
	var b batch.Batch
	var jobID *string
	var mode, state string

	err := row.Scan(
		&b.ID,
		&b.Code,
		&b.Name,
		&jobID,
		&b.DepartmentID,
		&b.MentorIDs,
		&b.Capacity,
		&b.Description,
		&b.StartDate,
		&b.EndDate,
		&mode,
		&b.AttendanceThreshold,
		&b.ScoreThreshold,
		&b.IsPublished,
		&state,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}

	b.JobID = deref(jobID)
	b.Mode = batch.Mode(mode)
	b.State = batch.State(state)
	return &b, nil
}

func collectBatches(rows pgx.Rows) ([]*batch.Batch, error) {
	defer rows.Close()

	var out []*batch.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
