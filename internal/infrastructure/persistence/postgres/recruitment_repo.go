package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/solvera/ojt-core/internal/domain/recruitment"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// JobRepository implements recruitment.JobRepository for PostgreSQL.
type JobRepository struct {
	conn *Connection
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(conn *Connection) *JobRepository {
	return &JobRepository{conn: conn}
}

// Create stores a job opening.
func (r *JobRepository) Create(ctx context.Context, j *recruitment.Job) error {
	query := `
		INSERT INTO jobs (id, name, description, no_of_recruitment, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.conn.Exec(ctx, query,
		j.ID, j.Name, j.Description, j.NoOfRecruitment, j.IsPublished, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID returns a job.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*recruitment.Job, error) {
	query := `
		SELECT id, name, description, no_of_recruitment, is_published, created_at, updated_at
		FROM jobs WHERE id = $1
	`
	var j recruitment.Job
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.Name, &j.Description, &j.NoOfRecruitment, &j.IsPublished, &j.CreatedAt, &j.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return &j, nil
}

// Update saves a job.
func (r *JobRepository) Update(ctx context.Context, j *recruitment.Job) error {
	query := `
		UPDATE jobs SET name = $1, description = $2, no_of_recruitment = $3,
			is_published = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := r.conn.Exec(ctx, query,
		j.Name, j.Description, j.NoOfRecruitment, j.IsPublished, j.UpdatedAt, j.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrJobNotFound
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICANT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ApplicantRepository implements recruitment.ApplicantRepository for PostgreSQL.
type ApplicantRepository struct {
	conn *Connection
}

// NewApplicantRepository creates a new ApplicantRepository.
func NewApplicantRepository(conn *Connection) *ApplicantRepository {
	return &ApplicantRepository{conn: conn}
}

// Create stores an applicant.
func (r *ApplicantRepository) Create(ctx context.Context, a *recruitment.Applicant) error {
	query := `
		INSERT INTO applicants (id, name, job_id, partner_id, stage_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.conn.Exec(ctx, query,
		a.ID, a.Name, a.JobID, nullable(a.PartnerID), nullable(a.StageID), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create applicant: %w", err)
	}
	return nil
}

// GetByID returns an applicant.
func (r *ApplicantRepository) GetByID(ctx context.Context, id string) (*recruitment.Applicant, error) {
	query := `
		SELECT id, name, job_id, partner_id, stage_id, created_at, updated_at
		FROM applicants WHERE id = $1
	`
	var a recruitment.Applicant
	var partnerID, stageID *string
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.JobID, &partnerID, &stageID, &a.CreatedAt, &a.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrApplicantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan applicant: %w", err)
	}
	a.PartnerID = deref(partnerID)
	a.StageID = deref(stageID)
	return &a, nil
}

// Update saves an applicant.
func (r *ApplicantRepository) Update(ctx context.Context, a *recruitment.Applicant) error {
	query := `
		UPDATE applicants SET name = $1, job_id = $2, partner_id = $3, stage_id = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := r.conn.Exec(ctx, query,
		a.Name, a.JobID, nullable(a.PartnerID), nullable(a.StageID), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update applicant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrApplicantNotFound
	}
	return nil
}

// GetStage returns a hiring stage.
func (r *ApplicantRepository) GetStage(ctx context.Context, id string) (*recruitment.Stage, error) {
	var s recruitment.Stage
	err := r.conn.QueryRow(ctx, `SELECT id, name, sequence FROM recruitment_stages WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Sequence)
	if IsNoRows(err) {
		return nil, shared.ErrStageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan stage: %w", err)
	}
	return &s, nil
}

// CreateStage stores a hiring stage.
func (r *ApplicantRepository) CreateStage(ctx context.Context, s *recruitment.Stage) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO recruitment_stages (id, name, sequence) VALUES ($1, $2, $3)`,
		s.ID, s.Name, s.Sequence)
	if err != nil {
		return fmt.Errorf("failed to create stage: %w", err)
	}
	return nil
}

// ListStages returns stages by sequence.
func (r *ApplicantRepository) ListStages(ctx context.Context) ([]*recruitment.Stage, error) {
	rows, err := r.conn.Query(ctx, `SELECT id, name, sequence FROM recruitment_stages ORDER BY sequence, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*recruitment.Stage, error) {
		var s recruitment.Stage
		err := row.Scan(&s.ID, &s.Name, &s.Sequence)
		return &s, err
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTNER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PartnerRepository implements recruitment.PartnerRepository for PostgreSQL.
type PartnerRepository struct {
	conn *Connection
}

// NewPartnerRepository creates a new PartnerRepository.
func NewPartnerRepository(conn *Connection) *PartnerRepository {
	return &PartnerRepository{conn: conn}
}

// Create stores a partner.
func (r *PartnerRepository) Create(ctx context.Context, p *recruitment.Partner) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO partners (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.Email, p.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("partner", "Create", shared.ErrAlreadyExists, "partner already exists")
		}
		return fmt.Errorf("failed to create partner: %w", err)
	}
	return nil
}

// GetByID returns a partner.
func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*recruitment.Partner, error) {
	var p recruitment.Partner
	err := r.conn.QueryRow(ctx, `SELECT id, name, email, created_at FROM partners WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrPartnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan partner: %w", err)
	}
	return &p, nil
}

// GetByIDs returns the partners found among ids, keyed by id.
func (r *PartnerRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*recruitment.Partner, error) {
	out := make(map[string]*recruitment.Partner, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn.Query(ctx, `SELECT id, name, email, created_at FROM partners WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query partners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p recruitment.Partner
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}
