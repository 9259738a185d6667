package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/solvera/ojt-core/internal/domain/account"
	"github.com/solvera/ojt-core/internal/domain/certificate"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CertificateRepository implements certificate.Repository for PostgreSQL.
type CertificateRepository struct {
	conn *Connection
}

// NewCertificateRepository creates a new CertificateRepository.
func NewCertificateRepository(conn *Connection) *CertificateRepository {
	return &CertificateRepository{conn: conn}
}

const certificateColumns = `id, name, number, participant_id, batch_id, date_issued, notes, created_at`

// Create stores a certificate.
func (r *CertificateRepository) Create(ctx context.Context, c *certificate.Certificate) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO certificates (`+certificateColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.Number, c.ParticipantID, c.BatchID, c.DateIssued, c.Notes, c.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			if ConstraintName(err) == "certificates_batch_number_unique" {
				return shared.ErrCertificateNumber
			}
			return shared.ErrCertificateIssued
		}
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	return nil
}

// GetByID returns a certificate.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*certificate.Certificate, error) {
	var c certificate.Certificate
	err := r.conn.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id).Scan(
		&c.ID, &c.Name, &c.Number, &c.ParticipantID, &c.BatchID, &c.DateIssued, &c.Notes, &c.CreatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrCertificateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan certificate: %w", err)
	}
	return &c, nil
}

// FindByParticipant returns the certificates of a participant.
func (r *CertificateRepository) FindByParticipant(ctx context.Context, participantID string) ([]*certificate.Certificate, error) {
	return r.list(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE participant_id = $1 ORDER BY date_issued DESC`, participantID)
}

// ListByBatch returns the certificates of a batch.
func (r *CertificateRepository) ListByBatch(ctx context.Context, batchID string) ([]*certificate.Certificate, error) {
	return r.list(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE batch_id = $1 ORDER BY date_issued DESC`, batchID)
}

// NextNumber bumps the batch's certificate sequence. The first allocation
// starts after any certificates issued before the sequence row existed.
func (r *CertificateRepository) NextNumber(ctx context.Context, batchID string) (int, error) {
	query := `
		INSERT INTO certificate_sequences (batch_id, last_value)
		VALUES ($1, (SELECT COUNT(*) FROM certificates WHERE batch_id = $1) + 1)
		ON CONFLICT (batch_id) DO UPDATE SET last_value = certificate_sequences.last_value + 1
		RETURNING last_value
	`
	var n int
	if err := r.conn.QueryRow(ctx, query, batchID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to allocate certificate number: %w", err)
	}
	return n, nil
}

func (r *CertificateRepository) list(ctx context.Context, query string, arg string) ([]*certificate.Certificate, error) {
	rows, err := r.conn.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*certificate.Certificate, error) {
		var c certificate.Certificate
		err := row.Scan(&c.ID, &c.Name, &c.Number, &c.ParticipantID, &c.BatchID, &c.DateIssued, &c.Notes, &c.CreatedAt)
		return &c, err
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTAL USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements account.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// Create stores a portal user.
func (r *UserRepository) Create(ctx context.Context, u *account.User) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO portal_users (id, login, password_hash, partner_id, internal, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, account.NormalizeLogin(u.Login), u.PasswordHash, nullable(u.PartnerID), u.Internal, u.Active, u.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("account", "Create", shared.ErrAlreadyExists, "login already taken")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByLogin returns the user with login.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*account.User, error) {
	var u account.User
	var partnerID *string
	err := r.conn.QueryRow(ctx, `
		SELECT id, login, password_hash, partner_id, internal, active, created_at
		FROM portal_users WHERE login = $1`, account.NormalizeLogin(login),
	).Scan(&u.ID, &u.Login, &u.PasswordHash, &partnerID, &u.Internal, &u.Active, &u.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("account", "Find", shared.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.PartnerID = deref(partnerID)
	return &u, nil
}
