package command

import (
	"context"
	"fmt"

	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/certificate"
	"github.com/solvera/ojt-core/internal/domain/participant"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// CertificateHandler issues completion certificates.
type CertificateHandler struct {
	deps *Deps
}

// certificateNumber renders the n-th certificate number of a batch, e.g.
// "OJT/2026/0003/C007".
func certificateNumber(b *batch.Batch, n int) string {
	return fmt.Sprintf("%s/C%03d", b.Code, n)
}

// issue creates the next certificate of the batch and completes the
// participant. The number is allocated only once the participant passed the
// eligibility check. Caller runs it in a tx.
func (h *CertificateHandler) issue(ctx context.Context, p *participant.Participant, b *batch.Batch, name, notes string) (*certificate.Certificate, certificate.Decision, error) {
	now := h.deps.Clock.Now()
	cert, decision, err := certificate.Issue(p, b, certificate.IssueParams{
		ID:    h.deps.NewID(),
		Name:  name,
		Notes: notes,
	}, now)
	if err != nil {
		return nil, decision, err
	}
	seq, err := h.deps.Certificates.NextNumber(ctx, b.ID)
	if err != nil {
		return nil, decision, err
	}
	cert.Number = certificateNumber(b, seq)
	if err := h.deps.Certificates.Create(ctx, cert); err != nil {
		return nil, decision, err
	}
	if err := p.SetState(participant.StateCompleted, now); err != nil {
		return nil, decision, err
	}
	if err := h.deps.Participants.Update(ctx, p); err != nil {
		return nil, decision, err
	}
	return cert, decision, nil
}

func (h *CertificateHandler) afterIssue(ctx context.Context, certs []*certificate.Certificate) {
	if len(certs) == 0 {
		return
	}
	events := make([]shared.Event, 0, len(certs))
	for _, c := range certs {
		events = append(events, shared.NewCertificateIssuedEvent(c.ID, c.ParticipantID, c.BatchID))
	}
	h.deps.publish(ctx, events...)
	if h.deps.Recorder != nil {
		h.deps.Recorder.CertificatesIssued(len(certs))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ISSUE CERTIFICATE
// ══════════════════════════════════════════════════════════════════════════════

// IssueCertificateCommand issues a certificate to one participant.
type IssueCertificateCommand struct {
	ParticipantID string
	Name          string
	Notes         string
}

// IssueCertificateResult contains the certificate and the eligibility decision.
type IssueCertificateResult struct {
	Certificate *certificate.Certificate
	Decision    certificate.Decision
}

// IssueCertificate executes IssueCertificateCommand. A participant not meeting
// the batch thresholds gets ErrNotEligible together with the decision.
func (h *CertificateHandler) IssueCertificate(ctx context.Context, cmd IssueCertificateCommand) (*IssueCertificateResult, error) {
	if cmd.ParticipantID == "" {
		return nil, shared.NewDomainError("certificate", "Issue", shared.ErrInvalidID, "participant_id is required")
	}

	var res IssueCertificateResult
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := h.deps.Participants.GetByID(ctx, cmd.ParticipantID)
		if err != nil {
			return err
		}
		held, err := h.deps.Certificates.FindByParticipant(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(held) > 0 {
			return shared.ErrCertificateIssued
		}
		b, err := h.deps.Batches.GetByID(ctx, p.BatchID)
		if err != nil {
			return err
		}
		cert, decision, err := h.issue(ctx, p, b, cmd.Name, cmd.Notes)
		res.Decision = decision
		if err != nil {
			return err
		}
		res.Certificate = cert
		return nil
	})
	if err != nil {
		if len(res.Decision.Reasons) > 0 {
			return &res, err
		}
		return nil, err
	}

	h.afterIssue(ctx, []*certificate.Certificate{res.Certificate})
	h.deps.Log.Info("certificate issued",
		logger.ParticipantID(res.Certificate.ParticipantID),
		logger.BatchID(res.Certificate.BatchID),
		logger.String("number", res.Certificate.Number),
	)
	return &res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ISSUE BATCH CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

// IssueBatchCertificatesCommand issues certificates to every eligible
// participant of a batch.
type IssueBatchCertificatesCommand struct {
	BatchID string
	Name    string
}

// IssueBatchCertificatesResult summarises a bulk issuance.
type IssueBatchCertificatesResult struct {
	Issued []*certificate.Certificate

	// Failed lists participants marked failed. Only a finished batch fails
	// its non-eligible participants.
	Failed []string

	// Skipped counts participants that left or already hold a certificate.
	Skipped int

	// NotEligible counts participants below the thresholds.
	NotEligible int
}

// IssueBatchCertificates executes IssueBatchCertificatesCommand.
func (h *CertificateHandler) IssueBatchCertificates(ctx context.Context, cmd IssueBatchCertificatesCommand) (*IssueBatchCertificatesResult, error) {
	if cmd.BatchID == "" {
		return nil, shared.NewDomainError("certificate", "IssueBatch", shared.ErrInvalidID, "batch_id is required")
	}
	now := h.deps.Clock.Now()

	res := &IssueBatchCertificatesResult{}
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := h.deps.Batches.GetByID(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		if !b.AcceptsCertificates() {
			return shared.ErrBatchNotCertifiable
		}
		issued, err := h.deps.Certificates.ListByBatch(ctx, b.ID)
		if err != nil {
			return err
		}
		holders := make(map[string]bool, len(issued))
		for _, c := range issued {
			holders[c.ParticipantID] = true
		}

		participants, err := h.deps.Participants.ListByBatch(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, p := range participants {
			if p.State == participant.StateLeft || holders[p.ID] {
				res.Skipped++
				continue
			}
			if !certificate.Evaluate(p, b).Eligible {
				res.NotEligible++
				if b.State != batch.StateDone || p.State == participant.StateFailed {
					continue
				}
				if err := p.SetState(participant.StateFailed, now); err != nil {
					return err
				}
				if err := h.deps.Participants.Update(ctx, p); err != nil {
					return err
				}
				res.Failed = append(res.Failed, p.ID)
				continue
			}
			cert, _, err := h.issue(ctx, p, b, cmd.Name, "")
			if err != nil {
				return fmt.Errorf("issue certificate for %s: %w", p.ID, err)
			}
			res.Issued = append(res.Issued, cert)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.afterIssue(ctx, res.Issued)
	h.deps.Log.Info("batch certificates issued",
		logger.BatchID(cmd.BatchID),
		logger.Int("issued", len(res.Issued)),
		logger.Int("failed", len(res.Failed)),
		logger.Int("skipped", res.Skipped),
	)
	return res, nil
}
