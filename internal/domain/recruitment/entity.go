// Package recruitment models the hiring side of an OJT batch: the job opening a
// batch recruits through, applicants moving through hiring stages and the
// contacts (partners) that become participants once a contract is signed.
package recruitment

import (
	"strings"
	"time"

	"github.com/solvera/ojt-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Partner is a person known to the system: applicant, participant, mentor or instructor.
type Partner struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Job is a job opening. Every OJT batch owns exactly one.
type Job struct {
	ID string

	// Name, Description and NoOfRecruitment mirror the owning batch.
	Name            string
	Description     string
	NoOfRecruitment int

	// IsPublished exposes the job on the careers site.
	IsPublished bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stage is a hiring pipeline stage.
type Stage struct {
	ID       string
	Name     string
	Sequence int
}

// Applicant is a candidate applying to a job.
type Applicant struct {
	ID        string
	Name      string
	JobID     string
	PartnerID string
	StageID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HIRING STAGE DETECTION
// ══════════════════════════════════════════════════════════════════════════════

// IsContractSignedStage reports whether a stage name means the contract was signed.
// Names are matched case-insensitively in English and Indonesian; anything that
// mentions a proposal is never a signed contract.
func IsContractSignedStage(stageName string) bool {
	name := strings.ToLower(strings.TrimSpace(stageName))
	if name == "" {
		return false
	}
	if strings.Contains(name, "proposal") {
		return false
	}
	if strings.Contains(name, "kontrak") &&
		(strings.Contains(name, "ditandatangani") || strings.Contains(name, "ditandatangan")) {
		return true
	}
	return strings.Contains(name, "contract") && strings.Contains(name, "signed")
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB WRITE GUARD
// ══════════════════════════════════════════════════════════════════════════════

// JobChange is a partial update of a Job. Nil fields are left untouched.
type JobChange struct {
	Name            *string
	Description     *string
	NoOfRecruitment *int
	IsPublished     *bool
}

// TouchesMirroredFields reports whether the change edits a field owned by the batch.
func (c JobChange) TouchesMirroredFields() bool {
	return c.Name != nil || c.Description != nil || c.NoOfRecruitment != nil
}

// LinkedBatch is the minimal view of a batch that the job guard needs.
type LinkedBatch struct {
	ID            string
	InRecruitment bool
}

// GuardJobWrite rejects edits a job may not receive directly.
// Writes coming from batch synchronisation bypass the guard.
func GuardJobWrite(change JobChange, linked []LinkedBatch, fromBatchSync bool) error {
	if fromBatchSync || len(linked) == 0 {
		return nil
	}
	if change.TouchesMirroredFields() {
		return shared.ErrJobEditViaBatch
	}
	if change.IsPublished != nil && *change.IsPublished {
		for _, b := range linked {
			if !b.InRecruitment {
				return shared.ErrJobPublishBlocked
			}
		}
	}
	return nil
}

// Apply writes the change onto the job.
func (j *Job) Apply(change JobChange, now time.Time) {
	if change.Name != nil {
		j.Name = *change.Name
	}
	if change.Description != nil {
		j.Description = *change.Description
	}
	if change.NoOfRecruitment != nil {
		j.NoOfRecruitment = *change.NoOfRecruitment
	}
	if change.IsPublished != nil {
		j.IsPublished = *change.IsPublished
	}
	j.UpdatedAt = now
}
