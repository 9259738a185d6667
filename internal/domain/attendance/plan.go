package attendance

import "time"

// Key identifies the attendance row of one participant in one session.
type Key struct {
	EventLinkID   string
	ParticipantID string
}

// SyncPlan is the outcome of PlanSync.
type SyncPlan struct {
	// Create holds the absent placeholder rows to insert.
	Create []*Attendance
	// Retoken holds existing rows that received a QR token.
	Retoken []*Attendance
}

// Empty reports whether the plan changes nothing.
func (p SyncPlan) Empty() bool {
	return len(p.Create) == 0 && len(p.Retoken) == 0
}

// PlanSync computes the rows needed so that every participant has exactly one
// attendance row per session of the batch. It is idempotent: running it on its
// own output yields an empty plan.
func PlanSync(batchID string, sessionIDs, participantIDs []string, existing []*Attendance, newID func() string, now time.Time) SyncPlan {
	var plan SyncPlan

	have := make(map[Key]bool, len(existing))
	for _, a := range existing {
		if a.EventLinkID != "" {
			have[Key{EventLinkID: a.EventLinkID, ParticipantID: a.ParticipantID}] = true
		}
		if a.EnsureToken() {
			a.UpdatedAt = now
			plan.Retoken = append(plan.Retoken, a)
		}
	}

	for _, sid := range sessionIDs {
		for _, pid := range participantIDs {
			k := Key{EventLinkID: sid, ParticipantID: pid}
			if have[k] {
				continue
			}
			have[k] = true
			plan.Create = append(plan.Create, NewAbsent(newID(), batchID, sid, pid, now))
		}
	}
	return plan
}
