package participant

import "github.com/solvera/ojt-core/internal/domain/shared"

// Score blend between assignments and the mentor's evaluation.
const (
	TaskWeight   = 0.80
	MentorWeight = 0.20
)

// PresenceSample is one attendance row as seen by the metrics calculation.
type PresenceSample struct {
	// Attended is true for present and late rows.
	Attended bool
}

// ScoredSubmission is one submission joined with its assignment.
type ScoredSubmission struct {
	AssignmentID      string
	AssignmentBatchID string
	MaxScore          float64
	Weight            float64
	// Score is nil when the submission has not been scored yet.
	Score *float64
}

// Metrics is the result of ComputeMetrics.
type Metrics struct {
	AttendanceRate float64 `json:"attendance_rate"`
	AverageScore   float64 `json:"average_score"`
	FinalScore     float64 `json:"final_score"`
}

// ComputeMetrics derives the attendance rate, the unweighted task average and the
// blended final score for a participant of batchID.
//
// Only the best submission per assignment counts. Submissions to other batches and
// assignments without a positive max score are ignored. The weighted task score
// falls back to the plain average when no assignment carries weight.
func ComputeMetrics(batchID string, attendance []PresenceSample, submissions []ScoredSubmission, mentorScore float64) Metrics {
	var m Metrics

	if total := len(attendance); total > 0 {
		attended := 0
		for _, a := range attendance {
			if a.Attended {
				attended++
			}
		}
		m.AttendanceRate = float64(attended) / float64(total) * 100
	}

	type best struct {
		score  float64
		max    float64
		weight float64
	}
	bestBy := make(map[string]best)
	order := make([]string, 0, len(submissions))
	for _, s := range submissions {
		if s.AssignmentBatchID != batchID || s.MaxScore <= 0 {
			continue
		}
		score := 0.0
		if s.Score != nil {
			score = *s.Score
		}
		cur, seen := bestBy[s.AssignmentID]
		if !seen {
			order = append(order, s.AssignmentID)
			bestBy[s.AssignmentID] = best{score: score, max: s.MaxScore, weight: s.Weight}
			continue
		}
		if score > cur.score {
			bestBy[s.AssignmentID] = best{score: score, max: s.MaxScore, weight: s.Weight}
		}
	}

	var normSum, weighted, weightSum float64
	for _, id := range order {
		b := bestBy[id]
		norm := b.score / b.max * 100
		normSum += norm
		weighted += norm * b.weight
		weightSum += b.weight
	}

	taskAvg := 0.0
	if len(order) > 0 {
		taskAvg = normSum / float64(len(order))
	}
	taskFinal := taskAvg
	if weightSum > 0 {
		taskFinal = weighted / weightSum
	}

	m.AverageScore = taskAvg
	m.FinalScore = shared.Round(taskFinal*TaskWeight+mentorScore*MentorWeight, 2)
	return m
}
