package analytics

import (
	"fmt"

	"yuanfang/internal/config"
)

// Severity ranks a risk finding. Higher is worse.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalJSON renders the severity name rather than its numeric rank.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Finding is one category's risk verdict.
type Finding struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Value    float64  `json:"value"`
	Detail   string   `json:"detail"`
}

// Assessment is the full risk picture for one metrics snapshot. Overall is
// the worst category severity.
type Assessment struct {
	Overall  Severity  `json:"overall"`
	Findings []Finding `json:"findings"`
}

// AssessRisk buckets each metric against its configured threshold floors.
// Pure function of its inputs: the same snapshot and thresholds always yield
// the same assessment.
func AssessRisk(m Metrics, cfg config.AnalyticsConfig) Assessment {
	findings := []Finding{
		classify("task_completion", m.TaskCompletionRate, cfg.TaskCompletion,
			fmt.Sprintf("%d completed, %d overdue, %d in progress", m.TasksCompleted, m.TasksOverdue, m.TasksInProgress)),
		classify("collaboration", m.CollaborationScore, cfg.Collaboration,
			fmt.Sprintf("team of %d", m.TeamSize)),
		classify("knowledge_sharing", m.KnowledgeSharingIndex, cfg.KnowledgeSharing,
			"relative to rolling baseline"),
	}

	overall := SeverityLow
	for _, f := range findings {
		if f.Severity > overall {
			overall = f.Severity
		}
	}
	return Assessment{Overall: overall, Findings: findings}
}

// classify maps a metric value to a severity. Thresholds are floors: below
// High is high risk, below Medium is medium risk, otherwise low.
func classify(category string, value float64, t config.MetricThresholds, detail string) Finding {
	severity := SeverityLow
	switch {
	case value < t.High:
		severity = SeverityHigh
	case value < t.Medium:
		severity = SeverityMedium
	}
	return Finding{Category: category, Severity: severity, Value: value, Detail: detail}
}
