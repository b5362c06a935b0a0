// Package analytics computes team health metrics from raw activity records
// and buckets them into risk assessments.
package analytics

import (
	"context"
	"fmt"
	"time"

	"yuanfang/internal/config"
	"yuanfang/internal/logging"
	"yuanfang/internal/store"
)

// Metrics is one team's health snapshot over a window.
type Metrics struct {
	TeamID                int64        `json:"team_id"`
	Window                store.Window `json:"window"`
	TaskCompletionRate    float64      `json:"task_completion_rate"`
	CollaborationScore    float64      `json:"collaboration_score"`
	KnowledgeSharingIndex float64      `json:"knowledge_sharing_index"`
	TasksCompleted        int          `json:"tasks_completed"`
	TasksOverdue          int          `json:"tasks_overdue"`
	TasksInProgress       int          `json:"tasks_in_progress"`
	TeamSize              int          `json:"team_size"`
	ComputedAt            time.Time    `json:"computed_at"`
}

// Engine computes Metrics from the entity store.
type Engine struct {
	store  store.Store
	cfg    config.AnalyticsConfig
	logger logging.Logger
	now    func() time.Time
}

// NewEngine builds an Engine. logger may be nil.
func NewEngine(st store.Store, cfg config.AnalyticsConfig, logger logging.Logger) *Engine {
	if cfg.BaselineWindows <= 0 {
		cfg.BaselineWindows = config.Default().Analytics.BaselineWindows
	}
	return &Engine{
		store:  st,
		cfg:    cfg,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// ComputeMetrics aggregates the team's activity inside window into a Metrics
// snapshot. It reads the store but never writes it.
func (e *Engine) ComputeMetrics(ctx context.Context, teamID int64, window store.Window) (Metrics, error) {
	if _, err := e.store.GetTeam(ctx, teamID); err != nil {
		return Metrics{}, err
	}
	members, err := e.store.ListTeamMembers(ctx, teamID)
	if err != nil {
		return Metrics{}, fmt.Errorf("list members: %w", err)
	}
	tasks, err := e.store.ListTasks(ctx, store.TaskFilter{TeamID: teamID, Window: &window})
	if err != nil {
		return Metrics{}, fmt.Errorf("list tasks: %w", err)
	}
	records, err := e.store.QueryActivity(ctx, teamID, window)
	if err != nil {
		return Metrics{}, fmt.Errorf("query activity: %w", err)
	}

	now := e.now()
	m := Metrics{
		TeamID:     teamID,
		Window:     window,
		TeamSize:   len(members),
		ComputedAt: now,
	}

	for _, task := range tasks {
		switch {
		case task.Status == store.TaskCompleted:
			m.TasksCompleted++
		case task.Overdue(now):
			m.TasksOverdue++
		case task.Status == store.TaskInProgress:
			m.TasksInProgress++
		}
	}
	m.TaskCompletionRate = completionRate(m.TasksCompleted, m.TasksOverdue, m.TasksInProgress)
	m.CollaborationScore = collaborationScore(records, len(members))

	baseline, err := e.sharingBaseline(ctx, teamID, window)
	if err != nil {
		return Metrics{}, err
	}
	m.KnowledgeSharingIndex = sharingIndex(countSharing(records), baseline)

	e.logger.Info("analytics: team %d window %s completion=%.2f collaboration=%.2f sharing=%.2f",
		teamID, window.Duration(), m.TaskCompletionRate, m.CollaborationScore, m.KnowledgeSharingIndex)
	return m, nil
}

// completionRate is completed / (completed + overdue + in-progress). A team
// with no tracked work is not failing, so an empty denominator scores 1.
func completionRate(completed, overdue, inProgress int) float64 {
	denom := completed + overdue + inProgress
	if denom == 0 {
		return 1.0
	}
	return float64(completed) / float64(denom)
}

// collaborationScore counts cross-member interactions (comments and joint
// completions involving more than one member) per team member, clamped to
// [0, 1].
func collaborationScore(records []store.ActivityRecord, teamSize int) float64 {
	if teamSize == 0 {
		return 0
	}
	interactions := 0
	for _, r := range records {
		switch r.Kind {
		case store.ActivityComment, store.ActivityJointCompletion:
			interactions++
		}
	}
	score := float64(interactions) / float64(teamSize)
	if score > 1 {
		score = 1
	}
	return score
}

func countSharing(records []store.ActivityRecord) int {
	n := 0
	for _, r := range records {
		switch r.Kind {
		case store.ActivityArticleAuthored, store.ActivityArticleEdited:
			n++
		}
	}
	return n
}

// sharingBaseline averages the sharing count over the preceding windows.
func (e *Engine) sharingBaseline(ctx context.Context, teamID int64, window store.Window) (float64, error) {
	total := 0
	for i := 1; i <= e.cfg.BaselineWindows; i++ {
		records, err := e.store.QueryActivity(ctx, teamID, window.Shift(i))
		if err != nil {
			return 0, fmt.Errorf("query baseline window %d: %w", i, err)
		}
		total += countSharing(records)
	}
	return float64(total) / float64(e.cfg.BaselineWindows), nil
}

// sharingIndex compares the current sharing count against the rolling
// baseline. Additive smoothing keeps a zero baseline from dividing by zero
// and damps swings on tiny counts.
func sharingIndex(raw int, baseline float64) float64 {
	const smoothing = 1.0
	return (float64(raw) + smoothing) / (baseline + smoothing)
}
