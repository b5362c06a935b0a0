package builtin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"yuanfang/internal/analytics"
	"yuanfang/internal/config"
	"yuanfang/internal/store"
	"yuanfang/internal/tools"
)

func wideWindow() store.Window {
	return store.Window{Start: time.Now().Add(-time.Hour), End: time.Now().Add(time.Hour)}
}

func setupAnalyticsTool(t *testing.T) (*TeamAnalyticsTool, store.Store, int64) {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	team, err := s.CreateTeam(ctx, store.Team{Name: "platform"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	for _, user := range []string{"ana", "bo"} {
		if err := s.AddTeamMember(ctx, store.TeamMember{TeamID: team.ID, UserID: user}); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	cfg := config.Default().Analytics
	engine := analytics.NewEngine(s, cfg, nil)
	return NewTeamAnalyticsTool(engine, cfg), s, team.ID
}

func TestTeamAnalyticsSnapshot(t *testing.T) {
	tool, s, teamID := setupAnalyticsTool(t)
	ctx := context.Background()

	if _, err := s.CreateTask(ctx, store.Task{TeamID: teamID, Title: "done", Status: store.TaskCompleted}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	result := exec(t, tool, map[string]any{"team_id": teamID})
	if result.Data["task_completion_rate"] != 1.0 {
		t.Fatalf("completion rate = %v, want 1.0", result.Data["task_completion_rate"])
	}
	if !strings.Contains(result.Content, "completion 100%") {
		t.Fatalf("content = %q", result.Content)
	}
	if _, ok := result.Data["risk"]; ok {
		t.Fatal("risk should be absent unless requested")
	}
}

func TestTeamAnalyticsWithRisk(t *testing.T) {
	tool, s, teamID := setupAnalyticsTool(t)
	ctx := context.Background()

	// One overdue task, no collaboration: high risk everywhere.
	past := time.Now().Add(-72 * time.Hour)
	if _, err := s.CreateTask(ctx, store.Task{TeamID: teamID, Title: "late", Status: store.TaskPending, DueDate: &past}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	result := exec(t, tool, map[string]any{"team_id": teamID, "include_risk": true})
	assessment, ok := result.Data["risk"].(analytics.Assessment)
	if !ok {
		t.Fatalf("risk data missing: %+v", result.Data)
	}
	if assessment.Overall != analytics.SeverityHigh {
		t.Fatalf("overall = %v, want high", assessment.Overall)
	}
	if !strings.Contains(result.Content, "overall risk high") {
		t.Fatalf("content = %q", result.Content)
	}
}

func TestTeamAnalyticsUnknownTeam(t *testing.T) {
	tool, _, _ := setupAnalyticsTool(t)
	_, err := tool.Execute(context.Background(), tools.ToolCall{ID: "c", Arguments: map[string]any{"team_id": 9999}})
	if !errors.Is(err, store.ErrTeamNotFound) {
		t.Fatalf("err = %v, want ErrTeamNotFound", err)
	}
}
