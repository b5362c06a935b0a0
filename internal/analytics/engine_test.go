package analytics

import (
	"context"
	"testing"
	"time"

	"yuanfang/internal/config"
	"yuanfang/internal/store"
)

func testWindow() store.Window {
	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	return store.Window{Start: start, End: start.AddDate(0, 0, 7)}
}

func seedTeam(t *testing.T, s store.Store) int64 {
	t.Helper()
	ctx := context.Background()
	team, err := s.CreateTeam(ctx, store.Team{Name: "platform"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	for _, user := range []string{"ana", "bo", "cy", "di"} {
		if err := s.AddTeamMember(ctx, store.TeamMember{TeamID: team.ID, UserID: user}); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return team.ID
}

func TestComputeMetrics(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	teamID := seedTeam(t, s)
	engine := NewEngine(s, config.Default().Analytics, nil)

	// The store stamps CreatedAt with the wall clock, so query a window
	// around now. 3 completed, 1 overdue, 1 in progress.
	wide := store.Window{Start: time.Now().Add(-time.Hour), End: time.Now().Add(time.Hour)}
	overdueAt := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 3; i++ {
		if _, err := s.CreateTask(ctx, store.Task{TeamID: teamID, Title: "done", Status: store.TaskCompleted}); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}
	if _, err := s.CreateTask(ctx, store.Task{TeamID: teamID, Title: "late", Status: store.TaskPending, DueDate: &overdueAt}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := s.CreateTask(ctx, store.Task{TeamID: teamID, Title: "active", Status: store.TaskInProgress}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	// Cross-member interactions: 2 comments for a team of 4.
	for _, r := range []store.ActivityRecord{
		{TeamID: teamID, UserID: "ana", Kind: store.ActivityComment, CreatedAt: wide.Start.Add(time.Minute)},
		{TeamID: teamID, UserID: "bo", Kind: store.ActivityComment, CreatedAt: wide.Start.Add(2 * time.Minute)},
		{TeamID: teamID, UserID: "cy", Kind: store.ActivityTaskCompleted, CreatedAt: wide.Start.Add(3 * time.Minute)},
		{TeamID: teamID, UserID: "ana", Kind: store.ActivityArticleAuthored, CreatedAt: wide.Start.Add(4 * time.Minute)},
	} {
		if err := s.RecordActivity(ctx, r); err != nil {
			t.Fatalf("record activity: %v", err)
		}
	}

	m, err := engine.ComputeMetrics(ctx, teamID, wide)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if m.TasksCompleted != 3 || m.TasksOverdue != 1 || m.TasksInProgress != 1 {
		t.Fatalf("task counts = %d/%d/%d, want 3/1/1", m.TasksCompleted, m.TasksOverdue, m.TasksInProgress)
	}
	if got, want := m.TaskCompletionRate, 3.0/5.0; got != want {
		t.Fatalf("completion rate = %v, want %v", got, want)
	}
	if got, want := m.CollaborationScore, 2.0/4.0; got != want {
		t.Fatalf("collaboration score = %v, want %v", got, want)
	}
	// 1 sharing event against an empty baseline: (1+1)/(0+1) = 2.
	if got, want := m.KnowledgeSharingIndex, 2.0; got != want {
		t.Fatalf("sharing index = %v, want %v", got, want)
	}
	if m.TeamSize != 4 {
		t.Fatalf("team size = %d, want 4", m.TeamSize)
	}
}

func TestComputeMetricsEmptyTeam(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	team, err := s.CreateTeam(ctx, store.Team{Name: "quiet"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	engine := NewEngine(s, config.Default().Analytics, nil)

	m, err := engine.ComputeMetrics(ctx, team.ID, testWindow())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// No tracked work is not a failing team.
	if m.TaskCompletionRate != 1.0 {
		t.Fatalf("empty completion rate = %v, want 1.0", m.TaskCompletionRate)
	}
	if m.CollaborationScore != 0 {
		t.Fatalf("empty collaboration score = %v, want 0", m.CollaborationScore)
	}
}

func TestComputeMetricsUnknownTeam(t *testing.T) {
	engine := NewEngine(store.NewMemoryStore(), config.Default().Analytics, nil)
	if _, err := engine.ComputeMetrics(context.Background(), 42, testWindow()); err != store.ErrTeamNotFound {
		t.Fatalf("err = %v, want ErrTeamNotFound", err)
	}
}

func TestSharingIndexAgainstBaseline(t *testing.T) {
	// A window with the same sharing volume as its baseline sits at 1.0;
	// more sharing pushes above, less pulls below.
	if got := sharingIndex(3, 3); got != 1.0 {
		t.Fatalf("steady index = %v, want 1.0", got)
	}
	if got := sharingIndex(6, 3); got <= 1.0 {
		t.Fatalf("rising index = %v, want > 1.0", got)
	}
	if got := sharingIndex(0, 3); got >= 1.0 {
		t.Fatalf("falling index = %v, want < 1.0", got)
	}
	if got := sharingIndex(0, 0); got != 1.0 {
		t.Fatalf("empty index = %v, want 1.0", got)
	}
}

func TestCollaborationScoreClamped(t *testing.T) {
	records := make([]store.ActivityRecord, 20)
	for i := range records {
		records[i] = store.ActivityRecord{Kind: store.ActivityComment}
	}
	if got := collaborationScore(records, 2); got != 1.0 {
		t.Fatalf("score = %v, want clamped 1.0", got)
	}
	if got := collaborationScore(nil, 0); got != 0 {
		t.Fatalf("zero-member score = %v, want 0", got)
	}
}
