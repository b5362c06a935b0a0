package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestTaskLifecycle(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			task, err := s.CreateTask(ctx, Task{Title: "write report", Priority: 4})
			if err != nil {
				t.Fatalf("create task: %v", err)
			}
			if task.ID == 0 {
				t.Fatal("expected assigned ID")
			}
			if task.Status != TaskPending {
				t.Fatalf("default status = %q, want pending", task.Status)
			}

			task.Status = TaskInProgress
			task.Assignee = "ana"
			updated, err := s.UpdateTask(ctx, task)
			if err != nil {
				t.Fatalf("update task: %v", err)
			}
			if updated.Status != TaskInProgress || updated.Assignee != "ana" {
				t.Fatalf("update not applied: %+v", updated)
			}

			got, err := s.GetTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("get task: %v", err)
			}
			if got.Status != TaskInProgress {
				t.Fatalf("persisted status = %q", got.Status)
			}

			if _, err := s.GetTask(ctx, 9999); err != ErrTaskNotFound {
				t.Fatalf("missing task err = %v, want ErrTaskNotFound", err)
			}
			if _, err := s.UpdateTask(ctx, Task{ID: 9999, Title: "ghost", Status: TaskPending}); err != ErrTaskNotFound {
				t.Fatalf("update missing task err = %v, want ErrTaskNotFound", err)
			}
		})
	}
}

func TestListTasksFiltering(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			mk := func(teamID int64, status TaskStatus, assignee string, priority int) Task {
				task, err := s.CreateTask(ctx, Task{
					TeamID: teamID, Title: "t", Status: status, Assignee: assignee, Priority: priority,
				})
				if err != nil {
					t.Fatalf("create task: %v", err)
				}
				return task
			}
			mk(1, TaskPending, "ana", 2)
			mk(1, TaskCompleted, "ana", 5)
			mk(1, TaskPending, "bo", 3)
			mk(2, TaskPending, "ana", 1)

			got, err := s.ListTasks(ctx, TaskFilter{TeamID: 1, Assignee: "ana"})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("team 1 ana tasks = %d, want 2", len(got))
			}
			if got[0].Priority < got[1].Priority {
				t.Fatal("expected descending priority order")
			}

			got, err = s.ListTasks(ctx, TaskFilter{Status: TaskCompleted})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("completed tasks = %d, want 1", len(got))
			}
		})
	}
}

func TestTaskActivityTrail(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			task, err := s.CreateTask(ctx, Task{Title: "trail"})
			if err != nil {
				t.Fatalf("create task: %v", err)
			}
			for i, action := range []string{"created", "assigned", "completed"} {
				err := s.AddTaskActivity(ctx, TaskActivity{
					TaskID:    task.ID,
					Action:    action,
					CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
				})
				if err != nil {
					t.Fatalf("add activity: %v", err)
				}
			}
			trail, err := s.ListTaskActivity(ctx, task.ID)
			if err != nil {
				t.Fatalf("list activity: %v", err)
			}
			if len(trail) != 3 {
				t.Fatalf("trail length = %d, want 3", len(trail))
			}
			if trail[0].Action != "created" || trail[2].Action != "completed" {
				t.Fatalf("trail out of order: %+v", trail)
			}
		})
	}
}

func TestTeamMembership(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			team, err := s.CreateTeam(ctx, Team{Name: "platform"})
			if err != nil {
				t.Fatalf("create team: %v", err)
			}
			if err := s.AddTeamMember(ctx, TeamMember{TeamID: team.ID, UserID: "ana"}); err != nil {
				t.Fatalf("add member: %v", err)
			}
			if err := s.AddTeamMember(ctx, TeamMember{TeamID: team.ID, UserID: "bo", Role: "lead"}); err != nil {
				t.Fatalf("add member: %v", err)
			}

			members, err := s.ListTeamMembers(ctx, team.ID)
			if err != nil {
				t.Fatalf("list members: %v", err)
			}
			if len(members) != 2 {
				t.Fatalf("members = %d, want 2", len(members))
			}
			if members[0].Role != "member" {
				t.Fatalf("default role = %q, want member", members[0].Role)
			}

			if err := s.AddTeamMember(ctx, TeamMember{TeamID: 9999, UserID: "ana"}); err != ErrTeamNotFound {
				t.Fatalf("add member to missing team err = %v, want ErrTeamNotFound", err)
			}

			if _, err := s.CreateProject(ctx, Project{TeamID: team.ID, Name: "rollout", StartDate: time.Now()}); err != nil {
				t.Fatalf("create project: %v", err)
			}
			if _, err := s.CreateProject(ctx, Project{TeamID: 9999, Name: "ghost", StartDate: time.Now()}); err != ErrTeamNotFound {
				t.Fatalf("project for missing team err = %v, want ErrTeamNotFound", err)
			}
		})
	}
}

func TestArticleRevisions(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			article, err := s.CreateArticle(ctx, Article{
				Title: "onboarding", Content: "v1", Category: "process", Tags: []string{"hr"}, CreatedBy: "ana",
			})
			if err != nil {
				t.Fatalf("create article: %v", err)
			}
			if article.Version != 1 {
				t.Fatalf("initial version = %d, want 1", article.Version)
			}

			const edits = 5
			for i := 0; i < edits; i++ {
				article, err = s.UpdateArticle(ctx, ArticleUpdate{
					ArticleID: article.ID,
					Content:   "v" + string(rune('2'+i)),
					EditedBy:  "bo",
				})
				if err != nil {
					t.Fatalf("update %d: %v", i, err)
				}
			}
			if article.Version != 1+edits {
				t.Fatalf("version after %d edits = %d, want %d", edits, article.Version, 1+edits)
			}

			revisions, err := s.ListRevisions(ctx, article.ID)
			if err != nil {
				t.Fatalf("list revisions: %v", err)
			}
			// N edits after creation leave N+1 distinct revisions with
			// strictly increasing versions.
			if len(revisions) != 1+edits {
				t.Fatalf("revisions = %d, want %d", len(revisions), 1+edits)
			}
			for i, r := range revisions {
				if r.Version != i+1 {
					t.Fatalf("revision %d version = %d, want %d", i, r.Version, i+1)
				}
			}
			if revisions[0].ChangeSummary != "initial version" {
				t.Fatalf("first revision summary = %q", revisions[0].ChangeSummary)
			}
			if revisions[1].ChangeSummary != "content updated" {
				t.Fatalf("default edit summary = %q", revisions[1].ChangeSummary)
			}

			if _, err := s.UpdateArticle(ctx, ArticleUpdate{ArticleID: 9999, Content: "x"}); err != ErrArticleNotFound {
				t.Fatalf("update missing article err = %v, want ErrArticleNotFound", err)
			}
			if _, err := s.ListRevisions(ctx, 9999); err != ErrArticleNotFound {
				t.Fatalf("revisions of missing article err = %v, want ErrArticleNotFound", err)
			}
		})
	}
}

func TestSearchArticles(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			seed := []Article{
				{Title: "Deploy Guide", Content: "how to ship", Category: "ops"},
				{Title: "Retro notes", Content: "what we learned deploying", Category: "process"},
				{Title: "Holiday policy", Content: "time off", Category: "process"},
			}
			for _, a := range seed {
				if _, err := s.CreateArticle(ctx, a); err != nil {
					t.Fatalf("seed article: %v", err)
				}
			}

			got, err := s.SearchArticles(ctx, ArticleFilter{Keyword: "deploy"})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("keyword matches = %d, want 2", len(got))
			}

			got, err = s.SearchArticles(ctx, ArticleFilter{Category: "process", Keyword: "deploy"})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 1 || got[0].Title != "Retro notes" {
				t.Fatalf("category+keyword matches = %+v", got)
			}
		})
	}
}

func TestComments(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			article, err := s.CreateArticle(ctx, Article{Title: "a", Content: "b"})
			if err != nil {
				t.Fatalf("create article: %v", err)
			}
			root, err := s.AddComment(ctx, ArticleComment{ArticleID: article.ID, Content: "nice", CreatedBy: "ana"})
			if err != nil {
				t.Fatalf("add comment: %v", err)
			}
			if root.ID == 0 {
				t.Fatal("expected assigned comment ID")
			}
			reply, err := s.AddComment(ctx, ArticleComment{ArticleID: article.ID, Content: "+1", ParentID: &root.ID})
			if err != nil {
				t.Fatalf("add reply: %v", err)
			}
			if reply.ParentID == nil || *reply.ParentID != root.ID {
				t.Fatalf("reply parent = %v, want %d", reply.ParentID, root.ID)
			}
			if _, err := s.AddComment(ctx, ArticleComment{ArticleID: 9999, Content: "ghost"}); err != ErrArticleNotFound {
				t.Fatalf("comment on missing article err = %v, want ErrArticleNotFound", err)
			}
		})
	}
}

func TestActivityWindow(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

			records := []ActivityRecord{
				{TeamID: 1, UserID: "ana", Kind: ActivityTaskCompleted, CreatedAt: base.Add(1 * time.Hour)},
				{TeamID: 1, UserID: "bo", Kind: ActivityComment, CreatedAt: base.Add(26 * time.Hour)},
				{TeamID: 1, UserID: "ana", Kind: ActivityArticleAuthored, CreatedAt: base.Add(50 * time.Hour)},
				{TeamID: 2, UserID: "cy", Kind: ActivityTaskCompleted, CreatedAt: base.Add(2 * time.Hour)},
			}
			for _, r := range records {
				if err := s.RecordActivity(ctx, r); err != nil {
					t.Fatalf("record: %v", err)
				}
			}

			window := Window{Start: base, End: base.Add(48 * time.Hour)}
			got, err := s.QueryActivity(ctx, 1, window)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("records in window = %d, want 2", len(got))
			}
			if got[0].Kind != ActivityTaskCompleted || got[1].Kind != ActivityComment {
				t.Fatalf("unexpected order: %+v", got)
			}

			prev := window.Shift(1)
			if !prev.End.Equal(window.Start) {
				t.Fatalf("shifted window end = %v, want %v", prev.End, window.Start)
			}
		})
	}
}

func TestRecordEmotion(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := []EmotionLog{
				{UserID: "ana", Emotion: "stressed", Valence: -0.8, Context: "deadline"},
				{UserID: "ana", Emotion: "happy", Valence: 0.7, Context: "launch"},
				{UserID: "bo", Emotion: "neutral", Valence: 0, Context: "standup"},
			}
			for _, entry := range entries {
				if err := s.RecordEmotion(ctx, entry); err != nil {
					t.Fatalf("record emotion: %v", err)
				}
			}

			got, err := s.ListEmotions(ctx, "ana", 10)
			if err != nil {
				t.Fatalf("list emotions: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("ana entries = %d, want 2", len(got))
			}
			got, err = s.ListEmotions(ctx, "ana", 1)
			if err != nil {
				t.Fatalf("list emotions limited: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("limited entries = %d, want 1", len(got))
			}
		})
	}
}

func TestOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		task Task
		want bool
	}{
		{"no due date", Task{Status: TaskPending}, false},
		{"future due", Task{Status: TaskPending, DueDate: &future}, false},
		{"past due pending", Task{Status: TaskPending, DueDate: &past}, true},
		{"past due completed", Task{Status: TaskCompleted, DueDate: &past}, false},
	}
	for _, tc := range cases {
		if got := tc.task.Overdue(now); got != tc.want {
			t.Errorf("%s: Overdue = %v, want %v", tc.name, got, tc.want)
		}
	}
}
