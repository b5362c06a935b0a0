package builtin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"yuanfang/internal/store"
	"yuanfang/internal/tools"
)

func TestKnowledgeCreateUpdateHistory(t *testing.T) {
	s := store.NewMemoryStore()
	tool := NewKnowledgeTool(s)

	created := exec(t, tool, map[string]any{
		"action": "create", "title": "Release process", "content": "draft", "category": "ops",
	})
	articleID := created.Data["article_id"].(int64)
	if created.Data["version"] != 1 {
		t.Fatalf("initial version = %v", created.Data["version"])
	}

	for i := 0; i < 3; i++ {
		updated := exec(t, tool, map[string]any{
			"action": "update", "article_id": articleID, "content": "revised",
		})
		if updated.Data["version"] != 2+i {
			t.Fatalf("edit %d version = %v, want %d", i, updated.Data["version"], 2+i)
		}
	}

	history := exec(t, tool, map[string]any{"action": "history", "article_id": articleID})
	if history.Data["revisions"] != 4 {
		t.Fatalf("revisions = %v, want 4", history.Data["revisions"])
	}
	if !strings.Contains(history.Content, "v4") {
		t.Fatalf("history content = %q", history.Content)
	}
}

func TestKnowledgeSearch(t *testing.T) {
	s := store.NewMemoryStore()
	tool := NewKnowledgeTool(s)

	exec(t, tool, map[string]any{"action": "create", "title": "Deploy guide", "content": "steps", "category": "ops"})
	exec(t, tool, map[string]any{"action": "create", "title": "Holiday policy", "content": "rules", "category": "hr"})

	result := exec(t, tool, map[string]any{"action": "search", "keyword": "deploy"})
	if result.Data["count"] != 1 {
		t.Fatalf("search count = %v, want 1", result.Data["count"])
	}

	result = exec(t, tool, map[string]any{"action": "search", "category": "hr"})
	if result.Data["count"] != 1 {
		t.Fatalf("category count = %v, want 1", result.Data["count"])
	}
}

func TestKnowledgeCommentAndActivity(t *testing.T) {
	s := store.NewMemoryStore()
	tool := NewKnowledgeTool(s)
	ctx := context.Background()

	team, err := s.CreateTeam(ctx, store.Team{Name: "platform"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}

	created := exec(t, tool, map[string]any{
		"action": "create", "title": "a", "content": "b", "team_id": team.ID, "user": "ana",
	})
	articleID := created.Data["article_id"].(int64)
	exec(t, tool, map[string]any{
		"action": "comment", "article_id": articleID, "content": "nice", "team_id": team.ID, "user": "bo",
	})

	records, err := s.QueryActivity(ctx, team.ID, wideWindow())
	if err != nil {
		t.Fatalf("query activity: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("activity records = %d, want 2", len(records))
	}
	if records[0].Kind != store.ActivityArticleAuthored || records[1].Kind != store.ActivityComment {
		t.Fatalf("unexpected kinds: %+v", records)
	}
}

func TestKnowledgeErrors(t *testing.T) {
	tool := NewKnowledgeTool(store.NewMemoryStore())
	ctx := context.Background()

	_, err := tool.Execute(ctx, tools.ToolCall{ID: "c", Arguments: map[string]any{
		"action": "update", "article_id": 9999, "content": "x",
	}})
	if !errors.Is(err, store.ErrArticleNotFound) {
		t.Fatalf("update missing article err = %v, want ErrArticleNotFound", err)
	}

	_, err = tool.Execute(ctx, tools.ToolCall{ID: "c", Arguments: map[string]any{"action": "create", "title": "x"}})
	if err == nil {
		t.Fatal("expected error for create without content")
	}
}
