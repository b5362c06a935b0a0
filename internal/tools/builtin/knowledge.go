package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yuanfang/internal/store"
	"yuanfang/internal/tools"
)

// KnowledgeTool manages knowledge-base articles. Updates never overwrite:
// each one appends a new immutable revision.
type KnowledgeTool struct {
	store store.Store
}

func NewKnowledgeTool(st store.Store) *KnowledgeTool {
	return &KnowledgeTool{store: st}
}

func (t *KnowledgeTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "knowledge_base",
		Description: "Create, update, search, and comment on knowledge-base articles.",
		Keywords:    []string{"article", "document", "knowledge", "wiki", "write up", "search docs", "文档", "知识库"},
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"action":     {Type: "string", Description: "Operation to perform", Enum: []any{"create", "update", "search", "comment", "history"}},
				"article_id": {Type: "integer", Description: "Article identifier (update/comment/history)"},
				"title":      {Type: "string", Description: "Article title (create)"},
				"content":    {Type: "string", Description: "Article or comment body"},
				"category":   {Type: "string", Description: "Article category"},
				"keyword":    {Type: "string", Description: "Search keyword"},
				"team_id":    {Type: "integer", Description: "Team to credit activity to"},
			},
			Required: []string{"action"},
		},
	}
}

func (t *KnowledgeTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:     "knowledge_base",
		Version:  "1.0",
		Category: "collaboration",
		Timeout:  10 * time.Second,
	}
}

func (t *KnowledgeTool) Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	if err := t.Definition().Parameters.ValidateArguments(call.Arguments); err != nil {
		return nil, err
	}
	action := tools.StringArg(call.Arguments, "action", "")
	switch action {
	case "create":
		return t.create(ctx, call)
	case "update":
		return t.update(ctx, call)
	case "search":
		return t.search(ctx, call)
	case "comment":
		return t.comment(ctx, call)
	case "history":
		return t.history(ctx, call)
	default:
		return nil, fmt.Errorf("unknown knowledge action %q", action)
	}
}

func (t *KnowledgeTool) create(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	title := tools.StringArg(call.Arguments, "title", "")
	content := tools.StringArg(call.Arguments, "content", "")
	if title == "" || content == "" {
		return nil, fmt.Errorf("create requires title and content")
	}
	article, err := t.store.CreateArticle(ctx, store.Article{
		Title:     title,
		Content:   content,
		Category:  tools.StringArg(call.Arguments, "category", "general"),
		CreatedBy: tools.StringArg(call.Arguments, "user", ""),
	})
	if err != nil {
		return nil, err
	}
	teamID, _ := tools.Int64Arg(call.Arguments, "team_id")
	_ = t.store.RecordActivity(ctx, store.ActivityRecord{
		TeamID: teamID,
		UserID: article.CreatedBy,
		Kind:   store.ActivityArticleAuthored,
		RefID:  article.ID,
	})
	return &tools.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("created article #%d %q (v1)", article.ID, article.Title),
		Data:    map[string]any{"article_id": article.ID, "version": article.Version},
	}, nil
}

func (t *KnowledgeTool) update(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	articleID, err := tools.Int64Arg(call.Arguments, "article_id")
	if err != nil {
		return nil, err
	}
	content := tools.StringArg(call.Arguments, "content", "")
	if content == "" {
		return nil, fmt.Errorf("update requires content")
	}

	update := store.ArticleUpdate{
		ArticleID:     articleID,
		Content:       content,
		ChangeSummary: tools.StringArg(call.Arguments, "change_summary", ""),
		EditedBy:      tools.StringArg(call.Arguments, "user", ""),
	}
	if title := tools.StringArg(call.Arguments, "title", ""); title != "" {
		update.Title = &title
	}
	if category := tools.StringArg(call.Arguments, "category", ""); category != "" {
		update.Category = &category
	}

	article, err := t.store.UpdateArticle(ctx, update)
	if err != nil {
		return nil, err
	}
	teamID, _ := tools.Int64Arg(call.Arguments, "team_id")
	_ = t.store.RecordActivity(ctx, store.ActivityRecord{
		TeamID: teamID,
		UserID: update.EditedBy,
		Kind:   store.ActivityArticleEdited,
		RefID:  article.ID,
	})
	return &tools.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("updated article #%d %q to v%d", article.ID, article.Title, article.Version),
		Data:    map[string]any{"article_id": article.ID, "version": article.Version},
	}, nil
}

func (t *KnowledgeTool) search(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	filter := store.ArticleFilter{
		Category: tools.StringArg(call.Arguments, "category", ""),
		Keyword:  tools.StringArg(call.Arguments, "keyword", ""),
	}
	articles, err := t.store.SearchArticles(ctx, filter)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d article(s) found", len(articles))
	for _, a := range articles {
		fmt.Fprintf(&b, "\n- #%d %s [%s] v%d", a.ID, a.Title, a.Category, a.Version)
	}
	return &tools.ToolResult{
		CallID:  call.ID,
		Content: b.String(),
		Data:    map[string]any{"count": len(articles)},
	}, nil
}

func (t *KnowledgeTool) comment(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	articleID, err := tools.Int64Arg(call.Arguments, "article_id")
	if err != nil {
		return nil, err
	}
	content := tools.StringArg(call.Arguments, "content", "")
	if content == "" {
		return nil, fmt.Errorf("comment requires content")
	}
	comment, err := t.store.AddComment(ctx, store.ArticleComment{
		ArticleID: articleID,
		Content:   content,
		CreatedBy: tools.StringArg(call.Arguments, "user", ""),
	})
	if err != nil {
		return nil, err
	}
	teamID, _ := tools.Int64Arg(call.Arguments, "team_id")
	_ = t.store.RecordActivity(ctx, store.ActivityRecord{
		TeamID: teamID,
		UserID: comment.CreatedBy,
		Kind:   store.ActivityComment,
		RefID:  articleID,
	})
	return &tools.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("added comment to article #%d", articleID),
		Data:    map[string]any{"comment_id": comment.ID},
	}, nil
}

func (t *KnowledgeTool) history(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	articleID, err := tools.Int64Arg(call.Arguments, "article_id")
	if err != nil {
		return nil, err
	}
	revisions, err := t.store.ListRevisions(ctx, articleID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "article #%d has %d revision(s)", articleID, len(revisions))
	for _, r := range revisions {
		fmt.Fprintf(&b, "\n- v%d %s", r.Version, r.ChangeSummary)
	}
	return &tools.ToolResult{
		CallID:  call.ID,
		Content: b.String(),
		Data:    map[string]any{"revisions": len(revisions)},
	}, nil
}
