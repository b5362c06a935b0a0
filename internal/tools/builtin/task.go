package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yuanfang/internal/store"
	"yuanfang/internal/tools"
)

// TaskTool handles structured task operations: create, update, assign, query.
type TaskTool struct {
	store store.Store
}

func NewTaskTool(st store.Store) *TaskTool {
	return &TaskTool{store: st}
}

func (t *TaskTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "task_management",
		Description: "Create, update, assign, and query team tasks.",
		Keywords:    []string{"task", "assign", "todo", "due", "deadline", "complete", "finish", "任务", "分配"},
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"action":   {Type: "string", Description: "Operation to perform", Enum: []any{"create", "update", "assign", "query"}},
				"task_id":  {Type: "integer", Description: "Task identifier (update/assign)"},
				"title":    {Type: "string", Description: "Task title (create)"},
				"assignee": {Type: "string", Description: "User to assign the task to"},
				"status":   {Type: "string", Description: "New task status (update)"},
				"team_id":  {Type: "integer", Description: "Team scope for create/query"},
			},
			Required: []string{"action"},
		},
	}
}

func (t *TaskTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:     "task_management",
		Version:  "1.0",
		Category: "collaboration",
		Timeout:  10 * time.Second,
	}
}

func (t *TaskTool) Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	if err := t.Definition().Parameters.ValidateArguments(call.Arguments); err != nil {
		return nil, err
	}
	action := tools.StringArg(call.Arguments, "action", "")
	switch action {
	case "create":
		return t.create(ctx, call)
	case "update":
		return t.update(ctx, call)
	case "assign":
		return t.assign(ctx, call)
	case "query":
		return t.query(ctx, call)
	default:
		return nil, fmt.Errorf("unknown task action %q", action)
	}
}

func (t *TaskTool) create(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	title := tools.StringArg(call.Arguments, "title", "")
	if title == "" {
		return nil, fmt.Errorf("missing required argument %q", "title")
	}
	teamID, _ := tools.Int64Arg(call.Arguments, "team_id")

	task := store.Task{
		TeamID:      teamID,
		Title:       title,
		Description: tools.StringArg(call.Arguments, "description", ""),
		Assignee:    tools.StringArg(call.Arguments, "assignee", ""),
		Status:      store.TaskPending,
	}
	if task.Assignee != "" {
		if err := t.checkAssignee(ctx, teamID, task.Assignee); err != nil {
			return nil, err
		}
	}
	created, err := t.store.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	t.trail(ctx, created.ID, "created", fmt.Sprintf("task %q created", created.Title))

	return &tools.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("created task #%d %q", created.ID, created.Title),
		Data:    map[string]any{"task_id": created.ID, "title": created.Title, "status": string(created.Status)},
	}, nil
}

func (t *TaskTool) update(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	taskID, err := tools.Int64Arg(call.Arguments, "task_id")
	if err != nil {
		return nil, err
	}
	task, err := t.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var changes []string
	if status := tools.StringArg(call.Arguments, "status", ""); status != "" {
		s := store.TaskStatus(status)
		if !s.Valid() {
			return nil, fmt.Errorf("invalid task status %q", status)
		}
		task.Status = s
		changes = append(changes, "status to "+status)
	}
	if title := tools.StringArg(call.Arguments, "title", ""); title != "" {
		task.Title = title
		changes = append(changes, "title")
	}
	if desc := tools.StringArg(call.Arguments, "description", ""); desc != "" {
		task.Description = desc
		changes = append(changes, "description")
	}
	if len(changes) == 0 {
		return nil, fmt.Errorf("update requires at least one of status, title, description")
	}

	updated, err := t.store.UpdateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	t.trail(ctx, updated.ID, "updated", "changed "+strings.Join(changes, ", "))
	if updated.Status == store.TaskCompleted {
		_ = t.store.RecordActivity(ctx, store.ActivityRecord{
			TeamID: updated.TeamID,
			UserID: updated.Assignee,
			Kind:   store.ActivityTaskCompleted,
			RefID:  updated.ID,
		})
	}

	return &tools.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("updated task #%d (%s)", updated.ID, strings.Join(changes, ", ")),
		Data:    map[string]any{"task_id": updated.ID, "status": string(updated.Status)},
	}, nil
}

func (t *TaskTool) assign(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	taskID, err := tools.Int64Arg(call.Arguments, "task_id")
	if err != nil {
		return nil, err
	}
	assignee := tools.StringArg(call.Arguments, "assignee", "")
	if assignee == "" {
		return nil, fmt.Errorf("missing required argument %q", "assignee")
	}

	task, err := t.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := t.checkAssignee(ctx, task.TeamID, assignee); err != nil {
		return nil, err
	}

	task.Assignee = assignee
	if task.Status == store.TaskPending {
		task.Status = store.TaskInProgress
	}
	updated, err := t.store.UpdateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	t.trail(ctx, updated.ID, "assigned", "assigned to "+assignee)

	return &tools.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("assigned task #%d %q to %s", updated.ID, updated.Title, assignee),
		Data:    map[string]any{"task_id": updated.ID, "assignee": assignee, "status": string(updated.Status)},
	}, nil
}

func (t *TaskTool) query(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	filter := store.TaskFilter{
		Assignee: tools.StringArg(call.Arguments, "assignee", ""),
	}
	if teamID, err := tools.Int64Arg(call.Arguments, "team_id"); err == nil {
		filter.TeamID = teamID
	}
	if status := tools.StringArg(call.Arguments, "status", ""); status != "" {
		filter.Status = store.TaskStatus(status)
	}

	tasksList, err := t.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s) found", len(tasksList))
	for _, task := range tasksList {
		fmt.Fprintf(&b, "\n- #%d %s [%s]", task.ID, task.Title, task.Status)
		if task.Assignee != "" {
			fmt.Fprintf(&b, " @%s", task.Assignee)
		}
	}
	return &tools.ToolResult{
		CallID:  call.ID,
		Content: b.String(),
		Data:    map[string]any{"count": len(tasksList)},
	}, nil
}

// checkAssignee enforces that an assignee belongs to the task's team. Tasks
// outside any team (teamID 0) accept any assignee.
func (t *TaskTool) checkAssignee(ctx context.Context, teamID int64, assignee string) error {
	if teamID == 0 {
		return nil
	}
	members, err := t.store.ListTeamMembers(ctx, teamID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if strings.EqualFold(m.UserID, assignee) {
			return nil
		}
	}
	return store.ErrInvalidAssignee
}

// trail records the audit entry best-effort; a failed trail write never fails
// the operation itself.
func (t *TaskTool) trail(ctx context.Context, taskID int64, action, description string) {
	_ = t.store.AddTaskActivity(ctx, store.TaskActivity{
		TaskID:      taskID,
		Action:      action,
		Description: description,
	})
}
