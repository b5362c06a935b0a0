// Package store persists the collaboration entities the tools operate on:
// teams, projects, tasks, knowledge articles with immutable revisions, and
// the raw activity records the metrics engine aggregates.
package store

import (
	"errors"
	"time"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrArticleNotFound = errors.New("article not found")
	ErrInvalidAssignee = errors.New("invalid assignee: not a team member")
)

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// Valid reports whether the status is one of the known values.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Task is a unit of tracked work.
type Task struct {
	ID          int64
	TeamID      int64
	Title       string
	Description string
	Status      TaskStatus
	Priority    int
	Assignee    string
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Overdue reports whether the task missed its due date as of now.
func (t Task) Overdue(now time.Time) bool {
	return t.Status != TaskCompleted && t.DueDate != nil && t.DueDate.Before(now)
}

// TaskActivity is the audit trail entry written on every task mutation.
type TaskActivity struct {
	ID          int64
	TaskID      int64
	Action      string
	Description string
	CreatedAt   time.Time
}

// Team groups members and projects.
type Team struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// TeamMember links a user to a team.
type TeamMember struct {
	TeamID   int64
	UserID   string
	Role     string
	JoinedAt time.Time
}

// Project belongs to a team.
type Project struct {
	ID        int64
	TeamID    int64
	Name      string
	Status    string
	StartDate time.Time
	EndDate   *time.Time
	CreatedAt time.Time
}

// Article is a knowledge-base entry. Content updates never overwrite: each
// one appends an ArticleRevision and bumps Version.
type Article struct {
	ID        int64
	Title     string
	Content   string
	Category  string
	Tags      []string
	CreatedBy string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArticleRevision is an immutable version record of an article.
type ArticleRevision struct {
	ID            int64
	ArticleID     int64
	Version       int
	Content       string
	ChangeSummary string
	CreatedBy     string
	CreatedAt     time.Time
}

// ArticleComment is a threaded comment on an article.
type ArticleComment struct {
	ID        int64
	ArticleID int64
	Content   string
	CreatedBy string
	ParentID  *int64
	CreatedAt time.Time
}

// ActivityKind classifies a raw activity record.
type ActivityKind string

const (
	ActivityTaskCompleted   ActivityKind = "task_completed"
	ActivityComment         ActivityKind = "comment"
	ActivityJointCompletion ActivityKind = "joint_completion"
	ActivityArticleAuthored ActivityKind = "article_authored"
	ActivityArticleEdited   ActivityKind = "article_edited"
)

// ActivityRecord is one raw event feeding the metrics engine.
type ActivityRecord struct {
	ID        int64
	TeamID    int64
	UserID    string
	Kind      ActivityKind
	RefID     int64
	CreatedAt time.Time
}

// EmotionLog records the detected emotion of one processed turn.
type EmotionLog struct {
	ID        int64
	UserID    string
	Emotion   string
	Valence   float64
	Context   string
	CreatedAt time.Time
}

// Window bounds a metrics query in time. Start is inclusive, End exclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Shift returns the window moved back by n window lengths. Used to build the
// rolling baseline for the knowledge-sharing index.
func (w Window) Shift(n int) Window {
	d := w.Duration() * time.Duration(n)
	return Window{Start: w.Start.Add(-d), End: w.End.Add(-d)}
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	TeamID   int64
	Status   TaskStatus
	Assignee string
	Window   *Window
}

// ArticleFilter narrows SearchArticles.
type ArticleFilter struct {
	Category string
	Keyword  string
}
