package store

import "context"

// ArticleUpdate describes an article edit. Content is required; nil pointer
// fields keep the current value.
type ArticleUpdate struct {
	ArticleID     int64
	Title         *string
	Category      *string
	Tags          []string
	Content       string
	ChangeSummary string
	EditedBy      string
}

// Store is the persistence contract for collaboration entities. Both the
// SQLite and in-memory implementations satisfy it; the core treats every call
// as self-contained.
type Store interface {
	// Tasks.
	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, id int64) (Task, error)
	UpdateTask(ctx context.Context, task Task) (Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	AddTaskActivity(ctx context.Context, activity TaskActivity) error
	ListTaskActivity(ctx context.Context, taskID int64) ([]TaskActivity, error)

	// Teams and projects.
	CreateTeam(ctx context.Context, team Team) (Team, error)
	GetTeam(ctx context.Context, id int64) (Team, error)
	AddTeamMember(ctx context.Context, member TeamMember) error
	ListTeamMembers(ctx context.Context, teamID int64) ([]TeamMember, error)
	CreateProject(ctx context.Context, project Project) (Project, error)

	// Knowledge base. CreateArticle writes revision 1; UpdateArticle bumps
	// the version and appends a new immutable revision.
	CreateArticle(ctx context.Context, article Article) (Article, error)
	GetArticle(ctx context.Context, id int64) (Article, error)
	UpdateArticle(ctx context.Context, update ArticleUpdate) (Article, error)
	SearchArticles(ctx context.Context, filter ArticleFilter) ([]Article, error)
	ListRevisions(ctx context.Context, articleID int64) ([]ArticleRevision, error)
	AddComment(ctx context.Context, comment ArticleComment) (ArticleComment, error)

	// Raw activity and emotion trail.
	RecordActivity(ctx context.Context, record ActivityRecord) error
	QueryActivity(ctx context.Context, teamID int64, window Window) ([]ActivityRecord, error)
	RecordEmotion(ctx context.Context, entry EmotionLog) error
	ListEmotions(ctx context.Context, userID string, limit int) ([]EmotionLog, error)

	Close() error
}
