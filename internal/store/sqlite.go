package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database. The modernc driver
// keeps the binary CGo-free.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent sessions.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS teams (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS team_members (
			team_id INTEGER NOT NULL REFERENCES teams(id),
			user_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			joined_at TIMESTAMP NOT NULL,
			PRIMARY KEY (team_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			team_id INTEGER NOT NULL REFERENCES teams(id),
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			start_date TIMESTAMP NOT NULL,
			end_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			team_id INTEGER NOT NULL DEFAULT 0,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			priority INTEGER NOT NULL DEFAULT 3,
			assignee TEXT NOT NULL DEFAULT '',
			due_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_activity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL REFERENCES tasks(id),
			action TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			created_by TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS article_revisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES articles(id),
			version INTEGER NOT NULL,
			content TEXT NOT NULL,
			change_summary TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			UNIQUE (article_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS article_comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES articles(id),
			content TEXT NOT NULL,
			created_by TEXT NOT NULL DEFAULT '',
			parent_id INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS activity_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			team_id INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ref_id INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_team_time ON activity_records(team_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS emotion_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			emotion TEXT NOT NULL,
			valence REAL NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	now := time.Now()
	if task.Status == "" {
		task.Status = TaskPending
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (team_id, title, description, status, priority, assignee, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TeamID, task.Title, task.Description, string(task.Status), task.Priority, task.Assignee, task.DueDate, now, now)
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	task.ID, _ = res.LastInsertId()
	task.CreatedAt = now
	task.UpdatedAt = now
	return task, nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, title, description, status, priority, assignee, due_date, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, task Task) (Task, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, assignee = ?, due_date = ?, updated_at = ?
		 WHERE id = ?`,
		task.Title, task.Description, string(task.Status), task.Priority, task.Assignee, task.DueDate, now, task.ID)
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return Task{}, ErrTaskNotFound
	}
	return s.GetTask(ctx, task.ID)
}

func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	query := `SELECT id, team_id, title, description, status, priority, assignee, due_date, created_at, updated_at FROM tasks WHERE 1=1`
	var args []any
	if filter.TeamID != 0 {
		query += ` AND team_id = ?`
		args = append(args, filter.TeamID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Assignee != "" {
		query += ` AND assignee = ?`
		args = append(args, filter.Assignee)
	}
	if filter.Window != nil {
		query += ` AND created_at >= ? AND created_at < ?`
		args = append(args, filter.Window.Start, filter.Window.End)
	}
	query += ` ORDER BY priority DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var task Task
	var status string
	var due sql.NullTime
	err := row.Scan(&task.ID, &task.TeamID, &task.Title, &task.Description, &status,
		&task.Priority, &task.Assignee, &due, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrTaskNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("scan task: %w", err)
	}
	task.Status = TaskStatus(status)
	if due.Valid {
		t := due.Time
		task.DueDate = &t
	}
	return task, nil
}

func (s *SQLiteStore) AddTaskActivity(ctx context.Context, activity TaskActivity) error {
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_activity (task_id, action, description, created_at) VALUES (?, ?, ?, ?)`,
		activity.TaskID, activity.Action, activity.Description, activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("add task activity: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTaskActivity(ctx context.Context, taskID int64) ([]TaskActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, action, description, created_at FROM task_activity WHERE task_id = ? ORDER BY created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task activity: %w", err)
	}
	defer rows.Close()

	var out []TaskActivity
	for rows.Next() {
		var a TaskActivity
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Action, &a.Description, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateTeam(ctx context.Context, team Team) (Team, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (name, description, created_at) VALUES (?, ?, ?)`,
		team.Name, team.Description, now)
	if err != nil {
		return Team{}, fmt.Errorf("create team: %w", err)
	}
	team.ID, _ = res.LastInsertId()
	team.CreatedAt = now
	return team, nil
}

func (s *SQLiteStore) GetTeam(ctx context.Context, id int64) (Team, error) {
	var team Team
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM teams WHERE id = ?`, id).
		Scan(&team.ID, &team.Name, &team.Description, &team.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Team{}, ErrTeamNotFound
	}
	if err != nil {
		return Team{}, fmt.Errorf("get team: %w", err)
	}
	return team, nil
}

func (s *SQLiteStore) AddTeamMember(ctx context.Context, member TeamMember) error {
	if _, err := s.GetTeam(ctx, member.TeamID); err != nil {
		return err
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	if member.Role == "" {
		member.Role = "member"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO team_members (team_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		member.TeamID, member.UserID, member.Role, member.JoinedAt)
	if err != nil {
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTeamMembers(ctx context.Context, teamID int64) ([]TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id, user_id, role, joined_at FROM team_members WHERE team_id = ? ORDER BY joined_at`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	var out []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateProject(ctx context.Context, project Project) (Project, error) {
	if _, err := s.GetTeam(ctx, project.TeamID); err != nil {
		return Project{}, err
	}
	now := time.Now()
	if project.Status == "" {
		project.Status = "active"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (team_id, name, status, start_date, end_date, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		project.TeamID, project.Name, project.Status, project.StartDate, project.EndDate, now)
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	project.ID, _ = res.LastInsertId()
	project.CreatedAt = now
	return project, nil
}

func (s *SQLiteStore) CreateArticle(ctx context.Context, article Article) (Article, error) {
	now := time.Now()
	tags, err := json.Marshal(article.Tags)
	if err != nil {
		return Article{}, fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Article{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO articles (title, content, category, tags, created_by, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		article.Title, article.Content, article.Category, string(tags), article.CreatedBy, now, now)
	if err != nil {
		return Article{}, fmt.Errorf("create article: %w", err)
	}
	article.ID, _ = res.LastInsertId()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO article_revisions (article_id, version, content, change_summary, created_by, created_at)
		 VALUES (?, 1, ?, 'initial version', ?, ?)`,
		article.ID, article.Content, article.CreatedBy, now); err != nil {
		return Article{}, fmt.Errorf("create initial revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Article{}, fmt.Errorf("commit: %w", err)
	}
	article.Version = 1
	article.CreatedAt = now
	article.UpdatedAt = now
	return article, nil
}

func (s *SQLiteStore) GetArticle(ctx context.Context, id int64) (Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, category, tags, created_by, version, created_at, updated_at
		 FROM articles WHERE id = ?`, id)
	return scanArticle(row)
}

func scanArticle(row rowScanner) (Article, error) {
	var article Article
	var tags string
	err := row.Scan(&article.ID, &article.Title, &article.Content, &article.Category,
		&tags, &article.CreatedBy, &article.Version, &article.CreatedAt, &article.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, ErrArticleNotFound
	}
	if err != nil {
		return Article{}, fmt.Errorf("scan article: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &article.Tags); err != nil {
		article.Tags = nil
	}
	return article, nil
}

func (s *SQLiteStore) UpdateArticle(ctx context.Context, update ArticleUpdate) (Article, error) {
	article, err := s.GetArticle(ctx, update.ArticleID)
	if err != nil {
		return Article{}, err
	}
	if update.Title != nil {
		article.Title = *update.Title
	}
	if update.Category != nil {
		article.Category = *update.Category
	}
	if update.Tags != nil {
		article.Tags = update.Tags
	}
	article.Content = update.Content
	article.Version++
	now := time.Now()

	tags, err := json.Marshal(article.Tags)
	if err != nil {
		return Article{}, fmt.Errorf("marshal tags: %w", err)
	}
	summary := update.ChangeSummary
	if summary == "" {
		summary = "content updated"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Article{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE articles SET title = ?, content = ?, category = ?, tags = ?, version = ?, updated_at = ? WHERE id = ?`,
		article.Title, article.Content, article.Category, string(tags), article.Version, now, article.ID); err != nil {
		return Article{}, fmt.Errorf("update article: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO article_revisions (article_id, version, content, change_summary, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		article.ID, article.Version, article.Content, summary, update.EditedBy, now); err != nil {
		return Article{}, fmt.Errorf("append revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Article{}, fmt.Errorf("commit: %w", err)
	}
	article.UpdatedAt = now
	return article, nil
}

func (s *SQLiteStore) SearchArticles(ctx context.Context, filter ArticleFilter) ([]Article, error) {
	query := `SELECT id, title, content, category, tags, created_by, version, created_at, updated_at FROM articles WHERE 1=1`
	var args []any
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Keyword != "" {
		query += ` AND (lower(title) LIKE ? OR lower(content) LIKE ?)`
		pattern := "%" + strings.ToLower(filter.Keyword) + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, article)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListRevisions(ctx context.Context, articleID int64) ([]ArticleRevision, error) {
	if _, err := s.GetArticle(ctx, articleID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, article_id, version, content, change_summary, created_by, created_at
		 FROM article_revisions WHERE article_id = ? ORDER BY version`, articleID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []ArticleRevision
	for rows.Next() {
		var r ArticleRevision
		if err := rows.Scan(&r.ID, &r.ArticleID, &r.Version, &r.Content, &r.ChangeSummary, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddComment(ctx context.Context, comment ArticleComment) (ArticleComment, error) {
	if _, err := s.GetArticle(ctx, comment.ArticleID); err != nil {
		return ArticleComment{}, err
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO article_comments (article_id, content, created_by, parent_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		comment.ArticleID, comment.Content, comment.CreatedBy, comment.ParentID, now)
	if err != nil {
		return ArticleComment{}, fmt.Errorf("add comment: %w", err)
	}
	comment.ID, _ = res.LastInsertId()
	comment.CreatedAt = now
	return comment, nil
}

func (s *SQLiteStore) RecordActivity(ctx context.Context, record ActivityRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_records (team_id, user_id, kind, ref_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		record.TeamID, record.UserID, string(record.Kind), record.RefID, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func (s *SQLiteStore) QueryActivity(ctx context.Context, teamID int64, window Window) ([]ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, user_id, kind, ref_id, created_at FROM activity_records
		 WHERE team_id = ? AND created_at >= ? AND created_at < ? ORDER BY created_at`,
		teamID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []ActivityRecord
	for rows.Next() {
		var r ActivityRecord
		var kind string
		if err := rows.Scan(&r.ID, &r.TeamID, &r.UserID, &kind, &r.RefID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		r.Kind = ActivityKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecordEmotion(ctx context.Context, entry EmotionLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO emotion_logs (user_id, emotion, valence, context, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, entry.Emotion, entry.Valence, entry.Context, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("record emotion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEmotions(ctx context.Context, userID string, limit int) ([]EmotionLog, error) {
	query := `SELECT id, user_id, emotion, valence, context, created_at FROM emotion_logs`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list emotions: %w", err)
	}
	defer rows.Close()

	var out []EmotionLog
	for rows.Next() {
		var entry EmotionLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Emotion, &entry.Valence, &entry.Context, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("list emotions: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
