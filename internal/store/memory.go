package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Used for tests and as the
// ephemeral fallback driver.
type MemoryStore struct {
	mu sync.RWMutex

	nextID int64

	tasks        map[int64]Task
	taskActivity map[int64][]TaskActivity
	teams        map[int64]Team
	members      map[int64][]TeamMember
	projects     map[int64]Project
	articles     map[int64]Article
	revisions    map[int64][]ArticleRevision
	comments     map[int64][]ArticleComment
	activity     []ActivityRecord
	emotions     []EmotionLog
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:       1,
		tasks:        make(map[int64]Task),
		taskActivity: make(map[int64][]TaskActivity),
		teams:        make(map[int64]Team),
		members:      make(map[int64][]TeamMember),
		projects:     make(map[int64]Project),
		articles:     make(map[int64]Article),
		revisions:    make(map[int64][]ArticleRevision),
		comments:     make(map[int64][]ArticleComment),
	}
}

func (s *MemoryStore) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *MemoryStore) CreateTask(_ context.Context, task Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = s.allocID()
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = TaskPending
	}
	s.tasks[task.ID] = task
	return task, nil
}

func (s *MemoryStore) GetTask(_ context.Context, id int64) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return task, nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, task Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[task.ID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	task.CreatedAt = current.CreatedAt
	task.UpdatedAt = time.Now()
	s.tasks[task.ID] = task
	return task, nil
}

func (s *MemoryStore) ListTasks(_ context.Context, filter TaskFilter) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, task := range s.tasks {
		if filter.TeamID != 0 && task.TeamID != filter.TeamID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Assignee != "" && task.Assignee != filter.Assignee {
			continue
		}
		if filter.Window != nil && !filter.Window.Contains(task.CreatedAt) {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) AddTaskActivity(_ context.Context, activity TaskActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity.ID = s.allocID()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	s.taskActivity[activity.TaskID] = append(s.taskActivity[activity.TaskID], activity)
	return nil
}

func (s *MemoryStore) ListTaskActivity(_ context.Context, taskID int64) ([]TaskActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.taskActivity[taskID]
	out := make([]TaskActivity, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *MemoryStore) CreateTeam(_ context.Context, team Team) (Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team.ID = s.allocID()
	team.CreatedAt = time.Now()
	s.teams[team.ID] = team
	return team, nil
}

func (s *MemoryStore) GetTeam(_ context.Context, id int64) (Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[id]
	if !ok {
		return Team{}, ErrTeamNotFound
	}
	return team, nil
}

func (s *MemoryStore) AddTeamMember(_ context.Context, member TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[member.TeamID]; !ok {
		return ErrTeamNotFound
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	if member.Role == "" {
		member.Role = "member"
	}
	s.members[member.TeamID] = append(s.members[member.TeamID], member)
	return nil
}

func (s *MemoryStore) ListTeamMembers(_ context.Context, teamID int64) ([]TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := s.members[teamID]
	out := make([]TeamMember, len(members))
	copy(out, members)
	return out, nil
}

func (s *MemoryStore) CreateProject(_ context.Context, project Project) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[project.TeamID]; !ok {
		return Project{}, ErrTeamNotFound
	}
	project.ID = s.allocID()
	project.CreatedAt = time.Now()
	if project.Status == "" {
		project.Status = "active"
	}
	s.projects[project.ID] = project
	return project, nil
}

func (s *MemoryStore) CreateArticle(_ context.Context, article Article) (Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article.ID = s.allocID()
	now := time.Now()
	article.CreatedAt = now
	article.UpdatedAt = now
	article.Version = 1
	s.articles[article.ID] = article
	s.revisions[article.ID] = []ArticleRevision{{
		ID:            s.allocID(),
		ArticleID:     article.ID,
		Version:       1,
		Content:       article.Content,
		ChangeSummary: "initial version",
		CreatedBy:     article.CreatedBy,
		CreatedAt:     now,
	}}
	return article, nil
}

func (s *MemoryStore) GetArticle(_ context.Context, id int64) (Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.articles[id]
	if !ok {
		return Article{}, ErrArticleNotFound
	}
	return article, nil
}

func (s *MemoryStore) UpdateArticle(_ context.Context, update ArticleUpdate) (Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[update.ArticleID]
	if !ok {
		return Article{}, ErrArticleNotFound
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
	article.UpdatedAt = time.Now()
	s.articles[article.ID] = article

	summary := update.ChangeSummary
	if summary == "" {
		summary = "content updated"
	}
	s.revisions[article.ID] = append(s.revisions[article.ID], ArticleRevision{
		ID:            s.allocID(),
		ArticleID:     article.ID,
		Version:       article.Version,
		Content:       update.Content,
		ChangeSummary: summary,
		CreatedBy:     update.EditedBy,
		CreatedAt:     article.UpdatedAt,
	})
	return article, nil
}

func (s *MemoryStore) SearchArticles(_ context.Context, filter ArticleFilter) ([]Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keyword := strings.ToLower(filter.Keyword)
	var out []Article
	for _, article := range s.articles {
		if filter.Category != "" && article.Category != filter.Category {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(article.Title), keyword) &&
			!strings.Contains(strings.ToLower(article.Content), keyword) {
			continue
		}
		out = append(out, article)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListRevisions(_ context.Context, articleID int64) ([]ArticleRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.articles[articleID]; !ok {
		return nil, ErrArticleNotFound
	}
	revisions := s.revisions[articleID]
	out := make([]ArticleRevision, len(revisions))
	copy(out, revisions)
	return out, nil
}

func (s *MemoryStore) AddComment(_ context.Context, comment ArticleComment) (ArticleComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[comment.ArticleID]; !ok {
		return ArticleComment{}, ErrArticleNotFound
	}
	comment.ID = s.allocID()
	comment.CreatedAt = time.Now()
	s.comments[comment.ArticleID] = append(s.comments[comment.ArticleID], comment)
	return comment, nil
}

func (s *MemoryStore) RecordActivity(_ context.Context, record ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = s.allocID()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.activity = append(s.activity, record)
	return nil
}

func (s *MemoryStore) QueryActivity(_ context.Context, teamID int64, window Window) ([]ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ActivityRecord
	for _, record := range s.activity {
		if record.TeamID != teamID {
			continue
		}
		if !window.Contains(record.CreatedAt) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) RecordEmotion(_ context.Context, entry EmotionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.allocID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.emotions = append(s.emotions, entry)
	return nil
}

// Emotions returns a copy of the emotion trail, newest last. Test helper.
func (s *MemoryStore) Emotions() []EmotionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EmotionLog, len(s.emotions))
	copy(out, s.emotions)
	return out
}

func (s *MemoryStore) ListEmotions(_ context.Context, userID string, limit int) ([]EmotionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []EmotionLog
	for i := len(s.emotions) - 1; i >= 0; i-- {
		if userID != "" && s.emotions[i].UserID != userID {
			continue
		}
		out = append(out, s.emotions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
