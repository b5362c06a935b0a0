package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"yuanfang/internal/config"
	yferrors "yuanfang/internal/errors"
	"yuanfang/internal/logging"
	"yuanfang/internal/token"
)

// Manager blends short-term and durable memory into bounded context windows
// and commits new turns back.
type Manager struct {
	cfg     config.MemoryConfig
	short   *shortTerm
	durable DurableStore
	logger  logging.Logger
	now     func() time.Time

	mu       sync.Mutex
	promoted map[string]bool
	degraded map[string]bool
}

// NewManager builds a Manager. durable may be nil, which keeps all memory
// session-local.
func NewManager(cfg config.MemoryConfig, durable DurableStore, logger logging.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		short:    newShortTerm(cfg.ShortTermLimit),
		durable:  durable,
		logger:   logging.OrNop(logger),
		now:      time.Now,
		promoted: make(map[string]bool),
		degraded: make(map[string]bool),
	}
}

// BuildContext assembles the context window for a query: short-term items in
// recency order plus durable items ranked by blended score, within the token
// and item budgets. Lowest-score items drop first; ties break by recency.
func (m *Manager) BuildContext(ctx context.Context, sessionID, query string) (ContextWindow, error) {
	now := m.now()

	type candidate struct {
		item  Item
		score float64
	}
	var candidates []candidate

	for _, item := range m.short.recent(sessionID) {
		item.Relevance = m.blend(now, item.CreatedAt, wordOverlap(query, item.Content))
		candidates = append(candidates, candidate{item: item, score: item.Relevance})
	}

	if m.durable != nil && !m.isDegraded(sessionID) {
		scored, err := m.durable.Search(ctx, sessionID, query, m.cfg.ItemBudget)
		if err != nil {
			m.markDegraded(sessionID)
			m.logger.Warn("memory: durable search failed, session %s degrades to ephemeral: %v", sessionID, err)
		} else {
			for _, s := range scored {
				item := s.Item
				item.Relevance = m.blend(now, item.CreatedAt, s.Similarity)
				candidates = append(candidates, candidate{item: item, score: item.Relevance})
			}
		}
	}

	// Highest blended score first, recency breaks ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].item.CreatedAt.After(candidates[j].item.CreatedAt)
	})

	window := ContextWindow{
		TokenBudget: m.cfg.TokenBudget,
		ItemBudget:  m.cfg.ItemBudget,
	}
	seen := map[string]bool{}
	for _, c := range candidates {
		if len(window.Items) >= m.cfg.ItemBudget {
			break
		}
		key := c.item.ID
		if key == "" {
			key = c.item.Content
		}
		if seen[key] {
			continue
		}
		cost := token.Count(c.item.Content)
		if window.TokenCount+cost > m.cfg.TokenBudget {
			continue
		}
		seen[key] = true
		window.TokenCount += cost
		window.Items = append(window.Items, c.item)
	}
	return window, nil
}

// Commit appends the turn's items to short-term memory and promotes the
// important ones to the durable layer. Promotion is idempotent: the durable
// ID is derived from content + turn, so a duplicate commit is a no-op. A
// durable store failure degrades the session to ephemeral memory and is
// reported once as MemoryStoreUnavailable.
func (m *Manager) Commit(ctx context.Context, sessionID, turnID string, items []Item) error {
	var firstErr error
	for _, item := range items {
		item.SessionID = sessionID
		item.TurnID = turnID
		if item.CreatedAt.IsZero() {
			item.CreatedAt = m.now()
		}
		if item.ID == "" {
			item.ID = "mem_" + ksuid.New().String()
		}
		item.Scope = ScopeSession
		m.short.append(sessionID, item)

		if !m.shouldPromote(item) {
			continue
		}
		if m.durable == nil || m.isDegraded(sessionID) {
			continue
		}

		durable := item
		durable.ID = DurableID(item.Content, turnID)
		durable.Scope = ScopeDurable

		m.mu.Lock()
		alreadyPromoted := m.promoted[durable.ID]
		m.mu.Unlock()
		if alreadyPromoted {
			continue
		}
		if err := m.durable.Save(ctx, durable); err != nil {
			m.markDegraded(sessionID)
			m.logger.Warn("memory: promotion failed, session %s degrades to ephemeral: %v", sessionID, err)
			if firstErr == nil {
				firstErr = &yferrors.MemoryStoreUnavailableError{Err: err}
			}
			continue
		}
		m.mu.Lock()
		m.promoted[durable.ID] = true
		m.mu.Unlock()
	}
	return firstErr
}

// CloseSession evicts the session's short-term items. Promoted items stay in
// the durable layer.
func (m *Manager) CloseSession(sessionID string) {
	m.short.evict(sessionID)
	m.mu.Lock()
	delete(m.degraded, sessionID)
	m.mu.Unlock()
}

// shouldPromote is the importance heuristic: explicit preferences, task
// actions, and emotionally intense turns outlive the session.
func (m *Manager) shouldPromote(item Item) bool {
	if item.Kind == KindPreference {
		return true
	}
	lowered := strings.ToLower(item.Content)
	for _, marker := range []string{"i prefer", "i always", "i never", "remember that", "my favorite"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	for _, marker := range []string{"created task", "assigned task", "created article"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	if m.cfg.ImportanceValence > 0 && math.Abs(item.Valence) >= m.cfg.ImportanceValence {
		return true
	}
	return false
}

func (m *Manager) blend(now, createdAt time.Time, similarity float64) float64 {
	halfLife := m.cfg.RecencyHalfLife
	if halfLife <= 0 {
		halfLife = time.Hour
	}
	age := now.Sub(createdAt)
	decay := math.Pow(0.5, age.Seconds()/halfLife.Seconds())
	return m.cfg.RecencyWeight*decay + m.cfg.RelevanceWeight*similarity
}

func (m *Manager) isDegraded(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded[sessionID]
}

func (m *Manager) markDegraded(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded[sessionID] = true
}

// wordOverlap is the cheap in-session relevance proxy: the fraction of the
// item's words that appear in the query.
func wordOverlap(query, content string) float64 {
	queryWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		queryWords[w] = true
	}
	words := strings.Fields(strings.ToLower(content))
	if len(words) == 0 {
		return 0
	}
	overlap := 0
	for _, w := range words {
		if queryWords[w] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(words))
}
