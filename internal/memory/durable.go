package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

// Scored pairs an item with its semantic similarity for one query.
type Scored struct {
	Item       Item
	Similarity float64
}

// DurableStore persists promoted memory items and serves semantic search.
type DurableStore interface {
	// Save upserts the item under its ID. Saving the same ID twice
	// leaves one copy.
	Save(ctx context.Context, item Item) error

	// Search returns up to limit items ranked by similarity to the query.
	Search(ctx context.Context, sessionID, query string, limit int) ([]Scored, error)

	Close() error
}

const embeddingDim = 128

// hashEmbedding maps text to a fixed-size bag-of-words vector. No external
// model: deterministic, cheap, and good enough for overlap-style relevance.
func hashEmbedding(text string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%embeddingDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

// ChromemStore is the chromem-go backed DurableStore.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the store. An empty persistPath keeps
// everything in process memory.
func NewChromemStore(persistPath string) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if persistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(persistPath, "memory.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("open persistent memory store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embed := func(_ context.Context, text string) ([]float32, error) {
		return hashEmbedding(text), nil
	}
	collection, err := db.GetOrCreateCollection("memory", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create memory collection: %w", err)
	}
	return &ChromemStore{db: db, collection: collection}, nil
}

func (s *ChromemStore) Save(ctx context.Context, item Item) error {
	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:      item.ID,
		Content: item.Content,
		Metadata: map[string]string{
			"session_id": item.SessionID,
			"turn_id":    item.TurnID,
			"kind":       item.Kind,
			"created_at": strconv.FormatInt(item.CreatedAt.Unix(), 10),
		},
	})
	if err != nil {
		return fmt.Errorf("save memory item %s: %w", item.ID, err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, sessionID, query string, limit int) ([]Scored, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	var where map[string]string
	if sessionID != "" {
		where = map[string]string{"session_id": sessionID}
	}
	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}

	out := make([]Scored, 0, len(results))
	for _, r := range results {
		createdAt, _ := strconv.ParseInt(r.Metadata["created_at"], 10, 64)
		out = append(out, Scored{
			Item: Item{
				ID:        r.ID,
				SessionID: r.Metadata["session_id"],
				TurnID:    r.Metadata["turn_id"],
				Content:   r.Content,
				Kind:      r.Metadata["kind"],
				Scope:     ScopeDurable,
				CreatedAt: time.Unix(createdAt, 0),
			},
			Similarity: float64(r.Similarity),
		})
	}
	return out, nil
}

func (s *ChromemStore) Close() error { return nil }

// FakeDurableStore is an in-memory DurableStore for tests, with word-overlap
// similarity and a scriptable failure switch.
type FakeDurableStore struct {
	mu    sync.Mutex
	items map[string]Item
	Fail  bool
}

func NewFakeDurableStore() *FakeDurableStore {
	return &FakeDurableStore{items: make(map[string]Item)}
}

func (s *FakeDurableStore) Save(_ context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return fmt.Errorf("durable store down")
	}
	s.items[item.ID] = item
	return nil
}

func (s *FakeDurableStore) Search(_ context.Context, sessionID, query string, limit int) ([]Scored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return nil, fmt.Errorf("durable store down")
	}

	queryWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		queryWords[w] = true
	}

	var out []Scored
	for _, item := range s.items {
		if sessionID != "" && item.SessionID != sessionID {
			continue
		}
		overlap := 0
		words := strings.Fields(strings.ToLower(item.Content))
		for _, w := range words {
			if queryWords[w] {
				overlap++
			}
		}
		similarity := 0.0
		if len(words) > 0 {
			similarity = float64(overlap) / float64(len(words))
		}
		out = append(out, Scored{Item: item, Similarity: similarity})
	}
	sortScored(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the number of stored items. Test helper.
func (s *FakeDurableStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *FakeDurableStore) Close() error { return nil }

func sortScored(items []Scored) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Similarity > items[j].Similarity
	})
}
