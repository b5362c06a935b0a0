package dispatch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"yuanfang/internal/tools"
)

const defaultCacheTTL = 5 * time.Minute

// cacheEntry holds a cached tool result along with the timestamp it was
// stored.
type cacheEntry struct {
	content  string
	data     map[string]any
	storedAt time.Time
}

// resultCache memoizes results of idempotent tools keyed by tool name plus
// normalized arguments. Error results are never cached.
type resultCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
}

func newResultCache(size int, ttl time.Duration) (*resultCache, error) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{entries: entries, ttl: ttl}, nil
}

func (c *resultCache) lookup(call tools.ToolCall) (*tools.ToolResult, bool) {
	key := cacheKey(call)
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) >= c.ttl {
		c.entries.Remove(key)
		return nil, false
	}
	return &tools.ToolResult{
		Content: entry.content,
		Data:    cloneData(entry.data),
	}, true
}

func (c *resultCache) store(call tools.ToolCall, result *tools.ToolResult) {
	if result == nil {
		return
	}
	c.entries.Add(cacheKey(call), cacheEntry{
		content:  result.Content,
		data:     cloneData(result.Data),
		storedAt: time.Now(),
	})
}

// cacheKey produces a deterministic string from tool name + arguments,
// sorting keys so map iteration order never matters.
func cacheKey(call tools.ToolCall) string {
	keys := make([]string, 0, len(call.Arguments))
	for k := range call.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(call.Name)
	for _, k := range keys {
		encoded, err := json.Marshal(call.Arguments[k])
		if err != nil {
			encoded = []byte(fmt.Sprintf("%v", call.Arguments[k]))
		}
		fmt.Fprintf(&b, "|%s=%s", k, encoded)
	}
	return b.String()
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
