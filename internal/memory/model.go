// Package memory holds conversational memory: short-term per-session items
// and a durable vector store, blended into a bounded context window.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"yuanfang/internal/token"
)

// Scope marks where an item lives.
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeDurable Scope = "durable"
)

// Kind classifies what an item remembers.
const (
	KindTurnSummary = "turn_summary"
	KindFact        = "fact"
	KindPreference  = "preference"
)

// Item is one unit of remembered content. Relevance is recomputed at every
// retrieval for the query at hand and never cached across queries.
type Item struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	TurnID    string    `json:"turn_id"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	Scope     Scope     `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
	// Valence carries the turn's emotion valence for the promotion
	// heuristic.
	Valence float64 `json:"valence,omitempty"`

	Relevance float64 `json:"-"`
}

// DurableID derives the promotion identity from content + source turn, so
// promoting the same item twice lands on the same durable document.
func DurableID(content, turnID string) string {
	sum := sha256.Sum256([]byte(turnID + "\x00" + content))
	return "mem_" + hex.EncodeToString(sum[:16])
}

// ContextWindow is the bounded set of items assembled for one generation
// request, ordered highest blended score first.
type ContextWindow struct {
	Items       []Item `json:"items"`
	TokenCount  int    `json:"token_count"`
	TokenBudget int    `json:"token_budget"`
	ItemBudget  int    `json:"item_budget"`
}

// Render flattens the window into prompt text, one line per item, hard-capped
// at the window's token budget. Admission counts item contents only, so the
// cap also covers the bullet and newline overhead added here.
func (w ContextWindow) Render() string {
	if len(w.Items) == 0 {
		return ""
	}
	out := ""
	for i, item := range w.Items {
		if i > 0 {
			out += "\n"
		}
		out += "- " + item.Content
	}
	if w.TokenBudget > 0 {
		out = token.Truncate(out, w.TokenBudget)
	}
	return out
}
