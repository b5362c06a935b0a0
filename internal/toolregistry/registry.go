// Package toolregistry indexes the tool set by name and serves definitions
// to the intent router.
package toolregistry

import (
	"fmt"
	"sort"
	"sync"

	"yuanfang/internal/tools"
)

// Registry holds the closed builtin tool set plus any dynamically registered
// extensions.
type Registry struct {
	static  map[string]tools.Tool
	dynamic map[string]tools.Tool
	mu      sync.RWMutex
}

// NewRegistry builds a registry over the given builtin tools.
func NewRegistry(builtins ...tools.Tool) (*Registry, error) {
	r := &Registry{
		static:  make(map[string]tools.Tool),
		dynamic: make(map[string]tools.Tool),
	}
	for _, tool := range builtins {
		name := tool.Metadata().Name
		if _, exists := r.static[name]; exists {
			return nil, fmt.Errorf("duplicate builtin tool: %s", name)
		}
		r.static[name] = tool
	}
	return r, nil
}

// Register adds a dynamic tool. Builtin names cannot be shadowed.
func (r *Registry) Register(tool tools.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Metadata().Name
	if _, exists := r.static[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	if _, exists := r.dynamic[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	r.dynamic[name] = tool
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (tools.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool, ok := r.static[name]; ok {
		return tool, nil
	}
	if tool, ok := r.dynamic[name]; ok {
		return tool, nil
	}
	return nil, fmt.Errorf("tool not found: %s", name)
}

// List returns all tool definitions sorted by name. The intent router
// matches utterances against these.
func (r *Registry) List() []tools.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tools.ToolDefinition, 0, len(r.static)+len(r.dynamic))
	for _, tool := range r.static {
		out = append(out, tool.Definition())
	}
	for _, tool := range r.dynamic {
		out = append(out, tool.Definition())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
