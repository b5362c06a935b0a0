// Package tools defines the tool contract the dispatcher executes and the
// registry serves. Concrete tools live in tools/builtin.
package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

// Tool executes a single tool call.
type Tool interface {
	// Execute runs the tool with the call's arguments.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)

	// Definition returns the tool's schema.
	Definition() ToolDefinition

	// Metadata returns tool metadata.
	Metadata() ToolMetadata
}

// ToolCall is one invocation request routed to a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	SessionID string         `json:"session_id,omitempty"`
	TurnID    string         `json:"turn_id,omitempty"`
}

// NewCallID mints a sortable unique call identifier.
func NewCallID() string {
	return "call_" + ksuid.New().String()
}

// ToolResult is the execution result.
type ToolResult struct {
	CallID    string         `json:"call_id"`
	Content   string         `json:"content"`
	Data      map[string]any `json:"data,omitempty"`
	Err       error          `json:"-"`
	SessionID string         `json:"session_id,omitempty"`
	TurnID    string         `json:"turn_id,omitempty"`
	Elapsed   time.Duration  `json:"elapsed_ms,omitempty"`
}

// ToolDefinition is the tool's schema, also used by the intent router for
// keyword matching.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Keywords    []string        `json:"keywords,omitempty"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ToolMetadata describes dispatch-relevant traits.
type ToolMetadata struct {
	Name       string        `json:"name"`
	Version    string        `json:"version"`
	Category   string        `json:"category"`
	Idempotent bool          `json:"idempotent"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// ParameterSchema is a JSON-schema style argument description.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
}

// ValidateArguments checks the call against the schema's required list and
// property types. Unknown keys pass through untouched.
func (s ParameterSchema) ValidateArguments(args map[string]any) error {
	for _, name := range s.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}
	for name, value := range args {
		prop, ok := s.Properties[name]
		if !ok {
			continue
		}
		if err := prop.check(value); err != nil {
			return fmt.Errorf("argument %q: %w", name, err)
		}
	}
	return nil
}

func (p Property) check(value any) error {
	switch p.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "integer", "number":
		// Router-extracted IDs arrive as digit strings; accept them here the
		// same way Int64Arg does.
		switch v := value.(type) {
		case int, int64, float64:
		case string:
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				return fmt.Errorf("expected %s, got non-numeric string %q", p.Type, v)
			}
		default:
			return fmt.Errorf("expected %s, got %T", p.Type, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	}
	if len(p.Enum) > 0 {
		for _, allowed := range p.Enum {
			if value == allowed {
				return nil
			}
		}
		return fmt.Errorf("value %v not in enum", value)
	}
	return nil
}
