package tools

import (
	"fmt"
	"strconv"
	"strings"
)

// Argument accessors tolerant of JSON decoding and router extraction, where
// numbers arrive as float64 or as digit strings.

// StringArg returns args[key] as a trimmed string, or fallback when absent.
func StringArg(args map[string]any, key, fallback string) string {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Int64Arg returns args[key] as an int64.
func Int64Arg(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("argument %q: expected integer, got %T", key, v)
	}
}

// IntArg is Int64Arg narrowed to int.
func IntArg(args map[string]any, key string) (int, error) {
	n, err := Int64Arg(args, key)
	return int(n), err
}

// BoolArg returns args[key] as a bool, or fallback when absent.
func BoolArg(args map[string]any, key string, fallback bool) bool {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return fallback
		}
		return parsed
	default:
		return fallback
	}
}
