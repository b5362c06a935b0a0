package tools

import "testing"

func TestValidateArguments(t *testing.T) {
	schema := ParameterSchema{
		Type: "object",
		Properties: map[string]Property{
			"action":  {Type: "string", Enum: []any{"create", "query"}},
			"task_id": {Type: "integer"},
			"urgent":  {Type: "boolean"},
		},
		Required: []string{"action"},
	}

	cases := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"action": "create", "task_id": 42.0}, false},
		{"digit string id", map[string]any{"action": "create", "task_id": "42"}, false},
		{"missing required", map[string]any{"task_id": 42.0}, true},
		{"wrong type", map[string]any{"action": "create", "task_id": "soon"}, true},
		{"enum violation", map[string]any{"action": "destroy"}, true},
		{"unknown key passes", map[string]any{"action": "query", "extra": "x"}, false},
		{"bool ok", map[string]any{"action": "query", "urgent": true}, false},
	}
	for _, tc := range cases {
		err := schema.ValidateArguments(tc.args)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"name":    "  Ana ",
		"id":      float64(42),
		"id_str":  "17",
		"enabled": "true",
	}
	if got := StringArg(args, "name", ""); got != "Ana" {
		t.Fatalf("StringArg = %q", got)
	}
	if got := StringArg(args, "missing", "fallback"); got != "fallback" {
		t.Fatalf("StringArg fallback = %q", got)
	}
	if got, err := Int64Arg(args, "id"); err != nil || got != 42 {
		t.Fatalf("Int64Arg(id) = %d, %v", got, err)
	}
	if got, err := Int64Arg(args, "id_str"); err != nil || got != 17 {
		t.Fatalf("Int64Arg(id_str) = %d, %v", got, err)
	}
	if _, err := Int64Arg(args, "name"); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
	if !BoolArg(args, "enabled", false) {
		t.Fatal("BoolArg(enabled) = false")
	}
	if BoolArg(args, "missing", false) {
		t.Fatal("BoolArg fallback should be false")
	}
}

func TestNewCallID(t *testing.T) {
	a, b := NewCallID(), NewCallID()
	if a == b {
		t.Fatal("call IDs should be unique")
	}
	if len(a) < 10 {
		t.Fatalf("call ID too short: %q", a)
	}
}
