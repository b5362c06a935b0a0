package token

import "testing"

func TestEstimateFast(t *testing.T) {
	cases := []struct {
		text string
		min  int
	}{
		{"", 0},
		{"   ", 0},
		{"a", 1},
		{"assign task 42 to Ana", 5},
	}
	for _, tc := range cases {
		if got := EstimateFast(tc.text); got < tc.min {
			t.Fatalf("EstimateFast(%q) = %d, want >= %d", tc.text, got, tc.min)
		}
	}
}

func TestCountIsPositiveForText(t *testing.T) {
	if got := Count("the quarterly report is overdue"); got <= 0 {
		t.Fatalf("expected positive count, got %d", got)
	}
	if got := Count(""); got != 0 {
		t.Fatalf("expected zero count for empty text, got %d", got)
	}
}

func TestTruncateBounds(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	truncated := Truncate(text, 3)
	if len(truncated) >= len(text) {
		t.Fatalf("expected truncation to shorten text")
	}
	if got := Truncate(text, 0); got != text {
		t.Fatalf("zero budget must return input unchanged")
	}
}
