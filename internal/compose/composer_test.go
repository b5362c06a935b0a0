package compose

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"yuanfang/internal/dispatch"
	"yuanfang/internal/intent"
	"yuanfang/internal/llm"
	"yuanfang/internal/tools"
	"yuanfang/internal/tools/builtin"
)

func aggregateWith(results ...*tools.ToolResult) *dispatch.AggregatedResult {
	aggregate := &dispatch.AggregatedResult{TurnID: "turn-1"}
	for i, result := range results {
		status := dispatch.StatusSucceeded
		if result == nil {
			status = dispatch.StatusFailed
		}
		aggregate.Invocations = append(aggregate.Invocations, &dispatch.Invocation{
			Entry:  intent.PlanEntry{ID: fmt.Sprintf("e%d", i), Tool: "task_management"},
			Status: status,
			Result: result,
		})
	}
	return aggregate
}

func TestSelectTone(t *testing.T) {
	cases := []struct {
		signal  builtin.EmotionSignal
		actions bool
		want    Tone
	}{
		{builtin.EmotionSignal{Label: "stressed", Valence: -0.8}, true, ToneEmpathetic},
		{builtin.EmotionSignal{Label: "sad", Valence: -0.3}, false, ToneEmpathetic},
		{builtin.EmotionSignal{Label: "neutral", Valence: 0}, true, ToneDirective},
		{builtin.EmotionSignal{Label: "neutral", Valence: 0}, false, ToneNeutral},
		{builtin.EmotionSignal{Label: "happy", Valence: 0.7}, true, ToneNeutral},
	}
	for _, tc := range cases {
		if got := SelectTone(tc.signal, tc.actions); got != tc.want {
			t.Errorf("SelectTone(%+v, %v) = %s, want %s", tc.signal, tc.actions, got, tc.want)
		}
	}
}

func TestComposeUsesProvider(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "Done! Task 42 now belongs to Ana."}, nil
		},
	}
	c := NewComposer(client, nil)

	reply, degraded := c.Compose(context.Background(), "assign task 42 to Ana",
		aggregateWith(&tools.ToolResult{Content: "assigned task #42 to Ana"}),
		builtin.EmotionSignal{Label: "neutral"}, "")
	if degraded {
		t.Fatal("should not degrade with a healthy provider")
	}
	if !strings.Contains(reply, "Ana") {
		t.Fatalf("reply = %q", reply)
	}

	// The prompt must carry the tool results.
	requests := client.Requests()
	if len(requests) != 1 {
		t.Fatalf("requests = %d", len(requests))
	}
	if !strings.Contains(requests[0].Messages[0].Content, "assigned task #42 to Ana") {
		t.Fatalf("prompt missing tool results: %q", requests[0].Messages[0].Content)
	}
}

func TestComposeFallsBackOnProviderFailure(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, fmt.Errorf("provider down")
		},
	}
	c := NewComposer(client, nil)

	reply, degraded := c.Compose(context.Background(), "assign task 42 to Ana",
		aggregateWith(&tools.ToolResult{Content: "assigned task #42 to Ana"}),
		builtin.EmotionSignal{Label: "neutral"}, "")
	if !degraded {
		t.Fatal("expected degraded reply")
	}
	if !strings.Contains(reply, "assigned task #42 to Ana") {
		t.Fatalf("fallback should carry tool output: %q", reply)
	}
	if strings.TrimSpace(reply) == "" {
		t.Fatal("reply must never be empty")
	}
}

func TestComposeApologyWhenEverythingFailed(t *testing.T) {
	c := NewComposer(nil, nil)

	reply, degraded := c.Compose(context.Background(), "assign task 42 to Ana",
		aggregateWith(nil, nil), builtin.EmotionSignal{Label: "neutral"}, "")
	if !degraded {
		t.Fatal("expected degraded reply")
	}
	if !strings.Contains(reply, "sorry") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestComposeEmpatheticPrefix(t *testing.T) {
	c := NewComposer(nil, nil)

	reply, _ := c.Compose(context.Background(), "I'm so stressed",
		aggregateWith(&tools.ToolResult{Content: "detected emotion stressed"}),
		builtin.EmotionSignal{Label: "stressed", Valence: -0.8}, "")
	if !strings.Contains(reply, "I hear you") {
		t.Fatalf("empathetic reply = %q", reply)
	}
}

func TestComposeMentionsPartialFailures(t *testing.T) {
	c := NewComposer(nil, nil)

	reply, _ := c.Compose(context.Background(), "do both",
		aggregateWith(&tools.ToolResult{Content: "first ok"}, nil),
		builtin.EmotionSignal{Label: "neutral"}, "")
	if !strings.Contains(reply, "could not be completed") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestClarificationReply(t *testing.T) {
	c := NewComposer(nil, nil)
	reply := c.ClarificationReply("do the thing")
	if !strings.Contains(reply, `"do the thing"`) || !strings.Contains(reply, "rephrase") {
		t.Fatalf("clarification = %q", reply)
	}
}
