package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	yferrors "yuanfang/internal/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIClientComplete(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		var req oaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model %s", req.Model)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"content": "hello there"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10},
		})
	})

	client, err := NewOpenAIClient(Config{Model: "test-model", APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != "hello there" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestOpenAIClientClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}

	for _, tc := range cases {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		client, err := NewOpenAIClient(Config{Model: "m", BaseURL: server.URL})
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		_, err = client.Complete(context.Background(), CompletionRequest{})
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := yferrors.IsTransient(err); got != tc.wantTransient {
			t.Fatalf("status %d: IsTransient = %v, want %v", tc.status, got, tc.wantTransient)
		}
	}
}

func TestRetryClientRecoversFromTransient(t *testing.T) {
	calls := 0
	mock := &MockClient{CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
		calls++
		if calls == 1 {
			return nil, &yferrors.TransientError{Err: context.DeadlineExceeded}
		}
		return &CompletionResponse{Content: "recovered"}, nil
	}}

	client := NewRetryClient(mock, yferrors.RetryConfig{MaxAttempts: 2, BaseDelay: 1, MaxDelay: 1})
	resp, err := client.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != "recovered" || calls != 2 {
		t.Fatalf("expected recovery on second call, calls=%d resp=%+v", calls, resp)
	}
}

func TestRetryClientReportsGenerationUnavailable(t *testing.T) {
	mock := &MockClient{CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
		return nil, &yferrors.TransientError{Err: context.DeadlineExceeded}
	}}

	client := NewRetryClient(mock, yferrors.RetryConfig{MaxAttempts: 2, BaseDelay: 1, MaxDelay: 1})
	_, err := client.Complete(context.Background(), CompletionRequest{})
	if !yferrors.IsGenerationUnavailable(err) {
		t.Fatalf("err = %v, want GenerationUnavailable", err)
	}
}
