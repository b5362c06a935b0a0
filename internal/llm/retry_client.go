package llm

import (
	"context"
	"time"

	yferrors "yuanfang/internal/errors"
	"yuanfang/internal/logging"
)

// retryClient wraps a Client with transient-error retry.
type retryClient struct {
	inner  Client
	config yferrors.RetryConfig
	logger logging.Logger
}

// NewRetryClient wraps client with exponential backoff retry on transient
// failures. Permanent provider errors pass through untouched.
func NewRetryClient(client Client, config yferrors.RetryConfig) Client {
	if config.MaxAttempts <= 0 {
		config = yferrors.DefaultRetryConfig()
		config.MaxAttempts = 2
		config.BaseDelay = 500 * time.Millisecond
	}
	return &retryClient{
		inner:  client,
		config: config,
		logger: logging.NewComponentLogger("llm.retry"),
	}
}

func (c *retryClient) Model() string { return c.inner.Model() }

func (c *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	err := yferrors.RetryWithLog(ctx, c.config, func(ctx context.Context) error {
		var innerErr error
		resp, innerErr = c.inner.Complete(ctx, req)
		return innerErr
	}, c.logger)
	if err != nil {
		// Exhausted retries collapse into a single condition for callers,
		// which all degrade rather than fail.
		return nil, &yferrors.GenerationUnavailableError{Err: err}
	}
	return resp, nil
}
