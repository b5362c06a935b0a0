// Package errors defines the error taxonomy of the agent pipeline and the
// transient/permanent classification used by retry logic. None of these
// conditions are fatal to the process: every one of them maps to a degraded
// but user-visible outcome for a single turn.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// IntentAmbiguousError reports that no tool cleared the routing confidence
// threshold and the classifier fallback also failed to disambiguate. The
// caller must ask the user for clarification rather than guess.
type IntentAmbiguousError struct {
	Utterance string
}

func (e *IntentAmbiguousError) Error() string {
	return fmt.Sprintf("intent ambiguous: no tool matched %q", e.Utterance)
}

// ToolInvocationFailedError wraps a single tool failure. The dispatcher
// retries once with identical arguments before recording the invocation as
// failed; the turn itself continues.
type ToolInvocationFailedError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationFailedError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolInvocationFailedError) Unwrap() error { return e.Err }

// AllToolsFailedError is returned by the dispatcher when every invocation in
// a plan ended in a non-success terminal status. The turn degrades to a
// templated reply instead of aborting.
type AllToolsFailedError struct {
	Failures []error
}

func (e *AllToolsFailedError) Error() string {
	return fmt.Sprintf("all %d tool invocations failed", len(e.Failures))
}

// GenerationUnavailableError covers provider timeouts and non-2xx responses
// from the language-generation provider as a single condition.
type GenerationUnavailableError struct {
	Err error
}

func (e *GenerationUnavailableError) Error() string {
	return fmt.Sprintf("generation unavailable: %v", e.Err)
}

func (e *GenerationUnavailableError) Unwrap() error { return e.Err }

// MemoryStoreUnavailableError marks a durable memory store failure. The
// session falls back to ephemeral session-only memory for its remainder.
type MemoryStoreUnavailableError struct {
	Err error
}

func (e *MemoryStoreUnavailableError) Error() string {
	return fmt.Sprintf("memory store unavailable: %v", e.Err)
}

func (e *MemoryStoreUnavailableError) Unwrap() error { return e.Err }

// SessionClosedError indicates the session was closed while a turn was in
// flight. Fatal to that turn only; committed memory writes stay.
type SessionClosedError struct {
	SessionID string
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("session %s closed", e.SessionID)
}

// IsIntentAmbiguous reports whether err is an IntentAmbiguousError.
func IsIntentAmbiguous(err error) bool {
	var target *IntentAmbiguousError
	return errors.As(err, &target)
}

// IsAllToolsFailed reports whether err is an AllToolsFailedError.
func IsAllToolsFailed(err error) bool {
	var target *AllToolsFailedError
	return errors.As(err, &target)
}

// IsGenerationUnavailable reports whether err is a GenerationUnavailableError.
func IsGenerationUnavailable(err error) bool {
	var target *GenerationUnavailableError
	return errors.As(err, &target)
}

// IsMemoryStoreUnavailable reports whether err is a MemoryStoreUnavailableError.
func IsMemoryStoreUnavailable(err error) bool {
	var target *MemoryStoreUnavailableError
	return errors.As(err, &target)
}

// IsSessionClosed reports whether err is a SessionClosedError.
func IsSessionClosed(err error) bool {
	var target *SessionClosedError
	return errors.As(err, &target)
}

// TransientError marks an error as retry-able.
type TransientError struct {
	Err        error
	StatusCode int // HTTP status code if applicable
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks an error as non-retry-able.
type PermanentError struct {
	Err        error
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient checks if an error is retry-able.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}
	// Domain conditions are handled by degradation, never by blind retry.
	if IsIntentAmbiguous(err) || IsAllToolsFailed(err) || IsSessionClosed(err) {
		return false
	}

	if isNetworkError(err) {
		return true
	}
	if isSyscallError(err) {
		return true
	}

	lower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "temporarily unavailable", "connection reset", "too many requests", "status 429", "status 500", "status 502", "status 503", "status 504"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// IsPermanent checks if an error is non-retry-able.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return true
	}
	if IsTransient(err) {
		return false
	}

	lower := strings.ToLower(err.Error())
	for _, pattern := range []string{"not found", "permission denied", "invalid", "unauthorized", "forbidden", "bad request"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isSyscallError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE)
}
