// Package dispatch executes resolved plans against the tool registry:
// concurrent within a stage, sequential across dependency stages, with
// per-call timeouts, one retry, and partial-failure aggregation.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"yuanfang/internal/config"
	yferrors "yuanfang/internal/errors"
	"yuanfang/internal/intent"
	"yuanfang/internal/logging"
	"yuanfang/internal/tools"
)

// dispatchedTurns bounds the double-dispatch guard; turn IDs older than the
// cap have long since finished and can be forgotten.
const dispatchedTurns = 1024

// InvocationStatus tracks one invocation through its lifecycle.
type InvocationStatus string

const (
	StatusPending   InvocationStatus = "pending"
	StatusRunning   InvocationStatus = "running"
	StatusSucceeded InvocationStatus = "succeeded"
	StatusFailed    InvocationStatus = "failed"
	StatusTimedOut  InvocationStatus = "timed_out"
)

// Terminal reports whether the status is final.
func (s InvocationStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// Invocation is the record of one plan entry's execution. Result is set
// atomically with the terminal status transition.
type Invocation struct {
	Entry      intent.PlanEntry
	Status     InvocationStatus
	Result     *tools.ToolResult
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// AggregatedResult collects every invocation of one dispatched plan.
type AggregatedResult struct {
	TurnID      string
	Invocations []*Invocation
}

// Succeeded counts invocations that ended in success.
func (a *AggregatedResult) Succeeded() int {
	n := 0
	for _, inv := range a.Invocations {
		if inv.Status == StatusSucceeded {
			n++
		}
	}
	return n
}

// SuccessResults returns the results of succeeded invocations in plan order.
func (a *AggregatedResult) SuccessResults() []*tools.ToolResult {
	var out []*tools.ToolResult
	for _, inv := range a.Invocations {
		if inv.Status == StatusSucceeded && inv.Result != nil {
			out = append(out, inv.Result)
		}
	}
	return out
}

// Registry resolves tool names. Satisfied by toolregistry.Registry.
type Registry interface {
	Get(name string) (tools.Tool, error)
}

// Dispatcher executes plans. Safe for concurrent use across turns.
type Dispatcher struct {
	registry      Registry
	cache         *resultCache
	timeout       time.Duration
	maxConcurrent int
	logger        logging.Logger

	dispatched *lru.Cache[string, struct{}]
}

// NewDispatcher builds a Dispatcher from the dispatch configuration. A
// CacheSize of 0 disables result caching for idempotent tools; a
// MaxConcurrent of 0 leaves stage concurrency unbounded.
func NewDispatcher(registry Registry, cfg config.DispatchConfig, logger logging.Logger) (*Dispatcher, error) {
	timeout := cfg.ToolTimeout
	if timeout <= 0 {
		timeout = config.DefaultToolTimeout
	}
	dispatched, err := lru.New[string, struct{}](dispatchedTurns)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		registry:      registry,
		timeout:       timeout,
		maxConcurrent: cfg.MaxConcurrent,
		logger:        logging.OrNop(logger),
		dispatched:    dispatched,
	}
	if cfg.CacheSize > 0 {
		cache, err := newResultCache(cfg.CacheSize, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		d.cache = cache
	}
	return d, nil
}

// Execute runs the plan for a turn. Independent entries of a stage run
// concurrently; a dependent entry receives its predecessor's content under
// the "context" argument. The aggregate carries exactly one terminal
// invocation per plan entry. When every invocation fails the aggregate is
// still returned, alongside an AllToolsFailedError.
func (d *Dispatcher) Execute(ctx context.Context, turnID string, plan intent.ExecutionPlan) (*AggregatedResult, error) {
	if seen, _ := d.dispatched.ContainsOrAdd(turnID, struct{}{}); seen {
		return nil, fmt.Errorf("plan already dispatched for turn %s", turnID)
	}

	aggregate := &AggregatedResult{TurnID: turnID}
	byEntry := map[string]*Invocation{}
	for _, entry := range plan.Entries {
		inv := &Invocation{Entry: entry, Status: StatusPending}
		aggregate.Invocations = append(aggregate.Invocations, inv)
		byEntry[entry.ID] = inv
	}

	for _, stage := range plan.Stages() {
		var g errgroup.Group
		if d.maxConcurrent > 0 {
			g.SetLimit(d.maxConcurrent)
		}
		for _, entry := range stage {
			inv := byEntry[entry.ID]
			if pred, ok := byEntry[entry.DependsOn]; ok {
				d.feedPredecessor(inv, pred)
			}
			g.Go(func() error {
				d.run(ctx, turnID, inv)
				return nil
			})
		}
		// Stage goroutines never return errors; failures live on the
		// invocation records so siblings are never aborted.
		_ = g.Wait()
	}

	var failures []error
	for _, inv := range aggregate.Invocations {
		if inv.Status != StatusSucceeded && inv.Err != nil {
			failures = append(failures, inv.Err)
		}
	}
	if len(plan.Entries) > 0 && aggregate.Succeeded() == 0 {
		return aggregate, &yferrors.AllToolsFailedError{Failures: failures}
	}
	return aggregate, nil
}

// feedPredecessor copies the predecessor's content into the dependent
// entry's arguments without mutating the shared plan.
func (d *Dispatcher) feedPredecessor(inv, pred *Invocation) {
	if pred.Status != StatusSucceeded || pred.Result == nil {
		return
	}
	args := make(map[string]any, len(inv.Entry.Arguments)+1)
	for k, v := range inv.Entry.Arguments {
		args[k] = v
	}
	args["context"] = pred.Result.Content
	if args["content"] == nil || args["content"] == "" {
		args["content"] = pred.Result.Content
	}
	inv.Entry.Arguments = args
}

func (d *Dispatcher) run(ctx context.Context, turnID string, inv *Invocation) {
	inv.Status = StatusRunning
	inv.StartedAt = time.Now()

	tool, err := d.registry.Get(inv.Entry.Tool)
	if err != nil {
		d.finish(inv, nil, &yferrors.ToolInvocationFailedError{Tool: inv.Entry.Tool, Err: err}, StatusFailed)
		return
	}

	timeout := d.timeout
	if meta := tool.Metadata(); meta.Timeout > 0 && meta.Timeout < timeout {
		timeout = meta.Timeout
	}

	call := tools.ToolCall{
		ID:        tools.NewCallID(),
		Name:      inv.Entry.Tool,
		Arguments: inv.Entry.Arguments,
		TurnID:    turnID,
	}

	idempotent := tool.Metadata().Idempotent
	if idempotent && d.cache != nil {
		if cached, ok := d.cache.lookup(call); ok {
			d.logger.Debug("dispatch: cache hit for %s", call.Name)
			result := *cached
			result.CallID = call.ID
			d.finish(inv, &result, nil, StatusSucceeded)
			return
		}
	}

	result, err := d.invokeOnce(ctx, tool, call, timeout)
	if err != nil && ctx.Err() == nil && !isDeadline(err) {
		// Retry once with identical arguments.
		d.logger.Debug("dispatch: retrying %s after error: %v", call.Name, err)
		result, err = d.invokeOnce(ctx, tool, call, timeout)
	}

	switch {
	case err == nil:
		if idempotent && d.cache != nil {
			d.cache.store(call, result)
		}
		d.finish(inv, result, nil, StatusSucceeded)
	case isDeadline(err):
		d.logger.Warn("dispatch: %s timed out after %s", call.Name, timeout)
		d.finish(inv, nil, &yferrors.ToolInvocationFailedError{Tool: call.Name, Err: err}, StatusTimedOut)
	default:
		d.logger.Warn("dispatch: %s failed: %v", call.Name, err)
		d.finish(inv, nil, &yferrors.ToolInvocationFailedError{Tool: call.Name, Err: err}, StatusFailed)
	}
}

func (d *Dispatcher) invokeOnce(ctx context.Context, tool tools.Tool, call tools.ToolCall, timeout time.Duration) (*tools.ToolResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := tool.Execute(callCtx, call)
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// finish attaches the result and terminal status atomically with respect to
// readers of the aggregate, which only run after Execute returns.
func (d *Dispatcher) finish(inv *Invocation, result *tools.ToolResult, err error, status InvocationStatus) {
	inv.Result = result
	inv.Err = err
	inv.Status = status
	inv.FinishedAt = time.Now()
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
