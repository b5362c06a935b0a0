package session

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// Stage is one step of the turn lifecycle. A turn moves strictly forward
// through the stages and ends either Delivered or Failed.
type Stage string

const (
	StageReceived          Stage = "received"
	StageIntentResolved    Stage = "intent_resolved"
	StageToolsDispatched   Stage = "tools_dispatched"
	StageResultsAggregated Stage = "results_aggregated"
	StageResponseComposed  Stage = "response_composed"
	StageMemoryUpdated     Stage = "memory_updated"
	StageDelivered         Stage = "delivered"
	StageFailed            Stage = "failed"
)

var stageOrder = map[Stage]int{
	StageReceived:          0,
	StageIntentResolved:    1,
	StageToolsDispatched:   2,
	StageResultsAggregated: 3,
	StageResponseComposed:  4,
	StageMemoryUpdated:     5,
	StageDelivered:         6,
}

// Terminal reports whether the stage ends the turn.
func (s Stage) Terminal() bool {
	return s == StageDelivered || s == StageFailed
}

// Transition records when a turn entered a stage.
type Transition struct {
	Stage Stage     `json:"stage"`
	At    time.Time `json:"at"`
}

// Turn tracks one utterance through the pipeline.
type Turn struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Seq         int          `json:"seq"`
	Utterance   string       `json:"utterance"`
	Stage       Stage        `json:"stage"`
	FailReason  string       `json:"fail_reason,omitempty"`
	Transitions []Transition `json:"transitions"`

	now func() time.Time
}

func newTurn(sessionID string, seq int, utterance string, now func() time.Time) *Turn {
	if now == nil {
		now = time.Now
	}
	t := &Turn{
		ID:        "turn_" + ksuid.New().String(),
		SessionID: sessionID,
		Seq:       seq,
		Utterance: utterance,
		now:       now,
	}
	t.Stage = StageReceived
	t.Transitions = []Transition{{Stage: StageReceived, At: t.monotonic()}}
	return t
}

// advance moves the turn to the next stage. Skipping backward or leaving a
// terminal stage is a programming error and is rejected.
func (t *Turn) advance(next Stage) error {
	if t.Stage.Terminal() {
		return fmt.Errorf("turn %s: cannot leave terminal stage %s", t.ID, t.Stage)
	}
	cur := stageOrder[t.Stage]
	pos, known := stageOrder[next]
	if !known || pos <= cur {
		return fmt.Errorf("turn %s: invalid transition %s -> %s", t.ID, t.Stage, next)
	}
	t.Stage = next
	t.Transitions = append(t.Transitions, Transition{Stage: next, At: t.monotonic()})
	return nil
}

// fail ends the turn with a reason. Failing an already-terminal turn is a
// no-op so late cancellation never clobbers a delivered reply.
func (t *Turn) fail(reason string) {
	if t.Stage.Terminal() {
		return
	}
	t.Stage = StageFailed
	t.FailReason = reason
	t.Transitions = append(t.Transitions, Transition{Stage: StageFailed, At: t.monotonic()})
}

// monotonic returns a timestamp never earlier than the last transition, so
// the trail stays ordered even under clock adjustments.
func (t *Turn) monotonic() time.Time {
	ts := t.now()
	if n := len(t.Transitions); n > 0 && ts.Before(t.Transitions[n-1].At) {
		ts = t.Transitions[n-1].At
	}
	return ts
}

// Elapsed is the time from receipt to the latest transition.
func (t *Turn) Elapsed() time.Duration {
	if len(t.Transitions) < 2 {
		return 0
	}
	return t.Transitions[len(t.Transitions)-1].At.Sub(t.Transitions[0].At)
}
