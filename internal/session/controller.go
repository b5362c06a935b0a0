package session

import (
	"context"
	"fmt"
	"time"

	"yuanfang/internal/compose"
	"yuanfang/internal/dispatch"
	yferrors "yuanfang/internal/errors"
	"yuanfang/internal/intent"
	"yuanfang/internal/logging"
	"yuanfang/internal/memory"
	"yuanfang/internal/store"
	"yuanfang/internal/tools/builtin"
)

// Observer receives lifecycle events for metrics. All methods must be
// non-blocking.
type Observer interface {
	ObserveStage(stage Stage, elapsed time.Duration)
	TurnFailed(reason string)
	ToolInvoked(tool, status string, elapsed time.Duration)
	SessionOpened()
	SessionClosed()
}

type nopObserver struct{}

func (nopObserver) ObserveStage(Stage, time.Duration)         {}
func (nopObserver) TurnFailed(string)                         {}
func (nopObserver) ToolInvoked(string, string, time.Duration) {}
func (nopObserver) SessionOpened()                            {}
func (nopObserver) SessionClosed()                            {}

// TurnOutcome is what a delivered turn hands back to the caller.
type TurnOutcome struct {
	TurnID    string   `json:"turn_id"`
	SessionID string   `json:"session_id"`
	Reply     string   `json:"reply"`
	Emotion   string   `json:"emotion"`
	Valence   float64  `json:"valence"`
	Degraded  bool     `json:"degraded,omitempty"`
	Actions   []string `json:"actions,omitempty"`
}

// Controller drives utterances through the turn pipeline: emotion read,
// intent resolution, tool dispatch, composition, memory commit, delivery.
type Controller struct {
	sessions   *Registry
	router     *intent.Router
	dispatcher *dispatch.Dispatcher
	composer   *compose.Composer
	memory     *memory.Manager
	store      store.Store
	observer   Observer
	logger     logging.Logger
	now        func() time.Time
}

func NewController(
	sessions *Registry,
	router *intent.Router,
	dispatcher *dispatch.Dispatcher,
	composer *compose.Composer,
	mem *memory.Manager,
	st store.Store,
	observer Observer,
	logger logging.Logger,
) *Controller {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Controller{
		sessions:   sessions,
		router:     router,
		dispatcher: dispatcher,
		composer:   composer,
		memory:     mem,
		store:      st,
		observer:   observer,
		logger:     logging.OrNop(logger),
		now:        time.Now,
	}
}

// OpenSession starts a new conversation.
func (c *Controller) OpenSession() *Session {
	sess := c.sessions.Open()
	c.observer.SessionOpened()
	c.logger.Info("session %s opened", sess.ID)
	return sess
}

// CloseSession cancels the session's in-flight turn, evicts its short-term
// memory, and drops it from the registry. Already-promoted durable memory
// is kept.
func (c *Controller) CloseSession(sessionID string) error {
	sess, err := c.sessions.Close(sessionID)
	if err != nil {
		return err
	}
	c.memory.CloseSession(sess.ID)
	c.observer.SessionClosed()
	c.logger.Info("session %s closed", sess.ID)
	return nil
}

// GetSession looks up a live session.
func (c *Controller) GetSession(sessionID string) (*Session, error) {
	return c.sessions.Get(sessionID)
}

// Emotions returns the session's recorded emotion trail, newest first.
func (c *Controller) Emotions(ctx context.Context, sessionID string, limit int) ([]store.EmotionLog, error) {
	if c.store == nil {
		return nil, nil
	}
	return c.store.ListEmotions(ctx, sessionID, limit)
}

// SubmitUtterance runs one turn end to end and returns the reply. Turns of
// the same session are serialized; concurrent callers queue. A clarification
// for an ambiguous utterance and a degraded reply after tool failures are
// both delivered normally; only session closure and infrastructure faults
// surface as errors.
func (c *Controller) SubmitUtterance(ctx context.Context, sessionID, utterance string) (*TurnOutcome, error) {
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.writer.Lock()
	defer sess.writer.Unlock()

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	turn := sess.beginTurn(utterance, cancel, c.now)
	if turn == nil {
		return nil, &yferrors.SessionClosedError{SessionID: sessionID}
	}
	defer func() { sess.endTurn(c.now()) }()

	outcome, err := c.runTurn(turnCtx, sess, turn, utterance)
	if turn.Stage == StageFailed {
		c.observer.TurnFailed(turn.FailReason)
	}
	c.observer.ObserveStage(turn.Stage, turn.Elapsed())
	return outcome, err
}

func (c *Controller) runTurn(ctx context.Context, sess *Session, turn *Turn, utterance string) (*TurnOutcome, error) {
	signal := builtin.AnalyzeEmotion(utterance)

	window, err := c.memory.BuildContext(ctx, sess.ID, utterance)
	if err != nil {
		// Context retrieval is best-effort; the turn proceeds without it.
		c.logger.Warn("turn %s: context retrieval failed: %v", turn.ID, err)
	}

	plan, err := c.router.Resolve(ctx, utterance, window.Render())
	if err != nil {
		if yferrors.IsIntentAmbiguous(err) {
			return c.deliverClarification(ctx, sess, turn, utterance, signal)
		}
		turn.fail("intent_resolution")
		return nil, err
	}
	c.mustAdvance(turn, StageIntentResolved)

	aggregate, dispatchErr := c.dispatcher.Execute(ctx, turn.ID, plan)
	if closed := c.checkClosed(ctx, sess, turn); closed != nil {
		return nil, closed
	}
	if dispatchErr != nil && !yferrors.IsAllToolsFailed(dispatchErr) {
		turn.fail("dispatch")
		return nil, dispatchErr
	}
	if dispatchErr != nil {
		c.logger.Warn("turn %s: all tools failed, composing degraded reply", turn.ID)
	}
	if aggregate != nil {
		for _, inv := range aggregate.Invocations {
			c.observer.ToolInvoked(inv.Entry.Tool, string(inv.Status), inv.FinishedAt.Sub(inv.StartedAt))
		}
	}
	c.mustAdvance(turn, StageToolsDispatched)
	c.mustAdvance(turn, StageResultsAggregated)

	reply, degraded := c.composer.Compose(ctx, utterance, aggregate, signal, window.Render())
	c.mustAdvance(turn, StageResponseComposed)

	// Memory commits before delivery; a closed session keeps whatever was
	// already committed.
	if err := c.commitMemory(ctx, sess, turn, utterance, reply, signal, aggregate); err != nil {
		c.logger.Warn("turn %s: memory commit degraded: %v", turn.ID, err)
	}
	c.mustAdvance(turn, StageMemoryUpdated)

	if closed := c.checkClosed(ctx, sess, turn); closed != nil {
		return nil, closed
	}

	c.recordEmotion(ctx, sess.ID, utterance, signal)
	c.mustAdvance(turn, StageDelivered)

	outcome := &TurnOutcome{
		TurnID:    turn.ID,
		SessionID: sess.ID,
		Reply:     reply,
		Emotion:   signal.Label,
		Valence:   signal.Valence,
		Degraded:  degraded || dispatchErr != nil,
	}
	if aggregate != nil {
		for _, result := range aggregate.SuccessResults() {
			outcome.Actions = append(outcome.Actions, result.Content)
		}
	}
	return outcome, nil
}

// deliverClarification handles an ambiguous utterance: the turn is recorded
// as failed but the user still gets a clarifying reply.
func (c *Controller) deliverClarification(ctx context.Context, sess *Session, turn *Turn, utterance string, signal builtin.EmotionSignal) (*TurnOutcome, error) {
	reply := c.composer.ClarificationReply(utterance)
	if err := c.commitMemory(ctx, sess, turn, utterance, reply, signal, nil); err != nil {
		c.logger.Warn("turn %s: memory commit degraded: %v", turn.ID, err)
	}
	c.recordEmotion(ctx, sess.ID, utterance, signal)
	turn.fail("intent_ambiguous")
	return &TurnOutcome{
		TurnID:    turn.ID,
		SessionID: sess.ID,
		Reply:     reply,
		Emotion:   signal.Label,
		Valence:   signal.Valence,
		Degraded:  true,
	}, nil
}

func (c *Controller) commitMemory(ctx context.Context, sess *Session, turn *Turn, utterance, reply string, signal builtin.EmotionSignal, aggregate *dispatch.AggregatedResult) error {
	items := []memory.Item{{
		Content: fmt.Sprintf("user: %s | assistant: %s", utterance, reply),
		Kind:    memory.KindTurnSummary,
		Valence: signal.Valence,
	}}
	if aggregate != nil {
		for _, result := range aggregate.SuccessResults() {
			items = append(items, memory.Item{
				Content: result.Content,
				Kind:    memory.KindFact,
			})
		}
	}
	return c.memory.Commit(ctx, sess.ID, turn.ID, items)
}

func (c *Controller) recordEmotion(ctx context.Context, sessionID, utterance string, signal builtin.EmotionSignal) {
	if c.store == nil {
		return
	}
	entry := store.EmotionLog{
		UserID:  sessionID,
		Emotion: signal.Label,
		Valence: signal.Valence,
		Context: utterance,
	}
	if err := c.store.RecordEmotion(ctx, entry); err != nil {
		c.logger.Warn("emotion log failed for session %s: %v", sessionID, err)
	}
}

// checkClosed converts a mid-turn cancellation caused by session closure
// into SessionClosed; memory already committed is not rolled back.
func (c *Controller) checkClosed(ctx context.Context, sess *Session, turn *Turn) error {
	if ctx.Err() == nil {
		return nil
	}
	if sess.Status() == StatusClosed {
		turn.fail("session_closed")
		return &yferrors.SessionClosedError{SessionID: sess.ID}
	}
	turn.fail("cancelled")
	return ctx.Err()
}

func (c *Controller) mustAdvance(turn *Turn, stage Stage) {
	if err := turn.advance(stage); err != nil {
		c.logger.Error("turn state: %v", err)
	}
}
