// Package compose turns aggregated tool results, the emotion signal, and the
// memory context into the final reply text.
package compose

import (
	"context"
	"fmt"
	"strings"

	"yuanfang/internal/dispatch"
	"yuanfang/internal/llm"
	"yuanfang/internal/logging"
	"yuanfang/internal/tools"
	"yuanfang/internal/tools/builtin"
)

// Tone shapes the register of the generated reply.
type Tone string

const (
	ToneEmpathetic Tone = "empathetic"
	ToneNeutral    Tone = "neutral"
	ToneDirective  Tone = "directive"
)

// SelectTone maps the emotion signal to a reply tone: distress gets empathy,
// a calm utterance over action results gets a directive register, everything
// else stays neutral.
func SelectTone(signal builtin.EmotionSignal, actionResults bool) Tone {
	if signal.Valence <= -0.3 {
		return ToneEmpathetic
	}
	if signal.Valence < 0.3 && actionResults {
		return ToneDirective
	}
	return ToneNeutral
}

var toneInstructions = map[Tone]string{
	ToneEmpathetic: "The user sounds distressed. Acknowledge their feelings before anything else and keep the tone warm and supportive.",
	ToneNeutral:    "Keep the tone friendly and concise.",
	ToneDirective:  "The user wants things done. Lead with the outcome and any concrete next step.",
}

// Composer builds the generation request and falls back to a deterministic
// template when the provider is unavailable.
type Composer struct {
	llm    llm.Client
	logger logging.Logger
}

// NewComposer builds a Composer. client may be nil, forcing template replies.
func NewComposer(client llm.Client, logger logging.Logger) *Composer {
	return &Composer{llm: client, logger: logging.OrNop(logger)}
}

// Compose produces the reply for one turn. The second return reports whether
// the deterministic fallback was used. The reply is never empty.
func (c *Composer) Compose(ctx context.Context, utterance string, aggregate *dispatch.AggregatedResult, signal builtin.EmotionSignal, contextWindow string) (string, bool) {
	tone := SelectTone(signal, aggregate != nil && aggregate.Succeeded() > 0)

	if c.llm != nil {
		reply, err := c.generate(ctx, utterance, aggregate, signal, contextWindow, tone)
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply, false
		}
		if err != nil {
			c.logger.Warn("compose: generation unavailable, using template: %v", err)
		}
	}
	return c.templated(aggregate, tone), true
}

func (c *Composer) generate(ctx context.Context, utterance string, aggregate *dispatch.AggregatedResult, signal builtin.EmotionSignal, contextWindow string, tone Tone) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("You are Yuanfang, a team-collaboration assistant. Compose one coherent reply to the user.\n")
	prompt.WriteString(toneInstructions[tone])
	prompt.WriteString("\n")
	if signal.Label != "neutral" {
		fmt.Fprintf(&prompt, "Detected user emotion: %s (valence %+.1f).\n", signal.Label, signal.Valence)
	}
	if contextWindow != "" {
		prompt.WriteString("\nRelevant conversation memory:\n")
		prompt.WriteString(contextWindow)
		prompt.WriteString("\n")
	}
	if summary := summarize(aggregate); summary != "" {
		prompt.WriteString("\nTool results for this request:\n")
		prompt.WriteString(summary)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\nAnswer based on the tool results. Do not invent results that are not listed.")

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: prompt.String()},
			{Role: "user", Content: utterance},
		},
		Temperature: 0.7,
		MaxTokens:   600,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// templated assembles a reply directly from the aggregate. Degraded but
// deterministic, and never empty.
func (c *Composer) templated(aggregate *dispatch.AggregatedResult, tone Tone) string {
	var b strings.Builder
	if tone == ToneEmpathetic {
		b.WriteString("That sounds tough — I hear you. ")
	}

	var results []*tools.ToolResult
	if aggregate != nil {
		results = aggregate.SuccessResults()
	}
	if len(results) == 0 {
		b.WriteString("I'm sorry, I couldn't complete that request right now. Please try again in a moment.")
		return b.String()
	}

	b.WriteString("Here's what I did:")
	for _, result := range results {
		b.WriteString("\n- ")
		b.WriteString(result.Content)
	}
	if failed := len(aggregate.Invocations) - len(results); failed > 0 {
		fmt.Fprintf(&b, "\n(%d step(s) could not be completed.)", failed)
	}
	return b.String()
}

// ClarificationReply asks the user to rephrase an ambiguous request.
func (c *Composer) ClarificationReply(utterance string) string {
	return fmt.Sprintf("I'm not sure what you'd like me to do with %q. "+
		"I can manage tasks, search the knowledge base, analyze team health, or just listen — could you rephrase?", utterance)
}

func summarize(aggregate *dispatch.AggregatedResult) string {
	if aggregate == nil {
		return ""
	}
	var b strings.Builder
	for _, inv := range aggregate.Invocations {
		switch inv.Status {
		case dispatch.StatusSucceeded:
			fmt.Fprintf(&b, "- [%s] %s\n", inv.Entry.Tool, inv.Result.Content)
		default:
			fmt.Fprintf(&b, "- [%s] failed (%s)\n", inv.Entry.Tool, inv.Status)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
