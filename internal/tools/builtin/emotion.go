// Package builtin holds the concrete tools the dispatcher can invoke:
// emotion analysis, task management, team analytics, and the knowledge base.
package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yuanfang/internal/tools"
)

// EmotionSignal is the analyzer's verdict for one utterance.
type EmotionSignal struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	// Valence is in [-1, 1]: negative for distress, positive for
	// enthusiasm. Intensity is its absolute value.
	Valence float64 `json:"valence"`
}

// Intensity returns the emotional intensity regardless of direction.
func (s EmotionSignal) Intensity() float64 {
	if s.Valence < 0 {
		return -s.Valence
	}
	return s.Valence
}

type lexiconEntry struct {
	label   string
	valence float64
	terms   []string
}

// The lexicon pairs each label with its trigger terms. Both English and
// Chinese terms are matched; the product audience uses both.
var lexicon = []lexiconEntry{
	{"stressed", -0.8, []string{"stressed", "overwhelmed", "deadline", "too much", "pressure", "压力", "累死"}},
	{"angry", -0.9, []string{"angry", "furious", "annoyed", "frustrated", "unacceptable", "生气", "气死"}},
	{"sad", -0.7, []string{"sad", "upset", "disappointed", "unhappy", "down", "难过", "伤心"}},
	{"anxious", -0.6, []string{"anxious", "worried", "nervous", "afraid", "uncertain", "担心", "焦虑"}},
	{"tired", -0.4, []string{"tired", "exhausted", "burned out", "burnt out", "drained", "疲惫", "好累"}},
	{"excited", 0.9, []string{"excited", "thrilled", "can't wait", "amazing", "awesome", "兴奋", "太棒"}},
	{"happy", 0.7, []string{"happy", "glad", "great", "pleased", "thanks", "thank you", "love it", "开心", "高兴", "谢谢"}},
}

// AnalyzeEmotion scores the utterance against the lexicon. Deterministic:
// the same text always yields the same signal. With no lexicon hit the
// result is neutral with zero valence and low confidence.
func AnalyzeEmotion(text string) EmotionSignal {
	lowered := strings.ToLower(text)

	best := EmotionSignal{Label: "neutral", Confidence: 0.3, Valence: 0}
	bestHits := 0
	for _, entry := range lexicon {
		hits := 0
		for _, term := range entry.terms {
			hits += strings.Count(lowered, term)
		}
		if hits > bestHits {
			bestHits = hits
			confidence := 0.6 + 0.1*float64(hits)
			if confidence > 0.95 {
				confidence = 0.95
			}
			best = EmotionSignal{Label: entry.label, Confidence: confidence, Valence: entry.valence}
		}
	}
	return best
}

// EmotionTool exposes AnalyzeEmotion through the tool contract.
type EmotionTool struct{}

func NewEmotionTool() *EmotionTool { return &EmotionTool{} }

func (t *EmotionTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "emotion_analysis",
		Description: "Detect the emotional state expressed in a message: label, confidence, and valence.",
		Keywords:    []string{"feel", "feeling", "mood", "emotion", "stressed", "tired", "upset", "心情", "情绪"},
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"text": {Type: "string", Description: "The message text to analyze"},
			},
			Required: []string{"text"},
		},
	}
}

func (t *EmotionTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:       "emotion_analysis",
		Version:    "1.0",
		Category:   "analysis",
		Idempotent: true,
		Timeout:    5 * time.Second,
	}
}

func (t *EmotionTool) Execute(_ context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	if err := t.Definition().Parameters.ValidateArguments(call.Arguments); err != nil {
		return nil, err
	}
	text := tools.StringArg(call.Arguments, "text", "")
	signal := AnalyzeEmotion(text)

	return &tools.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("detected emotion %s (confidence %.2f, valence %+.1f)", signal.Label, signal.Confidence, signal.Valence),
		Data: map[string]any{
			"label":      signal.Label,
			"confidence": signal.Confidence,
			"valence":    signal.Valence,
		},
	}, nil
}
