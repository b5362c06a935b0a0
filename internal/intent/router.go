package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	yferrors "yuanfang/internal/errors"
	"yuanfang/internal/llm"
	"yuanfang/internal/logging"
	"yuanfang/internal/tools"
)

// DefinitionSource serves the tool capability descriptors the router matches
// against. Satisfied by toolregistry.Registry.
type DefinitionSource interface {
	List() []tools.ToolDefinition
}

// Router resolves utterances into execution plans. Keyword matching runs
// first; when no tool clears the confidence threshold the LLM classifier is
// consulted. Pure with respect to session state: the same utterance, context
// and fixtures always resolve the same plan.
type Router struct {
	defs      DefinitionSource
	llm       llm.Client
	threshold float64
	logger    logging.Logger
}

// NewRouter builds a Router. classifier may be nil, which disables the LLM
// fallback.
func NewRouter(defs DefinitionSource, classifier llm.Client, threshold float64, logger logging.Logger) *Router {
	return &Router{
		defs:      defs,
		llm:       classifier,
		threshold: threshold,
		logger:    logging.OrNop(logger),
	}
}

// Resolve maps the utterance to a plan. Returns IntentAmbiguousError when
// neither keyword matching nor the classifier can disambiguate.
func (r *Router) Resolve(ctx context.Context, utterance, convContext string) (ExecutionPlan, error) {
	plan := ExecutionPlan{Utterance: utterance}

	scored := r.scoreTools(utterance)
	for _, match := range scored {
		if match.score < r.threshold {
			continue
		}
		entry := PlanEntry{
			ID:         fmt.Sprintf("%s-%d", match.def.Name, len(plan.Entries)),
			Tool:       match.def.Name,
			Arguments:  extractArguments(match.def.Name, utterance),
			Confidence: match.score,
		}
		plan.Entries = append(plan.Entries, entry)
	}
	plan = chainDependencies(plan)

	if len(plan.Entries) > 0 {
		r.logger.Debug("intent: keyword match resolved %d entries for %q", len(plan.Entries), utterance)
		return plan, nil
	}

	if r.llm != nil {
		if entry, ok := r.classify(ctx, utterance, convContext); ok {
			plan.Entries = []PlanEntry{entry}
			r.logger.Debug("intent: classifier resolved %s for %q", entry.Tool, utterance)
			return plan, nil
		}
	}

	return ExecutionPlan{}, &yferrors.IntentAmbiguousError{Utterance: utterance}
}

type toolScore struct {
	def   tools.ToolDefinition
	score float64
}

// scoreTools counts keyword hits per tool. Each distinct keyword hit adds
// 0.3 up to a 0.9 cap, so a single strong keyword clears the default 0.5
// threshold only when paired with another signal.
func (r *Router) scoreTools(utterance string) []toolScore {
	lowered := strings.ToLower(utterance)
	var out []toolScore
	for _, def := range r.defs.List() {
		hits := 0
		for _, keyword := range def.Keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := 0.3 * float64(hits)
		if score > 0.9 {
			score = 0.9
		}
		out = append(out, toolScore{def: def, score: score})
	}
	return out
}

var (
	taskIDPattern   = regexp.MustCompile(`(?i)task\s+#?(\d+)|#(\d+)`)
	assigneePattern = regexp.MustCompile(`(?i)\bto\s+([\p{L}][\p{L}\d_.-]*)`)
	teamIDPattern   = regexp.MustCompile(`(?i)team\s+#?(\d+)`)
	articleID       = regexp.MustCompile(`(?i)article\s+#?(\d+)`)
	quotedText      = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
)

// extractArguments pulls structured arguments out of the utterance with
// tool-specific patterns: "assign task 42 to Ana" yields
// {action: assign, task_id: "42", assignee: "Ana"}.
func extractArguments(tool, utterance string) map[string]any {
	lowered := strings.ToLower(utterance)
	args := map[string]any{}

	switch tool {
	case "task_management":
		switch {
		case strings.Contains(lowered, "assign"):
			args["action"] = "assign"
		case containsAny(lowered, "create", "add", "new task"):
			args["action"] = "create"
		case containsAny(lowered, "complete", "finish", "done", "update", "mark"):
			args["action"] = "update"
			if containsAny(lowered, "complete", "finish", "done") {
				args["status"] = "completed"
			}
		default:
			args["action"] = "query"
		}
		if m := taskIDPattern.FindStringSubmatch(utterance); m != nil {
			id := m[1]
			if id == "" {
				id = m[2]
			}
			args["task_id"] = id
		}
		if m := assigneePattern.FindStringSubmatch(utterance); m != nil {
			args["assignee"] = m[1]
		}
		if m := quotedText.FindStringSubmatch(utterance); m != nil && args["action"] == "create" {
			args["title"] = firstGroup(m)
		}
	case "knowledge_base":
		switch {
		case containsAny(lowered, "create", "write", "add", "author"):
			args["action"] = "create"
			if m := quotedText.FindStringSubmatch(utterance); m != nil {
				args["title"] = firstGroup(m)
			}
		case containsAny(lowered, "update", "edit", "revise"):
			args["action"] = "update"
		case containsAny(lowered, "comment", "reply"):
			args["action"] = "comment"
		case containsAny(lowered, "history", "versions", "revisions"):
			args["action"] = "history"
		default:
			args["action"] = "search"
			if m := quotedText.FindStringSubmatch(utterance); m != nil {
				args["keyword"] = firstGroup(m)
			}
		}
		if m := articleID.FindStringSubmatch(utterance); m != nil {
			args["article_id"] = m[1]
		}
	case "team_analytics":
		if m := teamIDPattern.FindStringSubmatch(utterance); m != nil {
			args["team_id"] = m[1]
		}
		if containsAny(lowered, "risk", "风险") {
			args["include_risk"] = true
		}
	case "emotion_analysis":
		args["text"] = utterance
	}
	if m := teamIDPattern.FindStringSubmatch(utterance); m != nil && tool != "team_analytics" {
		args["team_id"] = m[1]
	}
	return args
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// chainDependencies marks a knowledge-base create entry as dependent on a
// team-analytics entry in the same plan, so a "report and write it up"
// request feeds the metrics into the article.
func chainDependencies(plan ExecutionPlan) ExecutionPlan {
	var analyticsID string
	for _, entry := range plan.Entries {
		if entry.Tool == "team_analytics" {
			analyticsID = entry.ID
			break
		}
	}
	if analyticsID == "" {
		return plan
	}
	for i, entry := range plan.Entries {
		if entry.Tool == "knowledge_base" && entry.Arguments["action"] == "create" {
			plan.Entries[i].DependsOn = analyticsID
		}
	}
	return plan
}

const classifierPrompt = `You route user requests to one of these tools:
%s
Reply with JSON only: {"tool": "<name>", "arguments": {}, "confidence": <0..1>}.
Use {"tool": "", "confidence": 0} when no tool fits.`

type classification struct {
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Confidence float64        `json:"confidence"`
}

// classify consults the LLM. The reply must name a known tool with
// confidence at or above the threshold; anything else is a miss.
func (r *Router) classify(ctx context.Context, utterance, convContext string) (PlanEntry, bool) {
	var catalog strings.Builder
	known := map[string]bool{}
	for _, def := range r.defs.List() {
		fmt.Fprintf(&catalog, "- %s: %s\n", def.Name, def.Description)
		known[def.Name] = true
	}

	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(classifierPrompt, catalog.String())},
	}
	if convContext != "" {
		messages = append(messages, llm.Message{Role: "system", Content: "Conversation context:\n" + convContext})
	}
	messages = append(messages, llm.Message{Role: "user", Content: utterance})

	resp, err := r.llm.Complete(ctx, llm.CompletionRequest{Messages: messages, Temperature: 0, MaxTokens: 200})
	if err != nil {
		r.logger.Warn("intent: classifier call failed: %v", err)
		return PlanEntry{}, false
	}

	var parsed classification
	raw := strings.TrimSpace(resp.Content)
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil || json.Unmarshal([]byte(repaired), &parsed) != nil {
			r.logger.Warn("intent: unparseable classifier reply: %q", resp.Content)
			return PlanEntry{}, false
		}
	}
	if parsed.Tool == "" || !known[parsed.Tool] || parsed.Confidence < r.threshold {
		return PlanEntry{}, false
	}
	args := parsed.Arguments
	if args == nil {
		args = extractArguments(parsed.Tool, utterance)
	}
	return PlanEntry{
		ID:         parsed.Tool + "-0",
		Tool:       parsed.Tool,
		Arguments:  args,
		Confidence: parsed.Confidence,
	}, true
}
