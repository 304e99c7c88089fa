package reasoning

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/fault"
	"github.com/veraxis/scout/pkg/llms"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/tools"
)

// ============================================================================
// REACT BACKEND
// ============================================================================

const (
	// defaultConfidence is assigned to plain-text final answers that
	// carried no structured confidence.
	defaultConfidence = 0.5

	// correctionThoughtCap bounds how much of an unparseable reply is
	// carried into the self-correction thought.
	correctionThoughtCap = 500

	backendRetryDelay = 500 * time.Millisecond
)

// ReActBackend adapts a chat completion provider to the Backend
// contract. It renders the Thought/Action/Action Input/Final Answer
// grammar, parses the reply, and turns replies it cannot parse into
// self-correction decisions instead of errors.
type ReActBackend struct {
	provider   llms.Provider
	tools      []tools.ToolInfo
	system     string
	attempts   int
	retryDelay time.Duration
}

// NewReActBackend builds the backend over the given provider and the
// tool set that was frozen for this process.
func NewReActBackend(provider llms.Provider, infos []tools.ToolInfo, cfg config.ReasoningConfig) *ReActBackend {
	cfg.SetDefaults()
	return &ReActBackend{
		provider:   provider,
		tools:      infos,
		system:     renderSystemPrompt(cfg.Prompt, infos),
		attempts:   cfg.BackendAttempts,
		retryDelay: backendRetryDelay,
	}
}

// Decide renders the transcript, calls the provider, and parses the
// reply into a decision. Provider failures are retried up to the
// configured attempts; exhausting them is fatal for the session.
func (b *ReActBackend) Decide(ctx context.Context, step *StepContext) (*Decision, error) {
	messages := []llms.ChatMessage{
		{Role: llms.RoleSystem, Content: b.system},
		{Role: llms.RoleUser, Content: renderUserMessage(step)},
	}

	reply, err := b.generate(ctx, messages)
	if err != nil {
		return nil, err
	}
	return b.parseReply(reply), nil
}

func (b *ReActBackend) generate(ctx context.Context, messages []llms.ChatMessage) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		text, _, err := b.provider.Generate(ctx, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", fault.NewCancelledError("reasoning backend call interrupted")
		}
		if attempt < b.attempts {
			slog.Warn("Reasoning backend call failed, retrying",
				"model", b.provider.GetModelName(),
				"attempt", attempt,
				"error", err)
			select {
			case <-time.After(b.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return "", fault.NewCancelledError("reasoning backend call interrupted")
			}
		}
	}
	return "", fault.NewBackendError(b.provider.GetModelName(), b.attempts, lastErr)
}

// ============================================================================
// REPLY PARSING
// ============================================================================

const (
	markerThought     = "Thought:"
	markerAction      = "Action:"
	markerActionInput = "Action Input:"
	markerFinal       = "Final Answer:"
	markerObservation = "Observation:"
)

var replyMarkers = []string{
	markerThought,
	markerAction,
	markerActionInput,
	markerFinal,
	markerObservation,
}

type section struct {
	marker string
	value  string
}

type rawAction struct {
	name  string
	input string
}

// parseReply turns one completion into a decision. Observations are
// only ever produced by the engine, so any Observation in a reply is
// fabricated and everything from it onward is dropped. A final answer
// swallows the rest of the reply verbatim, since conclusion JSON may
// itself contain marker-looking text.
func (b *ReActBackend) parseReply(raw string) *Decision {
	lines := strings.Split(stripFences(raw), "\n")

	if i := markerLine(lines, markerObservation); i >= 0 {
		lines = lines[:i]
	}

	final := ""
	hasFinal := false
	if i := markerLine(lines, markerFinal); i >= 0 {
		hasFinal = true
		_, first := markerAt(lines[i])
		rest := append([]string{first}, lines[i+1:]...)
		final = strings.TrimSpace(strings.Join(rest, "\n"))
		lines = lines[:i]
	}

	var thoughts []string
	var actions []rawAction
	sections := splitSections(lines)
	for i := 0; i < len(sections); i++ {
		s := sections[i]
		switch s.marker {
		case markerThought:
			if s.value != "" {
				thoughts = append(thoughts, s.value)
			}
		case markerAction:
			act := rawAction{name: cleanActionName(s.value)}
			if i+1 < len(sections) && sections[i+1].marker == markerActionInput {
				act.input = sections[i+1].value
				i++
			}
			actions = append(actions, act)
		}
	}
	thought := strings.Join(thoughts, "\n")

	if hasFinal && len(actions) > 0 {
		return b.correction(thought, raw, "the reply mixed Action with Final Answer; propose actions or conclude, not both")
	}
	if len(actions) > 0 {
		requests, problem := b.resolveActions(actions)
		if problem != "" {
			return b.correction(thought, raw, problem)
		}
		return &Decision{Thought: thought, Actions: requests}
	}
	if hasFinal {
		if final == "" {
			return b.correction(thought, raw, "the Final Answer was empty")
		}
		return &Decision{Thought: thought, Conclusion: parseConclusion(final)}
	}
	return b.correction(thought, raw, "the reply contained no Action and no Final Answer; use the Thought/Action/Action Input format or give a Final Answer")
}

func (b *ReActBackend) correction(thought, raw, problem string) *Decision {
	if thought == "" {
		thought = truncate(strings.TrimSpace(raw), correctionThoughtCap)
	}
	return &Decision{Thought: thought, Correction: problem}
}

// resolveActions maps parsed action pairs onto typed requests. Unknown
// tool names pass through untouched: the executor's schema validation
// rejects them and that rejection is the observation the model corrects
// itself with.
func (b *ReActBackend) resolveActions(actions []rawAction) ([]model.ActionRequest, string) {
	requests := make([]model.ActionRequest, 0, len(actions))
	for _, act := range actions {
		if act.name == "" {
			return nil, "an Action line named no action"
		}
		if strings.EqualFold(act.name, RetrieveAction) {
			query, topK := parseRetrieveInput(act.input)
			if query == "" {
				return nil, "the retrieve action needs a query"
			}
			requests = append(requests, model.ActionRequest{Kind: model.ActionRetrieve, Query: query, TopK: topK})
			continue
		}
		requests = append(requests, model.ActionRequest{
			Kind: model.ActionTool,
			Tool: act.name,
			Args: b.parseToolInput(act.name, act.input),
		})
	}
	return requests, ""
}

func parseRetrieveInput(input string) (string, int) {
	input = stripFences(strings.TrimSpace(input))
	if obj := findJSONObject(input); obj != "" {
		var payload struct {
			Query string `json:"query"`
			TopK  int    `json:"top_k"`
		}
		if err := json.Unmarshal([]byte(obj), &payload); err == nil && payload.Query != "" {
			return payload.Query, payload.TopK
		}
	}
	return strings.Trim(input, `"`), 0
}

// parseToolInput accepts a JSON object, or binds plain text to the
// tool's sole parameter when the schema has exactly one.
func (b *ReActBackend) parseToolInput(name, input string) map[string]any {
	input = stripFences(strings.TrimSpace(input))
	if input == "" {
		return map[string]any{}
	}
	if obj := findJSONObject(input); obj != "" {
		var args map[string]any
		if err := json.Unmarshal([]byte(obj), &args); err == nil {
			return args
		}
	}
	raw := strings.Trim(input, `"`)
	if param := b.soleParam(name); param != "" {
		return map[string]any{param: raw}
	}
	return map[string]any{"input": raw}
}

func (b *ReActBackend) soleParam(name string) string {
	for _, info := range b.tools {
		if info.Name != name {
			continue
		}
		required := ""
		count := 0
		for _, p := range info.Parameters {
			if p.Required {
				count++
				required = p.Name
			}
		}
		if count == 1 {
			return required
		}
		if count == 0 && len(info.Parameters) == 1 {
			return info.Parameters[0].Name
		}
		return ""
	}
	return ""
}

// parseConclusion reads the structured final answer, falling back to
// the raw text with a neutral confidence when the JSON is absent or
// broken.
func parseConclusion(text string) *Conclusion {
	if obj := findJSONObject(text); obj != "" {
		var payload struct {
			Answer     string   `json:"answer"`
			Confidence *float64 `json:"confidence"`
			Citations  []string `json:"citations"`
		}
		if err := json.Unmarshal([]byte(obj), &payload); err == nil && payload.Answer != "" {
			confidence := defaultConfidence
			if payload.Confidence != nil {
				confidence = clamp01(*payload.Confidence)
			}
			return &Conclusion{Answer: payload.Answer, Confidence: confidence, Citations: payload.Citations}
		}
	}
	return &Conclusion{Answer: strings.TrimSpace(text), Confidence: defaultConfidence}
}

// ============================================================================
// TEXT HELPERS
// ============================================================================

// markerAt matches a grammar marker at the start of a line, tolerating
// leading list or emphasis punctuation.
func markerAt(line string) (string, string) {
	norm := strings.TrimSpace(line)
	norm = strings.TrimSpace(strings.TrimLeft(norm, "#*>"))
	for _, m := range replyMarkers {
		if strings.HasPrefix(norm, m) {
			value := strings.TrimSpace(norm[len(m):])
			return m, strings.TrimSpace(strings.TrimLeft(value, "*"))
		}
	}
	return "", ""
}

func markerLine(lines []string, marker string) int {
	for i, line := range lines {
		if m, _ := markerAt(line); m == marker {
			return i
		}
	}
	return -1
}

// splitSections groups lines under their markers. Text before the first
// marker is the thought the prompt's trailing "Thought:" invited.
func splitSections(lines []string) []section {
	var sections []section
	current := -1
	for _, line := range lines {
		if m, value := markerAt(line); m != "" {
			sections = append(sections, section{marker: m, value: value})
			current = len(sections) - 1
			continue
		}
		if current >= 0 {
			sections[current].value += "\n" + line
		} else if strings.TrimSpace(line) != "" {
			sections = append(sections, section{marker: markerThought, value: line})
			current = len(sections) - 1
		}
	}
	for i := range sections {
		sections[i].value = strings.TrimSpace(sections[i].value)
	}
	return sections
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// findJSONObject returns the first balanced top-level JSON object in s,
// or "" when there is none.
func findJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// cleanActionName strips the decoration models wrap action names in.
func cleanActionName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`\"'[]")
	if i := strings.IndexAny(s, " ("); i > 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ Backend = (*ReActBackend)(nil)
