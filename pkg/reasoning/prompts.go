package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/tools"
)

// ============================================================================
// PROMPT VARIANTS
// ============================================================================

// RetrieveAction is the reserved action name for corpus search. It is
// listed alongside the registered tools in every variant.
const RetrieveAction = "retrieve"

// evidenceExcerptLimit caps how much of each evidence chunk is rendered
// into the prompt.
const evidenceExcerptLimit = 400

// The three variants share one action grammar; they differ in register
// and in how hard they push for evidence-backed answers. The final
// answer is requested as JSON so confidence and citations survive the
// round trip.

const standardPromptTemplate = `Answer the following questions as best you can. You have access to the following actions:

%s

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, one of [%s]
Action Input: the arguments for the action as a JSON object
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: a JSON object of the form {"answer": "...", "confidence": 0.0 to 1.0, "citations": ["chunk ids from the evidence you used"]}

Never write an Observation yourself: observations are produced for you. Cite only chunk ids that appear in the evidence.`

const researchPromptTemplate = `You are a research assistant that helps users find and analyze information. You have access to the following actions:

%s

When researching a topic, follow this systematic approach:

Question: the research question or topic to investigate
Thought: analyze what information is needed and plan your approach
Action: the action to take, one of [%s]
Action Input: the specific arguments for the action as a JSON object
Observation: the result of the action
... (repeat Thought/Action/Action Input/Observation as needed to gather comprehensive information)
Thought: synthesize all gathered information to form a complete answer
Final Answer: a JSON object of the form {"answer": "...", "confidence": 0.0 to 1.0, "citations": ["chunk ids from the evidence you used"]}

Important guidelines:
- Ground your answer in the indexed corpus: prefer the retrieve action before other tools
- Always cite your sources: every claim should trace back to a chunk id from the evidence
- Cross-reference information from multiple sources
- Be critical of the information quality
- Independent actions can be proposed together: list several Action and Action Input pairs in one reply and their observations come back as a unit
- Never write an Observation yourself: observations are produced for you`

const simplePromptTemplate = `You are a helpful assistant. You have access to the following actions:

%s

To answer questions, use this format:

Thought: what do I need to do?
Action: one of [%s]
Action Input: JSON arguments for the action
Observation: the action's result
Thought: do I have enough information?
Final Answer: {"answer": "your complete answer", "confidence": 0.0 to 1.0, "citations": []}`

// renderSystemPrompt fills the selected variant with the action block
// and name list for the registered tools.
func renderSystemPrompt(variant string, infos []tools.ToolInfo) string {
	template := standardPromptTemplate
	switch variant {
	case config.PromptResearch:
		template = researchPromptTemplate
	case config.PromptSimple:
		template = simplePromptTemplate
	}
	return fmt.Sprintf(template, renderActionBlock(infos), renderActionNames(infos))
}

// renderActionBlock describes every available action, the retrieve
// pseudo-action first.
func renderActionBlock(infos []tools.ToolInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: search the indexed research corpus for evidence; arguments {\"query\": \"...\", \"top_k\": 5}\n", RetrieveAction)
	for _, info := range infos {
		fmt.Fprintf(&b, "%s: %s", info.Name, info.Description)
		if len(info.Parameters) > 0 {
			b.WriteString("; arguments ")
			b.WriteString(renderParameters(info.Parameters))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderParameters(params []tools.ToolParameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		part := fmt.Sprintf("%q (%s", p.Name, p.Type)
		if p.Required {
			part += ", required"
		}
		part += ")"
		if len(p.Enum) > 0 {
			part += " one of " + strings.Join(p.Enum, "|")
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func renderActionNames(infos []tools.ToolInfo) string {
	names := make([]string, 0, len(infos)+1)
	names = append(names, RetrieveAction)
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return strings.Join(names, ", ")
}

// ============================================================================
// STEP CONTEXT RENDERING
// ============================================================================

// renderUserMessage lays out one thinking turn: conversation context,
// evidence gathered so far, the question, and the scratchpad of prior
// steps. The trailing "Thought:" invites the model to continue in the
// grammar the system prompt established.
func renderUserMessage(step *StepContext) string {
	var b strings.Builder

	if step.WorkingContext != "" {
		b.WriteString("Conversation context:\n")
		b.WriteString(step.WorkingContext)
		b.WriteString("\n\n")
	}
	if len(step.Evidence) > 0 {
		b.WriteString("Evidence collected so far:\n")
		b.WriteString(renderEvidence(step.Evidence))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", step.Question)
	if step.Remaining > 0 {
		fmt.Fprintf(&b, "(%d acting steps remaining before you must answer)\n", step.Remaining)
	}
	b.WriteString(renderScratchpad(step.Steps))
	b.WriteString("Thought:")
	return b.String()
}

func renderEvidence(items []model.EvidenceItem) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "[%s] %s: %s\n", item.ChunkID, item.Source, truncate(item.Content, evidenceExcerptLimit))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderScratchpad replays the chain so far in the same grammar the
// model produces, so each turn sees its own prior reasoning.
func renderScratchpad(steps []model.ThoughtStep) string {
	var b strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&b, "Thought: %s\n", s.Thought)
		if s.Action != nil {
			switch s.Action.Kind {
			case model.ActionRetrieve:
				fmt.Fprintf(&b, "Action: %s\nAction Input: %s\n", RetrieveAction, renderRetrieveInput(s.Action))
			case model.ActionTool:
				fmt.Fprintf(&b, "Action: %s\nAction Input: %s\n", s.Action.Tool, renderToolInput(s.Action.Args))
			}
		}
		if s.Observation != "" {
			fmt.Fprintf(&b, "Observation: %s\n", s.Observation)
		}
	}
	return b.String()
}

func renderRetrieveInput(action *model.ActionRequest) string {
	payload := struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k,omitempty"`
	}{Query: action.Query, TopK: action.TopK}
	data, _ := json.Marshal(payload)
	return string(data)
}

func renderToolInput(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
