package sparqlqa

import (
	"strings"
	"testing"

	"github.com/opengrasp/grasp/pkg/conversation"
)

func strPtr(s string) *string { return &s }

func withPrefix(turns ...conversation.Message) []conversation.Message {
	prefix := []conversation.Message{
		conversation.NewText(conversation.RoleSystem, "system prompt"),
		conversation.NewText(conversation.RoleUser, "who directed Inception?"),
	}
	return append(prefix, turns...)
}

func TestOutputAnswerToolCall(t *testing.T) {
	a := New(nil, 10, 10)
	messages := withPrefix(conversation.NewAssistant(&conversation.Response{
		ToolCalls: []conversation.ToolCall{{
			Name: "answer",
			Args: map[string]any{"kg": "wikidata", "sparql": "SELECT ?x WHERE {}", "answer": "Christopher Nolan"},
		}},
	}))
	out := a.Output(messages)
	if out == nil || out.Type != "answer" || out.Formatted != "Christopher Nolan" {
		t.Fatalf("Output() = %+v", out)
	}
}

func TestOutputCancelToolCall(t *testing.T) {
	a := New(nil, 10, 10)
	messages := withPrefix(conversation.NewAssistant(&conversation.Response{
		ToolCalls: []conversation.ToolCall{{
			Name: "cancel",
			Args: map[string]any{"explanation": "no suitable query found"},
		}},
	}))
	out := a.Output(messages)
	if out == nil || out.Type != "cancel" || out.Formatted != "no suitable query found" {
		t.Fatalf("Output() = %+v", out)
	}
}

func TestOutputNoTerminalCallYet(t *testing.T) {
	a := New(nil, 10, 10)
	messages := withPrefix(conversation.NewAssistant(&conversation.Response{
		ToolCalls: []conversation.ToolCall{{Name: "search_entities"}},
	}))
	if out := a.Output(messages); out != nil {
		t.Errorf("Output() with only a search call = %+v, want nil", out)
	}
}

func TestFallbackToolCallFromTaggedMessage(t *testing.T) {
	msg := "Here is my answer.\n<tool_call>{\"name\": \"answer\", \"arguments\": {\"kg\": \"wikidata\", \"sparql\": \"SELECT ?x WHERE {}\", \"answer\": \"42\"}}</tool_call>"
	tc, ok := fallbackToolCall(msg, "answer")
	if !ok || tc.Name != "answer" || tc.Args["answer"] != "42" {
		t.Fatalf("fallbackToolCall() = %+v, %v", tc, ok)
	}
}

func TestFallbackToolCallFromBareArgsJSON(t *testing.T) {
	msg := "```json\n{\"kg\": \"wikidata\", \"sparql\": \"SELECT ?x WHERE {}\", \"answer\": \"42\"}\n```"
	tc, ok := fallbackToolCall(msg, "answer")
	if !ok || tc.Args["sparql"] != "SELECT ?x WHERE {}" {
		t.Fatalf("fallbackToolCall() = %+v, %v", tc, ok)
	}
}

func TestOutputFallsBackToMessageParsing(t *testing.T) {
	a := New(nil, 10, 10)
	msg := "```json\n{\"kg\": \"wikidata\", \"sparql\": \"SELECT ?x WHERE {}\", \"answer\": \"42\"}\n```"
	messages := withPrefix(conversation.NewAssistant(&conversation.Response{Message: strPtr(msg)}))
	out := a.Output(messages)
	if out == nil || out.Type != "answer" || out.Fields["answer"] != "42" {
		t.Fatalf("Output() fallback parse = %+v", out)
	}
}

func TestOutputFallsBackToLastExecuteWhenNoAnswerFound(t *testing.T) {
	a := New(nil, 10, 10)
	messages := withPrefix(
		conversation.NewAssistant(&conversation.Response{
			Message: strPtr("trying a query"),
			ToolCalls: []conversation.ToolCall{{
				Name: "execute",
				Args: map[string]any{"kg": "wikidata", "sparql": "SELECT ?x WHERE {}"},
			}},
		}),
	)
	out := a.Output(messages)
	if out == nil {
		t.Fatal("Output() = nil, want a fallback answer built from the last execute call")
	}
	if !strings.Contains(out.Fields["sparql"].(string), "SELECT") {
		t.Errorf("Output().Fields[sparql] = %v", out.Fields["sparql"])
	}
}

func TestIsTerminal(t *testing.T) {
	a := New(nil, 10, 10)
	if !a.IsTerminal("answer") || !a.IsTerminal("cancel") {
		t.Error("answer/cancel should be terminal")
	}
	if a.IsTerminal("execute") {
		t.Error("execute should not be terminal")
	}
}
