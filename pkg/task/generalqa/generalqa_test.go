package generalqa

import (
	"testing"

	"github.com/opengrasp/grasp/pkg/conversation"
)

func strPtr(s string) *string { return &s }

func TestAdapterBasics(t *testing.T) {
	a := New()
	if a.Name() != "general-qa" {
		t.Errorf("Name() = %q", a.Name())
	}
	if a.IsTerminal("anything") {
		t.Error("General-QA has no terminal tool call")
	}
	if len(a.Tools()) != 0 {
		t.Error("General-QA should contribute no task-specific tools")
	}
}

func TestOutputWaitsForPlainTextReply(t *testing.T) {
	a := New()

	withToolCall := []conversation.Message{
		conversation.NewAssistant(&conversation.Response{
			ToolCalls: []conversation.ToolCall{{Name: "search_entities"}},
		}),
	}
	if out := a.Output(withToolCall); out != nil {
		t.Errorf("Output() with a pending tool call = %+v, want nil", out)
	}

	empty := []conversation.Message{conversation.NewAssistant(&conversation.Response{})}
	if out := a.Output(empty); out != nil {
		t.Errorf("Output() with no message = %+v, want nil", out)
	}

	done := []conversation.Message{
		conversation.NewText(conversation.RoleUser, "who directed Inception?"),
		conversation.NewAssistant(&conversation.Response{Message: strPtr("Christopher Nolan.")}),
	}
	out := a.Output(done)
	if out == nil || out.Formatted != "Christopher Nolan." {
		t.Errorf("Output() = %+v, want formatted final answer", out)
	}
}
