package exploration

import (
	"context"
	"strings"
	"testing"

	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/kg"
)

func testAdapter() *Adapter {
	return New([]*kg.Manager{{Name: "wikidata"}}, Config{MaxNotes: 2, MaxNoteLength: 20})
}

func toolByName(a *Adapter, name string) interface {
	Call(ctx context.Context, args map[string]any) (string, error)
} {
	for _, t := range a.Tools() {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func TestAddNoteGeneralAndScoped(t *testing.T) {
	a := testAdapter()
	add := toolByName(a, "add_note")

	if _, err := add.Call(context.Background(), map[string]any{"kg": nil, "note": "general note"}); err != nil {
		t.Fatalf("add_note(general) error = %v", err)
	}
	if len(a.state.Notes) != 1 || a.state.Notes[0] != "general note" {
		t.Errorf("general notes = %v", a.state.Notes)
	}

	if _, err := add.Call(context.Background(), map[string]any{"kg": "wikidata", "note": "kg note"}); err != nil {
		t.Fatalf("add_note(kg) error = %v", err)
	}
	if len(a.state.KGNotes["wikidata"]) != 1 || a.state.KGNotes["wikidata"][0] != "kg note" {
		t.Errorf("kg notes = %v", a.state.KGNotes["wikidata"])
	}
}

func TestAddNoteUnknownKg(t *testing.T) {
	a := testAdapter()
	add := toolByName(a, "add_note")
	if _, err := add.Call(context.Background(), map[string]any{"kg": "dbpedia", "note": "x"}); err == nil {
		t.Error("expected error adding a note against an unconfigured knowledge graph")
	}
}

func TestAddNoteEnforcesBudget(t *testing.T) {
	a := testAdapter()
	add := toolByName(a, "add_note")
	for i := 0; i < 2; i++ {
		if _, err := add.Call(context.Background(), map[string]any{"kg": nil, "note": "n"}); err != nil {
			t.Fatalf("add_note() #%d error = %v", i, err)
		}
	}
	if _, err := add.Call(context.Background(), map[string]any{"kg": nil, "note": "overflow"}); err == nil {
		t.Error("expected error exceeding max notes")
	}
	if _, err := add.Call(context.Background(), map[string]any{"kg": nil, "note": strings.Repeat("x", 50)}); err == nil {
		t.Error("expected error exceeding max note length")
	}
}

func TestDeleteAndUpdateNote(t *testing.T) {
	a := testAdapter()
	add := toolByName(a, "add_note")
	del := toolByName(a, "delete_note")
	update := toolByName(a, "update_note")

	add.Call(context.Background(), map[string]any{"kg": nil, "note": "first"})
	add.Call(context.Background(), map[string]any{"kg": nil, "note": "second"})

	if _, err := update.Call(context.Background(), map[string]any{"kg": nil, "num": float64(1), "note": "updated"}); err != nil {
		t.Fatalf("update_note() error = %v", err)
	}
	if a.state.Notes[0] != "updated" {
		t.Errorf("Notes[0] = %q, want updated", a.state.Notes[0])
	}

	if _, err := del.Call(context.Background(), map[string]any{"kg": nil, "num": float64(1)}); err != nil {
		t.Fatalf("delete_note() error = %v", err)
	}
	if len(a.state.Notes) != 1 || a.state.Notes[0] != "second" {
		t.Errorf("Notes after delete = %v", a.state.Notes)
	}

	if _, err := del.Call(context.Background(), map[string]any{"kg": nil, "num": float64(99)}); err == nil {
		t.Error("expected error deleting an out-of-range note")
	}
}

func TestShowNotesEmpty(t *testing.T) {
	a := testAdapter()
	show := toolByName(a, "show_notes")
	out, err := show.Call(context.Background(), map[string]any{"kg": nil})
	if err != nil || out != "No notes available" {
		t.Errorf("show_notes() = %q, %v", out, err)
	}
}

func TestOutputOnStop(t *testing.T) {
	a := testAdapter()
	add := toolByName(a, "add_note")
	add.Call(context.Background(), map[string]any{"kg": nil, "note": "a note"})

	messages := []conversation.Message{
		conversation.NewAssistant(&conversation.Response{
			ToolCalls: []conversation.ToolCall{{Name: "stop"}},
		}),
	}
	out := a.Output(messages)
	if out == nil || out.Type != "output" {
		t.Fatalf("Output() = %+v, want type=output", out)
	}
	if !strings.Contains(out.Formatted, "a note") {
		t.Errorf("Output().Formatted missing accumulated note: %q", out.Formatted)
	}
}

func TestInputRendersNotes(t *testing.T) {
	a := testAdapter()
	input := a.Input()
	if !strings.Contains(input, "wikidata") {
		t.Errorf("Input() missing knowledge graph section: %q", input)
	}
}
