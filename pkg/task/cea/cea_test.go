package cea

import (
	"context"
	"strings"
	"testing"

	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/kg"
	"github.com/opengrasp/grasp/pkg/knownset"
)

func testTable() *Table {
	return &Table{
		Header: []string{"name", "country"},
		Data: [][]string{
			{"Berlin", "Germany"},
			{"Paris", "France"},
		},
	}
}

func TestStateAnnotateAndFormat(t *testing.T) {
	s := NewState(testTable())
	if _, err := s.Annotate(0, 0, &Annotation{Row: 0, Column: 0, Identifier: "http://x/Berlin", Entity: "wd:Q64"}); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	out := s.Format()
	if !strings.Contains(out, "Berlin (wd:Q64)") {
		t.Errorf("Format() = %q, want annotated cell rendered", out)
	}
	if !strings.Contains(out, "Annotated entities:") {
		t.Errorf("Format() missing annotated-entities summary: %q", out)
	}
}

func TestStateAnnotateOutOfBounds(t *testing.T) {
	s := NewState(testTable())
	if _, err := s.Annotate(99, 0, &Annotation{}); err == nil {
		t.Error("expected error annotating an out-of-bounds row")
	}
	if _, err := s.Annotate(0, 99, &Annotation{}); err == nil {
		t.Error("expected error annotating an out-of-bounds column")
	}
}

func TestStateAnnotateRestrictedRows(t *testing.T) {
	table := testTable()
	table.AnnotateRows = []int{1}
	s := NewState(table)
	if _, err := s.Annotate(0, 0, &Annotation{}); err == nil {
		t.Error("expected error annotating a row outside annotate_rows")
	}
	if _, err := s.Annotate(1, 0, &Annotation{Row: 1, Column: 0, Identifier: "id", Entity: "e"}); err != nil {
		t.Errorf("Annotate() on an allowed row should succeed, got %v", err)
	}
}

func TestAdapterAnnotateToolRequiresKnownEntity(t *testing.T) {
	a := New([]*kg.Manager{{Name: "wikidata"}}, testTable(), true)
	a.SetKnown(knownset.New())

	tools := a.Tools()
	var annotate interface {
		Call(ctx context.Context, args map[string]any) (string, error)
	}
	for _, tl := range tools {
		if tl.Name() == "annotate" {
			annotate = tl
		}
	}
	if annotate == nil {
		t.Fatal("expected an annotate tool")
	}
	_, err := annotate.Call(context.Background(), map[string]any{
		"kg": "wikidata", "row": float64(0), "column": float64(0), "entity": "http://x/Berlin",
	})
	if err == nil {
		t.Error("expected error annotating with an entity absent from the known set")
	}
}

func TestAdapterStopProducesOutput(t *testing.T) {
	a := New(nil, testTable(), false)
	messages := []conversation.Message{
		conversation.NewAssistant(&conversation.Response{
			ToolCalls: []conversation.ToolCall{{Name: "stop"}},
		}),
	}
	out := a.Output(messages)
	if out == nil || out.Type != "annotations" {
		t.Fatalf("Output() = %+v, want type=annotations", out)
	}
}

func TestAdapterIsTerminal(t *testing.T) {
	a := New(nil, testTable(), false)
	if !a.IsTerminal("stop") {
		t.Error("stop should be terminal")
	}
	if a.IsTerminal("annotate") {
		t.Error("annotate should not be terminal")
	}
}
