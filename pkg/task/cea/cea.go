// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cea implements the Cell Entity Annotation task: the model
// annotates cells of a table with knowledge-graph entity IRIs, one cell
// at a time, until it calls stop. Grounded in
// original_source/tasks/cea.py.
package cea

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/kg"
	"github.com/opengrasp/grasp/pkg/knownset"
	"github.com/opengrasp/grasp/pkg/llms"
	"github.com/opengrasp/grasp/pkg/task"
	"github.com/opengrasp/grasp/pkg/tool"
)

// Table is the input table to annotate: Header names its columns,
// Data its rows. AnnotateRows/AnnotateColumns optionally restrict which
// cells are eligible for annotation; nil means "all".
type Table struct {
	Header          []string   `json:"header"`
	Data            [][]string `json:"data"`
	AnnotateRows    []int      `json:"annotate_rows,omitempty"`
	AnnotateColumns []int      `json:"annotate_columns,omitempty"`
}

func (t *Table) Height() int { return len(t.Data) }
func (t *Table) Width() int  { return len(t.Header) }

// Annotation is one cell's resolved entity.
type Annotation struct {
	Row      int
	Column   int
	Identifier string
	Entity   string
}

// cell is a (row, column) key into the annotation map.
type cell struct{ row, col int }

// State holds the mutable annotation progress for one request. It is
// request-scoped: a new State is constructed per CEA request and never
// shared.
type State struct {
	table       *Table
	rows, cols  map[int]bool
	annotations map[cell]Annotation
}

// NewState builds annotation state for table, mirroring
// cea.py::AnnotationState.__init__ (minus context-row trimming, which is
// a presentation concern the original only uses for oversized tables and
// that GRASP defers to the caller).
func NewState(table *Table) *State {
	s := &State{table: table, annotations: make(map[cell]Annotation)}
	if table.AnnotateRows != nil {
		s.rows = make(map[int]bool, len(table.AnnotateRows))
		for _, r := range table.AnnotateRows {
			s.rows[r] = true
		}
	}
	if table.AnnotateColumns != nil {
		s.cols = make(map[int]bool, len(table.AnnotateColumns))
		for _, c := range table.AnnotateColumns {
			s.cols[c] = true
		}
	}
	return s
}

// Annotate sets or clears a cell's annotation, returning the previous
// annotation if any. Mirrors AnnotationState.annotate.
func (s *State) Annotate(row, col int, annot *Annotation) (*Annotation, error) {
	if row < 0 || row >= s.table.Height() {
		return nil, fmt.Errorf("row %d out of bounds", row)
	}
	if s.rows != nil && !s.rows[row] {
		return nil, fmt.Errorf("row %d must not be annotated", row)
	}
	if col < 0 || col >= s.table.Width() {
		return nil, fmt.Errorf("column %d out of bounds", col)
	}
	if s.cols != nil && !s.cols[col] {
		return nil, fmt.Errorf("column %d must not be annotated", col)
	}

	key := cell{row, col}
	current, had := s.annotations[key]
	delete(s.annotations, key)
	if annot != nil {
		s.annotations[key] = *annot
	}
	if had {
		return &current, nil
	}
	return nil, nil
}

// Format renders the table with inline annotations, mirroring
// AnnotationState.format (minus the generate_table pretty-printing
// library, using a plain tab-separated rendering instead).
func (s *State) Format() string {
	var b strings.Builder
	header := make([]string, 0, s.table.Width()+1)
	header = append(header, "Row")
	for i, name := range s.table.Header {
		header = append(header, fmt.Sprintf("Column %d: %s", i, name))
	}
	b.WriteString(strings.Join(header, "\t"))
	b.WriteByte('\n')

	for r, row := range s.table.Data {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, fmt.Sprintf("%d", r))
		for c, val := range row {
			if a, ok := s.annotations[cell{r, c}]; ok {
				val = fmt.Sprintf("%s (%s)", val, a.Entity)
			}
			cells = append(cells, val)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}

	if len(s.annotations) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}

	seen := map[string]bool{}
	var identifiers []string
	for _, a := range s.annotations {
		if seen[a.Identifier] {
			continue
		}
		seen[a.Identifier] = true
		identifiers = append(identifiers, a.Identifier)
	}
	sort.Strings(identifiers)

	byID := map[string]Annotation{}
	for _, a := range s.annotations {
		byID[a.Identifier] = a
	}
	b.WriteString("\nAnnotated entities:\n")
	for _, id := range identifiers {
		fmt.Fprintf(&b, "- %s (%s)\n", id, byID[id].Entity)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Annotations returns every current annotation, in unspecified order.
func (s *State) Annotations() []Annotation {
	out := make([]Annotation, 0, len(s.annotations))
	for _, a := range s.annotations {
		out = append(out, a)
	}
	return out
}

// Adapter implements task.Adapter for CEA.
type Adapter struct {
	managers []*kg.Manager
	state    *State
	known    *knownset.Set
	knowBeforeUse bool
}

// New builds a CEA adapter for one request's table.
func New(managers []*kg.Manager, table *Table, knowBeforeUse bool) *Adapter {
	return &Adapter{managers: managers, state: NewState(table), knowBeforeUse: knowBeforeUse}
}

func (a *Adapter) SetKnown(known *knownset.Set) { a.known = known }

func (a *Adapter) Name() string { return "cea" }

func (a *Adapter) SystemPrompt() string {
	return `You are an entity annotation assistant. Your job is to annotate cells from a given table with entities from the available knowledge graphs.

You should follow a step-by-step approach to annotate the cells:
1. Determine what the table might be about and what the different columns might represent. Think about how the cells might be represented with entities in the knowledge graphs.
2. Annotate the cells, starting with the ones that are easiest to annotate. Use the provided functions to search and query the knowledge graphs for the corresponding entities. You may need to refine or rethink your annotations based on new insights along the way and alter them if needed, possibly multiple times.
3. Use the stop function to finalize your annotations and stop the annotation process.`
}

func (a *Adapter) Rules() []string {
	return []string{
		"Annotate cells only with entities that you verified to exist in the knowledge graphs using the provided functions.",
		"If you cannot find a suitable entity for a cell, leave it unannotated.",
		"If there are multiple suitable entities for a cell, choose the one that fits best in the context of the table, or the one that is more popular/general.",
		"All of your annotations should be full or prefixed IRIs.",
		"If the same entity occurs multiple times in the table, annotate all occurrences.",
	}
}

func (a *Adapter) InputInstructions() string {
	var b strings.Builder
	b.WriteString("Annotate the following table with entities from the available knowledge graphs. If there already are annotations for some cells, they are shown in parentheses after the cell value.\n\n")
	if a.state.rows != nil && len(a.state.rows) != a.state.table.Height() {
		rows := sortedKeys(a.state.rows)
		b.WriteString(fmt.Sprintf("Only annotate rows %v.\n\n", rows))
	} else {
		b.WriteString("Annotate all rows.\n\n")
	}
	if a.state.cols != nil && len(a.state.cols) != a.state.table.Width() {
		cols := sortedKeys(a.state.cols)
		b.WriteString(fmt.Sprintf("Only annotate columns %v.\n\n", cols))
	} else {
		b.WriteString("Annotate all columns.\n\n")
	}
	b.WriteString(a.state.Format())
	return b.String()
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (a *Adapter) Tools() []tool.Tool {
	kgs := make([]any, len(a.managers))
	for i, m := range a.managers {
		kgs[i] = m.Name
	}
	return []tool.Tool{
		annotateTool{a: a, kgs: kgs},
		deleteAnnotationTool{a: a},
		showAnnotationsTool{a: a},
		stopTool{},
	}
}

func (a *Adapter) IsTerminal(name string) bool { return name == "stop" }

type annotateTool struct {
	a   *Adapter
	kgs []any
}

func (t annotateTool) Name() string { return "annotate" }
func (t annotateTool) Description() string {
	return "Annotate a cell in the table with an entity from the specified knowledge graph. This function overwrites any previous annotation of the cell."
}
func (t annotateTool) Strict() bool { return true }
func (t annotateTool) Schema() llms.JSONSchema {
	return llms.JSONSchema{
		Type: "object",
		Properties: map[string]llms.JSONSchema{
			"kg":     {Type: "string", Enum: t.kgs, Description: "The knowledge graph to use for the annotation"},
			"row":    {Type: "integer", Description: "The row index of the cell to annotate (0-based, ignoring header)"},
			"column": {Type: "integer", Description: "The column index of the cell to annotate (0-based, ignoring header)"},
			"entity": {Type: "string", Description: "The IRI of the entity to annotate the cell with"},
		},
		Required: []string{"kg", "row", "column", "entity"},
	}
}

func (t annotateTool) Call(_ context.Context, args map[string]any) (string, error) {
	kgName, _ := args["kg"].(string)
	entity, _ := args["entity"].(string)
	row := intArg(args["row"])
	col := intArg(args["column"])

	manager, ok := kg.FindManager(t.a.managers, kgName)
	if !ok {
		return "", fmt.Errorf("unknown knowledge graph %q", kgName)
	}
	if t.a.knowBeforeUse && t.a.known != nil && !t.a.known.Has(entity) {
		return "", errors.New("the entity cannot be used for annotation without being known from previous function call results. This does not mean it is invalid, but you should verify that it indeed exists in the knowledge graphs first")
	}

	annot := &Annotation{Row: row, Column: col, Identifier: entity, Entity: manager.Shorten(entity)}
	current, err := t.a.state.Annotate(row, col, annot)
	if err != nil {
		return "", err
	}
	if current == nil {
		return fmt.Sprintf("Annotated cell (%d, %d) with entity %s", row, col, entity), nil
	}
	return fmt.Sprintf("Updated annotation of cell (%d, %d) from %s to %s", row, col, current.Entity, entity), nil
}

func intArg(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

type deleteAnnotationTool struct{ a *Adapter }

func (t deleteAnnotationTool) Name() string        { return "delete_annotation" }
func (t deleteAnnotationTool) Description() string { return "Delete the annotation of a cell in the table." }
func (t deleteAnnotationTool) Strict() bool        { return true }
func (t deleteAnnotationTool) Schema() llms.JSONSchema {
	return llms.JSONSchema{
		Type: "object",
		Properties: map[string]llms.JSONSchema{
			"row":    {Type: "integer", Description: "The row index of the cell to clear (0-based, ignoring header)"},
			"column": {Type: "integer", Description: "The column index of the cell to clear (0-based, ignoring header)"},
		},
		Required: []string{"row", "column"},
	}
}
func (t deleteAnnotationTool) Call(_ context.Context, args map[string]any) (string, error) {
	row, col := intArg(args["row"]), intArg(args["column"])
	current, err := t.a.state.Annotate(row, col, nil)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", fmt.Errorf("cell (%d, %d) is not annotated", row, col)
	}
	return fmt.Sprintf("Deleted annotation %s from cell (%d, %d)", current.Entity, row, col), nil
}

type showAnnotationsTool struct{ a *Adapter }

func (t showAnnotationsTool) Name() string        { return "show_annotations" }
func (t showAnnotationsTool) Description() string { return "Show the current annotations for the table." }
func (t showAnnotationsTool) Strict() bool        { return true }
func (t showAnnotationsTool) Schema() llms.JSONSchema {
	return llms.JSONSchema{Type: "object", Properties: map[string]llms.JSONSchema{}, Required: []string{}}
}
func (t showAnnotationsTool) Call(context.Context, map[string]any) (string, error) {
	return t.a.state.Format(), nil
}

type stopTool struct{}

func (stopTool) Name() string        { return "stop" }
func (stopTool) Description() string { return "Finalize your annotations and stop the annotation process." }
func (stopTool) Strict() bool        { return true }
func (stopTool) Schema() llms.JSONSchema {
	return llms.JSONSchema{Type: "object", Properties: map[string]llms.JSONSchema{}, Required: []string{}}
}
func (stopTool) Call(context.Context, map[string]any) (string, error) { return "Stopped annotation", nil }

// Output mirrors cea.py's handling of "stop": once called, the output is
// the current annotation state, formatted.
func (a *Adapter) Output(messages []conversation.Message) *task.Output {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if !m.IsAssistant() {
			continue
		}
		for _, tc := range m.Assistant.ToolCalls {
			if tc.Name == "stop" {
				annotations := a.state.Annotations()
				fields := map[string]any{"annotations": annotations}
				return &task.Output{Type: "annotations", Formatted: a.state.Format(), Fields: fields}
			}
		}
		break
	}
	return nil
}

// FeedbackSystemPrompt mirrors cea.py::feedback_system_message.
func (a *Adapter) FeedbackSystemPrompt(notes []string, kgNotes map[string][]string) string {
	return "You are a table annotation assistant providing feedback on the output of a table annotation system for a given input table.\n\n" +
		"The system was provided the following notes across all knowledge graphs:\n" + formatBulletList(notes) + "\n\n" +
		"The system was provided the following rules to follow:\n" + formatBulletList(a.Rules()) + "\n\n" +
		"Provide your feedback with the give_feedback function."
}

// FeedbackInstructions mirrors cea.py::feedback_instructions.
func (a *Adapter) FeedbackInstructions(inputs []string, output *task.Output) string {
	prompt := ""
	if len(inputs) > 1 {
		prompt += "Previous inputs:\n" + strings.Join(inputs[:len(inputs)-1], "\n\n") + "\n\n"
	}
	prompt += fmt.Sprintf("Input:\n%s\n\nAnnotations:\n%s", strings.TrimSpace(inputs[len(inputs)-1]), output.Formatted)
	return prompt
}

func formatBulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

var _ task.Adapter = (*Adapter)(nil)
var _ task.KnownAware = (*Adapter)(nil)
var _ task.FeedbackAware = (*Adapter)(nil)
