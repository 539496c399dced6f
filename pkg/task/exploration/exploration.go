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

// Package exploration implements the Exploration task: the model
// freely explores one or more knowledge graphs and accumulates notes
// (general and per-knowledge-graph) until it calls stop or exhausts its
// step budget. Grounded in original_source/tasks/exploration/__init__.py
// and tasks/exploration/functions.py.
package exploration

import (
	"context"
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

// State holds the accumulating notes for one exploration request.
type State struct {
	Notes   []string
	KGNotes map[string][]string
}

// NewState builds empty state for the given knowledge graph names: every
// knowledge graph starts with no notes and there are no general notes.
func NewState(kgNames []string) *State {
	s := &State{KGNotes: make(map[string][]string, len(kgNames))}
	for _, name := range kgNames {
		s.KGNotes[name] = nil
	}
	return s
}

func formatNotes(notes []string) string {
	if len(notes) == 0 {
		return "No notes available"
	}
	lines := make([]string, len(notes))
	for i, n := range notes {
		lines[i] = fmt.Sprintf("%d. %s", i+1, n)
	}
	return strings.Join(lines, "\n")
}

// Input mirrors tasks/exploration/__init__.py::input.
func (s *State) Input() string {
	var kgLines []string
	names := make([]string, 0, len(s.KGNotes))
	for name := range s.KGNotes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		kgLines = append(kgLines, fmt.Sprintf("%s:\n%s", name, formatNotes(s.KGNotes[name])))
	}
	return fmt.Sprintf(`Explore the available knowledge graphs. Add to, delete from, or update the following notes along the way.

Knowledge graph specific notes:
%s

General notes across knowledge graphs:
%s`, strings.Join(kgLines, "\n\n"), formatNotes(s.Notes))
}

// Adapter implements task.Adapter for Exploration.
type Adapter struct {
	managers          []*kg.Manager
	state             *State
	known             *knownset.Set
	maxNotes          int
	maxNoteLength     int
	questionsPerRound int
}

// Config bundles the note-budget parameters from NotesConfig.
type Config struct {
	MaxNotes          int
	MaxNoteLength     int
	QuestionsPerRound int
}

// New builds an Exploration adapter for one request.
func New(managers []*kg.Manager, cfg Config) *Adapter {
	if cfg.MaxNotes <= 0 {
		cfg.MaxNotes = 10
	}
	if cfg.MaxNoteLength <= 0 {
		cfg.MaxNoteLength = 500
	}
	if cfg.QuestionsPerRound <= 0 {
		cfg.QuestionsPerRound = 5
	}
	return &Adapter{
		managers:          managers,
		state:             NewState(kg.Names(managers)),
		maxNotes:          cfg.MaxNotes,
		maxNoteLength:     cfg.MaxNoteLength,
		questionsPerRound: cfg.QuestionsPerRound,
	}
}

func (a *Adapter) SetKnown(known *knownset.Set) { a.known = known }

func (a *Adapter) Name() string { return "exploration" }

// Input renders the first user message for an exploration request: the
// task builds its own prompt from accumulated notes rather than taking
// free-form input from the caller, mirroring
// tasks/exploration/__init__.py::input.
func (a *Adapter) Input() string { return a.state.Input() }

func (a *Adapter) SystemPrompt() string {
	return fmt.Sprintf(`You are a note-taking assistant. Your task is to explore knowledge graphs and take notes about them using the provided functions.

You should follow a step-by-step approach to take notes:
1. Think about what domains the knowledge graphs might cover and what types of questions a user might want to answer with them. Take into account already existing notes to focus on unexplored areas.
2. Come up with a potential user question over one or more knowledge graphs. Try to build a SPARQL query to answer the question and take notes about your findings along the way. Try to use all of the provided functions during your exploration.
3. Repeat steps 1 and 2 until you explored at least %d different potential user questions or you run out of ideas.

You can take notes specific to a certain knowledge graph, as well as general notes that might be useful across knowledge graphs.

You are only allowed %d notes at max per knowledge graph and for the general notes, such that you are forced to prioritize and to keep them as widely applicable as possible. Notes are limited to %d characters to ensure they are concise and to the point.

Examples of potentially useful types of notes include:
- overall structure, domain coverage, and schema of the knowledge graphs
- peculiarities of the knowledge graphs
- strategies when encountering certain types of questions or errors
- tips for when and how to use certain functions`, a.questionsPerRound, a.maxNotes, a.maxNoteLength)
}

func (a *Adapter) Rules() []string {
	return []string{
		"The questions you come up with should be diverse and cover different parts of the knowledge graphs.",
		"As you hit the limits on the number of notes and their length, gradually generalize your notes, discard unnecessary details, and move notes that can be useful across knowledge graphs to the general section.",
	}
}

func (a *Adapter) Tools() []tool.Tool {
	kgs := make([]any, 0, len(a.managers)+1)
	for _, m := range a.managers {
		kgs = append(kgs, m.Name)
	}
	kgs = append(kgs, nil)
	return []tool.Tool{
		noteTool{a: a, name: "add_note", kgs: kgs},
		noteTool{a: a, name: "delete_note", kgs: kgs},
		noteTool{a: a, name: "update_note", kgs: kgs},
		noteTool{a: a, name: "show_notes", kgs: kgs},
		noteTool{a: a, name: "stop", kgs: kgs},
	}
}

func (a *Adapter) IsTerminal(name string) bool { return name == "stop" }

// noteTool implements all five note-management functions; they share
// the same kg-scoping logic (note_functions/call_function in the
// original), so one struct parameterized by name avoids five near
// identical types.
type noteTool struct {
	a    *Adapter
	name string
	kgs  []any
}

func (t noteTool) Name() string { return t.name }

func (t noteTool) Description() string {
	switch t.name {
	case "add_note":
		return "Add a general or knowledge graph specific note."
	case "delete_note":
		return "Delete a general or knowledge graph specific note."
	case "update_note":
		return "Update a general or knowledge graph specific note."
	case "show_notes":
		return "Show current general or knowledge graph specific notes."
	default:
		return "Stop the note taking process."
	}
}

func (t noteTool) Strict() bool { return true }

func (t noteTool) Schema() llms.JSONSchema {
	kgProp := llms.JSONSchema{
		Type:        []string{"string", "null"},
		Enum:        t.kgs,
		Description: "The knowledge graph for which to act on the note (null for general notes)",
	}
	switch t.name {
	case "add_note":
		return llms.JSONSchema{
			Type: "object",
			Properties: map[string]llms.JSONSchema{
				"kg":   kgProp,
				"note": {Type: "string", Description: "The note to add"},
			},
			Required: []string{"kg", "note"},
		}
	case "delete_note":
		return llms.JSONSchema{
			Type: "object",
			Properties: map[string]llms.JSONSchema{
				"kg":  kgProp,
				"num": {Type: "number", Description: "The number of the note to delete"},
			},
			Required: []string{"kg", "num"},
		}
	case "update_note":
		return llms.JSONSchema{
			Type: "object",
			Properties: map[string]llms.JSONSchema{
				"kg":   kgProp,
				"num":  {Type: "number", Description: "The number of the note to update"},
				"note": {Type: "string", Description: "The new note replacing the old one"},
			},
			Required: []string{"kg", "num", "note"},
		}
	case "show_notes":
		return llms.JSONSchema{
			Type:       "object",
			Properties: map[string]llms.JSONSchema{"kg": kgProp},
			Required:   []string{"kg"},
		}
	default:
		return llms.JSONSchema{Type: "object", Properties: map[string]llms.JSONSchema{}, Required: []string{}}
	}
}

func (t noteTool) Call(_ context.Context, args map[string]any) (string, error) {
	if t.name == "stop" {
		return "Stopped process", nil
	}

	var target *[]string
	kgName := args["kg"]
	if kgName == nil {
		target = &t.a.state.Notes
	} else {
		name, _ := kgName.(string)
		slice, ok := t.a.state.KGNotes[name]
		if !ok {
			return "", fmt.Errorf("unknown knowledge graph %q", name)
		}
		target = &slice
		defer func() { t.a.state.KGNotes[name] = *target }()
	}

	switch t.name {
	case "show_notes":
		return formatNotes(*target), nil
	case "add_note":
		note, _ := args["note"].(string)
		if len(*target) >= t.a.maxNotes {
			return "", fmt.Errorf("cannot add more than %d notes", t.a.maxNotes)
		}
		if len(note) > t.a.maxNoteLength {
			return "", fmt.Errorf("note exceeds maximum length of %d characters", t.a.maxNoteLength)
		}
		*target = append(*target, note)
		return fmt.Sprintf("Added note %d: %s", len(*target), note), nil
	case "delete_note":
		num := intArg(args["num"])
		if num < 1 || num > len(*target) {
			return "", fmt.Errorf("note number out of range")
		}
		idx := num - 1
		deleted := (*target)[idx]
		*target = append((*target)[:idx], (*target)[idx+1:]...)
		return fmt.Sprintf("Deleted note %d: %s", num, deleted), nil
	case "update_note":
		num := intArg(args["num"])
		note, _ := args["note"].(string)
		if num < 1 || num > len(*target) {
			return "", fmt.Errorf("note number out of range")
		}
		if len(note) > t.a.maxNoteLength {
			return "", fmt.Errorf("note exceeds maximum length of %d characters", t.a.maxNoteLength)
		}
		(*target)[num-1] = note
		return fmt.Sprintf("Updated note %d: %s", num, note), nil
	}
	return "", fmt.Errorf("unknown function %q", t.name)
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

// Output mirrors tasks/exploration/__init__.py::output, triggered once
// "stop" has been called.
func (a *Adapter) Output(messages []conversation.Message) *task.Output {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if !m.IsAssistant() {
			continue
		}
		for _, tc := range m.Assistant.ToolCalls {
			if tc.Name == "stop" {
				names := make([]string, 0, len(a.state.KGNotes))
				for name := range a.state.KGNotes {
					names = append(names, name)
				}
				sort.Strings(names)
				var kgLines []string
				for _, name := range names {
					kgLines = append(kgLines, fmt.Sprintf("%s:\n%s", name, formatNotes(a.state.KGNotes[name])))
				}
				formatted := fmt.Sprintf("Exploration completed.\n\nKnowledge graph specific notes:\n%s\n\nGeneral notes across knowledge graphs:\n%s",
					strings.Join(kgLines, "\n\n"), formatNotes(a.state.Notes))
				return &task.Output{
					Type:      "output",
					Formatted: formatted,
					Fields: map[string]any{
						"notes":    a.state.Notes,
						"kg_notes": a.state.KGNotes,
					},
				}
			}
		}
		break
	}
	return nil
}

var _ task.Adapter = (*Adapter)(nil)
var _ task.KnownAware = (*Adapter)(nil)
