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

// Package task is the plug-in contract that specializes the agent loop
// (pkg/agentloop) per task kind, replacing the original's
// `if task == "sparql-qa": ... elif ...` dispatch in tasks/__init__.py
// with a typed Adapter interface and a registry keyed by task name.
package task

import (
	"context"

	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/knownset"
	"github.com/opengrasp/grasp/pkg/tool"
)

// Output is what a task adapter extracts from the conversation as its
// result. The agent loop reads it when a turn ends generation and once
// more after the loop has ended; a non-nil Output does not by itself stop
// the loop.
type Output struct {
	Type      string         // "answer", "cancel", "output", "annotations", ...
	Formatted string         // human-readable rendering shown to the caller
	Fields    map[string]any // task-specific structured fields (sparql, kg, answer, ...)
}

// Adapter specializes the agent loop for one task kind. A new Adapter is
// constructed per request: it closes over the request's knowledge graph
// managers, config, and mutable task state (e.g. CEA's AnnotationState),
// so it is never shared across requests.
type Adapter interface {
	// Name identifies the task kind, used in config.FnSet-independent
	// task selection and in log/event fields.
	Name() string

	// SystemPrompt returns the task's system_information() text, the
	// first message of every request using this task.
	SystemPrompt() string

	// Rules returns the task's bullet-point rules, appended to the
	// system prompt.
	Rules() []string

	// Tools returns the task-specific functions (in addition to the
	// knowledge graph's shared search/execute functions the agent loop
	// adds separately).
	Tools() []tool.Tool

	// IsTerminal reports whether a tool call name ends the loop (e.g.
	// "answer"/"cancel" for SPARQL-QA, "stop" for CEA/Exploration).
	// Matches "task_done" in the original's core.py.
	IsTerminal(toolCallName string) bool

	// Output inspects the full conversation and returns the task's
	// final result, or nil if the conversation holds none. The agent loop
	// calls it when a turn ends generation (no tool calls, or a terminal
	// call) with feedback enabled, and once after the loop has ended.
	Output(messages []conversation.Message) *Output
}

// KnownAware is implemented by adapters whose tool dispatch depends on
// the request's know-before-use set (CEA's annotate, WDQL's seeded
// query). The agent loop calls SetKnown once before the first turn.
type KnownAware interface {
	SetKnown(known *knownset.Set)
}

// ExampleInjector is implemented by adapters that support few-shot
// example injection ahead of the first real turn (ForceExamples config,
// see SPEC_FULL.md Supplemented Features). InjectExamples returns
// synthetic assistant/tool turn pairs to prepend.
type ExampleInjector interface {
	InjectExamples(ctx context.Context, n int, forceRandom bool) ([]conversation.Message, error)
}

// FeedbackAware is implemented by the task kinds the original source
// supports feedback for (SPARQL-QA, CEA): it supplies the system and
// user messages the feedback sub-loop (pkg/feedback) sends to the model
// to critique a candidate Output. Tasks that don't implement this
// interface simply never receive feedback, regardless of
// config.Feedback (mirrors generate_feedback's per-task dispatch, which
// raises for any other task).
type FeedbackAware interface {
	FeedbackSystemPrompt(notes []string, kgNotes map[string][]string) string
	FeedbackInstructions(inputs []string, output *Output) string
}
