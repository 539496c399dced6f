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

// Package wdql implements the WDQL task: given an anonymized SPARQL
// query pulled from the Wikidata Query Service logs, generate natural
// language questions it could answer. Grounded in
// original_source/tasks/wikidata_query_logs.py. Single knowledge graph
// only (Wikidata), matching the original's `assert len(managers) == 1`.
package wdql

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/kg"
	"github.com/opengrasp/grasp/pkg/knownset"
	"github.com/opengrasp/grasp/pkg/llms"
	"github.com/opengrasp/grasp/pkg/task"
	"github.com/opengrasp/grasp/pkg/tool"
)

// Adapter implements task.Adapter for WDQL.
type Adapter struct {
	manager     *kg.Manager
	maxRows     int
	maxCols     int
	maxQuestions int
	known       *knownset.Set
}

// New builds a WDQL adapter. managers must contain exactly one manager
// (Wikidata), mirroring the original's single-KG assertion.
func New(managers []*kg.Manager, maxRows, maxCols, maxQuestions int) *Adapter {
	var m *kg.Manager
	if len(managers) == 1 {
		m = managers[0]
	}
	if maxQuestions <= 0 {
		maxQuestions = 5
	}
	return &Adapter{manager: m, maxRows: maxRows, maxCols: maxCols, maxQuestions: maxQuestions}
}

func (a *Adapter) SetKnown(known *knownset.Set) { a.known = known }

func (a *Adapter) Name() string { return "wdql" }

func (a *Adapter) SystemPrompt() string {
	return fmt.Sprintf(`You are a Wikidata expert trying to find possible user questions for anonymized SPARQL queries sent to the Wikidata Query Service. Your task is to generate one or more natural language questions that correspond to a given SPARQL query.

You should take a step-by-step approach to understand the query and generate the questions:
1. Analyze the given SPARQL query, its used entities and properties, and execution result. Think about what the user wanted to achieve with this query. Search and query Wikidata to gain more context about the SPARQL query, if needed.
2. Clean the SPARQL query. This e.g. includes removing superfluous variables or other unnecessary parts, finding better variable names, or replacing anonymized string literals with sensible values.
3. Formulate your final SPARQL query and validate it against Wikidata. It should not be too different from the original anonymous query in terms of intent and its execution result, but you are allowed to deviate if it would make the query more natural, precise, etc.
4. For the final SPARQL query, generate between 1 and %d natural language questions that accurately reflect its intent.
5. Provide your final output by calling the answer function.`, a.maxQuestions)
}

func (a *Adapter) Rules() []string {
	return []string{
		"The generated questions should be diverse regarding the phrasing (e.g. keyword-like, formulated in a requesting or asking manner, etc.).",
		"You can use the cancel function at any time to stop the task without producing an output (e.g. if the SPARQL query is invalid or does not make sense).",
	}
}

func (a *Adapter) Tools() []tool.Tool {
	return []tool.Tool{answerTool{}, cancelTool{}}
}

func (a *Adapter) IsTerminal(name string) bool {
	return name == "answer" || name == "cancel"
}

type answerTool struct{}

func (answerTool) Name() string        { return "answer" }
func (answerTool) Description() string { return "Finalize your output and stop." }
func (answerTool) Strict() bool        { return true }
func (answerTool) Schema() llms.JSONSchema {
	return llms.JSONSchema{
		Type: "object",
		Properties: map[string]llms.JSONSchema{
			"sparql": {Type: "string", Description: "The final cleaned SPARQL query"},
			"questions": {
				Type:        "array",
				Description: "A list of natural language questions corresponding to the SPARQL query",
				Items:       &llms.JSONSchema{Type: "string", Description: "A natural language question corresponding to the SPARQL query"},
			},
		},
		Required: []string{"sparql", "questions"},
	}
}
func (answerTool) Call(context.Context, map[string]any) (string, error) { return "Stopping", nil }

type cancelTool struct{}

func (cancelTool) Name() string        { return "cancel" }
func (cancelTool) Description() string { return "Stop the task without producing an output." }
func (cancelTool) Strict() bool        { return true }
func (cancelTool) Schema() llms.JSONSchema {
	return llms.JSONSchema{
		Type: "object",
		Properties: map[string]llms.JSONSchema{
			"reason": {Type: "string", Description: "The reason for cancelling the task"},
		},
		Required: []string{"reason"},
	}
}
func (cancelTool) Call(context.Context, map[string]any) (string, error) { return "Stopping", nil }

var serviceLabelRe = regexp.MustCompile(`(?is)SERVICE\s+wikibase:label\s*\{[^}]*\}`)

// CleanInput strips the SERVICE wikibase:label block out of an
// anonymized query before it is shown to the model the first time,
// mirroring the input-cleaning step described in SPEC_FULL.md §4
// (grounded in the task's own "clean the SPARQL query" instruction).
func CleanInput(sparql string) string {
	return strings.TrimSpace(serviceLabelRe.ReplaceAllString(sparql, ""))
}

// Output mirrors tasks/wikidata_query_logs.py::output: it only looks at
// the very last message, which must be an assistant turn with at least
// one tool call; the first tool call decides the output.
func (a *Adapter) Output(messages []conversation.Message) *task.Output {
	if len(messages) == 0 {
		return nil
	}
	last := messages[len(messages)-1]
	if !last.IsAssistant() || len(last.Assistant.ToolCalls) == 0 {
		return nil
	}
	tc := last.Assistant.ToolCalls[0]

	switch tc.Name {
	case "answer":
		sparqlQuery, _ := tc.Args["sparql"].(string)
		fields := map[string]any{"sparql": sparqlQuery}
		formatted := "No output"
		if a.manager != nil {
			result, err := kg.ExecuteAndFormat(context.Background(), []*kg.Manager{a.manager}, a.manager.Name, sparqlQuery, a.maxRows, a.maxCols, a.known)
			if err == nil {
				formatted = result
			}
		}
		if qs, ok := tc.Args["questions"].([]any); ok {
			lines := make([]string, 0, len(qs))
			for i, q := range qs {
				if s, ok := q.(string); ok {
					lines = append(lines, fmt.Sprintf("%d. %s", i+1, s))
				}
			}
			fields["questions"] = qs
			formatted = "Questions:\n" + strings.Join(lines, "\n") + "\n\n" + formatted
		}
		return &task.Output{Type: "answer", Formatted: formatted, Fields: fields}

	case "cancel":
		reason, _ := tc.Args["reason"].(string)
		return &task.Output{
			Type:      "cancel",
			Formatted: "Cancelled:\n" + reason,
			Fields:    map[string]any{"reason": reason},
		}
	}
	return nil
}

var _ task.Adapter = (*Adapter)(nil)
var _ task.KnownAware = (*Adapter)(nil)
