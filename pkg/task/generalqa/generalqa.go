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

// Package generalqa implements the General-QA task: free-form question
// answering grounded in the knowledge graphs, with no task-specific
// terminal function. Grounded in
// original_source/tasks/general_qa.py.
package generalqa

import (
	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/task"
	"github.com/opengrasp/grasp/pkg/tool"
)

// Adapter implements task.Adapter for General-QA.
type Adapter struct{}

// New builds a General-QA adapter. It has no per-request state, so one
// instance may be reused across requests if desired.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "general-qa" }

func (a *Adapter) SystemPrompt() string {
	return `You are a question answering assistant. Your job is to answer a given user question using the knowledge graphs and functions available to you.

You should follow a step-by-step approach to answer the question:
1. Determine the information needed from the knowledge graphs to answer the user question and think about how it might be represented with entities and properties.
2. Search for the entities and properties in the knowledge graphs. Where applicable, constrain the searches with already identified entities and properties.
3. Gradually build up the answer by querying the knowledge graphs using the identified entities and properties. You may need to refine or rethink your current plan based on the query results and go back to step 2 if needed, possibly multiple times.
4. Output your final answer to the question and stop.`
}

func (a *Adapter) Rules() []string {
	return []string{
		"Your answers preferably should be based on the information available in the knowledge graphs. If you do not need them to answer the question, e.g. if you know the answer by heart, still try to verify it with the knowledge graphs.",
	}
}

// Tools returns no task-specific functions: General-QA relies entirely
// on the knowledge-graph-shared search/execute tools the agent loop adds.
func (a *Adapter) Tools() []tool.Tool { return nil }

// IsTerminal is always false: General-QA has no dedicated stop function,
// the loop ends naturally once the model replies without a tool call.
func (a *Adapter) IsTerminal(string) bool { return false }

// Output returns the last assistant message once the model has replied
// with plain text and no further tool calls, mirroring
// tasks/general_qa.py::output.
func (a *Adapter) Output(messages []conversation.Message) *task.Output {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if !m.IsAssistant() {
			continue
		}
		resp := m.Assistant
		if resp.Message == nil || *resp.Message == "" {
			return nil
		}
		if len(resp.ToolCalls) > 0 {
			return nil
		}
		return &task.Output{
			Type:      "output",
			Formatted: *resp.Message,
			Fields:    map[string]any{"output": *resp.Message},
		}
	}
	return nil
}

var _ task.Adapter = (*Adapter)(nil)
