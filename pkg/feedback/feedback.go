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

// Package feedback implements the feedback sub-loop: a single,
// isolated model call that critiques a task's candidate Output and
// returns a status (done/refine/retry) plus a message, which the agent
// loop folds back into the main conversation as a "feedback" role
// message. Grounded in original_source/tasks/feedback.py.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opengrasp/grasp/pkg/config"
	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/llms"
	"github.com/opengrasp/grasp/pkg/task"
)

// Status is the verdict a feedback round reaches about a candidate Output.
type Status string

const (
	StatusDone   Status = "done"
	StatusRefine Status = "refine"
	StatusRetry  Status = "retry"
)

// Feedback is the parsed result of one give_feedback tool call.
type Feedback struct {
	Status  Status `json:"status"`
	Message string `json:"feedback"`
}

// Format renders a Feedback the way it is appended to the conversation,
// mirroring tasks/feedback.py::format_feedback.
func (f *Feedback) Format() string {
	return fmt.Sprintf("Feedback (status=%s):\n%s", f.Status, f.Message)
}

func functionDefinition() llms.FunctionDefinition {
	return llms.FunctionDefinition{
		Name: "give_feedback",
		Description: `Provide feedback on the output of the system for the specified task.

The feedback status can be one of:
1. done: The output is correct and complete in its current form
2. refine: The output is sensible, but needs some refinement
3. retry: The output is incorrect and needs to be reworked

The feedback message should describe the reasoning behind the chosen status and provide suggestions for improving the output if applicable.`,
		Strict: true,
		Parameters: llms.JSONSchema{
			Type: "object",
			Properties: map[string]llms.JSONSchema{
				"status":   {Type: "string", Enum: []any{"done", "refine", "retry"}, Description: "The feedback type"},
				"feedback": {Type: "string", Description: "The feedback message"},
			},
			Required: []string{"status", "feedback"},
		},
	}
}

// ErrUnsupportedTask is returned when adapter does not implement
// task.FeedbackAware, mirroring generate_feedback's ValueError for
// unsupported tasks.
var ErrUnsupportedTask = errors.New("feedback not implemented for this task")

// Generate runs one feedback round: it builds the task's feedback
// system/user messages, calls the model with only the give_feedback
// function available, and parses the resulting tool call. A timeout or
// any failure to parse a valid give_feedback call is reported as
// (nil, nil) rather than an error when the original's own behavior is to
// silently treat it as "no feedback" (see DESIGN.md); genuine transport
// errors still propagate.
func Generate(
	ctx context.Context,
	bridge *llms.Bridge,
	adapter task.Adapter,
	cfg *config.Config,
	notes []string,
	kgNotes map[string][]string,
	inputs []string,
	output *task.Output,
) (*Feedback, error) {
	aware, ok := adapter.(task.FeedbackAware)
	if !ok {
		return nil, ErrUnsupportedTask
	}

	messages := []conversation.Message{
		conversation.NewText(conversation.RoleSystem, aware.FeedbackSystemPrompt(notes, kgNotes)),
		conversation.NewText(conversation.RoleUser, aware.FeedbackInstructions(inputs, output)),
	}

	resp, _, err := bridge.Call(ctx, messages, []llms.FunctionDefinition{functionDefinition()}, cfg)
	if err != nil {
		if errors.Is(err, llms.ErrTimeout) {
			return nil, nil
		}
		return nil, err
	}

	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "give_feedback" {
		return nil, nil
	}

	raw, err := json.Marshal(resp.ToolCalls[0].Args)
	if err != nil {
		return nil, nil
	}
	var fb Feedback
	if err := json.Unmarshal(raw, &fb); err != nil {
		return nil, nil
	}
	return &fb, nil
}
