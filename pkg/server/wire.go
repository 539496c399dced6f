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

package server

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/opengrasp/grasp/pkg/agentloop"
	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/feedback"
)

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// apiToolCall is the wire shape of a conversation.ToolCall: Result is
// nil for a call still awaiting its result.
type apiToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result *string        `json:"result,omitempty"`
}

// apiMessage is the wire shape of one conversation.Message, letting a
// one-shot /run caller resume a prior conversation by round-tripping its
// past_messages. role "assistant" carries reasoning/tool_calls; every
// other role carries only content.
type apiMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content,omitempty"`
	Reasoning string         `json:"reasoning,omitempty"`
	ToolCalls []apiToolCall  `json:"tool_calls,omitempty"`
}

func toConversationMessages(msgs []apiMessage) []conversation.Message {
	out := make([]conversation.Message, 0, len(msgs))
	for _, m := range msgs {
		role := conversation.Role(m.Role)
		if role != conversation.RoleAssistant {
			content := m.Content
			out = append(out, conversation.NewText(role, content))
			continue
		}

		resp := &conversation.Response{}
		if m.Content != "" {
			content := m.Content
			resp.Message = &content
		}
		if m.Reasoning != "" {
			resp.Reasoning = &conversation.Reasoning{Content: m.Reasoning}
		}
		for _, tc := range m.ToolCalls {
			resp.ToolCalls = append(resp.ToolCalls, conversation.ToolCall{
				ID: tc.ID, Name: tc.Name, Args: tc.Args, Result: tc.Result,
			})
		}
		out = append(out, conversation.NewAssistant(resp))
	}
	return out
}

func fromConversationMessages(msgs []conversation.Message) []apiMessage {
	out := make([]apiMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsAssistant() {
			out = append(out, apiMessage{Role: string(m.Role), Content: m.Text()})
			continue
		}
		resp := m.Assistant
		am := apiMessage{Role: string(m.Role)}
		if resp.Message != nil {
			am.Content = *resp.Message
		}
		if resp.HasReasoningContent() {
			am.Reasoning = resp.Reasoning.Content
		}
		for _, tc := range resp.ToolCalls {
			am.ToolCalls = append(am.ToolCalls, apiToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Args, Result: tc.Result})
		}
		out = append(out, am)
	}
	return out
}

// eventPayload is the wire shape of one agentloop.Event, streamed to
// /live clients and, in aggregate, summarized in the /run response.
type eventPayload struct {
	Type            agentloop.EventType        `json:"type"`
	Functions       []string                   `json:"functions,omitempty"`
	SystemMessage   string                     `json:"system_message,omitempty"`
	Content         string                     `json:"content,omitempty"`
	Name            string                     `json:"name,omitempty"`
	Args            map[string]any             `json:"args,omitempty"`
	Result          string                     `json:"result,omitempty"`
	FeedbackStatus  feedback.Status            `json:"feedback_status,omitempty"`
	FeedbackMessage string                     `json:"feedback_message,omitempty"`
	Task            string                     `json:"task,omitempty"`
	Output          *outputPayload             `json:"output,omitempty"`
	ElapsedSeconds  float64                    `json:"elapsed_seconds,omitempty"`
	Error           string                     `json:"error,omitempty"`
	Reason          string                     `json:"reason,omitempty"`
	Inputs          []string                   `json:"inputs,omitempty"`
	Messages        []apiMessage               `json:"messages,omitempty"`
	Known           []string                   `json:"known,omitempty"`
}

type outputPayload struct {
	Type      string         `json:"type"`
	Formatted string         `json:"formatted"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func toEventPayload(ev agentloop.Event) eventPayload {
	p := eventPayload{
		Type:            ev.Type,
		SystemMessage:   ev.SystemMessage,
		Content:         ev.Content,
		Name:            ev.Name,
		Args:            ev.Args,
		Result:          ev.Result,
		FeedbackStatus:  ev.FeedbackStatus,
		FeedbackMessage: ev.FeedbackMessage,
		Task:            ev.Task,
		ElapsedSeconds:  ev.Elapsed.Seconds(),
		Inputs:          ev.Inputs,
		Known:           ev.Known,
	}
	for _, fn := range ev.Functions {
		p.Functions = append(p.Functions, fn.Name)
	}
	if ev.Output != nil {
		p.Output = &outputPayload{Type: ev.Output.Type, Formatted: ev.Output.Formatted, Fields: ev.Output.Fields}
	}
	if ev.Err != nil {
		p.Error = fmt.Sprintf("%v", ev.Err)
		p.Reason = agentloop.Reason(ev.Err)
	}
	if ev.Type == agentloop.EventOutput && len(ev.Messages) > 0 {
		p.Messages = fromConversationMessages(ev.Messages)
	}
	return p
}
