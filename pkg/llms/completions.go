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

package llms

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opengrasp/grasp/pkg/conversation"
)

// ErrNoChoices is returned when the Completions API responds with an
// empty choices array, mirroring core.py's `if not response.choices`
// check.
var ErrNoChoices = errors.New("no choices in completions response")

// wireRole maps a conversation.Role onto the wire role used by the
// completions form. "feedback" becomes "user", mirroring
// completions_api_messages in the original model.py.
func wireRole(r conversation.Role) string {
	if r == conversation.RoleFeedback {
		return string(conversation.RoleUser)
	}
	return string(r)
}

// BuildCompletionsMessages flattens a conversation into the Completions-API
// wire shape: one assistant message per turn (tool_calls inline, content
// flattened to a single string, reasoning carried in a side
// "reasoning_content" field) immediately followed by one {role: tool, ...}
// message per tool call result.
func BuildCompletionsMessages(msgs []conversation.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs)*2)

	for _, m := range msgs {
		if !m.IsAssistant() {
			out = append(out, map[string]any{
				"role":    wireRole(m.Role),
				"content": m.Text(),
			})
			continue
		}

		resp := m.Assistant
		msg := map[string]any{"role": string(m.Role)}
		if resp.Message != nil {
			msg["content"] = *resp.Message
		} else {
			msg["content"] = ""
		}
		if resp.HasReasoningContent() {
			msg["reasoning_content"] = resp.Reasoning.Content
		}
		if len(resp.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(resp.ToolCalls))
			for _, tc := range resp.ToolCalls {
				args, _ := json.Marshal(tc.Args)
				calls = append(calls, map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": string(args),
					},
				})
			}
			msg["tool_calls"] = calls
		}
		out = append(out, msg)

		for _, tc := range resp.ToolCalls {
			result := ""
			if tc.Result != nil {
				result = *tc.Result
			}
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": tc.ID,
				"content":      result,
			})
		}
	}

	return out
}

// completionsAPIResponse is the subset of an OpenAI-compatible
// chat-completions response body needed to build a conversation.Response.
type completionsAPIResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content          *string `json:"content"`
			ReasoningContent *string `json:"reasoning_content"`
			ToolCalls        []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
}

// ParseCompletionsResponse mirrors Response.from_completions_api.
func ParseCompletionsResponse(body []byte) (*conversation.Response, string, error) {
	var raw completionsAPIResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", fmt.Errorf("decode completions response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, "", ErrNoChoices
	}
	choice := raw.Choices[0]

	resp := &conversation.Response{Usage: raw.Usage}
	if choice.Message.Content != nil && *choice.Message.Content != "" {
		resp.Message = choice.Message.Content
	}
	if choice.Message.ReasoningContent != nil && *choice.Message.ReasoningContent != "" {
		resp.Reasoning = &conversation.Reasoning{Content: *choice.Message.ReasoningContent}
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		resp.ToolCalls = append(resp.ToolCalls, conversation.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return resp, choice.FinishReason, nil
}
