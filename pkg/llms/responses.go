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
	"fmt"

	"github.com/opengrasp/grasp/pkg/conversation"
)

// BuildResponsesItems serializes a conversation into the Responses-API
// wire shape, mirroring responses_api_messages: a reasoning item (if
// present), a message item (if the assistant produced text), then one
// custom_tool_call/custom_tool_call_output pair per tool call, the two
// always adjacent so a tool call's result is never separated from its
// invocation.
func BuildResponsesItems(msgs []conversation.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs)*2)

	for _, m := range msgs {
		if !m.IsAssistant() {
			out = append(out, map[string]any{
				"type":    "message",
				"role":    wireRole(m.Role),
				"content": m.Text(),
			})
			continue
		}

		resp := m.Assistant
		if resp.Reasoning != nil {
			content := []string{}
			summary := []string{}
			if resp.Reasoning.Content != "" {
				content = []string{resp.Reasoning.Content}
			}
			if resp.Reasoning.Summary != "" {
				summary = []string{resp.Reasoning.Summary}
			}
			out = append(out, map[string]any{
				"id":                resp.Reasoning.ID,
				"type":              "reasoning",
				"content":           content,
				"summary":           summary,
				"encrypted_content": resp.Reasoning.EncryptedContent,
			})
		}
		if resp.Message != nil {
			out = append(out, map[string]any{
				"id":      resp.ID,
				"type":    "message",
				"role":    string(m.Role),
				"content": *resp.Message,
			})
		}
		for _, tc := range resp.ToolCalls {
			args, _ := json.Marshal(tc.Args)
			out = append(out, map[string]any{
				"type":    "custom_tool_call",
				"call_id": tc.ID,
				"name":    tc.Name,
				"input":   string(args),
			})
			result := ""
			if tc.Result != nil {
				result = *tc.Result
			}
			out = append(out, map[string]any{
				"type":    "custom_tool_call_output",
				"call_id": tc.ID,
				"output":  result,
			})
		}
	}

	return out
}

// responsesAPIResponse is the subset of the Responses-API body needed to
// reconstruct a conversation.Response.
type responsesAPIResponse struct {
	Output []struct {
		Type    string `json:"type"`
		ID      string `json:"id"`
		Role    string `json:"role"`
		Content any    `json:"content"` // string, or []{text} for message items
		Summary []struct {
			Text string `json:"text"`
		} `json:"summary"`
		EncryptedContent string `json:"encrypted_content"`
		CallID           string `json:"call_id"`
		Name             string `json:"name"`
		Arguments        string `json:"arguments"`
	} `json:"output"`
	Usage map[string]any `json:"usage"`
}

// ParseResponsesResponse mirrors Response.from_responses_api: it walks
// output items, dispatching on type. Unknown item types are reported as
// errors rather than silently ignored, since a silently-dropped tool call
// would desynchronize the conversation from what was actually executed.
func ParseResponsesResponse(body []byte) (*conversation.Response, error) {
	var raw responsesAPIResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode responses response: %w", err)
	}

	resp := &conversation.Response{Usage: raw.Usage}
	for _, item := range raw.Output {
		switch item.Type {
		case "message":
			resp.ID = item.ID
			text := extractMessageText(item.Content)
			resp.Message = &text
		case "reasoning":
			r := &conversation.Reasoning{ID: item.ID, EncryptedContent: item.EncryptedContent}
			if s, ok := item.Content.(string); ok {
				r.Content = s
			} else if parts, ok := item.Content.([]any); ok && len(parts) > 0 {
				r.Content = extractMessageText(item.Content)
			}
			if len(item.Summary) > 0 {
				r.Summary = item.Summary[0].Text
			}
			resp.Reasoning = r
		case "custom_tool_call", "function_call":
			var args map[string]any
			_ = json.Unmarshal([]byte(item.Arguments), &args)
			resp.ToolCalls = append(resp.ToolCalls, conversation.ToolCall{
				ID:   item.CallID,
				Name: item.Name,
				Args: args,
			})
		case "custom_tool_call_output":
			// Echoed back only when replaying history; a fresh model
			// response never contains its own outputs.
		default:
			return nil, fmt.Errorf("unsupported responses-api output item type %q", item.Type)
		}
	}
	return resp, nil
}

func extractMessageText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var out string
		for _, part := range v {
			if m, ok := part.(map[string]any); ok {
				if t, ok := m["text"].(string); ok {
					out += t
				}
			}
		}
		return out
	default:
		return ""
	}
}
