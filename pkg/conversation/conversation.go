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

// Package conversation holds the wire-independent conversation data model:
// messages, assistant responses, reasoning blocks, and tool calls. Model
// Bridge implementations (pkg/llms) serialize and deserialize this model
// into a specific provider wire format; the agent loop (pkg/agentloop)
// only ever sees these types.
package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Role identifies who produced a Message. "feedback" is a GRASP-specific
// role distinct from "user": the Model Bridge maps it to "user" on the
// wire, but the agent loop and loop-detection logic need to tell feedback
// turns apart from the original input turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFeedback  Role = "feedback"
)

// Reasoning captures a model's chain-of-thought block, when the provider
// exposes one (e.g. OpenAI's encrypted reasoning items). Id is preserved
// verbatim across turns so the Responses-API wire form can echo it back,
// but is excluded from the loop-detection hash since providers mint a
// fresh id on every call even for semantically identical reasoning.
type Reasoning struct {
	ID               string `json:"id,omitempty"`
	Content          string `json:"content,omitempty"`
	Summary          string `json:"summary,omitempty"`
	EncryptedContent string `json:"encrypted_content,omitempty"`
}

// HasContent reports whether the reasoning block carries anything worth
// showing to a user (as opposed to being present only to satisfy an API
// round-trip requirement).
func (r *Reasoning) HasContent() bool {
	return r != nil && (r.Content != "" || r.Summary != "")
}

// ToolCall is a single function call the model requested, together with
// its result once the loop has executed it. Result is nil until the loop
// dispatches the call; the Model Bridge serializes a nil Result as an
// empty tool output when sending a past assistant turn back onto the wire.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result *string        `json:"result,omitempty"`
}

// Response is an assistant turn: free text, an optional reasoning block,
// and zero or more tool calls. It is "empty" when the model produced
// nothing at all, which the agent loop treats as an API-taxonomy error
// rather than a legitimate turn.
type Response struct {
	ID        string     `json:"id,omitempty"`
	Message   *string    `json:"message,omitempty"`
	Reasoning *Reasoning `json:"reasoning,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     map[string]any `json:"usage,omitempty"`
}

// IsEmpty mirrors Response.is_empty in the original Python model: no
// message, no reasoning, and no tool calls at all.
func (r *Response) IsEmpty() bool {
	return r.Message == nil && r.Reasoning == nil && len(r.ToolCalls) == 0
}

// HasReasoningContent mirrors Response.has_reasoning_content.
func (r *Response) HasReasoningContent() bool {
	return r.Reasoning.HasContent()
}

// HasContent mirrors Response.has_content: either a message or a
// reasoning block worth displaying.
func (r *Response) HasContent() bool {
	return r.Message != nil || r.HasReasoningContent()
}

// hashView is the exact shape hashed for loop detection, mirroring
// Response.hash() in original_source/src/grasp/model.py: message, the
// reasoning dict with its id excluded, and tool calls reduced to
// (name, canonical-json-args) pairs sorted for order-independence.
type hashView struct {
	Msg       *string           `json:"msg"`
	Reasoning *reasoningNoID    `json:"reasoning"`
	ToolCalls []toolCallHashRow `json:"tool_calls"`
}

type reasoningNoID struct {
	Content          string `json:"content,omitempty"`
	Summary          string `json:"summary,omitempty"`
	EncryptedContent string `json:"encrypted_content,omitempty"`
}

type toolCallHashRow [2]string // (name, canonical json args)

// Hash returns a stable content hash of the response, used by the agent
// loop to detect the model repeating itself turn after turn. Two
// responses that differ only in id fields or tool-call ordering hash
// identically.
func (r *Response) Hash() string {
	view := hashView{Msg: r.Message}
	if r.Reasoning != nil {
		view.Reasoning = &reasoningNoID{
			Content:          r.Reasoning.Content,
			Summary:          r.Reasoning.Summary,
			EncryptedContent: r.Reasoning.EncryptedContent,
		}
	}

	rows := make([]toolCallHashRow, 0, len(r.ToolCalls))
	for _, tc := range r.ToolCalls {
		args, _ := canonicalJSON(tc.Args)
		rows = append(rows, toolCallHashRow{tc.Name, args})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})
	view.ToolCalls = rows

	data, _ := json.Marshal(view)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON marshals v with map keys sorted, matching Python's
// json.dumps(..., sort_keys=True).
func canonicalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}
	out, err := marshalSorted(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func marshalSorted(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf []byte
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []any:
		var buf []byte
		buf = append(buf, '[')
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			ib, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, ib...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(val)
	}
}

// Message is one turn in the conversation. Exactly one of String or
// Assistant is set: string content covers system/user/feedback turns,
// Assistant covers model turns (the split mirrors the original's
// `content: str | Response` union on its Message pydantic model).
type Message struct {
	Role      Role      `json:"role"`
	String    *string   `json:"content,omitempty"`
	Assistant *Response `json:"response,omitempty"`
}

// NewText builds a plain-text message.
func NewText(role Role, content string) Message {
	return Message{Role: role, String: &content}
}

// NewAssistant builds an assistant turn around a parsed Response.
func NewAssistant(resp *Response) Message {
	return Message{Role: RoleAssistant, Assistant: resp}
}

// Text returns the message's string content, or "" if this is an
// assistant turn.
func (m Message) Text() string {
	if m.String == nil {
		return ""
	}
	return *m.String
}

// IsAssistant reports whether this message carries a parsed Response.
func (m Message) IsAssistant() bool {
	return m.Assistant != nil
}
