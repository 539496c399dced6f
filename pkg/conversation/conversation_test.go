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

package conversation

import "testing"

func TestResponseIsEmpty(t *testing.T) {
	if !(&Response{}).IsEmpty() {
		t.Fatal("zero-value Response should be empty")
	}
	msg := "hello"
	if (&Response{Message: &msg}).IsEmpty() {
		t.Fatal("Response with a message should not be empty")
	}
	if (&Response{ToolCalls: []ToolCall{{Name: "answer"}}}).IsEmpty() {
		t.Fatal("Response with a tool call should not be empty")
	}
}

func TestResponseHasContent(t *testing.T) {
	r := &Response{Reasoning: &Reasoning{Summary: "thinking"}}
	if !r.HasContent() {
		t.Fatal("reasoning summary alone should count as content")
	}
	if (&Response{}).HasContent() {
		t.Fatal("empty response should not have content")
	}
}

func TestResponseHashStableUnderToolCallOrder(t *testing.T) {
	r1 := &Response{ToolCalls: []ToolCall{
		{Name: "search_entities", Args: map[string]any{"query": "Berlin"}},
		{Name: "answer", Args: map[string]any{"value": 1}},
	}}
	r2 := &Response{ToolCalls: []ToolCall{
		{Name: "answer", Args: map[string]any{"value": 1}},
		{Name: "search_entities", Args: map[string]any{"query": "Berlin"}},
	}}
	if r1.Hash() != r2.Hash() {
		t.Fatal("Hash should not depend on tool call order, needed for loop detection")
	}
}

func TestResponseHashIgnoresToolCallID(t *testing.T) {
	r1 := &Response{ID: "resp-1", ToolCalls: []ToolCall{{ID: "call-1", Name: "answer", Args: map[string]any{}}}}
	r2 := &Response{ID: "resp-2", ToolCalls: []ToolCall{{ID: "call-2", Name: "answer", Args: map[string]any{}}}}
	if r1.Hash() != r2.Hash() {
		t.Fatal("Hash should ignore response/call IDs so retries of the same content are detected as loops")
	}
}

func TestResponseHashDiffersOnContent(t *testing.T) {
	msgA, msgB := "a", "b"
	if (&Response{Message: &msgA}).Hash() == (&Response{Message: &msgB}).Hash() {
		t.Fatal("different messages must hash differently")
	}
}

func TestMessageConstructors(t *testing.T) {
	m := NewText(RoleUser, "hi")
	if m.IsAssistant() || m.Text() != "hi" {
		t.Fatalf("NewText built wrong message: %+v", m)
	}

	resp := &Response{Message: strPtr("hi back")}
	am := NewAssistant(resp)
	if !am.IsAssistant() || am.Assistant != resp {
		t.Fatalf("NewAssistant built wrong message: %+v", am)
	}
}

func strPtr(s string) *string { return &s }
