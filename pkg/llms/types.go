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

// Package llms is the Model Bridge: it turns a conversation.Message slice
// plus a function-definition union into a single model request, and turns
// the response back into a conversation.Response, hiding which of the two
// OpenAI-compatible wire shapes ("completions" or "responses") is in play.
package llms

import "github.com/opengrasp/grasp/pkg/config"

// FunctionDefinition describes one callable function exposed to the model
// for a given request: the union of knowledge-graph functions and the
// current task's own functions. Strict mirrors the "strict": true flag
// every task module in the original source sets on its function schemas.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  JSONSchema     `json:"parameters"`
	Strict      bool           `json:"strict,omitempty"`
}

// JSONSchema is a minimal JSON Schema representation, sufficient to
// describe the object/string/number/array/null shapes GRASP's function
// parameters use. AdditionalProperties defaults to false when Strict is
// set on the owning FunctionDefinition, matching every task adapter's
// "additionalProperties": false convention.
type JSONSchema struct {
	Type                 any                   `json:"type"` // string or []string (nullable unions)
	Properties           map[string]JSONSchema `json:"properties,omitempty"`
	Items                *JSONSchema           `json:"items,omitempty"`
	Required             []string              `json:"required,omitempty"`
	Enum                 []any                 `json:"enum,omitempty"`
	Description          string                `json:"description,omitempty"`
	AdditionalProperties *bool                 `json:"additionalProperties,omitempty"`
}

// API identifies which OpenAI-compatible wire shape to use.
type API string

const (
	APICompletions API = "completions"
	APIResponses   API = "responses"
)

// ResolveAPI implements the auto-detection rule from
// original_source/src/grasp/model.py::call_model: an explicit
// config.API always wins; otherwise "responses" is used iff the model id
// is litellm-style provider-prefixed with "openai/".
func ResolveAPI(cfg *config.Config) API {
	if cfg.API == "completions" {
		return APICompletions
	}
	if cfg.API == "responses" {
		return APIResponses
	}
	if hasPrefix(cfg.Model, "openai/") {
		return APIResponses
	}
	return APICompletions
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
