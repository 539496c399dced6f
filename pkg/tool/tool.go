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

// Package tool defines the function-calling surface the agent loop
// exposes to the model: a Tool is one callable function, a Registry is
// the union of functions available for a given request (the knowledge
// graph's own functions plus whatever the active task adapter
// contributes), and dispatch turns one model tool call into one result
// string appended back to the conversation.
package tool

import (
	"context"
	"fmt"

	"github.com/opengrasp/grasp/pkg/llms"
)

// Tool is one function the model may call. Call receives the model's
// arguments as decoded JSON (Registry.Dispatch does not validate them
// against Schema) and returns the string that gets appended to the
// conversation as the tool result.
type Tool interface {
	Name() string
	Description() string
	Schema() llms.JSONSchema

	// Strict mirrors the "strict": true convention every task module in
	// the original source sets on its function schemas: no
	// additional properties, every property required.
	Strict() bool

	Call(ctx context.Context, args map[string]any) (string, error)
}

// Definition converts a Tool into the wire-level function definition the
// Model Bridge sends to the provider.
func Definition(t Tool) llms.FunctionDefinition {
	return llms.FunctionDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema(),
		Strict:      t.Strict(),
	}
}

// Predicate determines whether a tool should be exposed for a given
// request; NewRegistry keeps only the tools that pass its predicates.
// The agent loop builds its registry without any predicates.
type Predicate func(Tool) bool

// AllowAll allows every tool.
func AllowAll() Predicate { return func(Tool) bool { return true } }

// DenyAll allows no tool.
func DenyAll() Predicate { return func(Tool) bool { return false } }

// Named allows only the tools whose name appears in names.
func Named(names ...string) Predicate {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return func(t Tool) bool { return allowed[t.Name()] }
}

// Combine combines predicates with AND logic.
func Combine(predicates ...Predicate) Predicate {
	return func(t Tool) bool {
		for _, p := range predicates {
			if !p(t) {
				return false
			}
		}
		return true
	}
}

// Or combines predicates with OR logic.
func Or(predicates ...Predicate) Predicate {
	return func(t Tool) bool {
		for _, p := range predicates {
			if p(t) {
				return true
			}
		}
		return false
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(t Tool) bool { return !p(t) }
}

// Registry is the union of tools available for one request: it is
// rebuilt per request (never shared across requests) because task
// adapters close over request-scoped state such as the known set and
// the active knowledge graph.
type Registry struct {
	tools []Tool
	byName map[string]Tool
}

// NewRegistry builds a Registry from tools, keeping only those that pass
// every predicate (AND semantics across the predicate list, matching
// how a knowledge graph's base functions and a task's own restrictions
// are composed in practice).
func NewRegistry(tools []Tool, predicates ...Predicate) *Registry {
	allow := Combine(predicates...)
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if !allow(t) {
			continue
		}
		r.tools = append(r.tools, t)
		r.byName[t.Name()] = t
	}
	return r
}

// Definitions returns the wire-level function definitions for every tool
// in the registry, in registration order (stable across a request so
// the model sees a consistent function list turn to turn).
func (r *Registry) Definitions() []llms.FunctionDefinition {
	defs := make([]llms.FunctionDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition(t))
	}
	return defs
}

// Has reports whether name is a registered function.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Dispatch runs the named tool with args and returns its result string.
// An unknown tool name is the caller's bug (the model was given a
// function list that didn't include it) and is reported as an error
// rather than silently tolerated.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return t.Call(ctx, args)
}
