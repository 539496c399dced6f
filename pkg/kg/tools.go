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

package kg

import (
	"context"
	"fmt"
	"strings"

	"github.com/opengrasp/grasp/pkg/knownset"
	"github.com/opengrasp/grasp/pkg/llms"
	"github.com/opengrasp/grasp/pkg/tool"
)

// CommonTools builds the knowledge-graph-facing tools every task adapter
// shares: searching entities/properties and executing SPARQL. A task
// composes these with its own tools into one registry via tool.NewRegistry.
func CommonTools(managers []*Manager, maxRows, maxCols, searchTopK int, known *knownset.Set) []tool.Tool {
	return []tool.Tool{
		newSearchEntitiesTool(managers, searchTopK, known),
		newSearchPropertiesTool(managers, searchTopK, known),
		newExecuteTool(managers, maxRows, maxCols, known),
	}
}

// toolFunc is a simple struct-backed tool.Tool implementation.
type toolFunc struct {
	name        string
	description string
	schema      llms.JSONSchema
	call        func(ctx context.Context, args map[string]any) (string, error)
}

func kgEnum(managers []*Manager) []any {
	names := Names(managers)
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func newSearchEntitiesTool(managers []*Manager, topK int, known *knownset.Set) toolFunc {
	return toolFunc{
		name:        "search_entities",
		description: "Search for candidate entity IRIs matching a free-text mention.",
		schema: llms.JSONSchema{
			Type: "object",
			Properties: map[string]llms.JSONSchema{
				"kg":    {Type: "string", Enum: kgEnum(managers), Description: "The knowledge graph to search"},
				"query": {Type: "string", Description: "The entity mention to search for"},
			},
			Required: []string{"kg", "query"},
		},
		call: func(ctx context.Context, args map[string]any) (string, error) {
			kgName, _ := args["kg"].(string)
			query, _ := args["query"].(string)
			manager, ok := FindManager(managers, kgName)
			if !ok {
				return "", fmt.Errorf("unknown knowledge graph %q", kgName)
			}
			if manager.Entities == nil {
				return "", fmt.Errorf("knowledge graph %q has no entity index configured", kgName)
			}
			results, err := manager.Entities.Search(ctx, query, resultLimit(topK))
			if err != nil {
				return "", err
			}
			return formatSearchResults(results, manager, known), nil
		},
	}
}

func newSearchPropertiesTool(managers []*Manager, topK int, known *knownset.Set) toolFunc {
	return toolFunc{
		name:        "search_properties",
		description: "Search for candidate property IRIs matching a free-text mention.",
		schema: llms.JSONSchema{
			Type: "object",
			Properties: map[string]llms.JSONSchema{
				"kg":    {Type: "string", Enum: kgEnum(managers), Description: "The knowledge graph to search"},
				"query": {Type: "string", Description: "The property mention to search for"},
			},
			Required: []string{"kg", "query"},
		},
		call: func(ctx context.Context, args map[string]any) (string, error) {
			kgName, _ := args["kg"].(string)
			query, _ := args["query"].(string)
			manager, ok := FindManager(managers, kgName)
			if !ok {
				return "", fmt.Errorf("unknown knowledge graph %q", kgName)
			}
			if manager.Properties == nil {
				return "", fmt.Errorf("knowledge graph %q has no property index configured", kgName)
			}
			results, err := manager.Properties.Search(ctx, query, resultLimit(topK))
			if err != nil {
				return "", err
			}
			return formatSearchResults(results, manager, known), nil
		},
	}
}

func newExecuteTool(managers []*Manager, maxRows, maxCols int, known *knownset.Set) toolFunc {
	return toolFunc{
		name:        "execute",
		description: "Execute a SPARQL query against a knowledge graph and return its result.",
		schema: llms.JSONSchema{
			Type: "object",
			Properties: map[string]llms.JSONSchema{
				"kg":     {Type: "string", Enum: kgEnum(managers), Description: "The knowledge graph to query"},
				"sparql": {Type: "string", Description: "The SPARQL query to execute"},
			},
			Required: []string{"kg", "sparql"},
		},
		call: func(ctx context.Context, args map[string]any) (string, error) {
			kgName, _ := args["kg"].(string)
			query, _ := args["sparql"].(string)
			return ExecuteAndFormat(ctx, managers, kgName, query, resultLimit(maxRows), resultLimit(maxCols), known)
		},
	}
}

func formatSearchResults(results []SearchResult, manager *Manager, known *knownset.Set) string {
	if len(results) == 0 {
		return "No results found"
	}
	var b strings.Builder
	for i, r := range results {
		short := manager.Shorten(r.IRI)
		if known != nil {
			known.Add(r.IRI)
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, short, r.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t toolFunc) Name() string            { return t.name }
func (t toolFunc) Description() string     { return t.description }
func (t toolFunc) Schema() llms.JSONSchema { return t.schema }
func (t toolFunc) Strict() bool            { return true }
func (t toolFunc) Call(ctx context.Context, args map[string]any) (string, error) {
	return t.call(ctx, args)
}
