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

// Package kg is the knowledge-graph boundary: a Manager bundles one
// knowledge graph's SPARQL endpoint, IRI prefixes, and entity/property
// search indices behind a small interface. Index construction and the
// low-level SPARQL wire protocol are both out of scope for GRASP itself
// (the original's `search_index`/QLever client packages); Manager only
// needs an EntityIndex/PropertyIndex/SparqlExecutor to drive the task
// adapters, so those stay interfaces a deployment wires up.
package kg

import "context"

// SearchResult is one hit from an entity or property index lookup.
type SearchResult struct {
	IRI   string
	Label string
	Score float64
}

// EntityIndex resolves free-text mentions to candidate entity IRIs.
// Concrete implementations load a prefix or similarity index built
// offline by the (out of scope) indexing pipeline.
type EntityIndex interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// PropertyIndex resolves free-text mentions to candidate property IRIs.
type PropertyIndex interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// SparqlExecutor runs a SPARQL query against a knowledge graph's
// endpoint and returns its raw tabular result. Building and prettifying
// the query itself is out of scope; the executor only performs the
// HTTP round trip.
type SparqlExecutor interface {
	Execute(ctx context.Context, query string) (*SparqlResult, error)
}

// SparqlResult is a SPARQL SELECT/ASK result, already decoded from the
// endpoint's SPARQL-JSON results format.
type SparqlResult struct {
	Variables []string
	Rows      [][]string
	Boolean   *bool // set instead of Rows/Variables for ASK queries
}

// ExampleIndex resolves a knowledge graph + optional natural language
// question to few-shot SPARQL examples, backing the ForceExamples
// config option. Index construction itself is out of scope.
type ExampleIndex interface {
	Random(ctx context.Context, n int) ([]Example, error)
	Similar(ctx context.Context, question string, n int) ([]Example, error)
}

// Example is one few-shot SPARQL example: a question paired with the
// query that answers it.
type Example struct {
	Question string
	Sparql   string
}

// Manager bundles everything a task adapter needs for one knowledge
// graph: its name, IRI prefixes, and the search/execution boundaries.
// Manager is constructed once from config and shared read-only across
// requests; only the per-request KnownSet (pkg/knownset) is request
// scoped.
type Manager struct {
	Name     string
	Endpoint string
	Prefixes map[string]string

	Entities   EntityIndex
	Properties PropertyIndex
	Executor   SparqlExecutor
	Examples   ExampleIndex

	// Notes are the knowledge-graph-specific notes loaded at startup
	// (original_source/manager/utils.py::load_kg_notes); the notes
	// sub-loop (pkg/feedback, pkg/task/exploration) may append to a
	// mutable copy held by the request's task state, never to this one.
	Notes []string
}

// Shorten rewrites a full IRI to its prefixed form (e.g.
// "http://www.wikidata.org/entity/Q42" -> "wd:Q42") when a known prefix
// matches, and returns the IRI unchanged otherwise.
func (m *Manager) Shorten(iri string) string {
	for prefix, ns := range m.Prefixes {
		if len(iri) > len(ns) && iri[:len(ns)] == ns {
			return prefix + ":" + iri[len(ns):]
		}
	}
	return iri
}

// FindManager returns the Manager for name out of managers, mirroring
// original_source/functions.py::find_manager.
func FindManager(managers []*Manager, name string) (*Manager, bool) {
	for _, m := range managers {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Names returns the knowledge graph names of managers, in order.
func Names(managers []*Manager) []string {
	out := make([]string, len(managers))
	for i, m := range managers {
		out[i] = m.Name
	}
	return out
}
