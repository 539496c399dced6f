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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/opengrasp/grasp/pkg/httpclient"
)

// HTTPExecutor is a SparqlExecutor that POSTs a query to a SPARQL 1.1
// Protocol endpoint (e.g. QLever, the original's target backend) and
// decodes the standard SPARQL-JSON results format. It is the only piece
// of SPARQL wire handling GRASP itself owns; query construction,
// prettification, and parsing stay out of scope.
type HTTPExecutor struct {
	Endpoint string
	HTTP     *httpclient.Client
}

// NewHTTPExecutor builds an HTTPExecutor using the shared retrying HTTP
// client, parsing OpenAI-style rate limit headers disabled (SPARQL
// endpoints don't emit them; DefaultStrategy still retries on 429/5xx).
func NewHTTPExecutor(endpoint string) *HTTPExecutor {
	return &HTTPExecutor{Endpoint: endpoint, HTTP: httpclient.New()}
}

type sparqlJSONResult struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean"`
}

// Execute implements SparqlExecutor.
func (e *HTTPExecutor) Execute(ctx context.Context, query string) (*SparqlResult, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = form.Encode()
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := e.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparql request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sparql endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var raw sparqlJSONResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode sparql result: %w", err)
	}
	if raw.Boolean != nil {
		return &SparqlResult{Boolean: raw.Boolean}, nil
	}

	rows := make([][]string, 0, len(raw.Results.Bindings))
	for _, binding := range raw.Results.Bindings {
		row := make([]string, len(raw.Head.Vars))
		for i, v := range raw.Head.Vars {
			row[i] = binding[v].Value
		}
		rows = append(rows, row)
	}
	return &SparqlResult{Variables: raw.Head.Vars, Rows: rows}, nil
}

// resultLimit clamps a config-provided row/column cap to a sane minimum,
// guarding against a zero value silently meaning "unlimited" everywhere
// else in the codebase.
func resultLimit(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}
