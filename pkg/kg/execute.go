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
)

// ExecuteAndFormat runs a SPARQL query against the named knowledge
// graph, truncates the result to maxRows/maxCols, records every IRI the
// result surfaced in known (the know-before-use guard), and returns the
// formatted, human-readable table the model sees as the tool result.
// Mirrors original_source/tasks/utils.py::prepare_sparql_result +
// format_sparql_result, minus query prettification and selection
// extraction (both require the out-of-scope SPARQL parser).
func ExecuteAndFormat(
	ctx context.Context,
	managers []*Manager,
	kgName, query string,
	maxRows, maxCols int,
	known *knownset.Set,
) (string, error) {
	manager, ok := FindManager(managers, kgName)
	if !ok {
		return "", fmt.Errorf("unknown knowledge graph %q", kgName)
	}
	if manager.Executor == nil {
		return "", fmt.Errorf("knowledge graph %q has no SPARQL executor configured", kgName)
	}

	result, err := manager.Executor.Execute(ctx, query)
	if err != nil {
		return fmt.Sprintf("Failed to execute SPARQL query:\n%s", err), nil
	}

	if known != nil {
		recordKnownIRIs(result, known)
	}

	table := FormatResult(result, maxRows, maxCols)
	return fmt.Sprintf("SPARQL query over %s:\n%s\n\nExecution result:\n%s", kgName, strings.TrimSpace(query), table), nil
}

// recordKnownIRIs adds every cell that starts with "http://" or "https://"
// to the known set; prefixed identifiers such as "wd:Q42" are not
// recorded. It mirrors update_known_from_selections'
// effect without requiring the SPARQL-item parser: the result itself is
// the set of identifiers the model has now "seen".
func recordKnownIRIs(result *SparqlResult, known *knownset.Set) {
	if result == nil {
		return
	}
	for _, row := range result.Rows {
		for _, cell := range row {
			if strings.HasPrefix(cell, "http://") || strings.HasPrefix(cell, "https://") {
				known.Add(cell)
			}
		}
	}
}

// FormatResult renders a SparqlResult as a plain-text table truncated to
// maxRows rows and maxCols columns, noting how much was cut off.
// Mirrors the row/column capping original_source/configs.py's
// result_max_rows/result_max_columns control.
func FormatResult(result *SparqlResult, maxRows, maxCols int) string {
	if result == nil {
		return "No result"
	}
	if result.Boolean != nil {
		return fmt.Sprintf("%t", *result.Boolean)
	}
	if len(result.Rows) == 0 {
		return "Empty result"
	}

	cols := result.Variables
	truncatedCols := false
	if maxCols > 0 && len(cols) > maxCols {
		cols = cols[:maxCols]
		truncatedCols = true
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))
	b.WriteByte('\n')

	rows := result.Rows
	truncatedRows := false
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
		truncatedRows = true
	}
	for _, row := range rows {
		cells := row
		if len(cells) > len(cols) {
			cells = cells[:len(cols)]
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}

	if truncatedRows {
		fmt.Fprintf(&b, "... (%d more rows)\n", len(result.Rows)-maxRows)
	}
	if truncatedCols {
		fmt.Fprintf(&b, "... (%d more columns)\n", len(result.Variables)-maxCols)
	}

	return strings.TrimRight(b.String(), "\n")
}
