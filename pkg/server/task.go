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

package server

import (
	"encoding/json"
	"fmt"

	"github.com/opengrasp/grasp/pkg/config"
	"github.com/opengrasp/grasp/pkg/kg"
	"github.com/opengrasp/grasp/pkg/task"
	"github.com/opengrasp/grasp/pkg/task/cea"
	"github.com/opengrasp/grasp/pkg/task/exploration"
	"github.com/opengrasp/grasp/pkg/task/generalqa"
	"github.com/opengrasp/grasp/pkg/task/sparqlqa"
	"github.com/opengrasp/grasp/pkg/task/wdql"
)

// buildAdapter constructs the task.Adapter for a request and derives the
// agent loop's first user-facing input from the task-specific request
// shape: a plain question for SPARQL-QA/General-QA, a table for CEA, a
// raw SPARQL query for WDQL, and the task's own accumulated-notes prompt
// for Exploration. Mirrors task dispatch spread across
// original_source/tasks/__init__.py (sparql-qa/general-qa) and each
// task's own module (cea.py, wikidata_query_logs.py,
// tasks/exploration/__init__.py), unified here behind task.Adapter.
func buildAdapter(cfg *config.Config, managers []*kg.Manager, taskName string, rawInput json.RawMessage) (task.Adapter, string, error) {
	switch taskName {
	case "sparql-qa":
		var question string
		if err := json.Unmarshal(rawInput, &question); err != nil {
			return nil, "", fmt.Errorf("sparql-qa input must be a string question: %w", err)
		}
		return sparqlqa.New(managers, cfg.ResultMaxRows, cfg.ResultMaxCols), question, nil

	case "general-qa":
		var question string
		if err := json.Unmarshal(rawInput, &question); err != nil {
			return nil, "", fmt.Errorf("general-qa input must be a string question: %w", err)
		}
		return generalqa.New(), question, nil

	case "cea":
		var table cea.Table
		if err := json.Unmarshal(rawInput, &table); err != nil {
			return nil, "", fmt.Errorf("cea input must be a table: %w", err)
		}
		adapter := cea.New(managers, &table, cfg.KnowBeforeUse)
		return adapter, adapter.InputInstructions(), nil

	case "wdql":
		var sparql string
		if err := json.Unmarshal(rawInput, &sparql); err != nil {
			return nil, "", fmt.Errorf("wdql input must be a string sparql query: %w", err)
		}
		adapter := wdql.New(managers, cfg.ResultMaxRows, cfg.ResultMaxCols, cfg.Notes.QuestionsPerRound)
		return adapter, wdql.CleanInput(sparql), nil

	case "exploration":
		adapter := exploration.New(managers, exploration.Config{
			MaxNotes:          cfg.Notes.MaxNotes,
			MaxNoteLength:     cfg.Notes.MaxNoteLength,
			QuestionsPerRound: cfg.Notes.QuestionsPerRound,
		})
		return adapter, adapter.Input(), nil

	default:
		return nil, "", fmt.Errorf("unknown task %q", taskName)
	}
}
