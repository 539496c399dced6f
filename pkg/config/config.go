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

// Package config provides configuration loading and management for GRASP.
//
// GRASP is config-first: the model bridge, the knowledge graphs it can
// reach, and the per-task limits are all defined in a single YAML document
// and decoded into Config.
//
// Example config:
//
//	model: openai/gpt-5-mini
//	temperature: 1.0
//	max_steps: 100
//	know_before_use: true
//	feedback: true
//	max_feedbacks: 2
//
//	knowledge_graphs:
//	  - kg: wikidata
//	    endpoint: https://qlever.cs.uni-freiburg.de/api/wikidata
//
//	server:
//	  port: 6789
//	  max_connections: 10
//	  max_generation_time: 300s
//	  max_idle_time: 300s
package config

import (
	"fmt"
	"strings"
)

// KgConfig describes one knowledge graph the agent may query.
type KgConfig struct {
	KG             string `yaml:"kg"`
	Endpoint       string `yaml:"endpoint,omitempty"`
	EntitiesType   string `yaml:"entities_type,omitempty"`
	PropertiesType string `yaml:"properties_type,omitempty"`
	NotesFile      string `yaml:"notes_file,omitempty"`
	ExampleIndex   string `yaml:"example_index,omitempty"`
}

// Config is the root configuration for a GRASP request.
//
// It carries both the model-bridge parameters (Seed through
// CompletionTimeout, mirroring the original ModelConfig) and the
// orchestration parameters (FnSet through MaxFeedbacks, mirroring
// GraspConfig), plus the ambient Server/Logger sections added for the
// Go port.
type Config struct {
	// Model bridge parameters.
	Seed                *int64         `yaml:"seed,omitempty"`
	Model               string         `yaml:"model"`
	ModelEndpoint       string         `yaml:"model_endpoint,omitempty"`
	ModelKwargs         map[string]any `yaml:"model_kwargs,omitempty"`
	Temperature         *float64       `yaml:"temperature,omitempty"`
	TopP                *float64       `yaml:"top_p,omitempty"`
	ReasoningEffort     string         `yaml:"reasoning_effort,omitempty"`
	ReasoningSummary    string         `yaml:"reasoning_summary,omitempty"`
	API                 string         `yaml:"api,omitempty"` // "completions" | "responses" | "" (auto)
	ParallelToolCalls   bool           `yaml:"parallel_tool_calls,omitempty"`
	MaxCompletionTokens int            `yaml:"max_completion_tokens,omitempty"`
	CompletionTimeout   float64        `yaml:"completion_timeout,omitempty"` // seconds

	// Orchestration parameters.
	FnSet           string            `yaml:"fn_set,omitempty"`
	NotesFile       string            `yaml:"notes_file,omitempty"`
	KnowledgeGraphs []KgConfig        `yaml:"knowledge_graphs,omitempty"`
	TaskKwargs      map[string]any    `yaml:"task_kwargs,omitempty"`
	SearchTopK      int               `yaml:"search_top_k,omitempty"`
	ResultMaxRows   int               `yaml:"result_max_rows,omitempty"`
	ResultMaxCols   int               `yaml:"result_max_columns,omitempty"`
	ListK           int               `yaml:"list_k,omitempty"`
	KnowBeforeUse   bool              `yaml:"know_before_use,omitempty"`
	MaxSteps        int               `yaml:"max_steps,omitempty"`
	NumExamples     int               `yaml:"num_examples,omitempty"`
	ForceExamples   string            `yaml:"force_examples,omitempty"` // "" | "random" | "similar"
	RandomExamples  bool              `yaml:"random_examples,omitempty"`
	Feedback        bool              `yaml:"feedback,omitempty"`
	MaxFeedbacks    int               `yaml:"max_feedbacks,omitempty"`

	// Notes / note-taking parameters, used by the exploration task.
	Notes NotesConfig `yaml:"notes,omitempty"`

	// Ambient sections.
	Server ServerConfig `yaml:"server,omitempty"`
	Logger LoggerConfig `yaml:"logger,omitempty"`
}

// NotesConfig bounds the note-taking / exploration task.
type NotesConfig struct {
	MaxNotes          int `yaml:"max_notes,omitempty"`
	MaxNoteLength     int `yaml:"max_note_length,omitempty"`
	NumRounds         int `yaml:"num_rounds,omitempty"`
	QuestionsPerRound int `yaml:"questions_per_round,omitempty"`
}

// ServerConfig configures the HTTP/WS runtime.
type ServerConfig struct {
	Host               string `yaml:"host,omitempty"`
	Port               int    `yaml:"port,omitempty"`
	MaxConnections     int    `yaml:"max_connections,omitempty"`
	MaxGenerationTime  string `yaml:"max_generation_time,omitempty"` // duration string, e.g. "300s"
	MaxIdleTime        string `yaml:"max_idle_time,omitempty"`
	StateDir           string `yaml:"state_dir,omitempty"` // backs /save and /load
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// SetDefaults fills in zero-valued fields with GRASP's defaults, mirroring
// original_source/configs.py's pydantic field defaults.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = "openai/gpt-5-mini"
	}
	if c.Temperature == nil {
		t := 1.0
		c.Temperature = &t
	}
	if c.TopP == nil {
		p := 1.0
		c.TopP = &p
	}
	if c.ModelKwargs == nil {
		c.ModelKwargs = map[string]any{}
	}
	if c.TaskKwargs == nil {
		c.TaskKwargs = map[string]any{}
	}
	if c.MaxCompletionTokens == 0 {
		c.MaxCompletionTokens = 8192
	}
	if c.CompletionTimeout == 0 {
		c.CompletionTimeout = 120.0
	}
	if c.FnSet == "" {
		c.FnSet = "search_extended"
	}
	if len(c.KnowledgeGraphs) == 0 {
		c.KnowledgeGraphs = []KgConfig{{KG: "wikidata"}}
	}
	if c.SearchTopK == 0 {
		c.SearchTopK = 10
	}
	if c.ResultMaxRows == 0 {
		c.ResultMaxRows = 10
	}
	if c.ResultMaxCols == 0 {
		c.ResultMaxCols = 10
	}
	if c.ListK == 0 {
		c.ListK = 10
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = 100
	}
	if c.NumExamples == 0 {
		c.NumExamples = 3
	}
	if c.MaxFeedbacks == 0 && c.Feedback {
		c.MaxFeedbacks = 2
	}

	c.Notes.setDefaults()
	c.Server.setDefaults()
	c.Logger.setDefaults()
}

func (n *NotesConfig) setDefaults() {
	if n.MaxNotes == 0 {
		n.MaxNotes = 16
	}
	if n.MaxNoteLength == 0 {
		n.MaxNoteLength = 512
	}
	if n.NumRounds == 0 {
		n.NumRounds = 5
	}
	if n.QuestionsPerRound == 0 {
		n.QuestionsPerRound = 3
	}
}

func (s *ServerConfig) setDefaults() {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 6789
	}
	if s.MaxConnections == 0 {
		s.MaxConnections = 10
	}
	if s.MaxGenerationTime == "" {
		s.MaxGenerationTime = "300s"
	}
	if s.MaxIdleTime == "" {
		s.MaxIdleTime = "300s"
	}
}

func (l *LoggerConfig) setDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "simple"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Model == "" {
		errs = append(errs, "model must not be empty")
	}
	if len(c.KnowledgeGraphs) == 0 {
		errs = append(errs, "knowledge_graphs must not be empty")
	}
	seen := map[string]bool{}
	for _, kg := range c.KnowledgeGraphs {
		if kg.KG == "" {
			errs = append(errs, "knowledge_graphs: entry with empty kg name")
			continue
		}
		if seen[kg.KG] {
			errs = append(errs, fmt.Sprintf("knowledge_graphs: duplicate kg %q", kg.KG))
		}
		seen[kg.KG] = true
	}
	if c.API != "" && c.API != "completions" && c.API != "responses" {
		errs = append(errs, fmt.Sprintf("api: unknown value %q (want completions, responses, or empty)", c.API))
	}
	if c.MaxSteps < 0 {
		errs = append(errs, "max_steps must not be negative")
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, "server.max_connections must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// KgNames returns the configured knowledge graph identifiers, in order.
func (c *Config) KgNames() []string {
	names := make([]string, 0, len(c.KnowledgeGraphs))
	for _, kg := range c.KnowledgeGraphs {
		names = append(names, kg.KG)
	}
	return names
}

// GetKg returns the KgConfig for the given knowledge graph name.
func (c *Config) GetKg(name string) (KgConfig, bool) {
	for _, kg := range c.KnowledgeGraphs {
		if kg.KG == name {
			return kg, true
		}
	}
	return KgConfig{}, false
}
