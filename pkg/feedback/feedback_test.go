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

package feedback

import (
	"context"
	"errors"
	"testing"

	"github.com/opengrasp/grasp/pkg/config"
	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/task"
	"github.com/opengrasp/grasp/pkg/tool"
)

func TestFeedbackFormat(t *testing.T) {
	fb := &Feedback{Status: StatusRefine, Message: "narrow the SPARQL filter"}
	got := fb.Format()
	want := "Feedback (status=refine):\nnarrow the SPARQL filter"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFunctionDefinitionShape(t *testing.T) {
	def := functionDefinition()
	if def.Name != "give_feedback" {
		t.Fatalf("Name = %q, want give_feedback", def.Name)
	}
	statusProp, ok := def.Parameters.Properties["status"]
	if !ok {
		t.Fatal("missing status property")
	}
	if len(statusProp.Enum) != 3 {
		t.Fatalf("status enum = %v, want 3 values", statusProp.Enum)
	}
}

// plainAdapter implements task.Adapter but not task.FeedbackAware.
type plainAdapter struct{}

func (plainAdapter) Name() string                                { return "plain" }
func (plainAdapter) SystemPrompt() string                        { return "" }
func (plainAdapter) Rules() []string                             { return nil }
func (plainAdapter) Tools() []tool.Tool                           { return nil }
func (plainAdapter) IsTerminal(string) bool                       { return false }
func (plainAdapter) Output([]conversation.Message) *task.Output   { return nil }

func TestGenerateUnsupportedTask(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	_, err := Generate(context.Background(), nil, plainAdapter{}, cfg, nil, nil, nil, nil)
	if !errors.Is(err, ErrUnsupportedTask) {
		t.Fatalf("Generate() error = %v, want ErrUnsupportedTask", err)
	}
}
