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

// Package agentloop drives the per-request agent loop: it builds the
// system prompt for a task, repeatedly calls the Model Bridge, dispatches
// tool calls, and enforces the step, loop-detection, and feedback-retry
// guards, emitting a stream of Events a caller (pkg/server or a CLI) can
// forward to its client. Grounded in original_source/core.py::generate.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/opengrasp/grasp/pkg/config"
	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/feedback"
	"github.com/opengrasp/grasp/pkg/kg"
	"github.com/opengrasp/grasp/pkg/knownset"
	"github.com/opengrasp/grasp/pkg/llms"
	"github.com/opengrasp/grasp/pkg/task"
	"github.com/opengrasp/grasp/pkg/tool"
)

// MaxMessages bounds the api message list length, mirroring core.py's
// module-level MAX_MESSAGES constant.
const MaxMessages = 200

// Sentinel errors, one per error taxonomy entry from the original's
// {content, reason} dict shape. Every Output event's Err wraps one of
// these; Reason() recovers the original's string tag.
var (
	ErrTimeout  = errors.New("llm request timed out")
	ErrAPI      = errors.New("failed to generate response")
	ErrEmpty    = errors.New("no choices from llm api")
	ErrFinish   = errors.New("unexpected finish reason")
	ErrLoop     = errors.New("model repeated itself")
	ErrStepLimit = errors.New("max steps reached")
	ErrFeedback = errors.New("failed to generate feedback")
)

// Reason maps a loop error back to the original's taxonomy string, used
// in the terminal event and in logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrAPI):
		return "api"
	case errors.Is(err, ErrEmpty):
		return "no_choices"
	case errors.Is(err, ErrFinish):
		return "invalid_finish_reason"
	case errors.Is(err, ErrLoop):
		return "loop"
	case errors.Is(err, ErrStepLimit):
		return "step_limit"
	case errors.Is(err, ErrFeedback):
		return "feedback"
	default:
		return "unknown"
	}
}

// EventType discriminates the events generate() yields.
type EventType string

const (
	EventSystem   EventType = "system"
	EventModel    EventType = "model"
	EventTool     EventType = "tool"
	EventFeedback EventType = "feedback"
	EventOutput   EventType = "output"
)

// Event is one item of the loop's output stream. Only the fields
// relevant to Type are populated, mirroring the original's per-type dict
// shape.
type Event struct {
	Type EventType

	// EventSystem
	Functions     []llms.FunctionDefinition
	SystemMessage string

	// EventModel
	Content string

	// EventTool
	Name   string
	Args   map[string]any
	Result string

	// EventFeedback
	FeedbackStatus  feedback.Status
	FeedbackMessage string

	// EventOutput
	Task     string
	Output   *task.Output
	Elapsed  time.Duration
	Err      error
	Inputs   []string
	Messages []conversation.Message
	Known    []string
}

// Request bundles one invocation of the loop, including everything
// carried over from a prior turn of a multi-turn session (past_inputs /
// past_messages / past_known in the original).
type Request struct {
	Input        string
	PastInputs   []string
	PastMessages []conversation.Message
	PastKnown    []string
}

// Loop runs requests against one configured task/knowledge-graph set.
// A Loop is built once per server-side task configuration and reused
// across requests; all per-request mutable state lives in run().
type Loop struct {
	Bridge   *llms.Bridge
	Adapter  task.Adapter
	Managers []*kg.Manager
	Notes    []string
	Config   *config.Config
	Logger   *slog.Logger
}

// New builds a Loop. logger defaults to slog.Default() when nil.
func New(bridge *llms.Bridge, adapter task.Adapter, managers []*kg.Manager, notes []string, cfg *config.Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{Bridge: bridge, Adapter: adapter, Managers: managers, Notes: notes, Config: cfg, Logger: logger}
}

// Run starts the loop in a goroutine and returns a channel of Events,
// closed once the final EventOutput has been sent or ctx is done.
// Mirrors the channel-producer style of reasoning.DefaultReasoningEngine.Execute
// in the teacher repo.
func (l *Loop) Run(ctx context.Context, req Request) (<-chan Event, error) {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		l.run(ctx, req, events)
	}()
	return events, nil
}

func generalRules() []string {
	return []string{
		"Explain your thought process before and after each step and function call.",
		"Do not just use or make up entity or property identifiers without verifying their existence in the knowledge graphs first.",
		`Do not use "SERVICE wikibase:label { bd:serviceParam wikibase:language ..." in SPARQL queries. It is not SPARQL standard and unsupported by the used QLever SPARQL endpoints. Use rdfs:label or similar properties to get labels instead.`,
	}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

func formatNotes(notes []string) string {
	if len(notes) == 0 {
		return "No notes available"
	}
	return formatList(notes)
}

func formatPrefixes(prefixes map[string]string) string {
	if len(prefixes) == 0 {
		return "No prefixes available"
	}
	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]string, len(keys))
	for i, k := range keys {
		items[i] = fmt.Sprintf("%s: %s", k, prefixes[k])
	}
	return formatList(items)
}

func formatKgs(managers []*kg.Manager) string {
	if len(managers) == 0 {
		return "No knowledge graphs available"
	}
	items := make([]string, len(managers))
	for i, m := range managers {
		items[i] = fmt.Sprintf("%s (endpoint: %s)", m.Name, m.Endpoint)
	}
	return formatList(items)
}

// systemInstructions builds the task's full system prompt, mirroring
// core.py::system_instructions.
func (l *Loop) systemInstructions() string {
	prefixes := map[string]string{}
	for _, m := range l.Managers {
		for k, v := range m.Prefixes {
			prefixes[k] = v
		}
	}

	rules := append(generalRules(), l.Adapter.Rules()...)

	return fmt.Sprintf(`%s

You have access to the following knowledge graphs:
%s

You are provided with the following notes across all knowledge graphs:
%s

You can use the following SPARQL prefixes implicitly in all functions:
%s

You should follow these rules:
%s`, l.Adapter.SystemPrompt(), formatKgs(l.Managers), formatNotes(l.Notes), formatPrefixes(prefixes), formatList(rules))
}

// run is the synchronous body of the loop, mirroring core.py::generate.
func (l *Loop) run(ctx context.Context, req Request, events chan<- Event) {
	start := time.Now()

	known := knownset.New(req.PastKnown...)
	if aware, ok := l.Adapter.(task.KnownAware); ok {
		aware.SetKnown(known)
	}

	registry := l.buildRegistry(known)

	systemMessage := l.systemInstructions()
	events <- Event{Type: EventSystem, Functions: registry.Definitions(), SystemMessage: systemMessage}

	messages := []conversation.Message{conversation.NewText(conversation.RoleSystem, systemMessage)}
	if len(req.PastMessages) > 0 {
		// Past messages carry their own (possibly stale) system message;
		// overwrite it since a new set of knowledge graphs or functions
		// might be present, as core.py's generate() does.
		messages = append(messages, req.PastMessages[1:]...)
	}

	inputs := append(append([]string{}, req.PastInputs...), req.Input)

	messages = append(messages, conversation.NewText(conversation.RoleUser, req.Input))

	l.injectExamples(ctx, req.Input, &messages, events)

	var loopErr error
	var lastHash string
	retries := 0

	// Steps are the messages added since entering the loop: model turns and
	// feedback messages both consume them. Reaching MaxSteps ends the loop
	// with ErrStepLimit.
	stepsStart := len(messages)

	for len(messages) < MaxMessages {
		if ctx.Err() != nil {
			break
		}
		if l.Config.MaxSteps > 0 && len(messages)-stepsStart >= l.Config.MaxSteps {
			loopErr = ErrStepLimit
			l.Logger.Warn("step limit reached", "max_steps", l.Config.MaxSteps)
			break
		}

		resp, finishReason, err := l.Bridge.Call(ctx, messages, registry.Definitions(), l.Config)
		if err != nil {
			switch {
			case errors.Is(err, llms.ErrTimeout):
				loopErr = ErrTimeout
				l.Logger.Error("model call timed out")
			case errors.Is(err, llms.ErrNoChoices):
				loopErr = ErrEmpty
				l.Logger.Error("no choices from model api")
			default:
				loopErr = fmt.Errorf("%w:\n%v", ErrAPI, err)
				l.Logger.Error("model call failed", "error", err)
			}
			break
		}
		if resp.IsEmpty() {
			loopErr = fmt.Errorf("%w: empty response", ErrEmpty)
			l.Logger.Error("model returned an empty response")
			break
		}

		messages = append(messages, conversation.NewAssistant(resp))

		hash := resp.Hash()
		if lastHash != "" && hash == lastHash {
			loopErr = ErrLoop
			l.Logger.Error("loop detected: identical response hash across turns")
			break
		}
		lastHash = hash

		content := ""
		if resp.HasReasoningContent() {
			content += "Reasoning:\n" + strings.TrimSpace(resp.Reasoning.Content) + "\n\n"
		}
		if resp.Message != nil {
			content += strings.TrimSpace(*resp.Message)
		}
		if content != "" {
			events <- Event{Type: EventModel, Content: content}
		}

		if finishReason != "tool_calls" && finishReason != "stop" && finishReason != "length" {
			loopErr = fmt.Errorf("%w %q", ErrFinish, finishReason)
			l.Logger.Error("unexpected finish reason", "reason", finishReason)
			break
		}
		if finishReason == "length" {
			// The original silently breaks here with no recorded error;
			// replicate that quirk exactly.
			break
		}

		shouldStop := len(resp.ToolCalls) == 0

		for i := range resp.ToolCalls {
			call := &resp.ToolCalls[i]
			result, err := registry.Dispatch(ctx, call.Name, call.Args)
			if err != nil {
				result = fmt.Sprintf("Call to function %s returned an error:\n%v", call.Name, err)
			}
			call.Result = &result

			events <- Event{Type: EventTool, Name: call.Name, Args: call.Args, Result: result}

			if l.Adapter.IsTerminal(call.Name) {
				shouldStop = true
				break
			}
		}

		canGiveFeedback := l.Config.Feedback && retries < l.Config.MaxFeedbacks

		if shouldStop && !canGiveFeedback {
			break
		}
		if !shouldStop {
			continue
		}

		output := l.Adapter.Output(messages)
		if output == nil {
			break
		}

		fb, err := feedback.Generate(ctx, l.Bridge, l.Adapter, l.Config, l.Notes, l.kgNotes(), inputs, output)
		if err != nil && !errors.Is(err, feedback.ErrUnsupportedTask) {
			loopErr = fmt.Errorf("%w:\n%v", ErrFeedback, err)
			l.Logger.Error("failed to generate feedback", "error", err)
			break
		}
		if fb == nil {
			break
		}

		msg := conversation.NewText(conversation.RoleFeedback, fb.Format())
		messages = append(messages, msg)
		events <- Event{Type: EventFeedback, FeedbackStatus: fb.Status, FeedbackMessage: fb.Message}

		if fb.Status == feedback.StatusDone {
			break
		}

		// Reset loop detection for the new sweep the feedback triggers.
		lastHash = ""
		retries++
	}

	output := l.Adapter.Output(messages)

	events <- Event{
		Type:     EventOutput,
		Task:     l.Adapter.Name(),
		Output:   output,
		Elapsed:  time.Since(start),
		Err:      loopErr,
		Inputs:   inputs,
		Messages: messages,
		Known:    known.List(),
	}
}

// buildRegistry unions the knowledge-graph-shared tools with the task's
// own, mirroring core.py's fns = kg_functions(...) + task_fns.
func (l *Loop) buildRegistry(known *knownset.Set) *tool.Registry {
	tools := kg.CommonTools(l.Managers, l.Config.ResultMaxRows, l.Config.ResultMaxCols, l.Config.SearchTopK, known)
	tools = append(tools, l.Adapter.Tools()...)
	return tool.NewRegistry(tools)
}

// kgNotes is a placeholder hook for exploration-style per-KG notes; only
// the exploration task's adapter actually carries these, and it does not
// implement FeedbackAware, so feedback never needs them populated here.
func (l *Loop) kgNotes() map[string][]string { return nil }

// injectExamples implements the optional few-shot example injection
// (config.ForceExamples), mirroring core.py's force_examples branch. Any
// failure (no example index, wrong task) is swallowed to a warning log,
// matching the original's broad except+log.
func (l *Loop) injectExamples(ctx context.Context, input string, messages *[]conversation.Message, events chan<- Event) {
	if l.Config.ForceExamples == "" {
		return
	}
	injector, ok := l.Adapter.(task.ExampleInjector)
	if !ok {
		l.Logger.Warn("force_examples specified but task does not support examples", "task", l.Adapter.Name())
		return
	}

	exampleMessages, err := injector.InjectExamples(ctx, l.Config.NumExamples, l.Config.RandomExamples)
	if err != nil || len(exampleMessages) < 1 {
		l.Logger.Warn("force_examples specified but corresponding manager not found or without example index, ignoring", "error", err)
		return
	}

	*messages = append(*messages, exampleMessages...)

	first := exampleMessages[0]
	if first.Assistant == nil {
		return
	}
	if first.Assistant.Message != nil {
		events <- Event{Type: EventModel, Content: *first.Assistant.Message}
	}
	if len(first.Assistant.ToolCalls) > 0 {
		call := first.Assistant.ToolCalls[0]
		result := ""
		if call.Result != nil {
			result = *call.Result
		}
		events <- Event{Type: EventTool, Name: call.Name, Args: call.Args, Result: result}
	}
}
