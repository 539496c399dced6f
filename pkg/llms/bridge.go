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

package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/opengrasp/grasp/pkg/config"
	"github.com/opengrasp/grasp/pkg/conversation"
	"github.com/opengrasp/grasp/pkg/httpclient"
)

// ErrTimeout is returned by Bridge.Call when the request exceeded
// config.CompletionTimeout, mirroring the original's litellm.Timeout
// catch in core.py.
var ErrTimeout = errors.New("llm request timed out")

// Bridge drives the model call: it builds the wire request for whichever
// API ResolveAPI selects, sends it through a retrying httpclient.Client,
// and decodes the response back into a conversation.Response.
type Bridge struct {
	HTTP *httpclient.Client

	// APIKeyEnv overrides which environment variable holds the bearer
	// token. When empty, it is derived from the model's provider prefix
	// (e.g. "openai/..." -> OPENAI_API_KEY).
	APIKeyEnv string
}

// NewBridge builds a Bridge using the default retrying HTTP client,
// parsing OpenAI-style rate limit headers (most OpenAI-compatible
// endpoints, including the QLever/Wikidata proxies GRASP targets, mirror
// OpenAI's rate limit header names).
func NewBridge() *Bridge {
	return &Bridge{
		HTTP: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}
}

func providerPrefix(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[:idx]
	}
	return ""
}

func (b *Bridge) apiKey(model string) string {
	envVar := b.APIKeyEnv
	if envVar == "" {
		switch providerPrefix(model) {
		case "anthropic":
			envVar = "ANTHROPIC_API_KEY"
		case "gemini", "google":
			envVar = "GEMINI_API_KEY"
		default:
			envVar = "OPENAI_API_KEY"
		}
	}
	return os.Getenv(envVar)
}

func (b *Bridge) endpoint(cfg *config.Config, api API) string {
	if cfg.ModelEndpoint != "" {
		return cfg.ModelEndpoint
	}
	if api == APIResponses {
		return "https://api.openai.com/v1/responses"
	}
	return "https://api.openai.com/v1/chat/completions"
}

// Call sends one model turn. finishReason is only meaningful for the
// Completions API; Responses-API callers should treat it as informational.
func (b *Bridge) Call(
	ctx context.Context,
	messages []conversation.Message,
	fns []FunctionDefinition,
	cfg *config.Config,
) (resp *conversation.Response, finishReason string, err error) {
	api := ResolveAPI(cfg)

	timeout := time.Duration(cfg.CompletionTimeout * float64(time.Second))
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body []byte
	switch api {
	case APIResponses:
		body, err = buildResponsesRequest(messages, fns, cfg)
	default:
		body, err = buildCompletionsRequest(messages, fns, cfg)
	}
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, b.endpoint(cfg, api), bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := b.apiKey(cfg.Model); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	httpResp, err := b.HTTP.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, "", ErrTimeout
		}
		return nil, "", fmt.Errorf("model request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("model API returned status %d: %s", httpResp.StatusCode, truncate(respBody, 500))
	}

	switch api {
	case APIResponses:
		resp, err = ParseResponsesResponse(respBody)
		finishReason = "stop"
		if err == nil && len(resp.ToolCalls) > 0 {
			finishReason = "tool_calls"
		}
	default:
		resp, finishReason, err = ParseCompletionsResponse(respBody)
	}
	if err != nil {
		return nil, "", err
	}
	return resp, finishReason, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// functionsToWire converts a FunctionDefinition union into the
// {"type": "function", "function": {...}} wrapper both APIs expect,
// normalizing additionalProperties:false whenever Strict is set (some
// task modules in the original source only set "strict" at the parameter
// level; GRASP always places it at the definition level).
func functionsToWire(fns []FunctionDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(fns))
	for _, fn := range fns {
		params := fn.Parameters
		if fn.Strict && params.AdditionalProperties == nil {
			f := false
			params.AdditionalProperties = &f
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        fn.Name,
				"description": fn.Description,
				"parameters":  params,
				"strict":      fn.Strict,
			},
		})
	}
	return out
}

func buildCompletionsRequest(messages []conversation.Message, fns []FunctionDefinition, cfg *config.Config) ([]byte, error) {
	req := map[string]any{
		"model":              strings.TrimPrefix(cfg.Model, providerPrefix(cfg.Model)+"/"),
		"messages":           BuildCompletionsMessages(messages),
		"tools":              functionsToWire(fns),
		"tool_choice":        "auto",
		"parallel_tool_calls": cfg.ParallelToolCalls,
		"max_completion_tokens": cfg.MaxCompletionTokens,
	}
	applyCommonParams(req, cfg)
	return json.Marshal(req)
}

func buildResponsesRequest(messages []conversation.Message, fns []FunctionDefinition, cfg *config.Config) ([]byte, error) {
	req := map[string]any{
		"model":              strings.TrimPrefix(cfg.Model, providerPrefix(cfg.Model)+"/"),
		"input":              BuildResponsesItems(messages),
		"include":            []string{"reasoning.encrypted_content"},
		"tools":              functionsToWire(fns),
		"tool_choice":        "auto",
		"parallel_tool_calls": cfg.ParallelToolCalls,
		"truncation":         "auto",
		"max_output_tokens":  cfg.MaxCompletionTokens,
		"store":              false,
	}
	if cfg.ReasoningEffort != "" || cfg.ReasoningSummary != "" {
		reasoning := map[string]any{}
		if cfg.ReasoningEffort != "" {
			reasoning["effort"] = cfg.ReasoningEffort
		}
		if cfg.ReasoningSummary != "" {
			reasoning["summary"] = cfg.ReasoningSummary
		}
		req["reasoning"] = reasoning
	}
	applyCommonParams(req, cfg)
	return json.Marshal(req)
}

// applyCommonParams sets the parameters shared by both wire shapes.
// Fields left unset here are simply absent from the JSON body, which is
// this Go port's equivalent of litellm's drop_params=True: the provider
// sees only the parameters GRASP actually decided to send.
func applyCommonParams(req map[string]any, cfg *config.Config) {
	if cfg.Temperature != nil {
		req["temperature"] = *cfg.Temperature
	}
	if cfg.TopP != nil {
		req["top_p"] = *cfg.TopP
	}
	if cfg.Seed != nil {
		req["seed"] = *cfg.Seed
	}
	for k, v := range cfg.ModelKwargs {
		req[k] = v
	}
}
