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
	"context"
	"encoding/json"
	"net/http"

	"github.com/opengrasp/grasp/pkg/agentloop"
)

// apiRunRequest is the wire shape of one generation request, shared by
// POST /run and each message sent over GET /live.
type apiRunRequest struct {
	Task         string          `json:"task"`
	Input        json.RawMessage `json:"input"`
	PastInputs   []string        `json:"past_inputs,omitempty"`
	PastMessages []apiMessage    `json:"past_messages,omitempty"`
	PastKnown    []string        `json:"past_known,omitempty"`
}

// drive builds the adapter and agent loop for req and runs it to
// completion, calling emit for every event as it arrives (used to
// stream over /live, or simply collected for /run) and returning the
// final output event. ctx bounds the whole generation, mirroring the
// original's asyncio.wait_for(..., timeout=max_generation_time).
func (s *Server) drive(ctx context.Context, req apiRunRequest, emit func(eventPayload)) (eventPayload, error) {
	adapter, input, err := buildAdapter(s.cfg, s.managers, req.Task, req.Input)
	if err != nil {
		return eventPayload{}, err
	}

	loop := agentloop.New(s.bridge, adapter, s.managers, s.notes, s.cfg, s.logger)
	events, err := loop.Run(ctx, agentloop.Request{
		Input:        input,
		PastInputs:   req.PastInputs,
		PastMessages: toConversationMessages(req.PastMessages),
		PastKnown:    req.PastKnown,
	})
	if err != nil {
		return eventPayload{}, err
	}

	var final eventPayload
	for ev := range events {
		p := toEventPayload(ev)
		emit(p)
		if ev.Type == agentloop.EventOutput {
			final = p
		}
	}
	return final, nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.acquire() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server too busy"})
		return
	}
	defer s.release()

	var req apiRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.generationTimeout)
	defer cancel()

	final, err := s.drive(ctx, req, func(eventPayload) {})
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if ctx.Err() == context.DeadlineExceeded {
		respondJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "generation timed out"})
		return
	}

	respondJSON(w, http.StatusOK, final)
}
