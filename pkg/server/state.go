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
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// handleSave persists an arbitrary UI-state JSON blob (the conversation
// so far, the active task's form inputs, ...) and returns an id the
// client can later pass to GET /load/{id}. This is a GRASP-side addition
// with no original_source equivalent: note-file persistence is out of
// scope, but session/UI state round-tripping is not, and the original's
// own web UI needs somewhere to stash it between page loads.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.stateDir == "" {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "state directory unavailable"})
		return
	}

	var blob json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&blob); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	path := filepath.Join(s.stateDir, id+".json")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

// handleLoad returns a previously saved state blob verbatim.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.stateDir == "" {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "state directory unavailable"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	path := filepath.Join(s.stateDir, id.String()+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "state not found"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
