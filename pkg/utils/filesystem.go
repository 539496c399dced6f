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

// Package utils provides small filesystem helpers; GRASP's server package
// uses DefaultStateDir for /save and /load.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultStateDir resolves the directory the /save and /load endpoints
// persist UI state to, mirroring original_source/utils.py::get_index_dir's
// GRASP_INDEX_DIR-env-var-or-home-dir pattern (GRASP_STATE_DIR here, since
// index construction itself stays out of scope).
//
// basePath overrides the resolved directory outright when non-empty
// (e.g. server.state_dir in config); otherwise it falls back to
// $GRASP_STATE_DIR, then ~/.grasp/state.
func DefaultStateDir(basePath string) (string, error) {
	dir := basePath
	if dir == "" {
		dir = os.Getenv("GRASP_STATE_DIR")
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".grasp", "state")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state directory %q: %w", dir, err)
	}
	return dir, nil
}
