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
	"fmt"

	"github.com/opengrasp/grasp/pkg/config"
	"github.com/opengrasp/grasp/pkg/kg"
)

// BuildManagers wires one kg.Manager per configured knowledge graph,
// mirroring the manager construction original_source/server.py performs
// at startup before entering its request loop. Entity/property/example
// indices are left nil: building them is explicitly out of scope for
// GRASP itself, so a deployment that wants search_entities/
// search_properties to work wires kg.Manager.Entities/Properties in after
// BuildManagers returns. kg.Manager.Examples is not read by any task
// adapter in this tree.
func BuildManagers(cfg *config.Config) ([]*kg.Manager, error) {
	managers := make([]*kg.Manager, 0, len(cfg.KnowledgeGraphs))
	for _, kgCfg := range cfg.KnowledgeGraphs {
		if kgCfg.KG == "" {
			return nil, fmt.Errorf("knowledge_graphs entry missing required 'kg' name")
		}
		m := &kg.Manager{
			Name:     kgCfg.KG,
			Endpoint: kgCfg.Endpoint,
			Prefixes: map[string]string{},
		}
		if kgCfg.Endpoint != "" {
			m.Executor = kg.NewHTTPExecutor(kgCfg.Endpoint)
		}
		managers = append(managers, m)
	}
	return managers, nil
}
