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

package agentloop

import (
	"strings"
	"testing"

	"github.com/opengrasp/grasp/pkg/kg"
)

func TestFormatListEmpty(t *testing.T) {
	if got := formatList(nil); got != "" {
		t.Errorf("formatList(nil) = %q, want empty string", got)
	}
}

func TestFormatListBullets(t *testing.T) {
	got := formatList([]string{"a", "b"})
	want := "- a\n- b"
	if got != want {
		t.Errorf("formatList() = %q, want %q", got, want)
	}
}

func TestFormatNotesFallback(t *testing.T) {
	if got := formatNotes(nil); got != "No notes available" {
		t.Errorf("formatNotes(nil) = %q", got)
	}
	if got := formatNotes([]string{"watch out for duplicate labels"}); !strings.Contains(got, "duplicate labels") {
		t.Errorf("formatNotes() = %q, missing note text", got)
	}
}

func TestFormatPrefixesSortedByKey(t *testing.T) {
	got := formatPrefixes(map[string]string{
		"wd":  "http://www.wikidata.org/entity/",
		"bd":  "http://www.bigdata.com/rdf#",
	})
	bdIdx := strings.Index(got, "bd:")
	wdIdx := strings.Index(got, "wd:")
	if bdIdx == -1 || wdIdx == -1 || bdIdx > wdIdx {
		t.Errorf("formatPrefixes() did not sort keys: %q", got)
	}
}

func TestFormatPrefixesEmpty(t *testing.T) {
	if got := formatPrefixes(nil); got != "No prefixes available" {
		t.Errorf("formatPrefixes(nil) = %q", got)
	}
}

func TestFormatKgs(t *testing.T) {
	managers := []*kg.Manager{{Name: "wikidata", Endpoint: "https://example.org/sparql"}}
	got := formatKgs(managers)
	if !strings.Contains(got, "wikidata") || !strings.Contains(got, "https://example.org/sparql") {
		t.Errorf("formatKgs() = %q, missing manager details", got)
	}
}

func TestFormatKgsEmpty(t *testing.T) {
	if got := formatKgs(nil); got != "No knowledge graphs available" {
		t.Errorf("formatKgs(nil) = %q", got)
	}
}
