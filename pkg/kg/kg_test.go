package kg

import (
	"context"
	"strings"
	"testing"

	"github.com/opengrasp/grasp/pkg/knownset"
)

func TestManagerShorten(t *testing.T) {
	m := &Manager{Prefixes: map[string]string{
		"wd":  "http://www.wikidata.org/entity/",
		"wdt": "http://www.wikidata.org/prop/direct/",
	}}
	if got := m.Shorten("http://www.wikidata.org/entity/Q42"); got != "wd:Q42" {
		t.Errorf("Shorten() = %q, want wd:Q42", got)
	}
	if got := m.Shorten("http://example.org/unknown"); got != "http://example.org/unknown" {
		t.Errorf("Shorten() on unknown namespace should be unchanged, got %q", got)
	}
}

func TestFindManager(t *testing.T) {
	managers := []*Manager{{Name: "wikidata"}, {Name: "dbpedia"}}
	m, ok := FindManager(managers, "dbpedia")
	if !ok || m.Name != "dbpedia" {
		t.Errorf("FindManager(dbpedia) = %v, %v", m, ok)
	}
	if _, ok := FindManager(managers, "missing"); ok {
		t.Error("FindManager(missing) should report false")
	}
}

func TestNames(t *testing.T) {
	managers := []*Manager{{Name: "a"}, {Name: "b"}}
	got := Names(managers)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Names() = %v", got)
	}
}

func TestFormatResultBoolean(t *testing.T) {
	yes := true
	got := FormatResult(&SparqlResult{Boolean: &yes}, 10, 10)
	if got != "true" {
		t.Errorf("FormatResult(ASK true) = %q", got)
	}
}

func TestFormatResultTruncation(t *testing.T) {
	result := &SparqlResult{
		Variables: []string{"a", "b", "c"},
		Rows: [][]string{
			{"1", "2", "3"},
			{"4", "5", "6"},
			{"7", "8", "9"},
		},
	}
	got := FormatResult(result, 1, 2)
	if !strings.Contains(got, "... (2 more rows)") {
		t.Errorf("expected row truncation note, got: %q", got)
	}
	if !strings.Contains(got, "... (1 more columns)") {
		t.Errorf("expected column truncation note, got: %q", got)
	}
}

func TestFormatResultEmpty(t *testing.T) {
	if got := FormatResult(&SparqlResult{Variables: []string{"a"}}, 10, 10); got != "Empty result" {
		t.Errorf("FormatResult(empty) = %q", got)
	}
	if got := FormatResult(nil, 10, 10); got != "No result" {
		t.Errorf("FormatResult(nil) = %q", got)
	}
}

type fakeExecutor struct {
	result *SparqlResult
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, _ string) (*SparqlResult, error) {
	return f.result, f.err
}

func TestExecuteAndFormatRecordsKnownIRIs(t *testing.T) {
	known := knownset.New()
	managers := []*Manager{{
		Name: "wikidata",
		Executor: &fakeExecutor{result: &SparqlResult{
			Variables: []string{"item"},
			Rows:      [][]string{{"http://www.wikidata.org/entity/Q42"}},
		}},
	}}

	out, err := ExecuteAndFormat(context.Background(), managers, "wikidata", "SELECT ?item WHERE {}", 10, 10, known)
	if err != nil {
		t.Fatalf("ExecuteAndFormat() error = %v", err)
	}
	if !strings.Contains(out, "Q42") {
		t.Errorf("expected formatted result to contain the query result, got: %q", out)
	}
	if !known.Has("http://www.wikidata.org/entity/Q42") {
		t.Error("expected the IRI cell to be recorded in the known set")
	}
}

func TestExecuteAndFormatUnknownKg(t *testing.T) {
	_, err := ExecuteAndFormat(context.Background(), nil, "missing", "SELECT * WHERE {}", 10, 10, nil)
	if err == nil {
		t.Error("expected error for unknown knowledge graph")
	}
}

func TestCommonToolsSearchEntitiesUnconfiguredIndex(t *testing.T) {
	managers := []*Manager{{Name: "wikidata"}}
	tools := CommonTools(managers, 10, 10, 5, nil)
	registry := map[string]struct{}{}
	for _, tl := range tools {
		registry[tl.Name()] = struct{}{}
	}
	for _, want := range []string{"search_entities", "search_properties", "execute"} {
		if _, ok := registry[want]; !ok {
			t.Errorf("CommonTools() missing tool %q", want)
		}
	}

	for _, tl := range tools {
		if tl.Name() != "search_entities" {
			continue
		}
		_, err := tl.Call(context.Background(), map[string]any{"kg": "wikidata", "query": "Douglas Adams"})
		if err == nil {
			t.Error("expected error when entity index isn't configured")
		}
	}
}
