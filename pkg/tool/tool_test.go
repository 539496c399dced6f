package tool

import (
	"context"
	"testing"

	"github.com/opengrasp/grasp/pkg/llms"
)

type fakeTool struct {
	name   string
	strict bool
}

func (f *fakeTool) Name() string             { return f.name }
func (f *fakeTool) Description() string      { return "fake tool " + f.name }
func (f *fakeTool) Schema() llms.JSONSchema  { return llms.JSONSchema{Type: "object"} }
func (f *fakeTool) Strict() bool             { return f.strict }
func (f *fakeTool) Call(_ context.Context, args map[string]any) (string, error) {
	return f.name + " called", nil
}

func TestDefinition(t *testing.T) {
	ft := &fakeTool{name: "search_entities", strict: true}
	def := Definition(ft)
	if def.Name != "search_entities" || !def.Strict {
		t.Errorf("Definition() = %+v, want name=search_entities strict=true", def)
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry([]Tool{&fakeTool{name: "a"}, &fakeTool{name: "b"}})
	if !r.Has("a") || !r.Has("b") {
		t.Fatal("expected both tools registered")
	}
	out, err := r.Dispatch(context.Background(), "a", nil)
	if err != nil || out != "a called" {
		t.Errorf("Dispatch(a) = %q, %v", out, err)
	}
	if _, err := r.Dispatch(context.Background(), "missing", nil); err == nil {
		t.Error("expected error dispatching unknown tool")
	}
}

func TestRegistryPredicateFiltering(t *testing.T) {
	tools := []Tool{&fakeTool{name: "a"}, &fakeTool{name: "b"}, &fakeTool{name: "c"}}
	r := NewRegistry(tools, Named("a", "c"))
	if !r.Has("a") || r.Has("b") || !r.Has("c") {
		t.Errorf("Named filter let through wrong set: a=%v b=%v c=%v", r.Has("a"), r.Has("b"), r.Has("c"))
	}
	if len(r.Definitions()) != 2 {
		t.Errorf("Definitions() len = %d, want 2", len(r.Definitions()))
	}
}

func TestPredicateCombinators(t *testing.T) {
	a := &fakeTool{name: "a"}
	b := &fakeTool{name: "b"}

	allow := Combine(AllowAll(), Named("a"))
	if !allow(a) || allow(b) {
		t.Error("Combine(AllowAll, Named(a)) should only allow a")
	}

	or := Or(Named("a"), Named("b"))
	if !or(a) || !or(b) {
		t.Error("Or(Named(a), Named(b)) should allow both")
	}

	deny := Not(AllowAll())
	if deny(a) {
		t.Error("Not(AllowAll()) should deny everything")
	}

	if DenyAll()(a) {
		t.Error("DenyAll() should deny everything")
	}
}
