package llms

import (
	"testing"

	"github.com/opengrasp/grasp/pkg/config"
)

func TestResolveAPI(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.Config
		want API
	}{
		{"explicit completions wins", config.Config{API: "completions", Model: "openai/gpt-5"}, APICompletions},
		{"explicit responses wins", config.Config{API: "responses", Model: "anthropic/claude"}, APIResponses},
		{"openai prefix defaults to responses", config.Config{Model: "openai/gpt-5-mini"}, APIResponses},
		{"non-openai prefix defaults to completions", config.Config{Model: "anthropic/claude-sonnet"}, APICompletions},
		{"no prefix defaults to completions", config.Config{Model: "gpt-5"}, APICompletions},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ResolveAPI(&c.cfg); got != c.want {
				t.Errorf("ResolveAPI(%+v) = %q, want %q", c.cfg, got, c.want)
			}
		})
	}
}
