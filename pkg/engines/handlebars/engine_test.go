package handlebars_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aescanero/dago-engine-base/pkg/engine"
	"github.com/aescanero/dago-engine-base/pkg/engines/handlebars"
)

func newAdapter(t *testing.T, opts ...engine.Option) *engine.Adapter {
	t.Helper()
	adapter, err := engine.New(handlebars.New(), append([]engine.Option{engine.WithName(handlebars.Name)}, opts...)...)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func TestRenderSync(t *testing.T) {
	file, err := newAdapter(t).RenderSync(engine.Text("Jon {{name}}"),
		map[string]any{"name": "Schlinkert"}, engine.Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(file.Contents) != "Jon Schlinkert" {
		t.Fatalf("contents = %q", file.Contents)
	}
}

func TestRenderSync_BuiltinHelpers(t *testing.T) {
	data := map[string]any{
		"state": map[string]any{
			"message":  "Hello World",
			"priority": "high",
		},
		"items": []any{"a", "b", "c"},
	}

	tests := []struct {
		template string
		want     string
	}{
		{template: "{{uppercase state.priority}}", want: "HIGH"},
		{template: "{{join items \", \"}}", want: "a, b, c"},
		{template: "{{#if (eq state.priority \"high\")}}urgent{{/if}}", want: "urgent"},
		{template: "{{default state.missing \"N/A\"}}", want: "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			file, err := newAdapter(t).RenderSync(engine.Text(tt.template), data, engine.Options{})
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if string(file.Contents) != tt.want {
				t.Fatalf("got %q, want %q", file.Contents, tt.want)
			}
		})
	}
}

func TestRenderSync_Imports(t *testing.T) {
	adapter := newAdapter(t, engine.WithHelpers(map[string]any{
		"shout": func(s string) string { return strings.ToUpper(s) + "!" },
	}))

	locals := map[string]any{
		"name": "jon",
		"imports": map[string]any{
			"include": func(name string) (string, error) {
				return "partial:" + name, nil
			},
		},
	}

	file, err := adapter.RenderSync(engine.Text(`{{shout name}} {{include "nav"}}`), locals, engine.Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(file.Contents) != "JON! partial:nav" {
		t.Fatalf("contents = %q", file.Contents)
	}
}

func TestRenderSync_HelperError(t *testing.T) {
	locals := map[string]any{
		"imports": map[string]any{
			"include": func(name string) (string, error) {
				return "", fmt.Errorf("include %s: not found", name)
			},
		},
	}

	_, err := newAdapter(t).RenderSync(engine.Text(`{{include "nav"}}`), locals, engine.Options{})
	var renderErr *engine.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "include nav: not found") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestCompileSync_Errors(t *testing.T) {
	adapter := newAdapter(t)

	_, err := adapter.CompileSync(engine.Text("{{#if}}"), engine.Options{})
	var compileErr *engine.CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected CompileError for bad template, got %v", err)
	}

	_, err = adapter.CompileSync(engine.Text("ok"), engine.Options{Imports: map[string]any{
		"pair": func() (string, string) { return "", "" },
	}})
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected CompileError for bad helper, got %v", err)
	}
}

func TestEngine_SharedParseCache(t *testing.T) {
	e := handlebars.New()
	upper := map[string]any{"fmt": strings.ToUpper}
	lower := map[string]any{"fmt": strings.ToLower}

	fnUpper, err := e.Compile("{{fmt name}}", engine.Options{Imports: upper})
	if err != nil {
		t.Fatalf("compile upper: %v", err)
	}
	fnLower, err := e.Compile("{{fmt name}}", engine.Options{Imports: lower})
	if err != nil {
		t.Fatalf("compile lower: %v", err)
	}

	locals := map[string]any{"name": "Jon"}
	if got, _ := fnUpper(locals); got != "JON" {
		t.Fatalf("upper = %q", got)
	}
	if got, _ := fnLower(locals); got != "jon" {
		t.Fatalf("lower = %q", got)
	}

	if err := e.ValidateTemplate("{{/if}}"); err == nil {
		t.Fatal("expected validation error")
	}
	e.ClearCache()
}
