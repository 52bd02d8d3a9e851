package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aescanero/dago-engine-base/pkg/engine"
)

// countingEngine replaces "{key}" markers with locals and records every
// Compile call it receives.
type countingEngine struct {
	calls   int
	sources []string
	opts    []engine.Options
	err     error
}

func (c *countingEngine) Compile(source string, opts engine.Options) (engine.CompiledFunc, error) {
	c.calls++
	c.sources = append(c.sources, source)
	c.opts = append(c.opts, opts)
	if c.err != nil {
		return nil, c.err
	}
	return func(locals map[string]any) (any, error) {
		out := source
		for key, value := range locals {
			out = strings.ReplaceAll(out, "{"+key+"}", fmt.Sprint(value))
		}
		if strings.Contains(out, "{") {
			start := strings.Index(out, "{")
			end := strings.Index(out[start:], "}")
			if end > 0 {
				return nil, fmt.Errorf("%s is not defined", out[start+1:start+end])
			}
		}
		return out, nil
	}, nil
}

func newAdapter(t *testing.T, instance engine.Instance, opts ...engine.Option) *engine.Adapter {
	t.Helper()
	adapter, err := engine.New(instance, opts...)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func TestNew_RequiresInstance(t *testing.T) {
	_, err := engine.New(nil)
	if !errors.Is(err, engine.ErrNoInstance) {
		t.Fatalf("expected ErrNoInstance, got %v", err)
	}
}

func TestAdapter_Name(t *testing.T) {
	if got := newAdapter(t, &countingEngine{}).Name(); got != "base" {
		t.Fatalf("default name = %q", got)
	}
	if got := newAdapter(t, &countingEngine{}, engine.WithName("lodash")).Name(); got != "lodash" {
		t.Fatalf("name = %q", got)
	}
}

func TestCompileSync_Text(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)

	file, err := adapter.CompileSync(engine.Text("Jon {name}"), engine.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if file.Fn == nil {
		t.Fatal("expected compiled function")
	}
	out, err := file.Fn(map[string]any{"name": "Schlinkert"})
	if err != nil {
		t.Fatalf("fn: %v", err)
	}
	if out != "Jon Schlinkert" {
		t.Fatalf("fn output = %q", out)
	}
	if string(file.Contents) != "Jon {name}" {
		t.Fatalf("compile must not touch contents, got %q", file.Contents)
	}
}

func TestCompileSync_ReusesCompiledFunction(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)
	file := &engine.File{Contents: []byte("Jon {name}")}

	for i := 0; i < 2; i++ {
		if _, err := adapter.CompileSync(file, engine.Options{}); err != nil {
			t.Fatalf("compile %d: %v", i, err)
		}
	}
	if stub.calls != 1 {
		t.Fatalf("expected 1 compile call, got %d", stub.calls)
	}
}

func TestCompileSync_Recompile(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)
	file := &engine.File{Contents: []byte("Jon {name}")}

	if _, err := adapter.CompileSync(file, engine.Options{}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	file.Contents = []byte("Hi {name}")
	if _, err := adapter.CompileSync(file, engine.Options{Recompile: true}); err != nil {
		t.Fatalf("recompile: %v", err)
	}

	if stub.calls != 2 {
		t.Fatalf("expected 2 compile calls, got %d", stub.calls)
	}
	if diff := cmp.Diff([]string{"Jon {name}", "Hi {name}"}, stub.sources); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileSync_MergesImports(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub, engine.WithHelpers(map[string]any{
		"a": "adapter",
		"b": "adapter",
		"c": "adapter",
	}))

	_, err := adapter.CompileSync(engine.Text("x"), engine.Options{
		Helpers:  map[string]any{"b": "helpers", "c": "helpers"},
		Imports:  map[string]any{"c": "imports"},
		Settings: map[string]any{"interpolate": "custom"},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got := stub.opts[0]
	want := map[string]any{"a": "adapter", "b": "helpers", "c": "imports"}
	if diff := cmp.Diff(want, got.Imports); diff != "" {
		t.Fatalf("imports mismatch (-want +got):\n%s", diff)
	}
	if v, _ := got.Setting("interpolate"); v != "custom" {
		t.Fatalf("settings not forwarded: %v", got.Settings)
	}
}

func TestAdapter_RegisterHelper(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)
	adapter.RegisterHelper("upper", strings.ToUpper)

	helpers := adapter.Helpers()
	if _, ok := helpers["upper"]; !ok {
		t.Fatalf("helper not registered: %v", helpers)
	}
	delete(helpers, "upper")
	if _, ok := adapter.Helpers()["upper"]; !ok {
		t.Fatal("Helpers must return a copy")
	}

	if _, err := adapter.CompileSync(engine.Text("x"), engine.Options{}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := stub.opts[0].Imports["upper"]; !ok {
		t.Fatal("registered helper missing from imports")
	}
}

func TestCompileSync_ForwardsEngineError(t *testing.T) {
	engineErr := &engine.CompileError{Engine: "stub", Err: errors.New("unexpected token")}
	adapter := newAdapter(t, &countingEngine{err: engineErr})

	_, err := adapter.CompileSync(engine.Text("x"), engine.Options{})
	if err != engineErr {
		t.Fatalf("expected engine error unchanged, got %#v", err)
	}
	if err.Error() != "unexpected token" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestCompileSync_ConfigurationErrors(t *testing.T) {
	adapter := newAdapter(t, &countingEngine{})
	noop := func(map[string]any) (any, error) { return "", nil }

	tests := []struct {
		name string
		src  engine.Source
		opts engine.Options
	}{
		{name: "nil source", src: nil},
		{name: "nil file", src: (*engine.File)(nil)},
		{name: "empty file", src: &engine.File{}},
		{name: "recompile without contents", src: &engine.File{Fn: noop}, opts: engine.Options{Recompile: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapter.CompileSync(tt.src, tt.opts)
			var cfgErr *engine.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Op != "compile" {
				t.Fatalf("op = %q", cfgErr.Op)
			}
		})
	}
}

func TestCompileSync_FileWithFunctionOnly(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)
	file := &engine.File{Fn: func(map[string]any) (any, error) { return "cached", nil }}

	got, err := adapter.CompileSync(file, engine.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got != file || stub.calls != 0 {
		t.Fatalf("expected cached file returned without compiling, calls=%d", stub.calls)
	}
}

func TestCompile_Async(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)

	res := <-adapter.Compile(context.Background(), engine.Text("Jon {name}"), engine.Options{})
	if res.Err != nil {
		t.Fatalf("compile: %v", res.Err)
	}
	out, _ := res.File.Fn(map[string]any{"name": "Schlinkert"})
	if out != "Jon Schlinkert" {
		t.Fatalf("fn output = %q", out)
	}
}

func TestCompile_AsyncError(t *testing.T) {
	engineErr := errors.New("bad delimiter")
	adapter := newAdapter(t, &countingEngine{err: engineErr})

	res := <-adapter.Compile(context.Background(), engine.Text("x"), engine.Options{})
	if res.Err != engineErr {
		t.Fatalf("expected engine error, got %v", res.Err)
	}
}

func TestCompile_CanceledContext(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := <-adapter.Compile(ctx, engine.Text("x"), engine.Options{})
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	if stub.calls != 0 {
		t.Fatalf("engine must not be called, calls=%d", stub.calls)
	}
}

func TestRenderSync_StoresRenderedContents(t *testing.T) {
	adapter := newAdapter(t, &countingEngine{})

	file, err := adapter.RenderSync(engine.Text("Jon {name}"), map[string]any{"name": "Schlinkert"}, engine.Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(file.Contents) != "Jon Schlinkert" {
		t.Fatalf("contents = %q", file.Contents)
	}
}

func TestRenderSync_PlainTextUnchanged(t *testing.T) {
	adapter := newAdapter(t, &countingEngine{})

	for _, text := range []string{"", "plain text", "multi\nline\ttext"} {
		file, err := adapter.RenderSync(engine.Text(text), map[string]any{}, engine.Options{})
		if err != nil {
			t.Fatalf("render %q: %v", text, err)
		}
		if string(file.Contents) != text {
			t.Fatalf("render %q = %q", text, file.Contents)
		}
	}
}

func TestRenderSync_ReusesCompiledFunction(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)
	file := &engine.File{Contents: []byte("Jon {name}")}

	if _, err := adapter.CompileSync(file, engine.Options{}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := adapter.RenderSync(file, map[string]any{"name": "A"}, engine.Options{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	// Contents now hold rendered output; the cached function still renders
	// the original template.
	if _, err := adapter.RenderSync(file, map[string]any{"name": "B"}, engine.Options{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(file.Contents) != "Jon B" {
		t.Fatalf("contents = %q", file.Contents)
	}
	if stub.calls != 1 {
		t.Fatalf("expected 1 compile call, got %d", stub.calls)
	}
}

func TestRenderSync_CompileUsesLocalsAndOptions(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)
	upper := func(s string) string { return strings.ToUpper(s) }

	locals := map[string]any{
		"name":    "Jon",
		"delim":   "locals",
		"imports": map[string]any{"upper": upper, "lower": "locals"},
	}
	opts := engine.Options{
		Imports:  map[string]any{"lower": "options"},
		Settings: map[string]any{"delim": "options"},
	}

	if _, err := adapter.RenderSync(engine.Text("{name}"), locals, opts); err != nil {
		t.Fatalf("render: %v", err)
	}

	got := stub.opts[0]
	keys := make([]string, 0, len(got.Imports))
	for key := range got.Imports {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"lower", "upper"}, keys); diff != "" {
		t.Fatalf("imports mismatch (-want +got):\n%s", diff)
	}
	if got.Imports["lower"] != "options" {
		t.Fatalf("options must win on collision, got %v", got.Imports["lower"])
	}
	if diff := cmp.Diff(map[string]any{"name": "Jon", "delim": "options"}, got.Settings); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderSync_RecompileFromLocals(t *testing.T) {
	stub := &countingEngine{}
	adapter := newAdapter(t, stub)
	file := &engine.File{Contents: []byte("{name}")}

	if _, err := adapter.CompileSync(file, engine.Options{}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	file.Contents = []byte("Hi {name}")
	rendered, err := adapter.RenderSync(file, map[string]any{"name": "Jon"}, engine.Options{Recompile: true})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(rendered.Contents) != "Hi Jon" || stub.calls != 2 {
		t.Fatalf("contents=%q calls=%d", rendered.Contents, stub.calls)
	}
}

func TestRenderSync_MissingKeyError(t *testing.T) {
	adapter := newAdapter(t, &countingEngine{})

	_, err := adapter.RenderSync(engine.Text("{name}"), nil, engine.Options{})
	if err == nil || err.Error() != "name is not defined" {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestRender_AsyncAwaitsAndResolves(t *testing.T) {
	instance := engine.InstanceFunc(func(source string, _ engine.Options) (engine.CompiledFunc, error) {
		return func(locals map[string]any) (any, error) {
			return engine.Deferred(func(ctx context.Context) (any, error) {
				return map[string]any{"id": source, "name": locals["name"]}, nil
			}), nil
		}, nil
	})

	resolve := func(_ context.Context, rendered any) (any, error) {
		m := rendered.(map[string]any)
		return fmt.Sprintf("%s:%s", m["id"], m["name"]), nil
	}
	adapter := newAdapter(t, instance, engine.WithResolver(resolve))

	res := <-adapter.Render(context.Background(), engine.Text("page"), map[string]any{"name": "Jon"}, engine.Options{})
	if res.Err != nil {
		t.Fatalf("render: %v", res.Err)
	}
	if string(res.File.Contents) != "page:Jon" {
		t.Fatalf("contents = %q", res.File.Contents)
	}
}

func TestRender_ResolverError(t *testing.T) {
	resolveErr := errors.New("unresolved id")
	adapter := newAdapter(t, &countingEngine{}, engine.WithResolver(func(context.Context, any) (any, error) {
		return nil, resolveErr
	}))

	res := <-adapter.Render(context.Background(), engine.Text("x"), nil, engine.Options{})
	if res.Err != resolveErr {
		t.Fatalf("expected resolver error, got %v", res.Err)
	}
}

func TestRender_ConfigurationError(t *testing.T) {
	adapter := newAdapter(t, &countingEngine{})

	res := <-adapter.Render(context.Background(), &engine.File{}, nil, engine.Options{})
	var cfgErr *engine.ConfigurationError
	if !errors.As(res.Err, &cfgErr) || cfgErr.Op != "render" {
		t.Fatalf("expected render ConfigurationError, got %v", res.Err)
	}
}

func TestRenderSync_OutputKinds(t *testing.T) {
	tests := []struct {
		name string
		out  any
		want string
	}{
		{name: "nil", out: nil, want: ""},
		{name: "bytes", out: []byte("raw"), want: "raw"},
		{name: "stringer", out: stringer("str"), want: "str"},
		{name: "number", out: 42, want: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instance := engine.InstanceFunc(func(string, engine.Options) (engine.CompiledFunc, error) {
				return func(map[string]any) (any, error) { return tt.out, nil }, nil
			})
			file, err := newAdapter(t, instance).RenderSync(engine.Text("x"), nil, engine.Options{})
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if string(file.Contents) != tt.want {
				t.Fatalf("contents = %q, want %q", file.Contents, tt.want)
			}
		})
	}
}

type stringer string

func (s stringer) String() string { return string(s) }
