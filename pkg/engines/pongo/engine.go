package pongo

import (
	"errors"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"

	"github.com/aescanero/dago-engine-base/pkg/engine"
)

// Name identifies the engine in errors.
const Name = "pongo"

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	name       string
	templates  fs.FS
	globalData map[string]any
}

// WithFS configures the loader used by include and extends tags.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithGlobalData seeds global context values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// Engine compiles templates on a dedicated pongo2 template set.
type Engine struct {
	mu          sync.RWMutex
	templateSet *pongo2.TemplateSet
}

var _ engine.Instance = (*Engine)(nil)

// New constructs an Engine. Without WithFS, includes resolve against the
// working directory.
func New(options ...Option) *Engine {
	cfg := &config{name: Name}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	if cfg.templates == nil {
		cfg.templates = os.DirFS(".")
	}

	set := pongo2.NewSet(cfg.name, pongo2.NewFSLoader(cfg.templates))
	set.Globals = make(pongo2.Context, len(cfg.globalData))
	set.Globals.Update(pongo2.Context(cfg.globalData))

	registerDefaultFilters()

	return &Engine{templateSet: set}
}

// Compile parses source on the engine's template set.
func (e *Engine) Compile(source string, opts engine.Options) (engine.CompiledFunc, error) {
	if e == nil || e.templateSet == nil {
		return nil, &engine.CompileError{Engine: Name, Err: errors.New("pongo: engine is nil")}
	}

	tmpl, err := e.templateSet.FromString(source)
	if err != nil {
		return nil, &engine.CompileError{Engine: Name, Err: err}
	}

	funcs := make(pongo2.Context, len(opts.Imports))
	for name, fn := range opts.Imports {
		if isCallable(fn) {
			funcs[strings.TrimSpace(name)] = fn
		}
	}

	return func(locals map[string]any) (any, error) {
		viewContext := make(pongo2.Context, len(funcs)+len(locals))
		viewContext.Update(funcs)
		for key, value := range locals {
			if key = strings.TrimSpace(key); key != "" {
				viewContext[key] = value
			}
		}

		e.mu.RLock()
		rendered, err := tmpl.Execute(viewContext)
		e.mu.RUnlock()
		if err != nil {
			return nil, &engine.RenderError{Engine: Name, Err: err}
		}
		return rendered, nil
	}, nil
}

// GlobalContext seeds global data on the template set.
func (e *Engine) GlobalContext(data map[string]any) {
	if len(data) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templateSet.Globals.Update(pongo2.Context(data))
}

func isCallable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Func
}

func registerDefaultFilters() {
	if !pongo2.FilterExists("trim") {
		_ = pongo2.RegisterFilter("trim", filterTrim)
	}
	if !pongo2.FilterExists("lowerfirst") {
		_ = pongo2.RegisterFilter("lowerfirst", filterLowerFirst)
	}
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

func filterLowerFirst(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	t := in.String()

	for i, r := range t {
		if strings.ContainsRune(" \t\n\r", r) {
			continue
		}
		size := utf8.RuneLen(r)
		return pongo2.AsValue(t[:i] + strings.ToLower(string(r)) + t[i+size:]), nil
	}
	return pongo2.AsValue(t), nil
}
