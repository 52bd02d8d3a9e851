package handlebars

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/aymerick/raymond"

	"github.com/aescanero/dago-engine-base/pkg/engine"
)

// Name identifies the engine in errors.
const Name = "handlebars"

var registerOnce sync.Once

// Engine compiles Handlebars templates
type Engine struct {
	cache map[string]*raymond.Template
	mu    sync.RWMutex
}

var _ engine.Instance = (*Engine)(nil)

// New creates a new template engine
func New() *Engine {
	// Global helpers live in raymond's package registry, which rejects
	// duplicate names.
	registerOnce.Do(registerHelpers)

	return &Engine{
		cache: make(map[string]*raymond.Template),
	}
}

// Compile parses source and binds opts.Imports as template helpers.
func (e *Engine) Compile(source string, opts engine.Options) (engine.CompiledFunc, error) {
	parsed, err := e.getTemplate(source)
	if err != nil {
		return nil, &engine.CompileError{Engine: Name, Err: err}
	}

	helpers, err := templateHelpers(opts.Imports)
	if err != nil {
		return nil, &engine.CompileError{Engine: Name, Err: err}
	}

	// Helpers are registered per template, so cached templates are cloned.
	tmpl := parsed.Clone()
	if len(helpers) > 0 {
		tmpl.RegisterHelpers(helpers)
	}

	return func(locals map[string]any) (any, error) {
		result, err := tmpl.Exec(locals)
		if err != nil {
			return nil, &engine.RenderError{Engine: Name, Err: err}
		}
		return result, nil
	}, nil
}

// getTemplate gets a parsed template from cache or parses it
func (e *Engine) getTemplate(source string) (*raymond.Template, error) {
	e.mu.RLock()
	if tmpl, ok := e.cache[source]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.cache[source]; ok {
		return tmpl, nil
	}

	tmpl, err := raymond.Parse(source)
	if err != nil {
		return nil, err
	}

	e.cache[source] = tmpl

	return tmpl, nil
}

// ValidateTemplate validates a template without rendering it
func (e *Engine) ValidateTemplate(source string) error {
	_, err := raymond.Parse(source)
	return err
}

// ClearCache clears the parsed template cache
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*raymond.Template)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// templateHelpers keeps the function imports, adapting (value, error)
// signatures to the single return value raymond requires.
func templateHelpers(imports map[string]any) (map[string]any, error) {
	helpers := make(map[string]any, len(imports))
	for name, fn := range imports {
		rv := reflect.ValueOf(fn)
		if !rv.IsValid() || rv.Kind() != reflect.Func {
			continue
		}

		fnType := rv.Type()
		switch {
		case fnType.NumOut() == 1:
			helpers[name] = fn
		case fnType.NumOut() == 2 && fnType.Out(1) == errorType:
			helpers[name] = dropError(rv)
		default:
			return nil, fmt.Errorf("helper %q must return one value and an optional error", name)
		}
	}
	return helpers, nil
}

// dropError wraps fn so its error result becomes a panic, which raymond turns
// back into the Exec error.
func dropError(fn reflect.Value) any {
	fnType := fn.Type()
	in := make([]reflect.Type, fnType.NumIn())
	for i := range in {
		in[i] = fnType.In(i)
	}
	wrappedType := reflect.FuncOf(in, []reflect.Type{fnType.Out(0)}, fnType.IsVariadic())

	return reflect.MakeFunc(wrappedType, func(args []reflect.Value) []reflect.Value {
		var out []reflect.Value
		if fnType.IsVariadic() {
			out = fn.CallSlice(args)
		} else {
			out = fn.Call(args)
		}
		if err, _ := out[1].Interface().(error); err != nil {
			panic(err)
		}
		return out[:1]
	}).Interface()
}

// registerHelpers registers the built-in Handlebars helpers
func registerHelpers() {
	raymond.RegisterHelper("uppercase", func(str string) string {
		return strings.ToUpper(str)
	})

	raymond.RegisterHelper("lowercase", func(str string) string {
		return strings.ToLower(str)
	})

	raymond.RegisterHelper("trim", func(str string) string {
		return strings.TrimSpace(str)
	})

	// default helper - return default value if first arg is empty
	raymond.RegisterHelper("default", func(value interface{}, defaultValue interface{}) interface{} {
		if value == nil || value == "" {
			return defaultValue
		}
		return value
	})

	raymond.RegisterHelper("eq", func(a, b interface{}) bool {
		return a == b
	})

	raymond.RegisterHelper("ne", func(a, b interface{}) bool {
		return a != b
	})

	raymond.RegisterHelper("gt", func(a, b float64) bool {
		return a > b
	})

	raymond.RegisterHelper("lt", func(a, b float64) bool {
		return a < b
	})

	raymond.RegisterHelper("contains", func(str, substr string) bool {
		return strings.Contains(str, substr)
	})

	raymond.RegisterHelper("join", func(arr []interface{}, sep string) string {
		strs := make([]string, len(arr))
		for i, v := range arr {
			strs[i] = fmt.Sprint(v)
		}
		return strings.Join(strs, sep)
	})

	raymond.RegisterHelper("len", func(value interface{}) int {
		switch v := value.(type) {
		case string:
			return len(v)
		case []interface{}:
			return len(v)
		case map[string]interface{}:
			return len(v)
		default:
			return 0
		}
	})
}
