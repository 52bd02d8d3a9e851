package cel

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/interpreter"
)

// UndefinedError reports a variable the expression referenced but the
// activation did not provide.
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("%s is not defined", e.Name)
}

// Evaluator evaluates CEL expressions
type Evaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewEvaluator creates an evaluator whose environment exposes functions as
// callable CEL functions. Expressions are parsed without type checking so
// variables need no declaration.
func NewEvaluator(functions map[string]any) (*Evaluator, error) {
	opts, err := functionOptions(functions)
	if err != nil {
		return nil, err
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Compile parses expression and plans its program, caching the result.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	// Check cache first (read lock)
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	ast, issues := e.env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("parse error: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program generation error: %w", err)
	}

	e.cache[expression] = program

	return program, nil
}

// Evaluate evaluates a CEL expression with the given variables. A reference to
// a variable missing from vars yields *UndefinedError.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, vars map[string]any) (any, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}
	return Run(ctx, program, vars)
}

// Run evaluates a compiled program and converts the result to a Go value.
func Run(ctx context.Context, program cel.Program, vars map[string]any) (any, error) {
	act := &activation{vars: vars}

	out, _, err := program.ContextEval(ctx, act)
	if err != nil {
		if name := act.undefined(); name != "" {
			return nil, &UndefinedError{Name: name}
		}
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return native(out), nil
}

// ValidateExpression validates a CEL expression without evaluating it
func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

// ClearCache clears the compiled program cache
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

// activation resolves names from a plain map and remembers the ones it could
// not find.
type activation struct {
	vars     map[string]any
	missing  []string
	resolved []string
}

func (a *activation) ResolveName(name string) (any, bool) {
	if v, ok := a.vars[name]; ok {
		a.resolved = append(a.resolved, name)
		return v, true
	}
	a.missing = append(a.missing, name)
	return nil, false
}

func (a *activation) Parent() interpreter.Activation {
	return nil
}

// undefined returns the root-most missing name. Qualified lookups such as
// "a.b" are attempted before "a", so a miss on "a.b" only counts when "a"
// did not resolve either.
func (a *activation) undefined() string {
	best := ""
	for _, name := range a.missing {
		if a.coveredByResolved(name) {
			continue
		}
		if best == "" || strings.Count(name, ".") < strings.Count(best, ".") {
			best = name
		}
	}
	return best
}

func (a *activation) coveredByResolved(name string) bool {
	for _, r := range a.resolved {
		if strings.HasPrefix(name, r+".") {
			return true
		}
	}
	return false
}

func native(v ref.Val) any {
	if v == nil || v == types.NullValue {
		return nil
	}
	return v.Value()
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// functionOptions declares one dyn-typed overload per Go function.
func functionOptions(functions map[string]any) ([]cel.EnvOption, error) {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		fn := reflect.ValueOf(functions[name])
		if !fn.IsValid() || fn.Kind() != reflect.Func {
			continue
		}
		fnType := fn.Type()
		if fnType.IsVariadic() {
			return nil, fmt.Errorf("function %q: variadic functions are not supported", name)
		}
		if fnType.NumOut() > 2 || (fnType.NumOut() == 2 && fnType.Out(1) != errorType) {
			return nil, fmt.Errorf("function %q: must return a value and an optional error", name)
		}

		arity := fnType.NumIn()
		args := make([]*cel.Type, arity)
		for i := range args {
			args[i] = cel.DynType
		}

		call := bind(name, fn)
		var binding cel.OverloadOpt
		switch arity {
		case 1:
			binding = cel.UnaryBinding(func(arg ref.Val) ref.Val { return call(arg) })
		case 2:
			binding = cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val { return call(lhs, rhs) })
		default:
			binding = cel.FunctionBinding(call)
		}

		overloadID := fmt.Sprintf("%s_dyn_%d", name, arity)
		opts = append(opts, cel.Function(name, cel.Overload(overloadID, args, cel.DynType, binding)))
	}

	return opts, nil
}

func bind(name string, fn reflect.Value) func(args ...ref.Val) ref.Val {
	fnType := fn.Type()

	return func(args ...ref.Val) ref.Val {
		in := make([]reflect.Value, len(args))
		for i, arg := range args {
			value, err := convertArg(native(arg), fnType.In(i))
			if err != nil {
				return types.NewErr("%s: argument %d: %v", name, i, err)
			}
			in[i] = value
		}

		out := fn.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			return types.NewErr("%v", out[1].Interface())
		}
		if len(out) == 0 {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(out[0].Interface())
	}
}

func convertArg(v any, target reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(target), nil
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(target):
		return rv, nil
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(v)).Convert(target), nil
	case rv.Type().ConvertibleTo(target) && rv.Kind() != reflect.String:
		return rv.Convert(target), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, target)
}
