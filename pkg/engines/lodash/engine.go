package lodash

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"

	celeval "github.com/aescanero/dago-engine-base/internal/eval/cel"
	"github.com/aescanero/dago-engine-base/pkg/engine"
)

// Name identifies the engine in errors.
const Name = "lodash"

// Settings keys recognised by Compile.
const (
	SettingInterpolate = "interpolate"
	SettingEscape      = "escape"
	SettingEvaluate    = "evaluate"
)

var (
	defaultInterpolate = regexp.MustCompile(`<%=([\s\S]+?)%>`)
	defaultEscape      = regexp.MustCompile(`<%-([\s\S]+?)%>`)
	defaultEvaluate    = regexp.MustCompile(`<%([\s\S]+?)%>`)
)

// Delimiters are the patterns marking template expressions. Each pattern must
// have exactly one capture group holding the expression.
type Delimiters struct {
	Interpolate *regexp.Regexp
	Escape      *regexp.Regexp
	Evaluate    *regexp.Regexp
}

// DefaultDelimiters returns the ERB-style delimiters.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		Interpolate: defaultInterpolate,
		Escape:      defaultEscape,
		Evaluate:    defaultEvaluate,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelimiters replaces the engine's default delimiters. Nil patterns keep
// their defaults.
func WithDelimiters(d Delimiters) Option {
	return func(e *Engine) {
		if d.Interpolate != nil {
			e.delims.Interpolate = d.Interpolate
		}
		if d.Escape != nil {
			e.delims.Escape = d.Escape
		}
		if d.Evaluate != nil {
			e.delims.Evaluate = d.Evaluate
		}
	}
}

// Engine compiles lodash-style templates whose expressions are CEL.
type Engine struct {
	delims Delimiters
}

var _ engine.Instance = (*Engine)(nil)

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{delims: DefaultDelimiters()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type segmentKind int

const (
	segmentText segmentKind = iota
	segmentInterpolate
	segmentEscape
	segmentEvaluate
)

type segment struct {
	kind    segmentKind
	text    string
	program cel.Program
}

// Compile splits source at the configured delimiters and compiles every
// expression against opts.Imports.
func (e *Engine) Compile(source string, opts engine.Options) (engine.CompiledFunc, error) {
	delims, err := e.delimiters(opts)
	if err != nil {
		return nil, &engine.CompileError{Engine: Name, Err: err}
	}

	evaluator, err := celeval.NewEvaluator(opts.Imports)
	if err != nil {
		return nil, &engine.CompileError{Engine: Name, Err: err}
	}

	segments, err := parse(source, delims, evaluator)
	if err != nil {
		return nil, &engine.CompileError{Engine: Name, Err: err}
	}

	return func(locals map[string]any) (any, error) {
		return execute(segments, locals)
	}, nil
}

func (e *Engine) delimiters(opts engine.Options) (Delimiters, error) {
	d := e.delims
	for key, target := range map[string]**regexp.Regexp{
		SettingInterpolate: &d.Interpolate,
		SettingEscape:      &d.Escape,
		SettingEvaluate:    &d.Evaluate,
	} {
		raw, ok := opts.Setting(key)
		if !ok || raw == nil {
			continue
		}
		re, err := toRegexp(raw)
		if err != nil {
			return Delimiters{}, fmt.Errorf("%s delimiter: %w", key, err)
		}
		*target = re
	}

	for key, re := range map[string]*regexp.Regexp{
		SettingInterpolate: d.Interpolate,
		SettingEscape:      d.Escape,
		SettingEvaluate:    d.Evaluate,
	} {
		if re.NumSubexp() != 1 {
			return Delimiters{}, fmt.Errorf("%s delimiter %q must have exactly one capture group", key, re.String())
		}
	}
	return d, nil
}

func toRegexp(raw any) (*regexp.Regexp, error) {
	switch v := raw.(type) {
	case *regexp.Regexp:
		return v, nil
	case string:
		return regexp.Compile(v)
	default:
		return nil, fmt.Errorf("unsupported pattern type %T", raw)
	}
}

// parse matches escape, interpolate and evaluate in that order of preference,
// so the first alternative wins when several start at the same offset.
func parse(source string, d Delimiters, evaluator *celeval.Evaluator) ([]segment, error) {
	combined, err := regexp.Compile(fmt.Sprintf("(?:%s)|(?:%s)|(?:%s)",
		d.Escape.String(), d.Interpolate.String(), d.Evaluate.String()))
	if err != nil {
		return nil, err
	}

	kinds := []segmentKind{segmentEscape, segmentInterpolate, segmentEvaluate}
	var segments []segment
	offset := 0

	for _, match := range combined.FindAllStringSubmatchIndex(source, -1) {
		if match[0] == match[1] {
			continue
		}
		if match[0] > offset {
			segments = append(segments, segment{kind: segmentText, text: source[offset:match[0]]})
		}
		offset = match[1]

		for i, kind := range kinds {
			start, end := match[2+2*i], match[3+2*i]
			if start < 0 {
				continue
			}
			expression := strings.TrimSpace(source[start:end])
			if expression == "" {
				break
			}
			program, err := evaluator.Compile(expression)
			if err != nil {
				return nil, err
			}
			segments = append(segments, segment{kind: kind, text: expression, program: program})
			break
		}
	}

	if offset < len(source) {
		segments = append(segments, segment{kind: segmentText, text: source[offset:]})
	}
	return segments, nil
}

func execute(segments []segment, locals map[string]any) (string, error) {
	var out strings.Builder
	for _, seg := range segments {
		if seg.kind == segmentText {
			out.WriteString(seg.text)
			continue
		}

		value, err := celeval.Run(context.Background(), seg.program, locals)
		if err != nil {
			var undefined *celeval.UndefinedError
			if errors.As(err, &undefined) {
				return "", &engine.RenderError{Engine: Name, Err: undefined}
			}
			return "", &engine.RenderError{Engine: Name, Err: fmt.Errorf("%s: %w", seg.text, err)}
		}

		switch seg.kind {
		case segmentInterpolate:
			out.WriteString(stringify(value))
		case segmentEscape:
			out.WriteString(html.EscapeString(stringify(value)))
		}
	}
	return out.String(), nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
