package engine

import (
	"context"
	"fmt"
)

// CompiledFunc renders a compiled template against a data context.
type CompiledFunc func(locals map[string]any) (any, error)

// Instance is the capability an engine must provide to be adapted.
type Instance interface {
	Compile(source string, opts Options) (CompiledFunc, error)
}

// InstanceFunc lets an ordinary function act as an Instance.
type InstanceFunc func(source string, opts Options) (CompiledFunc, error)

// Compile calls f.
func (f InstanceFunc) Compile(source string, opts Options) (CompiledFunc, error) {
	return f(source, opts)
}

// Awaitable is a compiled output that needs a further pass before it is text.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// Deferred adapts a function to Awaitable.
type Deferred func(ctx context.Context) (any, error)

// Await calls d.
func (d Deferred) Await(ctx context.Context) (any, error) {
	return d(ctx)
}

// ResolveFunc post-processes rendered output before it is stored.
type ResolveFunc func(ctx context.Context, rendered any) (any, error)

// File pairs template contents with its compiled function. A *File is
// updated in place: compile operations set Fn, render operations replace
// Contents with the rendered output.
type File struct {
	Path     string
	Contents []byte
	Fn       CompiledFunc
}

// Source is either Text or *File.
type Source interface {
	container() (*File, error)
}

// Text is raw template source.
type Text string

func (t Text) container() (*File, error) {
	contents := make([]byte, len(t))
	copy(contents, t)
	return &File{Contents: contents}, nil
}

func (f *File) container() (*File, error) {
	if f == nil {
		return nil, &ConfigurationError{Reason: "file is nil"}
	}
	if f.Contents == nil && f.Fn == nil {
		return nil, &ConfigurationError{Reason: "file has neither contents nor a compiled function"}
	}
	return f, nil
}

// Result is delivered by the asynchronous operations.
type Result struct {
	File *File
	Err  error
}

func normalize(src Source) (*File, error) {
	if src == nil {
		return nil, &ConfigurationError{Reason: "source is nil"}
	}
	return src.container()
}

// toText turns a rendered value into its final text form.
func toText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
