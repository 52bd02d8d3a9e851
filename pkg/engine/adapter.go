package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithName sets the adapter name used in logs.
func WithName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.name = name
		}
	}
}

// WithHelpers registers adapter-level helpers, the lowest precedence layer of
// the imports merge.
func WithHelpers(helpers map[string]any) Option {
	return func(a *Adapter) {
		for name, fn := range helpers {
			a.helpers[name] = fn
		}
	}
}

// WithResolver installs a post-resolution step applied to rendered output.
func WithResolver(resolve ResolveFunc) Option {
	return func(a *Adapter) {
		a.resolve = resolve
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Adapter exposes a uniform compile/render contract over an Instance.
type Adapter struct {
	name     string
	instance Instance
	resolve  ResolveFunc
	logger   *zap.Logger

	mu      sync.RWMutex
	helpers map[string]any
}

// New wraps instance.
func New(instance Instance, opts ...Option) (*Adapter, error) {
	if instance == nil {
		return nil, ErrNoInstance
	}

	a := &Adapter{
		name:     "base",
		instance: instance,
		logger:   zap.NewNop(),
		helpers:  make(map[string]any),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(a)
	}

	return a, nil
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.name
}

// Instance returns the wrapped engine.
func (a *Adapter) Instance() Instance {
	return a.instance
}

// RegisterHelper adds or replaces an adapter-level helper.
func (a *Adapter) RegisterHelper(name string, fn any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.helpers[name] = fn
}

// Helpers returns a copy of the adapter-level helpers.
func (a *Adapter) Helpers() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return MergeImports(a.helpers)
}

// CompileSync compiles src unless it already carries a compiled function and
// opts.Recompile is false. It returns the container holding the function.
func (a *Adapter) CompileSync(src Source, opts Options) (*File, error) {
	file, err := normalize(src)
	if err != nil {
		return nil, withOp(err, "compile")
	}
	if err := a.compile(file, opts); err != nil {
		return nil, err
	}
	return file, nil
}

// Compile is the asynchronous form of CompileSync. Exactly one Result is
// delivered on the returned channel.
func (a *Adapter) Compile(ctx context.Context, src Source, opts Options) <-chan Result {
	return async(ctx, func() (*File, error) {
		return a.CompileSync(src, opts)
	})
}

// RenderSync compiles src if needed, invokes the compiled function with locals
// and stores the rendered text in the container's Contents.
func (a *Adapter) RenderSync(src Source, locals map[string]any, opts Options) (*File, error) {
	return a.render(context.Background(), src, locals, opts)
}

// Render is the asynchronous form of RenderSync. Awaitable outputs and the
// resolver receive ctx.
func (a *Adapter) Render(ctx context.Context, src Source, locals map[string]any, opts Options) <-chan Result {
	return async(ctx, func() (*File, error) {
		return a.render(ctx, src, locals, opts)
	})
}

func (a *Adapter) compile(file *File, opts Options) error {
	if file.Fn != nil && !opts.Recompile {
		a.logger.Debug("reusing compiled template",
			zap.String("engine", a.name),
			zap.String("path", file.Path),
		)
		return nil
	}
	if file.Contents == nil {
		return &ConfigurationError{Op: "compile", Reason: "recompile requested for a file without contents"}
	}

	effective := Options{
		Imports:   MergeImports(a.Helpers(), opts.Helpers, opts.Imports),
		Helpers:   opts.Helpers,
		Recompile: opts.Recompile,
		Settings:  opts.Settings,
	}

	a.logger.Debug("compiling template",
		zap.String("engine", a.name),
		zap.String("path", file.Path),
		zap.Int("bytes", len(file.Contents)),
		zap.Bool("recompile", opts.Recompile),
		zap.Int("imports", len(effective.Imports)),
	)

	fn, err := a.instance.Compile(string(file.Contents), effective)
	if err != nil {
		return err
	}
	file.Fn = fn
	return nil
}

func (a *Adapter) render(ctx context.Context, src Source, locals map[string]any, opts Options) (*File, error) {
	file, err := normalize(src)
	if err != nil {
		return nil, withOp(err, "render")
	}

	if file.Fn == nil || opts.Recompile {
		if err := a.compile(file, opts.withLocals(locals)); err != nil {
			return nil, err
		}
	}

	out, err := file.Fn(locals)
	if err != nil {
		return nil, err
	}

	if pending, ok := out.(Awaitable); ok {
		out, err = pending.Await(ctx)
		if err != nil {
			return nil, err
		}
	}

	if a.resolve != nil {
		out, err = a.resolve(ctx, out)
		if err != nil {
			return nil, err
		}
	}

	file.Contents = []byte(toText(out))
	return file, nil
}

func async(ctx context.Context, op func() (*File, error)) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		if err := ctx.Err(); err != nil {
			ch <- Result{Err: err}
			return
		}
		file, err := op()
		ch <- Result{File: file, Err: err}
	}()
	return ch
}

func withOp(err error, op string) error {
	if cfgErr, ok := err.(*ConfigurationError); ok && cfgErr.Op == "" {
		return &ConfigurationError{Op: op, Reason: cfgErr.Reason}
	}
	return err
}
