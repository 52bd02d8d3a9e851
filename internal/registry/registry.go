// Package registry builds the named engine adapters shared by the render
// worker and the CLI.
package registry

import (
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/aescanero/dago-engine-base/pkg/engine"
	"github.com/aescanero/dago-engine-base/pkg/engines/handlebars"
	"github.com/aescanero/dago-engine-base/pkg/engines/lodash"
	"github.com/aescanero/dago-engine-base/pkg/engines/pongo"
	"github.com/aescanero/dago-engine-base/pkg/helpers"
)

// Options configures the bundled adapters.
type Options struct {
	// TemplateFS backs the include helper and pongo2 includes. May be nil.
	TemplateFS fs.FS
	// Helpers are registered on every adapter after the standard helpers.
	Helpers  map[string]any
	Resolver engine.ResolveFunc
	Logger   *zap.Logger
}

// Registry maps engine names to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]*engine.Adapter
}

// New returns a registry holding the lodash, handlebars and pongo adapters.
func New(opts Options) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var pongoOpts []pongo.Option
	if opts.TemplateFS != nil {
		pongoOpts = append(pongoOpts, pongo.WithFS(opts.TemplateFS))
	}

	instances := map[string]engine.Instance{
		lodash.Name:     lodash.New(),
		handlebars.Name: handlebars.New(),
		pongo.Name:      pongo.New(pongoOpts...),
	}

	r := &Registry{adapters: make(map[string]*engine.Adapter, len(instances))}
	for name, instance := range instances {
		adapter, err := engine.New(instance,
			engine.WithName(name),
			engine.WithHelpers(engine.MergeImports(helpers.Standard(opts.TemplateFS), opts.Helpers)),
			engine.WithResolver(opts.Resolver),
			engine.WithLogger(logger.With(zap.String("engine", name))),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s adapter: %w", name, err)
		}
		if err := r.Register(adapter); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds adapter under its name.
func (r *Registry) Register(adapter *engine.Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[adapter.Name()]; exists {
		return fmt.Errorf("engine %q already registered", adapter.Name())
	}
	r.adapters[adapter.Name()] = adapter
	return nil
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (*engine.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	return adapter, ok
}

// Names returns the registered engine names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
