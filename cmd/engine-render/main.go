package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/aescanero/dago-engine-base/internal/dispatch"
	"github.com/aescanero/dago-engine-base/internal/registry"
	"github.com/aescanero/dago-engine-base/pkg/engine"
	"github.com/aescanero/dago-engine-base/pkg/resolve"
)

type options struct {
	engine    string
	fallback  string
	rules     string
	data      string
	out       string
	partials  string
	sanitize  bool
	recompile bool
	verbose   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.engine, "engine", "", "engine to render with (selected by rules when empty)")
	flag.StringVar(&opts.fallback, "fallback", "lodash", "engine used when no rule matches")
	flag.StringVar(&opts.rules, "rules", "", "YAML file with engine selection rules")
	flag.StringVar(&opts.data, "data", "", "YAML or JSON file with template locals")
	flag.StringVar(&opts.out, "out", "", "output directory (stdout if empty)")
	flag.StringVar(&opts.partials, "partials", ".", "directory used by include")
	flag.BoolVar(&opts.sanitize, "sanitize", false, "sanitize rendered HTML")
	flag.BoolVar(&opts.recompile, "recompile", false, "recompile templates on every render")
	flag.BoolVar(&opts.verbose, "v", false, "verbose logging")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalf("usage: engine-render [flags] template...")
	}

	if err := run(context.Background(), opts, flag.Args(), os.Stdout); err != nil {
		log.Fatalf("Failed to render: %v", err)
	}
}

func run(ctx context.Context, opts options, paths []string, stdout io.Writer) error {
	logger := newLogger(opts.verbose)
	defer func() { _ = logger.Sync() }()

	locals, err := loadLocals(opts.data)
	if err != nil {
		return err
	}

	var resolver engine.ResolveFunc
	if opts.sanitize {
		resolver = resolve.Sanitize(nil)
	}

	reg, err := registry.New(registry.Options{
		TemplateFS: os.DirFS(opts.partials),
		Resolver:   resolver,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	rules := dispatch.Config{Fallback: opts.fallback}
	if opts.rules != "" {
		if rules, err = dispatch.LoadConfig(opts.rules); err != nil {
			return err
		}
		if rules.Fallback == "" {
			rules.Fallback = opts.fallback
		}
	}
	dispatcher, err := dispatch.NewDispatcher(reg, rules, logger)
	if err != nil {
		return err
	}

	for _, path := range paths {
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}

		sel, err := dispatcher.Select(ctx, dispatch.Request{Path: path, Engine: opts.engine})
		if err != nil {
			return err
		}

		file, err := sel.Adapter.RenderSync(&engine.File{Path: path, Contents: contents}, locals,
			engine.Options{Recompile: opts.recompile})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		logger.Debug("rendered template",
			zap.String("path", path),
			zap.String("engine", sel.Engine),
			zap.String("reasoning", sel.Reasoning),
		)

		if opts.out == "" {
			if _, err := stdout.Write(file.Contents); err != nil {
				return err
			}
			continue
		}

		target := filepath.Join(opts.out, filepath.Base(path))
		if err := os.MkdirAll(opts.out, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := atomic.WriteFile(target, bytes.NewReader(file.Contents)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Fprintf(stdout, "%s written to %s\n", path, target)
	}

	return nil
}

func loadLocals(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	locals := map[string]any{}
	if err := yaml.Unmarshal(data, &locals); err != nil {
		return nil, fmt.Errorf("failed to parse data: %w", err)
	}
	return locals, nil
}

func newLogger(verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
