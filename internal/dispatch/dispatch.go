package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aescanero/dago-engine-base/internal/eval/cel"
	"github.com/aescanero/dago-engine-base/internal/registry"
	"github.com/aescanero/dago-engine-base/pkg/engine"
)

// Path values reported in Selection.PathTaken.
const (
	PathExplicit = "explicit"
	PathRule     = "rule"
	PathFallback = "fallback"
)

// Config holds the engine selection rules
type Config struct {
	Rules    []Rule `json:"rules,omitempty" yaml:"rules"`
	Fallback string `json:"fallback" yaml:"fallback"`
}

// Rule represents a CEL-based selection rule
type Rule struct {
	Condition string `json:"condition" yaml:"condition"`
	Target    string `json:"target" yaml:"target"`
}

// Request describes the template being rendered.
type Request struct {
	Path     string
	Engine   string
	Metadata map[string]any
}

// Selection is the outcome of Select.
type Selection struct {
	Adapter   *engine.Adapter
	Engine    string
	Reasoning string
	PathTaken string
}

// Dispatcher picks the engine adapter for a request
type Dispatcher struct {
	registry  *registry.Registry
	evaluator *cel.Evaluator
	config    Config
	logger    *zap.Logger
}

// LoadConfig reads selection rules from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read rules: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse rules: %w", err)
	}
	return cfg, nil
}

// NewDispatcher validates config against the registry.
func NewDispatcher(reg *registry.Registry, config Config, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	evaluator, err := cel.NewEvaluator(nil)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		registry:  reg,
		evaluator: evaluator,
		config:    config,
		logger:    logger,
	}
	if err := d.validateConfig(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return d, nil
}

// Select chooses an adapter: the explicitly requested engine, then the first
// matching rule, then the fallback.
func (d *Dispatcher) Select(ctx context.Context, req Request) (*Selection, error) {
	if req.Engine != "" {
		adapter, ok := d.registry.Get(req.Engine)
		if !ok {
			return nil, fmt.Errorf("unknown engine: %s", req.Engine)
		}
		return &Selection{
			Adapter:   adapter,
			Engine:    req.Engine,
			Reasoning: "requested explicitly",
			PathTaken: PathExplicit,
		}, nil
	}

	vars := prepareVars(req)

	// Evaluate rules in order
	for i, rule := range d.config.Rules {
		d.logger.Debug("evaluating rule",
			zap.Int("rule_index", i),
			zap.String("condition", rule.Condition),
		)

		result, err := d.evaluator.Evaluate(ctx, rule.Condition, vars)
		if err != nil {
			d.logger.Warn("rule evaluation error",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.Error(err),
			)
			// Continue to next rule on error
			continue
		}

		matched, ok := result.(bool)
		if !ok {
			d.logger.Warn("rule condition did not return boolean",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.Any("result", result),
			)
			continue
		}

		if matched {
			d.logger.Debug("rule matched",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.String("target", rule.Target),
			)
			adapter, _ := d.registry.Get(rule.Target)
			return &Selection{
				Adapter:   adapter,
				Engine:    rule.Target,
				Reasoning: fmt.Sprintf("matched rule %d: %s", i, rule.Condition),
				PathTaken: PathRule,
			}, nil
		}
	}

	adapter, _ := d.registry.Get(d.config.Fallback)
	return &Selection{
		Adapter:   adapter,
		Engine:    d.config.Fallback,
		Reasoning: "no rules matched",
		PathTaken: PathFallback,
	}, nil
}

// prepareVars exposes the request to rule conditions
func prepareVars(req Request) map[string]any {
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"path":     req.Path,
		"ext":      filepath.Ext(req.Path),
		"engine":   req.Engine,
		"metadata": metadata,
	}
}

// validateConfig validates the selection configuration
func (d *Dispatcher) validateConfig() error {
	if d.registry == nil {
		return fmt.Errorf("registry is nil")
	}

	if d.config.Fallback == "" {
		return fmt.Errorf("fallback engine is required")
	}
	if _, ok := d.registry.Get(d.config.Fallback); !ok {
		return fmt.Errorf("fallback engine %q is not registered", d.config.Fallback)
	}

	for i, rule := range d.config.Rules {
		if rule.Condition == "" {
			return fmt.Errorf("rule %d: condition is required", i)
		}
		if rule.Target == "" {
			return fmt.Errorf("rule %d: target is required", i)
		}
		if _, ok := d.registry.Get(rule.Target); !ok {
			return fmt.Errorf("rule %d: engine %q is not registered", i, rule.Target)
		}
		if err := d.evaluator.ValidateExpression(rule.Condition); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}

	return nil
}
