package engine

import (
	"errors"
	"fmt"
)

// ErrNoInstance is returned by New when no engine instance is supplied.
var ErrNoInstance = errors.New(`expected an instance of "engine"`)

// ConfigurationError reports an unsupported combination of inputs.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Op == "" {
		return "engine: " + e.Reason
	}
	return fmt.Sprintf("engine: %s: %s", e.Op, e.Reason)
}

// CompileError is returned by engines that reject a template source. Its
// message is the engine's message verbatim.
type CompileError struct {
	Engine string
	Err    error
}

func (e *CompileError) Error() string { return e.Err.Error() }

func (e *CompileError) Unwrap() error { return e.Err }

// RenderError is returned by compiled functions that fail at invocation time.
type RenderError struct {
	Engine string
	Err    error
}

func (e *RenderError) Error() string { return e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }
