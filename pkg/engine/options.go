package engine

// Reserved locals keys consumed when a render has to compile first.
const (
	KeyImports   = "imports"
	KeyHelpers   = "helpers"
	KeyRecompile = "recompile"
)

// Options configures a compile. Settings are forwarded to the engine
// untouched, e.g. custom delimiters.
type Options struct {
	Imports   map[string]any
	Helpers   map[string]any
	Recompile bool
	Settings  map[string]any
}

// Setting returns the pass-through setting stored under key.
func (o Options) Setting(key string) (any, bool) {
	if o.Settings == nil {
		return nil, false
	}
	v, ok := o.Settings[key]
	return v, ok
}

// MergeImports overlays maps left to right; later maps win on collision.
// The result is always a fresh map.
func MergeImports(layers ...map[string]any) map[string]any {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}
	out := make(map[string]any, size)
	for _, layer := range layers {
		for name, fn := range layer {
			out[name] = fn
		}
	}
	return out
}

// withLocals returns the compile configuration used by a render: the union of
// locals and o, with o winning on collision. The reserved locals keys feed the
// typed fields instead of Settings.
func (o Options) withLocals(locals map[string]any) Options {
	settings := make(map[string]any, len(locals)+len(o.Settings))
	for key, value := range locals {
		switch key {
		case KeyImports, KeyHelpers, KeyRecompile:
			continue
		}
		settings[key] = value
	}
	for key, value := range o.Settings {
		settings[key] = value
	}

	recompile, _ := locals[KeyRecompile].(bool)

	return Options{
		Imports:   MergeImports(asMap(locals[KeyImports]), o.Imports),
		Helpers:   MergeImports(asMap(locals[KeyHelpers]), o.Helpers),
		Recompile: o.Recompile || recompile,
		Settings:  settings,
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
