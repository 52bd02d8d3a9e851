// Package resolve provides post-resolution steps for engine adapters.
package resolve

import (
	"context"
	"fmt"

	"github.com/microcosm-cc/bluemonday"

	"github.com/aescanero/dago-engine-base/pkg/engine"
)

// Sanitize returns a step that runs rendered output through policy.
func Sanitize(policy *bluemonday.Policy) engine.ResolveFunc {
	if policy == nil {
		policy = bluemonday.UGCPolicy()
	}
	return func(_ context.Context, rendered any) (any, error) {
		return policy.Sanitize(text(rendered)), nil
	}
}

// Chain runs steps in order, feeding each one the previous output.
func Chain(steps ...engine.ResolveFunc) engine.ResolveFunc {
	return func(ctx context.Context, rendered any) (any, error) {
		out := rendered
		for _, step := range steps {
			if step == nil {
				continue
			}
			var err error
			out, err = step(ctx, out)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

func text(v any) string {
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
