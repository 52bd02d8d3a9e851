// Package engine adapts arbitrary template engines to one calling convention.
//
// An Adapter wraps any value implementing Instance and exposes four
// operations: CompileSync, Compile, RenderSync and Render. Templates are passed
// either as raw Text or as a *File container that memoizes the compiled
// function between calls.
//
// Example usage:
//
//	adapter, err := engine.New(lodash.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	file, err := adapter.RenderSync(engine.Text("Jon <%= name %>"),
//	    map[string]any{"name": "Schlinkert"}, engine.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(string(file.Contents)) // Jon Schlinkert
//
// Helpers are merged into Options.Imports in increasing precedence: helpers
// registered on the adapter, Options.Helpers, then Options.Imports.
//
// Errors returned by the wrapped engine are forwarded unchanged.
package engine
