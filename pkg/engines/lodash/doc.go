// Package lodash implements an engine.Instance for lodash-style templates.
//
// Templates use three kinds of markers:
//
//	<%= expr %>   interpolate the value of expr
//	<%- expr %>   interpolate the HTML-escaped value of expr
//	<% expr %>    evaluate expr and discard the result
//
// Expressions are CEL. Functions passed in engine.Options.Imports are callable
// from expressions, and every marker pattern can be replaced per compile via
// the "interpolate", "escape" and "evaluate" settings:
//
//	adapter, _ := engine.New(lodash.New())
//	file, err := adapter.RenderSync(engine.Text("Hi {%= upper(name) %}"),
//	    map[string]any{"name": "jon"},
//	    engine.Options{
//	        Imports: map[string]any{"upper": strings.ToUpper},
//	        Settings: map[string]any{
//	            "interpolate": `{%=([\s\S]+?)%}`,
//	            "escape":      `{%-([\s\S]+?)%}`,
//	            "evaluate":    `{%([\s\S]+?)%}`,
//	        },
//	    })
package lodash
