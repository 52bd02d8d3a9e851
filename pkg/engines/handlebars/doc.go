// Package handlebars provides a Handlebars engine.Instance backed by raymond.
//
// Functions passed in engine.Options.Imports become template helpers for that
// compile only. Helpers returning (value, error) are supported; a non-nil
// error aborts the render.
//
// Example usage:
//
//	adapter, _ := engine.New(handlebars.New(), engine.WithName(handlebars.Name))
//
//	data := map[string]any{
//	    "state": map[string]any{
//	        "message":  "Hello World",
//	        "priority": "high",
//	    },
//	}
//
//	file, err := adapter.RenderSync(
//	    engine.Text("Message: {{state.message}}\nPriority: {{uppercase state.priority}}"),
//	    data, engine.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Output: Message: Hello World
//	//         Priority: HIGH
//
// Built-in helpers:
//   - uppercase - Convert string to uppercase
//   - lowercase - Convert string to lowercase
//   - trim - Trim whitespace from string
//   - default - Return default value if first arg is empty
//   - eq - Equality comparison
//   - ne - Inequality comparison
//   - gt - Greater than (for numbers)
//   - lt - Less than (for numbers)
//   - contains - Check if string contains substring
//   - join - Join array elements with separator
//   - len - Get length of array/string/map
//
// Example with helpers:
//
//	{{uppercase name}}                     # "JOHN"
//	{{default value "N/A"}}                # "N/A" if value is empty
//	{{#if (eq status "active")}}...{{/if}} # Conditional
//	{{#if (gt score 0.8)}}...{{/if}}       # Numeric comparison
//	{{join items ", "}}                    # "a, b, c"
package handlebars
