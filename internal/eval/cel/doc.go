// Package cel provides a CEL (Common Expression Language) evaluator used for
// template expressions and dispatch rules.
//
// Expressions are parsed without type checking, so variables need no
// declaration. Go functions can be exposed as CEL functions; each one becomes
// a single dyn-typed overload of matching arity.
//
// Example usage:
//
//	evaluator, err := cel.NewEvaluator(map[string]any{
//	    "upper": strings.ToUpper,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	vars := map[string]any{"name": "jon"}
//
//	result, err := evaluator.Evaluate(ctx, "upper(name) + '!'", vars)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result) // JON!
//
// Referencing a variable that vars does not provide fails with
// *UndefinedError, whose message reads "<name> is not defined".
//
// Supported operations:
//   - Comparisons: ==, !=, <, <=, >, >=
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
//   - Arithmetic: +, -, *, /, %
//   - List operations: in, size
//   - Map access: vars.field, vars["field"]
package cel
