// Package dispatch selects which template engine renders a job.
//
// A job naming its engine is honoured directly. Otherwise the configured CEL
// rules are evaluated in order against the variables path, ext, engine and
// metadata; the first rule returning true wins, and the fallback engine is
// used when none does.
//
// Example rules file:
//
//	fallback: lodash
//	rules:
//	  - condition: "ext == '.hbs'"
//	    target: handlebars
//	  - condition: "path.endsWith('.j2') || metadata.syntax == 'django'"
//	    target: pongo
//
// Rules that fail to evaluate or return a non-boolean are logged and skipped.
package dispatch
