// Package plan loads declarative fault plans from YAML files and applies
// them to an injector.
//
// A plan is a list of fault specs. Each spec names a key class, a key value
// regex, a behavior, and behavior parameters. Applying a plan is atomic with
// respect to a previous apply: faults registered by the previous plan are
// removed before the new ones are registered, so editing a watched plan file
// replaces the active fault set rather than accumulating rules.
//
// Example plan:
//
//	faults:
//	  - class: open
//	    pattern: "/mnt/data/.*"
//	    behavior: error
//	    error: "injected open failure"
//	    count: 3
//	  - class: readdir
//	    pattern: ".*"
//	    behavior: delay
//	    delay: 250ms
package plan
