// Package harness runs conformance scenarios against the dispatcher.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	setup:
//	  - collection: users
//	    id: "1"
//	    value: alice
//	steps:
//	  - match: {left: add, right: "2"}
//	    expect: {value: 'add<:>["2"]'}
//	  - match: {left: $prev, right: "3"}
//	    expect: {value: "5"}
//	  - exec: [split, "a,b", ","]
//	  - match: {left: ghosts, right: "1"}
//	    expect: {error: UNKNOWN_CALL}
//	assertions:
//	  - type: final_state
//	    collection: users
//	    id: "1"
//	    expect: alice
//
// Each step runs exactly one operation: match, exec, insert, delete,
// remove or watch. The literal "$prev" as a match operand stands for the
// previous step's result, which is how a scenario drives a curried call
// to completion.
//
// # Assertion Types
//
//   - trace_contains: Some step of the given op produced the given result
//   - trace_count: Exactly N steps of the given op ran
//   - trace_order: Steps of the listed ops ran in that relative order
//   - final_state: A record holds the expected value after all steps
//
// # Deterministic Testing
//
// Every scenario runs against a fresh SQLite database in a temporary
// directory, with a fixed-key cipher whose randomness is seeded from the
// scenario name. The same scenario always produces the same trace, which
// RunWithGolden compares against testdata/golden/<name>.golden.
package harness
