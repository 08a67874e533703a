// Package harness provides conformance testing for loregate rule libraries.
//
// The harness compiles a rule library, plays scenario turns through the real
// engine and checks each turn's context and log, the session trace and the
// persisted project sources.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	library: ../lore            # CUE package dir, .cue or .json file
//	session: test-session-0001
//	draws: [0.2, 0.9]           # scripted random draws (or seed: 42)
//	static_sources:
//	  active_actors: "Mira"
//	turns:
//	  - user: "Hello, is this the tavern?"
//	    reply: "Welcome!"
//	    overrides: { field.scenario: "Night." }
//	    expect:
//	      intent: greeting
//	      tags: [AT_TAVERN]
//	      fired: [tavern, mira/welcome]
//	      not_fired: [storm]
//	      fields: { scenario: "Gilded Goose" }
//	assertions:
//	  - type: trace_count
//	    name: rapport
//	    count: 2
//	  - type: final_state
//	    key: rapport
//	    value: 2
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies an entry passed (in one turn or any turn)
//   - trace_order: Verifies entries passed in the specified order within a turn
//   - trace_count: Verifies an entry passed exactly N times across the session
//   - final_state: Verifies a project source value after the last turn
//
// # Deterministic Testing
//
// All scenarios execute with a fixed session token and a scripted (or
// seeded) random source, in a fresh in-memory SQLite database that serves as
// both the project store and the trace archive. Identical scenarios produce
// byte-identical traces for golden snapshot comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/tavern_demo.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
