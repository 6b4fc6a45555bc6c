// Package harness runs checklist scenarios against the activation engine.
//
// A scenario records answers for one subject under one program and checks
// how the active checklist moves as they arrive. Every step goes through
// checklist.Service, so eligibility, validation and evaluation logging are
// exercised exactly as in production.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: deep_or_chain
//	description: "Either seed opens logic-or"
//	program: or-deep-condition-case
//	programs: ../programs        # optional; embedded catalogue when empty
//	subject_id: home-1           # optional
//	subject:                     # optional subject document
//	  floorplan: { remrate_target: { bedroom_count: 3 } }
//	setup:                       # imported without the eligibility check
//	  seed-b: "No"
//	flow:
//	  - answer: top
//	    value: A
//	    expect:
//	      active: [top, seed-a]
//	  - answer: seed-b
//	    value: "Yes"
//	    expect:
//	      error: "not active"
//	assertions:
//	  - type: trace_contains
//	    event: activate
//	    measure: seed-a
//	  - type: final_state
//	    table: answers
//	    where: { measure_id: top }
//	    expect: { value: A }
//
// A flow step is one of answer (with value or text), subject (a replacement
// document) or evaluate.
//
// # Trace
//
// After setup and after every accepted step the checklist is evaluated and
// recorded. The trace holds one event per answer and one per instrument
// entering ("activate") or leaving ("deactivate") the active set, in
// checklist order. Rejected answers appear as "rejected".
//
// # Assertion Types
//
//   - trace_contains: an event of the given type for a measure
//   - trace_order: measures first appear in the given order
//   - trace_count: exact number of events of a type, optionally per measure
//   - final_state: one row of a store table matches the expected values
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store, a fresh engine.Clock and
// testutil.SequentialIDGenerator, so traces and evaluation logs are
// byte-identical across runs and suitable for golden comparison.
package harness
