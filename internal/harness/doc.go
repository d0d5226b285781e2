// Package harness provides conformance testing for state resolution.
//
// The harness loads YAML scenarios describing a room's events, resolves them
// with every driver in internal/timeline, checks that the drivers agree, and
// checks the result against the scenario's expectations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	room_version: "10"
//	batches:
//	  - - event_id: $create
//	      type: m.room.create
//	      state_key: ""
//	      sender: "@alice:example.org"
//	      content: { creator: "@alice:example.org" }
//	  - - event_id: $topic
//	      ...
//	expect:
//	  state:
//	    - { type: m.room.create, state_key: "", event_id: $create }
//	  absent:
//	    - { type: m.room.topic, state_key: "" }
//
// PDUs may omit room_id (filled from the scenario), origin_server_ts
// (assigned in arrival order) and event_id (assigned its reference hash).
// Instead of state and absent, expect.error names the error code every
// driver must fail with.
//
// # Drivers
//
//   - iterative: walks prev_events forward from the create event
//   - batched: resolves each batch against the previous batch's result
//   - atomic: resolves every event in one call, recording a trace
//
// A scenario may restrict itself to some drivers with a drivers list.
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store. PDUs are
// written and read back before resolving, so the drivers see exactly what a
// stored room yields. Golden snapshots hold canonical JSON of the agreed
// state and the atomic driver's trace.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/ban_vs_join.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
