// Package harness runs conformance scenarios against the delivery
// orchestrator.
//
// A scenario names a cohort script, a viewer and a start instant, then
// drives the orchestrator through a list of steps and checks the resulting
// event trace and persisted state.
//
// # Scenario Format
//
//	name: welcome_burst
//	description: "First send is answered by the welcome burst"
//	script: ../../script/testdata/cohort.yaml
//	start: 2026-03-02T10:00:00Z
//	user:
//	  id: u1
//	  firstName: Ada
//	  enrolled: 2026-03-02T08:00:00Z
//	replies:
//	  mode: scripted          # scripted | fail | static
//	steps:
//	  - session: true
//	  - send: "hello"
//	  - advance: 24h
//	  - progress: 60
//	  - react: { message: d0-welcome, kind: like }
//	  - evaluate: true
//	assertions:
//	  - type: trace_contains
//	    event: appended
//	    sender: sam
//	  - type: trace_order
//	    contents: ["So glad you're here, Ada.", "Welcome aboard!"]
//	  - type: trace_count
//	    event: milestone
//	    count: 1
//	  - type: final_state
//	    expect: { streak_count: 1, seen_milestones: [50] }
//
// Script paths are relative to the scenario file.
//
// # Determinism
//
// Every run uses a fake clock that each pacing sleep advances, a random
// source that always draws the range minimum, sequential message ids and a
// fresh in-memory SQLite store. Traces are therefore identical across runs
// and can be compared against golden files.
package harness
