// Package harness provides scenario-driven conformance testing for the
// reconciliation engine.
//
// A scenario is a YAML file describing an initial spreadsheet state, a
// roster, and a sequence of cycles. Each cycle advances a fixed clock,
// applies telemetry frames and new sheet rows, and runs one engine cycle
// against in-memory fakes. The harness captures every committed
// transition plus the final sheet state as a deterministic trace.
//
// # Scenario Format
//
//	name: print_lifecycle
//	description: "A certified user books, prints, and finishes."
//	start: "2026-03-02 13:00"
//	printers: [Alpha]
//	certified: [maker@example.edu]
//	booking:
//	  - user: maker@example.edu
//	cycles:
//	  - {}                       # advance 10s, no external change
//	  - telemetry:
//	      Alpha: { state: RUNNING, remaining: 60, started: "2026-03-02 13:00" }
//	    confirmations:
//	      - timestamp: "2026-03-02 13:00:25"
//	        user: maker@example.edu
//	        printer: Alpha
//
// # Determinism
//
// Scenarios run on a FixedClock that only moves between cycles, so the
// trace is byte-identical across runs and suitable for golden file
// comparison with goldie.
package harness
