// Package engine implements the reservation and telemetry reconciliation
// engine: the fixed-cadence control loop that arbitrates a fleet of 3D
// printers among a queue of requesters.
//
// ARCHITECTURE:
//
// Single-Writer Cycle Loop:
// All decision logic runs in one goroutine on a fixed 10 second cadence.
// Each cycle reads full snapshots of the booking queue, the confirmation
// log, and the device status table, captures "now" once, then runs four
// passes in order:
//
//  1. reconcile  - combine cached telemetry with stored slot status,
//     detect stale/unconfirmed/over-temperature prints, detect completions
//  2. assign     - hand available printers to the head of the wait queue
//     under the business-hours policy, expire never-started bookings
//  3. confirm    - resolve start-confirmation events against pending prints
//  4. classify   - certify or reject new booking rows, close completed
//     ones, advance the low-water mark
//
// and finally writes every mutated snapshot back.
//
// Session state (wait queue, active assignment set, pending-print maps,
// low-water mark) lives only in the Engine struct and is lost on restart.
// The external store is the durable source of truth for reservation and
// slot status; session state is rebuilt as cycles observe the world.
//
// ERROR HANDLING: A cycle that fails any stage is logged with its stage
// and skipped; the next cadence tick starts over from fresh reads. Only
// startup validation (fleet config, device-count mismatch) is fatal.
// Snapshot write failures are logged and retried implicitly next cycle.
//
// The engine never talks to a spreadsheet, a printer, or a mail server
// directly: all collaborators are injected behind the Accessor, Telemetry,
// Oracle, Notifier, Recorder, and Metrics interfaces.
package engine
