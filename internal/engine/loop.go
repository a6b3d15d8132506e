package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// RunCycle executes one full reconciliation cycle at the given instant:
// read snapshots, reconcile telemetry, assign and expire bookings, resolve
// confirmations, classify the queue, write mutated snapshots back.
//
// Any stage error is returned for the caller to log; no partial write
// happens for a failed cycle (write-back is the last step).
func (e *Engine) RunCycle(ctx context.Context, now time.Time) error {
	e.cycleSeq++

	snap, err := e.readSnapshot(ctx)
	if err != nil {
		return stageErr(StageRead, err)
	}

	completed := e.reconcile(ctx, snap, now)
	e.assign(ctx, snap, now)
	e.confirm(ctx, snap, now)
	e.classify(ctx, snap, completed)

	e.writeSnapshot(ctx, snap)
	return nil
}

// Run drives the cycle loop at the configured cadence until the context
// is cancelled. The period is measured from cycle start, so variable work
// time does not drift it; if a cycle overruns the cadence, the next one
// starts immediately (sleeps never stack).
//
// A failed cycle is logged with its stage and skipped; the loop continues
// at the next tick with fresh reads. On cancellation every device session
// is closed before returning.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"cadence", e.cfg.Cadence,
		"devices", e.cfg.DeviceCount,
	)
	defer e.tel.Close()

	for {
		start := e.clock.Now()
		if err := e.RunCycle(ctx, start); err != nil {
			stage := ErrorStage(err)
			slog.Error("cycle failed", "cycle", e.cycleSeq, "stage", stage, "error", err)
			e.metrics.CycleFailed(stage)
		} else {
			e.metrics.CycleCompleted(e.clock.Now().Sub(start))
		}

		sleep := e.cfg.Cadence - e.clock.Now().Sub(start)
		if sleep < 0 {
			sleep = 0
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("engine stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Bootstrap validates the device status table against the fleet before
// the loop starts: the table and the fleet must enumerate the same
// devices, one row per printer, in any order. A mismatch is a fatal
// startup error.
//
// Returns the printer names in status-row order; telemetry sessions must
// be constructed in this order so slot indexes line up.
func Bootstrap(ctx context.Context, acc Accessor, fleetNames []string) ([]string, error) {
	t, err := acc.ReadTable(ctx, sheet.TableStatus)
	if err != nil {
		return nil, fmt.Errorf("read status table: %w", err)
	}
	status, err := sheet.ParseStatusSheet(t)
	if err != nil {
		return nil, err
	}

	if len(status.Slots) != len(fleetNames) {
		return nil, fmt.Errorf("device count mismatch: %d configured printers, %d status rows",
			len(fleetNames), len(status.Slots))
	}

	want := make(map[string]bool, len(fleetNames))
	for _, name := range fleetNames {
		want[name] = true
	}
	ordered := make([]string, 0, len(status.Slots))
	for _, slot := range status.Slots {
		if !want[slot.Name] {
			return nil, fmt.Errorf("status row names unconfigured printer %q", slot.Name)
		}
		delete(want, slot.Name)
		ordered = append(ordered, slot.Name)
	}
	return ordered, nil
}
