package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// snapshot holds one cycle's view of the external store. The typed sheets
// keep their original tables so write-back preserves columns the engine
// does not manage.
type snapshot struct {
	booking  *sheet.BookingSheet
	starting *sheet.StartingSheet
	status   *sheet.StatusSheet
	limits   []sheet.FilamentLimit

	bookingDirty  bool
	startingDirty bool
	statusDirty   bool
}

// readSnapshot reads and parses all four tables. A device-count mismatch
// here is recoverable (a human may be mid-edit); only the startup check
// is fatal.
func (e *Engine) readSnapshot(ctx context.Context) (*snapshot, error) {
	bookingTable, err := e.acc.ReadTable(ctx, sheet.TableBooking)
	if err != nil {
		return nil, fmt.Errorf("read booking: %w", err)
	}
	startingTable, err := e.acc.ReadTable(ctx, sheet.TableStarting)
	if err != nil {
		return nil, fmt.Errorf("read starting: %w", err)
	}
	statusTable, err := e.acc.ReadTable(ctx, sheet.TableStatus)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	limitsTable, err := e.acc.ReadTable(ctx, sheet.TableLimits)
	if err != nil {
		return nil, fmt.Errorf("read limits: %w", err)
	}

	booking, err := sheet.ParseBookingSheet(bookingTable)
	if err != nil {
		return nil, err
	}
	starting, err := sheet.ParseStartingSheet(startingTable)
	if err != nil {
		return nil, err
	}
	status, err := sheet.ParseStatusSheet(statusTable)
	if err != nil {
		return nil, err
	}
	limits, err := sheet.ParseLimits(limitsTable)
	if err != nil {
		return nil, err
	}

	if e.cfg.DeviceCount > 0 && len(status.Slots) != e.cfg.DeviceCount {
		return nil, fmt.Errorf("status table has %d device rows, expected %d",
			len(status.Slots), e.cfg.DeviceCount)
	}

	return &snapshot{
		booking:  booking,
		starting: starting,
		status:   status,
		limits:   limits,
	}, nil
}

// writeSnapshot writes every mutated table back. A failed table write is
// logged and counted but does not abort the cycle; the next cycle writes
// the latest state again (the cadence is the retry interval).
func (e *Engine) writeSnapshot(ctx context.Context, snap *snapshot) {
	if snap.statusDirty {
		e.writeTable(ctx, snap.status.Render())
	}
	if snap.bookingDirty {
		e.writeTable(ctx, snap.booking.Render())
	}
	if snap.startingDirty {
		e.writeTable(ctx, snap.starting.Render())
	}
}

func (e *Engine) writeTable(ctx context.Context, t sheet.Table) {
	if err := e.acc.WriteTable(ctx, t); err != nil {
		slog.Error("snapshot write failed", "table", t.Name, "error", err)
		e.metrics.WriteFailed(t.Name)
	}
}
