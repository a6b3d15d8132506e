package engine

import (
	"context"

	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// classify scans booking rows forward from the low-water mark: certifying
// or rejecting new rows, enqueueing certified waiters, closing completed
// prints, and finally advancing the low-water mark past terminal rows.
//
// completed is this cycle's completed-requesters list from reconcile;
// entries are consumed as their rows close.
func (e *Engine) classify(ctx context.Context, snap *snapshot, completed []string) {
	for i := e.lowWater; i < len(snap.booking.Rows); i++ {
		r := &snap.booking.Rows[i]
		if r.User == "" {
			continue
		}

		switch r.Status {
		case sheet.ReservationEmpty, sheet.ReservationWaiting:
			if !e.oracle.IsStaff(r.User) && !e.oracle.HasCapability(e.cfg.Capability, r.User) {
				e.setReservationStatus(ctx, r, sheet.ReservationNotCertified, "no certification")
				snap.bookingDirty = true
				// A waiter whose certification was revoked must not stay
				// queued, or the next free printer would be booked for them.
				e.dropFromWaitQueue(r.User)
				continue
			}
			if r.Status != sheet.ReservationWaiting {
				e.setReservationStatus(ctx, r, sheet.ReservationWaiting, "certified")
				snap.bookingDirty = true
			}
			if _, isActive := e.active[r.User]; !isActive && !e.inWaitQueue(r.User) {
				e.waitQueue = append(e.waitQueue, waitEntry{user: r.User, row: r.Row})
				e.notify.UserWaiting(ctx, r.User, len(e.waitQueue))
			}

		case sheet.ReservationPrinting, sheet.ReservationSupervised:
			// Close only the user's currently active row, so a repeat
			// booker's finished print does not close their newer booking.
			if activeRow, ok := e.active[r.User]; ok && activeRow != r.Row {
				continue
			}
			if idx := indexOf(completed, r.User); idx >= 0 {
				e.setReservationStatus(ctx, r, sheet.ReservationDone, "print completed")
				snap.bookingDirty = true
				completed = append(completed[:idx], completed[idx+1:]...)
				delete(e.active, r.User)
			}
		}
	}

	// Advance the low-water mark to the first row still active; every row
	// before it is terminal and never scanned again.
	for e.lowWater < len(snap.booking.Rows) {
		r := snap.booking.Rows[e.lowWater]
		if r.User != "" && r.Status.Active() {
			break
		}
		e.lowWater++
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
