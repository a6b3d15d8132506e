package engine

import (
	"context"
	"time"

	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// assign runs the queue assignment and expiry pass over every slot, in
// slot order, after reconcile. Available printers go to the head of the
// wait queue; Booked printers whose window passed without a print are
// released.
func (e *Engine) assign(ctx context.Context, snap *snapshot, now time.Time) {
	for i := range snap.status.Slots {
		slot := &snap.status.Slots[i]

		switch slot.Status {
		case sheet.SlotAvailable:
			if len(e.waitQueue) == 0 {
				continue
			}
			head := e.waitQueue[0]
			e.waitQueue = e.waitQueue[1:]

			start := e.snapToWindow(now)
			end := e.bookingEnd(start)

			slot.User = head.user
			slot.StartTime = start
			slot.EndTime = end
			e.setSlotStatus(ctx, slot, sheet.SlotBooked, "assigned to "+head.user)
			snap.statusDirty = true

			e.active[head.user] = head.row
			if head.row < len(snap.booking.Rows) {
				e.setReservationStatus(ctx, &snap.booking.Rows[head.row], sheet.ReservationBooked, "printer "+slot.Name)
				snap.bookingDirty = true
			}
			e.notify.PrinterBooked(ctx, head.user, slot.Name, start, end)

		case sheet.SlotBooked:
			// Release a booking whose window passed with the printer never
			// starting (the pending map would hold an observation if it had).
			if slot.EndTime.IsZero() || now.Before(slot.EndTime) {
				continue
			}
			if _, printing := e.pendingBookedPrint[slot.Index]; printing {
				continue
			}
			user := slot.User
			if res := e.claimedReservation(snap, user); res != nil && res.Status == sheet.ReservationBooked {
				e.setReservationStatus(ctx, res, sheet.ReservationDidNotStart, "booking window expired")
				snap.bookingDirty = true
			}
			delete(e.active, user)
			e.resetSlot(ctx, snap, slot, "booking expired")
		}
	}
}

// snapToWindow snaps a start time forward into the operating window:
// before opening it snaps to opening the same day; at or after closing it
// snaps to opening the next day.
func (e *Engine) snapToWindow(now time.Time) time.Time {
	opening := time.Date(now.Year(), now.Month(), now.Day(), e.cfg.OpeningHour, 0, 0, 0, now.Location())
	closing := time.Date(now.Year(), now.Month(), now.Day(), e.cfg.ClosingHour, 0, 0, 0, now.Location())

	switch {
	case now.Before(opening):
		return opening
	case !now.Before(closing):
		return opening.AddDate(0, 0, 1)
	default:
		return now.Truncate(time.Minute)
	}
}

// bookingEnd computes the end of a booking starting at start. An end that
// lands at or after closing is pushed through the overnight closure so a
// booking never straddles closed hours undetected.
func (e *Engine) bookingEnd(start time.Time) time.Time {
	end := start.Add(e.cfg.BookingDuration)
	closing := time.Date(start.Year(), start.Month(), start.Day(), e.cfg.ClosingHour, 0, 0, 0, start.Location())
	if !end.Before(closing) {
		end = end.Add(e.cfg.OvernightPush)
	}
	return end
}
