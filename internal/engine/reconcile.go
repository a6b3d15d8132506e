package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ucscslugworks/bambu-printer-automations/internal/printer"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// reconcile runs the telemetry pass over every device slot in slot order,
// combining each slot's cached report with its stored status. Returns the
// requesters whose prints completed this cycle.
func (e *Engine) reconcile(ctx context.Context, snap *snapshot, now time.Time) []string {
	var completed []string

	for i := range snap.status.Slots {
		slot := &snap.status.Slots[i]
		rep := e.tel.Report(i)

		if rep.State.Active() {
			e.reconcileActive(ctx, snap, slot, rep.StartedAt(), rep, now)
		} else {
			completed = e.reconcileIdle(ctx, snap, slot, completed)
		}

		e.metrics.SlotStatus(slot.Name, slot.Status)
	}

	return completed
}

// reconcileActive handles a slot whose telemetry shows a running or
// paused print.
func (e *Engine) reconcileActive(ctx context.Context, snap *snapshot, slot *sheet.DeviceSlot, observedStart time.Time, rep printer.Report, now time.Time) {
	if observedStart.IsZero() {
		observedStart = now
	}

	switch slot.Status {
	case sheet.SlotPrinting:
		// Stale: the print has run past the grace window with no user, or
		// with a user whose reservation was never confirmed as started.
		stale := now.Sub(slot.StartTime) >= e.cfg.GraceWindow &&
			(slot.User == "" || e.reservationStatusOf(snap, slot.User) == sheet.ReservationBooked)
		hot := rep.ToolTempTarget > e.cfg.TempCeiling && !e.oracle.IsStaff(slot.User)

		switch {
		case stale:
			e.setSlotStatus(ctx, slot, sheet.SlotCancelPending, "unconfirmed print past grace window")
			snap.statusDirty = true
			e.notify.PrintCancelled(ctx, slot.User, slot.Name, "print was never confirmed as started")
		case hot:
			e.setSlotStatus(ctx, slot, sheet.SlotCancelPending, "tool temperature above ceiling")
			snap.statusDirty = true
			e.notify.PrintCancelled(ctx, slot.User, slot.Name, "tool temperature above safety ceiling")
		default:
			e.refreshTimes(snap, slot, observedStart, rep, now)
		}

	case sheet.SlotAvailable:
		// Activity with no claim.
		if _, ok := e.pendingUnconfirmed[slot.Index]; !ok {
			e.pendingUnconfirmed[slot.Index] = observedStart
			slog.Info("unconfirmed print observed",
				"printer", slot.Name, "started", observedStart)
		}
		if now.Sub(e.pendingUnconfirmed[slot.Index]) >= e.cfg.GraceWindow {
			e.setSlotStatus(ctx, slot, sheet.SlotCancelPending, "unclaimed print past grace window")
			snap.statusDirty = true
			// The cancel closes the claim window; no late adoption.
			delete(e.pendingUnconfirmed, slot.Index)
			e.notify.PrintCancelled(ctx, "", slot.Name, "print with no booking was never confirmed")
		}

	case sheet.SlotBooked:
		res := e.claimedReservation(snap, slot.User)
		switch {
		case res != nil && (res.Status == sheet.ReservationPrinting || res.Status == sheet.ReservationSupervised):
			// Confirmed earlier; promote the slot and track real times.
			e.setSlotStatus(ctx, slot, sheet.SlotPrinting, "confirmed start")
			snap.statusDirty = true
			e.refreshTimes(snap, slot, observedStart, rep, now)
		default:
			// Activity matching a reservation not yet marked started.
			if _, ok := e.pendingBookedPrint[slot.Index]; !ok {
				row := -1
				if res != nil {
					row = res.Row
				}
				e.pendingBookedPrint[slot.Index] = pendingBooked{
					user:     slot.User,
					row:      row,
					observed: observedStart,
				}
				slog.Info("booked print awaiting confirmation",
					"printer", slot.Name, "user", slot.User, "started", observedStart)
			}
			if now.Sub(e.pendingBookedPrint[slot.Index].observed) >= e.cfg.GraceWindow {
				e.setSlotStatus(ctx, slot, sheet.SlotCancelPending, "booked print never confirmed")
				snap.statusDirty = true
				delete(e.pendingBookedPrint, slot.Index)
				e.notify.PrintCancelled(ctx, slot.User, slot.Name, "print was never confirmed as started")
			}
		}
	}
	// Active + CancelPending: cancel request outstanding, nothing to do.
	// Active + Offline: the fleet operator marked it out of service; leave it.
}

// reconcileIdle handles a slot whose telemetry shows no running print.
func (e *Engine) reconcileIdle(ctx context.Context, snap *snapshot, slot *sheet.DeviceSlot, completed []string) []string {
	switch slot.Status {
	case sheet.SlotPrinting:
		// Completion.
		if slot.User != "" {
			completed = append(completed, slot.User)
			e.notify.PrintComplete(ctx, slot.User, slot.Name)
		}
		e.resetSlot(ctx, snap, slot, "print finished")

	case sheet.SlotCancelPending, sheet.SlotInvalid:
		// Self-healing from a cancelled or stuck state. Close out the
		// holder's reservation so it does not sit active forever.
		if res := e.claimedReservation(snap, slot.User); res != nil {
			switch res.Status {
			case sheet.ReservationBooked:
				e.setReservationStatus(ctx, res, sheet.ReservationDidNotStart, "booking cancelled")
				snap.bookingDirty = true
				delete(e.active, slot.User)
			case sheet.ReservationPrinting, sheet.ReservationSupervised:
				completed = append(completed, slot.User)
			}
		}
		e.resetSlot(ctx, snap, slot, "reset to available")
	}

	// No activity: any pending print observation for this slot is moot.
	delete(e.pendingUnconfirmed, slot.Index)
	delete(e.pendingBookedPrint, slot.Index)

	return completed
}

// refreshTimes updates a printing slot's window from telemetry.
func (e *Engine) refreshTimes(snap *snapshot, slot *sheet.DeviceSlot, observedStart time.Time, rep printer.Report, now time.Time) {
	if slot.StartTime.IsZero() && !observedStart.IsZero() {
		slot.StartTime = observedStart
		snap.statusDirty = true
	}
	if rep.MinutesRemaining > 0 {
		end := now.Add(time.Duration(rep.MinutesRemaining) * time.Minute).Truncate(time.Minute)
		if !slot.EndTime.Equal(end) {
			slot.EndTime = end
			snap.statusDirty = true
		}
	}
}

// resetSlot returns a slot to Available and clears its fields.
func (e *Engine) resetSlot(ctx context.Context, snap *snapshot, slot *sheet.DeviceSlot, detail string) {
	e.setSlotStatus(ctx, slot, sheet.SlotAvailable, detail)
	if slot.User != "" || !slot.StartTime.IsZero() || !slot.EndTime.IsZero() {
		slot.User = ""
		slot.StartTime = time.Time{}
		slot.EndTime = time.Time{}
	}
	snap.statusDirty = true
}

// claimedReservation finds the booking row a user currently holds:
// the active-set row when the session knows it, otherwise the user's
// first non-terminal row (session state is lost on restart).
func (e *Engine) claimedReservation(snap *snapshot, user string) *sheet.Reservation {
	if user == "" {
		return nil
	}
	if row, ok := e.active[user]; ok && row < len(snap.booking.Rows) {
		return &snap.booking.Rows[row]
	}
	for i := e.lowWater; i < len(snap.booking.Rows); i++ {
		r := &snap.booking.Rows[i]
		if r.User == user && r.Status.Active() {
			return r
		}
	}
	return nil
}

// reservationStatusOf returns the status of the user's current
// reservation, or Empty when they hold none.
func (e *Engine) reservationStatusOf(snap *snapshot, user string) sheet.ReservationStatus {
	if res := e.claimedReservation(snap, user); res != nil {
		return res.Status
	}
	return sheet.ReservationEmpty
}
