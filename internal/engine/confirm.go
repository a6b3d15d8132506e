package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// confirm resolves start-confirmation events against pending prints.
// Events are scanned newest-first; the scan stops at the first event older
// than the grace window. The log is sorted by timestamp before scanning
// rather than trusting the sheet's append order.
func (e *Engine) confirm(ctx context.Context, snap *snapshot, now time.Time) {
	order := make([]int, len(snap.starting.Rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return snap.starting.Rows[order[a]].Timestamp.After(snap.starting.Rows[order[b]].Timestamp)
	})

	for _, idx := range order {
		ev := &snap.starting.Rows[idx]
		if now.Sub(ev.Timestamp) > e.cfg.GraceWindow {
			break
		}
		if ev.Handled {
			continue
		}

		slot := slotByName(snap, ev.Printer)
		if slot == nil {
			slog.Warn("confirmation names unknown printer", "printer", ev.Printer, "user", ev.User)
			continue
		}

		if observed, ok := e.pendingUnconfirmed[slot.Index]; ok {
			e.confirmUnconfirmed(ctx, snap, slot, ev, observed)
			continue
		}
		if pending, ok := e.pendingBookedPrint[slot.Index]; ok {
			e.confirmBooked(ctx, snap, slot, ev, pending)
		}
	}
}

// confirmUnconfirmed resolves a claim on a print that started with no
// booking. Only staff may adopt such a print; anyone else leaves the
// pending entry in place for eventual cancellation.
func (e *Engine) confirmUnconfirmed(ctx context.Context, snap *snapshot, slot *sheet.DeviceSlot, ev *sheet.ConfirmationEvent, observed time.Time) {
	if !e.oracle.IsStaff(ev.User) {
		slog.Info("non-staff claim on unconfirmed print ignored",
			"printer", slot.Name, "user", ev.User)
		return
	}
	slot.User = ev.User
	slot.StartTime = observed.Truncate(time.Minute)
	e.setSlotStatus(ctx, slot, sheet.SlotPrinting, "staff claimed unconfirmed print")
	snap.statusDirty = true
	delete(e.pendingUnconfirmed, slot.Index)
	ev.Handled = true
	snap.startingDirty = true
}

// confirmBooked resolves a claim on a booked printer's print. An exact
// user match advances the reservation to Printing; a staff member may
// instead supervise someone else's booking.
func (e *Engine) confirmBooked(ctx context.Context, snap *snapshot, slot *sheet.DeviceSlot, ev *sheet.ConfirmationEvent, pending pendingBooked) {
	var to sheet.ReservationStatus
	switch {
	case ev.User == pending.user && ev.User != "":
		to = sheet.ReservationPrinting
	case e.oracle.IsStaff(ev.User):
		to = sheet.ReservationSupervised
	default:
		slog.Info("confirmation does not match booking",
			"printer", slot.Name, "claimed", pending.user, "confirmed_by", ev.User)
		return
	}

	if pending.row >= 0 && pending.row < len(snap.booking.Rows) {
		e.setReservationStatus(ctx, &snap.booking.Rows[pending.row], to, "confirmed on "+slot.Name)
		snap.bookingDirty = true
	}
	if pending.user == "" {
		// Booked row with no recorded user: attach the confirming staff
		// identity so the completion is attributable.
		slot.User = ev.User
	}
	slot.StartTime = pending.observed.Truncate(time.Minute)
	e.setSlotStatus(ctx, slot, sheet.SlotPrinting, "print start confirmed")
	snap.statusDirty = true
	delete(e.pendingBookedPrint, slot.Index)
	ev.Handled = true
	snap.startingDirty = true
}

func slotByName(snap *snapshot, name string) *sheet.DeviceSlot {
	for i := range snap.status.Slots {
		if snap.status.Slots[i].Name == name {
			return &snap.status.Slots[i]
		}
	}
	return nil
}
