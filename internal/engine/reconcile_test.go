package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ucscslugworks/bambu-printer-automations/internal/printer"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

func TestCompletionMarksReservationDone(t *testing.T) {
	fx := newFixture(t, "Alpha")
	fx.setSlotRow("Alpha", "Printing", "maker@example.edu", "2026-03-02 12:00", "2026-03-02 16:00")
	fx.addBooking("maker@example.edu", "Currently Printing")
	// Telemetry idle: the print finished between cycles.

	fx.cycle()

	slot := fx.slot("Alpha")
	assert.Equal(t, sheet.SlotAvailable, slot.Status)
	assert.Empty(t, slot.User)
	assert.True(t, slot.StartTime.IsZero())
	assert.Equal(t, "Print Done", fx.bookingStatus(0))
	assert.Contains(t, fx.notifier.calls, "complete maker@example.edu Alpha")
}

func TestInvalidSlotSelfHeals(t *testing.T) {
	fx := newFixture(t, "Alpha")
	fx.setSlotRow("Alpha", "someone scribbled here", "", "", "")

	fx.cycle()

	assert.Equal(t, sheet.SlotAvailable, fx.slot("Alpha").Status)
}

func TestStaleUnconfirmedPrintCancelled(t *testing.T) {
	fx := newFixture(t, "Alpha")
	// Printing for 20 minutes but the reservation was never confirmed.
	start := baseTime.Add(-20 * time.Minute)
	fx.setSlotRow("Alpha", "Printing", "maker@example.edu",
		start.Format(sheet.SheetTimeFormat), "2026-03-02 16:40")
	fx.addBooking("maker@example.edu", "Printer Booked")
	fx.tel.reports[0] = running(start, 100, 220)

	fx.cycle()

	assert.Equal(t, sheet.SlotCancelPending, fx.slot("Alpha").Status)
	assert.Contains(t, fx.notifier.calls,
		"cancelled maker@example.edu Alpha: print was never confirmed as started")
}

func TestConfirmedPrintNotCancelled(t *testing.T) {
	fx := newFixture(t, "Alpha")
	start := baseTime.Add(-20 * time.Minute)
	fx.setSlotRow("Alpha", "Printing", "maker@example.edu",
		start.Format(sheet.SheetTimeFormat), "2026-03-02 16:40")
	fx.addBooking("maker@example.edu", "Currently Printing")
	fx.tel.reports[0] = running(start, 100, 220)

	fx.cycle()

	assert.Equal(t, sheet.SlotPrinting, fx.slot("Alpha").Status)
}

func TestOverheatCancelsNonStaff(t *testing.T) {
	fx := newFixture(t, "Alpha")
	fx.setSlotRow("Alpha", "Printing", "maker@example.edu", "2026-03-02 12:55", "2026-03-02 16:55")
	fx.addBooking("maker@example.edu", "Currently Printing")
	fx.tel.reports[0] = running(baseTime.Add(-5*time.Minute), 100, 300)

	fx.cycle()

	assert.Equal(t, sheet.SlotCancelPending, fx.slot("Alpha").Status)
}

func TestOverheatExemptsStaff(t *testing.T) {
	fx := newFixture(t, "Alpha")
	fx.oracle.staff["staff@example.edu"] = true
	fx.setSlotRow("Alpha", "Printing", "staff@example.edu", "2026-03-02 12:55", "2026-03-02 16:55")
	fx.addBooking("staff@example.edu", "Printing (Staff)")
	fx.tel.reports[0] = running(baseTime.Add(-5*time.Minute), 100, 300)

	fx.cycle()

	assert.Equal(t, sheet.SlotPrinting, fx.slot("Alpha").Status)
}

func TestEndTimeTracksRemaining(t *testing.T) {
	fx := newFixture(t, "Alpha")
	fx.setSlotRow("Alpha", "Printing", "maker@example.edu", "2026-03-02 12:55", "2026-03-02 16:55")
	fx.addBooking("maker@example.edu", "Currently Printing")
	fx.tel.reports[0] = running(baseTime.Add(-5*time.Minute), 90, 220)

	fx.cycle()

	want := baseTime.Add(90 * time.Minute).Truncate(time.Minute)
	assert.Equal(t, want, fx.slot("Alpha").EndTime)
}

func TestOfflineSlotLeftAlone(t *testing.T) {
	fx := newFixture(t, "Alpha")
	fx.setSlotRow("Alpha", "Offline", "", "", "")
	fx.tel.reports[0] = running(baseTime, 60, 220)

	fx.cycle()

	assert.Equal(t, sheet.SlotOffline, fx.slot("Alpha").Status)
}

func TestUnknownStartFallsBackToNow(t *testing.T) {
	fx := newFixture(t, "Alpha")
	// Running with no reported start time: treated as started now, so it
	// is observed but not yet past the grace window.
	fx.tel.reports[0] = printer.Report{
		State:       printer.StateRunning,
		LastMessage: baseTime,
	}

	fx.cycle()

	assert.Equal(t, sheet.SlotAvailable, fx.slot("Alpha").Status)
}
