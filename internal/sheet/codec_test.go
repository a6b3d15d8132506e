package sheet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookingTable(rows ...[]string) Table {
	return Table{
		Name:   TableBooking,
		Header: []string{"Timestamp", "Email Address", "Status"},
		Rows:   rows,
	}
}

func TestParseBookingSheet(t *testing.T) {
	b, err := ParseBookingSheet(bookingTable(
		[]string{"", "a@example.edu", "Waiting for Printer"},
		[]string{"", "b@example.edu", ""},
		[]string{"", "c@example.edu", "garbage text"},
	))
	require.NoError(t, err)
	require.Len(t, b.Rows, 3)

	assert.Equal(t, Reservation{Row: 0, User: "a@example.edu", Status: ReservationWaiting}, b.Rows[0])
	assert.Equal(t, ReservationEmpty, b.Rows[1].Status)
	// Unknown status text is treated as a new row.
	assert.Equal(t, ReservationEmpty, b.Rows[2].Status)
}

func TestParseBookingSheet_MissingColumn(t *testing.T) {
	_, err := ParseBookingSheet(Table{
		Name:   TableBooking,
		Header: []string{"Timestamp", "Status"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email Address")
}

func TestBookingSheetRender_PreservesUnmanagedColumns(t *testing.T) {
	b, err := ParseBookingSheet(bookingTable(
		[]string{"3/2/2026 12:59:01", "a@example.edu", ""},
	))
	require.NoError(t, err)

	b.Rows[0].Status = ReservationWaiting
	out := b.Render()
	assert.Equal(t, "3/2/2026 12:59:01", out.Rows[0][0])
	assert.Equal(t, "Waiting for Printer", out.Rows[0][2])
}

func TestParseStartingSheet(t *testing.T) {
	s, err := ParseStartingSheet(Table{
		Name:   TableStarting,
		Header: []string{"Timestamp", "Email Address", "Printer", "Handled"},
		Rows: [][]string{
			{"3/2/2026 13:00:25", "a@example.edu", "Alpha", ""},
			{"2026-03-02 13:05:00", "b@example.edu", "Beta", "TRUE"},
		},
	})
	require.NoError(t, err)
	require.Len(t, s.Rows, 2)

	assert.Equal(t, time.Date(2026, 3, 2, 13, 0, 25, 0, time.Local), s.Rows[0].Timestamp)
	assert.False(t, s.Rows[0].Handled)
	assert.True(t, s.Rows[1].Handled)
	assert.Equal(t, "Beta", s.Rows[1].Printer)
}

func TestParseStartingSheet_BadTimestamp(t *testing.T) {
	_, err := ParseStartingSheet(Table{
		Name:   TableStarting,
		Header: []string{"Timestamp", "Email Address", "Printer", "Handled"},
		Rows: [][]string{
			{"yesterday", "a@example.edu", "Alpha", ""},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable timestamp")
}

func TestStartingSheetRender_WritesHandled(t *testing.T) {
	s, err := ParseStartingSheet(Table{
		Name:   TableStarting,
		Header: []string{"Timestamp", "Email Address", "Printer", "Handled"},
		Rows: [][]string{
			{"3/2/2026 13:00:25", "a@example.edu", "Alpha", ""},
		},
	})
	require.NoError(t, err)

	s.Rows[0].Handled = true
	out := s.Render()
	assert.Equal(t, "TRUE", out.Rows[0][3])
}

func statusTable(rows ...[]string) Table {
	return Table{
		Name:   TableStatus,
		Header: []string{"Printer Name", "Status", "Current User", "Start Time", "End Time"},
		Rows:   rows,
	}
}

func TestParseStatusSheet(t *testing.T) {
	s, err := ParseStatusSheet(statusTable(
		[]string{"Alpha", "Available", "", "", ""},
		[]string{"Beta", "Printing", "a@example.edu", "2026-03-02 13:00", "2026-03-02 17:00"},
		[]string{"Gamma", "something odd", "", "not a time", ""},
	))
	require.NoError(t, err)
	require.Len(t, s.Slots, 3)

	assert.Equal(t, SlotAvailable, s.Slots[0].Status)
	assert.Equal(t, SlotPrinting, s.Slots[1].Status)
	assert.Equal(t, time.Date(2026, 3, 2, 13, 0, 0, 0, time.Local), s.Slots[1].StartTime)

	// Junk cells parse leniently so the cycle can self-heal them.
	assert.Equal(t, SlotInvalid, s.Slots[2].Status)
	assert.True(t, s.Slots[2].StartTime.IsZero())
}

func TestStatusSheetRender_RoundTrip(t *testing.T) {
	s, err := ParseStatusSheet(statusTable(
		[]string{"Alpha", "Available", "", "", ""},
	))
	require.NoError(t, err)

	s.Slots[0].Status = SlotBooked
	s.Slots[0].User = "a@example.edu"
	s.Slots[0].StartTime = time.Date(2026, 3, 2, 13, 0, 0, 0, time.Local)
	s.Slots[0].EndTime = time.Date(2026, 3, 2, 17, 0, 0, 0, time.Local)

	out := s.Render()
	assert.Equal(t, []string{"Alpha", "Booked", "a@example.edu", "2026-03-02 13:00", "2026-03-02 17:00"}, out.Rows[0])
}

func TestParseLimits(t *testing.T) {
	limits, err := ParseLimits(Table{
		Name:   TableLimits,
		Header: []string{"Email Address", "Used (g)", "Limit (g)"},
		Rows: [][]string{
			{"a@example.edu", "120.5", "500"},
			{"b@example.edu", "junk", ""},
		},
	})
	require.NoError(t, err)
	require.Len(t, limits, 2)

	assert.Equal(t, FilamentLimit{User: "a@example.edu", Used: 120.5, Limit: 500}, limits[0])
	assert.Zero(t, limits[1].Used)
}

func TestStatusStrings(t *testing.T) {
	for _, status := range []ReservationStatus{
		ReservationWaiting, ReservationBooked, ReservationPrinting,
		ReservationSupervised, ReservationDidNotStart, ReservationDone,
		ReservationNotCertified,
	} {
		parsed, ok := ParseReservationStatus(status.String())
		assert.True(t, ok, status.String())
		assert.Equal(t, status, parsed)
	}

	for _, status := range []SlotStatus{
		SlotAvailable, SlotBooked, SlotPrinting, SlotCancelPending, SlotOffline,
	} {
		parsed, ok := ParseSlotStatus(status.String())
		assert.True(t, ok, status.String())
		assert.Equal(t, status, parsed)
	}

	_, ok := ParseSlotStatus("nonsense")
	assert.False(t, ok)
}
