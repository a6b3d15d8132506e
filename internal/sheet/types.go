package sheet

import "time"

// SheetTimeFormat is the timestamp layout written to the spreadsheet.
// Matches the format humans see and edit in the status columns.
const SheetTimeFormat = "2006-01-02 15:04"

// confirmationTimeFormats lists accepted layouts for the Starting sheet
// timestamp column. Google Forms writes the slash form; manual edits tend
// to use the dash form.
var confirmationTimeFormats = []string{
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	SheetTimeFormat,
}

// Table names within the spreadsheet.
const (
	TableBooking  = "Booking"
	TableStarting = "Starting"
	TableStatus   = "Printer Status"
	TableLimits   = "Filament Limits"
)

// Table is one spreadsheet tab: a header row plus data rows.
// Rows are padded to header width at the accessor boundary, so codec
// code may index columns without bounds checks up to len(Header).
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// ReservationStatus is the lifecycle state of one booking queue row.
type ReservationStatus int

const (
	// ReservationEmpty is a newly arrived row with no status written yet.
	ReservationEmpty ReservationStatus = iota
	ReservationWaiting
	ReservationBooked
	ReservationPrinting
	ReservationSupervised
	ReservationDidNotStart
	ReservationDone
	ReservationNotCertified
)

var reservationStatusStrings = map[ReservationStatus]string{
	ReservationEmpty:        "",
	ReservationWaiting:      "Waiting for Printer",
	ReservationBooked:       "Printer Booked",
	ReservationPrinting:     "Currently Printing",
	ReservationSupervised:   "Printing (Staff)",
	ReservationDidNotStart:  "Did Not Start Print",
	ReservationDone:         "Print Done",
	ReservationNotCertified: "Not Certified",
}

// String returns the sheet cell text for the status.
func (s ReservationStatus) String() string {
	return reservationStatusStrings[s]
}

// ParseReservationStatus maps a sheet cell back to a status.
// Returns false for text that is not one of the known strings.
func ParseReservationStatus(text string) (ReservationStatus, bool) {
	for status, str := range reservationStatusStrings {
		if str == text {
			return status, true
		}
	}
	return ReservationEmpty, false
}

// Active reports whether the reservation is still live: waiting for a
// printer or holding one. Terminal rows are skipped by the low-water mark.
func (s ReservationStatus) Active() bool {
	switch s {
	case ReservationWaiting, ReservationBooked, ReservationPrinting, ReservationSupervised:
		return true
	}
	return false
}

// Terminal reports whether the reservation can never change again.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationDidNotStart, ReservationDone, ReservationNotCertified:
		return true
	}
	return false
}

// SlotStatus is the stored state of one physical printer.
type SlotStatus int

const (
	// SlotInvalid marks a status cell that did not parse. The reconcile
	// pass self-heals these back to Available.
	SlotInvalid SlotStatus = iota
	SlotAvailable
	SlotBooked
	SlotPrinting
	SlotCancelPending
	SlotOffline
)

var slotStatusStrings = map[SlotStatus]string{
	SlotAvailable:     "Available",
	SlotBooked:        "Booked",
	SlotPrinting:      "Printing",
	SlotCancelPending: "Cancel Pending",
	SlotOffline:       "Offline",
}

// String returns the sheet cell text for the status.
func (s SlotStatus) String() string {
	return slotStatusStrings[s]
}

// ParseSlotStatus maps a sheet cell back to a status.
// Unknown text yields (SlotInvalid, false).
func ParseSlotStatus(text string) (SlotStatus, bool) {
	for status, str := range slotStatusStrings {
		if str == text {
			return status, true
		}
	}
	return SlotInvalid, false
}

// Reservation is one row of the booking queue. Row is the zero-based data
// row index and is the FIFO key; rows are never reordered.
type Reservation struct {
	Row    int
	User   string
	Status ReservationStatus
}

// DeviceSlot is one physical printer's stored state. Index is the
// zero-based data row index in the Printer Status table, which also
// orders the telemetry sessions.
type DeviceSlot struct {
	Index     int
	Name      string
	Status    SlotStatus
	User      string
	StartTime time.Time
	EndTime   time.Time
}

// Reset returns the slot to Available with user and time fields cleared.
func (d *DeviceSlot) Reset() {
	d.Status = SlotAvailable
	d.User = ""
	d.StartTime = time.Time{}
	d.EndTime = time.Time{}
}

// ConfirmationEvent is one row of the start-confirmation log: a user's
// claim that they started a print on a named printer.
type ConfirmationEvent struct {
	Row       int
	Timestamp time.Time
	User      string
	Printer   string
	Handled   bool
}

// FilamentLimit is one row of the per-user limits table. The engine reads
// and carries these; decision logic does not consume them yet.
type FilamentLimit struct {
	User  string
	Used  float64
	Limit float64
}
