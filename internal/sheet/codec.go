package sheet

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The codec converts between raw spreadsheet tables and typed records.
// Column positions are resolved from the header once per read; logic code
// never touches raw rows. Rendering writes back into a copy of the
// original table so human-added columns survive the round trip.

func columnIndex(t Table, name string) (int, error) {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("table %q: missing column %q", t.Name, name)
}

func cell(row []string, col int) string {
	if col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}

// setCell grows the row as needed and writes the value.
func setCell(row []string, col int, value string) []string {
	for len(row) <= col {
		row = append(row, "")
	}
	row[col] = value
	return row
}

func copyTable(t Table) Table {
	out := Table{Name: t.Name, Header: append([]string(nil), t.Header...)}
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// BookingSheet is the parsed booking queue plus enough layout to render
// status updates back into the original table.
type BookingSheet struct {
	table     Table
	userCol   int
	statusCol int

	Rows []Reservation
}

// ParseBookingSheet validates the booking table layout and parses every row.
// Status cells that are not a known string are treated as Empty; the
// classification pass rewrites them.
func ParseBookingSheet(t Table) (*BookingSheet, error) {
	userCol, err := columnIndex(t, "Email Address")
	if err != nil {
		return nil, err
	}
	statusCol, err := columnIndex(t, "Status")
	if err != nil {
		return nil, err
	}

	b := &BookingSheet{table: copyTable(t), userCol: userCol, statusCol: statusCol}
	b.Rows = make([]Reservation, len(t.Rows))
	for i, row := range t.Rows {
		status, _ := ParseReservationStatus(cell(row, statusCol))
		b.Rows[i] = Reservation{
			Row:    i,
			User:   cell(row, userCol),
			Status: status,
		}
	}
	return b, nil
}

// Render produces the full table with current statuses written back.
func (b *BookingSheet) Render() Table {
	out := copyTable(b.table)
	for i, r := range b.Rows {
		out.Rows[i] = setCell(out.Rows[i], b.statusCol, r.Status.String())
	}
	return out
}

// StartingSheet is the parsed start-confirmation log.
type StartingSheet struct {
	table      Table
	handledCol int

	Rows []ConfirmationEvent
}

// ParseStartingSheet validates the confirmation log layout and parses every
// row. A malformed timestamp is an error: eligibility is time-windowed and
// guessing would mis-handle the event.
func ParseStartingSheet(t Table) (*StartingSheet, error) {
	timeCol, err := columnIndex(t, "Timestamp")
	if err != nil {
		return nil, err
	}
	userCol, err := columnIndex(t, "Email Address")
	if err != nil {
		return nil, err
	}
	printerCol, err := columnIndex(t, "Printer")
	if err != nil {
		return nil, err
	}
	handledCol, err := columnIndex(t, "Handled")
	if err != nil {
		return nil, err
	}

	s := &StartingSheet{table: copyTable(t), handledCol: handledCol}
	s.Rows = make([]ConfirmationEvent, len(t.Rows))
	for i, row := range t.Rows {
		ts, err := parseConfirmationTime(cell(row, timeCol))
		if err != nil {
			return nil, fmt.Errorf("table %q row %d: %w", t.Name, i+2, err)
		}
		s.Rows[i] = ConfirmationEvent{
			Row:       i,
			Timestamp: ts,
			User:      cell(row, userCol),
			Printer:   cell(row, printerCol),
			Handled:   strings.EqualFold(cell(row, handledCol), "TRUE"),
		}
	}
	return s, nil
}

// Render produces the full table with handled flags written back.
func (s *StartingSheet) Render() Table {
	out := copyTable(s.table)
	for i, ev := range s.Rows {
		value := ""
		if ev.Handled {
			value = "TRUE"
		}
		out.Rows[i] = setCell(out.Rows[i], s.handledCol, value)
	}
	return out
}

func parseConfirmationTime(text string) (time.Time, error) {
	for _, layout := range confirmationTimeFormats {
		if ts, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", text)
}

// StatusSheet is the parsed device status table.
type StatusSheet struct {
	table     Table
	nameCol   int
	statusCol int
	userCol   int
	startCol  int
	endCol    int

	Slots []DeviceSlot
}

// ParseStatusSheet validates the status table layout and parses every row.
// Unknown status text parses to SlotInvalid (reconcile self-heals it);
// unparseable time cells parse to the zero time.
func ParseStatusSheet(t Table) (*StatusSheet, error) {
	nameCol, err := columnIndex(t, "Printer Name")
	if err != nil {
		return nil, err
	}
	statusCol, err := columnIndex(t, "Status")
	if err != nil {
		return nil, err
	}
	userCol, err := columnIndex(t, "Current User")
	if err != nil {
		return nil, err
	}
	startCol, err := columnIndex(t, "Start Time")
	if err != nil {
		return nil, err
	}
	endCol, err := columnIndex(t, "End Time")
	if err != nil {
		return nil, err
	}

	s := &StatusSheet{
		table:     copyTable(t),
		nameCol:   nameCol,
		statusCol: statusCol,
		userCol:   userCol,
		startCol:  startCol,
		endCol:    endCol,
	}
	s.Slots = make([]DeviceSlot, len(t.Rows))
	for i, row := range t.Rows {
		status, _ := ParseSlotStatus(cell(row, statusCol))
		s.Slots[i] = DeviceSlot{
			Index:     i,
			Name:      cell(row, nameCol),
			Status:    status,
			User:      cell(row, userCol),
			StartTime: parseSheetTime(cell(row, startCol)),
			EndTime:   parseSheetTime(cell(row, endCol)),
		}
	}
	return s, nil
}

// Render produces the full table with slot state written back.
func (s *StatusSheet) Render() Table {
	out := copyTable(s.table)
	for i, slot := range s.Slots {
		row := out.Rows[i]
		row = setCell(row, s.statusCol, slot.Status.String())
		row = setCell(row, s.userCol, slot.User)
		row = setCell(row, s.startCol, formatSheetTime(slot.StartTime))
		row = setCell(row, s.endCol, formatSheetTime(slot.EndTime))
		out.Rows[i] = row
	}
	return out
}

func parseSheetTime(text string) time.Time {
	if text == "" {
		return time.Time{}
	}
	ts, err := time.ParseInLocation(SheetTimeFormat, text, time.Local)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func formatSheetTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(SheetTimeFormat)
}

// ParseLimits parses the per-user filament limits table. Rows with
// unparseable numbers are kept with zero values rather than failing the
// cycle; the table is informational.
func ParseLimits(t Table) ([]FilamentLimit, error) {
	userCol, err := columnIndex(t, "Email Address")
	if err != nil {
		return nil, err
	}
	usedCol, err := columnIndex(t, "Used (g)")
	if err != nil {
		return nil, err
	}
	limitCol, err := columnIndex(t, "Limit (g)")
	if err != nil {
		return nil, err
	}

	limits := make([]FilamentLimit, len(t.Rows))
	for i, row := range t.Rows {
		used, _ := strconv.ParseFloat(cell(row, usedCol), 64)
		limit, _ := strconv.ParseFloat(cell(row, limitCol), 64)
		limits[i] = FilamentLimit{User: cell(row, userCol), Used: used, Limit: limit}
	}
	return limits, nil
}
