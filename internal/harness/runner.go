package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ucscslugworks/bambu-printer-automations/internal/engine"
	"github.com/ucscslugworks/bambu-printer-automations/internal/printer"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// TraceEvent is one committed transition, reduced to its deterministic
// fields (timestamps are omitted; the cycle number orders events).
type TraceEvent struct {
	Cycle  int64  `json:"cycle"`
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Detail string `json:"detail,omitempty"`
}

// Result is a scenario run's observable outcome.
type Result struct {
	Trace    []TraceEvent
	Booking  []string // one line per booking row: "user: status"
	Printers []string // one line per slot: "name: status [user start end]"
}

// Run executes a scenario against in-memory fakes and returns the trace
// and final sheet state.
func Run(s *Scenario) (*Result, error) {
	start, err := s.startTime()
	if err != nil {
		return nil, err
	}

	acc := newMemAccessor(s)
	tel := &fakeTelemetry{reports: make([]printer.Report, len(s.Printers))}
	clock := engine.NewFixedClock(start)
	rec := &traceRecorder{}

	cfg := engine.DefaultConfig()
	cfg.DeviceCount = len(s.Printers)
	if s.Grace != "" {
		cfg.GraceWindow, _ = time.ParseDuration(s.Grace)
	}

	eng := engine.New(cfg, engine.Deps{
		Accessor:  acc,
		Telemetry: tel,
		Oracle:    newSetOracle(s.Staff, s.Certified),
		Recorder:  rec,
		Clock:     clock,
	})

	slotIndex := make(map[string]int, len(s.Printers))
	for i, name := range s.Printers {
		slotIndex[name] = i
	}

	ctx := context.Background()
	for i, cycle := range s.Cycles {
		advance := 10 * time.Second
		if cycle.Advance != "" {
			advance, _ = time.ParseDuration(cycle.Advance)
		}
		clock.Advance(advance)

		for name, frame := range cycle.Telemetry {
			rep, err := frame.report(clock.Now())
			if err != nil {
				return nil, fmt.Errorf("cycles[%d] telemetry %s: %w", i, name, err)
			}
			tel.set(slotIndex[name], rep)
		}
		acc.appendBooking(cycle.Book)
		acc.appendConfirmations(cycle.Confirmations)

		if err := eng.RunCycle(ctx, clock.Now()); err != nil {
			return nil, fmt.Errorf("cycle %d: %w", i+1, err)
		}
	}

	res := &Result{Trace: rec.events}
	if res.Trace == nil {
		res.Trace = []TraceEvent{}
	}
	res.Booking, res.Printers, err = acc.finalState()
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (f Frame) report(now time.Time) (printer.Report, error) {
	rep := printer.Report{
		State:            printer.GCodeState(f.State),
		MinutesRemaining: f.Remaining,
		ToolTempTarget:   f.NozzleTarget,
		LastMessage:      now,
	}
	if f.Started != "" {
		ts, err := time.ParseInLocation(sheet.SheetTimeFormat, f.Started, time.Local)
		if err != nil {
			return printer.Report{}, fmt.Errorf("started: %w", err)
		}
		rep.StartMinute = ts.Unix() / 60
	}
	return rep, nil
}

// memAccessor is an in-memory booking store. Tables are deep-copied on
// every read and write, matching the isolation of the real spreadsheet.
type memAccessor struct {
	mu     sync.Mutex
	tables map[string]sheet.Table
}

func newMemAccessor(s *Scenario) *memAccessor {
	booking := sheet.Table{
		Name:   sheet.TableBooking,
		Header: []string{"Timestamp", "Email Address", "Status"},
	}
	for _, row := range s.Booking {
		booking.Rows = append(booking.Rows, []string{"", row.User, row.Status})
	}

	starting := sheet.Table{
		Name:   sheet.TableStarting,
		Header: []string{"Timestamp", "Email Address", "Printer", "Handled"},
	}
	for _, row := range s.Confirmations {
		starting.Rows = append(starting.Rows, confirmationCells(row))
	}

	status := sheet.Table{
		Name:   sheet.TableStatus,
		Header: []string{"Printer Name", "Status", "Current User", "Start Time", "End Time"},
	}
	overrides := make(map[string]StatusRow, len(s.Status))
	for _, row := range s.Status {
		overrides[row.Printer] = row
	}
	for _, name := range s.Printers {
		row := []string{name, "Available", "", "", ""}
		if o, ok := overrides[name]; ok {
			row = []string{name, o.Status, o.User, o.Start, o.End}
		}
		status.Rows = append(status.Rows, row)
	}

	limits := sheet.Table{
		Name:   sheet.TableLimits,
		Header: []string{"Email Address", "Used (g)", "Limit (g)"},
	}

	return &memAccessor{tables: map[string]sheet.Table{
		sheet.TableBooking:  booking,
		sheet.TableStarting: starting,
		sheet.TableStatus:   status,
		sheet.TableLimits:   limits,
	}}
}

func confirmationCells(row ConfirmationRow) []string {
	handled := ""
	if row.Handled {
		handled = "TRUE"
	}
	return []string{row.Timestamp, row.User, row.Printer, handled}
}

func (m *memAccessor) ReadTable(ctx context.Context, name string) (sheet.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return sheet.Table{}, fmt.Errorf("no such table %q", name)
	}
	return copyTable(t), nil
}

func (m *memAccessor) WriteTable(ctx context.Context, t sheet.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[t.Name]; !ok {
		return fmt.Errorf("no such table %q", t.Name)
	}
	m.tables[t.Name] = copyTable(t)
	return nil
}

func (m *memAccessor) appendBooking(rows []BookingRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tables[sheet.TableBooking]
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{"", row.User, row.Status})
	}
	m.tables[sheet.TableBooking] = t
}

func (m *memAccessor) appendConfirmations(rows []ConfirmationRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tables[sheet.TableStarting]
	for _, row := range rows {
		t.Rows = append(t.Rows, confirmationCells(row))
	}
	m.tables[sheet.TableStarting] = t
}

// finalState renders the booking and status tables as stable text lines.
func (m *memAccessor) finalState() (booking, printers []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := sheet.ParseBookingSheet(m.tables[sheet.TableBooking])
	if err != nil {
		return nil, nil, err
	}
	booking = []string{}
	for _, r := range b.Rows {
		booking = append(booking, fmt.Sprintf("%s: %s", r.User, displayStatus(r.Status.String())))
	}

	st, err := sheet.ParseStatusSheet(m.tables[sheet.TableStatus])
	if err != nil {
		return nil, nil, err
	}
	printers = []string{}
	for _, slot := range st.Slots {
		line := fmt.Sprintf("%s: %s", slot.Name, slot.Status)
		if slot.User != "" {
			line += " " + slot.User
		}
		if !slot.StartTime.IsZero() {
			line += " " + slot.StartTime.Format(sheet.SheetTimeFormat)
		}
		if !slot.EndTime.IsZero() {
			line += " until " + slot.EndTime.Format(sheet.SheetTimeFormat)
		}
		printers = append(printers, line)
	}
	return booking, printers, nil
}

func displayStatus(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}

func copyTable(t sheet.Table) sheet.Table {
	out := sheet.Table{Name: t.Name, Header: append([]string(nil), t.Header...)}
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// fakeTelemetry serves the reports the scenario last set for each slot.
type fakeTelemetry struct {
	mu      sync.Mutex
	reports []printer.Report
}

func (f *fakeTelemetry) set(slot int, rep printer.Report) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[slot] = rep
}

func (f *fakeTelemetry) Report(slot int) printer.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slot < 0 || slot >= len(f.reports) {
		return printer.Report{}
	}
	return f.reports[slot]
}

func (f *fakeTelemetry) Close() {}

// setOracle authorizes from fixed identity sets.
type setOracle struct {
	staff     map[string]bool
	certified map[string]bool
}

func newSetOracle(staff, certified []string) *setOracle {
	o := &setOracle{
		staff:     make(map[string]bool, len(staff)),
		certified: make(map[string]bool, len(certified)),
	}
	for _, id := range staff {
		o.staff[id] = true
	}
	for _, id := range certified {
		o.certified[id] = true
	}
	return o
}

func (o *setOracle) IsStaff(identity string) bool { return o.staff[identity] }

func (o *setOracle) HasCapability(capability, identity string) bool {
	return o.certified[identity]
}

// traceRecorder collects transitions in commit order.
type traceRecorder struct {
	events []TraceEvent
}

func (r *traceRecorder) Record(ctx context.Context, tr engine.Transition) {
	r.events = append(r.events, TraceEvent{
		Cycle:  tr.Cycle,
		Kind:   tr.Kind,
		Key:    tr.Key,
		From:   tr.From,
		To:     tr.To,
		Detail: tr.Detail,
	})
}
