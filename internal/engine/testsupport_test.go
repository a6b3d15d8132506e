package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ucscslugworks/bambu-printer-automations/internal/printer"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// baseTime is inside the operating window on a weekday.
var baseTime = time.Date(2026, 3, 2, 13, 0, 0, 0, time.Local)

// fakeAccessor is an in-memory booking store with failure injection.
type fakeAccessor struct {
	tables    map[string]sheet.Table
	failRead  map[string]error
	failWrite map[string]error
	writes    []string // table names, in write order
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{
		tables: map[string]sheet.Table{
			sheet.TableBooking: {
				Name:   sheet.TableBooking,
				Header: []string{"Timestamp", "Email Address", "Status"},
			},
			sheet.TableStarting: {
				Name:   sheet.TableStarting,
				Header: []string{"Timestamp", "Email Address", "Printer", "Handled"},
			},
			sheet.TableStatus: {
				Name:   sheet.TableStatus,
				Header: []string{"Printer Name", "Status", "Current User", "Start Time", "End Time"},
			},
			sheet.TableLimits: {
				Name:   sheet.TableLimits,
				Header: []string{"Email Address", "Used (g)", "Limit (g)"},
			},
		},
		failRead:  map[string]error{},
		failWrite: map[string]error{},
	}
}

func (a *fakeAccessor) ReadTable(ctx context.Context, name string) (sheet.Table, error) {
	if err := a.failRead[name]; err != nil {
		return sheet.Table{}, err
	}
	t, ok := a.tables[name]
	if !ok {
		return sheet.Table{}, fmt.Errorf("no such table %q", name)
	}
	return copyTestTable(t), nil
}

func (a *fakeAccessor) WriteTable(ctx context.Context, t sheet.Table) error {
	if err := a.failWrite[t.Name]; err != nil {
		return err
	}
	a.tables[t.Name] = copyTestTable(t)
	a.writes = append(a.writes, t.Name)
	return nil
}

func copyTestTable(t sheet.Table) sheet.Table {
	out := sheet.Table{Name: t.Name, Header: append([]string(nil), t.Header...)}
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// fakeTelemetry serves fixed per-slot reports.
type fakeTelemetry struct {
	reports map[int]printer.Report
	closed  bool
}

func newFakeTelemetry() *fakeTelemetry {
	return &fakeTelemetry{reports: map[int]printer.Report{}}
}

func (f *fakeTelemetry) Report(slot int) printer.Report { return f.reports[slot] }
func (f *fakeTelemetry) Close()                         { f.closed = true }

// fakeOracle authorizes from fixed sets.
type fakeOracle struct {
	staff     map[string]bool
	certified map[string]bool
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{staff: map[string]bool{}, certified: map[string]bool{}}
}

func (o *fakeOracle) IsStaff(identity string) bool { return o.staff[identity] }
func (o *fakeOracle) HasCapability(capability, identity string) bool {
	return o.certified[identity]
}

// recNotifier records notification calls as strings.
type recNotifier struct {
	calls []string
}

func (n *recNotifier) UserWaiting(_ context.Context, user string, position int) {
	n.calls = append(n.calls, fmt.Sprintf("waiting %s %d", user, position))
}

func (n *recNotifier) PrinterBooked(_ context.Context, user, printerName string, start, end time.Time) {
	n.calls = append(n.calls, fmt.Sprintf("booked %s %s", user, printerName))
}

func (n *recNotifier) PrintCancelled(_ context.Context, user, printerName, reason string) {
	n.calls = append(n.calls, fmt.Sprintf("cancelled %s %s: %s", user, printerName, reason))
}

func (n *recNotifier) PrintComplete(_ context.Context, user, printerName string) {
	n.calls = append(n.calls, fmt.Sprintf("complete %s %s", user, printerName))
}

// recRecorder records committed transitions.
type recRecorder struct {
	transitions []Transition
}

func (r *recRecorder) Record(_ context.Context, tr Transition) {
	r.transitions = append(r.transitions, tr)
}

// fixture bundles an engine with all its fakes.
type fixture struct {
	t        *testing.T
	acc      *fakeAccessor
	tel      *fakeTelemetry
	oracle   *fakeOracle
	notifier *recNotifier
	rec      *recRecorder
	clock    *FixedClock
	eng      *Engine
}

func newFixture(t *testing.T, printers ...string) *fixture {
	t.Helper()
	fx := &fixture{
		t:        t,
		acc:      newFakeAccessor(),
		tel:      newFakeTelemetry(),
		oracle:   newFakeOracle(),
		notifier: &recNotifier{},
		rec:      &recRecorder{},
		clock:    NewFixedClock(baseTime),
	}
	for _, name := range printers {
		fx.setSlotRow(name, "Available", "", "", "")
	}

	cfg := DefaultConfig()
	cfg.DeviceCount = len(printers)
	fx.eng = New(cfg, Deps{
		Accessor:  fx.acc,
		Telemetry: fx.tel,
		Oracle:    fx.oracle,
		Notifier:  fx.notifier,
		Recorder:  fx.rec,
		Clock:     fx.clock,
	})
	return fx
}

func (fx *fixture) addBooking(user, status string) {
	t := fx.acc.tables[sheet.TableBooking]
	t.Rows = append(t.Rows, []string{"", user, status})
	fx.acc.tables[sheet.TableBooking] = t
}

func (fx *fixture) addConfirmation(ts time.Time, user, printerName string) {
	t := fx.acc.tables[sheet.TableStarting]
	t.Rows = append(t.Rows, []string{ts.Format("2006-01-02 15:04:05"), user, printerName, ""})
	fx.acc.tables[sheet.TableStarting] = t
}

// setSlotRow replaces or appends the named printer's status row.
func (fx *fixture) setSlotRow(name, status, user, start, end string) {
	t := fx.acc.tables[sheet.TableStatus]
	row := []string{name, status, user, start, end}
	for i, r := range t.Rows {
		if r[0] == name {
			t.Rows[i] = row
			fx.acc.tables[sheet.TableStatus] = t
			return
		}
	}
	t.Rows = append(t.Rows, row)
	fx.acc.tables[sheet.TableStatus] = t
}

// cycle runs one engine cycle at the current clock and requires success.
func (fx *fixture) cycle() {
	fx.t.Helper()
	require.NoError(fx.t, fx.eng.RunCycle(context.Background(), fx.clock.Now()))
}

// slot reads back the named printer's current stored state.
func (fx *fixture) slot(name string) sheet.DeviceSlot {
	fx.t.Helper()
	status, err := sheet.ParseStatusSheet(fx.acc.tables[sheet.TableStatus])
	require.NoError(fx.t, err)
	for _, s := range status.Slots {
		if s.Name == name {
			return s
		}
	}
	fx.t.Fatalf("no slot %q", name)
	return sheet.DeviceSlot{}
}

// bookingStatus reads back a booking row's status cell.
func (fx *fixture) bookingStatus(row int) string {
	fx.t.Helper()
	t := fx.acc.tables[sheet.TableBooking]
	require.Less(fx.t, row, len(t.Rows))
	return t.Rows[row][2]
}

// running builds an active report started at the given time.
func running(started time.Time, remainingMinutes int, nozzleTarget float64) printer.Report {
	return printer.Report{
		State:            printer.StateRunning,
		MinutesRemaining: remainingMinutes,
		ToolTempTarget:   nozzleTarget,
		StartMinute:      started.Unix() / 60,
		LastMessage:      started,
	}
}
