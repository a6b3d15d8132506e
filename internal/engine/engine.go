package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ucscslugworks/bambu-printer-automations/internal/printer"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// Accessor reads and writes whole tables of the external store. Reads
// return rows padded to header width; writes replace the full table.
type Accessor interface {
	ReadTable(ctx context.Context, name string) (sheet.Table, error)
	WriteTable(ctx context.Context, t sheet.Table) error
}

// Telemetry exposes each device's last-known report. Reads return the
// cached snapshot immediately; the session updates it in the background.
type Telemetry interface {
	Report(slot int) printer.Report
	Close()
}

// Oracle answers authorization questions about an identity.
type Oracle interface {
	IsStaff(identity string) bool
	HasCapability(capability, identity string) bool
}

// Notifier receives fire-and-forget calls at decision points. The engine
// never waits on a notifier; implementations must return promptly.
type Notifier interface {
	UserWaiting(ctx context.Context, user string, position int)
	PrinterBooked(ctx context.Context, user, printerName string, start, end time.Time)
	PrintCancelled(ctx context.Context, user, printerName, reason string)
	PrintComplete(ctx context.Context, user, printerName string)
}

// Recorder receives every state transition the engine commits. Used for
// the sqlite transition log; failures are the recorder's problem.
type Recorder interface {
	Record(ctx context.Context, tr Transition)
}

// Metrics receives cycle-level observations.
type Metrics interface {
	CycleCompleted(d time.Duration)
	CycleFailed(stage Stage)
	WriteFailed(table string)
	SlotStatus(printerName string, status sheet.SlotStatus)
	Transition(kind, to string)
}

// Transition is one committed state change, stamped with the cycle it
// happened in.
type Transition struct {
	Cycle  int64
	Kind   string // "printer" or "reservation"
	Key    string // printer name, or booking row key
	From   string
	To     string
	Detail string
	At     time.Time
}

// Transition kinds.
const (
	KindPrinter     = "printer"
	KindReservation = "reservation"
)

// Config holds the engine's policy constants.
type Config struct {
	Cadence         time.Duration // cycle period, measured from cycle start
	GraceWindow     time.Duration // confirmation eligibility and staleness threshold
	BookingDuration time.Duration // length of one booking
	OpeningHour     int           // bookings never start before this hour
	ClosingHour     int           // bookings never start at or after this hour
	OvernightPush   time.Duration // added when a booking would straddle closing
	TempCeiling     float64       // tool target temperature ceiling for non-staff
	Capability      string        // capability a requester must hold to print
	DeviceCount     int           // expected number of device slots
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		Cadence:         10 * time.Second,
		GraceWindow:     10 * time.Minute,
		BookingDuration: 4 * time.Hour,
		OpeningHour:     12,
		ClosingHour:     21,
		OvernightPush:   15 * time.Hour,
		TempCeiling:     250,
		Capability:      "3d-printing",
	}
}

// Deps are the engine's injected collaborators. Notifier, Recorder,
// Metrics, and Clock may be nil; no-op or system defaults are used.
type Deps struct {
	Accessor  Accessor
	Telemetry Telemetry
	Oracle    Oracle
	Notifier  Notifier
	Recorder  Recorder
	Metrics   Metrics
	Clock     Clock
}

// waitEntry is one requester awaiting a printer, keyed by booking row.
type waitEntry struct {
	user string
	row  int
}

// pendingBooked tracks observed activity on a Booked slot that no
// confirmation has claimed yet.
type pendingBooked struct {
	user     string
	row      int
	observed time.Time
}

// Engine owns all session-local state and all decision logic. Construct
// once at startup; state lives only for the process lifetime.
type Engine struct {
	cfg     Config
	acc     Accessor
	tel     Telemetry
	oracle  Oracle
	notify  Notifier
	rec     Recorder
	metrics Metrics
	clock   Clock

	waitQueue []waitEntry
	active    map[string]int // requester -> their current booking row

	pendingUnconfirmed map[int]time.Time     // slot index -> observed start
	pendingBookedPrint map[int]pendingBooked // slot index -> claim

	lowWater int   // first booking row that may still be active
	cycleSeq int64 // increments every attempted cycle
}

// New constructs an engine. Deps.Accessor, Deps.Telemetry, and Deps.Oracle
// are required; the rest default to no-ops and the system clock.
func New(cfg Config, deps Deps) *Engine {
	e := &Engine{
		cfg:                cfg,
		acc:                deps.Accessor,
		tel:                deps.Telemetry,
		oracle:             deps.Oracle,
		notify:             deps.Notifier,
		rec:                deps.Recorder,
		metrics:            deps.Metrics,
		clock:              deps.Clock,
		active:             make(map[string]int),
		pendingUnconfirmed: make(map[int]time.Time),
		pendingBookedPrint: make(map[int]pendingBooked),
	}
	if e.notify == nil {
		e.notify = NopNotifier{}
	}
	if e.rec == nil {
		e.rec = NopRecorder{}
	}
	if e.metrics == nil {
		e.metrics = NopMetrics{}
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	return e
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) UserWaiting(context.Context, string, int) {}
func (NopNotifier) PrinterBooked(context.Context, string, string, time.Time, time.Time) {}
func (NopNotifier) PrintCancelled(context.Context, string, string, string) {}
func (NopNotifier) PrintComplete(context.Context, string, string) {}

// NopRecorder discards all transitions.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Transition) {}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) CycleCompleted(time.Duration) {}
func (NopMetrics) CycleFailed(Stage) {}
func (NopMetrics) WriteFailed(string) {}
func (NopMetrics) SlotStatus(string, sheet.SlotStatus) {}
func (NopMetrics) Transition(string, string) {}

// inWaitQueue reports whether the requester is already queued.
func (e *Engine) inWaitQueue(user string) bool {
	for _, w := range e.waitQueue {
		if w.user == user {
			return true
		}
	}
	return false
}

// dropFromWaitQueue removes every queued entry for the requester.
func (e *Engine) dropFromWaitQueue(user string) {
	kept := e.waitQueue[:0]
	for _, w := range e.waitQueue {
		if w.user != user {
			kept = append(kept, w)
		}
	}
	e.waitQueue = kept
}

// setSlotStatus commits a slot status change, recording the transition.
func (e *Engine) setSlotStatus(ctx context.Context, slot *sheet.DeviceSlot, to sheet.SlotStatus, detail string) {
	from := slot.Status
	if from == to {
		return
	}
	slot.Status = to
	e.commit(ctx, Transition{
		Cycle:  e.cycleSeq,
		Kind:   KindPrinter,
		Key:    slot.Name,
		From:   from.String(),
		To:     to.String(),
		Detail: detail,
		At:     e.clock.Now(),
	})
}

// setReservationStatus commits a reservation status change, recording the
// transition.
func (e *Engine) setReservationStatus(ctx context.Context, r *sheet.Reservation, to sheet.ReservationStatus, detail string) {
	from := r.Status
	if from == to {
		return
	}
	r.Status = to
	e.commit(ctx, Transition{
		Cycle:  e.cycleSeq,
		Kind:   KindReservation,
		Key:    reservationKey(r),
		From:   from.String(),
		To:     to.String(),
		Detail: detail,
		At:     e.clock.Now(),
	})
}

func (e *Engine) commit(ctx context.Context, tr Transition) {
	slog.Info("transition",
		"cycle", tr.Cycle,
		"kind", tr.Kind,
		"key", tr.Key,
		"from", tr.From,
		"to", tr.To,
		"detail", tr.Detail,
	)
	e.rec.Record(ctx, tr)
	e.metrics.Transition(tr.Kind, tr.To)
}

func reservationKey(r *sheet.Reservation) string {
	return "row " + strconv.Itoa(r.Row) + " " + r.User
}
