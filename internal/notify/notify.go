// Package notify delivers decision-point notifications to requesters.
// The engine fires these and moves on; every implementation here
// returns promptly and handles its own failures.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// A Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier formats engine events into messages and hands them to a
// Sender in the background. Failed sends are logged and dropped.
type Notifier struct {
	sender Sender
	log    *slog.Logger
}

// New builds a Notifier around a Sender.
func New(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, log: logger}
}

// UserWaiting tells a requester their position in the wait queue.
func (n *Notifier) UserWaiting(ctx context.Context, user string, position int) {
	n.send(user, "You are in the printer queue",
		fmt.Sprintf("You are number %d in the queue. You will get another email when a printer is booked for you.", position))
}

// PrinterBooked tells a requester a printer is held for them.
func (n *Notifier) PrinterBooked(ctx context.Context, user, printerName string, start, end time.Time) {
	n.send(user, fmt.Sprintf("%s is booked for you", printerName),
		fmt.Sprintf("%s is reserved for you from %s to %s. Start your print within 10 minutes of the start time or the booking will be released.",
			printerName, start.Format(sheet.SheetTimeFormat), end.Format(sheet.SheetTimeFormat)))
}

// PrintCancelled tells a requester their print was cancelled and why.
func (n *Notifier) PrintCancelled(ctx context.Context, user, printerName, reason string) {
	n.send(user, fmt.Sprintf("Your print on %s was cancelled", printerName),
		fmt.Sprintf("Your print on %s was cancelled: %s. Please see staff if you believe this is an error.", printerName, reason))
}

// PrintComplete tells a requester their print finished.
func (n *Notifier) PrintComplete(ctx context.Context, user, printerName string) {
	n.send(user, fmt.Sprintf("Your print on %s is done", printerName),
		fmt.Sprintf("Your print on %s has finished. Please pick it up and clear the bed for the next person.", printerName))
}

// send dispatches in the background so the engine's cycle never blocks
// on mail delivery. Each send gets its own deadline.
func (n *Notifier) send(to, subject, body string) {
	if to == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := n.sender.Send(ctx, to, subject, body); err != nil {
			n.log.Error("notification send failed",
				"to", to, "subject", subject, "error", err)
		} else {
			n.log.Info("notification sent", "to", to, "subject", subject)
		}
	}()
}
