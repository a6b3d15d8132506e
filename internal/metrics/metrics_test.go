package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucscslugworks/bambu-printer-automations/internal/engine"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollectorExposesObservations(t *testing.T) {
	c := NewCollector()

	c.CycleCompleted(120 * time.Millisecond)
	c.CycleCompleted(80 * time.Millisecond)
	c.CycleFailed(engine.StageRead)
	c.WriteFailed(sheet.TableBooking)
	c.Transition(engine.KindPrinter, "Booked")
	c.SlotStatus("Alpha", sheet.SlotPrinting)

	body := scrape(t, c)
	assert.Contains(t, body, "reconciler_cycles_completed_total 2")
	assert.Contains(t, body, `reconciler_cycles_failed_total{stage="read"} 1`)
	assert.Contains(t, body, `reconciler_writes_failed_total{table="Booking"} 1`)
	assert.Contains(t, body, `reconciler_transitions_total{kind="printer",to="Booked"} 1`)
	assert.Contains(t, body, `reconciler_slot_status{printer="Alpha"} 3`)
}

func TestCollectorsAreIndependent(t *testing.T) {
	// Each collector owns its registry; constructing two must not panic
	// on duplicate registration.
	a := NewCollector()
	b := NewCollector()

	a.CycleCompleted(time.Millisecond)

	assert.Contains(t, scrape(t, a), "reconciler_cycles_completed_total 1")
	assert.Contains(t, scrape(t, b), "reconciler_cycles_completed_total 0")
}
