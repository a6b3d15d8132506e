// Package printer maintains one MQTT session per Bambu printer and caches
// each device's last-known report fields for non-blocking reads.
//
// The wire protocol is the printer's own: TLS MQTT on port 8883, user
// "bblp" with the per-device access code, reports pushed on
// device/<serial>/report as partial JSON payloads. The session asks for a
// full state push on every (re)connect so the cache converges quickly.
package printer

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Config identifies one printer on the network.
type Config struct {
	Name         string
	Hostname     string
	AccessCode   string
	SerialNumber string
}

const (
	mqttPort       = 8883
	connectTimeout = 10 * time.Second
)

// Client is one printer's telemetry session. The cached report is updated
// by the MQTT client's goroutines; readers get a copy under RLock.
type Client struct {
	cfg  Config
	conn mqtt.Client

	mu     sync.RWMutex
	report Report
}

// Dial starts a session to one printer. The connection retries in the
// background; Dial only fails on configuration errors, keeping one dead
// printer from blocking the whole fleet at startup.
func Dial(cfg Config) (*Client, error) {
	if cfg.Hostname == "" || cfg.AccessCode == "" || cfg.SerialNumber == "" {
		return nil, fmt.Errorf("printer %q: hostname, access code, and serial number are required", cfg.Name)
	}

	c := &Client{cfg: cfg}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tls://%s:%d", cfg.Hostname, mqttPort)).
		SetClientID("bambu-automations-" + uuid.NewString()).
		SetUsername("bblp").
		SetPassword(cfg.AccessCode).
		// The printer presents a self-signed certificate.
		SetTLSConfig(&tls.Config{InsecureSkipVerify: true}).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("printer session lost", "printer", cfg.Name, "error", err)
		})

	c.conn = mqtt.NewClient(opts)
	if token := c.conn.Connect(); token.WaitTimeout(connectTimeout) && token.Error() != nil {
		slog.Warn("printer connect pending", "printer", cfg.Name, "error", token.Error())
	}
	return c, nil
}

func (c *Client) onConnect(conn mqtt.Client) {
	slog.Info("printer session established", "printer", c.cfg.Name)
	topic := fmt.Sprintf("device/%s/report", c.cfg.SerialNumber)
	if token := conn.Subscribe(topic, 0, c.onReport); token.Wait() && token.Error() != nil {
		slog.Error("printer subscribe failed", "printer", c.cfg.Name, "error", token.Error())
		return
	}
	// Ask for a full state push; subsequent messages are diffs.
	request := fmt.Sprintf("device/%s/request", c.cfg.SerialNumber)
	payload := `{"pushing": {"sequence_id": "0", "command": "pushall"}}`
	conn.Publish(request, 0, false, payload)
}

func (c *Client) onReport(_ mqtt.Client, msg mqtt.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.report.apply(msg.Payload(), time.Now()); err != nil {
		slog.Warn("bad report message", "printer", c.cfg.Name, "error", err)
	}
}

// Report returns the cached last-known fields. Never blocks.
func (c *Client) Report() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report
}

// Close tears down the session.
func (c *Client) Close() {
	c.conn.Disconnect(250)
}

// Manager holds the fleet's sessions in device slot order and implements
// the engine's Telemetry contract.
type Manager struct {
	clients []*Client
}

// NewManager dials every printer in the given order. The order must match
// the status table's row order so slot indexes line up.
func NewManager(configs []Config) (*Manager, error) {
	m := &Manager{clients: make([]*Client, 0, len(configs))}
	for _, cfg := range configs {
		c, err := Dial(cfg)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.clients = append(m.clients, c)
	}
	return m, nil
}

// Report returns the cached report for the given slot index. Out-of-range
// slots report as unknown.
func (m *Manager) Report(slot int) Report {
	if slot < 0 || slot >= len(m.clients) {
		return Report{}
	}
	return m.clients[slot].Report()
}

// Close closes every session.
func (m *Manager) Close() {
	for _, c := range m.clients {
		c.Close()
	}
}
