// Package auth answers authorization questions about requester
// identities. The directory of record is external; this package ships a
// roster-file implementation so the daemon runs end to end.
package auth

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Roster is a file-backed authorization oracle: a staff list plus
// capability grants. The file is re-read whenever its modification time
// changes, so a roster edit takes effect on the next lookup without a
// restart; a bad edit keeps the last good roster. Lookups are
// case-insensitive on identity.
type Roster struct {
	path string

	mu      sync.RWMutex
	modTime time.Time
	staff   map[string]bool
	grants  map[string]map[string]bool // capability -> identity set
}

type rosterFile struct {
	Staff        []string            `yaml:"staff"`
	Capabilities map[string][]string `yaml:"capabilities"`
}

// LoadRoster reads and parses a roster YAML file. Unknown fields are
// rejected so a typo does not silently grant nothing.
func LoadRoster(path string) (*Roster, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat roster: %w", err)
	}
	staff, grants, err := parseRoster(path)
	if err != nil {
		return nil, err
	}
	return &Roster{
		path:    path,
		modTime: info.ModTime(),
		staff:   staff,
		grants:  grants,
	}, nil
}

// IsStaff reports whether the identity is on the staff list.
func (r *Roster) IsStaff(identity string) bool {
	r.refresh()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.staff[normalize(identity)]
}

// HasCapability reports whether the identity holds the named capability.
func (r *Roster) HasCapability(capability, identity string) bool {
	r.refresh()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grants[capability][normalize(identity)]
}

// refresh reloads the roster file when its modification time has moved.
// A file that no longer stats or parses leaves the last good roster in
// place; the failed modification time is still recorded so a broken edit
// is warned about once, not on every lookup.
func (r *Roster) refresh() {
	info, err := os.Stat(r.path)
	if err != nil {
		slog.Warn("roster file unreadable, keeping last good roster",
			"path", r.path, "error", err)
		return
	}

	r.mu.RLock()
	unchanged := info.ModTime().Equal(r.modTime)
	r.mu.RUnlock()
	if unchanged {
		return
	}

	staff, grants, err := parseRoster(r.path)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.modTime = info.ModTime()
	if err != nil {
		slog.Warn("roster reload failed, keeping last good roster",
			"path", r.path, "error", err)
		return
	}
	r.staff = staff
	r.grants = grants
	slog.Info("roster reloaded", "path", r.path,
		"staff", len(staff), "capabilities", len(grants))
}

func parseRoster(path string) (map[string]bool, map[string]map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read roster: %w", err)
	}

	var file rosterFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, nil, fmt.Errorf("parse roster: %w", err)
	}

	staff := make(map[string]bool, len(file.Staff))
	for _, id := range file.Staff {
		staff[normalize(id)] = true
	}
	grants := make(map[string]map[string]bool, len(file.Capabilities))
	for capability, ids := range file.Capabilities {
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[normalize(id)] = true
		}
		grants[capability] = set
	}
	return staff, grants, nil
}

func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
