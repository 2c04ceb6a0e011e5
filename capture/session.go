// Package capture records the key combinations a user presses while a
// monitoring session is open.
//
// A combination is recognized on release: when a key goes up, the keys
// still held plus the released key form the candidate. A candidate needs
// a modifier and a regular key. Repeats of the same combination within DebounceWindow still add
// to its count but do not notify the UI again.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"otterly/combo"
	"otterly/config"
	"otterly/keybus"
	"otterly/log"
)

const DebounceWindow = 500 * time.Millisecond

var (
	ErrRunning     = errors.New("capture session already running")
	ErrUnknownItem = errors.New("no such captured hotkey")
)

// DetectedHotkey is one row of the monitoring list.
type DetectedHotkey struct {
	Combo       string
	Count       int
	Selected    bool
	DisplayName string
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Update is passed to the notify callback. New is true the first time a
// combination is seen in this session.
type Update struct {
	Hotkey DetectedHotkey
	New    bool
}

type Stats struct {
	Detected   int
	Suppressed int
	// Unmatched counts releases of keys that were never seen going down.
	// They still form a candidate with whatever is held.
	Unmatched int
}

type Session struct {
	bus    *keybus.Bus
	notify func(Update)

	mu      sync.Mutex
	rows    map[string]*DetectedHotkey
	order   []string
	stats   Stats
	id      string
	handle  keybus.Handle
	in      chan queued
	stop    chan struct{}
	done    chan struct{}
	running bool

	gen    atomic.Uint64
	active atomic.Bool

	// owned by the consumer goroutine
	held         map[string]struct{}
	lastCombo    string
	lastNotified time.Time
}

type queued struct {
	gen uint64
	ev  keybus.RawKeyEvent
}

// NewSession returns an idle session. notify is called from the session's
// goroutine and must hand the update off rather than block.
func NewSession(bus *keybus.Bus, notify func(Update)) *Session {
	return &Session{
		bus:    bus,
		notify: notify,
		rows:   make(map[string]*DetectedHotkey),
	}
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start clears nothing: rows from an earlier run stay until Clear.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}

	gen := s.gen.Add(1)
	in := make(chan queued, 128)
	stop := make(chan struct{})
	done := make(chan struct{})

	s.active.Store(true)
	h, err := s.bus.Subscribe(func(ev keybus.RawKeyEvent) {
		if !s.active.Load() {
			return
		}
		select {
		case in <- queued{gen: gen, ev: ev}:
		default:
			log.Warn("capture queue full, dropping key event")
		}
	})
	if err != nil {
		s.active.Store(false)
		return fmt.Errorf("start capture: %w", err)
	}

	s.id = uuid.NewString()
	s.handle, s.in, s.stop, s.done = h, in, stop, done
	s.held = make(map[string]struct{})
	s.lastCombo = ""
	s.lastNotified = time.Time{}
	s.running = true
	go s.consume(in, stop, done)
	log.SessionStart("capture", s.id)
	return nil
}

// Stop unsubscribes and waits for the consumer to exit. Deliveries that
// were already queued are dropped.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.active.Store(false)
	s.gen.Add(1)
	err := s.bus.Unsubscribe(s.handle)
	stop, done := s.stop, s.done
	s.running = false
	s.in, s.stop, s.done = nil, nil, nil
	id, count := s.id, len(s.rows)
	s.mu.Unlock()

	close(stop)
	<-done
	log.SessionEnd("capture", id, count)
	return err
}

// Close stops the session if it is running.
func (s *Session) Close() error { return s.Stop() }

func (s *Session) consume(in <-chan queued, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case q := <-in:
			if q.gen != s.gen.Load() {
				continue
			}
			s.onKey(q.ev)
		}
	}
}

func (s *Session) onKey(ev keybus.RawKeyEvent) {
	if ev.Injected {
		return
	}
	if ev.Direction == keybus.Down {
		s.held[ev.Key] = struct{}{}
		return
	}

	if _, ok := s.held[ev.Key]; !ok {
		s.mu.Lock()
		s.stats.Unmatched++
		s.mu.Unlock()
	}
	delete(s.held, ev.Key)
	candidate := make([]string, 0, len(s.held)+1)
	candidate = append(candidate, ev.Key)
	for k := range s.held {
		candidate = append(candidate, k)
	}
	if !modifierAndKey(candidate) {
		return
	}
	c, err := combo.Normalize(candidate)
	if err != nil {
		return
	}
	s.record(c, ev.Time)
}

// modifierAndKey reports whether keys hold at least one modifier and one
// regular key. Modifier-only sets are what is left while a chord is being
// let go.
func modifierAndKey(keys []string) bool {
	var mod, key bool
	for _, k := range keys {
		if combo.IsModifier(k) {
			mod = true
		} else {
			key = true
		}
	}
	return mod && key
}

func (s *Session) record(c string, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	suppress := c == s.lastCombo && at.Sub(s.lastNotified) < DebounceWindow

	s.mu.Lock()
	row, seen := s.rows[c]
	if !seen {
		row = &DetectedHotkey{Combo: c, DisplayName: c, FirstSeen: at}
		s.rows[c] = row
		s.order = append(s.order, c)
	}
	row.Count++
	row.LastSeen = at
	s.stats.Detected++
	if suppress {
		s.stats.Suppressed++
	}
	snapshot := *row
	id := s.id
	s.mu.Unlock()

	if suppress {
		return
	}
	s.lastCombo = c
	s.lastNotified = at
	log.HotkeyDetected(id, c, snapshot.Count)
	if s.notify != nil {
		s.notify(Update{Hotkey: snapshot, New: !seen})
	}
}

// Hotkeys returns the rows in first-detected order.
func (s *Session) Hotkeys() []DetectedHotkey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DetectedHotkey, 0, len(s.order))
	for _, c := range s.order {
		out = append(out, *s.rows[c])
	}
	return out
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) Select(c string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[c]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, c)
	}
	row.Selected = selected
	return nil
}

// Rename sets the name used when the row is added to the launcher. An
// empty name reverts to the combination itself.
func (s *Session) Rename(c, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[c]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, c)
	}
	if name == "" {
		name = c
	}
	row.DisplayName = name
	return nil
}

// Clear drops all rows.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]*DetectedHotkey)
	s.order = nil
	s.stats = Stats{}
}

// Selected converts the selected rows into launcher shortcuts.
func (s *Session) Selected() []config.Shortcut {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []config.Shortcut
	for _, c := range s.order {
		row := s.rows[c]
		if !row.Selected {
			continue
		}
		out = append(out, config.Shortcut{Name: row.DisplayName, Combo: row.Combo})
	}
	return out
}
