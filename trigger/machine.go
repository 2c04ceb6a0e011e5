// Package trigger detects the double-tap gesture that opens the launcher.
package trigger

import (
	"strings"
	"time"

	"otterly/combo"
	"otterly/keybus"
)

const DefaultTimeout = 300 * time.Millisecond

type State int

const (
	Idle State = iota
	ArmedAwaitingSecondTap
)

func (s State) String() string {
	if s == ArmedAwaitingSecondTap {
		return "armed"
	}
	return "idle"
}

type EventKind int

const (
	DoubleTapDetected EventKind = iota
	EscapeRequested
)

func (k EventKind) String() string {
	if k == EscapeRequested {
		return "escape_requested"
	}
	return "double_tap_detected"
}

type Event struct {
	Kind EventKind
	At   time.Time
	// Gap is the time between the two taps (DoubleTapDetected only).
	Gap time.Duration
}

// Machine is the double-tap state machine for one trigger key. It is not
// safe for concurrent use; Session confines it to one goroutine.
//
// A second tap exactly Timeout after the first still counts as a double
// tap: the window is inclusive.
type Machine struct {
	key     string
	timeout time.Duration
	visible func() bool

	state    State
	firstTap time.Time
	held     bool
}

// NewMachine builds a machine for key. visible reports whether the
// launcher surface is showing; Escape is only acted upon while it is.
func NewMachine(key string, timeout time.Duration, visible func() bool) *Machine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if visible == nil {
		visible = func() bool { return false }
	}
	return &Machine{key: key, timeout: timeout, visible: visible}
}

func (m *Machine) State() State { return m.state }

// Held reports whether the trigger key is currently considered down.
func (m *Machine) Held() bool { return m.held }

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.state = Idle
	m.firstTap = time.Time{}
	m.held = false
}

func isEscape(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	return k == "esc" || k == "escape"
}

// Handle feeds one key event and returns the event it produced, if any.
// Synthetic input is ignored so replayed combos never trigger the launcher.
func (m *Machine) Handle(ev keybus.RawKeyEvent) (Event, bool) {
	if ev.Injected {
		return Event{}, false
	}
	m.expire(ev.Time)

	if !combo.SameKey(ev.Key, m.key) {
		if ev.Direction == keybus.Down && isEscape(ev.Key) && m.visible() {
			return Event{Kind: EscapeRequested, At: ev.Time}, true
		}
		return Event{}, false
	}

	if ev.Direction == keybus.Up {
		m.held = false
		return Event{}, false
	}
	if m.held {
		// auto-repeat
		return Event{}, false
	}
	m.held = true

	if m.state == ArmedAwaitingSecondTap {
		gap := ev.Time.Sub(m.firstTap)
		if gap <= m.timeout {
			m.state = Idle
			m.firstTap = time.Time{}
			return Event{Kind: DoubleTapDetected, At: ev.Time, Gap: gap}, true
		}
	}
	m.state = ArmedAwaitingSecondTap
	m.firstTap = ev.Time
	return Event{}, false
}

// expire drops an armed window that has run out by now.
func (m *Machine) expire(now time.Time) {
	if m.state == ArmedAwaitingSecondTap && now.Sub(m.firstTap) > m.timeout {
		m.state = Idle
		m.firstTap = time.Time{}
	}
}
