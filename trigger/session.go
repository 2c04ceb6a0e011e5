package trigger

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"otterly/keybus"
	"otterly/log"
)

var ErrRunning = errors.New("trigger session already running")

type Config struct {
	Key     string
	Timeout time.Duration
}

// Session runs a Machine against a keybus.Bus. Hook deliveries are handed
// to a single consumer goroutine that owns the machine; detected events
// go to exactly one subscriber through Events.
type Session struct {
	bus     *keybus.Bus
	machine *Machine
	events  chan Event

	mu      sync.Mutex
	handle  keybus.Handle
	in      chan keybus.RawKeyEvent
	stop    chan struct{}
	done    chan struct{}
	running bool

	active atomic.Bool
}

func NewSession(bus *keybus.Bus, cfg Config, visible func() bool) *Session {
	return &Session{
		bus:     bus,
		machine: NewMachine(cfg.Key, cfg.Timeout, visible),
		events:  make(chan Event, 8),
	}
}

// Events delivers DoubleTapDetected and EscapeRequested. The channel stays
// open across Stop/Start cycles.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start subscribes to the bus. It fails with keybus.ErrHookUnavailable if
// the hook cannot be installed.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}

	in := make(chan keybus.RawKeyEvent, 64)
	stop := make(chan struct{})
	done := make(chan struct{})

	s.active.Store(true)
	h, err := s.bus.Subscribe(func(ev keybus.RawKeyEvent) {
		if !s.active.Load() {
			return
		}
		select {
		case in <- ev:
		default:
			log.Warn("trigger queue full, dropping key event")
		}
	})
	if err != nil {
		s.active.Store(false)
		return err
	}

	s.machine.Reset()
	s.handle, s.in, s.stop, s.done = h, in, stop, done
	s.running = true
	go s.consume(in, stop, done)
	log.Info("trigger_session_start")
	return nil
}

// Reconfigure swaps the trigger key and window. A running session is
// restarted so the new machine starts from Idle.
func (s *Session) Reconfigure(cfg Config) error {
	running := s.Running()
	if running {
		if err := s.Stop(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.machine = NewMachine(cfg.Key, cfg.Timeout, s.machine.visible)
	s.mu.Unlock()
	if running {
		return s.Start()
	}
	return nil
}

// Stop unsubscribes and waits for the consumer goroutine to exit. Events
// still queued when Stop is called are discarded.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.active.Store(false)
	err := s.bus.Unsubscribe(s.handle)
	close(s.stop)
	<-s.done
	s.running = false
	s.in, s.stop, s.done = nil, nil, nil
	log.Info("trigger_session_stop")
	return err
}

func (s *Session) consume(in <-chan keybus.RawKeyEvent, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case ev := <-in:
			out, ok := s.machine.Handle(ev)
			if !ok {
				continue
			}
			if out.Kind == DoubleTapDetected {
				log.DoubleTap(ev.Key, out.Gap)
			}
			select {
			case s.events <- out:
			case <-stop:
				return
			}
		}
	}
}
