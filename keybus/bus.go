// Package keybus fans out OS-wide keyboard events to in-process listeners.
//
// The OS hook callback only enqueues immutable RawKeyEvent values; a single
// drain goroutine delivers them to listeners in the order the OS produced
// them. Listeners run on that goroutine and must not block: anything that
// is not O(1) belongs on the listener's own goroutine.
package keybus

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"otterly/log"
)

// ErrHookUnavailable is returned when the OS keyboard hook cannot be
// installed. It is never retried automatically.
var ErrHookUnavailable = errors.New("keyboard hook unavailable")

type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// RawKeyEvent is one key transition as reported by the OS.
type RawKeyEvent struct {
	Key       string
	Direction Direction
	Time      time.Time
	// Injected is set for synthetic input (our own replays included).
	Injected bool
}

type Listener func(RawKeyEvent)

// Handle identifies a subscription.
type Handle uint64

// Source is an OS keyboard hook.
type Source interface {
	// Start installs the hook. emit is called from the hook context for
	// every key transition and must return quickly.
	Start(emit func(RawKeyEvent)) error
	// Stop removes the hook. After Stop returns no further emit calls
	// are made.
	Stop() error
}

const defaultQueueSize = 256

type subscriber struct {
	h  Handle
	fn Listener
}

// run is one installed-hook lifetime.
type run struct {
	queue chan RawKeyEvent
	done  chan struct{}
}

type Bus struct {
	src       Source
	queueSize int

	mu      sync.Mutex
	subs    []subscriber
	next    Handle
	current *run

	dropped atomic.Uint64
}

type Option func(*Bus)

// WithQueueSize sets the hand-off buffer between hook and drain goroutine.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

func New(src Source, opts ...Option) *Bus {
	b := &Bus{src: src, queueSize: defaultQueueSize}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers fn. The first subscription installs the OS hook.
func (b *Bus) Subscribe(fn Listener) (Handle, error) {
	if fn == nil {
		return 0, errors.New("keybus: nil listener")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		if err := b.startLocked(); err != nil {
			return 0, err
		}
	}
	b.next++
	h := b.next
	b.subs = append(b.subs, subscriber{h: h, fn: fn})
	return h, nil
}

// Unsubscribe removes a subscription. Removing the last one uninstalls
// the OS hook before returning. Unknown handles are ignored.
func (b *Bus) Unsubscribe(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i, s := range b.subs {
		if s.h == h {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	// copy so snapshots held by the drain goroutine stay valid
	subs := make([]subscriber, 0, len(b.subs)-1)
	subs = append(subs, b.subs[:idx]...)
	subs = append(subs, b.subs[idx+1:]...)
	b.subs = subs

	if len(b.subs) == 0 && b.current != nil {
		return b.stopLocked()
	}
	return nil
}

// Active reports whether the OS hook is installed.
func (b *Bus) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current != nil
}

// Dropped returns how many events were discarded because the hand-off
// queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) startLocked() error {
	r := &run{
		queue: make(chan RawKeyEvent, b.queueSize),
		done:  make(chan struct{}),
	}
	emit := func(ev RawKeyEvent) {
		select {
		case <-r.done:
			return
		default:
		}
		select {
		case r.queue <- ev:
		default:
			b.dropped.Add(1)
		}
	}
	if err := b.src.Start(emit); err != nil {
		if errors.Is(err, ErrHookUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrHookUnavailable, err)
	}
	b.current = r
	go b.drain(r)
	log.Info("keyboard_hook_installed")
	return nil
}

func (b *Bus) stopLocked() error {
	r := b.current
	b.current = nil
	err := b.src.Stop()
	close(r.done)
	if err != nil {
		log.Errorf("keyboard hook removal failed: %v", err)
		return fmt.Errorf("stop keyboard hook: %w", err)
	}
	log.Info("keyboard_hook_removed")
	return nil
}

func (b *Bus) drain(r *run) {
	for {
		select {
		case <-r.done:
			return
		case ev := <-r.queue:
			b.mu.Lock()
			subs := b.subs
			stale := b.current != r
			b.mu.Unlock()
			if stale {
				return
			}
			for _, s := range subs {
				deliver(s, ev)
			}
		}
	}
}

func deliver(s subscriber, ev RawKeyEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("key listener %d panicked: %v\n%s", s.h, r, debug.Stack())
		}
	}()
	s.fn(ev)
}
