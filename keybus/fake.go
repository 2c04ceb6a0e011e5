package keybus

import (
	"errors"
	"sync"
	"time"
)

// FakeSource is a Source driven by tests.
type FakeSource struct {
	mu       sync.Mutex
	emit     func(RawKeyEvent)
	StartErr error
	starts   int
	stops    int
}

func NewFake() *FakeSource { return &FakeSource{} }

func (f *FakeSource) Start(emit func(RawKeyEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	if f.emit != nil {
		return errors.New("fake hook already installed")
	}
	f.emit = emit
	f.starts++
	return nil
}

func (f *FakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emit = nil
	f.stops++
	return nil
}

// Installed reports whether the fake hook is currently installed.
func (f *FakeSource) Installed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emit != nil
}

// Counts returns how many times Start and Stop succeeded.
func (f *FakeSource) Counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

// Emit delivers ev as if the OS produced it. It is a no-op while the hook
// is not installed.
func (f *FakeSource) Emit(ev RawKeyEvent) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()
	if emit != nil {
		emit(ev)
	}
}

func (f *FakeSource) SimKeydown(key string) {
	f.Emit(RawKeyEvent{Key: key, Direction: Down, Time: time.Now()})
}

func (f *FakeSource) SimKeyup(key string) {
	f.Emit(RawKeyEvent{Key: key, Direction: Up, Time: time.Now()})
}

// SimChord presses each key in order, then releases them in
// reverse, the way a person types a shortcut.
func (f *FakeSource) SimChord(keys ...string) {
	for _, k := range keys {
		f.SimKeydown(k)
	}
	for i := len(keys) - 1; i >= 0; i-- {
		f.SimKeyup(keys[i])
	}
}
