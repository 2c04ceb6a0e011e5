package keybus

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu  sync.Mutex
	got []RawKeyEvent
	ch  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 64)}
}

func (r *recorder) listen(ev RawKeyEvent) {
	r.mu.Lock()
	r.got = append(r.got, ev)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) []RawKeyEvent {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RawKeyEvent(nil), r.got...)
}

func TestBusDeliversInOrderToAllListeners(t *testing.T) {
	src := NewFake()
	bus := New(src)

	a, b := newRecorder(), newRecorder()
	ha, err := bus.Subscribe(a.listen)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := bus.Subscribe(b.listen)
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Unsubscribe(ha)
	defer bus.Unsubscribe(hb)

	keys := []string{"left ctrl", "shift", "r"}
	src.SimChord(keys...)

	want := []string{"left ctrl", "shift", "r", "r", "shift", "left ctrl"}
	for name, r := range map[string]*recorder{"a": a, "b": b} {
		got := r.wait(t, len(want))
		for i, ev := range got {
			if ev.Key != want[i] {
				t.Errorf("listener %s event %d = %q, want %q", name, i, ev.Key, want[i])
			}
			wantDir := Down
			if i >= 3 {
				wantDir = Up
			}
			if ev.Direction != wantDir {
				t.Errorf("listener %s event %d direction = %v, want %v", name, i, ev.Direction, wantDir)
			}
		}
	}
}

func TestBusInstallsHookOnceAndRemovesOnLastUnsubscribe(t *testing.T) {
	src := NewFake()
	bus := New(src)

	h1, err := bus.Subscribe(func(RawKeyEvent) {})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := bus.Subscribe(func(RawKeyEvent) {})
	if err != nil {
		t.Fatal(err)
	}
	if starts, _ := src.Counts(); starts != 1 {
		t.Fatalf("hook installed %d times, want 1", starts)
	}

	if err := bus.Unsubscribe(h1); err != nil {
		t.Fatal(err)
	}
	if !src.Installed() {
		t.Fatal("hook removed while a subscriber remains")
	}
	if err := bus.Unsubscribe(h2); err != nil {
		t.Fatal(err)
	}
	if src.Installed() || bus.Active() {
		t.Fatal("hook still installed after last unsubscribe")
	}

	// resubscribe installs a fresh hook
	h3, err := bus.Subscribe(func(RawKeyEvent) {})
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Unsubscribe(h3)
	if starts, stops := src.Counts(); starts != 2 || stops != 1 {
		t.Errorf("starts=%d stops=%d, want 2/1", starts, stops)
	}
}

func TestBusHookUnavailable(t *testing.T) {
	src := NewFake()
	src.StartErr = errors.New("access denied")
	bus := New(src)

	_, err := bus.Subscribe(func(RawKeyEvent) {})
	if !errors.Is(err, ErrHookUnavailable) {
		t.Fatalf("got %v, want ErrHookUnavailable", err)
	}
	if bus.Active() {
		t.Error("bus should not be active after failed install")
	}
}

func TestBusNoDeliveryAfterUnsubscribe(t *testing.T) {
	src := NewFake()
	bus := New(src)

	r := newRecorder()
	h, err := bus.Subscribe(r.listen)
	if err != nil {
		t.Fatal(err)
	}
	src.SimKeydown("a")
	r.wait(t, 1)

	if err := bus.Unsubscribe(h); err != nil {
		t.Fatal(err)
	}
	src.SimKeydown("b")

	select {
	case <-r.ch:
		t.Fatal("event delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusListenerPanicDoesNotStopDelivery(t *testing.T) {
	src := NewFake()
	bus := New(src)

	h1, err := bus.Subscribe(func(RawKeyEvent) { panic("boom") })
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Unsubscribe(h1)
	r := newRecorder()
	h2, err := bus.Subscribe(r.listen)
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Unsubscribe(h2)

	src.SimKeydown("a")
	src.SimKeydown("b")
	if got := r.wait(t, 2); got[1].Key != "b" {
		t.Errorf("second event = %q, want b", got[1].Key)
	}
}

func TestVKName(t *testing.T) {
	tests := map[uint32]string{
		'A':  "a",
		'7':  "7",
		0x70: "f1",
		0x87: "f24",
		0xA0: "left shift",
		0xA3: "right ctrl",
		0x1B: "esc",
		0xFF: "vk 0xff",
	}
	for vk, want := range tests {
		if got := VKName(vk); got != want {
			t.Errorf("VKName(0x%02x) = %q, want %q", vk, got, want)
		}
	}
}
