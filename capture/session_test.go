package capture

import (
	"errors"
	"testing"
	"time"

	"otterly/keybus"
)

type recorder struct {
	ch chan Update
}

func newRecorder() *recorder { return &recorder{ch: make(chan Update, 32)} }

func (r *recorder) notify(u Update) { r.ch <- u }

func (r *recorder) wait(t *testing.T) Update {
	t.Helper()
	select {
	case u := <-r.ch:
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for capture update")
	}
	return Update{}
}

func (r *recorder) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case u := <-r.ch:
		t.Fatalf("unexpected update %+v", u)
	case <-time.After(d):
	}
}

func startSession(t *testing.T) (*keybus.FakeSource, *Session, *recorder) {
	t.Helper()
	src := keybus.NewFake()
	rec := newRecorder()
	s := NewSession(keybus.New(src), rec.notify)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Stop() })
	return src, s, rec
}

func press(src *keybus.FakeSource, at time.Time, keys ...string) {
	for i, k := range keys {
		src.Emit(keybus.RawKeyEvent{Key: k, Direction: keybus.Down, Time: at.Add(time.Duration(i) * time.Millisecond)})
	}
	for i := len(keys) - 1; i >= 0; i-- {
		src.Emit(keybus.RawKeyEvent{Key: keys[i], Direction: keybus.Up, Time: at.Add(time.Duration(20+len(keys)-i) * time.Millisecond)})
	}
}

func TestChordDetectedOnRelease(t *testing.T) {
	src, s, rec := startSession(t)

	press(src, time.Now(), "left ctrl", "left shift", "r")

	u := rec.wait(t)
	if u.Hotkey.Combo != "Ctrl+Shift+R" || !u.New || u.Hotkey.Count != 1 {
		t.Errorf("first update = %+v", u)
	}
	if u.Hotkey.DisplayName != "Ctrl+Shift+R" {
		t.Errorf("DisplayName = %q, want the combo", u.Hotkey.DisplayName)
	}
	// Letting go of shift then ctrl leaves modifier-only sets.
	rec.none(t, 50*time.Millisecond)
	if rows := s.Hotkeys(); len(rows) != 1 {
		t.Errorf("rows = %+v", rows)
	}

	if s.ID() == "" {
		t.Error("session id not assigned")
	}
}

func TestSingleKeysNeverEmit(t *testing.T) {
	src, s, rec := startSession(t)
	now := time.Now()
	press(src, now, "a")
	press(src, now.Add(time.Second), "left shift")
	press(src, now.Add(2*time.Second), "space")
	rec.none(t, 100*time.Millisecond)
	if len(s.Hotkeys()) != 0 {
		t.Errorf("rows = %+v", s.Hotkeys())
	}
}

func TestBothCtrlKeysIsNotACombo(t *testing.T) {
	src, _, rec := startSession(t)
	press(src, time.Now(), "left ctrl", "right ctrl")
	rec.none(t, 100*time.Millisecond)
}

func TestRepeatWithinWindowCountsOnce(t *testing.T) {
	src, s, rec := startSession(t)
	now := time.Now()
	press(src, now, "left alt", "x")
	press(src, now.Add(100*time.Millisecond), "left alt", "x")

	u := rec.wait(t)
	if u.Hotkey.Combo != "Alt+X" {
		t.Fatalf("update = %+v", u)
	}
	rec.none(t, 100*time.Millisecond)

	rows := s.Hotkeys()
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Count != 2 {
		t.Errorf("Count = %d, want 2", rows[0].Count)
	}
	if st := s.Stats(); st.Suppressed != 1 || st.Detected != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRepeatAfterWindowNotifiesAgain(t *testing.T) {
	src, s, rec := startSession(t)
	now := time.Now()
	press(src, now, "left alt", "x")
	press(src, now.Add(700*time.Millisecond), "left alt", "x")

	first := rec.wait(t)
	second := rec.wait(t)
	if !first.New || second.New {
		t.Errorf("New flags = %v, %v", first.New, second.New)
	}
	if second.Hotkey.Count != 2 {
		t.Errorf("Count = %d", second.Hotkey.Count)
	}
	if len(s.Hotkeys()) != 1 {
		t.Errorf("rows = %d", len(s.Hotkeys()))
	}
}

func TestReleaseWithoutPressStillCounts(t *testing.T) {
	src, s, rec := startSession(t)
	now := time.Now()
	src.Emit(keybus.RawKeyEvent{Key: "left ctrl", Direction: keybus.Down, Time: now})
	src.Emit(keybus.RawKeyEvent{Key: "c", Direction: keybus.Up, Time: now.Add(5 * time.Millisecond)})
	if u := rec.wait(t); u.Hotkey.Combo != "Ctrl+C" {
		t.Errorf("update = %+v", u)
	}
	if st := s.Stats(); st.Unmatched != 1 {
		t.Errorf("Unmatched = %d", st.Unmatched)
	}
}

func TestModifierOnlyAndKeyOnlySetsIgnored(t *testing.T) {
	src, s, rec := startSession(t)
	now := time.Now()
	press(src, now, "left ctrl", "left shift")
	press(src, now.Add(time.Second), "a", "b")
	rec.none(t, 100*time.Millisecond)
	if len(s.Hotkeys()) != 0 {
		t.Errorf("rows = %+v", s.Hotkeys())
	}
}

func TestInjectedInputIgnored(t *testing.T) {
	src, _, rec := startSession(t)
	now := time.Now()
	for _, ev := range []keybus.RawKeyEvent{
		{Key: "left ctrl", Direction: keybus.Down, Time: now, Injected: true},
		{Key: "v", Direction: keybus.Down, Time: now, Injected: true},
		{Key: "v", Direction: keybus.Up, Time: now, Injected: true},
		{Key: "left ctrl", Direction: keybus.Up, Time: now, Injected: true},
	} {
		src.Emit(ev)
	}
	rec.none(t, 100*time.Millisecond)
}

func TestSelectRenameAndExport(t *testing.T) {
	src, s, rec := startSession(t)
	now := time.Now()
	press(src, now, "left win", "left shift", "s")
	rec.wait(t)

	if err := s.Select("Shift+Win+S", true); err != nil {
		t.Fatal(err)
	}
	if err := s.Rename("Shift+Win+S", "Snip"); err != nil {
		t.Fatal(err)
	}
	if err := s.Select("Ctrl+Q", true); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("Select unknown = %v", err)
	}

	got := s.Selected()
	if len(got) != 1 || got[0].Name != "Snip" || got[0].Combo != "Shift+Win+S" {
		t.Errorf("Selected() = %+v", got)
	}

	s.Rename("Shift+Win+S", "")
	if got := s.Selected(); got[0].Name != "Shift+Win+S" {
		t.Errorf("empty display name should fall back to combo, got %q", got[0].Name)
	}
	if rows := s.Hotkeys(); rows[0].DisplayName != "Shift+Win+S" {
		t.Errorf("DisplayName after clearing = %q", rows[0].DisplayName)
	}

	s.Clear()
	if len(s.Hotkeys()) != 0 || len(s.Selected()) != 0 {
		t.Error("Clear left rows behind")
	}
}

func TestStopDropsQueuedAndUnhooks(t *testing.T) {
	src := keybus.NewFake()
	rec := newRecorder()
	s := NewSession(keybus.New(src), rec.notify)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); !errors.Is(err, ErrRunning) {
		t.Errorf("second Start = %v", err)
	}
	firstID := s.ID()
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if src.Installed() {
		t.Error("hook still installed")
	}
	press(src, time.Now(), "left ctrl", "k")
	rec.none(t, 50*time.Millisecond)

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if s.ID() == firstID {
		t.Error("restart should use a new session id")
	}
}

func TestStartHookUnavailable(t *testing.T) {
	src := keybus.NewFake()
	src.StartErr = errors.New("denied")
	s := NewSession(keybus.New(src), nil)
	err := s.Start()
	if !errors.Is(err, keybus.ErrHookUnavailable) {
		t.Fatalf("Start = %v", err)
	}
	if s.Running() {
		t.Error("session reports running after failed start")
	}
}
