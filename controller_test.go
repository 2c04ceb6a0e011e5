package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"otterly/capture"
	"otterly/config"
	"otterly/keybus"
	"otterly/notify"
	"otterly/scanner"
	"otterly/trigger"
)

func TestMain(m *testing.M) {
	notify.Disable()
	os.Exit(m.Run())
}

type fakeSurface struct {
	mu      sync.Mutex
	visible bool
	shows   [][]config.Shortcut
	hides   int
	status  []string
}

func (s *fakeSurface) Show(list []config.Shortcut) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
	s.shows = append(s.shows, list)
}

func (s *fakeSurface) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible {
		s.hides++
	}
	s.visible = false
}

func (s *fakeSurface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *fakeSurface) Status(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = append(s.status, text)
}

func (s *fakeSurface) showCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shows)
}

type fakeReplayer struct {
	mu  sync.Mutex
	got []string
}

func (r *fakeReplayer) Replay(c string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, c)
	return nil
}

type fakeSpawner struct {
	mu    sync.Mutex
	calls [][]string
}

func (s *fakeSpawner) Spawn(name string, args ...string) (*os.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string{name}, args...))
	return nil, nil
}

type fakeSink struct {
	hotkeys chan capture.Update
	scans   chan error
	monitor chan bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		hotkeys: make(chan capture.Update, 32),
		scans:   make(chan error, 4),
		monitor: make(chan bool, 4),
	}
}

func (s *fakeSink) HotkeyDetected(u capture.Update)           { s.hotkeys <- u }
func (s *fakeSink) ScanProgress(done, total int)              {}
func (s *fakeSink) ScanComplete(r *scanner.Report, err error) { s.scans <- err }
func (s *fakeSink) MonitoringChanged(on bool)                 { s.monitor <- on }

// takenRegistrar reports the listed combos as owned by another program.
type takenRegistrar struct {
	taken map[string]bool
}

func (r takenRegistrar) Available() error { return nil }

func (r takenRegistrar) Register(id int, mods scanner.Mod, key scanner.Key) error {
	if r.taken[scanner.ComboFor(mods, key)] {
		return scanner.ErrAlreadyRegistered
	}
	return nil
}

func (r takenRegistrar) Unregister(id int) error { return nil }

type rig struct {
	ctl     *Controller
	src     *keybus.FakeSource
	store   *config.Store
	surface *fakeSurface
	replay  *fakeReplayer
	spawn   *fakeSpawner
	sink    *fakeSink
}

func newRig(t *testing.T, trig trigger.Config, reg scanner.Registrar, shortcuts ...config.Shortcut) *rig {
	t.Helper()
	store, err := config.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(shortcuts) > 0 {
		if err := store.SaveShortcuts(shortcuts); err != nil {
			t.Fatal(err)
		}
	}
	r := &rig{
		src:     keybus.NewFake(),
		store:   store,
		surface: &fakeSurface{},
		replay:  &fakeReplayer{},
		spawn:   &fakeSpawner{},
		sink:    newFakeSink(),
	}
	r.ctl = NewController(ControllerConfig{
		Store:      store,
		Bus:        keybus.New(r.src),
		Sink:       r.sink,
		Replayer:   r.replay,
		Spawner:    r.spawn,
		Registrar:  reg,
		Trigger:    trig,
		FocusDelay: time.Millisecond,
	})
	r.ctl.SetSurface(r.surface)
	if err := r.ctl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.ctl.Stop)
	return r
}

func (r *rig) doubleTap(key string) {
	r.src.SimKeydown(key)
	r.src.SimKeyup(key)
	r.src.SimKeydown(key)
	r.src.SimKeyup(key)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func enabled(on bool) *bool { return &on }

func TestDoubleTapShowsEnabledShortcuts(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil,
		config.Shortcut{Name: "Copy", Combo: "Ctrl+C"},
		config.Shortcut{Name: "Off", Path: "true", Enabled: enabled(false)},
		config.Shortcut{Name: "Shell", Path: "echo hi"},
	)
	r.doubleTap("left shift")
	waitFor(t, "launcher", r.surface.Visible)

	r.surface.mu.Lock()
	list := r.surface.shows[0]
	r.surface.mu.Unlock()
	if len(list) != 2 || list[0].Name != "Copy" || list[1].Name != "Shell" {
		t.Errorf("shown = %+v", list)
	}

	r.doubleTap("shift")
	waitFor(t, "hide", func() bool { return !r.surface.Visible() })
}

func TestEscapeHidesVisibleLauncher(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil)
	r.src.SimKeydown("esc")
	r.src.SimKeyup("esc")

	r.doubleTap("shift")
	waitFor(t, "launcher", r.surface.Visible)
	r.src.SimKeydown("escape")
	waitFor(t, "hide", func() bool { return !r.surface.Visible() })
}

func TestSelectReplayHidesThenReplays(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil)
	r.surface.Show(nil)

	if err := r.ctl.Select(config.Shortcut{Name: "Copy", Combo: "ctrl+c"}); err != nil {
		t.Fatal(err)
	}
	if r.surface.Visible() {
		t.Error("launcher still visible after replay")
	}
	r.replay.mu.Lock()
	defer r.replay.mu.Unlock()
	if len(r.replay.got) != 1 || r.replay.got[0] != "Ctrl+C" {
		t.Errorf("replayed %v", r.replay.got)
	}
}

func TestSelectFailureKeepsLauncherWithStatus(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil)
	r.surface.Show(nil)

	err := r.ctl.Select(config.Shortcut{Name: "Tool", Path: "/nonexistent/tool.py"})
	if err == nil {
		t.Fatal("expected an error for a missing script")
	}
	if !r.surface.Visible() {
		t.Error("launcher hidden after a failed launch")
	}
	r.surface.mu.Lock()
	defer r.surface.mu.Unlock()
	if len(r.surface.status) != 1 {
		t.Errorf("status = %v", r.surface.status)
	}
	if len(r.spawn.calls) != 0 {
		t.Errorf("spawned %v", r.spawn.calls)
	}
}

func TestMonitoringReplacesTrigger(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil)

	if err := r.ctl.SetMonitoring(true); err != nil {
		t.Fatal(err)
	}
	if on := <-r.sink.monitor; !on {
		t.Fatal("MonitoringChanged(false) on start")
	}
	if !r.ctl.Monitoring() {
		t.Fatal("Monitoring() = false")
	}

	r.doubleTap("shift")
	r.src.SimChord("ctrl", "alt", "k")
	select {
	case u := <-r.sink.hotkeys:
		if u.Hotkey.Combo != "Ctrl+Alt+K" {
			t.Errorf("first capture = %s", u.Hotkey.Combo)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no capture update")
	}
	if r.surface.showCount() != 0 {
		t.Error("trigger fired while monitoring")
	}

	if err := r.ctl.SetMonitoring(false); err != nil {
		t.Fatal(err)
	}
	<-r.sink.monitor
	r.doubleTap("shift")
	waitFor(t, "launcher after monitoring", r.surface.Visible)
}

func TestAddSelectedPersists(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil)
	if err := r.ctl.SetMonitoring(true); err != nil {
		t.Fatal(err)
	}
	r.src.SimChord("ctrl", "shift", "r")
	waitFor(t, "capture", func() bool { return len(r.ctl.Capture().Hotkeys()) > 0 })

	if err := r.ctl.Capture().Select("Ctrl+Shift+R", true); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.Capture().Rename("Ctrl+Shift+R", "Reload"); err != nil {
		t.Fatal(err)
	}
	n, err := r.ctl.AddSelected()
	if err != nil || n != 1 {
		t.Fatalf("AddSelected = %d, %v", n, err)
	}

	reopened, err := config.Open(r.store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, sc := range reopened.Shortcuts() {
		if sc.Name == "Reload" && sc.Combo == "Ctrl+Shift+R" {
			found = true
		}
	}
	if !found {
		t.Errorf("shortcuts = %+v", reopened.Shortcuts())
	}
}

func TestScanSavesCache(t *testing.T) {
	reg := takenRegistrar{taken: map[string]bool{"Ctrl+Alt+Delete": true}}
	r := newRig(t, trigger.Config{}, reg)

	r.ctl.Scan()
	select {
	case err := <-r.sink.scans:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not finish")
	}

	cache, err := scanner.LoadCache(r.store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(cache.Hotkeys) != 1 || cache.Hotkeys[0] != "Ctrl+Alt+Delete" {
		t.Errorf("cached %v", cache.Hotkeys)
	}
}

func TestAddScannedUsesCacheNames(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil, config.Shortcut{Name: "Explorer", Path: "explorer"})
	cache := scanner.NewCache(r.store.Dir())
	cache.FromReport(&scanner.Report{Taken: []scanner.Taken{
		{Combo: "Shift+Win+S"}, {Combo: "Win+E"}, {Combo: "Ctrl+Alt+Delete"},
	}})
	cache.Rename("Shift+Win+S", "Snip")
	cache.Rename("Win+E", "Explorer")
	if err := cache.Save(); err != nil {
		t.Fatal(err)
	}

	n, err := r.ctl.AddScanned([]string{"Shift+Win+S", "Win+E", "Ctrl+Alt+Delete"})
	if err != nil {
		t.Fatal(err)
	}
	// "Explorer" is already configured.
	if n != 2 {
		t.Errorf("added %d, want 2", n)
	}
	reopened, err := config.Open(r.store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, sc := range reopened.Shortcuts() {
		got[sc.Name] = sc.ComboString()
	}
	if got["Snip"] != "Shift+Win+S" || got["Ctrl+Alt+Delete"] != "Ctrl+Alt+Delete" || got["Explorer"] != "" {
		t.Errorf("shortcuts = %v", got)
	}
}

func TestConcurrentMonitoringSwitches(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-r.sink.monitor:
			case <-stop:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(on bool) {
			defer wg.Done()
			if err := r.ctl.SetMonitoring(on); err != nil {
				t.Errorf("SetMonitoring(%v) = %v", on, err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	on := r.ctl.Monitoring()
	if r.ctl.Capture().Running() != on {
		t.Errorf("monitoring = %v but capture running = %v", on, r.ctl.Capture().Running())
	}
	if r.ctl.trig.Running() == on {
		t.Errorf("monitoring = %v but trigger running = %v", on, r.ctl.trig.Running())
	}
	if !r.src.Installed() {
		t.Error("no session left on the hook")
	}
}

func TestScanWithoutRegistrar(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil)
	r.ctl.Scan()
	if err := <-r.sink.scans; !errors.Is(err, scanner.ErrRegistrationUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestConfigChangedSwitchesTriggerKey(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil)
	if err := r.store.Set("ctrl", "trigger", "key"); err != nil {
		t.Fatal(err)
	}
	r.ctl.ConfigChanged()

	r.doubleTap("shift")
	time.Sleep(50 * time.Millisecond)
	if r.surface.showCount() != 0 {
		t.Fatal("old trigger key still active")
	}
	r.doubleTap("right ctrl")
	waitFor(t, "launcher on new key", r.surface.Visible)
}

func TestTriggerFlagIgnoresConfigChanges(t *testing.T) {
	r := newRig(t, trigger.Config{Key: "alt", Timeout: 300 * time.Millisecond}, nil)
	if err := r.store.Set("ctrl", "trigger", "key"); err != nil {
		t.Fatal(err)
	}
	r.ctl.ConfigChanged()

	r.doubleTap("alt")
	waitFor(t, "launcher on flag key", r.surface.Visible)
}

func TestOpenConfigUsesSpawner(t *testing.T) {
	r := newRig(t, trigger.Config{}, nil)
	if err := r.ctl.OpenConfig(); err != nil {
		t.Fatal(err)
	}
	r.spawn.mu.Lock()
	defer r.spawn.mu.Unlock()
	if len(r.spawn.calls) != 1 {
		t.Fatalf("calls = %v", r.spawn.calls)
	}
	call := r.spawn.calls[0]
	if call[len(call)-1] != r.store.Path() {
		t.Errorf("opened %v, want %s", call, r.store.Path())
	}
}
