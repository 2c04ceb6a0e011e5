package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"otterly/combo"
)

type regKey struct {
	mods Mod
	key  string
}

type fakeRegistrar struct {
	mu         sync.Mutex
	availErr   error
	taken      map[regKey]bool
	failKey    string
	panicKey   string
	unregFail  map[regKey]bool
	held       map[int]regKey
	registered int
	released   int
	block      chan struct{}
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		taken:     map[regKey]bool{},
		unregFail: map[regKey]bool{},
		held:      map[int]regKey{},
	}
}

func (f *fakeRegistrar) Available() error { return f.availErr }

func (f *fakeRegistrar) Register(id int, mods Mod, key Key) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := regKey{mods, key.Name}
	if key.Name == f.panicKey {
		panic("boom")
	}
	if key.Name == f.failKey {
		return errors.New("access denied")
	}
	if f.taken[pk] {
		return ErrAlreadyRegistered
	}
	if _, busy := f.held[id]; busy {
		return errors.New("id in use")
	}
	f.held[id] = pk
	f.registered++
	return nil
}

func (f *fakeRegistrar) Unregister(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, ok := f.held[id]
	if !ok {
		return errors.New("not registered")
	}
	if f.unregFail[pk] {
		// The registration is gone from our side but the OS kept it.
		delete(f.held, id)
		return errors.New("unregister failed")
	}
	delete(f.held, id)
	f.released++
	return nil
}

func checkInvariant(t *testing.T, r *Report) {
	t.Helper()
	s := r.Stats
	if s.Attempted != s.Released+s.Taken+s.Skipped {
		t.Errorf("attempted %d != released %d + taken %d + skipped %d",
			s.Attempted, s.Released, s.Taken, s.Skipped)
	}
	if s.Taken != len(r.Taken) || s.Skipped != len(r.Skipped) || s.Leaked != len(r.LeakedCombos) {
		t.Errorf("stats %+v disagree with report lists", s)
	}
}

func TestScanFindsTaken(t *testing.T) {
	reg := newFakeRegistrar()
	reg.taken[regKey{ModShift | ModWin, "S"}] = true
	reg.taken[regKey{ModCtrl | ModAlt, "Delete"}] = true

	rep, err := New(reg).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	checkInvariant(t, rep)

	if rep.Stats.Attempted != Total() {
		t.Errorf("attempted %d, want %d", rep.Stats.Attempted, Total())
	}
	if Total() != 15*len(Keys) {
		t.Errorf("Total() = %d", Total())
	}
	got := rep.Combos()
	want := []string{"Ctrl+Alt+Delete", "Shift+Win+S"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("taken = %v, want %v", got, want)
	}
	if rep.Taken[1].Label != "Win+Shift+S" || rep.Taken[1].Modifier != "Win+Shift" {
		t.Errorf("taken[1] = %+v", rep.Taken[1])
	}
	if reg.registered != reg.released {
		t.Errorf("registered %d, released %d", reg.registered, reg.released)
	}
	if len(reg.held) != 0 {
		t.Errorf("registrations still held: %v", reg.held)
	}
}

func TestScanSkipsFailuresAndPanics(t *testing.T) {
	reg := newFakeRegistrar()
	reg.failKey = "F13"
	reg.panicKey = "Pause"

	rep, err := New(reg).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	checkInvariant(t, rep)
	if rep.Stats.Skipped != 30 {
		t.Errorf("skipped = %d, want 30", rep.Stats.Skipped)
	}
	if rep.Stats.Taken != 0 {
		t.Errorf("errors other than already-registered must not count as taken")
	}
}

func TestScanRecordsLeakedCombo(t *testing.T) {
	reg := newFakeRegistrar()
	reg.unregFail[regKey{ModCtrl, "Q"}] = true

	rep, err := New(reg).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	checkInvariant(t, rep)
	if len(rep.LeakedCombos) != 1 || rep.LeakedCombos[0] != "Ctrl+Q" {
		t.Errorf("leaked = %v", rep.LeakedCombos)
	}
	if rep.Stats.Attempted != Total() {
		t.Error("scan did not continue after a leaked registration")
	}
}

func TestScanUnavailable(t *testing.T) {
	reg := newFakeRegistrar()
	reg.availErr = errors.New("no display")
	rep, err := New(reg).Scan(context.Background())
	if !errors.Is(err, ErrRegistrationUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if rep != nil {
		t.Error("expected no partial report")
	}
	if reg.registered != 0 {
		t.Error("registrations attempted despite unavailable registrar")
	}
}

func TestScanProgress(t *testing.T) {
	reg := newFakeRegistrar()
	s := New(reg)
	calls, last := 0, 0
	s.Progress = func(done, total int) {
		calls++
		if done != last+1 || total != Total() {
			t.Fatalf("progress(%d, %d) after %d", done, total, last)
		}
		last = done
	}
	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != Total() {
		t.Errorf("progress calls = %d", calls)
	}
}

func TestScanOneAtATime(t *testing.T) {
	reg := newFakeRegistrar()
	reg.block = make(chan struct{})
	s := New(reg)

	done := make(chan error, 1)
	go func() {
		_, err := s.Scan(context.Background())
		done <- err
	}()

	deadline := time.After(time.Second)
	for !s.running.Load() {
		select {
		case <-deadline:
			t.Fatal("first scan never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if _, err := s.Scan(context.Background()); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("concurrent scan = %v", err)
	}
	close(reg.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := New(newFakeRegistrar()).Scan(ctx)
	if !errors.Is(err, context.Canceled) || rep != nil {
		t.Errorf("Scan = %v, %v", rep, err)
	}
}

func TestByModifier(t *testing.T) {
	r := &Report{Taken: []Taken{
		{Modifier: "Win", Key: "S"},
		{Modifier: "Ctrl+Alt", Key: "T"},
		{Modifier: "Win", Key: "E"},
	}}
	g := r.ByModifier()
	if len(g) != 2 || g[0].Modifier != "Ctrl+Alt" || g[1].Keys[0] != "E" || g[1].Keys[1] != "S" {
		t.Errorf("ByModifier() = %+v", g)
	}
}

func TestKeyTable(t *testing.T) {
	seen := map[uint32]string{}
	for _, k := range Keys {
		if prev, dup := seen[k.VK]; dup {
			t.Errorf("VK %#x used by %q and %q", k.VK, prev, k.Name)
		}
		seen[k.VK] = k.Name
	}
	if len(Keys) < 100 {
		t.Errorf("only %d keys", len(Keys))
	}
	if len(ModifierCombos) != 16 || ModifierCombos[0].Mask != 0 {
		t.Error("modifier table should hold all 16 subsets starting with none")
	}
}

func TestScanCombosAreCanonical(t *testing.T) {
	for _, mc := range ModifierCombos[1:] {
		for _, k := range Keys {
			c := ComboFor(mc.Mask, k)
			got, err := combo.Normalize(combo.Split(c))
			if err != nil || got != c {
				t.Errorf("Normalize(Split(%q)) = %q, %v", c, got, err)
			}
		}
	}
}

func TestScanCombosMatchCapture(t *testing.T) {
	cases := []struct {
		mods Mod
		vk   uint32
		held []string
	}{
		{ModCtrl, 0x21, []string{"left ctrl", "page up"}},
		{ModAlt, 0x90, []string{"right alt", "num lock"}},
		{ModWin | ModShift, 0x2C, []string{"left windows", "left shift", "print screen"}},
		{ModCtrl | ModAlt, 0x60, []string{"ctrl", "alt", "num 0"}},
		{ModCtrl, 0x1B, []string{"ctrl", "esc"}},
		{ModWin, 0xBE, []string{"left windows", "."}},
	}
	for _, tc := range cases {
		var key Key
		for _, k := range Keys {
			if k.VK == tc.vk {
				key = k
			}
		}
		want, _ := combo.Normalize(tc.held)
		if got := ComboFor(tc.mods, key); got != want {
			t.Errorf("ComboFor(%v, %#x) = %q, capture gives %q", tc.mods, tc.vk, got, want)
		}
	}
}
