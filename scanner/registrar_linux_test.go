//go:build linux

package scanner

import (
	"errors"
	"testing"
)

func TestRegistrarWithoutDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")
	_, err := New(NewRegistrar()).Scan(t.Context())
	if !errors.Is(err, ErrRegistrationUnavailable) {
		t.Errorf("Scan without display = %v, want ErrRegistrationUnavailable", err)
	}
}

func TestEveryScanKeyHasKeysym(t *testing.T) {
	for _, k := range Keys {
		if _, ok := x11Keysyms[k.VK]; !ok {
			t.Errorf("no keysym for %s (VK %#x)", k.Name, k.VK)
		}
	}
}

func TestX11Mods(t *testing.T) {
	if got := x11Mods(ModCtrl | ModWin); got != 1<<2|1<<6 {
		t.Errorf("x11Mods(Ctrl|Win) = %#x", got)
	}
	if got := x11Mods(ModAlt | ModShift); got != 1<<3|1<<0 {
		t.Errorf("x11Mods(Alt|Shift) = %#x", got)
	}
}
