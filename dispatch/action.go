package dispatch

import (
	"errors"
	"fmt"

	"otterly/combo"
	"otterly/config"
)

var (
	ErrUnresolvedShortcut = errors.New("shortcut has neither a path nor a combo")
	ErrShortcutDisabled   = errors.New("shortcut is disabled")
)

type Kind int

const (
	KindNone Kind = iota
	KindLaunch
	KindReplay
)

func (k Kind) String() string {
	switch k {
	case KindLaunch:
		return "launch"
	case KindReplay:
		return "combo"
	}
	return "none"
}

// Action is what selecting a shortcut does: start a program or replay a
// key combination. The zero Action resolves to nothing.
type Action struct {
	name   string
	kind   Kind
	target string
}

func Launch(name, path string) Action {
	return Action{name: name, kind: KindLaunch, target: path}
}

// ReplayCombo canonicalizes c; an invalid combination yields the zero
// Action.
func ReplayCombo(name, c string) Action {
	norm, err := combo.Normalize(combo.Split(c))
	if err != nil {
		return Action{name: name}
	}
	return Action{name: name, kind: KindReplay, target: norm}
}

func (a Action) Name() string   { return a.name }
func (a Action) Kind() Kind     { return a.kind }
func (a Action) Target() string { return a.target }

// FromShortcut converts a persisted shortcut. When both a path and a combo
// are set the combo wins.
func FromShortcut(sc config.Shortcut) (Action, error) {
	if !sc.IsEnabled() {
		return Action{}, fmt.Errorf("%q: %w", sc.Name, ErrShortcutDisabled)
	}
	if c := sc.ComboString(); c != "" {
		a := ReplayCombo(sc.Name, c)
		if a.kind == KindNone {
			return Action{}, fmt.Errorf("%q: bad combo %q: %w", sc.Name, c, ErrUnresolvedShortcut)
		}
		return a, nil
	}
	if sc.Path != "" {
		return Launch(sc.Name, sc.Path), nil
	}
	return Action{}, fmt.Errorf("%q: %w", sc.Name, ErrUnresolvedShortcut)
}

// LaunchError is a failed program start. The launcher stays visible so
// the user can pick again.
type LaunchError struct {
	Name string
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q (%s): %v", e.Name, e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
