// Package dispatch carries out a selected shortcut.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"otterly/config"
	"otterly/log"
)

const (
	// DefaultFocusDelay gives the OS time to return focus to the previous
	// window before a combo is replayed into it.
	DefaultFocusDelay  = 150 * time.Millisecond
	DefaultInterpreter = "python"
)

type Surface interface {
	Hide()
}

type Replayer interface {
	Replay(combo string) error
}

type Spawner interface {
	Spawn(name string, args ...string) (*os.Process, error)
}

type Dispatcher struct {
	surface  Surface
	replayer Replayer
	spawner  Spawner

	FocusDelay  time.Duration
	Interpreter string
}

func New(surface Surface, replayer Replayer, spawner Spawner) *Dispatcher {
	return &Dispatcher{
		surface:     surface,
		replayer:    replayer,
		spawner:     spawner,
		FocusDelay:  DefaultFocusDelay,
		Interpreter: DefaultInterpreter,
	}
}

// DispatchShortcut resolves sc and dispatches it.
func (d *Dispatcher) DispatchShortcut(ctx context.Context, sc config.Shortcut) error {
	a, err := FromShortcut(sc)
	if err != nil {
		log.Dispatch(sc.Name, KindNone.String(), "", err)
		return err
	}
	return d.Dispatch(ctx, a)
}

// Dispatch performs a. A combo replay hides the surface first and waits
// FocusDelay so the keys land in the previously focused window. A launch
// hides the surface only after the program started.
func (d *Dispatcher) Dispatch(ctx context.Context, a Action) error {
	switch a.kind {
	case KindReplay:
		return d.replay(ctx, a)
	case KindLaunch:
		err := d.launch(a)
		log.Dispatch(a.name, a.kind.String(), a.target, err)
		if err != nil {
			return err
		}
		d.hide()
		return nil
	default:
		err := fmt.Errorf("%q: %w", a.name, ErrUnresolvedShortcut)
		log.Dispatch(a.name, a.kind.String(), "", err)
		return err
	}
}

func (d *Dispatcher) replay(ctx context.Context, a Action) error {
	if d.replayer == nil {
		return errors.New("no key replayer configured")
	}
	d.hide()
	if d.FocusDelay > 0 {
		t := time.NewTimer(d.FocusDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	err := d.replayer.Replay(a.target)
	log.Dispatch(a.name, a.kind.String(), a.target, err)
	if err != nil {
		return fmt.Errorf("replay %s: %w", a.target, err)
	}
	return nil
}

func (d *Dispatcher) launch(a Action) error {
	if d.spawner == nil {
		return &LaunchError{Name: a.name, Path: a.target, Err: errors.New("no spawner configured")}
	}
	name, args := d.command(a.target)
	if mustExist(a.target) {
		if _, err := os.Stat(a.target); err != nil {
			return &LaunchError{Name: a.name, Path: a.target, Err: err}
		}
	}
	if _, err := d.spawner.Spawn(name, args...); err != nil {
		return &LaunchError{Name: a.name, Path: a.target, Err: err}
	}
	return nil
}

// command builds the argv for path: scripts through the interpreter,
// everything else through the OS shell.
func (d *Dispatcher) command(path string) (string, []string) {
	if isScript(path) {
		interp := d.Interpreter
		if interp == "" {
			interp = DefaultInterpreter
		}
		return interp, []string{path}
	}
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", path}
	}
	return "sh", []string{"-c", path}
}

func (d *Dispatcher) hide() {
	if d.surface != nil {
		d.surface.Hide()
	}
}

func isScript(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".py")
}

// Bare commands ("notepad.exe", "code") are resolved by the shell; only
// explicit file paths are checked up front.
func mustExist(path string) bool {
	return isScript(path) || filepath.IsAbs(path)
}
