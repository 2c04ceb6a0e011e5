//go:build !windows

package keybus

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	hook "github.com/robotn/gohook"
)

// gohook raw names that differ from the identifiers used here.
var gohookNames = map[string]string{
	"lshift":   "left shift",
	"rshift":   "right shift",
	"lctrl":    "left ctrl",
	"rctrl":    "right ctrl",
	"lalt":     "left alt",
	"ralt":     "right alt",
	"lcmd":     "left windows",
	"rcmd":     "right windows",
	"cmd":      "left windows",
	"escape":   "esc",
	"return":   "enter",
	"pageup":   "page up",
	"pagedown": "page down",
}

type gohookSource struct {
	mu     sync.Mutex
	events chan hook.Event
	done   chan struct{}
}

// NewSource returns a Source backed by github.com/robotn/gohook.
func NewSource() Source {
	return &gohookSource{}
}

func (s *gohookSource) Start(emit func(RawKeyEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events != nil {
		return fmt.Errorf("%w: hook already installed", ErrHookUnavailable)
	}

	events := hook.Start()
	if events == nil {
		return fmt.Errorf("%w: gohook did not start", ErrHookUnavailable)
	}
	s.events = events
	s.done = make(chan struct{})

	go func(events chan hook.Event, done chan struct{}) {
		defer close(done)
		for ev := range events {
			var dir Direction
			switch ev.Kind {
			case hook.KeyHold:
				dir = Down
			case hook.KeyUp:
				dir = Up
			default:
				continue
			}
			emit(RawKeyEvent{Key: gohookKeyName(ev), Direction: dir, Time: ev.When})
		}
	}(events, s.done)
	return nil
}

func (s *gohookSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		return nil
	}
	hook.End()
	<-s.done
	s.events = nil
	s.done = nil
	return nil
}

func gohookKeyName(ev hook.Event) string {
	name := strings.ToLower(hook.RawcodetoKeychar(ev.Rawcode))
	if mapped, ok := gohookNames[name]; ok {
		return mapped
	}
	if name != "" {
		return name
	}
	if ev.Keychar != hook.CharUndefined && unicode.IsPrint(ev.Keychar) {
		return strings.ToLower(string(ev.Keychar))
	}
	return fmt.Sprintf("raw %d", ev.Rawcode)
}
