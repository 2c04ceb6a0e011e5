package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"otterly/capture"
	"otterly/combo"
	"otterly/config"
	"otterly/keybus"
	"otterly/log"
	"otterly/notify"
	"otterly/scanner"
	"otterly/trigger"
)

// testOut serializes protocol lines written from several goroutines.
type testOut struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *testOut) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format+"\n", args...)
}

type headlessSurface struct {
	out *testOut

	mu      sync.Mutex
	visible bool
	items   []config.Shortcut
}

func (s *headlessSurface) Show(list []config.Shortcut) {
	s.mu.Lock()
	s.visible = true
	s.items = list
	s.mu.Unlock()
	names := make([]string, len(list))
	for i, sc := range list {
		names[i] = sc.Name
	}
	s.out.printf("SHOW %s", strings.Join(names, ","))
}

func (s *headlessSurface) Hide() {
	s.mu.Lock()
	was := s.visible
	s.visible = false
	s.mu.Unlock()
	if was {
		s.out.printf("HIDE")
	}
}

func (s *headlessSurface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *headlessSurface) Status(text string) { s.out.printf("STATUS %s", text) }

func (s *headlessSurface) item(i int) (config.Shortcut, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visible || i < 0 || i >= len(s.items) {
		return config.Shortcut{}, false
	}
	return s.items[i], true
}

type headlessSink struct{ out *testOut }

func (s headlessSink) HotkeyDetected(u capture.Update) {
	s.out.printf("HOTKEY %s %d", u.Hotkey.Combo, u.Hotkey.Count)
}
func (s headlessSink) ScanProgress(done, total int) {}
func (s headlessSink) ScanComplete(r *scanner.Report, err error) {
	if err != nil {
		s.out.printf("SCAN_ERROR %v", err)
		return
	}
	s.out.printf("SCAN %d", r.Stats.Taken)
}
func (s headlessSink) MonitoringChanged(on bool) { s.out.printf("MONITORING %t", on) }

type printReplayer struct{ out *testOut }

func (r printReplayer) Replay(c string) error {
	r.out.printf("REPLAY %s", c)
	return nil
}

type printSpawner struct{ out *testOut }

func (s printSpawner) Spawn(name string, args ...string) (*os.Process, error) {
	s.out.printf("SPAWN %s", strings.Join(append([]string{name}, args...), " "))
	return nil, nil
}

// runTestMode drives the controller from stdin with a fake keyboard hook
// and prints every surface, dispatch and capture event on stdout.
func runTestMode(store *config.Store, trig trigger.Config, interpreter string) {
	notify.Disable()
	defer log.Close()

	out := &testOut{w: os.Stdout}
	src := keybus.NewFake()
	surface := &headlessSurface{out: out}
	ctl := NewController(ControllerConfig{
		Store:       store,
		Bus:         keybus.New(src),
		Sink:        headlessSink{out: out},
		Replayer:    printReplayer{out: out},
		Spawner:     printSpawner{out: out},
		Trigger:     trig,
		Interpreter: interpreter,
		FocusDelay:  10 * time.Millisecond,
	})
	ctl.SetSurface(surface)
	if err := ctl.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer ctl.Stop()
	out.printf("READY")

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		cmd, arg, _ := strings.Cut(strings.TrimSpace(in.Text()), " ")
		switch cmd {
		case "DOWN":
			src.SimKeydown(arg)
		case "UP":
			src.SimKeyup(arg)
		case "TAP":
			src.SimKeydown(arg)
			src.SimKeyup(arg)
		case "CHORD":
			src.SimChord(combo.Split(arg)...)
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "PICK":
			n, _ := strconv.Atoi(arg)
			sc, ok := surface.item(n - 1)
			if !ok {
				out.printf("PICK_ERROR %s", arg)
				continue
			}
			ctl.Select(sc)
		case "MONITOR":
			if err := ctl.SetMonitoring(arg == "on"); err != nil {
				out.printf("MONITOR_ERROR %v", err)
			}
		case "SELECT":
			if err := ctl.Capture().Select(arg, true); err != nil {
				out.printf("SELECT_ERROR %v", err)
			}
		case "ADD":
			n, err := ctl.AddSelected()
			if err != nil {
				out.printf("ADD_ERROR %v", err)
				continue
			}
			out.printf("ADDED %d", n)
		case "QUIT":
			return
		}
	}
}
