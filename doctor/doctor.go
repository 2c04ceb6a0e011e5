package doctor

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"otterly/config"
	"otterly/dispatch"
	"otterly/keybus"
	"otterly/scanner"
	"otterly/trigger"
)

// Checks bundles what Run exercises, so tests can substitute fakes.
type Checks struct {
	ConfigDir string
	Source    keybus.Source
	Registrar scanner.Registrar
	Replayer  interface{ Init() error }
	// TapWait bounds the interactive double-tap check; zero skips it.
	TapWait time.Duration
}

// Run executes interactive diagnostic checks and returns an exit code
// (0 = all pass, 1 = any fail).
func Run(configDir string) int {
	saveTerminal()
	setupInterruptHandler()

	fmt.Println("otterly doctor - interactive system diagnostics")
	fmt.Println("===============================================")

	ok := RunChecks(Checks{
		ConfigDir: configDir,
		Source:    keybus.NewSource(),
		Registrar: scanner.NewRegistrar(),
		Replayer:  dispatch.NewKeyReplayer(),
		TapWait:   10 * time.Second,
	})

	fmt.Println()
	if ok {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func RunChecks(c Checks) bool {
	allPass := true
	store, pass := checkConfig(c.ConfigDir)
	allPass = allPass && pass

	key := config.DefaultTriggerKey
	timeout := time.Duration(config.DefaultTimeoutMs) * time.Millisecond
	if store != nil {
		tr := store.Trigger()
		key, timeout = tr.Key, time.Duration(tr.TimeoutMs)*time.Millisecond
	}
	if !checkHook(c.Source, key, timeout, c.TapWait) {
		allPass = false
	}
	if !checkRegistrar(c.Registrar) {
		allPass = false
	}
	if !checkReplay(c.Replayer) {
		allPass = false
	}
	return allPass
}

func checkConfig(dir string) (*config.Store, bool) {
	fmt.Println()
	fmt.Println("[1/4] Configuration")

	store, err := config.Open(dir)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil, false
	}
	fmt.Printf("  config: %s\n", store.Path())

	tr := store.Trigger()
	if tr.Method != config.DefaultMethod {
		fmt.Printf("  FAIL: trigger method %q is not supported (only %q)\n", tr.Method, config.DefaultMethod)
		return store, false
	}
	if tr.TimeoutMs <= 0 {
		fmt.Printf("  FAIL: trigger timeout_ms must be positive, got %d\n", tr.TimeoutMs)
		return store, false
	}

	bad := 0
	list := store.Shortcuts()
	for _, sc := range list {
		if _, err := dispatch.FromShortcut(sc); err != nil && !errors.Is(err, dispatch.ErrShortcutDisabled) {
			fmt.Printf("  WARN: %v\n", err)
			bad++
		}
	}
	if bad > 0 {
		fmt.Printf("  FAIL: %d of %d shortcuts cannot be dispatched\n", bad, len(list))
		return store, false
	}
	fmt.Printf("  PASS: trigger %s double-tap within %dms, %d shortcuts\n", tr.Key, tr.TimeoutMs, len(list))
	return store, true
}

func checkHook(src keybus.Source, key string, timeout, wait time.Duration) bool {
	fmt.Println()
	fmt.Println("[2/4] Keyboard hook")

	bus := keybus.New(src)
	s := trigger.NewSession(bus, trigger.Config{Key: key, Timeout: timeout}, nil)
	if err := s.Start(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		if runtime.GOOS == "darwin" {
			fmt.Println("  Grant Accessibility access to your terminal in System Settings > Privacy & Security.")
		}
		return false
	}
	defer s.Stop()

	if wait <= 0 {
		fmt.Println("  PASS: hook installed")
		return true
	}
	fmt.Printf("Double-tap %s...\n", key)
	select {
	case ev := <-s.Events():
		if ev.Kind == trigger.DoubleTapDetected {
			fmt.Printf("  PASS: double tap detected (%dms apart)\n", ev.Gap.Milliseconds())
			resetTerminal()
			return true
		}
		fmt.Println("  FAIL: unexpected event")
		return false
	case <-time.After(wait):
		fmt.Println("  FAIL: timeout waiting for double tap")
		return false
	}
}

func checkRegistrar(reg scanner.Registrar) bool {
	fmt.Println()
	fmt.Println("[3/4] Global hotkey registration")

	if err := reg.Available(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	f12 := scanner.Key{Name: "F12", VK: 0x7B}
	mods := scanner.ModCtrl | scanner.ModAlt | scanner.ModShift
	label := scanner.ComboFor(mods, f12)
	err := reg.Register(scanner.ReservedID, mods, f12)
	switch {
	case errors.Is(err, scanner.ErrAlreadyRegistered):
		fmt.Printf("  PASS: registration works (%s is owned by another program)\n", label)
		return true
	case err != nil:
		fmt.Printf("  FAIL: register %s: %v\n", label, err)
		return false
	}
	if err := reg.Unregister(scanner.ReservedID); err != nil {
		fmt.Printf("  FAIL: unregister %s: %v\n", label, err)
		return false
	}
	fmt.Printf("  PASS: registered and released %s\n", label)
	return true
}

func checkReplay(r interface{ Init() error }) bool {
	fmt.Println()
	fmt.Println("[4/4] Key replay (virtual keyboard)")

	if err := r.Init(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		if runtime.GOOS == "linux" {
			fmt.Println("  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
		return false
	}
	fmt.Println("  PASS: virtual keyboard initialized")
	return true
}
