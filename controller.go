package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"otterly/capture"
	"otterly/config"
	"otterly/dispatch"
	"otterly/keybus"
	"otterly/log"
	"otterly/notify"
	"otterly/scanner"
	"otterly/trigger"
)

type ControllerConfig struct {
	Store     *config.Store
	Bus       *keybus.Bus
	Sink      MonitorSink
	Replayer  dispatch.Replayer
	Spawner   dispatch.Spawner
	Registrar scanner.Registrar
	// Trigger overrides the stored trigger settings when Key is set.
	Trigger     trigger.Config
	Interpreter string
	FocusDelay  time.Duration
}

// Controller owns the sessions on the keyboard bus and routes trigger,
// capture and scan results to the surface. At most one of the trigger and
// capture sessions is subscribed at any time.
type Controller struct {
	store   *config.Store
	trig    *trigger.Session
	capt    *capture.Session
	disp    *dispatch.Dispatcher
	scan    *scanner.Scanner
	spawner dispatch.Spawner
	sink    MonitorSink

	override bool
	trigCfg  trigger.Config

	// swapMu serializes SetMonitoring transitions end to end.
	swapMu sync.Mutex

	mu         sync.Mutex
	surface    Surface
	monitoring bool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		store:    cfg.Store,
		spawner:  cfg.Spawner,
		sink:     cfg.Sink,
		override: cfg.Trigger.Key != "",
		ctx:      context.Background(),
	}
	c.trigCfg = c.triggerConfig(cfg.Trigger)
	c.trig = trigger.NewSession(cfg.Bus, c.trigCfg, c.visible)
	c.capt = capture.NewSession(cfg.Bus, func(u capture.Update) {
		if c.sink != nil {
			c.sink.HotkeyDetected(u)
		}
	})
	c.disp = dispatch.New(c, cfg.Replayer, cfg.Spawner)
	if cfg.FocusDelay > 0 {
		c.disp.FocusDelay = cfg.FocusDelay
	}
	if cfg.Interpreter != "" {
		c.disp.Interpreter = cfg.Interpreter
	}
	if cfg.Registrar != nil {
		c.scan = scanner.New(cfg.Registrar)
		c.scan.Progress = func(done, total int) {
			if c.sink != nil {
				c.sink.ScanProgress(done, total)
			}
		}
	}
	return c
}

func (c *Controller) triggerConfig(flagCfg trigger.Config) trigger.Config {
	if flagCfg.Key != "" {
		return flagCfg
	}
	tr := c.store.Trigger()
	return trigger.Config{Key: tr.Key, Timeout: time.Duration(tr.TimeoutMs) * time.Millisecond}
}

// SetSurface attaches the launcher surface. It must be called before Start.
func (c *Controller) SetSurface(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = s
}

func (c *Controller) currentSurface() Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

func (c *Controller) visible() bool {
	s := c.currentSurface()
	return s != nil && s.Visible()
}

// Hide closes the launcher surface. It is the dispatcher's view of the
// surface.
func (c *Controller) Hide() {
	if s := c.currentSurface(); s != nil {
		s.Hide()
	}
}

// Start installs the trigger session and begins routing its events.
func (c *Controller) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.ctx, c.cancel = ctx, cancel
	tc := c.trigCfg
	c.mu.Unlock()

	if err := c.trig.Start(); err != nil {
		cancel()
		return fmt.Errorf("trigger detection: %w", err)
	}
	log.Infof("trigger ready: double-tap %s within %v", tc.Key, tc.Timeout)

	c.wg.Add(1)
	go c.loop(ctx)
	return nil
}

func (c *Controller) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.trig.Events():
			switch ev.Kind {
			case trigger.DoubleTapDetected:
				notify.Tap()
				c.Toggle()
			case trigger.EscapeRequested:
				c.Hide()
			}
		}
	}
}

// Toggle hides a visible launcher, otherwise reloads the configuration and
// shows the enabled shortcuts.
func (c *Controller) Toggle() {
	s := c.currentSurface()
	if s == nil {
		return
	}
	if s.Visible() {
		s.Hide()
		return
	}
	if err := c.store.Reload(); err != nil {
		log.Warnf("config reload before show: %v", err)
	}
	s.Show(c.Shortcuts())
}

// Shortcuts returns the enabled shortcuts in configured order.
func (c *Controller) Shortcuts() []config.Shortcut {
	var out []config.Shortcut
	for _, sc := range c.store.Shortcuts() {
		if sc.IsEnabled() {
			out = append(out, sc)
		}
	}
	return out
}

// Select dispatches sc. On failure the launcher stays open with the error
// in its status line.
func (c *Controller) Select(sc config.Shortcut) error {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	err := c.disp.DispatchShortcut(ctx, sc)
	if err != nil && !errors.Is(err, context.Canceled) {
		notify.Error("Shortcut failed", err)
		if s := c.currentSurface(); s != nil {
			s.Status(err.Error())
		}
	}
	return err
}

// Capture exposes the capture session for list operations.
func (c *Controller) Capture() *capture.Session { return c.capt }

func (c *Controller) Monitoring() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monitoring
}

// SetMonitoring swaps trigger detection for hotkey capture and back. The
// outgoing session is fully unsubscribed before the other one starts.
func (c *Controller) SetMonitoring(on bool) error {
	c.swapMu.Lock()
	defer c.swapMu.Unlock()
	if c.Monitoring() == on {
		return nil
	}

	if on {
		c.Hide()
		if err := c.trig.Stop(); err != nil {
			log.Warnf("stop trigger: %v", err)
		}
		if err := c.capt.Start(); err != nil {
			if rerr := c.trig.Start(); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return err
		}
	} else {
		if err := c.capt.Stop(); err != nil {
			log.Warnf("stop capture: %v", err)
		}
		if err := c.trig.Start(); err != nil {
			return fmt.Errorf("restart trigger detection: %w", err)
		}
	}

	c.mu.Lock()
	c.monitoring = on
	c.mu.Unlock()
	if c.sink != nil {
		c.sink.MonitoringChanged(on)
	}
	return nil
}

// AddSelected appends the selected captured hotkeys to the launcher.
func (c *Controller) AddSelected() (int, error) {
	added, err := c.store.AddShortcuts(c.capt.Selected())
	if err != nil {
		return 0, fmt.Errorf("add shortcuts: %w", err)
	}
	log.Infof("added %d captured hotkeys to launcher", added)
	return added, nil
}

// AddScanned appends scanned combinations to the launcher, named as in
// the scan cache.
func (c *Controller) AddScanned(combos []string) (int, error) {
	cache, err := scanner.LoadCache(c.store.Dir())
	if err != nil {
		return 0, err
	}
	return addScanned(c.store, cache, combos)
}

func addScanned(store *config.Store, cache *scanner.Cache, combos []string) (int, error) {
	list := make([]config.Shortcut, 0, len(combos))
	for _, h := range combos {
		list = append(list, config.Shortcut{Name: cache.Name(h), Combo: h})
	}
	added, err := store.AddShortcuts(list)
	if err != nil {
		return 0, fmt.Errorf("add shortcuts: %w", err)
	}
	log.Infof("added %d scanned hotkeys to launcher", added)
	return added, nil
}

// Scan runs a conflict scan in the background and stores the result in
// the scan cache. The outcome goes to the sink.
func (c *Controller) Scan() {
	if c.scan == nil {
		c.scanDone(nil, scanner.ErrRegistrationUnavailable)
		return
	}
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		rep, err := c.scan.Scan(ctx)
		if err == nil {
			if cerr := saveScanCache(c.store.Dir(), rep); cerr != nil {
				log.Warnf("scan cache: %v", cerr)
			}
		}
		c.scanDone(rep, err)
	}()
}

func (c *Controller) scanDone(rep *scanner.Report, err error) {
	if err != nil && !errors.Is(err, scanner.ErrScanInProgress) {
		notify.Error("Hotkey scan failed", err)
	}
	if c.sink != nil {
		c.sink.ScanComplete(rep, err)
	}
}

func saveScanCache(dir string, rep *scanner.Report) error {
	cache, err := scanner.LoadCache(dir)
	if err != nil {
		log.Warnf("replacing unreadable scan cache: %v", err)
		cache = scanner.NewCache(dir)
	}
	cache.FromReport(rep)
	return cache.Save()
}

// ConfigChanged applies a reloaded configuration.
func (c *Controller) ConfigChanged() {
	if c.override {
		return
	}
	next := c.triggerConfig(trigger.Config{})
	c.mu.Lock()
	same := next == c.trigCfg
	c.mu.Unlock()
	if same {
		return
	}
	if err := c.trig.Reconfigure(next); err != nil {
		notify.Error("Trigger reconfigure failed", err)
		return
	}
	c.mu.Lock()
	c.trigCfg = next
	c.mu.Unlock()
	log.Infof("trigger now: double-tap %s within %v", next.Key, next.Timeout)
}

// OpenConfig opens config.json with the desktop's default handler.
func (c *Controller) OpenConfig() error {
	if c.spawner == nil {
		return errors.New("no spawner configured")
	}
	path := c.store.Path()
	var err error
	switch runtime.GOOS {
	case "windows":
		_, err = c.spawner.Spawn("cmd", "/c", "start", "", path)
	case "darwin":
		_, err = c.spawner.Spawn("open", path)
	default:
		_, err = c.spawner.Spawn("xdg-open", path)
	}
	return err
}

// Stop tears everything down: capture or trigger session, the surface and
// background scans.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := c.capt.Stop(); err != nil {
		log.Warnf("stop capture: %v", err)
	}
	if err := c.trig.Stop(); err != nil {
		log.Warnf("stop trigger: %v", err)
	}
	c.Hide()
	c.wg.Wait()
}
