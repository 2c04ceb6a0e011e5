package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"otterly/config"
	"otterly/dispatch"
	"otterly/doctor"
	"otterly/keybus"
	"otterly/log"
	"otterly/login"
	"otterly/notify"
	"otterly/scanner"
	"otterly/shutdown"
	"otterly/tray"
	"otterly/trigger"
)

var version = "dev"

var (
	shutdownOnce sync.Once
	activeCtl    *Controller
	activeCtlMu  sync.Mutex
)

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		activeCtlMu.Lock()
		ctl := activeCtl
		activeCtlMu.Unlock()
		if ctl != nil {
			ctl.Stop()
		}
		notify.Wait()
		log.Close()
		tray.Quit()
		os.Exit(0)
	})
}

func setActive(c *Controller) {
	activeCtlMu.Lock()
	activeCtl = c
	activeCtlMu.Unlock()
}

// initCrashLog sends runtime crash output to a file next to the binary
// until the log directory is known.
func initCrashLog() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	openCrashLog(filepath.Dir(exe))
}

func openCrashLog(dir string) {
	crashPath := filepath.Join(dir, "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	crashFile.Close()
}

// loadEnv reads .env files; variables already set in the environment win.
func loadEnv(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", p, err)
		}
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func run() {
	loadEnv(".env")

	configFlag := flag.String("config", "", "config directory (default: OS-specific location, or OTTERLY_CONFIG_DIR)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	triggerFlag := flag.String("trigger", "", "trigger key to double-tap (overrides config.json)")
	timeoutFlag := flag.Duration("timeout", time.Duration(config.DefaultTimeoutMs)*time.Millisecond, "double-tap window, used with -trigger")
	interpreterFlag := flag.String("interpreter", "", "interpreter for .py shortcuts (default: python)")
	monitorFlag := flag.Bool("monitor", false, "Record the key combinations you press")
	scanFlag := flag.Bool("scan", false, "Find hotkeys registered by other programs")
	manageFlag := flag.Bool("manage", false, "Enable, rename or delete shortcuts")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	trayFlag := flag.Bool("tray", false, "Run in the system tray")
	quietFlag := flag.Bool("quiet", false, "Disable sounds")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("otterly %s\n", version)
		os.Exit(0)
	}

	configDir := *configFlag
	if configDir == "" {
		d, err := config.DefaultDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to resolve config directory: %v\n", err)
			os.Exit(1)
		}
		configDir = d
	}
	loadEnv(filepath.Join(configDir, ".env"))

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	} else {
		openCrashLog(logPath)
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *doctorFlag {
		os.Exit(doctor.Run(configDir))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.Infof("otterly %s starting (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
	if *quietFlag {
		notify.Mute()
	}

	store, err := config.Open(configDir)
	if err != nil {
		log.Errorf("config: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	trig := trigger.Config{}
	if *triggerFlag != "" {
		trig = trigger.Config{Key: *triggerFlag, Timeout: *timeoutFlag}
	}

	if *testFlag {
		runTestMode(store, trig, *interpreterFlag)
		return
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	go func() {
		<-ctx.Done()
		gracefulShutdown()
	}()

	if *scanFlag {
		runScan(store)
		gracefulShutdown()
		return
	}
	if *manageFlag {
		runManage(store)
		gracefulShutdown()
		return
	}

	replayer := dispatch.NewKeyReplayer()
	if err := replayer.Init(); err != nil {
		log.Warnf("key replay unavailable: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: combo shortcuts disabled: %v\n", err)
		if runtime.GOOS == "linux" {
			fmt.Fprintln(os.Stderr, "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	sink := &tuiSink{}
	var traySinkImpl *traySink
	var outSink MonitorSink = sink
	if *trayFlag {
		traySinkImpl = &traySink{}
		outSink = traySinkImpl
	}

	ctl := NewController(ControllerConfig{
		Store:       store,
		Bus:         keybus.New(keybus.NewSource()),
		Sink:        outSink,
		Replayer:    replayer,
		Spawner:     dispatch.ExecSpawner{},
		Registrar:   scanner.NewRegistrar(),
		Trigger:     trig,
		Interpreter: *interpreterFlag,
	})
	if traySinkImpl != nil {
		traySinkImpl.ctl = ctl
	}
	setActive(ctl)

	popup := NewPopup(func(sc config.Shortcut) { ctl.Select(sc) }, func() {
		log.Info("launcher_closed")
	})
	ctl.SetSurface(popup)

	go func() {
		if err := store.Watch(ctx, ctl.ConfigChanged); err != nil {
			log.Warnf("config watch: %v", err)
		}
	}()

	if err := ctl.Start(ctx); err != nil {
		log.Errorf("start: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if runtime.GOOS == "darwin" {
			fmt.Fprintln(os.Stderr, "Grant Accessibility access in System Settings > Privacy & Security.")
		}
		os.Exit(1)
	}

	if *monitorFlag {
		runMonitor(ctl, sink)
		gracefulShutdown()
		return
	}

	tc := store.Trigger()
	key := tc.Key
	if trig.Key != "" {
		key = trig.Key
	}
	fmt.Printf("otterly %s: double-tap %s to open the launcher (%s)\n", version, key, store.Path())

	if *trayFlag {
		menu := tray.Menu{
			OnShow: ctl.Toggle,
			OnMonitor: func(on bool) {
				if err := ctl.SetMonitoring(on); err != nil {
					notify.Error("Hotkey monitor", err)
				}
			},
			OnManage: func() {
				ctl.Hide()
				runManage(store)
			},
			OnOpenConfig: func() {
				if err := ctl.OpenConfig(); err != nil {
					notify.Error("Open config", err)
				}
			},
			OnLogin:      setLogin,
			LoginEnabled: login.Enabled(),
			OnQuit:       gracefulShutdown,
		}
		// The registrar needs the main thread on macOS, which the tray
		// event loop holds.
		if runtime.GOOS != "darwin" {
			menu.OnScan = func() {
				tray.SetScanning(true)
				ctl.Scan()
			}
		}
		runOnMain(func() { tray.Run(menu) })
		gracefulShutdown()
		return
	}

	<-ctx.Done()
	gracefulShutdown()
}

func setLogin(on bool) error {
	if on {
		return login.Enable()
	}
	return login.Disable()
}

// runMonitor shows the capture view until the user quits it.
func runMonitor(ctl *Controller, sink *tuiSink) {
	if err := ctl.SetMonitoring(true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	p := tea.NewProgram(newMonitorModel(controllerMonitor{ctl}), tea.WithAltScreen())
	sink.attach(p)
	if _, err := p.Run(); err != nil {
		log.Errorf("monitor UI: %v", err)
	}
	sink.attach(nil)

	for _, h := range ctl.Capture().Hotkeys() {
		fmt.Printf("%-28s ×%d\n", h.Combo, h.Count)
	}
}

// runScan scans registered hotkeys, interactively on a terminal and as a
// plain report otherwise.
func runScan(store *config.Store) {
	reg := scanner.NewRegistrar()
	if !isTerminal() {
		s := scanner.New(reg)
		rep, err := s.Scan(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		if err := saveScanCache(store.Dir(), rep); err != nil {
			log.Warnf("scan cache: %v", err)
		}
		fmt.Print(renderReport(rep))
		return
	}

	cache, err := scanner.LoadCache(store.Dir())
	if err != nil {
		log.Warnf("scan cache: %v", err)
		cache = scanner.NewCache(store.Dir())
	}
	sink := &tuiSink{}
	s := scanner.New(reg)
	s.Progress = sink.ScanProgress
	start := func() {
		go func() {
			rep, err := s.Scan(context.Background())
			if err == nil {
				if cerr := saveScanCache(store.Dir(), rep); cerr != nil {
					log.Warnf("scan cache: %v", cerr)
				}
			}
			sink.ScanComplete(rep, err)
		}()
	}
	add := func(combos []string) (int, error) { return addScanned(store, cache, combos) }
	p := tea.NewProgram(newScanModel(cache, start, add), tea.WithAltScreen())
	sink.attach(p)
	if _, err := p.Run(); err != nil {
		log.Errorf("scan UI: %v", err)
	}
	sink.attach(nil)
}
