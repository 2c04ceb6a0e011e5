// Package tray puts the launcher in the system tray.
package tray

import (
	"runtime"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

const idleTooltip = "Otterly – double-tap to launch"

// Menu holds the actions behind the tray entries. A nil action hides its
// entry.
type Menu struct {
	OnShow       func()
	OnMonitor    func(on bool)
	OnScan       func()
	OnManage     func()
	OnOpenConfig func()
	// OnLogin toggles start at login; LoginEnabled is its initial state.
	OnLogin      func(on bool) error
	LoginEnabled bool
	OnQuit       func()
}

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once

	mu         sync.Mutex
	menu       Menu
	ready      bool
	mMonitor   *systray.MenuItem
	mScan      *systray.MenuItem
	monitoring bool
)

// Run shows the tray icon and blocks until Quit. It takes over the calling
// OS thread for the native event loop.
func Run(m Menu) {
	mu.Lock()
	menu = m
	mu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	systray.Run(onReady, onExit)
}

// Done is closed once the tray has quit.
func Done() <-chan struct{} { return quitCh }

func Quit() {
	systray.Quit()
}

func onReady() {
	systray.SetIcon(idleIcon)
	systray.SetTitle("Otterly")
	systray.SetTooltip(idleTooltip)

	mu.Lock()
	m := menu
	mu.Unlock()

	if m.OnShow != nil {
		item := systray.AddMenuItem("Show launcher", "Open the shortcut list")
		go clicks(item, m.OnShow)
	}
	if m.OnMonitor != nil {
		item := systray.AddMenuItemCheckbox("Monitor hotkeys", "Record the key combinations you press", false)
		mu.Lock()
		mMonitor = item
		mu.Unlock()
		go clicks(item, func() {
			mu.Lock()
			on := !monitoring
			mu.Unlock()
			m.OnMonitor(on)
		})
	}
	if m.OnScan != nil {
		item := systray.AddMenuItem("Scan hotkeys", "Find hotkeys registered by other programs")
		mu.Lock()
		mScan = item
		mu.Unlock()
		go clicks(item, m.OnScan)
	}
	if m.OnManage != nil {
		item := systray.AddMenuItem("Manage shortcuts", "Enable, rename or delete shortcuts")
		go clicks(item, m.OnManage)
	}
	if m.OnOpenConfig != nil {
		item := systray.AddMenuItem("Open config", "Edit config.json")
		go clicks(item, m.OnOpenConfig)
	}
	if m.OnLogin != nil {
		item := systray.AddMenuItemCheckbox("Start at login", "Launch Otterly in the tray when you log in", m.LoginEnabled)
		go clicks(item, func() {
			on := !item.Checked()
			if err := m.OnLogin(on); err != nil {
				SetStatus(err.Error())
				return
			}
			if on {
				item.Check()
			} else {
				item.Uncheck()
			}
		})
	}
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit Otterly")
	go func() {
		<-mQuit.ClickedCh
		if m.OnQuit != nil {
			m.OnQuit()
		}
		systray.Quit()
	}()

	mu.Lock()
	ready = true
	mu.Unlock()
}

func onExit() {
	closeOnce.Do(func() { close(quitCh) })
}

func clicks(item *systray.MenuItem, fn func()) {
	for {
		select {
		case <-item.ClickedCh:
			fn()
		case <-quitCh:
			return
		}
	}
}

// SetMonitoring reflects the capture session state in the menu.
func SetMonitoring(on bool) {
	mu.Lock()
	defer mu.Unlock()
	monitoring = on
	if mMonitor == nil {
		return
	}
	if on {
		mMonitor.Check()
		systray.SetIcon(activeIcon)
	} else {
		mMonitor.Uncheck()
		systray.SetIcon(idleIcon)
	}
}

// SetScanning disables the scan entry while a scan runs.
func SetScanning(on bool) {
	mu.Lock()
	defer mu.Unlock()
	if mScan == nil {
		return
	}
	if on {
		mScan.Disable()
		mScan.SetTitle("Scanning hotkeys…")
	} else {
		mScan.Enable()
		mScan.SetTitle("Scan hotkeys")
	}
}

// SetStatus shows msg in the tooltip for a while.
func SetStatus(msg string) {
	mu.Lock()
	up := ready
	mu.Unlock()
	if !up {
		return
	}
	systray.SetTooltip("Otterly – " + msg)
	go func() {
		time.Sleep(10 * time.Second)
		systray.SetTooltip(idleTooltip)
	}()
}
