//go:build windows

package scanner

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
)

const errorHotkeyAlreadyRegistered = windows.Errno(1409)

// nativeRegistrar calls RegisterHotKey with a NULL window. Such
// registrations belong to the calling thread, so every call runs on one
// locked worker thread.
type nativeRegistrar struct {
	once  sync.Once
	calls chan func()
}

// NewRegistrar returns the platform registrar.
func NewRegistrar() Registrar {
	return &nativeRegistrar{}
}

func (r *nativeRegistrar) start() {
	r.calls = make(chan func())
	go func() {
		runtime.LockOSThread()
		// The thread is never unlocked: it exits with the process.
		for fn := range r.calls {
			fn()
		}
	}()
}

func (r *nativeRegistrar) do(fn func() error) error {
	r.once.Do(r.start)
	errc := make(chan error, 1)
	r.calls <- func() { errc <- fn() }
	return <-errc
}

func (r *nativeRegistrar) Available() error {
	if err := user32.Load(); err != nil {
		return fmt.Errorf("user32.dll: %w", err)
	}
	if err := procRegisterHotKey.Find(); err != nil {
		return err
	}
	return procUnregisterHotKey.Find()
}

func (r *nativeRegistrar) Register(id int, mods Mod, key Key) error {
	return r.do(func() error {
		ret, _, err := procRegisterHotKey.Call(0, uintptr(id), uintptr(mods), uintptr(key.VK))
		if ret != 0 {
			return nil
		}
		if errors.Is(err, errorHotkeyAlreadyRegistered) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("RegisterHotKey %s: %w", key.Name, err)
	})
}

func (r *nativeRegistrar) Unregister(id int) error {
	return r.do(func() error {
		ret, _, err := procUnregisterHotKey.Call(0, uintptr(id))
		if ret == 0 {
			return fmt.Errorf("UnregisterHotKey: %w", err)
		}
		return nil
	})
}
