//go:build windows

package keybus

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"otterly/log"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPeekMessageW        = user32.NewProc("PeekMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL = 13

	wmQuit       = 0x0012
	wmKeydown    = 0x0100
	wmKeyup      = 0x0101
	wmSyskeydown = 0x0104
	wmSyskeyup   = 0x0105

	pmNoRemove = 0x0000

	llkhfInjected = 0x10

	stopTimeout = 2 * time.Second
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type winMsg struct {
	hWnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       struct{ x, y int32 }
	lPrivate uint32
}

// Only one low-level hook per process; the callback is created once
// because NewCallback slots are never released.
var (
	activeEmit   atomic.Pointer[func(RawKeyEvent)]
	hookCallback = windows.NewCallback(lowLevelKeyboardProc)
)

func lowLevelKeyboardProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) >= 0 {
		if emit := activeEmit.Load(); emit != nil {
			kb := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			var dir Direction
			ok := true
			switch wParam {
			case wmKeydown, wmSyskeydown:
				dir = Down
			case wmKeyup, wmSyskeyup:
				dir = Up
			default:
				ok = false
			}
			if ok {
				(*emit)(RawKeyEvent{
					Key:       VKName(kb.vkCode),
					Direction: dir,
					Time:      time.Now(),
					Injected:  kb.flags&llkhfInjected != 0,
				})
			}
		}
	}
	r, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return r
}

type hookSource struct {
	mu       sync.Mutex
	threadID uint32
	done     chan struct{}
}

// NewSource returns the WH_KEYBOARD_LL hook source.
func NewSource() Source {
	return &hookSource{}
}

type hookReady struct {
	threadID uint32
	err      error
}

func (s *hookSource) Start(emit func(RawKeyEvent)) error {
	if err := user32.Load(); err != nil {
		return fmt.Errorf("%w: user32.dll: %v", ErrHookUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return fmt.Errorf("%w: hook already installed", ErrHookUnavailable)
	}
	if !activeEmit.CompareAndSwap(nil, &emit) {
		return fmt.Errorf("%w: another keyboard hook is active in this process", ErrHookUnavailable)
	}

	readyCh := make(chan hookReady, 1)
	done := make(chan struct{})
	go runHookLoop(readyCh, done)

	ready := <-readyCh
	if ready.err != nil {
		activeEmit.Store(nil)
		return fmt.Errorf("%w: %v", ErrHookUnavailable, ready.err)
	}
	s.threadID = ready.threadID
	s.done = done
	return nil
}

func (s *hookSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return nil
	}
	activeEmit.Store(nil)

	var stopErr error
	r, _, err := procPostThreadMessageW.Call(uintptr(s.threadID), wmQuit, 0, 0)
	if r == 0 {
		stopErr = fmt.Errorf("PostThreadMessageW: %w", err)
	}

	select {
	case <-s.done:
	case <-time.After(stopTimeout):
		stopErr = errors.Join(stopErr, fmt.Errorf("hook thread %d did not exit", s.threadID))
	}
	s.done = nil
	s.threadID = 0
	return stopErr
}

func runHookLoop(readyCh chan<- hookReady, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	threadID := windows.GetCurrentThreadId()

	// Force creation of the thread message queue so WM_QUIT can be posted.
	var qmsg winMsg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&qmsg)), 0, 0, 0, pmNoRemove)

	hook, _, err := procSetWindowsHookExW.Call(whKeyboardLL, hookCallback, 0, 0)
	if hook == 0 {
		readyCh <- hookReady{err: fmt.Errorf("SetWindowsHookExW: %w", err)}
		return
	}
	defer func() {
		if r, _, err := procUnhookWindowsHookEx.Call(hook); r == 0 {
			log.Errorf("UnhookWindowsHookEx failed: %v", err)
		}
	}()

	readyCh <- hookReady{threadID: threadID}

	for {
		var m winMsg
		ret, _, err := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			log.Warnf("GetMessageW failed, leaving hook loop: %v", err)
			return
		case 0:
			return
		}
	}
}
