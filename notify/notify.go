// Package notify gives the user feedback outside the launcher surface:
// a short tone on trigger and desktop notifications for failures.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/beeep"

	"otterly/log"
)

const (
	AppName = "Otterly"

	tapFreq     = 1200
	tapDuration = 30
	errFreq     = 350
	errDuration = 80
)

var (
	muted  atomic.Bool
	silent atomic.Bool

	// swapped in tests
	beepFn   = beeep.Beep
	notifyFn = func(title, msg string) error { return beeep.Notify(title, msg, "") }

	wg sync.WaitGroup
)

// Mute turns off tones. Notifications still show.
func Mute() { muted.Store(true) }

// Disable turns off tones and notifications, for headless runs.
func Disable() {
	muted.Store(true)
	silent.Store(true)
}

func Tap() {
	if muted.Load() {
		return
	}
	async(func() {
		if err := beepFn(tapFreq, tapDuration); err != nil {
			log.Warnf("beep failed: %v", err)
		}
	})
}

// Error shows a desktop notification for a failure the user caused or
// needs to act on, and plays the error tone.
func Error(title string, err error) {
	if err == nil {
		return
	}
	log.Errorf("%s: %v", title, err)
	if !muted.Load() {
		async(func() { beepFn(errFreq, errDuration) })
	}
	if silent.Load() {
		return
	}
	msg := err.Error()
	async(func() {
		if nerr := notifyFn(AppName+": "+title, msg); nerr != nil {
			log.Warnf("notification failed: %v", nerr)
		}
	})
}

// Info shows a plain notification.
func Info(title, msg string) {
	if silent.Load() {
		return
	}
	async(func() {
		if err := notifyFn(AppName+": "+title, msg); err != nil {
			log.Warnf("notification failed: %v", err)
		}
	})
}

func async(fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

// Wait blocks until pending notifications have been handed to the OS.
func Wait() { wg.Wait() }
