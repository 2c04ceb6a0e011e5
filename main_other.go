//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// Set up crash logging early, before any CGO code runs
	initCrashLog()
	mainthread.Init(run)
}

// runOnMain runs fn on the main OS thread, which the native tray loop and
// hotkey registration require on macOS.
func runOnMain(fn func()) { mainthread.Call(fn) }
