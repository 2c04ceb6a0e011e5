package main

import (
	"otterly/capture"
	"otterly/config"
	"otterly/scanner"
)

// Surface abstracts the launcher display so the terminal popup and the
// headless test surface receive the same requests. Calls may come from any
// goroutine.
type Surface interface {
	Show(shortcuts []config.Shortcut)
	Hide()
	Visible() bool
	// Status shows a transient line, typically a dispatch failure.
	Status(text string)
}

// MonitorSink receives capture and scan progress for display.
type MonitorSink interface {
	HotkeyDetected(u capture.Update)
	ScanProgress(done, total int)
	ScanComplete(r *scanner.Report, err error)
	MonitoringChanged(on bool)
}
