package main

import (
	"fmt"

	"otterly/capture"
	"otterly/log"
	"otterly/notify"
	"otterly/scanner"
	"otterly/tray"
)

// traySink reports capture and scan results through the tray and desktop
// notifications when there is no terminal view.
type traySink struct {
	ctl *Controller
}

func (s *traySink) HotkeyDetected(u capture.Update) {
	if u.New {
		tray.SetStatus("recorded " + u.Hotkey.Combo)
	}
}

func (s *traySink) ScanProgress(done, total int) {
	if total > 0 && done%(total/10+1) == 0 {
		tray.SetStatus(fmt.Sprintf("scanning %d%%", done*100/total))
	}
}

func (s *traySink) ScanComplete(r *scanner.Report, err error) {
	tray.SetScanning(false)
	if err != nil {
		return
	}
	notify.Info("Hotkey scan", fmt.Sprintf("%d hotkeys are registered by other programs", r.Stats.Taken))
}

func (s *traySink) MonitoringChanged(on bool) {
	tray.SetMonitoring(on)
	if on || s.ctl == nil {
		return
	}
	hk := s.ctl.Capture().Hotkeys()
	log.Infof("monitoring stopped with %d combinations", len(hk))
	if len(hk) > 0 {
		notify.Info("Hotkey monitor", fmt.Sprintf("Recorded %d key combinations", len(hk)))
	}
}
