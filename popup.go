package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"otterly/config"
	"otterly/log"
	"otterly/notify"
)

// uiProgram is the part of *tea.Program the popup drives.
type uiProgram interface {
	Run() (tea.Model, error)
	Quit()
	Send(msg tea.Msg)
}

type popupRun struct {
	prog uiProgram
	done chan struct{}
}

// Popup is the launcher surface. Every Show starts a fresh program on its
// own goroutine; that goroutine is the only one touching the model. Hide
// posts a quit onto it, waits for the teardown and then runs onClose.
//
// Hide must not be called from the model's Update: selections reach the
// controller through tea.Cmds, which run on their own goroutines.
type Popup struct {
	newProgram func(list []config.Shortcut, pick func(config.Shortcut)) uiProgram
	onPick     func(config.Shortcut)
	onClose    func()

	mu      sync.Mutex
	current *popupRun
}

func NewPopup(onPick func(config.Shortcut), onClose func()) *Popup {
	return &Popup{
		newProgram: func(list []config.Shortcut, pick func(config.Shortcut)) uiProgram {
			return tea.NewProgram(newLauncherModel(list, pick), tea.WithAltScreen())
		},
		onPick:  onPick,
		onClose: onClose,
	}
}

func (p *Popup) Show(list []config.Shortcut) {
	p.mu.Lock()
	if p.current != nil {
		p.mu.Unlock()
		return
	}
	run := &popupRun{done: make(chan struct{})}
	run.prog = p.newProgram(list, p.onPick)
	p.current = run
	p.mu.Unlock()

	go func() {
		if _, err := run.prog.Run(); err != nil {
			log.Errorf("launcher UI: %v", err)
			notify.Error("Launcher", err)
		}
		p.mu.Lock()
		if p.current == run {
			p.current = nil
		}
		p.mu.Unlock()
		if p.onClose != nil {
			p.onClose()
		}
		close(run.done)
	}()
}

func (p *Popup) Hide() {
	p.mu.Lock()
	run := p.current
	p.current = nil
	p.mu.Unlock()
	if run == nil {
		return
	}
	run.prog.Quit()
	<-run.done
}

func (p *Popup) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *Popup) Status(text string) {
	p.mu.Lock()
	run := p.current
	p.mu.Unlock()
	if run != nil {
		run.prog.Send(statusMsg{Text: text})
	}
}
