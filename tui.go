package main

import (
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"otterly/capture"
	"otterly/config"
	"otterly/log"
	"otterly/scanner"
)

// TUI message types
type statusMsg struct{ Text string }
type hotkeyMsg struct{ Update capture.Update }
type monitoringMsg struct{ On bool }
type monitorSwitchedMsg struct {
	On  bool
	Err error
}
type scanProgressMsg struct{ Done, Total int }
type scanDoneMsg struct {
	Report *scanner.Report
	Err    error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("37"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("30"))
	itemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

func helpLine(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true).Render(pairs[i])+
			helpStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, helpStyle.Render("  ·  "))
}

func moveCursor(cursor, n int, key string) int {
	switch key {
	case "up", "k":
		if cursor > 0 {
			cursor--
		}
	case "down", "j":
		if cursor < n-1 {
			cursor++
		}
	case "home", "g":
		cursor = 0
	case "end", "G":
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}

// --- launcher ---

type launcherModel struct {
	items  []config.Shortcut
	cursor int
	status string
	busy   bool
	pick   func(config.Shortcut)
}

func newLauncherModel(items []config.Shortcut, pick func(config.Shortcut)) launcherModel {
	return launcherModel{items: items, pick: pick}
}

func (m launcherModel) Init() tea.Cmd { return nil }

func (m launcherModel) choose(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.items) || m.pick == nil {
		return m, nil
	}
	sc := m.items[i]
	m.cursor = i
	m.busy = true
	m.status = ""
	pick := m.pick
	return m, func() tea.Msg {
		pick(sc)
		return nil
	}
}

func (m launcherModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		case "enter":
			return m.choose(m.cursor)
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			return m.choose(int(key[0] - '1'))
		default:
			m.cursor = moveCursor(m.cursor, len(m.items), key)
		}
	case statusMsg:
		m.busy = false
		m.status = msg.Text
	}
	return m, nil
}

func (m launcherModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Otterly") + "\n\n")
	if len(m.items) == 0 {
		b.WriteString(dimStyle.Render("No shortcuts configured.") + "\n")
	}
	for i, sc := range m.items {
		line := fmt.Sprintf("%d. %s", i+1, sc.Name)
		if i == m.cursor {
			line = cursorStyle.Render(" " + line + " ")
		} else {
			line = itemStyle.Render(" " + line + " ")
		}
		b.WriteString(line + " " + dimStyle.Render(shortcutTarget(sc)) + "\n")
	}
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(errStyle.Render(m.status) + "\n")
	} else if m.busy {
		b.WriteString(dimStyle.Render("launching…") + "\n")
	}
	b.WriteString(helpLine("↑/↓", "move", "enter", "launch", "esc", "close") + "\n")
	return b.String()
}

func shortcutTarget(sc config.Shortcut) string {
	if c := sc.ComboString(); c != "" {
		return "[" + c + "]"
	}
	return sc.Path
}

// --- monitor ---

// monitorBackend is what the monitor view drives.
type monitorBackend interface {
	Hotkeys() []capture.DetectedHotkey
	Select(combo string, on bool) error
	Rename(combo, name string) error
	Clear()
	Monitoring() bool
	SetMonitoring(on bool) error
	AddSelected() (int, error)
}

type monitorModel struct {
	be       monitorBackend
	rows     []capture.DetectedHotkey
	cursor   int
	editing  bool
	input    string
	status   string
	statusOK bool
	on       bool
}

func newMonitorModel(be monitorBackend) monitorModel {
	return monitorModel{be: be, on: be.Monitoring()}
}

func (m monitorModel) Init() tea.Cmd { return nil }

func (m monitorModel) current() (capture.DetectedHotkey, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return capture.DetectedHotkey{}, false
	}
	return m.rows[m.cursor], true
}

func (m monitorModel) refresh() monitorModel {
	m.rows = m.be.Hotkeys()
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

func (m monitorModel) setStatus(text string, ok bool) monitorModel {
	m.status, m.statusOK = text, ok
	return m
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case hotkeyMsg:
		return m.refresh(), nil
	case monitoringMsg:
		m.on = msg.On
		return m, nil
	case monitorSwitchedMsg:
		if msg.Err != nil {
			return m.setStatus(msg.Err.Error(), false), nil
		}
		m.on = msg.On
		if m.on {
			return m.setStatus("monitoring…", true), nil
		}
		return m.setStatus("stopped", true), nil
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		switch key := msg.String(); key {
		case "ctrl+c", "q":
			if !m.on {
				return m, tea.Quit
			}
			be := m.be
			return m, func() tea.Msg {
				if err := be.SetMonitoring(false); err != nil {
					log.Warnf("stop monitoring: %v", err)
				}
				return tea.Quit()
			}
		case "s":
			return m, switchMonitoring(m.be, !m.on)
		case " ", "x":
			if row, ok := m.current(); ok {
				m.be.Select(row.Combo, !row.Selected)
				return m.refresh(), nil
			}
		case "r":
			if row, ok := m.current(); ok {
				m.editing = true
				m.input = row.DisplayName
			}
		case "c":
			m.be.Clear()
			return m.refresh().setStatus("cleared", true), nil
		case "a":
			n, err := m.be.AddSelected()
			if err != nil {
				return m.setStatus(err.Error(), false), nil
			}
			return m.setStatus(fmt.Sprintf("added %d to launcher", n), true), nil
		default:
			m.cursor = moveCursor(m.cursor, len(m.rows), key)
		}
	}
	return m, nil
}

// switchMonitoring runs outside Update: the controller reports the change
// back through the sink, which sends to this same program.
func switchMonitoring(be monitorBackend, on bool) tea.Cmd {
	return func() tea.Msg {
		return monitorSwitchedMsg{On: on, Err: be.SetMonitoring(on)}
	}
}

func (m monitorModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if row, ok := m.current(); ok {
			m.be.Rename(row.Combo, strings.TrimSpace(m.input))
		}
		m.editing = false
		return m.refresh(), nil
	case tea.KeyEsc:
		m.editing = false
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder
	state := dimStyle.Render("○ idle")
	if m.on {
		state = recStyle.Render("● monitoring")
	}
	b.WriteString(titleStyle.Render("Hotkey monitor") + "  " + state + "\n\n")
	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("Press key combinations to record them.") + "\n")
	}
	for i, row := range m.rows {
		mark := "[ ]"
		if row.Selected {
			mark = selectedStyle.Render("[x]")
		}
		name := row.Combo
		if row.DisplayName != "" && row.DisplayName != row.Combo {
			name = row.DisplayName + dimStyle.Render(" ("+row.Combo+")")
		}
		if m.editing && i == m.cursor {
			name = m.input + "▏"
		}
		line := fmt.Sprintf("%s %-24s ×%d", mark, name, row.Count)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	if m.status != "" {
		st := errStyle
		if m.statusOK {
			st = okStyle
		}
		b.WriteString(st.Render(m.status) + "\n")
	}
	b.WriteString(helpLine("s", "start/stop", "space", "select", "r", "rename", "a", "add to launcher", "c", "clear", "q", "quit") + "\n")
	return b.String()
}

// --- scan ---

type scanModel struct {
	cache    *scanner.Cache
	start    func()
	running  bool
	done     int
	total    int
	last     *scanner.Report
	err      error
	filter   string
	typing   bool
	renaming bool
	input    string
	cursor   int
	// add copies combinations into the launcher; nil hides selection.
	add      func(combos []string) (int, error)
	selected map[string]bool
	status   string
}

func newScanModel(cache *scanner.Cache, start func(), add func([]string) (int, error)) scanModel {
	return scanModel{cache: cache, start: start, add: add, selected: map[string]bool{}}
}

// chosen lists the selected combinations in cache order.
func (m scanModel) chosen() []string {
	var out []string
	for _, h := range m.cache.Hotkeys {
		if m.selected[h] {
			out = append(out, h)
		}
	}
	return out
}

// Init starts a scan straight away when nothing is cached.
func (m scanModel) Init() tea.Cmd {
	if len(m.cache.Hotkeys) == 0 && m.start != nil {
		start := m.start
		return func() tea.Msg {
			start()
			return scanProgressMsg{Done: 0, Total: scanner.Total()}
		}
	}
	return nil
}

func (m scanModel) visible() []string { return m.cache.Filter(m.filter) }

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scanProgressMsg:
		m.running = msg.Done < msg.Total
		m.done, m.total = msg.Done, msg.Total
	case scanDoneMsg:
		m.running = false
		m.err = msg.Err
		if msg.Err == nil && msg.Report != nil {
			m.last = msg.Report
			m.cache.FromReport(msg.Report)
			m.cursor = 0
			m.selected = map[string]bool{}
		}
	case tea.KeyMsg:
		if m.typing || m.renaming {
			return m.updateInput(msg)
		}
		rows := m.visible()
		switch key := msg.String(); key {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "s":
			if !m.running && m.start != nil {
				m.running = true
				m.done, m.total = 0, scanner.Total()
				m.err = nil
				start := m.start
				return m, func() tea.Msg {
					start()
					return nil
				}
			}
		case "/":
			m.typing = true
		case "r":
			if m.cursor < len(rows) {
				m.renaming = true
				m.input = m.cache.Names[rows[m.cursor]]
			}
		case " ", "x":
			if m.add != nil && m.cursor < len(rows) {
				h := rows[m.cursor]
				if m.selected[h] {
					delete(m.selected, h)
				} else {
					m.selected[h] = true
				}
			}
		case "a":
			if m.add == nil {
				break
			}
			chosen := m.chosen()
			if len(chosen) == 0 {
				m.status = "nothing selected"
				break
			}
			n, err := m.add(chosen)
			if err != nil {
				m.err = err
				break
			}
			m.selected = map[string]bool{}
			m.status = fmt.Sprintf("added %d to launcher", n)
		default:
			m.cursor = moveCursor(m.cursor, len(rows), key)
		}
	}
	return m, nil
}

func (m scanModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	edit := &m.filter
	if m.renaming {
		edit = &m.input
	}
	switch msg.Type {
	case tea.KeyEnter:
		if m.renaming {
			if rows := m.visible(); m.cursor < len(rows) {
				m.cache.Rename(rows[m.cursor], m.input)
				if err := m.cache.Save(); err != nil {
					m.err = err
				}
			}
		}
		m.typing, m.renaming = false, false
		m.cursor = 0
	case tea.KeyEsc:
		if m.typing {
			m.filter = ""
		}
		m.typing, m.renaming = false, false
	case tea.KeyBackspace:
		if r := []rune(*edit); len(r) > 0 {
			*edit = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		*edit += " "
	case tea.KeyRunes:
		*edit += string(msg.Runes)
	}
	return m, nil
}

func (m scanModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Registered hotkeys") + "\n\n")
	if m.running {
		b.WriteString(progressBar(m.done, m.total, 30) + "\n\n")
	}
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()) + "\n\n")
	}
	if m.last != nil {
		s := m.last.Stats
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d taken · %d free · %d skipped · %d leaked · %v",
			s.Taken, s.Released, s.Skipped, s.Leaked, s.Elapsed.Round(1e6))) + "\n\n")
	}
	rows := m.visible()
	if len(rows) == 0 && !m.running {
		b.WriteString(dimStyle.Render("No registered hotkeys found.") + "\n")
	}
	for i, h := range rows {
		name := m.cache.Name(h)
		if m.renaming && i == m.cursor {
			name = m.input + "▏"
		}
		line := fmt.Sprintf("%-26s %s", h, name)
		if name == h {
			line = h
		}
		if m.add != nil {
			mark := "[ ] "
			if m.selected[h] {
				mark = selectedStyle.Render("[x]") + " "
			}
			line = mark + line
		}
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	if m.typing || m.filter != "" {
		b.WriteString("filter: " + m.filter)
		if m.typing {
			b.WriteString("▏")
		}
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(okStyle.Render(m.status) + "\n")
	}
	if m.add != nil {
		b.WriteString(helpLine("s", "rescan", "/", "search", "r", "rename", "space", "select", "a", "add to launcher", "q", "quit") + "\n")
	} else {
		b.WriteString(helpLine("s", "rescan", "/", "search", "r", "rename", "q", "quit") + "\n")
	}
	return b.String()
}

func progressBar(done, total, width int) string {
	if total <= 0 {
		return ""
	}
	filled := done * width / total
	return okStyle.Render(strings.Repeat("▰", filled)) +
		dimStyle.Render(strings.Repeat("▱", width-filled)) +
		fmt.Sprintf(" %d/%d", done, total)
}

// renderReport formats a scan grouped by modifier, for non-interactive
// output.
func renderReport(r *scanner.Report) string {
	var b strings.Builder
	groups := r.ByModifier()
	if len(groups) == 0 {
		b.WriteString("  No registered hotkeys found.\n")
	}
	for _, g := range groups {
		label := g.Modifier
		if label == "" {
			label = "(no modifier)"
		}
		b.WriteString("  " + titleStyle.Render(label+":") + "\n")
		b.WriteString("    " + strings.Join(g.Keys, ", ") + "\n\n")
	}
	s := r.Stats
	b.WriteString(dimStyle.Render(fmt.Sprintf("Scanned %d combinations: %d taken, %d free, %d skipped.",
		s.Attempted, s.Taken, s.Released, s.Skipped)) + "\n")
	if len(r.LeakedCombos) > 0 {
		b.WriteString(errStyle.Render("Could not release: "+strings.Join(r.LeakedCombos, ", ")) + "\n")
	}
	return b.String()
}

// tuiSink forwards controller output to a running program.
type tuiSink struct {
	mu   sync.Mutex
	prog *tea.Program
}

func (s *tuiSink) attach(p *tea.Program) {
	s.mu.Lock()
	s.prog = p
	s.mu.Unlock()
}

func (s *tuiSink) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.prog
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (s *tuiSink) HotkeyDetected(u capture.Update) { s.send(hotkeyMsg{Update: u}) }
func (s *tuiSink) ScanProgress(done, total int)    { s.send(scanProgressMsg{Done: done, Total: total}) }
func (s *tuiSink) ScanComplete(r *scanner.Report, err error) {
	s.send(scanDoneMsg{Report: r, Err: err})
}
func (s *tuiSink) MonitoringChanged(on bool) { s.send(monitoringMsg{On: on}) }

// controllerMonitor adapts a Controller to the monitor view.
type controllerMonitor struct{ *Controller }

func (c controllerMonitor) Hotkeys() []capture.DetectedHotkey { return c.Capture().Hotkeys() }
func (c controllerMonitor) Select(combo string, on bool) error {
	return c.Capture().Select(combo, on)
}
func (c controllerMonitor) Rename(combo, name string) error { return c.Capture().Rename(combo, name) }
func (c controllerMonitor) Clear()                          { c.Capture().Clear() }
