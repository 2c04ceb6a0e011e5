package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"otterly/config"
	"otterly/log"
)

// shortcutStore is what the manage view edits.
type shortcutStore interface {
	Shortcuts() []config.Shortcut
	SaveShortcuts([]config.Shortcut) error
}

// manageModel edits the shortcut list in memory; nothing is written until
// the user saves.
type manageModel struct {
	store    shortcutStore
	items    []config.Shortcut
	cursor   int
	renaming bool
	input    string
	dirty    bool
	leaving  bool
	status   string
	statusOK bool
}

func newManageModel(store shortcutStore) manageModel {
	return manageModel{store: store, items: store.Shortcuts()}
}

func (m manageModel) Init() tea.Cmd { return nil }

func (m manageModel) setStatus(text string, ok bool) manageModel {
	m.status, m.statusOK = text, ok
	return m
}

func (m manageModel) nameTaken(name string, except int) bool {
	for i, sc := range m.items {
		if i != except && sc.Name == name {
			return true
		}
	}
	return false
}

func (m manageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.renaming {
		return m.updateRename(key)
	}
	k := key.String()
	if k != "q" && k != "esc" {
		m.leaving = false
	}
	switch k {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		if m.dirty && !m.leaving {
			m.leaving = true
			return m.setStatus("unsaved changes: s saves, q again discards", false), nil
		}
		return m, tea.Quit
	case " ", "x":
		if m.cursor < len(m.items) {
			on := !m.items[m.cursor].IsEnabled()
			m.items = append([]config.Shortcut(nil), m.items...)
			m.items[m.cursor].Enabled = &on
			m.dirty = true
			m.status = ""
		}
	case "r":
		if m.cursor < len(m.items) {
			m.renaming = true
			m.input = m.items[m.cursor].Name
		}
	case "d", "delete":
		if m.cursor < len(m.items) {
			name := m.items[m.cursor].Name
			items := make([]config.Shortcut, 0, len(m.items)-1)
			items = append(items, m.items[:m.cursor]...)
			m.items = append(items, m.items[m.cursor+1:]...)
			if m.cursor >= len(m.items) && m.cursor > 0 {
				m.cursor--
			}
			m.dirty = true
			return m.setStatus("deleted "+name, true), nil
		}
	case "s":
		if err := m.store.SaveShortcuts(m.items); err != nil {
			return m.setStatus(err.Error(), false), nil
		}
		log.Infof("saved %d shortcuts", len(m.items))
		m.dirty = false
		return m.setStatus(fmt.Sprintf("saved %d shortcuts", len(m.items)), true), nil
	default:
		m.cursor = moveCursor(m.cursor, len(m.items), k)
	}
	return m, nil
}

func (m manageModel) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.renaming = false
		name := strings.TrimSpace(m.input)
		if name == "" || name == m.items[m.cursor].Name {
			return m, nil
		}
		if m.nameTaken(name, m.cursor) {
			return m.setStatus(fmt.Sprintf("%q is already used", name), false), nil
		}
		m.items = append([]config.Shortcut(nil), m.items...)
		m.items[m.cursor].Name = name
		m.dirty = true
		m.status = ""
	case tea.KeyEsc:
		m.renaming = false
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

func (m manageModel) View() string {
	var b strings.Builder
	title := titleStyle.Render("Shortcuts")
	if m.dirty {
		title += dimStyle.Render("  (modified)")
	}
	b.WriteString(title + "\n\n")
	if len(m.items) == 0 {
		b.WriteString(dimStyle.Render("No shortcuts configured.") + "\n")
	}
	for i, sc := range m.items {
		mark := selectedStyle.Render("[x]")
		if !sc.IsEnabled() {
			mark = "[ ]"
		}
		name := sc.Name
		if m.renaming && i == m.cursor {
			name = m.input + "▏"
		}
		line := fmt.Sprintf("%s %-24s", mark, name)
		switch {
		case i == m.cursor:
			line = cursorStyle.Render(line)
		case !sc.IsEnabled():
			line = dimStyle.Render(line)
		}
		b.WriteString(line + " " + dimStyle.Render(shortcutTarget(sc)) + "\n")
	}
	b.WriteString("\n")
	if m.status != "" {
		st := errStyle
		if m.statusOK {
			st = okStyle
		}
		b.WriteString(st.Render(m.status) + "\n")
	}
	b.WriteString(helpLine("space", "enable", "r", "rename", "d", "delete", "s", "save", "q", "quit") + "\n")
	return b.String()
}

// runManage shows the shortcut manager until the user quits it.
func runManage(store *config.Store) {
	if err := store.Reload(); err != nil {
		log.Warnf("config reload: %v", err)
	}
	p := tea.NewProgram(newManageModel(store), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Errorf("manage UI: %v", err)
	}
}
