// Package config is the launcher's JSON settings document.
//
// The document is treated as an opaque key-value tree: Get walks nested
// keys, and only the trigger and shortcuts sections have typed accessors.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"otterly/log"
)

const (
	FileName = "config.json"
	appDir   = "OtterlyLauncher"

	DefaultTriggerKey = "shift"
	DefaultMethod     = "double-tap"
	DefaultTimeoutMs  = 300
)

type Trigger struct {
	Key       string `json:"key"`
	Method    string `json:"method"`
	TimeoutMs int    `json:"timeout_ms"`
}

// Shortcut is one launcher entry as persisted. Exactly one of Path and
// Combo is meaningful; Hotkey is the legacy spelling of Combo.
type Shortcut struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Combo   string `json:"combo,omitempty"`
	Hotkey  string `json:"hotkey,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	Icon    string `json:"icon,omitempty"`
}

// IsEnabled treats a missing flag as enabled.
func (s Shortcut) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ComboString returns Combo, falling back to the legacy Hotkey field.
func (s Shortcut) ComboString() string {
	if s.Combo != "" {
		return s.Combo
	}
	return s.Hotkey
}

func defaultDocument() map[string]any {
	return map[string]any{
		"trigger": map[string]any{
			"key":        DefaultTriggerKey,
			"method":     DefaultMethod,
			"timeout_ms": DefaultTimeoutMs,
		},
		"window": map[string]any{
			"width":              200,
			"background_color":   "#F5F5F0",
			"button_color":       "#E8E8D8",
			"button_hover_color": "#D8D8C8",
			"text_color":         "#2C2C2C",
			"font_family":        "Segoe UI",
			"font_size":          11,
		},
		"shortcuts": []any{
			map[string]any{"name": "VS Code", "path": "code"},
			map[string]any{"name": "Notepad", "path": "notepad.exe"},
		},
	}
}

// DefaultDir resolves the configuration directory: OTTERLY_CONFIG_DIR,
// then %APPDATA%\OtterlyLauncher on Windows, then the OS user config dir.
func DefaultDir() (string, error) {
	if d := os.Getenv("OTTERLY_CONFIG_DIR"); d != "" {
		return d, nil
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDir), nil
		}
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "otterly"), nil
}

type Store struct {
	mu   sync.RWMutex
	dir  string
	path string
	doc  map[string]any
}

// Open loads dir/config.json, writing the default document when the file
// does not exist. A corrupt file is logged and replaced by defaults in
// memory; it is not overwritten until the next save.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	s := &Store{dir: dir, path: filepath.Join(dir, FileName)}
	if err := s.Reload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		s.doc = defaultDocument()
		if err := s.write(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }
func (s *Store) Dir() string  { return s.dir }

// Reload re-reads the file from disk.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		log.Warnf("config %s unreadable, using defaults: %v", s.path, err)
		doc = defaultDocument()
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// Get walks nested keys. ok is false when any key is missing.
func (s *Store) Get(keys ...string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cur any = s.doc
	for _, k := range keys {
		m, isMap := cur.(map[string]any)
		if !isMap {
			return nil, false
		}
		v, found := m[k]
		if !found {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func (s *Store) GetString(def string, keys ...string) string {
	v, ok := s.Get(keys...)
	if !ok {
		return def
	}
	if str, isStr := v.(string); isStr {
		return str
	}
	return def
}

func (s *Store) GetInt(def int, keys ...string) int {
	v, ok := s.Get(keys...)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// Set stores value under nested keys, creating intermediate objects.
func (s *Store) Set(value any, keys ...string) error {
	if len(keys) == 0 {
		return errors.New("config: Set needs at least one key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.doc
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = value
	return s.writeLocked()
}

func (s *Store) Trigger() Trigger {
	return Trigger{
		Key:       s.GetString(DefaultTriggerKey, "trigger", "key"),
		Method:    s.GetString(DefaultMethod, "trigger", "method"),
		TimeoutMs: s.GetInt(DefaultTimeoutMs, "trigger", "timeout_ms"),
	}
}

// Shortcuts returns the configured shortcuts in order. Entries that do not
// decode are skipped and logged.
func (s *Store) Shortcuts() []Shortcut {
	raw, ok := s.Get("shortcuts")
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]Shortcut, 0, len(items))
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var sc Shortcut
		if err := json.Unmarshal(data, &sc); err != nil {
			log.Warnf("shortcut %d skipped: %v", i, err)
			continue
		}
		out = append(out, sc)
	}
	return out
}

// SaveShortcuts replaces the shortcuts section and writes the file.
func (s *Store) SaveShortcuts(list []Shortcut) error {
	items := make([]any, 0, len(list))
	for _, sc := range list {
		data, err := json.Marshal(sc)
		if err != nil {
			return fmt.Errorf("encode shortcut %q: %w", sc.Name, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		items = append(items, m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc["shortcuts"] = items
	return s.writeLocked()
}

// AddShortcuts appends entries whose name is not already configured and
// reports how many were added.
func (s *Store) AddShortcuts(list []Shortcut) (int, error) {
	current := s.Shortcuts()
	names := make(map[string]bool, len(current))
	for _, sc := range current {
		names[sc.Name] = true
	}
	added := 0
	for _, sc := range list {
		if sc.Name == "" || names[sc.Name] {
			continue
		}
		names[sc.Name] = true
		current = append(current, sc)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, s.SaveShortcuts(current)
}

func (s *Store) write() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked()
}

func (s *Store) writeLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return WriteFileAtomic(s.path, append(data, '\n'))
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
