package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"otterly/config"
)

const CacheFile = "hotkey_cache.json"

// Cache is the last scan result plus user-assigned names, so the list can
// be shown without rescanning.
type Cache struct {
	path string

	Hotkeys []string          `json:"hotkeys"`
	Names   map[string]string `json:"hotkey_names"`
}

// NewCache returns an empty cache stored in dir.
func NewCache(dir string) *Cache {
	return &Cache{path: filepath.Join(dir, CacheFile), Names: map[string]string{}}
}

// LoadCache reads dir/hotkey_cache.json. A missing file is an empty cache.
func LoadCache(dir string) (*Cache, error) {
	c := NewCache(dir)
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scan cache: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode scan cache %s: %w", c.path, err)
	}
	if c.Names == nil {
		c.Names = map[string]string{}
	}
	return c, nil
}

func (c *Cache) Path() string { return c.path }

func (c *Cache) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(c.path, data)
}

// FromReport replaces the cached list with a fresh scan. Names survive for
// combinations that are still taken.
func (c *Cache) FromReport(r *Report) {
	c.Hotkeys = r.Combos()
	keep := make(map[string]string, len(c.Names))
	for _, h := range c.Hotkeys {
		if n, ok := c.Names[h]; ok {
			keep[h] = n
		}
	}
	c.Names = keep
}

// Rename assigns a display name; an empty name removes it.
func (c *Cache) Rename(combo, name string) {
	name = strings.TrimSpace(name)
	if name == "" || name == combo {
		delete(c.Names, combo)
		return
	}
	c.Names[combo] = name
}

// Name returns the display name, or the combination itself.
func (c *Cache) Name(combo string) string {
	if n, ok := c.Names[combo]; ok {
		return n
	}
	return combo
}

// Filter returns the cached combinations whose combo or name contains
// text, case-insensitively. Empty text matches everything.
func (c *Cache) Filter(text string) []string {
	q := strings.ToLower(strings.TrimSpace(text))
	var out []string
	for _, h := range c.Hotkeys {
		if q == "" ||
			strings.Contains(strings.ToLower(h), q) ||
			strings.Contains(strings.ToLower(c.Names[h]), q) {
			out = append(out, h)
		}
	}
	return out
}
