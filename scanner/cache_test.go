package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheRoundTripKeepsNames(t *testing.T) {
	dir := t.TempDir()
	c, err := LoadCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Hotkeys) != 0 {
		t.Fatal("new cache not empty")
	}

	c.FromReport(&Report{Taken: []Taken{{Combo: "Shift+Win+S"}, {Combo: "Ctrl+Alt+T"}}})
	c.Rename("Shift+Win+S", "Snipping tool")
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name("Shift+Win+S") != "Snipping tool" || loaded.Name("Ctrl+Alt+T") != "Ctrl+Alt+T" {
		t.Errorf("names = %v", loaded.Names)
	}

	// A rescan drops names for combinations that are no longer taken.
	loaded.Rename("Ctrl+Alt+T", "Terminal")
	loaded.FromReport(&Report{Taken: []Taken{{Combo: "Ctrl+Alt+T"}}})
	if _, ok := loaded.Names["Shift+Win+S"]; ok {
		t.Error("stale name survived rescan")
	}
	if loaded.Name("Ctrl+Alt+T") != "Terminal" {
		t.Error("name lost for a combination still taken")
	}
}

func TestCacheFileFormat(t *testing.T) {
	dir := t.TempDir()
	body := `{"hotkeys":["Win+E"],"hotkey_names":{"Win+E":"Explorer"}}`
	os.WriteFile(filepath.Join(dir, CacheFile), []byte(body), 0644)
	c, err := LoadCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name("Win+E") != "Explorer" {
		t.Errorf("Name = %q", c.Name("Win+E"))
	}
}

func TestCacheFilter(t *testing.T) {
	c := &Cache{
		Hotkeys: []string{"Shift+Win+S", "Ctrl+Alt+T", "Win+E"},
		Names:   map[string]string{"Ctrl+Alt+T": "Terminal"},
	}
	tests := []struct {
		q    string
		want int
	}{
		{"", 3},
		{"win", 2},
		{"TERM", 1},
		{"zzz", 0},
	}
	for _, tt := range tests {
		if got := c.Filter(tt.q); len(got) != tt.want {
			t.Errorf("Filter(%q) = %v, want %d results", tt.q, got, tt.want)
		}
	}
}

func TestRenameEmptyClears(t *testing.T) {
	c := &Cache{Names: map[string]string{"Win+E": "Explorer"}}
	c.Rename("Win+E", "  ")
	if c.Name("Win+E") != "Win+E" {
		t.Error("empty rename should clear the name")
	}
}

func TestLoadCacheCorrupt(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, CacheFile), []byte("nope"), 0644)
	if _, err := LoadCache(dir); err == nil {
		t.Error("expected decode error")
	}
}
