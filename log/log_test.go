package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func readDiag(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestResolveDirFlag(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "mylog")
	got, err := ResolveDir(abs)
	if err != nil {
		t.Fatal(err)
	}
	if got != abs {
		t.Errorf("got %q, want %q", got, abs)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "otterly-env-log")
	t.Setenv("OTTERLY_LOG_PATH", abs)
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != abs {
		t.Errorf("got %q, want %q", got, abs)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("OTTERLY_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFile(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(tmp, "diagnostics_log.txt")); err != nil {
		t.Errorf("diagnostics_log.txt not created: %v", err)
	}
}

func TestStructuredEvents(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	DoubleTap("shift", 150*time.Millisecond)
	HotkeyDetected("s1", "Ctrl+Shift+R", 2)
	ScanComplete(ScanStats{Attempted: 10, Released: 8, Taken: 2})
	Dispatch("Notepad", "launch", "notepad.exe", errors.New("boom"))
	Close()

	out := readDiag(t, tmp)
	for _, want := range []string{"double_tap", "gap_ms=150", "combo=Ctrl+Shift+R", "scan_complete", "taken=2", "dispatch", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q, got:\n%s", want, out)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	// must not panic
	Info("ignored")
	Errorf("ignored %d", 1)
	DoubleTap("shift", time.Millisecond)
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

func TestDefaultDirFor(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }
	home := filepath.FromSlash("/home/u")

	tests := []struct {
		goos string
		env  map[string]string
		want string
	}{
		{"linux", nil, filepath.Join(home, ".config", "otterly", "logs")},
		{"linux", map[string]string{"XDG_CONFIG_HOME": "/xdg"}, filepath.Join("/xdg", "otterly", "logs")},
		{"darwin", nil, filepath.Join(home, "Library", "Logs", "otterly")},
		{"windows", nil, filepath.Join(home, "AppData", "Local", "otterly", "logs")},
		{"windows", map[string]string{"LOCALAPPDATA": "/lad"}, filepath.Join("/lad", "otterly", "logs")},
	}
	for _, tt := range tests {
		env = tt.env
		if got := defaultDirFor(tt.goos, home, getenv); got != tt.want {
			t.Errorf("%s %v: got %s, want %s", tt.goos, tt.env, got, tt.want)
		}
	}
}
