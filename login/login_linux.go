//go:build linux

package login

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// desktopPath follows the XDG autostart convention.
func desktopPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, "autostart", appID+".desktop")
}

func Enabled() bool {
	_, err := os.Stat(desktopPath())
	return err == nil
}

func Enable() error {
	exe, err := executable()
	if err != nil {
		return err
	}
	return writeDesktopEntry(desktopPath(), exe)
}

func writeDesktopEntry(path, exe string) error {
	vars := environment()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cmd := commandLine(exe)
	if len(keys) > 0 {
		var env strings.Builder
		env.WriteString("env")
		for _, k := range keys {
			fmt.Fprintf(&env, " %s=%q", k, vars[k])
		}
		cmd = env.String() + " " + cmd
	}

	entry := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=Otterly
Comment=Double-tap launcher
Exec=%s
Terminal=true
X-GNOME-Autostart-enabled=true
`, cmd)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create autostart dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(entry), 0644); err != nil {
		return fmt.Errorf("write desktop entry: %w", err)
	}
	return nil
}

func Disable() error {
	if err := os.Remove(desktopPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove desktop entry: %w", err)
	}
	return nil
}
