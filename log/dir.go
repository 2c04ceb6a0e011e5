package log

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "otterly"

func getDefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return defaultDirFor(runtime.GOOS, home, os.Getenv), nil
}

// defaultDirFor maps an OS to its per-user log location.
func defaultDirFor(goos, home string, getenv func(string) string) string {
	switch goos {
	case "windows":
		base := getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, appDir, "logs")
	case "darwin":
		return filepath.Join(home, "Library", "Logs", appDir)
	}
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appDir, "logs")
}
