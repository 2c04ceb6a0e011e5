// Package login registers the launcher to start in tray mode when the user
// logs in.
package login

import (
	"fmt"
	"os"
	"strings"
)

const appID = "otterly"

// startArgs are appended to the executable in every autostart entry.
var startArgs = []string{"-tray"}

// passEnv lists variables copied into the autostart entry so the session
// started at login sees the same config and log locations.
var passEnv = []string{"OTTERLY_CONFIG_DIR", "OTTERLY_LOG_PATH"}

func executable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

// commandLine quotes exe when needed and appends startArgs.
func commandLine(exe string) string {
	if strings.ContainsAny(exe, " \t") {
		exe = `"` + exe + `"`
	}
	return strings.Join(append([]string{exe}, startArgs...), " ")
}

func environment() map[string]string {
	env := map[string]string{}
	for _, key := range passEnv {
		if v := os.Getenv(key); v != "" {
			env[key] = v
		}
	}
	return env
}
