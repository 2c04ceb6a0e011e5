package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: OTTERLY_LOG_PATH environment variable
	if envPath := os.Getenv("OTTERLY_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(kind, id string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("kind", kind).
		Str("session", id).
		Msg("session_start")
}

func SessionEnd(kind, id string, count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("kind", kind).
		Str("session", id).
		Int("count", count).
		Msg("session_end")
}

func DoubleTap(key string, gap time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("key", key).
		Float64("gap_ms", float64(gap)/float64(time.Millisecond)).
		Msg("double_tap")
}

func HotkeyDetected(session, combo string, count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Str("combo", combo).
		Int("count", count).
		Msg("hotkey_detected")
}

type ScanStats struct {
	Attempted int
	Released  int
	Taken     int
	Skipped   int
	Leaked    int
	Elapsed   time.Duration
}

func ScanComplete(s ScanStats) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if s.Leaked > 0 {
		ev = diagLog.Warn()
	}
	ev.Int("attempted", s.Attempted).
		Int("released", s.Released).
		Int("taken", s.Taken).
		Int("skipped", s.Skipped).
		Int("leaked", s.Leaked).
		Float64("elapsed_ms", float64(s.Elapsed)/float64(time.Millisecond)).
		Msg("scan_complete")
}

func Dispatch(name, kind, target string, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Error().Err(err)
	}
	ev.Str("shortcut", name).
		Str("kind", kind).
		Str("target", target).
		Msg("dispatch")
}
