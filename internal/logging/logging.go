package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return SessionFilePath(logsDir, appName, "log", sessionStart)
}

// SessionFilePath names a per-session file such as a log or database dump.
func SessionFilePath(dir, prefix, ext string, sessionStart time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.%s", prefix, sessionStart.Format("20060102_150405"), ext))
}

// OpenLogFile creates dir if needed, moves an existing file at path aside
// to path.old and opens a fresh file for appending.
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, fmt.Errorf("rotating log file: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
