// Package logging wires slog (console, file, OTel bridge) and the zerolog
// adapter used by the dispatcher.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
// The session ID keeps concurrent clients on one machine apart.
func LogFilePath(logsDir, appName, sessionID string, sessionStart time.Time) string {
	name := fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405"))
	if sessionID != "" {
		name = fmt.Sprintf("%s.%s.%s.log", appName, sessionStart.Format("20060102_150405"), shortID(sessionID))
	}
	return filepath.Join(logsDir, name)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
