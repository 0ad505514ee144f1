// Package logging provides the structured logger used by the
// braindump CLI and its watch daemon, backed by zerolog. Grounded on
// telnet2-opencode/go-opencode's internal/logging/logging.go
// (package-level Logger var, Init(Config), level-gated console
// output), trimmed to what cmd/braindump actually needs: console
// output only, no file-sink option, since a one-shot CLI has no
// equivalent of the teacher's long-lived server log file.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-level logger every command and the watcher
// write through.
var Logger zerolog.Logger

func init() {
	Init(false)
}

// Init (re)configures the package logger. verbose selects debug
// level; otherwise info level and above are logged.
func Init(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}

	Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ParseLevel parses a log level string case-insensitively, defaulting
// to info for anything unrecognized.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
