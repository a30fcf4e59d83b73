package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/quadro/internal/config"
)

// runtimeLogger fans log events to a styled console sink and an optional dev-file sink.
type runtimeLogger struct {
	console        *charmLog.Logger
	file           *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	devLog         string
}

// newRuntimeLogger configures sinks from CLI and config state. The dev-file
// sink only exists when both dev mode and logging.dev_file.enabled are set.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	rawLevel := strings.TrimSpace(cfg.Level)
	if rawLevel == "" {
		rawLevel = "info"
	}
	level, err := charmLog.ParseLevel(rawLevel)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	logger := &runtimeLogger{
		console: charmLog.NewWithOptions(stderr, charmLog.Options{
			Level:           level,
			Prefix:          appName,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       charmLog.TextFormatter,
		}),
		consoleEnabled: true,
	}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	path, err := devLogFilePath(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}
	logger.file = charmLog.NewWithOptions(f, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.closeFile = f.Close
	logger.devLog = path
	return logger, nil
}

// DevLogPath returns the active dev log file path, or "".
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled mutes or restores the console sink. The TUI mutes it while
// it owns the terminal.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

// ConsoleEnabled reports whether console output is live.
func (l *runtimeLogger) ConsoleEnabled() bool {
	return l != nil && l.consoleEnabled
}

// StoreLogger picks the single sink handed to the store and notifier: the dev
// file when present, otherwise the console unless it is muted.
func (l *runtimeLogger) StoreLogger() *charmLog.Logger {
	switch {
	case l == nil:
		return charmLog.New(io.Discard)
	case l.file != nil:
		return l.file
	case l.consoleEnabled:
		return l.console
	default:
		return charmLog.New(io.Discard)
	}
}

func (l *runtimeLogger) sinks() []*charmLog.Logger {
	out := make([]*charmLog.Logger, 0, 2)
	if l.consoleEnabled && l.console != nil {
		out = append(out, l.console)
	}
	if l.file != nil {
		out = append(out, l.file)
	}
	return out
}

func (l *runtimeLogger) log(level charmLog.Level, msg string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks() {
		sink.Log(level, msg, keyvals...)
	}
}

func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	l.log(charmLog.DebugLevel, msg, keyvals...)
}

func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	l.log(charmLog.InfoLevel, msg, keyvals...)
}

func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	l.log(charmLog.WarnLevel, msg, keyvals...)
}

func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	l.log(charmLog.ErrorLevel, msg, keyvals...)
}

// devLogFilePath resolves <workspace>/<dir>/<app>-YYYYMMDD.log. Relative dirs
// anchor at the nearest ancestor holding go.mod or .git.
func devLogFilePath(dir, appName string, now time.Time) (string, error) {
	base := strings.TrimSpace(dir)
	if base == "" {
		base = ".quadro/log"
	}
	if !filepath.IsAbs(base) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		base = filepath.Join(workspaceRootFrom(cwd), base)
	}
	name := fmt.Sprintf("%s-%s.log", sanitizeLogFileStem(appName), now.Format("20060102"))
	return filepath.Join(filepath.Clean(base), name), nil
}

func workspaceRootFrom(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	if start == "" {
		return "."
	}
	for dir := start; ; {
		for _, marker := range []string{"go.mod", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func sanitizeLogFileStem(appName string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem := strings.Trim(replacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return "quadro"
	}
	return stem
}
