package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/quadro/internal/adapters/server"
	"github.com/evanschultz/quadro/internal/config"
	"github.com/evanschultz/quadro/internal/domain"
	"github.com/evanschultz/quadro/internal/tui"
)

// TestMain keeps CLI tests off dev-mode paths.
func TestMain(m *testing.M) {
	_ = os.Setenv("QUADRO_DEV_MODE", "false")
	os.Exit(m.Run())
}

type fakeProgram struct {
	runErr error
}

func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// testWorkspace returns db and config paths under one temp dir.
func testWorkspace(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "quadro.db"), filepath.Join(dir, "config.toml")
}

// runCLI runs the command tree against dbPath/cfgPath and returns stdout.
func runCLI(t *testing.T, dbPath, cfgPath string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"--db", dbPath, "--config", cfgPath}, args...)
	if err := run(context.Background(), full, &out, io.Discard); err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out.String()
}

func listTasksJSON(t *testing.T, dbPath, cfgPath string, args ...string) []domain.Task {
	t.Helper()
	out := runCLI(t, dbPath, cfgPath, append([]string{"task", "list", "--json"}, args...)...)
	var tasks []domain.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("decode list output %q: %v", out, err)
	}
	return tasks
}

func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.Contains(out.String(), "quadro") || !strings.Contains(out.String(), version) {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

func TestRunPaths(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "quadro-test", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	for _, want := range []string{"app: quadro-test", "dev_mode: false", "config:", "db:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in paths output, got %q", want, out.String())
		}
	}
}

func TestRunStartsProgram(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })

	var started tea.Model
	programFactory = func(m tea.Model) program {
		started = m
		return fakeProgram{}
	}

	dbPath, cfgPath := testWorkspace(t)
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, ok := started.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", started)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite file to exist: %v", err)
	}
}

func TestRunProgramError(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(tea.Model) program { return fakeProgram{runErr: io.ErrUnexpectedEOF} }

	dbPath, cfgPath := testWorkspace(t)
	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "run tui program") {
		t.Fatalf("expected wrapped program error, got %v", err)
	}
}

func TestRunTaskCommands(t *testing.T) {
	dbPath, cfgPath := testWorkspace(t)

	first := strings.TrimSpace(runCLI(t, dbPath, cfgPath, "task", "add", "--title", "Review payroll", "--origin", "hr", "--priority", "high"))
	second := strings.TrimSpace(runCLI(t, dbPath, cfgPath, "task", "add", "--title", "Collect invoice", "--origin", "debt_collection", "--due", "2026-03-01"))
	if first == "" || second == "" || first == second {
		t.Fatalf("expected two distinct ids, got %q and %q", first, second)
	}

	tasks := listTasksJSON(t, dbPath, cfgPath)
	if len(tasks) != 2 || tasks[0].ID != first || tasks[1].ID != second {
		t.Fatalf("expected lane order [first second], got %#v", tasks)
	}

	moved := runCLI(t, dbPath, cfgPath, "task", "move", second, "in_review")
	if !strings.Contains(moved, "IN_REVIEW #1") {
		t.Fatalf("unexpected move output %q", moved)
	}
	runCLI(t, dbPath, cfgPath, "task", "update", first, "--title", "Review payroll Q1", "--assignee", "u1")

	tasks = listTasksJSON(t, dbPath, cfgPath, "--status", "todo")
	if len(tasks) != 1 || tasks[0].Title != "Review payroll Q1" || tasks[0].ResponsavelUserID != "u1" {
		t.Fatalf("unexpected todo lane %#v", tasks)
	}
	tasks = listTasksJSON(t, dbPath, cfgPath, "--status", "in_review")
	if len(tasks) != 1 || tasks[0].ID != second || tasks[0].OrderIndex != 1 {
		t.Fatalf("unexpected review lane %#v", tasks)
	}

	table := runCLI(t, dbPath, cfgPath, "task", "list")
	for _, want := range []string{"Review payroll Q1", "Collect invoice", "2026-03-01"} {
		if !strings.Contains(table, want) {
			t.Fatalf("expected %q in table:\n%s", want, table)
		}
	}

	activity := runCLI(t, dbPath, cfgPath, "activity", "--limit", "10")
	for _, want := range []string{"create", "move", "update"} {
		if !strings.Contains(activity, want) {
			t.Fatalf("expected %q in activity:\n%s", want, activity)
		}
	}
}

func TestRunTaskCommandErrors(t *testing.T) {
	dbPath, cfgPath := testWorkspace(t)
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing title", []string{"task", "add", "--origin", "audit"}, "title"},
		{"bad origin", []string{"task", "add", "--title", "x", "--origin", "marketing"}, "origin"},
		{"move unknown", []string{"task", "move", "missing", "done"}, "not found"},
		{"move args", []string{"task", "move", "only-id"}, "accepts 2 arg"},
		{"empty update", []string{"task", "update", "id"}, "nothing to update"},
		{"unknown patch field", []string{"task", "update", "id", "--patch", `{"status":"DONE"}`}, "unknown patch field"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"--db", dbPath, "--config", cfgPath}, tc.args...)
			err := run(context.Background(), args, io.Discard, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRunExportImportYAML(t *testing.T) {
	dbPath, cfgPath := testWorkspace(t)
	id := strings.TrimSpace(runCLI(t, dbPath, cfgPath, "task", "add", "--title", "Audit trail", "--origin", "audit", "--status", "in_progress"))

	snapPath := filepath.Join(t.TempDir(), "exports", "board.yaml")
	runCLI(t, dbPath, cfgPath, "export", "--out", snapPath)
	content, err := os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "version: quadro.snapshot.v1") {
		t.Fatalf("expected yaml snapshot, got\n%s", content)
	}

	otherDB, otherCfg := testWorkspace(t)
	out := runCLI(t, otherDB, otherCfg, "import", "--in", snapPath)
	if strings.TrimSpace(out) != "imported 1 tasks" {
		t.Fatalf("unexpected import output %q", out)
	}
	tasks := listTasksJSON(t, otherDB, otherCfg)
	if len(tasks) != 1 || tasks[0].ID != id || tasks[0].Status != domain.StatusInProgress {
		t.Fatalf("unexpected imported tasks %#v", tasks)
	}

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "export", "--format", "json"}, &stdout, io.Discard); err != nil {
		t.Fatalf("run(export json) error = %v", err)
	}
	if !strings.Contains(stdout.String(), `"version": "quadro.snapshot.v1"`) {
		t.Fatalf("expected json snapshot on stdout, got %q", stdout.String())
	}

	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected --in required error")
	}
}

func TestRunExportAutoPath(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("export dir resolution is asserted through XDG_DATA_HOME")
	}
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("QUADRO_APP_NAME", "")
	dbPath, cfgPath := testWorkspace(t)
	runCLI(t, dbPath, cfgPath, "task", "add", "--title", "Audit trail", "--origin", "audit")

	out := strings.TrimSpace(runCLI(t, dbPath, cfgPath, "export", "--out", "auto", "--format", "yaml"))
	if filepath.Dir(out) != filepath.Join(dataHome, "quadro", "exports") {
		t.Fatalf("unexpected export path %q", out)
	}
	if !strings.HasPrefix(filepath.Base(out), "board-") || filepath.Ext(out) != ".yaml" {
		t.Fatalf("unexpected export file name %q", out)
	}
	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "title: Audit trail") {
		t.Fatalf("expected task in snapshot, got\n%s", content)
	}
}

func TestRunServeUsesConfig(t *testing.T) {
	orig := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = orig })

	var (
		gotCfg  server.Config
		gotDeps server.Dependencies
	)
	serveCommandRunner = func(_ context.Context, cfg server.Config, deps server.Dependencies) error {
		gotCfg = cfg
		gotDeps = deps
		return nil
	}

	dbPath, cfgPath := testWorkspace(t)
	content := "[server]\nhttp_bind = \"127.0.0.1:9999\"\nmcp_endpoint = \"/tools\"\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	runCLI(t, dbPath, cfgPath, "serve", "--api-endpoint", "/v2")

	if gotCfg.HTTPBind != "127.0.0.1:9999" || gotCfg.APIEndpoint != "/v2" || gotCfg.MCPEndpoint != "/tools" {
		t.Fatalf("unexpected serve config %#v", gotCfg)
	}
	if gotCfg.ServerName != "quadro" || gotDeps.Board == nil {
		t.Fatalf("unexpected serve deps %#v / %#v", gotCfg, gotDeps)
	}
	if len(gotDeps.Probes) != 1 || gotDeps.Probes[0].Name != "sqlite" {
		t.Fatalf("expected sqlite probe only, got %#v", gotDeps.Probes)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	dbPath, cfgPath := testWorkspace(t)
	if err := os.WriteFile(cfgPath, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "task", "list"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRunInvalidFlag(t *testing.T) {
	if err := run(context.Background(), []string{"--unknown-flag"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected flag parse error")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"unknown-command"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRuntimeLoggerDevFileSink(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC) }
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "quadro", true, config.LoggingConfig{
		Level:   "debug",
		DevFile: config.DevFileConfig{Enabled: true, Dir: dir},
	}, now)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	want := filepath.Join(dir, "quadro-20260221.log")
	if logger.DevLogPath() != want {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), want)
	}

	logger.SetConsoleEnabled(false)
	logger.Info("muted console", "k", "v")
	if console.Len() != 0 {
		t.Fatalf("expected muted console, got %q", console.String())
	}
	if logger.StoreLogger() == nil {
		t.Fatal("expected store logger")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	content, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "muted console") || !strings.Contains(string(content), "k=v") {
		t.Fatalf("unexpected dev log content %q", content)
	}
}

func TestRuntimeLoggerConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "quadro", false, config.LoggingConfig{
		Level:   "info",
		DevFile: config.DevFileConfig{Enabled: true, Dir: t.TempDir()},
	}, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if logger.DevLogPath() != "" {
		t.Fatalf("expected no dev file outside dev mode, got %q", logger.DevLogPath())
	}
	logger.Debug("hidden")
	logger.Warn("visible")
	if strings.Contains(console.String(), "hidden") || !strings.Contains(console.String(), "visible") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	if logger.StoreLogger() != logger.console {
		t.Fatal("expected console sink for store logging")
	}

	if _, err := newRuntimeLogger(io.Discard, "quadro", false, config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatal("expected invalid level error")
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"quadro":      "quadro",
		" my app ":    "my-app",
		"a/b:c":       "a-b-c",
		"///":         "quadro",
		"":            "quadro",
		"quadro-dev/": "quadro-dev",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatFor(t *testing.T) {
	cases := []struct {
		explicit, path, want string
	}{
		{"", "board.yaml", "yaml"},
		{"", "board.YML", "yaml"},
		{"", "-", "json"},
		{"yaml", "-", "yaml"},
		{"", "board.json", "json"},
	}
	for _, tc := range cases {
		if got := formatFor(tc.explicit, tc.path); got != tc.want {
			t.Fatalf("formatFor(%q, %q) = %q, want %q", tc.explicit, tc.path, got, tc.want)
		}
	}
}
