// Command quadro runs the task board TUI, its CLI, and the HTTP/MCP server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/evanschultz/quadro/internal/adapters/server"
	"github.com/evanschultz/quadro/internal/platform"
	"github.com/evanschultz/quadro/internal/tui"
)

var version = "dev"

type program interface {
	Run() (tea.Model, error)
}

// programFactory is swapped in tests so no terminal is needed.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner is swapped in tests so no listener is opened.
var serveCommandRunner = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
	return server.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes the command tree without fang's styling; tests drive it directly.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	opts := &rootOptions{
		appName: platform.DefaultAppName,
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("QUADRO_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("QUADRO_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:           "quadro",
		Short:         "Kanban board for back-office tasks",
		Long:          "quadro keeps compliance, HR, and collection tasks on a four-lane board.\nWith no subcommand it opens the terminal board.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCommand(opts),
		newTaskCommand(opts, stderr),
		newServeCommand(opts, stderr),
		newExportCommand(opts, stderr),
		newImportCommand(opts, stderr),
		newActivityCommand(opts, stderr),
	)
	return root
}

// runTUI opens the board and blocks until the program exits.
func runTUI(ctx context.Context, opts *rootOptions, stderr io.Writer) error {
	env, err := openRuntime(ctx, opts, "tui", stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	keys := env.cfg.Keys
	m := tui.NewModel(
		env.store,
		tui.WithLanes(env.lanes),
		tui.WithWIPWarnings(env.cfg.Board.ShowWIPWarnings),
		tui.WithDragConfig(env.drag),
		tui.WithKeyConfig(tui.KeyConfig{
			NewTask:  keys.NewTask,
			TaskInfo: keys.TaskInfo,
			Fetch:    keys.Fetch,
			Activity: keys.Activity,
			CopyID:   keys.CopyID,
		}),
	)
	env.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		env.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	env.logger.Info("command flow complete", "command", "tui")
	return nil
}

func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{
				AppName: opts.appName,
				DevMode: opts.devMode,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "export_dir: %s\n", paths.ExportDir)
			return nil
		},
	}
}

func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
