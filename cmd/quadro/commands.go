package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/evanschultz/quadro/internal/adapters/server"
	"github.com/evanschultz/quadro/internal/adapters/server/common"
	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/domain"
)

func newTaskCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, list, move, and update tasks",
	}
	cmd.AddCommand(
		newTaskAddCommand(opts, stderr),
		newTaskListCommand(opts, stderr),
		newTaskMoveCommand(opts, stderr),
		newTaskUpdateCommand(opts, stderr),
	)
	return cmd
}

func newTaskAddCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var form app.TaskFormValues
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task at the end of its lane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openRuntime(cmd.Context(), opts, "task add", stderr)
			if err != nil {
				return err
			}
			defer env.Close()

			task, err := env.adapter().CreateTask(cmd.Context(), form)
			if err != nil {
				return fmt.Errorf("create task: %w", err)
			}
			env.logger.Info("task created", "task_id", task.ID, "status", task.Status)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), task.ID)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&form.Title, "title", "", "task title (required)")
	flags.StringVar(&form.Description, "description", "", "task description (markdown)")
	flags.StringVar(&form.Status, "status", "", "lane: todo, in_progress, in_review, done")
	flags.StringVar(&form.Priority, "priority", "", "high, medium, or low")
	flags.StringVar(&form.OriginModule, "origin", "", "origin module, e.g. audit or compliance (required)")
	flags.StringVar(&form.DueDate, "due", "", "due date YYYY-MM-DD")
	flags.StringVar(&form.EmpresaID, "company", "", "company id")
	flags.StringVar(&form.ProcessoID, "process", "", "legal process id")
	flags.StringVar(&form.DenunciaID, "complaint", "", "whistleblowing complaint id")
	flags.StringVar(&form.DividaID, "debt", "", "debt id")
	flags.StringVar(&form.ResponsavelUserID, "assignee", "", "responsible user id")
	flags.StringVar(&form.Anexos, "attachments", "", "comma-separated attachment references")
	return cmd
}

func newTaskListCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var (
		req    common.ListTasksRequest
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks lane by lane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openRuntime(cmd.Context(), opts, "task list", stderr)
			if err != nil {
				return err
			}
			defer env.Close()

			tasks, err := env.adapter().ListTasks(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			board := app.ProjectBoard(tasks, env.lanes)
			ordered := make([]domain.Task, 0, len(tasks))
			for _, col := range board.Columns {
				ordered = append(ordered, col.Tasks...)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ordered)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTaskTable(board, env.store.DisplayName))
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.Status, "status", "", "only this lane")
	flags.StringVar(&req.EmpresaID, "company", "", "only this company id")
	flags.StringVar(&req.OriginModule, "origin", "", "only this origin module")
	flags.StringVar(&req.ResponsavelUserID, "assignee", "", "only this responsible user id")
	flags.StringVar(&req.Priority, "priority", "", "only this priority")
	flags.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newTaskMoveCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "move <task-id> <status>",
		Short: "Move a task to a lane slot (end of lane by default)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openRuntime(cmd.Context(), opts, "task move", stderr)
			if err != nil {
				return err
			}
			defer env.Close()

			req := common.MoveTaskRequest{TaskID: args[0], ToStatus: args[1]}
			if cmd.Flags().Changed("index") {
				req.ToIndex = &index
			}
			task, err := env.adapter().MoveTask(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("move task: %w", err)
			}
			env.logger.Info("task moved", "task_id", task.ID, "status", task.Status, "order_index", task.OrderIndex)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s #%d\n", task.ID, task.Status, task.OrderIndex)
			return err
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "0-based slot in the destination lane")
	return cmd
}

// patchFlagFields maps update flags onto patch document keys.
var patchFlagFields = []struct {
	flag  string
	field string
	usage string
}{
	{"title", "title", "new title"},
	{"description", "description", "new description"},
	{"priority", "priority", "new priority"},
	{"due", "dueDate", "new due date YYYY-MM-DD"},
	{"company", "empresaId", "new company id"},
	{"assignee", "responsavelUserId", "new responsible user id"},
}

func newTaskUpdateCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var (
		rawPatch   string
		clearDue   bool
		flagValues = make([]string, len(patchFlagFields))
	)
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Patch task fields; lane and order are changed with move",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := json.RawMessage(rawPatch)
			if strings.TrimSpace(rawPatch) == "" {
				doc := map[string]any{}
				for i, f := range patchFlagFields {
					if cmd.Flags().Changed(f.flag) {
						doc[f.field] = flagValues[i]
					}
				}
				if clearDue {
					doc["dueDate"] = nil
				}
				if len(doc) == 0 {
					return errors.New("nothing to update: pass --patch or at least one field flag")
				}
				encoded, err := json.Marshal(doc)
				if err != nil {
					return fmt.Errorf("encode patch: %w", err)
				}
				patch = encoded
			}

			env, err := openRuntime(cmd.Context(), opts, "task update", stderr)
			if err != nil {
				return err
			}
			defer env.Close()

			task, err := env.adapter().UpdateTask(cmd.Context(), common.UpdateTaskRequest{TaskID: args[0], Patch: patch})
			if err != nil {
				return fmt.Errorf("update task: %w", err)
			}
			env.logger.Info("task updated", "task_id", task.ID, "version", task.Version)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s v%d\n", task.ID, task.Version)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&rawPatch, "patch", "", `JSON patch document, e.g. '{"title":"x"}'`)
	for i, f := range patchFlagFields {
		flags.StringVar(&flagValues[i], f.flag, "", f.usage)
	}
	flags.BoolVar(&clearDue, "clear-due", false, "remove the due date")
	return cmd
}

func newServeCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openRuntime(cmd.Context(), opts, "serve", stderr)
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := server.Config{
				HTTPBind:      firstNonEmpty(httpBind, env.cfg.Server.HTTPBind),
				APIEndpoint:   firstNonEmpty(apiEndpoint, env.cfg.Server.APIEndpoint),
				MCPEndpoint:   firstNonEmpty(mcpEndpoint, env.cfg.Server.MCPEndpoint),
				ServerName:    env.appName,
				ServerVersion: version,
			}
			env.logger.Info("command flow start", "command", "serve", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
			if err := serveCommandRunner(cmd.Context(), cfg, server.Dependencies{
				Board:  env.adapter(),
				Probes: env.probes(),
			}); err != nil {
				env.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			env.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	flags.StringVar(&apiEndpoint, "api-endpoint", "", "REST API base endpoint (default from config)")
	flags.StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (default from config)")
	return cmd
}

func newExportCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var outPath, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a board snapshot as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapFormat, err := app.ParseSnapshotFormat(formatFor(format, outPath))
			if err != nil {
				return err
			}
			env, err := openRuntime(cmd.Context(), opts, "export", stderr)
			if err != nil {
				return err
			}
			defer env.Close()

			snap := env.store.ExportSnapshot()
			if outPath == "auto" {
				outPath = env.paths.SnapshotPath(string(snapFormat), time.Now())
			}
			if outPath == "-" {
				return app.EncodeSnapshot(cmd.OutOrStdout(), snap, snapFormat)
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create export output dir: %w", err)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := app.EncodeSnapshot(f, snap, snapFormat); err != nil {
				_ = f.Close()
				return fmt.Errorf("write export file: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close export file: %w", err)
			}
			env.logger.Info("snapshot exported", "path", outPath, "format", snapFormat, "tasks", len(snap.Tasks))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout, 'auto' for a timestamped file in the exports dir)")
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default from --out extension, else json)")
	return cmd
}

func newImportCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var inPath, format string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the board with a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return errors.New("--in is required")
			}
			snapFormat, err := app.ParseSnapshotFormat(formatFor(format, inPath))
			if err != nil {
				return err
			}
			f, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			snap, err := app.DecodeSnapshot(f, snapFormat)
			_ = f.Close()
			if err != nil {
				return err
			}

			env, err := openRuntime(cmd.Context(), opts, "import", stderr)
			if err != nil {
				return err
			}
			defer env.Close()

			tasks, err := env.store.ImportSnapshot(cmd.Context(), snap)
			if err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			env.logger.Info("snapshot imported", "path", inPath, "tasks", len(tasks))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d tasks\n", len(tasks))
			return err
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "snapshot file to import")
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default from --in extension, else json)")
	return cmd
}

func newActivityCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent task changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openRuntime(cmd.Context(), opts, "activity", stderr)
			if err != nil {
				return err
			}
			defer env.Close()

			events, err := env.adapter().ChangeEvents(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list activity: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderActivityTable(events))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events to show")
	return cmd
}

// formatFor returns explicit when set, else infers from the file extension.
func formatFor(explicit, path string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return string(app.SnapshotYAML)
	default:
		return string(app.SnapshotJSON)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var (
	tableBorder = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	tableHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	tableCell   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorder).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeader
			}
			return tableCell
		})
}

// renderTaskTable prints one row per task in lane order.
func renderTaskTable(board app.Board, displayName func(string) string) string {
	t := newTable("Lane", "#", "ID", "Title", "Priority", "Origin", "Due", "Assignee")
	for _, col := range board.Columns {
		for _, task := range col.Tasks {
			due := ""
			if task.DueDate != nil {
				due = task.DueDate.Format("2006-01-02")
			}
			assignee := ""
			if task.ResponsavelUserID != "" {
				assignee = displayName(task.ResponsavelUserID)
			}
			t.Row(col.Name, fmt.Sprint(task.OrderIndex), task.ID, task.Title,
				strings.ToLower(string(task.Priority)), strings.ToLower(string(task.OriginModule)), due, assignee)
		}
	}
	return t.Render()
}

func renderActivityTable(events []domain.ChangeEvent) string {
	t := newTable("When", "Operation", "Task", "Detail")
	for _, ev := range events {
		t.Row(ev.OccurredAt.Local().Format("2006-01-02 15:04"), string(ev.Operation), ev.TaskID, activityDetail(ev))
	}
	return t.Render()
}

func activityDetail(ev domain.ChangeEvent) string {
	switch ev.Operation {
	case domain.ChangeOperationMove:
		return fmt.Sprintf("%s → %s", ev.Metadata["from_status"], ev.Metadata["to_status"])
	case domain.ChangeOperationUpdate:
		return ev.Metadata["changed_fields"]
	default:
		return ev.Metadata["title"]
	}
}
