// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/quadro/internal/adapters/server/common"
	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the board tools.
func NewHandler(cfg Config, board common.BoardService) (*Handler, error) {
	if board == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerTaskTools(mcpSrv, board)
	registerBoardTools(mcpSrv, board)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "quadro"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

func statusNames() []string {
	out := make([]string, 0, 4)
	for _, s := range domain.Statuses() {
		out = append(out, string(s))
	}
	return out
}

func priorityNames() []string {
	out := make([]string, 0, 3)
	for _, p := range domain.Priorities() {
		out = append(out, string(p))
	}
	return out
}

func originNames() []string {
	out := make([]string, 0, 7)
	for _, o := range domain.OriginModules() {
		out = append(out, string(o))
	}
	return out
}

// registerTaskTools registers list/create/update/move task tools.
func registerTaskTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"quadro.list_tasks",
			mcp.WithDescription("List tasks, most recently created first. All filters are optional."),
			mcp.WithString("status", mcp.Description("Lane filter"), mcp.Enum(statusNames()...)),
			mcp.WithString("empresa_id", mcp.Description("Company identifier")),
			mcp.WithString("origin_module", mcp.Description("Originating business module"), mcp.Enum(originNames()...)),
			mcp.WithString("responsavel_user_id", mcp.Description("Assignee user identifier")),
			mcp.WithString("priority", mcp.Description("Priority filter"), mcp.Enum(priorityNames()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tasks, err := board.ListTasks(ctx, common.ListTasksRequest{
				Status:            req.GetString("status", ""),
				EmpresaID:         req.GetString("empresa_id", ""),
				OriginModule:      req.GetString("origin_module", ""),
				ResponsavelUserID: req.GetString("responsavel_user_id", ""),
				Priority:          req.GetString("priority", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"tasks": tasks,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_tasks result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"quadro.create_task",
			mcp.WithDescription("Create one task at the end of its lane."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("origin_module", mcp.Required(), mcp.Description("Originating business module"), mcp.Enum(originNames()...)),
			mcp.WithString("description", mcp.Description("Task description")),
			mcp.WithString("status", mcp.Description("Initial lane (defaults to TODO)"), mcp.Enum(statusNames()...)),
			mcp.WithString("priority", mcp.Description("Priority (defaults to MEDIUM)"), mcp.Enum(priorityNames()...)),
			mcp.WithString("due_date", mcp.Description("YYYY-MM-DD or RFC3339")),
			mcp.WithString("empresa_id", mcp.Description("Company identifier")),
			mcp.WithString("processo_id", mcp.Description("Process identifier")),
			mcp.WithString("denuncia_id", mcp.Description("Whistleblower report identifier")),
			mcp.WithString("divida_id", mcp.Description("Debt identifier")),
			mcp.WithString("responsavel_user_id", mcp.Description("Assignee user identifier")),
			mcp.WithArray("anexos", mcp.Description("Attachment references"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Title             string   `json:"title"`
				OriginModule      string   `json:"origin_module"`
				Description       string   `json:"description"`
				Status            string   `json:"status"`
				Priority          string   `json:"priority"`
				DueDate           string   `json:"due_date"`
				EmpresaID         string   `json:"empresa_id"`
				ProcessoID        string   `json:"processo_id"`
				DenunciaID        string   `json:"denuncia_id"`
				DividaID          string   `json:"divida_id"`
				ResponsavelUserID string   `json:"responsavel_user_id"`
				Anexos            []string `json:"anexos"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			task, err := board.CreateTask(ctx, app.TaskFormValues{
				Title:             args.Title,
				Description:       args.Description,
				Status:            args.Status,
				Priority:          args.Priority,
				OriginModule:      args.OriginModule,
				DueDate:           args.DueDate,
				EmpresaID:         args.EmpresaID,
				ProcessoID:        args.ProcessoID,
				DenunciaID:        args.DenunciaID,
				DividaID:          args.DividaID,
				ResponsavelUserID: args.ResponsavelUserID,
				Anexos:            strings.Join(args.Anexos, ","),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode create_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"quadro.update_task",
			mcp.WithDescription("Apply a partial update. The patch may not change status or orderIndex; use quadro.move_task."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithObject("patch", mcp.Required(), mcp.Description("Fields to change, using task JSON names (title, description, priority, dueDate, empresaId, processoId, denunciaId, dividaId, responsavelUserId, anexos)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			patch, ok := req.GetArguments()["patch"]
			if !ok || patch == nil {
				return mcp.NewToolResultError(`invalid_request: required argument "patch" not found`), nil
			}
			raw, err := json.Marshal(patch)
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			task, err := board.UpdateTask(ctx, common.UpdateTaskRequest{
				TaskID: taskID,
				Patch:  raw,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode update_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"quadro.move_task",
			mcp.WithDescription("Move one task to a lane slot. Omit to_index to append to the lane."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("to_status", mcp.Required(), mcp.Description("Destination lane"), mcp.Enum(statusNames()...)),
			mcp.WithNumber("to_index", mcp.Description("Zero-based slot in the destination lane")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			toStatus, err := req.RequireString("to_status")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			move := common.MoveTaskRequest{TaskID: taskID, ToStatus: toStatus}
			if _, ok := req.GetArguments()["to_index"]; ok {
				idx, err := req.RequireInt("to_index")
				if err != nil {
					return invalidRequestToolResult(err), nil
				}
				move.ToIndex = &idx
			}
			task, err := board.MoveTask(ctx, move)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode move_task result: %w", err)
			}
			return result, nil
		},
	)
}

// registerBoardTools registers board projection, fetch, and activity tools.
func registerBoardTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"quadro.board",
			mcp.WithDescription("Return the board grouped into lanes, each ordered by orderIndex."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projection, err := board.Board(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(projection)
			if err != nil {
				return nil, fmt.Errorf("encode board result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"quadro.fetch_tasks",
			mcp.WithDescription("Reload tasks from storage, keeping local edits newer than the fetch."),
			mcp.WithString("empresa_id", mcp.Description("Company identifier")),
			mcp.WithString("origin_module", mcp.Description("Originating business module"), mcp.Enum(originNames()...)),
			mcp.WithString("responsavel_user_id", mcp.Description("Assignee user identifier")),
			mcp.WithString("priority", mcp.Description("Priority filter"), mcp.Enum(priorityNames()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			fetched, err := board.FetchTasks(ctx, common.FetchTasksRequest{
				EmpresaID:         req.GetString("empresa_id", ""),
				OriginModule:      req.GetString("origin_module", ""),
				ResponsavelUserID: req.GetString("responsavel_user_id", ""),
				Priority:          req.GetString("priority", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(fetched)
			if err != nil {
				return nil, fmt.Errorf("encode fetch_tasks result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"quadro.list_activity",
			mcp.WithDescription("List recent change-ledger events, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			events, err := board.ChangeEvents(ctx, req.GetInt("limit", 25))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"events": events,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_activity result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps adapter errors into prefixed MCP tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrTransport):
		return mcp.NewToolResultError("transport_error: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

// invalidRequestToolResult wraps argument decoding failures.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}
