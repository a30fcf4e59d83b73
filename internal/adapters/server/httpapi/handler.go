// Package httpapi provides the REST HTTP adapter for the task board.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/evanschultz/quadro/internal/adapters/server/common"
	"github.com/evanschultz/quadro/internal/app"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	board common.BoardService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over a board service.
func NewHandler(board common.BoardService) *Handler {
	return &Handler{board: board}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch path {
	case "tasks":
		switch r.Method {
		case http.MethodGet:
			h.handleListTasks(w, r)
		case http.MethodPost:
			h.handleCreateTask(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case "board":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBoard(w, r)
		return
	case "fetch":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleFetch(w, r)
		return
	case "activity":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleActivity(w, r)
		return
	case "gestures":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleGesture(w, r)
		return
	}

	taskID, action, ok := resolveTaskRoute(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	switch action {
	case "":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w, http.MethodPatch)
			return
		}
		h.handleUpdateTask(w, r, taskID)
	case "move":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMoveTask(w, r, taskID)
	}
}

// handleListTasks serves GET `/tasks`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := h.board.ListTasks(r.Context(), common.ListTasksRequest{
		Status:            q.Get("status"),
		EmpresaID:         q.Get("empresaId"),
		OriginModule:      q.Get("originModule"),
		ResponsavelUserID: q.Get("responsavelUserId"),
		Priority:          q.Get("priority"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
	})
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in app.TaskFormValues
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.board.CreateTask(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	raw, err := readRawBody(r.Context(), w, r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.board.UpdateTask(r.Context(), common.UpdateTaskRequest{
		TaskID: taskID,
		Patch:  raw,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleMoveTask serves POST `/tasks/{id}/move`.
func (h *Handler) handleMoveTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.MoveTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if req.TaskID != "" && req.TaskID != taskID {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "taskId in body does not match path",
			Context: map[string]any{"path": taskID, "body": req.TaskID},
		})
		return
	}
	req.TaskID = taskID
	task, err := h.board.MoveTask(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleBoard serves GET `/board`.
func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.board.Board(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleFetch serves POST `/fetch`; the body is an optional filter.
func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req common.FetchTasksRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.board.FetchTasks(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGesture serves POST `/gestures`.
func (h *Handler) handleGesture(w http.ResponseWriter, r *http.Request) {
	var req common.GestureRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	outcome, err := h.board.EndGesture(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// handleActivity serves GET `/activity?limit=N`.
func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}
	events, err := h.board.ChangeEvents(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// resolveTaskRoute splits `tasks/{id}` and `tasks/{id}/move`.
func resolveTaskRoute(path string) (string, string, bool) {
	const prefix = "tasks/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	id, action, _ := strings.Cut(rest, "/")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", false
	}
	switch action {
	case "", "move":
		return id, action, true
	default:
		return "", "", false
	}
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrTransport):
		writeJSONError(w, http.StatusBadGateway, APIError{
			Code:    "transport_error",
			Message: err.Error(),
			Hint:    "The task store could not reach its backing database; local state is unchanged.",
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON payload with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}

// readRawBody reads a bounded body verbatim; patch decoding owns field checks.
func readRawBody(ctx context.Context, w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("request canceled: %w", ctx.Err())
	}
	return raw, nil
}
