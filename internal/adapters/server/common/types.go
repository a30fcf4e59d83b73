// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/domain"
)

// ErrInvalidRequest reports malformed transport input or failed validation.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrTransport reports a failure of the persistence collaborator behind the store.
var ErrTransport = errors.New("transport error")

// ErrUnavailable reports a store that is closed or not configured.
var ErrUnavailable = errors.New("service unavailable")

// BoardService is the task-board surface both transports expose.
type BoardService interface {
	ListTasks(context.Context, ListTasksRequest) ([]domain.Task, error)
	CreateTask(context.Context, app.TaskFormValues) (domain.Task, error)
	UpdateTask(context.Context, UpdateTaskRequest) (domain.Task, error)
	MoveTask(context.Context, MoveTaskRequest) (domain.Task, error)
	Board(context.Context) (app.Board, error)
	FetchTasks(context.Context, FetchTasksRequest) (FetchTasksResult, error)
	EndGesture(context.Context, GestureRequest) (app.GestureOutcome, error)
	ChangeEvents(context.Context, int) ([]domain.ChangeEvent, error)
}

// ListTasksRequest filters the in-memory collection. Empty fields match everything.
type ListTasksRequest struct {
	Status            string
	EmpresaID         string
	OriginModule      string
	ResponsavelUserID string
	Priority          string
}

// UpdateTaskRequest carries a raw JSON patch so unknown fields can be rejected.
type UpdateTaskRequest struct {
	TaskID string
	Patch  json.RawMessage
}

// MoveTaskRequest moves one task. A nil ToIndex appends to the lane.
type MoveTaskRequest struct {
	TaskID   string `json:"taskId"`
	ToStatus string `json:"toStatus"`
	ToIndex  *int   `json:"toIndex,omitempty"`
}

// FetchTasksRequest reloads the store through its persistence collaborator.
type FetchTasksRequest struct {
	EmpresaID         string `json:"empresaId,omitempty"`
	OriginModule      string `json:"originModule,omitempty"`
	ResponsavelUserID string `json:"responsavelUserId,omitempty"`
	Priority          string `json:"priority,omitempty"`
}

// FetchTasksResult is the collection after a fetch settles.
type FetchTasksResult struct {
	Tasks    []domain.Task `json:"tasks"`
	Loading  bool          `json:"loading"`
	Revision uint64        `json:"revision"`
}

// GesturePoint is one observed pointer position; AtMS is milliseconds since press.
type GesturePoint struct {
	X    int   `json:"x"`
	Y    int   `json:"y"`
	AtMS int64 `json:"atMs,omitempty"`
}

// GestureTarget names the lane slot under the release point.
type GestureTarget struct {
	Status string `json:"status"`
	Index  int    `json:"index"`
}

// GestureRequest is a finished drag gesture reported by a web or touch client.
type GestureRequest struct {
	TaskID       string         `json:"taskId"`
	Input        string         `json:"input"`
	Start        GesturePoint   `json:"start"`
	Samples      []GesturePoint `json:"samples,omitempty"`
	End          GesturePoint   `json:"end"`
	ReleasedAtMS int64          `json:"releasedAtMs"`
	Target       *GestureTarget `json:"target,omitempty"`
}
