package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/domain"
)

// StoreAdapter maps transport contracts onto one app.Store.
type StoreAdapter struct {
	store *app.Store
	drag  *app.DragCoordinator
	lanes []app.LaneConfig
}

// NewStoreAdapter builds one common adapter over store. Lanes shape board
// projections; drag thresholds resolve reported gestures.
func NewStoreAdapter(store *app.Store, lanes []app.LaneConfig, drag app.DragConfig) *StoreAdapter {
	if len(lanes) == 0 {
		lanes = app.DefaultLanes()
	}
	return &StoreAdapter{
		store: store,
		drag:  app.NewDragCoordinator(store, drag),
		lanes: lanes,
	}
}

// ListTasks returns the collection, most recent first, narrowed by req.
func (a *StoreAdapter) ListTasks(_ context.Context, req ListTasksRequest) ([]domain.Task, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("store adapter is not configured: %w", ErrUnavailable)
	}
	filter, err := parseFilter(req.EmpresaID, req.OriginModule, req.ResponsavelUserID, req.Priority)
	if err != nil {
		return nil, err
	}
	var status domain.Status
	if strings.TrimSpace(req.Status) != "" {
		status, err = domain.ParseStatus(req.Status)
		if err != nil {
			return nil, fmt.Errorf("status %q: %w", req.Status, errors.Join(ErrInvalidRequest, err))
		}
	}
	out := make([]domain.Task, 0)
	for _, t := range a.store.Tasks() {
		if status != "" && t.Status != status {
			continue
		}
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateTask parses form values and creates one task.
func (a *StoreAdapter) CreateTask(ctx context.Context, in app.TaskFormValues) (domain.Task, error) {
	if a == nil || a.store == nil {
		return domain.Task{}, fmt.Errorf("store adapter is not configured: %w", ErrUnavailable)
	}
	input, err := app.ParseTaskForm(in)
	if err != nil {
		return domain.Task{}, mapAppError("create task", err)
	}
	task, err := a.store.CreateTask(ctx, input)
	if err != nil {
		return domain.Task{}, mapAppError("create task", err)
	}
	return task, nil
}

// UpdateTask decodes the strict patch document and applies it.
func (a *StoreAdapter) UpdateTask(ctx context.Context, req UpdateTaskRequest) (domain.Task, error) {
	if a == nil || a.store == nil {
		return domain.Task{}, fmt.Errorf("store adapter is not configured: %w", ErrUnavailable)
	}
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		return domain.Task{}, fmt.Errorf("task id is required: %w", ErrInvalidRequest)
	}
	patch, err := domain.DecodeTaskPatch(req.Patch)
	if err != nil {
		return domain.Task{}, mapAppError("update task", err)
	}
	task, err := a.store.UpdateTask(ctx, taskID, patch)
	if err != nil {
		return domain.Task{}, mapAppError("update task", err)
	}
	return task, nil
}

// MoveTask moves one task to a lane slot.
func (a *StoreAdapter) MoveTask(ctx context.Context, req MoveTaskRequest) (domain.Task, error) {
	if a == nil || a.store == nil {
		return domain.Task{}, fmt.Errorf("store adapter is not configured: %w", ErrUnavailable)
	}
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		return domain.Task{}, fmt.Errorf("task id is required: %w", ErrInvalidRequest)
	}
	status, err := domain.ParseStatus(req.ToStatus)
	if err != nil {
		return domain.Task{}, fmt.Errorf("toStatus %q: %w", req.ToStatus, errors.Join(ErrInvalidRequest, err))
	}
	index := app.EndOfLane
	if req.ToIndex != nil {
		index = *req.ToIndex
	}
	task, err := a.store.MoveTask(ctx, taskID, status, index)
	if err != nil {
		return domain.Task{}, mapAppError("move task", err)
	}
	return task, nil
}

// Board projects the store into configured lanes.
func (a *StoreAdapter) Board(_ context.Context) (app.Board, error) {
	if a == nil || a.store == nil {
		return app.Board{}, fmt.Errorf("store adapter is not configured: %w", ErrUnavailable)
	}
	return a.store.Board(a.lanes), nil
}

// FetchTasks reloads the store and reports the settled collection.
func (a *StoreAdapter) FetchTasks(ctx context.Context, req FetchTasksRequest) (FetchTasksResult, error) {
	if a == nil || a.store == nil {
		return FetchTasksResult{}, fmt.Errorf("store adapter is not configured: %w", ErrUnavailable)
	}
	filter, err := parseFilter(req.EmpresaID, req.OriginModule, req.ResponsavelUserID, req.Priority)
	if err != nil {
		return FetchTasksResult{}, err
	}
	tasks, err := a.store.FetchTasks(ctx, filter)
	if err != nil {
		return FetchTasksResult{}, mapAppError("fetch tasks", err)
	}
	return FetchTasksResult{
		Tasks:    tasks,
		Loading:  a.store.IsLoading(),
		Revision: a.store.Revision(),
	}, nil
}

// EndGesture resolves a reported gesture; only drops reach the store.
func (a *StoreAdapter) EndGesture(ctx context.Context, req GestureRequest) (app.GestureOutcome, error) {
	if a == nil || a.store == nil {
		return app.GestureOutcome{}, fmt.Errorf("store adapter is not configured: %w", ErrUnavailable)
	}
	gesture, err := gestureFromRequest(req)
	if err != nil {
		return app.GestureOutcome{}, err
	}
	outcome, err := a.drag.End(ctx, gesture)
	if err != nil {
		return outcome, mapAppError("end gesture", err)
	}
	return outcome, nil
}

// ChangeEvents returns the newest change-ledger rows, newest first.
func (a *StoreAdapter) ChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("store adapter is not configured: %w", ErrUnavailable)
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, ErrInvalidRequest)
	}
	events, err := a.store.ChangeEvents(ctx, limit)
	if err != nil {
		return nil, mapAppError("list change events", err)
	}
	return events, nil
}

func gestureFromRequest(req GestureRequest) (app.GestureEnd, error) {
	input := app.InputKind(strings.ToLower(strings.TrimSpace(req.Input)))
	switch input {
	case "", app.InputPointer:
		input = app.InputPointer
	case app.InputTouch:
	default:
		return app.GestureEnd{}, fmt.Errorf("input %q: %w", req.Input, ErrInvalidRequest)
	}
	g := app.GestureEnd{
		TaskID:     strings.TrimSpace(req.TaskID),
		Input:      input,
		Start:      app.Point{X: req.Start.X, Y: req.Start.Y},
		End:        app.Point{X: req.End.X, Y: req.End.Y},
		ReleasedAt: time.Duration(req.ReleasedAtMS) * time.Millisecond,
	}
	for _, s := range req.Samples {
		g.Samples = append(g.Samples, app.Sample{
			Point: app.Point{X: s.X, Y: s.Y},
			At:    time.Duration(s.AtMS) * time.Millisecond,
		})
	}
	if req.Target != nil {
		status, err := domain.ParseStatus(req.Target.Status)
		if err != nil {
			return app.GestureEnd{}, fmt.Errorf("target status %q: %w", req.Target.Status, errors.Join(ErrInvalidRequest, err))
		}
		g.Target = &app.DropTarget{Status: status, Index: req.Target.Index}
	}
	return g, nil
}

func parseFilter(empresaID, origin, responsavel, priority string) (app.TaskFilter, error) {
	filter := app.TaskFilter{
		EmpresaID:         strings.TrimSpace(empresaID),
		ResponsavelUserID: strings.TrimSpace(responsavel),
	}
	if strings.TrimSpace(origin) != "" {
		parsed, err := domain.ParseOriginModule(origin)
		if err != nil {
			return app.TaskFilter{}, fmt.Errorf("originModule %q: %w", origin, errors.Join(ErrInvalidRequest, err))
		}
		filter.OriginModule = parsed
	}
	if strings.TrimSpace(priority) != "" {
		parsed, err := domain.ParsePriority(priority)
		if err != nil {
			return app.TaskFilter{}, fmt.Errorf("priority %q: %w", priority, errors.Join(ErrInvalidRequest, err))
		}
		filter.Priority = parsed
	}
	return filter, nil
}

// mapAppError maps store errors into transport-neutral sentinels while keeping the cause.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrValidation),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidOriginModule),
		errors.Is(err, domain.ErrInvalidDueDate),
		errors.Is(err, domain.ErrUnknownPatchField),
		errors.Is(err, domain.ErrEmptyPatch):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, app.ErrTransport):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrTransport, err))
	case errors.Is(err, app.ErrStoreClosed):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
