package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/quadro/internal/adapters/server/common"
	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/domain"
)

// stubBoardService returns one configured error from every operation.
type stubBoardService struct {
	err error
}

func (s stubBoardService) ListTasks(context.Context, common.ListTasksRequest) ([]domain.Task, error) {
	return nil, s.err
}

func (s stubBoardService) CreateTask(context.Context, app.TaskFormValues) (domain.Task, error) {
	return domain.Task{}, s.err
}

func (s stubBoardService) UpdateTask(context.Context, common.UpdateTaskRequest) (domain.Task, error) {
	return domain.Task{}, s.err
}

func (s stubBoardService) MoveTask(context.Context, common.MoveTaskRequest) (domain.Task, error) {
	return domain.Task{}, s.err
}

func (s stubBoardService) Board(context.Context) (app.Board, error) {
	return app.Board{}, s.err
}

func (s stubBoardService) FetchTasks(context.Context, common.FetchTasksRequest) (common.FetchTasksResult, error) {
	return common.FetchTasksResult{}, s.err
}

func (s stubBoardService) EndGesture(context.Context, common.GestureRequest) (app.GestureOutcome, error) {
	return app.GestureOutcome{}, s.err
}

func (s stubBoardService) ChangeEvents(context.Context, int) ([]domain.ChangeEvent, error) {
	return nil, s.err
}

// newTestHandler builds a handler over an in-memory store.
func newTestHandler(t *testing.T) (*Handler, *app.Store) {
	t.Helper()
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	store := app.NewStore(nil, ids, clock)
	return NewHandler(common.NewStoreAdapter(store, nil, app.DefaultDragConfig())), store
}

// serve runs one request through handler and returns the recorder.
func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// decodeRecorder decodes one JSON response body into the requested type.
func decodeRecorder[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

// TestHandlerCreateListAndBoard verifies the create, list, and board routes.
func TestHandlerCreateListAndBoard(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := serve(t, handler, http.MethodPost, "/tasks", `{"title":"Audit payroll","originModule":"AUDIT","priority":"HIGH"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	created := decodeRecorder[domain.Task](t, rec)
	if created.ID != "t1" || created.Status != domain.StatusTodo || created.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected created task %#v", created)
	}

	rec = serve(t, handler, http.MethodGet, "/tasks?originModule=AUDIT", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	listed := decodeRecorder[struct {
		Tasks []domain.Task `json:"tasks"`
	}](t, rec)
	if len(listed.Tasks) != 1 || listed.Tasks[0].ID != "t1" {
		t.Fatalf("unexpected list %#v", listed.Tasks)
	}

	rec = serve(t, handler, http.MethodGet, "/board", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	board := decodeRecorder[app.Board](t, rec)
	if len(board.Columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(board.Columns))
	}
	if len(board.Columns[0].Tasks) != 1 {
		t.Fatalf("expected one task in first column, got %#v", board.Columns[0])
	}
}

// TestHandlerCreateRejectsBadInput verifies strict body decoding and validation.
func TestHandlerCreateRejectsBadInput(t *testing.T) {
	handler, store := newTestHandler(t)
	cases := []struct {
		name string
		body string
	}{
		{name: "unknown field", body: `{"title":"x","originModule":"AUDIT","owner":"me"}`},
		{name: "trailing content", body: `{"title":"x","originModule":"AUDIT"} {}`},
		{name: "blank title", body: `{"title":"  ","originModule":"AUDIT"}`},
		{name: "bad origin", body: `{"title":"x","originModule":"SALES"}`},
		{name: "bad due date", body: `{"title":"x","originModule":"AUDIT","dueDate":"tomorrow"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, handler, http.MethodPost, "/tasks", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
			envelope := decodeRecorder[ErrorEnvelope](t, rec)
			if envelope.Error.Code != "invalid_request" {
				t.Fatalf("code = %q, want invalid_request", envelope.Error.Code)
			}
		})
	}
	if len(store.Tasks()) != 0 {
		t.Fatalf("expected no tasks after rejected creates, got %d", len(store.Tasks()))
	}
}

// TestHandlerUpdateAndMove verifies the per-task routes.
func TestHandlerUpdateAndMove(t *testing.T) {
	handler, store := newTestHandler(t)
	serve(t, handler, http.MethodPost, "/tasks", `{"title":"First","originModule":"HR"}`)
	serve(t, handler, http.MethodPost, "/tasks", `{"title":"Second","originModule":"HR"}`)

	rec := serve(t, handler, http.MethodPatch, "/tasks/t1", `{"description":"check contracts","dueDate":"2026-03-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	updated := decodeRecorder[domain.Task](t, rec)
	if updated.Description != "check contracts" || updated.DueDate == nil {
		t.Fatalf("unexpected updated task %#v", updated)
	}

	rec = serve(t, handler, http.MethodPatch, "/tasks/t1", `{"orderIndex":4}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = serve(t, handler, http.MethodPost, "/tasks/t2/move", `{"toStatus":"TODO","toIndex":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	lane := store.Lane(domain.StatusTodo)
	if len(lane) != 2 || lane[0].ID != "t2" || lane[1].ID != "t1" {
		t.Fatalf("unexpected lane order %#v", lane)
	}

	rec = serve(t, handler, http.MethodPost, "/tasks/t2/move", `{"taskId":"t1","toStatus":"DONE"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = serve(t, handler, http.MethodPost, "/tasks/missing/move", `{"toStatus":"DONE"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// TestHandlerFetchAndGesture verifies fetch with an empty body and gesture drops.
func TestHandlerFetchAndGesture(t *testing.T) {
	handler, store := newTestHandler(t)
	serve(t, handler, http.MethodPost, "/tasks", `{"title":"Drag me","originModule":"LEGAL"}`)

	rec := serve(t, handler, http.MethodPost, "/fetch", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	fetched := decodeRecorder[common.FetchTasksResult](t, rec)
	if len(fetched.Tasks) != 1 || fetched.Loading {
		t.Fatalf("unexpected fetch result %#v", fetched)
	}

	body := `{"taskId":"t1","input":"pointer","start":{"x":0,"y":0},"samples":[{"x":5,"y":0,"atMs":30}],"end":{"x":40,"y":3},"releasedAtMs":300,"target":{"status":"IN_REVIEW","index":0}}`
	rec = serve(t, handler, http.MethodPost, "/gestures", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	outcome := decodeRecorder[app.GestureOutcome](t, rec)
	if outcome.Kind != app.OutcomeMove {
		t.Fatalf("expected move outcome, got %#v", outcome)
	}
	got, err := store.Task("t1")
	if err != nil {
		t.Fatalf("Task() error = %v", err)
	}
	if got.Status != domain.StatusInReview {
		t.Fatalf("status = %q, want IN_REVIEW", got.Status)
	}
}

// TestHandlerRouting verifies unknown paths and method checks.
func TestHandlerRouting(t *testing.T) {
	handler, _ := newTestHandler(t)
	cases := []struct {
		method     string
		target     string
		wantStatus int
		wantAllow  string
	}{
		{method: http.MethodGet, target: "/nope", wantStatus: http.StatusNotFound},
		{method: http.MethodGet, target: "/tasks/t1/archive", wantStatus: http.StatusNotFound},
		{method: http.MethodDelete, target: "/tasks", wantStatus: http.StatusMethodNotAllowed, wantAllow: "GET, POST"},
		{method: http.MethodGet, target: "/tasks/t1", wantStatus: http.StatusMethodNotAllowed, wantAllow: "PATCH"},
		{method: http.MethodGet, target: "/fetch", wantStatus: http.StatusMethodNotAllowed, wantAllow: "POST"},
		{method: http.MethodPost, target: "/board", wantStatus: http.StatusMethodNotAllowed, wantAllow: "GET"},
		{method: http.MethodPost, target: "/activity", wantStatus: http.StatusMethodNotAllowed, wantAllow: "GET"},
		{method: http.MethodGet, target: "/activity?limit=-3", wantStatus: http.StatusBadRequest},
		{method: http.MethodGet, target: "/activity?limit=5", wantStatus: http.StatusOK},
	}
	for _, tc := range cases {
		rec := serve(t, handler, tc.method, tc.target, "")
		if rec.Code != tc.wantStatus {
			t.Fatalf("%s %s status = %d, want %d", tc.method, tc.target, rec.Code, tc.wantStatus)
		}
		if got := rec.Header().Get("Allow"); got != tc.wantAllow {
			t.Fatalf("%s %s Allow = %q, want %q", tc.method, tc.target, got, tc.wantAllow)
		}
	}
}

// TestHandlerErrorMapping verifies structured status mapping for service errors.
func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid", err: errors.Join(common.ErrInvalidRequest, errors.New("bad")), wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "not found", err: errors.Join(common.ErrNotFound, errors.New("gone")), wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "transport", err: errors.Join(common.ErrTransport, errors.New("db down")), wantStatus: http.StatusBadGateway, wantCode: "transport_error"},
		{name: "unavailable", err: errors.Join(common.ErrUnavailable, errors.New("closed")), wantStatus: http.StatusServiceUnavailable, wantCode: "service_unavailable"},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler(stubBoardService{err: tc.err})
			rec := serve(t, handler, http.MethodGet, "/board", "")
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			envelope := decodeRecorder[ErrorEnvelope](t, rec)
			if envelope.Error.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", envelope.Error.Code, tc.wantCode)
			}
		})
	}
}

// TestHandlerWithoutService verifies a nil service fails closed.
func TestHandlerWithoutService(t *testing.T) {
	rec := serve(t, NewHandler(nil), http.MethodGet, "/tasks", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
