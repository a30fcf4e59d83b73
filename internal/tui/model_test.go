package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/domain"
)

var (
	testAccent = lipgloss.Color("62")
	testDim    = lipgloss.Color("239")
	testWarn   = lipgloss.Color("203")
)

// newTestStore returns an in-memory store with deterministic ids and clock.
func newTestStore(t *testing.T) *app.Store {
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
	return app.NewStore(nil, ids, clock)
}

func seedTasks(t *testing.T, store *app.Store, titles ...string) {
	t.Helper()
	for _, title := range titles {
		if _, err := store.CreateTask(t.Context(), app.CreateTaskInput{Title: title, OriginModule: domain.OriginAudit}); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}
}

// loadReadyModel sizes the model so layout math is deterministic.
func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model)
}

// update applies one message and returns the follow-up command without running it.
func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return out, cmd
}

// applyMsg applies one message and feeds the resulting command's message back once.
func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	out, cmd := update(t, m, msg)
	if cmd == nil {
		return out
	}
	out, _ = update(t, out, cmd())
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func laneTaskIDs(store *app.Store, status domain.Status) []string {
	out := []string{}
	for _, task := range store.Lane(status) {
		out = append(out, task.ID)
	}
	return out
}

// TestModelLaneMoveKeys verifies [ and ] move the selected task between lanes.
func TestModelLaneMoveKeys(t *testing.T) {
	store := newTestStore(t)
	seedTasks(t, store, "One", "Two")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, keyRune(']'))
	got, err := store.Task("t1")
	if err != nil {
		t.Fatalf("Task() error = %v", err)
	}
	if got.Status != domain.StatusInProgress {
		t.Fatalf("status = %q, want IN_PROGRESS", got.Status)
	}
	if m.selectedColumn != 1 || m.selectedTask != 0 {
		t.Fatalf("expected selection to follow task, got column=%d task=%d", m.selectedColumn, m.selectedTask)
	}

	m = applyMsg(t, m, keyRune('['))
	if ids := laneTaskIDs(store, domain.StatusTodo); strings.Join(ids, ",") != "t2,t1" {
		t.Fatalf("todo lane = %v, want [t2 t1]", ids)
	}

	m = applyMsg(t, m, keyRune('['))
	if !strings.Contains(m.status, "no lane") {
		t.Fatalf("status = %q, want no lane message", m.status)
	}
}

// TestModelReorderKeys verifies J and K reorder within a lane.
func TestModelReorderKeys(t *testing.T) {
	store := newTestStore(t)
	seedTasks(t, store, "One", "Two", "Three")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, keyRune('J'))
	if ids := laneTaskIDs(store, domain.StatusTodo); strings.Join(ids, ",") != "t2,t1,t3" {
		t.Fatalf("lane = %v, want [t2 t1 t3]", ids)
	}
	if m.selectedTask != 1 {
		t.Fatalf("selectedTask = %d, want 1", m.selectedTask)
	}

	m = applyMsg(t, m, keyRune('K'))
	if ids := laneTaskIDs(store, domain.StatusTodo); strings.Join(ids, ",") != "t1,t2,t3" {
		t.Fatalf("lane = %v, want [t1 t2 t3]", ids)
	}
	if m.selectedTask != 0 {
		t.Fatalf("selectedTask = %d, want 0", m.selectedTask)
	}
}

// TestModelAddTaskForm verifies form validation and creation in the selected lane.
func TestModelAddTaskForm(t *testing.T) {
	store := newTestStore(t)
	m := loadReadyModel(t, NewModel(store))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyRight})

	m, _ = update(t, m, keyRune('n'))
	if m.mode != modeAddTask || len(m.formInputs) != len(taskFormFields) {
		t.Fatalf("expected task form, got mode=%d inputs=%d", m.mode, len(m.formInputs))
	}

	m.formInputs[fieldOrigin].SetValue("compliance")
	m, _ = update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeAddTask || !strings.Contains(m.status, "title") {
		t.Fatalf("expected title validation error, got mode=%d status=%q", m.mode, m.status)
	}

	m.formInputs[fieldTitle].SetValue("Review controls")
	m.formInputs[fieldPriority].SetValue("high")
	m.formInputs[fieldDue].SetValue("2026-03-01")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeNone {
		t.Fatalf("expected form closed, got mode=%d", m.mode)
	}
	lane := store.Lane(domain.StatusInProgress)
	if len(lane) != 1 || lane[0].Title != "Review controls" || lane[0].Priority != domain.PriorityHigh {
		t.Fatalf("unexpected in-progress lane %#v", lane)
	}
	if lane[0].OriginModule != domain.OriginCompliance || lane[0].DueDate == nil {
		t.Fatalf("unexpected created task %#v", lane[0])
	}

	m, _ = update(t, m, keyRune('n'))
	m, _ = update(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone || m.status != "cancelled" {
		t.Fatalf("expected cancelled form, got mode=%d status=%q", m.mode, m.status)
	}
}

// TestModelMouseDragMovesTask verifies press, motion, and release drop a card into another lane.
func TestModelMouseDragMovesTask(t *testing.T) {
	store := newTestStore(t)
	seedTasks(t, store, "Drag me")
	clock := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	m := loadReadyModel(t, NewModel(store, WithClock(func() time.Time { return clock })))

	w := m.laneWidth()
	y := tasksTop()
	m, _ = update(t, m, tea.MouseClickMsg{X: 2, Y: y, Button: tea.MouseLeft})
	if m.pressed == nil || m.pressed.taskID != "t1" {
		t.Fatalf("expected armed drag on t1, got %#v", m.pressed)
	}

	clock = clock.Add(40 * time.Millisecond)
	m, _ = update(t, m, tea.MouseMotionMsg{X: w + laneGap + 2, Y: y, Button: tea.MouseLeft})
	targetX := 2*(w+laneGap) + 2
	clock = clock.Add(40 * time.Millisecond)
	m, _ = update(t, m, tea.MouseMotionMsg{X: targetX, Y: y, Button: tea.MouseLeft})
	if m.pressed.hover == nil || m.pressed.hover.Status != domain.StatusInReview {
		t.Fatalf("expected hover on IN_REVIEW, got %#v", m.pressed.hover)
	}

	clock = clock.Add(40 * time.Millisecond)
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: targetX, Y: y, Button: tea.MouseLeft})
	if m.pressed != nil {
		t.Fatal("expected drag state cleared after release")
	}
	got, err := store.Task("t1")
	if err != nil {
		t.Fatalf("Task() error = %v", err)
	}
	if got.Status != domain.StatusInReview || got.OrderIndex != 1 {
		t.Fatalf("unexpected dropped task %#v", got)
	}
	if m.selectedColumn != 2 {
		t.Fatalf("selectedColumn = %d, want 2", m.selectedColumn)
	}
}

// TestModelClickOpensTaskInfo verifies a press without movement resolves as a click.
func TestModelClickOpensTaskInfo(t *testing.T) {
	store := newTestStore(t)
	seedTasks(t, store, "First", "Second")
	m := loadReadyModel(t, NewModel(store))

	y := tasksTop() + cardHeight
	m, _ = update(t, m, tea.MouseClickMsg{X: 3, Y: y, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: 3, Y: y, Button: tea.MouseLeft})
	if m.mode != modeTaskInfo || m.infoTaskID != "t2" {
		t.Fatalf("expected task info for t2, got mode=%d id=%q", m.mode, m.infoTaskID)
	}
	if got, _ := store.Task("t2"); got.Status != domain.StatusTodo || got.OrderIndex != 2 {
		t.Fatalf("click must not move the task, got %#v", got)
	}

	m, _ = update(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone {
		t.Fatalf("expected info closed, got mode=%d", m.mode)
	}
}

// TestModelCopyID verifies the selected task id goes to the clipboard writer.
func TestModelCopyID(t *testing.T) {
	store := newTestStore(t)
	seedTasks(t, store, "Copy me")
	var copied string
	m := loadReadyModel(t, NewModel(store, WithClipboard(func(s string) error {
		copied = s
		return nil
	})))

	m, _ = update(t, m, keyRune('y'))
	if copied != "t1" || m.status != "copied t1" {
		t.Fatalf("copied=%q status=%q", copied, m.status)
	}
}

// TestModelRevisionRefresh verifies store changes made elsewhere reach the board.
func TestModelRevisionRefresh(t *testing.T) {
	store := newTestStore(t)
	m := loadReadyModel(t, NewModel(store))
	if len(m.currentColumnTasks()) != 0 {
		t.Fatalf("expected empty board")
	}
	seedTasks(t, store, "From elsewhere")
	m, cmd := update(t, m, revisionMsg{revision: store.Revision()})
	if cmd == nil {
		t.Fatal("expected revision listener to be re-armed")
	}
	if len(m.currentColumnTasks()) != 1 {
		t.Fatalf("expected refreshed lane, got %#v", m.currentColumnTasks())
	}
}

// TestModelFetchAndActivity verifies fetch status and the activity overlay.
func TestModelFetchAndActivity(t *testing.T) {
	store := newTestStore(t)
	seedTasks(t, store, "A", "B")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, keyRune('r'))
	if m.status != "ready · 2 tasks" {
		t.Fatalf("status = %q, want ready · 2 tasks", m.status)
	}

	m = applyMsg(t, m, keyRune('a'))
	if m.mode != modeActivity {
		t.Fatalf("expected activity mode, got %d", m.mode)
	}
	if overlay := m.renderOverlay(lipgloss.Color("62"), lipgloss.Color("241")); !strings.Contains(overlay, "no recorded changes") {
		t.Fatalf("overlay = %q, want empty activity message", overlay)
	}
}

// TestModelFetchFilterNarrowsBoard verifies a filtered board moves tasks
// without disturbing hidden lane positions.
func TestModelFetchFilterNarrowsBoard(t *testing.T) {
	store := newTestStore(t)
	for _, seed := range []struct{ title, empresa string }{{"One", "e1"}, {"Two", "e2"}, {"Three", "e1"}} {
		if _, err := store.CreateTask(t.Context(), app.CreateTaskInput{Title: seed.title, OriginModule: domain.OriginAudit, EmpresaID: seed.empresa}); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}
	m := loadReadyModel(t, NewModel(store, WithFetchFilter(app.TaskFilter{EmpresaID: "e1"})))

	m = applyMsg(t, m, keyRune('r'))
	if m.status != "ready · 2 tasks" {
		t.Fatalf("status = %q, want ready · 2 tasks", m.status)
	}
	todo := m.board.Columns[0].Tasks
	if len(todo) != 2 || todo[0].ID != "t1" || todo[1].ID != "t3" {
		t.Fatalf("unexpected filtered TODO column %#v", todo)
	}

	m = applyMsg(t, m, keyRune(']'))
	m = applyMsg(t, m, keyRune('['))
	if ids := laneTaskIDs(store, domain.StatusTodo); strings.Join(ids, ",") != "t2,t3,t1" {
		t.Fatalf("todo lane = %v, want [t2 t3 t1]", ids)
	}
	for i, task := range store.Lane(domain.StatusTodo) {
		if task.OrderIndex != i+1 {
			t.Fatalf("todo lane not contiguous at %d: %#v", i, task)
		}
	}
}

// TestModelWIPWarning verifies over-limit lanes are flagged.
func TestModelWIPWarning(t *testing.T) {
	store := newTestStore(t)
	seedTasks(t, store, "A", "B")
	lanes := app.DefaultLanes()
	lanes[0].WIPLimit = 1
	m := loadReadyModel(t, NewModel(store, WithLanes(lanes)))
	if out := m.renderLanes(testAccent, testDim, testWarn); !strings.Contains(out, "WIP!") {
		t.Fatalf("expected WIP warning in lanes:\n%s", out)
	}

	m = loadReadyModel(t, NewModel(store, WithLanes(lanes), WithWIPWarnings(false)))
	if out := m.renderLanes(testAccent, testDim, testWarn); strings.Contains(out, "WIP!") {
		t.Fatalf("unexpected WIP warning when disabled:\n%s", out)
	}
}

// TestModelHitTesting verifies lane, card, and drop-slot geometry.
func TestModelHitTesting(t *testing.T) {
	store := newTestStore(t)
	seedTasks(t, store, "A", "B", "C")
	m := loadReadyModel(t, NewModel(store))
	w := m.laneWidth()

	if got := m.laneAt(0); got != 0 {
		t.Fatalf("laneAt(0) = %d, want 0", got)
	}
	if got := m.laneAt(w); got != -1 {
		t.Fatalf("laneAt(gap) = %d, want -1", got)
	}
	if got := m.laneAt(w + laneGap); got != 1 {
		t.Fatalf("laneAt(second lane) = %d, want 1", got)
	}
	if got := m.cardAt(0, tasksTop()+2*cardHeight); got != 2 {
		t.Fatalf("cardAt(third card) = %d, want 2", got)
	}
	if got := m.cardAt(0, tasksTop()+3*cardHeight); got != -1 {
		t.Fatalf("cardAt(below cards) = %d, want -1", got)
	}

	target := m.dropTargetAt(1, tasksTop()+10*cardHeight, "t1")
	if target == nil || target.Status != domain.StatusTodo || target.Index != 2 {
		t.Fatalf("expected clamp to end of lane excluding dragged task, got %#v", target)
	}
	if target := m.dropTargetAt(1, boardTop, "t1"); target == nil || target.Index != 0 {
		t.Fatalf("expected header drop to land first, got %#v", target)
	}
	if target := m.dropTargetAt(1, 0, "t1"); target != nil {
		t.Fatalf("expected no target above board, got %#v", target)
	}
}

// TestModelViewAndQuit verifies view flags and the quit command.
func TestModelViewAndQuit(t *testing.T) {
	store := newTestStore(t)
	m := loadReadyModel(t, NewModel(store))
	v := m.View()
	if v.Content == nil || v.MouseMode != tea.MouseModeCellMotion || !v.AltScreen {
		t.Fatalf("unexpected view flags %#v", v)
	}

	_, cmd := update(t, m, keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg from quit command")
	}
}
