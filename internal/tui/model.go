package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/domain"
)

// Service is the store surface the board needs. *app.Store satisfies it.
type Service interface {
	Board(lanes []app.LaneConfig) app.Board
	Task(taskID string) (domain.Task, error)
	CreateTask(ctx context.Context, in app.CreateTaskInput) (domain.Task, error)
	MoveTask(ctx context.Context, taskID string, to domain.Status, toIndex int) (domain.Task, error)
	FetchTasks(ctx context.Context, filter app.TaskFilter) ([]domain.Task, error)
	ChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error)
	Subscribe() (<-chan uint64, func())
	DisplayName(userID string) string
}

// inputMode identifies which overlay owns key input.
type inputMode int

const (
	modeNone inputMode = iota
	modeAddTask
	modeTaskInfo
	modeActivity
)

// Board geometry shared by rendering and mouse hit testing.
const (
	boardTop      = 2
	laneGap       = 1
	cardHeight    = 2
	minLaneWidth  = 18
	activityLimit = 50
)

// formField is one input of the new-task form.
type formField struct {
	label       string
	placeholder string
	limit       int
}

var taskFormFields = []formField{
	{label: "title", placeholder: "required", limit: 200},
	{label: "origin", placeholder: "AUDIT, COMPLIANCE, HR, DEBT_COLLECTION, WHISTLEBLOWING, LEGAL, GENERAL", limit: 32},
	{label: "priority", placeholder: "HIGH, MEDIUM, LOW (default MEDIUM)", limit: 16},
	{label: "due", placeholder: "YYYY-MM-DD", limit: 32},
	{label: "company", placeholder: "empresa id", limit: 64},
	{label: "assignee", placeholder: "user id", limit: 64},
	{label: "description", placeholder: "markdown", limit: 2000},
}

const (
	fieldTitle = iota
	fieldOrigin
	fieldPriority
	fieldDue
	fieldCompany
	fieldAssignee
	fieldDescription
)

// dragState tracks one pointer press until release.
type dragState struct {
	taskID    string
	start     app.Point
	startedAt time.Time
	samples   []app.Sample
	hover     *app.DropTarget
}

// Model is the bubbletea board model.
type Model struct {
	svc  Service
	drag *app.DragCoordinator

	ready  bool
	width  int
	height int
	status string

	help help.Model
	keys keyMap

	lanes           []app.LaneConfig
	showWIPWarnings bool
	dragCfg         app.DragConfig
	filter          app.TaskFilter

	board          app.Board
	selectedColumn int
	selectedTask   int

	mode       inputMode
	formInputs []textinput.Model
	formFocus  int
	infoTaskID string
	activity   []domain.ChangeEvent

	pressed *dragState

	revisions   <-chan uint64
	unsubscribe func()

	markdown *markdownRenderer
	copyText func(string) error
	now      func() time.Time
}

type revisionMsg struct {
	revision uint64
}

type fetchedMsg struct {
	count int
	err   error
}

type actionMsg struct {
	status      string
	focusTaskID string
	err         error
}

type gestureMsg struct {
	outcome app.GestureOutcome
	err     error
}

type activityLoadedMsg struct {
	events []domain.ChangeEvent
	err    error
}

// NewModel constructs the board over svc and subscribes to its revisions.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:             svc,
		status:          "loading...",
		help:            h,
		keys:            newKeyMap(),
		lanes:           app.DefaultLanes(),
		showWIPWarnings: true,
		dragCfg:         app.DefaultDragConfig(),
		markdown:        &markdownRenderer{},
		copyText:        clipboard.WriteAll,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.drag = app.NewDragCoordinator(svc, m.dragCfg)
	m.revisions, m.unsubscribe = svc.Subscribe()
	m.refreshBoard()
	return m
}

// Init starts the first fetch and the revision listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.waitForRevision())
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case revisionMsg:
		m.refreshBoard()
		return m, m.waitForRevision()

	case fetchedMsg:
		m.refreshBoard()
		if msg.err != nil {
			m.status = "fetch failed: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("ready · %d tasks", msg.count)
		return m, nil

	case actionMsg:
		m.refreshBoard()
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.focusTaskID != "" {
			m.focusTaskByID(msg.focusTaskID)
		}
		if msg.status != "" {
			m.status = msg.status
		}
		return m, nil

	case gestureMsg:
		return m.applyGesture(msg)

	case activityLoadedMsg:
		if msg.err != nil {
			m.status = "activity failed: " + msg.err.Error()
			return m, nil
		}
		m.activity = msg.events
		m.mode = modeActivity
		return m, nil

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)
	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)
	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)
	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	case tea.KeyPressMsg:
		if m.mode == modeAddTask {
			return m.handleFormKey(msg)
		}
		if m.mode != modeNone {
			return m.handleOverlayKey(msg)
		}
		return m.handleNormalModeKey(msg)
	}
	return m, nil
}

// handleNormalModeKey handles board navigation and task actions.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.fetch):
		m.status = "fetching..."
		return m, m.fetchCmd()
	case key.Matches(msg, m.keys.laneLeft):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.clampSelections()
		}
		return m, nil
	case key.Matches(msg, m.keys.laneRight):
		if m.selectedColumn < len(m.board.Columns)-1 {
			m.selectedColumn++
			m.clampSelections()
		}
		return m, nil
	case key.Matches(msg, m.keys.reorderUp):
		return m.reorderSelected(-1)
	case key.Matches(msg, m.keys.reorderDown):
		return m.reorderSelected(1)
	case key.Matches(msg, m.keys.cardUp):
		if m.selectedTask > 0 {
			m.selectedTask--
		}
		return m, nil
	case key.Matches(msg, m.keys.cardDown):
		if m.selectedTask < len(m.currentColumnTasks())-1 {
			m.selectedTask++
		}
		return m, nil
	case key.Matches(msg, m.keys.moveTaskLeft):
		return m.moveSelectedToLane(-1)
	case key.Matches(msg, m.keys.moveTaskRight):
		return m.moveSelectedToLane(1)
	case key.Matches(msg, m.keys.addTask):
		return m, m.startTaskForm()
	case key.Matches(msg, m.keys.taskInfo):
		task, ok := m.selectedTaskInCurrentColumn()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.infoTaskID = task.ID
		m.mode = modeTaskInfo
		return m, nil
	case key.Matches(msg, m.keys.copyID):
		task, ok := m.selectedTaskInCurrentColumn()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		if err := m.copyText(task.ID); err != nil {
			m.status = "copy failed: " + err.Error()
			return m, nil
		}
		m.status = "copied " + task.ID
		return m, nil
	case key.Matches(msg, m.keys.activity):
		return m, m.loadActivityCmd()
	}
	return m, nil
}

// handleOverlayKey closes read-only overlays.
func (m Model) handleOverlayKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.mode = modeNone
		m.infoTaskID = ""
		return m, nil
	case key.Matches(msg, m.keys.copyID) && m.mode == modeTaskInfo:
		if err := m.copyText(m.infoTaskID); err != nil {
			m.status = "copy failed: " + err.Error()
			return m, nil
		}
		m.status = "copied " + m.infoTaskID
		return m, nil
	}
	return m, nil
}

// handleFormKey drives the new-task form.
func (m Model) handleFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.formInputs = nil
		m.status = "cancelled"
		return m, nil
	case "tab", "down":
		return m, m.focusFormField(m.formFocus + 1)
	case "shift+tab", "up":
		return m, m.focusFormField(m.formFocus - 1)
	case "enter":
		return m.submitTaskForm()
	}
	var cmd tea.Cmd
	m.formInputs[m.formFocus], cmd = m.formInputs[m.formFocus].Update(msg)
	return m, cmd
}

// startTaskForm opens the new-task form targeting the selected lane.
func (m *Model) startTaskForm() tea.Cmd {
	m.mode = modeAddTask
	m.formInputs = make([]textinput.Model, 0, len(taskFormFields))
	for _, f := range taskFormFields {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = f.placeholder
		in.CharLimit = f.limit
		m.formInputs = append(m.formInputs, in)
	}
	m.formFocus = 0
	m.status = "new task"
	return m.focusFormField(0)
}

// focusFormField moves focus with wraparound.
func (m *Model) focusFormField(idx int) tea.Cmd {
	if len(m.formInputs) == 0 {
		return nil
	}
	idx = wrapIndex(idx, len(m.formInputs))
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	m.formFocus = idx
	return m.formInputs[idx].Focus()
}

// submitTaskForm validates the form and issues the create.
func (m Model) submitTaskForm() (tea.Model, tea.Cmd) {
	values := app.TaskFormValues{
		Title:             m.formInputs[fieldTitle].Value(),
		OriginModule:      m.formInputs[fieldOrigin].Value(),
		Priority:          m.formInputs[fieldPriority].Value(),
		DueDate:           m.formInputs[fieldDue].Value(),
		EmpresaID:         m.formInputs[fieldCompany].Value(),
		ResponsavelUserID: m.formInputs[fieldAssignee].Value(),
		Description:       m.formInputs[fieldDescription].Value(),
	}
	if col, ok := m.currentColumn(); ok {
		values.Status = string(col.Status)
	}
	in, err := app.ParseTaskForm(values)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.mode = modeNone
	m.formInputs = nil
	return m, m.createTaskCmd(in)
}

// moveSelectedToLane moves the selected task one lane over, to the end.
func (m Model) moveSelectedToLane(delta int) (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskInCurrentColumn()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	target := m.selectedColumn + delta
	if target < 0 || target >= len(m.board.Columns) {
		m.status = "no lane in that direction"
		return m, nil
	}
	col := m.board.Columns[target]
	return m, m.moveTaskCmd(task.ID, col.Status, app.EndOfLane, "moved to "+col.Name)
}

// reorderSelected swaps the selected task with its neighbour in the lane.
func (m Model) reorderSelected(delta int) (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskInCurrentColumn()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	target := m.selectedTask + delta
	if target < 0 || target >= len(m.currentColumnTasks()) {
		return m, nil
	}
	return m, m.moveTaskCmd(task.ID, task.Status, target, "reordered")
}

// handleMouseWheel scrolls the selection within the current lane.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone {
		return m, nil
	}
	tasks := m.currentColumnTasks()
	switch msg.Button {
	case tea.MouseWheelUp:
		if m.selectedTask > 0 {
			m.selectedTask--
		}
	case tea.MouseWheelDown:
		if m.selectedTask < len(tasks)-1 {
			m.selectedTask++
		}
	}
	return m, nil
}

// handleMouseClick selects under the pointer and arms a drag on a card.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || msg.Button != tea.MouseLeft {
		return m, nil
	}
	lane := m.laneAt(msg.X)
	if lane < 0 {
		return m, nil
	}
	m.selectedColumn = lane
	card := m.cardAt(lane, msg.Y)
	if card < 0 {
		m.clampSelections()
		return m, nil
	}
	m.selectedTask = card
	m.pressed = &dragState{
		taskID:    m.board.Columns[lane].Tasks[card].ID,
		start:     app.Point{X: msg.X, Y: msg.Y},
		startedAt: m.now(),
	}
	return m, nil
}

// handleMouseMotion records drag samples and the hovered drop slot.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.pressed == nil {
		return m, nil
	}
	pressed := *m.pressed
	pressed.samples = append(append([]app.Sample(nil), pressed.samples...), app.Sample{
		Point: app.Point{X: msg.X, Y: msg.Y},
		At:    m.now().Sub(pressed.startedAt),
	})
	pressed.hover = m.dropTargetAt(msg.X, msg.Y, pressed.taskID)
	m.pressed = &pressed
	return m, nil
}

// handleMouseRelease ends the gesture and hands it to the coordinator.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if m.pressed == nil {
		return m, nil
	}
	pressed := m.pressed
	m.pressed = nil
	g := app.GestureEnd{
		TaskID:     pressed.taskID,
		Input:      app.InputPointer,
		Start:      pressed.start,
		Samples:    pressed.samples,
		End:        app.Point{X: msg.X, Y: msg.Y},
		ReleasedAt: m.now().Sub(pressed.startedAt),
		Target:     m.dropTargetAt(msg.X, msg.Y, pressed.taskID),
	}
	return m, m.endGestureCmd(g)
}

// applyGesture reacts to a resolved gesture.
func (m Model) applyGesture(msg gestureMsg) (tea.Model, tea.Cmd) {
	m.refreshBoard()
	if msg.err != nil {
		m.status = "move failed: " + msg.err.Error()
		return m, nil
	}
	switch msg.outcome.Kind {
	case app.OutcomeClick:
		m.focusTaskByID(msg.outcome.TaskID)
		m.infoTaskID = msg.outcome.TaskID
		m.mode = modeTaskInfo
	case app.OutcomeMove:
		m.focusTaskByID(msg.outcome.TaskID)
		if col, ok := m.currentColumn(); ok {
			m.status = "moved to " + col.Name
		}
	default:
		m.status = "drag cancelled"
	}
	return m, nil
}

// laneAt maps a screen column to a lane index, or -1 for gaps and margins.
func (m Model) laneAt(x int) int {
	n := len(m.board.Columns)
	if n == 0 || x < 0 {
		return -1
	}
	w := m.laneWidth()
	idx := x / (w + laneGap)
	if idx >= n || x%(w+laneGap) >= w {
		return -1
	}
	return idx
}

// cardAt maps a screen row inside lane to a card index, or -1.
func (m Model) cardAt(lane, y int) int {
	row := y - tasksTop()
	if lane < 0 || lane >= len(m.board.Columns) || row < 0 {
		return -1
	}
	idx := row / cardHeight
	if idx >= len(m.board.Columns[lane].Tasks) {
		return -1
	}
	return idx
}

// dropTargetAt resolves the lane slot under (x, y). The dragged task is
// excluded from the slot count so indexes match MoveTask semantics.
func (m Model) dropTargetAt(x, y int, draggedID string) *app.DropTarget {
	lane := m.laneAt(x)
	if lane < 0 || y < boardTop {
		return nil
	}
	col := m.board.Columns[lane]
	count := 0
	for _, t := range col.Tasks {
		if t.ID != draggedID {
			count++
		}
	}
	idx := clamp((y-tasksTop())/cardHeight, 0, count)
	if y < tasksTop() {
		idx = 0
	}
	return &app.DropTarget{Status: col.Status, Index: idx}
}

func tasksTop() int {
	return boardTop + 2
}

// laneWidth returns the outer width of one lane.
func (m Model) laneWidth() int {
	n := max(len(m.board.Columns), 1)
	if m.width <= 0 {
		return minLaneWidth
	}
	return max(minLaneWidth, (m.width-(n-1)*laneGap)/n)
}

// refreshBoard re-projects the store and keeps the selection in range.
func (m *Model) refreshBoard() {
	selectedID := ""
	if task, ok := m.selectedTaskInCurrentColumn(); ok {
		selectedID = task.ID
	}
	m.board = m.svc.Board(m.lanes)
	if selectedID != "" {
		m.focusTaskByID(selectedID)
	}
	m.clampSelections()
}

// focusTaskByID selects the lane and card holding taskID.
func (m *Model) focusTaskByID(taskID string) bool {
	for ci, col := range m.board.Columns {
		for ti, t := range col.Tasks {
			if t.ID == taskID {
				m.selectedColumn = ci
				m.selectedTask = ti
				return true
			}
		}
	}
	return false
}

// clampSelections clamps selections.
func (m *Model) clampSelections() {
	if len(m.board.Columns) == 0 {
		m.selectedColumn = 0
		m.selectedTask = 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(m.board.Columns)-1)
	m.selectedTask = clamp(m.selectedTask, 0, max(0, len(m.currentColumnTasks())-1))
}

func (m Model) currentColumn() (app.Column, bool) {
	if m.selectedColumn < 0 || m.selectedColumn >= len(m.board.Columns) {
		return app.Column{}, false
	}
	return m.board.Columns[m.selectedColumn], true
}

func (m Model) currentColumnTasks() []domain.Task {
	col, ok := m.currentColumn()
	if !ok {
		return nil
	}
	return col.Tasks
}

func (m Model) selectedTaskInCurrentColumn() (domain.Task, bool) {
	tasks := m.currentColumnTasks()
	if m.selectedTask < 0 || m.selectedTask >= len(tasks) {
		return domain.Task{}, false
	}
	return tasks[m.selectedTask], true
}

// waitForRevision blocks until the store publishes a new revision.
func (m Model) waitForRevision() tea.Cmd {
	ch := m.revisions
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		rev, ok := <-ch
		if !ok {
			return nil
		}
		return revisionMsg{revision: rev}
	}
}

func (m Model) fetchCmd() tea.Cmd {
	svc, filter := m.svc, m.filter
	return func() tea.Msg {
		tasks, err := svc.FetchTasks(context.Background(), filter)
		return fetchedMsg{count: len(tasks), err: err}
	}
}

func (m Model) createTaskCmd(in app.CreateTaskInput) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		task, err := svc.CreateTask(context.Background(), in)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "created " + task.Title, focusTaskID: task.ID}
	}
}

func (m Model) moveTaskCmd(taskID string, to domain.Status, index int, status string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		task, err := svc.MoveTask(context.Background(), taskID, to, index)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: status, focusTaskID: task.ID}
	}
}

func (m Model) endGestureCmd(g app.GestureEnd) tea.Cmd {
	coordinator := m.drag
	return func() tea.Msg {
		outcome, err := coordinator.End(context.Background(), g)
		return gestureMsg{outcome: outcome, err: err}
	}
}

func (m Model) loadActivityCmd() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		events, err := svc.ChangeEvents(context.Background(), activityLimit)
		return activityLoadedMsg{events: events, err: err}
	}
}

// View renders the board and any active overlay.
func (m Model) View() tea.View {
	if !m.ready {
		v := tea.NewView("loading...")
		v.MouseMode = tea.MouseModeCellMotion
		v.AltScreen = true
		return v
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	warn := lipgloss.Color("203")

	header := m.renderHeader(accent, muted)
	lanes := m.renderLanes(accent, dim, warn)

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	body := header + "\n\n" + lanes
	if m.height > 0 {
		body = fitLines(body, max(0, m.height-lipgloss.Height(helpLine)))
	}
	content := body + "\n" + helpLine
	if overlay := m.renderOverlay(accent, muted); overlay != "" {
		content = overlayOnContent(content, overlay, max(m.width, 1), max(lipgloss.Height(content), 1))
	}

	view := tea.NewView(content)
	view.MouseMode = tea.MouseModeCellMotion
	view.AltScreen = true
	return view
}

func (m Model) renderHeader(accent, muted color.Color) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(accent).Render("quadro")
	meta := fmt.Sprintf("rev %d", m.board.Revision)
	if m.board.Loading {
		meta += " · syncing..."
	}
	if m.pressed != nil && m.pressed.hover != nil {
		meta += fmt.Sprintf(" · drop → %s #%d", m.pressed.hover.Status, m.pressed.hover.Index+1)
	}
	line := title + "  " + lipgloss.NewStyle().Foreground(muted).Render(meta)
	if s := strings.TrimSpace(m.status); s != "" {
		line += "  " + lipgloss.NewStyle().Foreground(muted).Render(s)
	}
	return line
}

func (m Model) renderLanes(accent, dim, warn color.Color) string {
	if len(m.board.Columns) == 0 {
		return "no lanes configured"
	}
	w := m.laneWidth()
	inner := max(1, w-4)
	rendered := make([]string, 0, len(m.board.Columns)*2)
	for ci, col := range m.board.Columns {
		borderColor := dim
		if ci == m.selectedColumn {
			borderColor = accent
		}
		if m.pressed != nil && m.pressed.hover != nil && m.pressed.hover.Status == col.Status {
			borderColor = accent
		}
		headerText := fmt.Sprintf("%s (%d)", col.Name, len(col.Tasks))
		if col.WIPLimit > 0 {
			headerText = fmt.Sprintf("%s (%d/%d)", col.Name, len(col.Tasks), col.WIPLimit)
		}
		headerStyle := lipgloss.NewStyle().Bold(true)
		if m.showWIPWarnings && col.OverLimit() {
			borderColor = warn
			headerStyle = headerStyle.Foreground(warn)
			headerText += " WIP!"
		}
		lines := []string{headerStyle.Render(truncate(headerText, inner))}
		for ti, task := range col.Tasks {
			lines = append(lines, m.renderCard(task, inner, ci == m.selectedColumn && ti == m.selectedTask, accent, dim)...)
		}
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1).
			Width(w).
			Render(strings.Join(lines, "\n"))
		if ci > 0 {
			rendered = append(rendered, strings.Repeat(" ", laneGap))
		}
		rendered = append(rendered, box)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderCard(task domain.Task, width int, selected bool, accent, dim color.Color) []string {
	marker := "  "
	titleStyle := lipgloss.NewStyle()
	if selected {
		marker = "▌ "
		titleStyle = titleStyle.Foreground(accent).Bold(true)
	}
	if m.pressed != nil && m.pressed.taskID == task.ID && len(m.pressed.samples) > 0 {
		titleStyle = titleStyle.Faint(true)
	}
	meta := []string{strings.ToLower(string(task.Priority)), strings.ToLower(string(task.OriginModule))}
	if due := formatDue(task.DueDate); due != "" {
		meta = append(meta, "due "+due)
	}
	return []string{
		titleStyle.Render(marker + truncate(task.Title, width-2)),
		lipgloss.NewStyle().Foreground(dim).Render("  " + truncate(strings.Join(meta, " · "), width-2)),
	}
}

func (m Model) renderOverlay(accent, muted color.Color) string {
	width := min(max(m.width-8, 30), 90)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Width(width)
	hint := lipgloss.NewStyle().Foreground(muted)
	switch m.mode {
	case modeAddTask:
		lines := []string{lipgloss.NewStyle().Bold(true).Render("New task")}
		if col, ok := m.currentColumn(); ok {
			lines[0] += hint.Render("  → " + col.Name)
		}
		for i, in := range m.formInputs {
			label := fmt.Sprintf("%-12s", taskFormFields[i].label)
			if i == m.formFocus {
				label = lipgloss.NewStyle().Foreground(accent).Render(label)
			}
			lines = append(lines, label+in.View())
		}
		lines = append(lines, "", hint.Render("tab next · enter create · esc cancel"))
		return box.Render(strings.Join(lines, "\n"))
	case modeTaskInfo:
		task, err := m.svc.Task(m.infoTaskID)
		if err != nil {
			return box.Render("task not found\n\n" + hint.Render("esc close"))
		}
		doc := m.markdown.render(taskMarkdown(task, m.svc.DisplayName(task.ResponsavelUserID)), width-4)
		return box.Render(doc + "\n\n" + hint.Render("y copy id · esc close"))
	case modeActivity:
		lines := []string{lipgloss.NewStyle().Bold(true).Render("Activity")}
		if len(m.activity) == 0 {
			lines = append(lines, hint.Render("no recorded changes"))
		}
		for _, ev := range m.activity {
			lines = append(lines, truncate(formatActivity(ev), width-4))
		}
		lines = append(lines, "", hint.Render("esc close"))
		return box.Render(strings.Join(lines, "\n"))
	}
	return ""
}

func formatActivity(ev domain.ChangeEvent) string {
	line := fmt.Sprintf("%s  %-6s %s", ev.OccurredAt.Local().Format("01-02 15:04"), ev.Operation, ev.TaskID)
	switch ev.Operation {
	case domain.ChangeOperationMove:
		line += fmt.Sprintf("  %s → %s", ev.Metadata["from_status"], ev.Metadata["to_status"])
	case domain.ChangeOperationUpdate:
		if fields := ev.Metadata["changed_fields"]; fields != "" {
			line += "  " + fields
		}
	case domain.ChangeOperationCreate:
		if title := ev.Metadata["title"]; title != "" {
			line += "  " + title
		}
	}
	return line
}

func formatDue(due *time.Time) string {
	if due == nil {
		return ""
	}
	return due.UTC().Format(domain.DueDateLayout)
}

// wrapIndex wraps idx into [0, total).
func wrapIndex(idx, total int) int {
	if total <= 0 {
		return 0
	}
	return ((idx % total) + total) % total
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay on top of base.
func overlayOnContent(base, overlay string, width, height int) string {
	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	overlayLayer := lipgloss.NewLayer(centered).X(0).Y(0).Z(10)
	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}
