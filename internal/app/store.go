package app

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/evanschultz/quadro/internal/domain"
)

// IDGenerator returns unique identifiers for new tasks.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// StoreOption configures optional Store collaborators.
type StoreOption func(*Store)

// WithLogger routes store diagnostics to logger.
func WithLogger(logger *log.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier registers the assignment notifier.
func WithNotifier(n Notifier) StoreOption {
	return func(s *Store) {
		s.notifier = n
	}
}

// WithProfiles registers the directory used to name responsible users.
func WithProfiles(p ProfileDirectory) StoreOption {
	return func(s *Store) {
		if p != nil {
			s.profiles = p
		}
	}
}

// Store is the single owner of the session's task collection. Every mutation
// runs behind one lock: snapshot, compute, persist, publish.
type Store struct {
	mu       sync.Mutex
	persist  Persistence
	idGen    IDGenerator
	clock    Clock
	logger   *log.Logger
	notifier Notifier
	profiles ProfileDirectory

	// tasks is the full working set; view narrows what Tasks and Board show.
	tasks    []domain.Task
	view     TaskFilter
	revision uint64
	closed   bool

	// revision at which each id was last written locally, and created locally.
	touchedAt map[string]uint64
	createdAt map[string]uint64

	inFlight     atomic.Int32
	fetchIssued  uint64
	fetchApplied uint64

	subs    map[int]chan uint64
	nextSub int
}

// NewStore constructs a store. A nil persistence keeps the store in memory only.
func NewStore(persist Persistence, idGen IDGenerator, clock Clock, opts ...StoreOption) *Store {
	if idGen == nil {
		idGen = uuid.NewString
	}
	if clock == nil {
		clock = time.Now
	}
	s := &Store{
		persist:   persist,
		idGen:     idGen,
		clock:     clock,
		logger:    log.New(io.Discard),
		profiles:  StaticProfiles{},
		touchedAt: map[string]uint64{},
		createdAt: map[string]uint64{},
		subs:      map[int]chan uint64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	Title             string
	Description       string
	Status            domain.Status
	Priority          domain.Priority
	DueDate           *time.Time
	OriginModule      domain.OriginModule
	EmpresaID         string
	ProcessoID        string
	DenunciaID        string
	DividaID          string
	ResponsavelUserID string
	Anexos            []string
}

// CreateTask validates in, places the task last in its lane, and prepends it
// to the collection.
func (s *Store) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Task{}, ErrStoreClosed
	}
	status := in.Status
	if status == "" {
		status = domain.DefaultStatus
	}
	id := s.idGen()
	if slices.ContainsFunc(s.tasks, func(t domain.Task) bool { return t.ID == id }) {
		s.mu.Unlock()
		return domain.Task{}, &ValidationError{Field: "id", Err: ErrDuplicateID}
	}
	task, err := domain.NewTask(domain.TaskInput{
		ID:                id,
		Title:             in.Title,
		Description:       in.Description,
		Status:            status,
		Priority:          in.Priority,
		DueDate:           in.DueDate,
		OriginModule:      in.OriginModule,
		EmpresaID:         in.EmpresaID,
		ProcessoID:        in.ProcessoID,
		DenunciaID:        in.DenunciaID,
		DividaID:          in.DividaID,
		ResponsavelUserID: in.ResponsavelUserID,
		OrderIndex:        nextOrderIndex(s.tasks, status),
		Anexos:            in.Anexos,
	}, s.clock())
	if err != nil {
		s.mu.Unlock()
		return domain.Task{}, validationFromDomain(err)
	}
	if s.persist != nil {
		if err := s.persist.CreateTask(ctx, task); err != nil {
			s.mu.Unlock()
			s.logger.Warn("create task persist failed", "task_id", task.ID, "err", err)
			return domain.Task{}, transportFromErr("create task", task.ID, err)
		}
	}
	next := make([]domain.Task, 0, len(s.tasks)+1)
	next = append(next, task)
	next = append(next, s.tasks...)
	rev := s.publishLocked(next, task.ID)
	s.createdAt[task.ID] = rev
	s.mu.Unlock()

	s.logger.Debug("task created", "task_id", task.ID, "status", task.Status, "order_index", task.OrderIndex)
	if task.ResponsavelUserID != "" {
		s.notifyAssignment(ctx, task)
	}
	return task.Clone(), nil
}

// UpdateTask merges patch onto the task. Lane membership and order are never
// changed here; MoveTask owns them.
func (s *Store) UpdateTask(ctx context.Context, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	taskID = strings.TrimSpace(taskID)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Task{}, ErrStoreClosed
	}
	pos := slices.IndexFunc(s.tasks, func(t domain.Task) bool { return t.ID == taskID })
	if pos < 0 {
		s.mu.Unlock()
		return domain.Task{}, &NotFoundError{ID: taskID}
	}
	prev := s.tasks[pos]
	task, err := prev.ApplyPatch(patch, s.clock())
	if err != nil {
		s.mu.Unlock()
		return domain.Task{}, validationFromDomain(err)
	}
	if s.persist != nil {
		if err := s.persist.UpdateTask(ctx, task); err != nil {
			s.mu.Unlock()
			s.logger.Warn("update task persist failed", "task_id", task.ID, "err", err)
			return domain.Task{}, transportFromErr("update task", task.ID, err)
		}
	}
	next := slices.Clone(s.tasks)
	next[pos] = task
	s.publishLocked(next, task.ID)
	s.mu.Unlock()

	s.logger.Debug("task updated", "task_id", task.ID, "version", task.Version)
	if task.ResponsavelUserID != "" && task.ResponsavelUserID != prev.ResponsavelUserID {
		s.notifyAssignment(ctx, task)
	}
	return task.Clone(), nil
}

// MoveTask places the task at toIndex (0-based, excluding itself) in the to lane
// as the current view shows it. Out-of-range indexes clamp; EndOfLane appends.
// Moving to the current slot is a no-op.
func (s *Store) MoveTask(ctx context.Context, taskID string, to domain.Status, toIndex int) (domain.Task, error) {
	taskID = strings.TrimSpace(taskID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Task{}, ErrStoreClosed
	}
	plan, err := planMove(s.tasks, taskID, to, viewToLaneIndex(s.tasks, s.view, to, taskID, toIndex), s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if len(plan.changed) == 0 {
		return plan.moved.Clone(), nil
	}
	if s.persist != nil {
		if err := s.persist.MoveTasks(ctx, taskID, plan.changed); err != nil {
			s.logger.Warn("move task persist failed", "task_id", taskID, "err", err)
			return domain.Task{}, transportFromErr("move task", taskID, err)
		}
	}
	ids := make([]string, 0, len(plan.changed))
	for _, t := range plan.changed {
		ids = append(ids, t.ID)
	}
	s.publishLocked(plan.tasks, ids...)
	s.logger.Debug("task moved", "task_id", taskID, "status", plan.moved.Status, "order_index", plan.moved.OrderIndex, "renumbered", len(ids))
	return plan.moved.Clone(), nil
}

// ReplaceTasks swaps the whole collection, as an import does. Tasks are
// validated and every lane renumbered before anything is persisted.
func (s *Store) ReplaceTasks(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
	now := s.clock()
	seen := map[string]struct{}{}
	next := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := seen[t.ID]; ok {
			return nil, &ValidationError{Field: "id", Err: domain.ErrInvalidID}
		}
		seen[t.ID] = struct{}{}
		orderIndex := max(t.OrderIndex, 1)
		created := t.CreatedAt
		if created.IsZero() {
			created = now
		}
		checked, err := domain.NewTask(domain.TaskInput{
			ID:                t.ID,
			Title:             t.Title,
			Description:       t.Description,
			Status:            t.Status,
			Priority:          t.Priority,
			DueDate:           t.DueDate,
			OriginModule:      t.OriginModule,
			EmpresaID:         t.EmpresaID,
			ProcessoID:        t.ProcessoID,
			DenunciaID:        t.DenunciaID,
			DividaID:          t.DividaID,
			ResponsavelUserID: t.ResponsavelUserID,
			OrderIndex:        orderIndex,
			Anexos:            t.Anexos,
		}, created)
		if err != nil {
			return nil, validationFromDomain(err)
		}
		checked.Version = max(t.Version, 1)
		if !t.UpdatedAt.IsZero() {
			checked.UpdatedAt = t.UpdatedAt.UTC()
		}
		next = append(next, checked)
	}
	next = renumberLanes(next)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.persist != nil {
		if err := s.persist.ReplaceTasks(ctx, next); err != nil {
			s.logger.Warn("replace tasks persist failed", "count", len(next), "err", err)
			return nil, transportFromErr("replace tasks", "", err)
		}
	}
	clear(s.touchedAt)
	clear(s.createdAt)
	s.publishLocked(next)
	s.logger.Debug("tasks replaced", "count", len(next))
	return cloneTasks(next), nil
}

// Tasks returns the tasks in the current view, most recently created first.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterTasks(s.tasks, s.view)
}

// View reports the filter applied by the latest fetch.
func (s *Store) View() TaskFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Task returns one task by id.
func (s *Store) Task(taskID string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == taskID {
			return t.Clone(), nil
		}
	}
	return domain.Task{}, &NotFoundError{ID: taskID}
}

// Lane returns every task in status ordered by orderIndex, ignoring the view.
func (s *Store) Lane(status domain.Status) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(laneOf(s.tasks, status, ""))
}

// Revision increases by one on every published change.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// IsLoading reports whether any fetch is in flight.
func (s *Store) IsLoading() bool {
	return s.inFlight.Load() > 0
}

// DisplayName resolves a responsible user through the profile directory.
func (s *Store) DisplayName(userID string) string {
	if userID == "" {
		return ""
	}
	return s.profiles.DisplayName(userID)
}

// ChangeEvents lists recent ledger entries from the persistence collaborator.
func (s *Store) ChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if s.persist == nil {
		return nil, nil
	}
	events, err := s.persist.ListChangeEvents(ctx, limit)
	if err != nil {
		return nil, &TransportError{Op: "list change events", Err: err}
	}
	return events, nil
}

// Subscribe returns a channel that receives the latest revision after each
// publish. Slow readers only ever see the newest revision. Call cancel to stop.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan uint64, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Close ends the store lifecycle. Subscriptions close and later mutations
// fail with ErrStoreClosed; reads keep working.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	return nil
}

// publishLocked installs next as the collection, stamps the written ids, and
// wakes subscribers. Callers hold s.mu.
func (s *Store) publishLocked(next []domain.Task, written ...string) uint64 {
	s.tasks = next
	s.revision++
	for _, id := range written {
		s.touchedAt[id] = s.revision
	}
	s.wakeLocked()
	return s.revision
}

func (s *Store) notifyAssignment(ctx context.Context, task domain.Task) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyAssignment(ctx, Assignment{
		Task:        task.Clone(),
		UserID:      task.ResponsavelUserID,
		DisplayName: s.DisplayName(task.ResponsavelUserID),
	})
	if err != nil {
		s.logger.Warn("assignment notification failed", "task_id", task.ID, "user_id", task.ResponsavelUserID, "err", err)
	}
}

// filterTasks clones the tasks matching f.
func filterTasks(tasks []domain.Task, f TaskFilter) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Clone())
	}
	return out
}
