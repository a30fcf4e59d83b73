package app

import (
	"context"
	"strings"
	"time"

	"github.com/evanschultz/quadro/internal/domain"
)

// InputKind identifies the device that produced a gesture.
type InputKind string

// InputPointer and InputTouch are the supported gesture sources.
const (
	InputPointer InputKind = "pointer"
	InputTouch   InputKind = "touch"
)

// Point is a position in cells (TUI) or pixels (web).
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Sample is a position observed At after the press.
type Sample struct {
	Point
	At time.Duration `json:"at"`
}

// DropTarget is a lane and 0-based slot under the release point.
type DropTarget struct {
	Status domain.Status `json:"status"`
	Index  int           `json:"index"`
}

// GestureEnd is everything known about a gesture once it is released.
type GestureEnd struct {
	TaskID     string        `json:"taskId"`
	Input      InputKind     `json:"input"`
	Start      Point         `json:"start"`
	Samples    []Sample      `json:"samples,omitempty"`
	End        Point         `json:"end"`
	ReleasedAt time.Duration `json:"releasedAt"`
	Target     *DropTarget   `json:"target,omitempty"`
}

// DragConfig holds the activation thresholds that separate drags from clicks.
type DragConfig struct {
	PointerMinDistance int
	TouchLongPress     time.Duration
	TouchTolerance     int
}

// DefaultDragConfig returns thresholds tuned for terminal cells.
func DefaultDragConfig() DragConfig {
	return DragConfig{
		PointerMinDistance: 1,
		TouchLongPress:     250 * time.Millisecond,
		TouchTolerance:     5,
	}
}

// OutcomeKind classifies a resolved gesture.
type OutcomeKind string

// OutcomeClick and related values are the possible gesture resolutions.
const (
	OutcomeClick  OutcomeKind = "click"
	OutcomeMove   OutcomeKind = "move"
	OutcomeCancel OutcomeKind = "cancel"
)

// MoveIntent is the (task, lane, index) triple a completed drag produces.
type MoveIntent struct {
	TaskID   string        `json:"taskId"`
	ToStatus domain.Status `json:"toStatus"`
	ToIndex  int           `json:"toIndex"`
}

// GestureOutcome is the result of ResolveGesture. Intent is set only for OutcomeMove.
type GestureOutcome struct {
	Kind   OutcomeKind `json:"kind"`
	TaskID string      `json:"taskId,omitempty"`
	Intent *MoveIntent `json:"intent,omitempty"`
}

// ResolveGesture turns a released gesture into a click, a move intent, or a
// cancel. It has no side effects.
func ResolveGesture(g GestureEnd, cfg DragConfig) GestureOutcome {
	taskID := strings.TrimSpace(g.TaskID)
	if taskID == "" {
		return GestureOutcome{Kind: OutcomeCancel}
	}
	activated, moved := gestureActivation(g, cfg)
	if !activated {
		if moved {
			// a touch that travelled before the long press elapsed is a scroll.
			return GestureOutcome{Kind: OutcomeCancel, TaskID: taskID}
		}
		return GestureOutcome{Kind: OutcomeClick, TaskID: taskID}
	}
	if g.Target == nil || !g.Target.Status.Valid() {
		return GestureOutcome{Kind: OutcomeCancel, TaskID: taskID}
	}
	return GestureOutcome{
		Kind:   OutcomeMove,
		TaskID: taskID,
		Intent: &MoveIntent{
			TaskID:   taskID,
			ToStatus: g.Target.Status,
			ToIndex:  max(g.Target.Index, 0),
		},
	}
}

// gestureActivation reports whether the drag threshold was crossed and, for
// touch, whether the finger left the tolerance box at all.
func gestureActivation(g GestureEnd, cfg DragConfig) (bool, bool) {
	path := make([]Sample, 0, len(g.Samples)+1)
	path = append(path, g.Samples...)
	path = append(path, Sample{Point: g.End, At: g.ReleasedAt})

	switch g.Input {
	case InputTouch:
		leftAt := time.Duration(-1)
		for _, s := range path {
			if chebyshev(g.Start, s.Point) > cfg.TouchTolerance {
				leftAt = s.At
				break
			}
		}
		if leftAt < 0 {
			return g.ReleasedAt >= cfg.TouchLongPress, false
		}
		return leftAt >= cfg.TouchLongPress, true
	default:
		minDistance := max(cfg.PointerMinDistance, 1)
		for _, s := range path {
			if chebyshev(g.Start, s.Point) >= minDistance {
				return true, true
			}
		}
		return false, false
	}
}

func chebyshev(a, b Point) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TaskMover is the single store operation a drop may trigger.
type TaskMover interface {
	MoveTask(ctx context.Context, taskID string, to domain.Status, toIndex int) (domain.Task, error)
}

// DragCoordinator translates finished gestures into store moves. It never
// touches order itself.
type DragCoordinator struct {
	store TaskMover
	cfg   DragConfig
}

// NewDragCoordinator constructs a coordinator over store.
func NewDragCoordinator(store TaskMover, cfg DragConfig) *DragCoordinator {
	return &DragCoordinator{store: store, cfg: cfg}
}

// Config returns the activation thresholds in use.
func (d *DragCoordinator) Config() DragConfig {
	return d.cfg
}

// End resolves g and, for a move outcome only, calls Store.MoveTask.
func (d *DragCoordinator) End(ctx context.Context, g GestureEnd) (GestureOutcome, error) {
	outcome := ResolveGesture(g, d.cfg)
	if outcome.Kind != OutcomeMove {
		return outcome, nil
	}
	if _, err := d.store.MoveTask(ctx, outcome.Intent.TaskID, outcome.Intent.ToStatus, outcome.Intent.ToIndex); err != nil {
		return outcome, err
	}
	return outcome, nil
}
