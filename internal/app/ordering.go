package app

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/evanschultz/quadro/internal/domain"
)

// EndOfLane asks MoveTask to append to the destination lane.
const EndOfLane = math.MaxInt

// movePlan is the outcome of placing one task: the full next collection plus
// the tasks whose placement changed.
type movePlan struct {
	tasks   []domain.Task
	moved   domain.Task
	changed []domain.Task
}

// laneOf returns the tasks in status ordered by orderIndex, skipping skipID.
func laneOf(tasks []domain.Task, status domain.Status, skipID string) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != status || t.ID == skipID {
			continue
		}
		out = append(out, t)
	}
	slices.SortStableFunc(out, func(a, b domain.Task) int {
		return cmp.Or(cmp.Compare(a.OrderIndex, b.OrderIndex), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func clampIndex(idx, n int) int {
	return max(0, min(idx, n))
}

// planMove removes the task from its lane, inserts it at the clamped index of
// the destination lane, and renumbers both lanes 1..N. Other lanes are untouched.
func planMove(tasks []domain.Task, taskID string, to domain.Status, toIndex int, now time.Time) (movePlan, error) {
	pos := slices.IndexFunc(tasks, func(t domain.Task) bool { return t.ID == taskID })
	if pos < 0 {
		return movePlan{}, &NotFoundError{ID: taskID}
	}
	if !to.Valid() {
		return movePlan{}, &ValidationError{Field: "status", Err: domain.ErrInvalidStatus}
	}
	moving := tasks[pos].Clone()
	from := moving.Status

	dest := laneOf(tasks, to, taskID)
	at := clampIndex(toIndex, len(dest))
	dest = slices.Insert(dest, at, moving)

	updates := map[string]domain.Task{}
	renumber := func(lane []domain.Task, status domain.Status) error {
		for i, t := range lane {
			next := t.Clone()
			if err := next.PlaceAt(status, i+1, now); err != nil {
				return err
			}
			if next.Version != t.Version {
				updates[next.ID] = next
			}
		}
		return nil
	}
	if err := renumber(dest, to); err != nil {
		return movePlan{}, validationFromDomain(err)
	}
	if from != to {
		if err := renumber(laneOf(tasks, from, taskID), from); err != nil {
			return movePlan{}, validationFromDomain(err)
		}
	}

	plan := movePlan{tasks: make([]domain.Task, len(tasks)), moved: moving}
	for i, t := range tasks {
		if next, ok := updates[t.ID]; ok {
			plan.tasks[i] = next
			plan.changed = append(plan.changed, next)
			continue
		}
		plan.tasks[i] = t
	}
	if next, ok := updates[taskID]; ok {
		plan.moved = next
	}
	return plan, nil
}

// renumberLanes restores contiguous 1..N order in every lane, ranking by the
// existing orderIndex, then most recently updated, then id.
func renumberLanes(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	byLane := map[domain.Status][]int{}
	for i, t := range out {
		byLane[t.Status] = append(byLane[t.Status], i)
	}
	for _, idxs := range byLane {
		slices.SortStableFunc(idxs, func(a, b int) int {
			ta, tb := out[a], out[b]
			return cmp.Or(
				cmp.Compare(ta.OrderIndex, tb.OrderIndex),
				tb.UpdatedAt.Compare(ta.UpdatedAt),
				cmp.Compare(ta.ID, tb.ID),
			)
		})
		for rank, i := range idxs {
			out[i].OrderIndex = rank + 1
		}
	}
	return out
}

// viewToLaneIndex maps a slot in the filtered to lane onto the full lane. The
// task lands before the visible task at idx; past the last visible task it
// appends.
func viewToLaneIndex(tasks []domain.Task, view TaskFilter, to domain.Status, taskID string, idx int) int {
	if view.IsZero() {
		return idx
	}
	var visible []int
	for i, t := range laneOf(tasks, to, taskID) {
		if view.Matches(t) {
			visible = append(visible, i)
		}
	}
	if len(visible) == 0 || idx >= len(visible) {
		return EndOfLane
	}
	return visible[max(idx, 0)]
}

// nextOrderIndex is the 1-based slot after the last task in status.
func nextOrderIndex(tasks []domain.Task, status domain.Status) int {
	n := 0
	for _, t := range tasks {
		if t.Status == status {
			n++
		}
	}
	return n + 1
}
