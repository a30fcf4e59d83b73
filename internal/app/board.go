package app

import (
	"strings"

	"github.com/evanschultz/quadro/internal/domain"
)

// LaneConfig describes how a lane is presented.
type LaneConfig struct {
	Status   domain.Status `json:"status"`
	Name     string        `json:"name"`
	WIPLimit int           `json:"wipLimit"`
}

// Column is the read projection of one lane. It holds no state of its own.
type Column struct {
	Status   domain.Status `json:"status"`
	Name     string        `json:"name"`
	WIPLimit int           `json:"wipLimit"`
	Tasks    []domain.Task `json:"tasks"`
}

// OverLimit reports whether the lane holds more tasks than its WIP limit.
func (c Column) OverLimit() bool {
	return c.WIPLimit > 0 && len(c.Tasks) > c.WIPLimit
}

// Board is a full projection of the store at one revision.
type Board struct {
	Revision uint64   `json:"revision"`
	Loading  bool     `json:"loading"`
	Columns  []Column `json:"columns"`
}

// Column returns the projection for status.
func (b Board) Column(status domain.Status) (Column, bool) {
	for _, c := range b.Columns {
		if c.Status == status {
			return c, true
		}
	}
	return Column{}, false
}

// DefaultLanes returns one lane per status in board order.
func DefaultLanes() []LaneConfig {
	statuses := domain.Statuses()
	out := make([]LaneConfig, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, LaneConfig{Status: status, Name: DefaultLaneName(status)})
	}
	return out
}

// DefaultLaneName renders a status as a title ("IN_REVIEW" -> "In Review").
func DefaultLaneName(status domain.Status) string {
	parts := strings.Split(strings.ToLower(string(status)), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// ProjectBoard groups tasks into lanes ordered by orderIndex. Statuses missing
// from lanes are appended so every task stays visible.
func ProjectBoard(tasks []domain.Task, lanes []LaneConfig) Board {
	seen := map[domain.Status]struct{}{}
	ordered := make([]LaneConfig, 0, len(lanes))
	for _, lane := range lanes {
		if !lane.Status.Valid() {
			continue
		}
		if _, ok := seen[lane.Status]; ok {
			continue
		}
		seen[lane.Status] = struct{}{}
		if strings.TrimSpace(lane.Name) == "" {
			lane.Name = DefaultLaneName(lane.Status)
		}
		ordered = append(ordered, lane)
	}
	for _, status := range domain.Statuses() {
		if _, ok := seen[status]; !ok {
			ordered = append(ordered, LaneConfig{Status: status, Name: DefaultLaneName(status)})
		}
	}

	board := Board{Columns: make([]Column, 0, len(ordered))}
	for _, lane := range ordered {
		board.Columns = append(board.Columns, Column{
			Status:   lane.Status,
			Name:     lane.Name,
			WIPLimit: lane.WIPLimit,
			Tasks:    cloneTasks(laneOf(tasks, lane.Status, "")),
		})
	}
	return board
}

// Board projects the tasks in the current view.
func (s *Store) Board(lanes []LaneConfig) Board {
	s.mu.Lock()
	tasks := filterTasks(s.tasks, s.view)
	rev := s.revision
	s.mu.Unlock()

	board := ProjectBoard(tasks, lanes)
	board.Revision = rev
	board.Loading = s.IsLoading()
	return board
}
