package domain

import (
	"slices"
	"strings"
)

// Status identifies the lane a task belongs to.
type Status string

// Lane values in board order.
const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInReview   Status = "IN_REVIEW"
	StatusDone       Status = "DONE"
)

// DefaultStatus is the lane new tasks land in when none is requested.
const DefaultStatus = StatusTodo

var validStatuses = []Status{StatusTodo, StatusInProgress, StatusInReview, StatusDone}

// Statuses returns every lane in board order.
func Statuses() []Status {
	return slices.Clone(validStatuses)
}

// ParseStatus normalizes a user-supplied lane name.
func ParseStatus(raw string) (Status, error) {
	s := Status(normalizeEnum(raw))
	switch s {
	case "DOING", "PROGRESS":
		s = StatusInProgress
	case "REVIEW":
		s = StatusInReview
	case "TO_DO":
		s = StatusTodo
	}
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Valid reports whether s is one of the declared lanes.
func (s Status) Valid() bool {
	return slices.Contains(validStatuses, s)
}

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

var validPriorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Priorities returns the priority set from highest to lowest.
func Priorities() []Priority {
	return slices.Clone(validPriorities)
}

// ParsePriority normalizes a user-supplied priority.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(normalizeEnum(raw))
	if !p.Valid() {
		return "", ErrInvalidPriority
	}
	return p, nil
}

func (p Priority) Valid() bool {
	return slices.Contains(validPriorities, p)
}

// OriginModule tags the business domain that spawned a task.
type OriginModule string

const (
	OriginAudit          OriginModule = "AUDIT"
	OriginCompliance     OriginModule = "COMPLIANCE"
	OriginHR             OriginModule = "HR"
	OriginDebtCollection OriginModule = "DEBT_COLLECTION"
	OriginWhistleblowing OriginModule = "WHISTLEBLOWING"
	OriginLegal          OriginModule = "LEGAL"
	OriginGeneral        OriginModule = "GENERAL"
)

var validOriginModules = []OriginModule{
	OriginAudit,
	OriginCompliance,
	OriginHR,
	OriginDebtCollection,
	OriginWhistleblowing,
	OriginLegal,
	OriginGeneral,
}

// OriginModules returns every accepted origin tag.
func OriginModules() []OriginModule {
	return slices.Clone(validOriginModules)
}

// ParseOriginModule normalizes a user-supplied origin tag.
func ParseOriginModule(raw string) (OriginModule, error) {
	o := OriginModule(normalizeEnum(raw))
	if !o.Valid() {
		return "", ErrInvalidOriginModule
	}
	return o, nil
}

func (o OriginModule) Valid() bool {
	return slices.Contains(validOriginModules, o)
}

// normalizeEnum upper-cases and snake-cases free text ("in progress" -> "IN_PROGRESS").
func normalizeEnum(raw string) string {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(raw)
}
