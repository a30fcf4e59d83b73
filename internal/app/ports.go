package app

import (
	"context"

	"github.com/evanschultz/quadro/internal/domain"
)

// Persistence is the remote collaborator the store loads from and writes through.
// LoadTasks must return tasks with contiguous order per lane for an unfiltered load.
type Persistence interface {
	LoadTasks(context.Context, TaskFilter) ([]domain.Task, error)
	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	MoveTasks(context.Context, string, []domain.Task) error
	ReplaceTasks(context.Context, []domain.Task) error
	ListChangeEvents(context.Context, int) ([]domain.ChangeEvent, error)
}

// TaskFilter narrows a load or the store view. Zero fields match everything.
type TaskFilter struct {
	EmpresaID         string              `json:"empresaId,omitempty"`
	OriginModule      domain.OriginModule `json:"originModule,omitempty"`
	ResponsavelUserID string              `json:"responsavelUserId,omitempty"`
	Priority          domain.Priority     `json:"priority,omitempty"`
}

// IsZero reports whether the filter matches every task.
func (f TaskFilter) IsZero() bool {
	return f == TaskFilter{}
}

// Matches reports whether t passes every set criterion.
func (f TaskFilter) Matches(t domain.Task) bool {
	if f.EmpresaID != "" && t.EmpresaID != f.EmpresaID {
		return false
	}
	if f.OriginModule != "" && t.OriginModule != f.OriginModule {
		return false
	}
	if f.ResponsavelUserID != "" && t.ResponsavelUserID != f.ResponsavelUserID {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	return true
}

// ProfileDirectory resolves responsible-user ids into display data.
type ProfileDirectory interface {
	DisplayName(userID string) string
}

// StaticProfiles is a ProfileDirectory backed by a fixed map. Unknown ids
// resolve to themselves.
type StaticProfiles map[string]string

func (p StaticProfiles) DisplayName(userID string) string {
	if name, ok := p[userID]; ok && name != "" {
		return name
	}
	return userID
}

// Assignment describes a task handed to a responsible user.
type Assignment struct {
	Task        domain.Task
	UserID      string
	DisplayName string
}

// Notifier is told about new assignments after they are committed.
type Notifier interface {
	NotifyAssignment(context.Context, Assignment) error
}
