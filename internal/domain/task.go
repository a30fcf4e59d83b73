package domain

import (
	"slices"
	"strings"
	"time"
)

// Task is one card on the board. OrderIndex is 1-based within Status.
type Task struct {
	ID                string       `json:"id" yaml:"id"`
	Title             string       `json:"title" yaml:"title"`
	Description       string       `json:"description,omitempty" yaml:"description,omitempty"`
	Status            Status       `json:"status" yaml:"status"`
	Priority          Priority     `json:"priority" yaml:"priority"`
	DueDate           *time.Time   `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	OriginModule      OriginModule `json:"originModule" yaml:"originModule"`
	EmpresaID         string       `json:"empresaId,omitempty" yaml:"empresaId,omitempty"`
	ProcessoID        string       `json:"processoId,omitempty" yaml:"processoId,omitempty"`
	DenunciaID        string       `json:"denunciaId,omitempty" yaml:"denunciaId,omitempty"`
	DividaID          string       `json:"dividaId,omitempty" yaml:"dividaId,omitempty"`
	ResponsavelUserID string       `json:"responsavelUserId,omitempty" yaml:"responsavelUserId,omitempty"`
	OrderIndex        int          `json:"orderIndex" yaml:"orderIndex"`
	Anexos            []string     `json:"anexos,omitempty" yaml:"anexos,omitempty"`
	Version           int64        `json:"version" yaml:"version"`
	CreatedAt         time.Time    `json:"createdAt" yaml:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

type TaskInput struct {
	ID                string
	Title             string
	Description       string
	Status            Status
	Priority          Priority
	DueDate           *time.Time
	OriginModule      OriginModule
	EmpresaID         string
	ProcessoID        string
	DenunciaID        string
	DividaID          string
	ResponsavelUserID string
	OrderIndex        int
	Anexos            []string
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if !in.OriginModule.Valid() {
		return Task{}, ErrInvalidOriginModule
	}
	if in.Status == "" {
		in.Status = DefaultStatus
	}
	if !in.Status.Valid() {
		return Task{}, ErrInvalidStatus
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return Task{}, ErrInvalidPriority
	}
	if in.OrderIndex < 1 {
		return Task{}, ErrInvalidOrderIndex
	}

	return Task{
		ID:                in.ID,
		Title:             in.Title,
		Description:       in.Description,
		Status:            in.Status,
		Priority:          in.Priority,
		DueDate:           normalizeDueDate(in.DueDate),
		OriginModule:      in.OriginModule,
		EmpresaID:         strings.TrimSpace(in.EmpresaID),
		ProcessoID:        strings.TrimSpace(in.ProcessoID),
		DenunciaID:        strings.TrimSpace(in.DenunciaID),
		DividaID:          strings.TrimSpace(in.DividaID),
		ResponsavelUserID: strings.TrimSpace(in.ResponsavelUserID),
		OrderIndex:        in.OrderIndex,
		Anexos:            normalizeAnexos(in.Anexos),
		Version:           1,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}, nil
}

// ApplyPatch merges the set fields of p onto a copy of t. Lane membership and
// ordering are never touched here.
func (t Task) ApplyPatch(p TaskPatch, now time.Time) (Task, error) {
	if p.IsEmpty() {
		return Task{}, ErrEmptyPatch
	}
	next := t.Clone()
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return Task{}, ErrInvalidTitle
		}
		next.Title = title
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return Task{}, ErrInvalidPriority
		}
		next.Priority = *p.Priority
	}
	switch {
	case p.ClearDueDate:
		next.DueDate = nil
	case p.DueDate != nil:
		next.DueDate = normalizeDueDate(p.DueDate)
	}
	if p.EmpresaID != nil {
		next.EmpresaID = strings.TrimSpace(*p.EmpresaID)
	}
	if p.ProcessoID != nil {
		next.ProcessoID = strings.TrimSpace(*p.ProcessoID)
	}
	if p.DenunciaID != nil {
		next.DenunciaID = strings.TrimSpace(*p.DenunciaID)
	}
	if p.DividaID != nil {
		next.DividaID = strings.TrimSpace(*p.DividaID)
	}
	if p.ResponsavelUserID != nil {
		next.ResponsavelUserID = strings.TrimSpace(*p.ResponsavelUserID)
	}
	if p.Anexos != nil {
		next.Anexos = normalizeAnexos(*p.Anexos)
	}
	next.touch(now)
	return next, nil
}

// PlaceAt sets lane membership and position. Only the store's ordering code calls it.
func (t *Task) PlaceAt(status Status, orderIndex int, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if orderIndex < 1 {
		return ErrInvalidOrderIndex
	}
	if t.Status == status && t.OrderIndex == orderIndex {
		return nil
	}
	t.Status = status
	t.OrderIndex = orderIndex
	t.touch(now)
	return nil
}

// Clone returns a deep copy safe to hand to readers.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	out.Anexos = slices.Clone(t.Anexos)
	return out
}

func (t *Task) touch(now time.Time) {
	t.UpdatedAt = now.UTC()
	t.Version++
}

func normalizeDueDate(due *time.Time) *time.Time {
	if due == nil {
		return nil
	}
	ts := due.UTC().Truncate(time.Second)
	return &ts
}

func normalizeAnexos(anexos []string) []string {
	out := make([]string, 0, len(anexos))
	seen := map[string]struct{}{}
	for _, raw := range anexos {
		ref := strings.TrimSpace(raw)
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
