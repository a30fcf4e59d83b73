package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DueDateLayout is the calendar-day form accepted for due dates.
const DueDateLayout = "2006-01-02"

// TaskPatch is a partial update over the mutable task fields. Status, order,
// origin module and id are deliberately absent: lane placement belongs to moves.
type TaskPatch struct {
	Title             *string
	Description       *string
	Priority          *Priority
	DueDate           *time.Time
	ClearDueDate      bool
	EmpresaID         *string
	ProcessoID        *string
	DenunciaID        *string
	DividaID          *string
	ResponsavelUserID *string
	Anexos            *[]string
}

// PatchFields lists the wire names a patch document may carry.
func PatchFields() []string {
	return []string{
		"title",
		"description",
		"priority",
		"dueDate",
		"empresaId",
		"processoId",
		"denunciaId",
		"dividaId",
		"responsavelUserId",
		"anexos",
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil &&
		p.Description == nil &&
		p.Priority == nil &&
		p.DueDate == nil &&
		!p.ClearDueDate &&
		p.EmpresaID == nil &&
		p.ProcessoID == nil &&
		p.DenunciaID == nil &&
		p.DividaID == nil &&
		p.ResponsavelUserID == nil &&
		p.Anexos == nil
}

// DecodeTaskPatch parses a JSON patch document. Unknown keys fail with
// ErrUnknownPatchField; a null dueDate clears the deadline.
func DecodeTaskPatch(data []byte) (TaskPatch, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return TaskPatch{}, ErrEmptyPatch
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return TaskPatch{}, fmt.Errorf("decode patch: %w", err)
	}
	allowed := PatchFields()
	for key := range raw {
		if !slices.Contains(allowed, key) {
			return TaskPatch{}, fmt.Errorf("%w: %q", ErrUnknownPatchField, key)
		}
	}

	var patch TaskPatch
	var err error
	if patch.Title, err = decodeOptionalString(raw, "title"); err != nil {
		return TaskPatch{}, err
	}
	if patch.Description, err = decodeOptionalString(raw, "description"); err != nil {
		return TaskPatch{}, err
	}
	if patch.EmpresaID, err = decodeOptionalString(raw, "empresaId"); err != nil {
		return TaskPatch{}, err
	}
	if patch.ProcessoID, err = decodeOptionalString(raw, "processoId"); err != nil {
		return TaskPatch{}, err
	}
	if patch.DenunciaID, err = decodeOptionalString(raw, "denunciaId"); err != nil {
		return TaskPatch{}, err
	}
	if patch.DividaID, err = decodeOptionalString(raw, "dividaId"); err != nil {
		return TaskPatch{}, err
	}
	if patch.ResponsavelUserID, err = decodeOptionalString(raw, "responsavelUserId"); err != nil {
		return TaskPatch{}, err
	}

	if value, ok := raw["priority"]; ok {
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return TaskPatch{}, fmt.Errorf("decode patch priority: %w", err)
		}
		priority, err := ParsePriority(text)
		if err != nil {
			return TaskPatch{}, err
		}
		patch.Priority = &priority
	}

	if value, ok := raw["dueDate"]; ok {
		if string(value) == "null" {
			patch.ClearDueDate = true
		} else {
			var text string
			if err := json.Unmarshal(value, &text); err != nil {
				return TaskPatch{}, fmt.Errorf("decode patch dueDate: %w", err)
			}
			due, err := ParseDueDate(text)
			if err != nil {
				return TaskPatch{}, err
			}
			if due == nil {
				patch.ClearDueDate = true
			} else {
				patch.DueDate = due
			}
		}
	}

	if value, ok := raw["anexos"]; ok {
		var anexos []string
		if string(value) != "null" {
			if err := json.Unmarshal(value, &anexos); err != nil {
				return TaskPatch{}, fmt.Errorf("decode patch anexos: %w", err)
			}
		}
		if anexos == nil {
			anexos = []string{}
		}
		patch.Anexos = &anexos
	}

	if patch.IsEmpty() {
		return TaskPatch{}, ErrEmptyPatch
	}
	return patch, nil
}

// ParseDueDate accepts YYYY-MM-DD or RFC3339. Blank input means no deadline.
func ParseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(DueDateLayout, raw); err == nil {
		return &ts, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDueDate, raw)
	}
	ts = ts.UTC()
	return &ts, nil
}

func decodeOptionalString(raw map[string]json.RawMessage, key string) (*string, error) {
	value, ok := raw[key]
	if !ok {
		return nil, nil
	}
	if string(value) == "null" {
		empty := ""
		return &empty, nil
	}
	var out string
	if err := json.Unmarshal(value, &out); err != nil {
		return nil, fmt.Errorf("decode patch %s: %w", key, err)
	}
	return &out, nil
}
