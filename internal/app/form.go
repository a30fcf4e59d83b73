package app

import (
	"strings"

	"github.com/evanschultz/quadro/internal/domain"
)

// TaskFormValues is raw form input as typed by a user.
type TaskFormValues struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Status            string `json:"status"`
	Priority          string `json:"priority"`
	OriginModule      string `json:"originModule"`
	DueDate           string `json:"dueDate"`
	EmpresaID         string `json:"empresaId"`
	ProcessoID        string `json:"processoId"`
	DenunciaID        string `json:"denunciaId"`
	DividaID          string `json:"dividaId"`
	ResponsavelUserID string `json:"responsavelUserId"`
	Anexos            string `json:"anexos"`
}

// ParseTaskForm validates form input into a create request. It mirrors the
// store's create contract so a bad form never reaches the store.
func ParseTaskForm(v TaskFormValues) (CreateTaskInput, error) {
	in := CreateTaskInput{
		Title:             strings.TrimSpace(v.Title),
		Description:       strings.TrimSpace(v.Description),
		EmpresaID:         strings.TrimSpace(v.EmpresaID),
		ProcessoID:        strings.TrimSpace(v.ProcessoID),
		DenunciaID:        strings.TrimSpace(v.DenunciaID),
		DividaID:          strings.TrimSpace(v.DividaID),
		ResponsavelUserID: strings.TrimSpace(v.ResponsavelUserID),
		Anexos:            SplitAnexos(v.Anexos),
	}
	if in.Title == "" {
		return CreateTaskInput{}, &ValidationError{Field: "title", Err: domain.ErrInvalidTitle}
	}
	origin, err := domain.ParseOriginModule(v.OriginModule)
	if err != nil {
		return CreateTaskInput{}, &ValidationError{Field: "originModule", Err: err}
	}
	in.OriginModule = origin
	if strings.TrimSpace(v.Status) != "" {
		status, err := domain.ParseStatus(v.Status)
		if err != nil {
			return CreateTaskInput{}, &ValidationError{Field: "status", Err: err}
		}
		in.Status = status
	}
	if strings.TrimSpace(v.Priority) != "" {
		priority, err := domain.ParsePriority(v.Priority)
		if err != nil {
			return CreateTaskInput{}, &ValidationError{Field: "priority", Err: err}
		}
		in.Priority = priority
	}
	due, err := domain.ParseDueDate(v.DueDate)
	if err != nil {
		return CreateTaskInput{}, &ValidationError{Field: "dueDate", Err: err}
	}
	in.DueDate = due
	return in, nil
}

// SplitAnexos splits a comma-separated attachment list, dropping blanks.
func SplitAnexos(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
