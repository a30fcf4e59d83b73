package app

import (
	"context"

	"github.com/charmbracelet/log"
)

// LogNotifier reports assignments to a logger instead of sending mail.
type LogNotifier struct {
	Logger *log.Logger
}

// NotifyAssignment logs the assignment at info level.
func (n LogNotifier) NotifyAssignment(_ context.Context, a Assignment) error {
	if n.Logger == nil {
		return nil
	}
	n.Logger.Info("task assigned", "task_id", a.Task.ID, "title", a.Task.Title, "user_id", a.UserID, "user", a.DisplayName)
	return nil
}
