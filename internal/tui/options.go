package tui

import (
	"time"

	"github.com/evanschultz/quadro/internal/app"
)

// Option configures a Model.
type Option func(*Model)

// WithLanes sets the lanes the board renders, in order.
func WithLanes(lanes []app.LaneConfig) Option {
	return func(m *Model) {
		if len(lanes) > 0 {
			m.lanes = append([]app.LaneConfig(nil), lanes...)
		}
	}
}

// WithWIPWarnings toggles over-limit lane highlighting.
func WithWIPWarnings(show bool) Option {
	return func(m *Model) {
		m.showWIPWarnings = show
	}
}

// WithDragConfig sets the gesture activation thresholds.
func WithDragConfig(cfg app.DragConfig) Option {
	return func(m *Model) {
		m.dragCfg = cfg
	}
}

// WithKeyConfig applies user key overrides.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithFetchFilter narrows every fetch the board issues.
func WithFetchFilter(filter app.TaskFilter) Option {
	return func(m *Model) {
		m.filter = filter
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithClock replaces the clock used to time drag gestures.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}
