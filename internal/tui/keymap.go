package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap holds the board bindings shown in the help bar.
type keyMap struct {
	quit          key.Binding
	fetch         key.Binding
	toggleHelp    key.Binding
	laneLeft      key.Binding
	laneRight     key.Binding
	cardUp        key.Binding
	cardDown      key.Binding
	moveTaskLeft  key.Binding
	moveTaskRight key.Binding
	reorderUp     key.Binding
	reorderDown   key.Binding
	addTask       key.Binding
	taskInfo      key.Binding
	copyID        key.Binding
	activity      key.Binding
	back          key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		fetch:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "fetch")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		laneLeft:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "lane left")),
		laneRight:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "lane right")),
		cardUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		cardDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		moveTaskLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move to previous lane")),
		moveTaskRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move to next lane")),
		reorderUp:     key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "reorder up")),
		reorderDown:   key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "reorder down")),
		addTask:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		taskInfo:      key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		copyID:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		activity:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activity")),
		back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.taskInfo, k.moveTaskLeft, k.moveTaskRight, k.fetch, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.taskInfo, k.copyID, k.activity, k.fetch, k.toggleHelp, k.quit},
		{k.laneLeft, k.laneRight, k.cardUp, k.cardDown},
		{k.moveTaskLeft, k.moveTaskRight, k.reorderUp, k.reorderDown, k.back},
	}
}

// KeyConfig overrides a subset of bindings. Blank fields keep defaults.
type KeyConfig struct {
	NewTask  string
	TaskInfo string
	Fetch    string
	Activity string
	CopyID   string
}

// applyConfig rebinds keys from user configuration.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.addTask, cfg.NewTask, "n", "new task")
	if strings.TrimSpace(cfg.TaskInfo) != "" {
		configureBinding(&k.taskInfo, cfg.TaskInfo, "i", "task info")
	}
	configureBinding(&k.fetch, cfg.Fetch, "r", "fetch")
	configureBinding(&k.activity, cfg.Activity, "a", "activity")
	configureBinding(&k.copyID, cfg.CopyID, "y", "copy id")
}

// configureBinding replaces keys and help text on one binding.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys turns one configured key into matcher strings and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}
