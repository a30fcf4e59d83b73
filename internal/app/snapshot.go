package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evanschultz/quadro/internal/domain"
)

// SnapshotVersion tags the snapshot document layout.
const SnapshotVersion = "quadro.snapshot.v1"

// SnapshotFormat selects the snapshot encoding.
type SnapshotFormat string

// SnapshotJSON and SnapshotYAML are the supported encodings.
const (
	SnapshotJSON SnapshotFormat = "json"
	SnapshotYAML SnapshotFormat = "yaml"
)

var errUnsupportedSnapshotFormat = errors.New("unsupported snapshot format")

// ParseSnapshotFormat accepts json, yaml, or yml.
func ParseSnapshotFormat(raw string) (SnapshotFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return SnapshotJSON, nil
	case "yaml", "yml":
		return SnapshotYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedSnapshotFormat, raw)
	}
}

// Snapshot is a portable copy of the whole board.
type Snapshot struct {
	Version    string        `json:"version" yaml:"version"`
	ExportedAt time.Time     `json:"exportedAt" yaml:"exportedAt"`
	Tasks      []domain.Task `json:"tasks" yaml:"tasks"`
}

// ExportSnapshot captures the whole collection regardless of the view,
// ordered by lane then orderIndex.
func (s *Store) ExportSnapshot() Snapshot {
	s.mu.Lock()
	tasks := cloneTasks(s.tasks)
	s.mu.Unlock()
	statusRank := map[domain.Status]int{}
	for i, status := range domain.Statuses() {
		statusRank[status] = i
	}
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		if d := statusRank[a.Status] - statusRank[b.Status]; d != 0 {
			return d
		}
		return a.OrderIndex - b.OrderIndex
	})
	return Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Tasks:      tasks,
	}
}

// ImportSnapshot validates snap and replaces the store's collection with it.
func (s *Store) ImportSnapshot(ctx context.Context, snap Snapshot) ([]domain.Task, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return s.ReplaceTasks(ctx, snap.Tasks)
}

// Validate checks the document version and task id uniqueness.
func (s Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return &ValidationError{Field: "version", Err: fmt.Errorf("unsupported snapshot version %q", s.Version)}
	}
	seen := map[string]struct{}{}
	for i, t := range s.Tasks {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return &ValidationError{Field: fmt.Sprintf("tasks[%d].id", i), Err: domain.ErrInvalidID}
		}
		if _, ok := seen[id]; ok {
			return &ValidationError{Field: fmt.Sprintf("tasks[%d].id", i), Err: fmt.Errorf("duplicate id %q", id)}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// EncodeSnapshot writes snap to w in format.
func EncodeSnapshot(w io.Writer, snap Snapshot, format SnapshotFormat) error {
	switch format {
	case SnapshotJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case SnapshotYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", errUnsupportedSnapshotFormat, format)
	}
}

// DecodeSnapshot reads a snapshot in format from r.
func DecodeSnapshot(r io.Reader, format SnapshotFormat) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	switch format {
	case SnapshotJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return Snapshot{}, fmt.Errorf("decode json snapshot: %w", err)
		}
	case SnapshotYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&snap); err != nil {
			return Snapshot{}, fmt.Errorf("decode yaml snapshot: %w", err)
		}
	default:
		return Snapshot{}, fmt.Errorf("%w: %q", errUnsupportedSnapshotFormat, format)
	}
	return snap, nil
}
