package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/evanschultz/quadro/internal/domain"
)

func TestSnapshotRoundTripThroughStore(t *testing.T) {
	for _, format := range []SnapshotFormat{SnapshotJSON, SnapshotYAML} {
		t.Run(string(format), func(t *testing.T) {
			src := newTestStore(nil)
			mustCreate(t, src, "A", domain.StatusTodo)
			b := mustCreate(t, src, "B", domain.StatusTodo)
			if _, err := src.MoveTask(context.Background(), b.ID, domain.StatusInReview, 0); err != nil {
				t.Fatalf("MoveTask() error = %v", err)
			}

			var buf bytes.Buffer
			if err := EncodeSnapshot(&buf, src.ExportSnapshot(), format); err != nil {
				t.Fatalf("EncodeSnapshot() error = %v", err)
			}
			snap, err := DecodeSnapshot(&buf, format)
			if err != nil {
				t.Fatalf("DecodeSnapshot() error = %v", err)
			}

			dst := newTestStore(newFakePersistence())
			if _, err := dst.ImportSnapshot(context.Background(), snap); err != nil {
				t.Fatalf("ImportSnapshot() error = %v", err)
			}
			got, err := dst.Task(b.ID)
			if err != nil {
				t.Fatalf("Task() error = %v", err)
			}
			if got.Status != domain.StatusInReview || got.OrderIndex != 1 || got.Title != "B" {
				t.Fatalf("unexpected imported task %#v", got)
			}
			assertContiguous(t, dst)
		})
	}
}

func TestSnapshotValidate(t *testing.T) {
	if err := (Snapshot{Version: "other"}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected version validation error, got %v", err)
	}
	snap := Snapshot{Version: SnapshotVersion, Tasks: []domain.Task{{ID: "a"}, {ID: "a"}}}
	if err := snap.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate id validation error, got %v", err)
	}
}

func TestDecodeSnapshotRejectsUnknownFields(t *testing.T) {
	_, err := DecodeSnapshot(strings.NewReader(`{"version":"quadro.snapshot.v1","tasks":[],"extra":1}`), SnapshotJSON)
	if err == nil {
		t.Fatal("expected unknown field to fail")
	}
	if _, err := ParseSnapshotFormat("xml"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
