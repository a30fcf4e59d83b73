package app

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/quadro/internal/domain"
)

func TestResolveGesturePointer(t *testing.T) {
	cfg := DragConfig{PointerMinDistance: 3, TouchLongPress: 200 * time.Millisecond, TouchTolerance: 2}
	target := &DropTarget{Status: domain.StatusDone, Index: 2}

	cases := []struct {
		name string
		g    GestureEnd
		want OutcomeKind
	}{
		{
			name: "tiny movement is a click",
			g:    GestureEnd{TaskID: "t1", Input: InputPointer, Start: Point{10, 10}, End: Point{11, 12}, Target: target},
			want: OutcomeClick,
		},
		{
			name: "crossing the distance drops",
			g:    GestureEnd{TaskID: "t1", Input: InputPointer, Start: Point{10, 10}, End: Point{13, 10}, Target: target},
			want: OutcomeMove,
		},
		{
			name: "activation sticks after returning to origin",
			g: GestureEnd{
				TaskID: "t1", Input: InputPointer, Start: Point{10, 10},
				Samples: []Sample{{Point: Point{20, 10}}},
				End:     Point{10, 10}, Target: target,
			},
			want: OutcomeMove,
		},
		{
			name: "drop outside any lane cancels",
			g:    GestureEnd{TaskID: "t1", Input: InputPointer, Start: Point{10, 10}, End: Point{30, 30}},
			want: OutcomeCancel,
		},
		{
			name: "missing task cancels",
			g:    GestureEnd{Input: InputPointer, Start: Point{10, 10}, End: Point{30, 30}, Target: target},
			want: OutcomeCancel,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveGesture(tc.g, cfg)
			if got.Kind != tc.want {
				t.Fatalf("ResolveGesture() = %q, want %q", got.Kind, tc.want)
			}
			if got.Kind == OutcomeMove {
				if got.Intent == nil || *got.Intent != (MoveIntent{TaskID: "t1", ToStatus: domain.StatusDone, ToIndex: 2}) {
					t.Fatalf("unexpected intent %#v", got.Intent)
				}
			} else if got.Intent != nil {
				t.Fatalf("expected no intent for %q", got.Kind)
			}
		})
	}
}

func TestResolveGestureTouch(t *testing.T) {
	cfg := DragConfig{PointerMinDistance: 3, TouchLongPress: 200 * time.Millisecond, TouchTolerance: 2}
	target := &DropTarget{Status: domain.StatusInProgress, Index: 0}

	cases := []struct {
		name string
		g    GestureEnd
		want OutcomeKind
	}{
		{
			name: "quick tap is a click",
			g:    GestureEnd{TaskID: "t1", Input: InputTouch, Start: Point{5, 5}, End: Point{6, 5}, ReleasedAt: 80 * time.Millisecond, Target: target},
			want: OutcomeClick,
		},
		{
			name: "early swipe is a scroll",
			g: GestureEnd{
				TaskID: "t1", Input: InputTouch, Start: Point{5, 5},
				Samples: []Sample{{Point: Point{5, 40}, At: 50 * time.Millisecond}},
				End:     Point{5, 80}, ReleasedAt: 400 * time.Millisecond, Target: target,
			},
			want: OutcomeCancel,
		},
		{
			name: "long press then drag moves",
			g: GestureEnd{
				TaskID: "t1", Input: InputTouch, Start: Point{5, 5},
				Samples: []Sample{{Point: Point{6, 6}, At: 100 * time.Millisecond}, {Point: Point{40, 6}, At: 300 * time.Millisecond}},
				End:     Point{60, 6}, ReleasedAt: 500 * time.Millisecond, Target: target,
			},
			want: OutcomeMove,
		},
		{
			name: "long press released in place still resolves",
			g:    GestureEnd{TaskID: "t1", Input: InputTouch, Start: Point{5, 5}, End: Point{5, 5}, ReleasedAt: time.Second, Target: target},
			want: OutcomeMove,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveGesture(tc.g, cfg).Kind; got != tc.want {
				t.Fatalf("ResolveGesture() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDragCoordinatorOnlyMovesOnDrop(t *testing.T) {
	s := newTestStore(nil)
	a := mustCreate(t, s, "A", domain.StatusTodo)
	b := mustCreate(t, s, "B", domain.StatusInReview)
	d := NewDragCoordinator(s, DefaultDragConfig())

	rev := s.Revision()
	outcome, err := d.End(context.Background(), GestureEnd{TaskID: a.ID, Input: InputPointer, Start: Point{1, 1}, End: Point{1, 1}})
	if err != nil {
		t.Fatalf("End(click) error = %v", err)
	}
	if outcome.Kind != OutcomeClick || s.Revision() != rev {
		t.Fatalf("expected click without store change, got %#v", outcome)
	}

	outcome, err = d.End(context.Background(), GestureEnd{
		TaskID: a.ID, Input: InputPointer, Start: Point{1, 1}, End: Point{40, 3},
		Target: &DropTarget{Status: domain.StatusInReview, Index: 0},
	})
	if err != nil {
		t.Fatalf("End(drop) error = %v", err)
	}
	if outcome.Kind != OutcomeMove {
		t.Fatalf("expected move, got %#v", outcome)
	}
	if got := laneIDs(s, domain.StatusInReview); !slices.Equal(got, []string{a.ID, b.ID}) {
		t.Fatalf("unexpected lane %v", got)
	}

	rev = s.Revision()
	if _, err := d.End(context.Background(), GestureEnd{TaskID: b.ID, Input: InputPointer, Start: Point{1, 1}, End: Point{90, 90}}); err != nil {
		t.Fatalf("End(cancel) error = %v", err)
	}
	if s.Revision() != rev {
		t.Fatal("expected cancel to leave the store alone")
	}

	_, err = d.End(context.Background(), GestureEnd{
		TaskID: "ghost", Input: InputPointer, Start: Point{1, 1}, End: Point{40, 3},
		Target: &DropTarget{Status: domain.StatusDone},
	})
	if err == nil {
		t.Fatal("expected move of unknown task to fail")
	}
}
