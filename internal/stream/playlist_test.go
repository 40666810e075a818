package stream

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestQueue_Advance_in_order(t *testing.T) {
	q := NewQueue([]string{"/a.mp4", "/b.mp4", "/c.mp4"})

	item, err := q.Advance()
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if item.Path != "/a.mp4" {
		t.Errorf("first unplayed = %q, want /a.mp4", item.Path)
	}

	if err := q.MarkPlayed(item.ID); err != nil {
		t.Fatalf("MarkPlayed: %v", err)
	}
	item, err = q.Advance()
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if item.Path != "/b.mp4" {
		t.Errorf("next unplayed = %q, want /b.mp4", item.Path)
	}
}

func TestQueue_Advance_empty(t *testing.T) {
	q := NewQueue(nil)
	if _, err := q.Advance(); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("expected ErrEmptyQueue, got %v", err)
	}

	q = NewQueue([]string{"/a.mp4"})
	item, _ := q.Advance()
	_ = q.MarkPlayed(item.ID)
	if _, err := q.Advance(); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("expected ErrEmptyQueue after all played, got %v", err)
	}
}

func TestQueue_Remove_played_forbidden(t *testing.T) {
	q := NewQueue([]string{"/a.mp4", "/b.mp4"})
	item, _ := q.Advance()
	_ = q.MarkPlayed(item.ID)

	if err := q.Remove(item.ID); !errors.Is(err, ErrItemPlayed) {
		t.Errorf("expected ErrItemPlayed, got %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("queue mutated by rejected removal: len %d", q.Len())
	}
}

func TestQueue_Remove_unplayed(t *testing.T) {
	q := NewQueue([]string{"/a.mp4", "/b.mp4"})
	items := q.Items()
	if err := q.Remove(items[1].ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("len = %d, want 1", q.Len())
	}
	if err := q.Remove(uuid.New()); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestQueue_Unplayed_skips_played(t *testing.T) {
	q := NewQueue([]string{"/a.mp4", "/b.mp4", "/c.mp4"})
	items := q.Items()
	_ = q.MarkPlayed(items[0].ID)
	_ = q.MarkPlayed(items[1].ID)

	got := q.Unplayed()
	if len(got) != 1 || got[0] != "/c.mp4" {
		t.Errorf("Unplayed() = %v, want [/c.mp4]", got)
	}
}
