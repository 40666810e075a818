package stream

import (
	"time"

	"github.com/google/uuid"
)

// Item is one playlist entry. Immutable once added except for the played marker.
type Item struct {
	ID      uuid.UUID `json:"id"`
	Path    string    `json:"path"`
	Title   string    `json:"title"`
	Played  bool      `json:"played"`
	AddedAt time.Time `json:"added_at"`
}

// Queue is the ordered playlist for one session. It is not synchronized;
// callers hold the owning session's lock.
type Queue struct {
	items []*Item
}

// NewQueue builds a queue from the given paths, all unplayed, in order.
func NewQueue(paths []string) *Queue {
	q := &Queue{}
	for _, p := range paths {
		q.Append(p, "")
	}
	return q
}

// Append adds an unplayed item at the end of the queue.
func (q *Queue) Append(path, title string) *Item {
	item := &Item{ID: uuid.New(), Path: path, Title: title, AddedAt: time.Now()}
	q.items = append(q.items, item)
	return item
}

// Advance returns the next unplayed item in position order.
func (q *Queue) Advance() (Item, error) {
	for _, item := range q.items {
		if !item.Played {
			return *item, nil
		}
	}
	return Item{}, ErrEmptyQueue
}

// MarkPlayed sets the played marker on the item with the given id.
func (q *Queue) MarkPlayed(id uuid.UUID) error {
	for _, item := range q.items {
		if item.ID == id {
			item.Played = true
			return nil
		}
	}
	return ErrItemNotFound
}

// Remove deletes an unplayed item. Played items are part of the delivered
// history and cannot be removed.
func (q *Queue) Remove(id uuid.UUID) error {
	for i, item := range q.items {
		if item.ID != id {
			continue
		}
		if item.Played {
			return ErrItemPlayed
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return nil
	}
	return ErrItemNotFound
}

// Unplayed returns the paths of all unplayed items in order. This is what
// restart and adaptation rebuilds feed to the concat manifest, so delivered
// items are not replayed.
func (q *Queue) Unplayed() []string {
	var paths []string
	for _, item := range q.items {
		if !item.Played {
			paths = append(paths, item.Path)
		}
	}
	return paths
}

// Items returns a copy of all items in order.
func (q *Queue) Items() []Item {
	out := make([]Item, len(q.items))
	for i, item := range q.items {
		out[i] = *item
	}
	return out
}

// Len returns the number of items, played or not.
func (q *Queue) Len() int { return len(q.items) }
