package tasks

import "taskbook/internal/models"

// ChangeKind names the command that changed the store.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeEdited    ChangeKind = "edited"
	ChangeCompleted ChangeKind = "completed"
	ChangeDeleted   ChangeKind = "deleted"
)

// Change is delivered to subscribers after a mutation is durable.
// Tasks is the full task list after the change, in insertion order. It is
// shared by all subscribers and must not be modified.
type Change struct {
	Kind  ChangeKind    `json:"kind"`
	ID    models.TaskID `json:"id"`
	Tasks []models.Task `json:"tasks"`
}

// Subscribe registers fn to be called after every successful mutation.
// fn runs on the mutating goroutine after the store lock is released, so it
// may call back into the store. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(change Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}
