package task

import "sync"

// Store is the task registry shared between workers and status readers.
// Put replaces the whole record; Get returns a snapshot copy. Implementations
// must make both atomic so a reader never observes a half-updated task.
type Store interface {
	Put(t Task)
	Get(id string) (Task, bool)
}

// memoryStore is the default process-local Store.
type memoryStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() Store { //nolint:ireturn
	return &memoryStore{tasks: make(map[string]Task)}
}

func (s *memoryStore) Put(t Task) {
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
}

func (s *memoryStore) Get(id string) (Task, bool) {
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()
	return t, ok
}
