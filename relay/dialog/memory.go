package dialog

import "sync"

// Manager stores the dialog state of every actor.
type Manager interface {
	// Get returns the actor's state, Idle when none is stored.
	Get(actorID int64) State
	// Set replaces the actor's state. Setting Idle frees the slot.
	Set(actorID int64, st State)
	// Clear returns the actor to Idle.
	Clear(actorID int64)
	// InProgress reports whether the actor is mid-dialog.
	InProgress(actorID int64) bool
	// Len is the number of actors currently mid-dialog.
	Len() int
}

type memoryManager struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryManager constructs the in-process Manager. Its contents are lost on restart.
func NewMemoryManager() Manager {
	return &memoryManager{states: make(map[int64]State)}
}

func (m *memoryManager) Get(actorID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.states[actorID]; ok {
		return st
	}
	return Idle{}
}

func (m *memoryManager) Set(actorID int64, st State) {
	if IsIdle(st) {
		m.Clear(actorID)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[actorID] = st
}

func (m *memoryManager) Clear(actorID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, actorID)
}

func (m *memoryManager) InProgress(actorID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[actorID]
	return ok
}

func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
