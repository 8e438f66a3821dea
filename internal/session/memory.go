package session

import (
	"context"
	"sync"
)

// MemoryStore держит сессии в памяти процесса. Используется, когда Redis не настроен.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Get возвращает копию сессии: изменения транскрипта у вызывающего в хранилище не попадают.
func (m *MemoryStore) Get(ctx context.Context, id string) (Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false, nil
	}
	s.Transcript = cloneTranscript(s.Transcript)
	return s, true, nil
}

// Put сохраняет копию сессии, заменяя прежнюю.
func (m *MemoryStore) Put(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Transcript = cloneTranscript(s.Transcript)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Delete удаляет сессию.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
