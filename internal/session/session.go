// Package session хранит чат-сессии: транскрипт переписки с моделью как явное состояние,
// которое передаётся в каждый вызов, а не живёт в глобальных переменных.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"task-planner/internal/ai"
)

// Session - одна переписка с AI. Транскрипт только дописывается.
type Session struct {
	ID         string           `json:"id"`
	// Store - имя хранилища задач, снимок которого лежит в системном сообщении.
	Store      string           `json:"store,omitempty"`
	Transcript []ai.ChatMessage `json:"transcript"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// New создаёт сессию с новым UUID и пустым транскриптом.
func New(now time.Time) Session {
	return Session{
		ID:         uuid.NewString(),
		Transcript: []ai.ChatMessage{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Store - хранилище сессий.
type Store interface {
	// Get возвращает сессию и false, если её нет (или она истекла).
	Get(ctx context.Context, id string) (Session, bool, error)
	// Put сохраняет сессию целиком.
	Put(ctx context.Context, s Session) error
	// Delete удаляет сессию; отсутствие сессии не ошибка.
	Delete(ctx context.Context, id string) error
}

func cloneTranscript(in []ai.ChatMessage) []ai.ChatMessage {
	out := make([]ai.ChatMessage, len(in))
	copy(out, in)
	return out
}
