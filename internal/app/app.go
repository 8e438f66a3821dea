// Package app - фасад, через который внешний слой представления (HTTP, CLI)
// работает с задачами и AI: addTask, deleteTask, listRanked, listAlerts, requestPlan, sendChat.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"task-planner/internal/ai"
	"task-planner/internal/session"
	"task-planner/internal/tasks"
)

var (
	// ErrEmptyMessage - в чат отправили пустую строку.
	ErrEmptyMessage = errors.New("chat message is empty")
	// ErrSessionNotFound - сессии с таким ID нет (или она истекла).
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrSessionStore - сессию продолжают с другим хранилищем задач, чем то, по которому она начата.
	ErrSessionStore = errors.New("chat session belongs to another task store")
)

// ChatResult - итог успешного sendChat.
type ChatResult struct {
	SessionID  string           `json:"sessionId"`
	Reply      string           `json:"reply"`
	Transcript []ai.ChatMessage `json:"transcript"`
}

// App связывает хранилища задач, AI-клиент и хранилище чат-сессий.
type App struct {
	stores      *tasks.Registry
	ai          *ai.Client
	sessions    session.Store
	log         *log.Logger
	alertWindow int
	now         func() time.Time

	// chatLocks сериализует load-mutate-save внутри одной чат-сессии.
	chatLocks *sessionLocks
}

// Option настраивает App при создании.
type Option func(*App)

// WithAlertWindow задаёт окно напоминаний по умолчанию (в днях).
func WithAlertWindow(days int) Option {
	return func(a *App) {
		if days >= 0 {
			a.alertWindow = days
		}
	}
}

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func New(stores *tasks.Registry, client *ai.Client, sessions session.Store, logger *log.Logger, opts ...Option) *App {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	a := &App{
		stores:      stores,
		ai:          client,
		sessions:    sessions,
		log:         logger,
		alertWindow: tasks.DefaultAlertWindow,
		now:         time.Now,
		chatLocks:   newSessionLocks(),
	}
	for _, opt := range opts {
		opt(a)
	}
	stores.SetClock(a.now)
	return a
}

// AlertWindow возвращает окно напоминаний по умолчанию.
func (a *App) AlertWindow() int { return a.alertWindow }

// AIStatus сообщает, доступны ли AI-функции и почему нет.
func (a *App) AIStatus() ai.Status { return a.ai.Status() }

func (a *App) AddTask(ctx context.Context, store string, req tasks.CreateTaskRequest) (tasks.Task, error) {
	svc, err := a.stores.Get(store)
	if err != nil {
		return tasks.Task{}, err
	}
	return svc.AddTask(ctx, req)
}

func (a *App) GetTask(ctx context.Context, store, id string) (tasks.Task, error) {
	svc, err := a.stores.Get(store)
	if err != nil {
		return tasks.Task{}, err
	}
	return svc.GetTask(ctx, id)
}

func (a *App) DeleteTask(ctx context.Context, store, id string) error {
	svc, err := a.stores.Get(store)
	if err != nil {
		return err
	}
	return svc.DeleteTask(ctx, id)
}

// ListRanked возвращает задачи в порядке приоритет -> дедлайн.
func (a *App) ListRanked(ctx context.Context, store string) ([]tasks.Task, error) {
	svc, err := a.stores.Get(store)
	if err != nil {
		return nil, err
	}
	return svc.ListRanked(ctx)
}

// ListAlerts возвращает напоминания; window < 0 означает окно по умолчанию.
func (a *App) ListAlerts(ctx context.Context, store string, window int) ([]tasks.Alert, error) {
	svc, err := a.stores.Get(store)
	if err != nil {
		return nil, err
	}
	if window < 0 {
		window = a.alertWindow
	}
	return svc.ListAlerts(ctx, window)
}

// RequestPlan отправляет текущие задачи модели и возвращает план.
func (a *App) RequestPlan(ctx context.Context, store string) (string, error) {
	svc, err := a.stores.Get(store)
	if err != nil {
		return "", err
	}
	list, err := svc.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	plan, err := a.ai.GeneratePlan(ctx, list)
	if err != nil {
		return "", err
	}
	a.log.WithFields(log.Fields{"store": store, "tasks": len(list)}).Info("plan generated")
	return plan, nil
}

// SendChat дописывает сообщение в сессию и возвращает ответ модели.
//
// Пустой sessionID или неизвестная сессия - начинается новая, с системным сообщением,
// в котором лежит снимок задач store. Сессия сохраняется только после успешного ответа:
// при ошибке или отмене транскрипт остаётся прежним, реплика пользователя откатывается.
//
// Сессия привязана к хранилищу, по которому начата. Пустой store продолжает её как есть,
// другое имя даёт ErrSessionStore.
//
// Запросы в одну сессию идут по очереди, разные сессии друг друга не ждут.
// Ожидание очереди прерывается отменой ctx.
func (a *App) SendChat(ctx context.Context, store, sessionID, text string) (ChatResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatResult{}, ErrEmptyMessage
	}
	if !a.ai.Available() {
		return ChatResult{}, &ai.UnavailableError{Reason: a.ai.Status().Reason}
	}

	if sessionID != "" {
		release, err := a.chatLocks.acquire(ctx, sessionID)
		if err != nil {
			return ChatResult{}, err
		}
		defer release()
	}

	sess, err := a.loadOrStartSession(ctx, store, sessionID)
	if err != nil {
		return ChatResult{}, err
	}

	transcript, reply, err := a.ai.Chat(ctx, sess.Transcript, text)
	if err != nil {
		return ChatResult{}, err
	}

	sess.Transcript = transcript
	sess.UpdatedAt = a.now()
	if err := a.sessions.Put(ctx, sess); err != nil {
		return ChatResult{}, fmt.Errorf("save chat session: %w", err)
	}

	return ChatResult{SessionID: sess.ID, Reply: reply, Transcript: transcript}, nil
}

// Transcript возвращает сессию по ID.
func (a *App) Transcript(ctx context.Context, sessionID string) (session.Session, error) {
	sess, ok, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}
	if !ok {
		return session.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (a *App) loadOrStartSession(ctx context.Context, store, sessionID string) (session.Session, error) {
	if sessionID != "" {
		sess, ok, err := a.sessions.Get(ctx, sessionID)
		if err != nil {
			return session.Session{}, fmt.Errorf("load chat session: %w", err)
		}
		if ok {
			if store != "" && sess.Store != "" && store != sess.Store {
				return session.Session{}, fmt.Errorf("%w: session %s uses %q", ErrSessionStore, sess.ID, sess.Store)
			}
			return sess, nil
		}
		a.log.WithField("session_id", sessionID).Info("chat session not found, starting a new one")
	}

	if store == "" {
		store = tasks.DefaultStore
	}
	svc, err := a.stores.Get(store)
	if err != nil {
		return session.Session{}, err
	}
	list, err := svc.ListTasks(ctx)
	if err != nil {
		return session.Session{}, err
	}
	system, err := ai.ChatSystemPrompt(list)
	if err != nil {
		return session.Session{}, err
	}

	sess := session.New(a.now())
	sess.Store = store
	sess.Transcript = append(sess.Transcript, ai.ChatMessage{Role: ai.RoleSystem, Content: system})
	return sess, nil
}
