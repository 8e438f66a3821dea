package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service - слой бизнес-логики над одним файлом задач.
//
// Вся коллекция живёт в памяти; каждая мутация идёт по схеме
// "собрать новый список -> сохранить на диск -> закоммитить в память" под одним мьютексом.
type Service struct {
	store *TaskStore
	log   *log.Logger
	now   func() time.Time

	mu    sync.RWMutex
	tasks []Task
}

// NewService создает сервис и загружает задачи из хранилища.
//
// Принимаем ctx, чтобы даже инициализация уважала отмену.
// Если задачам из старого файла выданы ID, файл сразу перезаписывается,
// чтобы ID не менялись между перезапусками. Неудачная запись только логируется.
func NewService(ctx context.Context, store *TaskStore, logger *log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	loaded, assigned, err := store.load(ctx)
	if err != nil {
		return nil, err
	}
	if assigned {
		entry := logger.WithFields(log.Fields{"path": store.Path(), "tasks": len(loaded)})
		if err := store.SaveTasks(ctx, loaded); err != nil {
			entry.WithError(err).Warn("could not persist assigned task ids")
		} else {
			entry.Info("assigned ids to legacy tasks")
		}
	}

	return &Service{
		store: store,
		log:   logger,
		now:   time.Now,
		tasks: loaded,
	}, nil
}

// SetClock подменяет источник текущего времени (сегодняшняя дата для дедлайнов и алертов).
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Today возвращает текущую дату по часам сервиса.
func (s *Service) Today() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

// ListTasks возвращает копию коллекции в порядке хранения.
func (s *Service) ListTasks(ctx context.Context) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

// ListRanked возвращает задачи, отсортированные через Rank.
func (s *Service) ListRanked(ctx context.Context) ([]Task, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(tasks), nil
}

// ListAlerts возвращает напоминания для задач с дедлайном в пределах window дней от сегодня.
func (s *Service) ListAlerts(ctx context.Context, window int) ([]Alert, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return Upcoming(tasks, s.Today(), window), nil
}

// GetTask возвращает задачу по id.
func (s *Service) GetTask(ctx context.Context, id string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return Task{}, ErrTaskNotFound
}

// AddTask проверяет запрос, выдаёт задаче UUID и сохраняет коллекцию в файл.
func (s *Service) AddTask(ctx context.Context, req CreateTaskRequest) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		req.Title = DefaultTitle
	}
	req.Priority = strings.TrimSpace(req.Priority)
	req.Deadline = NormalizeDeadline(req.Deadline)
	if req.Deadline == "" {
		req.Deadline = s.Today().Format(DeadlineLayout)
	}
	if err := validateRequest(req); err != nil {
		return Task{}, err
	}

	created := Task{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Deadline: req.Deadline,
		Priority: Priority(req.Priority),
		Notes:    req.Notes,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Готовим новый список, но НЕ коммитим в память, пока не сохранили на диск.
	candidate := make([]Task, 0, len(s.tasks)+1)
	candidate = append(candidate, s.tasks...)
	candidate = append(candidate, created)

	if err := s.store.SaveTasks(ctx, candidate); err != nil {
		return Task{}, err
	}

	s.tasks = candidate
	s.log.WithFields(log.Fields{"task_id": created.ID, "priority": created.Priority}).Info("task added")
	return created, nil
}

// DeleteTask удаляет задачу по id и сохраняет в файл.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrTaskNotFound
	}

	candidate := make([]Task, 0, len(s.tasks)-1)
	candidate = append(candidate, s.tasks[:idx]...)
	candidate = append(candidate, s.tasks[idx+1:]...)

	if err := s.store.SaveTasks(ctx, candidate); err != nil {
		return err
	}

	s.tasks = candidate
	s.log.WithField("task_id", id).Info("task deleted")
	return nil
}

// validateRequest переводит ошибки validator в ValidationError по первому проблемному полю.
func validateRequest(req CreateTaskRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: strings.ToLower(fe.Field()), Reason: reasonFor(fe)}
	}
	return &ValidationError{Field: "task", Reason: err.Error()}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD form"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
