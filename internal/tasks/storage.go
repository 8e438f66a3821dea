package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// deadlineLayouts - форматы, которые SaveTasks умеет привести к DeadlineLayout.
var deadlineLayouts = []string{
	DeadlineLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// TaskStore отвечает за хранение задач в файле.
//
// Хранилище потокобезопасно: операции чтения/записи защищены RWMutex.
// Блокировок между процессами нет: два процесса, пишущие один файл, получат last-writer-wins.
type TaskStore struct {
	mu       sync.RWMutex
	filename string
	log      *log.Logger
}

// NewTaskStore создаёт новое файловое хранилище задач.
func NewTaskStore(filename string, logger *log.Logger) *TaskStore {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TaskStore{filename: filename, log: logger}
}

// Path возвращает путь к файлу хранилища.
func (ts *TaskStore) Path() string {
	return ts.filename
}

// SaveTasks сохраняет задачи в файл JSON.
//
// Перед записью все дедлайны приводятся к виду YYYY-MM-DD. Файл пишется целиком:
// сначала во временный файл рядом, потом rename поверх старого.
func (ts *TaskStore) SaveTasks(ctx context.Context, tasks []Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	normalized := make([]Task, len(tasks))
	for i, t := range tasks {
		t.Deadline = NormalizeDeadline(t.Deadline)
		normalized[i] = t
	}

	data, err := sonic.ConfigStd.MarshalIndent(normalized, "", "    ")
	if err != nil {
		return &StorageError{Op: "encode", Path: ts.filename, Err: err}
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if err := writeFileAtomic(ts.filename, data); err != nil {
		return &StorageError{Op: "write", Path: ts.filename, Err: err}
	}
	ts.log.WithFields(log.Fields{"path": ts.filename, "tasks": len(normalized)}).Debug("tasks saved")
	return nil
}

// LoadTasks загружает задачи из файла.
//
// Отсутствующий, пустой или повреждённый файл - это пустой список, а не ошибка.
// Ошибку метод возвращает только если ctx уже отменён.
// Задачам без ID (файлы старого формата) выдаётся новый UUID.
func (ts *TaskStore) LoadTasks(ctx context.Context) ([]Task, error) {
	tasks, _, err := ts.load(ctx)
	return tasks, err
}

// load - LoadTasks, который ещё сообщает, были ли выданы новые ID.
func (ts *TaskStore) load(ctx context.Context) (tasks []Task, assigned bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	ts.mu.RLock()
	data, err := os.ReadFile(ts.filename)
	ts.mu.RUnlock()

	entry := ts.log.WithField("path", ts.filename)
	if err != nil {
		if !os.IsNotExist(err) {
			entry.WithError(err).Warn("task file unreadable, starting empty")
		}
		return []Task{}, false, nil
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return []Task{}, false, nil
	}

	if err := sonic.Unmarshal(data, &tasks); err != nil {
		entry.WithError(err).Warn("task file malformed, starting empty")
		return []Task{}, false, nil
	}
	if tasks == nil {
		return []Task{}, false, nil
	}

	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
			assigned = true
		}
	}
	return tasks, assigned, nil
}

// NormalizeDeadline приводит дедлайн к YYYY-MM-DD.
// Значения, которые не удалось разобрать, возвращаются как есть (после TrimSpace).
func NormalizeDeadline(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DeadlineLayout)
		}
	}
	return s
}

func writeFileAtomic(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	// 0644 - права доступа (rw-r--r--)
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
