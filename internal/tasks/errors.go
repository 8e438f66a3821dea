package tasks

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound - задачи с таким ID нет в коллекции.
	ErrTaskNotFound = errors.New("task not found")
	// ErrUnknownStore - запрошено хранилище, которого нет в реестре.
	ErrUnknownStore = errors.New("unknown task store")
)

// StorageError - не удалось записать файл задач.
//
// Ошибки чтения сюда не попадают: LoadTasks их логирует и возвращает пустой список.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("task store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError - входные данные задачи не прошли проверку.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
