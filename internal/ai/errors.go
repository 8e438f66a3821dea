package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable - AI-функции выключены (нет ключа или клиент не собрался).
	// Сравнивать через errors.Is: UnavailableError его "содержит".
	ErrUnavailable = errors.New("ai unavailable")
	// ErrEmptyResponse - провайдер ответил без вариантов.
	ErrEmptyResponse = errors.New("provider returned no choices")
)

// UnavailableError возвращается любым вызовом выключенного клиента. Сеть при этом не трогается.
type UnavailableError struct {
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("ai unavailable: %s", e.Reason)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// RequestError - запрос к провайдеру не удался: сеть, авторизация, ошибка на стороне провайдера,
// таймаут или отмена. Повторов нет.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
