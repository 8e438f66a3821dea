package tasks

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultStore - имя хранилища, которое используется, когда клиент имя не указал.
const DefaultStore = "default"

// Registry держит независимые именованные хранилища задач (например, tasks.json и tasks_agentic.json).
// Коллекции не пересекаются: у каждой свой файл и свой Service.
type Registry struct {
	services map[string]*Service
}

// NewRegistry загружает все хранилища из files (имя -> путь к файлу).
func NewRegistry(ctx context.Context, files map[string]string, logger *log.Logger) (*Registry, error) {
	r := &Registry{services: make(map[string]*Service, len(files))}
	for name, path := range files {
		svc, err := NewService(ctx, NewTaskStore(path, logger), logger)
		if err != nil {
			return nil, fmt.Errorf("load store %q: %w", name, err)
		}
		r.services[name] = svc
	}
	return r, nil
}

// Get возвращает Service по имени; пустое имя означает DefaultStore.
func (r *Registry) Get(name string) (*Service, error) {
	if name == "" {
		name = DefaultStore
	}
	svc, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, name)
	}
	return svc, nil
}

// SetClock подменяет часы во всех хранилищах.
func (r *Registry) SetClock(now func() time.Time) {
	for _, svc := range r.services {
		svc.SetClock(now)
	}
}

// Names возвращает имена хранилищ в алфавитном порядке.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.services))
	for n := range r.services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
