package template

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/coder/quartz"
)

// MemoryStore is an in-memory Store used by tests and seed tooling. With a
// quartz mock clock, tests control updated_at precisely.
type MemoryStore struct {
	clock quartz.Clock

	mu        sync.RWMutex
	templates map[string]Template // keyed "name:channel"
}

func NewMemoryStore(clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{
		clock:     clock,
		templates: map[string]Template{},
	}
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tmpl := range s.templates {
		if tmpl.ID == id {
			return tmpl, nil
		}
	}
	return Template{}, ErrNotFound
}

func (s *MemoryStore) FindByName(_ context.Context, name string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tmpl := range s.templates {
		if tmpl.Name == name {
			return tmpl, nil
		}
	}
	return Template{}, ErrNotFound
}

func (s *MemoryStore) FindByNameAndChannel(_ context.Context, name, channel string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tmpl, ok := s.templates[name+":"+channel]
	if !ok {
		return Template{}, ErrNotFound
	}
	return tmpl, nil
}

func (s *MemoryStore) Save(_ context.Context, tmpl Template) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	key := tmpl.Name + ":" + tmpl.Channel
	if existing, ok := s.templates[key]; ok {
		tmpl.ID = existing.ID
		tmpl.CreatedAt = existing.CreatedAt
	} else {
		if tmpl.ID == uuid.Nil {
			tmpl.ID = uuid.New()
		}
		tmpl.CreatedAt = now
	}
	if tmpl.ContentType == "" {
		tmpl.ContentType = ContentTypeHTML
	}
	tmpl.UpdatedAt = now
	s.templates[key] = tmpl
	return tmpl, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, tmpl := range s.templates {
		if tmpl.ID == id {
			delete(s.templates, key)
			return nil
		}
	}
	return ErrNotFound
}
