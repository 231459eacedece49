package memory

import (
	"context"
	"errors"
	"sync"
)

type object struct {
	data        []byte
	contentType string
}

// Store keeps attachments in memory and hands out memory:// URLs.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewStore() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Store(ctx context.Context, name string, blob []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" {
		return "", errors.New("attachment name is required")
	}

	data := make([]byte, len(blob))
	copy(data, blob)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[name]; exists {
		return "", errors.New("attachment already exists: " + name)
	}
	s.objects[name] = object{data: data, contentType: contentType}
	return "memory://" + name, nil
}

// Get returns a stored attachment by name.
func (s *Store) Get(name string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	return obj.data, obj.contentType, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
