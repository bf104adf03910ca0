package consent

import "sync"

// Memory is an in-process backend, scoped to the life of the value
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty memory backend
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Unavailable models disabled or blocked storage: every call fails
type Unavailable struct{}

func (Unavailable) Get(string) (string, bool, error) { return "", false, ErrUnavailable }
func (Unavailable) Set(string, string) error         { return ErrUnavailable }
func (Unavailable) Delete(string) error              { return ErrUnavailable }
