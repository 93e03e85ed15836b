package config

import "sync"

// Manager is a watchable key/value settings store layered under the
// parsed Config: the supervisor seeds it with the startup values
// (worker-count, max-connections, document-root, ...) and pushes live
// updates into it (connections.in_use) as they change, with Watch as the
// one mechanism for reacting to those updates.
type Manager struct {
	mu       sync.RWMutex
	values   map[string]interface{}
	watchers map[string][]func(string, interface{})
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		values:   make(map[string]interface{}),
		watchers: make(map[string][]func(string, interface{})),
	}
}

// Set stores value under key and notifies every watcher registered for
// key, each on its own goroutine.
func (m *Manager) Set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value

	for _, watcher := range m.watchers[key] {
		go watcher(key, value)
	}
}

// Get returns the value stored under key, if any.
func (m *Manager) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.values[key]
	return value, exists
}

// Watch registers callback to run whenever key is next Set.
func (m *Manager) Watch(key string, callback func(string, interface{})) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.watchers[key] = append(m.watchers[key], callback)
}
