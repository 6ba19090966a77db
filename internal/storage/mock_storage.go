package storage

import "sync"

// MemoryKV is an in-memory KV with failure injection and call counters for tests.
type MemoryKV struct {
	mu          sync.Mutex
	data        map[string][]byte
	getError    error
	setError    error
	deleteError error
	getCount    int
	setCount    int
	deleteCount int
}

// NewMemoryKV creates an empty in-memory store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCount++
	if m.getError != nil {
		return nil, false, m.getError
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCount++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCount++
	if m.deleteError != nil {
		return m.deleteError
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }

// Mock control methods for testing

// Put seeds a raw value without touching the counters.
func (m *MemoryKV) Put(key string, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte(value)
}

// Raw returns the stored value as a string without touching the counters.
func (m *MemoryKV) Raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return string(v), ok
}

func (m *MemoryKV) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getError = err
}

func (m *MemoryKV) SetSetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setError = err
}

func (m *MemoryKV) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteError = err
}

func (m *MemoryKV) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCount
}

func (m *MemoryKV) SetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCount
}

func (m *MemoryKV) DeleteCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCount
}
