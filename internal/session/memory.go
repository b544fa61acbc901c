package session

import (
	"context"
	"sync"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

// MemoryStore keeps the identity in process. Watchers are told about every
// save and clear.
type MemoryStore struct {
	mu       sync.Mutex
	data     []byte
	saves    int
	watchers map[int]func(*models.User)
	nextID   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{watchers: map[int]func(*models.User){}}
}

func (m *MemoryStore) Load(ctx context.Context) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decode(m.data)
}

func (m *MemoryStore) Save(ctx context.Context, user *models.User) error {
	data, err := encode(user)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.saves++
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	m.notify()
	return nil
}

// Saves counts calls to Save.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Watch(ctx context.Context, onChange func(*models.User)) (func(), error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = onChange
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}, nil
}

func (m *MemoryStore) notify() {
	m.mu.Lock()
	u, err := decode(m.data)
	fns := make([]func(*models.User), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	if err != nil {
		return
	}
	for _, fn := range fns {
		fn(u)
	}
}
