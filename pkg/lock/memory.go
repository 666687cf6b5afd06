package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

// MemoryManager is an in-process lock manager for single-node deployments.
type MemoryManager struct {
	mtx   sync.Mutex
	locks map[string]memoryLock
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

var _ Manager = (*MemoryManager)(nil)

// NewMemoryManager returns a new in-process lock manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		locks: make(map[string]memoryLock),
	}
}

// Acquire implements Manager.
func (m *MemoryManager) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	now := time.Now()
	if l, ok := m.locks[key]; ok && l.expiresAt.After(now) {
		return "", proto.ErrLockContention
	}

	token := uuid.New().String()
	m.locks[key] = memoryLock{
		token:     token,
		expiresAt: now.Add(ttl),
	}

	return token, nil
}

// Renew implements Manager.
func (m *MemoryManager) Renew(_ context.Context, key, token string, ttl time.Duration) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	l, ok := m.locks[key]
	if !ok || l.token != token {
		return proto.ErrLockMismatch
	}

	l.expiresAt = time.Now().Add(ttl)
	m.locks[key] = l
	return nil
}

// Release implements Manager.
func (m *MemoryManager) Release(_ context.Context, key, token string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	l, ok := m.locks[key]
	if !ok {
		return nil
	}

	if l.token != token {
		return proto.ErrLockMismatch
	}

	delete(m.locks, key)
	return nil
}
