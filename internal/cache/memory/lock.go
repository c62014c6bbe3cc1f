package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

type heldLock struct {
	token   string
	expires time.Time
}

// LockManager implements domain.LockManager within one process.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]heldLock),
		now:   time.Now,
	}
}

// Acquire takes the lock for key for at most ttl, or returns
// domain.ErrLockHeld.
func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	if h, ok := lm.locks[key]; ok && now.Before(h.expires) {
		return nil, domain.ErrLockHeld
	}

	token := uuid.NewString()
	lm.locks[key] = heldLock{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if h, ok := lm.locks[key]; ok && h.token == token {
				delete(lm.locks, key)
			}
		})
	}, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
