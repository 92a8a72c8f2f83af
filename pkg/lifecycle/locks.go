package lifecycle

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLocks 按键互斥锁注册表，不同键并行，同一键串行
type keyedLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// acquire 获取并锁定某键的互斥锁，调用方负责解锁
func (k *keyedLocks) acquire(id uuid.UUID) *sync.Mutex {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l
}
