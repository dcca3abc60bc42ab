package installer

import (
	"sync"

	"github.com/saasforge/modlife"
)

// keyedMutex serializes lifecycle operations per (tenant, module)
// within this process. Cross-process exclusion is the host's duty; this
// guard only makes a single process hosting concurrent callers safe.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(tenant modlife.TenantID, module string) func() {
	key := string(tenant) + "\x00" + module

	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
