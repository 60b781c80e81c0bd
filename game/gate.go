package game

import (
	"fmt"
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/writtenrealms/writtenrealms/structs"
)

// gateForever stands in for gates that never release on their own.
const gateForever = 100 * 365 * 24 * time.Hour

const gateMaxKeys = 65536

// GateCache tracks which trigger gates are currently held. A gate is
// keyed by trigger id and scope key, so it is shared by every actor
// inside the trigger's scope.
type GateCache interface {
	// TryAcquire sets the gate if it is absent and reports whether it
	// was acquired. The check and set are atomic with respect to
	// other callers of this cache.
	TryAcquire(key string, ttl time.Duration) bool
	// Gated reports whether the gate is held, without touching it.
	Gated(key string) bool
}

type memoryGate struct {
	mutex   sync.Mutex
	entries cache.Cache[string, int64]
}

func NewGateCache() GateCache {
	return &memoryGate{
		entries: cache.NewCache[string, int64]().WithMaxKeys(gateMaxKeys),
	}
}

func (g *memoryGate) TryAcquire(key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = gateForever
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if _, held := g.entries.Get(key); held {
		return false
	}
	g.entries.Set(key, structs.Now(), ttl)
	return true
}

func (g *memoryGate) Gated(key string) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	_, held := g.entries.Get(key)
	return held
}

func gateKey(trigger *structs.Trigger, scopeKey string) string {
	return fmt.Sprintf("trigger-gate:%s:%s", trigger.Id, scopeKey)
}
