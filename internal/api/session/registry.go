package session

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/tripsnap/api/pkg/logging"
	"github.com/tripsnap/api/pkg/resolver"
)

// DefaultMaxSessions bounds the number of live galleries; the least recently used is closed first
const DefaultMaxSessions = 1024

// Registry owns one resolver.Binding per (principal, session)
type Registry struct {
	resolver *resolver.Resolver

	mu       sync.Mutex
	bindings *lru.Cache[string, *resolver.Binding]
}

// NewRegistry creates a registry holding at most maxSessions bindings
func NewRegistry(r *resolver.Resolver, maxSessions int) (*Registry, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	bindings, err := lru.NewWithEvict(maxSessions, func(key string, b *resolver.Binding) {
		logging.Logger.Debug("Closing session gallery", zap.String("session", key))
		b.Close()
	})
	if err != nil {
		return nil, err
	}
	return &Registry{resolver: r, bindings: bindings}, nil
}

// Bind sets the inputs of a session gallery, creating it on first use.
// Returns false when the inputs were unchanged.
func (reg *Registry) Bind(key string, ids []string, viewer string) (resolver.State, bool) {
	reg.mu.Lock()
	b, ok := reg.bindings.Get(key)
	if !ok {
		b = resolver.NewBinding(reg.resolver)
		reg.bindings.Add(key, b)
	}
	// Update under the lock so a concurrent Remove or eviction cannot close b first.
	changed := b.Update(ids, viewer)
	reg.mu.Unlock()

	return b.State(), changed
}

// Get returns the binding for key
func (reg *Registry) Get(key string) (*resolver.Binding, bool) {
	return reg.bindings.Get(key)
}

// Remove closes and drops a session gallery
func (reg *Registry) Remove(key string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.bindings.Remove(key)
}

// Len returns the number of live galleries
func (reg *Registry) Len() int {
	return reg.bindings.Len()
}

// Close closes every binding
func (reg *Registry) Close() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.bindings.Purge()
}
