// Package guard tracks which cart lines have a mutation in flight.
//
// A second request for a held key is rejected immediately rather than queued, so the
// caller always acts on the latest user intent instead of replaying stale taps.
package guard

import (
	"sync"

	carterrors "github.com/abgdnv/cartsync/internal/errors"
)

// MutationGuard is a keyed, non-blocking mutual exclusion.
type MutationGuard struct {
	mu   sync.Mutex
	held map[string]uint64
	next uint64
}

// Token is proof of holding a key. Releasing a token that no longer owns its key is a no-op.
type Token struct {
	guard      *MutationGuard
	key        string
	generation uint64
}

// New creates an empty guard.
func New() *MutationGuard {
	return &MutationGuard{held: make(map[string]uint64)}
}

// Acquire takes key or fails with ErrAlreadyPending without any other effect.
func (g *MutationGuard) Acquire(key string) (Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		return Token{}, carterrors.ErrAlreadyPending
	}
	g.next++
	g.held[key] = g.next
	return Token{guard: g, key: key, generation: g.next}, nil
}

// Release frees key unconditionally. Releasing a free key is a no-op.
func (g *MutationGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
}

// Held reports whether key is currently taken.
func (g *MutationGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.held[key]
	return busy
}

// Len returns the number of keys currently held.
func (g *MutationGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}

// Key returns the key this token was issued for.
func (t Token) Key() string {
	return t.key
}

// Release frees the key only if it is still held by this token's acquisition.
func (t Token) Release() {
	if t.guard == nil {
		return
	}
	t.guard.mu.Lock()
	defer t.guard.mu.Unlock()
	if t.guard.held[t.key] == t.generation {
		delete(t.guard.held, t.key)
	}
}
