package notify

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Token identifies a single registration. Tokens are never reused within a
// registry.
type Token uint64

type entry[F any] struct {
	token Token
	fn    F
}

// Registry is an ordered set of callbacks keyed by registration token.
// Insertion order is notification order.
type Registry[F any] struct {
	mu      sync.Mutex
	name    string
	next    Token
	entries []entry[F]
	logger  *zap.Logger
}

// New creates an empty registry. The name is only used in log output.
func New[F any](name string, logger *zap.Logger) *Registry[F] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry[F]{
		name:   name,
		logger: logger,
	}
}

// Add appends fn and returns its token
func (r *Registry[F]) Add(fn F) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.entries = append(r.entries, entry[F]{token: r.next, fn: fn})
	return r.next
}

// Remove unregisters the callback with the given token.
// Returns false if the token is not registered.
func (r *Registry[F]) Remove(token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.token == token {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Registered reports whether token is still registered
func (r *Registry[F]) Registered(token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.token == token {
			return true
		}
	}
	return false
}

// Len returns the number of registered callbacks
func (r *Registry[F]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear removes every registration
func (r *Registry[F]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// Notify invokes call once per registered callback, in registration order.
//
// Iteration runs over a snapshot taken before the first call, so callbacks may
// add or remove registrations. Callbacks added during the fan-out are not
// invoked by it; callbacks removed during the fan-out are skipped if they have
// not been reached yet. A panicking callback is logged and does not stop the
// remaining ones.
func (r *Registry[F]) Notify(call func(F)) {
	r.mu.Lock()
	snapshot := make([]entry[F], len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	for _, e := range snapshot {
		if !r.Registered(e.token) {
			continue
		}
		r.invoke(e, call)
	}
}

// NotifyOne invokes call for the single registration identified by token.
// Returns false if token is not registered.
func (r *Registry[F]) NotifyOne(token Token, call func(F)) bool {
	r.mu.Lock()
	var target *entry[F]
	for i := range r.entries {
		if r.entries[i].token == token {
			e := r.entries[i]
			target = &e
			break
		}
	}
	r.mu.Unlock()

	if target == nil {
		return false
	}
	r.invoke(*target, call)
	return true
}

func (r *Registry[F]) invoke(e entry[F], call func(F)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("observer failed",
				zap.String("registry", r.name),
				zap.Uint64("token", uint64(e.token)),
				zap.String("panic", fmt.Sprint(rec)),
			)
		}
	}()
	call(e.fn)
}
