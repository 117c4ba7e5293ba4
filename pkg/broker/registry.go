package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/zoff-tech/go-amqplog/pkg/config"
)

// Registry shares one Connection between every caller that asks for the same
// connect options. Entries live until Invalidate or Close; cached connections are
// returned without a health check.
type Registry struct {
	dialer Dialer

	mu      sync.Mutex
	entries map[string]Connection
}

// NewRegistry creates an empty registry dialing through dialer.
func NewRegistry(dialer Dialer) *Registry {
	return &Registry{
		dialer:  dialer,
		entries: make(map[string]Connection),
	}
}

// Acquire returns the cached connection for opts, dialing a new one on a miss.
func (r *Registry) Acquire(ctx context.Context, opts config.ConnectOptions) (Connection, error) {
	key := opts.CacheKey()

	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.entries[key]; ok {
		return conn, nil
	}

	conn, err := r.dialer.Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	r.entries[key] = conn
	return conn, nil
}

// Invalidate drops conn from the registry, if it is still cached, and closes it.
// The next Acquire for the same options dials again.
func (r *Registry) Invalidate(conn Connection) error {
	if conn == nil {
		return nil
	}

	r.mu.Lock()
	for key, cached := range r.entries {
		if cached == conn {
			delete(r.entries, key)
			break
		}
	}
	r.mu.Unlock()

	return conn.Close()
}

// Len reports the number of cached connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close closes every cached connection and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]Connection)
	r.mu.Unlock()

	var errs []error
	for _, conn := range entries {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}
