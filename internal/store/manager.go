package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/metrics"
)

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,62}$`)

// ValidateNamespace rejects names that could collide with the "_" key
// separator or break backend document paths.
func ValidateNamespace(ns string) error {
	if !namespacePattern.MatchString(ns) {
		return errs.NewValidationError(fmt.Sprintf("invalid namespace %q", ns))
	}
	return nil
}

// Manager hands out one Store per namespace, loading it on first use.
type Manager struct {
	backend Backend
	log     *slog.Logger

	mu      sync.Mutex
	stores  map[string]*Store
	loading map[string]*loadCall
}

type loadCall struct {
	done  chan struct{}
	store *Store
	err   error
}

// NewManager builds a Manager whose stores log context-free events, such as
// a corrupt entry read, through log. A nil log uses slog.Default.
func NewManager(backend Backend, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		backend: backend,
		log:     log,
		stores:  make(map[string]*Store),
		loading: make(map[string]*loadCall),
	}
}

func (m *Manager) Backend() Backend { return m.backend }

// For returns the Store for namespace. Concurrent first calls share a single
// backend load; a failed load is not cached.
func (m *Manager) For(ctx context.Context, namespace string) (*Store, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if s, ok := m.stores[namespace]; ok {
		m.mu.Unlock()
		return s, nil
	}
	if call, ok := m.loading[namespace]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.store, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &loadCall{done: make(chan struct{})}
	m.loading[namespace] = call
	m.mu.Unlock()

	call.store, call.err = open(ctx, m.backend, namespace, m.log)

	m.mu.Lock()
	delete(m.loading, namespace)
	if call.err == nil {
		m.stores[namespace] = call.store
		metrics.OpenNamespaces.Set(float64(len(m.stores)))
	}
	m.mu.Unlock()
	close(call.done)

	return call.store, call.err
}
