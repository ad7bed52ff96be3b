// Package store is the namespaced key/value layer every dashboard component
// persists through. A Store caches one namespace in memory (initialization
// phase, Open) and writes every mutation through to its Backend (flush phase).
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/metrics"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

type ChangeKind string

const (
	ChangeSet     ChangeKind = "set"
	ChangeDelete  ChangeKind = "delete"
	ChangeReplace ChangeKind = "replace"
)

// Change is delivered to subscribers after the cache has been updated.
type Change struct {
	Namespace string     `json:"namespace"`
	Kind      ChangeKind `json:"kind"`
	Keys      []string   `json:"keys"`
}

type Store struct {
	namespace string
	prefix    string
	backend   Backend
	log       *slog.Logger

	// writeMu orders cache updates and backend writes so the backend sees
	// mutations in the same order as the cache.
	writeMu sync.Mutex
	mu      sync.RWMutex
	entries map[string][]byte

	subMu   sync.RWMutex
	subs    map[int]func(Change)
	nextSub int
}

// Open loads every persisted entry of namespace from the backend, logging
// through the logger carried by ctx.
func Open(ctx context.Context, backend Backend, namespace string) (*Store, error) {
	return open(ctx, backend, namespace, logger.FromContext(ctx))
}

// open keeps base for the life of the Store. Entries read without a context
// are logged through it, so it must not carry request attributes.
func open(ctx context.Context, backend Backend, namespace string, base *slog.Logger) (*Store, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	entries, err := backend.Load(ctx, namespace)
	if err != nil {
		var dbErr *errs.DatabaseError
		if errors.As(err, &dbErr) {
			return nil, err
		}
		return nil, errs.NewDatabaseError("read", "failed to load namespace", err)
	}
	if entries == nil {
		entries = make(map[string][]byte)
	}

	s := &Store{
		namespace: namespace,
		prefix:    namespace + "_",
		backend:   backend,
		log:       base.With("namespace", namespace, "backend", backend.Name()),
		entries:   entries,
		subs:      make(map[int]func(Change)),
	}
	s.logFor(ctx).Debug("namespace loaded", "entries", len(entries))
	return s, nil
}

// logFor returns the caller's logger tagged with this namespace.
func (s *Store) logFor(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx).With("namespace", s.namespace, "backend", s.backend.Name())
}

func (s *Store) Namespace() string { return s.namespace }

func (s *Store) Prefix() string { return s.prefix }

// Key joins parts under the namespace prefix: Key("widgets") is
// "{ns}_widgets", Key(id, "config") is "{ns}_{id}_config".
func (s *Store) Key(parts ...string) string {
	return s.prefix + strings.Join(parts, "_")
}

// Raw returns the stored JSON for key.
func (s *Store) Raw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Has reports whether key holds a value.
func (s *Store) Has(key string) bool {
	_, ok := s.Raw(key)
	return ok
}

// Get decodes the value under key. A missing, null or undecodable entry
// yields def; corruption is logged and counted but never surfaced.
func Get[T any](s *Store, key string, def T) T {
	raw, ok := s.Raw(key)
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn("discarding corrupt entry", "key", key, "error", err)
		metrics.StoreCorruptEntries.Inc()
		return def
	}
	return v
}

// Set encodes value, updates the cache and writes through. Only an encode
// failure is returned; a failed backend write is logged and counted.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errs.NewValidationError(fmt.Sprintf("value for %q is not representable as JSON: %v", key, err))
	}

	s.writeMu.Lock()
	s.mu.Lock()
	s.entries[key] = raw
	s.mu.Unlock()
	s.flush(ctx, "put", s.backend.Put(ctx, s.namespace, key, raw))
	s.writeMu.Unlock()

	s.notify(Change{Namespace: s.namespace, Kind: ChangeSet, Keys: []string{key}})
	return nil
}

// Delete removes keys; missing keys are ignored.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	s.writeMu.Lock()
	s.mu.Lock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	s.mu.Unlock()
	s.flush(ctx, "delete", s.backend.Delete(ctx, s.namespace, keys))
	s.writeMu.Unlock()

	s.notify(Change{Namespace: s.namespace, Kind: ChangeDelete, Keys: keys})
}

// DeleteMatching removes every key of the namespace containing substr and
// returns the removed keys. An empty substr removes nothing.
func (s *Store) DeleteMatching(ctx context.Context, substr string) []string {
	if substr == "" {
		return nil
	}
	return s.DeleteFunc(ctx, func(key string) bool { return strings.Contains(key, substr) })
}

// DeleteFunc removes every key for which match reports true.
func (s *Store) DeleteFunc(ctx context.Context, match func(key string) bool) []string {
	var matched []string
	for _, k := range s.Keys() {
		if match(k) {
			matched = append(matched, k)
		}
	}
	s.Delete(ctx, matched...)
	return matched
}

// Keys returns the cached keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// ExportAll serializes every key under the namespace prefix into a single
// JSON object with the parsed values. Keys come out sorted.
func (s *Store) ExportAll() ([]byte, error) {
	s.mu.RLock()
	doc := make(map[string]json.RawMessage, len(s.entries))
	for k, v := range s.entries {
		if strings.HasPrefix(k, s.prefix) {
			doc[k] = json.RawMessage(v)
		}
	}
	s.mu.RUnlock()

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to export namespace", err)
	}
	return out, nil
}

// ImportAll replaces the namespace with the contents of blob. It reports
// false, with cache and backend untouched, when blob is not a valid export
// or the backend rejects the replacement.
func (s *Store) ImportAll(ctx context.Context, blob []byte) bool {
	return s.Import(ctx, blob) == nil
}

// Import is ImportAll with the failure reason.
func (s *Store) Import(ctx context.Context, blob []byte) error {
	snap, err := s.ParseSnapshot(blob)
	if err != nil {
		s.logFor(ctx).Warn("rejected import", "error", err)
		metrics.StoreImports.WithLabelValues("rejected").Inc()
		return err
	}
	return s.Replace(ctx, snap)
}

// Replace atomically swaps the namespace contents for snap, backend first.
func (s *Store) Replace(ctx context.Context, snap Snapshot) error {
	entries := make(map[string][]byte, len(snap))
	for k, v := range snap {
		if err := s.checkKey(k); err != nil {
			metrics.StoreImports.WithLabelValues("rejected").Inc()
			return err
		}
		entries[k] = []byte(v)
	}

	s.writeMu.Lock()
	if err := s.backend.Replace(ctx, s.namespace, entries); err != nil {
		s.writeMu.Unlock()
		s.logFor(ctx).Error("failed to replace namespace", "error", err)
		metrics.StoreWrites.WithLabelValues(s.backend.Name(), "replace", "error").Inc()
		metrics.StoreImports.WithLabelValues("failed").Inc()
		var (
			dbErr *errs.DatabaseError
			vErr  *errs.ValidationError
		)
		if errors.As(err, &dbErr) || errors.As(err, &vErr) {
			return err
		}
		return errs.NewDatabaseError("replace", "failed to replace namespace", err)
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	s.writeMu.Unlock()

	metrics.StoreWrites.WithLabelValues(s.backend.Name(), "replace", "ok").Inc()
	metrics.StoreImports.WithLabelValues("ok").Inc()
	s.logFor(ctx).Info("namespace replaced", "entries", len(entries))

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	s.notify(Change{Namespace: s.namespace, Kind: ChangeReplace, Keys: keys})
	return nil
}

// Snapshot returns the current namespace contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.entries))
	for k, v := range s.entries {
		snap[k] = json.RawMessage(v)
	}
	return snap
}

// Subscribe registers fn for every change of this namespace. fn runs
// synchronously on the writer's goroutine and must not write to the store.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(c Change) {
	s.subMu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) flush(ctx context.Context, op string, err error) {
	name := s.backend.Name()
	if err != nil {
		logger.FromContext(ctx).Error("write-through failed, keeping in-memory value",
			"namespace", s.namespace, "backend", name, "op", op, "error", err)
		metrics.StoreWrites.WithLabelValues(name, op, "error").Inc()
		return
	}
	metrics.StoreWrites.WithLabelValues(name, op, "ok").Inc()
}

func (s *Store) checkKey(key string) error {
	if !strings.HasPrefix(key, s.prefix) || len(key) == len(s.prefix) {
		return errs.NewValidationError(fmt.Sprintf("key %q is outside namespace %q", key, s.namespace))
	}
	if strings.Contains(key, "/") {
		return errs.NewValidationError(fmt.Sprintf("key %q must not contain '/'", key))
	}
	return nil
}
