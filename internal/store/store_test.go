package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/pkg/helpers"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

// flakyBackend wraps the memory backend and fails the operations it is told to.
type flakyBackend struct {
	*memoryBackend
	failPut     bool
	failReplace bool
	failLoad    bool
}

func (b *flakyBackend) Load(ctx context.Context, ns string) (map[string][]byte, error) {
	if b.failLoad {
		return nil, errors.New("unavailable")
	}
	return b.memoryBackend.Load(ctx, ns)
}

func (b *flakyBackend) Put(ctx context.Context, ns, key string, value []byte) error {
	if b.failPut {
		return errors.New("disk full")
	}
	return b.memoryBackend.Put(ctx, ns, key, value)
}

func (b *flakyBackend) Replace(ctx context.Context, ns string, entries map[string][]byte) error {
	if b.failReplace {
		return errors.New("transaction aborted")
	}
	return b.memoryBackend.Replace(ctx, ns, entries)
}

func openTestStore(t *testing.T, backend Backend, ns string) *Store {
	t.Helper()
	s, err := Open(helpers.TestCtx(), backend, ns)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	return s
}

func TestStoreSetGetRoundTrip(t *testing.T) {
	ctx := helpers.TestCtx()
	backend := NewMemoryBackend()
	s := openTestStore(t, backend, "app")

	cfg := map[string]any{"text": "hi", "n": 3.0, "nested": map[string]any{"ok": true}, "list": []any{"a", "b"}}
	if err := s.Set(ctx, s.Key("w1", "config"), cfg); err != nil {
		t.Fatalf("set error: %v", err)
	}

	got := Get(s, "app_w1_config", map[string]any{})
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("expected %v, got %v", cfg, got)
	}

	// A fresh Store over the same backend sees the written value.
	reopened := openTestStore(t, backend, "app")
	if got := Get(reopened, "app_w1_config", map[string]any{}); !reflect.DeepEqual(got, cfg) {
		t.Fatalf("expected persisted %v, got %v", cfg, got)
	}
}

func TestStoreGetMissingAndCorruptReturnDefault(t *testing.T) {
	ctx := helpers.TestCtx()
	backend := NewMemoryBackend()
	_ = backend.Put(ctx, "app", "app_layoutType", []byte("{not json"))
	_ = backend.Put(ctx, "app", "app_null", []byte("null"))
	s := openTestStore(t, backend, "app")

	if got := Get(s, "app_missing", "grid"); got != "grid" {
		t.Fatalf("expected default for missing key, got %q", got)
	}
	if got := Get(s, "app_layoutType", "grid"); got != "grid" {
		t.Fatalf("expected default for corrupt key, got %q", got)
	}
	if got := Get(s, "app_null", []string{"x"}); len(got) != 1 {
		t.Fatalf("expected default for null entry, got %v", got)
	}
	if got := Get(s, "app_layoutType", 7); got != 7 {
		t.Fatalf("expected default for wrong type, got %d", got)
	}
}

func TestStoreSetRejectsUnencodableValue(t *testing.T) {
	s := openTestStore(t, NewMemoryBackend(), "app")
	err := s.Set(helpers.TestCtx(), "app_x", map[string]any{"f": func() {}})
	if _, ok := err.(*errs.ValidationError); !ok {
		t.Fatalf("expected validation error, got %T", err)
	}
	if s.Has("app_x") {
		t.Fatalf("expected nothing cached after encode failure")
	}
}

func TestStoreSetRejectsForeignKey(t *testing.T) {
	s := openTestStore(t, NewMemoryBackend(), "app")
	for _, key := range []string{"other_x", "app_", "app_a/b"} {
		if err := s.Set(helpers.TestCtx(), key, 1); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestStoreSetKeepsCacheWhenBackendFails(t *testing.T) {
	backend := &flakyBackend{memoryBackend: NewMemoryBackend(), failPut: true}
	s := openTestStore(t, backend, "app")

	if err := s.Set(helpers.TestCtx(), "app_layoutType", "flow"); err != nil {
		t.Fatalf("expected backend failure to be swallowed, got %v", err)
	}
	if got := Get(s, "app_layoutType", "grid"); got != "flow" {
		t.Fatalf("expected cached value, got %q", got)
	}
	persisted, _ := backend.memoryBackend.Load(context.Background(), "app")
	if _, ok := persisted["app_layoutType"]; ok {
		t.Fatalf("expected backend to be unchanged")
	}
}

func TestStoreDeleteMatching(t *testing.T) {
	ctx := helpers.TestCtx()
	s := openTestStore(t, NewMemoryBackend(), "app")
	_ = s.Set(ctx, "app_w1_config", map[string]any{})
	_ = s.Set(ctx, "app_w1_extra", 1)
	_ = s.Set(ctx, "app_w2_config", map[string]any{})

	removed := s.DeleteMatching(ctx, "w1")
	if !reflect.DeepEqual(removed, []string{"app_w1_config", "app_w1_extra"}) {
		t.Fatalf("unexpected removed keys %v", removed)
	}
	if !reflect.DeepEqual(s.Keys(), []string{"app_w2_config"}) {
		t.Fatalf("unexpected remaining keys %v", s.Keys())
	}
	if got := s.DeleteMatching(ctx, ""); got != nil {
		t.Fatalf("expected empty substring to remove nothing, got %v", got)
	}
}

func TestStoreExportAllOnlyNamespaceKeys(t *testing.T) {
	ctx := helpers.TestCtx()
	backend := NewMemoryBackend()
	// Stray key that does not carry the prefix must not leak into the export.
	_ = backend.Put(ctx, "app", "stray", []byte(`1`))
	s := openTestStore(t, backend, "app")
	_ = s.Set(ctx, "app_layoutType", "flow")
	_ = s.Set(ctx, "app_widgets", []map[string]any{{"id": "w1"}})

	blob, err := s.ExportAll()
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(blob, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if len(doc) != 2 || doc["app_layoutType"] != "flow" {
		t.Fatalf("unexpected export %v", doc)
	}
	if strings.Index(string(blob), "app_layoutType") > strings.Index(string(blob), "app_widgets") {
		t.Fatalf("expected sorted keys, got %s", blob)
	}
}

func TestStoreExportImportRoundTrip(t *testing.T) {
	ctx := helpers.TestCtx()
	src := openTestStore(t, NewMemoryBackend(), "app")
	_ = src.Set(ctx, "app_layoutType", "flow")
	_ = src.Set(ctx, "app_w1_config", map[string]any{"text": "x"})
	blob, _ := src.ExportAll()

	dst := openTestStore(t, NewMemoryBackend(), "app")
	_ = dst.Set(ctx, "app_old", true)
	if !dst.ImportAll(ctx, blob) {
		t.Fatalf("expected import to succeed")
	}
	if !reflect.DeepEqual(dst.Keys(), src.Keys()) {
		t.Fatalf("expected %v, got %v", src.Keys(), dst.Keys())
	}
	again, _ := dst.ExportAll()
	if string(again) != string(blob) {
		t.Fatalf("expected identical export\nwant %s\ngot  %s", blob, again)
	}
}

func TestStoreImportRebasesForeignNamespace(t *testing.T) {
	s := openTestStore(t, NewMemoryBackend(), "bob")
	blob := []byte(`{"alice_layoutType":"flow","alice_w1_config":{"a":1}}`)
	if err := s.Import(helpers.TestCtx(), blob); err != nil {
		t.Fatalf("import error: %v", err)
	}
	if !reflect.DeepEqual(s.Keys(), []string{"bob_layoutType", "bob_w1_config"}) {
		t.Fatalf("unexpected keys %v", s.Keys())
	}
}

func TestStoreImportFailureLeavesStateUntouched(t *testing.T) {
	ctx := helpers.TestCtx()
	cases := map[string][]byte{
		"not json":     []byte(`{"app_a": `),
		"array":        []byte(`[1,2,3]`),
		"null":         []byte(`null`),
		"bare key":     []byte(`{"layoutType":"grid"}`),
		"mixed ns":     []byte(`{"app_a":1,"other_b":2}`),
		"slash in key": []byte(`{"app_a/b":1}`),
		"trailing":     []byte(`{"app_a":1} {}`),
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			backend := NewMemoryBackend()
			s := openTestStore(t, backend, "app")
			_ = s.Set(ctx, "app_layoutType", "flow")
			before, _ := s.ExportAll()

			if s.ImportAll(ctx, blob) {
				t.Fatalf("expected import to fail")
			}
			after, _ := s.ExportAll()
			if string(before) != string(after) {
				t.Fatalf("expected cache unchanged")
			}
			persisted, _ := backend.Load(ctx, "app")
			if string(persisted["app_layoutType"]) != `"flow"` || len(persisted) != 1 {
				t.Fatalf("expected backend unchanged, got %v", persisted)
			}
		})
	}
}

func TestStoreImportBackendFailureLeavesCacheUntouched(t *testing.T) {
	ctx := helpers.TestCtx()
	backend := &flakyBackend{memoryBackend: NewMemoryBackend()}
	s := openTestStore(t, backend, "app")
	_ = s.Set(ctx, "app_layoutType", "flow")

	backend.failReplace = true
	err := s.Import(ctx, []byte(`{"app_layoutType":"grid"}`))
	if _, ok := err.(*errs.DatabaseError); !ok {
		t.Fatalf("expected database error, got %T", err)
	}
	if got := Get(s, "app_layoutType", ""); got != "flow" {
		t.Fatalf("expected cached value to survive, got %q", got)
	}
}

func TestStoreSubscribeReceivesChanges(t *testing.T) {
	ctx := helpers.TestCtx()
	s := openTestStore(t, NewMemoryBackend(), "app")

	var got []Change
	cancel := s.Subscribe(func(c Change) { got = append(got, c) })
	_ = s.Set(ctx, "app_a", 1)
	s.Delete(ctx, "app_a")
	_ = s.Import(ctx, []byte(`{"app_b":2}`))
	cancel()
	_ = s.Set(ctx, "app_c", 3)

	kinds := []ChangeKind{ChangeSet, ChangeDelete, ChangeReplace}
	if len(got) != len(kinds) {
		t.Fatalf("expected %d changes, got %v", len(kinds), got)
	}
	for i, k := range kinds {
		if got[i].Kind != k || got[i].Namespace != "app" {
			t.Fatalf("change %d: expected %s, got %+v", i, k, got[i])
		}
	}
}

func TestOpenWrapsLoadFailure(t *testing.T) {
	backend := &flakyBackend{memoryBackend: NewMemoryBackend(), failLoad: true}
	_, err := Open(helpers.TestCtx(), backend, "app")
	var dbErr *errs.DatabaseError
	if !errors.As(err, &dbErr) || dbErr.Operation != "read" {
		t.Fatalf("expected read database error, got %v", err)
	}
}

func TestManagerForCachesAndValidates(t *testing.T) {
	m := NewManager(NewMemoryBackend(), nil)
	ctx := helpers.TestCtx()

	if _, err := m.For(ctx, "bad_ns"); err == nil {
		t.Fatalf("expected invalid namespace error")
	}
	if _, err := m.For(ctx, ""); err == nil {
		t.Fatalf("expected empty namespace error")
	}

	var (
		wg     sync.WaitGroup
		stores = make([]*Store, 8)
	)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.For(ctx, "home-1")
			if err != nil {
				t.Errorf("for error: %v", err)
			}
			stores[i] = s
		}(i)
	}
	wg.Wait()
	for _, s := range stores[1:] {
		if s != stores[0] {
			t.Fatalf("expected a single store per namespace")
		}
	}
}

func TestManagerStoresDoNotKeepFirstRequestLogger(t *testing.T) {
	var base, first bytes.Buffer
	backend := NewMemoryBackend()
	_ = backend.Put(context.Background(), "app", "app_layoutType", []byte("{not json"))

	m := NewManager(backend, logger.New("debug", logger.NewWriterHandler(&base)))
	reqLog := logger.New("debug", logger.NewWriterHandler(&first)).With("request_id", "req-1")
	ctx := logger.ToContext(context.Background(), reqLog)

	s, err := m.For(ctx, "app")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// A later reader hits the corrupt entry with no context of its own.
	_ = Get(s, "app_layoutType", "grid")

	if !strings.Contains(base.String(), "discarding corrupt entry") {
		t.Fatalf("expected corrupt entry warning on the base logger, got %q", base.String())
	}
	if strings.Contains(base.String(), "req-1") {
		t.Fatalf("expected no request id on store-level log, got %q", base.String())
	}
	if strings.Contains(first.String(), "discarding corrupt entry") {
		t.Fatalf("expected the first request's logger to be released, got %q", first.String())
	}

	// Context-bearing operations still log through the caller.
	if s.ImportAll(ctx, []byte("not an export")) {
		t.Fatalf("expected import to be rejected")
	}
	if !strings.Contains(first.String(), "rejected import") || !strings.Contains(first.String(), "req-1") {
		t.Fatalf("expected rejection logged with the request id, got %q", first.String())
	}
}
