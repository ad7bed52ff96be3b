package store

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/GregMSThompson/dashboard-backend/pkg/helpers"
)

func TestSQLiteBackendPutLoadDelete(t *testing.T) {
	ctx := helpers.TestCtx()
	b, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer b.Close()

	if err := b.Put(ctx, "app", "app_a", []byte(`1`)); err != nil {
		t.Fatalf("put error: %v", err)
	}
	if err := b.Put(ctx, "app", "app_a", []byte(`2`)); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	_ = b.Put(ctx, "app", "app_b", []byte(`"x"`))
	_ = b.Put(ctx, "other", "other_a", []byte(`true`))

	got, err := b.Load(ctx, "app")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	want := map[string][]byte{"app_a": []byte(`2`), "app_b": []byte(`"x"`)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if err := b.Delete(ctx, "app", []string{"app_a", "app_missing"}); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	got, _ = b.Load(ctx, "app")
	if len(got) != 1 {
		t.Fatalf("expected one entry left, got %q", got)
	}
	other, _ := b.Load(ctx, "other")
	if len(other) != 1 {
		t.Fatalf("expected other namespace untouched, got %q", other)
	}
}

func TestSQLiteBackendReplaceIsScopedToNamespace(t *testing.T) {
	ctx := helpers.TestCtx()
	b, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer b.Close()

	_ = b.Put(ctx, "app", "app_old", []byte(`1`))
	_ = b.Put(ctx, "other", "other_keep", []byte(`1`))

	if err := b.Replace(ctx, "app", map[string][]byte{"app_new": []byte(`{"a":1}`)}); err != nil {
		t.Fatalf("replace error: %v", err)
	}
	got, _ := b.Load(ctx, "app")
	if !reflect.DeepEqual(got, map[string][]byte{"app_new": []byte(`{"a":1}`)}) {
		t.Fatalf("unexpected namespace contents %q", got)
	}
	other, _ := b.Load(ctx, "other")
	if len(other) != 1 {
		t.Fatalf("expected other namespace untouched, got %q", other)
	}
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	ctx := helpers.TestCtx()
	path := filepath.Join(t.TempDir(), "nested", "dashboard.db")

	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	s := openTestStore(t, b, "app")
	if err := s.Set(ctx, "app_layoutType", "flow"); err != nil {
		t.Fatalf("set error: %v", err)
	}
	b.Close()

	b, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer b.Close()
	s = openTestStore(t, b, "app")
	if got := Get(s, "app_layoutType", "grid"); got != "flow" {
		t.Fatalf("expected persisted flow, got %q", got)
	}
}
