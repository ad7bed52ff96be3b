package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestExportYAMLRoundTrip(t *testing.T) {
	blob := []byte(`{"home_layoutType":"flow","home_w1_config":{"text":"hi","n":3}}`)

	out, err := encodeExport(blob, "yaml")
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	back, err := decodeImport(out, "backup.yaml")
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}

	var want, got map[string]any
	_ = json.Unmarshal(blob, &want)
	_ = json.Unmarshal(back, &got)
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEncodeExportRejectsUnknownFormat(t *testing.T) {
	if _, err := encodeExport([]byte(`{}`), "xml"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecodeImportPassesJSONThrough(t *testing.T) {
	raw := []byte(`{"home_widgets":[]}`)
	got, err := decodeImport(raw, "backup.json")
	if err != nil || string(got) != string(raw) {
		t.Fatalf("expected passthrough, got %s (%v)", got, err)
	}
}

func TestParsePosition(t *testing.T) {
	p, err := parsePosition("1, 2,3,4")
	if err != nil || p.X != 1 || p.Y != 2 || p.W != 3 || p.H != 4 {
		t.Fatalf("unexpected position %+v (%v)", p, err)
	}
	for _, bad := range []string{"", "1,2,3", "a,b,c,d"} {
		if _, err := parsePosition(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"format24h=false", "size=12", "timezone=Europe/Rome"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if got["format24h"] != false || got["size"] != 12.0 || got["timezone"] != "Europe/Rome" {
		t.Fatalf("unexpected assignments %v", got)
	}
	if _, err := parseAssignments([]string{"novalue"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWatchFileCoalescesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dash.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("write error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	changes := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, func() { changes <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		_ = os.WriteFile(path, []byte(`{"home_a":1}`), 0o600)
	}

	select {
	case <-changes:
	case <-ctx.Done():
		t.Fatalf("expected a change notification")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch error: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected writes to be coalesced, got %d extra notifications", len(changes))
	}
}
