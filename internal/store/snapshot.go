package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
)

// Snapshot is the parsed form of an export document: full key to raw JSON.
type Snapshot map[string]json.RawMessage

// Decode unmarshals the entry under key into v. ok is false when the key is
// absent.
func (s Snapshot) Decode(key string, v any) (ok bool, err error) {
	raw, ok := s[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Encode replaces the entry under key with the JSON form of v.
func (s Snapshot) Encode(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s[key] = raw
	return nil
}

// ParseSnapshot validates an export document against this store. Every key
// must carry a namespace prefix; a document exported from one other
// namespace is rebased onto this one. Nothing is applied.
func (s *Store) ParseSnapshot(blob []byte) (Snapshot, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, errs.NewValidationError(fmt.Sprintf("import document is not a JSON object: %v", err))
	}
	if doc == nil {
		return nil, errs.NewValidationError("import document must be a JSON object")
	}

	source := ""
	for k := range doc {
		ns, rest, found := strings.Cut(k, "_")
		if !found || rest == "" || ValidateNamespace(ns) != nil {
			return nil, errs.NewValidationError(fmt.Sprintf("import key %q is not namespaced", k))
		}
		if strings.Contains(k, "/") {
			return nil, errs.NewValidationError(fmt.Sprintf("import key %q must not contain '/'", k))
		}
		if source == "" {
			source = ns
		} else if ns != source {
			return nil, errs.NewValidationError(fmt.Sprintf("import document mixes namespaces %q and %q", source, ns))
		}
	}

	snap := make(Snapshot, len(doc))
	for k, v := range doc {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return nil, errs.NewValidationError(fmt.Sprintf("import value for %q is invalid: %v", k, err))
		}
		if source != s.namespace {
			k = s.prefix + strings.TrimPrefix(k, source+"_")
		}
		snap[k] = buf.Bytes()
	}
	return snap, nil
}
