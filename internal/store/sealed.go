package store

import (
	"context"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

// Sealer encrypts values before they reach a backend.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
	Open(ctx context.Context, sealed []byte) ([]byte, error)
}

type sealedBackend struct {
	inner  Backend
	sealer Sealer
}

// NewSealedBackend wraps inner so every value is stored sealed. Keys stay
// in clear text because deletion cleanup matches on them.
func NewSealedBackend(inner Backend, sealer Sealer) *sealedBackend {
	return &sealedBackend{inner: inner, sealer: sealer}
}

func (b *sealedBackend) Name() string { return b.inner.Name() + "+kms" }

func (b *sealedBackend) Load(ctx context.Context, namespace string) (map[string][]byte, error) {
	sealed, err := b.inner.Load(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(sealed))
	for k, v := range sealed {
		plain, err := b.sealer.Open(ctx, v)
		if err != nil {
			// Unreadable entries fall back to their defaults like corrupt ones.
			logger.FromContext(ctx).Warn("skipping entry that failed to unseal", "namespace", namespace, "key", k, "error", err)
			continue
		}
		out[k] = plain
	}
	return out, nil
}

func (b *sealedBackend) Put(ctx context.Context, namespace, key string, value []byte) error {
	sealed, err := b.sealer.Seal(ctx, value)
	if err != nil {
		return errs.NewDatabaseError("write", "failed to seal dashboard entry", err)
	}
	return b.inner.Put(ctx, namespace, key, sealed)
}

func (b *sealedBackend) Delete(ctx context.Context, namespace string, keys []string) error {
	return b.inner.Delete(ctx, namespace, keys)
}

func (b *sealedBackend) Replace(ctx context.Context, namespace string, entries map[string][]byte) error {
	sealed := make(map[string][]byte, len(entries))
	for k, v := range entries {
		s, err := b.sealer.Seal(ctx, v)
		if err != nil {
			return errs.NewDatabaseError("replace", "failed to seal dashboard entry", err)
		}
		sealed[k] = s
	}
	return b.inner.Replace(ctx, namespace, sealed)
}
