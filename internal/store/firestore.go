package store

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

// Firestore caps a transaction at 500 writes; a replace deletes the old
// entries and sets the new ones in the same transaction.
const firestoreMaxTxWrites = 500

type entryDoc struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type firestoreBackend struct {
	client *firestore.Client
}

func NewFirestoreBackend(client *firestore.Client) *firestoreBackend {
	return &firestoreBackend{client: client}
}

func (b *firestoreBackend) Name() string { return "firestore" }

func (b *firestoreBackend) collection(namespace string) *firestore.CollectionRef {
	return b.client.Collection("dashboards").Doc(namespace).Collection("entries")
}

func (b *firestoreBackend) Load(ctx context.Context, namespace string) (map[string][]byte, error) {
	iter := b.collection(namespace).Documents(ctx)
	defer iter.Stop()

	out := make(map[string][]byte)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to load dashboard entries", err)
		}
		var e entryDoc
		if err := doc.DataTo(&e); err != nil {
			// Left out so readers fall back to their defaults.
			logger.FromContext(ctx).Warn("skipping unreadable entry", "namespace", namespace, "key", doc.Ref.ID, "error", err)
			continue
		}
		out[doc.Ref.ID] = []byte(e.Value)
	}
	return out, nil
}

func (b *firestoreBackend) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := b.collection(namespace).Doc(key).Set(ctx, entryDoc{
		Value:     string(value),
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return errs.NewDatabaseError("write", "failed to write dashboard entry", err)
	}
	return nil
}

type bulkDeleteJob struct {
	key string
	job *firestore.BulkWriterJob
}

func (b *firestoreBackend) Delete(ctx context.Context, namespace string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)
	bw := b.client.BulkWriter(ctx)
	coll := b.collection(namespace)

	jobs := make([]bulkDeleteJob, 0, len(keys))
	for _, key := range keys {
		j, err := bw.Delete(coll.Doc(key))
		if err != nil {
			bw.End()
			return errs.NewDatabaseError("delete", "failed to schedule entry delete", err)
		}
		jobs = append(jobs, bulkDeleteJob{key: key, job: j})
	}
	bw.End()

	for _, entry := range jobs {
		if _, err := entry.job.Results(); err != nil {
			log.Error("failed to delete dashboard entry", "namespace", namespace, "key", entry.key, "error", err)
			return errs.NewDatabaseError("delete", "failed to delete dashboard entry", err)
		}
	}
	return nil
}

func (b *firestoreBackend) Replace(ctx context.Context, namespace string, entries map[string][]byte) error {
	coll := b.collection(namespace)
	now := time.Now()

	err := b.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(coll).GetAll()
		if err != nil {
			return err
		}
		if len(existing)+len(entries) > firestoreMaxTxWrites {
			return errs.NewValidationError("import is too large for a single transaction")
		}
		for _, doc := range existing {
			if _, keep := entries[doc.Ref.ID]; keep {
				continue
			}
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		for key, value := range entries {
			if err := tx.Set(coll.Doc(key), entryDoc{Value: string(value), UpdatedAt: now}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var vErr *errs.ValidationError
		if errors.As(err, &vErr) {
			return vErr
		}
		return errs.NewDatabaseError("replace", "failed to replace dashboard entries", err)
	}
	return nil
}
