package bootstrap

import (
	"context"

	"cloud.google.com/go/firestore"
	gcpkms "cloud.google.com/go/kms/apiv1"

	"github.com/GregMSThompson/dashboard-backend/internal/store"
)

func InitFirestore(ctx context.Context, projectID string) (*firestore.Client, error) {
	return firestore.NewClient(ctx, projectID)
}

func InitSQLite(path string) (store.ClosableBackend, error) {
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func InitKMS(ctx context.Context) (*gcpkms.KeyManagementClient, error) {
	return gcpkms.NewKeyManagementClient(ctx)
}
