package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/firestore"
	gcpkms "cloud.google.com/go/kms/apiv1"
	"firebase.google.com/go/v4/auth"

	"github.com/GregMSThompson/dashboard-backend/internal/config"
	"github.com/GregMSThompson/dashboard-backend/internal/crypto"
	"github.com/GregMSThompson/dashboard-backend/internal/store"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

type Bootstrap struct {
	Log       *slog.Logger
	Firestore *firestore.Client
	Firebase  *auth.Client
	KMS       *gcpkms.KeyManagementClient
	// Backend is the store backend selected by config, sealed with KMS
	// when a key is configured.
	Backend store.Backend

	closers []func() error
}

// Run builds the clients the config asks for. log may be nil, in which
// case a Cloud Logging handler on stdout is used.
func Run(cfg *config.Config, log *slog.Logger) (*Bootstrap, error) {
	var err error
	applicationCtx := context.Background()
	bs := new(Bootstrap)

	bs.Log = log
	if bs.Log == nil {
		bs.Log = logger.New(cfg.LogLevel, logger.NewCloudRunHandler)
	}

	switch cfg.StoreBackend {
	case config.BackendFirestore:
		bs.Firestore, err = InitFirestore(applicationCtx, cfg.ProjectID)
		if err != nil {
			return bs, err
		}
		bs.closers = append(bs.closers, bs.Firestore.Close)
		bs.Backend = store.NewFirestoreBackend(bs.Firestore)
	case config.BackendSQLite:
		db, err := InitSQLite(cfg.SQLitePath)
		if err != nil {
			return bs, err
		}
		bs.closers = append(bs.closers, db.Close)
		bs.Backend = db
	default:
		bs.Backend = store.NewMemoryBackend()
	}

	if cfg.KMSKeyName != "" {
		bs.KMS, err = InitKMS(applicationCtx)
		if err != nil {
			return bs, err
		}
		bs.closers = append(bs.closers, bs.KMS.Close)
		bs.Backend = store.NewSealedBackend(bs.Backend, crypto.NewKMS(bs.KMS, cfg.KMSKeyName))
	}

	if cfg.AuthMode == config.AuthFirebase {
		bs.Firebase, err = InitFirebase(applicationCtx, cfg.ProjectID)
		if err != nil {
			return bs, err
		}
	}

	bs.Log.Info("bootstrap complete", "store_backend", bs.Backend.Name(), "auth_mode", cfg.AuthMode)
	return bs, nil
}

// Close releases clients in reverse order of creation.
func (bs *Bootstrap) Close() error {
	var errs []error
	for i := len(bs.closers) - 1; i >= 0; i-- {
		if err := bs.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	bs.closers = nil
	return errors.Join(errs...)
}
