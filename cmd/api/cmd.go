package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GregMSThompson/dashboard-backend/internal/bootstrap"
	"github.com/GregMSThompson/dashboard-backend/internal/config"
	"github.com/GregMSThompson/dashboard-backend/internal/events"
	"github.com/GregMSThompson/dashboard-backend/internal/handlers"
	"github.com/GregMSThompson/dashboard-backend/internal/response"
	"github.com/GregMSThompson/dashboard-backend/internal/router"
	"github.com/GregMSThompson/dashboard-backend/internal/services"
	"github.com/GregMSThompson/dashboard-backend/internal/store"
	"github.com/GregMSThompson/dashboard-backend/internal/widgets"
)

const shutdownTimeout = 10 * time.Second

func exitOnError(message string, err error, log *slog.Logger) {
	if err != nil {
		log.Error(message, "error", err)
		os.Exit(1)
	}
}

func main() {
	// config
	cfg, err := config.New()
	exitOnError("config failed", err, slog.Default())

	// bootstrap
	bs, err := bootstrap.Run(cfg, nil)
	exitOnError("bootstrap failed", err, bs.Log)
	defer bs.Close()

	// stores
	stores := store.NewManager(bs.Backend, bs.Log)

	// services
	dserv := services.NewDashboardService(stores, widgets.Builtin(time.Now))
	hub := events.NewHub()

	// response handler
	rh := response.New(bs.Log)

	// dependencies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.ResponseHandler = rh
	deps.Firebase = bs.Firebase
	deps.DashboardSvc = dserv
	deps.Stores = stores
	deps.Hub = hub
	deps.DefaultNamespace = cfg.Namespace

	// router
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", srv.Addr)
	exitOnError("listen failed", err, bs.Log)

	bs.Log.Info("listening", "addr", srv.Addr)
	exitOnError("server failed", serve(ctx, srv, ln, hub.Close, bs.Log), bs.Log)
}

// serve runs srv on ln until ctx is done, then calls drain and shuts the
// server down. It returns only after in-flight requests have finished or
// the shutdown timeout has passed.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, drain func(), log *slog.Logger) error {
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		if drain != nil {
			drain()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-done; err != nil {
		log.Error("shutdown failed", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
