package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/GregMSThompson/dashboard-backend/internal/bootstrap"
	"github.com/GregMSThompson/dashboard-backend/internal/config"
	"github.com/GregMSThompson/dashboard-backend/internal/services"
	"github.com/GregMSThompson/dashboard-backend/internal/store"
	"github.com/GregMSThompson/dashboard-backend/internal/tui"
	"github.com/GregMSThompson/dashboard-backend/internal/widgets"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	namespace string
	backend   string
	sqlite    string
	verbose   bool
}

// app is what a subcommand works against: the dashboard service over the
// configured local backend.
type app struct {
	ctx       context.Context
	namespace string
	svc       tui.Dashboard
	stores    *store.Manager
	log       *slog.Logger
	close     func() error
}

func main() {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "dashctl",
		Short: "Inspect and edit home dashboards",
		Long: `dashctl works directly against the dashboard store configured in
~/.config/dashboard/config.toml (or CONFIGFILE), without a running server.

Examples:
  dashctl list
  dashctl add clock --namespace kitchen
  dashctl export --format yaml
  dashctl import backup.json --watch
  dashctl tui`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.namespace, "namespace", "n", "", "Dashboard namespace (default from config)")
	rootCmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "Store backend: memory, sqlite or firestore")
	rootCmd.PersistentFlags().StringVar(&flags.sqlite, "sqlite", "", "SQLite database path")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(
		listCmd(flags),
		catalogCmd(flags),
		addCmd(flags),
		deleteCmd(flags),
		resetCmd(flags),
		configCmd(flags),
		layoutCmd(flags),
		exportCmd(flags),
		importCmd(flags),
		tuiCmd(flags),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// openApp loads config, applies flag overrides and opens the store. Logs go
// to stderr, or to the configured log file when logToFile is set so the
// terminal UI keeps them off its screen.
func openApp(cmd *cobra.Command, flags *globalFlags, logToFile bool) (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if flags.namespace != "" {
		cfg.Namespace = flags.namespace
	}
	if flags.backend != "" {
		cfg.StoreBackend = flags.backend
	}
	if flags.sqlite != "" {
		cfg.SQLitePath = flags.sqlite
	}
	if flags.verbose {
		cfg.LogLevel = "debug"
	}
	// Namespaces come from flags here, never from ID tokens.
	cfg.AuthMode = config.AuthHeader
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := store.ValidateNamespace(cfg.Namespace); err != nil {
		return nil, err
	}

	var (
		logOut  io.Writer = os.Stderr
		logFile *os.File
	)
	if logToFile {
		logFile, err = openLogFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		logOut = logFile
	}

	log := logger.New(cfg.LogLevel, logger.NewWriterHandler(logOut))
	bs, err := bootstrap.Run(cfg, log)
	if err != nil {
		bs.Close()
		if logFile != nil {
			logFile.Close()
		}
		return nil, err
	}

	closeAll := bs.Close
	if logFile != nil {
		closeAll = func() error {
			return errors.Join(bs.Close(), logFile.Close())
		}
	}

	stores := store.NewManager(bs.Backend, log)
	return &app{
		ctx:       logger.ToContext(cmd.Context(), log),
		namespace: cfg.Namespace,
		svc:       services.NewDashboardService(stores, widgets.Builtin(time.Now)),
		stores:    stores,
		log:       log,
		close:     closeAll,
	}, nil
}

// withApp runs fn against an opened app and closes it afterwards.
func withApp(flags *globalFlags, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, flags, false)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, a, args)
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
