package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const watchDebounce = 250 * time.Millisecond

func exportCmd(flags *globalFlags) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dashboard as an export document",
		Long: `Writes every key of the namespace as one JSON object, the same
document the web UI downloads. --format yaml renders it as YAML for
reading; both formats can be imported.`,
		Args: cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			blob, err := a.svc.ExportConfig(a.ctx, a.namespace)
			if err != nil {
				return err
			}
			blob, err = encodeExport(blob, format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(blob)
				return err
			}
			if err := os.WriteFile(output, blob, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			success(cmd.ErrOrStderr(), "exported %s to %s", a.namespace, output)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func importCmd(flags *globalFlags) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the dashboard with an export document",
		Long: `Replaces every key of the namespace with the contents of an export
document (JSON, or YAML when the file ends in .yaml/.yml). A document from
another namespace is rebased onto this one. Nothing changes if the document
is invalid.

With --watch, the file is re-imported every time it is saved until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			path := args[0]
			if err := importFile(a, path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "imported %s into %s", path, a.namespace)
			if !watch {
				return nil
			}
			ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchFile(ctx, path, func() {
				if err := importFile(a, path); err != nil {
					a.log.Warn("re-import failed, dashboard unchanged", "path", path, "error", err)
					return
				}
				success(cmd.OutOrStdout(), "re-imported %s", path)
			})
		}),
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-import whenever the file changes")
	return cmd
}

func importFile(a *app, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}
	blob, err := decodeImport(raw, path)
	if err != nil {
		return err
	}
	return a.svc.ImportConfig(a.ctx, a.namespace, blob)
}

// encodeExport renders an export document in format.
func encodeExport(blob []byte, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return append(blob, '\n'), nil
	case "yaml", "yml":
		var doc map[string]any
		if err := json.Unmarshal(blob, &doc); err != nil {
			return nil, fmt.Errorf("decode export: %w", err)
		}
		return yaml.Marshal(doc)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// decodeImport converts a YAML document to JSON; JSON passes through.
func decodeImport(raw []byte, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return json.Marshal(doc)
	}
	return raw, nil
}

// watchFile calls onChange after path is written, coalescing bursts of
// events. The parent directory is watched because editors often replace
// the file instead of writing it in place.
func watchFile(ctx context.Context, path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
