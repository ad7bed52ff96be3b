package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/GregMSThompson/dashboard-backend/internal/store"
	"github.com/GregMSThompson/dashboard-backend/internal/tui"
)

func tuiCmd(flags *globalFlags) *cobra.Command {
	var watch string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the dashboard in the terminal",
		Long: `Draws every widget in the active layout and redraws once a second.
Press ? inside for the key bindings. Logs go to the configured log file.

With --watch, the given export document is re-imported every time it is
saved and the screen follows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, flags, true)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.stores.For(a.ctx, a.namespace)
			if err != nil {
				return err
			}
			changes := make(chan struct{}, 1)
			cancel := s.Subscribe(func(store.Change) {
				select {
				case changes <- struct{}{}:
				default:
				}
			})
			defer cancel()

			if watch != "" {
				ctx, stop := context.WithCancel(a.ctx)
				defer stop()
				go func() {
					err := watchFile(ctx, watch, func() {
						if err := importFile(a, watch); err != nil {
							a.log.Warn("re-import failed, dashboard unchanged", "path", watch, "error", err)
						}
					})
					if err != nil {
						a.log.Error("watch stopped", "path", watch, "error", err)
					}
				}()
			}

			m := tui.New(tui.Options{
				Context:   a.ctx,
				Service:   a.svc,
				Namespace: a.namespace,
				Changes:   changes,
			})
			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(a.ctx)).Run(); err != nil {
				return fmt.Errorf("run tui: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&watch, "watch", "w", "", "Re-import this file whenever it changes")
	return cmd
}
