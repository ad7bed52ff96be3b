package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/pkg/helpers"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func listCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the widgets of a dashboard",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			resp, err := a.svc.GetDashboard(a.ctx, a.namespace)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  layout=%s  widgets=%d\n", resp.Namespace, resp.Layout.Type, len(resp.Widgets))
			if len(resp.Widgets) == 0 {
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return lipgloss.NewStyle().Padding(0, 1)
				}).
				Headers("#", "ID", "COMPONENT", "POSITION", "TITLE")
			for i, w := range resp.Widgets {
				p := w.Widget.Position
				title := w.View.Title
				if !w.Rendered {
					title = "(unavailable)"
				}
				t.Row(strconv.Itoa(i), w.Widget.ID, w.Widget.ComponentKey,
					fmt.Sprintf("%d,%d %dx%d", p.X, p.Y, p.W, p.H), title)
			}
			fmt.Fprintln(out, t.Render())
			return nil
		}),
	}
}

func catalogCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the widget types that can be added",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			for _, e := range a.svc.Catalog() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", e.Key, e.Title)
			}
			return nil
		}),
	}
}

func addCmd(flags *globalFlags) *cobra.Command {
	var pos string

	cmd := &cobra.Command{
		Use:   "add <componentKey>",
		Short: "Add a widget",
		Long: `Add a widget of the given component type with its default config.

Examples:
  dashctl add clock
  dashctl add postIt --pos 0,0,4,3`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			req := dto.AddWidgetRequest{ComponentKey: args[0]}
			if pos != "" {
				p, err := parsePosition(pos)
				if err != nil {
					return err
				}
				req.Position = &p
			}
			w, err := a.svc.AddWidget(a.ctx, a.namespace, req)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "added %s (%s)", w.ID, w.ComponentKey)
			return nil
		}),
	}

	cmd.Flags().StringVar(&pos, "pos", "", "Grid position as x,y,w,h")
	return cmd
}

func deleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <widgetId>...",
		Short: "Delete widgets and everything they stored",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			for _, id := range args {
				if err := a.svc.DeleteWidget(a.ctx, a.namespace, id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				success(cmd.OutOrStdout(), "deleted %s", id)
			}
			return nil
		}),
	}
}

func resetCmd(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every widget and restore default layout settings",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			if !yes {
				return fmt.Errorf("reset deletes every widget of %q; pass --yes to confirm", a.namespace)
			}
			if err := a.svc.ResetAll(a.ctx, a.namespace); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "reset %s", a.namespace)
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")
	return cmd
}

func configCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config <widgetId> [key=value]...",
		Short: "Show or update a widget's config",
		Long: `Without assignments, prints the widget's config as JSON. Each
key=value updates one field; values are parsed as JSON when possible and
kept as strings otherwise.

Examples:
  dashctl config 3f1c...
  dashctl config 3f1c... format24h=false timezone=Europe/Rome`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			id := args[0]
			var (
				cfg models.WidgetConfig
				err error
			)
			if len(args) == 1 {
				cfg, err = a.svc.GetWidgetConfig(a.ctx, a.namespace, id)
			} else {
				partial, perr := parseAssignments(args[1:])
				if perr != nil {
					return perr
				}
				cfg, err = a.svc.UpdateWidgetConfig(a.ctx, a.namespace, id, partial)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		}),
	}
}

func layoutCmd(flags *globalFlags) *cobra.Command {
	var (
		cols      int
		rowHeight int
		direction string
		columns   int
	)

	cmd := &cobra.Command{
		Use:   "layout [grid|flow]",
		Short: "Show or change the layout",
		Long: `Without arguments, prints the layout settings. With a layout type,
switches to it. Flags adjust the settings of either layout.

Examples:
  dashctl layout
  dashctl layout flow --direction row
  dashctl layout --cols 24`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			if len(args) == 1 {
				if _, err := a.svc.SetLayoutType(a.ctx, a.namespace, args[0]); err != nil {
					return err
				}
			}
			f := cmd.Flags()
			if f.Changed("cols") || f.Changed("row-height") {
				req := dto.GridLayoutRequest{}
				if f.Changed("cols") {
					req.Cols = helpers.Ptr(cols)
				}
				if f.Changed("row-height") {
					req.RowHeight = helpers.Ptr(rowHeight)
				}
				if _, err := a.svc.UpdateGridLayout(a.ctx, a.namespace, req); err != nil {
					return err
				}
			}
			if f.Changed("direction") || f.Changed("columns") {
				req := dto.FlowLayoutRequest{}
				if f.Changed("direction") {
					req.Direction = helpers.Ptr(direction)
				}
				if f.Changed("columns") {
					req.Columns = helpers.Ptr(columns)
				}
				if _, err := a.svc.UpdateFlowLayout(a.ctx, a.namespace, req); err != nil {
					return err
				}
			}

			resp, err := a.svc.GetDashboard(a.ctx, a.namespace)
			if err != nil {
				return err
			}
			l := resp.Layout
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "type: %s\n", l.Type)
			fmt.Fprintf(out, "grid: cols=%d rowHeight=%d fullscreen=%s\n", l.Grid.Cols, l.Grid.RowHeight, orNone(l.Grid.FullscreenWidgetID))
			fmt.Fprintf(out, "flow: direction=%s columns=%d fullscreen=%s\n", l.Flow.Direction, l.Flow.Columns, orNone(l.Flow.FullscreenWidgetID))
			return nil
		}),
	}

	cmd.Flags().IntVar(&cols, "cols", 0, "Grid column count")
	cmd.Flags().IntVar(&rowHeight, "row-height", 0, "Grid row height in pixels")
	cmd.Flags().StringVar(&direction, "direction", "", "Flow direction: column or row")
	cmd.Flags().IntVar(&columns, "columns", 0, "Flow column count")
	return cmd
}

func parsePosition(s string) (models.Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return models.Position{}, fmt.Errorf("position must be x,y,w,h, got %q", s)
	}
	var n [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return models.Position{}, fmt.Errorf("position field %d: %w", i+1, err)
		}
		n[i] = v
	}
	return models.Position{X: n[0], Y: n[1], W: n[2], H: n[3]}, nil
}

func parseAssignments(args []string) (models.WidgetConfig, error) {
	out := make(models.WidgetConfig, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
