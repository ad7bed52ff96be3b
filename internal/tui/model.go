// Package tui is a terminal host for a dashboard: it renders every widget's
// view in the active layout and drives the same operations as the HTTP API.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/widgets"
)

// Dashboard is the dashboard service as used by terminal hosts.
type Dashboard interface {
	GetDashboard(ctx context.Context, ns string) (dto.DashboardResponse, error)
	Catalog() []widgets.CatalogEntry
	AddWidget(ctx context.Context, ns string, req dto.AddWidgetRequest) (models.Widget, error)
	DeleteWidget(ctx context.Context, ns, id string) error
	ResetAll(ctx context.Context, ns string) error
	ExportConfig(ctx context.Context, ns string) ([]byte, error)
	ImportConfig(ctx context.Context, ns string, blob []byte) error
	SetLayoutType(ctx context.Context, ns, layoutType string) (models.LayoutDescriptor, error)
	UpdateGridLayout(ctx context.Context, ns string, req dto.GridLayoutRequest) (models.GridLayoutConfig, error)
	UpdateFlowLayout(ctx context.Context, ns string, req dto.FlowLayoutRequest) (models.FlowLayoutConfig, error)
	SetEditMode(ctx context.Context, ns string, enabled bool) (bool, error)
	GetWidgetConfig(ctx context.Context, ns, id string) (models.WidgetConfig, error)
	UpdateWidgetConfig(ctx context.Context, ns, id string, partial models.WidgetConfig) (models.WidgetConfig, error)
	MoveWidget(ctx context.Context, ns, id string, index int) ([]models.Widget, error)
	ToggleFullscreen(ctx context.Context, ns, id string) (string, error)
}

type Options struct {
	Context   context.Context
	Service   Dashboard
	Namespace string
	// Changes signals writes made to the namespace outside the model, such
	// as a file watcher re-importing; each receive triggers a reload.
	Changes <-chan struct{}
	// Tick is the redraw interval for time-based widgets. Zero means 1s.
	Tick time.Duration
}

type Model struct {
	ctx     context.Context
	svc     Dashboard
	ns      string
	changes <-chan struct{}
	tick    time.Duration
	keys    keyMap

	width  int
	height int
	ready  bool

	dash       dto.DashboardResponse
	selectedID string
	status     string
	err        error
	showHelp   bool

	// Catalog picker
	picking bool
	catalog []widgets.CatalogEntry
	pickIdx int
}

type (
	dashboardMsg struct {
		resp dto.DashboardResponse
		err  error
	}
	// actionMsg reports the outcome of a mutation; a reload follows.
	actionMsg struct {
		status string
		err    error
	}
	changeMsg struct{}
	tickMsg   time.Time
)

func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick == 0 {
		tick = time.Second
	}
	return Model{
		ctx:     ctx,
		svc:     opts.Service,
		ns:      opts.Namespace,
		changes: opts.Changes,
		tick:    tick,
		keys:    defaultKeyMap(),
		catalog: opts.Service.Catalog(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tickCmd(m.tick), waitForChange(m.changes))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		return m, nil

	case dashboardMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.dash = msg.resp
		m.err = nil
		m.keepSelection()
		return m, nil

	case actionMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
		}
		return m, m.load()

	case changeMsg:
		return m, tea.Batch(m.load(), waitForChange(m.changes))

	case tickMsg:
		return m, tea.Batch(m.load(), tickCmd(m.tick))
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.picking {
		return m.handlePickerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.load()
	case key.Matches(msg, m.keys.Add):
		m.picking = true
		m.pickIdx = 0
	case key.Matches(msg, m.keys.EditMode):
		enable := !m.dash.EditMode
		return m, m.act(func() (string, error) {
			_, err := m.svc.SetEditMode(m.ctx, m.ns, enable)
			if enable {
				return "edit mode on", err
			}
			return "edit mode off", err
		})
	case key.Matches(msg, m.keys.Layout):
		next := models.LayoutFlow
		if m.dash.Layout.Type == models.LayoutFlow {
			next = models.LayoutGrid
		}
		return m, m.act(func() (string, error) {
			_, err := m.svc.SetLayoutType(m.ctx, m.ns, string(next))
			return "layout " + string(next), err
		})
	}

	id := m.selectedID
	if id == "" {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Delete):
		return m, m.act(func() (string, error) {
			return "deleted " + id, m.svc.DeleteWidget(m.ctx, m.ns, id)
		})
	case key.Matches(msg, m.keys.Fullscreen):
		return m, m.act(func() (string, error) {
			_, err := m.svc.ToggleFullscreen(m.ctx, m.ns, id)
			return "", err
		})
	case key.Matches(msg, m.keys.MoveUp), key.Matches(msg, m.keys.MoveDown):
		delta := 1
		if key.Matches(msg, m.keys.MoveUp) {
			delta = -1
		}
		to := m.selectedIndex() + delta
		if to < 0 || to >= len(m.dash.Widgets) {
			return m, nil
		}
		return m, m.act(func() (string, error) {
			_, err := m.svc.MoveWidget(m.ctx, m.ns, id, to)
			return "", err
		})
	}
	return m, nil
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		m.picking = false
	case key.Matches(msg, m.keys.Up):
		m.pickIdx = max(0, m.pickIdx-1)
	case key.Matches(msg, m.keys.Down):
		m.pickIdx = min(len(m.catalog)-1, m.pickIdx+1)
	case key.Matches(msg, m.keys.Confirm):
		m.picking = false
		if len(m.catalog) == 0 {
			return m, nil
		}
		componentKey := m.catalog[m.pickIdx].Key
		return m, m.act(func() (string, error) {
			w, err := m.svc.AddWidget(m.ctx, m.ns, dto.AddWidgetRequest{ComponentKey: componentKey})
			return "added " + w.ID, err
		})
	}
	return m, nil
}

func (m *Model) moveSelection(delta int) {
	if len(m.dash.Widgets) == 0 {
		return
	}
	i := max(0, min(len(m.dash.Widgets)-1, m.selectedIndex()+delta))
	m.selectedID = m.dash.Widgets[i].Widget.ID
}

func (m Model) selectedIndex() int {
	for i, w := range m.dash.Widgets {
		if w.Widget.ID == m.selectedID {
			return i
		}
	}
	return 0
}

// keepSelection moves the selection to the first widget when the selected
// one is gone.
func (m *Model) keepSelection() {
	for _, w := range m.dash.Widgets {
		if w.Widget.ID == m.selectedID {
			return
		}
	}
	m.selectedID = ""
	if len(m.dash.Widgets) > 0 {
		m.selectedID = m.dash.Widgets[0].Widget.ID
	}
}

func (m Model) load() tea.Cmd {
	ctx, svc, ns := m.ctx, m.svc, m.ns
	return func() tea.Msg {
		resp, err := svc.GetDashboard(ctx, ns)
		return dashboardMsg{resp: resp, err: err}
	}
}

func (m Model) act(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		status, err := fn()
		return actionMsg{status: status, err: err}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changeMsg{}
	}
}
