package layout

import (
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// GridEngine places widgets at their persisted {x,y,w,h}. Overlaps are
// allowed; moving one widget never pushes another.
type GridEngine struct {
	cfg models.GridLayoutConfig
}

func NewGridEngine(cfg models.GridLayoutConfig) *GridEngine {
	return &GridEngine{cfg: cfg.Normalize()}
}

func (g *GridEngine) Type() models.LayoutType { return models.LayoutGrid }

func (g *GridEngine) Config() models.GridLayoutConfig { return g.cfg }

// Clamp fits pos inside the grid: non-negative origin, at least one unit
// in each dimension and no wider than the column count.
func (g *GridEngine) Clamp(pos models.Position) models.Position {
	cols := g.cfg.Cols
	pos.W = max(1, min(pos.W, cols))
	pos.H = max(1, pos.H)
	pos.X = max(0, min(pos.X, cols-pos.W))
	pos.Y = max(0, pos.Y)
	return pos
}

func (g *GridEngine) Arrange(widgets []models.Widget) []Placement {
	out := make([]Placement, len(widgets))
	bottom := 0
	for i, w := range widgets {
		pos := g.Clamp(w.Position)
		out[i] = Placement{ID: w.ID, Index: i, Position: pos, Row: pos.Y, Column: pos.X}
		bottom = max(bottom, pos.Bottom())
	}

	if fs := g.cfg.FullscreenWidgetID; fs != "" && models.IndexOf(widgets, fs) >= 0 {
		for i := range out {
			if out[i].ID == fs {
				out[i].Fullscreen = true
				out[i].Position = models.Position{X: 0, Y: 0, W: g.cfg.Cols, H: max(bottom, 1)}
				out[i].Row, out[i].Column = 0, 0
			} else {
				out[i].Hidden = true
			}
		}
	}
	return out
}

func (g *GridEngine) Drop(widgets []models.Widget, id string, d Drop) ([]models.Widget, error) {
	if d.Position == nil {
		return nil, errs.NewValidationError("grid drop requires a position")
	}
	i, err := lookup(widgets, id)
	if err != nil {
		return nil, err
	}
	// A drop moves the widget; a zero size keeps the current one.
	pos := *d.Position
	cur := widgets[i].Position
	if pos.W == 0 {
		pos.W = cur.W
	}
	if pos.H == 0 {
		pos.H = cur.H
	}
	return g.place(widgets, id, pos)
}

func (g *GridEngine) Resize(widgets []models.Widget, id string, pos models.Position) ([]models.Widget, error) {
	return g.place(widgets, id, pos)
}

func (g *GridEngine) place(widgets []models.Widget, id string, pos models.Position) ([]models.Widget, error) {
	i, err := lookup(widgets, id)
	if err != nil {
		return nil, err
	}
	out := models.CloneWidgets(widgets)
	out[i].Position = g.Clamp(pos)
	return out, nil
}

func (g *GridEngine) ToggleFullscreen(id string) string {
	g.cfg.FullscreenWidgetID = toggle(g.cfg.FullscreenWidgetID, id)
	return g.cfg.FullscreenWidgetID
}

func (g *GridEngine) Fullscreen() string { return g.cfg.FullscreenWidgetID }

func (g *GridEngine) Forget(id string) bool {
	if id != "" && g.cfg.FullscreenWidgetID == id {
		g.cfg.FullscreenWidgetID = ""
		return true
	}
	return false
}

func (g *GridEngine) Apply(d *models.LayoutDescriptor) { d.Grid = g.cfg }
