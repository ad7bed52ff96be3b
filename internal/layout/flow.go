package layout

import (
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// FlowEngine orders widgets by their index in the collection and lays them
// out along one axis. Persisted grid positions are left untouched.
type FlowEngine struct {
	cfg models.FlowLayoutConfig
}

func NewFlowEngine(cfg models.FlowLayoutConfig) *FlowEngine {
	return &FlowEngine{cfg: cfg.Normalize()}
}

func (f *FlowEngine) Type() models.LayoutType { return models.LayoutFlow }

func (f *FlowEngine) Config() models.FlowLayoutConfig { return f.cfg }

// cell returns the row and column of the i-th widget. A column flow wraps
// every Columns items; a row flow keeps everything on one line.
func (f *FlowEngine) cell(i int) (row, col int) {
	if f.cfg.Direction == models.FlowRow {
		return 0, i
	}
	return i / f.cfg.Columns, i % f.cfg.Columns
}

func (f *FlowEngine) Arrange(widgets []models.Widget) []Placement {
	out := make([]Placement, len(widgets))
	fs := f.cfg.FullscreenWidgetID
	hasFS := fs != "" && models.IndexOf(widgets, fs) >= 0
	for i, w := range widgets {
		row, col := f.cell(i)
		p := Placement{ID: w.ID, Index: i, Position: w.Position, Row: row, Column: col}
		if hasFS {
			p.Fullscreen = w.ID == fs
			p.Hidden = !p.Fullscreen
			if p.Fullscreen {
				p.Row, p.Column = 0, 0
			}
		}
		out[i] = p
	}
	return out
}

// Zones returns one drop zone per slot for n widgets laid out in cells of
// the given size, in collection order.
func (f *FlowEngine) Zones(n int, cellW, cellH float64) []Rect {
	zones := make([]Rect, n)
	for i := range zones {
		row, col := f.cell(i)
		zones[i] = Rect{X: float64(col) * cellW, Y: float64(row) * cellH, W: cellW, H: cellH}
	}
	return zones
}

func (f *FlowEngine) Drop(widgets []models.Widget, id string, d Drop) ([]models.Widget, error) {
	from, err := lookup(widgets, id)
	if err != nil {
		return nil, err
	}

	var to int
	switch {
	case d.Index != nil:
		to = *d.Index
		if to < 0 || to >= len(widgets) {
			return nil, errs.NewValidationError("target index out of range")
		}
	case d.Rect != nil:
		to = NearestDropZone(*d.Rect, d.Zones)
		if to < 0 {
			// No zones to drop into: leave the order alone.
			return models.CloneWidgets(widgets), nil
		}
		to = min(to, len(widgets)-1)
	default:
		return nil, errs.NewValidationError("flow drop requires an index or a dragged rectangle")
	}
	return Move(widgets, from, to), nil
}

func (f *FlowEngine) Resize([]models.Widget, string, models.Position) ([]models.Widget, error) {
	return nil, errs.NewValidationError("the flow layout does not support resizing")
}

func (f *FlowEngine) ToggleFullscreen(id string) string {
	f.cfg.FullscreenWidgetID = toggle(f.cfg.FullscreenWidgetID, id)
	return f.cfg.FullscreenWidgetID
}

func (f *FlowEngine) Fullscreen() string { return f.cfg.FullscreenWidgetID }

func (f *FlowEngine) Forget(id string) bool {
	if id != "" && f.cfg.FullscreenWidgetID == id {
		f.cfg.FullscreenWidgetID = ""
		return true
	}
	return false
}

func (f *FlowEngine) Apply(d *models.LayoutDescriptor) { d.Flow = f.cfg }
