package layout

import (
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// Placement is where a host should draw one widget.
type Placement struct {
	ID string `json:"id"`
	// Index is the widget's position in the collection, which is the flow order.
	Index    int             `json:"index"`
	Position models.Position `json:"position"`
	Row      int             `json:"row"`
	Column   int             `json:"column"`
	// Fullscreen marks the one widget expanded over the whole dashboard;
	// every other widget is Hidden while it is set.
	Fullscreen bool `json:"fullscreen,omitempty"`
	Hidden     bool `json:"hidden,omitempty"`
}

// Drop describes the end of a drag. The grid reads Position; the flow
// resolves Index, or the nearest of Zones to Rect when Index is nil.
type Drop struct {
	Position *models.Position `json:"position,omitempty"`
	Index    *int             `json:"index,omitempty"`
	Rect     *Rect            `json:"rect,omitempty"`
	Zones    []Rect           `json:"zones,omitempty"`
}

type Engine interface {
	Type() models.LayoutType
	Arrange(widgets []models.Widget) []Placement
	// Drop returns the collection after dropping id.
	Drop(widgets []models.Widget, id string, d Drop) ([]models.Widget, error)
	Resize(widgets []models.Widget, id string, pos models.Position) ([]models.Widget, error)
	// ToggleFullscreen expands id, or collapses it when it is already
	// expanded. It returns the expanded id, "" when none.
	ToggleFullscreen(id string) string
	Fullscreen() string
	// Forget drops any reference to a deleted widget and reports whether
	// the engine state changed.
	Forget(id string) bool
	// Apply writes the engine's config back into d.
	Apply(d *models.LayoutDescriptor)
}

// New returns the engine selected by d.Type.
func New(d models.LayoutDescriptor) Engine {
	if d.Type == models.LayoutFlow {
		return NewFlowEngine(d.Flow)
	}
	return NewGridEngine(d.Grid)
}

func toggle(current, id string) string {
	if current == id {
		return ""
	}
	return id
}

func lookup(widgets []models.Widget, id string) (int, error) {
	i := models.IndexOf(widgets, id)
	if i < 0 {
		return -1, errs.NewNotFoundError("widget not found: " + id)
	}
	return i, nil
}
