package models

// Position is a widget's box in grid units. The flow layout ignores it and
// orders widgets by their index in the collection instead.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Bottom returns the first free row below the widget.
func (p Position) Bottom() int { return p.Y + p.H }

// Widget is one dashboard item as persisted in the "{ns}_widgets" collection.
// The config itself lives under ConfigKey so widgets never share a document.
type Widget struct {
	ID           string   `json:"id"`
	ComponentKey string   `json:"componentKey"`
	Position     Position `json:"position"`
	ConfigKey    string   `json:"configKey"`
}

// WidgetConfig is the opaque, widget-defined configuration record. Only
// JSON-representable values survive persistence.
type WidgetConfig map[string]any

// IndexOf returns the position of id in widgets, or -1.
func IndexOf(widgets []Widget, id string) int {
	for i, w := range widgets {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// CloneWidgets copies the slice so callers can mutate positions freely.
func CloneWidgets(widgets []Widget) []Widget {
	if widgets == nil {
		return []Widget{}
	}
	out := make([]Widget, len(widgets))
	copy(out, widgets)
	return out
}
