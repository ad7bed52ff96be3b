package models

import "strings"

type LayoutType string

const (
	LayoutGrid LayoutType = "grid"
	LayoutFlow LayoutType = "flow"
)

// ParseLayoutType accepts "flex" as the legacy spelling of the flow layout.
func ParseLayoutType(s string) (LayoutType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grid":
		return LayoutGrid, true
	case "flow", "flex":
		return LayoutFlow, true
	}
	return "", false
}

type FlowDirection string

const (
	FlowColumn FlowDirection = "column"
	FlowRow    FlowDirection = "row"
)

// ParseFlowDirection accepts the vertical/horizontal names used by older exports.
func ParseFlowDirection(s string) (FlowDirection, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "column", "vertical":
		return FlowColumn, true
	case "row", "horizontal":
		return FlowRow, true
	}
	return "", false
}

const (
	DefaultGridCols      = 12
	DefaultGridRowHeight = 30
	DefaultFlowColumns   = 1
	MaxGridCols          = 100
	MaxFlowColumns       = 12
)

type GridLayoutConfig struct {
	Cols               int    `json:"cols"`
	RowHeight          int    `json:"rowHeight"`
	FullscreenWidgetID string `json:"fullscreenWidgetId,omitempty"`
}

type FlowLayoutConfig struct {
	Direction          FlowDirection `json:"direction"`
	Columns            int           `json:"columns"`
	FullscreenWidgetID string        `json:"fullscreenWidgetId,omitempty"`
}

// LayoutDescriptor is the dashboard-wide layout state. Both strategy configs are
// kept at all times; Type selects the one in use.
type LayoutDescriptor struct {
	Type LayoutType       `json:"type"`
	Grid GridLayoutConfig `json:"grid"`
	Flow FlowLayoutConfig `json:"flow"`
}

func DefaultGridLayoutConfig() GridLayoutConfig {
	return GridLayoutConfig{Cols: DefaultGridCols, RowHeight: DefaultGridRowHeight}
}

func DefaultFlowLayoutConfig() FlowLayoutConfig {
	return FlowLayoutConfig{Direction: FlowColumn, Columns: DefaultFlowColumns}
}

func DefaultLayoutDescriptor() LayoutDescriptor {
	return LayoutDescriptor{
		Type: LayoutGrid,
		Grid: DefaultGridLayoutConfig(),
		Flow: DefaultFlowLayoutConfig(),
	}
}

// Normalize fills zero or out-of-range fields with defaults. Persisted
// descriptors from older exports may lack fields entirely.
func (g GridLayoutConfig) Normalize() GridLayoutConfig {
	if g.Cols <= 0 || g.Cols > MaxGridCols {
		g.Cols = DefaultGridCols
	}
	if g.RowHeight <= 0 {
		g.RowHeight = DefaultGridRowHeight
	}
	return g
}

func (f FlowLayoutConfig) Normalize() FlowLayoutConfig {
	if d, ok := ParseFlowDirection(string(f.Direction)); ok {
		f.Direction = d
	} else {
		f.Direction = FlowColumn
	}
	if f.Columns <= 0 || f.Columns > MaxFlowColumns {
		f.Columns = DefaultFlowColumns
	}
	return f
}

// GestureState is the per-widget drag/resize state machine.
type GestureState string

const (
	GestureIdle     GestureState = "idle"
	GestureDragging GestureState = "dragging"
	GestureResizing GestureState = "resizing"
)
