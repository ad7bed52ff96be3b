package dto

import (
	"github.com/GregMSThompson/dashboard-backend/internal/layout"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/widgets"
)

// Gesture kinds as they appear in URLs.
const (
	GestureDrag   = "drag"
	GestureResize = "resize"
)

type DashboardResponse struct {
	Namespace string                  `json:"namespace"`
	Layout    models.LayoutDescriptor `json:"layout"`
	EditMode  bool                    `json:"editMode"`
	Widgets   []WidgetView            `json:"widgets"`
}

// WidgetView is one widget with everything a host needs to draw it.
type WidgetView struct {
	Widget    models.Widget       `json:"widget"`
	Placement layout.Placement    `json:"placement"`
	Gesture   models.GestureState `json:"gesture"`
	Config    models.WidgetConfig `json:"config"`
	View      widgets.View        `json:"view"`
	// Rendered is false when the component is unknown or failed to render.
	Rendered bool             `json:"rendered"`
	Options  []widgets.Option `json:"options,omitempty"`
}

type AddWidgetRequest struct {
	ComponentKey string           `json:"componentKey"`
	Position     *models.Position `json:"position,omitempty"`
}

type UpdateWidgetConfigRequest struct {
	Config models.WidgetConfig `json:"config"`
}

type SetLayoutTypeRequest struct {
	Type string `json:"type"`
}

type SetEditModeRequest struct {
	Enabled bool `json:"enabled"`
}

type GridLayoutRequest struct {
	Cols      *int `json:"cols,omitempty"`
	RowHeight *int `json:"rowHeight,omitempty"`
}

type FlowLayoutRequest struct {
	Direction *string `json:"direction,omitempty"`
	Columns   *int    `json:"columns,omitempty"`
}

type ResizeStopRequest struct {
	Position models.Position `json:"position"`
}

type MoveWidgetRequest struct {
	Index *int `json:"index"`
}

type FullscreenResponse struct {
	FullscreenWidgetID string `json:"fullscreenWidgetId"`
}

type EditModeResponse struct {
	EditMode bool `json:"editMode"`
}

type GestureResponse struct {
	WidgetID string              `json:"widgetId"`
	State    models.GestureState `json:"state"`
}
