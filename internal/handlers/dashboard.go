package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/layout"
	"github.com/GregMSThompson/dashboard-backend/internal/middleware"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/response"
	"github.com/GregMSThompson/dashboard-backend/internal/widgets"
)

// maxImportBytes bounds an uploaded export document.
const maxImportBytes = 1 << 20

type dashboardService interface {
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
	BeginGesture(ctx context.Context, ns, id, kind string) (models.GestureState, error)
	EndDrag(ctx context.Context, ns, id string, drop layout.Drop) ([]models.Widget, error)
	EndResize(ctx context.Context, ns, id string, pos models.Position) ([]models.Widget, error)
	MoveWidget(ctx context.Context, ns, id string, index int) ([]models.Widget, error)
	ToggleFullscreen(ctx context.Context, ns, id string) (string, error)
}

type dashboardHandlers struct {
	ResponseHandler response.ResponseHandler
	DashboardSvc    dashboardService
}

func NewDashboardHandlers(deps *Deps) *dashboardHandlers {
	return &dashboardHandlers{
		ResponseHandler: deps.ResponseHandler,
		DashboardSvc:    deps.DashboardSvc,
	}
}

func (h *dashboardHandlers) DashboardRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetDashboard)
	r.Get("/catalog", h.GetCatalog)
	r.Put("/edit-mode", h.SetEditMode)
	r.Put("/layout", h.SetLayoutType)
	r.Put("/layout/grid", h.UpdateGridLayout)
	r.Put("/layout/flow", h.UpdateFlowLayout)
	r.Post("/reset", h.ResetAll)
	r.Get("/export", h.ExportConfig)
	r.Post("/import", h.ImportConfig)

	r.Post("/widgets", h.AddWidget)
	r.Route("/widgets/{widgetId}", func(r chi.Router) {
		r.Delete("/", h.DeleteWidget)
		r.Get("/config", h.GetWidgetConfig)
		r.Patch("/config", h.UpdateWidgetConfig)
		r.Post("/gestures/{kind}/start", h.BeginGesture)
		r.Post("/drag/stop", h.EndDrag)
		r.Post("/resize/stop", h.EndResize)
		r.Put("/index", h.MoveWidget)
		r.Post("/fullscreen", h.ToggleFullscreen)
	})
	return r
}

func (h *dashboardHandlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ns := middleware.Namespace(r.Context())
	resp, err := h.DashboardSvc.GetDashboard(r.Context(), ns)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, resp)
}

func (h *dashboardHandlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, h.DashboardSvc.Catalog())
}

func (h *dashboardHandlers) AddWidget(w http.ResponseWriter, r *http.Request) {
	var req dto.AddWidgetRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ns := middleware.Namespace(r.Context())
	widget, err := h.DashboardSvc.AddWidget(r.Context(), ns, req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, widget)
}

func (h *dashboardHandlers) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "widgetId")
	ns := middleware.Namespace(r.Context())
	if err := h.DashboardSvc.DeleteWidget(r.Context(), ns, widgetID); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *dashboardHandlers) ResetAll(w http.ResponseWriter, r *http.Request) {
	ns := middleware.Namespace(r.Context())
	if err := h.DashboardSvc.ResetAll(r.Context(), ns); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

// ExportConfig writes the raw export document, not the success envelope,
// so the body can be posted back to /import unchanged.
func (h *dashboardHandlers) ExportConfig(w http.ResponseWriter, r *http.Request) {
	ns := middleware.Namespace(r.Context())
	blob, err := h.DashboardSvc.ExportConfig(r.Context(), ns)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteAttachment(w, r, ns+"-dashboard.json", "application/json", blob)
}

func (h *dashboardHandlers) ImportConfig(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = errs.NewValidationError("could not read import document: " + err.Error())
		}
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ns := middleware.Namespace(r.Context())
	if err := h.DashboardSvc.ImportConfig(r.Context(), ns, blob); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *dashboardHandlers) SetLayoutType(w http.ResponseWriter, r *http.Request) {
	var req dto.SetLayoutTypeRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ns := middleware.Namespace(r.Context())
	desc, err := h.DashboardSvc.SetLayoutType(r.Context(), ns, req.Type)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, desc)
}

func (h *dashboardHandlers) UpdateGridLayout(w http.ResponseWriter, r *http.Request) {
	var req dto.GridLayoutRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ns := middleware.Namespace(r.Context())
	cfg, err := h.DashboardSvc.UpdateGridLayout(r.Context(), ns, req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, cfg)
}

func (h *dashboardHandlers) UpdateFlowLayout(w http.ResponseWriter, r *http.Request) {
	var req dto.FlowLayoutRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ns := middleware.Namespace(r.Context())
	cfg, err := h.DashboardSvc.UpdateFlowLayout(r.Context(), ns, req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, cfg)
}

func (h *dashboardHandlers) SetEditMode(w http.ResponseWriter, r *http.Request) {
	var req dto.SetEditModeRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ns := middleware.Namespace(r.Context())
	enabled, err := h.DashboardSvc.SetEditMode(r.Context(), ns, req.Enabled)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, dto.EditModeResponse{EditMode: enabled})
}

func (h *dashboardHandlers) GetWidgetConfig(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "widgetId")
	ns := middleware.Namespace(r.Context())
	cfg, err := h.DashboardSvc.GetWidgetConfig(r.Context(), ns, widgetID)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, cfg)
}

func (h *dashboardHandlers) UpdateWidgetConfig(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "widgetId")
	var req dto.UpdateWidgetConfigRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ns := middleware.Namespace(r.Context())
	cfg, err := h.DashboardSvc.UpdateWidgetConfig(r.Context(), ns, widgetID, req.Config)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, cfg)
}

func (h *dashboardHandlers) BeginGesture(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "widgetId")
	kind := chi.URLParam(r, "kind")
	ns := middleware.Namespace(r.Context())
	state, err := h.DashboardSvc.BeginGesture(r.Context(), ns, widgetID, kind)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, dto.GestureResponse{WidgetID: widgetID, State: state})
}

func (h *dashboardHandlers) EndDrag(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "widgetId")
	var drop layout.Drop
	if err := decode(r, &drop); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ns := middleware.Namespace(r.Context())
	list, err := h.DashboardSvc.EndDrag(r.Context(), ns, widgetID, drop)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, list)
}

func (h *dashboardHandlers) EndResize(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "widgetId")
	var req dto.ResizeStopRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ns := middleware.Namespace(r.Context())
	list, err := h.DashboardSvc.EndResize(r.Context(), ns, widgetID, req.Position)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, list)
}

func (h *dashboardHandlers) MoveWidget(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "widgetId")
	var req dto.MoveWidgetRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	if req.Index == nil {
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError("index is required"))
		return
	}
	ns := middleware.Namespace(r.Context())
	list, err := h.DashboardSvc.MoveWidget(r.Context(), ns, widgetID, *req.Index)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, list)
}

func (h *dashboardHandlers) ToggleFullscreen(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "widgetId")
	ns := middleware.Namespace(r.Context())
	current, err := h.DashboardSvc.ToggleFullscreen(r.Context(), ns, widgetID)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, dto.FullscreenResponse{FullscreenWidgetID: current})
}

// decode reads a JSON request body into v. Malformed bodies are reported
// as validation errors; an empty body leaves v at its zero value.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errs.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}
