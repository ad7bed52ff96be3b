package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/layout"
	"github.com/GregMSThompson/dashboard-backend/internal/middleware"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/store"
	"github.com/GregMSThompson/dashboard-backend/internal/widgets"
	"github.com/GregMSThompson/dashboard-backend/pkg/helpers"
)

// --- Stubs ---

type stubResponseHandler struct {
	writeSuccessCalled bool
	writeSuccessStatus int
	writeSuccessData   any

	handleErrorCalled bool
	handleError       error
}

func (s *stubResponseHandler) WriteSuccess(w http.ResponseWriter, _ *http.Request, status int, data any) {
	s.writeSuccessCalled = true
	s.writeSuccessStatus = status
	s.writeSuccessData = data
	w.WriteHeader(status)
}

func (s *stubResponseHandler) WriteError(w http.ResponseWriter, _ *http.Request, status int, _, _ string) {
	w.WriteHeader(status)
}

func (s *stubResponseHandler) WriteAttachment(w http.ResponseWriter, _ *http.Request, filename, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *stubResponseHandler) HandleError(w http.ResponseWriter, _ *http.Request, err error) {
	s.handleErrorCalled = true
	s.handleError = err
	w.WriteHeader(http.StatusInternalServerError)
}

type stubDashboardService struct {
	err error

	lastNS      string
	lastID      string
	lastKind    string
	lastAdd     dto.AddWidgetRequest
	lastPartial models.WidgetConfig
	lastDrop    layout.Drop
	lastPos     models.Position
	lastIndex   int
	lastBlob    []byte
	lastType    string
	lastEdit    bool
	exportBlob  []byte
}

func (s *stubDashboardService) GetDashboard(_ context.Context, ns string) (dto.DashboardResponse, error) {
	s.lastNS = ns
	return dto.DashboardResponse{Namespace: ns}, s.err
}

func (s *stubDashboardService) Catalog() []widgets.CatalogEntry {
	return []widgets.CatalogEntry{{Key: "clock"}}
}

func (s *stubDashboardService) AddWidget(_ context.Context, ns string, req dto.AddWidgetRequest) (models.Widget, error) {
	s.lastNS, s.lastAdd = ns, req
	return models.Widget{ID: "w1", ComponentKey: req.ComponentKey}, s.err
}

func (s *stubDashboardService) DeleteWidget(_ context.Context, ns, id string) error {
	s.lastNS, s.lastID = ns, id
	return s.err
}

func (s *stubDashboardService) ResetAll(_ context.Context, ns string) error {
	s.lastNS = ns
	return s.err
}

func (s *stubDashboardService) ExportConfig(_ context.Context, ns string) ([]byte, error) {
	s.lastNS = ns
	return s.exportBlob, s.err
}

func (s *stubDashboardService) ImportConfig(_ context.Context, ns string, blob []byte) error {
	s.lastNS, s.lastBlob = ns, blob
	return s.err
}

func (s *stubDashboardService) SetLayoutType(_ context.Context, ns, t string) (models.LayoutDescriptor, error) {
	s.lastNS, s.lastType = ns, t
	return models.DefaultLayoutDescriptor(), s.err
}

func (s *stubDashboardService) UpdateGridLayout(_ context.Context, ns string, req dto.GridLayoutRequest) (models.GridLayoutConfig, error) {
	s.lastNS = ns
	return models.DefaultGridLayoutConfig(), s.err
}

func (s *stubDashboardService) UpdateFlowLayout(_ context.Context, ns string, req dto.FlowLayoutRequest) (models.FlowLayoutConfig, error) {
	s.lastNS = ns
	return models.DefaultFlowLayoutConfig(), s.err
}

func (s *stubDashboardService) SetEditMode(_ context.Context, ns string, enabled bool) (bool, error) {
	s.lastNS, s.lastEdit = ns, enabled
	return enabled, s.err
}

func (s *stubDashboardService) GetWidgetConfig(_ context.Context, ns, id string) (models.WidgetConfig, error) {
	s.lastNS, s.lastID = ns, id
	return models.WidgetConfig{}, s.err
}

func (s *stubDashboardService) UpdateWidgetConfig(_ context.Context, ns, id string, partial models.WidgetConfig) (models.WidgetConfig, error) {
	s.lastNS, s.lastID, s.lastPartial = ns, id, partial
	return partial, s.err
}

func (s *stubDashboardService) BeginGesture(_ context.Context, ns, id, kind string) (models.GestureState, error) {
	s.lastNS, s.lastID, s.lastKind = ns, id, kind
	return models.GestureDragging, s.err
}

func (s *stubDashboardService) EndDrag(_ context.Context, ns, id string, drop layout.Drop) ([]models.Widget, error) {
	s.lastNS, s.lastID, s.lastDrop = ns, id, drop
	return nil, s.err
}

func (s *stubDashboardService) EndResize(_ context.Context, ns, id string, pos models.Position) ([]models.Widget, error) {
	s.lastNS, s.lastID, s.lastPos = ns, id, pos
	return nil, s.err
}

func (s *stubDashboardService) MoveWidget(_ context.Context, ns, id string, index int) ([]models.Widget, error) {
	s.lastNS, s.lastID, s.lastIndex = ns, id, index
	return nil, s.err
}

func (s *stubDashboardService) ToggleFullscreen(_ context.Context, ns, id string) (string, error) {
	s.lastNS, s.lastID = ns, id
	return id, s.err
}

// withNamespace injects a namespace into the request context.
func withNamespace(r *http.Request, ns string) *http.Request {
	return r.WithContext(middleware.WithNamespace(r.Context(), ns))
}

// withChiParam injects chi URL parameters into the request context.
func withChiParam(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func newTestHandlers(svc *stubDashboardService) (*dashboardHandlers, *stubResponseHandler) {
	resp := &stubResponseHandler{}
	return NewDashboardHandlers(&Deps{ResponseHandler: resp, DashboardSvc: svc}), resp
}

// --- Tests ---

func TestGetDashboard_OK(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newTestHandlers(svc)

	req := withNamespace(httptest.NewRequest(http.MethodGet, "/dashboard", nil), "home")
	h.GetDashboard(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess with 200, got called=%v status=%d", resp.writeSuccessCalled, resp.writeSuccessStatus)
	}
	if svc.lastNS != "home" {
		t.Fatalf("expected namespace home, got %q", svc.lastNS)
	}
}

func TestGetDashboard_ServiceError(t *testing.T) {
	h, resp := newTestHandlers(&stubDashboardService{err: errors.New("db failure")})

	req := withNamespace(httptest.NewRequest(http.MethodGet, "/dashboard", nil), "home")
	h.GetDashboard(httptest.NewRecorder(), req)

	if !resp.handleErrorCalled {
		t.Fatal("expected HandleError to be called")
	}
}

func TestAddWidget_Created(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newTestHandlers(svc)

	body := `{"componentKey":"clock","position":{"x":1,"y":2,"w":3,"h":4}}`
	req := withNamespace(httptest.NewRequest(http.MethodPost, "/dashboard/widgets", strings.NewReader(body)), "home")
	h.AddWidget(httptest.NewRecorder(), req)

	if resp.writeSuccessStatus != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.writeSuccessStatus)
	}
	if svc.lastAdd.ComponentKey != "clock" || svc.lastAdd.Position == nil || svc.lastAdd.Position.W != 3 {
		t.Fatalf("unexpected request passed to service %+v", svc.lastAdd)
	}
}

func TestAddWidget_BadBody(t *testing.T) {
	h, resp := newTestHandlers(&stubDashboardService{})

	req := withNamespace(httptest.NewRequest(http.MethodPost, "/dashboard/widgets", strings.NewReader("{")), "home")
	h.AddWidget(httptest.NewRecorder(), req)

	if _, ok := resp.handleError.(*errs.ValidationError); !ok {
		t.Fatalf("expected validation error, got %T", resp.handleError)
	}
}

func TestDeleteWidget_PassesID(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newTestHandlers(svc)

	req := httptest.NewRequest(http.MethodDelete, "/dashboard/widgets/w1", nil)
	req = withNamespace(withChiParam(req, "widgetId", "w1"), "home")
	h.DeleteWidget(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled || svc.lastID != "w1" {
		t.Fatalf("expected delete of w1, got id=%q called=%v", svc.lastID, resp.writeSuccessCalled)
	}
}

func TestDeleteWidget_NotFound(t *testing.T) {
	h, resp := newTestHandlers(&stubDashboardService{err: errs.NewNotFoundError("widget not found")})

	req := httptest.NewRequest(http.MethodDelete, "/dashboard/widgets/zzz", nil)
	req = withNamespace(withChiParam(req, "widgetId", "zzz"), "home")
	h.DeleteWidget(httptest.NewRecorder(), req)

	if _, ok := resp.handleError.(*errs.NotFoundError); !ok {
		t.Fatalf("expected not found error, got %T", resp.handleError)
	}
}

func TestUpdateWidgetConfig_PassesPartial(t *testing.T) {
	svc := &stubDashboardService{}
	h, _ := newTestHandlers(svc)

	body := `{"config":{"text":"milk"}}`
	req := httptest.NewRequest(http.MethodPatch, "/dashboard/widgets/w1/config", strings.NewReader(body))
	req = withNamespace(withChiParam(req, "widgetId", "w1"), "home")
	h.UpdateWidgetConfig(httptest.NewRecorder(), req)

	if svc.lastID != "w1" || svc.lastPartial["text"] != "milk" {
		t.Fatalf("unexpected update %q %v", svc.lastID, svc.lastPartial)
	}
}

func TestExportConfig_WritesRawDocument(t *testing.T) {
	svc := &stubDashboardService{exportBlob: []byte(`{"home_layoutType":"grid"}`)}
	h, resp := newTestHandlers(svc)

	rr := httptest.NewRecorder()
	h.ExportConfig(rr, withNamespace(httptest.NewRequest(http.MethodGet, "/dashboard/export", nil), "home"))

	if resp.writeSuccessCalled {
		t.Fatalf("expected raw body, not the success envelope")
	}
	if rr.Body.String() != `{"home_layoutType":"grid"}` {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "home-dashboard.json") {
		t.Fatalf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}
}

func TestImportConfig_PassesBody(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newTestHandlers(svc)

	body := `{"home_widgets":[]}`
	req := withNamespace(httptest.NewRequest(http.MethodPost, "/dashboard/import", strings.NewReader(body)), "home")
	h.ImportConfig(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled || string(svc.lastBlob) != body {
		t.Fatalf("expected body forwarded, got %q", svc.lastBlob)
	}
}

func TestBeginGesture_ReadsKind(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newTestHandlers(svc)

	req := httptest.NewRequest(http.MethodPost, "/dashboard/widgets/w1/gestures/drag/start", nil)
	req = withNamespace(withChiParam(req, "widgetId", "w1", "kind", "drag"), "home")
	h.BeginGesture(httptest.NewRecorder(), req)

	if svc.lastKind != "drag" || svc.lastID != "w1" {
		t.Fatalf("unexpected gesture %q on %q", svc.lastKind, svc.lastID)
	}
	got, ok := resp.writeSuccessData.(dto.GestureResponse)
	if !ok || got.State != models.GestureDragging {
		t.Fatalf("unexpected response %+v", resp.writeSuccessData)
	}
}

func TestEndDrag_DecodesDrop(t *testing.T) {
	svc := &stubDashboardService{}
	h, _ := newTestHandlers(svc)

	body := `{"rect":{"x":95,"y":0,"w":10,"h":10},"zones":[{"x":0,"y":0,"w":10,"h":10},{"x":100,"y":0,"w":10,"h":10}]}`
	req := httptest.NewRequest(http.MethodPost, "/dashboard/widgets/w1/drag/stop", strings.NewReader(body))
	req = withNamespace(withChiParam(req, "widgetId", "w1"), "home")
	h.EndDrag(httptest.NewRecorder(), req)

	if svc.lastDrop.Rect == nil || svc.lastDrop.Rect.X != 95 || len(svc.lastDrop.Zones) != 2 {
		t.Fatalf("unexpected drop %+v", svc.lastDrop)
	}
}

func TestEndResize_DecodesPosition(t *testing.T) {
	svc := &stubDashboardService{}
	h, _ := newTestHandlers(svc)

	body := `{"position":{"x":0,"y":0,"w":6,"h":2}}`
	req := httptest.NewRequest(http.MethodPost, "/dashboard/widgets/w1/resize/stop", strings.NewReader(body))
	req = withNamespace(withChiParam(req, "widgetId", "w1"), "home")
	h.EndResize(httptest.NewRecorder(), req)

	if svc.lastPos != (models.Position{W: 6, H: 2}) {
		t.Fatalf("unexpected position %+v", svc.lastPos)
	}
}

func TestMoveWidget_RequiresIndex(t *testing.T) {
	svc := &stubDashboardService{lastIndex: -1}
	h, resp := newTestHandlers(svc)

	req := httptest.NewRequest(http.MethodPut, "/dashboard/widgets/w1/index", strings.NewReader(`{}`))
	req = withNamespace(withChiParam(req, "widgetId", "w1"), "home")
	h.MoveWidget(httptest.NewRecorder(), req)

	if _, ok := resp.handleError.(*errs.ValidationError); !ok {
		t.Fatalf("expected validation error, got %T", resp.handleError)
	}
	if svc.lastIndex != -1 {
		t.Fatalf("expected service not to be called")
	}
}

func TestSetEditMode(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newTestHandlers(svc)

	req := withNamespace(httptest.NewRequest(http.MethodPut, "/dashboard/edit-mode", strings.NewReader(`{"enabled":true}`)), "home")
	h.SetEditMode(httptest.NewRecorder(), req)

	if got, _ := resp.writeSuccessData.(dto.EditModeResponse); !got.EditMode || !svc.lastEdit {
		t.Fatalf("expected edit mode on, got %+v", resp.writeSuccessData)
	}
}

func TestDashboardRoutes_Wiring(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newTestHandlers(svc)
	r := h.DashboardRoutes()

	req := withNamespace(httptest.NewRequest(http.MethodPost, "/widgets/w9/fullscreen", nil), "home")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if svc.lastID != "w9" {
		t.Fatalf("expected fullscreen route to reach the service, got %q", svc.lastID)
	}
	if got, _ := resp.writeSuccessData.(dto.FullscreenResponse); got.FullscreenWidgetID != "w9" {
		t.Fatalf("unexpected response %+v", resp.writeSuccessData)
	}
}

type stubHub struct{ served *store.Store }

func (s *stubHub) Serve(w http.ResponseWriter, _ *http.Request, st *store.Store) {
	s.served = st
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func TestEventsStream_ResolvesNamespace(t *testing.T) {
	m := store.NewManager(store.NewMemoryBackend(), nil)
	hub := &stubHub{}
	resp := &stubResponseHandler{}
	h := NewEventHandlers(&Deps{ResponseHandler: resp, Stores: m, Hub: hub})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/events", nil)
	req = req.WithContext(middleware.WithNamespace(helpers.TestCtx(), "home"))
	h.Stream(httptest.NewRecorder(), req)

	if hub.served == nil || hub.served.Namespace() != "home" {
		t.Fatalf("expected hub to serve the home store")
	}

	bad := withNamespace(httptest.NewRequest(http.MethodGet, "/dashboard/events", nil), "not valid")
	h.Stream(httptest.NewRecorder(), bad)
	if !resp.handleErrorCalled {
		t.Fatalf("expected invalid namespace to be reported")
	}
}
