package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/layout"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/store"
	"github.com/GregMSThompson/dashboard-backend/internal/widgetconfig"
	"github.com/GregMSThompson/dashboard-backend/internal/widgets"
	"github.com/GregMSThompson/dashboard-backend/pkg/helpers"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

// Persistence keys below the namespace prefix. "flexLayoutConfig" keeps the
// name older exports use for the flow layout.
const (
	keyWidgets    = "widgets"
	keyLayoutType = "layoutType"
	keyGrid       = "gridLayoutConfig"
	keyFlow       = "flexLayoutConfig"
)

const (
	defaultWidgetW = 3
	defaultWidgetH = 4
	maxIDAttempts  = 5
)

// storeProvider resolves a namespace to its loaded Store.
type storeProvider interface {
	For(ctx context.Context, namespace string) (*store.Store, error)
}

type widgetRegistry interface {
	Lookup(key string) (widgets.Plugin, bool)
	DefaultConfig(key string) models.WidgetConfig
	Render(ctx context.Context, key string, p widgets.Props) (widgets.View, bool)
	Options(ctx context.Context, key string, p widgets.Props) []widgets.Option
	Catalog() []widgets.CatalogEntry
}

// session is the ephemeral per-namespace state. Its mutex serialises every
// operation on the namespace.
type session struct {
	mu       sync.Mutex
	editMode bool
	gestures *layout.Tracker
}

type dashboardService struct {
	stores   storeProvider
	registry widgetRegistry
	newID    func() string

	mu       sync.Mutex
	sessions map[string]*session
}

func NewDashboardService(stores storeProvider, registry widgetRegistry) *dashboardService {
	return &dashboardService{
		stores:   stores,
		registry: registry,
		newID:    func() string { return uuid.New().String() },
		sessions: make(map[string]*session),
	}
}

// --- Public service methods ---

func (s *dashboardService) GetDashboard(ctx context.Context, ns string) (dto.DashboardResponse, error) {
	st, sess, unlock, err := s.open(ctx, ns)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	defer unlock()

	list := loadWidgets(st)
	desc := loadLayout(st)
	placements := layout.New(desc).Arrange(list)

	views := make([]dto.WidgetView, len(list))
	for i, w := range list {
		ctrl := widgetconfig.New(st, w.ID, s.registry.DefaultConfig(w.ComponentKey))
		cfg := ctrl.Read()
		// A plugin may persist config while rendering; the response carries
		// what was stored.
		ctrl.OnChange(func(next models.WidgetConfig) { cfg = next })
		props := widgets.Props{
			ID:       w.ID,
			EditMode: sess.editMode,
			Config:   cfg,
			OnConfigChange: func(partial models.WidgetConfig) error {
				_, err := ctrl.Update(ctx, partial)
				return err
			},
		}
		view, ok := s.registry.Render(ctx, w.ComponentKey, props)
		wv := dto.WidgetView{
			Widget:    w,
			Placement: placements[i],
			Gesture:   sess.gestures.State(w.ID),
			Config:    cfg,
			View:      view,
			Rendered:  ok,
		}
		if sess.editMode {
			props.Config = cfg
			wv.Options = s.registry.Options(ctx, w.ComponentKey, props)
		}
		views[i] = wv
	}

	return dto.DashboardResponse{
		Namespace: ns,
		Layout:    desc,
		EditMode:  sess.editMode,
		Widgets:   views,
	}, nil
}

func (s *dashboardService) Catalog() []widgets.CatalogEntry {
	return s.registry.Catalog()
}

func (s *dashboardService) AddWidget(ctx context.Context, ns string, req dto.AddWidgetRequest) (models.Widget, error) {
	if _, ok := s.registry.Lookup(req.ComponentKey); !ok {
		return models.Widget{}, errs.NewValidationError("unknown component: " + req.ComponentKey)
	}

	st, _, unlock, err := s.open(ctx, ns)
	if err != nil {
		return models.Widget{}, err
	}
	defer unlock()

	list := loadWidgets(st)
	id, err := s.uniqueID(st, list)
	if err != nil {
		return models.Widget{}, err
	}

	pos := models.Position{X: 0, Y: bottom(list), W: defaultWidgetW, H: defaultWidgetH}
	if req.Position != nil {
		pos = *req.Position
	}
	grid := layout.NewGridEngine(loadLayout(st).Grid)

	w := models.Widget{
		ID:           id,
		ComponentKey: req.ComponentKey,
		Position:     grid.Clamp(pos),
		ConfigKey:    widgetconfig.Key(st, id),
	}
	// Config first so the collection never references a missing record.
	if err := widgetconfig.New(st, id, s.registry.DefaultConfig(w.ComponentKey)).Reset(ctx); err != nil {
		return models.Widget{}, err
	}
	if err := st.Set(ctx, st.Key(keyWidgets), append(list, w)); err != nil {
		return models.Widget{}, err
	}

	logger.FromContext(ctx).Info("widget added", "namespace", ns, "widget_id", id, "component_key", w.ComponentKey)
	return w, nil
}

func (s *dashboardService) DeleteWidget(ctx context.Context, ns, id string) error {
	st, sess, unlock, err := s.open(ctx, ns)
	if err != nil {
		return err
	}
	defer unlock()

	list := loadWidgets(st)
	i := models.IndexOf(list, id)
	if i < 0 {
		return errs.NewNotFoundError("widget not found")
	}
	list = append(list[:i:i], list[i+1:]...)
	if err := st.Set(ctx, st.Key(keyWidgets), list); err != nil {
		return err
	}
	removed := purgeWidgetKeys(ctx, st, id)

	desc := loadLayout(st)
	grid, flow := layout.NewGridEngine(desc.Grid), layout.NewFlowEngine(desc.Flow)
	if grid.Forget(id) {
		if err := st.Set(ctx, st.Key(keyGrid), grid.Config()); err != nil {
			return err
		}
	}
	if flow.Forget(id) {
		if err := st.Set(ctx, st.Key(keyFlow), flow.Config()); err != nil {
			return err
		}
	}
	sess.gestures.Forget(id)

	logger.FromContext(ctx).Info("widget deleted", "namespace", ns, "widget_id", id, "keys_removed", len(removed))
	return nil
}

// ResetAll empties the dashboard and restores both layout configs. The
// selected layout type is kept.
func (s *dashboardService) ResetAll(ctx context.Context, ns string) error {
	st, sess, unlock, err := s.open(ctx, ns)
	if err != nil {
		return err
	}
	defer unlock()

	for _, w := range loadWidgets(st) {
		purgeWidgetKeys(ctx, st, w.ID)
	}
	if err := st.Set(ctx, st.Key(keyWidgets), []models.Widget{}); err != nil {
		return err
	}
	if err := st.Set(ctx, st.Key(keyGrid), models.DefaultGridLayoutConfig()); err != nil {
		return err
	}
	if err := st.Set(ctx, st.Key(keyFlow), models.DefaultFlowLayoutConfig()); err != nil {
		return err
	}
	sess.gestures.Reset()

	logger.FromContext(ctx).Info("dashboard reset", "namespace", ns)
	return nil
}

func (s *dashboardService) ExportConfig(ctx context.Context, ns string) ([]byte, error) {
	st, _, unlock, err := s.open(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return st.ExportAll()
}

// ImportConfig replaces the namespace with an export document. The document
// is validated in full before anything is written; on error the dashboard is
// unchanged.
func (s *dashboardService) ImportConfig(ctx context.Context, ns string, blob []byte) error {
	st, sess, unlock, err := s.open(ctx, ns)
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := st.ParseSnapshot(blob)
	if err != nil {
		return err
	}
	if err := normalizeSnapshot(st, snap); err != nil {
		return err
	}
	if err := st.Replace(ctx, snap); err != nil {
		return err
	}
	sess.gestures.Reset()

	logger.FromContext(ctx).Info("dashboard imported", "namespace", ns, "entries", len(snap))
	return nil
}

func (s *dashboardService) SetLayoutType(ctx context.Context, ns, layoutType string) (models.LayoutDescriptor, error) {
	t, ok := models.ParseLayoutType(layoutType)
	if !ok {
		return models.LayoutDescriptor{}, errs.NewValidationError(fmt.Sprintf("unknown layout type %q", layoutType))
	}
	st, sess, unlock, err := s.open(ctx, ns)
	if err != nil {
		return models.LayoutDescriptor{}, err
	}
	defer unlock()

	if err := st.Set(ctx, st.Key(keyLayoutType), t); err != nil {
		return models.LayoutDescriptor{}, err
	}
	sess.gestures.Reset()
	return loadLayout(st), nil
}

func (s *dashboardService) UpdateGridLayout(ctx context.Context, ns string, req dto.GridLayoutRequest) (models.GridLayoutConfig, error) {
	if req.Cols != nil && (*req.Cols < 1 || *req.Cols > models.MaxGridCols) {
		return models.GridLayoutConfig{}, errs.NewValidationError(fmt.Sprintf("cols must be between 1 and %d", models.MaxGridCols))
	}
	if req.RowHeight != nil && *req.RowHeight < 1 {
		return models.GridLayoutConfig{}, errs.NewValidationError("rowHeight must be positive")
	}
	st, _, unlock, err := s.open(ctx, ns)
	if err != nil {
		return models.GridLayoutConfig{}, err
	}
	defer unlock()

	cfg := loadLayout(st).Grid
	cfg.Cols = helpers.ValueOr(req.Cols, cfg.Cols)
	cfg.RowHeight = helpers.ValueOr(req.RowHeight, cfg.RowHeight)
	if err := st.Set(ctx, st.Key(keyGrid), cfg); err != nil {
		return models.GridLayoutConfig{}, err
	}
	return cfg, nil
}

func (s *dashboardService) UpdateFlowLayout(ctx context.Context, ns string, req dto.FlowLayoutRequest) (models.FlowLayoutConfig, error) {
	var dir models.FlowDirection
	if req.Direction != nil {
		d, ok := models.ParseFlowDirection(*req.Direction)
		if !ok {
			return models.FlowLayoutConfig{}, errs.NewValidationError(fmt.Sprintf("unknown flow direction %q", *req.Direction))
		}
		dir = d
	}
	if req.Columns != nil && (*req.Columns < 1 || *req.Columns > models.MaxFlowColumns) {
		return models.FlowLayoutConfig{}, errs.NewValidationError(fmt.Sprintf("columns must be between 1 and %d", models.MaxFlowColumns))
	}
	st, _, unlock, err := s.open(ctx, ns)
	if err != nil {
		return models.FlowLayoutConfig{}, err
	}
	defer unlock()

	cfg := loadLayout(st).Flow
	if dir != "" {
		cfg.Direction = dir
	}
	cfg.Columns = helpers.ValueOr(req.Columns, cfg.Columns)
	if err := st.Set(ctx, st.Key(keyFlow), cfg); err != nil {
		return models.FlowLayoutConfig{}, err
	}
	return cfg, nil
}

// SetEditMode toggles the session's edit mode. Leaving edit mode abandons
// any gesture in progress.
func (s *dashboardService) SetEditMode(ctx context.Context, ns string, enabled bool) (bool, error) {
	_, sess, unlock, err := s.open(ctx, ns)
	if err != nil {
		return false, err
	}
	defer unlock()

	sess.editMode = enabled
	if !enabled {
		sess.gestures.Reset()
	}
	return sess.editMode, nil
}

func (s *dashboardService) GetWidgetConfig(ctx context.Context, ns, id string) (models.WidgetConfig, error) {
	st, _, unlock, err := s.open(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := findWidget(st, id)
	if err != nil {
		return nil, err
	}
	return widgetconfig.New(st, id, s.registry.DefaultConfig(w.ComponentKey)).Read(), nil
}

func (s *dashboardService) UpdateWidgetConfig(ctx context.Context, ns, id string, partial models.WidgetConfig) (models.WidgetConfig, error) {
	st, _, unlock, err := s.open(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := findWidget(st, id)
	if err != nil {
		return nil, err
	}
	return widgetconfig.New(st, id, s.registry.DefaultConfig(w.ComponentKey)).Update(ctx, partial)
}

// BeginGesture starts a drag or resize of id. kind is "drag" or "resize".
func (s *dashboardService) BeginGesture(ctx context.Context, ns, id, kind string) (models.GestureState, error) {
	state, err := parseGesture(kind)
	if err != nil {
		return "", err
	}
	st, sess, unlock, err := s.open(ctx, ns)
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, err := findWidget(st, id); err != nil {
		return "", err
	}
	if state == models.GestureResizing && loadLayout(st).Type == models.LayoutFlow {
		return "", errs.NewValidationError("the flow layout does not support resizing")
	}
	if err := sess.gestures.Begin(id, state, sess.editMode); err != nil {
		return "", err
	}
	return state, nil
}

// EndDrag finishes a drag of id and persists the resulting collection.
func (s *dashboardService) EndDrag(ctx context.Context, ns, id string, drop layout.Drop) ([]models.Widget, error) {
	return s.endGesture(ctx, ns, id, models.GestureDragging, func(e layout.Engine, list []models.Widget) ([]models.Widget, error) {
		return e.Drop(list, id, drop)
	})
}

// EndResize finishes a resize of id with its final box.
func (s *dashboardService) EndResize(ctx context.Context, ns, id string, pos models.Position) ([]models.Widget, error) {
	return s.endGesture(ctx, ns, id, models.GestureResizing, func(e layout.Engine, list []models.Widget) ([]models.Widget, error) {
		return e.Resize(list, id, pos)
	})
}

// MoveWidget puts id at index in the collection order without a gesture.
func (s *dashboardService) MoveWidget(ctx context.Context, ns, id string, index int) ([]models.Widget, error) {
	st, _, unlock, err := s.open(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	list := loadWidgets(st)
	from := models.IndexOf(list, id)
	if from < 0 {
		return nil, errs.NewNotFoundError("widget not found")
	}
	if index < 0 || index >= len(list) {
		return nil, errs.NewValidationError("target index out of range")
	}
	if from == index {
		return list, nil
	}
	out := layout.Move(list, from, index)
	if err := st.Set(ctx, st.Key(keyWidgets), out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleFullscreen expands id in the active layout, or collapses it when it
// is already expanded. It returns the expanded id, "" when none.
func (s *dashboardService) ToggleFullscreen(ctx context.Context, ns, id string) (string, error) {
	st, _, unlock, err := s.open(ctx, ns)
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, err := findWidget(st, id); err != nil {
		return "", err
	}
	desc := loadLayout(st)
	engine := layout.New(desc)
	current := engine.ToggleFullscreen(id)
	engine.Apply(&desc)
	if err := saveEngineConfig(ctx, st, desc); err != nil {
		return "", err
	}
	return current, nil
}

// --- Private helpers ---

func (s *dashboardService) open(ctx context.Context, ns string) (*store.Store, *session, func(), error) {
	st, err := s.stores.For(ctx, ns)
	if err != nil {
		return nil, nil, nil, err
	}
	s.mu.Lock()
	sess, ok := s.sessions[ns]
	if !ok {
		sess = &session{gestures: layout.NewTracker()}
		s.sessions[ns] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	return st, sess, sess.mu.Unlock, nil
}

func (s *dashboardService) endGesture(ctx context.Context, ns, id string, kind models.GestureState,
	apply func(layout.Engine, []models.Widget) ([]models.Widget, error)) ([]models.Widget, error) {
	st, sess, unlock, err := s.open(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.gestures.State(id) != kind {
		return nil, errs.NewConflictError(fmt.Sprintf("widget %s is not %s", id, kind))
	}
	out, err := apply(layout.New(loadLayout(st)), loadWidgets(st))
	if err != nil {
		return nil, err
	}
	if err := st.Set(ctx, st.Key(keyWidgets), out); err != nil {
		return nil, err
	}
	if err := sess.gestures.End(id, kind); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *dashboardService) uniqueID(st *store.Store, list []models.Widget) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if models.IndexOf(list, id) < 0 && !st.Has(widgetconfig.Key(st, id)) {
			return id, nil
		}
	}
	return "", errs.NewConflictError("could not allocate a unique widget id")
}

func loadWidgets(st *store.Store) []models.Widget {
	raw := store.Get(st, st.Key(keyWidgets), []models.Widget{})
	out := make([]models.Widget, 0, len(raw))
	for _, w := range raw {
		if w.ID == "" {
			continue
		}
		if w.ConfigKey == "" {
			w.ConfigKey = widgetconfig.Key(st, w.ID)
		}
		out = append(out, w)
	}
	return out
}

func loadLayout(st *store.Store) models.LayoutDescriptor {
	d := models.DefaultLayoutDescriptor()
	if t, ok := models.ParseLayoutType(store.Get(st, st.Key(keyLayoutType), string(models.LayoutGrid))); ok {
		d.Type = t
	}
	d.Grid = store.Get(st, st.Key(keyGrid), d.Grid).Normalize()
	d.Flow = store.Get(st, st.Key(keyFlow), d.Flow).Normalize()
	return d
}

func saveEngineConfig(ctx context.Context, st *store.Store, d models.LayoutDescriptor) error {
	if d.Type == models.LayoutFlow {
		return st.Set(ctx, st.Key(keyFlow), d.Flow)
	}
	return st.Set(ctx, st.Key(keyGrid), d.Grid)
}

func findWidget(st *store.Store, id string) (models.Widget, error) {
	list := loadWidgets(st)
	i := models.IndexOf(list, id)
	if i < 0 {
		return models.Widget{}, errs.NewNotFoundError("widget not found")
	}
	return list[i], nil
}

// purgeWidgetKeys removes every key owned by id, i.e. "{ns}_{id}_...".
func purgeWidgetKeys(ctx context.Context, st *store.Store, id string) []string {
	prefix := st.Key(id) + "_"
	return st.DeleteFunc(ctx, func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// validWidgetID reports whether id can own keys without colliding with
// another widget's keys or the dashboard's own entries.
func validWidgetID(id string) bool {
	if id == "" || strings.ContainsAny(id, "_/") {
		return false
	}
	switch id {
	case keyWidgets, keyLayoutType, keyGrid, keyFlow:
		return false
	}
	return true
}

func bottom(list []models.Widget) int {
	b := 0
	for _, w := range list {
		b = max(b, w.Position.Bottom())
	}
	return b
}

func parseGesture(kind string) (models.GestureState, error) {
	switch kind {
	case dto.GestureDrag:
		return models.GestureDragging, nil
	case dto.GestureResize:
		return models.GestureResizing, nil
	}
	return "", errs.NewValidationError(fmt.Sprintf("unknown gesture %q", kind))
}

// normalizeSnapshot validates the structured entries of an import and
// points every widget at its config key in this namespace.
func normalizeSnapshot(st *store.Store, snap store.Snapshot) error {
	var list []models.Widget
	if ok, err := snap.Decode(st.Key(keyWidgets), &list); err != nil {
		return errs.NewValidationError("widgets entry is not a widget list: " + err.Error())
	} else if ok {
		seen := make(map[string]bool, len(list))
		for i, w := range list {
			if !validWidgetID(w.ID) {
				return errs.NewValidationError(fmt.Sprintf("widget %d has an invalid id", i))
			}
			if seen[w.ID] {
				return errs.NewValidationError("duplicate widget id " + w.ID)
			}
			seen[w.ID] = true
			list[i].ConfigKey = widgetconfig.Key(st, w.ID)
		}
		if list == nil {
			list = []models.Widget{}
		}
		if err := snap.Encode(st.Key(keyWidgets), list); err != nil {
			return errs.NewValidationError(err.Error())
		}
	}

	var layoutType string
	if ok, err := snap.Decode(st.Key(keyLayoutType), &layoutType); err != nil {
		return errs.NewValidationError("layoutType entry is not a string")
	} else if ok {
		if _, valid := models.ParseLayoutType(layoutType); !valid {
			return errs.NewValidationError(fmt.Sprintf("unknown layout type %q", layoutType))
		}
	}

	var grid models.GridLayoutConfig
	if _, err := snap.Decode(st.Key(keyGrid), &grid); err != nil {
		return errs.NewValidationError("gridLayoutConfig entry is malformed")
	}
	var flow models.FlowLayoutConfig
	if _, err := snap.Decode(st.Key(keyFlow), &flow); err != nil {
		return errs.NewValidationError("flexLayoutConfig entry is malformed")
	}
	return nil
}
