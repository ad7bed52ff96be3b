// Package widgets maps a componentKey to the plugin that renders it.
package widgets

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/metrics"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/pkg/helpers"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

// Props is what the host hands a plugin for one render.
type Props struct {
	ID       string
	EditMode bool
	Config   models.WidgetConfig
	// OnConfigChange persists a partial update of the widget's config.
	OnConfigChange func(partial models.WidgetConfig) error
}

// View is the rendered content of a widget. Hosts decide how to draw it.
type View struct {
	Title string         `json:"title"`
	Lines []string       `json:"lines"`
	Data  map[string]any `json:"data,omitempty"`
}

type OptionKind string

const (
	OptionBool   OptionKind = "bool"
	OptionText   OptionKind = "text"
	OptionNumber OptionKind = "number"
	OptionSelect OptionKind = "select"
)

// Option is one field of a widget's settings panel.
type Option struct {
	Key     string     `json:"key"`
	Label   string     `json:"label"`
	Kind    OptionKind `json:"kind"`
	Choices []string   `json:"choices,omitempty"`
	Value   any        `json:"value"`
}

type Plugin interface {
	Key() string
	Title() string
	DefaultConfig() models.WidgetConfig
	Render(p Props) View
	// Options describes the settings panel; nil means the widget has none.
	Options(p Props) []Option
}

type CatalogEntry struct {
	Key           string              `json:"key"`
	Title         string              `json:"title"`
	DefaultConfig models.WidgetConfig `json:"defaultConfig"`
	Configurable  bool                `json:"configurable"`
}

type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

func NewRegistry(plugins ...Plugin) (*Registry, error) {
	r := &Registry{plugins: make(map[string]Plugin)}
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(p Plugin) error {
	if p == nil || p.Key() == "" {
		return errs.NewValidationError("plugin must have a component key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[p.Key()]; ok {
		return errs.NewAlreadyExistsError(fmt.Sprintf("component %q is already registered", p.Key()))
	}
	r.plugins[p.Key()] = p
	r.order = append(r.order, p.Key())
	return nil
}

func (r *Registry) Lookup(key string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[key]
	return p, ok
}

// Keys returns the registered component keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// DefaultConfig returns a copy of key's defaults, or nil for unknown keys.
func (r *Registry) DefaultConfig(key string) models.WidgetConfig {
	p, ok := r.Lookup(key)
	if !ok {
		return nil
	}
	return helpers.Clone(p.DefaultConfig())
}

// Catalog lists the widgets a user can add.
func (r *Registry) Catalog() []CatalogEntry {
	keys := r.Keys()
	out := make([]CatalogEntry, 0, len(keys))
	for _, k := range keys {
		p, _ := r.Lookup(k)
		cfg := helpers.Clone(p.DefaultConfig())
		out = append(out, CatalogEntry{
			Key:           k,
			Title:         p.Title(),
			DefaultConfig: cfg,
			Configurable:  safeOptions(p, Props{Config: cfg, EditMode: true}) != nil,
		})
	}
	return out
}

// Render dispatches to the plugin for key. An unknown key or a panicking
// plugin yields an empty view and ok=false; the dashboard keeps rendering.
func (r *Registry) Render(ctx context.Context, key string, p Props) (v View, ok bool) {
	log := logger.FromContext(ctx)
	plugin, found := r.Lookup(key)
	if !found {
		log.Warn("component not found", "component_key", key, "widget_id", p.ID)
		metrics.WidgetRenderFailures.WithLabelValues("unknown_component").Inc()
		return View{}, false
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("widget render panicked", "component_key", key, "widget_id", p.ID,
				"panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			metrics.WidgetRenderFailures.WithLabelValues("panic").Inc()
			v, ok = View{}, false
		}
	}()
	return plugin.Render(p), true
}

// Options returns the settings panel for key, or nil.
func (r *Registry) Options(ctx context.Context, key string, p Props) []Option {
	plugin, found := r.Lookup(key)
	if !found {
		return nil
	}
	opts, err := func() (opts []Option, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%v", rec)
			}
		}()
		return plugin.Options(p), nil
	}()
	if err != nil {
		logger.FromContext(ctx).Error("widget options panicked", "component_key", key, "widget_id", p.ID, "error", err)
		metrics.WidgetRenderFailures.WithLabelValues("panic").Inc()
		return nil
	}
	return opts
}

func safeOptions(p Plugin, props Props) (opts []Option) {
	defer func() {
		if recover() != nil {
			opts = nil
		}
	}()
	return p.Options(props)
}
