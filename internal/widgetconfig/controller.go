// Package widgetconfig gives each widget an isolated, persisted configuration
// cell. Isolation comes from the key scheme: a widget only ever touches
// "{ns}_{widgetId}_config".
package widgetconfig

import (
	"context"
	"sync"

	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/store"
	"github.com/GregMSThompson/dashboard-backend/pkg/helpers"
)

// Key is the persistence key of widgetID's configuration.
func Key(s *store.Store, widgetID string) string {
	return s.Key(widgetID, "config")
}

type Controller struct {
	store    *store.Store
	widgetID string
	key      string
	defaults models.WidgetConfig

	mu       sync.Mutex
	current  models.WidgetConfig
	loaded   bool
	onChange func(models.WidgetConfig)
}

func New(s *store.Store, widgetID string, defaults models.WidgetConfig) *Controller {
	return &Controller{
		store:    s,
		widgetID: widgetID,
		key:      Key(s, widgetID),
		defaults: helpers.Clone(defaults),
	}
}

func (c *Controller) Key() string { return c.key }

func (c *Controller) WidgetID() string { return c.widgetID }

// OnChange registers the render callback fired after every update.
func (c *Controller) OnChange(fn func(models.WidgetConfig)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Read returns merge(defaults, persisted), loading it on first use.
func (c *Controller) Read() models.WidgetConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return helpers.Clone(c.load())
}

// Update shallow-merges partial into the current config and writes it through.
func (c *Controller) Update(ctx context.Context, partial models.WidgetConfig) (models.WidgetConfig, error) {
	return c.UpdateFunc(ctx, func(models.WidgetConfig) models.WidgetConfig { return partial })
}

// UpdateFunc computes the partial from the current config.
func (c *Controller) UpdateFunc(ctx context.Context, fn func(current models.WidgetConfig) models.WidgetConfig) (models.WidgetConfig, error) {
	c.mu.Lock()
	next := helpers.Merge(c.load(), fn(helpers.Clone(c.load())))
	if err := c.store.Set(ctx, c.key, next); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.current = next
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(helpers.Clone(next))
	}
	return helpers.Clone(next), nil
}

// Reset persists the defaults, discarding any stored values.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	next := helpers.Clone(c.defaults)
	if err := c.store.Set(ctx, c.key, next); err != nil {
		c.mu.Unlock()
		return err
	}
	c.current = next
	c.loaded = true
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(helpers.Clone(next))
	}
	return nil
}

func (c *Controller) load() models.WidgetConfig {
	if !c.loaded {
		persisted := store.Get(c.store, c.key, models.WidgetConfig{})
		c.current = helpers.Merge(c.defaults, persisted)
		c.loaded = true
	}
	return c.current
}
