// Package controller owns the session's filter selection and keeps the
// marker layer and dropdown option sets consistent with it.
package controller

import (
	"log/slog"
	"sync"

	"schoolmap-api/internal/core/model"
	"schoolmap-api/internal/filter"
	"schoolmap-api/internal/markers"
)

// Controller is a state machine over the filter selection. Every transition
// runs under the mutex: recompute-and-render is one atomic unit, so two
// overlapping events can never interleave against the shared marker layer.
type Controller struct {
	mu       sync.Mutex
	log      *slog.Logger
	engine   *filter.Engine
	renderer markers.Renderer

	sel     model.Selection
	options map[model.Level][]string
}

func New(log *slog.Logger, engine *filter.Engine, renderer markers.Renderer) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		log:      log,
		engine:   engine,
		renderer: renderer,
		sel:      model.NewSelection(),
		options:  make(map[model.Level][]string),
	}
}

func (c *Controller) empty() bool {
	return c.engine.Store().Len() == 0
}

// OnInitialLoad populates every level's options from the full store, sets all
// levels to the sentinel and renders all mappable records. With an empty
// store it logs one diagnostic and leaves dropdowns and map empty.
func (c *Controller) OnInitialLoad() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sel = model.NewSelection()
	if c.empty() {
		c.log.Warn("record store is empty; filters disabled")
		return
	}
	c.recomputeAll()
}

// OnChange applies a new value at one level. Levels strictly below are
// force-reset to the sentinel and their option sets recomputed from the
// selection prefix ending at the changed level; levels above are untouched.
func (c *Controller) OnChange(level model.Level, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.empty() {
		c.log.Debug("change ignored: record store is empty",
			"level", level.String(), "value", value)
		return
	}

	c.sel.Set(level, value)
	c.sel.ResetBelow(level)

	c.renderer.Render(c.engine.Apply(c.sel))
	for _, lv := range level.Below() {
		c.options[lv] = c.engine.Options(c.sel, lv)
	}

	c.log.Debug("selection changed",
		"level", level.String(), "value", c.sel.Value(level))
}

// OnClear resets all levels to the sentinel, recomputes every option set from
// the full store and renders the full mappable set.
func (c *Controller) OnClear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sel = model.NewSelection()
	if c.empty() {
		c.log.Debug("clear ignored: record store is empty")
		return
	}
	c.recomputeAll()
}

func (c *Controller) recomputeAll() {
	for _, lv := range model.Levels() {
		c.options[lv] = c.engine.Options(c.sel, lv)
	}
	c.renderer.Render(c.engine.Apply(c.sel))
}

// Selection returns a snapshot of the current selection.
func (c *Controller) Selection() model.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// Options returns the current option set for a level, without the sentinel;
// the consuming surface prepends its per-level label.
func (c *Controller) Options(level model.Level) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options[level]
}
