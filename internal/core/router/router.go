// Package router validates incoming requests and serves the filter and
// marker endpoints.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"schoolmap-api/internal/cache/keys"
	"schoolmap-api/internal/controller"
	"schoolmap-api/internal/core/model"
	"schoolmap-api/internal/core/observability"
	"schoolmap-api/internal/filter"
	"schoolmap-api/internal/markers"
)

const maxValueLen = 200

// ResponseCache is the optional query response cache; nil disables caching.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// ParseSelection reads the four level params. Absent or empty params mean the
// sentinel; unknown params are rejected so typos do not silently widen the
// result set.
func ParseSelection(q url.Values, extraAllowed ...string) (model.Selection, error) {
	allowed := map[string]bool{}
	for _, lv := range model.Levels() {
		allowed[lv.String()] = true
	}
	for _, k := range extraAllowed {
		allowed[k] = true
	}
	for k := range q {
		if !allowed[k] {
			return model.Selection{}, fmt.Errorf("unknown parameter %q", k)
		}
	}

	sel := model.NewSelection()
	for _, lv := range model.Levels() {
		v := strings.TrimSpace(q.Get(lv.String()))
		if len(v) > maxValueLen {
			return model.Selection{}, fmt.Errorf("parameter %q too long", lv.String())
		}
		sel.Set(lv, v)
	}
	return sel, nil
}

// HandleQuery serves the stateless filtered marker collection, fronted by the
// response cache when one is configured.
func HandleQuery(logger *slog.Logger, engine *filter.Engine, cache ResponseCache, ttl, opTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/query", sw.code, time.Since(start).Seconds())
		}()

		sel, err := ParseSelection(r.URL.Query())
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}

		key := keys.Query(engine.Store().Version(), sel)
		if cache != nil {
			ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
			body, ok, err := cache.Get(ctx, key)
			cancel()
			switch {
			case err != nil:
				logger.Warn("query cache get failed", "err", err)
			case ok:
				observability.IncCacheHit()
				writeGeoJSON(sw, body)
				return
			default:
				observability.IncCacheMiss()
			}
		}

		body, st := markers.Encode(engine.Apply(sel), logger)
		logger.Debug("query served",
			"rendered", st.Rendered, "skipped", st.Skipped)

		if cache != nil {
			ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
			if err := cache.Set(ctx, key, body, ttl); err != nil {
				logger.Warn("query cache set failed", "err", err)
			}
			cancel()
		}
		writeGeoJSON(sw, body)
	}
}

// HandleOptions serves the stateless option set for one level given the
// upstream selection.
func HandleOptions(engine *filter.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/options", sw.code, time.Since(start).Seconds())
		}()

		q := r.URL.Query()
		level, err := model.ParseLevel(strings.TrimSpace(q.Get("level")))
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}
		sel, err := ParseSelection(q, "level")
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(sw, optionsPayload{
			Level:    level.String(),
			Sentinel: level.SentinelLabel(),
			Values:   nonNil(engine.Options(sel, level)),
		})
	}
}

type optionsPayload struct {
	Level    string   `json:"level"`
	Sentinel string   `json:"sentinel"`
	Values   []string `json:"values"`
}

type selectionPayload struct {
	Selection map[string]string         `json:"selection"`
	Options   map[string]optionsPayload `json:"options"`
}

// SessionRoutes mounts the controller-backed surface: the live marker layer
// plus one select transition per dropdown and the clear-all reset.
func SessionRoutes(logger *slog.Logger, ctrl *controller.Controller, layer *markers.Layer) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/markers", func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			writeGeoJSON(sw, layer.GeoJSON())
			observability.ObserveHTTP(req.Method, "/session/markers", sw.code, time.Since(start).Seconds())
		})

		r.Get("/selection", func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			writeJSON(sw, snapshot(ctrl))
			observability.ObserveHTTP(req.Method, "/session/selection", sw.code, time.Since(start).Seconds())
		})

		r.Post("/select/{level}", func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			defer func() {
				observability.ObserveHTTP(req.Method, "/session/select", sw.code, time.Since(start).Seconds())
			}()

			level, err := model.ParseLevel(chi.URLParam(req, "level"))
			if err != nil {
				http.Error(sw, err.Error(), http.StatusBadRequest)
				return
			}
			value := strings.TrimSpace(req.URL.Query().Get("value"))
			if len(value) > maxValueLen {
				http.Error(sw, "value too long", http.StatusBadRequest)
				return
			}

			ctrl.OnChange(level, value)
			logger.Debug("session selection changed",
				"level", level.String(), "value", value)
			writeJSON(sw, snapshot(ctrl))
		})

		r.Post("/clear", func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			ctrl.OnClear()
			writeJSON(sw, snapshot(ctrl))
			observability.ObserveHTTP(req.Method, "/session/clear", sw.code, time.Since(start).Seconds())
		})
	}
}

func snapshot(ctrl *controller.Controller) selectionPayload {
	sel := ctrl.Selection()
	out := selectionPayload{
		Selection: make(map[string]string, 4),
		Options:   make(map[string]optionsPayload, 4),
	}
	for _, lv := range model.Levels() {
		out.Selection[lv.String()] = sel.Value(lv)
		out.Options[lv.String()] = optionsPayload{
			Level:    lv.String(),
			Sentinel: lv.SentinelLabel(),
			Values:   nonNil(ctrl.Options(lv)),
		}
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func writeGeoJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
