// Package health exposes liveness and readiness endpoints.
package health

import (
	"encoding/json"
	"net/http"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// DatasetReporter reports what the store currently holds.
type DatasetReporter interface {
	Len() int
	Version() uint64
}

// Readiness reports ready iff the dataset loaded with at least one record.
func Readiness(ds DatasetReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status  string `json:"status"`
			Records int    `json:"records"`
			Version uint64 `json:"version,omitempty"`
		}
		out := resp{Status: "not_ready"}
		w.Header().Set("Content-Type", "application/json")
		if ds != nil && ds.Len() > 0 {
			out.Status = "ready"
			out.Records = ds.Len()
			out.Version = ds.Version()
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
