// Package markers materializes school records as a GeoJSON marker layer.
package markers

import (
	"encoding/json"
	"log/slog"
	"sync"

	"schoolmap-api/internal/core/model"
	"schoolmap-api/internal/core/observability"
)

// Renderer consumes a record subset and replaces the visible marker set.
type Renderer interface {
	Render(records []model.SchoolRecord)
}

// Fallback labels substituted for absent payload fields.
const (
	noName     = "No Name"
	noAddress  = "No Address"
	noProvince = "No Province"
	noDistrict = "No District"
	noZone     = "No Zone"
	noDivision = "No Division"
	noType     = "No Type"
	noMedium   = "No Medium"
)

type properties struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Province string `json:"province"`
	District string `json:"district"`
	Zone     string `json:"zone"`
	Division string `json:"division"`
	Type     string `json:"type"`
	Medium   string `json:"medium"`
}

type geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

type feature struct {
	Type       string     `json:"type"`
	Geometry   geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

type collection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// Stats reports the outcome of one render pass.
type Stats struct {
	Rendered int
	Skipped  int
}

func orLabel(v, label string) string {
	if v == "" {
		return label
	}
	return v
}

func newFeature(r model.SchoolRecord) feature {
	return feature{
		Type: "Feature",
		Geometry: geometry{
			Type:        "Point",
			Coordinates: [2]float64{r.Lon, r.Lat},
		},
		Properties: properties{
			Name:     orLabel(r.Name, noName),
			Address:  orLabel(r.Address, noAddress),
			Province: orLabel(r.Province, noProvince),
			District: orLabel(r.District, noDistrict),
			Zone:     orLabel(r.Zone, noZone),
			Division: orLabel(r.Division, noDivision),
			Type:     orLabel(r.Type, noType),
			Medium:   orLabel(r.Medium, noMedium),
		},
	}
}

func build(records []model.SchoolRecord, log *slog.Logger) ([]feature, Stats) {
	feats := make([]feature, 0, len(records))
	var st Stats
	for _, r := range records {
		if !r.Mappable {
			st.Skipped++
			observability.IncMarkerSkipped()
			if log != nil {
				log.Warn("skipping record without usable coordinates",
					"school", orLabel(r.Name, noName))
			}
			continue
		}
		feats = append(feats, newFeature(r))
		st.Rendered++
	}
	observability.AddMarkersRendered(st.Rendered)
	return feats, st
}

// Encode renders records straight to a GeoJSON FeatureCollection body without
// touching a layer. Used by the stateless query path.
func Encode(records []model.SchoolRecord, log *slog.Logger) ([]byte, Stats) {
	feats, st := build(records, log)
	body, _ := json.Marshal(collection{Type: "FeatureCollection", Features: feats})
	return body, st
}

// Layer is the live marker set owned by the session controller. Render
// replaces its contents wholesale; there is no incremental patching.
type Layer struct {
	mu    sync.RWMutex
	log   *slog.Logger
	feats []feature
}

var _ Renderer = (*Layer)(nil)

func NewLayer(log *slog.Logger) *Layer {
	return &Layer{log: log}
}

// Render clears every previously rendered marker, then adds one marker per
// mappable record in input order. Non-mappable records are skipped with one
// diagnostic each and never abort the batch.
func (l *Layer) Render(records []model.SchoolRecord) {
	feats, _ := build(records, l.log)
	l.mu.Lock()
	l.feats = feats
	l.mu.Unlock()
}

func (l *Layer) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.feats)
}

// GeoJSON returns the current marker set as a FeatureCollection.
func (l *Layer) GeoJSON() []byte {
	l.mu.RLock()
	feats := l.feats
	l.mu.RUnlock()
	if feats == nil {
		feats = []feature{}
	}
	body, _ := json.Marshal(collection{Type: "FeatureCollection", Features: feats})
	return body
}
