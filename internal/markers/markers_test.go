package markers

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"schoolmap-api/internal/core/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mappable(name, district string, lat, lon float64) model.SchoolRecord {
	return model.SchoolRecord{Name: name, District: district, Lat: lat, Lon: lon, Mappable: true}
}

type fc struct {
	Type     string `json:"type"`
	Features []struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string     `json:"type"`
			Coordinates [2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]string `json:"properties"`
	} `json:"features"`
}

func decode(t *testing.T, body []byte) fc {
	t.Helper()
	var out fc
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, body)
	}
	return out
}

func TestLayer_RenderSkipsUnmappable(t *testing.T) {
	l := NewLayer(discard())
	l.Render([]model.SchoolRecord{
		mappable("S1", "A", 6.9, 79.9),
		{Name: "S2", District: "B"}, // bad coords upstream, not mappable
	})
	if l.Count() != 1 {
		t.Fatalf("Count = %d, want 1", l.Count())
	}

	out := decode(t, l.GeoJSON())
	if out.Type != "FeatureCollection" || len(out.Features) != 1 {
		t.Fatalf("unexpected collection: %+v", out)
	}
	f := out.Features[0]
	if f.Geometry.Type != "Point" {
		t.Fatalf("geometry type = %q", f.Geometry.Type)
	}
	// GeoJSON positions are [lon, lat]
	if f.Geometry.Coordinates != [2]float64{79.9, 6.9} {
		t.Fatalf("coordinates = %v", f.Geometry.Coordinates)
	}
}

func TestLayer_RenderClearsPreviousMarkers(t *testing.T) {
	l := NewLayer(discard())
	l.Render([]model.SchoolRecord{
		mappable("S1", "A", 6.9, 79.9),
		mappable("S2", "B", 7.1, 81.0),
	})
	if l.Count() != 2 {
		t.Fatalf("Count = %d, want 2", l.Count())
	}
	l.Render([]model.SchoolRecord{mappable("S3", "C", 7.2, 80.1)})
	out := decode(t, l.GeoJSON())
	if len(out.Features) != 1 || out.Features[0].Properties["name"] != "S3" {
		t.Fatalf("previous markers not cleared: %+v", out.Features)
	}
}

func TestEncode_FallbackLabels(t *testing.T) {
	body, st := Encode([]model.SchoolRecord{
		{Lat: 6.9, Lon: 79.9, Mappable: true},
	}, discard())
	if st.Rendered != 1 || st.Skipped != 0 {
		t.Fatalf("stats = %+v", st)
	}
	out := decode(t, body)
	p := out.Features[0].Properties
	want := map[string]string{
		"name": "No Name", "address": "No Address", "province": "No Province",
		"district": "No District", "zone": "No Zone", "division": "No Division",
		"type": "No Type", "medium": "No Medium",
	}
	for k, v := range want {
		if p[k] != v {
			t.Fatalf("property %q = %q, want %q", k, p[k], v)
		}
	}
}

func TestEncode_OrderAndStats(t *testing.T) {
	body, st := Encode([]model.SchoolRecord{
		mappable("B", "", 1, 2),
		{Name: "skip me"},
		mappable("A", "", 3, 4),
	}, discard())
	if st.Rendered != 2 || st.Skipped != 1 {
		t.Fatalf("stats = %+v", st)
	}
	out := decode(t, body)
	if out.Features[0].Properties["name"] != "B" || out.Features[1].Properties["name"] != "A" {
		t.Fatalf("marker creation must follow input order: %+v", out.Features)
	}
}

func TestLayer_EmptyLayerIsValidCollection(t *testing.T) {
	l := NewLayer(discard())
	out := decode(t, l.GeoJSON())
	if out.Type != "FeatureCollection" || len(out.Features) != 0 {
		t.Fatalf("empty layer should encode as empty collection: %+v", out)
	}
}
