package controller

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"schoolmap-api/internal/core/model"
	"schoolmap-api/internal/dataset"
	"schoolmap-api/internal/filter"
)

type fakeRenderer struct {
	mu     sync.Mutex
	calls  int
	last   []model.SchoolRecord
	counts []int
}

func (f *fakeRenderer) Render(records []model.SchoolRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = records
	f.counts = append(f.counts, len(records))
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const csv = `School_Name,Province,District,Zone,Education Division,Latitude,Longitude
S1,West,A,Z1,D1,6.9,79.9
S2,West,B,Z2,D2,bad,79.8
S3,East,C,Z3,D3,7.1,81.0
`

func newController(t *testing.T) (*Controller, *fakeRenderer) {
	t.Helper()
	st, err := dataset.Load(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := &fakeRenderer{}
	return New(discard(), filter.NewEngine(st, 16), r), r
}

func TestOnInitialLoad(t *testing.T) {
	c, r := newController(t)
	c.OnInitialLoad()

	if got := c.Options(model.LevelProvince); !reflect.DeepEqual(got, []string{"East", "West"}) {
		t.Fatalf("province options = %v", got)
	}
	if sel := c.Selection(); sel != model.NewSelection() {
		t.Fatalf("selection not all-sentinel: %+v", sel)
	}
	if r.calls != 1 || len(r.last) != 3 {
		t.Fatalf("initial render: calls=%d records=%d", r.calls, len(r.last))
	}
}

func TestOnChange_CascadeResetsBelow(t *testing.T) {
	c, r := newController(t)
	c.OnInitialLoad()

	c.OnChange(model.LevelDistrict, "A")
	c.OnChange(model.LevelZone, "Z1")
	c.OnChange(model.LevelDivision, "D1")

	provBefore := c.Options(model.LevelProvince)

	// changing district again must reset zone and division to the sentinel
	// and recompute their options from the new prefix
	c.OnChange(model.LevelDistrict, "B")
	sel := c.Selection()
	if sel.District != "B" || sel.Zone != model.All || sel.Division != model.All {
		t.Fatalf("cascade reset failed: %+v", sel)
	}
	if sel.Province != model.All {
		t.Fatalf("level above changed level must be untouched: %+v", sel)
	}
	if got := c.Options(model.LevelProvince); !reflect.DeepEqual(got, provBefore) {
		t.Fatalf("province options changed by downstream change: %v", got)
	}
	if got := c.Options(model.LevelZone); !reflect.DeepEqual(got, []string{"Z2"}) {
		t.Fatalf("zone options = %v, want [Z2]", got)
	}
	if got := c.Options(model.LevelDivision); !reflect.DeepEqual(got, []string{"D2"}) {
		t.Fatalf("division options = %v, want [D2]", got)
	}
	if len(r.last) != 1 || r.last[0].Name != "S2" {
		t.Fatalf("render after district=B: %+v", r.last)
	}
}

func TestOnChange_ProvinceScenario(t *testing.T) {
	c, r := newController(t)
	c.OnInitialLoad()

	c.OnChange(model.LevelProvince, "West")
	if len(r.last) != 2 {
		t.Fatalf("province=West should pass 2 records to renderer, got %d", len(r.last))
	}
	if got := c.Options(model.LevelDistrict); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("district options = %v, want [A B]", got)
	}
}

func TestOnChange_SentinelValueWidensAgain(t *testing.T) {
	c, r := newController(t)
	c.OnInitialLoad()

	c.OnChange(model.LevelProvince, "East")
	c.OnChange(model.LevelProvince, model.All)
	if len(r.last) != 3 {
		t.Fatalf("selecting the sentinel should render the full set, got %d", len(r.last))
	}
	if got := c.Options(model.LevelDistrict); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("district options = %v", got)
	}
}

func TestOnClear(t *testing.T) {
	c, r := newController(t)
	c.OnInitialLoad()
	c.OnChange(model.LevelProvince, "East")
	c.OnChange(model.LevelDistrict, "C")

	c.OnClear()
	if sel := c.Selection(); sel != model.NewSelection() {
		t.Fatalf("clear did not reset selection: %+v", sel)
	}
	if got := c.Options(model.LevelProvince); !reflect.DeepEqual(got, []string{"East", "West"}) {
		t.Fatalf("province options after clear = %v", got)
	}
	if got := c.Options(model.LevelDistrict); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("district options after clear = %v", got)
	}
	if len(r.last) != 3 {
		t.Fatalf("clear should render the full set, got %d", len(r.last))
	}
}

func TestEmptyStore_NoComputation(t *testing.T) {
	r := &fakeRenderer{}
	c := New(discard(), filter.NewEngine(dataset.Empty(), 16), r)

	c.OnInitialLoad()
	c.OnChange(model.LevelProvince, "West")
	c.OnClear()

	if r.calls != 0 {
		t.Fatalf("renderer must not be invoked with an empty store (calls=%d)", r.calls)
	}
	if got := c.Options(model.LevelProvince); len(got) != 0 {
		t.Fatalf("options must stay empty: %v", got)
	}
}
