// Package model defines core domain types shared across the service.
package model

import "fmt"

// All is the selection sentinel meaning "no constraint at this level".
const All = "all"

// Level identifies one step of the administrative hierarchy, in nesting order.
type Level int

const (
	LevelProvince Level = iota
	LevelDistrict
	LevelZone
	LevelDivision
)

// Levels lists every hierarchy level from the top down.
func Levels() []Level {
	return []Level{LevelProvince, LevelDistrict, LevelZone, LevelDivision}
}

func (l Level) String() string {
	switch l {
	case LevelProvince:
		return "province"
	case LevelDistrict:
		return "district"
	case LevelZone:
		return "zone"
	case LevelDivision:
		return "division"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// SentinelLabel is the per-level display label for the "all" sentinel.
func (l Level) SentinelLabel() string {
	switch l {
	case LevelProvince:
		return "All Provinces"
	case LevelDistrict:
		return "All Districts"
	case LevelZone:
		return "All Zones"
	default:
		return "All Divisions"
	}
}

// Below returns every level strictly below l, top down.
func (l Level) Below() []Level {
	var out []Level
	for _, lv := range Levels() {
		if lv > l {
			out = append(out, lv)
		}
	}
	return out
}

func ParseLevel(s string) (Level, error) {
	switch s {
	case "province":
		return LevelProvince, nil
	case "district":
		return LevelDistrict, nil
	case "zone":
		return LevelZone, nil
	case "division":
		return LevelDivision, nil
	default:
		return 0, fmt.Errorf("unknown hierarchy level %q", s)
	}
}

// SchoolRecord is one row of the loaded dataset. Hierarchy fields are plain
// strings and independent of geocoding success; Lat/Lon are only meaningful
// when Mappable is true.
type SchoolRecord struct {
	Name     string
	Address  string
	Province string
	District string
	Zone     string
	Division string
	Type     string
	Medium   string
	Lat      float64
	Lon      float64
	Mappable bool
}

// Field returns the record's value for the given hierarchy level.
func (r SchoolRecord) Field(l Level) string {
	switch l {
	case LevelProvince:
		return r.Province
	case LevelDistrict:
		return r.District
	case LevelZone:
		return r.Zone
	default:
		return r.Division
	}
}

// Selection holds the current filter value per level, each either a concrete
// value or the All sentinel.
type Selection struct {
	Province string
	District string
	Zone     string
	Division string
}

// NewSelection returns a selection with every level unconstrained.
func NewSelection() Selection {
	return Selection{Province: All, District: All, Zone: All, Division: All}
}

func (s Selection) Value(l Level) string {
	switch l {
	case LevelProvince:
		return s.Province
	case LevelDistrict:
		return s.District
	case LevelZone:
		return s.Zone
	default:
		return s.Division
	}
}

func (s *Selection) Set(l Level, v string) {
	if v == "" {
		v = All
	}
	switch l {
	case LevelProvince:
		s.Province = v
	case LevelDistrict:
		s.District = v
	case LevelZone:
		s.Zone = v
	default:
		s.Division = v
	}
}

// ResetBelow forces every level strictly below l back to the sentinel.
func (s *Selection) ResetBelow(l Level) {
	for _, lv := range l.Below() {
		s.Set(lv, All)
	}
}

// Matches reports whether the record satisfies all four level predicates:
// at each level the selection is All or equals the record's field exactly.
// Blank record fields only ever match the sentinel.
func (s Selection) Matches(r SchoolRecord) bool {
	for _, lv := range Levels() {
		if v := s.Value(lv); v != All && r.Field(lv) != v {
			return false
		}
	}
	return true
}
