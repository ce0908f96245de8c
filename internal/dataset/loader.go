package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"schoolmap-api/internal/core/model"
)

// ErrNoData is returned when the source yields no data rows.
var ErrNoData = errors.New("dataset: no records")

// Fixed, case-sensitive column names of the upstream CSV. Latitude and
// Longitude are the only fields with a lowercase fallback.
const (
	colName     = "School_Name"
	colAddress  = "School Address"
	colProvince = "Province"
	colDistrict = "District"
	colZone     = "Zone"
	colDivision = "Education Division"
	colType     = "Type"
	colMedium   = "Medium"
	colLat      = "Latitude"
	colLatAlt   = "latitude"
	colLon      = "Longitude"
	colLonAlt   = "longitude"
)

func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load parses CSV rows into a Store. Rows are kept in input order. The file
// may start with a UTF-8 BOM (the upstream exporter writes utf-8-sig).
func Load(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}

	var records []model.SchoolRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: read row %d: %w", len(records)+2, err)
		}

		rec := model.SchoolRecord{
			Name:     field(row, idx, colName),
			Address:  field(row, idx, colAddress),
			Province: field(row, idx, colProvince),
			District: field(row, idx, colDistrict),
			Zone:     field(row, idx, colZone),
			Division: field(row, idx, colDivision),
			Type:     field(row, idx, colType),
			Medium:   field(row, idx, colMedium),
		}

		lat, latOK := parseCoord(fieldAlt(row, idx, colLat, colLatAlt))
		lon, lonOK := parseCoord(fieldAlt(row, idx, colLon, colLonAlt))
		if latOK && lonOK {
			rec.Lat, rec.Lon = lat, lon
			rec.Mappable = true
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrNoData
	}
	return newStore(records), nil
}

func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func fieldAlt(row []string, idx map[string]int, name, alt string) string {
	if _, ok := idx[name]; ok {
		return field(row, idx, name)
	}
	return field(row, idx, alt)
}

// parseCoord fails to "absent" on any unparsable or non-finite value.
func parseCoord(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
