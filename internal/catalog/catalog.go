package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed stations.json
var stationsJSON []byte

// Station is one fixed point of interest on a line.
type Station struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Line is an ordered sequence of stations.
type Line struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Stations []Station `json:"stations"`
}

// Catalog is the fixed, read-only set of lines and stations.
// It supplies identity keys for visit records and is never mutated.
type Catalog struct {
	lines  []Line
	byCode map[string]Station
}

// Load parses the embedded station data into a Catalog.
func Load() (*Catalog, error) {
	var data struct {
		Lines []Line `json:"lines"`
	}
	if err := json.Unmarshal(stationsJSON, &data); err != nil {
		return nil, fmt.Errorf("failed to parse station data: %w", err)
	}
	if len(data.Lines) == 0 {
		return nil, fmt.Errorf("station data contains no lines")
	}

	byCode := make(map[string]Station)
	for _, line := range data.Lines {
		for _, st := range line.Stations {
			byCode[st.Code] = st
		}
	}

	return &Catalog{lines: data.Lines, byCode: byCode}, nil
}

// Lines returns all lines in catalog order.
func (c *Catalog) Lines() []Line {
	return c.lines
}

// StationByCode looks up a station by its code.
func (c *Catalog) StationByCode(code string) (Station, bool) {
	st, ok := c.byCode[code]
	return st, ok
}

// TotalStations returns the number of stations across all lines.
// Interchange stations carry one code per line and count once per code.
func (c *Catalog) TotalStations() int {
	return len(c.byCode)
}
