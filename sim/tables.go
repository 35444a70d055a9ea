package sim

import (
	"fmt"
	"sort"
	"strings"
)

// ResourceConfig is the modulation / resource-size setting of a device. It
// selects which occupancy table applies. Valid values are 1..4.
type ResourceConfig int

// Valid reports whether c is one of the four provisioned configurations.
func (c ResourceConfig) Valid() bool { return c >= 1 && c <= 4 }

// Band is an occupancy band; each band owns one settings table.
type Band int

const (
	BandP1 Band = iota + 1 // occupancy <= low_band_max
	BandP2                 // low_band_max < occupancy <= mid_band_max
	BandP4                 // occupancy > mid_band_max
)

var bandNames = map[Band]string{BandP1: "p1", BandP2: "p2", BandP4: "p4"}

// AllBands lists the bands in ascending occupancy order.
var AllBands = []Band{BandP1, BandP2, BandP4}

func (b Band) String() string {
	if name, ok := bandNames[b]; ok {
		return name
	}
	return fmt.Sprintf("band(%d)", int(b))
}

// ParseBand maps a band name (p1, p2, p4) to its Band.
func ParseBand(name string) (Band, error) {
	for b, n := range bandNames {
		if strings.EqualFold(n, name) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown band %q; valid: p1, p2, p4", name)
}

// BandFor classifies an occupancy estimate. Boundary values belong to the lower band.
func BandFor(occupancy float64, sel SelectionConfig) Band {
	switch {
	case occupancy <= sel.LowBandMax:
		return BandP1
	case occupancy <= sel.MidBandMax:
		return BandP2
	default:
		return BandP4
	}
}

// RangeError reports an occupancy lookup outside the provisioned table.
// It is never recovered by clamping.
type RangeError struct {
	Config         ResourceConfig
	ExclusionCount int
	PowerBucket    int
	Rows           int
	Cols           int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("occupancy table %d: index (exclusions=%d, power bucket=%d) outside %dx%d table",
		e.Config, e.ExclusionCount, e.PowerBucket, e.Rows, e.Cols)
}

// OccupancyTable maps (exclusion count, power bucket) to an occupancy sample.
type OccupancyTable struct {
	Config          ResourceConfig
	ExclusionCounts []int     // row labels, informational
	PowerLevels     []float64 // column labels, informational
	Samples         [][]float64
}

// Lookup returns the sample at (exclusionCount, bucket) or a *RangeError.
func (t *OccupancyTable) Lookup(exclusionCount, bucket int) (float64, error) {
	if exclusionCount < 0 || exclusionCount >= len(t.Samples) {
		return 0, &RangeError{Config: t.Config, ExclusionCount: exclusionCount, PowerBucket: bucket,
			Rows: len(t.Samples), Cols: t.cols()}
	}
	row := t.Samples[exclusionCount]
	if bucket < 0 || bucket >= len(row) {
		return 0, &RangeError{Config: t.Config, ExclusionCount: exclusionCount, PowerBucket: bucket,
			Rows: len(t.Samples), Cols: len(row)}
	}
	return row[bucket], nil
}

func (t *OccupancyTable) cols() int {
	if len(t.Samples) == 0 {
		return 0
	}
	return len(t.Samples[0])
}

// Validate checks that the table is non-empty and every sample lies in [0,1].
func (t *OccupancyTable) Validate() error {
	if !t.Config.Valid() {
		return fmt.Errorf("occupancy table: resource config must be in 1..4, got %d", t.Config)
	}
	if len(t.Samples) == 0 {
		return fmt.Errorf("occupancy table %d: no rows", t.Config)
	}
	for i, row := range t.Samples {
		if len(row) == 0 {
			return fmt.Errorf("occupancy table %d: row %d is empty", t.Config, i)
		}
		for j, v := range row {
			if v < 0 || v > 1 {
				return fmt.Errorf("occupancy table %d: sample [%d][%d] = %f outside [0, 1]", t.Config, i, j, v)
			}
		}
	}
	return nil
}

// SettingsRow is one candidate parameter set of a settings table.
type SettingsRow struct {
	NeighborCountThreshold int            `yaml:"neighbor_count_threshold"`
	ReportAgeThreshold     float64        `yaml:"report_age_threshold"`
	FallbackConfig         ResourceConfig `yaml:"fallback_config"`
}

// SettingsTable is an ordered list of rows, most permissive first. The last
// row always yields the fallback decision.
type SettingsTable struct {
	Band Band
	Rows []SettingsRow
}

// Last returns the terminal row.
func (t SettingsTable) Last() SettingsRow {
	return t.Rows[len(t.Rows)-1]
}

// Validate checks that the table has a terminal row and sane thresholds.
func (t SettingsTable) Validate() error {
	if len(t.Rows) == 0 {
		return fmt.Errorf("settings table %s: no rows", t.Band)
	}
	for i, r := range t.Rows {
		if r.NeighborCountThreshold < 0 {
			return fmt.Errorf("settings table %s: row %d neighbor_count_threshold must be non-negative, got %d",
				t.Band, i, r.NeighborCountThreshold)
		}
		if !r.FallbackConfig.Valid() {
			return fmt.Errorf("settings table %s: row %d fallback_config must be in 1..4, got %d",
				t.Band, i, r.FallbackConfig)
		}
	}
	return nil
}

// Tables is the immutable provisioning data, keyed by resource config and band.
type Tables struct {
	Occupancy map[ResourceConfig]*OccupancyTable
	Settings  map[Band]SettingsTable
}

// NewTables indexes and validates the provisioned tables.
func NewTables(occupancy []*OccupancyTable, settings []SettingsTable) (*Tables, error) {
	t := &Tables{
		Occupancy: make(map[ResourceConfig]*OccupancyTable, len(occupancy)),
		Settings:  make(map[Band]SettingsTable, len(settings)),
	}
	for _, o := range occupancy {
		if _, dup := t.Occupancy[o.Config]; dup {
			return nil, fmt.Errorf("occupancy table %d provisioned twice", o.Config)
		}
		t.Occupancy[o.Config] = o
	}
	for _, s := range settings {
		if _, dup := t.Settings[s.Band]; dup {
			return nil, fmt.Errorf("settings table %s provisioned twice", s.Band)
		}
		t.Settings[s.Band] = s
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks every table and that every fallback config has an occupancy table.
func (t *Tables) Validate() error {
	for _, cfg := range t.Configs() {
		if err := t.Occupancy[cfg].Validate(); err != nil {
			return err
		}
	}
	for _, b := range AllBands {
		s, ok := t.Settings[b]
		if !ok {
			return fmt.Errorf("settings table %s not provisioned", b)
		}
		if err := s.Validate(); err != nil {
			return err
		}
		for i, r := range s.Rows {
			if _, ok := t.Occupancy[r.FallbackConfig]; !ok {
				return fmt.Errorf("settings table %s: row %d fallback_config %d has no occupancy table",
					b, i, r.FallbackConfig)
			}
		}
	}
	return nil
}

// Configs returns the provisioned resource configs in ascending order.
func (t *Tables) Configs() []ResourceConfig {
	cfgs := make([]ResourceConfig, 0, len(t.Occupancy))
	for c := range t.Occupancy {
		cfgs = append(cfgs, c)
	}
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i] < cfgs[j] })
	return cfgs
}

// OccupancyFor returns the occupancy table of a resource config.
func (t *Tables) OccupancyFor(cfg ResourceConfig) (*OccupancyTable, error) {
	o, ok := t.Occupancy[cfg]
	if !ok {
		return nil, fmt.Errorf("no occupancy table for resource config %d", cfg)
	}
	return o, nil
}

// SettingsFor returns the settings table of a band.
func (t *Tables) SettingsFor(b Band) (SettingsTable, error) {
	s, ok := t.Settings[b]
	if !ok {
		return SettingsTable{}, fmt.Errorf("no settings table for band %s", b)
	}
	return s, nil
}
