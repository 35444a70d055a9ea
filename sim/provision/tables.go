package provision

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/sidelink-sim/ore-engine/internal/fsutil"
	"github.com/sidelink-sim/ore-engine/sim"
)

// settingsHeader names the three columns of a headerless settings CSV.
var settingsHeader = []string{"neighbor_count_threshold", "report_age_threshold", "fallback_config"}

// settingsRecord is one settings CSV line. Provisioning files write every
// column as a float ("4.0"), so integers are parsed through float64.
type settingsRecord struct {
	NeighborCountThreshold float64 `csv:"neighbor_count_threshold"`
	ReportAgeThreshold     float64 `csv:"report_age_threshold"`
	FallbackConfig         float64 `csv:"fallback_config"`
}

// LoadTables resolves every table in tc, from file or inline rows, and
// indexes them. Relative files resolve against tc.Dir.
func LoadTables(fsys fsutil.FileSystem, tc sim.TablesConfig) (*sim.Tables, error) {
	cfgs := make([]sim.ResourceConfig, 0, len(tc.Occupancy))
	for cfg := range tc.Occupancy {
		cfgs = append(cfgs, cfg)
	}
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i] < cfgs[j] })

	occupancy := make([]*sim.OccupancyTable, 0, len(cfgs))
	for _, cfg := range cfgs {
		spec := tc.Occupancy[cfg]
		var table *sim.OccupancyTable
		switch {
		case spec.File != "" && len(spec.Rows) > 0:
			return nil, fmt.Errorf("tables.occupancy[%d]: file and rows are mutually exclusive", cfg)
		case spec.File != "":
			data, err := fsys.ReadFile(resolve(tc.Dir, spec.File))
			if err != nil {
				return nil, fmt.Errorf("tables.occupancy[%d]: %w", cfg, err)
			}
			table, err = ParseOccupancyCSV(cfg, data)
			if err != nil {
				return nil, fmt.Errorf("tables.occupancy[%d] %s: %w", cfg, spec.File, err)
			}
		case len(spec.Rows) > 0:
			table = &sim.OccupancyTable{Config: cfg, PowerLevels: spec.PowerLevels, Samples: spec.Rows}
		default:
			return nil, fmt.Errorf("tables.occupancy[%d]: neither file nor rows given", cfg)
		}
		occupancy = append(occupancy, table)
	}

	names := make([]string, 0, len(tc.Settings))
	for name := range tc.Settings {
		names = append(names, name)
	}
	sort.Strings(names)

	settings := make([]sim.SettingsTable, 0, len(names))
	for _, name := range names {
		band, err := sim.ParseBand(name)
		if err != nil {
			return nil, fmt.Errorf("tables.settings: %w", err)
		}
		spec := tc.Settings[name]
		var table sim.SettingsTable
		switch {
		case spec.File != "" && len(spec.Rows) > 0:
			return nil, fmt.Errorf("tables.settings[%s]: file and rows are mutually exclusive", name)
		case spec.File != "":
			data, err := fsys.ReadFile(resolve(tc.Dir, spec.File))
			if err != nil {
				return nil, fmt.Errorf("tables.settings[%s]: %w", name, err)
			}
			table, err = ParseSettingsCSV(band, data)
			if err != nil {
				return nil, fmt.Errorf("tables.settings[%s] %s: %w", name, spec.File, err)
			}
		case len(spec.Rows) > 0:
			table = sim.SettingsTable{Band: band, Rows: spec.Rows}
		default:
			return nil, fmt.Errorf("tables.settings[%s]: neither file nor rows given", name)
		}
		settings = append(settings, table)
	}

	return sim.NewTables(occupancy, settings)
}

func resolve(dir, name string) string {
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// ParseOccupancyCSV reads an occupancy matrix. The header row holds a label
// cell followed by the power level of each column; every following row holds
// an exclusion count followed by one sample per power level.
func ParseOccupancyCSV(cfg sim.ResourceConfig, data []byte) (*sim.OccupancyTable, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("occupancy CSV needs a header row and at least one data row")
	}

	table := &sim.OccupancyTable{Config: cfg}
	for j, cell := range records[0][1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil, fmt.Errorf("header column %d: %w", j+1, err)
		}
		table.PowerLevels = append(table.PowerLevels, v)
	}
	for i, rec := range records[1:] {
		label, err := parseIntegral(rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d exclusion count: %w", i+1, err)
		}
		row := make([]float64, 0, len(rec)-1)
		for j, cell := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j+1, err)
			}
			row = append(row, v)
		}
		table.ExclusionCounts = append(table.ExclusionCounts, label)
		table.Samples = append(table.Samples, row)
	}
	return table, nil
}

// FormatOccupancyCSV writes t in the layout ParseOccupancyCSV reads. Missing
// labels are filled with the row or column index.
func FormatOccupancyCSV(t *sim.OccupancyTable) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	cols := 0
	if len(t.Samples) > 0 {
		cols = len(t.Samples[0])
	}
	header := []string{"NEx"}
	for j := 0; j < cols; j++ {
		level := float64(j)
		if j < len(t.PowerLevels) {
			level = t.PowerLevels[j]
		}
		header = append(header, strconv.FormatFloat(level, 'g', -1, 64))
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for i, row := range t.Samples {
		label := i
		if i < len(t.ExclusionCounts) {
			label = t.ExclusionCounts[i]
		}
		rec := []string{strconv.Itoa(label)}
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ParseSettingsCSV reads a headerless settings table, one row per line:
// neighbor count threshold, report age threshold, fallback config.
func ParseSettingsCSV(band sim.Band, data []byte) (sim.SettingsTable, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	dec, err := csvutil.NewDecoder(r, settingsHeader...)
	if err != nil {
		return sim.SettingsTable{}, err
	}

	table := sim.SettingsTable{Band: band}
	for {
		var rec settingsRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return sim.SettingsTable{}, fmt.Errorf("row %d: %w", len(table.Rows)+1, err)
		}
		threshold, err := integral(rec.NeighborCountThreshold)
		if err != nil {
			return sim.SettingsTable{}, fmt.Errorf("row %d neighbor_count_threshold: %w", len(table.Rows)+1, err)
		}
		fallback, err := integral(rec.FallbackConfig)
		if err != nil {
			return sim.SettingsTable{}, fmt.Errorf("row %d fallback_config: %w", len(table.Rows)+1, err)
		}
		table.Rows = append(table.Rows, sim.SettingsRow{
			NeighborCountThreshold: threshold,
			ReportAgeThreshold:     rec.ReportAgeThreshold,
			FallbackConfig:         sim.ResourceConfig(fallback),
		})
	}
	if len(table.Rows) == 0 {
		return sim.SettingsTable{}, errors.New("settings CSV has no rows")
	}
	return table, nil
}

// FormatSettingsCSV writes t in the headerless layout ParseSettingsCSV reads.
func FormatSettingsCSV(t sim.SettingsTable) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false
	for _, row := range t.Rows {
		rec := settingsRecord{
			NeighborCountThreshold: float64(row.NeighborCountThreshold),
			ReportAgeThreshold:     row.ReportAgeThreshold,
			FallbackConfig:         float64(row.FallbackConfig),
		}
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func parseIntegral(s string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return integral(v)
}

func integral(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	return int(v), nil
}
