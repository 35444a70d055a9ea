package sim

import (
	"fmt"
	"math"
)

// Point is a position on the road plane, in meters.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Segment is a stretch of road, in meters along the lane.
type Segment struct {
	Start float64 `yaml:"start_m"`
	End   float64 `yaml:"end_m"`
}

// TopologyConfig groups the road layout used by the zone model.
type TopologyConfig struct {
	NumDevices       int       `yaml:"num_devices"`       // fixed for the run (must be > 0)
	NumLanes         int       `yaml:"num_lanes"`         // devices are split evenly across lanes
	DeviceSpacing    float64   `yaml:"device_spacing_m"`  // distance between devices on a lane
	LaneSpacing      float64   `yaml:"lane_spacing_m"`    // distance between lanes
	ZoneSize         float64   `yaml:"zone_size_m"`       // side of a square zone
	Origin           Point     `yaml:"origin"`            // position of device 0
	ZoneStart        Point     `yaml:"zone_start"`        // lower-left corner of zone 1
	InteriorSegments []Segment `yaml:"interior_segments"` // road stretches where occupancy is sensed
	EdgeMargin       float64   `yaml:"edge_margin_m"`     // excluded stretch before a segment end
}

// EstimatorConfig groups the smoothing constants and seeds of the estimators.
type EstimatorConfig struct {
	OccupancyAlpha        float64        `yaml:"occupancy_alpha"`         // EMA weight of a new occupancy sample
	EdgeBeta              float64        `yaml:"edge_beta"`               // EMA weight of a new edge candidate
	EdgeTolerance         float64        `yaml:"edge_tolerance"`          // gamma: fraction of neighbors allowed beyond the ring
	InitialOccupancy      float64        `yaml:"initial_occupancy"`       // seed occupancy estimate
	InitialEdgeDistance   float64        `yaml:"initial_edge_distance_m"` // seed edge distance
	InitialResourceConfig ResourceConfig `yaml:"initial_resource_config"` // seed resource configuration
	InitialExclusionCount int            `yaml:"initial_exclusion_count"` // placeholder until the first sensing event
	PowerOffsetDB         int            `yaml:"power_offset_db"`         // added to the raw RSRP threshold
	PowerBucketDB         int            `yaml:"power_bucket_db"`         // width of an occupancy table column
}

// SelectionConfig groups mode selection and instruction encoding parameters.
type SelectionConfig struct {
	Policy      string  `yaml:"policy"`       // "opportunistic" (default) or "persistent"
	LowBandMax  float64 `yaml:"low_band_max"` // occupancy upper bound (inclusive) of band P1
	MidBandMax  float64 `yaml:"mid_band_max"` // occupancy upper bound (inclusive) of band P2
	GuardSlots  int     `yaml:"guard_slots"`  // slots skipped at the start of the selection window
	WindowSlots int     `yaml:"window_slots"` // length of the circular selection window
}

// TraceSettings controls decision tracing for a run.
type TraceSettings struct {
	Level       string   `yaml:"level"`        // "none" or "decisions"
	WatchDevice DeviceID `yaml:"watch_device"` // device whose estimate history is kept
}

// OccupancyTableSpec locates one occupancy table: a CSV file or inline rows.
type OccupancyTableSpec struct {
	File        string      `yaml:"file,omitempty"`
	PowerLevels []float64   `yaml:"power_levels,omitempty"`
	Rows        [][]float64 `yaml:"rows,omitempty"`
}

// SettingsTableSpec locates one settings table: a CSV file or inline rows.
type SettingsTableSpec struct {
	File string        `yaml:"file,omitempty"`
	Rows []SettingsRow `yaml:"rows,omitempty"`
}

// TablesConfig lists the provisioning tables. Relative file paths resolve against Dir.
type TablesConfig struct {
	Dir       string                                `yaml:"dir"`
	Occupancy map[ResourceConfig]OccupancyTableSpec `yaml:"occupancy"`
	Settings  map[string]SettingsTableSpec          `yaml:"settings"` // keyed by band name: p1, p2, p4
}

// EngineConfig is the full engine configuration, loadable from YAML.
type EngineConfig struct {
	Topology  TopologyConfig  `yaml:"topology"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Selection SelectionConfig `yaml:"selection"`
	Tables    TablesConfig    `yaml:"tables"`
	Trace     TraceSettings   `yaml:"trace"`
}

// Policy names accepted by SelectionConfig.Policy.
const (
	PolicyOpportunistic = "opportunistic"
	PolicyPersistent    = "persistent"
)

// ValidPolicies is the set of recognized policy names.
var ValidPolicies = map[string]bool{"": true, PolicyOpportunistic: true, PolicyPersistent: true}

var validTraceLevels = map[string]bool{"": true, "none": true, "decisions": true}

// DefaultTopologyConfig returns the 2-lane, 300-device road of the reference scenario.
func DefaultTopologyConfig() TopologyConfig {
	return TopologyConfig{
		NumDevices:    300,
		NumLanes:      2,
		DeviceSpacing: 10,
		LaneSpacing:   4,
		ZoneSize:      5,
		Origin:        Point{X: 0, Y: 0},
		ZoneStart:     Point{X: -2.5, Y: -3},
		InteriorSegments: []Segment{
			{Start: 150, End: 750},
			{Start: 900, End: 1500},
		},
		EdgeMargin: 150,
	}
}

// DefaultEstimatorConfig returns the reference smoothing constants and seeds.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		OccupancyAlpha:        0.5,
		EdgeBeta:              0.5,
		EdgeTolerance:         0.1,
		InitialOccupancy:      0.1,
		InitialEdgeDistance:   75,
		InitialResourceConfig: 1,
		InitialExclusionCount: 1000,
		PowerOffsetDB:         110 - 3,
		PowerBucketDB:         3,
	}
}

// DefaultSelectionConfig returns the reference band bounds and window.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		Policy:      PolicyOpportunistic,
		LowBandMax:  0.15,
		MidBandMax:  0.3,
		GuardSlots:  2,
		WindowSlots: 100,
	}
}

// DefaultEngineConfig returns a complete configuration with no tables attached.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Topology:  DefaultTopologyConfig(),
		Estimator: DefaultEstimatorConfig(),
		Selection: DefaultSelectionConfig(),
		Trace:     TraceSettings{Level: "none", WatchDevice: 75},
	}
}

// DevicesPerLane returns how many devices sit on each lane.
func (t TopologyConfig) DevicesPerLane() int {
	if t.NumLanes <= 0 {
		return 0
	}
	return t.NumDevices / t.NumLanes
}

// Validate checks the engine configuration, excluding table contents.
func (c *EngineConfig) Validate() error {
	if err := c.Topology.Validate(); err != nil {
		return err
	}
	if err := c.Estimator.Validate(); err != nil {
		return err
	}
	if err := c.Selection.Validate(); err != nil {
		return err
	}
	if !validTraceLevels[c.Trace.Level] {
		return fmt.Errorf("trace.level: unknown level %q; valid: none, decisions", c.Trace.Level)
	}
	return nil
}

// Validate checks the road layout.
func (t TopologyConfig) Validate() error {
	if t.NumDevices <= 0 {
		return fmt.Errorf("topology.num_devices must be positive, got %d", t.NumDevices)
	}
	if t.NumLanes <= 0 {
		return fmt.Errorf("topology.num_lanes must be positive, got %d", t.NumLanes)
	}
	if t.NumDevices%t.NumLanes != 0 {
		return fmt.Errorf("topology.num_devices (%d) must be a multiple of num_lanes (%d)", t.NumDevices, t.NumLanes)
	}
	if err := validateFinitePositive("topology.device_spacing_m", t.DeviceSpacing); err != nil {
		return err
	}
	if err := validateFinitePositive("topology.lane_spacing_m", t.LaneSpacing); err != nil {
		return err
	}
	if err := validateFinitePositive("topology.zone_size_m", t.ZoneSize); err != nil {
		return err
	}
	// Edge devices are assigned lanes/spacing as their occupancy.
	if float64(t.NumLanes)/t.DeviceSpacing > 1 {
		return fmt.Errorf("topology: num_lanes / device_spacing_m must not exceed 1, got %d / %f", t.NumLanes, t.DeviceSpacing)
	}
	if t.EdgeMargin < 0 || math.IsNaN(t.EdgeMargin) {
		return fmt.Errorf("topology.edge_margin_m must be non-negative, got %f", t.EdgeMargin)
	}
	for i, s := range t.InteriorSegments {
		if s.End <= s.Start {
			return fmt.Errorf("topology.interior_segments[%d]: end_m (%f) must exceed start_m (%f)", i, s.End, s.Start)
		}
	}
	return nil
}

// Validate checks smoothing constants and seeds.
func (e EstimatorConfig) Validate() error {
	if e.OccupancyAlpha <= 0 || e.OccupancyAlpha > 1 {
		return fmt.Errorf("estimator.occupancy_alpha must be in (0, 1], got %f", e.OccupancyAlpha)
	}
	if e.EdgeBeta <= 0 || e.EdgeBeta > 1 {
		return fmt.Errorf("estimator.edge_beta must be in (0, 1], got %f", e.EdgeBeta)
	}
	if e.EdgeTolerance < 0 || e.EdgeTolerance >= 1 {
		return fmt.Errorf("estimator.edge_tolerance must be in [0, 1), got %f", e.EdgeTolerance)
	}
	if e.InitialOccupancy < 0 || e.InitialOccupancy > 1 {
		return fmt.Errorf("estimator.initial_occupancy must be in [0, 1], got %f", e.InitialOccupancy)
	}
	if e.InitialEdgeDistance < 0 {
		return fmt.Errorf("estimator.initial_edge_distance_m must be non-negative, got %f", e.InitialEdgeDistance)
	}
	if !e.InitialResourceConfig.Valid() {
		return fmt.Errorf("estimator.initial_resource_config must be in 1..4, got %d", e.InitialResourceConfig)
	}
	if e.PowerBucketDB <= 0 {
		return fmt.Errorf("estimator.power_bucket_db must be positive, got %d", e.PowerBucketDB)
	}
	return nil
}

// Validate checks band bounds, the policy name and the slot window.
func (s SelectionConfig) Validate() error {
	if !ValidPolicies[s.Policy] {
		return fmt.Errorf("selection.policy: unknown policy %q; valid: opportunistic, persistent", s.Policy)
	}
	if s.LowBandMax < 0 || s.MidBandMax < s.LowBandMax {
		return fmt.Errorf("selection band bounds must satisfy 0 <= low_band_max (%f) <= mid_band_max (%f)", s.LowBandMax, s.MidBandMax)
	}
	// Slots are packed as two decimal digits.
	if s.WindowSlots <= 0 || s.WindowSlots > 100 {
		return fmt.Errorf("selection.window_slots must be in 1..100, got %d", s.WindowSlots)
	}
	if s.GuardSlots < 0 || s.GuardSlots >= s.WindowSlots {
		return fmt.Errorf("selection.guard_slots must be in 0..%d, got %d", s.WindowSlots-1, s.GuardSlots)
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}
