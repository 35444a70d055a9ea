package sim

import (
	"fmt"
	"math"
)

// DistanceTo returns the Euclidean distance between two points.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Zone is a fixed-size square bucket of the road plane. IDs start at 1.
type Zone struct {
	ID     int
	Center Point
}

// ZoneMap is the static zone partition of the road. Zone assignment is a
// pure function of the device id, computed once in NewZoneMap.
type ZoneMap struct {
	topo           TopologyConfig
	devicesPerLane int
	zonesPerRow    int
	positions      []Point // indexed by DeviceID
	zoneOf         []int   // indexed by DeviceID, zone IDs
	zones          []Zone  // zones[id-1]
}

// NewZoneMap places every device on its lane and assigns it a zone.
// Zones are numbered row by row starting at ZoneStart; a row spans one lane's
// length, so zonesPerRow = devicesPerLane * deviceSpacing / zoneSize.
func NewZoneMap(topo TopologyConfig) (*ZoneMap, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	perLane := topo.DevicesPerLane()
	zonesPerRow := int(float64(perLane) * (topo.DeviceSpacing / topo.ZoneSize))
	if zonesPerRow <= 0 {
		return nil, fmt.Errorf("topology yields no zones per row (devices per lane %d, spacing %f, zone size %f)",
			perLane, topo.DeviceSpacing, topo.ZoneSize)
	}

	z := &ZoneMap{
		topo:           topo,
		devicesPerLane: perLane,
		zonesPerRow:    zonesPerRow,
		positions:      make([]Point, topo.NumDevices),
		zoneOf:         make([]int, topo.NumDevices),
	}

	maxZone := 0
	for id := 0; id < topo.NumDevices; id++ {
		lane, slot := id/perLane, id%perLane
		pos := Point{
			X: topo.Origin.X + topo.DeviceSpacing*float64(slot),
			Y: topo.Origin.Y + topo.LaneSpacing*float64(lane),
		}
		col := gridIndex(pos.X, topo.ZoneStart.X, topo.ZoneSize)
		row := gridIndex(pos.Y, topo.ZoneStart.Y, topo.ZoneSize)
		if col > zonesPerRow {
			return nil, fmt.Errorf("device %d at x=%f falls outside the %d-zone row", id, pos.X, zonesPerRow)
		}
		zoneID := col + (row-1)*zonesPerRow
		z.positions[id] = pos
		z.zoneOf[id] = zoneID
		maxZone = max(maxZone, zoneID)
	}

	z.zones = make([]Zone, maxZone)
	col, row := 1, 1
	for i := range z.zones {
		z.zones[i] = Zone{
			ID: i + 1,
			Center: Point{
				X: topo.ZoneStart.X + float64(col-1)*topo.ZoneSize + topo.ZoneSize/2,
				Y: topo.ZoneStart.Y + float64(row-1)*topo.ZoneSize + topo.ZoneSize/2,
			},
		}
		col++
		if col > zonesPerRow {
			col = 1
			row++
		}
	}
	return z, nil
}

// gridIndex returns the 1-based cell holding v on a grid starting at start.
// A value exactly on a boundary belongs to the lower cell.
func gridIndex(v, start, size float64) int {
	idx := 1
	for v > start+size*float64(idx) {
		idx++
	}
	return idx
}

// NumDevices returns the fixed device count.
func (z *ZoneMap) NumDevices() int { return len(z.positions) }

// Zones returns all zones ordered by ID.
func (z *ZoneMap) Zones() []Zone { return z.zones }

// Topology returns the layout the map was built from.
func (z *ZoneMap) Topology() TopologyConfig { return z.topo }

// Position returns the device's exact road position.
func (z *ZoneMap) Position(id DeviceID) (Point, error) {
	if !z.has(id) {
		return Point{}, fmt.Errorf("%w: %d (have %d devices)", ErrUnknownDevice, id, len(z.positions))
	}
	return z.positions[id], nil
}

// ZoneOf returns the zone holding the device.
func (z *ZoneMap) ZoneOf(id DeviceID) (Zone, error) {
	if !z.has(id) {
		return Zone{}, fmt.Errorf("%w: %d (have %d devices)", ErrUnknownDevice, id, len(z.positions))
	}
	return z.zones[z.zoneOf[id]-1], nil
}

// Zone returns the zone with the given ID.
func (z *ZoneMap) Zone(zoneID int) (Zone, error) {
	if zoneID < 1 || zoneID > len(z.zones) {
		return Zone{}, fmt.Errorf("zone %d out of range 1..%d", zoneID, len(z.zones))
	}
	return z.zones[zoneID-1], nil
}

// Distance returns the distance between the zone centers of two devices.
func (z *ZoneMap) Distance(a, b DeviceID) (float64, error) {
	za, err := z.ZoneOf(a)
	if err != nil {
		return 0, err
	}
	zb, err := z.ZoneOf(b)
	if err != nil {
		return 0, err
	}
	return za.Center.DistanceTo(zb.Center), nil
}

// OffsetX returns a's zone center x minus b's zone center x.
func (z *ZoneMap) OffsetX(a, b DeviceID) (float64, error) {
	za, err := z.ZoneOf(a)
	if err != nil {
		return 0, err
	}
	zb, err := z.ZoneOf(b)
	if err != nil {
		return 0, err
	}
	return za.Center.X - zb.Center.X, nil
}

// IsInterior reports whether the device sits inside a configured interior
// segment, clear of the edge margin. Position is taken along the device's own
// lane, so both lanes classify symmetrically.
func (z *ZoneMap) IsInterior(id DeviceID) bool {
	if !z.has(id) {
		return false
	}
	slot := float64(int(id) % z.devicesPerLane)
	spacing := z.topo.DeviceSpacing
	for _, seg := range z.topo.InteriorSegments {
		lo := seg.Start/spacing - 1
		hi := (seg.End-z.topo.EdgeMargin)/spacing - 1
		if slot > lo && slot < hi {
			return true
		}
	}
	return false
}

func (z *ZoneMap) has(id DeviceID) bool {
	return id >= 0 && int(id) < len(z.positions)
}
