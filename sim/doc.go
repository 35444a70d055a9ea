// Package sim provides the per-device sidelink resource-selection engine.
//
// # Reading Guide
//
// Start with these three files to understand the decision kernel:
//   - device.go: DeviceState lifecycle (uninitialized → sensed → decided)
//   - event.go: the event record delivered by the external driver each cycle
//   - engine.go: per-event orchestration of estimators, policy and encoder
//
// # Pipeline
//
// A sensing event refreshes the device's occupancy estimate (occupancy.go) and
// its neighbor report cache (report.go). A decision event then:
//   - measures each reporting neighbor through the zone model (zone.go)
//   - updates the edge distance with a ring search (edge.go)
//   - splits far neighbors into left and right candidates (partition.go)
//   - picks a mode and settings row from the band's table (decision.go)
//   - packs the result into a digit instruction (instruction.go)
//
// # Sub-packages
//   - sim/provision/: YAML engine config and CSV table loading
//   - sim/channel/: file-backed and in-memory report frames and instruction sinks
//   - sim/driver/: trace replay driver with a time-ordered event queue
//   - sim/trace/: decision and estimate history recording
//   - sim/observe/: Prometheus decision collector
//
// # Key Interfaces
//   - FrameReader: source of framed fixed-width report blocks
//   - InstructionSink: where encoded instructions are persisted
//   - Policy: opportunistic or persistent mode selection
//   - DecisionObserver: metrics hook invoked per sensing and decision event
package sim
