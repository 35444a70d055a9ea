package driver

import (
	"container/heap"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sidelink-sim/ore-engine/sim"
)

// FrameWriter stages a sensing window on the side channel for the engine to
// consume.
type FrameWriter interface {
	WriteFrames(blocks sim.ReportBlocks) error
}

// Driver holds the replay clock and event queue.
type Driver struct {
	Engine *sim.Engine
	Frames FrameWriter
	// Horizon stops the replay after the first event later than it. Zero
	// replays everything.
	Horizon float64
	Clock   float64
	// OnInstruction, when set, sees every emitted instruction.
	OnInstruction func(ev sim.Event, in sim.Instruction)

	Processed int
	Emitted   int

	queue EventQueue
	seq   int
}

// New returns a driver feeding engine. frames may be nil when the engine
// reads reports from a channel the driver does not control.
func New(engine *sim.Engine, frames FrameWriter) *Driver {
	return &Driver{Engine: engine, Frames: frames, queue: make(EventQueue, 0)}
}

// Schedule pushes a record into the replay queue.
func (d *Driver) Schedule(rec EventRecord) {
	heap.Push(&d.queue, queuedEvent{rec: rec, seq: d.seq})
	d.seq++
}

// ScheduleAll pushes records in trace order.
func (d *Driver) ScheduleAll(records []EventRecord) {
	for _, rec := range records {
		d.Schedule(rec)
	}
}

// Pending returns the number of queued events.
func (d *Driver) Pending() int { return len(d.queue) }

// Run replays queued events in time order. The first engine error stops the
// replay and is returned with the remaining events left queued.
func (d *Driver) Run() error {
	for len(d.queue) > 0 {
		next := d.queue[0].rec
		if d.Horizon > 0 && next.Time > d.Horizon {
			logrus.Infof("[t=%.0f] horizon %.0f reached, %d events left", d.Clock, d.Horizon, len(d.queue))
			break
		}
		item := heap.Pop(&d.queue).(queuedEvent)
		d.Clock = item.rec.Time
		if err := d.step(item.rec); err != nil {
			return err
		}
	}
	logrus.Infof("[t=%.0f] replay ended: %d events, %d instructions", d.Clock, d.Processed, d.Emitted)
	return nil
}

func (d *Driver) step(rec EventRecord) error {
	ev := rec.Event()
	if rec.Sensing && rec.HasReports() && d.Frames != nil {
		if err := d.Frames.WriteFrames(rec.Blocks()); err != nil {
			return fmt.Errorf("staging reports for %s: %w", ev, err)
		}
	}
	in, ok, err := d.Engine.Handle(ev)
	if err != nil {
		return err
	}
	d.Processed++
	if ok {
		d.Emitted++
		if d.OnInstruction != nil {
			d.OnInstruction(ev, in)
		}
	}
	return nil
}
