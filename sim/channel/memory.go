package channel

import "github.com/sidelink-sim/ore-engine/sim"

// MemoryChannel is an in-process FrameReader and InstructionSink. Staged
// frames are consumed on read; every written instruction is kept.
type MemoryChannel struct {
	pending      map[sim.ReportField]string
	instructions []sim.Instruction
}

// NewMemoryChannel returns an empty channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{pending: make(map[sim.ReportField]string)}
}

// WriteFrames frames the four blocks of a sensing window, replacing anything
// pending.
func (m *MemoryChannel) WriteFrames(blocks sim.ReportBlocks) error {
	for _, f := range sim.ReportFields {
		m.pending[f] = sim.FrameBlock(blocks.Get(f))
	}
	return nil
}

// Pending reports how many blocks are waiting to be read.
func (m *MemoryChannel) Pending() int { return len(m.pending) }

func (m *MemoryChannel) ReadFrame(f sim.ReportField) (string, bool, error) {
	frame, ok := m.pending[f]
	delete(m.pending, f)
	return frame, ok, nil
}

func (m *MemoryChannel) WriteInstruction(in sim.Instruction) error {
	m.instructions = append(m.instructions, in)
	return nil
}

// Instructions returns every instruction written so far, oldest first.
func (m *MemoryChannel) Instructions() []sim.Instruction { return m.instructions }

// Digits returns the written instructions as wire strings.
func (m *MemoryChannel) Digits() []string {
	out := make([]string, len(m.instructions))
	for i, in := range m.instructions {
		out[i] = in.Digits()
	}
	return out
}
