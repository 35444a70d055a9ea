// Package channel implements the side channel between the engine and the
// radio simulator: framed report blocks flowing in, instructions flowing out.
package channel

import (
	"fmt"
	"path/filepath"

	"github.com/sidelink-sim/ore-engine/internal/fsutil"
	"github.com/sidelink-sim/ore-engine/sim"
)

// File names inside the channel directory.
const (
	SenderFile      = "encodedSrcRnti.txt"
	AgeFile         = "encodedRc.txt"
	SlotFile        = "encodedSrcSlot.txt"
	SubchannelFile  = "encodedSrcSc.txt"
	InstructionFile = "encodedSelectionInstructions.txt"
)

// FileName returns the file that carries a report block.
func FileName(f sim.ReportField) string {
	switch f {
	case sim.FieldSender:
		return SenderFile
	case sim.FieldAge:
		return AgeFile
	case sim.FieldSlot:
		return SlotFile
	default:
		return SubchannelFile
	}
}

// FileChannel exchanges frames and instructions through files in one
// directory. Each report file is deleted once read so a window is consumed
// exactly once; the instruction file is overwritten on every decision.
type FileChannel struct {
	fs  fsutil.FileSystem
	dir string
}

// NewFileChannel returns a channel rooted at dir.
func NewFileChannel(fs fsutil.FileSystem, dir string) *FileChannel {
	return &FileChannel{fs: fs, dir: dir}
}

// Dir returns the channel directory.
func (c *FileChannel) Dir() string { return c.dir }

func (c *FileChannel) path(name string) string { return filepath.Join(c.dir, name) }

// ReadFrame reads and deletes the file of one report block. A missing file
// means no block is pending.
func (c *FileChannel) ReadFrame(f sim.ReportField) (string, bool, error) {
	name := c.path(FileName(f))
	data, err := c.fs.ReadFile(name)
	if fsutil.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := c.fs.Remove(name); err != nil {
		return "", false, fmt.Errorf("consuming %s: %w", name, err)
	}
	return string(data), true, nil
}

// WriteFrames is the simulator side of ReadFrame: it frames and writes all
// four blocks of one sensing window.
func (c *FileChannel) WriteFrames(blocks sim.ReportBlocks) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	for _, f := range sim.ReportFields {
		name := c.path(FileName(f))
		if err := c.fs.WriteFile(name, []byte(sim.FrameBlock(blocks.Get(f))), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// WriteInstruction overwrites the instruction file with the digit string.
func (c *FileChannel) WriteInstruction(in sim.Instruction) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return c.fs.WriteFile(c.path(InstructionFile), []byte(in.Digits()), 0o644)
}

// ReadInstruction parses the current instruction file the way the simulator
// consumes it. ok is false when no instruction has been written yet.
func (c *FileChannel) ReadInstruction() (in sim.Instruction, ok bool, err error) {
	data, err := c.fs.ReadFile(c.path(InstructionFile))
	if fsutil.IsNotExist(err) {
		return sim.Instruction{}, false, nil
	}
	if err != nil {
		return sim.Instruction{}, false, err
	}
	in, err = sim.ParseInstruction(string(data))
	if err != nil {
		return sim.Instruction{}, false, err
	}
	return in, true, nil
}
