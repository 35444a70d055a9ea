package sim

import (
	"fmt"
	"strconv"
	"strings"
)

// NeighborReport is one decoded reservation from a nearby sender. It lives
// for a single sensing window.
type NeighborReport struct {
	RNTI       int      // sender radio identifier as transmitted
	Sender     DeviceID // device index derived from RNTI
	Age        int      // retransmission-count style freshness field
	Slot       int      // reserved slot within the 100-slot window
	Subchannel int      // reserved subchannel
}

// ReportField names one of the four parallel report blocks.
type ReportField int

const (
	FieldSender ReportField = iota
	FieldAge
	FieldSlot
	FieldSubchannel
)

// ReportFields lists the blocks in wire order.
var ReportFields = []ReportField{FieldSender, FieldAge, FieldSlot, FieldSubchannel}

// Width returns the fixed digit width of one value in the block.
func (f ReportField) Width() int {
	switch f {
	case FieldSender:
		return 3
	case FieldAge, FieldSlot:
		return 2
	default:
		return 1
	}
}

func (f ReportField) String() string {
	switch f {
	case FieldSender:
		return "sender"
	case FieldAge:
		return "age"
	case FieldSlot:
		return "slot"
	case FieldSubchannel:
		return "subchannel"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Framing characters around every block. The leading filler keeps leading
// zeros alive through numeric transports; the terminator marks a complete write.
const (
	FrameFiller     = "1"
	FrameTerminator = "\n"
)

// FrameReader yields one framed block per field and consumes it, so a block
// is never read twice. ok is false when no block is pending for the field.
type FrameReader interface {
	ReadFrame(field ReportField) (frame string, ok bool, err error)
}

// ReportBlocks holds the four unframed digit blocks of one sensing window.
type ReportBlocks struct {
	Senders     string
	Ages        string
	Slots       string
	Subchannels string
}

// Get returns the block of a field.
func (b ReportBlocks) Get(f ReportField) string {
	switch f {
	case FieldSender:
		return b.Senders
	case FieldAge:
		return b.Ages
	case FieldSlot:
		return b.Slots
	default:
		return b.Subchannels
	}
}

func (b *ReportBlocks) set(f ReportField, s string) {
	switch f {
	case FieldSender:
		b.Senders = s
	case FieldAge:
		b.Ages = s
	case FieldSlot:
		b.Slots = s
	default:
		b.Subchannels = s
	}
}

// FrameBlock wraps a digit block for transport.
func FrameBlock(block string) string {
	return FrameFiller + block + FrameTerminator
}

// UnframeBlock strips the leading filler and trailing terminator characters.
// Frames shorter than two characters carry no values.
func UnframeBlock(frame string) string {
	if len(frame) < 2 {
		return ""
	}
	return frame[1 : len(frame)-1]
}

// ReadReportBlocks pulls one frame per field. A missing frame is an empty block.
func ReadReportBlocks(r FrameReader) (ReportBlocks, error) {
	var blocks ReportBlocks
	if r == nil {
		return blocks, nil
	}
	for _, f := range ReportFields {
		frame, ok, err := r.ReadFrame(f)
		if err != nil {
			return ReportBlocks{}, fmt.Errorf("reading %s frame: %w", f, err)
		}
		if ok {
			blocks.set(f, UnframeBlock(frame))
		}
	}
	return blocks, nil
}

// Count returns how many complete reports the blocks hold: decoding stops
// when the shortest block is exhausted.
func (b ReportBlocks) Count() int {
	n := -1
	for _, f := range ReportFields {
		c := len(b.Get(f)) / f.Width()
		if n < 0 || c < n {
			n = c
		}
	}
	return n
}

// DecodeReportBlocks slices fixed-width prefixes off each block until the
// shortest one is exhausted. Padding zeros are dropped by the integer parse.
func DecodeReportBlocks(b ReportBlocks) ([]NeighborReport, error) {
	n := b.Count()
	reports := make([]NeighborReport, 0, n)
	for i := 0; i < n; i++ {
		var vals [4]int
		for k, f := range ReportFields {
			w := f.Width()
			v, err := parseDigits(b.Get(f)[i*w : (i+1)*w])
			if err != nil {
				return nil, fmt.Errorf("report %d %s: %w", i, f, err)
			}
			vals[k] = v
		}
		reports = append(reports, NeighborReport{
			RNTI:       vals[0],
			Sender:     DeviceIndexFromRNTI(vals[0]),
			Age:        vals[1],
			Slot:       vals[2],
			Subchannel: vals[3],
		})
	}
	return reports, nil
}

// EncodeReportBlocks is the writer side of DecodeReportBlocks: every value is
// zero-padded to its field width. Values that do not fit are rejected.
func EncodeReportBlocks(reports []NeighborReport) (ReportBlocks, error) {
	var sb [4]strings.Builder
	for i, r := range reports {
		for k, f := range ReportFields {
			v := [4]int{r.RNTI, r.Age, r.Slot, r.Subchannel}[k]
			s, err := padDigits(v, f.Width())
			if err != nil {
				return ReportBlocks{}, fmt.Errorf("report %d %s: %w", i, f, err)
			}
			sb[k].WriteString(s)
		}
	}
	return ReportBlocks{
		Senders:     sb[0].String(),
		Ages:        sb[1].String(),
		Slots:       sb[2].String(),
		Subchannels: sb[3].String(),
	}, nil
}

// checkDigits rejects any character outside 0-9. It never converts, so it
// is safe on strings longer than an int can hold.
func checkDigits(s string) error {
	if i := strings.IndexFunc(s, func(c rune) bool { return c < '0' || c > '9' }); i >= 0 {
		return fmt.Errorf("non-digit %q in %q", s[i], s)
	}
	return nil
}

func parseDigits(s string) (int, error) {
	if err := checkDigits(s); err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func padDigits(v, width int) (string, error) {
	s := strconv.Itoa(v)
	if v < 0 || len(s) > width {
		return "", fmt.Errorf("value %d does not fit in %d digits", v, width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}
