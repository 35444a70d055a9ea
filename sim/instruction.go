package sim

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownMode is returned when a decision carries a mode the wire format
// cannot express.
var ErrUnknownMode = errors.New("unknown selection mode")

// ResourcePick is one reserved slot/subchannel pair.
type ResourcePick struct {
	Slot       int // offset into the selection window, 0..99
	Subchannel int // 0..9
}

// Instruction is the digit-packed decision handed to the simulator.
//
//	fallback:       "2" <config>
//	opportunistic:  "1" <threshold> { <slot:2 digits> <subchannel:1 digit> }
type Instruction struct {
	Mode           Mode
	ResourceConfig ResourceConfig // fallback only
	Threshold      int            // opportunistic only
	Picks          []ResourcePick // opportunistic only
	digits         string
}

// DefaultInstruction is emitted before any sensing data exists.
var DefaultInstruction = Instruction{Mode: ModeFallback, ResourceConfig: 1, digits: "21"}

// Digits returns the wire string. Leading zeros inside picks are significant.
func (in Instruction) Digits() string { return in.digits }

// Value returns the numeric reading of the digit string.
func (in Instruction) Value() float64 {
	v, err := strconv.ParseFloat(in.digits, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (in Instruction) String() string {
	switch in.Mode {
	case ModeFallback:
		return fmt.Sprintf("%s(config=%d) %s", in.Mode, in.ResourceConfig, in.digits)
	default:
		return fmt.Sprintf("%s(threshold=%d, picks=%d) %s", in.Mode, in.Threshold, len(in.Picks), in.digits)
	}
}

// InstructionSink persists each emitted instruction.
type InstructionSink interface {
	WriteInstruction(in Instruction) error
}

// InstructionEncoder turns decisions into instructions.
type InstructionEncoder struct {
	guard  int
	window int
}

// NewInstructionEncoder builds an encoder for the configured selection window.
func NewInstructionEncoder(sel SelectionConfig) *InstructionEncoder {
	return &InstructionEncoder{guard: sel.GuardSlots, window: sel.WindowSlots}
}

// WindowPosition returns round(now) mod window, rounding half to even.
func (e *InstructionEncoder) WindowPosition(now float64) int {
	t := int(math.RoundToEven(now))
	return ((t % e.window) + e.window) % e.window
}

// ChosenSlot maps a neighbor's reserved slot into this device's selection
// window, which begins guard slots after now and wraps circularly. The wrap is
// modular: slot 0 seen at window position 99 lands on 99, not -1.
func (e *InstructionEncoder) ChosenSlot(slot int, now float64) int {
	s := slot - e.WindowPosition(now) - e.guard
	return ((s % e.window) + e.window) % e.window
}

// Encode packs a decision. For opportunistic decisions picks alternate
// between Left (even i, index i/2) and Right (odd i, index (i-1)/2) for
// i in [0, threshold - threshold%2).
func (e *InstructionEncoder) Encode(d Decision, now float64) (Instruction, error) {
	switch d.Mode {
	case ModeFallback:
		return Instruction{
			Mode:           ModeFallback,
			ResourceConfig: d.ResourceConfig,
			digits:         strconv.Itoa(int(ModeFallback)) + strconv.Itoa(int(d.ResourceConfig)),
		}, nil
	case ModeOpportunistic:
		var b strings.Builder
		b.WriteString(strconv.Itoa(int(ModeOpportunistic)))
		b.WriteString(strconv.Itoa(d.Threshold))
		count := d.Threshold - d.Threshold%2
		var picks []ResourcePick
		for i := 0; i < count; i++ {
			var c Candidate
			if i%2 == 0 {
				if i/2 >= len(d.Left) {
					return Instruction{}, fmt.Errorf("pick %d: left has %d candidates", i, len(d.Left))
				}
				c = d.Left[i/2]
			} else {
				if (i-1)/2 >= len(d.Right) {
					return Instruction{}, fmt.Errorf("pick %d: right has %d candidates", i, len(d.Right))
				}
				c = d.Right[(i-1)/2]
			}
			if c.Slot < 0 || c.Slot >= e.window {
				return Instruction{}, fmt.Errorf("pick %d: neighbor slot %d outside the %d-slot window", i, c.Slot, e.window)
			}
			pick := ResourcePick{Slot: e.ChosenSlot(c.Slot, now), Subchannel: c.Subchannel}
			slot, err := padDigits(pick.Slot, 2)
			if err != nil {
				return Instruction{}, fmt.Errorf("pick %d slot: %w", i, err)
			}
			sub, err := padDigits(pick.Subchannel, 1)
			if err != nil {
				return Instruction{}, fmt.Errorf("pick %d subchannel: %w", i, err)
			}
			b.WriteString(slot)
			b.WriteString(sub)
			picks = append(picks, pick)
		}
		return Instruction{
			Mode:      ModeOpportunistic,
			Threshold: d.Threshold,
			Picks:     picks,
			digits:    b.String(),
		}, nil
	default:
		return Instruction{}, fmt.Errorf("%w: %d", ErrUnknownMode, int(d.Mode))
	}
}

// ParseInstruction decodes a wire string the way the simulator reads it.
// The opportunistic threshold may take one or two digits; its width is
// recovered from the string length since picks are three digits each.
func ParseInstruction(s string) (Instruction, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Instruction{}, fmt.Errorf("instruction %q too short", s)
	}
	if err := checkDigits(s); err != nil {
		return Instruction{}, fmt.Errorf("instruction %q: %w", s, err)
	}
	switch Mode(s[0] - '0') {
	case ModeFallback:
		if len(s) != 2 {
			return Instruction{}, fmt.Errorf("instruction %q: fallback takes exactly one config digit", s)
		}
		cfg := ResourceConfig(s[1] - '0')
		if !cfg.Valid() {
			return Instruction{}, fmt.Errorf("instruction %q: resource config %d outside 1..4", s, cfg)
		}
		return Instruction{Mode: ModeFallback, ResourceConfig: cfg, digits: s}, nil
	case ModeOpportunistic:
		rest := s[1:]
		width := len(rest) % 3
		if width == 0 {
			return Instruction{}, fmt.Errorf("instruction %q: cannot split threshold from picks", s)
		}
		threshold, _ := strconv.Atoi(rest[:width])
		body := rest[width:]
		in := Instruction{Mode: ModeOpportunistic, Threshold: threshold, digits: s}
		for len(body) > 0 {
			slot, _ := strconv.Atoi(body[:2])
			sub, _ := strconv.Atoi(body[2:3])
			in.Picks = append(in.Picks, ResourcePick{Slot: slot, Subchannel: sub})
			body = body[3:]
		}
		if want := threshold - threshold%2; len(in.Picks) != want {
			return Instruction{}, fmt.Errorf("instruction %q: threshold %d needs %d picks, found %d", s, threshold, want, len(in.Picks))
		}
		return in, nil
	default:
		return Instruction{}, fmt.Errorf("instruction %q: %w: %c", s, ErrUnknownMode, s[0])
	}
}
