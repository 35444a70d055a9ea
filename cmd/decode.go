package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sidelink-sim/ore-engine/sim"
)

// decodedInstruction is the YAML view of a parsed instruction.
type decodedInstruction struct {
	Digits         string        `yaml:"digits"`
	Mode           string        `yaml:"mode"`
	ResourceConfig int           `yaml:"resource_config,omitempty"`
	Threshold      int           `yaml:"threshold,omitempty"`
	Picks          []decodedPick `yaml:"picks,omitempty"`
}

type decodedPick struct {
	Slot       int `yaml:"slot"`
	Subchannel int `yaml:"subchannel"`
}

var decodeCmd = &cobra.Command{
	Use:   "decode <instruction>...",
	Short: "Decode instruction digit strings the way the simulator reads them",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, arg := range args {
			if err := writeDecoded(cmd.OutOrStdout(), arg); err != nil {
				logrus.Fatalf("Decode failed: %v", err)
			}
		}
	},
}

// writeDecoded parses one instruction and writes it as a YAML document.
func writeDecoded(w io.Writer, digits string) error {
	in, err := sim.ParseInstruction(digits)
	if err != nil {
		return err
	}
	out := decodedInstruction{
		Digits:         in.Digits(),
		Mode:           in.Mode.String(),
		ResourceConfig: int(in.ResourceConfig),
		Threshold:      in.Threshold,
	}
	for _, p := range in.Picks {
		out.Picks = append(out.Picks, decodedPick{Slot: p.Slot, Subchannel: p.Subchannel})
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("YAML marshal failed: %w", err)
	}
	_, err = fmt.Fprintf(w, "---\n%s", data)
	return err
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}
