package cmd

import (
	"io"

	"github.com/jszwec/csvutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidelink-sim/ore-engine/sim"
)

// zoneRow is one device of the printed layout.
type zoneRow struct {
	Device   int     `csv:"device"`
	Zone     int     `csv:"zone"`
	X        float64 `csv:"x_m"`
	Y        float64 `csv:"y_m"`
	Interior bool    `csv:"interior"`
}

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Print the device-to-zone layout of the configured topology as CSV",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)

		cfg, err := loadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}
		if err := writeZoneLayout(cmd.OutOrStdout(), cfg.Topology); err != nil {
			logrus.Fatalf("Failed to print zones: %v", err)
		}
	},
}

func writeZoneLayout(w io.Writer, topo sim.TopologyConfig) error {
	zones, err := sim.NewZoneMap(topo)
	if err != nil {
		return err
	}
	rows := make([]zoneRow, 0, zones.NumDevices())
	for id := 0; id < zones.NumDevices(); id++ {
		z, err := zones.ZoneOf(sim.DeviceID(id))
		if err != nil {
			return err
		}
		rows = append(rows, zoneRow{
			Device:   id,
			Zone:     z.ID,
			X:        z.Center.X,
			Y:        z.Center.Y,
			Interior: zones.IsInterior(sim.DeviceID(id)),
		})
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func init() {
	rootCmd.AddCommand(zonesCmd)
}
