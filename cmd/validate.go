package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidelink-sim/ore-engine/internal/fsutil"
)

// validateCmd loads the config and tables and builds an engine without
// replaying anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the engine config and provisioning tables",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)

		cfg, err := loadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}
		engine, err := buildEngine(fsutil.OSFileSystem{}, cfg, nil)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d devices, %d zones, %d occupancy tables, policy %s\n",
			engine.Devices.Len(), len(engine.Zones.Zones()), len(engine.Tables.Configs()), policyOrDefault(cfg.Selection.Policy))
	},
}

func policyOrDefault(name string) string {
	if name == "" {
		return "opportunistic"
	}
	return name
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
