package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidelink-sim/ore-engine/sim"
)

var (
	// CLI flags for the replay run
	configPath  string  // Engine YAML config; empty means built-in defaults without tables
	eventsPath  string  // Event trace CSV to replay
	channelDir  string  // Side-channel directory shared with the simulator
	outputDir   string  // Directory for README.txt, ore.log and estimate CSVs
	metricsAddr string  // Address for the Prometheus /metrics endpoint; empty disables it
	logLevel    string  // Log verbosity level
	policyName  string  // Overrides selection.policy when set
	traceLevel  string  // Overrides trace.level when set
	watchDevice int     // Overrides trace.watch_device when set
	horizon     float64 // Replay stops after the first event later than this (0 = no limit)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ore-engine",
	Short: "Sidelink resource selection engine",
}

// runCmd replays an event trace through the engine using the file side channel
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a scheduling-event trace through the selection engine",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)

		cfg, err := loadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}
		applyOverrides(cmd, cfg)

		opts := runOptions{
			EventsPath:  eventsPath,
			ChannelDir:  channelDir,
			OutputDir:   outputDir,
			MetricsAddr: metricsAddr,
			Horizon:     horizon,
			ConfigPath:  configPath,
		}
		if opts.ChannelDir == "" {
			opts.ChannelDir = opts.OutputDir
		}
		if err := executeRun(cfg, opts, os.Stdout); err != nil {
			logrus.Errorf("Run failed: %v", err)
			os.Exit(1)
		}
		logrus.Info("Run complete.")
	},
}

// applyOverrides copies explicitly set flags onto the loaded config so YAML
// values survive when a flag keeps its default.
func applyOverrides(cmd *cobra.Command, cfg *sim.EngineConfig) {
	if cmd.Flags().Changed("policy") {
		cfg.Selection.Policy = policyName
	}
	if cmd.Flags().Changed("trace-level") {
		cfg.Trace.Level = traceLevel
	}
	if cmd.Flags().Changed("watch-device") {
		cfg.Trace.WatchDevice = sim.DeviceID(watchDevice)
	}
}

func setLogLevel(name string) {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", name)
	}
	logrus.SetLevel(level)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the engine YAML config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&eventsPath, "events", "", "Path to the event trace CSV")
	runCmd.Flags().StringVar(&outputDir, "output-dir", ".", "Directory for the audit record, log and estimate history")
	runCmd.Flags().StringVar(&channelDir, "channel-dir", "", "Side-channel directory (defaults to --output-dir)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "Stop after the first event later than this time in ms (0 = replay all)")
	runCmd.Flags().StringVar(&policyName, "policy", sim.PolicyOpportunistic, "Selection policy (opportunistic, persistent)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().IntVar(&watchDevice, "watch-device", 75, "Device whose estimate history is exported")
	_ = runCmd.MarkFlagRequired("events")

	rootCmd.AddCommand(runCmd)
}
