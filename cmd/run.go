package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/sidelink-sim/ore-engine/internal/fsutil"
	"github.com/sidelink-sim/ore-engine/sim"
	"github.com/sidelink-sim/ore-engine/sim/channel"
	"github.com/sidelink-sim/ore-engine/sim/driver"
	"github.com/sidelink-sim/ore-engine/sim/observe"
	"github.com/sidelink-sim/ore-engine/sim/provision"
	"github.com/sidelink-sim/ore-engine/sim/trace"
)

// Output files written next to the audit record.
const (
	logFileName       = "ore.log"
	estimatesFileName = "currentRhoUeEstimate.csv"
)

type runOptions struct {
	ConfigPath  string
	EventsPath  string
	ChannelDir  string
	OutputDir   string
	MetricsAddr string
	Horizon     float64
}

// loadConfig reads the engine config, or returns DefaultEngineConfig when path
// is empty. The defaults name no tables, so provisioning them fails.
func loadConfig(path string) (*sim.EngineConfig, error) {
	if path == "" {
		cfg := sim.DefaultEngineConfig()
		return &cfg, nil
	}
	return provision.LoadEngineConfig(fsutil.OSFileSystem{}, path)
}

// buildEngine provisions the tables named by cfg and wires the engine to ch.
func buildEngine(fsys fsutil.FileSystem, cfg *sim.EngineConfig, ch *channel.FileChannel) (*sim.Engine, error) {
	tables, err := provision.LoadTables(fsys, cfg.Tables)
	if err != nil {
		return nil, err
	}
	var frames sim.FrameReader
	var sink sim.InstructionSink
	if ch != nil {
		frames, sink = ch, ch
	}
	return sim.NewEngine(*cfg, tables, frames, sink)
}

// executeRun replays the event trace and writes the run artifacts. The audit
// record gets its termination line whether or not the replay succeeds.
func executeRun(cfg *sim.EngineConfig, opts runOptions, stdout io.Writer) (err error) {
	fsys := fsutil.OSFileSystem{}
	if err := fsys.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return err
	}

	audit := newAuditRecord(fsys, opts.OutputDir)
	if err := audit.Start(opts.ConfigPath, opts.EventsPath); err != nil {
		return err
	}
	defer func() {
		if ferr := audit.Finish(err); ferr != nil && err == nil {
			err = ferr
		}
	}()

	logFile, err := fsys.Create(filepath.Join(opts.OutputDir, logFileName), 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer logFile.Close()
	prevOut := logrus.StandardLogger().Out
	logrus.SetOutput(io.MultiWriter(prevOut, logFile))
	defer logrus.SetOutput(prevOut)
	logrus.Infof("Run %s: config=%q events=%q channel=%q", audit.RunID, opts.ConfigPath, opts.EventsPath, opts.ChannelDir)

	ch := channel.NewFileChannel(fsys, opts.ChannelDir)
	engine, err := buildEngine(fsys, cfg, ch)
	if err != nil {
		return err
	}

	if opts.MetricsAddr != "" {
		collector, err := observe.NewDecisionCollector(prometheus.NewRegistry())
		if err != nil {
			return err
		}
		engine.Observer = collector
		srv := serveMetrics(opts.MetricsAddr, collector)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	data, err := fsys.ReadFile(opts.EventsPath)
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}
	records, err := driver.ReadTrace(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", opts.EventsPath, err)
	}

	d := driver.New(engine, ch)
	d.Horizon = opts.Horizon
	d.ScheduleAll(records)
	runErr := d.Run()

	// Estimates gathered before a failure are still written.
	if err := appendEstimates(fsys, filepath.Join(opts.OutputDir, estimatesFileName), engine.Trace); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	engine.Metrics.Fprint(stdout)
	if engine.Trace != nil {
		printTraceSummary(stdout, trace.Summarize(engine.Trace))
	}
	return nil
}

// appendEstimates appends the watched device's history; the header row is
// only written when the file is new.
func appendEstimates(fsys fsutil.FileSystem, path string, st *trace.SimulationTrace) error {
	if st == nil || len(st.Estimates) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := trace.WriteEstimatesCSV(&buf, st); err != nil {
		return err
	}
	data := buf.Bytes()
	if fsys.Exists(path) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
	}
	return fsys.AppendFile(path, data, 0o644)
}

func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Decision Trace Summary ===")
	fmt.Fprintf(w, "Decisions            : %d\n", s.TotalDecisions)
	fmt.Fprintf(w, "Devices              : %d\n", s.UniqueDevices)
	fmt.Fprintf(w, "Mean Occupancy       : %.4f (stddev %.4f)\n", s.MeanOccupancy, s.StdDevOccupancy)
	fmt.Fprintf(w, "Mean Edge Distance   : %.2f m (max %.2f m)\n", s.MeanEdgeDistance, s.MaxEdgeDistance)
}

func serveMetrics(addr string, collector *observe.DecisionCollector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Warnf("metrics server exited: %v", err)
		}
	}()

	logrus.Infof("serving Prometheus metrics on %s", addr)
	return srv
}
