package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/checkpoint"
	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/model"
	"github.com/san-kum/sphsim/internal/progress"
	"github.com/san-kum/sphsim/internal/solver"
	"github.com/san-kum/sphsim/internal/sph"
	"github.com/san-kum/sphsim/internal/storage"
	"github.com/san-kum/sphsim/internal/tui"
)

var (
	dataDir  string
	logLevel string

	configFile string
	preset     string
	maxStep    int
	outputStep int
	dt         float64
	workers    int
	restart    string
	outputFile string
	monitorIdx int
	neighborIv int

	pointsFile string
	volume     float64
	serveAddr  string
	stopFile   string
	noRecord   bool
	logFile    string

	exportPoints string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sphsim",
		Short:         "explicit SPH fluid solver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(lvl)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".sphsim", "run storage directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "log level")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the solver",
		Args:  cobra.NoArgs,
		RunE:  runSolver,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&serveAddr, "serve", "", "serve progress over websocket on this address (path /ws)")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the solver with a terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().StringVar(&logFile, "log-file", "", "write logs here while the view is open")

	inspectCmd := &cobra.Command{
		Use:   "inspect [checkpoint]",
		Short: "describe a checkpoint file",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectCheckpoint,
	}
	inspectCmd.Flags().StringVar(&exportPoints, "points", "", "write particle positions to this CSV file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the monitored particle of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}
	addRunFlags(initCmd)

	rootCmd.AddCommand(runCmd, liveCmd, inspectCmd, listCmd, plotCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml or gcfg)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().IntVar(&maxStep, "max-step", config.DefaultMaxStep, "last step to run")
	cmd.Flags().IntVar(&outputStep, "output-step", config.DefaultOutputStep, "report and checkpoint every n steps")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "initial time step")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines, 0 for one per CPU")
	cmd.Flags().StringVar(&restart, "restart", "", "resume from this checkpoint")
	cmd.Flags().StringVar(&outputFile, "output", config.DefaultOutputFile, "checkpoint file")
	cmd.Flags().IntVar(&monitorIdx, "monitor", 0, "index of the monitored particle")
	cmd.Flags().IntVar(&neighborIv, "neighbor-interval", config.DefaultNeighborInterval, "rebuild neighbors every n steps, 0 never")
	cmd.Flags().StringVar(&pointsFile, "points", "", "seed particles from a CSV point cloud instead of the box model")
	cmd.Flags().Float64Var(&volume, "volume", 0, "total volume of the point cloud, 0 for the domain volume")
	cmd.Flags().StringVar(&stopFile, "stop-file", "", "stop after the current step when this file appears")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not record the run under --data")
}

// loadConfig layers preset, config file and changed flags, in that order.
// Keys absent from the config file keep the preset's values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("max-step") {
		cfg.MaxStep = maxStep
	}
	if flags.Changed("output-step") {
		cfg.OutputStep = outputStep
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("restart") {
		cfg.Restart = restart
	}
	if flags.Changed("output") {
		cfg.OutputFile = outputFile
	}
	if flags.Changed("monitor") {
		cfg.Monitor = monitorIdx
	}
	if flags.Changed("neighbor-interval") {
		cfg.NeighborInterval = neighborIv
	}
	return cfg, cfg.Validate()
}

// initialize seeds sol from --points when given and runs its normal
// initialization otherwise.
func initialize(sol *solver.Solver, cfg *config.Config) error {
	if pointsFile == "" {
		return sol.Init()
	}
	if cfg.Restart != "" {
		return errors.New("--points and --restart are exclusive")
	}
	f, err := os.Open(pointsFile)
	if err != nil {
		return err
	}
	defer f.Close()

	total := volume
	if total <= 0 {
		total = cfg.Domain.Length * cfg.Domain.Width * cfg.Domain.Height
	}
	pool := make([]sph.Particle, cfg.MaxParticles)
	n, err := model.ReadPoints(f, pool, cfg.Fluid, total)
	if err != nil {
		return fmt.Errorf("reading %s: %w", pointsFile, err)
	}
	return sol.Seed(pool[:n])
}

// monitors collects the optional monitors of a run. close releases them.
type monitors struct {
	list  progress.Multi
	rec   *storage.Run
	hub   *progress.Hub
	srv   *http.Server
	close []func()
}

func openMonitors(cfg *config.Config) (*monitors, error) {
	m := &monitors{}
	if !noRecord {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return nil, err
		}
		rec, err := st.Create(cfg)
		if err != nil {
			return nil, err
		}
		m.rec = rec
		m.list = append(m.list, rec)
		logrus.WithField("run", rec.ID()).Info("recording run")
	}
	if stopFile != "" {
		sf, err := progress.WatchStopFile(stopFile)
		if err != nil {
			m.release()
			return nil, err
		}
		m.list = append(m.list, sf)
		m.close = append(m.close, func() { sf.Close() })
	}
	return m, nil
}

// serve binds addr before returning so a bad address fails the run up front.
func (m *monitors) serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("progress server: %w", err)
	}
	m.hub = progress.NewHub()
	mux := http.NewServeMux()
	mux.Handle("/ws", m.hub)
	m.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("progress server stopped")
		}
	}()
	m.list = append(m.list, m.hub)
	m.close = append(m.close, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.srv.Shutdown(ctx)
		m.hub.Close()
	})
	logrus.WithField("addr", ln.Addr().String()).Info("serving progress on /ws")
	return nil
}

func (m *monitors) finish(res solver.Result, runErr error) {
	if m.rec != nil {
		err := m.rec.Finish(storage.Outcome{
			Steps:    res.Steps,
			LastStep: res.LastStep,
			Time:     res.Time,
			Dt:       res.Dt,
			Stopped:  res.Stopped,
			Err:      runErr,
		})
		if err != nil {
			logrus.WithError(err).Warn("recording run outcome")
		}
	}
	m.release()
}

func (m *monitors) release() {
	for i := len(m.close) - 1; i >= 0; i-- {
		m.close[i]()
	}
	m.close = nil
}

func runSolver(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mons, err := openMonitors(cfg)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		if err := mons.serve(serveAddr); err != nil {
			mons.finish(solver.Result{}, err)
			return err
		}
	}
	mon := append(progress.Multi{progress.NewLogMonitor(logrus.StandardLogger())}, mons.list...)

	sol, err := solver.New(cfg, mon)
	if err != nil {
		mons.release()
		return err
	}

	start := time.Now()
	var res solver.Result
	err = initialize(sol, cfg)
	if err == nil {
		res, err = sol.Run(ctx)
	}
	mons.finish(res, err)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"steps":   res.Steps,
		"step":    res.LastStep,
		"time":    res.Time,
		"dt":      res.Dt,
		"stopped": res.Stopped,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("run complete")
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if pointsFile != "" {
		return errors.New("--points is not supported by the live view")
	}

	// logrus writes to stderr, which would tear the view.
	out := io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	logrus.SetOutput(out)
	defer logrus.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	mons, err := openMonitors(cfg)
	if err != nil {
		return err
	}
	mon := append(progress.Multi{progress.NewLogMonitor(logrus.StandardLogger())}, mons.list...)

	res, err := tui.Run(ctx, cfg, mon)
	mons.finish(res, err)
	if err != nil {
		return err
	}
	fmt.Printf("last step %d, t=%.6f s, dt=%.3e s, stopped=%v\n", res.LastStep, res.Time, res.Dt, res.Stopped)
	return nil
}

func inspectCheckpoint(cmd *cobra.Command, args []string) error {
	state, err := checkpoint.Load(args[0])
	if err != nil {
		return err
	}

	cfg := state.Config
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "file\t%s\n", args[0])
	fmt.Fprintf(w, "step\t%d\n", state.Step)
	fmt.Fprintf(w, "time\t%.6f s\n", state.Time)
	fmt.Fprintf(w, "dt\t%.3e s\n", cfg.Dt)
	fmt.Fprintf(w, "particles\t%d\n", len(state.Particles))
	fmt.Fprintf(w, "pairs\t%d\n", len(state.Pairs))
	fmt.Fprintf(w, "boundary\t%s\n", cfg.Boundary)
	fmt.Fprintf(w, "fluid\t%s\n", cfg.Fluid)
	fmt.Fprintf(w, "domain\t%g x %g x %g m\n", cfg.Domain.Length, cfg.Domain.Width, cfg.Domain.Height)
	fmt.Fprintf(w, "smoothing length\t%g m\n", cfg.SmoothingLength)
	if len(state.Particles) > 0 {
		var vmax, rhoMin, rhoMax, mass float64
		rhoMin = state.Particles[0].Rho
		for i := range state.Particles {
			p := &state.Particles[i]
			vmax = max(vmax, r3.Norm(p.V))
			rhoMin = min(rhoMin, p.Rho)
			rhoMax = max(rhoMax, p.Rho)
			mass += p.Mass()
		}
		fmt.Fprintf(w, "max |v|\t%.4e m/s\n", vmax)
		fmt.Fprintf(w, "density\t%.4f .. %.4f kg/m3\n", rhoMin, rhoMax)
		fmt.Fprintf(w, "mass\t%.6e kg\n", mass)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if exportPoints == "" {
		return nil
	}
	f, err := os.Create(exportPoints)
	if err != nil {
		return err
	}
	if err := model.WritePoints(f, state.Particles); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %d points to %s\n", len(state.Particles), exportPoints)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tBOUNDARY\tFLUID\tSTEP\tSIM TIME\tSTATUS")

	for _, run := range runs {
		status := "running"
		switch {
		case run.Error != "":
			status = "failed"
		case run.Stopped:
			status = "stopped"
		case run.Finished:
			status = "done"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%.4fs\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Boundary,
			run.Fluid,
			run.LastStep,
			run.MaxStep,
			run.Time,
			status,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	history, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("boundary: %s\n", meta.Boundary)
	fmt.Printf("particle: %d\n", meta.Particle)
	fmt.Printf("samples: %d\n\n", len(history))

	series := []struct {
		caption string
		value   func(progress.Snapshot) float64
	}{
		{"|v| [m/s]", func(s progress.Snapshot) float64 { return r3.Norm(s.V) }},
		{"|a| [m/s2]", func(s progress.Snapshot) float64 { return r3.Norm(s.A) }},
		{"x [m]", func(s progress.Snapshot) float64 { return s.X.X }},
		{"y [m]", func(s progress.Snapshot) float64 { return s.X.Y }},
		{"z [m]", func(s progress.Snapshot) float64 { return s.X.Z }},
		{"dt [s]", func(s progress.Snapshot) float64 { return s.Dt }},
	}

	for _, s := range series {
		data := make([]float64, len(history))
		for i, snap := range history {
			data[i] = s.value(snap)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption+" vs step"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}
