package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/theSadeQ/dip-smc-pso/internal/config"
	"github.com/theSadeQ/dip-smc-pso/internal/control"
	"github.com/theSadeQ/dip-smc-pso/internal/cost"
	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/pso"
	"github.com/theSadeQ/dip-smc-pso/internal/sim"
	"github.com/theSadeQ/dip-smc-pso/internal/store"
	"github.com/theSadeQ/dip-smc-pso/internal/tui"
	"github.com/theSadeQ/dip-smc-pso/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string

	controller string
	gains      []float64
	model      string
	integrator string
	dt         float64
	duration   float64
	seed       int64
	adaptive   bool

	theta1 float64
	omega1 float64
	theta2 float64
	omega2 float64
	pos    float64
	vel    float64

	live       bool
	frameRate  int
	plantPairs []string

	watch     bool
	iters     int
	particles int
	workers   int

	outDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dipsim",
		Short: "double inverted pendulum sliding mode control lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dipsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a closed-loop simulation",
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&controller, "controller", "", "controller type")
	runCmd.Flags().Float64SliceVar(&gains, "gains", nil, "controller gains")
	runCmd.Flags().StringVar(&model, "model", "", "plant model")
	runCmd.Flags().StringVar(&integrator, "integrator", "", "integrator")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "control period")
	runCmd.Flags().Float64Var(&duration, "time", 0, "duration")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	runCmd.Flags().BoolVar(&adaptive, "adaptive", false, "adaptive step size")
	runCmd.Flags().Float64Var(&theta1, "theta1", 0, "initial first joint angle")
	runCmd.Flags().Float64Var(&omega1, "omega1", 0, "initial first joint velocity")
	runCmd.Flags().Float64Var(&theta2, "theta2", 0, "initial second joint angle")
	runCmd.Flags().Float64Var(&omega2, "omega2", 0, "initial second joint velocity")
	runCmd.Flags().Float64Var(&pos, "pos", 0, "initial cart position")
	runCmd.Flags().Float64Var(&vel, "vel", 0, "initial cart velocity")
	runCmd.Flags().BoolVar(&live, "live", false, "render frames while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate for live view")
	runCmd.Flags().StringSliceVar(&plantPairs, "plant", nil, "plant parameter override name=value (repeatable)")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "optimize controller gains with particle swarm",
		RunE:  tuneGains,
	}
	tuneCmd.Flags().StringVar(&controller, "controller", "", "controller type")
	tuneCmd.Flags().IntVar(&iters, "iters", 0, "max iterations")
	tuneCmd.Flags().IntVar(&particles, "particles", 0, "swarm size")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel evaluations")
	tuneCmd.Flags().Int64Var(&seed, "seed", 0, "swarm seed")
	tuneCmd.Flags().BoolVar(&watch, "watch", false, "live convergence view")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	renderCmd := &cobra.Command{
		Use:   "render [run_id]",
		Short: "render a stored run to PNG files",
		Args:  cobra.ExactArgs(1),
		RunE:  renderRun,
	}
	renderCmd.Flags().StringVar(&outDir, "out", "plots", "output directory")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "cost breakdown of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or show one as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark the plant model across step sizes",
		RunE:  benchModel,
	}

	rootCmd.AddCommand(runCmd, tuneCmd, listCmd, plotCmd, renderCmd, analyzeCmd, exportCmd, presetsCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves preset, config file, then CLI flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("controller") {
		cfg.Controller = controller
		if !flags.Changed("gains") {
			// gains from a preset or config file belong to its controller
			if g := config.DefaultGains(cfg.Controller); g != nil {
				cfg.Gains = g
			}
		}
	}
	if flags.Changed("gains") {
		cfg.Gains = gains
	}
	if flags.Changed("model") {
		cfg.Model = model
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("adaptive") {
		cfg.Adaptive = adaptive
	}
	if flags.Changed("iters") {
		cfg.PSO.MaxIters = iters
	}
	if flags.Changed("particles") {
		cfg.PSO.SwarmSize = particles
	}
	if flags.Changed("workers") {
		cfg.PSO.Workers = workers
	}
	for _, f := range []struct {
		name string
		dst  *float64
		src  float64
	}{
		{"theta1", &cfg.InitState.Theta1, theta1},
		{"omega1", &cfg.InitState.Omega1, omega1},
		{"theta2", &cfg.InitState.Theta2, theta2},
		{"omega2", &cfg.InitState.Omega2, omega2},
		{"pos", &cfg.InitState.Pos, pos},
		{"vel", &cfg.InitState.Vel, vel},
	} {
		if flags.Changed(f.name) {
			*f.dst = f.src
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyPlantOverrides pushes name=value pairs into a model that supports
// live parameter adjustment.
func applyPlantOverrides(dyn dynamo.System, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}
	cfgable, ok := dyn.(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("model does not support plant parameter overrides")
	}
	for _, pair := range pairs {
		name, raw, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("plant override %q: want name=value", pair)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("plant override %q: %w", pair, err)
		}
		if err := cfgable.SetParam(name, v); err != nil {
			return err
		}
	}
	return nil
}

// buildRunner wires plant, integrator, controller and guards from config.
func buildRunner(cfg *config.Config, gains []float64, sev dynamo.Severity) (*sim.Runner, error) {
	dyn, err := cfg.BuildPlant()
	if err != nil {
		return nil, err
	}
	if err := applyPlantOverrides(dyn, plantPairs); err != nil {
		return nil, err
	}
	integ, err := cfg.BuildIntegrator()
	if err != nil {
		return nil, err
	}
	ctrl, err := cfg.BuildController(gains)
	if err != nil {
		return nil, err
	}
	r := sim.NewRunner(dyn, integ, ctrl)
	if ham, ok := dyn.(dynamo.Hamiltonian); ok {
		r.SetGuards(sim.DefaultGuards(ham, cfg.InitStateVector(),
			cfg.Guards.MaxCartPos, cfg.Guards.MaxCartVel, cfg.Guards.MaxAngular,
			cfg.Guards.EnergyEps, sev))
	}
	return r, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	runner, err := buildRunner(cfg, nil, cfg.GuardSeverity())
	if err != nil {
		return err
	}

	var renderer *tui.LiveRenderer
	if live {
		renderer = tui.NewLiveRenderer(frameRate)
		renderer.Start()
		defer renderer.Stop()
		runner.OnStep = renderer.OnStep
	}

	if !live {
		fmt.Printf("running %s / %s / %s...\n", cfg.Model, cfg.Integrator, cfg.Controller)
	}
	start := time.Now()
	result, err := runner.Run(context.Background(), cfg.InitStateVector(), cfg.SimConfig())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	eval := cost.NewEvaluator(cfg.Cost)
	breakdown := eval.Evaluate(result, cfg.Dt)

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.SaveRun(store.RunMetadata{
		Model:      cfg.Model,
		Integrator: cfg.Integrator,
		Controller: cfg.Controller,
		Gains:      cfg.Gains,
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Cost:       &breakdown,
	}, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("status: %s\n", result.Status)
	if result.FatalKind != "" {
		fmt.Printf("fatal guard: %s\n", result.FatalKind)
	}
	if result.Err != nil {
		fmt.Printf("error: %v\n", result.Err)
	}
	fmt.Printf("steps: %d  violations: %d  energy drift: %.3g\n",
		result.StepsTaken, len(result.Violations), result.EnergyDrift)
	printBreakdown(breakdown)
	return nil
}

func printBreakdown(b cost.Breakdown) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nCOMPONENT\tCOST")
	fmt.Fprintf(w, "tracking\t%.6g\n", b.Tracking)
	fmt.Fprintf(w, "effort\t%.6g\n", b.Effort)
	fmt.Fprintf(w, "chattering\t%.6g\n", b.Chattering)
	fmt.Fprintf(w, "penalty\t%.6g\n", b.Penalty)
	fmt.Fprintf(w, "total\t%.6g\n", b.Total)
	w.Flush()
}

// tuneObjective scores one gain vector by simulating it against the
// configured scenario. Fatal runs map to the cost sentinel.
func tuneObjective(cfg *config.Config, eval *cost.Evaluator) pso.Objective {
	return func(ctx context.Context, gains []float64) float64 {
		runner, err := buildRunner(cfg, gains, dynamo.SeverityFatal)
		if err != nil {
			return cost.Sentinel
		}
		result, err := runner.Run(ctx, cfg.InitStateVector(), cfg.SimConfig())
		if err != nil {
			return cost.Sentinel
		}
		return eval.Evaluate(result, cfg.Dt).Total
	}
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.PSO.Seed = seed
	}

	bounds, err := cfg.GainBounds()
	if err != nil {
		return err
	}
	tuner, err := pso.NewTuner(bounds, cfg.PSO)
	if err != nil {
		return err
	}
	eval := cost.NewEvaluator(cfg.Cost)
	obj := tuneObjective(cfg, eval)

	var result *pso.TuneResult
	if watch {
		stats := make(chan pso.IterStats, cfg.PSO.MaxIters)
		tuner.OnIteration = func(st pso.IterStats) { stats <- st }

		errc := make(chan error, 1)
		go func() {
			var runErr error
			result, runErr = tuner.Run(context.Background(), obj)
			close(stats)
			errc <- runErr
		}()

		prog := tea.NewProgram(tui.NewTuneModel(cfg.Controller, cfg.PSO.MaxIters, stats))
		if _, err := prog.Run(); err != nil {
			return err
		}
		if err := <-errc; err != nil {
			return err
		}
	} else {
		fmt.Printf("tuning %s: %d particles, up to %d iterations\n",
			cfg.Controller, cfg.PSO.SwarmSize, cfg.PSO.MaxIters)
		tuner.OnIteration = func(st pso.IterStats) {
			fmt.Printf("  iter %3d  best %.6g  mean %.6g\n", st.Iter, st.BestCost, st.MeanCost)
		}
		result, err = tuner.Run(context.Background(), obj)
		if err != nil {
			return err
		}
	}

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.SaveTuning(store.TuneMetadata{
		Controller: cfg.Controller,
		Seed:       cfg.PSO.Seed,
	}, result)
	if err != nil {
		return err
	}

	if err := viz.SaveConvergence(filepath.Join(dataDir, id), result.History); err != nil {
		return err
	}

	fmt.Printf("\nsession: %s\n", id)
	fmt.Printf("best cost: %.6g after %d iterations (converged: %v)\n",
		result.BestCost, result.Iterations, result.Converged)
	fmt.Printf("best gains: %v\n", result.BestGains)
	if result.AllFatalIters > 0 {
		fmt.Printf("warning: %d iterations had every particle unstable\n", result.AllFatalIters)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tMODEL\tCTRL\tINTEG\tSTATUS\tCOST")
	for _, run := range runs {
		costStr := "-"
		if run.Cost != nil {
			costStr = fmt.Sprintf("%.4g", run.Cost.Total)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Model,
			run.Controller,
			run.Integrator,
			run.Status,
			costStr,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	_, states, forces, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s (%s / %s)\n\n", meta.ID, meta.Controller, meta.Model)

	series := []struct {
		caption string
		idx     int
	}{
		{"cart position (m)", dynamo.IdxCartPos},
		{"first joint angle (rad)", dynamo.IdxTheta1},
		{"second joint angle (rad)", dynamo.IdxTheta2},
	}
	for _, s := range series {
		data := make([]float64, len(states))
		for i := range states {
			data[i] = states[i][s.idx]
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		))
		fmt.Println()
	}
	fmt.Println(asciigraph.Plot(forces,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("control force (N)"),
	))
	return nil
}

func renderRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	times, states, forces, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to render")
	}

	traj := dynamo.Trajectory{Times: times, States: states}
	for _, f := range forces[1:] { // first sample has no force
		traj.Controls = append(traj.Controls, dynamo.Control{f})
	}
	if err := viz.SaveTrajectory(outDir, traj); err != nil {
		return err
	}
	if len(meta.Gains) >= 4 {
		sf := control.NewSurface(meta.Gains[0], meta.Gains[1], meta.Gains[2], meta.Gains[3])
		surface := make([]float64, len(states))
		for i, x := range states {
			surface[i] = sf.Value(x)
		}
		if err := viz.SaveSurface(outDir, times, surface); err != nil {
			return err
		}
	}
	fmt.Printf("wrote plots to %s/\n", outDir)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	times, states, forces, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to analyze")
	}

	res := &dynamo.Result{
		Trajectory: dynamo.Trajectory{Times: times, States: states},
		Status:     dynamo.StatusCompleted,
	}
	for _, f := range forces[1:] {
		res.Trajectory.Controls = append(res.Trajectory.Controls, dynamo.Control{f})
	}

	dt := meta.Dt
	if dt <= 0 && len(times) > 1 {
		dt = times[1] - times[0]
	}
	eval := cost.NewEvaluator(cost.DefaultWeights())
	printBreakdown(eval.Evaluate(res, dt))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Println("presets:")
		for _, name := range config.ListPresets() {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}
	p := config.GetPreset(args[0])
	if p == nil {
		return fmt.Errorf("unknown preset: %s", args[0])
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func benchModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %s / %s\n\n", cfg.Model, cfg.Integrator)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DURATION\tDT\tSTEPS\tTIME\tSTEPS/SEC\tVS FINEST")

	for _, d := range []float64{1.0, 5.0, 10.0} {
		// final state at the finest step is the accuracy reference for the
		// coarser runs of the same horizon
		var finest dynamo.State
		for _, step := range []float64{0.001, 0.005, 0.01} {
			bcfg := *cfg
			bcfg.Duration = d
			bcfg.Dt = step
			bcfg.MaxDt = step

			runner, err := buildRunner(&bcfg, nil, dynamo.SeverityWarn)
			if err != nil {
				return err
			}
			start := time.Now()
			result, err := runner.Run(context.Background(), bcfg.InitStateVector(), bcfg.SimConfig())
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			rate := float64(result.StepsTaken) / elapsed.Seconds()

			final := result.Trajectory.States[len(result.Trajectory.States)-1]
			dev := "-"
			if finest == nil {
				finest = final
			} else {
				dev = fmt.Sprintf("%.3g", final.Sub(finest).Norm())
			}
			fmt.Fprintf(w, "%.1fs\t%.3fs\t%d\t%v\t%.0f\t%s\n", d, step, result.StepsTaken, elapsed, rate, dev)
		}
	}
	return w.Flush()
}
