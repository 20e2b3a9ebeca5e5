package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/fwcbf/internal/automation"
	"github.com/san-kum/fwcbf/internal/config"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/experiment"
	"github.com/san-kum/fwcbf/internal/export"
	"github.com/san-kum/fwcbf/internal/log"
	"github.com/san-kum/fwcbf/internal/storage"
	"github.com/san-kum/fwcbf/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string
	theme    string

	preset     string
	configFile string
	episodes   int
	seed       int64
	barrier    string
	selection  string
	lambda     float64
	safetyDist float64
	dt         float64
	maxTime    float64
	workers    int
	timeWarp   float64

	runName string
	noSave  bool
	quiet   bool
	episode int
)

var presetInfo = map[string]string{
	"head_on":            "aircraft fly straight at each other, filter on the ownship",
	"head_on_stationary": "zero speed, episode runs to the time limit",
	"collision":          "aircraft start 2 m apart, collision on the first step",
	"crossing":           "intruder crosses the ownship's path at right angles",
	"random":             "20 episodes from sampled head-on-ish poses",
}

// main registers the commands and runs the root command with a context
// canceled on interrupt.
func main() {
	rootCmd := &cobra.Command{
		Use:          "fwcbf",
		Short:        "fixed-wing collision avoidance with a control barrier function safety filter",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".fwcbf", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", viz.ThemeRadar.Name, "color theme")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run episodes and save the result",
		Args:  cobra.NoArgs,
		RunE:  runExperiment,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&workers, "workers", 1, "episodes run in parallel")
	runCmd.Flags().StringVar(&runName, "name", "", "run name (default: preset name)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the result")
	runCmd.Flags().BoolVar(&quiet, "quiet", false, "print only the run id")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch one paced episode",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().Float64Var(&timeWarp, "warp", 1, "simulated seconds per wall-clock second")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a yaml scenario of experiments and sweeps",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print the report of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportXLSXCmd := &cobra.Command{
		Use:   "export-xlsx [run_id] [file]",
		Short: "export a run to an excel workbook",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  exportXLSX,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id] [file]",
		Short: "draw the ground tracks of one episode as svg",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().IntVar(&episode, "episode", 0, "episode index")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, p := range config.ListPresets() {
				fmt.Fprintf(w, "%s\t%s\n", p, presetInfo[p])
			}
			return w.Flush()
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "validate a configuration and describe the safety filter",
		Args:  cobra.NoArgs,
		RunE:  checkConfig,
	}
	addConfigFlags(checkCmd)

	rootCmd.AddCommand(runCmd, liveCmd, scenarioCmd, listCmd, showCmd, exportCmd, exportXLSXCmd, exportSVGCmd, presetsCmd, checkCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&preset, "preset", "", "start from a preset configuration")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.IntVar(&episodes, "episodes", 1, "number of episodes")
	f.Int64Var(&seed, "seed", 0, "seed for sampled starting poses")
	f.StringVar(&barrier, "barrier", config.BarrierTurn, "safety filter (turn, straight, none)")
	f.StringVar(&selection, "selection", "max_margin", "override selection (max_margin, nearest_safe)")
	f.Float64Var(&lambda, "lambda", 0.99, "barrier decay rate in (0, 1)")
	f.Float64Var(&safetyDist, "safety-dist", config.DefaultSafetyDist, "minimum separation in meters")
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep in seconds")
	f.Float64Var(&maxTime, "time", config.DefaultMaxSimTime, "episode time limit in seconds")
}

// loadConfig resolves the preset, then the config file, then any flag the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("episodes") {
		cfg.Episodes = episodes
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("barrier") {
		cfg.Barrier.Kind = barrier
	}
	if flags.Changed("selection") {
		cfg.Barrier.Selection = selection
	}
	if flags.Changed("lambda") {
		cfg.Barrier.Lambda = lambda
	}
	if flags.Changed("safety-dist") {
		cfg.Env.SafetyDist = safetyDist
	}
	if flags.Changed("dt") {
		cfg.Env.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Env.MaxSimTime = maxTime
	}
	if flags.Changed("warp") {
		cfg.Env.TimeWarp = timeWarp
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() (*log.Logger, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return log.New(logLevel, dataDir)
}

func styles() (viz.Styles, error) {
	t, err := viz.GetTheme(theme)
	if err != nil {
		return viz.Styles{}, fmt.Errorf("%w (available: %v)", err, viz.ThemeNames())
	}
	return viz.NewStyles(t), nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := styles()
	if err != nil {
		return err
	}
	lg, err := newLogger()
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.WithLogger(lg))
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("running %d episode(s)...\n", cfg.Episodes)
	}
	var res *experiment.Result
	if workers > 1 {
		res, err = exp.RunParallel(cmd.Context(), workers)
	} else {
		res, err = exp.Run(cmd.Context())
	}
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Print(viz.Report(res, st))
	}
	if noSave {
		return nil
	}

	name := runName
	if name == "" {
		name = preset
	}
	if name == "" {
		name = "run"
	}
	store := storage.New(dataDir)
	store.SetLogger(lg)
	runID, err := store.Save(name, res)
	if err != nil {
		return err
	}
	if quiet {
		fmt.Println(runID)
	} else {
		fmt.Printf("run id: %s\n", runID)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := styles()
	if err != nil {
		return err
	}
	lg, err := newLogger()
	if err != nil {
		return err
	}

	cfg.Episodes = 1
	if cfg.Env.TimeWarp <= 0 {
		cfg.Env.TimeWarp = timeWarp
	}

	feed := viz.NewFeed(64)
	defer feed.Stop()
	exp, err := experiment.New(cfg,
		experiment.WithLogger(lg),
		experiment.WithObserver(func() dynamo.Observer { return feed }))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		res, err := exp.Run(ctx)
		feed.Finish(res, err)
	}()
	go func() {
		<-feed.Stopped()
		cancel()
	}()

	first := exp.StartState(0)
	m := viz.NewLiveModel(feed, viz.LiveOptions{
		Goal1:      first.Goal1,
		Goal2:      first.Goal2,
		SafetyDist: cfg.Env.SafetyDist,
		MaxVal:     cfg.Barrier.MaxVal,
		MaxSimTime: cfg.Env.MaxSimTime,
		Theme:      st.Theme,
	})
	_, err = tea.NewProgram(m).Run()
	return err
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	lg, err := newLogger()
	if err != nil {
		return err
	}
	store := storage.New(dataDir)
	store.SetLogger(lg)

	fmt.Printf("scenario: %s\n", sc.Name)
	if sc.Description != "" {
		fmt.Printf("%s\n", sc.Description)
	}

	steps, sweeps, err := automation.RunAll(cmd.Context(), sc, automation.Options{Logger: lg, Store: store})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nSTEP\tEPISODES\tCOLLISIONS\tGOALS\tTIMEOUTS\tOVERRIDES\tMIN SEP\tRUN")
	for _, s := range steps {
		sum := s.Result.Summary
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%s\n",
			s.Name, sum.Episodes, sum.Collisions, sum.Goals, sum.Timeouts, sum.Overrides, sum.MinSeparation, s.RunID)
	}
	for i, sweep := range sweeps {
		fmt.Fprintf(w, "\nSWEEP %s\tVALUE\tCOLLISIONS\tOVERRIDES\tMIN SEP\n", sc.Sweeps[i].Name)
		for _, r := range sweep {
			fmt.Fprintf(w, "%s\t%g\t%d\t%d\t%.2f\n",
				r.Param, r.Value, r.Summary.Collisions, r.Summary.Overrides, r.Summary.MinSeparation)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	clean, collided := automation.CollisionCounts(steps)
	fmt.Printf("\n%d step(s) without collision, %d with\n", clean, collided)
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
	fmt.Fprintln(w, "ID\tTIME\tBARRIER\tEPISODES\tCOLLISIONS\tOVERRIDES\tMIN SEP")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.2f\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Barrier,
			run.Summary.Episodes,
			run.Summary.Collisions,
			run.Summary.Overrides,
			run.Summary.MinSeparation,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st, err := styles()
	if err != nil {
		return err
	}

	store := storage.New(dataDir)
	meta, err := store.Load(runID)
	if err != nil {
		return err
	}
	cfg, err := store.LoadConfig(runID)
	if err != nil {
		return err
	}
	episodes, err := store.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("saved: %s\n\n", meta.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Print(viz.Report(&experiment.Result{
		Config:   cfg,
		Episodes: episodes,
		Summary:  meta.Summary,
		Started:  meta.Timestamp,
		Wall:     meta.Wall,
	}, st))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportXLSX(cmd *cobra.Command, args []string) error {
	runID := args[0]
	path := runID + ".xlsx"
	if len(args) > 1 {
		path = args[1]
	}

	lg, err := newLogger()
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	st.SetLogger(lg)
	if err := st.ExportXLSX(runID, path); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	fmt.Printf("exported %s to %s\n", runID, abs)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]
	path := fmt.Sprintf("%s_ep%d.svg", runID, episode)
	if len(args) > 1 {
		path = args[1]
	}

	st := storage.New(dataDir)
	episodes, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if episode < 0 || episode >= len(episodes) {
		return fmt.Errorf("episode %d out of range [0, %d)", episode, len(episodes))
	}

	ep := episodes[episode]
	svg := export.EpisodeSVG(ep, ep.Goal1, ep.Goal2, 800, 600)
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func checkConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cat, err := cfg.Catalog()
	if err != nil {
		return err
	}
	b, err := cfg.BuildBarrier(cat)
	if err != nil {
		return err
	}

	fmt.Println("config ok")
	fmt.Printf("env:      %+v\n", cfg.Env)
	fmt.Printf("actions:  %s\n", cat)
	fmt.Printf("joint:    %d joint actions\n", cat.Len()*cat.Len())
	if b == nil {
		fmt.Println("filter:   none")
	} else {
		fmt.Printf("filter:   %s\n", b)
		fmt.Printf("          lambda=%g selection=%s lookahead=%d steps\n", b.Lambda(), b.Selection(), b.LookaheadSteps())
	}
	fmt.Printf("ownship:  %s from %+v\n", cfg.Ownship.Controller, cfg.Ownship.Start)
	fmt.Printf("intruder: %s from %+v\n", cfg.Intruder.Controller, cfg.Intruder.Start)
	if cfg.Reset != nil {
		fmt.Printf("reset:    sampled, seed %d\n", cfg.Seed)
	}
	fmt.Printf("episodes: %d\n", cfg.Episodes)
	return nil
}
