package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"anyon/internal/decoder"
	"anyon/internal/lattice"
	"anyon/internal/model"
	"anyon/internal/storage"
	anyonapi "anyon/pkg/anyon"
)

const exportsDir = "exports"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "experiment":
		return runExperiment(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "steps":
		return runSteps(ctx, args[1:])
	case "report":
		return runReport(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "summary":
		return runSummary(ctx, args[1:])
	case "rule":
		return runRule(args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: anyonctl <init|reset|run|experiment|runs|steps|report|export|summary|rule> [flags]", msg)
}

func addStoreFlags(fs *flag.FlagSet) (storeKind, dbPath *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", "anyon.db", "sqlite database path")
	return storeKind, dbPath
}

func newClient(storeKind, dbPath string) (*anyonapi.Client, error) {
	return anyonapi.New(anyonapi.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		ExportsDir: exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config YAML path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	size := fs.Int("size", 0, "lattice side length L")
	colony := fs.Int("colony", 0, "colony side length Q")
	period := fs.Int("period", 0, "base work period U")
	selfThreshold := fs.Float64("fc", 0, "center flip threshold")
	neighborThreshold := fs.Float64("fn", 0, "neighbor flip threshold")
	errorRate := fs.Float64("p", 0, "qubit error probability")
	seed := fs.Int64("seed", 1, "rng seed")
	maxSteps := fs.Int("max-steps", 0, "step budget")
	recordSteps := fs.Bool("record-steps", false, "persist per-step diagnostics")
	trace := fs.Bool("trace", false, "print the per-step series (implies -record-steps)")
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	overrideRunFlags(&req, setFlags, runFlagValues{
		runID:             *runID,
		size:              *size,
		colony:            *colony,
		period:            *period,
		selfThreshold:     *selfThreshold,
		neighborThreshold: *neighborThreshold,
		errorRate:         *errorRate,
		seed:              *seed,
		maxSteps:          *maxSteps,
		recordSteps:       *recordSteps,
	})
	if *trace {
		req.RecordSteps = true
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	outcome := summary.Outcome
	fmt.Printf("run %s\n", summary.RunID)
	fmt.Printf("  injected errors %s, steps run %s\n",
		humanize.Comma(int64(outcome.InjectedErrors)), humanize.Comma(int64(outcome.StepsRun)))
	if outcome.Cleared {
		fmt.Printf("  cleared at step %s\n", humanize.Comma(int64(outcome.ClearedStep)))
	} else {
		fmt.Printf("  not cleared: residual syndrome %d, residual errors %d\n",
			outcome.ResidualSyndrome, outcome.ResidualErrors)
	}
	fmt.Printf("  logical error %v\n", outcome.LogicalError)
	if *trace {
		printStepTable(summary.Steps)
	}
	return nil
}

func runExperiment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("experiment", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional experiment config YAML path")
	experimentID := fs.String("experiment-id", "", "explicit experiment id (optional)")
	size := fs.Int("size", 0, "lattice side length L")
	colony := fs.Int("colony", 0, "colony side length Q")
	period := fs.Int("period", 0, "base work period U")
	selfThreshold := fs.Float64("fc", 0, "center flip threshold")
	neighborThreshold := fs.Float64("fn", 0, "neighbor flip threshold")
	errorRate := fs.Float64("p", 0, "qubit error probability")
	trials := fs.Int("trials", 0, "trial count")
	maxSteps := fs.Int("max-steps", 0, "step budget per trial")
	workers := fs.Int("workers", 0, "worker count")
	seed := fs.Int64("seed", 1, "rng seed")
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultExperimentRequest(*configPath)
	if err != nil {
		return err
	}
	overrideExperimentFlags(&req, setFlags, experimentFlagValues{
		experimentID:      *experimentID,
		size:              *size,
		colony:            *colony,
		period:            *period,
		selfThreshold:     *selfThreshold,
		neighborThreshold: *neighborThreshold,
		errorRate:         *errorRate,
		trials:            *trials,
		maxSteps:          *maxSteps,
		workers:           *workers,
		seed:              *seed,
	})

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	if isatty.IsTerminal(os.Stdout.Fd()) && req.Trials > 0 {
		fmt.Printf("running %s trials on %d workers...\n",
			humanize.Comma(int64(req.Trials)), req.Workers)
	}

	summary, err := client.Experiment(ctx, req)
	if err != nil {
		return err
	}
	s := summary.Stats
	fmt.Printf("experiment %s\n", summary.ExperimentID)
	fmt.Printf("  trials %s, cleared %s (%.1f%%), logical errors %s (%.1f%%)\n",
		humanize.Comma(int64(s.Trials)),
		humanize.Comma(int64(s.Cleared)), 100*s.ClearRate,
		humanize.Comma(int64(s.LogicalErrors)), 100*s.LogicalRate)
	if s.Cleared > 0 {
		fmt.Printf("  steps to clear avg=%.1f std=%.1f min=%d max=%d\n",
			s.AvgClearSteps, s.StdClearSteps, s.MinClearSteps, s.MaxClearSteps)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum run count to list")
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.Runs(ctx, anyonapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}
	for _, run := range runs {
		state := "not cleared"
		if run.Outcome.Cleared {
			state = fmt.Sprintf("cleared@%d", run.Outcome.ClearedStep)
		}
		fmt.Printf("%s  %s  L=%d Q=%d p=%g seed=%d  %s logical=%v\n",
			run.ID, run.CreatedAtUTC,
			run.Decoder.Size, run.Decoder.Colony, run.ErrorRate, run.Seed,
			state, run.Outcome.LogicalError)
	}
	return nil
}

func runSteps(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("steps", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "maximum step count to print (0 prints all)")
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	steps, err := client.Steps(ctx, anyonapi.StepsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	printStepTable(steps)
	return nil
}

func printStepTable(steps []model.StepRecord) {
	fmt.Println("step  syndrome  errors  rule-flips  fired-flips  pending  logical")
	for _, step := range steps {
		pending := make([]string, 0, len(step.PendingByLevel))
		for _, p := range step.PendingByLevel {
			pending = append(pending, fmt.Sprintf("%d", p))
		}
		fmt.Printf("%4d  %8d  %6d  %10d  %11d  %7s  %v\n",
			step.Step, step.SyndromeWeight, step.ErrorWeight,
			step.RuleFlips, step.FiredFlips,
			strings.Join(pending, "/"), step.LogicalError)
	}
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	experimentID := fs.String("experiment-id", "", "experiment id")
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Report(ctx, *experimentID, os.Stdout)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to export")
	experimentID := fs.String("experiment-id", "", "experiment id to export")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "", "output directory (defaults to ./exports)")
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Export(ctx, anyonapi.ExportRequest{
		RunID:        *runID,
		ExperimentID: *experimentID,
		Latest:       *latest,
		OutDir:       *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", summary.ID, summary.Directory)
	return nil
}

func runSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	name := fs.String("name", "", "lattice shape name, L<size>-Q<colony>")
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.CodeSummary(ctx, *name)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", summary.Name, summary.Description)
	fmt.Printf("  best clear rate %.1f%%, best logical rate %.1f%%, at p=%g\n",
		100*summary.BestClearRate, 100*summary.BestLogicalRate, summary.ObservedAtPError)
	return nil
}

// runRule evaluates the local routing rule for one cell state, for
// inspecting decoder behavior without building a lattice.
func runRule(args []string) error {
	fs := flag.NewFlagSet("rule", flag.ContinueOnError)
	x := fs.Int("x", 0, "colony x coordinate")
	y := fs.Int("y", 0, "colony y coordinate")
	colony := fs.Int("colony", 3, "colony side length Q")
	syndrome := fs.Int("syndrome", 1, "own syndrome bit")
	neighbors := fs.String("neighbors", "00000000", "neighbor syndrome bits in order nw,n,ne,w,e,sw,s,se")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if len(*neighbors) != lattice.MooreCount {
		return fmt.Errorf("neighbors must be %d bits, got %q", lattice.MooreCount, *neighbors)
	}
	var bits [8]uint8
	for i, c := range *neighbors {
		switch c {
		case '0':
			bits[i] = 0
		case '1':
			bits[i] = 1
		default:
			return fmt.Errorf("neighbors must contain only 0 and 1, got %q", *neighbors)
		}
	}

	dir := decoder.Route(*x, *y, *colony, uint8(*syndrome), bits)
	fmt.Printf("route(x=%d y=%d q=%d syndrome=%d neighbors=%s) = %s\n",
		*x, *y, *colony, *syndrome, *neighbors, dir)
	return nil
}
