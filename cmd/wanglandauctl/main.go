package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"wanglandau/internal/stats"
	"wanglandau/internal/storage"
	wlapi "wanglandau/pkg/wanglandau"
)

const (
	resultsDir = "results"
	exportsDir = "exports"
)

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
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "density":
		return runDensity(ctx, args[1:])
	case "convergence":
		return runConvergence(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "systems":
		return runSystems(ctx, args[1:])
	case "profiles":
		return runProfiles(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "wanglandau.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := wlapi.New(wlapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		ResultsDir: resultsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "wanglandau.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := wlapi.New(wlapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		ResultsDir: resultsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	systemName := fs.String("system", "coin", "sample system: coin|dice|harmonic|paramagnet-N")
	scheduleName := fs.String("schedule", "geometric", "modification factor schedule: geometric|one-over-t")
	flatnessName := fs.String("flatness", "fraction", "histogram flatness criterion: fraction|rms")
	seed := fs.Int64("seed", 1, "rng seed")
	seedList := fs.String("seeds", "", "comma-separated seed list for a supervised batch")
	maxSteps := fs.Uint64("max-steps", 10_000_000, "proposal budget")
	sweepLen := fs.Int("sweep-len", 1, "proposals per sweep between flatness checks")
	lnF0 := fs.Float64("ln-f0", 1.0, "initial modification factor ln f")
	lnFMin := fs.Float64("ln-f-min", 1e-8, "terminal ln f backstop")
	flat := fs.Float64("flat", 0.8, "flatness threshold in (0,1)")
	alpha := fs.Float64("alpha", 0.5, "schedule shrink factor")
	tol := fs.Float64("tol", 1e-8, "schedule convergence tolerance")
	profileName := fs.String("profile", "", "named experiment profile (see profiles list)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "wanglandau.db", "sqlite database path")
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
	if *configPath == "" {
		req = wlapi.RunRequest{
			System:   *systemName,
			Schedule: *scheduleName,
			Flatness: *flatnessName,
			RunID:    *runID,
			Seed:     *seed,
			MaxSteps: *maxSteps,
			SweepLen: *sweepLen,
			LnF0:     *lnF0,
			LnFMin:   *lnFMin,
			Flat:     *flat,
			Alpha:    *alpha,
			Tol:      *tol,
		}
	} else {
		err := overrideFromFlags(&req, setFlags, map[string]any{
			"run-id":    *runID,
			"system":    *systemName,
			"schedule":  *scheduleName,
			"flatness":  *flatnessName,
			"seed":      *seed,
			"max-steps": *maxSteps,
			"sweep-len": *sweepLen,
			"ln-f0":     *lnF0,
			"ln-f-min":  *lnFMin,
			"flat":      *flat,
			"alpha":     *alpha,
			"tol":       *tol,
		})
		if err != nil {
			return err
		}
	}
	if *profileName != "" {
		profile, err := resolveProfile(*profileName)
		if err != nil {
			return err
		}
		applyProfile(&req, profile)
	}

	client, err := wlapi.New(wlapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		ResultsDir: resultsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if *seedList != "" {
		if setFlags["seed"] {
			return errors.New("use either --seed or --seeds, not both")
		}
		if req.RunID != "" {
			return errors.New("run-id cannot be combined with --seeds")
		}
		seeds, err := parseSeeds(*seedList)
		if err != nil {
			return err
		}
		reqs := make([]wlapi.RunRequest, 0, len(seeds))
		for _, s := range seeds {
			r := req
			r.Seed = s
			reqs = append(reqs, r)
		}
		summaries, err := client.RunBatch(ctx, reqs)
		if err != nil {
			return err
		}
		for i, summary := range summaries {
			fmt.Printf("run completed run_id=%s system=%s seed=%d steps=%s epochs=%d converged=%t final_ln_f=%.6e\n",
				summary.RunID,
				summary.System,
				reqs[i].Seed,
				humanize.Comma(int64(summary.Steps)),
				summary.Epochs,
				summary.Converged,
				summary.FinalLnF,
			)
		}
		return nil
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("run completed run_id=%s system=%s schedule=%s flatness=%s seed=%d\n",
		summary.RunID, summary.System, req.Schedule, req.Flatness, req.Seed)
	fmt.Printf("steps=%s epochs=%d converged=%t final_ln_f=%.6e\n",
		humanize.Comma(int64(summary.Steps)), summary.Epochs, summary.Converged, summary.FinalLnF)
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(resultsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s system=%s schedule=%s flatness=%s seed=%d steps=%s epochs=%d converged=%t final_ln_f=%.6e\n",
			e.RunID,
			e.CreatedAtUTC,
			e.System,
			e.Schedule,
			e.Flatness,
			e.Seed,
			humanize.Comma(int64(e.Steps)),
			e.Epochs,
			e.Converged,
			e.FinalLnF,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	jsonOut := fs.Bool("json", false, "emit run detail as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "wanglandau.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("show requires --run-id or --latest")
	}

	client, err := wlapi.New(wlapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		ResultsDir: resultsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	detail, err := client.ShowRun(ctx, wlapi.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	}

	rec := detail.Run
	fmt.Printf("run_id=%s system=%s seed=%d created_at=%s\n", rec.ID, rec.System, rec.Seed, rec.CreatedAtUTC)
	fmt.Printf("schedule=%s alpha=%g tol=%g flatness=%s flat=%g\n",
		rec.Schedule, rec.Params.Alpha, rec.Params.Tol, rec.Flatness, rec.Params.Flat)
	fmt.Printf("ln_f0=%g ln_f_min=%g sweep_len=%d max_steps=%s\n",
		rec.Params.LnF0, rec.Params.LnFMin, rec.Params.SweepLen, humanize.Comma(int64(rec.MaxSteps)))
	fmt.Printf("steps=%s epochs=%d converged=%t final_ln_f=%.6e\n",
		humanize.Comma(int64(rec.Steps)), rec.Epochs, rec.Converged, rec.FinalLnF)
	for _, epoch := range detail.Epochs {
		fmt.Printf("epoch=%d ln_f=%.6e steps=%d min_visits=%d mean_visits=%.1f max_visits=%d\n",
			epoch.Epoch, epoch.LnF, epoch.Steps, epoch.MinVisits, epoch.MeanVisits, epoch.MaxVisits)
	}
	return nil
}

func runDensity(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("density", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show density for the most recent run from run index")
	normalized := fs.Bool("normalized", false, "anchor ln g at zero for the first bin")
	csvOut := fs.Bool("csv", false, "emit density table as CSV")
	jsonOut := fs.Bool("json", false, "emit density record as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "wanglandau.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("density requires --run-id or --latest")
	}

	client, err := wlapi.New(wlapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		ResultsDir: resultsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	density, err := client.Density(ctx, wlapi.DensityRequest{RunID: *runID, Latest: *latest, Normalized: *normalized})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(density)
	}

	labeled := len(density.BinValues) == len(density.LnG) && len(density.BinValues) > 0
	if *csvOut {
		writer := csv.NewWriter(os.Stdout)
		header := []string{"bin", "ln_g", "visits"}
		if labeled {
			header = []string{"bin", "bin_value", "ln_g", "visits"}
		}
		if err := writer.Write(header); err != nil {
			return err
		}
		for i, lnG := range density.LnG {
			var visits uint64
			if i < len(density.Histogram) {
				visits = density.Histogram[i]
			}
			row := []string{
				strconv.Itoa(i),
				strconv.FormatFloat(lnG, 'f', -1, 64),
				strconv.FormatUint(visits, 10),
			}
			if labeled {
				row = []string{
					strconv.Itoa(i),
					strconv.FormatFloat(density.BinValues[i], 'f', -1, 64),
					strconv.FormatFloat(lnG, 'f', -1, 64),
					strconv.FormatUint(visits, 10),
				}
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	}

	fmt.Printf("run_id=%s system=%s bins=%d\n", density.RunID, density.System, density.Bins)
	for i, lnG := range density.LnG {
		var visits uint64
		if i < len(density.Histogram) {
			visits = density.Histogram[i]
		}
		if labeled {
			fmt.Printf("bin=%d bin_value=%g ln_g=%.6f visits=%d\n", i, density.BinValues[i], lnG, visits)
			continue
		}
		fmt.Printf("bin=%d ln_g=%.6f visits=%d\n", i, lnG, visits)
	}
	return nil
}

func runConvergence(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convergence", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "report on the most recent run from run index")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "wanglandau.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("convergence requires --run-id or --latest")
	}

	client, err := wlapi.New(wlapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		ResultsDir: resultsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	report, err := client.ConvergenceReport(ctx, wlapi.ConvergenceRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	fmt.Print(report)
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 50, "max epochs to print (0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "wanglandau.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("diagnostics requires --run-id or --latest")
	}

	client, err := wlapi.New(wlapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		ResultsDir: resultsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, wlapi.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics records")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diagnostics)
	}

	for _, epoch := range diagnostics {
		fmt.Printf("epoch=%d ln_f=%.6e steps=%d min_visits=%d mean_visits=%.1f max_visits=%d\n",
			epoch.Epoch, epoch.LnF, epoch.Steps, epoch.MinVisits, epoch.MeanVisits, epoch.MaxVisits)
	}
	return nil
}

func runSystems(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("systems", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit systems list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "wanglandau.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := wlapi.New(wlapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		ResultsDir: resultsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	systems, err := client.Systems(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(systems)
	}

	for _, item := range systems {
		best := "n/a"
		if item.Runs > 0 {
			best = fmt.Sprintf("%.6e", item.BestFinalLnF)
		}
		fmt.Printf("system=%s bins=%d runs=%d best_final_ln_f=%s description=%s\n",
			item.Name, item.Bins, item.Runs, best, item.Description)
	}
	return nil
}

func runProfiles(_ context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("profiles requires a subcommand: list|show")
	}
	switch args[0] {
	case "list":
		for _, profile := range listProfiles() {
			fmt.Printf("id=%s system=%s schedule=%s flatness=%s ln_f_min=%g description=%s\n",
				profile.ID,
				profile.System,
				profile.Schedule,
				profile.Flatness,
				profile.LnFMin,
				profile.Description,
			)
		}
		return nil
	case "show":
		fs := flag.NewFlagSet("profiles show", flag.ContinueOnError)
		id := fs.String("id", "", "profile id")
		asJSON := fs.Bool("json", false, "print resolved profile as JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("profiles show requires --id")
		}
		profile, err := resolveProfile(*id)
		if err != nil {
			return err
		}
		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(profile)
		}
		fmt.Printf("id=%s system=%s schedule=%s flatness=%s seed=%d max_steps=%d sweep_len=%d ln_f0=%g ln_f_min=%g flat=%g alpha=%g tol=%g description=%s\n",
			profile.ID,
			profile.System,
			profile.Schedule,
			profile.Flatness,
			profile.Seed,
			profile.MaxSteps,
			profile.SweepLen,
			profile.LnF0,
			profile.LnFMin,
			profile.Flat,
			profile.Alpha,
			profile.Tol,
			profile.Description,
		)
		return nil
	default:
		return fmt.Errorf("unknown profiles subcommand: %s", args[0])
	}
}

func runExport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}
	if *latest {
		entries, err := stats.ListRunIndex(resultsDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no runs available to export")
		}
		*runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(resultsDir, *runID, *outDir)
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", *runID, filepath.Clean(exportedDir))
	return nil
}

func parseSeeds(list string) ([]int64, error) {
	parts := strings.Split(list, ",")
	seeds := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		seed, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q", part)
		}
		seeds = append(seeds, seed)
	}
	if len(seeds) == 0 {
		return nil, errors.New("seeds list is empty")
	}
	return seeds, nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: wanglandauctl <init|reset|run|runs|show|density|convergence|diagnostics|systems|profiles|export> [flags]", msg)
}
