package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sidereal-data/reduction.report/internal/engine"
	"github.com/sidereal-data/reduction.report/internal/ledger"
	"github.com/sidereal-data/reduction.report/internal/pipeline"
	"github.com/sidereal-data/reduction.report/internal/stages"
	"github.com/sidereal-data/reduction.report/internal/timeutil"
)

// runCommand executes a recipe in a fresh working directory.
func runCommand(args []string, ledgerPath string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	recipePath := fs.String("recipe", "", "Recipe file (required)")
	workDir := fs.String("workdir", ".", "Working directory for the run")
	toolkitBin := fs.String("toolkit", "casatool", "Toolkit launcher binary")
	mock := fs.Bool("mock", false, "Use the mock engine instead of the toolkit")
	workers := fs.Int("workers", 1, "Per-dataset fan-out for single-vis stages")
	keepGoing := fs.Bool("continue-on-error", false, "Keep executing after a failed stage")
	fs.Parse(args)

	if *recipePath == "" {
		log.Fatal("run requires -recipe")
	}

	rec, err := pipeline.LoadRecipe(*recipePath)
	if err != nil {
		log.Fatalf("Failed to load recipe: %v", err)
	}

	pc, err := pipeline.NewContext(*workDir, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("Failed to initialize run: %v", err)
	}

	executeRecipe(pc, rec, recipeOptions{
		ledgerPath: ledgerPath,
		toolkitBin: *toolkitBin,
		mock:       *mock,
		workers:    *workers,
		keepGoing:  *keepGoing,
	})
}

// resumeCommand continues a checkpointed run with further stages.
func resumeCommand(args []string, ledgerPath string) {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	recipePath := fs.String("recipe", "", "Recipe of stages to execute against the resumed context (required)")
	workDir := fs.String("workdir", ".", "Working directory holding the checkpoints")
	checkpoint := fs.String("checkpoint", "", "Checkpoint file name (default: most recent)")
	toolkitBin := fs.String("toolkit", "casatool", "Toolkit launcher binary")
	mock := fs.Bool("mock", false, "Use the mock engine instead of the toolkit")
	workers := fs.Int("workers", 1, "Per-dataset fan-out for single-vis stages")
	keepGoing := fs.Bool("continue-on-error", false, "Keep executing after a failed stage")
	fs.Parse(args)

	if *recipePath == "" {
		log.Fatal("resume requires -recipe")
	}

	rec, err := pipeline.LoadRecipe(*recipePath)
	if err != nil {
		log.Fatalf("Failed to load recipe: %v", err)
	}

	pc, err := pipeline.Resume(*workDir, *checkpoint, timeutil.RealClock{})
	if err != nil {
		if errors.Is(err, pipeline.ErrCheckpointNotFound) {
			log.Fatalf("No checkpoint to resume in %s", *workDir)
		}
		log.Fatalf("Failed to resume: %v", err)
	}

	executeRecipe(pc, rec, recipeOptions{
		ledgerPath: ledgerPath,
		toolkitBin: *toolkitBin,
		mock:       *mock,
		workers:    *workers,
		keepGoing:  *keepGoing,
	})
}

type recipeOptions struct {
	ledgerPath string
	toolkitBin string
	mock       bool
	workers    int
	keepGoing  bool
}

func executeRecipe(pc *pipeline.Context, rec *pipeline.Recipe, opts recipeOptions) {
	db, err := ledger.Open(opts.ledgerPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate ledger: %v", err)
	}

	var eng engine.Engine
	if opts.mock {
		eng = engine.NewMockEngine()
	} else {
		eng = engine.NewToolkitEngine(opts.toolkitBin, pc.OutputDir)
	}

	reg := pipeline.NewRegistry()
	stages.RegisterStandard(reg)

	exec := &pipeline.Executor{
		Engine:          eng,
		Registry:        reg,
		Clock:           timeutil.RealClock{},
		Workers:         opts.workers,
		ContinueOnError: opts.keepGoing,
		Sink:            db,
	}

	if err := db.RecordRun(pc.RunID, pc.OutputDir, rec.Name, time.Now().UnixNano()); err != nil {
		log.Printf("Failed to record run in ledger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	execErr := exec.Execute(ctx, pc, rec)

	// The final checkpoint is written even when the recipe failed, so the
	// run can be resumed after the problem is fixed.
	if err := pc.Terminate(); err != nil {
		log.Printf("Failed to terminate run: %v", err)
	}
	if execErr != nil {
		log.Fatalf("Run %s failed: %v", pc.RunID, execErr)
	}

	if err := db.CompleteRun(pc.RunID); err != nil {
		log.Printf("Failed to mark run complete: %v", err)
	}
	fmt.Printf("Run %s complete: %d stage results in %s\n", pc.RunID, pc.StageCounter, pc.OutputDir)
}

// statusCommand prints run history from the ledger.
func statusCommand(args []string, ledgerPath string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	runID := fs.String("run", "", "Show per-stage detail for one run")
	fs.Parse(args)

	db, err := ledger.Open(ledgerPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate ledger: %v", err)
	}

	if *runID != "" {
		recs, err := db.StagesForRun(*runID)
		if err != nil {
			log.Fatalf("Failed to load run: %v", err)
		}
		if len(recs) == 0 {
			log.Fatalf("No stages recorded for run %s", *runID)
		}
		for _, rec := range recs {
			line := fmt.Sprintf("%3d  %-20s %-12s %-8s qa=%.2f", rec.StageNumber, rec.Stage, rec.Vis, rec.Status, rec.QAScore)
			if rec.Err != "" {
				line += "  " + rec.Err
			}
			fmt.Println(line)
		}
		return
	}

	sums, err := db.RunSummaries()
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	for _, s := range sums {
		state := "running"
		if s.Completed {
			state = "complete"
		}
		fmt.Printf("%s  %-24s %-8s stages=%d failures=%d minqa=%.2f\n",
			s.RunID, s.Recipe, state, s.Stages, s.Failures, s.MinQAScore)
	}
}

// exportCalCommand prints the calibration instruction list from a checkpoint.
func exportCalCommand(args []string) {
	fs := flag.NewFlagSet("export-cal", flag.ExitOnError)
	workDir := fs.String("workdir", ".", "Working directory holding the checkpoints")
	checkpoint := fs.String("checkpoint", "", "Checkpoint file name (default: most recent)")
	out := fs.String("out", "", "Write to file instead of stdout")
	fs.Parse(args)

	pc, err := pipeline.Inspect(*workDir, *checkpoint)
	if err != nil {
		log.Fatalf("Failed to read checkpoint: %v", err)
	}

	lib := pc.CalState.Export()
	if *out == "" {
		fmt.Print(lib)
		return
	}
	if err := os.WriteFile(*out, []byte(lib), 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	fmt.Printf("Wrote %d active calibration entries to %s\n", len(pc.CalState.Active), *out)
}

// migrateCommand manages the ledger schema.
func migrateCommand(args []string, ledgerPath string) {
	if len(args) < 1 {
		log.Fatal("Usage: reduction-report migrate <up|down|status|force <version>>")
	}

	db, err := ledger.Open(ledgerPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer db.Close()

	switch args[0] {
	case "up":
		if err := db.MigrateUp(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Ledger schema is up to date")
	case "down":
		if err := db.MigrateDown(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Rolled back one migration")
	case "status":
		version, dirty, err := db.MigrateVersion()
		if err != nil {
			log.Fatalf("Failed to read migration state: %v", err)
		}
		fmt.Printf("Ledger schema version %d (dirty=%v)\n", version, dirty)
	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: reduction-report migrate force <version>")
		}
		var version int
		if _, err := fmt.Sscanf(args[1], "%d", &version); err != nil {
			log.Fatalf("Invalid version %q", args[1])
		}
		if err := db.MigrateForce(version); err != nil {
			log.Fatalf("Force failed: %v", err)
		}
		fmt.Printf("Forced ledger schema to version %d\n", version)
	default:
		log.Fatalf("Unknown migrate action %q", args[0])
	}
}
