// Command photocopy is a thin, flag-only runnable example of the copy
// engine in package photocopy. It is not the "real" command-line
// surface the design treats as an external collaborator — no
// subcommands, no config file format, just enough flags to exercise the
// full plan/resume/execute pipeline end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rholland/photocopy/internal/checkpoint"
	"github.com/rholland/photocopy/internal/config"
	"github.com/rholland/photocopy/internal/logging"
	"github.com/rholland/photocopy/internal/plan"
	"github.com/rholland/photocopy/pkg/provider"

	"github.com/rholland/photocopy"
)

// Exit codes mirror the contract documented at the boundary between this
// module and a surrounding command layer: 0 success, 1 generic error, 2
// cancelled, 5 partial success, 6 I/O error.
const (
	exitOK             = 0
	exitGenericError   = 1
	exitCancelled      = 2
	exitPartialSuccess = 5
	exitIOError        = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("photocopy", flag.ContinueOnError)

	var (
		source           = fs.String("source", "", "source directory to organize (required)")
		destPattern      = fs.String("dest", "", "destination path pattern, e.g. DEST/{year}/{month}/{name} (required)")
		move             = fs.Bool("move", false, "move files instead of copying them")
		overwrite        = fs.Bool("overwrite", false, "overwrite an existing file at the destination")
		skipExisting     = fs.Bool("skip-existing", false, "skip rather than rename when the destination already exists")
		duplicatePolicy  = fs.String("duplicates", "none", "duplicate content policy: none, skip, report, prompt")
		duplicatesFormat = fs.String("duplicates-format", "_{number}", "suffix pattern used to disambiguate a colliding filename")
		casing           = fs.String("casing", "", "casing transform applied to substituted values (see pattern.Casing)")
		unknownFallback  = fs.String("unknown-fallback", "Unknown", "substituted when a location or name field can't be resolved")
		concurrency      = fs.Int("concurrency", 0, "worker concurrency; 0 uses runtime.NumCPU()")
		maxDepth         = fs.Int("max-depth", 0, "maximum directory depth to enumerate; 0 is unlimited")
		checkpointDir    = fs.String("checkpoint-dir", "", "override the checkpoint directory instead of deriving it from -dest")
		fresh            = fs.Bool("fresh", false, "ignore any existing checkpoint and start over")
		resumeFlag       = fs.Bool("resume", false, "resume a compatible checkpoint automatically, without prompting")
		cleanup          = fs.Bool("cleanup", false, "remove terminal checkpoints older than -cleanup-age from the checkpoint directory, then exit")
		cleanupAge       = fs.Duration("cleanup-age", 30*24*time.Hour, "age threshold for -cleanup")
		verbose          = fs.Bool("verbose", false, "debug-level logging")
	)
	if err := fs.Parse(args); err != nil {
		return exitGenericError
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := logging.ConsoleStderr(level)
	log.Logger = logger

	if *cleanup {
		return runCleanup(logger, *destPattern, *checkpointDir, *cleanupAge)
	}

	if *source == "" || *destPattern == "" {
		fmt.Fprintln(os.Stderr, "Error: -source and -dest are required")
		fs.Usage()
		return exitGenericError
	}

	cfg := config.Config{
		SourceDir:             *source,
		DestPattern:           *destPattern,
		Mode:                  modeFromFlag(*move),
		DuplicatePolicy:       *duplicatePolicy,
		DuplicatesFormat:      *duplicatesFormat,
		PathCasing:            *casing,
		UnknownFallback:       *unknownFallback,
		Overwrite:             *overwrite,
		SkipExisting:          *skipExisting,
		Concurrency:           *concurrency,
		MaxDepth:              *maxDepth,
		CheckpointDirOverride: *checkpointDir,
		Fresh:                 *fresh,
		ResumeRequested:       *resumeFlag,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := photocopy.Run(ctx, cfg, photocopy.Options{
		Provider: provider.NewBasicProvider(),
		Log:      logger,
	})

	if result.Decision.String() == "PromptUser" {
		fmt.Printf("A compatible checkpoint exists (%d/%d files already done). Re-run with -resume to continue it or -fresh to discard it.\n",
			result.Validation.Completed, result.Validation.Total)
		for _, w := range result.Validation.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return exitOK
	}

	if err != nil {
		if ctx.Err() != nil {
			logger.Warn().Msg("run cancelled")
			return exitCancelled
		}
		logger.Error().Err(err).Msg("run failed")
		return exitGenericError
	}

	printSummary(result)

	switch {
	case result.Summary.Failed > 0 && result.Summary.Completed > 0:
		return exitPartialSuccess
	case result.Summary.Failed > 0:
		return exitIOError
	default:
		return exitOK
	}
}

func modeFromFlag(move bool) plan.Mode {
	if move {
		return plan.ModeMove
	}
	return plan.ModeCopy
}

func printSummary(r photocopy.Result) {
	fmt.Printf("planned: %d, skipped at plan time: %d\n", r.PlannedTotal, len(r.PlanSkipped))
	if !r.Executed {
		return
	}
	fmt.Printf("processed: %d, completed: %d, skipped: %d, failed: %d, duplicates: %d\n",
		r.Summary.Processed, r.Summary.Completed, r.Summary.Skipped, r.Summary.Failed, r.Summary.Duplicates)
	if len(r.Errors) == 0 {
		return
	}
	fmt.Println("first failures:")
	indices := make([]int32, 0, len(r.Errors))
	for idx := range r.Errors {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for i, idx := range indices {
		if i >= 10 {
			break
		}
		fmt.Printf("  [%d] %s\n", idx, r.Errors[idx])
	}
}

func runCleanup(logger zerolog.Logger, destPattern, checkpointDirOverride string, maxAge time.Duration) int {
	if destPattern == "" && checkpointDirOverride == "" {
		fmt.Fprintln(os.Stderr, "Error: -cleanup requires -dest (to derive the checkpoint directory) or -checkpoint-dir")
		return exitGenericError
	}
	store := &checkpoint.Store{DirOverride: checkpointDirOverride, Log: logger}
	dir, err := store.CheckpointDirectory(destPattern)
	if err != nil {
		logger.Error().Err(err).Msg("resolve checkpoint directory")
		return exitGenericError
	}
	removed, err := store.Cleanup(dir, maxAge)
	if err != nil {
		logger.Error().Err(err).Msg("cleanup failed")
		return exitGenericError
	}
	fmt.Printf("removed %d terminal checkpoint(s) older than %s from %s\n", removed, maxAge, dir)
	return exitOK
}
