// Package photocopy wires the planner, resume orchestrator, checkpoint
// store and executor into the single call a command layer or another Go
// program needs: "organise this source tree into that destination
// pattern, durably and resumably." Everything it depends on — pattern
// grammar, path safety, the binary checkpoint log, bounded-concurrency
// execution — lives in internal/ and is exercised here, not reimplemented.
package photocopy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rholland/photocopy/internal/checkpoint"
	"github.com/rholland/photocopy/internal/config"
	"github.com/rholland/photocopy/internal/dupindex"
	"github.com/rholland/photocopy/internal/errs"
	"github.com/rholland/photocopy/internal/executor"
	"github.com/rholland/photocopy/internal/pathsafety"
	"github.com/rholland/photocopy/internal/pattern"
	"github.com/rholland/photocopy/internal/plan"
	"github.com/rholland/photocopy/internal/planner"
	"github.com/rholland/photocopy/internal/resume"
	"github.com/rholland/photocopy/internal/validate"
	"github.com/rholland/photocopy/pkg/provider"
)

// Result is everything one Run call produced: the resume decision that
// was taken, the plan-time rejections, and — once execution actually
// happened — the executor's summary and per-index failure reasons.
type Result struct {
	Decision   resume.Decision
	Reason     string
	Checkpoint *checkpoint.State
	Validation checkpoint.ValidationResult

	PlannedTotal int
	PlanSkipped  []planner.Skipped

	// Executed is false when Decision is resume.DecisionPrompt: the
	// caller must re-invoke Run with cfg.Fresh or cfg.ResumeRequested set
	// before any file is touched.
	Executed bool
	Summary  executor.Summary
	Errors   map[int32]string
}

// Options bundles everything a single Run needs beyond the Config
// itself: the metadata provider, an optional logger (defaults to
// logging.Disabled) and an optional duplicate-prompt callback.
type Options struct {
	Provider   provider.MetadataProvider
	Log        zerolog.Logger
	PromptFunc executor.PromptFunc
}

// Run validates cfg, builds a deterministic plan from cfg.SourceDir,
// decides whether to start fresh or resume a prior checkpoint, and — if
// a decision was reachable without user input — executes the plan to
// completion, returning a full Result.
func Run(ctx context.Context, cfg config.Config, opts Options) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	// A caller that doesn't set Options.Log gets zerolog's zero-value
	// Logger, which already discards everything it's given; there is
	// nothing further to wire up here. logging.Disabled() exists for
	// callers that want an explicit, named value to pass in.
	log := opts.Log

	chain := buildValidatorChain(cfg)
	renderer := pattern.NewRenderer(pattern.Options{
		Replacement:     cfg.Replacement,
		UnknownFallback: cfg.UnknownFallback,
		Casing:          cfg.Casing(),
	})

	planResult, err := planner.Plan(ctx, planner.Options{
		SourceDir:   cfg.SourceDir,
		DestPattern: cfg.DestPattern,
		Mode:        cfg.Mode,
		MaxDepth:    cfg.MaxDepth,
		Provider:    opts.Provider,
		Validators:  chain,
		Renderer:    renderer,
		Log:         log,
	})
	if err != nil {
		return Result{}, fmt.Errorf("plan source tree: %w", err)
	}

	store := &checkpoint.Store{DirOverride: cfg.CheckpointDirOverride, Log: log}
	orch := resume.NewOrchestrator(store, log)

	sourceAbs, err := pathsafety.Canonicalise(cfg.SourceDir)
	if err != nil {
		return Result{}, err
	}

	outcome, err := orch.Decide(sourceAbs, cfg.DestPattern, cfg.Fingerprint(), planResult.Plan, cfg.Fresh, cfg.ResumeRequested)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Decision:     outcome.Decision,
		Reason:       outcome.Reason,
		Checkpoint:   outcome.Checkpoint,
		Validation:   outcome.Validation,
		PlannedTotal: len(planResult.Plan.Operations),
		PlanSkipped:  planResult.Skipped,
	}

	if outcome.Decision == resume.DecisionPrompt {
		return result, nil
	}

	destRoot, err := pathsafety.ExtractDestinationRoot(cfg.DestPattern)
	if err != nil {
		return result, err
	}

	var writer *checkpoint.Writer
	var state *checkpoint.State
	if outcome.Decision == resume.DecisionResume {
		state = outcome.Checkpoint
		writer, err = store.ResumeWriter(state)
		if err != nil {
			return result, fmt.Errorf("resume checkpoint: %w", err)
		}
		log.Info().Str("checkpoint", state.FilePath).Msg("resuming prior checkpoint")
	} else {
		state = resume.CreateState(planResult.Plan, sourceAbs, cfg.DestPattern, cfg.Fingerprint(), time.Now().UTC())
		dir, err := store.CheckpointDirectory(cfg.DestPattern)
		if err != nil {
			return result, err
		}
		writer, err = store.CreateWriter(dir, state)
		if err != nil {
			return result, fmt.Errorf("create checkpoint: %w", err)
		}
		log.Info().Str("checkpoint", state.FilePath).Int("files", len(planResult.Plan.Operations)).Msg("starting fresh run")
	}
	result.Checkpoint = state

	idx := dupindex.New()
	sum, runErr := executor.Run(ctx, planResult.Plan, writer, idx, executor.Options{
		DestinationRoot:  destRoot,
		Concurrency:      cfg.Concurrency,
		Overwrite:        cfg.Overwrite,
		SkipExisting:     cfg.SkipExisting,
		DuplicatesFormat: cfg.DuplicatesFormat,
		DuplicatePolicy:  cfg.DuplicatePolicyValue(),
		PromptFunc:       opts.PromptFunc,
		Provider:         opts.Provider,
		Log:              log,
	})
	result.Executed = true
	result.Summary = sum
	result.Errors = state.Errors()

	if runErr != nil {
		if errors.Is(runErr, errs.ErrCancelled) {
			_ = writer.Flush()
			_ = writer.Dispose()
			return result, runErr
		}
		_ = writer.Fail()
		_ = writer.Dispose()
		return result, runErr
	}
	if sum.Failed > 0 {
		if err := writer.Fail(); err != nil {
			log.Warn().Err(err).Msg("failed to rewrite checkpoint header to Failed")
		}
	} else {
		if err := writer.Complete(); err != nil {
			log.Warn().Err(err).Msg("failed to rewrite checkpoint header to Completed")
		}
	}
	if err := writer.Dispose(); err != nil {
		log.Warn().Err(err).Msg("checkpoint writer disposal reported an error")
	}

	return result, nil
}

func buildValidatorChain(cfg config.Config) validate.Chain {
	var vs []validate.Validator
	if cfg.MinDate != nil {
		vs = append(vs, validate.MinDate{Min: *cfg.MinDate})
	}
	if cfg.MaxDate != nil {
		vs = append(vs, validate.MaxDate{Max: *cfg.MaxDate})
	}
	if len(cfg.ExcludeGlobs) > 0 {
		if ex, err := validate.NewExcludePattern(cfg.ExcludeGlobs); err == nil {
			vs = append(vs, ex)
		}
	}
	return validate.NewChain(vs...)
}

// Plan exposes the planner directly for callers that want to inspect a
// plan (e.g. a "dry run" diagnostic) without deciding a resume or
// executing anything.
func Plan(ctx context.Context, cfg config.Config, p provider.MetadataProvider, log zerolog.Logger) (*plan.Plan, []planner.Skipped, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	chain := buildValidatorChain(cfg)
	renderer := pattern.NewRenderer(pattern.Options{
		Replacement:     cfg.Replacement,
		UnknownFallback: cfg.UnknownFallback,
		Casing:          cfg.Casing(),
	})
	res, err := planner.Plan(ctx, planner.Options{
		SourceDir:   cfg.SourceDir,
		DestPattern: cfg.DestPattern,
		Mode:        cfg.Mode,
		MaxDepth:    cfg.MaxDepth,
		Provider:    p,
		Validators:  chain,
		Renderer:    renderer,
		Log:         log,
	})
	if err != nil {
		return nil, nil, err
	}
	return res.Plan, res.Skipped, nil
}
