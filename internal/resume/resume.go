// Package resume decides, at the start of a run, whether to start a
// fresh checkpoint, resume an existing one, or defer that choice to the
// caller.
package resume

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rholland/photocopy/internal/checkpoint"
	"github.com/rholland/photocopy/internal/plan"
)

// Decision is the orchestrator's recommendation.
type Decision int

const (
	// DecisionFresh means there is nothing to resume, or what exists is
	// incompatible: start a brand-new checkpoint.
	DecisionFresh Decision = iota
	// DecisionResume means an existing checkpoint is compatible and
	// should be continued automatically.
	DecisionResume
	// DecisionPrompt means a compatible checkpoint exists but the caller
	// must decide whether to resume it or discard it, since neither
	// --fresh nor --resume was given.
	DecisionPrompt
)

func (d Decision) String() string {
	switch d {
	case DecisionResume:
		return "Resume"
	case DecisionPrompt:
		return "PromptUser"
	default:
		return "StartFresh"
	}
}

// Outcome is the full result of a resume decision.
type Outcome struct {
	Decision   Decision
	Reason     string
	Checkpoint *checkpoint.State
	Validation checkpoint.ValidationResult
}

// Orchestrator wraps a checkpoint.Store with the decision logic that sits
// in front of it.
type Orchestrator struct {
	Store *checkpoint.Store
	Log   zerolog.Logger
}

// NewOrchestrator returns an Orchestrator backed by store.
func NewOrchestrator(store *checkpoint.Store, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{Store: store, Log: log}
}

// Decide inspects any existing checkpoint for (sourceDir, destPattern)
// and returns what should happen next. fresh forces DecisionFresh;
// resumeRequested, when a compatible checkpoint is found, short-circuits
// DecisionPrompt to DecisionResume.
func (o *Orchestrator) Decide(sourceDir, destPattern string, cfg checkpoint.ConfigFingerprint, p *plan.Plan, fresh, resumeRequested bool) (Outcome, error) {
	if fresh {
		return Outcome{Decision: DecisionFresh, Reason: "fresh run requested"}, nil
	}

	dir, err := o.Store.CheckpointDirectory(destPattern)
	if err != nil {
		return Outcome{}, err
	}

	latest, err := o.Store.FindLatest(dir, sourceDir, destPattern)
	if err != nil {
		return Outcome{}, err
	}
	if latest == "" {
		return Outcome{Decision: DecisionFresh, Reason: "no previous checkpoint found"}, nil
	}

	state, err := o.Store.Load(latest)
	if err != nil {
		return Outcome{}, err
	}
	if state == nil {
		o.Log.Warn().Str("path", latest).Msg("ignoring corrupt checkpoint")
		return Outcome{Decision: DecisionFresh, Reason: "existing checkpoint is corrupt"}, nil
	}

	planHash := checkpoint.ComputePlanHash(p.Paths(), p.Sizes())
	result := checkpoint.Validate(state, sourceDir, destPattern, cfg, planHash)
	if !result.Valid {
		return Outcome{Decision: DecisionFresh, Reason: result.Reason, Checkpoint: state, Validation: result}, nil
	}

	if resumeRequested {
		return Outcome{Decision: DecisionResume, Checkpoint: state, Validation: result}, nil
	}
	return Outcome{Decision: DecisionPrompt, Checkpoint: state, Validation: result}, nil
}

// CreateState builds a brand-new checkpoint State for p, ready to be
// handed to checkpoint.Store.CreateWriter.
func CreateState(p *plan.Plan, sourceDir, destPattern string, cfg checkpoint.ConfigFingerprint, now time.Time) *checkpoint.State {
	sessionID := uuid.NewString()
	configHash := checkpoint.ComputeConfigHash(cfg)
	planHash := checkpoint.ComputePlanHash(p.Paths(), p.Sizes())
	return checkpoint.NewState(sessionID, sourceDir, destPattern, checkpoint.CurrentVersion, now, configHash, planHash, int32(len(p.Operations)), p.TotalBytes)
}
