// Package validate implements the per-file validator chain the planner
// runs before a file is ever assigned a destination: date-range bounds
// and exclude-glob matching.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/moby/patternmatcher"
)

// Result is the outcome of running a chain against one file.
type Result struct {
	Pass   bool
	Name   string
	Reason string
}

// Validator checks one property of a candidate file. ts is the file's
// resolved timestamp; relPath is its path relative to the source root
// using "/" separators.
type Validator interface {
	Name() string
	Check(ts time.Time, relPath string) Result
}

// Chain runs a fixed list of validators against a file.
type Chain struct {
	validators []Validator
}

// NewChain builds a Chain from vs, in order.
func NewChain(vs ...Validator) Chain {
	return Chain{validators: vs}
}

// FirstFailure runs the chain and returns the first failing result, used
// during planning: one rejection reason is all the planner records.
func (c Chain) FirstFailure(ts time.Time, relPath string) (Result, bool) {
	for _, v := range c.validators {
		if r := v.Check(ts, relPath); !r.Pass {
			return r, true
		}
	}
	return Result{}, false
}

// AllFailures runs every validator and returns every failing result,
// used for diagnostics where a complete picture of why a file was
// rejected is wanted rather than just the first reason.
func (c Chain) AllFailures(ts time.Time, relPath string) []Result {
	var out []Result
	for _, v := range c.validators {
		if r := v.Check(ts, relPath); !r.Pass {
			out = append(out, r)
		}
	}
	return out
}

// MinDate rejects any file whose resolved timestamp is before Min.
type MinDate struct {
	Min time.Time
}

func (v MinDate) Name() string { return "MinDate" }

func (v MinDate) Check(ts time.Time, _ string) Result {
	if ts.Before(v.Min) {
		return Result{Name: v.Name(), Reason: fmt.Sprintf("timestamp %s is before the minimum %s", ts.Format(time.RFC3339), v.Min.Format(time.RFC3339))}
	}
	return Result{Pass: true, Name: v.Name()}
}

// MaxDate rejects any file whose resolved timestamp is after Max.
type MaxDate struct {
	Max time.Time
}

func (v MaxDate) Name() string { return "MaxDate" }

func (v MaxDate) Check(ts time.Time, _ string) Result {
	if ts.After(v.Max) {
		return Result{Name: v.Name(), Reason: fmt.Sprintf("timestamp %s is after the maximum %s", ts.Format(time.RFC3339), v.Max.Format(time.RFC3339))}
	}
	return Result{Pass: true, Name: v.Name()}
}

// ExcludePattern rejects any file whose source-relative path matches one
// of a set of dockerignore-style glob patterns (supporting "*", "**",
// "?" and "!" negation).
type ExcludePattern struct {
	matcher *patternmatcher.PatternMatcher
}

// NewExcludePattern compiles globs into an ExcludePattern validator.
// Matching is case-insensitive: both the patterns and the paths checked
// against them are lower-cased, so "*.JPG" excludes "photo.jpg".
func NewExcludePattern(globs []string) (ExcludePattern, error) {
	if len(globs) == 0 {
		return ExcludePattern{}, nil
	}
	lowered := make([]string, len(globs))
	for i, g := range globs {
		lowered[i] = strings.ToLower(g)
	}
	m, err := patternmatcher.New(lowered)
	if err != nil {
		return ExcludePattern{}, fmt.Errorf("compile exclude patterns: %w", err)
	}
	return ExcludePattern{matcher: m}, nil
}

func (v ExcludePattern) Name() string { return "ExcludePattern" }

func (v ExcludePattern) Check(_ time.Time, relPath string) Result {
	if v.matcher == nil {
		return Result{Pass: true, Name: v.Name()}
	}
	matched, err := v.matcher.MatchesOrParentMatches(strings.ToLower(relPath))
	if err != nil || !matched {
		return Result{Pass: true, Name: v.Name()}
	}
	return Result{Name: v.Name(), Reason: fmt.Sprintf("%q matched an exclude pattern", relPath)}
}
