// Package config defines the plain struct a caller (a CLI, a config file
// loader, a test) fills in to describe one run, and validates it against
// the InvalidConfiguration checks an engine run must reject before any
// I/O happens. Reading the struct from flags or a file is an external
// concern; the struct and its validation live here.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rholland/photocopy/internal/checkpoint"
	"github.com/rholland/photocopy/internal/dupindex"
	"github.com/rholland/photocopy/internal/errs"
	"github.com/rholland/photocopy/internal/pathsafety"
	"github.com/rholland/photocopy/internal/pattern"
	"github.com/rholland/photocopy/internal/plan"
)

// Config is every user-controlled setting a single run needs. Loading one
// from flags, environment variables or a file is outside this module;
// this struct and Validate are the in-module half.
type Config struct {
	SourceDir   string
	DestPattern string
	Mode        plan.Mode

	MinDate *time.Time
	MaxDate *time.Time
	ExcludeGlobs []string

	DuplicatePolicy  string // "none", "skip", "report", "prompt"
	DuplicatesFormat string // must contain "{number}" when non-empty; "" defaults to "_{number}"

	PathCasing          string // one of pattern.Casing's names, "" means Original
	Replacement         string
	UnknownFallback     string
	UseFullCountryNames bool
	LocationGranularity string

	Overwrite    bool
	SkipExisting bool
	Concurrency  int
	MaxDepth     int

	CheckpointDirOverride string

	Fresh           bool
	ResumeRequested bool
}

// Validate rejects a Config that an engine run must never be allowed to
// start with, surfacing errs.ErrInvalidConfiguration for every case listed
// in the design's error taxonomy.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DestPattern) == "" {
		return fmt.Errorf("destination pattern must not be empty: %w", errs.ErrInvalidConfiguration)
	}
	if err := pattern.ValidateSyntax(c.DestPattern); err != nil {
		return err
	}

	if c.SourceDir == "" {
		return fmt.Errorf("source directory must not be empty: %w", errs.ErrInvalidConfiguration)
	}
	srcAbs, err := pathsafety.Canonicalise(c.SourceDir)
	if err != nil {
		return fmt.Errorf("resolve source directory: %w", err)
	}
	destRoot, err := pathsafety.ExtractDestinationRoot(c.DestPattern)
	if err != nil {
		return fmt.Errorf("resolve destination root: %w", err)
	}

	if sameDir(srcAbs, destRoot) {
		return fmt.Errorf("source and destination must not be the same directory: %w", errs.ErrInvalidConfiguration)
	}
	if pathsafety.IsWithin(destRoot, srcAbs) {
		return fmt.Errorf("destination must not be nested inside the source directory: %w", errs.ErrInvalidConfiguration)
	}

	if c.MinDate != nil && c.MaxDate != nil && c.MinDate.After(*c.MaxDate) {
		return fmt.Errorf("minimum date must not be after maximum date: %w", errs.ErrInvalidConfiguration)
	}

	// The executor also falls back to this format whenever it hits a
	// pre-existing destination file, independent of duplicate policy, so
	// a non-empty value is always required to contain the placeholder; an
	// empty value is allowed and defaults to "_{number}" at execution time.
	if c.DuplicatesFormat != "" && !strings.Contains(c.DuplicatesFormat, "{number}") {
		return fmt.Errorf("duplicates format %q must contain \"{number}\": %w", c.DuplicatesFormat, errs.ErrInvalidConfiguration)
	}

	return nil
}

func sameDir(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// Fingerprint extracts the subset of c that affects destination path
// layout, for checkpoint compatibility hashing.
func (c Config) Fingerprint() checkpoint.ConfigFingerprint {
	return checkpoint.ConfigFingerprint{
		DestPattern:         c.DestPattern,
		Mode:                c.Mode.String(),
		DuplicatesFormat:    c.DuplicatesFormat,
		PathCasing:          c.PathCasing,
		UseFullCountryNames: c.UseFullCountryNames,
		LocationGranularity: c.LocationGranularity,
		UnknownFallback:     c.UnknownFallback,
	}
}

// DuplicatePolicyValue resolves c.DuplicatePolicy to a dupindex.Policy,
// defaulting to PolicyNone for an empty or unrecognised name.
func (c Config) DuplicatePolicyValue() dupindex.Policy {
	switch strings.ToLower(c.DuplicatePolicy) {
	case "skip":
		return dupindex.PolicySkip
	case "report":
		return dupindex.PolicyReport
	case "prompt":
		return dupindex.PolicyPrompt
	default:
		return dupindex.PolicyNone
	}
}

// Casing resolves c.PathCasing to a pattern.Casing value, defaulting to
// CasingOriginal for an empty or unrecognised name.
func (c Config) Casing() pattern.Casing {
	switch strings.ToLower(c.PathCasing) {
	case "lowercase":
		return pattern.CasingLower
	case "uppercase":
		return pattern.CasingUpper
	case "titlecase":
		return pattern.CasingTitle
	case "pascalcase":
		return pattern.CasingPascal
	case "camelcase":
		return pattern.CasingCamel
	case "snakecase":
		return pattern.CasingSnake
	case "kebabcase":
		return pattern.CasingKebab
	case "screamingsnakecase":
		return pattern.CasingScreamingSnake
	default:
		return pattern.CasingOriginal
	}
}
