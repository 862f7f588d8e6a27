package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rholland/photocopy/internal/errs"
	"github.com/rholland/photocopy/internal/pattern"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		SourceDir:   t.TempDir(),
		DestPattern: t.TempDir() + "/out/{year}/{name}",
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyDestPattern(t *testing.T) {
	cfg := validConfig(t)
	cfg.DestPattern = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	cfg := validConfig(t)
	cfg.DestPattern = cfg.DestPattern + "/{bogus}"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestValidateRejectsSourceEqualsDestination(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{SourceDir: dir, DestPattern: dir + "/"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestValidateRejectsDestinationNestedInsideSource(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{SourceDir: dir, DestPattern: dir + "/nested/{name}"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestValidateRejectsMinDateAfterMaxDate(t *testing.T) {
	cfg := validConfig(t)
	min := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.MinDate = &min
	cfg.MaxDate = &max
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestValidateRejectsDuplicatesFormatWithoutNumberPlaceholder(t *testing.T) {
	cfg := validConfig(t)
	cfg.DuplicatesFormat = "_copy"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestValidateAllowsEmptyDuplicatesFormat(t *testing.T) {
	cfg := validConfig(t)
	cfg.DuplicatesFormat = ""
	assert.NoError(t, cfg.Validate())
}

func TestDuplicatePolicyValueDefaultsToNone(t *testing.T) {
	cfg := validConfig(t)
	cfg.DuplicatePolicy = "nonsense"
	assert.Equal(t, 0, int(cfg.DuplicatePolicyValue()))
}

func TestCasingResolvesKnownNames(t *testing.T) {
	cfg := validConfig(t)
	cfg.PathCasing = "SnakeCase"
	assert.Equal(t, pattern.CasingSnake, cfg.Casing())
}

func TestCasingDefaultsToOriginalForUnknownName(t *testing.T) {
	cfg := validConfig(t)
	cfg.PathCasing = "not-a-real-casing"
	assert.Equal(t, pattern.CasingOriginal, cfg.Casing())
}

func TestFingerprintCarriesLayoutAffectingFields(t *testing.T) {
	cfg := validConfig(t)
	cfg.PathCasing = "UpperCase"
	cfg.UseFullCountryNames = true
	fp := cfg.Fingerprint()
	assert.Equal(t, cfg.DestPattern, fp.DestPattern)
	assert.Equal(t, "UpperCase", fp.PathCasing)
	assert.True(t, fp.UseFullCountryNames)
}
