// Package pattern renders a user-supplied destination pattern such as
// "{year}/{month}/{city}/{name}" into a concrete, sanitized, absolute
// path for a single source file.
package pattern

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rholland/photocopy/internal/errs"
	"github.com/rholland/photocopy/internal/pathsafety"
)

// KnownTokens is the set of pattern variables the renderer understands.
// internal/config validates a pattern against this same set before any
// file is ever planned.
var KnownTokens = map[string]bool{
	"year": true, "month": true, "day": true,
	"name": true, "namenoext": true, "ext": true,
	"directory": true, "number": true,
	"district": true, "city": true, "county": true, "state": true, "country": true,
	"camera": true,
}

// Input carries the per-file values a pattern token may substitute.
type Input struct {
	Year, Month, Day int
	Name, NameNoExt, Ext string
	Directory string
	District, City, County, State, Country string
	Camera string
	// Number is only meaningful when rendering a duplicate-collision
	// suffix pattern such as "_{number}"; zero otherwise.
	Number int
}

// Options configures sanitization and casing behaviour shared across
// every token substitution in a single render.
type Options struct {
	// Replacement substitutes forbidden characters. Defaults to "_".
	Replacement string
	// UnknownFallback substitutes a location field that could not be
	// resolved, or any token whose sanitized value is empty. Defaults to
	// "Unknown".
	UnknownFallback string
	Casing          Casing
}

func (o Options) withDefaults() Options {
	if o.Replacement == "" {
		o.Replacement = "_"
	}
	if o.UnknownFallback == "" {
		o.UnknownFallback = "Unknown"
	}
	return o
}

// Renderer turns a pattern string plus an Input into a concrete path.
type Renderer struct {
	Opts Options
}

// NewRenderer constructs a Renderer with opts' defaults applied.
func NewRenderer(opts Options) Renderer {
	return Renderer{Opts: opts.withDefaults()}
}

// segment is one piece of a parsed pattern: either literal text or a
// token name.
type segment struct {
	literal string
	token   string
	isToken bool
}

func parse(pattern string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '{':
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated token at offset %d: %w", i, errs.ErrInvalidConfiguration)
			}
			if lit.Len() > 0 {
				segs = append(segs, segment{literal: lit.String()})
				lit.Reset()
			}
			name := pattern[i+1 : i+end]
			if !KnownTokens[name] {
				return nil, fmt.Errorf("unknown pattern token %q: %w", name, errs.ErrInvalidConfiguration)
			}
			segs = append(segs, segment{token: name, isToken: true})
			i += end + 1
		case '}':
			return nil, fmt.Errorf("unmatched '}' at offset %d: %w", i, errs.ErrInvalidConfiguration)
		default:
			lit.WriteByte(c)
			i++
		}
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{literal: lit.String()})
	}
	return segs, nil
}

// ValidateSyntax checks that pattern is well formed — balanced braces and
// only known tokens — without rendering anything.
func ValidateSyntax(pattern string) error {
	_, err := parse(pattern)
	return err
}

func (r Renderer) tokenValue(token string, in Input) string {
	switch token {
	case "year":
		return fmt.Sprintf("%04d", in.Year)
	case "month":
		return fmt.Sprintf("%02d", in.Month)
	case "day":
		return fmt.Sprintf("%02d", in.Day)
	case "name":
		return in.Name
	case "namenoext":
		return in.NameNoExt
	case "ext":
		return in.Ext
	case "directory":
		return in.Directory
	case "number":
		return strconv.Itoa(in.Number)
	case "district":
		return in.District
	case "city":
		return in.City
	case "county":
		return in.County
	case "state":
		return in.State
	case "country":
		return in.Country
	case "camera":
		return in.Camera
	default:
		return ""
	}
}

// Render produces an absolute, sanitized destination path for pattern and
// in, then validates it against root via pathsafety before returning it.
// base is the current working directory to anchor a relative pattern to;
// callers typically pass the process's cwd.
func (r Renderer) Render(pattern string, in Input, root, base string) (string, error) {
	segs, err := parse(pattern)
	if err != nil {
		return "", err
	}

	var raw strings.Builder
	for _, s := range segs {
		if !s.isToken {
			raw.WriteString(s.literal)
			continue
		}
		value := r.tokenValue(s.token, in)
		value = r.Opts.Casing.Apply(value)
		value = sanitizePathValue(s.token, value, r.Opts.Replacement, r.Opts.UnknownFallback)
		raw.WriteString(value)
	}

	abs := joinAbs(base, raw.String())
	ok, reason := pathsafety.ValidateGenerated(abs, root)
	if !ok {
		return "", fmt.Errorf("%s: %w", reason, errs.ErrUnsafePath)
	}
	return filepath.Clean(abs), nil
}

// joinAbs anchors rel to base without ever calling filepath.Clean, so a
// ".." segment injected through untrusted metadata survives intact for
// pathsafety.ValidateGenerated to catch, rather than being silently
// resolved away by path cleaning first.
func joinAbs(base, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(base, sep) {
		base += sep
	}
	return base + rel
}
