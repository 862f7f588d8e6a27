// Package planner walks a source tree and builds the ordered CopyPlan
// the executor will carry out: every eligible file resolved to metadata,
// validated, and mapped to a sanitized destination path.
package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog"

	"github.com/rholland/photocopy/internal/pathsafety"
	"github.com/rholland/photocopy/internal/pattern"
	"github.com/rholland/photocopy/internal/plan"
	"github.com/rholland/photocopy/internal/validate"
	"github.com/rholland/photocopy/pkg/provider"
)

// Options configures a single planning pass.
type Options struct {
	SourceDir   string
	DestPattern string
	Mode        plan.Mode

	// MaxDepth bounds how many directory levels below SourceDir are
	// walked; 0 means unlimited.
	MaxDepth int

	Provider   provider.MetadataProvider
	Validators validate.Chain
	Renderer   pattern.Renderer

	Log zerolog.Logger
}

// Skipped records why one candidate file never became an Operation.
type Skipped struct {
	Path   string
	Reason string
}

// Result is everything a planning pass produced.
type Result struct {
	Plan    *plan.Plan
	Skipped []Skipped
}

// Plan walks opts.SourceDir and builds a Result.
func Plan(ctx context.Context, opts Options) (*Result, error) {
	root, err := pathsafety.ExtractDestinationRoot(opts.DestPattern)
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	files, err := enumerate(opts.SourceDir, opts.MaxDepth, opts.Log)
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i]) < strings.ToLower(files[j])
	})

	res := &Result{Plan: &plan.Plan{}}
	dirSet := make(map[string]struct{})

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Lstat(path)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: err.Error()})
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: "symlink, not followed"})
			continue
		}

		meta, err := opts.Provider.Resolve(ctx, path, info.Size(), info.ModTime())
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: fmt.Sprintf("metadata resolution failed: %v", err)})
			continue
		}

		relDir := relativeDir(opts.SourceDir, path)
		sf := &plan.SourceFile{
			Path:    path,
			RelDir:  relDir,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Meta:    meta,
		}

		ts := sf.ResolvedTimestamp()
		relPath := filepath.ToSlash(strings.TrimPrefix(strings.TrimPrefix(path, opts.SourceDir), string(filepath.Separator)))
		if failure, failed := opts.Validators.FirstFailure(ts, relPath); failed {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: fmt.Sprintf("%s: %s", failure.Name, failure.Reason)})
			continue
		}

		ext := filepath.Ext(path)
		name := filepath.Base(path)
		input := pattern.Input{
			Year:      ts.Year(),
			Month:     int(ts.Month()),
			Day:       ts.Day(),
			Name:      name,
			NameNoExt: strings.TrimSuffix(name, ext),
			Ext:       ext,
			Directory: relDir,
			Camera:    meta.Camera,
		}
		if meta.HasLocation {
			input.District = meta.Location.District
			input.City = meta.Location.City
			input.County = meta.Location.County
			input.State = meta.Location.State
			input.Country = meta.Location.Country
		}

		dest, err := opts.Renderer.Render(opts.DestPattern, input, root, cwd)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: fmt.Sprintf("destination rendering failed: %v", err)})
			continue
		}

		res.Plan.Operations = append(res.Plan.Operations, plan.Operation{
			Source:      sf,
			Destination: dest,
			Mode:        opts.Mode,
		})
		res.Plan.TotalBytes += sf.Size
		dirSet[filepath.Dir(dest)] = struct{}{}
	}

	for i := range res.Plan.Operations {
		res.Plan.Operations[i].Index = i
	}
	for d := range dirSet {
		res.Plan.Directories = append(res.Plan.Directories, d)
	}
	sort.Strings(res.Plan.Directories)

	return res, nil
}

func relativeDir(sourceDir, path string) string {
	rel, err := filepath.Rel(sourceDir, filepath.Dir(path))
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// enumerate lists every regular file under sourceDir, skipping any
// subtree rooted at a reparse point and honoring maxDepth (0 = no
// limit). It never follows symlinked directories.
func enumerate(sourceDir string, maxDepth int, log zerolog.Logger) ([]string, error) {
	var out []string
	base := filepath.Clean(sourceDir)

	err := godirwalk.Walk(base, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == base {
				return nil
			}
			if de.IsSymlink() {
				if de.IsDir() {
					log.Debug().Str("path", path).Msg("skipping reparse point subtree")
					return filepath.SkipDir
				}
				return nil
			}
			if maxDepth > 0 {
				rel, err := filepath.Rel(base, path)
				if err == nil {
					depth := strings.Count(rel, string(filepath.Separator)) + 1
					if de.IsDir() && depth > maxDepth {
						return filepath.SkipDir
					}
				}
			}
			if de.IsDir() {
				return nil
			}
			out = append(out, path)
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk source directory %q: %w", sourceDir, err)
	}
	return out, nil
}
