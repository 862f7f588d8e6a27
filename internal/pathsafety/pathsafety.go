// Package pathsafety implements the containment and traversal checks that
// every path the planner or executor generates must pass before it is
// ever opened, created, or renamed onto the destination tree.
package pathsafety

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"

	"github.com/rholland/photocopy/internal/errs"
)

// Reason identifies why ValidateGenerated rejected a candidate path.
type Reason string

const (
	ReasonOK               Reason = ""
	ReasonNotAbsolute      Reason = "not absolute"
	ReasonTraversalSegment Reason = "contains a .. segment"
	ReasonEscapesRoot      Reason = "escapes destination root"
)

// Canonicalise resolves p to an absolute path with "." and ".." segments
// collapsed and every ancestor directory's symlinks followed. The leaf
// component itself is never resolved, so a path whose final component is
// a symlink still canonicalises to that symlink's own path, not its
// target — callers that care about the target call os.Stat separately.
func Canonicalise(p string) (string, error) {
	if !filepath.IsAbs(p) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("canonicalise %q: %w", p, err)
		}
		p = abs
	}
	clean := filepath.Clean(p)
	dir, base := filepath.Split(clean)
	dir = filepath.Clean(dir)

	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		// Ancestor may not exist yet (the destination side of a plan
		// frequently doesn't); fall back to the lexical form.
		resolvedDir = dir
	}
	return filepath.Join(resolvedDir, base), nil
}

// IsWithin reports whether candidate, with a trailing separator appended,
// begins with root, with a trailing separator appended. Both arguments are
// assumed already canonicalised; IsWithin does no canonicalisation itself.
func IsWithin(candidate, root string) bool {
	c := withTrailingSeparator(candidate)
	r := withTrailingSeparator(root)
	if runtime.GOOS == "windows" {
		c = strings.ToLower(c)
		r = strings.ToLower(r)
	}
	return strings.HasPrefix(c, r)
}

func withTrailingSeparator(p string) string {
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + string(filepath.Separator)
}

// ValidateGenerated checks a renderer-produced candidate path against
// root before it is ever used. candidate is inspected in the form the
// renderer built it in — raw string concatenation, not filepath.Clean'd —
// so that a ".." segment injected by untrusted metadata is caught here
// rather than silently collapsed away by path cleaning upstream.
func ValidateGenerated(candidate, root string) (bool, Reason) {
	if !filepath.IsAbs(candidate) {
		return false, ReasonNotAbsolute
	}
	for _, seg := range strings.Split(candidate, string(filepath.Separator)) {
		if seg == ".." {
			return false, ReasonTraversalSegment
		}
	}
	clean := filepath.Clean(candidate)
	if !IsWithin(clean, root) {
		return false, ReasonEscapesRoot
	}
	return true, ReasonOK
}

// ValidateGeneratedErr is ValidateGenerated wrapped as an error for
// call sites that want a single error return.
func ValidateGeneratedErr(candidate, root string) error {
	ok, reason := ValidateGenerated(candidate, root)
	if ok {
		return nil
	}
	return fmt.Errorf("%s: %w", reason, errs.ErrUnsafePath)
}

// ExtractDestinationRoot returns the longest absolute prefix of pattern
// that contains no pattern variable ("{"), reduced to its parent
// directory when it does not end at a separator (so "/dest/archive"
// yields "/dest"). If pattern begins with a variable, or the static
// prefix reduces to nothing, it returns the current working directory.
func ExtractDestinationRoot(pattern string) (string, error) {
	prefix := pattern
	if idx := strings.IndexByte(pattern, '{'); idx >= 0 {
		prefix = pattern[:idx]
	}
	if prefix == "" {
		return os.Getwd()
	}
	if !strings.HasSuffix(prefix, "/") && !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix = filepath.Dir(prefix)
	}
	if prefix == "" || prefix == "." {
		return os.Getwd()
	}
	abs, err := filepath.Abs(prefix)
	if err != nil {
		return "", err
	}
	return Canonicalise(abs)
}

// IsReparsePoint reports whether the leaf component of p is a symlink.
// A nonexistent path or any stat error is treated as "not a reparse
// point", since the caller's own Lstat/Open will surface the real error.
func IsReparsePoint(p string) bool {
	fi, err := os.Lstat(p)
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeSymlink != 0
}

// SameFilesystem reports whether a and b, both existing paths, live on
// the same mounted filesystem (same device id).
func SameFilesystem(a, b string) (bool, error) {
	var sa, sb unix.Stat_t
	if err := unix.Stat(a, &sa); err != nil {
		return false, fmt.Errorf("stat %q: %w", a, err)
	}
	if err := unix.Stat(b, &sb); err != nil {
		return false, fmt.Errorf("stat %q: %w", b, err)
	}
	return sa.Dev == sb.Dev, nil
}

var networkFilesystemTypes = map[string]bool{
	"nfs": true, "nfs4": true, "cifs": true, "smb": true, "smbfs": true,
	"afpfs": true, "sshfs": true, "fuse.sshfs": true, "fuse.s3fs": true,
	"9p": true, "glusterfs": true, "ceph": true,
}

// IsNetworkFilesystem reports whether the mount covering path is a known
// network filesystem type, returning that type's name. It is best-effort:
// an error locating the mount table is reported but never treated as a
// hard failure by callers, which only use this to emit a warning.
func IsNetworkFilesystem(path string) (bool, string, error) {
	mounts, err := mountinfo.GetMounts(mountinfo.ParentsFilter(path))
	if err != nil {
		return false, "", err
	}
	best := ""
	bestLen := -1
	for _, m := range mounts {
		if len(m.Mountpoint) > bestLen && strings.HasPrefix(path, m.Mountpoint) {
			best = m.FSType
			bestLen = len(m.Mountpoint)
		}
	}
	return networkFilesystemTypes[best], best, nil
}
