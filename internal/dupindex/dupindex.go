// Package dupindex tracks the first file seen for each content checksum
// during a single run, so later files with the same content can be
// skipped, reported, or handed to a caller-supplied prompt instead of
// copied again.
package dupindex

import (
	"strings"
	"sync"

	"github.com/tidwall/btree"
)

// Policy selects what the executor does when a checksum has already been
// seen.
type Policy int

const (
	// PolicyNone disables checksum computation and duplicate detection
	// entirely.
	PolicyNone Policy = iota
	// PolicySkip leaves the duplicate out of the destination tree.
	PolicySkip
	// PolicyReport copies the duplicate anyway but records it as such in
	// the run summary.
	PolicyReport
	// PolicyPrompt defers to a caller-supplied decision function; when
	// none is supplied it behaves like PolicySkip.
	PolicyPrompt
)

// Entry is the first-seen record for one checksum.
type Entry struct {
	Checksum string
	Path     string
	Size     int64
}

func compare(a, b interface{}) bool {
	return a.(*Entry).Checksum < b.(*Entry).Checksum
}

// Index is a concurrency-safe checksum -> first-seen-file map backed by a
// B-tree ordered by checksum.
type Index struct {
	mu   sync.Mutex
	tree *btree.BTree
}

// New returns an empty Index.
func New() *Index {
	return &Index{tree: btree.New(compare)}
}

// InsertIfAbsent records entry under checksum if no entry is already
// present for it. It returns the existing entry (and false) if checksum
// was already seen, or (nil, true) if entry was the first occurrence. An
// empty checksum is never tracked — it always reports (nil, true) — since
// an empty checksum means duplicate detection was not requested for that
// file.
func (idx *Index) InsertIfAbsent(checksum string, entry Entry) (*Entry, bool) {
	if checksum == "" {
		return nil, true
	}
	key := strings.ToLower(checksum)
	entry.Checksum = key

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing := idx.tree.Get(&Entry{Checksum: key}); existing != nil {
		return existing.(*Entry), false
	}
	idx.tree.Set(&entry)
	return nil, true
}

// Len returns the number of distinct checksums recorded.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.tree.Len()
}
