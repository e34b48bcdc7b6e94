// Package diffengine classifies a freshly walked tree against a prior
// Nefax snapshot into added/removed/modified sets.
//
// Grounded directly on the teacher's cmp/engine.go and cmp/cmp.go: the
// two-pass work-pool shape (process every "lhs" entry first, recording
// which names were seen in a concurrency-safe "done" set; then process
// every "rhs" entry and anything not already marked done is rhs-only) maps
// onto nefaxer's (prior, current) comparison exactly the way the teacher's
// (lhs, rhs) tree comparison does. lhs here is the freshly observed current
// entries (Classify), rhs is the prior Nefax (swept by Finish). Concurrency-safe accumulation uses
// github.com/puzpuzpuz/xsync/v3.MapOf, the same type the teacher aliases as
// FioMap/FioPairMap.
package diffengine

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/thicclatka/nefaxer"
)

// Current is one freshly observed path: its normalized relative path, the
// metadata the walk/hash stages produced for it, and the (dev, ino) pair
// the walker read off it, used only to group hardlink siblings.
type Current struct {
	Path     string
	Meta     nefaxer.PathMeta
	Dev, Ino uint64
}

// Engine accumulates a diff incrementally as Current entries stream in,
// then finalizes it against a prior snapshot.
type Engine struct {
	prior nefaxer.Nefax
	seen  *xsync.MapOf[string, bool]

	added    *xsync.MapOf[string, nefaxer.PathMeta]
	modified *xsync.MapOf[string, nefaxer.PathMeta]

	concurrency   int
	mtimeWindowNS int64

	linksMu sync.Mutex
	links   map[string][]string
}

// New creates an Engine that will diff incoming Current entries against
// prior. concurrency is stored for symmetry with other stages but is not
// used: Classify is safe for concurrent calls regardless, and Finish's
// removed-set sweep is a plain loop over prior. mtimeWindowNS is the
// comparison rule's tolerance: two mtimes no more than mtimeWindowNS apart
// are treated as equal (spec.md §4.5).
func New(prior nefaxer.Nefax, concurrency int, mtimeWindowNS int64) *Engine {
	return &Engine{
		prior:         prior,
		seen:          xsync.NewMapOf[string, bool](),
		added:         xsync.NewMapOf[string, nefaxer.PathMeta](),
		modified:      xsync.NewMapOf[string, nefaxer.PathMeta](),
		concurrency:   concurrency,
		mtimeWindowNS: mtimeWindowNS,
		links:         make(map[string][]string),
	}
}

// Classify records one freshly observed entry, classifying it as added or
// modified relative to the prior snapshot (or neither, if unchanged).
// Unseen prior paths are resolved later by Finish.
func (e *Engine) Classify(cur Current) {
	e.seen.Store(cur.Path, true)

	if cur.Ino != 0 {
		key := fmt.Sprintf("%d:%d", cur.Dev, cur.Ino)
		e.linksMu.Lock()
		e.links[key] = append(e.links[key], cur.Path)
		e.linksMu.Unlock()
	}

	old, ok := e.prior[cur.Path]
	if !ok {
		e.added.Store(cur.Path, cur.Meta)
		return
	}

	if !metaEqual(old, cur.Meta, e.mtimeWindowNS) {
		e.modified.Store(cur.Path, cur.Meta)
	}
}

// Finish sweeps the prior snapshot for paths never observed by Classify —
// those are the removed set — and returns the complete three-way Diff.
// Mirrors the teacher's rhsDiff pass: anything not already marked "done"
// belongs to the side that wasn't walked this time.
func (e *Engine) Finish() nefaxer.Diff {
	var diff nefaxer.Diff

	e.added.Range(func(p string, _ nefaxer.PathMeta) bool {
		diff.Added = append(diff.Added, p)
		return true
	})
	e.modified.Range(func(p string, _ nefaxer.PathMeta) bool {
		diff.Modified = append(diff.Modified, p)
		return true
	})

	for p := range e.prior {
		if _, ok := e.seen.Load(p); !ok {
			diff.Removed = append(diff.Removed, p)
		}
	}

	return diff
}

// HardlinkGroups returns, for every (dev, ino) pair observed by Classify
// this run that has more than one path, the set of paths sharing it. Keyed
// by "dev:ino". Informational only — never persisted to the store — per
// spec.md §7's sibling-group supplement.
func (e *Engine) HardlinkGroups() map[string][]string {
	e.linksMu.Lock()
	defer e.linksMu.Unlock()

	out := make(map[string][]string)
	for k, paths := range e.links {
		if len(paths) > 1 {
			cp := make([]string, len(paths))
			copy(cp, paths)
			out[k] = cp
		}
	}
	return out
}

// metaEqual reports whether two PathMeta values are equivalent for diff
// purposes: same size, mtimes within windowNS of each other, and (when both
// sides carry one) same hash. A record with no hash on either side is
// compared on mtime/size alone, per spec.md §4.5's content-hash-is-optional
// contract.
func metaEqual(a, b nefaxer.PathMeta, windowNS int64) bool {
	if a.Size != b.Size {
		return false
	}
	if !withinWindow(a.MtimeNS, b.MtimeNS, windowNS) {
		return false
	}
	if a.Hash != nil && b.Hash != nil {
		if len(a.Hash) != len(b.Hash) {
			return false
		}
		for i := range a.Hash {
			if a.Hash[i] != b.Hash[i] {
				return false
			}
		}
	}
	return true
}

// withinWindow reports whether a and b (nanosecond timestamps) differ by no
// more than windowNS. Widening windowNS can only make this return true more
// often, never less — the monotonicity property spec.md §8 requires.
func withinWindow(a, b, windowNS int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= windowNS
}
