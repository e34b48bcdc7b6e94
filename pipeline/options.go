// Package pipeline wires the walker, hashstage, diffengine and store
// packages into the single Index operation spec.md describes.
//
// Grounded on two teacher shapes at once: the staged option-struct →
// validate → build-workers → run → collect pattern of
// opencoff-go-fio/clone/tree.go's treeCloner, and the phase-by-phase
// scan → screen → verify → dedupe orchestration of
// ivoronin-dupedog/cmd/dupedog/dedupe.go (runDedupe), including its
// shared error channel drained by a background goroutine for the
// lifetime of the run.
package pipeline

import (
	"fmt"
	"runtime"
	"time"

	"github.com/thicclatka/nefaxer"
	"github.com/thicclatka/nefaxer/probe"
	"github.com/thicclatka/nefaxer/store"
)

// Options configures one Index run. There is deliberately no file or
// environment-variable loading here: parsing a config file or flag set
// into an Options value is the CLI collaborator's job (spec.md §1, §6),
// not the pipeline's.
type Options struct {
	// FollowSymlinks and OneFilesystem are passed through to the walker.
	FollowSymlinks bool
	OneFilesystem  bool
	Excludes       []string

	// WithHash enables content hashing. Off, Diff relies on mtime/size
	// alone.
	WithHash bool

	// Paranoid forces a re-hash of every file, even when mtime and size
	// agree with the prior record and the shortcut would otherwise reuse
	// the old hash, so hash equality (not just mtime/size equality) is
	// required for a path to be classified unchanged. Only meaningful when
	// WithHash is set.
	Paranoid bool

	// MtimeWindowNS is the tolerance used by the comparison rule: two
	// mtimes no more than MtimeWindowNS apart are treated as equal. Zero
	// means exact equality.
	MtimeWindowNS int64

	// Strict makes the first per-path access error fatal instead of
	// logged-and-skipped: the run aborts, drains, and returns the error
	// with no store commit.
	Strict bool

	// DryRun executes the walk, hash and diff stages as usual but skips
	// every store write: no snapshot commit, no DiskInfo commit.
	DryRun bool

	// StorePath, if non-empty, persists the resulting Nefax to this bbolt
	// file, replacing whatever was there before.
	StorePath string

	// Key, if non-nil, encrypts the store at rest (store.KeyProvider).
	Key store.KeyProvider

	// NumThreads, DriveType and UseParallelWalk together override C1's
	// probe-derived tuning. They must all be set together (NumThreads >
	// 0, DriveType non-empty, UseParallelWalk non-nil) or all left zero;
	// Validate rejects a partial set. When set, the drive/walk-mode pair
	// selects the base Tuning (writer pool size, batch size) from
	// probe.TuningFor, with WorkerCount and ParallelWalk overridden by
	// NumThreads/UseParallelWalk.
	NumThreads      int
	DriveType       probe.DriveType
	UseParallelWalk *bool
}

// Validate reports a *nefaxer.Error of KindInvalidInput if the override
// group (NumThreads, DriveType, UseParallelWalk) is partially set, per
// spec.md §6's "must all be set together".
func (o Options) Validate() error {
	set := 0
	if o.NumThreads > 0 {
		set++
	}
	if o.DriveType != "" {
		set++
	}
	if o.UseParallelWalk != nil {
		set++
	}
	if set != 0 && set != 3 {
		return nefaxer.NewInvalidInputError("pipeline.Options",
			fmt.Errorf("num_threads, drive_type and use_parallel_walk must all be set together"))
	}
	return nil
}

func (o Options) overridesSet() bool {
	return o.NumThreads > 0 && o.DriveType != "" && o.UseParallelWalk != nil
}

// tuning resolves this run's Tuning. It honors the C1 override group first;
// otherwise it consults st's cached DiskInfo (when st is non-nil and the
// record is within probe.CacheTTL) before falling back to probe.Classify.
// fresh reports whether Classify actually ran, so the caller knows whether
// to commit a new DiskInfo record (a cache hit must not overwrite the
// existing ProbedAtUnix, or the TTL would never expire).
func (o Options) tuning(root string, st *store.Store) (tuning probe.Tuning, drive probe.DriveType, fresh bool) {
	if o.overridesSet() {
		t := probe.TuningFor(o.DriveType)
		t.WorkerCount = o.NumThreads
		t.ParallelWalk = *o.UseParallelWalk
		return t, o.DriveType, false
	}

	if st != nil {
		if info, ok, err := st.LoadDiskInfo(); err == nil && ok {
			age := time.Since(time.Unix(info.ProbedAtUnix, 0))
			if age >= 0 && age < probe.CacheTTL {
				dt := probe.DriveType(info.DriveType)
				return probe.TuningFor(dt), dt, false
			}
		}
	}

	dt, t, err := probe.Classify(root)
	if err != nil {
		return probe.Tuning{WorkerCount: runtime.NumCPU(), WriterPoolSize: 2, BatchSize: 256}, probe.Unknown, true
	}
	return t, dt, true
}
