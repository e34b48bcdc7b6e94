package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/opencoff/go-logger"

	"github.com/thicclatka/nefaxer"
	"github.com/thicclatka/nefaxer/diffengine"
	"github.com/thicclatka/nefaxer/hashstage"
	"github.com/thicclatka/nefaxer/store"
	"github.com/thicclatka/nefaxer/walker"
)

// Result is what Index returns: the freshly observed snapshot, classified
// against whatever prior snapshot the caller or store supplied, plus any
// hardlink-sibling groups observed along the way.
type Result struct {
	Nefax          nefaxer.Nefax
	Diff           nefaxer.Diff
	HardlinkGroups map[string][]string
}

// Index walks root, computes metadata (and, per opts.WithHash, content
// hashes) for every path, diffs the result against existing (or against the
// store at opts.StorePath if existing is nil and StorePath is set), and
// optionally commits the new snapshot back to the store. It returns
// whatever partial Nefax it had accumulated (and an empty Diff) if ctx is
// cancelled mid-run, along with a *nefaxer.Error of KindCancelled — per spec.md
// §4.7/§7, a cancelled run leaves the store untouched (no partial commit).
// Under opts.Strict, the first per-path access error aborts the run the
// same way, returning that access error instead. Under opts.DryRun, every
// stage runs as usual but no store write happens.
func Index(ctx context.Context, root string, existing nefaxer.Nefax, opts Options, lg logger.Logger) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	if lg == nil {
		var err error
		lg, err = logger.NewLogger(os.Stderr, logger.LOG_INFO, "nefaxer", logger.Ldate|logger.Ltime)
		if err != nil {
			lg = fallbackLogger{}
		}
	}

	if existing != nil {
		if err := nefaxer.ValidateNefax(existing); err != nil {
			return Result{}, err
		}
	}

	var st *store.Store
	if opts.StorePath != "" {
		s, err := store.Open(opts.StorePath, opts.Key)
		if err != nil {
			return Result{}, err
		}
		defer s.Close()
		st = s

		if existing == nil {
			prior, err := st.Load()
			if err != nil {
				return Result{}, err
			}
			existing = prior
		}
	}
	if existing == nil {
		existing = make(nefaxer.Nefax)
	}

	tuning, drive, freshProbe := opts.tuning(root, st)
	lg.Info("nefaxer: root=%s drive=%s workers=%d parallel=%v batch=%d",
		root, drive, tuning.WorkerCount, tuning.ParallelWalk, tuning.BatchSize)

	conc := tuning.WorkerCount
	if !tuning.ParallelWalk {
		conc = 1
	}

	out, errch := walker.Walk(root, &walker.Options{
		Concurrency:    conc,
		FollowSymlinks: opts.FollowSymlinks,
		OneFilesystem:  opts.OneFilesystem,
		Excludes:       opts.Excludes,
	})

	eng := diffengine.New(existing, tuning.WorkerCount, opts.MtimeWindowNS)
	result := make(nefaxer.Nefax)

	start := time.Now()
	var totalBytes uint64

	abortCh := make(chan error, 1)
	var walkErrs []error
	errDone := make(chan struct{})
	go func() {
		for e := range errch {
			walkErrs = append(walkErrs, e)
			lg.Warn("nefaxer: walk error: %s", e)
			if opts.Strict {
				select {
				case abortCh <- e:
				default:
				}
			}
		}
		close(errDone)
	}()

	cancelled := false
	var fatal error
loop:
	for {
		select {
		case <-ctx.Done():
			cancelled = true
			// drain the rest so walker goroutines don't block forever
			for range out {
			}
			break loop
		case werr := <-abortCh:
			fatal = nefaxer.NewAccessError("pipeline.Index", "", werr)
			for range out {
			}
			break loop
		case e, ok := <-out:
			if !ok {
				break loop
			}
			meta, clamped, err := resolveMeta(e, existing, opts)
			if err != nil {
				if opts.Strict {
					fatal = err
					for range out {
					}
					break loop
				}
				lg.Warn("nefaxer: %s: %s", e.RelPath, err)
				continue
			}
			if clamped {
				lg.Warn("nefaxer: %s: negative mtime clamped to 0", e.RelPath)
			}
			result[e.RelPath] = meta
			totalBytes += meta.Size
			eng.Classify(diffengine.Current{Path: e.RelPath, Meta: meta, Dev: e.Dev, Ino: e.Ino})
		}
	}
	<-errDone

	if cancelled {
		return Result{Nefax: result}, nefaxer.NewCancelledError("pipeline.Index")
	}
	if fatal != nil {
		return Result{Nefax: result}, fatal
	}

	diff := eng.Finish()
	links := eng.HardlinkGroups()

	if st != nil && !opts.DryRun {
		if err := commit(st, result, diff, tuning.BatchSize, tuning.WriterPoolSize); err != nil {
			return Result{Nefax: result, Diff: diff, HardlinkGroups: links}, err
		}
		if freshProbe {
			info := nefaxer.DiskInfo{
				DriveType:         string(drive),
				ProbedAtUnix:      time.Now().Unix(),
				ReadBWBytesPerSec: observedBandwidth(totalBytes, time.Since(start)),
			}
			if err := st.CommitDiskInfo(info); err != nil {
				lg.Warn("nefaxer: commit diskinfo: %s", err)
			}
		}
	}

	if len(walkErrs) > 0 {
		lg.Warn("nefaxer: %d path(s) skipped due to access errors", len(walkErrs))
	}

	return Result{Nefax: result, Diff: diff, HardlinkGroups: links}, nil
}

// observedBandwidth estimates read throughput from this run's own walk
// rather than a synthetic benchmark: total bytes classified divided by
// elapsed wall time. Zero elapsed time (an empty or near-instant run)
// reports zero rather than dividing by zero.
func observedBandwidth(totalBytes uint64, elapsed time.Duration) uint64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return uint64(float64(totalBytes) / secs)
}

func resolveMeta(e walker.Entry, existing nefaxer.Nefax, opts Options) (nefaxer.PathMeta, bool, error) {
	mtime, clamped := nefaxer.ClampMtime(e.MtimeNS)

	meta := nefaxer.PathMeta{MtimeNS: mtime, Size: e.Size}
	if e.IsDir || !opts.WithHash {
		return meta, clamped, nil
	}

	prior, have := existing[e.RelPath]
	if !hashstage.NeedsHash(prior, have, meta, opts.Paranoid, opts.MtimeWindowNS) {
		meta.Hash = prior.Hash
		return meta, clamped, nil
	}

	h, err := hashstage.Sum(e.Abs)
	if err != nil {
		return meta, clamped, nefaxer.NewAccessError("pipeline.resolveMeta", e.RelPath, err)
	}
	meta.Hash = h

	// Paranoid mode re-hashes even when mtime/size already agreed with the
	// prior record; a hash mismatch there is still a real content change,
	// reported as modified by diffengine's normal hash comparison.
	return meta, clamped, nil
}

func commit(st *store.Store, result nefaxer.Nefax, diff nefaxer.Diff, batchSize, writerPoolSize int) error {
	var batches []store.Batch
	cur := store.Batch{Upsert: make(map[string]nefaxer.PathMeta, batchSize)}

	flush := func() {
		if len(cur.Upsert) > 0 || len(cur.Delete) > 0 {
			batches = append(batches, cur)
			cur = store.Batch{Upsert: make(map[string]nefaxer.PathMeta, batchSize)}
		}
	}

	for p, m := range result {
		cur.Upsert[p] = m
		if len(cur.Upsert) >= batchSize {
			flush()
		}
	}
	for _, p := range diff.Removed {
		cur.Delete = append(cur.Delete, p)
		if len(cur.Delete) >= batchSize {
			flush()
		}
	}
	flush()

	if err := st.CommitAll(batches, writerPoolSize); err != nil {
		return fmt.Errorf("pipeline: commit: %w", err)
	}
	return nil
}

// fallbackLogger is used only if go-logger construction itself fails (e.g.
// an unwritable log target); it keeps Index usable rather than panicking
// on a logging setup error.
type fallbackLogger struct{}

func (fallbackLogger) Info(format string, v ...any)  { log.Printf("INFO "+format, v...) }
func (fallbackLogger) Warn(format string, v ...any)  { log.Printf("WARN "+format, v...) }
func (fallbackLogger) Error(format string, v ...any) { log.Printf("ERROR "+format, v...) }
func (fallbackLogger) Debug(format string, v ...any) { log.Printf("DEBUG "+format, v...) }
func (fallbackLogger) Close() error                  { return nil }
