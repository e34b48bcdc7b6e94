package hashstage

import "github.com/thicclatka/nefaxer"

// NeedsHash decides whether a path needs a fresh content hash, implementing
// spec.md §4.4's shortcut: if a prior record exists for this path and its
// mtime_ns (within windowNS) and size are unchanged, the old hash is reused
// instead of re-reading the file. paranoid forces a re-hash regardless of
// the shortcut, for callers that don't trust mtime granularity on the
// underlying filesystem.
func NeedsHash(prior nefaxer.PathMeta, have bool, current nefaxer.PathMeta, paranoid bool, windowNS int64) bool {
	if paranoid {
		return true
	}
	if !have {
		return true
	}
	if prior.Size != current.Size {
		return true
	}
	d := prior.MtimeNS - current.MtimeNS
	if d < 0 {
		d = -d
	}
	return d > windowNS
}
