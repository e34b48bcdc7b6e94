// types.go - core data model: PathMeta, Entry, Nefax, DiskInfo, Diff
//
// Adapted from the teacher's info.go (fixed-field metadata struct with
// explicit validation) trimmed to the exact tuple the data model requires.

package nefaxer

import (
	"strings"
)

// PathMeta is the metadata recorded for one path: modification time in
// nanoseconds, size in bytes, and an optional 32-byte content hash.
// For directories Hash is always nil; for files it is present iff hashing
// was enabled on the run that produced the record.
type PathMeta struct {
	MtimeNS int64
	Size    uint64
	Hash    []byte // nil, or exactly HashSize bytes
}

// HashSize is the fixed length of a present PathMeta.Hash.
const HashSize = 32

// Entry is a PathMeta annotated with its normalized relative path.
type Entry struct {
	Path string
	PathMeta
}

// Nefax is the in-memory mapping from relative path to PathMeta. It mirrors
// the durable "paths" table exactly: keys are unique, insertion order is
// irrelevant.
type Nefax map[string]PathMeta

// DiskInfo is C1's classification, cached per-root so a later run can reuse
// it without re-probing.
type DiskInfo struct {
	DriveType         string `json:"drive_type"`
	ProbedAtUnix      int64  `json:"probed_at_unix"`
	ReadBWBytesPerSec uint64 `json:"read_bw_bytes_per_sec"`
}

// Diff is the three-way classification result of one indexing run.
type Diff struct {
	Added    []string
	Removed  []string
	Modified []string
}

// IsClean reports whether no changes were detected.
func (d *Diff) IsClean() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// ValidatePath checks the invariants spec.md §3 places on a relative path:
// normalized with forward slashes, non-empty, not rooted, and free of ".."
// segments.
func ValidatePath(p string) error {
	if p == "" {
		return newError("ValidatePath", p, KindInvalidInput, errEmptyPath)
	}
	if strings.ContainsRune(p, '\\') {
		return newError("ValidatePath", p, KindInvalidInput, errBackslash)
	}
	if strings.HasPrefix(p, "/") {
		return newError("ValidatePath", p, KindInvalidInput, errRooted)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return newError("ValidatePath", p, KindInvalidInput, errDotDot)
		}
	}
	return nil
}

// ValidateMeta checks the plausible-interval invariants on a PathMeta: a
// negative or out-of-range MtimeNS is rejected here (callers that observe
// one directly from the filesystem should clamp before constructing the
// PathMeta — see ClampMtime).
func ValidateMeta(m PathMeta) error {
	if m.MtimeNS < 0 {
		return newError("ValidateMeta", "", KindInvalidInput, errMtimeRange)
	}
	if m.Hash != nil && len(m.Hash) != HashSize {
		return newError("ValidateMeta", "", KindInvalidInput, errHashSize)
	}
	return nil
}

// ValidateNefax validates every entry of a caller-supplied prior snapshot,
// per the "existing_opt" contract of spec.md §4.7(a).
func ValidateNefax(n Nefax) error {
	for p, m := range n {
		if err := ValidatePath(p); err != nil {
			return err
		}
		if err := ValidateMeta(m); err != nil {
			return err
		}
	}
	return nil
}

// ClampMtime resolves spec.md §9's open question: a negative mtime (observed
// on some filesystems for pre-epoch dates) is clamped to 0 rather than
// silently truncated or rejected. Callers are expected to log when this
// function actually clamps (it reports whether it did).
func ClampMtime(ns int64) (int64, bool) {
	if ns < 0 {
		return 0, true
	}
	return ns, false
}
