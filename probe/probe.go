// Package probe classifies the drive backing a directory tree and derives
// the concurrency/batching parameters the rest of the pipeline should use
// for it.
//
// Grounded on the teacher's direct use of syscall-level stat access
// (meta_unix.go, info.go's Statm) generalized one level: instead of
// populating a per-file Info struct, probe.Classify issues a single
// unix.Statfs on the root and inspects its Type field for well-known
// magic numbers, and unix.Getrlimit(RLIMIT_NOFILE) for the open-file
// headroom available to the walker's worker pool.
package probe

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// CacheTTL is how long a cached DiskInfo record (see nefaxer.DiskInfo)
// remains trustworthy before a caller should re-run Classify instead of
// reusing it, per spec.md §4.1's "cached DiskInfo record" fallback.
const CacheTTL = 24 * time.Hour

// DriveType classifies the storage medium backing a root.
type DriveType string

const (
	SSD     DriveType = "ssd"
	HDD     DriveType = "hdd"
	Network DriveType = "network"
	Unknown DriveType = "unknown"
)

// magic numbers from statfs(2); network filesystems are unambiguous, local
// ones are not (statfs alone cannot tell SSD from HDD), so anything not
// recognized as network falls through to the rotational-queue check.
const (
	magicNFS    = 0x6969
	magicNFS4   = 0x6e667364
	magicCIFS   = 0xff534d42
	magicSMB2   = 0xfe534d42
	magicFUSE   = 0x65735546
	magicTmpfs  = 0x01021994
	magicOverlay = 0x794c7630
)

var networkMagics = map[int64]bool{
	magicNFS:  true,
	magicNFS4: true,
	magicCIFS: true,
	magicSMB2: true,
	magicFUSE: true,
}

// Tuning holds the derived pipeline parameters for one root.
type Tuning struct {
	WorkerCount     int
	ParallelWalk    bool
	WriterPoolSize  int
	BatchSize       int
}

// Classify inspects root's filesystem and returns its DriveType plus the
// Tuning derived from it per the classify → tune table.
func Classify(root string) (DriveType, Tuning, error) {
	var sf unix.Statfs_t
	if err := unix.Statfs(root, &sf); err != nil {
		return Unknown, TuningFor(Unknown), fmt.Errorf("probe: statfs %s: %w", root, err)
	}

	if networkMagics[int64(sf.Type)] {
		return Network, TuningFor(Network), nil
	}

	if sf.Type == magicTmpfs {
		return SSD, TuningFor(SSD), nil
	}

	rot, ok := rotational(root)
	if !ok {
		return Unknown, TuningFor(Unknown), nil
	}
	if rot {
		return HDD, TuningFor(HDD), nil
	}
	return SSD, TuningFor(SSD), nil
}

// TuningFor implements spec.md §4.1's classify → (workers, parallel walk,
// writer pool, batch size) table:
//
//	SSD      parallel walk, workers = min(ceiling, 2*cores), writer pool 2, batch 1024
//	HDD      serial walk,   workers = min(ceiling, cores),   writer pool 1, batch 512
//	Network  serial walk,   workers = min(ceiling, 8),       writer pool 1, batch 256
//	Unknown  treated as SSD
//
// Exported so a caller with a cached DiskInfo.DriveType (see probe.CacheTTL)
// can reconstruct the Tuning for it without re-running Classify.
func TuningFor(d DriveType) Tuning {
	cores := runtime.NumCPU()
	ceiling := fdCeiling()

	switch d {
	case HDD:
		return Tuning{WorkerCount: min(ceiling, cores), ParallelWalk: false, WriterPoolSize: 1, BatchSize: 512}
	case Network:
		return Tuning{WorkerCount: min(ceiling, 8), ParallelWalk: false, WriterPoolSize: 1, BatchSize: 256}
	default: // SSD and Unknown (treated as SSD)
		return Tuning{WorkerCount: min(ceiling, 2*cores), ParallelWalk: true, WriterPoolSize: 2, BatchSize: 1024}
	}
}

// fdCeiling caps the worker count at the process's open-file soft limit
// minus a headroom of 16, so an aggressive SSD tuning never exhausts
// RLIMIT_NOFILE on a constrained host (spec.md §4.1).
func fdCeiling() int {
	const headroom = 16
	const fallback = 64

	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return fallback
	}

	c := int(rl.Cur) - headroom
	if c < 1 {
		return 1
	}
	return c
}
