// Package hashstage computes content hashes for files the pipeline has
// decided need re-hashing.
//
// Grounded on two teacher shapes at once: copy_mmap.go's copyViaMmap, which
// streams a file through github.com/opencoff/go-mmap's callback-based
// Reader instead of a plain io.Copy loop, repurposed here to feed a hasher
// instead of a destination file; and copy_other.go's small-file fallback,
// which skips mmap below a size threshold where the mmap/munmap syscalls
// cost more than they save. The hash function itself is
// github.com/zeebo/blake3, used exactly as pack sibling
// Lucho00Cuba-mtc/internal/merkle hashes file content: blake3.New(),
// Write, Sum(nil).
package hashstage

import (
	"fmt"
	"io"
	"os"

	"github.com/opencoff/go-mmap"
	"github.com/zeebo/blake3"
)

// mmapThreshold is the file size below which a plain buffered read beats
// mmap's per-call setup cost.
const mmapThreshold = 64 * 1024

// Sum returns the blake3-256 content hash of the file at abs.
func Sum(abs string) ([]byte, error) {
	fd, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("hashstage: open %s: %w", abs, err)
	}
	defer fd.Close()

	st, err := fd.Stat()
	if err != nil {
		return nil, fmt.Errorf("hashstage: stat %s: %w", abs, err)
	}

	h := blake3.New()
	if st.Size() < mmapThreshold {
		if _, err := io.Copy(h, fd); err != nil {
			return nil, fmt.Errorf("hashstage: read %s: %w", abs, err)
		}
		return h.Sum(nil), nil
	}

	if _, err := mmap.Reader(fd, func(b []byte) error {
		_, werr := h.Write(b)
		return werr
	}); err != nil {
		return nil, fmt.Errorf("hashstage: mmap-read %s: %w", abs, err)
	}
	return h.Sum(nil), nil
}
