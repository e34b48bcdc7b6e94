package fixture

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path"
	"time"

	"github.com/opencoff/go-mmap"
)

// mkdir creates dn (and any missing parents) and stamps it with tm, exactly
// as the teacher's testsuite/fileutils.go mkdir does.
func mkdir(dn string, tm time.Time) error {
	if st, err := os.Lstat(dn); err == nil {
		if !st.IsDir() {
			return fmt.Errorf("%s: exists and is not a dir", dn)
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(dn, 0o700); err != nil {
		return err
	}
	return os.Chtimes(dn, tm, tm)
}

// mkfile creates fn with sz random bytes and stamps it with tm.
func mkfile(fn string, sz int64, tm time.Time) error {
	if err := mkdir(path.Dir(fn), tm); err != nil {
		return fmt.Errorf("mkdir %s: %w", path.Dir(fn), err)
	}

	fd, err := os.OpenFile(fn, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer fd.Close()

	const chunk = 65536
	buf := make([]byte, chunk)
	for sz > 0 {
		n := min(sz, chunk)
		randBytes(buf[:n])
		w, err := fd.Write(buf[:n])
		if err != nil {
			return err
		}
		sz -= int64(w)
	}

	if err := fd.Sync(); err != nil {
		return err
	}
	if err := fd.Close(); err != nil {
		return err
	}
	return os.Chtimes(fn, tm, tm)
}

// mutate rewrites between [minpct, maxpct) percent of fn's bytes in place
// via an mmap'd read-write mapping, and extends the file 30% of the time —
// the same scenario testsuite/cmd_mutate.go drives for a "content changed,
// mtime/size not artificially pinned" fixture.
func mutate(fn string, minpct, maxpct int64) error {
	fd, err := os.OpenFile(fn, os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer fd.Close()

	st, err := fd.Stat()
	if err != nil {
		return err
	}

	mm := mmap.New(fd)
	mapping, err := mm.Map(0, 0, mmap.PROT_WRITE|mmap.PROT_READ, 0)
	if err != nil {
		return err
	}

	sz := st.Size()
	n := mutateByteCount(sz, minpct, maxpct)
	buf := make([]byte, n)
	randBytes(buf)

	ptr := mapping.Bytes()
	for i := 0; i < len(buf) && sz > 0; i++ {
		off := mrand.Int64N(sz)
		ptr[off] = buf[i]
	}
	if err := mapping.Unmap(); err != nil {
		return err
	}

	if mrand.Float32() < 0.3 {
		if _, err := fd.Seek(0, os.SEEK_END); err != nil {
			return err
		}
		if _, err := fd.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func mutateByteCount(sz, minp, maxp int64) int64 {
	lo := (sz * minp) / 100
	hi := (sz * maxp) / 100
	if hi <= lo {
		return max(lo, 1)
	}
	return mrand.Int64N(hi-lo) + lo
}

// randBytes fills buf with cryptographically random bytes. Unlike the
// teacher's rand.go, this has no generic randBuf[T constraints.Integer]
// helper: go 1.23's builtin min/max cover every caller here, so pulling in
// golang.org/x/exp/constraints for a single concrete-int use would be
// redundant (see DESIGN.md's dropped-dependency entry).
func randBytes(buf []byte) {
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("fixture: rand read %d bytes: %s", len(buf), err))
	}
}
