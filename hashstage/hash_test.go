package hashstage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/thicclatka/nefaxer"
	"github.com/thicclatka/nefaxer/internal/testutil"
)

func pathMeta(mtimeNS int64, size uint64) nefaxer.PathMeta {
	return nefaxer.PathMeta{MtimeNS: mtimeNS, Size: size}
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	if err := os.WriteFile(p, buf, 0o644); err != nil {
		t.Fatalf("write %s: %s", p, err)
	}
	return p
}

func TestSumDeterministic(t *testing.T) {
	assert := testutil.NewAsserter(t)
	dir := t.TempDir()
	p := writeFile(t, dir, "a.bin", 1024)

	h1, err := Sum(p)
	assert(err == nil, "sum: %s", err)
	h2, err := Sum(p)
	assert(err == nil, "sum: %s", err)
	assert(len(h1) > 0, "expected non-empty hash")
	for i := range h1 {
		assert(h1[i] == h2[i], "hash byte %d mismatch between identical reads", i)
	}
}

func TestSumDiffersOnContent(t *testing.T) {
	assert := testutil.NewAsserter(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.bin", 1024)
	b := writeFile(t, dir, "b.bin", 1024)
	os.WriteFile(b, append([]byte{0xff}, mustRead(t, a)[1:]...), 0o644)

	ha, err := Sum(a)
	assert(err == nil, "sum a: %s", err)
	hb, err := Sum(b)
	assert(err == nil, "sum b: %s", err)

	equal := true
	for i := range ha {
		if ha[i] != hb[i] {
			equal = false
			break
		}
	}
	assert(!equal, "expected different content to hash differently")
}

func mustRead(t *testing.T, p string) []byte {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %s", p, err)
	}
	return b
}

// TestSumAcrossMmapThreshold exercises both the buffered-read path (small
// file) and the mmap path (file at/above mmapThreshold) and checks that
// each one hashes without error.
func TestSumAcrossMmapThreshold(t *testing.T) {
	assert := testutil.NewAsserter(t)
	dir := t.TempDir()

	small := writeFile(t, dir, "small.bin", mmapThreshold-1)
	large := writeFile(t, dir, "large.bin", mmapThreshold+4096)

	_, err := Sum(small)
	assert(err == nil, "sum small: %s", err)
	_, err = Sum(large)
	assert(err == nil, "sum large: %s", err)
}

func TestSumMissingFile(t *testing.T) {
	assert := testutil.NewAsserter(t)
	_, err := Sum(filepath.Join(t.TempDir(), "nope.bin"))
	assert(err != nil, "expected error hashing a nonexistent file")
}

func TestNeedsHash(t *testing.T) {
	assert := testutil.NewAsserter(t)

	prior := pathMeta(100, 10)
	cur := pathMeta(100, 10)

	assert(NeedsHash(prior, false, cur, false, 0) == true, "no prior record should force a hash")
	assert(NeedsHash(prior, true, cur, false, 0) == false, "unchanged mtime/size should skip re-hash")
	assert(NeedsHash(prior, true, cur, true, 0) == true, "paranoid should force a hash regardless")

	changedSize := pathMeta(100, 11)
	assert(NeedsHash(prior, true, changedSize, false, 0) == true, "size change should force a hash")

	changedMtime := pathMeta(101, 10)
	assert(NeedsHash(prior, true, changedMtime, false, 0) == true, "mtime change should force a hash")
	assert(NeedsHash(prior, true, changedMtime, false, 10) == false, "a 1ns drift within a 10ns window should skip re-hash")
}
