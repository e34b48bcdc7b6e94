package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/thicclatka/nefaxer/internal/fixture"
	"github.com/thicclatka/nefaxer/internal/testutil"
	"github.com/thicclatka/nefaxer/probe"
	"github.com/thicclatka/nefaxer/store"
)

func chmodNoAccess(dir string) error { return os.Chmod(dir, 0) }
func chmodRestore(dir string)        { os.Chmod(dir, 0o755) }

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// overrides builds the C1 override group for a fixed worker count, bypassing
// probe.Classify so tests get deterministic tuning regardless of the host
// filesystem backing t.TempDir().
func overrides(workers int, parallel bool) (int, probe.DriveType, *bool) {
	return workers, probe.SSD, &parallel
}

func TestIndexFirstRunIsAllAdded(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()

	err := fixture.Build(root, `
		mkfile -m 1024 -M 2048 a.txt
		mkfile -m 1024 -M 2048 sub/b.txt
	`)
	assert(err == nil, "build: %s", err)

	n, dt, p := overrides(2, true)
	res, err := Index(context.Background(), root, nil, Options{WithHash: true, NumThreads: n, DriveType: dt, UseParallelWalk: p}, nil)
	assert(err == nil, "index: %s", err)
	assert(len(res.Nefax) == 2, "expected 2 entries, saw %d", len(res.Nefax))
	assert(contains(res.Diff.Added, "a.txt"), "expected a.txt added")
	assert(contains(res.Diff.Added, "sub/b.txt"), "expected sub/b.txt added")
	assert(len(res.Diff.Modified) == 0, "expected no modified on first run")
	assert(len(res.Diff.Removed) == 0, "expected no removed on first run")
}

func TestIndexSixScenariosAgainstStore(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "nefax.db")

	err := fixture.Build(root, `
		mkfile -m 4096 -M 8192 unchanged.txt
		mkfile -m 4096 -M 8192 modified.txt
		mkfile -m 100 -M 200 touched.txt
		mkfile -m 100 -M 200 removed.txt
	`)
	assert(err == nil, "build: %s", err)

	n, dt, p := overrides(2, true)
	opts := Options{WithHash: true, NumThreads: n, DriveType: dt, UseParallelWalk: p, StorePath: dbPath}

	first, err := Index(context.Background(), root, nil, opts, nil)
	assert(err == nil, "first index: %s", err)
	assert(len(first.Nefax) == 4, "expected 4 entries after first run, saw %d", len(first.Nefax))

	err = fixture.Build(root, `
		mutate modified.txt
		touch -t 1800000000 touched.txt
		rm removed.txt
		mkfile -m 10 -M 20 added.txt
	`)
	assert(err == nil, "mutate build: %s", err)

	second, err := Index(context.Background(), root, nil, opts, nil)
	assert(err == nil, "second index: %s", err)

	assert(contains(second.Diff.Added, "added.txt"), "expected added.txt in added set, saw %v", second.Diff.Added)
	assert(contains(second.Diff.Removed, "removed.txt"), "expected removed.txt in removed set, saw %v", second.Diff.Removed)
	assert(contains(second.Diff.Modified, "modified.txt"), "expected modified.txt in modified set, saw %v", second.Diff.Modified)
	assert(contains(second.Diff.Modified, "touched.txt"), "expected a pure mtime change to count as modified, saw %v", second.Diff.Modified)
	assert(!contains(second.Diff.Modified, "unchanged.txt"), "expected unchanged.txt to not be modified")
	assert(!contains(second.Diff.Added, "unchanged.txt"), "expected unchanged.txt to not be added")

	// a third run with no changes should report a clean diff.
	third, err := Index(context.Background(), root, nil, opts, nil)
	assert(err == nil, "third index: %s", err)
	assert(third.Diff.IsClean(), "expected a no-op run to produce a clean diff, saw %+v", third.Diff)
}

func TestIndexCancellationLeavesStoreUntouched(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "nefax.db")

	err := fixture.Build(root, `
		mkfile -m 1024 -M 2048 a.txt
		mkfile -m 1024 -M 2048 b.txt
		mkfile -m 1024 -M 2048 c.txt
	`)
	assert(err == nil, "build: %s", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, dt, p := overrides(1, false)
	opts := Options{WithHash: true, NumThreads: n, DriveType: dt, UseParallelWalk: p, StorePath: dbPath}
	_, err = Index(ctx, root, nil, opts, nil)
	assert(err != nil, "expected a cancelled run to return an error")

	st, openErr := store.Open(dbPath, nil)
	assert(openErr == nil, "open store after cancel: %s", openErr)
	defer st.Close()
	loaded, loadErr := st.Load()
	assert(loadErr == nil, "load after cancel: %s", loadErr)
	assert(len(loaded) == 0, "expected no partial commit after cancellation, saw %d entries", len(loaded))
}

func TestIndexEncryptedStoreRoundTrip(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "nefax.db")

	err := fixture.Build(root, "mkfile -m 100 -M 200 a.txt")
	assert(err == nil, "build: %s", err)

	key := func() ([]byte, error) { return []byte("a passphrase for this test"), nil }
	n, dt, p := overrides(1, false)
	opts := Options{WithHash: true, NumThreads: n, DriveType: dt, UseParallelWalk: p, StorePath: dbPath, Key: key}

	_, err = Index(context.Background(), root, nil, opts, nil)
	assert(err == nil, "index: %s", err)

	st, err := store.Open(dbPath, key)
	assert(err == nil, "reopen with same key: %s", err)
	defer st.Close()
	loaded, err := st.Load()
	assert(err == nil, "load: %s", err)
	assert(len(loaded) == 1, "expected 1 entry, saw %d", len(loaded))
}

func TestIndexDryRunLeavesStoreEmpty(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "nefax.db")

	err := fixture.Build(root, `
		mkfile -m 100 -M 200 a.txt
		mkfile -m 100 -M 200 b.txt
	`)
	assert(err == nil, "build: %s", err)

	n, dt, p := overrides(2, true)
	opts := Options{WithHash: true, NumThreads: n, DriveType: dt, UseParallelWalk: p, StorePath: dbPath, DryRun: true}

	res, err := Index(context.Background(), root, nil, opts, nil)
	assert(err == nil, "index: %s", err)
	assert(len(res.Nefax) == 2, "expected dry run to still observe 2 entries, saw %d", len(res.Nefax))
	assert(contains(res.Diff.Added, "a.txt"), "expected dry run to still compute a diff")

	st, err := store.Open(dbPath, nil)
	assert(err == nil, "open store after dry run: %s", err)
	defer st.Close()
	loaded, err := st.Load()
	assert(err == nil, "load after dry run: %s", err)
	assert(len(loaded) == 0, "expected dry_run to never change the stored snapshot, saw %d entries", len(loaded))

	_, ok, err := st.LoadDiskInfo()
	assert(err == nil, "load diskinfo after dry run: %s", err)
	assert(!ok, "expected dry_run to skip the diskinfo commit too")
}

func TestIndexStrictAbortsOnAccessError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permission bits")
	}
	assert := testutil.NewAsserter(t)
	root := t.TempDir()

	err := fixture.Build(root, `
		mkfile -m 100 -M 200 a.txt
		mkfile -d locked
		mkfile -m 100 -M 200 locked/b.txt
	`)
	assert(err == nil, "build: %s", err)

	lockedDir := filepath.Join(root, "locked")
	assert(chmodNoAccess(lockedDir) == nil, "lock down %s", lockedDir)
	defer chmodRestore(lockedDir)

	n, dt, p := overrides(1, false)
	opts := Options{WithHash: true, NumThreads: n, DriveType: dt, UseParallelWalk: p, Strict: true}

	_, err = Index(context.Background(), root, nil, opts, nil)
	assert(err != nil, "expected strict mode to surface the access error")
}

func TestIndexOptionsValidatePartialOverride(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()

	parallel := true
	opts := Options{WithHash: true, NumThreads: 2, UseParallelWalk: &parallel} // DriveType left unset
	_, err := Index(context.Background(), root, nil, opts, nil)
	assert(err != nil, "expected a partially set override group to fail validation")
}
