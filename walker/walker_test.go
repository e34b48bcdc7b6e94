package walker

import (
	"testing"

	"github.com/thicclatka/nefaxer/internal/fixture"
	"github.com/thicclatka/nefaxer/internal/testutil"
)

func drain(t *testing.T, out chan Entry, errch chan error) (map[string]Entry, []error) {
	t.Helper()
	entries := make(map[string]Entry)
	done := make(chan struct{})
	var errs []error
	go func() {
		for e := range errch {
			errs = append(errs, e)
		}
		close(done)
	}()
	for e := range out {
		entries[e.RelPath] = e
	}
	<-done
	return entries, errs
}

func TestWalkBasicTree(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()

	err := fixture.Build(root, `
		mkfile -m 100 -M 200 a.txt
		mkfile -m 100 -M 200 sub/b.txt
		mkfile -d sub/empty
	`)
	assert(err == nil, "fixture build: %s", err)

	out, errch := Walk(root, &Options{Concurrency: 2})
	entries, errs := drain(t, out, errch)
	assert(len(errs) == 0, "unexpected walk errors: %v", errs)

	_, ok := entries["a.txt"]
	assert(ok, "expected a.txt in walk output")
	_, ok = entries["sub/b.txt"]
	assert(ok, "expected sub/b.txt in walk output")
	_, ok = entries["sub/empty"]
	assert(ok, "expected sub/empty dir in walk output")
	assert(entries["sub/empty"].IsDir, "expected sub/empty to be reported as a dir")
	assert(!entries["a.txt"].IsDir, "expected a.txt to not be reported as a dir")
}

func TestWalkExcludes(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()

	err := fixture.Build(root, `
		mkfile -m 10 -M 20 keep.txt
		mkfile -m 10 -M 20 skip.tmp
	`)
	assert(err == nil, "fixture build: %s", err)

	out, errch := Walk(root, &Options{Concurrency: 1, Excludes: []string{"*.tmp"}})
	entries, errs := drain(t, out, errch)
	assert(len(errs) == 0, "unexpected walk errors: %v", errs)

	_, ok := entries["keep.txt"]
	assert(ok, "expected keep.txt in walk output")
	_, ok = entries["skip.tmp"]
	assert(!ok, "expected skip.tmp to be excluded")
}

func TestWalkExcludesSubtree(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()

	err := fixture.Build(root, `
		mkfile -m 10 -M 20 keep.txt
		mkfile -m 10 -M 20 sub/b.txt
		mkfile -m 10 -M 20 sub/nested/c.txt
	`)
	assert(err == nil, "fixture build: %s", err)

	out, errch := Walk(root, &Options{Concurrency: 1, Excludes: []string{"sub/**"}})
	entries, errs := drain(t, out, errch)
	assert(len(errs) == 0, "unexpected walk errors: %v", errs)

	_, ok := entries["keep.txt"]
	assert(ok, "expected keep.txt in walk output")
	_, ok = entries["sub"]
	assert(!ok, "expected sub directory itself to be pruned")
	_, ok = entries["sub/b.txt"]
	assert(!ok, "expected sub/b.txt to be excluded")
	_, ok = entries["sub/nested/c.txt"]
	assert(!ok, "expected sub/nested/c.txt (deeper than the excluded dir) to be excluded")
}

func TestWalkSerialMatchesParallel(t *testing.T) {
	assert := testutil.NewAsserter(t)
	root := t.TempDir()

	err := fixture.Build(root, `
		mkfile -m 10 -M 50 d1/a.txt
		mkfile -m 10 -M 50 d1/b.txt
		mkfile -m 10 -M 50 d2/c.txt
	`)
	assert(err == nil, "fixture build: %s", err)

	serialOut, serialErr := Walk(root, &Options{Concurrency: 1})
	serial, errs1 := drain(t, serialOut, serialErr)
	assert(len(errs1) == 0, "unexpected serial errors: %v", errs1)

	parOut, parErr := Walk(root, &Options{Concurrency: 4})
	parallel, errs2 := drain(t, parOut, parErr)
	assert(len(errs2) == 0, "unexpected parallel errors: %v", errs2)

	assert(len(serial) == len(parallel), "expected same entry count: serial=%d parallel=%d", len(serial), len(parallel))
	for p := range serial {
		_, ok := parallel[p]
		assert(ok, "parallel walk missing %s", p)
	}
}
