package fixture

import (
	"fmt"
	"math/rand/v2"
	"path"

	flag "github.com/opencoff/pflag"
)

// mkfileCmd implements "mkfile [-d] [-m min] [-M max] entries...": create
// a file (or, with -d, a directory) at each of entries, relative to the
// tree root unless the entry is an absolute path.
type mkfileCmd struct{}

func (mkfileCmd) Name() string { return "mkfile" }

func (mkfileCmd) Run(env *Env, args []string) error {
	fs := flag.NewFlagSet("mkfile", flag.ContinueOnError)
	isDir := fs.BoolP("dir", "d", false, "make directories instead of files")
	minsz := SizeValue(1024)
	maxsz := SizeValue(8 * 1024)
	fs.VarP(&minsz, "min-file-size", "m", "minimum file size")
	fs.VarP(&maxsz, "max-file-size", "M", "maximum file size")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("mkfile: %w", err)
	}

	for _, nm := range fs.Args() {
		fn := nm
		if !path.IsAbs(fn) {
			fn = path.Join(env.Root, fn)
		}

		if *isDir {
			if err := mkdir(fn, env.Now); err != nil {
				return fmt.Errorf("mkfile: mkdir %s: %w", fn, err)
			}
			continue
		}

		lo, hi := int64(minsz.Value()), int64(maxsz.Value())
		sz := lo
		if hi > lo {
			sz = rand.Int64N(hi-lo) + lo
		}
		if err := mkfile(fn, sz, env.Now); err != nil {
			return fmt.Errorf("mkfile: %s: %w", fn, err)
		}
	}
	return nil
}

func init() { RegisterCommand(mkfileCmd{}) }
