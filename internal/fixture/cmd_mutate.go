package fixture

import (
	"fmt"
	"os"
	"path"
)

const (
	minMutationPct int64 = 10
	maxMutationPct int64 = 30
)

// mutateCmd implements "mutate entries...": rewrite a random slice of each
// entry's bytes in place, simulating a content-only modification (mtime
// advances as a natural side effect of the write, exactly as a real editor
// would leave it — nothing here pins mtime/size artificially).
type mutateCmd struct{}

func (mutateCmd) Name() string { return "mutate" }

func (mutateCmd) Run(env *Env, args []string) error {
	for _, nm := range args {
		fn := nm
		if !path.IsAbs(fn) {
			fn = path.Join(env.Root, fn)
		}
		if st, err := os.Lstat(fn); err != nil || !st.Mode().IsRegular() {
			return fmt.Errorf("mutate: %s: not a regular file", fn)
		}
		if err := mutate(fn, minMutationPct, maxMutationPct); err != nil {
			return fmt.Errorf("mutate: %s: %w", fn, err)
		}
	}
	return nil
}

func init() { RegisterCommand(mutateCmd{}) }
