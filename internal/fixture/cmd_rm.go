package fixture

import (
	"fmt"
	"os"
	"path"
)

// rmCmd implements "rm entries...": remove a file or a directory subtree,
// for building the "removed" scenario.
type rmCmd struct{}

func (rmCmd) Name() string { return "rm" }

func (rmCmd) Run(env *Env, args []string) error {
	for _, nm := range args {
		fn := nm
		if !path.IsAbs(fn) {
			fn = path.Join(env.Root, fn)
		}
		if err := os.RemoveAll(fn); err != nil {
			return fmt.Errorf("rm: %s: %w", fn, err)
		}
	}
	return nil
}

func init() { RegisterCommand(rmCmd{}) }
