package fixture

import (
	"fmt"
	"os"
	"path"
	"time"
)

// touchCmd implements "touch [-t unix_ts] entries...": update an existing
// entry's mtime without touching its content, for the "mtime changed, size
// and hash unchanged" scenario the teacher's DSL has no command for (its
// mutate always rewrites bytes).
type touchCmd struct{}

func (touchCmd) Name() string { return "touch" }

func (touchCmd) Run(env *Env, args []string) error {
	tm := env.Now
	rest := args[:0:0]
	for i := 0; i < len(args); i++ {
		if args[i] == "-t" && i+1 < len(args) {
			var unix int64
			if _, err := fmt.Sscanf(args[i+1], "%d", &unix); err != nil {
				return fmt.Errorf("touch: -t %s: %w", args[i+1], err)
			}
			tm = time.Unix(unix, 0)
			i++
			continue
		}
		rest = append(rest, args[i])
	}

	for _, nm := range rest {
		fn := nm
		if !path.IsAbs(fn) {
			fn = path.Join(env.Root, fn)
		}
		if _, err := os.Lstat(fn); err != nil {
			return fmt.Errorf("touch: %s: %w", fn, err)
		}
		if err := os.Chtimes(fn, tm, tm); err != nil {
			return fmt.Errorf("touch: %s: %w", fn, err)
		}
	}
	return nil
}

func init() { RegisterCommand(touchCmd{}) }
