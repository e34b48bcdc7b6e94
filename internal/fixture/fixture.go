// Package fixture builds test directory trees from a small scripted DSL,
// for use from ordinary package _test.go files.
//
// Grounded on the teacher's testsuite package family (cmp/testsuite/parse.go
// for the shlex-tokenized, backslash-continuation line format and the
// Cmd-interface command registry; testsuite/cmd_mkfile.go and
// testsuite/cmd_mutate.go for the mkfile/mutate command shapes;
// testsuite/fileutils.go for the underlying mkdir/mkfile/mutate file
// helpers). Two things were dropped: the standalone CLI entry point
// (testsuite/main.go) and its github.com/opencoff/go-testrunner dependency,
// since nefaxer's tests call Build directly from Go test functions instead
// of shelling out to a separate `.t`-script runner binary; and the lhs/rhs
// two-tree vocabulary, since nefaxer diffs one tree against a prior
// snapshot rather than comparing two trees side by side — every fixture
// command here operates on a single root.
package fixture

import (
	"bufio"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opencoff/shlex"
)

// Cmd is one fixture DSL command.
type Cmd interface {
	Name() string
	Run(env *Env, args []string) error
}

// Env is the state threaded through a script's commands.
type Env struct {
	// Root is the directory the script builds under.
	Root string
	// Now is the timestamp new files/dirs are created with, unless a
	// command overrides it.
	Now time.Time
}

var registry struct {
	sync.Mutex
	once sync.Once
	cmds map[string]Cmd
}

// RegisterCommand makes a Cmd available to Build under its Name(). Called
// from init() in the cmd_*.go files of this package.
func RegisterCommand(cmd Cmd) {
	registry.Lock()
	defer registry.Unlock()
	registry.once.Do(func() { registry.cmds = make(map[string]Cmd) })

	nm := cmd.Name()
	if _, ok := registry.cmds[nm]; ok {
		panic(fmt.Sprintf("fixture: command %q already registered", nm))
	}
	registry.cmds[nm] = cmd
}

// Build parses script (one command per logical line; a trailing backslash
// continues a line; '#' starts a comment) and runs each command in order
// against a tree rooted at root.
func Build(root string, script string) error {
	env := &Env{Root: root, Now: time.Unix(1_700_000_000, 0)}
	return run(env, script)
}

// BuildAt is like Build but lets the caller pin the mtime new entries are
// created with, for scenarios that need a specific, reproducible timeline.
func BuildAt(root string, now time.Time, script string) error {
	env := &Env{Root: root, Now: now}
	return run(env, script)
}

func run(env *Env, script string) error {
	sc := bufio.NewScanner(strings.NewReader(script))
	var line string
	for n := 1; sc.Scan(); n++ {
		part := strings.TrimSpace(sc.Text())
		if part == "" || strings.HasPrefix(part, "#") {
			continue
		}
		if strings.HasSuffix(part, "\\") {
			line += part[:len(part)-1]
			continue
		}
		line += part

		args, err := shlex.Split(line)
		line = ""
		if err != nil {
			return fmt.Errorf("fixture: line %d: %w", n, err)
		}
		if len(args) == 0 {
			continue
		}

		cmd, ok := registry.cmds[args[0]]
		if !ok {
			return fmt.Errorf("fixture: line %d: unknown command %q", n, args[0])
		}
		if err := cmd.Run(env, args[1:]); err != nil {
			return fmt.Errorf("fixture: line %d: %w", n, err)
		}
	}
	return sc.Err()
}
