// Command thingset-inspect is an interactive node-tree inspector: a
// readline shell over pkg/inspect.Inspector offering direct
// tree/read/write/call operations against a local demo registry. A
// --state flag loads and, on exit, saves the
// registry's persisted subset through pkg/persistence, so the shell
// can double as a --verify tool for a snapshot written by
// thingset-server.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/thingset-go/thingset-go/internal/demo"
	"github.com/thingset-go/thingset-go/pkg/inspect"
	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/persistence"
	"github.com/thingset-go/thingset-go/pkg/registry"
)

var statePath string
var verify bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thingset-inspect",
		Short: "Interactively inspect a ThingSet node tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "Persisted state file to load and save")
	cmd.Flags().BoolVar(&verify, "verify", false, "Print a fingerprint of the loaded and saved state for comparison")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "thingset-inspect:", err)
		os.Exit(1)
	}
}

func run() error {
	reg := registry.New()
	if _, err := demo.Build(reg); err != nil {
		return err
	}

	var store *persistence.FileStore
	if statePath != "" {
		store = persistence.NewFileStore(statePath)
		if raw, err := store.Load(); err == nil {
			if err := persistence.NewStore(reg).Restore(raw); err != nil {
				fmt.Fprintln(os.Stderr, "warning: discarding unreadable state:", err)
			} else if verify {
				fmt.Println("loaded fingerprint:", persistence.Fingerprint(raw))
			}
		} else if err != persistence.ErrNoPersistedState {
			fmt.Fprintln(os.Stderr, "warning: load state:", err)
		}
	}

	insp := inspect.NewInspector(reg)
	f := inspect.NewFormatter()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "thingset> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("thingset-inspect: start shell: %w", err)
	}
	defer rl.Close()

	printHelp()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := dispatch(insp, f, fields); err == io.EOF {
			break
		} else if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}

	if store != nil {
		raw, err := persistence.NewStore(reg).Snapshot(node.SubsetPersisted)
		if err != nil {
			return fmt.Errorf("thingset-inspect: snapshot state: %w", err)
		}
		if err := store.Save(raw); err != nil {
			return fmt.Errorf("thingset-inspect: save state: %w", err)
		}
		if verify {
			fmt.Println("saved fingerprint:", persistence.Fingerprint(raw))
		}
	}
	return nil
}

func printHelp() {
	fmt.Println(`commands:
  tree [path]            print the subtree rooted at path (default: root)
  read <path>            print one attribute's value
  readall <path>         print every child of a group
  write <path> <value>   write a value (text-mode syntax, e.g. 42, "on")
  call <path> [args]     invoke a function, args as a text-mode array
  help                   show this message
  quit                   exit, saving state if --state was given`)
}

func dispatch(insp *inspect.Inspector, f *inspect.Formatter, fields []string) error {
	switch fields[0] {
	case "help":
		printHelp()
	case "quit", "exit":
		return io.EOF
	case "tree":
		path := ""
		if len(fields) > 1 {
			path = fields[1]
		}
		tree, err := insp.InspectTree(path)
		if err != nil {
			return err
		}
		fmt.Print(inspect.FormatTree(tree, f))
	case "read":
		if len(fields) != 2 {
			return fmt.Errorf("usage: read <path>")
		}
		v, err := insp.ReadAttribute(fields[1])
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "readall":
		if len(fields) != 2 {
			return fmt.Errorf("usage: readall <path>")
		}
		rows, err := insp.ReadAllAttributes(fields[1])
		if err != nil {
			return err
		}
		fmt.Print(f.FormatAttributeTable(rows))
	case "write":
		if len(fields) < 3 {
			return fmt.Errorf("usage: write <path> <value>")
		}
		return insp.WriteAttribute(fields[1], strings.Join(fields[2:], " "))
	case "call":
		if len(fields) < 2 {
			return fmt.Errorf("usage: call <path> [args]")
		}
		path := fields[1]
		args := ""
		if len(fields) > 2 {
			args = strings.Join(fields[2:], " ")
		}
		ret, err := insp.InvokeCommand(path, args)
		if err != nil {
			return err
		}
		fmt.Println(ret)
	default:
		return fmt.Errorf("unknown command %q (try \"help\")", fields[0])
	}
	return nil
}
