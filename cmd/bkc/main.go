// Command bkc is the operator CLI for the Backchain staking, rewards, store
// and actions contracts.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(openEnv, os.Stdout, os.Stderr, os.Stdin)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// cli binds the command tree to its environment factory and streams.
type cli struct {
	flags  globalFlags
	open   opener
	stdout io.Writer
	stdin  io.Reader
}

func newRootCommand(open opener, stdout, stderr io.Writer, stdin io.Reader) *cobra.Command {
	c := &cli{open: open, stdout: stdout, stdin: stdin}
	root := &cobra.Command{
		Use:           "bkc",
		Short:         "Backchain client: staking, rewards, booster store and actions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(stdin)
	root.PersistentFlags().StringVarP(&c.flags.configPath, "config", "c", "", "configuration file (TOML or YAML); defaults target Sepolia")
	root.PersistentFlags().BoolVarP(&c.flags.assumeYes, "yes", "y", false, "answer yes to confirmation prompts")
	root.PersistentFlags().BoolVarP(&c.flags.verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	root.AddCommand(c.queryCommands()...)
	root.AddCommand(c.writeCommands()...)
	root.AddCommand(c.localCommands()...)
	return root
}

// withEnv opens an env for the duration of fn.
func (c *cli) withEnv(cmd *cobra.Command, signing bool, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := c.open(ctx, &c.flags, signing, c.stdout, c.stdin)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}
