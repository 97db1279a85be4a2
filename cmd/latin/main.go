package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/keizerzilla/latin/cmd/latin/commands"
)

// newRootCmd builds a fresh command tree. Subcommands are constructed per
// root so flag values never leak from one tree to the next.
func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbosity  int
	)
	root := &cobra.Command{
		Use:   "latin",
		Short: "3D face registration, moment extraction and rank benchmarking",
		Long: `latin - face recognition experiments on 3D scans.

Available commands:
  register - align scans to their subject's neutral reference
  extract  - compute moment features with the external tool
  classify - benchmark classifiers under the rank protocols
  runs     - inspect stored classify runs
  version  - show build information`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return commands.Setup(configPath, verbosity, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (json, yaml or toml)")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Enable diag (-v) and trace (-vv) logs")

	root.AddCommand(
		commands.NewRegisterCmd(),
		commands.NewExtractCmd(),
		commands.NewClassifyCmd(),
		commands.NewRunsCmd(),
		commands.NewVersionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		stop()
		os.Exit(1)
	}
}
