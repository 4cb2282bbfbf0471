// Package cli wires configuration, storage and transport into the dockslots
// command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dockslots",
		Short:         "Dock slot reservation service: booking API, closures and audit worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serve := newServeCmd()
	// Running the binary without a subcommand starts the API.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newUserCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newWorkerCmd())
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
