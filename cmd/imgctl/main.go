// Command imgctl resolves and inspects image references from the command line.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tripsnap/api/pkg/logging"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "imgctl",
		Short:         "Resolve trip image references to display URLs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				return nil
			}
			return logging.InitLogger("debug", "console")
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log resolution steps to stderr")

	root.AddCommand(newResolveCmd(), newClassifyCmd(), newTokenCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
