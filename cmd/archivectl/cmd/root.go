// Package cmd implements the archivectl command line.
package cmd

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "archivectl",
		Short:         "Inspect archive blobs and serve the editor link",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		NewClassesCmd(),
		NewDumpCmd(),
		NewServeCmd(),
	)
	return root
}
