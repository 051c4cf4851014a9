package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zeusync/metacore/internal/core/config"
	"github.com/zeusync/metacore/internal/injector"
)

func NewServeCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Load the asset store and serve the editor link",
		Example: "archivectl serve --config metacore.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if path != "" {
				var err error
				if cfg, err = config.LoadFile(path); err != nil {
					return err
				}
			}
			rt, cleanup, err := injector.InitializeRuntime(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "YAML config file")
	return cmd
}
