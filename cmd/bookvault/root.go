package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "bookvault",
		Short:         "Archive remote serialized works for offline reading",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional file with BV_* settings")

	cmd.AddCommand(
		newServeCmd(opts),
		newDownloadCmd(opts),
		newSyncCmd(opts),
		newListCmd(opts),
		newReadCmd(opts),
	)
	return cmd
}
