package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memohai/mediagrab/internal/version"
)

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mediagrab",
		Short:         "Chat bot that fetches media behind Instagram and TeraBox links",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (TOML or YAML); defaults to $CONFIG_PATH or config.toml")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the ops server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "mediagrab "+version.GetInfo())
		},
	})
	return root
}
