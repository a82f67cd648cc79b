package main

import "github.com/spf13/cobra"

var (
	rootCmd = &cobra.Command{
		Use:           "esblink",
		Short:         "Enhanced ShockBurst link demo over a simulated transceiver.",
		Long:          ``,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

func Execute() error {
	return rootCmd.Execute()
}
