package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ystepanoff/nrfesb/config"
)

var (
	cmdConfig = &cobra.Command{
		Use:   "config",
		Short: "Print the default link configuration, or check a file",
		Long:  ``,
		RunE:  runConfig,
	}
)

var configCheck string

func init() {
	rootCmd.AddCommand(cmdConfig)
	cmdConfig.Flags().StringVarP(&configCheck, "check", "k", "", "Configuration file to validate")
}

func runConfig(_ *cobra.Command, _ []string) error {
	schema := config.DefaultSchema()
	if configCheck != "" {
		var err error
		schema, err = config.ReadSchema(configCheck)
		if err != nil {
			return err
		}
		if _, err := schema.ControllerConfig(); err != nil {
			return fmt.Errorf("%s: %w", configCheck, err)
		}
	}

	data, err := schema.Encode()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
