package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		if c.Geocode.GoogleKey != "" {
			c.Geocode.GoogleKey = "****"
		}

		out, err := yaml.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "config: marshal")
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
