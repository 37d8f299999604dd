package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		text, err := cfg.Encode()
		if err != nil {
			return err
		}
		source := cfg.Path
		if source == "" {
			source = "defaults"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle(fmt.Sprintf("# %s", source)))
		fmt.Fprint(out, text)
		return nil
	},
}
