package main

import (
	"fmt"

	"github.com/effective-security/toolrouter/utils"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), utils.ToYAML(a.cfg))
			return err
		},
	}
}
