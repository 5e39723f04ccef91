package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/catalog"
	"github.com/effective-security/toolrouter/schema"
	"github.com/effective-security/toolrouter/utils"
	"github.com/spf13/cobra"
)

func newSchemaCmd(a *app) *cobra.Command {
	var toolName string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the catalogue file, or of the tool parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if toolName == "" {
				s, err := catalog.Schema()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), s.String())
				return err
			}

			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			t, ok := reg.Get(toolName)
			if !ok {
				return errors.Errorf("tool not found: %s", toolName)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), utils.ToJSONIndent(schema.Parameters(t)))
			return err
		},
	}
	cmd.Flags().StringVar(&toolName, "tool", "", "print the parameters schema of the catalogue tool")
	return cmd
}
