package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/effective-security/toolrouter/tools"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var category string
	var tags []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the catalogue tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}

			var list []*tools.Tool
			switch {
			case category != "":
				list = reg.GetToolsByCategory(category)
			case len(tags) > 0:
				list = reg.GetToolsByTags(tags)
			default:
				list = reg.GetAllTools()
			}

			if asJSON {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), tools.GetDescriptions(list...))
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCATEGORY\tMETHOD\tPATH\tPRIORITY\tENABLED\tTAGS")
			for _, t := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
					t.Name, t.Category, t.Method, t.Path, t.Priority, t.Enabled, strings.Join(t.Tags, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "list tools in the category")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "list tools with all the tags")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tool descriptions as JSON")
	return cmd
}
