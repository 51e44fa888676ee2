package cmd

import (
	"os"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nlpforge/bpetrain/envconfig"
)

func NewEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show environment configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := envconfig.AsMap()
			vals := envconfig.Values()

			keys := make([]string, 0, len(vars))
			for k := range vars {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"NAME", "VALUE", "DESCRIPTION"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")

			for _, k := range keys {
				v := vars[k]
				table.Append([]string{v.Name, vals[k], v.Description})
			}

			table.Render()
			return nil
		},
	}
}
