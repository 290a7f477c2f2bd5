package main

import (
	"encoding/json"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/signalsfoundry/netintent/internal/intent"
	"github.com/spf13/cobra"
)

func newInstancesCmd(a *app) *cobra.Command {
	var (
		kinds  []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "instances [dataset]",
		Short: "List the intent instances of a dataset without evaluating them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseKinds(kinds)
			if err != nil {
				return err
			}
			_, topo, err := a.loadAndBuild(cmd.Context(), args)
			if err != nil {
				a.printStructural(err)
				return err
			}
			instances := intent.Filter(intent.Instantiate(topo), filter...)

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(instances)
			}

			table := tablewriter.NewWriter(a.stdout)
			table.SetAutoWrapText(false)
			table.SetBorder(false)
			table.SetHeaderLine(false)
			table.SetCenterSeparator("")
			table.SetColumnSeparator("")
			table.SetRowSeparator("")
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeader([]string{"ID", "KIND", "CATEGORY"})
			for _, in := range instances {
				table.Append([]string{in.ID, in.Kind.String(), string(in.Category())})
			}
			table.Render()

			counts := intent.CountByKind(instances)
			fmt.Fprintf(a.stdout, "\n%d instances:", len(instances))
			for _, k := range intent.Kinds() {
				if n := counts[k]; n > 0 {
					fmt.Fprintf(a.stdout, " %s=%d", k, n)
				}
			}
			fmt.Fprintln(a.stdout)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&kinds, "kind", nil, "only list these intent kinds (I1..I6); repeatable")
	f.BoolVar(&asJSON, "json", false, "print the instances as JSON")
	return cmd
}
