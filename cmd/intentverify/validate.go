package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dataset]",
		Short: "Check that a dataset builds into a consistent topology",
		Long: `validate loads the descriptors and builds the topology without evaluating
any intent. Structural errors are listed one per line and make the command
fail; recoverable defects are printed as warnings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, topo, err := a.loadAndBuild(cmd.Context(), args)
			if err != nil {
				a.printStructural(err)
				return err
			}
			c := topo.Counts()
			fmt.Fprintf(a.stdout, "%s: %d nodes, %d links, %d VPNs, %d VRFs, %d TE policies\n",
				topo.Name(), c.Nodes, c.Links, c.VPNs, c.VRFs, c.Policies)
			if topo.Synthesized() {
				fmt.Fprintln(a.stdout, "no config descriptor, ground-truth configuration synthesised")
			}
			for _, d := range topo.Defects() {
				fmt.Fprintf(a.stdout, "defect: %s %s: %s\n", d.Kind, d.Subject, d.Detail)
			}
			return nil
		},
	}
}
