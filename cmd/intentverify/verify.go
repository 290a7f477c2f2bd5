package main

import (
	"fmt"

	"github.com/signalsfoundry/netintent/internal/intent"
	"github.com/signalsfoundry/netintent/internal/report"
	"github.com/signalsfoundry/netintent/internal/verify"
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		kinds     []string
		failUnder float64
	)
	cmd := &cobra.Command{
		Use:   "verify [dataset]",
		Short: "Evaluate every intent instance and report accuracy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			filter, err := parseKinds(kinds)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			_, topo, err := a.loadAndBuild(ctx, args)
			if err != nil {
				a.printStructural(err)
				return err
			}
			v, err := verify.New(ctx, topo,
				verify.WithWorkers(cfg.Workers),
				verify.WithLogger(a.log),
			)
			if err != nil {
				return err
			}
			results, err := v.Run(ctx, intent.Filter(intent.Instantiate(topo), filter...))
			if err != nil {
				return err
			}

			rep := report.New(topo, results)
			terminal := a.terminal()
			opts := report.Options{Color: cfg.ReportColor(terminal), Verbose: cfg.Report.Verbose}
			if err := report.Write(a.stdout, rep, cfg.ReportFormat(terminal), opts); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			if overall := rep.Accuracy.Overall; failUnder > 0 && overall.Defined && overall.Value < failUnder {
				return fmt.Errorf("accuracy %.4f is below %.4f", overall.Value, failUnder)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("format", "", "report format: json, jsonl, table (default table on a terminal, json otherwise)")
	f.Bool("verbose", false, "list passing instances in the table report")
	f.String("color", "auto", "colour the table report: auto, always, never")
	f.StringSliceVar(&kinds, "kind", nil, "only evaluate these intent kinds (I1..I6); repeatable")
	f.Float64Var(&failUnder, "fail-under", 0, "exit non-zero when overall accuracy is below this value")
	a.bindKeys(cmd, reportKeys)
	return cmd
}

var reportKeys = map[string]string{
	"report.format":  "format",
	"report.verbose": "verbose",
	"report.color":   "color",
}

func parseKinds(raw []string) ([]intent.Kind, error) {
	out := make([]intent.Kind, 0, len(raw))
	for _, s := range raw {
		k, err := intent.ParseKind(s)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
