package main

import (
	"fmt"

	"github.com/signalsfoundry/netintent/internal/observability"
	"github.com/signalsfoundry/netintent/internal/service"
	"github.com/signalsfoundry/netintent/internal/verify"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/health"
)

var serveKeys = map[string]string{
	"grpc.addr":      "grpc-addr",
	"metrics.addr":   "metrics-addr",
	"serve.interval": "interval",
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [dataset]",
		Short: "Re-verify a dataset periodically and expose metrics, reports and health",
		Long: `serve verifies the dataset once at startup and then every --interval.
Prometheus metrics are served on /metrics, the latest report on /report
(?format=json|jsonl|table) and liveness on /healthz. A gRPC health service
reports SERVING once a verification has completed and NOT_SERVING while the
dataset is structurally invalid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.datasetPath(args)
			if err != nil {
				return err
			}
			collector, err := observability.NewVerifyCollector(nil)
			if err != nil {
				return fmt.Errorf("init metrics: %w", err)
			}

			hs := health.NewServer()
			runner := service.NewRunner(service.PathLoader(path), a.log, collector, hs,
				verify.WithWorkers(a.cfg.Workers))
			srv := service.NewServer(service.Config{
				GRPCAddr: a.cfg.GRPC.Addr,
				HTTPAddr: a.cfg.Metrics.Addr,
				Interval: a.cfg.Serve.Interval,
			}, runner, hs, collector, a.log)
			return srv.Serve(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("grpc-addr", ":50051", "TCP address of the gRPC health service")
	f.String("metrics-addr", ":9090", "HTTP address for /metrics, /report and /healthz")
	f.Duration("interval", 0, "re-verification interval (0 verifies once and keeps serving)")
	a.bindKeys(cmd, serveKeys)
	return cmd
}
