// Package service runs intentverify as a long-lived process: periodic
// re-verification of a dataset, Prometheus metrics, the latest report over
// HTTP and a gRPC health endpoint.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/intent"
	"github.com/signalsfoundry/netintent/internal/logging"
	"github.com/signalsfoundry/netintent/internal/report"
	"github.com/signalsfoundry/netintent/internal/verify"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported on the gRPC health endpoint.
const HealthService = "intentverify.Verifier"

// Run outcomes reported to RunMetrics.RecordRun.
const (
	OutcomeOK         = "ok"
	OutcomeStructural = "structural_error"
	OutcomeError      = "error"
)

// ErrNoReport is returned by Latest before the first run finished.
var ErrNoReport = errors.New("no verification has completed yet")

// RunMetrics receives per-run observations.
// *observability.VerifyCollector satisfies it.
type RunMetrics interface {
	verify.Recorder
	SetTopologyCounts(nodes, links, vpns, vrfs, policies int)
	RecordRun(outcome string)
	SetAccuracy(category string, value float64, defined bool)
}

// Loader produces the dataset to verify on each run.
type Loader func(ctx context.Context) (*core.Dataset, error)

// PathLoader loads the dataset directory or bundle file at path.
func PathLoader(path string) Loader {
	return func(context.Context) (*core.Dataset, error) {
		return core.LoadDataset(path)
	}
}

// Runner verifies a dataset on demand or periodically and keeps the latest
// report. It is safe for concurrent use.
type Runner struct {
	load    Loader
	opts    []verify.Option
	metrics RunMetrics
	health  *health.Server
	log     logging.Logger

	mu      sync.RWMutex
	last    *report.Report
	lastErr error
}

// NewRunner creates a Runner. metrics and hs may be nil.
func NewRunner(load Loader, log logging.Logger, metrics RunMetrics, hs *health.Server, opts ...verify.Option) *Runner {
	if log == nil {
		log = logging.Noop()
	}
	r := &Runner{load: load, metrics: metrics, health: hs, log: log}
	r.opts = append([]verify.Option{verify.WithLogger(log)}, opts...)
	if metrics != nil {
		r.opts = append(r.opts, verify.WithMetrics(metrics))
	}
	r.setServing(healthpb.HealthCheckResponse_NOT_SERVING)
	return r
}

// RunOnce loads and verifies the dataset. On success the report replaces
// the previous one; on failure the previous report is kept and the error is
// remembered for Latest.
func (r *Runner) RunOnce(ctx context.Context) (*report.Report, error) {
	ds, err := r.load(ctx)
	if err != nil {
		return nil, r.fail(ctx, OutcomeError, err)
	}
	out, err := verify.Dataset(ctx, ds, r.opts...)
	if err != nil {
		outcome := OutcomeError
		if core.IsStructural(err) {
			outcome = OutcomeStructural
		}
		return nil, r.fail(ctx, outcome, err)
	}

	rep := report.New(out.Topology, out.Instances)
	if r.metrics != nil {
		c := rep.Counts
		r.metrics.SetTopologyCounts(c.Nodes, c.Links, c.VPNs, c.VRFs, c.Policies)
		r.metrics.SetAccuracy("overall", rep.Accuracy.Overall.Value, rep.Accuracy.Overall.Defined)
		for _, cat := range intent.Categories() {
			acc := rep.Accuracy.Categories[cat]
			r.metrics.SetAccuracy(string(cat), acc.Value, acc.Defined)
		}
		r.metrics.RecordRun(OutcomeOK)
	}

	r.mu.Lock()
	r.last = rep
	r.lastErr = nil
	r.mu.Unlock()
	r.setServing(healthpb.HealthCheckResponse_SERVING)

	r.log.Info(ctx, "verification run complete",
		logging.String("run_id", rep.RunID),
		logging.String("topology", rep.Topology),
		logging.String("accuracy", rep.Accuracy.Overall.String()),
	)
	return rep, nil
}

func (r *Runner) fail(ctx context.Context, outcome string, err error) error {
	if r.metrics != nil {
		r.metrics.RecordRun(outcome)
	}
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	if outcome == OutcomeStructural {
		r.setServing(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	r.log.Error(ctx, "verification run failed", logging.String("outcome", outcome), logging.Err(err))
	return err
}

// Latest returns the last successful report together with the error of the
// most recent run, if that run failed.
func (r *Runner) Latest() (*report.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil && r.lastErr == nil {
		return nil, ErrNoReport
	}
	return r.last, r.lastErr
}

// Loop runs once immediately and then every interval until ctx is done. A
// non-positive interval runs once and waits for ctx.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) {
	if ctx == nil {
		return
	}
	_, _ = r.RunOnce(ctx)
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.RunOnce(ctx)
		}
	}
}

func (r *Runner) setServing(status healthpb.HealthCheckResponse_ServingStatus) {
	if r.health == nil {
		return
	}
	r.health.SetServingStatus("", status)
	r.health.SetServingStatus(HealthService, status)
}
