// Package verify evaluates intent instances against a built topology.
//
// A Verifier owns the derived state of one topology (underlay graph,
// resolved RIB, FIB simulator and TE validator). All of it is read-only
// after New returns, so instances are checked concurrently without locks.
package verify

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/fib"
	"github.com/signalsfoundry/netintent/internal/intent"
	"github.com/signalsfoundry/netintent/internal/logging"
	"github.com/signalsfoundry/netintent/internal/observability"
	"github.com/signalsfoundry/netintent/internal/overlay"
	"github.com/signalsfoundry/netintent/internal/te"
	"github.com/signalsfoundry/netintent/internal/underlay"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ErrNoChecker is returned by Run for an instance whose kind has no checker.
var ErrNoChecker = errors.New("no checker for intent kind")

// Recorder receives one observation per evaluated instance.
// *observability.VerifyCollector satisfies it.
type Recorder interface {
	ObserveInstance(kind string, pass bool, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveInstance(string, bool, time.Duration) {}

type checkFunc func(v *Verifier, in intent.Instance) intent.Result

// checks is the fixed dispatch table from intent kind to checker.
var checks = map[intent.Kind]checkFunc{
	intent.I1: checkUnderlay,
	intent.I2: checkIntraVPN,
	intent.I3: checkInterVPN,
	intent.I4: checkVisibility,
	intent.I5: checkTE,
	intent.I6: checkForwarding,
}

// Verifier checks intent instances of one topology.
type Verifier struct {
	topo  *core.Topology
	graph *underlay.Graph
	rib   *overlay.RIB
	sim   *fib.Simulator
	te    *te.Validator

	workers int
	log     logging.Logger
	metrics Recorder
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithWorkers bounds the number of instances evaluated concurrently. Values
// below 1 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(v *Verifier) { v.workers = n }
}

func WithLogger(log logging.Logger) Option {
	return func(v *Verifier) {
		if log != nil {
			v.log = log
		}
	}
}

func WithMetrics(r Recorder) Option {
	return func(v *Verifier) {
		if r != nil {
			v.metrics = r
		}
	}
}

// New computes the derived state of topo.
func New(ctx context.Context, topo *core.Topology, opts ...Option) (*Verifier, error) {
	v := &Verifier{
		topo:    topo,
		log:     logging.Noop(),
		metrics: noopRecorder{},
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.workers < 1 {
		v.workers = runtime.GOMAXPROCS(0)
	}

	v.graph = underlay.Build(topo)
	rib, err := overlay.Resolve(ctx, topo, v.graph, v.log)
	if err != nil {
		return nil, fmt.Errorf("verify.New: %w", err)
	}
	v.rib = rib
	v.sim = fib.NewSimulator(topo, v.graph, rib)
	v.te = te.NewValidator(topo, v.sim)
	return v, nil
}

// Topology returns the topology under verification.
func (v *Verifier) Topology() *core.Topology { return v.topo }

// Simulator returns the FIB simulator over the resolved state.
func (v *Verifier) Simulator() *fib.Simulator { return v.sim }

// Run evaluates instances on a bounded worker pool and returns a copy with
// every Result filled in, in input order. A cancelled ctx stops the run and
// returns the context error; no partial results are returned.
func (v *Verifier) Run(ctx context.Context, instances []intent.Instance) ([]intent.Instance, error) {
	ctx, span := observability.StartSpan(ctx, "verify.Run",
		attribute.String("topology", v.topo.Name()),
		attribute.Int("instances", len(instances)),
		attribute.Int("workers", v.workers),
	)
	defer span.End()

	for _, in := range instances {
		if _, ok := checks[in.Kind]; !ok {
			return nil, fmt.Errorf("Run %s: %w %s", in.ID, ErrNoChecker, in.Kind)
		}
	}

	start := time.Now()
	out := make([]intent.Instance, len(instances))
	copy(out, instances)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i := range out {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			began := time.Now()
			res := checks[out[i].Kind](v, out[i])
			res.Evaluated = true
			out[i].Result = res
			v.metrics.ObserveInstance(out[i].Kind.String(), res.Pass, time.Since(began))
			if !res.Pass {
				v.log.Debug(gctx, "intent failed",
					logging.String("instance", out[i].ID),
					logging.String("diagnostic", res.Diagnostic),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.Fail(span, err, "verification aborted")
		return nil, fmt.Errorf("Run: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	passed := 0
	for _, in := range out {
		if in.Result.Pass {
			passed++
		}
	}
	span.SetAttributes(attribute.Int("passed", passed))
	v.log.Info(ctx, "verification finished",
		logging.String("topology", v.topo.Name()),
		logging.Int("instances", len(out)),
		logging.Int("passed", passed),
		logging.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func checkUnderlay(v *Verifier, in intent.Instance) intent.Result {
	verdict := v.graph.Check(in.A, in.B)
	if !verdict.Pass {
		return intent.Result{Diagnostic: verdict.Diagnostic}
	}
	trace := append([]string{"path " + strings.Join(verdict.Path, " ")}, verdict.Notes...)
	return intent.Result{Pass: true, Trace: trace}
}

func checkIntraVPN(v *Verifier, in intent.Instance) intent.Result {
	var problems, trace []string
	for _, req := range []fib.Request{v.request(in.A, in.B), v.request(in.B, in.A)} {
		res := v.sim.Simulate(req)
		label := req.SrcCE + "->" + req.DstCE
		trace = append(trace, prefixed(label, res.Trace)...)
		if !res.Delivered() {
			problems = append(problems, label+": "+res.Describe())
		}
	}
	if len(problems) > 0 {
		return intent.Result{Diagnostic: strings.Join(problems, "; "), Trace: trace}
	}
	return intent.Result{Pass: true, Trace: trace}
}

// checkInterVPN passes only when the packet is dropped at the source PE
// because the ingress VRF has no route toward the other VPN's CE. A down
// source attachment also passes when the ingress VRF lacks that route.
func checkInterVPN(v *Verifier, in intent.Instance) intent.Result {
	res := v.sim.Simulate(v.request(in.A, in.B))
	att, _ := v.topo.Attachment(in.A)
	if res.State == fib.Blackhole && res.Node == att.PE {
		switch res.Cause {
		case fib.CauseNoVRFRoute:
			return intent.Result{Pass: true, Trace: res.Trace}
		case fib.CauseAttachmentDown:
			if vrf, ok := v.topo.IngressVRF(in.A); ok {
				if _, leaked := v.rib.Lookup(vrf.ID(), v.topo.Loopback(in.B)); !leaked {
					return intent.Result{Pass: true, Trace: res.Trace}
				}
			}
		}
	}
	return intent.Result{
		Diagnostic: "forwarding path exists across VPN boundary: " + res.Describe(),
		Trace:      res.Trace,
	}
}

func checkVisibility(v *Verifier, in intent.Instance) intent.Result {
	verdict := v.rib.CheckCE(in.A)
	return intent.Result{Pass: verdict.Pass, Diagnostic: verdict.Diagnostic, Trace: verdict.Trace}
}

func checkTE(v *Verifier, in intent.Instance) intent.Result {
	verdict := v.te.Validate(in.Tunnel())
	return intent.Result{Pass: verdict.Pass, Diagnostic: verdict.Diagnostic, Trace: verdict.Trace}
}

func checkForwarding(v *Verifier, in intent.Instance) intent.Result {
	res := v.sim.Simulate(v.request(in.A, in.B))
	if !res.Delivered() {
		return intent.Result{Diagnostic: res.Describe(), Trace: res.Trace}
	}
	return intent.Result{Pass: true, Trace: res.Trace}
}

// request builds the simulation of CE traffic from src to dst, colored as
// that traffic would be.
func (v *Verifier) request(src, dst string) fib.Request {
	return fib.Request{SrcCE: src, DstCE: dst, Color: v.sim.FlowColor(src, dst)}
}

func prefixed(label string, lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = label + ": " + l
	}
	return out
}
