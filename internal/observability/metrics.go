package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// VerifyCollector bundles Prometheus metrics for verification runs and the
// service surface, and provides helpers to wire them into gRPC servers and
// HTTP handlers.
type VerifyCollector struct {
	gatherer prometheus.Gatherer

	Instances         *prometheus.CounterVec
	InstanceDurations *prometheus.HistogramVec
	Runs              *prometheus.CounterVec
	Accuracy          *prometheus.GaugeVec

	RPCRequests *prometheus.CounterVec

	TopologyNodes    prometheus.Gauge
	TopologyLinks    prometheus.Gauge
	TopologyVPNs     prometheus.Gauge
	TopologyVRFs     prometheus.Gauge
	TopologyPolicies prometheus.Gauge
}

// NewVerifyCollector registers verification metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewVerifyCollector(reg prometheus.Registerer) (*VerifyCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	instances, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_instances_total",
		Help: "Evaluated intent instances, labeled by intent kind and result.",
	}, []string{"kind", "result"}), "intent_instances_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intent_instance_duration_seconds",
		Help:    "Time spent evaluating a single intent instance.",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"kind"}), "intent_instance_duration_seconds")
	if err != nil {
		return nil, err
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_runs_total",
		Help: "Verification runs, labeled by outcome (ok, structural_error, error).",
	}, []string{"outcome"}), "verification_runs_total")
	if err != nil {
		return nil, err
	}

	accuracy, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "intent_accuracy_ratio",
		Help: "Accuracy of the last run per category; absent when the category is undefined.",
	}, []string{"category"}), "intent_accuracy_ratio")
	if err != nil {
		return nil, err
	}

	rpcs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_requests_total",
		Help: "Handled gRPC requests, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "rpc_requests_total")
	if err != nil {
		return nil, err
	}

	gauges := map[string]*prometheus.Gauge{}
	var nodes, links, vpns, vrfs, policies prometheus.Gauge
	gauges["topology_nodes"] = &nodes
	gauges["topology_links"] = &links
	gauges["topology_vpns"] = &vpns
	gauges["topology_vrfs"] = &vrfs
	gauges["topology_te_policies"] = &policies
	for name, dst := range gauges {
		g, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name,
			Help: "Size of the last verified topology: " + strings.TrimPrefix(name, "topology_") + ".",
		}), name)
		if err != nil {
			return nil, err
		}
		*dst = g
	}

	return &VerifyCollector{
		gatherer:          gatherer,
		Instances:         instances,
		InstanceDurations: durations,
		Runs:              runs,
		Accuracy:          accuracy,
		RPCRequests:       rpcs,
		TopologyNodes:     nodes,
		TopologyLinks:     links,
		TopologyVPNs:      vpns,
		TopologyVRFs:      vrfs,
		TopologyPolicies:  policies,
	}, nil
}

// ObserveInstance records the outcome and latency of one intent instance.
func (c *VerifyCollector) ObserveInstance(kind string, pass bool, d time.Duration) {
	if c == nil {
		return
	}
	result := "fail"
	if pass {
		result = "pass"
	}
	c.Instances.WithLabelValues(kind, result).Inc()
	c.InstanceDurations.WithLabelValues(kind).Observe(d.Seconds())
}

// SetTopologyCounts satisfies the verifier's metrics recorder so topology
// size gauges follow the topology under verification.
func (c *VerifyCollector) SetTopologyCounts(nodes, links, vpns, vrfs, policies int) {
	if c == nil {
		return
	}
	c.TopologyNodes.Set(float64(nodes))
	c.TopologyLinks.Set(float64(links))
	c.TopologyVPNs.Set(float64(vpns))
	c.TopologyVRFs.Set(float64(vrfs))
	c.TopologyPolicies.Set(float64(policies))
}

// RecordRun counts a finished run.
func (c *VerifyCollector) RecordRun(outcome string) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(outcome).Inc()
}

// SetAccuracy publishes the accuracy of a category. Undefined categories are
// removed so dashboards do not read them as zero.
func (c *VerifyCollector) SetAccuracy(category string, value float64, defined bool) {
	if c == nil {
		return
	}
	if !defined {
		c.Accuracy.DeleteLabelValues(category)
		return
	}
	c.Accuracy.WithLabelValues(category).Set(value)
}

// UnaryServerInterceptor records request counts for unary RPCs.
func (c *VerifyCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)

		if c == nil || c.RPCRequests == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *VerifyCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
