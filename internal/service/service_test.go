package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/fixture"
	"github.com/signalsfoundry/netintent/internal/intent"
	"github.com/signalsfoundry/netintent/internal/logging"
	"github.com/signalsfoundry/netintent/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func newCollector(t *testing.T) *observability.VerifyCollector {
	t.Helper()
	c, err := observability.NewVerifyCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	return c
}

func staticLoader(ds *core.Dataset) Loader {
	return func(context.Context) (*core.Dataset, error) { return ds, nil }
}

func servingStatus(t *testing.T, hs *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthService})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestRunnerRunOnce(t *testing.T) {
	collector := newCollector(t)
	hs := health.NewServer()
	r := NewRunner(PathLoader("../../core/testdata/square"), nil, collector, hs)

	_, err := r.Latest()
	require.ErrorIs(t, err, ErrNoReport)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, hs))

	rep, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, rep.Instances)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, hs))

	latest, err := r.Latest()
	require.NoError(t, err)
	assert.Same(t, rep, latest)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Runs.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 8.0, testutil.ToFloat64(collector.TopologyNodes))
	total := 0.0
	for _, k := range intent.Kinds() {
		for _, result := range []string{"pass", "fail"} {
			total += testutil.ToFloat64(collector.Instances.WithLabelValues(k.String(), result))
		}
	}
	assert.Equal(t, float64(len(rep.Instances)), total)
}

func TestRunnerStructuralError(t *testing.T) {
	collector := newCollector(t)
	hs := health.NewServer()
	ds := fixture.ScenarioA()
	ds.Overlay = append(ds.Overlay, core.OverlayEntry{CE: "CE9", PE: "PE1", VPN: "VPN1"})
	r := NewRunner(staticLoader(ds), nil, collector, hs)

	_, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsStructural(err))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, hs))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Runs.WithLabelValues(OutcomeStructural)))

	rep, err := r.Latest()
	assert.Nil(t, rep)
	assert.True(t, core.IsStructural(err))
}

func TestRunnerKeepsLastGoodReport(t *testing.T) {
	calls := 0
	load := func(context.Context) (*core.Dataset, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("dataset vanished")
		}
		return fixture.TwoVPNs(), nil
	}
	hs := health.NewServer()
	r := NewRunner(load, nil, nil, hs)

	first, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = r.RunOnce(context.Background())
	require.Error(t, err)

	latest, err := r.Latest()
	assert.Same(t, first, latest)
	assert.ErrorContains(t, err, "dataset vanished")
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, hs), "load errors keep the last verdict")
}

func TestRequestIDInterceptor(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	var seen string
	handler := func(ctx context.Context, _ any) (any, error) {
		seen = logging.RequestIDFromContext(ctx)
		assert.NotNil(t, logging.LoggerFromContext(ctx))
		return nil, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "abc123"))
	_, err := interceptor(ctx, nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, "abc123", seen)

	_, err = interceptor(context.Background(), nil, info, handler)
	require.NoError(t, err)
	assert.Len(t, seen, 32)
}

func TestServe(t *testing.T) {
	collector := newCollector(t)
	hs := health.NewServer()
	runner := NewRunner(staticLoader(fixture.ScenarioB()), nil, collector, hs)
	srv := NewServer(Config{}, runner, hs, collector, nil)

	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, grpcLis, httpLis) }()

	conn, err := grpc.NewClient(grpcLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 10*time.Millisecond)

	base := "http://" + httpLis.Addr().String()
	get := func(path string) (int, string) {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/report")
	require.Equal(t, http.StatusOK, code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.Equal(t, "scenario-b", doc["topology"])

	code, body = get("/report?format=table")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "I1/P1~PE2")

	code, _ = get("/report?format=xml")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", strings.TrimSpace(body))

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "intent_instances_total")
	assert.Contains(t, body, `rpc_requests_total{code="OK",method="Check",service="Health"}`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
