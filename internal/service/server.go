package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/signalsfoundry/netintent/internal/logging"
	"github.com/signalsfoundry/netintent/internal/observability"
	"github.com/signalsfoundry/netintent/internal/report"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 5 * time.Second

// Config holds the listen addresses of the service.
type Config struct {
	GRPCAddr string
	HTTPAddr string
	// Interval between verification runs; zero verifies once.
	Interval time.Duration
}

// Server bundles the gRPC health server, the HTTP metrics/report server and
// the verification loop.
type Server struct {
	cfg       Config
	runner    *Runner
	health    *health.Server
	collector *observability.VerifyCollector
	log       logging.Logger

	grpc *grpc.Server
	http *http.Server
}

// NewServer wires the servers around runner. hs must be the health server
// the runner reports to. collector may be nil.
func NewServer(cfg Config, runner *Runner, hs *health.Server, collector *observability.VerifyCollector, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{cfg: cfg, runner: runner, health: hs, collector: collector, log: log}

	s.grpc = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(log),
			TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	)
	healthpb.RegisterHealthServer(s.grpc, hs)
	reflection.Register(s.grpc)

	s.http = &http.Server{Addr: cfg.HTTPAddr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Handler serves /metrics, /report and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.collector != nil {
		mux.Handle("/metrics", s.collector.Handler())
	}
	mux.HandleFunc("/report", s.serveReport)
	mux.HandleFunc("/healthz", s.serveHealth)
	return mux
}

func (s *Server) serveReport(w http.ResponseWriter, req *http.Request) {
	format := report.FormatJSON
	if raw := req.URL.Query().Get("format"); raw != "" {
		f, err := report.ParseFormat(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = f
	}
	rep, err := s.runner.Latest()
	if rep == nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		w.Header().Set("X-Last-Run-Error", err.Error())
	}
	switch format {
	case report.FormatTable:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	case report.FormatJSONL:
		w.Header().Set("Content-Type", "application/x-ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	verbose := req.URL.Query().Get("verbose") == "true"
	if err := report.Write(w, rep, format, report.Options{Verbose: verbose}); err != nil {
		s.log.Warn(req.Context(), "writing report failed", logging.Err(err))
	}
}

func (s *Server) serveHealth(w http.ResponseWriter, req *http.Request) {
	resp, err := s.health.Check(req.Context(), &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		http.Error(w, "not serving", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintln(w, "ok")
}

// Serve listens on the configured addresses and runs the verification loop
// until ctx is done, then shuts everything down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	grpcLis, err := net.Listen("tcp", s.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", s.cfg.GRPCAddr, err)
	}
	httpLis, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr, err)
	}
	return s.serve(ctx, grpcLis, httpLis)
}

func (s *Server) serve(ctx context.Context, grpcLis, httpLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info(gctx, "starting gRPC server", logging.String("addr", grpcLis.Addr().String()))
		return s.grpc.Serve(grpcLis)
	})
	g.Go(func() error {
		s.log.Info(gctx, "serving metrics and reports", logging.String("addr", httpLis.Addr().String()))
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.runner.Loop(gctx, s.cfg.Interval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info(context.Background(), "shutting down")
		s.health.Shutdown()
		s.grpc.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
