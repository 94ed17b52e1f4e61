package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/buildinfo"
	"github.com/otherjamesbrown/recents/pkg/db"
	"github.com/otherjamesbrown/recents/pkg/logging"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

// healthService is the gRPC health service name reported alongside "".
const healthService = "recents"

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the 'serve' command.
func NewServeCommand(deps *CommandDeps) *cobra.Command {
	var httpAddr, grpcAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the recent calls feed over HTTP",
		Long: `Serve the recent calls feed over HTTP.

HTTP endpoints (serve.http_addr):
  GET /v1/recents   feed page as JSON; query: group, max, pages, all
  GET /metrics      Prometheus metrics
  GET /version      build information
  GET /healthz      store health

The gRPC health service (grpc.health.v1.Health) is served on
serve.grpc_addr and reports SERVING while the call log store answers pings.
Leave grpc_addr empty to disable it.

The server never prompts: write access follows
permissions.write_call_log, with "prompt" treated as deny.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.Serve.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("grpc-addr") {
				cfg.Serve.GRPCAddr = grpcAddr
			}

			reg := deps.Registry
			if reg == nil {
				reg = prometheus.NewRegistry()
			}
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			gate := recents.StaticGate{
				Read:  cfg.Permissions.ReadCallLog,
				Write: cfg.Permissions.WriteCallLog == config.WriteAllow,
			}
			rt, err := deps.OpenRuntime(cmd.Context(), cfg, gate)
			if err != nil {
				return err
			}
			defer rt.Close()

			return NewServer(cfg, rt, reg).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC health listen address (default from config)")

	return cmd
}

// Server exposes a Runtime over HTTP and the gRPC health protocol.
type Server struct {
	cfg    *config.CLIConfig
	rt     *Runtime
	logger logging.Logger
	mux    *http.ServeMux
	health *health.Server
}

// NewServer builds the HTTP routes and the health service for rt. Metrics
// are served from gatherer.
func NewServer(cfg *config.CLIConfig, rt *Runtime, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:    cfg,
		rt:     rt,
		logger: rt.Logger.With(logging.Component("server")),
		mux:    http.NewServeMux(),
		health: health.NewServer(),
	}

	s.mux.HandleFunc("GET /v1/recents", s.handleRecents)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /version", buildinfo.Handler("recents"))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.setServing(false)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is done, then shuts both listeners down.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	httpSrv := &http.Server{
		Addr:              s.cfg.Serve.HTTPAddr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		s.logger.Info("HTTP server listening", logging.F("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if s.cfg.Serve.GRPCAddr != "" {
		lis, err := net.Listen("tcp", s.cfg.Serve.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", s.cfg.Serve.GRPCAddr, err)
		}
		grpcSrv := grpc.NewServer()
		healthpb.RegisterHealthServer(grpcSrv, s.health)

		g.Go(func() error {
			s.logger.Info("gRPC health server listening", logging.F("addr", lis.Addr().String()))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			s.health.Shutdown()
			grpcSrv.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		db.Watch(ctx, s.rt.Health, s.cfg.Serve.HealthInterval, s.reportHealth)
		return nil
	})

	return g.Wait()
}

func (s *Server) reportHealth(status *db.HealthStatus) {
	s.setServing(status.Healthy)
	if status.Healthy {
		s.logger.Info("Call log store healthy", logging.F("latency_ms", status.Latency.Milliseconds()))
		return
	}
	s.logger.Warn("Call log store unhealthy", logging.Err(status.Error))
}

func (s *Server) setServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(healthService, st)
}

func (s *Server) handleRecents(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := logging.WithRequestID(r.Context(), requestID)
	w.Header().Set("X-Request-ID", requestID)

	q := r.URL.Query()
	req := recents.PageRequest{
		GroupSubsequentCalls: s.cfg.Aggregation.GroupSubsequentCalls,
		MaxSize:              s.cfg.Aggregation.PageSize,
	}
	pages := 1
	all := false

	var err error
	if v := q.Get("group"); v != "" {
		if req.GroupSubsequentCalls, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid group: "+v)
			return
		}
	}
	if v := q.Get("max"); v != "" {
		if req.MaxSize, err = strconv.Atoi(v); err != nil || req.MaxSize < 0 {
			writeError(w, http.StatusBadRequest, "invalid max: "+v)
			return
		}
	}
	if v := q.Get("pages"); v != "" {
		if pages, err = strconv.Atoi(v); err != nil || pages < 1 {
			writeError(w, http.StatusBadRequest, "invalid pages: "+v)
			return
		}
	}
	if v := q.Get("all"); v != "" {
		if all, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid all: "+v)
			return
		}
	}

	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	page, err := fetchPages(ctx, s.rt.Aggregator, req, pages, all)
	if err != nil {
		s.logger.WithContext(ctx).Error("Fetching recents failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if page == nil {
		page = []recents.EnrichedCall{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := db.Check(r.Context(), s.rt.Health)

	body := map[string]interface{}{
		"healthy":    status.Healthy,
		"latency_ms": status.Latency.Milliseconds(),
	}
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		if status.Error != nil {
			body["error"] = status.Error.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
