package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/arxmlstore/internal/metrics"
	"github.com/nainya/arxmlstore/internal/server"
)

const maxMessageSize = 100 * 1024 * 1024

func newServeCmd(a *app) *cobra.Command {
	var port, metricsPort int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC model service",
		Long: `Serve arxml.v1.ArxmlService over gRPC. Clients open model sessions, load
ARXML buffers into them and query or rewrite the result. Metrics, health
checks and pprof are served over HTTP on the metrics port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("metrics-port") {
				a.cfg.Server.MetricsPort = metricsPort
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "gRPC port (default from config: 50051)")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "HTTP port for metrics and health (default from config: 9090)")
	return cmd
}

// serve runs the gRPC and observability servers until ctx is done
func (a *app) serve(ctx context.Context) error {
	log := a.log
	cfg := a.cfg.Server
	log.LogServerStart(cfg.Port, cfg.MetricsPort)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv, err := server.NewServer(server.Options{
		MaxModels:      cfg.MaxModels,
		Parse:          a.cfg.ParseOptions(),
		DefaultVersion: a.cfg.Version(),
		Logger:         log,
		Metrics:        m,
	})
	if err != nil {
		lis.Close()
		return err
	}
	defer srv.Close()

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, log)),
	)
	server.RegisterArxmlServiceServer(grpcServer, srv)
	reflection.Register(grpcServer)

	obs := server.NewObservabilityServer(cfg.MetricsPort, reg, log)
	errCh := make(chan error, 2)
	go func() { errCh <- obs.Start() }()

	done := make(chan struct{})
	defer close(done)
	go m.RunUptime(done)

	go func() {
		log.LogServerReady(cfg.Port)
		obs.SetReady(true)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	log.LogServerShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := obs.Shutdown(shutdownCtx); serr != nil {
		log.Error("Observability shutdown failed").Err(serr).Send()
	}
	grpcServer.GracefulStop()
	return err
}
