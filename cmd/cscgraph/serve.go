package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/23skdu/cscgraph/internal/flight"
	"github.com/23skdu/cscgraph/internal/limiter"
	"github.com/23skdu/cscgraph/internal/tensor"
	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		listenAddr  string
		metricsAddr string
		allowLoad   bool
	)
	cmd := &cobra.Command{
		Use:   "serve [name=]location...",
		Short: "Serve graphs over Arrow Flight",
		Long: `Serve loads each graph and answers in-subgraph DoGet requests over
Arrow Flight, with Prometheus metrics on /metrics. A single unnamed graph is
registered as "default"; otherwise unnamed graphs take their file name
without extension.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("metrics") {
				a.cfg.MetricsAddr = metricsAddr
			}
			if err := ValidateConfig(&a.cfg); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx, args, allowLoad)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:3000", "Address for the Flight service")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "0.0.0.0:9090", "Address for Prometheus metrics")
	cmd.Flags().BoolVar(&allowLoad, "allow-load", false, "Allow clients to load graphs with the load-graph action")
	return cmd
}

// graphName picks the registry name for a serve argument.
func graphName(arg string, single bool) (name, location string) {
	if n, loc, ok := strings.Cut(arg, "="); ok && !strings.Contains(n, "/") {
		return n, loc
	}
	if single {
		return flight.DefaultGraph, arg
	}
	base := path.Base(strings.ReplaceAll(arg, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base)), arg
}

func (a *app) newFlightServer(ctx context.Context, args []string, allowLoad bool) (*flight.Server, error) {
	if a.mem == nil {
		a.mem = tensor.NewConsumerAllocator(tensor.ConsumerGraph, memory.DefaultAllocator)
	}
	opts := []flight.Option{
		flight.WithAllocator(tensor.NewConsumerAllocator(tensor.ConsumerFlight, memory.DefaultAllocator)),
		flight.WithChunkRows(a.cfg.MinChunkRows, a.cfg.MaxChunkRows),
	}
	if allowLoad {
		opts = append(opts, flight.WithLoader(a.loadGraph))
	}
	srv := flight.NewServer(a.logger, opts...)

	for _, arg := range args {
		name, location := graphName(arg, len(args) == 1)
		g, err := a.loadGraph(ctx, location)
		if err != nil {
			srv.Close()
			return nil, err
		}
		srv.Register(name, g)
	}
	return srv, nil
}

func (a *app) runServe(ctx context.Context, args []string, allowLoad bool) error {
	srv, err := a.newFlightServer(ctx, args, allowLoad)
	if err != nil {
		return err
	}
	defer srv.Close()

	rl := limiter.NewRateLimiter(a.cfg.Config)
	grpcOpts := append(a.cfg.BuildGRPCServerOptions(),
		grpc.ChainUnaryInterceptor(rl.UnaryInterceptor()),
		grpc.ChainStreamInterceptor(rl.StreamInterceptor()),
	)
	grpcServer := grpc.NewServer(grpcOpts...)
	arrowflight.RegisterFlightServiceServer(grpcServer, srv)

	lis, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info().Str("address", a.cfg.MetricsAddr).Msg("Starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Info().
			Str("address", lis.Addr().String()).
			Strs("graphs", srv.Names()).
			Bool("rate_limited", rl.Enabled()).
			Msg("cscgraph Arrow Flight server starting")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)

		done := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

