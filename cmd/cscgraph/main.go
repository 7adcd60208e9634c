// Command cscgraph builds, inspects, queries, and serves CSC graphs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/23skdu/cscgraph/internal/logging"
	"github.com/23skdu/cscgraph/internal/serialize"
	"github.com/23skdu/cscgraph/internal/storage"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries state shared by every subcommand.
type app struct {
	cfg     Config
	logger  zerolog.Logger
	envFile string
	// mem backs loaded graph arrays; nil uses the Arrow default allocator.
	mem memory.Allocator
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:           "cscgraph",
		Short:         "Compressed sparse column graph store for in-subgraph sampling",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(a.envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if err := ValidateConfig(&cfg); err != nil {
				return err
			}
			logger, err := logging.NewLogger(logging.Config{
				Format: cfg.LogFormat,
				Level:  cfg.LogLevel,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Environment file to load before reading CSCGRAPH_* variables")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format: json or console")

	root.AddCommand(
		newBuildCmd(a),
		newInspectCmd(a),
		newSubgraphCmd(a),
		newServeCmd(a),
	)
	return root
}

// loadGraph reads a graph from a local path or s3://bucket/key.
func (a *app) loadGraph(ctx context.Context, location string) (*graph.CSCGraph, error) {
	loc, err := storage.ParseLocation(location)
	if err != nil {
		return nil, err
	}
	backend, err := storage.Open(ctx, loc, a.cfg.S3())
	if err != nil {
		return nil, err
	}
	g, err := storage.LoadGraph(ctx, backend, loc.Name,
		serialize.WithAllocator(a.mem), serialize.WithLoadLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.logger.Info().
		Str("location", loc.String()).
		Int64("nodes", g.NumNodes()).
		Int64("edges", g.NumEdges()).
		Msg("Graph loaded")
	return g, nil
}

func (a *app) saveGraph(ctx context.Context, location string, g *graph.CSCGraph) error {
	loc, err := storage.ParseLocation(location)
	if err != nil {
		return err
	}
	backend, err := storage.Open(ctx, loc, a.cfg.S3())
	if err != nil {
		return err
	}
	opts := append(a.cfg.SaveOptions(), serialize.WithSaveLogger(a.logger))
	if err := storage.SaveGraph(ctx, backend, loc.Name, g, opts...); err != nil {
		return err
	}
	a.logger.Info().Str("location", loc.String()).Str("codec", a.cfg.Codec).Msg("Graph saved")
	return nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
