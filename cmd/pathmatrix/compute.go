package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azybler/pathmatrix/pkg/matrix"
	"github.com/azybler/pathmatrix/pkg/store"
)

type computeOptions struct {
	graph       string
	output      string
	config      string
	metricsAddr string

	hopBound         int
	threads          int
	layout           string
	tempDir          string
	allowUnreachable bool
	timeout          time.Duration
}

func newComputeCmd(logger *logrus.Logger) *cobra.Command {
	opts := &computeOptions{}
	def := matrix.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the path matrix of a graph snapshot",
		Long: `Compute the lowest-weight path between every pair of vertices, limited
to --hop-bound vertices per path, and write it to --output.

Settings come from --config (YAML) first; flags given on the command line
override it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(cmd, logger, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.graph, "graph", "g", "graph.bin", "graph snapshot")
	f.StringVarP(&opts.output, "output", "o", "matrix.bin", "matrix file to write")
	f.StringVar(&opts.config, "config", "", "YAML settings file")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while computing")
	f.IntVar(&opts.hopBound, "hop-bound", def.HopBound, "maximum vertices per path, endpoints included")
	f.IntVarP(&opts.threads, "threads", "t", def.Threads, "origins searched concurrently")
	f.StringVar(&opts.layout, "layout", string(def.Layout), "scratch row layout: indexed or slot")
	f.StringVar(&opts.tempDir, "temp-dir", "", "work directory (default <output>.work)")
	f.BoolVar(&opts.allowUnreachable, "allow-unreachable", false, "store pairs without a path instead of failing")
	f.DurationVar(&opts.timeout, "timeout", 0, "cap on the whole search (default 1m per vertex)")
	return cmd
}

// resolve loads the YAML file, if any, and applies explicitly set flags.
func (o *computeOptions) resolve(cmd *cobra.Command) (matrix.Config, error) {
	cfg := matrix.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = matrix.LoadConfig(o.config); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if o.config == "" || f.Changed("hop-bound") {
		cfg.HopBound = o.hopBound
	}
	if o.config == "" || f.Changed("threads") {
		cfg.Threads = o.threads
	}
	if o.config == "" || f.Changed("layout") {
		cfg.Layout = store.Layout(o.layout)
	}
	if f.Changed("temp-dir") {
		cfg.TempDir = o.tempDir
	}
	if f.Changed("allow-unreachable") {
		cfg.AllowUnreachable = o.allowUnreachable
	}
	if f.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	return cfg, nil
}

func runCompute(cmd *cobra.Command, logger *logrus.Logger, opts *computeOptions) error {
	cfg, err := opts.resolve(cmd)
	if err != nil {
		return err
	}
	g, err := loadGraph(logger, opts.graph)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if opts.metricsAddr != "" {
		stop := serveMetrics(logger, opts.metricsAddr, reg)
		defer stop()
	}

	e, err := matrix.NewEngine(g, cfg, matrix.WithLogger(logger), matrix.WithMetrics(matrix.NewMetrics(reg)))
	if err != nil {
		return err
	}
	return e.ComputeMatrix(cmd.Context(), opts.output)
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(logger logrus.FieldLogger, addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.WithField("addr", addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("Metrics server stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
