package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azybler/pathmatrix/pkg/api"
	"github.com/azybler/pathmatrix/pkg/locate"
	"github.com/azybler/pathmatrix/pkg/store"
)

type serveOptions struct {
	matrix        string
	graph         string
	port          int
	corsOrigin    string
	maxConcurrent int
}

func newServeCmd(logger *logrus.Logger) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve path queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, logger, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.matrix, "matrix", "m", "matrix.bin", "matrix file")
	f.StringVarP(&opts.graph, "graph", "g", "", "graph snapshot, for labels and coordinate queries")
	f.IntVar(&opts.port, "port", 8080, "HTTP port")
	f.StringVar(&opts.corsOrigin, "cors-origin", "", "CORS allowed origin (empty = same-origin)")
	f.IntVar(&opts.maxConcurrent, "max-concurrent", 0, "concurrent requests (default 2 per CPU)")
	return cmd
}

func runServe(cmd *cobra.Command, logger *logrus.Logger, opts *serveOptions) error {
	start := time.Now()

	r, err := store.Open(opts.matrix)
	if err != nil {
		return err
	}
	defer r.Close()
	logger.WithFields(logrus.Fields{"path": opts.matrix, "vertices": r.NumVertices()}).Info("Opened matrix")

	var labels []string
	var locator api.Locator
	if opts.graph != "" {
		g, err := loadGraph(logger, opts.graph)
		if err != nil {
			return err
		}
		if g.NumVertices() != r.NumVertices() {
			return fmt.Errorf("graph has %d vertices but matrix has %d", g.NumVertices(), r.NumVertices())
		}
		labels = api.Labels(g)
		if g.HasCoords() {
			l, err := locate.New(g)
			if err != nil {
				return err
			}
			locator = l
			logger.WithField("vertices", l.Len()).Info("Built spatial index")
		}
	}
	logger.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("Ready")

	cfg := api.DefaultConfig(fmt.Sprintf(":%d", opts.port))
	cfg.CORSOrigin = opts.corsOrigin
	cfg.Logger = logger
	if opts.maxConcurrent > 0 {
		cfg.MaxConcurrent = opts.maxConcurrent
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv := api.NewServer(cfg, api.NewHandlers(r, labels, locator), reg)
	return api.ListenAndServe(cmd.Context(), srv, logger)
}
