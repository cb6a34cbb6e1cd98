package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azybler/pathmatrix/pkg/graph"
	"github.com/azybler/pathmatrix/pkg/ingest"
	"github.com/azybler/pathmatrix/pkg/osm"
)

type ingestOptions struct {
	input            string
	osm              string
	bbox             string
	output           string
	directed         bool
	degreeOrder      bool
	largestComponent bool
}

func newIngestCmd(logger *logrus.Logger) *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build a graph snapshot from an edge list or an OSM extract",
		Long: `Build a graph snapshot from a whitespace-separated edge list
(plain, gzip or zstd) or from an OpenStreetMap PBF extract.

Vertices are numbered by label, or by descending degree with --degree-order.
The matrix search finishes low-numbered origins first, so degree order lets
more paths reuse finished results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, logger, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "edge list file")
	f.StringVar(&opts.osm, "osm", "", "OSM .pbf file")
	f.StringVar(&opts.bbox, "bbox", "", "OSM bounding box minLat,minLng,maxLat,maxLng")
	f.StringVarP(&opts.output, "output", "o", "graph.bin", "graph snapshot to write")
	f.BoolVar(&opts.directed, "directed", false, "keep edges one-way")
	f.BoolVar(&opts.degreeOrder, "degree-order", false, "number vertices by descending degree")
	f.BoolVar(&opts.largestComponent, "largest-component", false, "keep only the largest connected component")
	cmd.MarkFlagsMutuallyExclusive("input", "osm")
	cmd.MarkFlagsOneRequired("input", "osm")
	return cmd
}

func runIngest(cmd *cobra.Command, logger *logrus.Logger, opts *ingestOptions) error {
	start := time.Now()

	var src *graph.Source
	var err error
	if opts.input != "" {
		if opts.bbox != "" {
			return fmt.Errorf("--bbox applies to --osm input only")
		}
		logger.WithField("path", opts.input).Info("Reading edge list")
		src, err = ingest.OpenEdgeList(opts.input, opts.directed)
	} else {
		src, err = parseOSM(cmd, logger, opts)
	}
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"edges": len(src.Edges), "coords": len(src.Coords)}).Info("Parsed source")

	g, err := graph.Build(src, graph.BuildOptions{
		OrderByDegree:    opts.degreeOrder,
		LargestComponent: opts.largestComponent,
	})
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	if !opts.largestComponent && !graph.Connected(g) {
		logger.Warn("Graph is not connected; compute needs --allow-unreachable")
	}

	if err := graph.WriteBinary(opts.output, g); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"path":     opts.output,
		"vertices": g.NumVertices(),
		"edges":    g.NumEdges(),
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("Wrote graph")
	return nil
}

func parseOSM(cmd *cobra.Command, logger *logrus.Logger, opts *ingestOptions) (*graph.Source, error) {
	popt := osm.ParseOptions{Directed: opts.directed, Logger: logger}
	if opts.bbox != "" {
		bbox, err := osm.ParseBBox(opts.bbox)
		if err != nil {
			return nil, err
		}
		popt.BBox = bbox
	}

	f, err := os.Open(opts.osm)
	if err != nil {
		return nil, fmt.Errorf("open OSM file: %w", err)
	}
	defer f.Close()

	return osm.Parse(cmd.Context(), f, popt)
}
