package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azybler/pathmatrix/pkg/graph"
	"github.com/azybler/pathmatrix/pkg/store"
)

type queryOptions struct {
	matrix  string
	graph   string
	byLabel bool
}

func newQueryCmd(logger *logrus.Logger) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query FROM TO",
		Short: "Print the stored path between two vertices",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, logger, opts, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.matrix, "matrix", "m", "matrix.bin", "matrix file")
	f.StringVarP(&opts.graph, "graph", "g", "", "graph snapshot, for vertex labels")
	f.BoolVar(&opts.byLabel, "by-label", false, "FROM and TO are vertex labels (needs --graph)")
	return cmd
}

func runQuery(cmd *cobra.Command, logger *logrus.Logger, opts *queryOptions, args []string) error {
	var g *graph.Graph
	if opts.graph != "" {
		var err error
		if g, err = loadGraph(logger, opts.graph); err != nil {
			return err
		}
	} else if opts.byLabel {
		return fmt.Errorf("--by-label needs --graph")
	}

	var ends [2]uint32
	for k, arg := range args {
		v, err := resolveVertex(g, arg, opts.byLabel)
		if err != nil {
			return err
		}
		ends[k] = v
	}

	r, err := store.Open(opts.matrix)
	if err != nil {
		return err
	}
	defer r.Close()

	if g != nil && g.NumVertices() != r.NumVertices() {
		return fmt.Errorf("graph has %d vertices but matrix has %d", g.NumVertices(), r.NumVertices())
	}

	p, ok, err := r.GetPath(ends[0], ends[1])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintf(out, "no path between %d and %d\n", ends[0], ends[1])
		return nil
	}

	fmt.Fprintf(out, "weight\t%g\n", p.Weight)
	fmt.Fprintf(out, "hops\t%d\n", p.Hops())
	fmt.Fprintf(out, "vertices\t%s\n", joinVertices(p.Vertices))
	if g != nil {
		labels := make([]string, len(p.Vertices))
		for i, v := range p.Vertices {
			labels[i] = g.Vertices[v].ID
		}
		fmt.Fprintf(out, "labels\t%s\n", strings.Join(labels, " "))
	}
	return nil
}

func resolveVertex(g *graph.Graph, arg string, byLabel bool) (uint32, error) {
	if byLabel {
		for i := range g.Vertices {
			if g.Vertices[i].ID == arg {
				return uint32(i), nil
			}
		}
		return 0, fmt.Errorf("no vertex labelled %q", arg)
	}
	v, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid vertex %q: %w", arg, err)
	}
	return uint32(v), nil
}

func joinVertices(vs []uint32) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, " ")
}
