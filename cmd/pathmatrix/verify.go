package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azybler/pathmatrix/pkg/graph"
	"github.com/azybler/pathmatrix/pkg/matrix"
	"github.com/azybler/pathmatrix/pkg/store"
)

// errVerifyFailed is returned when any sampled pair breaks a matrix rule.
var errVerifyFailed = errors.New("matrix verification failed")

// maxReportedFailures bounds the failures kept in a report.
const maxReportedFailures = 20

type verifyOptions struct {
	matrix   string
	graph    string
	samples  int
	seed     uint64
	hopBound int
}

func newVerifyCmd(logger *logrus.Logger) *cobra.Command {
	opts := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check sampled matrix entries against the graph",
		Long: `Check a random sample of vertex pairs. Every stored path must be a simple
path of the graph within the hop bound, with a weight equal to the sum of its
edges, and must read the same in both directions. A pair must be stored iff
some path within the hop bound connects it, and no stored weight may be below
the hop-bounded optimum. Pairs above the optimum are counted, not failed,
unless --hop-bound is at least the vertex count: then every stored weight
must equal the shortest distance.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, logger, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.matrix, "matrix", "m", "matrix.bin", "matrix file")
	f.StringVarP(&opts.graph, "graph", "g", "graph.bin", "graph snapshot the matrix was computed from")
	f.IntVar(&opts.samples, "samples", 1000, "number of pairs to check")
	f.Uint64Var(&opts.seed, "seed", 1, "sampling seed")
	f.IntVar(&opts.hopBound, "hop-bound", matrix.DefaultHopBound, "hop bound the matrix was computed with")
	return cmd
}

func runVerify(cmd *cobra.Command, logger *logrus.Logger, opts *verifyOptions) error {
	g, err := loadGraph(logger, opts.graph)
	if err != nil {
		return err
	}
	r, err := store.Open(opts.matrix)
	if err != nil {
		return err
	}
	defer r.Close()

	rep, err := verifyMatrix(r, g, opts.hopBound, opts.samples, opts.seed)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "checked\t%d\nunreachable\t%d\nsuboptimal\t%d\nfailures\t%d\n",
		rep.Checked, rep.Unreachable, rep.Suboptimal, rep.Failed)
	for _, f := range rep.Failures {
		fmt.Fprintln(out, f)
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%w: %d of %d pairs", errVerifyFailed, rep.Failed, rep.Checked)
	}
	return nil
}

type verifyReport struct {
	Checked     int
	Unreachable int
	Suboptimal  int
	Failed      int
	Failures    []string
}

func (rep *verifyReport) fail(format string, args ...any) {
	rep.Failed++
	if len(rep.Failures) < maxReportedFailures {
		rep.Failures = append(rep.Failures, fmt.Sprintf(format, args...))
	}
}

// verifyMatrix checks samples random pairs of r against g.
func verifyMatrix(r *store.Reader, g *graph.Graph, hopBound, samples int, seed uint64) (verifyReport, error) {
	var rep verifyReport
	n := g.NumVertices()
	if n != r.NumVertices() {
		return rep, fmt.Errorf("graph has %d vertices but matrix has %d", n, r.NumVertices())
	}
	if n < 2 {
		return rep, nil
	}

	// A bound of at least n vertices admits every simple path, so stored
	// weights must match plain shortest distances exactly.
	exact := hopBound >= int(n)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	bounded := make(map[uint32][]float64)

	for range samples {
		i := rng.Uint32N(n)
		j := rng.Uint32N(n - 1)
		if j >= i {
			j++
		}
		rep.Checked++

		p, ok, err := r.GetPath(i, j)
		if err != nil {
			return rep, err
		}
		q, qok, err := r.GetPath(j, i)
		if err != nil {
			return rep, err
		}
		if ok != qok || (ok && !q.Reverse().Equal(p)) {
			rep.fail("%d-%d: not symmetric", i, j)
			continue
		}

		dist, seen := bounded[i]
		if !seen {
			if exact {
				dist, _ = graph.Dijkstra(g, i)
			} else {
				dist = graph.BoundedDistances(g, i, hopBound)
			}
			bounded[i] = dist
		}
		best := dist[j]

		if !ok {
			if !math.IsInf(best, 1) {
				rep.fail("%d-%d: missing, but reachable with weight %g%s", i, j, best, shortestHint(g, i, j, exact))
				continue
			}
			rep.Unreachable++
			continue
		}
		if math.IsInf(best, 1) {
			rep.fail("%d-%d: stored, but no path within %d vertices", i, j, hopBound)
			continue
		}
		if msg := checkStoredPath(g, p, i, j, hopBound); msg != "" {
			rep.fail("%d-%d: %s", i, j, msg)
			continue
		}
		switch {
		case p.Weight < best-tolerance(best):
			rep.fail("%d-%d: weight %g below optimum %g", i, j, p.Weight, best)
		case p.Weight > best+tolerance(best) && exact:
			rep.fail("%d-%d: weight %g above shortest %g%s", i, j, p.Weight, best, shortestHint(g, i, j, exact))
		case p.Weight > best+tolerance(best):
			rep.Suboptimal++
		}
	}
	return rep, nil
}

// shortestHint names one shortest path for failure messages when the check
// is exact.
func shortestHint(g *graph.Graph, i, j uint32, exact bool) string {
	if !exact {
		return ""
	}
	if sp, ok := graph.ShortestPath(g, i, j); ok {
		return fmt.Sprintf(" via %v", sp.Vertices)
	}
	return ""
}

// checkStoredPath returns why p is not a valid i→j path of g, or "".
func checkStoredPath(g *graph.Graph, p graph.Path, i, j uint32, hopBound int) string {
	if p.Len() < 2 || p.Start() != i || p.End() != j {
		return fmt.Sprintf("endpoints %v", p.Vertices)
	}
	if p.Len() > hopBound {
		return fmt.Sprintf("%d vertices exceed hop bound %d", p.Len(), hopBound)
	}
	seen := make(map[uint32]bool, p.Len())
	sum := 0.0
	for k, v := range p.Vertices {
		if seen[v] {
			return fmt.Sprintf("vertex %d repeated", v)
		}
		seen[v] = true
		if k == 0 {
			continue
		}
		w, ok := g.EdgeWeight(p.Vertices[k-1], v)
		if !ok {
			return fmt.Sprintf("no edge %d-%d", p.Vertices[k-1], v)
		}
		sum += w
	}
	if math.Abs(sum-p.Weight) > tolerance(sum) {
		return fmt.Sprintf("weight %g, edges sum to %g", p.Weight, sum)
	}
	return ""
}

func tolerance(w float64) float64 {
	return 1e-9 * max(1, math.Abs(w))
}
