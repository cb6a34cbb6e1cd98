package matrix

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/azybler/pathmatrix/pkg/graph"
	"github.com/azybler/pathmatrix/pkg/store"
)

// seed is the search state of one origin.
type seed struct {
	r        *run
	g        *graph.Graph
	origin   uint32
	hopBound int
	row      store.Row
	// reach[v] is the vertex count of the first path queued to v, 0 if none.
	reach []int32

	edgeRelaxations     int
	shortcutRelaxations int
}

// runSeed searches from origin, publishes its row to the merged store and
// marks it finished. Errors other than context cancellation come back as
// *WorkerError.
func (r *run) runSeed(ctx context.Context, origin uint32) error {
	if r.failed.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	cfg := r.e.cfg

	row, err := store.NewRow(cfg.Layout, r.dir, origin, r.n, cfg.HopBound)
	if err != nil {
		return &WorkerError{Origin: origin, Err: err}
	}
	defer func() {
		if err := row.Remove(); err != nil {
			r.e.logger.WithError(err).WithField("origin", origin).Warn("Could not remove scratch row")
		}
	}()

	s := &seed{
		r:        r,
		g:        r.e.g,
		origin:   origin,
		hopBound: cfg.HopBound,
		row:      row,
		reach:    make([]int32, r.n),
	}
	if err := s.search(ctx); err != nil {
		if err == errAborted {
			// Another seed failed and has already reported it.
			return nil
		}
		if isContextErr(err) {
			return err
		}
		return &WorkerError{Origin: origin, Err: err}
	}
	improved, err := s.publish()
	if err != nil {
		return &WorkerError{Origin: origin, Err: err}
	}
	if hook := r.e.afterPublish; hook != nil {
		if err := hook(origin); err != nil {
			return &WorkerError{Origin: origin, Err: err}
		}
	}
	finished := r.done.markDone(origin)

	m := r.e.metrics
	m.EdgeRelaxations.Add(float64(s.edgeRelaxations))
	m.ShortcutRelaxations.Add(float64(s.shortcutRelaxations))
	m.MergedImprovements.Add(float64(improved))
	m.SeedsCompleted.Inc()
	m.SeedDuration.Observe(time.Since(start).Seconds())
	r.progress(finished)
	return nil
}

// search fills the row with the best path to every destination reachable
// within the hop bound.
func (s *seed) search(ctx context.Context) error {
	var frontier []graph.Path
	vx := &s.g.Vertices[s.origin]
	for k, nb := range vx.Neighbors {
		p := graph.NewPath([]uint32{s.origin, nb}, vx.Weights[k])
		improved, err := s.relax(p)
		if err != nil {
			return err
		}
		if improved && p.Len() < s.hopBound {
			frontier = s.enqueue(frontier, p)
		}
	}

	for len(frontier) > 0 {
		if s.r.failed.Load() {
			return errAborted
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		var next []graph.Path
		for _, p := range frontier {
			if s.r.done.isDone(p.End()) {
				complete, err := s.shortcut(p)
				if err != nil {
					return err
				}
				if complete {
					continue
				}
			}
			var err error
			if next, err = s.expand(p, next); err != nil {
				return err
			}
		}
		frontier = next
	}
	return nil
}

// expand relaxes every one-hop extension of p. An extension is queued for
// the next round if it improved its destination, or if it is the first
// path queued for that destination. The second rule keeps a fewest-hops
// path to every vertex in play: the stored path may be a lighter but longer
// one injected by a shortcut, and the vertices behind it would otherwise
// fall out of the hop bound.
func (s *seed) expand(p graph.Path, next []graph.Path) ([]graph.Path, error) {
	if p.Len() >= s.hopBound {
		return next, nil
	}
	n := p.Len() + 1
	vx := &s.g.Vertices[p.End()]
	for k, nb := range vx.Neighbors {
		if p.Contains(nb) {
			continue
		}
		s.edgeRelaxations++
		first := s.reach[nb] == 0
		cmp := s.against(nb, p.Weight+vx.Weights[k], n)
		if cmp > 0 && !first {
			continue
		}
		q := p.Extend(nb, vx.Weights[k])
		improved := false
		if cmp <= 0 {
			var err error
			if improved, err = s.relax(q); err != nil {
				return next, err
			}
		}
		if (improved || first) && n < s.hopBound {
			next = s.enqueue(next, q)
		}
	}
	return next, nil
}

// enqueue appends p to the frontier and records the hop count at which its
// end vertex was first queued.
func (s *seed) enqueue(frontier []graph.Path, p graph.Path) []graph.Path {
	if s.reach[p.End()] == 0 {
		s.reach[p.End()] = int32(p.Len())
	}
	return append(frontier, p)
}

// shortcut completes p, which ends at a finished origin v, with every path
// v has published. It reports false when some destination could not be
// served that way (the combined path would be too long or would revisit a
// vertex of p), in which case p must also be expanded edge by edge.
//
// Combined paths are re-summed edge by edge from p.Weight, so a vertex
// sequence gets the same weight whichever origins finished first.
func (s *seed) shortcut(p graph.Path) (bool, error) {
	v := p.End()
	merged := s.r.merged
	complete := true
	for j := range s.r.n {
		if j == v || p.Contains(j) {
			continue
		}
		w, l, ok := merged.Peek(v, j)
		if !ok {
			continue
		}
		if p.Len()+l-1 > s.hopBound {
			complete = false
			continue
		}
		// The stored weight was summed in another order; only skip
		// candidates that lose by more than rounding.
		approx := p.Weight + w
		if s.against(j, approx-1e-9*math.Abs(approx), p.Len()+l-1) > 0 {
			continue
		}
		ext, ok := merged.Get(v, j)
		if !ok {
			continue
		}
		if p.Len()+ext.Len()-1 > s.hopBound || !p.Disjoint(ext) {
			complete = false
			continue
		}
		q, ok := s.g.Append(p, ext)
		if !ok {
			return false, fmt.Errorf("merged path %v is not a path of the graph", ext.Vertices)
		}
		s.shortcutRelaxations++
		if _, err := s.relax(q); err != nil {
			return false, err
		}
	}
	return complete, nil
}

// against compares a candidate cost for dest with the row's current entry:
// negative if the candidate is cheaper or there is no entry, positive if it
// is worse, zero on a tie.
func (s *seed) against(dest uint32, w float64, n int) int {
	cw, cn, ok := s.row.Peek(dest)
	if !ok {
		return -1
	}
	return graph.CompareCost(w, n, cw, cn)
}

// relax stores p if it beats the row's entry for p.End().
func (s *seed) relax(p graph.Path) (bool, error) {
	dest := p.End()
	switch s.against(dest, p.Weight, p.Len()) {
	case 1:
		return false, nil
	case 0:
		cur, ok, err := s.row.Get(dest)
		if err != nil {
			return false, err
		}
		if ok && p.Compare(cur) >= 0 {
			return false, nil
		}
	}
	return true, s.row.Set(p)
}

// publish offers every path of the row to the merged store and returns the
// number of slots it improved. The merged store keeps paths from the lower
// endpoint, so rows of higher origins re-sum reversed paths in that order.
func (s *seed) publish() (int, error) {
	improved := 0
	for j := range s.r.n {
		if j == s.origin {
			continue
		}
		p, ok, err := s.row.Get(j)
		if err != nil {
			return improved, err
		}
		if !ok {
			continue
		}
		if j < s.origin {
			p = p.Reverse()
			if p.Weight, ok = s.g.PathWeight(p.Vertices); !ok {
				return improved, fmt.Errorf("row path %v is not a path of the graph", p.Vertices)
			}
		}
		better, err := s.r.merged.Offer(p)
		if err != nil {
			return improved, err
		}
		if better {
			improved++
		}
	}
	return improved, nil
}
