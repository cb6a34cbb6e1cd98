// Package matrix computes the hop-bounded all-pairs shortest path matrix of
// an undirected graph and compacts it into a store artifact.
//
// One search runs per origin vertex. Each search expands paths hop by hop,
// except that a path ending at an origin whose search has already finished
// is completed in one step with that origin's published paths. Results are
// merged into a shared pair store and compacted once every origin is done.
//
// When the hop bound is at least the vertex count the stored paths are
// exact shortest paths. Below that, every pair connected within the bound
// gets a path, but its weight may exceed the best path of at most that many
// vertices: a search only extends a path that first reaches or improves on
// its end vertex, so a heavier prefix with hops to spare is dropped.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/azybler/pathmatrix/pkg/graph"
	"github.com/azybler/pathmatrix/pkg/store"
)

// Engine computes path matrices for one graph.
type Engine struct {
	g       *graph.Graph
	cfg     Config
	logger  logrus.FieldLogger
	metrics *Metrics

	// afterPublish runs once an origin's row is in the merged store and
	// before the origin is marked finished. Tests use it to inject failures.
	afterPublish func(origin uint32) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the collectors updated during a computation.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine validates g and cfg and returns an Engine.
func NewEngine(g *graph.Graph, cfg Config, opts ...Option) (*Engine, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(g.NumVertices()); err != nil {
		return nil, err
	}
	if !g.Symmetric() {
		return nil, fmt.Errorf("%w: graph is directed", ErrConfiguration)
	}
	e := &Engine{g: g, cfg: cfg, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e, nil
}

// ComputeMatrix runs the search with DefaultConfig, the given hop bound and
// thread count, and writes the artifact to outputPath.
func ComputeMatrix(ctx context.Context, g *graph.Graph, outputPath string, hopBound, threads int) error {
	cfg := DefaultConfig()
	cfg.HopBound = hopBound
	cfg.Threads = threads
	e, err := NewEngine(g, cfg)
	if err != nil {
		return err
	}
	return e.ComputeMatrix(ctx, outputPath)
}

// run is the shared state of one computation.
type run struct {
	e       *Engine
	n       uint32
	dir     string
	merged  *store.Merged
	done    *completion
	failed  atomic.Bool
	start   time.Time
	logStep int64
}

// ComputeMatrix searches every origin and writes the artifact to
// outputPath. On success outputPath holds a complete artifact and the work
// directory is gone. On any failure no file is left at outputPath.
// Intermediate state of an earlier, interrupted run is discarded.
func (e *Engine) ComputeMatrix(ctx context.Context, outputPath string) (err error) {
	n := e.g.NumVertices()
	dir := e.cfg.TempDir
	if dir == "" {
		dir = outputPath + ".work"
	}
	log := e.logger.WithFields(logrus.Fields{"path": outputPath, "vertices": n, "hop_bound": e.cfg.HopBound})

	if err := store.RemovePath(dir); err != nil {
		return fmt.Errorf("remove stale work dir: %w", err)
	}
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous artifact: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	merged, err := store.NewMerged(filepath.Join(dir, "merged.bin"), n, e.cfg.HopBound, e.cfg.LockShards)
	if err != nil {
		store.RemovePath(dir)
		return err
	}

	r := &run{
		e:       e,
		n:       n,
		dir:     dir,
		merged:  merged,
		done:    newCompletion(n),
		start:   time.Now(),
		logStep: max(1, int64(n)/100),
	}

	defer func() {
		if cerr := r.cleanup(); cerr != nil {
			log.WithError(cerr).Warn("Could not remove work files, retrying at exit")
		}
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	log.WithField("threads", e.cfg.Threads).Info("Computing path matrix")
	if err := r.searchAll(ctx); err != nil {
		return err
	}

	log.Info("Writing artifact")
	opts := store.ArtifactOptions{HopBound: e.cfg.HopBound, AllowUnreachable: e.cfg.AllowUnreachable}
	if err := store.WriteArtifact(merged, outputPath, opts); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	log.WithField("elapsed", time.Since(r.start).Round(time.Millisecond)).Info("Path matrix complete")
	return nil
}

// searchAll runs one seed per origin on a bounded errgroup and waits for all
// of them or the deadline.
func (r *run) searchAll(ctx context.Context) error {
	if d := r.e.cfg.deadline(r.n); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.e.cfg.Threads)
	for o := range r.n {
		if r.failed.Load() || egCtx.Err() != nil {
			break
		}
		eg.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					r.e.logger.WithField("origin", o).Errorf("Recovered from panic: %v\n%s", p, debug.Stack())
					err = &WorkerError{Origin: o, Err: fmt.Errorf("panic: %v", p)}
				}
				if err != nil && !isContextErr(err) {
					r.failed.Store(true)
				}
			}()
			return r.runSeed(egCtx, o)
		})
	}
	err := eg.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s (%d of %d origins finished)", ErrTimeout, r.e.cfg.deadline(r.n), r.done.finished(), r.n)
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if got := r.done.finished(); got != int64(r.n) {
		return fmt.Errorf("%w: only %d of %d origins finished", ErrWorkerFailure, got, r.n)
	}
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// progress logs every logStep finished origins.
func (r *run) progress(finished int64) {
	if finished%r.logStep != 0 && finished != int64(r.n) {
		return
	}
	r.e.logger.WithFields(logrus.Fields{
		"finished": finished,
		"total":    r.n,
		"elapsed":  time.Since(r.start).Round(time.Second),
	}).Info("Search progress")
}

// cleanup removes the merged store and the work directory. Paths that
// cannot be removed are queued by the store package for a later retry.
func (r *run) cleanup() error {
	var result *multierror.Error
	if err := r.merged.Remove(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := store.RemovePath(r.dir); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
