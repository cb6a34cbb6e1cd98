// Command pathmatrix builds and queries hop-bounded all-pairs shortest path
// matrices.
//
//	pathmatrix ingest --input edges.txt.gz --output graph.bin --degree-order
//	pathmatrix compute --graph graph.bin --output matrix.bin --threads 8
//	pathmatrix query --matrix matrix.bin --graph graph.bin 0 42
//	pathmatrix serve --matrix matrix.bin --graph graph.bin --port 8080
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azybler/pathmatrix/pkg/graph"
	"github.com/azybler/pathmatrix/pkg/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(logrus.StandardLogger()).ExecuteContext(ctx)
	stop()

	cleanupWorkFiles(logrus.StandardLogger())
	if err != nil {
		os.Exit(1)
	}
}

// cleanupWorkFiles retries removals that failed during the run and logs
// the paths left behind.
func cleanupWorkFiles(logger logrus.FieldLogger) {
	if err := store.RetryPendingRemovals(); err != nil {
		logger.WithError(err).WithField("paths", store.PendingRemovals()).
			Warn("Some temporary files could not be removed")
	}
}

type rootOptions struct {
	verbose   bool
	logFormat string
}

func newRootCmd(logger *logrus.Logger) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pathmatrix",
		Short:         "Hop-bounded all-pairs shortest path matrices",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogger(logger, opts)
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")

	cmd.AddCommand(
		newIngestCmd(logger),
		newComputeCmd(logger),
		newQueryCmd(logger),
		newVerifyCmd(logger),
		newServeCmd(logger),
	)
	return cmd
}

func configureLogger(logger *logrus.Logger, opts *rootOptions) error {
	switch opts.logFormat {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", opts.logFormat)
	}
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// loadGraph reads a graph snapshot written by the ingest command.
func loadGraph(logger logrus.FieldLogger, path string) (*graph.Graph, error) {
	g, err := graph.ReadBinary(path)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"path":     path,
		"vertices": g.NumVertices(),
		"edges":    g.NumEdges(),
	}).Info("Loaded graph")
	return g, nil
}
