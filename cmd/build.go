package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetlevel/mapraster-go/internal/config"
	"github.com/streetlevel/mapraster-go/internal/flex"
	"github.com/streetlevel/mapraster-go/internal/graph"
	"github.com/streetlevel/mapraster-go/internal/logger"
	"github.com/streetlevel/mapraster-go/internal/metrics"
	"github.com/streetlevel/mapraster-go/internal/nodeindex"
	"github.com/streetlevel/mapraster-go/internal/osmbuild"
	"github.com/streetlevel/mapraster-go/internal/style"
)

var (
	bboxStr       string
	styleFile     string
	flatNodesFile string
	noClean       bool
)

var buildCmd = &cobra.Command{
	Use:   "build <input.osm|input.osm.gz|input.osm.pbf>",
	Short: "Build a road graph from an OSM extract",
	Long: `Stream an OSM extract and build the in-memory road graph used for routing:

  1. Nodes are stored with their coordinates (and names, when tagged)
  2. Ways whose highway tag marks a traversable road become chains of
     undirected edges weighted by great-circle distance
  3. Nodes that end up with no edges are dropped

XML (.osm, optionally gzipped) and PBF inputs share the same builder.`,
	Args: cobra.ExactArgs(1),
	Run:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&bboxStr, "bbox", "b", "", "Bounding box filter: minlon,minlat,maxlon,maxlat")
	cmd.Flags().StringVarP(&styleFile, "style", "S", "", "YAML road-type config or Lua filter script")
	cmd.Flags().StringVar(&flatNodesFile, "flat-nodes", "", "Path to mmap flat node file (lower memory for large extracts)")
	cmd.Flags().BoolVar(&noClean, "no-clean", false, "Keep nodes that have no edges after the build")
}

func runBuild(cmd *cobra.Command, args []string) {
	log := logger.Get()

	g, stats, closeGraph, err := buildGraph(context.Background(), args[0])
	if err != nil {
		exitWithError("build failed", err)
	}
	defer closeGraph()

	log.Info("Graph ready",
		zap.Int("nodes", g.NodeCount()),
		zap.Int("directed_edges", g.EdgeCount()),
		zap.Int64("routable_ways", stats.RoutableWays),
		zap.Int64("skipped_refs", stats.SkippedRefs))
}

// buildGraph runs the full ingestion: flag parsing into config, filter setup,
// format detection, the streaming build, and the post-build clean pass.
// The returned closer releases the flat node index backing the graph's
// coordinates; the graph must not be read after calling it.
func buildGraph(ctx context.Context, inputFile string) (*graph.Graph, osmbuild.Stats, func(), error) {
	log := logger.Get()

	cfg.InputFile = inputFile
	cfg.StyleFile = styleFile
	cfg.FlatNodesFile = flatNodesFile
	cfg.Clean = !noClean

	if bboxStr != "" {
		bbox, err := config.ParseBBox(bboxStr)
		if err != nil {
			return nil, osmbuild.Stats{}, nil, err
		}
		cfg.BBox = bbox
	}

	if err := cfg.Validate(); err != nil {
		return nil, osmbuild.Stats{}, nil, err
	}

	g, closeGraph, err := newGraph()
	if err != nil {
		return nil, osmbuild.Stats{}, nil, err
	}

	opts, closeFilter, err := filterOptions()
	if err != nil {
		closeGraph()
		return nil, osmbuild.Stats{}, nil, err
	}
	defer closeFilter()

	builder := osmbuild.NewBuilder(g, opts...)

	logFields := []zap.Field{zap.String("input", cfg.InputFile)}
	if cfg.BBox != nil && cfg.BBox.IsSet {
		logFields = append(logFields, zap.String("bbox", bboxStr))
	}
	if cfg.StyleFile != "" {
		logFields = append(logFields, zap.String("style", cfg.StyleFile))
	}
	if cfg.FlatNodesFile != "" {
		logFields = append(logFields, zap.String("flat_nodes", cfg.FlatNodesFile))
	}
	log.Info("Building road graph", logFields...)

	// Periodic system metrics while the build runs
	metricsCtx, cancelMetrics := context.WithCancel(ctx)
	defer cancelMetrics()
	go metrics.NewCollector(cfg.MetricsInterval, log).Start(metricsCtx)

	start := time.Now()

	if strings.HasSuffix(strings.ToLower(cfg.InputFile), ".pbf") {
		err = osmbuild.ParsePBFFile(ctx, cfg.InputFile, builder, cfg.BBox, cfg.Workers)
	} else {
		err = osmbuild.ParseXMLFile(ctx, cfg.InputFile, builder)
	}
	if err != nil {
		closeGraph()
		return nil, osmbuild.Stats{}, nil, err
	}

	stats := builder.Stats()
	log.Info("Ingestion complete",
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
		zap.Int64("nodes", stats.Nodes),
		zap.Int64("ways", stats.Ways),
		zap.Int64("routable_ways", stats.RoutableWays),
		zap.Int64("edges", stats.Edges))

	if cfg.Clean {
		removed := g.Clean()
		log.Info("Removed edge-less nodes", zap.Int("removed", removed))
	}

	return g, stats, closeGraph, nil
}

// newGraph creates the graph with either in-memory or mmap coordinates
func newGraph() (*graph.Graph, func(), error) {
	if cfg.FlatNodesFile == "" {
		return graph.New(), func() {}, nil
	}

	idx, err := nodeindex.Create(cfg.FlatNodesFile)
	if err != nil {
		return nil, nil, err
	}
	return graph.NewWithCoordStore(idx), func() { idx.Close() }, nil
}

// filterOptions resolves the --style flag into builder options. A .lua file
// becomes a flex filter, anything else is parsed as the YAML road config.
func filterOptions() ([]osmbuild.Option, func(), error) {
	if cfg.StyleFile == "" {
		return nil, func() {}, nil
	}

	if strings.HasSuffix(strings.ToLower(cfg.StyleFile), ".lua") {
		f, err := flex.NewFilter(cfg.StyleFile)
		if err != nil {
			return nil, nil, err
		}
		return []osmbuild.Option{osmbuild.WithFilter(f)}, f.Close, nil
	}

	sc, err := style.LoadConfig(cfg.StyleFile)
	if err != nil {
		return nil, nil, err
	}
	return sc.Options(), func() {}, nil
}
