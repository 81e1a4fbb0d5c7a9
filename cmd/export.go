package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetlevel/mapraster-go/internal/logger"
	"github.com/streetlevel/mapraster-go/internal/pgstore"
)

var dropExisting bool

var exportCmd = &cobra.Command{
	Use:   "export <input.osm|input.osm.gz|input.osm.pbf>",
	Short: "Build a road graph and bulk-load it into PostgreSQL",
	Long: `Build the road graph from an OSM extract, then COPY it into the
road_nodes and road_edges tables for external routing consumers.`,
	Args: cobra.ExactArgs(1),
	Run:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addBuildFlags(exportCmd)
	exportCmd.Flags().BoolVar(&dropExisting, "drop-existing", false, "Drop existing road tables before loading")
}

func runExport(cmd *cobra.Command, args []string) {
	log := logger.Get()
	ctx := context.Background()

	totalStart := time.Now()

	g, _, closeGraph, err := buildGraph(ctx, args[0])
	if err != nil {
		exitWithError("build failed", err)
	}
	defer closeGraph()

	store, err := pgstore.NewStore(cfg, dropExisting)
	if err != nil {
		exitWithError("failed to connect to PostgreSQL", err)
	}
	defer store.Close()

	log.Info("Exporting graph",
		zap.String("target", fmt.Sprintf("%s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)))

	stats, err := store.Export(ctx, g)
	if err != nil {
		exitWithError("export failed", err)
	}

	log.Info("Export complete",
		zap.Duration("total_time", time.Since(totalStart).Round(time.Second)),
		zap.Int64("nodes", stats.NodesLoaded),
		zap.Int64("edges", stats.EdgesLoaded))
}
