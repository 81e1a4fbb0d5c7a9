// Package pgstore bulk-loads a built road graph into PostgreSQL so routing
// consumers outside this process can read it.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/streetlevel/mapraster-go/internal/config"
	"github.com/streetlevel/mapraster-go/internal/graph"
	"github.com/streetlevel/mapraster-go/internal/logger"
)

// Stats holds export statistics
type Stats struct {
	NodesLoaded int64
	EdgesLoaded int64
}

// Store writes road graphs into PostgreSQL
type Store struct {
	cfg          *config.Config
	pool         *pgxpool.Pool
	dropExisting bool
}

// NewStore connects to PostgreSQL
func NewStore(cfg *config.Config, dropExisting bool) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Workers)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &Store{cfg: cfg, pool: pool, dropExisting: dropExisting}, nil
}

// Close closes connections
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Export creates the road tables and bulk-loads the graph. The node and edge
// copies run concurrently; edges reference nodes only by id, so there is no
// ordering constraint between the two tables until indexes are added.
func (s *Store) Export(ctx context.Context, g *graph.Graph) (*Stats, error) {
	log := logger.Get()

	if err := s.createTables(ctx); err != nil {
		return nil, err
	}

	stats := &Stats{}
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		n, err := s.copyNodes(egCtx, g)
		if err != nil {
			return fmt.Errorf("failed to load nodes: %w", err)
		}
		stats.NodesLoaded = n
		return nil
	})

	eg.Go(func() error {
		n, err := s.copyEdges(egCtx, g)
		if err != nil {
			return fmt.Errorf("failed to load edges: %w", err)
		}
		stats.EdgesLoaded = n
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, err
	}

	log.Info("Graph export complete",
		zap.Int64("nodes", stats.NodesLoaded),
		zap.Int64("edges", stats.EdgesLoaded))

	return stats, nil
}

func (s *Store) createTables(ctx context.Context) error {
	if s.cfg.DBSchema != "public" {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", s.cfg.DBSchema)); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if s.dropExisting {
		for _, table := range []string{"road_edges", "road_nodes"} {
			if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s.%s", s.cfg.DBSchema, table)); err != nil {
				return fmt.Errorf("failed to drop %s: %w", table, err)
			}
		}
	}

	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.road_nodes (
			id BIGINT PRIMARY KEY,
			lon DOUBLE PRECISION NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			name TEXT
		)`, s.cfg.DBSchema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.road_edges (
			from_id BIGINT NOT NULL,
			to_id BIGINT NOT NULL,
			weight DOUBLE PRECISION NOT NULL,
			name TEXT,
			maxspeed TEXT
		)`, s.cfg.DBSchema),
	}
	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

func (s *Store) copyNodes(ctx context.Context, g *graph.Graph) (int64, error) {
	nodes := g.Nodes()
	rows := make([][]any, 0, len(nodes))
	for _, n := range nodes {
		var name any
		if n.Name != "" {
			name = n.Name
		}
		rows = append(rows, []any{n.ID, n.Lon, n.Lat, name})
	}

	return s.pool.CopyFrom(ctx,
		pgx.Identifier{s.cfg.DBSchema, "road_nodes"},
		[]string{"id", "lon", "lat", "name"},
		pgx.CopyFromRows(rows))
}

func (s *Store) copyEdges(ctx context.Context, g *graph.Graph) (int64, error) {
	edges := g.Edges()
	rows := make([][]any, 0, len(edges))
	for _, e := range edges {
		var name, maxspeed any
		if v, ok := e.Tags["name"]; ok {
			name = v
		}
		if v, ok := e.Tags["maxspeed"]; ok {
			maxspeed = v
		}
		rows = append(rows, []any{e.From, e.To, e.Weight, name, maxspeed})
	}

	return s.pool.CopyFrom(ctx,
		pgx.Identifier{s.cfg.DBSchema, "road_edges"},
		[]string{"from_id", "to_id", "weight", "name", "maxspeed"},
		pgx.CopyFromRows(rows))
}

func (s *Store) createIndexes(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS road_edges_from_idx ON %s.road_edges (from_id)", s.cfg.DBSchema),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS road_edges_to_idx ON %s.road_edges (to_id)", s.cfg.DBSchema),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}
	return nil
}
