package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetlevel/mapraster-go/internal/geo"
	"github.com/streetlevel/mapraster-go/internal/logger"
	"github.com/streetlevel/mapraster-go/internal/raster"
)

var (
	rasterQuery   raster.Query
	rasterPyramid = geo.DefaultPyramid()
)

var rasterCmd = &cobra.Command{
	Use:   "raster",
	Short: "Select the tile grid covering a query box",
	Long: `Select the minimal grid of pre-rendered tiles that covers a query box at a
resolution fine enough for the given viewport width, and report the exact
bounds the grid spans. The result is printed as JSON for the rendering
front end.`,
	Run: runRaster,
}

func init() {
	rootCmd.AddCommand(rasterCmd)

	rasterCmd.Flags().Float64Var(&rasterQuery.UpperLeftLon, "ullon", 0, "Query upper-left longitude")
	rasterCmd.Flags().Float64Var(&rasterQuery.UpperLeftLat, "ullat", 0, "Query upper-left latitude")
	rasterCmd.Flags().Float64Var(&rasterQuery.LowerRightLon, "lrlon", 0, "Query lower-right longitude")
	rasterCmd.Flags().Float64Var(&rasterQuery.LowerRightLat, "lrlat", 0, "Query lower-right latitude")
	rasterCmd.Flags().Float64VarP(&rasterQuery.Width, "width", "w", 0, "Viewport width in pixels")

	rasterCmd.Flags().Float64Var(&rasterPyramid.RootUpperLeftLon, "root-ullon", rasterPyramid.RootUpperLeftLon, "Pyramid root upper-left longitude")
	rasterCmd.Flags().Float64Var(&rasterPyramid.RootUpperLeftLat, "root-ullat", rasterPyramid.RootUpperLeftLat, "Pyramid root upper-left latitude")
	rasterCmd.Flags().Float64Var(&rasterPyramid.RootLowerRightLon, "root-lrlon", rasterPyramid.RootLowerRightLon, "Pyramid root lower-right longitude")
	rasterCmd.Flags().Float64Var(&rasterPyramid.RootLowerRightLat, "root-lrlat", rasterPyramid.RootLowerRightLat, "Pyramid root lower-right latitude")
	rasterCmd.Flags().Float64Var(&rasterPyramid.TileSide, "tile-side", rasterPyramid.TileSide, "Tile bitmap edge in pixels at depth 0")
	rasterCmd.Flags().IntVar(&rasterPyramid.MaxDepth, "max-depth", rasterPyramid.MaxDepth, "Deepest zoom level of the pyramid")

	rasterCmd.MarkFlagRequired("ullon")
	rasterCmd.MarkFlagRequired("ullat")
	rasterCmd.MarkFlagRequired("lrlon")
	rasterCmd.MarkFlagRequired("lrlat")
	rasterCmd.MarkFlagRequired("width")
}

// rasterResponse is the JSON shape consumed by the rendering front end
type rasterResponse struct {
	Depth   int        `json:"depth"`
	Grid    [][]string `json:"render_grid"`
	UlLon   float64    `json:"raster_ul_lon"`
	UlLat   float64    `json:"raster_ul_lat"`
	LrLon   float64    `json:"raster_lr_lon"`
	LrLat   float64    `json:"raster_lr_lat"`
	Success bool       `json:"query_success"`
}

func runRaster(cmd *cobra.Command, args []string) {
	log := logger.Get()

	if !rasterPyramid.IsValid() {
		exitWithError("invalid pyramid bounds", nil)
	}

	res, err := raster.Select(rasterPyramid, rasterQuery)
	if err != nil {
		exitWithError("raster query failed", err)
	}

	if !res.OK {
		log.Warn("Query box produced no tile grid",
			zap.Int("depth", res.Depth),
			zap.Float64("ullon", rasterQuery.UpperLeftLon),
			zap.Float64("lrlon", rasterQuery.LowerRightLon))
	}

	resp := rasterResponse{
		Depth:   res.Depth,
		Grid:    res.Grid,
		UlLon:   res.Bounds.UpperLeftLon,
		UlLat:   res.Bounds.UpperLeftLat,
		LrLon:   res.Bounds.LowerRightLon,
		LrLat:   res.Bounds.LowerRightLat,
		Success: res.OK,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		exitWithError("failed to encode result", err)
	}
}
