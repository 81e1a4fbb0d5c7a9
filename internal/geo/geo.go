package geo

import "math"

// EarthRadiusM is the mean earth radius in meters
const EarthRadiusM = 6371000.0

// Pyramid describes the fixed quadtree tile pyramid: the geographic bounds of
// the root tile and the pixel size of one tile bitmap at depth 0.
// Longitude increases rightward, latitude increases upward, so
// RootLowerRightLon > RootUpperLeftLon and RootUpperLeftLat > RootLowerRightLat.
type Pyramid struct {
	RootUpperLeftLon  float64
	RootUpperLeftLat  float64
	RootLowerRightLon float64
	RootLowerRightLat float64
	TileSide          float64 // pixels per tile edge at depth 0
	MaxDepth          int     // inclusive upper bound on zoom depth
}

// DefaultPyramid returns the pyramid for the bundled Berkeley extract
func DefaultPyramid() Pyramid {
	return Pyramid{
		RootUpperLeftLon:  -122.2998046875,
		RootUpperLeftLat:  37.892195547244356,
		RootLowerRightLon: -122.2119140625,
		RootLowerRightLat: 37.82280243352756,
		TileSide:          256,
		MaxDepth:          7,
	}
}

// RootWidth returns the longitudinal span of the root tile in degrees
func (p Pyramid) RootWidth() float64 {
	return p.RootLowerRightLon - p.RootUpperLeftLon
}

// RootHeight returns the latitudinal span of the root tile in degrees
func (p Pyramid) RootHeight() float64 {
	return p.RootUpperLeftLat - p.RootLowerRightLat
}

// IsValid checks the pyramid's orientation invariants
func (p Pyramid) IsValid() bool {
	return p.RootWidth() > 0 && p.RootHeight() > 0 && p.TileSide > 0 && p.MaxDepth >= 0
}

// Distance returns the great-circle distance in meters between two
// lon/lat points, using the haversine formula
func Distance(lon1, lat1, lon2, lat2 float64) float64 {
	phi1 := lat1 * math.Pi / 180.0
	phi2 := lat2 * math.Pi / 180.0
	dPhi := (lat2 - lat1) * math.Pi / 180.0
	dLambda := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// Bearing returns the initial great-circle bearing in degrees from the first
// point to the second, normalized to [0, 360)
func Bearing(lon1, lat1, lon2, lat2 float64) float64 {
	phi1 := lat1 * math.Pi / 180.0
	phi2 := lat2 * math.Pi / 180.0
	dLambda := (lon2 - lon1) * math.Pi / 180.0

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	deg := math.Atan2(y, x) * 180.0 / math.Pi
	return math.Mod(deg+360.0, 360.0)
}
