package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is an axis-aligned lat/lon bounding box.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// BoundsOf returns the tight bounding box of points. The second return is
// false when points is empty.
func BoundsOf(points []Point) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b := Bounds{North: points[0].Lat, South: points[0].Lat, East: points[0].Lon, West: points[0].Lon}
	for _, p := range points[1:] {
		b.North = math.Max(b.North, p.Lat)
		b.South = math.Min(b.South, p.Lat)
		b.East = math.Max(b.East, p.Lon)
		b.West = math.Min(b.West, p.Lon)
	}
	return b, true
}

// Padding factors for map centering: extra headroom above the track for the
// form overlay, a slimmer margin on the sides.
const (
	verticalPaddingFactor   = 0.5
	horizontalPaddingFactor = 0.15
)

// PaddedBounds expands the bounding box of points with the standard map
// padding. The second return is false when points is empty.
func PaddedBounds(points []Point) (Bounds, bool) {
	b, ok := BoundsOf(points)
	if !ok {
		return Bounds{}, false
	}
	latSpan := b.North - b.South
	lonSpan := b.East - b.West
	b.North += latSpan * verticalPaddingFactor
	b.West -= lonSpan * horizontalPaddingFactor
	b.East += lonSpan * horizontalPaddingFactor
	return b, true
}

// CatmullRom interpolates a smooth polyline through points, emitting
// segments+1 interpolated coordinates per input leg. Endpoints are clamped so
// the spline passes through the first and last point. Fewer than two points
// are returned unchanged.
func CatmullRom(points []Point, segments int) []Point {
	if len(points) < 2 || segments < 1 {
		return points
	}
	out := make([]Point, 0, (len(points)-1)*(segments+1))
	for i := 0; i < len(points)-1; i++ {
		p0 := points[max(i-1, 0)]
		p1 := points[i]
		p2 := points[i+1]
		p3 := points[min(i+2, len(points)-1)]
		for j := 0; j <= segments; j++ {
			t := float64(j) / float64(segments)
			t2 := t * t
			t3 := t2 * t
			out = append(out, Point{
				Lat: 0.5 * ((2 * p1.Lat) +
					(-p0.Lat+p2.Lat)*t +
					(2*p0.Lat-5*p1.Lat+4*p2.Lat-p3.Lat)*t2 +
					(-p0.Lat+3*p1.Lat-3*p2.Lat+p3.Lat)*t3),
				Lon: 0.5 * ((2 * p1.Lon) +
					(-p0.Lon+p2.Lon)*t +
					(2*p0.Lon-5*p1.Lon+4*p2.Lon-p3.Lon)*t2 +
					(-p0.Lon+3*p1.Lon-3*p2.Lon+p3.Lon)*t3),
			})
		}
	}
	return out
}
