// Package snap resolves where a point lands when it is snapped to a grid or to
// the geometry of surrounding objects.
package snap

import (
	"math"

	"github.com/aukilabs/stagekit/models"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// The height above the point where ground rays start.
	groundRayOffset = 100.0

	// The length of ground rays.
	groundRayLength = 200.0
)

// SnapToGrid rounds every coordinate of p to the nearest multiple of
// cellSize. Halfway values round to even. A cell size that is not a positive
// finite number leaves p unchanged.
func SnapToGrid(p r3.Vec, cellSize float64) r3.Vec {
	if !(cellSize > 0) || math.IsInf(cellSize, 1) {
		return p
	}

	return r3.Vec{
		X: roundToGrid(p.X, cellSize),
		Y: roundToGrid(p.Y, cellSize),
		Z: roundToGrid(p.Z, cellSize),
	}
}

func roundToGrid(v, cellSize float64) float64 {
	return math.RoundToEven(v/cellSize) * cellSize
}

// SnapToNearestObject moves p to the nearest candidate origin that is closer
// than maxDistance.
func SnapToNearestObject(p r3.Vec, candidates []Candidate, maxDistance float64) r3.Vec {
	return nearest(p, maxDistance, func(visit func(r3.Vec)) {
		for _, c := range candidates {
			visit(c.Origin)
		}
	})
}

// SnapToVertices moves p to the nearest mesh vertex that is closer than
// maxDistance. Candidates without mesh are ignored.
func SnapToVertices(p r3.Vec, candidates []Candidate, maxDistance float64) r3.Vec {
	return nearest(p, maxDistance, func(visit func(r3.Vec)) {
		for _, c := range candidates {
			for _, v := range c.Vertices {
				visit(v)
			}
		}
	})
}

// SnapToEdges moves p to the nearest edge point of a candidate box that is
// closer than maxDistance. See EdgePoints.
func SnapToEdges(p r3.Vec, candidates []Candidate, maxDistance float64) r3.Vec {
	return nearest(p, maxDistance, func(visit func(r3.Vec)) {
		for _, c := range candidates {
			for _, e := range EdgePoints(c.Bounds) {
				visit(e)
			}
		}
	})
}

// SnapToFaces moves p to the closest point of the nearest candidate box when
// it is closer than maxDistance.
func SnapToFaces(p r3.Vec, candidates []Candidate, maxDistance float64) r3.Vec {
	return nearest(p, maxDistance, func(visit func(r3.Vec)) {
		for _, c := range candidates {
			visit(ClosestPoint(c.Bounds, p))
		}
	})
}

// EdgePoints returns the midpoints of the twelve edges of b: the four edges
// of the bottom face, the four edges of the top face and the four vertical
// edges.
func EdgePoints(b r3.Box) [12]r3.Vec {
	c := models.BoxCenter(b)

	return [12]r3.Vec{
		{X: b.Min.X, Y: b.Min.Y, Z: c.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: c.Z},
		{X: c.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: c.X, Y: b.Min.Y, Z: b.Max.Z},

		{X: b.Min.X, Y: b.Max.Y, Z: c.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: c.Z},
		{X: c.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: c.X, Y: b.Max.Y, Z: b.Max.Z},

		{X: b.Min.X, Y: c.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: c.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: c.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: c.Y, Z: b.Max.Z},
	}
}

// ClosestPoint returns the point of b closest to p.
func ClosestPoint(b r3.Box, p r3.Vec) r3.Vec {
	return r3.Vec{
		X: clamp(p.X, b.Min.X, b.Max.X),
		Y: clamp(p.Y, b.Min.Y, b.Max.Y),
		Z: clamp(p.Z, b.Min.Z, b.Max.Z),
	}
}

// SnapToGround drops p onto the highest candidate box top found by a
// downward ray starting above p. The ray ignores boxes it starts in. p is
// returned unchanged when nothing is hit.
func SnapToGround(p r3.Vec, candidates []Candidate) r3.Vec {
	start := p.Y + groundRayOffset
	end := start - groundRayLength

	hit := false
	top := math.Inf(-1)

	for _, c := range candidates {
		b := c.Bounds
		if p.X < b.Min.X || p.X > b.Max.X || p.Z < b.Min.Z || p.Z > b.Max.Z {
			continue
		}
		if b.Max.Y > start || b.Max.Y < end {
			continue
		}
		if b.Max.Y > top {
			top = b.Max.Y
			hit = true
		}
	}

	if !hit {
		return p
	}
	return r3.Vec{X: p.X, Y: top, Z: p.Z}
}

// nearest returns the point visited by points that is the closest to p and
// strictly closer than maxDistance. The first visited point wins ties. p is
// returned when no point qualifies.
func nearest(p r3.Vec, maxDistance float64, points func(visit func(r3.Vec))) r3.Vec {
	best := p
	bestDistance := maxDistance

	points(func(v r3.Vec) {
		if d := r3.Norm(r3.Sub(v, p)); d < bestDistance {
			best = v
			bestDistance = d
		}
	})
	return best
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(v, max))
}
