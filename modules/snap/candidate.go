package snap

import (
	"math"

	"github.com/aukilabs/stagekit/models"
	"gonum.org/v1/gonum/spatial/r3"
)

// BoundsSource describes where the bounds of a candidate come from.
type BoundsSource int

const (
	BoundsUnit BoundsSource = iota
	BoundsRenderer
	BoundsCollider
)

func (s BoundsSource) String() string {
	switch s {
	case BoundsRenderer:
		return "renderer"
	case BoundsCollider:
		return "collider"
	default:
		return "unit"
	}
}

// Candidate is the geometry of an object that a point can snap to. It is
// resolved once per query from the capabilities of the object.
type Candidate struct {
	// The id of the stage object the candidate was built from. 0 when the
	// candidate does not come from a stage.
	ID uint32

	Origin r3.Vec

	// World space mesh vertices. Nil when the object has no mesh.
	Vertices []r3.Vec

	Bounds       r3.Box
	BoundsSource BoundsSource
}

// ResolveBounds picks the bounds of an object: the renderer bounds, else the
// collider bounds, else a unit box centered on origin. The returned box has
// its min and max ordered on every axis.
func ResolveBounds(origin r3.Vec, renderer, collider *r3.Box) (r3.Box, BoundsSource) {
	switch {
	case renderer != nil:
		return canonical(*renderer), BoundsRenderer
	case collider != nil:
		return canonical(*collider), BoundsCollider
	default:
		return models.UnitBox(origin), BoundsUnit
	}
}

// NewCandidate returns a candidate from world space geometry.
func NewCandidate(origin r3.Vec, vertices []r3.Vec, renderer, collider *r3.Box) Candidate {
	bounds, source := ResolveBounds(origin, renderer, collider)
	return Candidate{
		Origin:       origin,
		Vertices:     vertices,
		Bounds:       bounds,
		BoundsSource: source,
	}
}

// CandidateFromObject returns the candidate of a stage object. Mesh vertices
// are transformed into world space.
func CandidateFromObject(o models.StageObject) Candidate {
	var vertices []r3.Vec
	if len(o.Geometry.Vertices) != 0 {
		vertices = make([]r3.Vec, len(o.Geometry.Vertices))
		for i, v := range o.Geometry.Vertices {
			vertices[i] = o.Transform.TransformPoint(v)
		}
	}

	c := NewCandidate(o.Position(), vertices, o.Geometry.Renderer, o.Geometry.Collider)
	c.ID = o.ID
	return c
}

// CandidatesFromStage returns the candidates of every stage object, in stage
// order, except the excluded ones.
func CandidatesFromStage(s *models.Stage, exclude ...uint32) []Candidate {
	var candidates []Candidate

	for _, o := range s.Objects() {
		if isExcluded(o.ID, exclude) {
			continue
		}
		candidates = append(candidates, CandidateFromObject(o))
	}
	return candidates
}

func isExcluded(id uint32, exclude []uint32) bool {
	for _, e := range exclude {
		if e == id {
			return true
		}
	}
	return false
}

func canonical(b r3.Box) r3.Box {
	return r3.Box{
		Min: r3.Vec{
			X: math.Min(b.Min.X, b.Max.X),
			Y: math.Min(b.Min.Y, b.Max.Y),
			Z: math.Min(b.Min.Z, b.Max.Z),
		},
		Max: r3.Vec{
			X: math.Max(b.Min.X, b.Max.X),
			Y: math.Max(b.Min.Y, b.Max.Y),
			Z: math.Max(b.Min.Z, b.Max.Z),
		},
	}
}
