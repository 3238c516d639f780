// Package clip answers which clip of a stage a point belongs to and checks
// the geometry of clips.
package clip

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/models"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	ErrTypeInvalidWidth = "invalid-clip-width"

	// The margin added on both sides of a clip fitted to its members.
	fitMargin = 1.0

	// The width given to clips fixed by FixWidth.
	fixedWidth = 10.0
)

// ContainsPoint reports whether p is inside c. All six faces are inclusive.
func ContainsPoint(c models.Clip, p r3.Vec) bool {
	return p.X >= c.MinX && p.X <= c.MaxX &&
		p.Y >= c.MinY && p.Y <= c.MaxY &&
		p.Z >= c.MinZ && p.Z <= c.MaxZ
}

// FindOwningClip returns the index of the first clip that contains p. Clips
// are checked in the given order.
func FindOwningClip(clips []models.Clip, p r3.Vec) (int, bool) {
	for i, c := range clips {
		if ContainsPoint(c, p) {
			return i, true
		}
	}
	return -1, false
}

// DetectOverlap reports whether the X intervals of a and b share an interior.
// Clips that only touch do not overlap.
func DetectOverlap(a, b models.Clip) bool {
	return !(a.MaxX <= b.MinX || b.MaxX <= a.MinX)
}

// Overlaps returns every pair of overlapping clips. Pairs are ordered with
// i < j.
func Overlaps(clips []models.Clip) [][2]int {
	var pairs [][2]int

	for i := 0; i < len(clips); i++ {
		for j := i + 1; j < len(clips); j++ {
			if DetectOverlap(clips[i], clips[j]) {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}

// RecomputeExtent returns c with its X interval fitted around the given
// member positions, plus a margin of 1 on each side. c is returned unchanged
// when there are no members.
func RecomputeExtent(c models.Clip, members []r3.Vec) models.Clip {
	if len(members) == 0 {
		return c
	}

	minX := math.Inf(1)
	maxX := math.Inf(-1)
	for _, m := range members {
		minX = math.Min(minX, m.X)
		maxX = math.Max(maxX, m.X)
	}

	c.MinX = minX - fitMargin
	c.MaxX = maxX + fitMargin
	return c
}

// FitToContents returns c with its X interval fitted around its own objects.
func FitToContents(c models.Clip) models.Clip {
	members := make([]r3.Vec, len(c.Objects))
	for i, o := range c.Objects {
		members[i] = o.Position()
	}
	return RecomputeExtent(c, members)
}

// Validate returns an error when c has a non positive width.
func Validate(c models.Clip) error {
	if IsValid(c) {
		return nil
	}

	return errors.New("clip max x must be greater than min x").
		WithType(ErrTypeInvalidWidth).
		WithTag("min_x", c.MinX).
		WithTag("max_x", c.MaxX)
}

func IsValid(c models.Clip) bool {
	return c.MaxX > c.MinX
}

// FixWidth returns c widened to a width of 10 from its min x.
func FixWidth(c models.Clip) models.Clip {
	c.MaxX = c.MinX + fixedWidth
	return c
}
