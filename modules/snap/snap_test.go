package snap

import (
	"math"
	"testing"

	"github.com/aukilabs/stagekit/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func originCandidates(origins ...r3.Vec) []Candidate {
	candidates := make([]Candidate, len(origins))
	for i, o := range origins {
		candidates[i] = NewCandidate(o, nil, nil, nil)
	}
	return candidates
}

func boxCandidate(min, max r3.Vec) Candidate {
	b := r3.Box{Min: min, Max: max}
	return NewCandidate(models.BoxCenter(b), nil, &b, nil)
}

func TestSnapToGrid(t *testing.T) {
	tests := []struct {
		name     string
		in       r3.Vec
		cellSize float64
		expected r3.Vec
	}{
		{
			name:     "unit cells",
			in:       r3.Vec{X: 1.4, Y: 2.6, Z: -3.2},
			cellSize: 1,
			expected: r3.Vec{X: 1, Y: 3, Z: -3},
		},
		{
			name:     "halfway values round to even",
			in:       r3.Vec{X: 2.5, Y: 3.5, Z: -2.5},
			cellSize: 1,
			expected: r3.Vec{X: 2, Y: 4, Z: -2},
		},
		{
			name:     "half cells",
			in:       r3.Vec{X: 0.3, Y: 0.74, Z: 1.26},
			cellSize: 0.5,
			expected: r3.Vec{X: 0.5, Y: 0.5, Z: 1.5},
		},
		{
			name:     "zero cell size",
			in:       r3.Vec{X: 0.3, Y: 0.74, Z: 1.26},
			cellSize: 0,
			expected: r3.Vec{X: 0.3, Y: 0.74, Z: 1.26},
		},
		{
			name:     "negative cell size",
			in:       r3.Vec{X: 0.3, Y: 0.74, Z: 1.26},
			cellSize: -1,
			expected: r3.Vec{X: 0.3, Y: 0.74, Z: 1.26},
		},
		{
			name:     "nan cell size",
			in:       r3.Vec{X: 0.3, Y: 0.74, Z: 1.26},
			cellSize: math.NaN(),
			expected: r3.Vec{X: 0.3, Y: 0.74, Z: 1.26},
		},
		{
			name:     "infinite cell size",
			in:       r3.Vec{X: 0.3, Y: 0.74, Z: 1.26},
			cellSize: math.Inf(1),
			expected: r3.Vec{X: 0.3, Y: 0.74, Z: 1.26},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, SnapToGrid(test.in, test.cellSize))
		})
	}
}

func TestSnapToGridIsIdempotent(t *testing.T) {
	points := []r3.Vec{
		{X: 0.1, Y: -7.9, Z: 12.49},
		{X: 1e3 + 0.5, Y: -0.5, Z: 0.25},
		{X: -3.75, Y: 9.125, Z: 2.5},
	}

	for _, cellSize := range []float64{0.25, 1, 3} {
		for _, p := range points {
			once := SnapToGrid(p, cellSize)
			require.Equal(t, once, SnapToGrid(once, cellSize))
		}
	}
}

func TestSnapToNearestObject(t *testing.T) {
	candidates := originCandidates(
		r3.Vec{X: 1},
		r3.Vec{X: 0.4},
	)

	t.Run("nearest within distance", func(t *testing.T) {
		require.Equal(t, r3.Vec{X: 0.4}, SnapToNearestObject(r3.Vec{}, candidates, 0.5))
	})

	t.Run("nothing within distance", func(t *testing.T) {
		require.Equal(t, r3.Vec{}, SnapToNearestObject(r3.Vec{}, candidates, 0.3))
	})

	t.Run("distance must be strictly lower", func(t *testing.T) {
		require.Equal(t, r3.Vec{}, SnapToNearestObject(r3.Vec{}, candidates, 0.4))
	})

	t.Run("first candidate wins ties", func(t *testing.T) {
		tied := originCandidates(
			r3.Vec{Y: 0.2},
			r3.Vec{X: 0.2},
			r3.Vec{Z: -0.2},
		)
		require.Equal(t, r3.Vec{Y: 0.2}, SnapToNearestObject(r3.Vec{}, tied, 1))
	})

	t.Run("non positive distance", func(t *testing.T) {
		coincident := originCandidates(r3.Vec{X: 2})
		require.Equal(t, r3.Vec{X: 2}, SnapToNearestObject(r3.Vec{X: 2}, coincident, 0))
		require.Equal(t, r3.Vec{}, SnapToNearestObject(r3.Vec{}, candidates, -1))
	})

	t.Run("no candidates", func(t *testing.T) {
		require.Equal(t, r3.Vec{X: 9}, SnapToNearestObject(r3.Vec{X: 9}, nil, 10))
	})
}

func TestSnapToVertices(t *testing.T) {
	withMesh := NewCandidate(r3.Vec{}, []r3.Vec{
		{X: 5, Y: 5, Z: 5},
		{X: 1, Y: 0.2},
		{X: 1.1},
	}, nil, nil)
	withoutMesh := NewCandidate(r3.Vec{X: 1}, nil, nil, nil)

	t.Run("nearest vertex", func(t *testing.T) {
		got := SnapToVertices(r3.Vec{X: 1}, []Candidate{withoutMesh, withMesh}, 0.5)
		require.Equal(t, r3.Vec{X: 1.1}, got)
	})

	t.Run("candidates without mesh are ignored", func(t *testing.T) {
		got := SnapToVertices(r3.Vec{X: 1}, []Candidate{withoutMesh}, 0.5)
		require.Equal(t, r3.Vec{X: 1}, got)
	})

	t.Run("too far", func(t *testing.T) {
		got := SnapToVertices(r3.Vec{X: -3}, []Candidate{withMesh}, 0.5)
		require.Equal(t, r3.Vec{X: -3}, got)
	})
}

func TestEdgePoints(t *testing.T) {
	points := EdgePoints(r3.Box{
		Min: r3.Vec{X: 0, Y: 0, Z: 0},
		Max: r3.Vec{X: 2, Y: 4, Z: 6},
	})

	require.Equal(t, [12]r3.Vec{
		{X: 0, Y: 0, Z: 3},
		{X: 2, Y: 0, Z: 3},
		{X: 1, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 6},
		{X: 0, Y: 4, Z: 3},
		{X: 2, Y: 4, Z: 3},
		{X: 1, Y: 4, Z: 0},
		{X: 1, Y: 4, Z: 6},
		{X: 0, Y: 2, Z: 0},
		{X: 0, Y: 2, Z: 6},
		{X: 2, Y: 2, Z: 0},
		{X: 2, Y: 2, Z: 6},
	}, points)
}

func TestSnapToEdges(t *testing.T) {
	candidates := []Candidate{
		boxCandidate(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2}),
	}

	require.Equal(t, r3.Vec{Z: 1}, SnapToEdges(r3.Vec{X: 0.1, Y: 0.1, Z: 1.2}, candidates, 0.5))
	require.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, SnapToEdges(r3.Vec{X: 1, Y: 1, Z: 1}, candidates, 0.5))
}

func TestSnapToFaces(t *testing.T) {
	candidates := []Candidate{
		boxCandidate(r3.Vec{X: 10}, r3.Vec{X: 12, Y: 2, Z: 2}),
		boxCandidate(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2}),
	}

	t.Run("closest face point", func(t *testing.T) {
		got := SnapToFaces(r3.Vec{X: 2.3, Y: 1, Z: 1}, candidates, 0.5)
		require.Equal(t, r3.Vec{X: 2, Y: 1, Z: 1}, got)
	})

	t.Run("corner region", func(t *testing.T) {
		got := SnapToFaces(r3.Vec{X: -0.2, Y: 2.2, Z: 1}, candidates, 0.5)
		require.Equal(t, r3.Vec{X: 0, Y: 2, Z: 1}, got)
	})

	t.Run("too far", func(t *testing.T) {
		got := SnapToFaces(r3.Vec{X: 5, Y: 1, Z: 1}, candidates, 0.5)
		require.Equal(t, r3.Vec{X: 5, Y: 1, Z: 1}, got)
	})
}

func TestSnapToGround(t *testing.T) {
	candidates := []Candidate{
		boxCandidate(r3.Vec{X: -5, Y: -1, Z: -5}, r3.Vec{X: 5, Y: 0, Z: 5}),
		boxCandidate(r3.Vec{X: -1, Y: 0, Z: -1}, r3.Vec{X: 1, Y: 1, Z: 1}),
		boxCandidate(r3.Vec{X: -50, Y: 200, Z: -50}, r3.Vec{X: 50, Y: 201, Z: 50}),
		boxCandidate(r3.Vec{X: 30, Y: -10, Z: -1}, r3.Vec{X: 31, Y: 110, Z: 1}),
		boxCandidate(r3.Vec{X: 40, Y: -301, Z: -1}, r3.Vec{X: 45, Y: -300, Z: 1}),
	}

	tests := []struct {
		name     string
		in       r3.Vec
		expected r3.Vec
	}{
		{
			name:     "highest top below the ray start",
			in:       r3.Vec{Y: 5},
			expected: r3.Vec{Y: 1},
		},
		{
			name:     "lower box outside of the higher footprint",
			in:       r3.Vec{X: 3, Y: 5},
			expected: r3.Vec{X: 3},
		},
		{
			name:     "point below a box top is lifted",
			in:       r3.Vec{X: 0.5, Y: -20, Z: 0.5},
			expected: r3.Vec{X: 0.5, Y: 1, Z: 0.5},
		},
		{
			name:     "box containing the ray start is ignored",
			in:       r3.Vec{X: 30.5, Y: 5},
			expected: r3.Vec{X: 30.5, Y: 5},
		},
		{
			name:     "nothing below",
			in:       r3.Vec{X: 20, Y: 5},
			expected: r3.Vec{X: 20, Y: 5},
		},
		{
			name:     "ground out of ray reach",
			in:       r3.Vec{X: 42, Y: 5},
			expected: r3.Vec{X: 42, Y: 5},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, SnapToGround(test.in, candidates))
		})
	}
}

func TestNoCandidateWithinDistance(t *testing.T) {
	p := r3.Vec{X: 100, Y: 100, Z: 100}
	candidates := []Candidate{
		NewCandidate(r3.Vec{}, []r3.Vec{{X: 1}, {Y: 1}}, nil, nil),
		boxCandidate(r3.Vec{X: -2, Y: -2, Z: -2}, r3.Vec{X: 2, Y: 2, Z: 2}),
	}

	require.Equal(t, p, SnapToNearestObject(p, candidates, 1))
	require.Equal(t, p, SnapToVertices(p, candidates, 1))
	require.Equal(t, p, SnapToEdges(p, candidates, 1))
	require.Equal(t, p, SnapToFaces(p, candidates, 1))
}

func TestResolveBounds(t *testing.T) {
	renderer := &r3.Box{Min: r3.Vec{X: 1, Y: 1, Z: 1}, Max: r3.Vec{X: 2, Y: 2, Z: 2}}
	collider := &r3.Box{Min: r3.Vec{X: -1, Y: -1, Z: -1}, Max: r3.Vec{X: 3, Y: 3, Z: 3}}
	origin := r3.Vec{X: 10}

	t.Run("renderer first", func(t *testing.T) {
		b, source := ResolveBounds(origin, renderer, collider)
		require.Equal(t, *renderer, b)
		require.Equal(t, BoundsRenderer, source)
	})

	t.Run("collider second", func(t *testing.T) {
		b, source := ResolveBounds(origin, nil, collider)
		require.Equal(t, *collider, b)
		require.Equal(t, BoundsCollider, source)
		require.Equal(t, "collider", source.String())
	})

	t.Run("unit box around origin", func(t *testing.T) {
		b, source := ResolveBounds(origin, nil, nil)
		require.Equal(t, r3.Box{
			Min: r3.Vec{X: 9.5, Y: -0.5, Z: -0.5},
			Max: r3.Vec{X: 10.5, Y: 0.5, Z: 0.5},
		}, b)
		require.Equal(t, BoundsUnit, source)
	})

	t.Run("inverted box is ordered", func(t *testing.T) {
		inverted := &r3.Box{Min: r3.Vec{X: 2, Y: 1, Z: 5}, Max: r3.Vec{X: 1, Y: 2, Z: 3}}
		b, _ := ResolveBounds(origin, inverted, nil)
		require.Equal(t, r3.Box{
			Min: r3.Vec{X: 1, Y: 1, Z: 3},
			Max: r3.Vec{X: 2, Y: 2, Z: 5},
		}, b)
	})
}

func TestCandidateFromObject(t *testing.T) {
	obj := models.StageObject{
		ID:        4,
		Transform: models.DefaultTransform(),
		Geometry: models.Geometry{
			Vertices: []r3.Vec{{X: 1}, {Y: 1}},
			Collider: &r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}},
		},
	}
	obj.Transform.Position = r3.Vec{X: 10}
	obj.Transform.Scale = r3.Vec{X: 2, Y: 2, Z: 2}
	obj.Transform.Rotation = models.Quaternion{Z: math.Sin(math.Pi / 4), W: math.Cos(math.Pi / 4)}

	c := CandidateFromObject(obj)
	require.Equal(t, uint32(4), c.ID)
	require.Equal(t, r3.Vec{X: 10}, c.Origin)
	require.Equal(t, BoundsCollider, c.BoundsSource)

	expected := []r3.Vec{{X: 10, Y: 2}, {X: 8}}
	if diff := cmp.Diff(expected, c.Vertices, approx); diff != "" {
		t.Errorf("unexpected vertices (-want +got):\n%s", diff)
	}
}

func TestCandidatesFromStage(t *testing.T) {
	stage := models.NewStage(10)
	stage.AddClip()
	stage.AddClip()

	a, err := stage.AddObject(0, models.StageObject{})
	require.NoError(t, err)
	b, err := stage.AddObject(1, models.StageObject{})
	require.NoError(t, err)
	c, err := stage.AddObject(0, models.StageObject{})
	require.NoError(t, err)

	candidates := CandidatesFromStage(stage, c)
	require.Len(t, candidates, 2)
	require.Equal(t, a, candidates[0].ID)
	require.Equal(t, b, candidates[1].ID)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeAuto, mode)

	mode, err = ParseMode("edge")
	require.NoError(t, err)
	require.Equal(t, ModeEdge, mode)

	_, err = ParseMode("magnet")
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	far := NewCandidate(r3.Vec{X: 50, Y: 50, Z: 50}, []r3.Vec{{X: 0.3, Z: 4}}, nil, nil)

	t.Run("grid then vertex", func(t *testing.T) {
		res := Resolve(r3.Vec{X: 0.2, Y: 0.1, Z: 3.9}, []Candidate{far}, DefaultConfig())
		require.True(t, res.Snapped())
		require.Equal(t, r3.Vec{X: 0.3, Z: 4}, res.Position)
		require.Equal(t, []Step{
			{Mode: ModeGrid, From: r3.Vec{X: 0.2, Y: 0.1, Z: 3.9}, To: r3.Vec{Z: 4}},
			{Mode: ModeVertex, From: r3.Vec{Z: 4}, To: r3.Vec{X: 0.3, Z: 4}},
		}, res.Steps)
	})

	t.Run("disabled snaps are skipped", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SnapToGrid = false
		cfg.SnapToVertices = false

		res := Resolve(r3.Vec{X: 0.2, Y: 0.1, Z: 3.9}, []Candidate{far}, cfg)
		require.False(t, res.Snapped())
		require.Equal(t, r3.Vec{X: 0.2, Y: 0.1, Z: 3.9}, res.Position)
	})

	t.Run("face after edge", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SnapToGrid = false
		cfg.SnapToVertices = false
		cfg.SnapToEdges = false

		box := boxCandidate(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2})
		res := Resolve(r3.Vec{X: 2.2, Y: 1, Z: 1}, []Candidate{box}, cfg)
		require.Equal(t, r3.Vec{X: 2, Y: 1, Z: 1}, res.Position)
		require.Len(t, res.Steps, 1)
		require.Equal(t, ModeFace, res.Steps[0].Mode)
	})
}

func TestSnap(t *testing.T) {
	candidates := originCandidates(r3.Vec{X: 0.4})
	cfg := DefaultConfig()

	t.Run("single mode", func(t *testing.T) {
		res, err := Snap(ModeObject, r3.Vec{}, candidates, cfg)
		require.NoError(t, err)
		require.Equal(t, r3.Vec{X: 0.4}, res.Position)
		require.Equal(t, []Step{{Mode: ModeObject, To: r3.Vec{X: 0.4}}}, res.Steps)
	})

	t.Run("unchanged", func(t *testing.T) {
		res, err := Snap(ModeGround, r3.Vec{X: 40}, candidates, cfg)
		require.NoError(t, err)
		require.False(t, res.Snapped())
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := Snap(Mode("magnet"), r3.Vec{}, candidates, cfg)
		require.Error(t, err)
	})
}
