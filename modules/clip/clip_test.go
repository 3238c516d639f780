package clip

import (
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/models"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestContainsPoint(t *testing.T) {
	c := models.NewClip(0, 10)

	tests := []struct {
		name     string
		p        r3.Vec
		expected bool
	}{
		{name: "inside", p: r3.Vec{X: 5}, expected: true},
		{name: "min x face", p: r3.Vec{X: 0}, expected: true},
		{name: "max x face", p: r3.Vec{X: 10}, expected: true},
		{name: "min y face", p: r3.Vec{X: 5, Y: -50}, expected: true},
		{name: "max y face", p: r3.Vec{X: 5, Y: 50}, expected: true},
		{name: "min z face", p: r3.Vec{X: 5, Z: -50}, expected: true},
		{name: "max z face", p: r3.Vec{X: 5, Z: 50}, expected: true},
		{name: "corner", p: r3.Vec{X: 10, Y: 50, Z: -50}, expected: true},
		{name: "past max x", p: r3.Vec{X: 10.0001}, expected: false},
		{name: "before min x", p: r3.Vec{X: -0.0001}, expected: false},
		{name: "above", p: r3.Vec{X: 5, Y: 50.5}, expected: false},
		{name: "behind", p: r3.Vec{X: 5, Z: -51}, expected: false},
		{name: "nan", p: r3.Vec{X: math.NaN()}, expected: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, ContainsPoint(c, test.p))
		})
	}
}

func TestFindOwningClip(t *testing.T) {
	clips := []models.Clip{
		models.NewClip(0, 10),
		models.NewClip(10, 20),
		models.NewClip(5, 15),
	}

	tests := []struct {
		name          string
		p             r3.Vec
		expectedIndex int
		expectedFound bool
	}{
		{name: "single owner", p: r3.Vec{X: 2}, expectedIndex: 0, expectedFound: true},
		{name: "shared face goes to the first clip", p: r3.Vec{X: 10}, expectedIndex: 0, expectedFound: true},
		{name: "overlap goes to the first clip", p: r3.Vec{X: 12}, expectedIndex: 1, expectedFound: true},
		{name: "outside", p: r3.Vec{X: 25}, expectedIndex: -1, expectedFound: false},
		{name: "outside vertically", p: r3.Vec{X: 2, Y: 80}, expectedIndex: -1, expectedFound: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			i, found := FindOwningClip(clips, test.p)
			require.Equal(t, test.expectedIndex, i)
			require.Equal(t, test.expectedFound, found)
		})
	}

	t.Run("no clips", func(t *testing.T) {
		_, found := FindOwningClip(nil, r3.Vec{})
		require.False(t, found)
	})
}

func TestDetectOverlap(t *testing.T) {
	tests := []struct {
		name     string
		a        models.Clip
		b        models.Clip
		expected bool
	}{
		{name: "touching", a: models.NewClip(0, 10), b: models.NewClip(10, 20), expected: false},
		{name: "shared interior", a: models.NewClip(0, 10), b: models.NewClip(5, 15), expected: true},
		{name: "nested", a: models.NewClip(0, 10), b: models.NewClip(2, 3), expected: true},
		{name: "identical", a: models.NewClip(0, 10), b: models.NewClip(0, 10), expected: true},
		{name: "apart", a: models.NewClip(0, 10), b: models.NewClip(30, 40), expected: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, DetectOverlap(test.a, test.b))
			require.Equal(t, test.expected, DetectOverlap(test.b, test.a))
		})
	}
}

func TestOverlaps(t *testing.T) {
	clips := []models.Clip{
		models.NewClip(0, 10),
		models.NewClip(10, 20),
		models.NewClip(5, 15),
		models.NewClip(100, 110),
	}

	require.Equal(t, [][2]int{{0, 2}, {1, 2}}, Overlaps(clips))
	require.Nil(t, Overlaps(clips[:2]))
}

func TestRecomputeExtent(t *testing.T) {
	c := models.NewClip(0, 10)

	t.Run("fitted around members", func(t *testing.T) {
		fitted := RecomputeExtent(c, []r3.Vec{{X: 2}, {X: 5}, {X: 9}})
		require.Equal(t, 1.0, fitted.MinX)
		require.Equal(t, 10.0, fitted.MaxX)
		require.Equal(t, c.MinY, fitted.MinY)
		require.Equal(t, c.MaxZ, fitted.MaxZ)
	})

	t.Run("single member", func(t *testing.T) {
		fitted := RecomputeExtent(c, []r3.Vec{{X: -4}})
		require.Equal(t, -5.0, fitted.MinX)
		require.Equal(t, -3.0, fitted.MaxX)
	})

	t.Run("no members", func(t *testing.T) {
		require.Equal(t, c, RecomputeExtent(c, nil))
	})
}

func TestFitToContents(t *testing.T) {
	c := models.NewClip(0, 100)
	for _, x := range []float64{40, 12, 31} {
		o := models.StageObject{}
		o.Transform.Position.X = x
		c.Objects = append(c.Objects, o)
	}

	fitted := FitToContents(c)
	require.Equal(t, 11.0, fitted.MinX)
	require.Equal(t, 41.0, fitted.MaxX)
	require.Len(t, fitted.Objects, 3)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(models.NewClip(0, 10)))

	for _, c := range []models.Clip{
		models.NewClip(10, 10),
		models.NewClip(10, 0),
		models.NewClip(math.NaN(), 10),
	} {
		err := Validate(c)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidWidth))
	}
}

func TestFixWidth(t *testing.T) {
	fixed := FixWidth(models.NewClip(7, 3))
	require.Equal(t, 7.0, fixed.MinX)
	require.Equal(t, 17.0, fixed.MaxX)
	require.NoError(t, Validate(fixed))
}
