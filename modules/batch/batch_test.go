package batch

import (
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/models"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type testStage struct {
	*models.Stage

	a, b, c, d uint32
}

func newTestStage(t *testing.T) testStage {
	s := testStage{Stage: models.NewStage(10)}
	s.AddClip()
	s.AddClip()

	add := func(clipIndex int, groupID string, p r3.Vec) uint32 {
		obj := models.StageObject{GroupID: groupID}
		obj.Transform.Position = p
		id, err := s.AddObject(clipIndex, obj)
		require.NoError(t, err)
		return id
	}

	s.a = add(0, "walls", r3.Vec{X: 0, Y: 0, Z: 0})
	s.b = add(0, "walls", r3.Vec{X: 1, Y: 2, Z: 1})
	s.c = add(0, "props", r3.Vec{X: 9, Y: 5, Z: 3})
	s.d = add(1, "props", r3.Vec{X: 12, Y: 1, Z: 0})
	return s
}

func (s testStage) position(t *testing.T, id uint32) r3.Vec {
	o, ok := s.Object(id)
	require.True(t, ok)
	return o.Position()
}

func TestParseAxis(t *testing.T) {
	for s, expected := range map[string]Axis{"x": AxisX, "Y": AxisY, "z": AxisZ} {
		axis, err := ParseAxis(s)
		require.NoError(t, err)
		require.Equal(t, expected, axis)
		require.Equal(t, strings.ToLower(s), axis.String())
	}

	_, err := ParseAxis("w")
	require.True(t, errors.IsType(err, ErrTypeUnknownAxis))
}

func TestFilter(t *testing.T) {
	s := newTestStage(t)

	tests := []struct {
		name      string
		groupID   string
		clipIndex int
		expected  []uint32
	}{
		{name: "everything", clipIndex: -1, expected: []uint32{s.a, s.b, s.c, s.d}},
		{name: "by group", groupID: "props", clipIndex: -1, expected: []uint32{s.c, s.d}},
		{name: "by clip", clipIndex: 0, expected: []uint32{s.a, s.b, s.c}},
		{name: "by group and clip", groupID: "props", clipIndex: 1, expected: []uint32{s.d}},
		{name: "no match", groupID: "lights", clipIndex: -1, expected: nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, Filter(s.Stage, test.groupID, test.clipIndex))
		})
	}
}

func TestAlign(t *testing.T) {
	s := newTestStage(t)

	n, err := Align(s.Stage, []uint32{s.c, s.a, s.b}, AxisX)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.Equal(t, r3.Vec{X: 9, Y: 0, Z: 0}, s.position(t, s.a))
	require.Equal(t, r3.Vec{X: 9, Y: 2, Z: 1}, s.position(t, s.b))
	require.Equal(t, r3.Vec{X: 9, Y: 5, Z: 3}, s.position(t, s.c))

	t.Run("needs two objects", func(t *testing.T) {
		_, err := Align(s.Stage, []uint32{s.a, s.a}, AxisY)
		require.True(t, errors.IsType(err, ErrTypeInvalidSelection))
		require.Equal(t, r3.Vec{X: 9, Y: 0, Z: 0}, s.position(t, s.a))
	})
}

func TestDistribute(t *testing.T) {
	s := newTestStage(t)

	n, err := Distribute(s.Stage, []uint32{s.d, s.a, s.c, s.b}, AxisX)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, 0.0, s.position(t, s.a).X)
	require.Equal(t, 4.0, s.position(t, s.b).X)
	require.Equal(t, 8.0, s.position(t, s.c).X)
	require.Equal(t, 12.0, s.position(t, s.d).X)
	require.Equal(t, 2.0, s.position(t, s.b).Y)

	t.Run("needs three objects", func(t *testing.T) {
		_, err := Distribute(s.Stage, []uint32{s.a, s.b}, AxisX)
		require.True(t, errors.IsType(err, ErrTypeInvalidSelection))
	})
}

func TestSetGroupID(t *testing.T) {
	s := newTestStage(t)

	n, err := SetGroupID(s.Stage, []uint32{s.a, s.d}, "floor")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []uint32{s.a, s.d}, Filter(s.Stage, "floor", -1))

	_, err = SetGroupID(s.Stage, []uint32{s.a}, "")
	require.True(t, errors.IsType(err, ErrTypeInvalidSelection))
}

func TestMoveToClip(t *testing.T) {
	s := newTestStage(t)

	n, err := MoveToClip(s.Stage, []uint32{s.a, s.d}, 1)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, s.Clips[0].Objects, 2)
	require.Equal(t, []uint32{s.d, s.a}, Filter(s.Stage, "", 1))

	_, err = MoveToClip(s.Stage, []uint32{s.a}, 5)
	require.True(t, errors.IsType(err, models.ErrTypeClipOutOfRange))
}

func TestSnapToGrid(t *testing.T) {
	s := newTestStage(t)

	n, err := SnapToGrid(s.Stage, []uint32{s.b, s.c}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, r3.Vec{X: 0, Y: 2, Z: 0}, s.position(t, s.b))
	require.Equal(t, r3.Vec{X: 8, Y: 4, Z: 4}, s.position(t, s.c))
}

func TestSnapToGround(t *testing.T) {
	s := models.NewStage(10)
	s.AddClip()

	add := func(p r3.Vec, collider *r3.Box) uint32 {
		obj := models.StageObject{}
		obj.Transform.Position = p
		obj.Geometry.Collider = collider
		id, err := s.AddObject(0, obj)
		require.NoError(t, err)
		return id
	}

	add(r3.Vec{X: 5, Y: -1}, &r3.Box{
		Min: r3.Vec{X: 0, Y: -2, Z: -5},
		Max: r3.Vec{X: 10, Y: -1, Z: 5},
	})
	crate := add(r3.Vec{X: 5, Y: 4}, nil)
	hover := add(r3.Vec{X: 5, Y: 150}, nil)

	n, err := SnapToGround(s, []uint32{crate, hover})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	o, _ := s.Object(crate)
	require.Equal(t, r3.Vec{X: 5, Y: -1}, o.Position())

	o, _ = s.Object(hover)
	require.Equal(t, r3.Vec{X: 5, Y: 150}, o.Position())
}

func TestGroup(t *testing.T) {
	s := newTestStage(t)

	g, err := Group(s.Stage, []uint32{s.a, s.b}, "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(g.GroupID, "Group_"))
	require.Equal(t, r3.Vec{X: 0.5, Y: 1, Z: 0.5}, g.Centroid)
	require.Equal(t, 2, g.Count)
	require.Equal(t, []uint32{s.a, s.b}, Filter(s.Stage, g.GroupID, -1))

	g, err = Group(s.Stage, []uint32{s.c}, "crates")
	require.NoError(t, err)
	require.Equal(t, "crates", g.GroupID)
	require.Equal(t, r3.Vec{X: 9, Y: 5, Z: 3}, g.Centroid)
}

func TestNewGroupID(t *testing.T) {
	require.Equal(t, "Group_621355968000000000", NewGroupID(time.Unix(0, 0)))
	require.Equal(t, "Group_621355968010000000", NewGroupID(time.Unix(1, 0)))
}

func TestDelete(t *testing.T) {
	s := newTestStage(t)

	_, err := Delete(s.Stage, []uint32{s.a, 999})
	require.True(t, errors.IsType(err, models.ErrTypeObjectNotFound))
	require.Equal(t, 4, s.ObjectCount())

	n, err := Delete(s.Stage, []uint32{s.a, s.d})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []uint32{s.b, s.c}, Filter(s.Stage, "", -1))
}

func TestUpdateHelpersReportMissingObjects(t *testing.T) {
	s := newTestStage(t)

	err := setPosition(s.Stage, 999, r3.Vec{X: 1})
	require.True(t, errors.IsType(err, models.ErrTypeObjectNotFound))

	err = setGroupID(s.Stage, 999, "lights")
	require.True(t, errors.IsType(err, models.ErrTypeObjectNotFound))

	require.NoError(t, setPosition(s.Stage, s.a, r3.Vec{X: 1}))
	require.Equal(t, r3.Vec{X: 1}, s.position(t, s.a))

	require.NoError(t, setGroupID(s.Stage, s.a, "lights"))
	require.Equal(t, []uint32{s.a}, Filter(s.Stage, "lights", -1))
}
