package validate

import (
	"testing"

	"github.com/aukilabs/stagekit/models"
	"github.com/aukilabs/stagekit/stagefile"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type testStage struct {
	*models.Stage

	noGroup  uint32
	outside  uint32
	badIndex uint32
	event    uint32
	heavy    uint32
}

func newTestStage(t *testing.T) testStage {
	s := testStage{Stage: models.NewStage(10)}
	for i := 0; i < 4; i++ {
		s.AddClip()
	}
	s.Clips[3].MaxX = 25

	place := func(clipIndex int, obj models.StageObject, x float64) uint32 {
		obj.Transform.Position = r3.Vec{X: x}
		id, err := s.PlaceObject(clipIndex, obj)
		require.NoError(t, err)
		return id
	}

	place(0, models.StageObject{Name: "Fine", GroupID: "g", ClipIndex: 0}, 5)
	s.noGroup = place(0, models.StageObject{Name: "NoGroup", ClipIndex: 0}, 3)
	s.outside = place(0, models.StageObject{Name: "Outside", GroupID: "g", ClipIndex: 0}, 15)
	s.badIndex = place(1, models.StageObject{Name: "BadIndex", GroupID: "g", ClipIndex: 7}, 12)
	s.event = place(1, models.StageObject{
		Name:      "MapObjEvent_Door",
		GroupID:   "g",
		ClipIndex: 1,
		Property:  stagefile.MapEventPrefix + "nope",
	}, 12)
	s.heavy = place(1, models.StageObject{
		Name:       "Heavy",
		GroupID:    "g",
		ClipIndex:  1,
		BundlePath: "assets/missing.bundle",
		Geometry:   models.Geometry{TriangleCount: 5000},
	}, 14)
	return s
}

func testOptions() Options {
	return Options{
		AssetExists: func(path string) bool {
			return path != "assets/missing.bundle"
		},
	}
}

func findingKinds(findings []Finding) []Kind {
	var kinds []Kind
	for _, f := range findings {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

func TestValidate(t *testing.T) {
	s := newTestStage(t)
	findings := Validate(s.Stage, testOptions())

	require.Equal(t, []Kind{
		KindEmptyClip,
		KindInvalidClipWidth,
		KindEmptyClip,
		KindMissingGroupID,
		KindObjectOutsideClip,
		KindInvalidClipIndex,
		KindInvalidMapEvent,
		KindMissingAsset,
		KindHighPolygonCount,
	}, findingKinds(findings))

	require.Equal(t, map[Severity]int{
		SeverityError:   4,
		SeverityWarning: 2,
		SeverityInfo:    3,
	}, Count(findings))
	require.True(t, HasErrors(findings))

	t.Run("invalid width targets the clip", func(t *testing.T) {
		f := findings[1]
		require.Equal(t, 3, *f.ClipIndex)
		require.Nil(t, f.ObjectID)
		require.Equal(t, &Fix{Action: FixWidenClip, ClipIndex: 3}, f.Fix)
	})

	t.Run("outside object targets its owner", func(t *testing.T) {
		f := findings[4]
		require.Equal(t, s.outside, *f.ObjectID)
		require.Equal(t, 0, *f.ClipIndex)
		require.Equal(t, 1, *f.OtherClipIndex)
		require.Equal(t, &Fix{Action: FixReparentObject, ClipIndex: 1, ObjectID: s.outside}, f.Fix)
	})

	t.Run("unfixable findings", func(t *testing.T) {
		for _, f := range findings[6:] {
			require.Nil(t, f.Fix)
		}
	})
}

func TestValidateStageWithoutClips(t *testing.T) {
	findings := Validate(models.NewStage(0), Options{})
	require.Equal(t, []Kind{KindNoClips}, findingKinds(findings))
	require.False(t, HasErrors(findings))
}

func TestValidateThresholds(t *testing.T) {
	s := models.NewStage(10)
	s.AddClip()

	for i := 0; i < 3; i++ {
		obj := models.StageObject{}
		obj.Transform.Position.X = float64(i + 1)
		obj.Geometry.TriangleCount = 10
		_, err := s.AddObject(0, obj)
		require.NoError(t, err)
	}

	require.Empty(t, Validate(s, Options{}))

	findings := Validate(s, Options{MaxObjectsPerClip: 2, MaxTriangles: 9})
	require.Equal(t, []Kind{
		KindHighObjectCount,
		KindHighPolygonCount,
		KindHighPolygonCount,
		KindHighPolygonCount,
	}, findingKinds(findings))
}

func TestValidateMapEvents(t *testing.T) {
	s := models.NewStage(10)
	s.AddClip()

	property, err := stagefile.FormatMapEvent(stagefile.MapEvent{MapEvent: 2, Loop: true})
	require.NoError(t, err)

	for _, p := range []string{property, ""} {
		obj := models.StageObject{Name: "MapObjEvent", Property: p}
		obj.Transform.Position.X = 1
		_, err := s.AddObject(0, obj)
		require.NoError(t, err)
	}

	findings := Validate(s, Options{})
	require.Equal(t, []Kind{KindInvalidMapEvent}, findingKinds(findings))
	require.Equal(t, uint32(2), *findings[0].ObjectID)
}

func TestOverlappingClipsFinding(t *testing.T) {
	s := models.NewStage(10)
	s.AddClip()
	s.AddClip()
	s.Clips[1].MinX = 5

	findings := Validate(s, Options{})
	require.Equal(t, []Kind{KindEmptyClip, KindEmptyClip, KindOverlappingClips}, findingKinds(findings))
	require.Equal(t, 0, *findings[2].ClipIndex)
	require.Equal(t, 1, *findings[2].OtherClipIndex)
}

func TestApply(t *testing.T) {
	s := newTestStage(t)
	findings := Validate(s.Stage, testOptions())

	require.Equal(t, 4, Apply(s.Stage, findings))

	require.Equal(t, 40.0, s.Clips[3].MaxX)

	obj, ok := s.Object(s.noGroup)
	require.True(t, ok)
	require.Equal(t, models.DefaultGroupID, obj.GroupID)

	obj, ok = s.Object(s.outside)
	require.True(t, ok)
	require.Equal(t, 1, obj.ClipIndex)

	obj, ok = s.Object(s.badIndex)
	require.True(t, ok)
	require.Equal(t, 0, obj.ClipIndex)

	t.Run("stale fixes are skipped", func(t *testing.T) {
		require.Zero(t, Apply(s.Stage, findings))
	})

	t.Run("missing targets are skipped", func(t *testing.T) {
		require.NoError(t, s.RemoveObject(s.noGroup))
		require.Zero(t, Apply(s.Stage, []Finding{{
			Kind: KindMissingGroupID,
			Fix:  &Fix{Action: FixSetGroupID, ObjectID: s.noGroup},
		}}))
	})
}

func TestFixStage(t *testing.T) {
	s := newTestStage(t)

	applied, remaining := FixStage(s.Stage, testOptions())
	require.Equal(t, 4, applied)
	require.Equal(t, []Kind{
		KindEmptyClip,
		KindEmptyClip,
		KindObjectOutsideClip,
		KindInvalidMapEvent,
		KindMissingAsset,
		KindHighPolygonCount,
	}, findingKinds(remaining))
	require.Equal(t, s.badIndex, *remaining[2].ObjectID)

	applied, remaining = FixStage(s.Stage, testOptions(), KindObjectOutsideClip)
	require.Equal(t, 1, applied)
	require.NotContains(t, findingKinds(remaining), KindObjectOutsideClip)

	obj, ok := s.Object(s.badIndex)
	require.True(t, ok)
	require.Equal(t, 1, obj.ClipIndex)
}

func TestFixStageOnlyGivenKinds(t *testing.T) {
	s := newTestStage(t)

	applied, remaining := FixStage(s.Stage, testOptions(), KindMissingGroupID)
	require.Equal(t, 1, applied)

	kinds := findingKinds(remaining)
	require.NotContains(t, kinds, KindMissingGroupID)
	require.Contains(t, kinds, KindInvalidClipWidth)
	require.Contains(t, kinds, KindInvalidClipIndex)
}
