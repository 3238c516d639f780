// Package batch applies edits to a selection of stage objects at once.
//
// Every operation checks the whole selection before editing the stage so that
// a rejected operation leaves the stage untouched.
package batch

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/models"
	"github.com/aukilabs/stagekit/modules/snap"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	ErrTypeInvalidSelection = "invalid-selection"
	ErrTypeUnknownAxis      = "unknown-axis"

	// The number of 100ns ticks between 0001-01-01 and the Unix epoch.
	unixEpochTicks = 621355968000000000
)

// Axis is a coordinate axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ParseAxis parses "x", "y" or "z", ignoring case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(s) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	default:
		return 0, errors.New("unknown axis").
			WithType(ErrTypeUnknownAxis).
			WithTag("axis", s)
	}
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "axis(" + strconv.Itoa(int(a)) + ")"
	}
}

func (a Axis) get(v r3.Vec) float64 {
	switch a {
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	default:
		return v.X
	}
}

func (a Axis) set(v r3.Vec, c float64) r3.Vec {
	switch a {
	case AxisY:
		v.Y = c
	case AxisZ:
		v.Z = c
	default:
		v.X = c
	}
	return v
}

// Filter returns the ids of the objects in the given group and clip, in clip
// order. An empty group matches every group and a negative clip index matches
// every clip. Clip matching uses the clip index of objects.
func Filter(s *models.Stage, groupID string, clipIndex int) []uint32 {
	var ids []uint32
	for _, o := range s.Objects() {
		if groupID != "" && o.GroupID != groupID {
			continue
		}
		if clipIndex >= 0 && o.ClipIndex != clipIndex {
			continue
		}
		ids = append(ids, o.ID)
	}
	return ids
}

// Align moves the selected objects to the coordinate of the first selected
// object on the given axis. It needs at least 2 objects.
func Align(s *models.Stage, ids []uint32, axis Axis) (int, error) {
	objs, err := selection(s, ids, 2)
	if err != nil {
		return 0, err
	}

	ref := axis.get(objs[0].Position())
	for _, o := range objs {
		if err := setPosition(s, o.ID, axis.set(o.Position(), ref)); err != nil {
			return 0, err
		}
	}
	return len(objs), nil
}

// Distribute spreads the selected objects evenly on the given axis between
// the two outermost ones, which stay in place. It needs at least 3 objects.
func Distribute(s *models.Stage, ids []uint32, axis Axis) (int, error) {
	objs, err := selection(s, ids, 3)
	if err != nil {
		return 0, err
	}

	sort.SliceStable(objs, func(i, j int) bool {
		return axis.get(objs[i].Position()) < axis.get(objs[j].Position())
	})

	start := axis.get(objs[0].Position())
	end := axis.get(objs[len(objs)-1].Position())
	step := (end - start) / float64(len(objs)-1)

	for i := 1; i < len(objs)-1; i++ {
		o := objs[i]
		if err := setPosition(s, o.ID, axis.set(o.Position(), start+step*float64(i))); err != nil {
			return 0, err
		}
	}
	return len(objs) - 2, nil
}

// SetGroupID sets the group of the selected objects.
func SetGroupID(s *models.Stage, ids []uint32, groupID string) (int, error) {
	if groupID == "" {
		return 0, errors.New("empty group id").
			WithType(ErrTypeInvalidSelection)
	}

	objs, err := selection(s, ids, 1)
	if err != nil {
		return 0, err
	}

	for _, o := range objs {
		if err := setGroupID(s, o.ID, groupID); err != nil {
			return 0, err
		}
	}
	return len(objs), nil
}

// MoveToClip moves the selected objects into the clip at index i.
func MoveToClip(s *models.Stage, ids []uint32, i int) (int, error) {
	if i < 0 || i >= len(s.Clips) {
		return 0, errors.New("clip index out of range").
			WithType(models.ErrTypeClipOutOfRange).
			WithTag("clip_index", i)
	}

	objs, err := selection(s, ids, 1)
	if err != nil {
		return 0, err
	}

	for _, o := range objs {
		if err := s.MoveObject(o.ID, i); err != nil {
			return 0, err
		}
	}
	return len(objs), nil
}

// SnapToGrid snaps the position of the selected objects to a grid.
func SnapToGrid(s *models.Stage, ids []uint32, cellSize float64) (int, error) {
	objs, err := selection(s, ids, 1)
	if err != nil {
		return 0, err
	}

	for _, o := range objs {
		if err := setPosition(s, o.ID, snap.SnapToGrid(o.Position(), cellSize)); err != nil {
			return 0, err
		}
	}
	return len(objs), nil
}

// SnapToGround drops the selected objects onto the highest object below
// them. Objects with nothing below stay in place. It returns the number of
// objects that moved.
func SnapToGround(s *models.Stage, ids []uint32) (int, error) {
	objs, err := selection(s, ids, 1)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, o := range objs {
		p := snap.SnapToGround(o.Position(), snap.CandidatesFromStage(s, o.ID))
		if p != o.Position() {
			if err := setPosition(s, o.ID, p); err != nil {
				return 0, err
			}
			moved++
		}
	}
	return moved, nil
}

// Grouping is the result of Group.
type Grouping struct {
	GroupID string

	// The mean position of the grouped objects.
	Centroid r3.Vec

	Count int
}

// Group assigns the given group to the selected objects and returns the
// centroid of their positions. An empty group id is replaced by one generated
// from the current time.
func Group(s *models.Stage, ids []uint32, groupID string) (Grouping, error) {
	objs, err := selection(s, ids, 1)
	if err != nil {
		return Grouping{}, err
	}

	if groupID == "" {
		groupID = NewGroupID(time.Now())
	}

	var centroid r3.Vec
	for _, o := range objs {
		centroid = r3.Add(centroid, o.Position())
		if err := setGroupID(s, o.ID, groupID); err != nil {
			return Grouping{}, err
		}
	}

	return Grouping{
		GroupID:  groupID,
		Centroid: r3.Scale(1/float64(len(objs)), centroid),
		Count:    len(objs),
	}, nil
}

// NewGroupID returns a group id made of the given time as 100ns ticks since
// 0001-01-01.
func NewGroupID(t time.Time) string {
	ticks := t.UnixNano()/100 + unixEpochTicks
	return "Group_" + strconv.FormatInt(ticks, 10)
}

// Delete removes the selected objects.
func Delete(s *models.Stage, ids []uint32) (int, error) {
	objs, err := selection(s, ids, 1)
	if err != nil {
		return 0, err
	}

	for _, o := range objs {
		if err := s.RemoveObject(o.ID); err != nil {
			return 0, err
		}
	}
	return len(objs), nil
}

// selection returns the selected objects in selection order, without
// duplicates.
func selection(s *models.Stage, ids []uint32, min int) ([]models.StageObject, error) {
	objs := make([]models.StageObject, 0, len(ids))
	seen := make(map[uint32]struct{}, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		o, ok := s.Object(id)
		if !ok {
			return nil, errors.New("object not found").
				WithType(models.ErrTypeObjectNotFound).
				WithTag("object_id", id)
		}
		objs = append(objs, o)
	}

	if len(objs) < min {
		return nil, errors.New("not enough objects selected").
			WithType(ErrTypeInvalidSelection).
			WithTag("selected", len(objs)).
			WithTag("required", min)
	}
	return objs, nil
}

func setPosition(s *models.Stage, id uint32, p r3.Vec) error {
	return s.UpdateObject(id, func(o *models.StageObject) {
		o.Transform.Position = p
	})
}

func setGroupID(s *models.Stage, id uint32, groupID string) error {
	return s.UpdateObject(id, func(o *models.StageObject) {
		o.GroupID = groupID
	})
}
