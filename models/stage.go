package models

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// DefaultGroupID is the group assigned to objects created without one.
	DefaultGroupID = "DefaultGroup"

	// DefaultClipWidth is the X width of clips appended with AddClip.
	DefaultClipWidth = 25.0

	// Default vertical and depth extents of a clip.
	DefaultClipMinY = -50.0
	DefaultClipMaxY = 50.0
	DefaultClipMinZ = -50.0
	DefaultClipMaxZ = 50.0

	// DefaultObjectName is the name given to objects created without one.
	DefaultObjectName = "New Object"

	ErrTypeClipOutOfRange = "clip-out-of-range"
	ErrTypeObjectNotFound = "object-not-found"
)

// Geometry holds the optional shape capabilities of an object. Editors push
// them so that snapping can use mesh vertices and bounds. None of it is
// persisted in stage documents.
type Geometry struct {
	// Mesh vertices in the object local space.
	Vertices []r3.Vec

	TriangleCount int

	// World space bounds of the object renderer, if any.
	Renderer *r3.Box

	// World space bounds of the object collider, if any.
	Collider *r3.Box
}

func (g Geometry) clone() Geometry {
	c := g
	if g.Vertices != nil {
		c.Vertices = append([]r3.Vec(nil), g.Vertices...)
	}
	if g.Renderer != nil {
		b := *g.Renderer
		c.Renderer = &b
	}
	if g.Collider != nil {
		b := *g.Collider
		c.Collider = &b
	}
	return c
}

// StageObject is an object placed in a clip.
type StageObject struct {
	ID      uint32
	Name    string
	GroupID string

	// The index of the clip the object claims to belong to. It is set when
	// the object is added or moved and may go stale after clip edits.
	ClipIndex int

	Transform  Transform
	Path       string
	BundlePath string

	// Opaque encoded property string, see stagefile.DecodeProperty.
	Property string

	Geometry Geometry
}

func (o StageObject) Position() r3.Vec {
	return o.Transform.Position
}

// Clip is an axis-aligned region of the stage. Only the X interval is meant to
// be edited; Y and Z default to [-50, 50].
type Clip struct {
	MinX float64
	MaxX float64
	MinY float64
	MaxY float64
	MinZ float64
	MaxZ float64

	Objects []StageObject
}

// NewClip returns a clip spanning [minX, maxX] with default Y and Z extents.
func NewClip(minX, maxX float64) Clip {
	return Clip{
		MinX: minX,
		MaxX: maxX,
		MinY: DefaultClipMinY,
		MaxY: DefaultClipMaxY,
		MinZ: DefaultClipMinZ,
		MaxZ: DefaultClipMaxZ,
	}
}

func (c Clip) Width() float64 {
	return c.MaxX - c.MinX
}

// Stage is an ordered list of clips, each owning an ordered list of objects.
type Stage struct {
	Version   int
	ClipWidth float64
	Clips     []Clip

	lastObjectID uint32
	revision     uint64
}

// NewStage returns an empty stage using the given clip width. A non positive
// width falls back to DefaultClipWidth.
func NewStage(clipWidth float64) *Stage {
	if clipWidth <= 0 {
		clipWidth = DefaultClipWidth
	}
	return &Stage{
		ClipWidth: clipWidth,
	}
}

// AddClip appends a clip right after the previous ones and returns its index.
func (s *Stage) AddClip() int {
	width := s.ClipWidth
	if width <= 0 {
		width = DefaultClipWidth
	}

	minX := float64(len(s.Clips)) * width
	s.Clips = append(s.Clips, NewClip(minX, minX+width))
	return len(s.Clips) - 1
}

// RemoveClip removes the clip at index i with its objects. Objects of the
// following clips have their clip index shifted down.
func (s *Stage) RemoveClip(i int) error {
	if err := s.checkClipIndex(i); err != nil {
		return err
	}

	s.Clips = append(s.Clips[:i], s.Clips[i+1:]...)
	for ci := range s.Clips {
		for oi := range s.Clips[ci].Objects {
			if idx := s.Clips[ci].Objects[oi].ClipIndex; idx > i {
				s.Clips[ci].Objects[oi].ClipIndex = idx - 1
			}
		}
	}
	return nil
}

// AddObject appends obj to the clip at index i and returns its assigned id.
// Missing name, group, scale and rotation take their defaults.
func (s *Stage) AddObject(i int, obj StageObject) (uint32, error) {
	if err := s.checkClipIndex(i); err != nil {
		return 0, err
	}

	if obj.Name == "" {
		obj.Name = DefaultObjectName
	}
	if obj.GroupID == "" {
		obj.GroupID = DefaultGroupID
	}
	if obj.Transform.Scale == (r3.Vec{}) {
		obj.Transform.Scale = r3.Vec{X: 1, Y: 1, Z: 1}
	}
	if obj.Transform.Rotation.IsZero() {
		obj.Transform.Rotation = IdentityRotation
	}

	obj.ID = s.newObjectID()
	obj.ClipIndex = i
	s.Clips[i].Objects = append(s.Clips[i].Objects, obj)
	return obj.ID, nil
}

// PlaceObject is AddObject that keeps the object fields as given, including
// a clip index that may not match i. It is used when rebuilding a stage from
// persisted data.
func (s *Stage) PlaceObject(i int, obj StageObject) (uint32, error) {
	if err := s.checkClipIndex(i); err != nil {
		return 0, err
	}

	obj.ID = s.newObjectID()
	s.Clips[i].Objects = append(s.Clips[i].Objects, obj)
	return obj.ID, nil
}

// RemoveObject removes the object with the given id.
func (s *Stage) RemoveObject(id uint32) error {
	ci, oi, ok := s.locate(id)
	if !ok {
		return objectNotFound(id)
	}

	objs := s.Clips[ci].Objects
	s.Clips[ci].Objects = append(objs[:oi], objs[oi+1:]...)
	return nil
}

// Object returns a copy of the object with the given id.
func (s *Stage) Object(id uint32) (StageObject, bool) {
	ci, oi, ok := s.locate(id)
	if !ok {
		return StageObject{}, false
	}
	return s.Clips[ci].Objects[oi], true
}

// UpdateObject calls update with the object that has the given id.
func (s *Stage) UpdateObject(id uint32, update func(*StageObject)) error {
	ci, oi, ok := s.locate(id)
	if !ok {
		return objectNotFound(id)
	}

	update(&s.Clips[ci].Objects[oi])
	return nil
}

// MoveObject moves the object into the clip at index i and sets its clip
// index accordingly.
func (s *Stage) MoveObject(id uint32, i int) error {
	if err := s.checkClipIndex(i); err != nil {
		return err
	}

	ci, oi, ok := s.locate(id)
	if !ok {
		return objectNotFound(id)
	}

	obj := s.Clips[ci].Objects[oi]
	obj.ClipIndex = i
	if ci == i {
		s.Clips[ci].Objects[oi] = obj
		return nil
	}

	objs := s.Clips[ci].Objects
	s.Clips[ci].Objects = append(objs[:oi], objs[oi+1:]...)
	s.Clips[i].Objects = append(s.Clips[i].Objects, obj)
	return nil
}

// Objects returns every object in clip order.
func (s *Stage) Objects() []StageObject {
	var objs []StageObject
	for _, c := range s.Clips {
		objs = append(objs, c.Objects...)
	}
	return objs
}

// ObjectsInGroup returns the objects whose group id is groupID.
func (s *Stage) ObjectsInGroup(groupID string) []StageObject {
	var objs []StageObject
	for _, c := range s.Clips {
		for _, o := range c.Objects {
			if o.GroupID == groupID {
				objs = append(objs, o)
			}
		}
	}
	return objs
}

// ObjectsInClip returns the objects whose clip index is i.
func (s *Stage) ObjectsInClip(i int) []StageObject {
	var objs []StageObject
	for _, c := range s.Clips {
		for _, o := range c.Objects {
			if o.ClipIndex == i {
				objs = append(objs, o)
			}
		}
	}
	return objs
}

// Revision returns a number that changes every time the stage is modified
// through a session.
func (s *Stage) Revision() uint64 {
	return s.revision
}

// ObjectCount returns the number of objects of the stage.
func (s *Stage) ObjectCount() int {
	n := 0
	for _, c := range s.Clips {
		n += len(c.Objects)
	}
	return n
}

// Clone returns a deep copy of the stage.
func (s *Stage) Clone() *Stage {
	c := &Stage{
		Version:      s.Version,
		ClipWidth:    s.ClipWidth,
		lastObjectID: s.lastObjectID,
		revision:     s.revision,
	}
	if s.Clips == nil {
		return c
	}

	c.Clips = make([]Clip, len(s.Clips))
	for i, clip := range s.Clips {
		c.Clips[i] = clip
		if clip.Objects == nil {
			continue
		}

		c.Clips[i].Objects = make([]StageObject, len(clip.Objects))
		for j, o := range clip.Objects {
			o.Geometry = o.Geometry.clone()
			c.Clips[i].Objects[j] = o
		}
	}
	return c
}

func (s *Stage) newObjectID() uint32 {
	s.lastObjectID++
	return s.lastObjectID
}

func (s *Stage) locate(id uint32) (clipIdx, objIdx int, ok bool) {
	for ci, c := range s.Clips {
		for oi, o := range c.Objects {
			if o.ID == id {
				return ci, oi, true
			}
		}
	}
	return -1, -1, false
}

func (s *Stage) checkClipIndex(i int) error {
	if i < 0 || i >= len(s.Clips) {
		return errors.New("clip index out of range").
			WithType(ErrTypeClipOutOfRange).
			WithTag("clip_index", i).
			WithTag("clip_count", len(s.Clips))
	}
	return nil
}

func objectNotFound(id uint32) error {
	return errors.New("object not found").
		WithType(ErrTypeObjectNotFound).
		WithTag("object_id", id)
}
