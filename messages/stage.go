package messages

import (
	"github.com/aukilabs/stagekit/models"
	"github.com/segmentio/encoding/json"
	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an axis-aligned box.
type Box struct {
	Min models.Vec3 `json:"min"`
	Max models.Vec3 `json:"max"`
}

func NewBox(b *r3.Box) *Box {
	if b == nil {
		return nil
	}
	return &Box{Min: models.NewVec3(b.Min), Max: models.NewVec3(b.Max)}
}

func (b *Box) R3() *r3.Box {
	if b == nil {
		return nil
	}
	return &r3.Box{Min: b.Min.R3(), Max: b.Max.R3()}
}

// Vecs converts wire points to r3 vectors.
func Vecs(points []models.Vec3) []r3.Vec {
	if points == nil {
		return nil
	}

	vecs := make([]r3.Vec, len(points))
	for i, p := range points {
		vecs[i] = p.R3()
	}
	return vecs
}

type StageOpenRequest struct {
	// The global id of the session to join. Empty opens a new session.
	SessionID string `json:"session_id,omitempty"`

	// The clip width of a new stage.
	ClipWidth float64 `json:"clip_width,omitempty"`
}

type StageOpenResponse struct {
	SessionID   string       `json:"session_id"`
	SessionUUID string       `json:"session_uuid"`
	EditorID    uint32       `json:"editor_id"`
	Stage       StageSummary `json:"stage"`
}

type StageSummary struct {
	Version     int     `json:"version"`
	ClipWidth   float64 `json:"clip_width"`
	ClipCount   int     `json:"clip_count"`
	ObjectCount int     `json:"object_count"`
}

func NewStageSummary(s *models.Stage) StageSummary {
	return StageSummary{
		Version:     s.Version,
		ClipWidth:   s.ClipWidth,
		ClipCount:   len(s.Clips),
		ObjectCount: s.ObjectCount(),
	}
}

type StageLoadRequest struct {
	Document json.RawMessage `json:"document"`
}

type StageLoadResponse struct {
	Stage StageSummary `json:"stage"`
}

type StageExportResponse struct {
	Document json.RawMessage `json:"document"`
}

// Object is the wire form of a stage object.
type Object struct {
	ID         uint32             `json:"id,omitempty"`
	Name       string             `json:"name,omitempty"`
	GroupID    string             `json:"group_id,omitempty"`
	ClipIndex  int                `json:"clip_index"`
	Position   models.Vec3        `json:"position"`
	Rotation   *models.Quaternion `json:"rotation,omitempty"`
	Scale      *models.Vec3       `json:"scale,omitempty"`
	Path       string             `json:"path,omitempty"`
	BundlePath string             `json:"bundle_path,omitempty"`
	Property   string             `json:"property,omitempty"`
}

func NewObject(o models.StageObject) Object {
	rotation := o.Transform.Rotation
	scale := models.NewVec3(o.Transform.Scale)

	return Object{
		ID:         o.ID,
		Name:       o.Name,
		GroupID:    o.GroupID,
		ClipIndex:  o.ClipIndex,
		Position:   models.NewVec3(o.Transform.Position),
		Rotation:   &rotation,
		Scale:      &scale,
		Path:       o.Path,
		BundlePath: o.BundlePath,
		Property:   o.Property,
	}
}

// StageObject returns the model of the object. Missing rotation and scale
// are left zero so that the stage applies its defaults.
func (o Object) StageObject() models.StageObject {
	obj := models.StageObject{
		ID:         o.ID,
		Name:       o.Name,
		GroupID:    o.GroupID,
		ClipIndex:  o.ClipIndex,
		Path:       o.Path,
		BundlePath: o.BundlePath,
		Property:   o.Property,
	}
	obj.Transform.Position = o.Position.R3()
	if o.Rotation != nil {
		obj.Transform.Rotation = *o.Rotation
	}
	if o.Scale != nil {
		obj.Transform.Scale = o.Scale.R3()
	}
	return obj
}

type ObjectAddRequest struct {
	// The clip the object is added to. When omitted, the object goes to the
	// first clip that contains its position.
	ClipIndex *int   `json:"clip_index,omitempty"`
	Object    Object `json:"object"`
}

type ObjectAddResponse struct {
	ObjectID  uint32 `json:"object_id"`
	ClipIndex int    `json:"clip_index"`
}

// ObjectUpdateRequest changes the given fields of an object.
type ObjectUpdateRequest struct {
	ObjectID  uint32             `json:"object_id"`
	Name      *string            `json:"name,omitempty"`
	GroupID   *string            `json:"group_id,omitempty"`
	ClipIndex *int               `json:"clip_index,omitempty"`
	Position  *models.Vec3       `json:"position,omitempty"`
	Rotation  *models.Quaternion `json:"rotation,omitempty"`
	Scale     *models.Vec3       `json:"scale,omitempty"`
	Property  *string            `json:"property,omitempty"`
}

type ObjectUpdateResponse struct {
	Object Object `json:"object"`
}

// ObjectGeometryUpdate replaces the shape capabilities of an object.
type ObjectGeometryUpdate struct {
	ObjectID      uint32        `json:"object_id"`
	Vertices      []models.Vec3 `json:"vertices,omitempty"`
	TriangleCount int           `json:"triangle_count,omitempty"`
	Renderer      *Box          `json:"renderer,omitempty"`
	Collider      *Box          `json:"collider,omitempty"`
}

type ObjectDeleteRequest struct {
	ObjectID uint32 `json:"object_id"`
}

type ObjectListRequest struct {
	GroupID   string `json:"group_id,omitempty"`
	ClipIndex *int   `json:"clip_index,omitempty"`
}

type ObjectListResponse struct {
	Objects []Object `json:"objects"`
}
