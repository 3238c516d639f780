package stagefile

import (
	"bytes"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/models"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeMalformed = "malformed-stage-document"
	ErrTypeIO        = "stage-document-io"
)

// Document is the persisted form of a stage.
type Document struct {
	Version   int        `json:"version"`
	ClipWidth float64    `json:"clipWidth"`
	Clips     []ClipData `json:"clips"`
}

// ClipData is the persisted form of a clip. Bounds are decimal strings.
type ClipData struct {
	MinX    string            `json:"minX"`
	MaxX    string            `json:"maxX"`
	Objects []StageObjectData `json:"objects"`
}

// StageObjectData is the persisted form of a stage object.
type StageObjectData struct {
	GroupID    string             `json:"groupId"`
	Name       string             `json:"name"`
	Position   models.Vec3        `json:"position"`
	Scale      *models.Vec3       `json:"scale,omitempty"`
	Rotation   *models.Quaternion `json:"rotation,omitempty"`
	Path       string             `json:"path"`
	BundlePath string             `json:"bundlePath"`
	Property   string             `json:"property"`
}

// Options configures decoding.
type Options struct {
	// Rejects documents written with the legacy field names.
	DisableLegacy bool
}

// Decode parses a stage document. Malformed documents return an error and no
// stage.
func Decode(b []byte, opts Options) (*models.Stage, error) {
	var shape struct {
		Clips  json.RawMessage `json:"clips"`
		Legacy json.RawMessage `json:"Datas"`
	}
	if err := json.Unmarshal(b, &shape); err != nil {
		return nil, errors.New("parsing stage document failed").WithType(ErrTypeMalformed).Wrap(err)
	}

	var doc Document
	if shape.Clips == nil && shape.Legacy != nil {
		if opts.DisableLegacy {
			return nil, errors.New("legacy stage documents are disabled").WithType(ErrTypeMalformed)
		}

		var legacy legacyDocument
		if err := json.Unmarshal(b, &legacy); err != nil {
			return nil, errors.New("parsing legacy stage document failed").WithType(ErrTypeMalformed).Wrap(err)
		}
		doc = legacy.document()
	} else if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errors.New("parsing stage document failed").WithType(ErrTypeMalformed).Wrap(err)
	}

	return doc.Stage()
}

// Stage builds a stage from the document. Objects keep the index of the clip
// that holds them.
func (d Document) Stage() (*models.Stage, error) {
	stage := models.NewStage(d.ClipWidth)
	stage.Version = d.Version

	for i, c := range d.Clips {
		minX, err := parseBound(c.MinX)
		if err != nil {
			return nil, errors.New("invalid clip min x").
				WithType(ErrTypeMalformed).
				WithTag("clip_index", i).
				WithTag("value", c.MinX).
				Wrap(err)
		}

		maxX, err := parseBound(c.MaxX)
		if err != nil {
			return nil, errors.New("invalid clip max x").
				WithType(ErrTypeMalformed).
				WithTag("clip_index", i).
				WithTag("value", c.MaxX).
				Wrap(err)
		}

		stage.Clips = append(stage.Clips, models.NewClip(minX, maxX))

		for _, o := range c.Objects {
			if _, err := stage.PlaceObject(i, o.object(i)); err != nil {
				return nil, errors.New("placing object failed").
					WithType(ErrTypeMalformed).
					WithTag("clip_index", i).
					WithTag("name", o.Name).
					Wrap(err)
			}
		}
	}

	return stage, nil
}

func (o StageObjectData) object(clipIndex int) models.StageObject {
	transform := models.DefaultTransform()
	transform.Position = o.Position.R3()
	if o.Scale != nil {
		transform.Scale = o.Scale.R3()
	}
	if o.Rotation != nil {
		transform.Rotation = *o.Rotation
	}

	return models.StageObject{
		Name:       o.Name,
		GroupID:    o.GroupID,
		ClipIndex:  clipIndex,
		Transform:  transform,
		Path:       o.Path,
		BundlePath: o.BundlePath,
		Property:   o.Property,
	}
}

// NewDocument returns the persisted form of a stage. Objects are written
// under the clip that holds them.
func NewDocument(s *models.Stage) Document {
	doc := Document{
		Version:   s.Version,
		ClipWidth: s.ClipWidth,
		Clips:     make([]ClipData, len(s.Clips)),
	}

	for i, c := range s.Clips {
		cd := ClipData{
			MinX:    FormatBound(c.MinX),
			MaxX:    FormatBound(c.MaxX),
			Objects: make([]StageObjectData, len(c.Objects)),
		}

		for j, o := range c.Objects {
			scale := models.NewVec3(o.Transform.Scale)
			rotation := o.Transform.Rotation

			cd.Objects[j] = StageObjectData{
				GroupID:    o.GroupID,
				Name:       o.Name,
				Position:   models.NewVec3(o.Transform.Position),
				Scale:      &scale,
				Rotation:   &rotation,
				Path:       o.Path,
				BundlePath: o.BundlePath,
				Property:   o.Property,
			}
		}

		doc.Clips[i] = cd
	}

	return doc
}

// Encode returns the indented JSON document of a stage.
func Encode(s *models.Stage) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(s)); err != nil {
		return nil, errors.New("encoding stage document failed").Wrap(err)
	}
	return buf.Bytes(), nil
}

// Load reads and decodes the stage document at path.
func Load(path string, opts Options) (*models.Stage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading stage document failed").
			WithType(ErrTypeIO).
			WithTag("path", path).
			Wrap(err)
	}

	stage, err := Decode(b, opts)
	if err != nil {
		return nil, errors.New("loading stage document failed").
			WithType(ErrTypeMalformed).
			WithTag("path", path).
			Wrap(err)
	}
	return stage, nil
}

// Save encodes the stage and writes it at path.
func Save(path string, s *models.Stage) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.New("writing stage document failed").
			WithType(ErrTypeIO).
			WithTag("path", path).
			Wrap(err)
	}
	return nil
}

// FormatBound formats a clip bound with the shortest decimal that parses back
// to the same value.
func FormatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseBound parses a clip bound. Bounds must be finite.
func parseBound(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("bound is not a finite number")
	}
	return v, nil
}

// legacyDocument is the layout written by the first version of the editor.
type legacyDocument struct {
	Version   int              `json:"nVer"`
	ClipWidth float64          `json:"fStageClipWidth"`
	Clips     []legacyClipData `json:"Datas"`
}

type legacyClipData struct {
	MinX    string        `json:"fClipMinx"`
	MaxX    string        `json:"fClipMaxx"`
	Objects []EventObject `json:"Datas"`
}

// EventObject is an object record in the legacy field layout. Map event
// properties and legacy documents use it.
type EventObject struct {
	GroupID    *string            `json:"sGroupID,omitempty"`
	Name       string             `json:"name"`
	Position   models.Vec3        `json:"position"`
	Scale      *models.Vec3       `json:"scale,omitempty"`
	Rotation   *models.Quaternion `json:"rotate,omitempty"`
	Path       string             `json:"path"`
	BundlePath string             `json:"bundlepath"`
	Property   string             `json:"property"`
}

func (o EventObject) data() StageObjectData {
	groupID := models.DefaultGroupID
	if o.GroupID != nil {
		groupID = *o.GroupID
	}

	return StageObjectData{
		GroupID:    groupID,
		Name:       o.Name,
		Position:   o.Position,
		Scale:      o.Scale,
		Rotation:   o.Rotation,
		Path:       o.Path,
		BundlePath: o.BundlePath,
		Property:   o.Property,
	}
}

func (l legacyDocument) document() Document {
	doc := Document{
		Version:   l.Version,
		ClipWidth: l.ClipWidth,
		Clips:     make([]ClipData, len(l.Clips)),
	}

	for i, c := range l.Clips {
		cd := ClipData{
			MinX:    c.MinX,
			MaxX:    c.MaxX,
			Objects: make([]StageObjectData, len(c.Objects)),
		}
		for j, o := range c.Objects {
			cd.Objects[j] = o.data()
		}
		doc.Clips[i] = cd
	}
	return doc
}
