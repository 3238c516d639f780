package stagefile

import (
	"bytes"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/models"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInvalidProperty = "invalid-property"

	// MapEventPrefix is the prefix written before map event blobs.
	MapEventPrefix = "10,MAPEVENT_OBJ2"

	// MapEventObjectName is the name fragment of objects carrying a map event
	// property.
	MapEventObjectName = "MapObjEvent"
)

var (
	propertyDecoder = strings.NewReplacer(";2", `\n`)
	colonDecoder    = strings.NewReplacer(`"2`, `":`)
	propertyEncoder = strings.NewReplacer(`\n`, ";2")
	colonEncoder    = strings.NewReplacer(`":`, `"2`)
)

// DecodeProperty splits a property string into its prefix and its JSON blob
// with the escape sequences reverted.
func DecodeProperty(property string) (prefix string, blob []byte, err error) {
	start := strings.Index(property, "{")
	if start == -1 {
		return "", nil, errors.New("property has no json object").
			WithType(ErrTypeInvalidProperty).
			WithTag("property", property)
	}

	body := propertyDecoder.Replace(property[start:])
	body = colonDecoder.Replace(body)
	return property[:start], []byte(body), nil
}

// EncodeProperty marshals v as compact JSON, applies the escape sequences and
// prepends prefix.
func EncodeProperty(prefix string, v any) (string, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.New("encoding property failed").
			WithType(ErrTypeInvalidProperty).
			Wrap(err)
	}

	body := strings.TrimSuffix(buf.String(), "\n")
	body = propertyEncoder.Replace(body)
	body = colonEncoder.Replace(body)
	return prefix + body, nil
}

// MapEvent describes the movement and trigger behavior of a map event object.
type MapEvent struct {
	MapEvent    int             `json:"mapEvent"`
	MoveToPos   *models.Vec3    `json:"MoveToPos"`
	DelayTime   float64         `json:"fDelayTime"`
	MoveTime    float64         `json:"fMoveTime"`
	Loop        bool            `json:"bLoop"`
	Type        int             `json:"nType"`
	CheckPlayer bool            `json:"bCheckPlayer"`
	CheckEnemy  bool            `json:"bCheckEnemy"`
	RunAtInit   bool            `json:"bRunAtInit"`
	BGMStart    string          `json:"bmgs"`
	BGMEnd      string          `json:"bmge"`
	SetID       int             `json:"nSetID"`
	Speed       *AnimationCurve `json:"mspd"`
	BoundsX     float64         `json:"B2DX"`
	BoundsY     float64         `json:"B2DY"`
	BoundsW     float64         `json:"B2DW"`
	BoundsH     float64         `json:"B2DH"`

	// Objects spawned or driven by the event.
	Objects []EventObject `json:"Datas"`
}

// AnimationCurve is a serialized animation curve. Keys are kept opaque.
type AnimationCurve struct {
	SerializedVersion string `json:"serializedVersion"`
	Curve             []any  `json:"m_Curve"`
	PreInfinity       int    `json:"m_PreInfinity"`
	PostInfinity      int    `json:"m_PostInfinity"`
	RotationOrder     int    `json:"m_RotationOrder"`
}

// ParseMapEvent decodes the map event held by a property string.
func ParseMapEvent(property string) (*MapEvent, error) {
	if property == "" {
		return nil, errors.New("empty map event property").
			WithType(ErrTypeInvalidProperty)
	}

	_, blob, err := DecodeProperty(property)
	if err != nil {
		return nil, err
	}

	var ev *MapEvent
	if err := json.Unmarshal(blob, &ev); err != nil {
		return nil, errors.New("parsing map event failed").
			WithType(ErrTypeInvalidProperty).
			Wrap(err)
	}
	if ev == nil {
		return nil, errors.New("null map event").
			WithType(ErrTypeInvalidProperty)
	}
	return ev, nil
}

// FormatMapEvent encodes a map event as a property string with the map event
// prefix.
func FormatMapEvent(ev MapEvent) (string, error) {
	return EncodeProperty(MapEventPrefix, ev)
}

// IsMapEventObject reports whether an object is expected to carry a map event
// property.
func IsMapEventObject(name string) bool {
	return strings.Contains(name, MapEventObjectName)
}
