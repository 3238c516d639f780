package messages

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/models"
	"github.com/stretchr/testify/require"
)

func TestMsgData(t *testing.T) {
	msg, err := NewMsg(MsgTypeClipOwnerRequest, 42, ClipOwnerRequest{
		Position: models.Vec3{X: 1, Y: 2, Z: 3},
	})
	require.NoError(t, err)
	require.Equal(t, MsgTypeClipOwnerRequest, msg.Type)
	require.Equal(t, uint32(42), msg.RequestID)
	require.JSONEq(t, `{"position":{"x":1,"y":2,"z":3}}`, string(msg.Data))

	var req ClipOwnerRequest
	require.NoError(t, msg.DataTo(&req))
	require.Equal(t, models.Vec3{X: 1, Y: 2, Z: 3}, req.Position)
}

func TestMsgDataTo(t *testing.T) {
	t.Run("missing data leaves value untouched", func(t *testing.T) {
		req := ClipFitRequest{ClipIndex: 3}
		require.NoError(t, Msg{Type: MsgTypeClipFitRequest}.DataTo(&req))
		require.Equal(t, 3, req.ClipIndex)
	})

	t.Run("malformed data is a bad request", func(t *testing.T) {
		var req ClipFitRequest
		err := Msg{Type: MsgTypeClipFitRequest, Data: []byte(`{"clip_index":"x"}`)}.DataTo(&req)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeBadRequest))
		require.Equal(t, ErrorCodeBadRequest, ErrorCodeOf(err))
	})
}

func TestTypeString(t *testing.T) {
	require.Equal(t, "unknown", Msg{}.TypeString())
	require.Equal(t, "snap_request", Msg{Type: MsgTypeSnapRequest}.TypeString())
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		errType  string
		expected ErrorCode
	}{
		{errType: ErrTypeBadRequest, expected: ErrorCodeBadRequest},
		{errType: models.ErrTypeClipOutOfRange, expected: ErrorCodeBadRequest},
		{errType: ErrTypeNotFound, expected: ErrorCodeNotFound},
		{errType: models.ErrTypeObjectNotFound, expected: ErrorCodeNotFound},
		{errType: ErrTypeSessionNotOpened, expected: ErrorCodeSessionNotOpened},
		{errType: ErrTypeDisabled, expected: ErrorCodeDisabled},
		{errType: "something-else", expected: ErrorCodeInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.errType, func(t *testing.T) {
			err := errors.New("test").WithType(test.errType)
			require.Equal(t, test.expected, ErrorCodeOf(err))
		})
	}
}

func TestRespondError(t *testing.T) {
	var rec ResponseRecorder
	RespondError(&rec, 7, errors.New("no such object").WithType(ErrTypeNotFound))

	msg, ok := rec.Last()
	require.True(t, ok)
	require.Equal(t, MsgTypeErrorResponse, msg.Type)
	require.Equal(t, uint32(7), msg.RequestID)

	var res ErrorResponse
	require.NoError(t, msg.DataTo(&res))
	require.Equal(t, ErrorCodeNotFound, res.Code)
	require.Contains(t, res.Message, "no such object")
}

func TestObjectConversion(t *testing.T) {
	t.Run("missing rotation and scale stay zero", func(t *testing.T) {
		obj := Object{Name: "crate", Position: models.Vec3{X: 4}}.StageObject()
		require.True(t, obj.Transform.Rotation.IsZero())
		require.Zero(t, obj.Transform.Scale)
		require.Equal(t, 4.0, obj.Position().X)
	})

	t.Run("round trip", func(t *testing.T) {
		in := models.StageObject{
			ID:        3,
			Name:      "crate",
			GroupID:   "g",
			ClipIndex: 1,
			Transform: models.DefaultTransform(),
			Path:      "Assets/crate.prefab",
			Property:  "P,{}",
		}
		in.Transform.Position.Y = 2

		require.Equal(t, in, NewObject(in).StageObject())
	})
}
