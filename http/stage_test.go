package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aukilabs/stagekit/featureflag"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
	"github.com/aukilabs/stagekit/modules/snap"
	"github.com/aukilabs/stagekit/stagefile"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

const testDocument = `{
  "version": 1,
  "clipWidth": 10,
  "clips": [
    {
      "minX": "0",
      "maxX": "10",
      "objects": [
        {"groupId": "", "name": "lamp", "position": {"x": 2, "y": 0, "z": 0}}
      ]
    },
    {
      "minX": "10",
      "maxX": "20",
      "objects": []
    }
  ]
}`

func newTestStageHandler(flags ...featureflag.Flag) *StageHandler {
	ff := make([]string, len(flags))
	for i, f := range flags {
		ff[i] = string(f)
	}

	featureFlags := featureflag.New(ff)
	return &StageHandler{
		Snap: &snap.Module{
			Config:       snap.DefaultConfig(),
			FeatureFlags: featureFlags,
		},
		FeatureFlags: featureFlags,
	}
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestStageHandlerHandleValidate(t *testing.T) {
	h := newTestStageHandler()

	t.Run("valid document", func(t *testing.T) {
		rec := post(t, h.HandleValidate, testDocument)
		require.Equal(t, http.StatusOK, rec.Code)

		var res messages.ValidateResponse
		decodeBody(t, rec, &res)
		require.Equal(t, 0, res.Errors)
		require.Equal(t, 1, res.Warnings)
		require.Equal(t, 1, res.Infos)
		require.Len(t, res.Findings, 2)
		require.Equal(t, "empty_clip", res.Findings[0].Kind)
		require.Equal(t, "missing_group_id", res.Findings[1].Kind)
		require.Equal(t, "set_group_id", res.Findings[1].Fix)
	})

	t.Run("malformed document", func(t *testing.T) {
		rec := post(t, h.HandleValidate, `{"clips": [{"minX": "zero"}]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var res ErrorResponse
		decodeBody(t, rec, &res)
		require.Equal(t, stagefile.ErrTypeMalformed, res.Type)
		require.NotEmpty(t, res.Error)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		h.HandleValidate(rec, req)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		require.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	})

	t.Run("body too large", func(t *testing.T) {
		h := newTestStageHandler()
		h.MaxBodySize = 16

		rec := post(t, h.HandleValidate, testDocument)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStageHandlerHandleFix(t *testing.T) {
	t.Run("fix every finding", func(t *testing.T) {
		h := newTestStageHandler()

		rec := post(t, h.HandleFix, `{"document": `+testDocument+`}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var res FixResponse
		decodeBody(t, rec, &res)
		require.Equal(t, 1, res.Applied)
		require.Len(t, res.Findings, 1)
		require.Equal(t, "empty_clip", res.Findings[0].Kind)

		stage, err := stagefile.Decode(res.Document, stagefile.Options{})
		require.NoError(t, err)
		require.Equal(t, models.DefaultGroupID, stage.Clips[0].Objects[0].GroupID)
	})

	t.Run("fix other kinds", func(t *testing.T) {
		h := newTestStageHandler()

		rec := post(t, h.HandleFix, `{"document": `+testDocument+`, "kinds": ["widen_clip"]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var res FixResponse
		decodeBody(t, rec, &res)
		require.Zero(t, res.Applied)
		require.Len(t, res.Findings, 2)
	})

	t.Run("disabled", func(t *testing.T) {
		h := newTestStageHandler(featureflag.FlagDisableAutoFix)

		rec := post(t, h.HandleFix, `{"document": `+testDocument+`}`)
		require.Equal(t, http.StatusForbidden, rec.Code)

		var res ErrorResponse
		decodeBody(t, rec, &res)
		require.Equal(t, messages.ErrTypeDisabled, res.Type)
	})

	t.Run("bad body", func(t *testing.T) {
		h := newTestStageHandler()

		rec := post(t, h.HandleFix, `[`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStageHandlerHandleSnap(t *testing.T) {
	h := newTestStageHandler(featureflag.FlagDisableEdgeSnap)

	t.Run("grid without document", func(t *testing.T) {
		rec := post(t, h.HandleSnap, `{"mode": "grid", "position": {"x": 2.2, "y": 0, "z": 3.8}}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var res messages.SnapResponse
		decodeBody(t, rec, &res)
		require.True(t, res.Snapped)
		require.Equal(t, models.Vec3{X: 2, Y: 0, Z: 4}, res.Position)
	})

	t.Run("object from document", func(t *testing.T) {
		rec := post(t, h.HandleSnap, `{
			"mode": "object",
			"position": {"x": 2.2, "y": 0, "z": 0.1},
			"document": `+testDocument+`
		}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var res messages.SnapResponse
		decodeBody(t, rec, &res)
		require.True(t, res.Snapped)
		require.Equal(t, models.Vec3{X: 2, Y: 0, Z: 0}, res.Position)
	})

	t.Run("unknown mode", func(t *testing.T) {
		rec := post(t, h.HandleSnap, `{"mode": "magnet", "position": {"x": 1}}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("disabled mode", func(t *testing.T) {
		rec := post(t, h.HandleSnap, `{"mode": "edge", "position": {"x": 1}}`)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}
