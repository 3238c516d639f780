package http

import (
	"io"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/stagekit/featureflag"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
	"github.com/aukilabs/stagekit/modules/snap"
	"github.com/aukilabs/stagekit/modules/validate"
	"github.com/aukilabs/stagekit/stagefile"
	"github.com/segmentio/encoding/json"
)

const defaultMaxBodySize = 8 << 20

// FixRequest is the body of a fix request.
type FixRequest struct {
	Document json.RawMessage `json:"document"`

	// Restricts fixes to the given finding kinds. Empty applies every fix.
	Kinds []string `json:"kinds,omitempty"`
}

type FixResponse struct {
	Applied  int                `json:"applied"`
	Findings []messages.Finding `json:"findings"`
	Document json.RawMessage    `json:"document"`
}

// SnapRequest is a snap request whose stage objects come from an optional
// stage document.
type SnapRequest struct {
	messages.SnapRequest

	Document json.RawMessage `json:"document,omitempty"`
}

// StageHandler serves stateless operations on stage documents sent with each
// request.
type StageHandler struct {
	// The validation options.
	Validation validate.Options

	// Answers snap requests. Its configuration is used when a request does not
	// carry one.
	Snap *snap.Module

	FeatureFlags featureflag.FeatureFlag

	// The maximum size of a request body. 0 means 8MB.
	MaxBodySize int64
}

// HandleValidate validates the stage document sent as body.
func (h *StageHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}

	b, err := h.readBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	stage, err := h.decode(b)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validate.ToValidateResponse(validate.Validate(stage, h.Validation)))
}

// HandleFix applies the fixes of a stage document and returns the fixed
// document.
func (h *StageHandler) HandleFix(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}

	if h.FeatureFlags.IsSet(featureflag.FlagDisableAutoFix) {
		h.fail(w, r, errors.New("automatic fixes disabled").
			WithType(messages.ErrTypeDisabled))
		return
	}

	var req FixRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	stage, err := h.decode(req.Document)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	applied, remaining := validate.FixStage(stage, h.Validation, validate.ParseKinds(req.Kinds)...)

	doc, err := stagefile.Encode(stage)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, FixResponse{
		Applied:  applied,
		Findings: validate.ToMessages(remaining),
		Document: doc,
	})
}

// HandleSnap snaps a position against the objects of an optional stage
// document and the candidates of the request.
func (h *StageHandler) HandleSnap(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}

	var req SnapRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	var stage *models.Stage
	if len(req.Document) != 0 {
		var err error
		if stage, err = h.decode(req.Document); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	res, err := h.Snap.ResolveRequest(stage, req.SnapRequest)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snap.ResultToMessage(res))
}

func (h *StageHandler) decode(b []byte) (*models.Stage, error) {
	return stagefile.Decode(b, stagefile.Options{
		DisableLegacy: h.FeatureFlags.IsSet(featureflag.FlagDisableLegacyDocuments),
	})
}

func (h *StageHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	maxBodySize := h.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.New("reading body failed").
			WithType(messages.ErrTypeBadRequest).
			Wrap(err)
	}
	return b, nil
}

func (h *StageHandler) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	b, err := h.readBody(w, r)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(b, v); err != nil {
		return errors.New("decoding body failed").
			WithType(messages.ErrTypeBadRequest).
			Wrap(err)
	}
	return nil
}

func (h *StageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)

	entry := logs.WithTag("path", r.URL.Path).
		WithTag("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(err)
	} else {
		entry.Debug(err)
	}

	writeError(w, status, err)
}

func allowPost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed").
			WithTag("method", r.Method))
		return false
	}
	return true
}
