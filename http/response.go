package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/stagefile"
	"github.com/segmentio/encoding/json"
)

// ErrorResponse is the body of failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Type:  errors.Type(err),
	})
}

// statusOf returns the HTTP status that matches the type of err.
func statusOf(err error) int {
	switch errors.Type(err) {
	case stagefile.ErrTypeMalformed, messages.ErrTypeBadRequest:
		return http.StatusBadRequest

	case messages.ErrTypeNotFound:
		return http.StatusNotFound

	case messages.ErrTypeDisabled:
		return http.StatusForbidden

	case ErrTypeUnauthorized:
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}
