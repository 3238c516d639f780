// Package messages defines the JSON messages exchanged with stage editors.
package messages

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/models"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// Returned by modules that skip a message.
	ErrTypeMsgSkip = "msg-skip"

	ErrTypeBadRequest       = "bad-request"
	ErrTypeNotFound         = "not-found"
	ErrTypeSessionNotOpened = "session-not-opened"
	ErrTypeDisabled         = "disabled"
)

// ErrModuleMsgSkip indicates that a module did not handle a message.
var ErrModuleMsgSkip = errors.New("module skipped message").WithType(ErrTypeMsgSkip)

// MsgType identifies the payload of a message.
type MsgType string

// Msg is the envelope of every message sent over an editor connection.
type Msg struct {
	Type      MsgType         `json:"type"`
	RequestID uint32          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMsg returns a message with data encoded as its payload.
func NewMsg(t MsgType, requestID uint32, data any) (Msg, error) {
	msg := Msg{
		Type:      t,
		RequestID: requestID,
	}
	if data == nil {
		return msg, nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		return Msg{}, errors.New("encoding message data failed").
			WithTag("msg_type", t).
			Wrap(err)
	}
	msg.Data = b
	return msg, nil
}

// DataTo decodes the message payload into v. A missing payload leaves v
// untouched.
func (m Msg) DataTo(v any) error {
	if len(m.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeBadRequest).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// ResponseSender sends messages to the connected editor.
type ResponseSender interface {
	// Sends a message built from the given type and payload.
	Send(t MsgType, requestID uint32, data any)

	// Sends an already built message.
	SendMsg(Msg)
}

// SendError sends an error response.
func SendError(respond ResponseSender, requestID uint32, code ErrorCode, err error) {
	res := ErrorResponse{Code: code}
	if err != nil {
		res.Message = err.Error()
	}
	respond.Send(MsgTypeErrorResponse, requestID, res)
}

// RespondError sends an error response whose code is derived from the type of
// err.
func RespondError(respond ResponseSender, requestID uint32, err error) {
	SendError(respond, requestID, ErrorCodeOf(err), err)
}

// ErrorCodeOf returns the error code that matches the type of err.
func ErrorCodeOf(err error) ErrorCode {
	switch errors.Type(err) {
	case ErrTypeBadRequest, models.ErrTypeClipOutOfRange:
		return ErrorCodeBadRequest

	case ErrTypeNotFound, models.ErrTypeObjectNotFound:
		return ErrorCodeNotFound

	case ErrTypeSessionNotOpened:
		return ErrorCodeSessionNotOpened

	case ErrTypeDisabled:
		return ErrorCodeDisabled

	default:
		return ErrorCodeInternalServerError
	}
}

// Receiver receives a message. It returns the message, the number of bytes
// read and an error.
type Receiver func() (Msg, int, error)

// Sender sends a message. It returns the number of bytes written and an
// error.
type Sender func(Msg) (int, error)

// Receive reads a text frame from conn and decodes it.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(b, &msg); err != nil {
		return Msg{}, len(b), errors.New("decoding message failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	if msg.Type == "" {
		return Msg{}, len(b), errors.New("message without type").
			WithType(ErrTypeBadRequest)
	}
	return msg, len(b), nil
}

// Send encodes msg and writes it as a text frame on conn.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}
