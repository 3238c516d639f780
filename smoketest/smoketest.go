// Package smoketest checks that a stagekit server answers a basic editing
// session.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/stagekit/messages"
	swebsocket "github.com/aukilabs/stagekit/websocket"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeUnexpectedResponse = "unexpected-response"

	defaultTimeout = time.Second * 10
)

type Options struct {
	// The public endpoint of the server running the smoke test.
	Endpoint string

	UserAgent string

	// The app key sent to the tested server.
	AppKey string

	SendResult func(context.Context, Results) error
}

// Request is the body of a smoke test request.
type Request struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// Results is the outcome of a smoke test.
type Results struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Success         bool    `json:"success"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
}

// RunOptions configures Run.
type RunOptions struct {
	FromEndpoint string
	ToEndpoint   string
	UserAgent    string
	AppKey       string

	// 0 means 10s.
	Timeout time.Duration
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil || req.Endpoint == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		go func() {
			res, err := Run(ctx, RunOptions{
				FromEndpoint: opts.Endpoint,
				ToEndpoint:   req.Endpoint,
				UserAgent:    opts.UserAgent,
				AppKey:       opts.AppKey,
				Timeout:      req.Timeout,
			})
			if err != nil {
				logs.Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// Run opens a stage on the server at opts.ToEndpoint, adds a clip and snaps a
// point. The returned results are filled even when an error is returned.
func Run(ctx context.Context, opts RunOptions) (Results, error) {
	res := Results{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := run(ctx, opts)
	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		err = errors.New("smoke test failed").
			WithTag("to_endpoint", opts.ToEndpoint).
			Wrap(err)
		res.Error = err.Error()
		return res, err
	}

	res.Success = true
	return res, nil
}

func run(ctx context.Context, opts RunOptions) error {
	origin := opts.FromEndpoint
	if origin == "" {
		origin = "http://localhost"
	}

	config, err := websocket.NewConfig(websocketURL(opts.ToEndpoint), origin)
	if err != nil {
		return errors.New("creating websocket config failed").Wrap(err)
	}
	config.Header.Set("User-Agent", opts.UserAgent)
	config.Header.Set(swebsocket.HeaderClientID, uuid.NewString())
	if opts.AppKey != "" {
		config.Header.Set(swebsocket.HeaderAppKey, opts.AppKey)
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return errors.New("dialing server failed").Wrap(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	var opened messages.StageOpenResponse
	if err := roundTrip(conn, messages.MsgTypeStageOpenRequest, 1, messages.StageOpenRequest{},
		messages.MsgTypeStageOpenResponse, &opened); err != nil {
		return err
	}

	var added messages.ClipAddResponse
	if err := roundTrip(conn, messages.MsgTypeClipAddRequest, 2, nil,
		messages.MsgTypeClipAddResponse, &added); err != nil {
		return err
	}

	var snapped messages.SnapResponse
	if err := roundTrip(conn, messages.MsgTypeSnapRequest, 3, messages.SnapRequest{
		Mode: "grid",
		Config: &messages.SnapConfig{
			GridSize:   1,
			SnapToGrid: true,
		},
	}, messages.MsgTypeSnapResponse, &snapped); err != nil {
		return err
	}
	return nil
}

// roundTrip sends a request and waits for its response. Messages answering
// other requests are ignored.
func roundTrip(conn *websocket.Conn, t messages.MsgType, requestID uint32, data any, want messages.MsgType, res any) error {
	msg, err := messages.NewMsg(t, requestID, data)
	if err != nil {
		return err
	}

	if _, err := messages.Send(conn, msg); err != nil {
		return errors.New("sending request failed").
			WithTag("msg_type", t).
			Wrap(err)
	}

	for {
		msg, _, err := messages.Receive(conn)
		if err != nil {
			return errors.New("receiving response failed").
				WithTag("msg_type", want).
				Wrap(err)
		}
		if msg.RequestID != requestID {
			continue
		}

		if msg.Type != want {
			var errRes messages.ErrorResponse
			msg.DataTo(&errRes)

			return errors.New("unexpected response").
				WithType(ErrTypeUnexpectedResponse).
				WithTag("msg_type", msg.Type).
				WithTag("error_code", errRes.Code).
				WithTag("error_message", errRes.Message)
		}
		return msg.DataTo(res)
	}
}

func websocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}
