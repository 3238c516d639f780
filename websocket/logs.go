package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
	"golang.org/x/net/websocket"
)

const (
	appKeyTag      = "app_key"
	sessionIDTag   = "session_id"
	sessionUUIDTag = "session_uuid"
)

func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request
	appKey          string

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	sessionID   string
	sessionUUID string
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	req := conn.Request()
	h.originalRequest = req
	h.appKey = req.Header.Get(HeaderAppKey)

	logs.WithClientID(h.GetClientID()).
		WithTag(appKeyTag, h.appKey).
		Info("new editor is connected")
}

func (h *handlerWithLogs) HandleStageOpen(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	previous := h.CurrentSession()

	if err := h.Handler.HandleStageOpen(ctx, sender, msg); err != nil {
		return err
	}

	session := h.CurrentSession()
	if session == nil || session == previous {
		var req messages.StageOpenRequest
		// Check for error here is unecessary since a bad request payload
		// already got an error response.
		msg.DataTo(&req)

		logs.WithClientID(h.GetClientID()).
			WithTag(appKeyTag, h.appKey).
			WithTag(sessionIDTag, req.SessionID).
			WithTag("request_id", msg.RequestID).
			WithTag("http_headers", h.httpHeaders()).
			Info("editor failed to open a stage")
		return nil
	}

	h.sessionID = h.GetSessions().GlobalSessionID(session.ID)
	h.sessionUUID = session.SessionUUID

	logs.WithClientID(h.GetClientID()).
		WithTag(appKeyTag, h.appKey).
		WithTag(sessionIDTag, h.sessionID).
		WithTag(sessionUUIDTag, h.sessionUUID).
		WithTag("editor_count", session.EditorCount()).
		WithTag("http_headers", h.httpHeaders()).
		Info("editor opened a stage")
	return nil
}

func (h *handlerWithLogs) HandleStageLoad(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	err := h.Handler.HandleStageLoad(ctx, sender, msg)

	if session := h.CurrentSession(); session != nil {
		session.View(func(s *models.Stage) {
			logs.WithClientID(h.GetClientID()).
				WithTag(sessionIDTag, h.sessionID).
				WithTag("request_id", msg.RequestID).
				WithTag("revision", s.Revision()).
				WithTag("clip_count", len(s.Clips)).
				WithTag("object_count", s.ObjectCount()).
				Debug("stage load handled")
		})
	}
	return err
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)
	logs.WithClientID(h.GetClientID()).
		WithTag(appKeyTag, h.appKey).
		WithTag(sessionIDTag, h.sessionID).
		WithTag("reason", err).
		Info("editor disconnected")
}

func (h *handlerWithLogs) Receiver() messages.Receiver {
	receive := h.Handler.Receiver()

	return func() (messages.Msg, int, error) {
		msg, n, err := receive()
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			logs.WithClientID(h.GetClientID()).
				WithTag(appKeyTag, h.appKey).
				WithTag(sessionIDTag, h.sessionID).
				WithTag(sessionUUIDTag, h.sessionUUID).
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithClientID(h.GetClientID()).
				WithTag(appKeyTag, h.appKey).
				WithTag(sessionIDTag, h.sessionID).
				WithTag(sessionUUIDTag, h.sessionUUID).
				WithTag("msg_type", msg.TypeString()).
				Debug("message received")
			h.incCounter(msg.TypeString())
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() messages.Sender {
	sender := h.Handler.Sender()

	return func(msg messages.Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := sender(msg)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logs.WithClientID(h.GetClientID()).
				WithTag(appKeyTag, h.appKey).
				WithTag(sessionIDTag, h.sessionID).
				WithTag(sessionUUIDTag, h.sessionUUID).
				WithTag("msg_type", msgType).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			logs.WithClientID(h.GetClientID()).
				WithTag(appKeyTag, h.appKey).
				WithTag(sessionIDTag, h.sessionID).
				WithTag(sessionUUIDTag, h.sessionUUID).
				WithTag("msg_type", msgType).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) httpHeaders() any {
	if h.originalRequest == nil {
		return nil
	}

	return struct {
		UserAgent     string `json:"user_agent,omitempty"`
		XForwardedFor string `json:"x_forwarded_for,omitempty"`
	}{
		UserAgent:     h.originalRequest.UserAgent(),
		XForwardedFor: h.originalRequest.Header.Get("X-Forwarded-For"),
	}
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.
		WithClientID(h.GetClientID()).
		WithTag(appKeyTag, h.appKey).
		WithTag(sessionIDTag, h.sessionID).
		WithTag(sessionUUIDTag, h.sessionUUID).
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
