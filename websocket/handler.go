package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
	"github.com/aukilabs/stagekit/modules"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Handler represents a stage editing handler.
type Handler interface {
	// Handles a ping request.
	HandlePing(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a request to open a new stage or to join the session of an
	// already opened one.
	HandleStageOpen(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a request to replace the opened stage with a stage document.
	HandleStageLoad(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles a request to export the opened stage as a stage document.
	HandleStageExport(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles a request to add an object to a clip.
	HandleObjectAdd(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles a request to change the fields of an object.
	HandleObjectUpdate(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles an update of the mesh and bounds of an object.
	HandleObjectGeometryUpdate(ctx context.Context, msg messages.Msg) error

	// Handles a request to delete an object.
	HandleObjectDelete(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handles a request to list objects.
	HandleObjectList(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error

	// Handle a message with a module.
	HandleWithModule(ctx context.Context, module modules.Module, respond messages.ResponseSender, msg messages.Msg) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() messages.Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() messages.Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the session store.
	GetSessions() *models.SessionStore

	// Returns the modules.
	GetModules() []modules.Module

	// The currently opened session.
	CurrentSession() *models.Session

	// Get ClientID
	GetClientID() string
}

// Handle handles the given service.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The stage editing handler.
	Handler Handler

	sendChan       chan messages.Msg
	receiveChan    chan messages.Msg
	sender         messages.Sender
	receiver       messages.Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan messages.Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan messages.Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	var responder = responseSender{
		send:    h.send,
		sendMsg: h.sendMsg,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.disconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.Handler.IdleTimeout()))

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(t messages.MsgType, requestID uint32, data any) {
	msg, err := messages.NewMsg(t, requestID, data)
	if err != nil {
		logs.WithTag("msg_type", t).
			WithClientID(h.Handler.GetClientID()).
			Debug(err)
		return
	}
	h.sendChan <- msg
}

func (h *handler) sendMsg(msg messages.Msg) {
	h.sendChan <- msg
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case h.receiveChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg messages.Msg, responder messages.ResponseSender) error {
	var err error
	core := true

	switch msg.Type {
	case messages.MsgTypePingRequest:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case messages.MsgTypeStageOpenRequest:
		err = h.Handler.HandleStageOpen(ctx, responder, msg)

	case messages.MsgTypeStageLoadRequest:
		err = h.Handler.HandleStageLoad(ctx, responder, msg)

	case messages.MsgTypeStageExportRequest:
		err = h.Handler.HandleStageExport(ctx, responder, msg)

	case messages.MsgTypeObjectAddRequest:
		err = h.Handler.HandleObjectAdd(ctx, responder, msg)

	case messages.MsgTypeObjectUpdateRequest:
		err = h.Handler.HandleObjectUpdate(ctx, responder, msg)

	case messages.MsgTypeObjectGeometryUpdate:
		err = h.Handler.HandleObjectGeometryUpdate(ctx, msg)

	case messages.MsgTypeObjectDeleteRequest:
		err = h.Handler.HandleObjectDelete(ctx, responder, msg)

	case messages.MsgTypeObjectListRequest:
		err = h.Handler.HandleObjectList(ctx, responder, msg)

	default:
		core = false
	}

	if err != nil || core {
		return err
	}

	if h.Handler.CurrentSession() == nil {
		messages.SendError(responder, msg.RequestID, messages.ErrorCodeSessionNotOpened, errors.New("session not opened").
			WithType(messages.ErrTypeSessionNotOpened).
			WithTag("msg_type", msg.Type))
		return nil
	}

	handled := false
	for _, m := range h.Handler.GetModules() {
		err = h.Handler.HandleWithModule(ctx, m, responder, msg)
		if errors.IsType(err, messages.ErrTypeMsgSkip) {
			continue
		}
		if err != nil {
			return err
		}
		handled = true
	}

	if !handled {
		messages.SendError(responder, msg.RequestID, messages.ErrorCodeBadRequest, errors.New("unknown message type").
			WithType(messages.ErrTypeBadRequest).
			WithTag("msg_type", msg.Type))
	}
	return nil
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send    func(messages.MsgType, uint32, any)
	sendMsg func(messages.Msg)
}

func (r responseSender) Send(t messages.MsgType, requestID uint32, data any) {
	r.send(t, requestID, data)
}

func (r responseSender) SendMsg(msg messages.Msg) {
	r.sendMsg(msg)
}
