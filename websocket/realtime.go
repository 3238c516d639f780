package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/featureflag"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
	"github.com/aukilabs/stagekit/modules"
	"github.com/aukilabs/stagekit/modules/clip"
	"github.com/aukilabs/stagekit/stagefile"
	"golang.org/x/net/websocket"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// The header carrying the id of the connecting editor.
	HeaderClientID = "X-Stagekit-Client-Id"

	// The header carrying the key of the connecting editor application.
	HeaderAppKey = "X-Stagekit-App-Key"
)

// RealtimeHandler represents a service that lets multiple editor connections
// work on shared stages.
type RealtimeHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The clip width of stages opened without one.
	DefaultClipWidth float64

	// The store that contains all the server sessions.
	Sessions *models.SessionStore

	// The modules that expand the editor protocol.
	Modules []modules.Module

	FeatureFlags featureflag.FeatureFlag

	conn           *websocket.Conn
	currentSession *models.Session
	editor         *models.Editor

	clientID string
	appKey   string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	req := conn.Request()
	h.clientID = req.Header.Get(HeaderClientID)
	h.appKey = req.Header.Get(HeaderAppKey)

	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	respond.Send(messages.MsgTypePingResponse, msg.RequestID, nil)
	return nil
}

func (h *RealtimeHandler) HandleStageOpen(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.StageOpenRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	if h.currentSession != nil && req.SessionID != "" && h.Sessions.GlobalSessionID(h.currentSession.ID) == req.SessionID {
		messages.SendError(respond, msg.RequestID, messages.ErrorCodeSessionAlreadyOpened, nil)
		return nil
	}

	session, ok := h.Sessions.GetByGlobalID(req.SessionID)
	if !ok && req.SessionID != "" {
		messages.SendError(respond, msg.RequestID, messages.ErrorCodeNotFound, errors.New("session not found").
			WithType(messages.ErrTypeNotFound).
			WithTag("session_id", req.SessionID))
		return nil
	}

	if h.currentSession != nil {
		h.leaveSession()
	}

	if !ok {
		clipWidth := req.ClipWidth
		if clipWidth <= 0 {
			clipWidth = h.DefaultClipWidth
		}

		session = models.NewSession(h.Sessions.NewID(), models.NewStage(clipWidth))
		session.AppKey = h.appKey
		if err := h.Sessions.Add(ctx, session); err != nil {
			messages.SendError(respond, msg.RequestID, messages.ErrorCodeInternalServerError, err)
			return nil
		}
	}

	editor := messages.NewEditor(h.clientID, respond)
	session.AddEditor(editor)
	h.currentSession = session
	h.editor = editor

	var summary messages.StageSummary
	session.View(func(s *models.Stage) {
		summary = messages.NewStageSummary(s)
	})

	respond.Send(messages.MsgTypeStageOpenResponse, msg.RequestID, messages.StageOpenResponse{
		SessionID:   h.Sessions.GlobalSessionID(session.ID),
		SessionUUID: session.SessionUUID,
		EditorID:    editor.ID,
		Stage:       summary,
	})

	for _, m := range h.Modules {
		m.Init(session, editor)
	}

	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentSession != nil {
		h.leaveSession()
	}
}

func (h *RealtimeHandler) HandleStageLoad(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.StageLoadRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session, ok := h.session(respond, msg)
	if !ok {
		return nil
	}

	stage, err := stagefile.Decode(req.Document, stagefile.Options{
		DisableLegacy: h.FeatureFlags.IsSet(featureflag.FlagDisableLegacyDocuments),
	})
	if err != nil {
		messages.SendError(respond, msg.RequestID, messages.ErrorCodeBadRequest, err)
		return nil
	}
	session.Replace(stage)

	var summary messages.StageSummary
	session.View(func(s *models.Stage) {
		summary = messages.NewStageSummary(s)
	})

	respond.Send(messages.MsgTypeStageLoadResponse, msg.RequestID, messages.StageLoadResponse{
		Stage: summary,
	})

	messages.Broadcast(session, h.editor, messages.MsgTypeStageLoadBroadcast, messages.StageBroadcast{
		EditorID: h.editor.ID,
		Stage:    summary,
	})
	return nil
}

func (h *RealtimeHandler) HandleStageExport(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	session, ok := h.session(respond, msg)
	if !ok {
		return nil
	}

	var doc []byte
	var err error
	session.View(func(s *models.Stage) {
		doc, err = stagefile.Encode(s)
	})
	if err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	respond.Send(messages.MsgTypeStageExportResponse, msg.RequestID, messages.StageExportResponse{
		Document: doc,
	})
	return nil
}

func (h *RealtimeHandler) HandleObjectAdd(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ObjectAddRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session, ok := h.session(respond, msg)
	if !ok {
		return nil
	}

	var obj models.StageObject
	if err := session.Update(func(s *models.Stage) error {
		obj = req.Object.StageObject()

		clipIndex, err := placementClip(s, req.ClipIndex, obj.Position())
		if err != nil {
			return err
		}

		id, err := s.AddObject(clipIndex, obj)
		if err != nil {
			return err
		}
		obj, _ = s.Object(id)
		return nil
	}); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	respond.Send(messages.MsgTypeObjectAddResponse, msg.RequestID, messages.ObjectAddResponse{
		ObjectID:  obj.ID,
		ClipIndex: obj.ClipIndex,
	})

	messages.Broadcast(session, h.editor, messages.MsgTypeObjectAddBroadcast, messages.ObjectBroadcast{
		EditorID: h.editor.ID,
		Object:   messages.NewObject(obj),
	})
	return nil
}

// placementClip returns the clip index given by an editor or, when none is
// given, the index of the first clip containing p.
func placementClip(s *models.Stage, clipIndex *int, p r3.Vec) (int, error) {
	if clipIndex != nil {
		return *clipIndex, nil
	}

	i, ok := clip.FindOwningClip(s.Clips, p)
	if !ok {
		return 0, errors.New("no clip contains the object position").
			WithType(messages.ErrTypeNotFound).
			WithTag("x", p.X).
			WithTag("y", p.Y).
			WithTag("z", p.Z)
	}
	return i, nil
}

func (h *RealtimeHandler) HandleObjectUpdate(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ObjectUpdateRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session, ok := h.session(respond, msg)
	if !ok {
		return nil
	}

	var obj models.StageObject
	if err := session.Update(func(s *models.Stage) error {
		if req.ClipIndex != nil {
			if err := s.MoveObject(req.ObjectID, *req.ClipIndex); err != nil {
				return err
			}
		}

		if err := s.UpdateObject(req.ObjectID, func(o *models.StageObject) {
			updateObject(o, req)
		}); err != nil {
			return err
		}

		obj, _ = s.Object(req.ObjectID)
		return nil
	}); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	object := messages.NewObject(obj)
	respond.Send(messages.MsgTypeObjectUpdateResponse, msg.RequestID, messages.ObjectUpdateResponse{
		Object: object,
	})

	messages.Broadcast(session, h.editor, messages.MsgTypeObjectUpdateBroadcast, messages.ObjectBroadcast{
		EditorID: h.editor.ID,
		Object:   object,
	})
	return nil
}

func updateObject(o *models.StageObject, req messages.ObjectUpdateRequest) {
	if req.Name != nil {
		o.Name = *req.Name
	}
	if req.GroupID != nil {
		o.GroupID = *req.GroupID
	}
	if req.Position != nil {
		o.Transform.Position = req.Position.R3()
	}
	if req.Rotation != nil {
		o.Transform.Rotation = *req.Rotation
	}
	if req.Scale != nil {
		o.Transform.Scale = req.Scale.R3()
	}
	if req.Property != nil {
		o.Property = *req.Property
	}
}

func (h *RealtimeHandler) HandleObjectGeometryUpdate(ctx context.Context, msg messages.Msg) error {
	var update messages.ObjectGeometryUpdate
	if err := msg.DataTo(&update); err != nil {
		return err
	}

	session := h.currentSession
	if session == nil {
		return errors.New("session not opened").
			WithType(messages.ErrTypeSessionNotOpened).
			WithTag("msg_type", msg.Type)
	}

	// Updates of objects deleted in the meantime are dropped.
	session.Update(func(s *models.Stage) error {
		return s.UpdateObject(update.ObjectID, func(o *models.StageObject) {
			o.Geometry = models.Geometry{
				Vertices:      messages.Vecs(update.Vertices),
				TriangleCount: update.TriangleCount,
				Renderer:      update.Renderer.R3(),
				Collider:      update.Collider.R3(),
			}
		})
	})
	return nil
}

func (h *RealtimeHandler) HandleObjectDelete(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ObjectDeleteRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session, ok := h.session(respond, msg)
	if !ok {
		return nil
	}

	if err := session.Update(func(s *models.Stage) error {
		return s.RemoveObject(req.ObjectID)
	}); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	respond.Send(messages.MsgTypeObjectDeleteResponse, msg.RequestID, nil)

	messages.Broadcast(session, h.editor, messages.MsgTypeObjectDeleteBroadcast, messages.ObjectDeleteBroadcast{
		EditorID: h.editor.ID,
		ObjectID: req.ObjectID,
	})
	return nil
}

func (h *RealtimeHandler) HandleObjectList(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ObjectListRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session, ok := h.session(respond, msg)
	if !ok {
		return nil
	}

	res := messages.ObjectListResponse{Objects: []messages.Object{}}
	session.View(func(s *models.Stage) {
		for _, o := range s.Objects() {
			if req.GroupID != "" && o.GroupID != req.GroupID {
				continue
			}
			if req.ClipIndex != nil && o.ClipIndex != *req.ClipIndex {
				continue
			}
			res.Objects = append(res.Objects, messages.NewObject(o))
		}
	})

	respond.Send(messages.MsgTypeObjectListResponse, msg.RequestID, res)
	return nil
}

func (h *RealtimeHandler) HandleWithModule(ctx context.Context, m modules.Module, respond messages.ResponseSender, msg messages.Msg) error {
	if h.CurrentSession() == nil {
		return messages.ErrModuleMsgSkip
	}

	err := m.HandleMsg(ctx, respond, msg)
	if err == nil || errors.IsType(err, messages.ErrTypeMsgSkip) {
		return err
	}
	return errors.New("handling message with module failed").
		WithTag("module", m.Name()).
		Wrap(err)
}

func (h *RealtimeHandler) Receiver() messages.Receiver {
	return func() (messages.Msg, int, error) {
		return messages.Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() messages.Sender {
	return func(msg messages.Msg) (int, error) {
		return messages.Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetSessions() *models.SessionStore {
	return h.Sessions
}

func (h *RealtimeHandler) GetModules() []modules.Module {
	return h.Modules
}

func (h *RealtimeHandler) CurrentSession() *models.Session {
	return h.currentSession
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

// session returns the opened session. An error response is sent when no
// session is opened.
func (h *RealtimeHandler) session(respond messages.ResponseSender, msg messages.Msg) (*models.Session, bool) {
	if h.currentSession == nil {
		messages.SendError(respond, msg.RequestID, messages.ErrorCodeSessionNotOpened, errors.New("session not opened").
			WithType(messages.ErrTypeSessionNotOpened).
			WithTag("msg_type", msg.Type))
		return nil, false
	}
	return h.currentSession, true
}

func (h *RealtimeHandler) leaveSession() {
	session := h.currentSession
	if session == nil {
		return
	}

	for _, m := range h.Modules {
		m.HandleDisconnect()
	}

	if session.RemoveEditor(h.editor) == 0 {
		// Here we use a context.Background to ensure the session is removed
		// even when the connection context is canceled.
		h.Sessions.Remove(context.Background(), session)
	}

	h.currentSession = nil
	h.editor = nil
}
