package batch

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
)

// Op is a batch operation name.
type Op string

const (
	OpFilter       Op = "filter"
	OpAlign        Op = "align"
	OpDistribute   Op = "distribute"
	OpSetGroupID   Op = "set_group_id"
	OpMoveToClip   Op = "move_to_clip"
	OpSnapToGrid   Op = "snap_to_grid"
	OpSnapToGround Op = "snap_to_ground"
	OpGroup        Op = "group"
	OpDelete       Op = "delete"

	ErrTypeUnknownOp = "unknown-batch-op"
)

// Module applies batch operations to the objects of the opened stage.
type Module struct {
	// The grid cell size used by snap_to_grid requests that don't carry one.
	GridSize float64

	currentSession *models.Session
	editor         *models.Editor
}

func (m *Module) Name() string {
	return "batch"
}

func (m *Module) Init(s *models.Session, e *models.Editor) {
	m.currentSession = s
	m.editor = e
}

func (m *Module) HandleMsg(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	switch msg.Type {
	case messages.MsgTypeBatchRequest:
		return m.HandleBatch(ctx, respond, msg)

	default:
		return messages.ErrModuleMsgSkip
	}
}

func (m *Module) HandleDisconnect() {
	m.currentSession = nil
	m.editor = nil
}

func (m *Module) HandleBatch(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.BatchRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	if m.currentSession == nil {
		return errors.New("session not opened").
			WithType(messages.ErrTypeSessionNotOpened).
			WithTag("msg_type", msg.Type)
	}

	var res messages.BatchResponse
	var summary messages.StageSummary
	var err error

	if Op(req.Op) == OpFilter {
		m.currentSession.View(func(s *models.Stage) {
			res = m.filter(s, req)
		})
	} else {
		err = m.currentSession.Update(func(s *models.Stage) error {
			var err error
			res, err = m.apply(s, req)
			summary = messages.NewStageSummary(s)
			return err
		})
	}

	if err != nil {
		respondError(respond, msg.RequestID, err)
		return nil
	}

	respond.Send(messages.MsgTypeBatchResponse, msg.RequestID, res)

	if Op(req.Op) != OpFilter && res.Affected != 0 {
		m.broadcastStage(summary)
	}
	return nil
}

func (m *Module) broadcastStage(summary messages.StageSummary) {
	var editorID uint32
	if m.editor != nil {
		editorID = m.editor.ID
	}

	messages.Broadcast(m.currentSession, m.editor, messages.MsgTypeStageUpdateBroadcast, messages.StageBroadcast{
		EditorID: editorID,
		Stage:    summary,
	})
}

func (m *Module) filter(s *models.Stage, req messages.BatchRequest) messages.BatchResponse {
	clipIndex := -1
	if req.ClipIndex != nil {
		clipIndex = *req.ClipIndex
	}

	ids := Filter(s, req.GroupID, clipIndex)
	return messages.BatchResponse{
		Affected:  len(ids),
		ObjectIDs: ids,
	}
}

func (m *Module) apply(s *models.Stage, req messages.BatchRequest) (messages.BatchResponse, error) {
	var res messages.BatchResponse
	var err error

	switch Op(req.Op) {
	case OpAlign, OpDistribute:
		var axis Axis
		if axis, err = ParseAxis(req.Axis); err != nil {
			return res, err
		}

		if Op(req.Op) == OpAlign {
			res.Affected, err = Align(s, req.ObjectIDs, axis)
		} else {
			res.Affected, err = Distribute(s, req.ObjectIDs, axis)
		}

	case OpSetGroupID:
		res.Affected, err = SetGroupID(s, req.ObjectIDs, req.GroupID)
		res.GroupID = req.GroupID

	case OpMoveToClip:
		if req.ClipIndex == nil {
			return res, errors.New("missing clip index").
				WithType(ErrTypeInvalidSelection)
		}
		res.Affected, err = MoveToClip(s, req.ObjectIDs, *req.ClipIndex)

	case OpSnapToGrid:
		cellSize := req.CellSize
		if cellSize == 0 {
			cellSize = m.GridSize
		}
		res.Affected, err = SnapToGrid(s, req.ObjectIDs, cellSize)

	case OpSnapToGround:
		res.Affected, err = SnapToGround(s, req.ObjectIDs)

	case OpGroup:
		var g Grouping
		if g, err = Group(s, req.ObjectIDs, req.GroupID); err == nil {
			c := models.NewVec3(g.Centroid)
			res.Affected = g.Count
			res.GroupID = g.GroupID
			res.Centroid = &c
		}

	case OpDelete:
		res.Affected, err = Delete(s, req.ObjectIDs)

	default:
		err = errors.New("unknown batch operation").
			WithType(ErrTypeUnknownOp).
			WithTag("op", req.Op)
	}

	if err != nil {
		return messages.BatchResponse{}, err
	}
	if res.ObjectIDs == nil && Op(req.Op) != OpDelete {
		res.ObjectIDs = req.ObjectIDs
	}
	return res, nil
}

func respondError(respond messages.ResponseSender, requestID uint32, err error) {
	switch errors.Type(err) {
	case ErrTypeInvalidSelection, ErrTypeUnknownAxis, ErrTypeUnknownOp:
		messages.SendError(respond, requestID, messages.ErrorCodeBadRequest, err)

	default:
		messages.RespondError(respond, requestID, err)
	}
}
