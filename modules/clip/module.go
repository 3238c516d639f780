package clip

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
)

// State is the clip index shared by the connections editing a session.
type State struct {
	mutex    sync.Mutex
	grid     *Grid
	revision uint64
}

// Grid returns the grid of the given stage, rebuilding it when the stage
// changed since the last call. It must be called while the stage is locked.
func (s *State) Grid(stage *models.Stage) *Grid {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.grid == nil || s.revision != stage.Revision() {
		s.grid = NewGrid(stage.Clips, stage.ClipWidth)
		s.revision = stage.Revision()
	}
	return s.grid
}

// Module handles clip edits and clip membership queries.
type Module struct {
	currentSession *models.Session
	editor         *models.Editor
	state          *State
}

func (m *Module) Name() string {
	return "clip"
}

func (m *Module) Init(s *models.Session, e *models.Editor) {
	m.currentSession = s
	m.editor = e

	state, ok := s.ModuleState(m.Name())
	if !ok {
		state = &State{}
		s.SetModuleState(m.Name(), state)
	}
	m.state = state.(*State)
}

func (m *Module) HandleMsg(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var err error

	switch msg.Type {
	case messages.MsgTypeClipAddRequest:
		err = m.HandleClipAdd(ctx, respond, msg)

	case messages.MsgTypeClipRemoveRequest:
		err = m.HandleClipRemove(ctx, respond, msg)

	case messages.MsgTypeClipOwnerRequest:
		err = m.HandleClipOwner(ctx, respond, msg)

	case messages.MsgTypeClipFitRequest:
		err = m.HandleClipFit(ctx, respond, msg)

	case messages.MsgTypeClipOverlapsRequest:
		err = m.HandleClipOverlaps(ctx, respond, msg)

	case messages.MsgTypeClipRegionRequest:
		err = m.HandleClipRegion(ctx, respond, msg)

	case messages.MsgTypeClipDebugRequest:
		err = m.HandleClipDebug(ctx, respond, msg)

	default:
		err = messages.ErrModuleMsgSkip
	}

	return err
}

func (m *Module) HandleDisconnect() {
	m.currentSession = nil
	m.editor = nil
	m.state = nil
}

func (m *Module) HandleClipAdd(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	session, err := m.session(msg)
	if err != nil {
		return err
	}

	var res messages.ClipAddResponse
	var clips []messages.Clip
	session.Update(func(s *models.Stage) error {
		i := s.AddClip()
		res.Clip = ToMessage(i, s.Clips[i])
		clips = ToMessages(s.Clips)
		return nil
	})

	respond.Send(messages.MsgTypeClipAddResponse, msg.RequestID, res)
	m.broadcastClips(session, clips)
	return nil
}

func (m *Module) HandleClipRemove(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ClipRemoveRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session, err := m.session(msg)
	if err != nil {
		return err
	}

	var clips []messages.Clip
	if err := session.Update(func(s *models.Stage) error {
		if err := s.RemoveClip(req.ClipIndex); err != nil {
			return err
		}
		clips = ToMessages(s.Clips)
		return nil
	}); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	respond.Send(messages.MsgTypeClipRemoveResponse, msg.RequestID, nil)
	m.broadcastClips(session, clips)
	return nil
}

func (m *Module) HandleClipOwner(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ClipOwnerRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session, err := m.session(msg)
	if err != nil {
		return err
	}

	res := messages.ClipOwnerResponse{ClipIndex: -1}
	session.View(func(s *models.Stage) {
		res.ClipIndex, res.Found = m.state.Grid(s).Owner(req.Position.R3())
	})

	respond.Send(messages.MsgTypeClipOwnerResponse, msg.RequestID, res)
	return nil
}

func (m *Module) HandleClipFit(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ClipFitRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session, err := m.session(msg)
	if err != nil {
		return err
	}

	var res messages.ClipFitResponse
	var clips []messages.Clip
	if err := session.Update(func(s *models.Stage) error {
		if req.ClipIndex < 0 || req.ClipIndex >= len(s.Clips) {
			return errors.New("clip index out of range").
				WithType(models.ErrTypeClipOutOfRange).
				WithTag("clip_index", req.ClipIndex)
		}

		s.Clips[req.ClipIndex] = FitToContents(s.Clips[req.ClipIndex])
		res.Clip = ToMessage(req.ClipIndex, s.Clips[req.ClipIndex])
		clips = ToMessages(s.Clips)
		return nil
	}); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	respond.Send(messages.MsgTypeClipFitResponse, msg.RequestID, res)
	m.broadcastClips(session, clips)
	return nil
}

func (m *Module) HandleClipOverlaps(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	session, err := m.session(msg)
	if err != nil {
		return err
	}

	res := messages.ClipOverlapsResponse{Pairs: [][2]int{}}
	session.View(func(s *models.Stage) {
		if pairs := Overlaps(s.Clips); pairs != nil {
			res.Pairs = pairs
		}
	})

	respond.Send(messages.MsgTypeClipOverlapsResponse, msg.RequestID, res)
	return nil
}

func (m *Module) HandleClipRegion(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.ClipRegionRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session, err := m.session(msg)
	if err != nil {
		return err
	}

	res := messages.ClipRegionResponse{Clips: []messages.Clip{}}
	session.View(func(s *models.Stage) {
		for _, i := range m.state.Grid(s).Region(req.MinX, req.MaxX) {
			res.Clips = append(res.Clips, ToMessage(i, s.Clips[i]))
		}
	})

	respond.Send(messages.MsgTypeClipRegionResponse, msg.RequestID, res)
	return nil
}

func (m *Module) HandleClipDebug(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	session, err := m.session(msg)
	if err != nil {
		return err
	}

	var info DebugInfo
	session.View(func(s *models.Stage) {
		info = m.state.Grid(s).DebugInfo()
	})

	respond.Send(messages.MsgTypeClipDebugResponse, msg.RequestID, messages.ClipDebugResponse{
		Resolution:  info.Resolution,
		CellCount:   info.CellCount,
		ClipCount:   info.ClipCount,
		LinearCount: info.LinearCount,
		MinX:        info.MinX,
		MaxX:        info.MaxX,
		Occupancy:   info.Occupancy,
	})
	return nil
}

func (m *Module) session(msg messages.Msg) (*models.Session, error) {
	if m.currentSession == nil {
		return nil, errors.New("session not opened").
			WithType(messages.ErrTypeSessionNotOpened).
			WithTag("msg_type", msg.Type)
	}
	return m.currentSession, nil
}

func (m *Module) broadcastClips(session *models.Session, clips []messages.Clip) {
	var editorID uint32
	if m.editor != nil {
		editorID = m.editor.ID
	}

	messages.Broadcast(session, m.editor, messages.MsgTypeClipUpdateBroadcast, messages.ClipUpdateBroadcast{
		EditorID: editorID,
		Clips:    clips,
	})
}

// ToMessages returns the wire form of clips.
func ToMessages(clips []models.Clip) []messages.Clip {
	res := make([]messages.Clip, len(clips))
	for i, c := range clips {
		res[i] = ToMessage(i, c)
	}
	return res
}

// ToMessage returns the wire form of the clip at index i.
func ToMessage(i int, c models.Clip) messages.Clip {
	return messages.Clip{
		Index:       i,
		MinX:        c.MinX,
		MaxX:        c.MaxX,
		MinY:        c.MinY,
		MaxY:        c.MaxY,
		MinZ:        c.MinZ,
		MaxZ:        c.MaxZ,
		ObjectCount: len(c.Objects),
		Valid:       IsValid(c),
	}
}
