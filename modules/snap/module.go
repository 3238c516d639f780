package snap

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/featureflag"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
)

// Module answers snap requests against the objects of the opened stage.
type Module struct {
	// The configuration used when a request does not carry one.
	Config Config

	FeatureFlags featureflag.FeatureFlag

	currentSession *models.Session
}

func (m *Module) Name() string {
	return "snap"
}

func (m *Module) Init(s *models.Session, _ *models.Editor) {
	m.currentSession = s
}

func (m *Module) HandleMsg(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	switch msg.Type {
	case messages.MsgTypeSnapRequest:
		return m.HandleSnap(ctx, respond, msg)

	default:
		return messages.ErrModuleMsgSkip
	}
}

func (m *Module) HandleDisconnect() {
	m.currentSession = nil
}

func (m *Module) HandleSnap(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.SnapRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	session := m.currentSession
	if session == nil {
		return errors.New("session not opened").
			WithType(messages.ErrTypeSessionNotOpened).
			WithTag("msg_type", msg.Type)
	}

	var res Result
	var err error
	session.View(func(s *models.Stage) {
		res, err = m.ResolveRequest(s, req)
	})
	if err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	respond.Send(messages.MsgTypeSnapResponse, msg.RequestID, ResultToMessage(res))
	return nil
}

// ResolveRequest snaps the position of req against the objects of s and the
// candidates of req. s may be nil.
func (m *Module) ResolveRequest(s *models.Stage, req messages.SnapRequest) (Result, error) {
	mode, err := ParseMode(req.Mode)
	if err != nil {
		return Result{}, errors.New("invalid snap request").
			WithType(messages.ErrTypeBadRequest).
			Wrap(err)
	}

	cfg := m.Config
	if req.Config != nil {
		cfg = ConfigFromMessage(*req.Config)
	}
	cfg = m.restrict(cfg)

	if m.isDisabled(mode) {
		instrumentRejectedSnap(mode)
		return Result{}, errors.New("snap mode disabled").
			WithType(messages.ErrTypeDisabled).
			WithTag("mode", mode)
	}

	var candidates []Candidate
	if s != nil {
		candidates = CandidatesFromStage(s, req.ExcludeObjectIDs...)
	}
	candidates = append(candidates, CandidatesFromMessage(req.Candidates)...)

	res, err := Snap(mode, req.Position.R3(), candidates, cfg)
	if err != nil {
		return Result{}, errors.New("invalid snap request").
			WithType(messages.ErrTypeBadRequest).
			Wrap(err)
	}
	instrumentSnap(mode, res)
	return res, nil
}

// restrict turns off the geometry snaps disabled by feature flags.
func (m *Module) restrict(cfg Config) Config {
	m.FeatureFlags.IfSet(featureflag.FlagDisableVertexSnap, func() {
		cfg.SnapToVertices = false
	})
	m.FeatureFlags.IfSet(featureflag.FlagDisableEdgeSnap, func() {
		cfg.SnapToEdges = false
	})
	m.FeatureFlags.IfSet(featureflag.FlagDisableFaceSnap, func() {
		cfg.SnapToFaces = false
	})
	return cfg
}

func (m *Module) isDisabled(mode Mode) bool {
	switch mode {
	case ModeVertex:
		return m.FeatureFlags.IsSet(featureflag.FlagDisableVertexSnap)
	case ModeEdge:
		return m.FeatureFlags.IsSet(featureflag.FlagDisableEdgeSnap)
	case ModeFace:
		return m.FeatureFlags.IsSet(featureflag.FlagDisableFaceSnap)
	default:
		return false
	}
}

func ConfigFromMessage(c messages.SnapConfig) Config {
	return Config{
		GridSize:       c.GridSize,
		SnapToGrid:     c.SnapToGrid,
		SnapDistance:   c.SnapDistance,
		SnapToVertices: c.SnapToVertices,
		SnapToEdges:    c.SnapToEdges,
		SnapToFaces:    c.SnapToFaces,
	}
}

func CandidatesFromMessage(candidates []messages.Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	res := make([]Candidate, len(candidates))
	for i, c := range candidates {
		res[i] = NewCandidate(c.Origin.R3(), messages.Vecs(c.Vertices), c.Renderer.R3(), c.Collider.R3())
	}
	return res
}

func ResultToMessage(res Result) messages.SnapResponse {
	msg := messages.SnapResponse{
		Position: models.NewVec3(res.Position),
		Snapped:  res.Snapped(),
	}

	for _, s := range res.Steps {
		msg.Steps = append(msg.Steps, messages.SnapStep{
			Mode: string(s.Mode),
			From: models.NewVec3(s.From),
			To:   models.NewVec3(s.To),
		})
	}
	return msg
}
