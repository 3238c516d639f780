package validate

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/featureflag"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
)

// Module validates the opened stage and applies automatic fixes.
type Module struct {
	Options      Options
	FeatureFlags featureflag.FeatureFlag

	currentSession *models.Session
	editor         *models.Editor
}

func (m *Module) Name() string {
	return "validate"
}

func (m *Module) Init(s *models.Session, e *models.Editor) {
	m.currentSession = s
	m.editor = e
}

func (m *Module) HandleMsg(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	switch msg.Type {
	case messages.MsgTypeValidateRequest:
		return m.HandleValidate(ctx, respond, msg)

	case messages.MsgTypeFixRequest:
		return m.HandleFix(ctx, respond, msg)

	default:
		return messages.ErrModuleMsgSkip
	}
}

func (m *Module) HandleDisconnect() {
	m.currentSession = nil
	m.editor = nil
}

func (m *Module) HandleValidate(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	if m.currentSession == nil {
		return sessionNotOpened(msg)
	}

	var findings []Finding
	m.currentSession.View(func(s *models.Stage) {
		findings = Validate(s, m.Options)
	})
	instrumentFindings(findings)

	respond.Send(messages.MsgTypeValidateResponse, msg.RequestID, ToValidateResponse(findings))
	return nil
}

func (m *Module) HandleFix(ctx context.Context, respond messages.ResponseSender, msg messages.Msg) error {
	var req messages.FixRequest
	if err := msg.DataTo(&req); err != nil {
		messages.RespondError(respond, msg.RequestID, err)
		return nil
	}

	if m.currentSession == nil {
		return sessionNotOpened(msg)
	}

	if m.FeatureFlags.IsSet(featureflag.FlagDisableAutoFix) {
		messages.SendError(respond, msg.RequestID, messages.ErrorCodeDisabled, errors.New("automatic fixes disabled").
			WithType(messages.ErrTypeDisabled))
		return nil
	}

	var res messages.FixResponse
	var summary messages.StageSummary
	m.currentSession.Update(func(s *models.Stage) error {
		applied, remaining := FixStage(s, m.Options, ParseKinds(req.Kinds)...)
		res.Applied = applied
		res.Findings = ToMessages(remaining)
		summary = messages.NewStageSummary(s)
		return nil
	})

	respond.Send(messages.MsgTypeFixResponse, msg.RequestID, res)

	if res.Applied != 0 {
		var editorID uint32
		if m.editor != nil {
			editorID = m.editor.ID
		}
		messages.Broadcast(m.currentSession, m.editor, messages.MsgTypeStageUpdateBroadcast, messages.StageBroadcast{
			EditorID: editorID,
			Stage:    summary,
		})
	}
	return nil
}

// FixStage validates the stage, applies the fixes of the findings of the given
// kinds, or of every kind when none is given, and validates the stage again.
// It returns the number of applied fixes and the remaining findings.
func FixStage(s *models.Stage, opts Options, kinds ...Kind) (int, []Finding) {
	findings := Validate(s, opts)
	if len(kinds) != 0 {
		findings = filter(findings, kinds)
	}

	applied := Apply(s, findings)
	fixesApplied.Add(float64(applied))
	return applied, Validate(s, opts)
}

// ToValidateResponse returns the wire form of a validation result.
func ToValidateResponse(findings []Finding) messages.ValidateResponse {
	counts := Count(findings)

	return messages.ValidateResponse{
		Findings: ToMessages(findings),
		Errors:   counts[SeverityError],
		Warnings: counts[SeverityWarning],
		Infos:    counts[SeverityInfo],
	}
}

// ToMessages returns the wire form of findings. It never returns nil.
func ToMessages(findings []Finding) []messages.Finding {
	res := make([]messages.Finding, len(findings))
	for i, f := range findings {
		res[i] = messages.Finding{
			Kind:           string(f.Kind),
			Severity:       string(f.Severity),
			Title:          f.Title,
			Description:    f.Description,
			ClipIndex:      f.ClipIndex,
			OtherClipIndex: f.OtherClipIndex,
			ObjectID:       f.ObjectID,
		}
		if f.Fix != nil {
			res[i].Fix = string(f.Fix.Action)
		}
	}
	return res
}

func filter(findings []Finding, kinds []Kind) []Finding {
	var res []Finding
	for _, f := range findings {
		for _, k := range kinds {
			if f.Kind == k {
				res = append(res, f)
				break
			}
		}
	}
	return res
}

// ParseKinds converts finding kind names.
func ParseKinds(v []string) []Kind {
	res := make([]Kind, len(v))
	for i, k := range v {
		res[i] = Kind(k)
	}
	return res
}

func sessionNotOpened(msg messages.Msg) error {
	return errors.New("session not opened").
		WithType(messages.ErrTypeSessionNotOpened).
		WithTag("msg_type", msg.Type)
}
