package messages

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/stagekit/models"
)

// StageBroadcast tells editors that the stage was replaced or changed by
// another editor.
type StageBroadcast struct {
	EditorID uint32       `json:"editor_id"`
	Stage    StageSummary `json:"stage"`
}

// ObjectBroadcast tells editors that another editor added or updated an
// object.
type ObjectBroadcast struct {
	EditorID uint32 `json:"editor_id"`
	Object   Object `json:"object"`
}

type ObjectDeleteBroadcast struct {
	EditorID uint32 `json:"editor_id"`
	ObjectID uint32 `json:"object_id"`
}

// ClipUpdateBroadcast carries every clip of a stage after another editor
// added, removed or resized one.
type ClipUpdateBroadcast struct {
	EditorID uint32 `json:"editor_id"`
	Clips    []Clip `json:"clips"`
}

// NewEditor returns an editor whose broadcast messages are sent with
// respond.
func NewEditor(clientID string, respond ResponseSender) *models.Editor {
	return models.NewEditor(clientID, func(v any) {
		if msg, ok := v.(Msg); ok {
			respond.SendMsg(msg)
		}
	})
}

// Broadcast sends a message built from the given type and payload to the
// editors of session other than sender. The message is encoded once.
func Broadcast(session *models.Session, sender *models.Editor, t MsgType, data any) {
	msg, err := NewMsg(t, 0, data)
	if err != nil {
		logs.WithTag("msg_type", t).Debug(err)
		return
	}
	session.Broadcast(sender, msg)
}
