package modules

import (
	"context"

	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
)

// Module is the interface that describes a module that extends the editor
// protocol.
type Module interface {
	// Returns the module name.
	Name() string

	// Initializes the module with the session opened by the connection and
	// the editor the connection is registered as.
	Init(*models.Session, *models.Editor)

	// Handles a given message. Modules are free to decide whether they handle a
	// message.
	//
	// Returning messages.ErrModuleMsgSkip indicates that handling a message was
	// skipped. Request failures are answered with an error response by the
	// module itself.
	//
	// Any other returned errors causes the current WebSocket client to be
	// disconnected.
	HandleMsg(context.Context, messages.ResponseSender, messages.Msg) error

	// Handles a client disconnection.
	HandleDisconnect()
}
