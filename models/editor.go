package models

// Editor is a connection editing a session.
type Editor struct {
	// The id of the editor within its session. Set when the editor is added
	// to a session.
	ID uint32

	ClientID string

	deliver func(msg any)
}

// NewEditor returns an editor that receives the messages broadcast to it
// through deliver.
func NewEditor(clientID string, deliver func(msg any)) *Editor {
	return &Editor{
		ClientID: clientID,
		deliver:  deliver,
	}
}
