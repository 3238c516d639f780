package messages

import "sync"

// ResponseRecorder is a ResponseSender that keeps the messages it is given.
// Messages that can't be encoded are recorded as error responses.
type ResponseRecorder struct {
	mutex sync.Mutex
	msgs  []Msg
}

func (r *ResponseRecorder) Send(t MsgType, requestID uint32, data any) {
	msg, err := NewMsg(t, requestID, data)
	if err != nil {
		msg, _ = NewMsg(MsgTypeErrorResponse, requestID, ErrorResponse{
			Code:    ErrorCodeInternalServerError,
			Message: err.Error(),
		})
	}
	r.SendMsg(msg)
}

func (r *ResponseRecorder) SendMsg(msg Msg) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.msgs = append(r.msgs, msg)
}

// Msgs returns the recorded messages.
func (r *ResponseRecorder) Msgs() []Msg {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return append([]Msg(nil), r.msgs...)
}

// Last returns the last recorded message.
func (r *ResponseRecorder) Last() (Msg, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.msgs) == 0 {
		return Msg{}, false
	}
	return r.msgs[len(r.msgs)-1], true
}
