package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/models"
	"github.com/aukilabs/stagekit/modules"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const errTypeScenarioSkip = "scenario-skip"

var errScenarioSkip = errors.New("message skipped").WithType(errTypeScenarioSkip)

var testingLogs testingLogSink

// InitTestingLogs sets the log and error encoders and routes log entries to
// the logger of the running testing environment. It must be called once from
// TestMain, before any test starts a handler.
func InitTestingLogs() {
	logs.SetInlineEncoder()
	errors.Encoder = json.Marshal
	logs.SetLogger(testingLogs.log)
}

type testingLogSink struct {
	mutex  sync.Mutex
	logger func(logs.Entry)
}

func (s *testingLogSink) log(e logs.Entry) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.logger != nil {
		s.logger(e)
	}
}

// set routes log entries to l until the returned function is called.
func (s *testingLogSink) set(l func(logs.Entry)) func() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.logger = l
	return func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		s.logger = nil
	}
}

// Creates a testing environement to unit test handlers and modules.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	unset := testingLogs.set(func(e logs.Entry) {
		t.Log(e)
	})

	clientA, clientB, close := newTestingEnv(t, newHandler)
	return clientA, clientB, func() {
		unset()
		close()
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	newConn := func() *websocket.Conn {
		config, err := websocket.NewConfig(
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
		)
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "ted")
		config.Header.Set("X-Forwarded-for", "192.0.0.0")
		config.Header.Set(HeaderClientID, uuid.NewString())
		config.Header.Set(HeaderAppKey, "test-app")

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		return conn
	}

	clientA := newConn()
	clientB := newConn()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

func newTestHandler(newModule ...func() modules.Module) func() Handler {
	sessionStore := &models.SessionStore{
		ServerID: "test",
	}

	return func() Handler {
		modules := make([]modules.Module, len(newModule))
		for i, nm := range newModule {
			modules[i] = nm()
		}

		var h Handler = &RealtimeHandler{
			ClientIdleTimeout: time.Minute,
			DefaultClipWidth:  10,
			Sessions:          sessionStore,
			Modules:           modules,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://stagekit-test.com")
		return h
	}
}

// MsgHandler handles a message received in a scenario. Filters return an
// error typed errTypeScenarioSkip to let the scenario wait for the next
// message.
type MsgHandler func(messages.Msg) error

// Scenario is a sequence of messages sent and expected by an editor
// connection.
type Scenario struct {
	conn  *websocket.Conn
	steps []func() error
}

// NewScenario creates a scenario that runs on the given connection.
func NewScenario(conn *websocket.Conn) *Scenario {
	return &Scenario{conn: conn}
}

// Send adds a step that sends a message built from the given type and
// payload.
func (s *Scenario) Send(t messages.MsgType, requestID uint32, data any) *Scenario {
	s.steps = append(s.steps, func() error {
		msg, err := messages.NewMsg(t, requestID, data)
		if err != nil {
			return err
		}

		_, err = messages.Send(s.conn, msg)
		return err
	})
	return s
}

// Receive adds a step that reads messages until one goes through all the
// handlers.
func (s *Scenario) Receive(handlers ...MsgHandler) *Scenario {
	s.steps = append(s.steps, func() error {
		for {
			msg, _, err := messages.Receive(s.conn)
			if err != nil {
				return err
			}

			err = handleScenarioMsg(msg, handlers)
			if errors.IsType(err, errTypeScenarioSkip) {
				continue
			}
			return err
		}
	})
	return s
}

// Run runs the steps in order. Reads fail when ctx expires.
func (s *Scenario) Run(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetDeadline(deadline)
		defer s.conn.SetDeadline(time.Time{})
	}

	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := step(); err != nil {
			return errors.New("scenario step failed").
				WithTag("step", i).
				Wrap(err)
		}
	}
	return nil
}

func handleScenarioMsg(msg messages.Msg, handlers []MsgHandler) error {
	for _, h := range handlers {
		if err := h(msg); err != nil {
			return err
		}
	}
	return nil
}

// FilterByType skips messages that are not of the given type.
func FilterByType(t messages.MsgType) MsgHandler {
	return func(msg messages.Msg) error {
		if msg.Type != t {
			return errScenarioSkip
		}
		return nil
	}
}

// FilterByRequestID skips messages that do not answer the given request.
func FilterByRequestID(requestID uint32) MsgHandler {
	return func(msg messages.Msg) error {
		if msg.RequestID != requestID {
			return errScenarioSkip
		}
		return nil
	}
}

// DecodeTo decodes the message payload into v.
func DecodeTo(v any) MsgHandler {
	return func(msg messages.Msg) error {
		return msg.DataTo(v)
	}
}
