package models

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session represents an editing session over a single stage. Every
// connection editing the stage goes through the session so that stage reads
// and writes are serialized.
type Session struct {
	ID          uint32
	SessionUUID string

	// The key of the editor application that opened the session.
	AppKey string

	stageMutex sync.RWMutex
	stage      *Stage

	editorMutex sync.RWMutex
	editors     []*Editor
	editorIDs   SequentialIDGenerator

	moduleStates map[string]any
	moduleMutex  sync.RWMutex
}

func NewSession(id uint32, stage *Stage) *Session {
	if stage == nil {
		stage = NewStage(DefaultClipWidth)
	}

	return &Session{
		ID:           id,
		SessionUUID:  uuid.New().String(),
		stage:        stage,
		moduleStates: make(map[string]any),
	}
}

// Snapshot returns a deep copy of the session stage.
func (s *Session) Snapshot() *Stage {
	s.stageMutex.RLock()
	defer s.stageMutex.RUnlock()

	return s.stage.Clone()
}

// View calls f with the session stage under a read lock. f must not keep or
// modify the stage.
func (s *Session) View(f func(*Stage)) {
	s.stageMutex.RLock()
	defer s.stageMutex.RUnlock()

	f(s.stage)
}

// Update calls f with the session stage under a write lock. The stage
// revision is bumped once f returns.
func (s *Session) Update(f func(*Stage) error) error {
	s.stageMutex.Lock()
	defer s.stageMutex.Unlock()

	defer func() {
		s.stage.revision++
	}()
	return f(s.stage)
}

// Replace swaps the session stage with the given one.
func (s *Session) Replace(stage *Stage) {
	s.stageMutex.Lock()
	defer s.stageMutex.Unlock()

	stage.revision = s.stage.revision + 1
	s.stage = stage
}

// AddEditor registers a connection editing the session and gives it an id.
func (s *Session) AddEditor(e *Editor) {
	s.editorMutex.Lock()
	defer s.editorMutex.Unlock()

	e.ID = s.editorIDs.New()
	s.editors = append(s.editors, e)
}

// RemoveEditor unregisters a connection and returns the number of editors
// left.
func (s *Session) RemoveEditor(e *Editor) int {
	s.editorMutex.Lock()
	defer s.editorMutex.Unlock()

	for i, editor := range s.editors {
		if editor == e {
			s.editors = append(s.editors[:i], s.editors[i+1:]...)
			s.editorIDs.Reuse(e.ID)
			break
		}
	}
	return len(s.editors)
}

func (s *Session) EditorCount() int {
	s.editorMutex.RLock()
	defer s.editorMutex.RUnlock()

	return len(s.editors)
}

// Broadcast delivers msg to every editor of the session but sender.
func (s *Session) Broadcast(sender *Editor, msg any) {
	s.editorMutex.RLock()
	defer s.editorMutex.RUnlock()

	for _, e := range s.editors {
		if e == sender || e.deliver == nil {
			continue
		}
		e.deliver(msg)
	}
}

func (s *Session) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Session) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

// SessionStore contains the sessions opened on the server.
type SessionStore struct {
	// The name prefixed to global session ids.
	ServerID string

	initOnce sync.Once
	mutex    sync.RWMutex
	sessions map[string]*Session
	ids      SequentialIDGenerator
}

func (s *SessionStore) init() {
	s.sessions = map[string]*Session{}

	if s.ServerID == "" {
		s.ServerID = "stagekit"
	}
}

func (s *SessionStore) NewID() uint32 {
	return s.ids.New()
}

func (s *SessionStore) Add(ctx context.Context, session *Session) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions[s.GlobalSessionID(session.ID)] = session

	instrumentIncreaseSessionGauge(session.AppKey)
	instrumentCountSession(session.AppKey)
	return nil
}

func (s *SessionStore) Remove(ctx context.Context, session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.GlobalSessionID(session.ID)
	if _, ok := s.sessions[id]; !ok {
		return
	}
	delete(s.sessions, id)

	s.ids.Reuse(session.ID)

	instrumentDecreaseSessionGauge(session.AppKey)
}

func (s *SessionStore) GetByGlobalID(v string) (*Session, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[v]
	return session, ok
}

func (s *SessionStore) Len() int {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.sessions)
}

func (s *SessionStore) GlobalSessionID(sessionID uint32) string {
	s.initOnce.Do(s.init)
	return fmt.Sprintf("%sx%x", s.ServerID, sessionID)
}
