package calls

import (
	"encoding/json"
	"log"
	"sync"

	"Connect/server/internal/models"
	"Connect/server/internal/relay"

	"github.com/google/uuid"
)

type State int

const (
	StateCalling State = iota + 1
	StateRinging
	StateConnected
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateCalling:
		return "calling"
	case StateRinging:
		return "ringing"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Session is the ephemeral record of one call attempt. It is never
// persisted; a process restart loses in-flight calls.
type Session struct {
	ID         uuid.UUID
	CallerID   int
	CalleeID   int
	State      State
	LastSignal string
}

func (s *Session) involves(userID int) bool {
	return s.CallerID == userID || s.CalleeID == userID
}

func (s *Session) peerOf(userID int) int {
	if s.CallerID == userID {
		return s.CalleeID
	}
	return s.CallerID
}

// Sender is the slice of the relay the manager needs.
type Sender interface {
	SendToUser(userID int, eventType string, data interface{}) int
}

// Presence answers whether a user has at least one live connection.
type Presence interface {
	IsOnline(userID int) bool
}

// Manager owns the table of active call sessions and guards every state
// transition. Signals that do not match the session's current state are
// rejected instead of relayed, which closes the race where an answer
// arrives after the call already ended.
type Manager struct {
	mu       sync.Mutex
	sender   Sender
	presence Presence
	sessions map[uuid.UUID]*Session
	byUser   map[int]uuid.UUID
}

func NewManager(sender Sender, presence Presence) *Manager {
	return &Manager{
		sender:   sender,
		presence: presence,
		sessions: make(map[uuid.UUID]*Session),
		byUser:   make(map[int]uuid.UUID),
	}
}

// Initiate starts a call attempt. The callee must be online and neither
// party may already be in a non-terminal session. The offer is relayed to
// every connection of the callee; the session is left in the ringing state.
func (m *Manager) Initiate(callerID, calleeID int, offer json.RawMessage, name, pic string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.presence.IsOnline(calleeID) {
		return nil, models.ErrPeerUnavailable
	}
	if _, busy := m.byUser[calleeID]; busy {
		return nil, models.ErrBusy
	}
	if _, busy := m.byUser[callerID]; busy {
		return nil, models.ErrBusy
	}

	session := &Session{
		ID:         uuid.New(),
		CallerID:   callerID,
		CalleeID:   calleeID,
		State:      StateCalling,
		LastSignal: "offer",
	}
	m.sessions[session.ID] = session
	m.byUser[callerID] = session.ID
	m.byUser[calleeID] = session.ID

	delivered := m.sender.SendToUser(calleeID, relay.EventIncomingCall, map[string]interface{}{
		"call_id": session.ID.String(),
		"from":    callerID,
		"name":    name,
		"pic":     pic,
		"signal":  offer,
	})
	if delivered == 0 {
		// The callee disconnected between the presence check and the send.
		m.discard(session)
		return nil, models.ErrPeerUnavailable
	}

	session.State = StateRinging
	log.Printf("Call %s initiated: %d -> %d", session.ID, callerID, calleeID)
	return session, nil
}

// Answer relays the callee's answer back to the caller. Valid only while
// the session is ringing; anything else is a stale signal.
func (m *Manager) Answer(callID uuid.UUID, calleeID int, answer json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[callID]
	if !ok {
		// Ended sessions are discarded, so a late answer lands here.
		return models.ErrStaleSignal
	}
	if session.CalleeID != calleeID {
		return models.ErrPermissionDenied
	}
	if session.State != StateRinging {
		return models.ErrStaleSignal
	}

	session.State = StateConnected
	session.LastSignal = "answer"
	m.sender.SendToUser(session.CallerID, relay.EventCallAccepted, map[string]interface{}{
		"call_id": session.ID.String(),
		"signal":  answer,
	})
	log.Printf("Call %s answered by user %d", session.ID, calleeID)
	return nil
}

// RelayICECandidate forwards a trickle candidate to the other party. It is
// best-effort and carries no ordering guarantee relative to offer/answer.
func (m *Manager) RelayICECandidate(callID uuid.UUID, fromUserID int, candidate json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[callID]
	if !ok {
		return models.ErrStaleSignal
	}
	if !session.involves(fromUserID) {
		return models.ErrPermissionDenied
	}
	switch session.State {
	case StateCalling, StateRinging, StateConnected:
	default:
		return models.ErrStaleSignal
	}

	session.LastSignal = "candidate"
	m.sender.SendToUser(session.peerOf(fromUserID), relay.EventICECandidate, map[string]interface{}{
		"call_id":   session.ID.String(),
		"candidate": candidate,
	})
	return nil
}

// End terminates the session from any non-terminal state and notifies the
// other party. The session is discarded afterwards.
func (m *Manager) End(callID uuid.UUID, byUserID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[callID]
	if !ok {
		return models.ErrCallNotFound
	}
	if !session.involves(byUserID) {
		return models.ErrPermissionDenied
	}
	if session.State == StateEnded {
		return models.ErrStaleSignal
	}

	m.endSession(session, byUserID)
	return nil
}

// DropUser force-ends any non-terminal session the user participates in.
// The pool calls this when a user's last connection goes away.
func (m *Manager) DropUser(userID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	callID, ok := m.byUser[userID]
	if !ok {
		return
	}
	session, ok := m.sessions[callID]
	if !ok || session.State == StateEnded {
		return
	}

	log.Printf("User %d disconnected during call %s, ending it", userID, session.ID)
	m.endSession(session, userID)
}

// SessionFor reports the user's current non-terminal session, if any.
func (m *Manager) SessionFor(userID int) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	callID, ok := m.byUser[userID]
	if !ok {
		return Session{}, false
	}
	session, ok := m.sessions[callID]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// endSession must run with the manager lock held.
func (m *Manager) endSession(session *Session, byUserID int) {
	session.State = StateEnded
	m.sender.SendToUser(session.peerOf(byUserID), relay.EventCallEnded, map[string]interface{}{
		"call_id": session.ID.String(),
		"by":      byUserID,
	})
	m.discard(session)
	log.Printf("Call %s ended by user %d", session.ID, byUserID)
}

func (m *Manager) discard(session *Session) {
	delete(m.sessions, session.ID)
	delete(m.byUser, session.CallerID)
	delete(m.byUser, session.CalleeID)
}
