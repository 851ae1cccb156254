package calls

import (
	"encoding/json"
	"sync"
	"testing"

	"Connect/server/internal/models"
	"Connect/server/internal/relay"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	userID int
	event  string
	data   map[string]interface{}
}

type fakeSender struct {
	mu     sync.Mutex
	events []sentEvent
	online map[int]bool
}

func newFakeSender(onlineUsers ...int) *fakeSender {
	online := make(map[int]bool)
	for _, id := range onlineUsers {
		online[id] = true
	}
	return &fakeSender{online: online}
}

func (f *fakeSender) SendToUser(userID int, eventType string, data interface{}) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{userID, eventType, data.(map[string]interface{})})
	if f.online[userID] {
		return 1
	}
	return 0
}

func (f *fakeSender) IsOnline(userID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *fakeSender) setOnline(userID int, online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = online
}

func (f *fakeSender) eventsFor(userID int) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.events {
		if e.userID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) lastEvent(userID int) (sentEvent, bool) {
	events := f.eventsFor(userID)
	if len(events) == 0 {
		return sentEvent{}, false
	}
	return events[len(events)-1], true
}

var offer = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
var answerSignal = json.RawMessage(`{"type":"answer","sdp":"v=0"}`)

func TestInitiateOfflineCalleeLeavesNoSession(t *testing.T) {
	sender := newFakeSender(1)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")

	require.ErrorIs(t, err, models.ErrPeerUnavailable)
	assert.Nil(t, session)
	_, exists := m.SessionFor(1)
	assert.False(t, exists, "failed initiation must not leave caller busy")
}

func TestInitiateDeliversIncomingCallAndRings(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "pic.png")

	require.NoError(t, err)
	assert.Equal(t, StateRinging, session.State)

	incoming, ok := sender.lastEvent(2)
	require.True(t, ok)
	assert.Equal(t, relay.EventIncomingCall, incoming.event)
	assert.Equal(t, session.ID.String(), incoming.data["call_id"])
	assert.Equal(t, 1, incoming.data["from"])
	assert.Equal(t, "alice", incoming.data["name"])
}

func TestInitiateWhileBusyRejected(t *testing.T) {
	sender := newFakeSender(1, 2, 3)
	m := NewManager(sender, sender)

	_, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	_, err = m.Initiate(3, 2, offer, "carol", "")
	assert.ErrorIs(t, err, models.ErrBusy, "callee already ringing")

	_, err = m.Initiate(1, 3, offer, "alice", "")
	assert.ErrorIs(t, err, models.ErrBusy, "caller already in a call")
}

func TestAnswerConnectsAndRelaysToCaller(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	require.NoError(t, m.Answer(session.ID, 2, answerSignal))

	accepted, ok := sender.lastEvent(1)
	require.True(t, ok)
	assert.Equal(t, relay.EventCallAccepted, accepted.event)

	current, exists := m.SessionFor(1)
	require.True(t, exists)
	assert.Equal(t, StateConnected, current.State)
}

func TestAnswerByWrongUserDenied(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Answer(session.ID, 1, answerSignal), models.ErrPermissionDenied)
}

func TestAnswerAfterEndIsStale(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	require.NoError(t, m.End(session.ID, 1))

	err = m.Answer(session.ID, 2, answerSignal)
	assert.ErrorIs(t, err, models.ErrStaleSignal)
}

func TestDoubleAnswerIsStale(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	require.NoError(t, m.Answer(session.ID, 2, answerSignal))
	assert.ErrorIs(t, m.Answer(session.ID, 2, answerSignal), models.ErrStaleSignal)
}

func TestICECandidateRelayedToPeer(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	candidate := json.RawMessage(`{"candidate":"udp 1 host"}`)
	require.NoError(t, m.RelayICECandidate(session.ID, 1, candidate))

	last, ok := sender.lastEvent(2)
	require.True(t, ok)
	assert.Equal(t, relay.EventICECandidate, last.event)

	require.NoError(t, m.RelayICECandidate(session.ID, 2, candidate))
	last, ok = sender.lastEvent(1)
	require.True(t, ok)
	assert.Equal(t, relay.EventICECandidate, last.event)
}

func TestICECandidateAfterEndIsStale(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)
	require.NoError(t, m.End(session.ID, 2))

	err = m.RelayICECandidate(session.ID, 1, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, models.ErrStaleSignal)
}

func TestICECandidateFromOutsiderDenied(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	err = m.RelayICECandidate(session.ID, 9, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestEndNotifiesPeerAndFreesBothParties(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	require.NoError(t, m.End(session.ID, 1))

	ended, ok := sender.lastEvent(2)
	require.True(t, ok)
	assert.Equal(t, relay.EventCallEnded, ended.event)
	assert.Equal(t, 1, ended.data["by"])

	_, exists := m.SessionFor(1)
	assert.False(t, exists)
	_, exists = m.SessionFor(2)
	assert.False(t, exists)

	// Both parties can start fresh calls.
	_, err = m.Initiate(2, 1, offer, "bob", "")
	assert.NoError(t, err)
}

func TestEndUnknownCall(t *testing.T) {
	sender := newFakeSender()
	m := NewManager(sender, sender)

	assert.ErrorIs(t, m.End(uuid.New(), 1), models.ErrCallNotFound)
}

func TestDropUserDuringRingingEndsCall(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	// Callee's last connection drops while the call is still ringing.
	sender.setOnline(2, false)
	m.DropUser(2)

	ended, ok := sender.lastEvent(1)
	require.True(t, ok)
	assert.Equal(t, relay.EventCallEnded, ended.event)

	// A late answer from the reconnecting callee is rejected, not relayed.
	err = m.Answer(session.ID, 2, answerSignal)
	assert.ErrorIs(t, err, models.ErrStaleSignal)
}

func TestDropUserWithoutSessionIsNoOp(t *testing.T) {
	sender := newFakeSender()
	m := NewManager(sender, sender)

	m.DropUser(42)
	assert.Empty(t, sender.events)
}

func TestConcurrentEndHasOneWinner(t *testing.T) {
	sender := newFakeSender(1, 2)
	m := NewManager(sender, sender)

	session, err := m.Initiate(1, 2, offer, "alice", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []int{1, 2} {
		wg.Add(1)
		go func(i, userID int) {
			defer wg.Done()
			errs[i] = m.End(session.ID, userID)
		}(i, userID)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, models.ErrCallNotFound)
		}
	}
	assert.Equal(t, 1, winners)
}
