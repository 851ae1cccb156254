package relay

import (
	"errors"
	"sync"
	"testing"

	"Connect/server/internal/models"
	"Connect/server/internal/pool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	events []string
	closed bool
	err    error
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	envelope := v.(map[string]interface{})
	f.events = append(f.events, envelope["event"].(string))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func TestTypingExcludesEmitter(t *testing.T) {
	p := pool.NewPool()
	r := New(p)

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	alice := p.AddClient(1, aliceConn)
	bob := p.AddClient(2, bobConn)

	r.JoinChat(alice, 10)
	r.JoinChat(bob, 10)

	r.Typing(alice, 10)

	assert.Empty(t, aliceConn.received(), "emitter must not receive its own indicator")
	assert.Equal(t, []string{EventTyping}, bobConn.received())

	r.StopTyping(alice, 10)
	assert.Equal(t, []string{EventTyping, EventStopTyping}, bobConn.received())
}

func TestTypingScopedToJoinedChat(t *testing.T) {
	p := pool.NewPool()
	r := New(p)

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	alice := p.AddClient(1, aliceConn)
	p.AddClient(2, bobConn) // bob is online but never joined the chat topic

	r.JoinChat(alice, 10)
	r.Typing(alice, 10)

	assert.Empty(t, bobConn.received())
}

func TestSendToUserReachesEveryDevice(t *testing.T) {
	p := pool.NewPool()
	r := New(p)

	phone := &fakeConn{}
	laptop := &fakeConn{}
	p.AddClient(4, phone)
	p.AddClient(4, laptop)

	delivered := r.SendToUser(4, EventNewMessage, map[string]interface{}{"id": 1})

	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{EventNewMessage}, phone.received())
	assert.Equal(t, []string{EventNewMessage}, laptop.received())
}

func TestSendToUserOfflineDeliversZero(t *testing.T) {
	p := pool.NewPool()
	r := New(p)

	assert.Equal(t, 0, r.SendToUser(99, EventNewMessage, nil))
}

func TestDeliverErrorEvictsConnection(t *testing.T) {
	p := pool.NewPool()
	r := New(p)

	broken := &fakeConn{err: errors.New("write: broken pipe")}
	client := p.AddClient(6, broken)
	r.JoinChat(client, 3)

	delivered := r.SendToUser(6, EventNewMessage, nil)

	assert.Equal(t, 0, delivered)
	assert.True(t, broken.closed)
	assert.False(t, p.IsOnline(6))

	// The dropped connection no longer receives chat topic traffic.
	otherConn := &fakeConn{}
	other := p.AddClient(7, otherConn)
	r.JoinChat(other, 3)
	r.Typing(other, 3)
	assert.Empty(t, broken.received())
}

func TestBroadcastNewMessageSkipsSender(t *testing.T) {
	p := pool.NewPool()
	r := New(p)

	senderConn := &fakeConn{}
	memberConn := &fakeConn{}
	p.AddClient(1, senderConn)
	p.AddClient(2, memberConn)

	msg := &models.Message{
		ID:       5,
		ChatID:   10,
		SenderID: 1,
		Content:  "hello",
		Chat:     &models.Chat{ID: 10, Members: []int{1, 2, 3}},
	}
	r.BroadcastNewMessage(msg)

	assert.Empty(t, senderConn.received())
	assert.Equal(t, []string{EventNewMessage}, memberConn.received())
}

func TestBroadcastDeletionSkipsSender(t *testing.T) {
	p := pool.NewPool()
	r := New(p)

	senderConn := &fakeConn{}
	memberConn := &fakeConn{}
	p.AddClient(1, senderConn)
	p.AddClient(2, memberConn)

	r.BroadcastDeletion(5, 10, 1, []int{1, 2})

	assert.Empty(t, senderConn.received())
	require.Equal(t, []string{EventMessageDeleted}, memberConn.received())
}
