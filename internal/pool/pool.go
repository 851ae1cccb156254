package pool

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Conn is the transport surface the pool needs from a client connection.
// *websocket.Conn satisfies it; tests plug in fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	ID     uuid.UUID
	UserID int

	mu   sync.Mutex
	conn Conn
}

// Send writes an event envelope to the client. Writes are serialized per
// connection because websocket connections allow only one concurrent writer.
func (c *Client) Send(eventType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteJSON(map[string]interface{}{
		"event": eventType,
		"data":  data,
	})
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.Close()
}

// Pool maps each user to the set of their live connections. It is the unit
// of routing: one user may be connected from several devices at once.
type Pool struct {
	mu      sync.RWMutex
	clients map[int]map[uuid.UUID]*Client

	// onUserOffline runs when a user's last connection goes away. It is
	// dispatched on its own goroutine so listeners may call back into
	// components that deliver through the pool.
	onUserOffline func(userID int)
}

func NewPool() *Pool {
	return &Pool{
		clients: make(map[int]map[uuid.UUID]*Client),
	}
}

func (p *Pool) SetUserOfflineListener(fn func(userID int)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.onUserOffline = fn
}

func (p *Pool) AddClient(userID int, conn Conn) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	client := &Client{
		ID:     uuid.New(),
		UserID: userID,
		conn:   conn,
	}
	if p.clients[userID] == nil {
		p.clients[userID] = make(map[uuid.UUID]*Client)
	}
	p.clients[userID][client.ID] = client

	log.Printf("Client %s added to pool for user %d", client.ID, userID)
	return client
}

func (p *Pool) RemoveClient(client *Client) {
	p.mu.Lock()

	conns, ok := p.clients[client.UserID]
	if ok {
		delete(conns, client.ID)
	}
	lastConnection := ok && len(conns) == 0
	if lastConnection {
		delete(p.clients, client.UserID)
	}
	offline := p.onUserOffline
	p.mu.Unlock()

	log.Printf("Client %s removed from pool for user %d", client.ID, client.UserID)

	if lastConnection && offline != nil {
		go offline(client.UserID)
	}
}

// ClientsForUser returns a snapshot of the user's live connections. The
// returned slice is safe to iterate without holding the pool lock.
func (p *Pool) ClientsForUser(userID int) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := p.clients[userID]
	if len(conns) == 0 {
		return nil
	}
	clients := make([]*Client, 0, len(conns))
	for _, client := range conns {
		clients = append(clients, client)
	}
	return clients
}

func (p *Pool) IsOnline(userID int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.clients[userID]) > 0
}
